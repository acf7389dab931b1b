package mockserver

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"go-access-console/internal/model"
)

func (s *Server) handleAvailablePermissions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]model.PermissionInfo{"permissions": permissionCatalog})
}

func (s *Server) handleStatistics(w http.ResponseWriter, r *http.Request) {
	s.store.mu.Lock()
	stats := model.Statistics{
		RolesCount:    len(s.store.roles),
		UsersCount:    len(s.store.users),
		PackagesCount: len(s.store.packages),
	}
	s.store.mu.Unlock()

	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleListRoles(w http.ResponseWriter, r *http.Request) {
	s.store.mu.Lock()
	roles := make([]model.Role, 0, len(s.store.roles))
	for _, rec := range s.store.sortedRolesLocked() {
		roles = append(roles, s.store.roleViewLocked(rec))
	}
	s.store.mu.Unlock()

	writeJSON(w, http.StatusOK, roles)
}

func (s *Server) handleCreateRole(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorFromContext(r.Context())

	var input model.RoleInput
	if !decodeBody(w, r, &input) {
		return
	}
	input.Name = strings.TrimSpace(input.Name)

	s.store.mu.Lock()
	defer s.store.mu.Unlock()

	if !s.store.allowedLocked(actor, model.PermAddRoles) {
		writeDetail(w, http.StatusForbidden, "You do not have permission to add roles.")
		return
	}

	if input.Name == "" {
		writeFieldErrors(w, map[string][]string{"rolename": {"This field may not be blank."}})
		return
	}
	if s.store.roleByNameLocked(input.Name) != nil {
		writeFieldErrors(w, map[string][]string{"rolename": {"Role with this name already exists."}})
		return
	}

	allowed := map[string]bool{}
	for _, perm := range input.Permissions {
		allowed[perm.Key] = perm.Allowed
	}
	rec := s.store.addRoleLocked(input.Name, func(key string) bool { return allowed[key] })

	writeJSON(w, http.StatusCreated, s.store.roleViewLocked(rec))
}

func (s *Server) handleUpdateRole(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorFromContext(r.Context())

	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		writeDetail(w, http.StatusNotFound, "Role not found.")
		return
	}

	var input model.RoleInput
	if !decodeBody(w, r, &input) {
		return
	}

	s.store.mu.Lock()
	defer s.store.mu.Unlock()

	if !s.store.allowedLocked(actor, model.PermEditRoles) {
		writeDetail(w, http.StatusForbidden, "You do not have permission to edit roles.")
		return
	}

	rec, ok := s.store.roles[id]
	if !ok {
		writeDetail(w, http.StatusNotFound, "Role not found.")
		return
	}

	if name := strings.TrimSpace(input.Name); name != "" && name != rec.Name {
		if rec.Name == model.AdminRoleName {
			writeDetail(w, http.StatusForbidden, "The admin role cannot be renamed.")
			return
		}
		if s.store.roleByNameLocked(name) != nil {
			writeFieldErrors(w, map[string][]string{"rolename": {"Role with this name already exists."}})
			return
		}
		rec.Name = name
	}

	for _, perm := range input.Permissions {
		if _, known := rec.Allowed[perm.Key]; known {
			rec.Allowed[perm.Key] = perm.Allowed
		}
	}

	writeJSON(w, http.StatusOK, s.store.roleViewLocked(rec))
}

func (s *Server) handleDeleteRole(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorFromContext(r.Context())
	name := chi.URLParam(r, "name")

	s.store.mu.Lock()
	defer s.store.mu.Unlock()

	if !s.store.allowedLocked(actor, model.PermDeleteRoles) {
		writeDetail(w, http.StatusForbidden, "You do not have permission to delete roles.")
		return
	}

	if name == model.AdminRoleName {
		writeDetail(w, http.StatusForbidden, "The admin role cannot be deleted.")
		return
	}

	rec := s.store.roleByNameLocked(name)
	if rec == nil {
		writeDetail(w, http.StatusNotFound, "Role not found.")
		return
	}

	// Members of a deleted role fall back to the default role.
	fallback := s.store.roleByNameLocked("user")
	for _, user := range s.store.users {
		if user.RoleID == rec.ID && fallback != nil {
			user.RoleID = fallback.ID
		}
	}

	delete(s.store.roles, rec.ID)
	writeDetail(w, http.StatusOK, "Role deleted.")
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	s.store.mu.Lock()
	users := make([]model.User, 0, len(s.store.users))
	for _, rec := range s.store.sortedUsersLocked() {
		users = append(users, s.store.userViewLocked(rec))
	}
	s.store.mu.Unlock()

	writeJSON(w, http.StatusOK, users)
}

func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorFromContext(r.Context())

	var input model.NewUser
	if !decodeBody(w, r, &input) {
		return
	}
	input.Username = strings.TrimSpace(input.Username)

	s.store.mu.Lock()
	defer s.store.mu.Unlock()

	if !s.store.allowedLocked(actor, model.PermAddUsers) {
		writeDetail(w, http.StatusForbidden, "You do not have permission to add users.")
		return
	}

	fields := map[string][]string{}
	if input.Username == "" {
		fields["username"] = append(fields["username"], "This field may not be blank.")
	} else if s.store.userByNameLocked(input.Username) != nil {
		fields["username"] = append(fields["username"], "A user with this login already exists.")
	}

	role := s.store.roleByNameLocked(input.Role)
	if role == nil {
		fields["role"] = append(fields["role"], "Unknown role.")
	}

	if len(fields) > 0 {
		writeFieldErrors(w, fields)
		return
	}

	// Directory-created accounts start without a usable password; the user
	// goes through registration or an admin reset to obtain one.
	rec := s.store.addUserLocked(&userRecord{
		Username:  input.Username,
		FirstName: strings.TrimSpace(input.FirstName),
		LastName:  strings.TrimSpace(input.LastName),
		Email:     strings.TrimSpace(input.Email),
		RoleID:    role.ID,
	})

	writeJSON(w, http.StatusCreated, s.store.userViewLocked(rec))
}

func (s *Server) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorFromContext(r.Context())

	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		writeDetail(w, http.StatusNotFound, "User not found.")
		return
	}

	var input model.User
	if !decodeBody(w, r, &input) {
		return
	}

	s.store.mu.Lock()
	defer s.store.mu.Unlock()

	if actor.ID != id && !s.store.allowedLocked(actor, model.PermEditUsers) {
		writeDetail(w, http.StatusForbidden, "You do not have permission to edit users.")
		return
	}

	rec, ok := s.store.users[id]
	if !ok {
		writeDetail(w, http.StatusNotFound, "User not found.")
		return
	}

	if username := strings.TrimSpace(input.Username); username != "" && username != rec.Username {
		if s.store.userByNameLocked(username) != nil {
			writeFieldErrors(w, map[string][]string{"username": {"A user with this login already exists."}})
			return
		}
		rec.Username = username
	}
	rec.FirstName = strings.TrimSpace(input.FirstName)
	rec.LastName = strings.TrimSpace(input.LastName)
	rec.Email = strings.TrimSpace(input.Email)

	// Changing someone's role requires the edit permission even on yourself.
	if input.Role.Name != "" {
		if role := s.store.roleByNameLocked(input.Role.Name); role != nil && role.ID != rec.RoleID {
			if !s.store.allowedLocked(actor, model.PermEditUsers) {
				writeDetail(w, http.StatusForbidden, "You do not have permission to change roles.")
				return
			}
			rec.RoleID = role.ID
		}
	}

	writeJSON(w, http.StatusOK, s.store.userViewLocked(rec))
}

func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorFromContext(r.Context())

	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		writeDetail(w, http.StatusNotFound, "User not found.")
		return
	}

	s.store.mu.Lock()
	defer s.store.mu.Unlock()

	if !s.store.allowedLocked(actor, model.PermDeleteUsers) {
		writeDetail(w, http.StatusForbidden, "You do not have permission to delete users.")
		return
	}

	rec, ok := s.store.users[id]
	if !ok {
		writeDetail(w, http.StatusNotFound, "User not found.")
		return
	}

	delete(s.store.users, rec.ID)
	for _, pkg := range s.store.packages {
		delete(pkg.Members, rec.ID)
	}

	writeDetail(w, http.StatusOK, "User deleted.")
}

func (s *Server) handleUpdateUserPermission(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorFromContext(r.Context())

	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		writeDetail(w, http.StatusNotFound, "User not found.")
		return
	}

	var update model.PermissionUpdate
	if !decodeBody(w, r, &update) {
		return
	}

	s.store.mu.Lock()
	defer s.store.mu.Unlock()

	if !s.store.allowedLocked(actor, model.PermEditUsers) {
		writeDetail(w, http.StatusForbidden, "You do not have permission to edit permissions.")
		return
	}

	rec, ok := s.store.users[id]
	if !ok {
		writeDetail(w, http.StatusNotFound, "User not found.")
		return
	}

	role, ok := s.store.roles[rec.RoleID]
	if !ok {
		writeDetail(w, http.StatusNotFound, "Role not found.")
		return
	}

	if _, known := role.Allowed[update.Permission]; !known {
		writeDetail(w, http.StatusNotFound, "Permission not found.")
		return
	}

	// The switch lives on the role, so every member of the role changes
	// with it; that is what the console's optimistic update mirrors.
	role.Allowed[update.Permission] = update.Allowed
	writeDetail(w, http.StatusOK, "Permission updated.")
}
