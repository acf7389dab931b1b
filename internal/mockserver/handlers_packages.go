package mockserver

import (
	"fmt"
	"net/http"
	"sort"
	"strconv"

	"github.com/go-chi/chi/v5"

	"go-access-console/internal/model"
)

// handleListPackages shows admins everything; everyone else only sees the
// packages they hold access to.
func (s *Server) handleListPackages(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorFromContext(r.Context())

	s.store.mu.Lock()
	isAdmin := false
	if role, ok := s.store.roles[actor.RoleID]; ok {
		isAdmin = role.Name == model.AdminRoleName
	}

	packages := make([]model.Package, 0, len(s.store.packages))
	for _, rec := range s.store.sortedPackagesLocked() {
		if !isAdmin {
			if _, member := rec.Members[actor.ID]; !member {
				continue
			}
		}
		packages = append(packages, s.store.packageViewLocked(rec))
	}
	s.store.mu.Unlock()

	writeJSON(w, http.StatusOK, packages)
}

// handleExcludedUsers returns the users outside the package's access list.
// exclude_logins narrows it further so the caller's possibly fresher view of
// the granted set wins over the server's.
func (s *Server) handleExcludedUsers(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		writeDetail(w, http.StatusNotFound, "Package not found.")
		return
	}

	excluded := map[string]struct{}{}
	for _, login := range r.URL.Query()["exclude_logins"] {
		excluded[login] = struct{}{}
	}

	s.store.mu.Lock()
	pkg, ok := s.store.packages[id]
	if !ok {
		s.store.mu.Unlock()
		writeDetail(w, http.StatusNotFound, "Package not found.")
		return
	}

	users := make([]model.UserRef, 0, len(s.store.users))
	for _, rec := range s.store.sortedUsersLocked() {
		if _, member := pkg.Members[rec.ID]; member {
			continue
		}
		if _, skip := excluded[rec.Username]; skip {
			continue
		}
		users = append(users, s.store.userRefLocked(rec))
	}
	s.store.mu.Unlock()

	writeJSON(w, http.StatusOK, users)
}

// handleGrantAccess replaces the package's whole access list with the posted
// membership. Empty membership revokes everyone.
func (s *Server) handleGrantAccess(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorFromContext(r.Context())

	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		writeDetail(w, http.StatusNotFound, "Package not found.")
		return
	}

	var input model.Package
	if !decodeBody(w, r, &input) {
		return
	}

	s.store.mu.Lock()
	defer s.store.mu.Unlock()

	role, ok := s.store.roles[actor.RoleID]
	if !ok || role.Name != model.AdminRoleName {
		writeDetail(w, http.StatusForbidden, "You do not have permission to manage package access.")
		return
	}

	pkg, ok := s.store.packages[id]
	if !ok {
		writeDetail(w, http.StatusNotFound, "Package not found.")
		return
	}

	var missing []int
	members := map[int]struct{}{}
	for _, ref := range input.UsersWithAccess {
		if _, exists := s.store.users[ref.ID]; !exists {
			missing = append(missing, ref.ID)
			continue
		}
		members[ref.ID] = struct{}{}
	}

	if len(missing) > 0 {
		sort.Ints(missing)
		writeDetail(w, http.StatusNotFound, fmt.Sprintf("Users with ID %v not found.", missing))
		return
	}

	pkg.Members = members
	writeDetail(w, http.StatusOK, "Access updated.")
}
