package mockserver

import (
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"go-access-console/internal/model"
)

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var creds model.Credentials
	if !decodeBody(w, r, &creds) {
		return
	}

	s.store.mu.Lock()
	user := s.store.userByNameLocked(strings.TrimSpace(creds.Username))
	var hash string
	if user != nil {
		hash = user.PasswordHash
	}
	s.store.mu.Unlock()

	if user == nil || bcrypt.CompareHashAndPassword([]byte(hash), []byte(creds.Password)) != nil {
		writeDetail(w, http.StatusUnauthorized, "Account not found or credentials invalid.")
		return
	}

	s.respondWithTokens(w, http.StatusOK, user)
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var reg model.Registration
	if !decodeBody(w, r, &reg) {
		return
	}

	fields := map[string][]string{}
	reg.Username = strings.TrimSpace(reg.Username)
	if reg.Username == "" {
		fields["username"] = append(fields["username"], "This field may not be blank.")
	}
	if len(reg.Password) < 6 {
		fields["password"] = append(fields["password"], "Password must be at least 6 characters.")
	}

	s.store.mu.Lock()
	if s.store.userByNameLocked(reg.Username) != nil {
		fields["username"] = append(fields["username"], "A user with this login already exists.")
	}

	role := s.store.roleByNameLocked(reg.Role)
	switch {
	case role == nil:
		fields["role"] = append(fields["role"], "Unknown role.")
	case role.Name == model.AdminRoleName:
		fields["role"] = append(fields["role"], "This role is not available for registration.")
	}

	if len(fields) > 0 {
		s.store.mu.Unlock()
		writeFieldErrors(w, fields)
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(reg.Password), 12)
	if err != nil {
		s.store.mu.Unlock()
		writeDetail(w, http.StatusInternalServerError, "Internal server error.")
		return
	}

	user := s.store.addUserLocked(&userRecord{
		Username:     reg.Username,
		FirstName:    strings.TrimSpace(reg.FirstName),
		LastName:     strings.TrimSpace(reg.LastName),
		PasswordHash: string(hash),
		RoleID:       role.ID,
	})
	s.store.mu.Unlock()

	s.respondWithTokens(w, http.StatusCreated, user)
}

func (s *Server) handleCurrentUser(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromContext(r.Context())
	if !ok {
		writeDetail(w, http.StatusUnauthorized, "Authentication credentials were not provided.")
		return
	}

	s.store.mu.Lock()
	profile := s.store.profileViewLocked(actor)
	s.store.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]model.Profile{"user": profile})
}

// handleRegistrationRoles lists the roles offered on the register form.
// exclude_admin defaults to true; the route keeps the backend's historical
// spelling.
func (s *Server) handleRegistrationRoles(w http.ResponseWriter, r *http.Request) {
	excludeAdmin := r.URL.Query().Get("exclude_admin") != "false"

	s.store.mu.Lock()
	roles := make([]model.Role, 0, len(s.store.roles))
	for _, rec := range s.store.sortedRolesLocked() {
		if excludeAdmin && rec.Name == model.AdminRoleName {
			continue
		}
		roles = append(roles, s.store.roleViewLocked(rec))
	}
	s.store.mu.Unlock()

	writeJSON(w, http.StatusOK, roles)
}

func (s *Server) respondWithTokens(w http.ResponseWriter, status int, user *userRecord) {
	access, refresh, err := s.issuer.issuePair(user.ID, user.Username)
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, "Internal server error.")
		return
	}

	s.store.mu.Lock()
	profile := s.store.profileViewLocked(user)
	s.store.mu.Unlock()

	writeJSON(w, status, model.AuthPayload{
		User:        profile,
		AccessToken: access,
		Refresh:     refresh,
	})
}
