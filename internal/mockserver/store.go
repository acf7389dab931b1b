package mockserver

import (
	"sort"
	"sync"

	"golang.org/x/crypto/bcrypt"

	"go-access-console/internal/model"
)

// permissionCatalog is the assignable permission set, in display order.
var permissionCatalog = []model.PermissionInfo{
	{Key: model.PermAddRoles, Description: "Can add roles"},
	{Key: model.PermEditRoles, Description: "Can edit roles"},
	{Key: model.PermDeleteRoles, Description: "Can delete roles"},
	{Key: model.PermAddUsers, Description: "Can add users"},
	{Key: model.PermEditUsers, Description: "Can edit users"},
	{Key: model.PermDeleteUsers, Description: "Can delete users"},
}

type roleRecord struct {
	ID      int
	Name    string
	Allowed map[string]bool
}

type userRecord struct {
	ID           int
	Username     string
	FirstName    string
	LastName     string
	Email        string
	PasswordHash string
	RoleID       int
}

type packageRecord struct {
	ID      int
	Name    string
	Members map[int]struct{}
}

// store is the whole backend state. One mutex guards everything; the double
// serves a single developer or a test run, never production traffic.
type store struct {
	mu sync.Mutex

	nextRoleID    int
	nextUserID    int
	nextPackageID int

	roles    map[int]*roleRecord
	users    map[int]*userRecord
	packages map[int]*packageRecord
}

func newStore() *store {
	return &store{
		nextRoleID:    1,
		nextUserID:    1,
		nextPackageID: 1,
		roles:         map[int]*roleRecord{},
		users:         map[int]*userRecord{},
		packages:      map[int]*packageRecord{},
	}
}

// seed installs the default roles and the bootstrap admin account
// (admin/admin123, development only).
func (st *store) seed() error {
	st.mu.Lock()
	defer st.mu.Unlock()

	admin := st.addRoleLocked(model.AdminRoleName, func(string) bool { return true })
	st.addRoleLocked("user", func(string) bool { return false })

	hash, err := bcrypt.GenerateFromPassword([]byte("admin123"), 12)
	if err != nil {
		return err
	}

	st.addUserLocked(&userRecord{
		Username:     "admin",
		FirstName:    "Default",
		LastName:     "Admin",
		Email:        "admin@localhost",
		PasswordHash: string(hash),
		RoleID:       admin.ID,
	})

	return nil
}

func (st *store) addRoleLocked(name string, allowed func(key string) bool) *roleRecord {
	rec := &roleRecord{ID: st.nextRoleID, Name: name, Allowed: map[string]bool{}}
	st.nextRoleID++
	for _, perm := range permissionCatalog {
		rec.Allowed[perm.Key] = allowed(perm.Key)
	}
	st.roles[rec.ID] = rec

	return rec
}

func (st *store) addUserLocked(rec *userRecord) *userRecord {
	rec.ID = st.nextUserID
	st.nextUserID++
	st.users[rec.ID] = rec

	return rec
}

func (st *store) addPackageLocked(name string) *packageRecord {
	rec := &packageRecord{ID: st.nextPackageID, Name: name, Members: map[int]struct{}{}}
	st.nextPackageID++
	st.packages[rec.ID] = rec

	return rec
}

func (st *store) roleByNameLocked(name string) *roleRecord {
	for _, rec := range st.roles {
		if rec.Name == name {
			return rec
		}
	}

	return nil
}

func (st *store) userByNameLocked(username string) *userRecord {
	for _, rec := range st.users {
		if rec.Username == username {
			return rec
		}
	}

	return nil
}

func (st *store) sortedRolesLocked() []*roleRecord {
	out := make([]*roleRecord, 0, len(st.roles))
	for _, rec := range st.roles {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })

	return out
}

func (st *store) sortedUsersLocked() []*userRecord {
	out := make([]*userRecord, 0, len(st.users))
	for _, rec := range st.users {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })

	return out
}

func (st *store) sortedPackagesLocked() []*packageRecord {
	out := make([]*packageRecord, 0, len(st.packages))
	for _, rec := range st.packages {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })

	return out
}

// roleView renders a role in the directory shape (rolename + full
// permission list in catalog order).
func (st *store) roleViewLocked(rec *roleRecord) model.Role {
	perms := make([]model.Permission, 0, len(permissionCatalog))
	for _, info := range permissionCatalog {
		perms = append(perms, model.Permission{
			Key:         info.Key,
			Description: info.Description,
			Allowed:     rec.Allowed[info.Key],
		})
	}

	return model.Role{ID: rec.ID, Name: rec.Name, Permissions: perms}
}

func (st *store) userViewLocked(rec *userRecord) model.User {
	view := model.User{
		ID:        rec.ID,
		Username:  rec.Username,
		FirstName: rec.FirstName,
		LastName:  rec.LastName,
		Email:     rec.Email,
	}
	if role, ok := st.roles[rec.RoleID]; ok {
		view.Role = st.roleViewLocked(role)
	}

	return view
}

func (st *store) profileViewLocked(rec *userRecord) model.Profile {
	profile := model.Profile{
		ID:        rec.ID,
		Username:  rec.Username,
		FirstName: rec.FirstName,
		LastName:  rec.LastName,
	}
	if role, ok := st.roles[rec.RoleID]; ok {
		view := st.roleViewLocked(role)
		profile.CurrentRole = model.CurrentRole{Name: view.Name, Permissions: view.Permissions}
	}

	return profile
}

func (st *store) userRefLocked(rec *userRecord) model.UserRef {
	ref := model.UserRef{ID: rec.ID, Username: rec.Username}
	if role, ok := st.roles[rec.RoleID]; ok {
		ref.Role = role.Name
	}

	return ref
}

func (st *store) packageViewLocked(rec *packageRecord) model.Package {
	members := make([]model.UserRef, 0, len(rec.Members))
	for id := range rec.Members {
		if user, ok := st.users[id]; ok {
			members = append(members, st.userRefLocked(user))
		}
	}
	sort.Slice(members, func(i, j int) bool { return members[i].ID < members[j].ID })

	return model.Package{ID: rec.ID, Name: rec.Name, UsersWithAccess: members}
}

// allowed reports one capability of a user, failing closed on dangling
// role references.
func (st *store) allowedLocked(rec *userRecord, key string) bool {
	role, ok := st.roles[rec.RoleID]
	if !ok {
		return false
	}

	return role.Allowed[key]
}
