package model

// Package is a distributable the backend tracks access for. The wire name
// for the package is "softname" for compatibility with the existing API.
type Package struct {
	ID              int       `json:"id"`
	Name            string    `json:"softname"`
	UsersWithAccess []UserRef `json:"users_with_access"`
}

// Statistics are the directory-wide counters shown on the dashboard.
type Statistics struct {
	RolesCount    int `json:"rolesCount"`
	UsersCount    int `json:"usersCount"`
	PackagesCount int `json:"softCount"`
}
