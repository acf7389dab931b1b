package model

// User is a row in the user directory. The list endpoints use snake_case
// field names and embed the full role.
type User struct {
	ID        int    `json:"id"`
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Role      Role   `json:"role"`
}

// UserRef is the compact user shape used in package access lists.
type UserRef struct {
	ID       int    `json:"id"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

// Profile is the authenticated user as returned by login, register and the
// current-user endpoint. Unlike the directory rows it is camelCased.
type Profile struct {
	ID          int         `json:"id"`
	Username    string      `json:"username"`
	FirstName   string      `json:"firstName"`
	LastName    string      `json:"lastName"`
	CurrentRole CurrentRole `json:"currentRole"`
}

// NewUser is the create payload for the user directory.
type NewUser struct {
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Role      string `json:"role"`
}

// AuthPayload is the response body of login and register.
type AuthPayload struct {
	User        Profile `json:"user"`
	AccessToken string  `json:"accessToken"`
	Refresh     string  `json:"refresh,omitempty"`
}

// Credentials is the login request body.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Registration is the register request body.
type Registration struct {
	Username  string `json:"username"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Role      string `json:"role"`
}
