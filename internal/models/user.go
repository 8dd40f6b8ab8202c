package models

// User represents a registered account as served by the backend.
type User struct {
	// ID is the server-assigned numeric identifier.
	ID int64 `json:"userId"`

	// Username is the unique login name.
	Username string `json:"username"`

	// FullName is the display name.
	FullName string `json:"fullName"`

	Email       string `json:"email"`
	PhoneNumber string `json:"phoneNumber"`

	// WalletAmount is the balance shown on the dashboard. The server owns
	// all wallet accounting; the client only displays it.
	WalletAmount float64 `json:"walletAmount"`
}

// UserRef identifies a user inside a request or a nested response object.
type UserRef struct {
	ID int64 `json:"userId"`
}

// SignupRequest is the payload for account creation (POST /users).
type SignupRequest struct {
	FullName    string `json:"fullName"`
	Username    string `json:"username"`
	Email       string `json:"email"`
	PhoneNumber string `json:"phoneNumber"`
	Password    string `json:"password"`
}

// LoginRequest is the payload for credential exchange (POST /users/login).
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse is the credential-exchange result. The token fields are
// optional: some deployments return the pair here, others rely solely on
// /auth/refresh. See the session package for the policy.
type LoginResponse struct {
	User
	AccessToken  string `json:"accessToken,omitempty"`
	RefreshToken string `json:"refreshToken,omitempty"`
}
