package models

// Role of a user inside a group.
const (
	RoleMember = "MEMBER"
	RoleAdmin  = "ADMIN"
)

// Group is a travel group. Proposals belong to exactly one group.
type Group struct {
	ID          int64  `json:"groupId"`
	Name        string `json:"groupName"`
	Description string `json:"description"`
}

// GroupRef identifies a group inside a request or a nested response object.
type GroupRef struct {
	ID int64 `json:"groupId"`
}

// Membership is a user-to-group edge carrying a role. The backend returns
// these both per user (to resolve a user's groups) and per group (to list
// members).
type Membership struct {
	User  User   `json:"user"`
	Group Group  `json:"group"`
	Role  string `json:"role"`
}

// CreateGroupRequest is the payload for POST /api/groups.
type CreateGroupRequest struct {
	Name        string `json:"groupName"`
	Description string `json:"description"`
}

// AddMemberRequest asks the server to add a user to a group
// (POST /api/user-groups/request).
type AddMemberRequest struct {
	Username string `json:"username"`
	GroupID  int64  `json:"groupId"`
	Role     string `json:"role"`
}
