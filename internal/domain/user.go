package domain

// User is the authenticated principal the triage engine acts on behalf of.
// Created at registration and immutable afterwards except for the avatar.
type User struct {
	ID        UserID   `json:"id"`
	Username  string   `json:"username"`
	Role      UserRole `json:"role"`
	School    string   `json:"school"`
	ClassName string   `json:"class_name"`
	Avatar    string   `json:"avatar,omitempty"`

	// PasswordHash is only populated on the storage side, never serialized out.
	PasswordHash string `json:"-"`
}
