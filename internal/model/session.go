package model

// Session identifies the signed-in user. It exists only between login and
// logout; every piece of user-scoped state is keyed off UserID.
type Session struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
}
