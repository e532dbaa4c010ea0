package identity

import (
	"time"

	"github.com/fieldsales/vendorsync/internal/infrastructure/gateway"
)

// LoginInput contains the input for vendor login
type LoginInput struct {
	Username string `validate:"required"`
	Password string `validate:"required"`
}

// LoginResult contains the result of a successful login
type LoginResult struct {
	User User
	// Offline is set when the login was checked against remembered
	// credentials because the server could not be reached
	Offline bool
}

// User is the signed-in vendor as cached on the device
type User struct {
	ID       string    `json:"id"`
	Username string    `json:"username"`
	Name     string    `json:"name"`
	Email    string    `json:"email,omitempty"`
	Role     string    `json:"role,omitempty"`
	LoggedAt time.Time `json:"loggedAt"`
}

// DisplayName returns the name, falling back to the username
func (u User) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	return u.Username
}

func userFromWire(w *gateway.User, username string, at time.Time) User {
	u := User{
		ID:       w.ID.String(),
		Username: w.Username,
		Name:     w.Name,
		Email:    w.Email,
		Role:     w.Role,
		LoggedAt: at.UTC(),
	}
	if u.Username == "" {
		u.Username = username
	}
	return u
}
