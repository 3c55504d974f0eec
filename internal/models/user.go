// internal/models/user.go
package models

import "github.com/google/uuid"

// User is a registered (or ephemeral guest) account. Username doubles as the
// stable player identity inside game sessions.
type User struct {
	ID          uuid.UUID `json:"id"`
	Username    string    `json:"username"`
	Password    string    `json:"-"`
	Wins        int       `json:"wins"`
	IsEphemeral bool      `json:"isEphemeral"`
}
