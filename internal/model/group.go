package model

import "time"

type Group struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Owner     string    `json:"owner"`
	CreatedAt time.Time `json:"createdAt"`
}

// Member is a user as seen from inside a group.
type Member struct {
	UID      string `json:"uid"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Color    string `json:"color"`
}

// DisplayName prefers the username and falls back to the email.
func (m Member) DisplayName() string {
	if m.Username != "" {
		return m.Username
	}
	return m.Email
}

type User struct {
	UID          string    `json:"uid"`
	Email        string    `json:"email"`
	Username     string    `json:"username"`
	Color        string    `json:"color"`
	GroupID      string    `json:"groupId,omitempty"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
}

func (u User) Member() Member {
	return Member{UID: u.UID, Username: u.Username, Email: u.Email, Color: u.Color}
}

type Session struct {
	Token     string    `json:"token"`
	UserID    string    `json:"userId"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}
