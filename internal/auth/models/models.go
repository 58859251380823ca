package models

import "strings"

// User is the signed-in account as returned by the backend and persisted
// under the userData key.
type User struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Nickname  string `json:"apelido,omitempty"`
	AvatarURL string `json:"imagem,omitempty"`
}

// DisplayName prefers the nickname, then the full name, then the email.
func (u *User) DisplayName() string {
	if u == nil {
		return ""
	}
	if u.Nickname != "" {
		return u.Nickname
	}
	if full := strings.TrimSpace(u.FirstName + " " + u.LastName); full != "" {
		return full
	}
	return u.Email
}
