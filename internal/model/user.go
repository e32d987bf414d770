package model

import "time"

type Status string

const (
	StatusOnline  Status = "online"
	StatusOffline Status = "offline"
)

type User struct {
	ID       int64      `json:"id"`
	Username string     `json:"username"`
	Avatar   string     `json:"avatar"`
	Status   Status     `json:"status"`
	LastSeen *time.Time `json:"last_seen,omitempty"`
	Bio      string     `json:"bio,omitempty"`
}

// Online сравнивает статус; любое другое значение считается offline.
func (u *User) Online() bool { return u.Status == StatusOnline }
