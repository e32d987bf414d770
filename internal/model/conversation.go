package model

import "time"

// Conversation — запись списка диалогов: собеседник + превью последнего
// сообщения. На одного собеседника всегда не больше одной записи.
type Conversation struct {
	PeerID          int64      `json:"user_id"`
	Username        string     `json:"username"`
	Avatar          string     `json:"avatar"`
	LastMessage     string     `json:"last_message,omitempty"`
	LastMessageTime *time.Time `json:"last_message_time,omitempty"`
	UnreadCount     int        `json:"unread_count"`
}
