package model

import "time"

type DeliveryStatus string

const (
	// DeliveryPending — отправлено оптимистично, эхо от сервера ещё не пришло.
	DeliveryPending DeliveryStatus = "pending"
	DeliverySent    DeliveryStatus = "sent"
	// DeliveryFailed — подтверждение не пришло за отведённое время.
	// Сообщение остаётся в ленте, повторная отправка — действие пользователя.
	DeliveryFailed DeliveryStatus = "failed"
)

// Message — одно сообщение ленты. После добавления в сессию не редактируется
// и не удаляется; меняется только DeliveryStatus собственных сообщений.
type Message struct {
	ID         int64     `json:"id,omitempty"`
	ClientID   string    `json:"client_id,omitempty"` // локальный UUID для сверки с эхом
	SenderID   int64     `json:"sender_id"`
	ReceiverID int64     `json:"receiver_id,omitempty"`
	Text       string    `json:"message"`
	Timestamp  time.Time `json:"timestamp"`
	Own        bool      `json:"is_own"`
	Read       bool      `json:"is_read,omitempty"`

	SenderName   string `json:"sender_name,omitempty"`
	SenderAvatar string `json:"sender_avatar,omitempty"`

	Status DeliveryStatus `json:"status,omitempty"`
}
