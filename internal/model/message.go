package model

import "time"

type MessageType string

const (
	TypeText        MessageType = "text"
	TypeButtonReply MessageType = "button_reply"
	TypeOther       MessageType = "other"
)

// InboundMessage is a single message extracted from a webhook delivery.
type InboundMessage struct {
	ID          string
	From        string
	Type        MessageType
	Text        string
	ButtonID    string
	ButtonTitle string
	RawType     string
	ReceivedAt  time.Time
}

// Button is a quick-reply button offered to a recipient.
type Button struct {
	ID    string
	Title string
}
