package event

import "time"

type Type string

const (
	TypeCommandOutput  Type = "command.output"
	TypeChannelState   Type = "channel.state"
	TypeSessionExpired Type = "session.expired"
)

type Event struct {
	ID        string      `json:"id"`
	Type      Type        `json:"type"`
	Payload   interface{} `json:"payload"`
	Timestamp time.Time   `json:"timestamp"`
}

type Bus interface {
	Publish(e Event)
	Subscribe() (<-chan Event, func()) // Returns channel and unsubscribe function
}
