package ingress

import "time"

// Message is a record read from an accepted connection.
type Message struct {
	Acceptor    string
	Remote      string
	Payload     []byte
	ReceiveTime time.Time
}

func newMessage(acceptor, remote string, payload []byte) *Message {
	return &Message{
		Acceptor:    acceptor,
		Remote:      remote,
		Payload:     payload,
		ReceiveTime: time.Now(),
	}
}
