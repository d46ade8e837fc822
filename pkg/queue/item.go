package queue

import "time"

// WorkItem is the JSON record pushed onto the queue for each accepted
// message. The sender number and body travel in the clear inside Redis;
// the durable registry row only ever holds the hashed sender and the
// encrypted body.
type WorkItem struct {
	MessageID    string    `json:"message_id"`
	ClientID     string    `json:"client_id"`
	SenderNumber string    `json:"sender_number"`
	MessageBody  string    `json:"message_body"`
	Domain       string    `json:"domain"`
	QueuedAt     time.Time `json:"queued_at"`
	AttemptCount int       `json:"attempt_count"`
}
