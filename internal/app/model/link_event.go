package model

import "time"

// LinkCreatedEvent is broadcast after a link is durably inserted so that
// every instance can warm its cache and collision filter.
type LinkCreatedEvent struct {
	ID        string    `json:"id"`
	ShortID   string    `json:"short_id"`
	LongURL   string    `json:"long_url"`
	CreatedAt time.Time `json:"created_at"`
}

const (
	LinkStreamName     = "LINKS"
	LinkStreamSubject  = "links.created"
	LinkConsumerName   = "link-cache-warmer"
	LinkStreamMaxBytes = 1024 * 1024 * 100 // 100MB
)
