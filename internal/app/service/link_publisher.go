package service

import (
	"encoding/json"

	"github.com/google/uuid"
	"github.com/linksmith/linksmith/internal/app/model"
	"github.com/nats-io/nats.go"
)

// LinkPublisher publishes link-created events to NATS JetStream.
type LinkPublisher struct {
	js nats.JetStreamContext
}

// NewLinkPublisher creates a new link event publisher.
func NewLinkPublisher(js nats.JetStreamContext) *LinkPublisher {
	return &LinkPublisher{js: js}
}

// PublishLinkCreated publishes a creation event to the stream.
func (p *LinkPublisher) PublishLinkCreated(link *model.Link) error {
	event := model.LinkCreatedEvent{
		ID:        uuid.New().String(),
		ShortID:   link.ShortID,
		LongURL:   link.LongURL,
		CreatedAt: link.CreatedAt,
	}

	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	_, err = p.js.Publish(model.LinkStreamSubject, data)
	return err
}
