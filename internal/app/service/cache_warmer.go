package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/linksmith/linksmith/internal/app/model"
	"github.com/linksmith/linksmith/internal/app/repository"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// CacheWarmer consumes link-created events from NATS JetStream and feeds
// the Redis cache and the collision filter, so links created on peer
// instances resolve from cache here and their ids stop being generated.
type CacheWarmer struct {
	js     nats.JetStreamContext
	logger *zap.Logger
	cache  repository.LinkCache
	index  repository.ShortIDIndex
}

// NewCacheWarmer creates a new link event consumer.
func NewCacheWarmer(js nats.JetStreamContext, logger *zap.Logger, cache repository.LinkCache, index repository.ShortIDIndex) *CacheWarmer {
	return &CacheWarmer{js: js, logger: logger, cache: cache, index: index}
}

// Start ensures the stream and durable consumer exist and begins consuming.
func (w *CacheWarmer) Start() error {
	_, err := w.js.StreamInfo(model.LinkStreamName)
	if err != nil {
		_, err = w.js.AddStream(&nats.StreamConfig{
			Name:     model.LinkStreamName,
			Subjects: []string{model.LinkStreamSubject},
			MaxBytes: model.LinkStreamMaxBytes,
		})
		if err != nil {
			return fmt.Errorf("failed to create stream: %w", err)
		}
	}

	_, err = w.js.ConsumerInfo(model.LinkStreamName, model.LinkConsumerName)
	if err != nil {
		_, err = w.js.AddConsumer(model.LinkStreamName, &nats.ConsumerConfig{
			Durable:   model.LinkConsumerName,
			AckPolicy: nats.AckExplicitPolicy,
		})
		if err != nil {
			return fmt.Errorf("failed to create consumer: %w", err)
		}
	}

	sub, err := w.js.PullSubscribe(model.LinkStreamSubject, model.LinkConsumerName)
	if err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}

	go w.consume(sub)
	return nil
}

func (w *CacheWarmer) consume(sub *nats.Subscription) {
	ctx := context.Background()
	for {
		msgs, err := sub.Fetch(10, nats.MaxWait(5*time.Second))
		if err != nil && err != nats.ErrTimeout {
			w.logger.Error("failed to fetch messages", zap.Error(err))
			continue
		}

		for _, msg := range msgs {
			var event model.LinkCreatedEvent
			if err := json.Unmarshal(msg.Data, &event); err != nil {
				w.logger.Error("failed to unmarshal link event", zap.Error(err))
				msg.Nak()
				continue
			}

			if w.index != nil {
				w.index.Add(event.ShortID)
			}
			if w.cache != nil {
				if err := w.cache.Set(ctx, event.ShortID, event.LongURL); err != nil {
					w.logger.Error("failed to warm cache from event",
						zap.String("short_id", event.ShortID),
						zap.Error(err))
					msg.Nak()
					continue
				}
			}

			w.logger.Debug("link event applied",
				zap.String("id", event.ID),
				zap.String("short_id", event.ShortID),
			)

			msg.Ack()
		}
	}
}
