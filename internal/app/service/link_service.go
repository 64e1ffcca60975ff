package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/linksmith/linksmith/internal/app/model"
	"github.com/linksmith/linksmith/internal/app/repository"
	infraprom "github.com/linksmith/linksmith/internal/infra/prometheus"
	"github.com/linksmith/linksmith/internal/shortid"
	"go.uber.org/zap"
)

var (
	// ErrInvalidURL signals that the submitted URL is empty or not an
	// absolute http(s) URL.
	ErrInvalidURL = errors.New("invalid url")
	// ErrInvalidShortID signals that the id does not match the generator's
	// alphabet and length, so it cannot name a stored link.
	ErrInvalidShortID = errors.New("invalid short id")
	// ErrGenerationExhausted signals that every generated candidate collided
	// within the retry budget. Transient: the caller may simply retry.
	ErrGenerationExhausted = errors.New("short id generation exhausted")
)

// EventPublisher broadcasts successful link creations to other instances.
type EventPublisher interface {
	PublishLinkCreated(link *model.Link) error
}

// LinkService implements the shorten and resolve operations.
type LinkService interface {
	// Shorten registers a new short id for longURL and returns the stored
	// record. Exactly one record is persisted on success, none on failure.
	Shorten(ctx context.Context, longURL string) (*model.Link, error)
	// Resolve returns the long URL stored under shortID.
	Resolve(ctx context.Context, shortID string) (string, error)
	// ListLinks returns recently created links, newest first.
	ListLinks(ctx context.Context, limit, offset int) ([]model.Link, error)
}

// Options configures a LinkService. Cache, Index and Events are optional;
// a nil value disables that concern without changing semantics.
type Options struct {
	Logger      *zap.Logger
	Repo        repository.LinkRepository
	Generator   shortid.Generator
	Cache       repository.LinkCache
	Index       repository.ShortIDIndex
	Events      EventPublisher
	IDLength    int
	MaxAttempts int
}

type linkService struct {
	logger      *zap.Logger
	repo        repository.LinkRepository
	gen         shortid.Generator
	cache       repository.LinkCache
	index       repository.ShortIDIndex
	events      EventPublisher
	idLength    int
	maxAttempts int
}

// NewLinkService returns a LinkService wired from opts.
func NewLinkService(opts Options) LinkService {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &linkService{
		logger:      logger,
		repo:        opts.Repo,
		gen:         opts.Generator,
		cache:       opts.Cache,
		index:       opts.Index,
		events:      opts.Events,
		idLength:    opts.IDLength,
		maxAttempts: opts.MaxAttempts,
	}
}

func (s *linkService) Shorten(ctx context.Context, longURL string) (*model.Link, error) {
	if err := validateLongURL(longURL); err != nil {
		return nil, err
	}

	for attempt := 0; attempt < s.maxAttempts; attempt++ {
		candidate, err := s.gen.Generate()
		if err != nil {
			return nil, fmt.Errorf("generate short id: %w", err)
		}

		// The filter knows (almost) every existing id, so a positive
		// answer means the insert would very likely lose; skip the
		// round-trip and draw again. The insert below stays authoritative.
		if s.index != nil && s.index.MayContain(candidate) {
			infraprom.GeneratorCollisions.Inc()
			s.logger.Debug("candidate id rejected by collision filter",
				zap.String("short_id", candidate))
			continue
		}

		link := &model.Link{ShortID: candidate, LongURL: longURL}
		err = s.repo.CreateIfAbsent(ctx, link)
		if err == nil {
			s.recordCreated(ctx, link)
			return link, nil
		}
		if errors.Is(err, repository.ErrShortIDTaken) {
			infraprom.GeneratorCollisions.Inc()
			if s.index != nil {
				s.index.Add(candidate)
			}
			s.logger.Warn("short id collision, retrying",
				zap.String("short_id", candidate),
				zap.Int("attempt", attempt+1))
			continue
		}
		return nil, fmt.Errorf("store link: %w", err)
	}

	return nil, ErrGenerationExhausted
}

func (s *linkService) recordCreated(ctx context.Context, link *model.Link) {
	infraprom.LinksCreated.Inc()

	if s.index != nil {
		s.index.Add(link.ShortID)
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, link.ShortID, link.LongURL); err != nil {
			s.logger.Warn("failed to warm link cache",
				zap.Error(err), zap.String("short_id", link.ShortID))
		}
	}
	if s.events != nil {
		if err := s.events.PublishLinkCreated(link); err != nil {
			s.logger.Warn("failed to publish link created event",
				zap.Error(err), zap.String("short_id", link.ShortID))
		}
	}
}

func (s *linkService) Resolve(ctx context.Context, shortID string) (string, error) {
	if !shortid.Valid(shortID, s.idLength) {
		return "", ErrInvalidShortID
	}

	if s.cache != nil {
		longURL, err := s.cache.Get(ctx, shortID)
		if err == nil {
			infraprom.CacheHits.Inc()
			return longURL, nil
		}
		if !errors.Is(err, repository.ErrCacheMiss) {
			s.logger.Warn("link cache lookup failed",
				zap.Error(err), zap.String("short_id", shortID))
		}
		infraprom.CacheMisses.Inc()
	}

	link, err := s.repo.GetByShortID(ctx, shortID)
	if err != nil {
		if errors.Is(err, repository.ErrLinkNotFound) {
			return "", err
		}
		return "", fmt.Errorf("load link: %w", err)
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, link.ShortID, link.LongURL); err != nil {
			s.logger.Warn("failed to backfill link cache",
				zap.Error(err), zap.String("short_id", shortID))
		}
	}

	return link.LongURL, nil
}

func (s *linkService) ListLinks(ctx context.Context, limit, offset int) ([]model.Link, error) {
	links, err := s.repo.List(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list links: %w", err)
	}
	return links, nil
}

func validateLongURL(longURL string) error {
	if longURL == "" {
		return ErrInvalidURL
	}
	parsed, err := url.Parse(longURL)
	if err != nil {
		return ErrInvalidURL
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return ErrInvalidURL
	}
	if parsed.Host == "" {
		return ErrInvalidURL
	}
	return nil
}
