package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/linksmith/linksmith/internal/app/model"
	"github.com/linksmith/linksmith/internal/app/repository"
	"github.com/linksmith/linksmith/internal/shortid"
)

type mockLinkRepository struct {
	createFn func(ctx context.Context, link *model.Link) error
	getFn    func(ctx context.Context, shortID string) (*model.Link, error)
	listFn   func(ctx context.Context, limit, offset int) ([]model.Link, error)
}

func (m *mockLinkRepository) CreateIfAbsent(ctx context.Context, link *model.Link) error {
	if m.createFn != nil {
		return m.createFn(ctx, link)
	}
	return nil
}

func (m *mockLinkRepository) GetByShortID(ctx context.Context, shortID string) (*model.Link, error) {
	if m.getFn != nil {
		return m.getFn(ctx, shortID)
	}
	return nil, repository.ErrLinkNotFound
}

func (m *mockLinkRepository) List(ctx context.Context, limit, offset int) ([]model.Link, error) {
	if m.listFn != nil {
		return m.listFn(ctx, limit, offset)
	}
	return nil, nil
}

// memoryLinkRepository honours the conditional-insert contract under
// concurrent writers, standing in for the Postgres unique key.
type memoryLinkRepository struct {
	mu    sync.Mutex
	links map[string]string
}

func newMemoryLinkRepository() *memoryLinkRepository {
	return &memoryLinkRepository{links: make(map[string]string)}
}

func (m *memoryLinkRepository) CreateIfAbsent(ctx context.Context, link *model.Link) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, taken := m.links[link.ShortID]; taken {
		return repository.ErrShortIDTaken
	}
	m.links[link.ShortID] = link.LongURL
	return nil
}

func (m *memoryLinkRepository) GetByShortID(ctx context.Context, shortID string) (*model.Link, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	longURL, ok := m.links[shortID]
	if !ok {
		return nil, repository.ErrLinkNotFound
	}
	return &model.Link{ShortID: shortID, LongURL: longURL}, nil
}

func (m *memoryLinkRepository) List(ctx context.Context, limit, offset int) ([]model.Link, error) {
	return nil, nil
}

// scriptedGenerator returns queued ids in order, then falls back to random.
type scriptedGenerator struct {
	mu       sync.Mutex
	queue    []string
	fallback shortid.Generator
}

func (g *scriptedGenerator) Generate() (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.queue) > 0 {
		id := g.queue[0]
		g.queue = g.queue[1:]
		return id, nil
	}
	if g.fallback != nil {
		return g.fallback.Generate()
	}
	return "", errors.New("scripted generator exhausted")
}

type memoryIndex struct {
	mu  sync.Mutex
	ids map[string]struct{}
}

func newMemoryIndex() *memoryIndex {
	return &memoryIndex{ids: make(map[string]struct{})}
}

func (i *memoryIndex) MayContain(shortID string) bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	_, ok := i.ids[shortID]
	return ok
}

func (i *memoryIndex) Add(shortID string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.ids[shortID] = struct{}{}
}

func (i *memoryIndex) Reload(ctx context.Context) error { return nil }

type memoryCache struct {
	mu      sync.Mutex
	entries map[string]string
	sets    int
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: make(map[string]string)}
}

func (c *memoryCache) Get(ctx context.Context, shortID string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	val, ok := c.entries[shortID]
	if !ok {
		return "", repository.ErrCacheMiss
	}
	return val, nil
}

func (c *memoryCache) Set(ctx context.Context, shortID, longURL string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[shortID] = longURL
	c.sets++
	return nil
}

func newTestService(repo repository.LinkRepository, gen shortid.Generator, opts ...func(*Options)) LinkService {
	o := Options{
		Repo:        repo,
		Generator:   gen,
		IDLength:    6,
		MaxAttempts: 5,
	}
	for _, fn := range opts {
		fn(&o)
	}
	return NewLinkService(o)
}

func mustGenerator(t *testing.T, length int) shortid.Generator {
	t.Helper()
	gen, err := shortid.New(length)
	if err != nil {
		t.Fatalf("shortid.New returned error: %v", err)
	}
	return gen
}

func TestShorten_RoundTrip(t *testing.T) {
	repo := newMemoryLinkRepository()
	svc := newTestService(repo, mustGenerator(t, 6))

	const longURL = "https://example.com/some/path?q=1"
	link, err := svc.Shorten(context.Background(), longURL)
	if err != nil {
		t.Fatalf("Shorten returned error: %v", err)
	}
	if !shortid.Valid(link.ShortID, 6) {
		t.Fatalf("short id %q has wrong shape", link.ShortID)
	}

	got, err := svc.Resolve(context.Background(), link.ShortID)
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if got != longURL {
		t.Fatalf("round trip mismatch: got %q, want %q", got, longURL)
	}
}

func TestShorten_RejectsInvalidURL(t *testing.T) {
	created := 0
	repo := &mockLinkRepository{
		createFn: func(ctx context.Context, link *model.Link) error {
			created++
			return nil
		},
	}
	svc := newTestService(repo, mustGenerator(t, 6))

	for _, input := range []string{
		"",
		"not a url",
		"example.com/no-scheme",
		"ftp://example.com/wrong-scheme",
		"https://",
	} {
		if _, err := svc.Shorten(context.Background(), input); !errors.Is(err, ErrInvalidURL) {
			t.Errorf("Shorten(%q) = %v, want ErrInvalidURL", input, err)
		}
	}
	if created != 0 {
		t.Fatalf("expected no records persisted for invalid input, got %d", created)
	}
}

func TestShorten_RetriesOnCollision(t *testing.T) {
	repo := newMemoryLinkRepository()
	repo.links["taken1"] = "https://already.example.com"

	gen := &scriptedGenerator{queue: []string{"taken1", "taken1", "fresh1"}}
	svc := newTestService(repo, gen)

	link, err := svc.Shorten(context.Background(), "https://example.com/new")
	if err != nil {
		t.Fatalf("Shorten returned error: %v", err)
	}
	if link.ShortID != "fresh1" {
		t.Fatalf("expected retry to land on fresh1, got %q", link.ShortID)
	}
	if repo.links["taken1"] != "https://already.example.com" {
		t.Fatal("existing record was overwritten by a colliding shorten")
	}
}

func TestShorten_CollisionFilterSkipsKnownIDs(t *testing.T) {
	attempts := 0
	repo := &mockLinkRepository{
		createFn: func(ctx context.Context, link *model.Link) error {
			attempts++
			if link.ShortID != "fresh1" {
				t.Fatalf("filtered id %q reached the repository", link.ShortID)
			}
			return nil
		},
	}

	index := newMemoryIndex()
	index.Add("taken1")
	gen := &scriptedGenerator{queue: []string{"taken1", "fresh1"}}
	svc := newTestService(repo, gen, func(o *Options) { o.Index = index })

	link, err := svc.Shorten(context.Background(), "https://example.com")
	if err != nil {
		t.Fatalf("Shorten returned error: %v", err)
	}
	if link.ShortID != "fresh1" {
		t.Fatalf("expected fresh1, got %q", link.ShortID)
	}
	if attempts != 1 {
		t.Fatalf("expected exactly one insert attempt, got %d", attempts)
	}
	if !index.MayContain("fresh1") {
		t.Fatal("expected new id to be added to the index")
	}
}

func TestShorten_GenerationExhausted(t *testing.T) {
	attempts := 0
	repo := &mockLinkRepository{
		createFn: func(ctx context.Context, link *model.Link) error {
			attempts++
			return repository.ErrShortIDTaken
		},
	}
	gen := &scriptedGenerator{queue: []string{"dup111", "dup111", "dup111", "dup111", "dup111"}}
	svc := newTestService(repo, gen)

	_, err := svc.Shorten(context.Background(), "https://example.com")
	if !errors.Is(err, ErrGenerationExhausted) {
		t.Fatalf("expected ErrGenerationExhausted, got %v", err)
	}
	if attempts != 5 {
		t.Fatalf("expected 5 insert attempts, got %d", attempts)
	}
}

func TestShorten_StorageErrorStopsRetrying(t *testing.T) {
	storageErr := errors.New("connection refused")
	attempts := 0
	repo := &mockLinkRepository{
		createFn: func(ctx context.Context, link *model.Link) error {
			attempts++
			return storageErr
		},
	}
	svc := newTestService(repo, mustGenerator(t, 6))

	_, err := svc.Shorten(context.Background(), "https://example.com")
	if !errors.Is(err, storageErr) {
		t.Fatalf("expected wrapped storage error, got %v", err)
	}
	if attempts != 1 {
		t.Fatalf("storage failures must not be retried, got %d attempts", attempts)
	}
}

func TestShorten_ConcurrentRequestsGetDistinctIDs(t *testing.T) {
	repo := newMemoryLinkRepository()
	svc := newTestService(repo, mustGenerator(t, 6))

	const workers = 100
	links := make([]*model.Link, workers)
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func(n int) {
			defer wg.Done()
			link, err := svc.Shorten(context.Background(), fmt.Sprintf("https://example.com/page/%d", n))
			if err != nil {
				t.Errorf("Shorten %d returned error: %v", n, err)
				return
			}
			links[n] = link
		}(i)
	}
	wg.Wait()

	seen := make(map[string]struct{}, workers)
	for n, link := range links {
		if link == nil {
			t.Fatalf("shorten %d produced no link", n)
		}
		if _, dup := seen[link.ShortID]; dup {
			t.Fatalf("duplicate short id %q across concurrent shortens", link.ShortID)
		}
		seen[link.ShortID] = struct{}{}

		got, err := svc.Resolve(context.Background(), link.ShortID)
		if err != nil {
			t.Fatalf("Resolve(%q) returned error: %v", link.ShortID, err)
		}
		want := fmt.Sprintf("https://example.com/page/%d", n)
		if got != want {
			t.Fatalf("Resolve(%q) = %q, want %q", link.ShortID, got, want)
		}
	}
}

func TestResolve_ImmutableAcrossLaterShortens(t *testing.T) {
	repo := newMemoryLinkRepository()
	svc := newTestService(repo, mustGenerator(t, 6))

	const longURL = "https://example.com/first"
	link, err := svc.Shorten(context.Background(), longURL)
	if err != nil {
		t.Fatalf("Shorten returned error: %v", err)
	}

	for i := 0; i < 20; i++ {
		if _, err := svc.Shorten(context.Background(), fmt.Sprintf("https://example.com/other/%d", i)); err != nil {
			t.Fatalf("Shorten returned error: %v", err)
		}
		got, err := svc.Resolve(context.Background(), link.ShortID)
		if err != nil {
			t.Fatalf("Resolve returned error: %v", err)
		}
		if got != longURL {
			t.Fatalf("resolved URL changed to %q after later shortens", got)
		}
	}
}

func TestResolve_UnknownID(t *testing.T) {
	svc := newTestService(&mockLinkRepository{}, mustGenerator(t, 6))

	_, err := svc.Resolve(context.Background(), "zzzzzz")
	if !errors.Is(err, repository.ErrLinkNotFound) {
		t.Fatalf("expected ErrLinkNotFound, got %v", err)
	}
}

func TestResolve_MalformedIDNeverHitsStore(t *testing.T) {
	queried := false
	repo := &mockLinkRepository{
		getFn: func(ctx context.Context, shortID string) (*model.Link, error) {
			queried = true
			return nil, repository.ErrLinkNotFound
		},
	}
	svc := newTestService(repo, mustGenerator(t, 6))

	for _, id := range []string{"", "abc", "doesnotexist123", "ab cd!", "abc12/"} {
		if _, err := svc.Resolve(context.Background(), id); !errors.Is(err, ErrInvalidShortID) {
			t.Errorf("Resolve(%q) = %v, want ErrInvalidShortID", id, err)
		}
	}
	if queried {
		t.Fatal("malformed ids must be rejected before querying the store")
	}
}

func TestResolve_CacheHitSkipsRepository(t *testing.T) {
	repo := &mockLinkRepository{
		getFn: func(ctx context.Context, shortID string) (*model.Link, error) {
			t.Fatal("cache hit must not touch the repository")
			return nil, nil
		},
	}
	cache := newMemoryCache()
	cache.entries["cached1"] = "https://example.com/cached"

	svc := newTestService(repo, mustGenerator(t, 7), func(o *Options) {
		o.Cache = cache
		o.IDLength = 7
	})

	got, err := svc.Resolve(context.Background(), "cached1")
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if got != "https://example.com/cached" {
		t.Fatalf("unexpected cached URL %q", got)
	}
}

func TestResolve_CacheMissBackfills(t *testing.T) {
	repo := &mockLinkRepository{
		getFn: func(ctx context.Context, shortID string) (*model.Link, error) {
			return &model.Link{ShortID: shortID, LongURL: "https://example.com/db"}, nil
		},
	}
	cache := newMemoryCache()
	svc := newTestService(repo, mustGenerator(t, 6), func(o *Options) { o.Cache = cache })

	got, err := svc.Resolve(context.Background(), "abc123")
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if got != "https://example.com/db" {
		t.Fatalf("unexpected URL %q", got)
	}
	if cache.entries["abc123"] != "https://example.com/db" {
		t.Fatal("expected cache to be backfilled after a miss")
	}
}

func TestListLinks(t *testing.T) {
	repo := &mockLinkRepository{
		listFn: func(ctx context.Context, limit, offset int) ([]model.Link, error) {
			return []model.Link{{ShortID: "aaa111"}, {ShortID: "bbb222"}}, nil
		},
	}
	svc := newTestService(repo, mustGenerator(t, 6))

	list, err := svc.ListLinks(context.Background(), 10, 0)
	if err != nil {
		t.Fatalf("ListLinks error: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 links, got %d", len(list))
	}
}
