package repository

import (
	"context"
	"errors"

	"github.com/linksmith/linksmith/internal/app/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	// ErrLinkNotFound signals that the requested short id does not exist.
	ErrLinkNotFound = errors.New("link not found")
	// ErrShortIDTaken signals that the conditional insert lost to an
	// existing record with the same short id.
	ErrShortIDTaken = errors.New("short id already taken")
)

// LinkRepository defines the data access contract for short links.
// There is deliberately no update or delete: a Link is immutable once
// created.
type LinkRepository interface {
	// CreateIfAbsent atomically inserts the link only when its short id is
	// free. It returns ErrShortIDTaken when the id is already present, and
	// never overwrites an existing record.
	CreateIfAbsent(ctx context.Context, link *model.Link) error
	GetByShortID(ctx context.Context, shortID string) (*model.Link, error)
	List(ctx context.Context, limit, offset int) ([]model.Link, error)
}

type linkRepository struct {
	db *gorm.DB
}

// NewLinkRepository returns a GORM-backed LinkRepository.
func NewLinkRepository(db *gorm.DB) LinkRepository {
	return &linkRepository{db: db}
}

func (r *linkRepository) CreateIfAbsent(ctx context.Context, link *model.Link) error {
	// INSERT ... ON CONFLICT DO NOTHING keeps the uniqueness check and the
	// write in a single statement, so concurrent writers can never
	// overwrite each other's mapping.
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "short_id"}},
			DoNothing: true,
		}).
		Create(link)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrShortIDTaken
	}
	return nil
}

func (r *linkRepository) GetByShortID(ctx context.Context, shortID string) (*model.Link, error) {
	var link model.Link
	if err := r.db.WithContext(ctx).Where("short_id = ?", shortID).First(&link).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrLinkNotFound
		}
		return nil, err
	}
	return &link, nil
}

func (r *linkRepository) List(ctx context.Context, limit, offset int) ([]model.Link, error) {
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	var result []model.Link
	if err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&result).Error; err != nil {
		return nil, err
	}

	return result, nil
}
