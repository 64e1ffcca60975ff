package model

import "time"

// Link is the persisted short-link record. Records are written once and
// never updated or deleted; only CreatedAt is set by the database layer.
type Link struct {
	ShortID   string    `db:"short_id" json:"short_id" gorm:"column:short_id;primaryKey;size:32"`
	LongURL   string    `db:"long_url" json:"long_url" gorm:"column:long_url;type:text;not null"`
	CreatedAt time.Time `db:"created_at" json:"created_at" gorm:"autoCreateTime"`
}

// TableName keeps the table name stable regardless of GORM pluralisation rules.
func (Link) TableName() string {
	return "links"
}
