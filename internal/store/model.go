package store

import "time"

// URLRecord is the canonical URL row (spec §3 "URL record"). ID is
// populated by the caller (a snowflake-generated surrogate key, spec_full
// §3) before InsertURL is called — content is immutable thereafter.
type URLRecord struct {
	ID      int64     `gorm:"column:id;primaryKey"`
	Code    string    `gorm:"column:code;uniqueIndex;size:16;not null"`
	URL     string    `gorm:"column:url;size:2048;not null"`
	URLHash string    `gorm:"column:url_hash;uniqueIndex;size:64;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

// TableName pins the gorm table name.
func (URLRecord) TableName() string { return "urls" }

// AliasRecord is a user-chosen alternative short code (spec §3 "Alias
// record"). Alias is the primary key; TargetID cascades on delete.
type AliasRecord struct {
	Alias     string    `gorm:"column:alias;primaryKey;size:50"`
	TargetID  int64     `gorm:"column:target_id;not null;index"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

// TableName pins the gorm table name.
func (AliasRecord) TableName() string { return "aliases" }

// BloomSnapshotRecord is a named, opaque serialized bloom filter buffer
// (spec §3 "Bloom snapshot record").
type BloomSnapshotRecord struct {
	Name      string    `gorm:"column:name;primaryKey;size:64"`
	Data      []byte    `gorm:"column:data"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName pins the gorm table name.
func (BloomSnapshotRecord) TableName() string { return "bloom_snapshots" }

// ResolvedCode is a row from the all_short_codes view (spec §3 "Derived
// view").
type ResolvedCode struct {
	Code     string
	TargetID int64
	URL      string
	Source   string // "primary" or "alias"
}
