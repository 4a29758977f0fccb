package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	mysqldriver "github.com/go-sql-driver/mysql"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// MySQLStore is the Store adapter backed by gorm.io/gorm over MySQL,
// matching the teacher's connection-pool setup.
type MySQLStore struct {
	db *gorm.DB
}

// NewMySQLStore opens a pooled MySQL connection. Schema is NOT
// auto-migrated here — run the golang-migrate migrations under
// migrations/ before calling this (see cmd/server/main.go), since the
// richer schema needs triggers and a view AutoMigrate cannot express.
func NewMySQLStore(dsn string, maxIdleConns, maxOpenConns int) (*MySQLStore, error) {
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("store: failed to connect to mysql: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("store: failed to get underlying sql.DB: %w", err)
	}
	sqlDB.SetMaxIdleConns(maxIdleConns)
	sqlDB.SetMaxOpenConns(maxOpenConns)

	return &MySQLStore{db: db}, nil
}

// Close releases the underlying connection pool.
func (s *MySQLStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// FindURLByHash implements Store.
func (s *MySQLStore) FindURLByHash(ctx context.Context, h string) (*URLRecord, error) {
	var rec URLRecord
	err := s.db.WithContext(ctx).Where("url_hash = ?", h).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, translateError(err)
	}
	return &rec, nil
}

// InsertURL implements Store.
func (s *MySQLStore) InsertURL(ctx context.Context, rec *URLRecord) error {
	if err := s.db.WithContext(ctx).Create(rec).Error; err != nil {
		return translateError(err)
	}
	return nil
}

// InsertURLWithAlias implements Store, executing both inserts in one
// transaction per spec §4.6 "Transactional boundary".
func (s *MySQLStore) InsertURLWithAlias(ctx context.Context, rec *URLRecord, alias string) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(rec).Error; err != nil {
			return translateError(err)
		}
		aliasRec := &AliasRecord{Alias: alias, TargetID: rec.ID}
		if err := tx.Create(aliasRec).Error; err != nil {
			return translateError(err)
		}
		return nil
	})
	return err
}

// InsertAlias implements Store.
func (s *MySQLStore) InsertAlias(ctx context.Context, alias string, targetID int64) error {
	rec := &AliasRecord{Alias: alias, TargetID: targetID}
	if err := s.db.WithContext(ctx).Create(rec).Error; err != nil {
		return translateError(err)
	}
	return nil
}

// Resolve implements Store, reading the all_short_codes view.
func (s *MySQLStore) Resolve(ctx context.Context, code string) (*ResolvedCode, error) {
	var rows []ResolvedCode
	err := s.db.WithContext(ctx).
		Table("all_short_codes").
		Where("code = ?", code).
		Find(&rows).Error
	if err != nil {
		return nil, translateError(err)
	}
	switch len(rows) {
	case 0:
		return nil, nil
	case 1:
		return &rows[0], nil
	default:
		return nil, ErrInvariantViolation
	}
}

// ScanCodes implements Store, streaming every primary code and every alias.
func (s *MySQLStore) ScanCodes(ctx context.Context, callback func(code string) error) error {
	if err := scanColumn(ctx, s.db, "urls", "code", callback); err != nil {
		return err
	}
	return scanColumn(ctx, s.db, "aliases", "alias", callback)
}

// ScanPrimaryCodes implements Store, streaming only urls.code.
func (s *MySQLStore) ScanPrimaryCodes(ctx context.Context, callback func(code string) error) error {
	return scanColumn(ctx, s.db, "urls", "code", callback)
}

func scanColumn(ctx context.Context, db *gorm.DB, table, column string, callback func(string) error) error {
	rows, err := db.WithContext(ctx).Table(table).Select(column).Rows()
	if err != nil {
		return translateError(err)
	}
	defer rows.Close()

	for rows.Next() {
		var val string
		if err := rows.Scan(&val); err != nil {
			return translateError(err)
		}
		if err := callback(val); err != nil {
			return err
		}
	}
	return translateError(rows.Err())
}

// SaveSnapshot implements Store with INSERT ... ON DUPLICATE KEY UPDATE
// semantics (spec §4.3: "one row per snapshot name, overwritten").
func (s *MySQLStore) SaveSnapshot(ctx context.Context, name string, data []byte) error {
	rec := &BloomSnapshotRecord{Name: name, Data: data}
	err := s.db.WithContext(ctx).
		Exec(`INSERT INTO bloom_snapshots (name, data, updated_at) VALUES (?, ?, NOW())
		      ON DUPLICATE KEY UPDATE data = VALUES(data), updated_at = NOW()`,
			rec.Name, rec.Data).Error
	if err != nil {
		return translateError(err)
	}
	return nil
}

// LoadSnapshot implements Store.
func (s *MySQLStore) LoadSnapshot(ctx context.Context, name string) ([]byte, bool, error) {
	var rec BloomSnapshotRecord
	err := s.db.WithContext(ctx).Where("name = ?", name).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, translateError(err)
	}
	return rec.Data, true, nil
}

// translateError maps MySQL engine-specific errors (duplicate key 1062,
// trigger SIGNALs) to the sentinel kinds in errors.go. Callers never see a
// *mysqldriver.MySQLError.
func translateError(err error) error {
	if err == nil {
		return nil
	}

	var mysqlErr *mysqldriver.MySQLError
	if errors.As(err, &mysqlErr) {
		switch mysqlErr.Number {
		case 1062: // ER_DUP_ENTRY
			msg := mysqlErr.Message
			if i := strings.LastIndex(msg, "for key"); i >= 0 {
				// Match on the key name only, not on the duplicated value.
				msg = msg[i:]
			}
			switch {
			case strings.Contains(msg, "url_hash"):
				return ErrURLHashExists
			case strings.Contains(msg, "code"):
				return ErrCodeExists
			case strings.Contains(msg, "PRIMARY") || strings.Contains(msg, "alias"):
				return ErrAliasExists
			default:
				return ErrCodeExists
			}
		case 1452: // ER_NO_REFERENCED_ROW: FK violation
			return ErrNotFoundTarget
		case 1644: // ER_SIGNAL_EXCEPTION: the I1 disjointness trigger fired
			return ErrNamespaceConflict
		case 1205, 1213: // lock wait timeout / deadlock, both retryable
			return fmt.Errorf("%w: %s", ErrTransient, mysqlErr.Message)
		}
	}

	return fmt.Errorf("%w: %s", ErrTransient, err.Error())
}
