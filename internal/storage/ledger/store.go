// Package ledger keeps distribution records in a SQLite table.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/humetime/backend/internal/database"
	"github.com/humetime/backend/internal/distribution"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const migrationAppendedAtIndex = "2025-01-12_distribution_rows_appended_at_index"

var (
	errMissingDatabase   = errors.New("ledger: database handle is required")
	errMissingIDProvider = errors.New("ledger: id provider is required")
)

// Schema is the table layout and migrations the ledger needs from OpenSQLite.
func Schema() database.Schema {
	return database.Schema{
		Models: []any{&Row{}},
		Migrations: []database.Migration{
			{Name: migrationAppendedAtIndex, Apply: indexByAppendTime},
		},
	}
}

func indexByAppendTime(db *gorm.DB) error {
	return db.Exec("CREATE INDEX IF NOT EXISTS idx_distribution_rows_appended_at ON distribution_rows (appended_at_s)").Error
}

type Config struct {
	Database   *gorm.DB
	IDProvider IDProvider
	Clock      func() time.Time
	Logger     *zap.Logger
}

// Store inserts one row per record.
type Store struct {
	db         *gorm.DB
	idProvider IDProvider
	clock      func() time.Time
	logger     *zap.Logger
}

func NewStore(cfg Config) (*Store, error) {
	if cfg.Database == nil {
		return nil, fmt.Errorf("%w: %w", distribution.ErrConfiguration, errMissingDatabase)
	}
	if cfg.IDProvider == nil {
		return nil, fmt.Errorf("%w: %w", distribution.ErrConfiguration, errMissingIDProvider)
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{db: cfg.Database, idProvider: cfg.IDProvider, clock: clock, logger: logger}, nil
}

func (s *Store) Append(ctx context.Context, record distribution.Record) error {
	rowID, err := s.idProvider.NewID()
	if err != nil {
		return fmt.Errorf("ledger: generate row id: %w", err)
	}
	row := Row{
		RowID:                       rowID,
		Timestamp:                   record.Timestamp,
		PatientCount:                record.PatientCount,
		DistributionDurationMinutes: record.DistributionDurationMinutes,
		MealPeriod:                  record.MealPeriod.String(),
		PersonCount:                 record.PersonCount,
		FreeNotes:                   record.FreeNotes,
		SourceMessage:               record.SourceMessage,
		AppendedAtSeconds:           s.clock().UTC().Unix(),
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("ledger: insert row: %w", err)
	}
	s.logger.Debug("ledger row appended", zap.String("row_id", rowID))
	return nil
}
