// Package postgres persists interaction records with gorm.
package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/couchcryptid/weather-assistant/internal/domain"
)

// Interaction is the table row for one handled query.
type Interaction struct {
	ID         uint   `gorm:"primaryKey"`
	SessionID  string `gorm:"size:64;index"`
	Text       string
	Intent     string `gorm:"size:32;index"`
	Confidence float64
	LatencyMS  int64
	Location   string    `gorm:"size:128"`
	DateTime   string    `gorm:"size:32"`
	Units      string    `gorm:"size:16"`
	Reply      string    `gorm:"size:200"`
	CreatedAt  time.Time `gorm:"index"`
}

// Store writes interaction rows. It implements interaction.Sink.
type Store struct {
	db     *gorm.DB
	logger *slog.Logger
}

// Open connects to Postgres and migrates the interactions table.
func Open(dsn string, logger *slog.Logger) (*Store, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return New(db, logger)
}

// New wraps an existing connection and migrates the interactions table.
func New(db *gorm.DB, logger *slog.Logger) (*Store, error) {
	if err := db.AutoMigrate(&Interaction{}); err != nil {
		return nil, fmt.Errorf("migrate interactions: %w", err)
	}
	return &Store{db: db, logger: logger}, nil
}

// WriteBatch inserts the records in one statement.
func (s *Store) WriteBatch(ctx context.Context, recs []domain.Interaction) error {
	if len(recs) == 0 {
		return nil
	}
	rows := make([]Interaction, len(recs))
	for i, rec := range recs {
		rows[i] = toRow(rec)
	}
	if err := s.db.WithContext(ctx).CreateInBatches(rows, len(rows)).Error; err != nil {
		return fmt.Errorf("insert interactions: %w", err)
	}
	return nil
}

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func toRow(rec domain.Interaction) Interaction {
	created := rec.Timestamp
	if created.IsZero() {
		created = time.Now().UTC()
	}
	return Interaction{
		SessionID:  rec.SessionID,
		Text:       rec.Text,
		Intent:     string(rec.Intent),
		Confidence: rec.Confidence,
		LatencyMS:  rec.LatencyMS,
		Location:   rec.Entities.Location,
		DateTime:   string(rec.Entities.DateTime),
		Units:      string(rec.Entities.Units),
		Reply:      rec.Snippet(),
		CreatedAt:  created,
	}
}
