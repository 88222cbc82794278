package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/rustyeddy/portfolio/position"
)

type snapshotRow struct {
	Name      string    `gorm:"primaryKey;size:128"`
	Data      string    `gorm:"type:text;not null"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

func (snapshotRow) TableName() string { return "portfolio_snapshots" }

// PostgresStore keeps snapshots in Postgres through gorm.
type PostgresStore struct {
	db *gorm.DB
}

func NewPostgresStore(dsn string) (*PostgresStore, error) {
	if dsn == "" {
		return nil, fmt.Errorf("store: postgres DSN is required")
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("store: connect: %w", err)
	}
	return NewGormStore(db)
}

// NewGormStore wraps an open gorm handle and migrates the snapshot table.
func NewGormStore(db *gorm.DB) (*PostgresStore, error) {
	if err := db.AutoMigrate(&snapshotRow{}); err != nil {
		return nil, fmt.Errorf("store: migrate: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

func (p *PostgresStore) SaveSnapshot(ctx context.Context, name string, snap position.Snapshot) error {
	if err := checkName(name); err != nil {
		return err
	}
	b, err := snap.Marshal()
	if err != nil {
		return err
	}
	row := snapshotRow{Name: name, Data: string(b), UpdatedAt: time.Now().UTC()}
	err = p.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"data", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("store: save %s: %w", name, err)
	}
	return nil
}

func (p *PostgresStore) LoadSnapshot(ctx context.Context, name string) (position.Snapshot, error) {
	if err := checkName(name); err != nil {
		return position.Snapshot{}, err
	}
	var row snapshotRow
	err := p.db.WithContext(ctx).Where("name = ?", name).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return position.Snapshot{}, nil
	}
	if err != nil {
		return position.Snapshot{}, fmt.Errorf("store: load %s: %w", name, err)
	}
	return position.UnmarshalSnapshot([]byte(row.Data))
}

func (p *PostgresStore) Close() error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
