package store

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/technobid/auction-backend/pkg/types"
)

// documentRow is one document in the "documents" table.
type documentRow struct {
	Key       string `gorm:"primaryKey;size:255"`
	Version   uint64 `gorm:"not null;index"`
	Deleted   bool   `gorm:"not null;default:false"`
	Data      string `gorm:"type:jsonb"`
	UpdatedAt time.Time
}

func (documentRow) TableName() string { return "documents" }

// OpenPostgres connects gorm to dsn and routes its warnings through log.
func OpenPostgres(dsn string, log *zap.Logger) (*gorm.DB, error) {
	gormLogger := logger.New(
		zap.NewStdLog(log.Named("gorm")),
		logger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
		},
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormLogger})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	return db, nil
}

// GormMirror writes every stored document through to a SQL table.
type GormMirror struct {
	db *gorm.DB
}

func NewGormMirror(db *gorm.DB) (*GormMirror, error) {
	if err := db.AutoMigrate(&documentRow{}); err != nil {
		return nil, fmt.Errorf("migrate documents: %w", err)
	}
	return &GormMirror{db: db}, nil
}

func (m *GormMirror) Save(ctx context.Context, docs []types.Document) error {
	if len(docs) == 0 {
		return nil
	}
	rows := make([]documentRow, 0, len(docs))
	now := time.Now().UTC()
	for _, d := range docs {
		data := string(d.Data)
		if data == "" {
			data = "null"
		}
		rows = append(rows, documentRow{Key: d.Key, Version: d.Version, Deleted: d.Deleted, Data: data, UpdatedAt: now})
	}
	// an older write never overwrites a newer one
	return m.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"version", "deleted", "data", "updated_at"}),
		Where: clause.Where{Exprs: []clause.Expression{
			clause.Expr{SQL: "documents.version < excluded.version"},
		}},
	}).Create(&rows).Error
}

func (m *GormMirror) Load(ctx context.Context) ([]types.Document, error) {
	var rows []documentRow
	if err := m.db.WithContext(ctx).Order("key").Find(&rows).Error; err != nil {
		return nil, err
	}
	docs := make([]types.Document, 0, len(rows))
	for _, r := range rows {
		d := types.Document{Key: r.Key, Version: r.Version, Deleted: r.Deleted}
		if !r.Deleted {
			d.Data = []byte(r.Data)
		}
		docs = append(docs, d)
	}
	return docs, nil
}
