package database

import (
	"context"
	"fmt"
	"log"
	"sync"

	"gorm.io/gorm"

	"github.com/dineops/customer-sync/internal/entities"
)

// Source wraps the transactional orders database. The engine only reads
// from it.
type Source struct {
	DB *gorm.DB
}

// OpenSource connects to the source orders database with the standard
// retry policy.
func OpenSource(ctx context.Context, dsn string) (*Source, error) {
	db, err := ConnectWithRetry(ctx, "source", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to source database: %w", err)
	}
	return &Source{DB: db}, nil
}

func (s *Source) Close() error {
	sqlDB, err := s.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Analytics wraps the destination analytics database holding customer
// profiles and the derived aggregate tables.
type Analytics struct {
	DB *gorm.DB

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// OpenAnalytics connects to the destination database and migrates the
// analytics schema.
func OpenAnalytics(ctx context.Context, dsn string) (*Analytics, error) {
	db, err := ConnectWithRetry(ctx, "analytics", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to analytics database: %w", err)
	}

	err = db.AutoMigrate(
		&entities.CustomerProfile{},
		&entities.TimeSlotAnalysis{},
		&entities.ProductPreference{},
		&entities.MarketingSuggestion{},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to migrate analytics schema: %w", err)
	}

	log.Printf("Analytics database ready")

	return &Analytics{
		DB:    db,
		locks: make(map[string]*sync.Mutex),
	}, nil
}

func (a *Analytics) Close() error {
	sqlDB, err := a.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// LockTable takes the advisory lock for a destination table and returns the
// unlock func. Delete-then-insert rebuilds hold this so two concurrent runs
// cannot interleave one run's delete with another's insert.
func (a *Analytics) LockTable(table string) func() {
	a.mu.Lock()
	if a.locks == nil {
		a.locks = make(map[string]*sync.Mutex)
	}
	l, ok := a.locks[table]
	if !ok {
		l = &sync.Mutex{}
		a.locks[table] = l
	}
	a.mu.Unlock()

	l.Lock()
	return l.Unlock
}
