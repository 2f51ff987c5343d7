package database

import (
	"context"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Aidin1998/codemeet/pkg/metrics"
)

// PoolMonitor pings the database and exports pool statistics
type PoolMonitor struct {
	db       *gorm.DB
	name     string
	interval time.Duration
	logger   *zap.Logger
}

func NewPoolMonitor(db *gorm.DB, name string, interval time.Duration, logger *zap.Logger) *PoolMonitor {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &PoolMonitor{db: db, name: name, interval: interval, logger: logger}
}

// Start runs the monitoring loop until ctx is canceled
func (m *PoolMonitor) Start(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.Check(ctx)
		case <-ctx.Done():
			m.logger.Info("Stopping DB pool monitor", zap.String("db", m.name))
			return
		}
	}
}

// Check pings the database once and records the pool gauges
func (m *PoolMonitor) Check(ctx context.Context) error {
	sqlDB, err := m.db.DB()
	if err != nil {
		m.logger.Warn("Failed to get DB connection", zap.Error(err))
		return err
	}

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(pingCtx); err != nil {
		m.logger.Warn("Database ping failed", zap.String("db", m.name), zap.Error(err))
		return err
	}

	stats := sqlDB.Stats()
	metrics.DBOpenConns.WithLabelValues(m.name).Set(float64(stats.OpenConnections))
	metrics.DBInUseConns.WithLabelValues(m.name).Set(float64(stats.InUse))
	return nil
}
