package clickhouse

import (
	"context"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/billforge/billforge/internal/config"
	ierr "github.com/billforge/billforge/internal/errors"
	"github.com/billforge/billforge/internal/logger"
)

// ClickHouseStore holds the native protocol connection used by the columnar
// event repository
type ClickHouseStore struct {
	conn   driver.Conn
	logger *logger.Logger
}

// NewClickHouseStore opens a native connection and verifies it with a ping
func NewClickHouseStore(cfg *config.Configuration, log *logger.Logger) (*ClickHouseStore, error) {
	if !cfg.ClickHouse.Enabled {
		return nil, ierr.NewError("clickhouse is not enabled").
			WithHint("Set clickhouse.enabled to use the columnar event store").
			Mark(ierr.ErrInvalidOperation)
	}

	conn, err := clickhouse.Open(cfg.ClickHouse.GetClientOptions())
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to open clickhouse connection").
			Mark(ierr.ErrDatabase)
	}

	if err := conn.Ping(context.Background()); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to ping clickhouse").
			Mark(ierr.ErrDatabase)
	}

	log.Infow("connected to clickhouse",
		"address", cfg.ClickHouse.Address,
		"database", cfg.ClickHouse.Database,
	)
	return &ClickHouseStore{conn: conn, logger: log}, nil
}

// GetConn returns the underlying native connection
func (s *ClickHouseStore) GetConn() driver.Conn {
	return s.conn
}

func (s *ClickHouseStore) Close() error {
	return s.conn.Close()
}
