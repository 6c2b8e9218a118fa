// Package storage aggregates every persistence backend: MySQL for metadata,
// Redis for caching and dedup, MinIO for file bodies, RabbitMQ for upload
// events, and Qdrant for vectors.
package storage

import (
	"context"
	"fmt"

	"resume-match-go/internal/config"
	"resume-match-go/internal/logger"
)

// Storage bundles all backends behind one constructor so binaries share the
// same startup and shutdown order.
type Storage struct {
	MySQL    *MySQL
	Redis    *Redis
	MinIO    *MinIO
	RabbitMQ *RabbitMQ
	Qdrant   *Qdrant
}

// NewStorage connects every backend. Any single failure aborts startup and
// closes whatever already connected.
func NewStorage(ctx context.Context, cfg *config.Config) (*Storage, error) {
	s := &Storage{}

	var err error
	if s.MySQL, err = NewMySQL(&cfg.MySQL); err != nil {
		return nil, fmt.Errorf("init mysql: %w", err)
	}
	if s.Redis, err = NewRedis(ctx, &cfg.Redis); err != nil {
		s.Close()
		return nil, fmt.Errorf("init redis: %w", err)
	}
	if s.MinIO, err = NewMinIO(ctx, &cfg.MinIO); err != nil {
		s.Close()
		return nil, fmt.Errorf("init minio: %w", err)
	}
	if s.RabbitMQ, err = NewRabbitMQ(&cfg.RabbitMQ); err != nil {
		s.Close()
		return nil, fmt.Errorf("init rabbitmq: %w", err)
	}
	if s.Qdrant, err = NewQdrant(&cfg.Qdrant); err != nil {
		s.Close()
		return nil, fmt.Errorf("init qdrant: %w", err)
	}

	logger.Info().Msg("all storage backends initialized")
	return s, nil
}

// Close shuts down every connected backend, logging rather than failing on
// individual errors.
func (s *Storage) Close() {
	if s.RabbitMQ != nil {
		if err := s.RabbitMQ.Close(); err != nil {
			logger.Warn().Err(err).Msg("close rabbitmq")
		}
	}
	if s.Redis != nil {
		if err := s.Redis.Close(); err != nil {
			logger.Warn().Err(err).Msg("close redis")
		}
	}
	if s.MySQL != nil {
		if err := s.MySQL.Close(); err != nil {
			logger.Warn().Err(err).Msg("close mysql")
		}
	}
}
