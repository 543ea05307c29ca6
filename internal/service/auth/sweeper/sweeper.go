package sweeper

import (
	"context"
	"time"

	"github.com/nkiryanov/taskauth/internal/logger"
)

const (
	defaultInterval  = 10 * time.Minute
	defaultBatchSize = 500
)

type expiredDeleter interface {
	DeleteExpired(ctx context.Context, before time.Time, limit int) (int64, error)
}

type Config struct {
	// How often expired authentications are looked for
	Interval time.Duration

	// Max authentications deleted by one query
	BatchSize int

	// time.Now if not set
	Now func() time.Time
}

// Sweeper removes durable authentications whose refresh token has expired
// Fast-access entries expire by TTL, the durable ones would stay forever without it
type Sweeper struct {
	interval  time.Duration
	batchSize int
	now       func() time.Time

	repo   expiredDeleter
	logger logger.Logger
}

func New(cfg Config, repo expiredDeleter, l logger.Logger) *Sweeper {
	if cfg.Interval <= 0 {
		cfg.Interval = defaultInterval
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if l == nil {
		l = logger.NewNoOpLogger()
	}

	return &Sweeper{
		interval:  cfg.Interval,
		batchSize: cfg.BatchSize,
		now:       cfg.Now,
		repo:      repo,
		logger:    l,
	}
}

// Run sweeps on every tick until ctx is done
// The returned channel is closed when the sweeper has stopped
func (s *Sweeper) Run(ctx context.Context) <-chan struct{} {
	idleStopped := make(chan struct{})
	s.logger.Debug("Starting sweeper", "interval", s.interval, "batch_size", s.batchSize)

	go func() {
		defer close(idleStopped)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				s.logger.Debug("Sweeper stopped by context")
				return

			case <-ticker.C:
				deleted, err := s.Sweep(ctx)
				if err != nil {
					s.logger.Error("Failed to sweep expired authentications", "error", err, "deleted", deleted)
					continue
				}
				if deleted > 0 {
					s.logger.Info("Expired authentications swept", "deleted", deleted)
				}
			}
		}
	}()

	return idleStopped
}

// Sweep deletes expired authentications batch by batch until a batch comes back short
func (s *Sweeper) Sweep(ctx context.Context) (int64, error) {
	before := s.now()

	var total int64
	for {
		deleted, err := s.repo.DeleteExpired(ctx, before, s.batchSize)
		if err != nil {
			return total, err
		}
		total += deleted

		if deleted < int64(s.batchSize) {
			return total, nil
		}
		if err := ctx.Err(); err != nil {
			return total, err
		}
	}
}
