package ledger

import (
	"context"
	"time"

	"github.com/fetchify-app/fetchify/internal/config"

	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const (
	defaultSweepInterval = 6 * time.Hour
	deleteBatchSize      = 5000
	maxBatchesPerSweep   = 2000
)

// RetentionSweeper periodically deletes usage rows older than the configured
// retention window. Balances and purchases are never touched.
type RetentionSweeper struct {
	db        *gorm.DB
	days      int
	interval  time.Duration
	batchSize int
}

// NewRetentionSweeper builds a sweeper from the retention config. Returns nil
// when retention is disabled.
func NewRetentionSweeper(db *gorm.DB, cfg config.RetentionConfig) *RetentionSweeper {
	if db == nil || cfg.Days <= 0 {
		return nil
	}
	interval := cfg.SweepInterval
	if interval <= 0 {
		interval = defaultSweepInterval
	}
	return &RetentionSweeper{
		db:        db,
		days:      cfg.Days,
		interval:  interval,
		batchSize: deleteBatchSize,
	}
}

// Start launches the sweep loop in a background goroutine.
func (s *RetentionSweeper) Start(ctx context.Context) {
	if s == nil {
		return
	}
	go s.run(ctx)
	log.Infof("usage retention sweeper started (days=%d interval=%s)", s.days, s.interval)
}

func (s *RetentionSweeper) run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		s.sweepOnce(ctx)
		timer := time.NewTimer(s.interval)
		select {
		case <-ctx.Done():
			if !timer.Stop() {
				<-timer.C
			}
			return
		case <-timer.C:
		}
	}
}

func (s *RetentionSweeper) sweepOnce(ctx context.Context) {
	cutoff := time.Now().UTC().AddDate(0, 0, -s.days)

	deletedTotal := int64(0)
	for i := 0; i < maxBatchesPerSweep; i++ {
		if ctx.Err() != nil {
			return
		}
		n, errDelete := s.deleteBatch(ctx, cutoff)
		if errDelete != nil {
			log.WithError(errDelete).Warn("usage retention sweeper: delete batch failed")
			break
		}
		if n <= 0 {
			break
		}
		deletedTotal += n
	}

	if deletedTotal > 0 {
		log.Infof("usage retention sweeper: deleted %d rows (cutoff=%s)", deletedTotal, cutoff.Format(time.RFC3339))
	}
}

// deleteBatch removes at most batchSize rows. The limited subquery keeps
// individual transactions short.
func (s *RetentionSweeper) deleteBatch(ctx context.Context, cutoff time.Time) (int64, error) {
	res := s.db.WithContext(ctx).Exec(`
		DELETE FROM api_usages
		WHERE id IN (
			SELECT id FROM api_usages
			WHERE created_at < ?
			ORDER BY created_at ASC
			LIMIT ?
		)
	`, cutoff, s.batchSize)
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}
