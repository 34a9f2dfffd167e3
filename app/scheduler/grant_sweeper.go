// Package scheduler
package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/reelbux/reelbux/models"
	"github.com/reelbux/reelbux/repository"
	"github.com/reelbux/reelbux/utils"
)

// GrantSweeper periodically flips overdue rent grants to expired. Readers
// already treat overdue grants as inactive, so the sweep only keeps the
// stored status column honest for reporting queries.
type GrantSweeper struct {
	grantRepo repository.FilmAccessGrantRepository
	auditRepo repository.AuditLogRepository
	logger    *log.Logger
	interval  time.Duration
}

func NewGrantSweeper(
	grantRepo repository.FilmAccessGrantRepository,
	auditRepo repository.AuditLogRepository,
	logger *log.Logger,
	interval time.Duration,
) *GrantSweeper {
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	if logger == nil {
		logger = log.Default()
	}

	return &GrantSweeper{
		grantRepo: grantRepo,
		auditRepo: auditRepo,
		logger:    logger,
		interval:  interval,
	}
}

// Start launches the sweep loop. The returned cancel function stops it.
func (s *GrantSweeper) Start(parent context.Context) func() {
	ctx, cancel := context.WithCancel(parent)

	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.runOnce(ctx)

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.runOnce(ctx)
			}
		}
	}()

	return cancel
}

func (s *GrantSweeper) runOnce(ctx context.Context) {
	now := utils.UTCNow()

	expired, err := s.grantRepo.ExpireDueGrants(ctx, now)
	if err != nil {
		s.logger.Printf("sweeper: expire due grants failed: %v", err)
		return
	}
	if expired == 0 {
		return
	}

	s.logger.Printf("sweeper: expired %d overdue rent grants", expired)

	metadata, _ := json.Marshal(map[string]any{"expired_count": expired, "swept_at": now})
	description := fmt.Sprintf("Sweep expired %d overdue rent grants", expired)
	audit := &models.AuditLog{
		Action:      models.AuditActionGrantExpired,
		Description: &description,
		Success:     utils.ToPtr(true),
		Metadata:    metadata,
		CreatedAt:   now,
	}
	if err := s.auditRepo.Save(ctx, audit); err != nil {
		s.logger.Printf("sweeper: audit write failed: %v", err)
	}
}
