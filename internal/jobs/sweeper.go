package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"photo-generator/internal/models"
	"photo-generator/internal/repository"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

const sweepBatch = 100

type StaleArtifacts interface {
	ListStale(ctx context.Context, before time.Time, limit int) ([]models.GeneratedArtifact, error)
	Update(ctx context.Context, id uuid.UUID, u models.ArtifactUpdate) error
}

// Sweeper fails artifacts left generating by a crashed or hung process.
type Sweeper struct {
	cron       *cron.Cron
	artifacts  StaleArtifacts
	staleAfter time.Duration
	log        zerolog.Logger
	now        func() time.Time
}

func NewSweeper(artifacts StaleArtifacts, staleAfter time.Duration, log zerolog.Logger) *Sweeper {
	return &Sweeper{
		cron:       cron.New(cron.WithSeconds()),
		artifacts:  artifacts,
		staleAfter: staleAfter,
		log:        log,
		now:        time.Now,
	}
}

func (s *Sweeper) Start(schedule string) error {
	if _, err := s.cron.AddFunc(schedule, s.run); err != nil {
		return fmt.Errorf("schedule sweeper: %w", err)
	}
	s.cron.Start()
	return nil
}

// Stop waits for a running sweep to finish or ctx to expire.
func (s *Sweeper) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
	}
}

func (s *Sweeper) run() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	n, err := s.Sweep(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("stale generation sweep failed")
		return
	}
	if n > 0 {
		s.log.Warn().Int("count", n).Msg("marked stale generations as failed")
	}
}

// Sweep marks every artifact generating for longer than staleAfter as failed
// and returns how many it changed.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	cutoff := s.now().Add(-s.staleAfter)
	stale, err := s.artifacts.ListStale(ctx, cutoff, sweepBatch)
	if err != nil {
		return 0, err
	}

	failed := 0
	for _, a := range stale {
		update := models.FailedUpdate(fmt.Errorf("generation abandoned after %s", s.staleAfter))
		err := s.artifacts.Update(ctx, a.ID, update)
		if errors.Is(err, repository.ErrNotGenerating) {
			continue
		}
		if err != nil {
			return failed, err
		}
		failed++
	}
	return failed, nil
}
