package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"photo-generator/internal/generation"
	"photo-generator/internal/models"
	"photo-generator/internal/queue/rabbitmq"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

type Generator interface {
	Generate(ctx context.Context, orderID uuid.UUID, themeID string) (generation.Result, error)
}

// Pool runs queued generation jobs on a fixed number of goroutines.
type Pool struct {
	generator  Generator
	size       int
	jobTimeout time.Duration
	logger     zerolog.Logger
}

func NewPool(generator Generator, size int, jobTimeout time.Duration, logger zerolog.Logger) *Pool {
	if size <= 0 {
		size = 1
	}
	return &Pool{
		generator:  generator,
		size:       size,
		jobTimeout: jobTimeout,
		logger:     logger,
	}
}

// Run consumes deliveries until the channel closes or ctx is done, then waits
// for in-flight jobs to finish.
func (p *Pool) Run(ctx context.Context, deliveries <-chan amqp.Delivery) {
	var wg sync.WaitGroup
	tasks := make(chan amqp.Delivery, p.size)

	for i := 0; i < p.size; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			p.logger.Debug().Int("worker", workerID).Msg("worker started")
			for d := range tasks {
				p.handle(workerID, d)
			}
			p.logger.Debug().Int("worker", workerID).Msg("worker stopped")
		}(i + 1)
	}

loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case d, ok := <-deliveries:
			if !ok {
				break loop
			}
			tasks <- d
		}
	}

	close(tasks)
	wg.Wait()
}

// handle acknowledges every decodable job once it ran. Failed generations are
// not redelivered; the artifact already records the failure.
func (p *Pool) handle(workerID int, d amqp.Delivery) {
	job, orderID, err := decodeJob(d.Body)
	if err != nil {
		p.logger.Error().Err(err).Int("worker", workerID).Msg("discarding invalid job")
		if nackErr := d.Nack(false, false); nackErr != nil {
			p.logger.Error().Err(nackErr).Msg("nack failed")
		}
		return
	}

	log := p.logger.With().Int("worker", workerID).Str("order_id", job.OrderID).Str("theme_id", job.ThemeID).Logger()

	ctx := context.Background()
	var cancel context.CancelFunc = func() {}
	if p.jobTimeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, p.jobTimeout)
	}
	res, err := p.generator.Generate(ctx, orderID, job.ThemeID)
	cancel()

	switch {
	case errors.Is(err, models.ErrInvalidInput), errors.Is(err, models.ErrNotFound):
		log.Warn().Err(err).Msg("job rejected")
	case err != nil:
		log.Error().Err(err).Msg("job failed")
	default:
		log.Info().Str("generation_id", res.GenerationID.String()).Msg("job completed")
	}

	if ackErr := d.Ack(false); ackErr != nil {
		log.Error().Err(ackErr).Msg("ack failed")
	}
}

func decodeJob(body []byte) (rabbitmq.GenerationJob, uuid.UUID, error) {
	var job rabbitmq.GenerationJob
	if err := json.Unmarshal(body, &job); err != nil {
		return job, uuid.Nil, fmt.Errorf("unmarshal job: %w", err)
	}
	orderID, err := uuid.Parse(job.OrderID)
	if err != nil {
		return job, uuid.Nil, fmt.Errorf("invalid order id %q: %w", job.OrderID, err)
	}
	if job.ThemeID == "" {
		return job, uuid.Nil, fmt.Errorf("job for order %s has no theme", orderID)
	}
	return job, orderID, nil
}
