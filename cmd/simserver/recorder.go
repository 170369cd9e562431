package main

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/henhouse/internal/game/session"
)

// encounterWriter is the slice of postgres.EncounterRepository the recorder needs.
type encounterWriter interface {
	RecordBatch(ctx context.Context, encounters []session.Encounter) (int, error)
}

// recorder moves finished encounters off the tick goroutine and into the
// encounter log.
type recorder struct {
	repo    encounterWriter
	ch      chan []session.Encounter
	timeout time.Duration
	logger  *zap.Logger
}

func newRecorder(repo encounterWriter, backlog int, timeout time.Duration, logger *zap.Logger) *recorder {
	return &recorder{
		repo:    repo,
		ch:      make(chan []session.Encounter, backlog),
		timeout: timeout,
		logger:  logger,
	}
}

// handle is a gameserver.ReportHandler. It never blocks the tick loop; a full
// backlog drops the batch with a warning.
func (r *recorder) handle(sessionID string, _ time.Time, report session.TickReport) {
	if len(report.Ended) == 0 {
		return
	}
	select {
	case r.ch <- report.Ended:
	default:
		r.logger.Warn("encounter backlog full, dropping batch",
			zap.String("session", sessionID),
			zap.Int("encounters", len(report.Ended)),
		)
	}
}

// Run writes queued batches until ctx is cancelled, then flushes what is queued.
func (r *recorder) Run(ctx context.Context) error {
	for {
		select {
		case batch := <-r.ch:
			r.write(batch)
		case <-ctx.Done():
			for {
				select {
				case batch := <-r.ch:
					r.write(batch)
				default:
					return nil
				}
			}
		}
	}
}

func (r *recorder) write(batch []session.Encounter) {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()
	n, err := r.repo.RecordBatch(ctx, batch)
	if err != nil {
		r.logger.Error("recording encounters", zap.Error(err), zap.Int("encounters", len(batch)))
		return
	}
	r.logger.Debug("encounters recorded", zap.Int("written", n))
}
