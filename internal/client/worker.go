package client

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/PratikDhanave/celebration-webhook/internal/led"
	"github.com/PratikDhanave/celebration-webhook/internal/logger"
	"github.com/PratikDhanave/celebration-webhook/internal/models"
)

// EffectOff clears the strip and leaves idle stopped until the next job or
// prefs update.
const EffectOff = "off"

// Job is one resolved effect waiting to be played.
type Job struct {
	Effect string
	Color  led.Color
	Cycles int
}

// Worker plays jobs one at a time. Between jobs it shows the idle effect.
// Only the Run goroutine starts or stops idle; SetIdle hands it the change.
type Worker struct {
	runner      *led.Runner
	jobs        chan Job
	idleChanged chan struct{}
	log         *slog.Logger
	idleColor   led.Color // used when the idle pref has no colour

	mu      sync.Mutex
	pending models.EffectPref

	idle       models.EffectPref
	idleCancel context.CancelFunc
	idleDone   chan struct{}
}

// NewWorker returns a worker with room for queue pending jobs.
func NewWorker(r *led.Runner, queue int, idleColor led.Color) *Worker {
	if queue <= 0 {
		queue = 32
	}
	return &Worker{
		runner:      r,
		jobs:        make(chan Job, queue),
		idleChanged: make(chan struct{}, 1),
		log:         logger.Get(logger.Client),
		idleColor:   idleColor,
	}
}

// Enqueue adds j without blocking. It reports false when the queue is full.
func (w *Worker) Enqueue(j Job) bool {
	select {
	case w.jobs <- j:
		return true
	default:
		w.log.Warn("Effect queue full, dropping job", "effect", j.Effect)
		return false
	}
}

// SetIdle replaces the idle effect. Run applies it between jobs; only the
// latest call before then counts.
func (w *Worker) SetIdle(p models.EffectPref) {
	w.mu.Lock()
	w.pending = p
	w.mu.Unlock()

	select {
	case w.idleChanged <- struct{}{}:
	default:
	}
}

// Run plays queued jobs until ctx ends. Idle is paused for each job and
// resumed afterwards.
func (w *Worker) Run(ctx context.Context) error {
	defer w.stopIdle()
	for {
		select {
		case <-ctx.Done():
			return nil

		case <-w.idleChanged:
			w.stopIdle()
			w.mu.Lock()
			w.idle = w.pending
			w.mu.Unlock()
			w.startIdle(ctx)

		case j := <-w.jobs:
			w.stopIdle()
			if j.Effect == EffectOff {
				if err := w.runner.Clear(); err != nil {
					w.log.Error("Clearing strip failed", "error", err)
				}
				continue
			}
			if err := w.runner.RunEffect(ctx, j.Effect, j.Color, j.Cycles); err != nil && ctx.Err() == nil {
				w.log.Error("Effect failed", "effect", j.Effect, "error", err)
			}
			w.startIdle(ctx)
		}
	}
}

func isBreath(effect string) bool {
	switch strings.ToLower(strings.TrimSpace(effect)) {
	case "breath", "runbreathingeffect":
		return true
	}
	return false
}

func (w *Worker) startIdle(ctx context.Context) {
	if ctx.Err() != nil || w.idleCancel != nil || !isBreath(w.idle.Effect) {
		return
	}

	color := led.ParseHexColor(w.idle.Color)
	if color == led.Off {
		color = w.idleColor
	}

	idleCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	w.idleCancel = cancel
	w.idleDone = done

	go func() {
		defer close(done)
		if err := w.runner.Breathe(idleCtx, color); err != nil {
			w.log.Error("Idle effect failed", "error", err)
		}
	}()
}

// stopIdle cancels the idle effect and waits until it has released the strip.
func (w *Worker) stopIdle() {
	if w.idleCancel == nil {
		return
	}
	w.idleCancel()
	<-w.idleDone
	w.idleCancel, w.idleDone = nil, nil
}
