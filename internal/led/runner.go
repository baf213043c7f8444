package led

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/PratikDhanave/celebration-webhook/internal/logger"
)

const (
	// CelebrationCycles is the number of green on/off blinks per celebration.
	CelebrationCycles = 5
	// DefaultCelebrationHold is how long each on and off phase lasts.
	DefaultCelebrationHold = 500 * time.Millisecond
)

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Runner owns a strip and runs one effect at a time on it.
type Runner struct {
	strip      Strip
	brightness int
	sleep      SleepFunc
	log        *slog.Logger

	frameMu  sync.Mutex // guards the strip frame buffer
	effectMu sync.Mutex // held for the whole duration of an effect
}

// Option configures a Runner.
type Option func(*Runner)

// WithSleep replaces the wall-clock wait between frames.
func WithSleep(fn SleepFunc) Option {
	return func(r *Runner) { r.sleep = fn }
}

// WithBrightness tells the runner the driver's global brightness (0..255) so
// dim frames stay visible.
func WithBrightness(b int) Option {
	return func(r *Runner) { r.brightness = b }
}

func NewRunner(strip Strip, opts ...Option) *Runner {
	r := &Runner{
		strip:      strip,
		brightness: 255,
		sleep:      sleepCtx,
		log:        logger.Get(logger.LED),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Count is the number of pixels driven.
func (r *Runner) Count() int {
	return len(r.strip.Leds())
}

// Close clears and releases the strip.
func (r *Runner) Close() error {
	r.effectMu.Lock()
	defer r.effectMu.Unlock()
	clearErr := r.fill(Off)

	r.frameMu.Lock()
	defer r.frameMu.Unlock()
	if err := r.strip.Close(); err != nil {
		return err
	}
	return clearErr
}

// Celebrate blinks the whole strip green CelebrationCycles times, holding each
// on and off phase for hold. Callers queue behind any running effect; timeout,
// when positive, bounds only the sequence itself and starts once the strip is
// held. On early exit the strip is cleared.
func (r *Runner) Celebrate(ctx context.Context, hold, timeout time.Duration) error {
	r.effectMu.Lock()
	defer r.effectMu.Unlock()

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	r.log.Info("Running celebration", "cycles", CelebrationCycles, "pixels", r.Count())

	err := r.blink(ctx, CelebrationCycles, Green, hold, hold)
	if err != nil {
		_ = r.fill(Off)
	}
	return err
}

// Clear turns every pixel off.
func (r *Runner) Clear() error {
	r.effectMu.Lock()
	defer r.effectMu.Unlock()
	return r.fill(Off)
}

func (r *Runner) blink(ctx context.Context, times int, on Color, onFor, offFor time.Duration) error {
	for i := 0; i < times; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := r.fill(on); err != nil {
			return err
		}
		if err := r.sleep(ctx, onFor); err != nil {
			return err
		}
		if err := r.fill(Off); err != nil {
			return err
		}
		if err := r.sleep(ctx, offFor); err != nil {
			return err
		}
	}
	return nil
}

// fill sets every pixel to c and flushes.
func (r *Runner) fill(c Color) error {
	return r.draw(func(leds []uint32) {
		for i := range leds {
			leds[i] = uint32(c)
		}
	})
}

// draw lets fn edit the frame buffer, then renders it.
func (r *Runner) draw(fn func(leds []uint32)) error {
	r.frameMu.Lock()
	defer r.frameMu.Unlock()
	fn(r.strip.Leds())
	return r.strip.Render()
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
