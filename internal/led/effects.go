package led

import (
	"context"
	"math"
	"strings"
	"time"
)

// Effect names understood by RunEffect.
const (
	EffectBlink           = "blink"
	EffectWipe            = "wipe"
	EffectRainbow         = "rainbow"
	EffectShoot           = "shoot"
	EffectShootBounce     = "shoot_bounce"
	EffectStackedShooting = "stacked_shooting"
	EffectDealWonStacked  = "deal_won_stacked"
	EffectLegacy          = "celebrate_legacy"
)

const cometTail = 8

// RunEffect plays the named effect and clears the strip afterwards. Unknown
// names fall back to the legacy red/blue/green celebration.
func (r *Runner) RunEffect(ctx context.Context, name string, color Color, cycles int) error {
	r.effectMu.Lock()
	defer r.effectMu.Unlock()

	name = strings.ToLower(strings.TrimSpace(name))
	r.log.Info("Running effect", "effect", name, "color", color, "cycles", cycles)

	err := r.runEffect(ctx, name, color, cycles)
	if clearErr := r.fill(Off); err == nil {
		err = clearErr
	}
	return err
}

func (r *Runner) runEffect(ctx context.Context, name string, color Color, cycles int) error {
	switch name {
	case EffectBlink:
		if cycles <= 0 {
			cycles = 3
		}
		return r.blink(ctx, cycles, color, 500*time.Millisecond, 250*time.Millisecond)

	case EffectWipe:
		if cycles <= 0 {
			cycles = 1
		}
		for c := 0; c < cycles; c++ {
			if err := r.wipe(ctx, color, 5*time.Millisecond); err != nil {
				return err
			}
			if err := r.sleep(ctx, 200*time.Millisecond); err != nil {
				return err
			}
			if err := r.fill(Off); err != nil {
				return err
			}
		}
		return nil

	case EffectRainbow:
		if cycles <= 0 {
			cycles = 1
		}
		for c := 0; c < cycles; c++ {
			if err := r.rainbow(ctx, 2*time.Millisecond); err != nil {
				return err
			}
		}
		return nil

	case EffectShoot:
		return r.shoot(ctx, Blue, cometTail, 20*time.Millisecond)

	case EffectShootBounce:
		return r.shootBounce(ctx, Blue, cometTail, 15*time.Millisecond, 4)

	case EffectStackedShooting, EffectDealWonStacked:
		return r.stackedShoot(ctx, []Color{Red, Blue, Green}, cometTail, 15*time.Millisecond, 3)

	default:
		return r.legacy(ctx)
	}
}

// legacy shows red, blue, then green for a second each.
func (r *Runner) legacy(ctx context.Context) error {
	for _, c := range []Color{Red, Blue, Green} {
		if err := r.fill(c); err != nil {
			return err
		}
		if err := r.sleep(ctx, time.Second); err != nil {
			return err
		}
	}
	return nil
}

// wipe lights pixels one by one.
func (r *Runner) wipe(ctx context.Context, c Color, delay time.Duration) error {
	for i := 0; i < r.Count(); i++ {
		idx := i
		if err := r.draw(func(leds []uint32) { leds[idx] = uint32(c) }); err != nil {
			return err
		}
		if err := r.sleep(ctx, delay); err != nil {
			return err
		}
	}
	return nil
}

// rainbow rotates the colour wheel along the strip three times.
func (r *Runner) rainbow(ctx context.Context, delay time.Duration) error {
	n := r.Count()
	if n == 0 {
		return nil
	}
	for j := 0; j < 256*3; j++ {
		step := j
		err := r.draw(func(leds []uint32) {
			for i := range leds {
				leds[i] = uint32(Wheel(i*256/n + step))
			}
		})
		if err != nil {
			return err
		}
		if err := r.sleep(ctx, delay); err != nil {
			return err
		}
	}
	return nil
}

// drawComet paints a fading tail behind head moving in direction dir over base.
func drawComet(leds []uint32, base []uint32, head, dir, tail, limit int, c Color) {
	for i := range leds {
		if base != nil {
			leds[i] = base[i]
		} else {
			leds[i] = uint32(Off)
		}
	}
	for t := 0; t < tail; t++ {
		pos := head - t*dir
		if pos < 0 || pos >= limit || pos >= len(leds) {
			continue
		}
		leds[pos] = uint32(Fade(c, 1.0-float64(t)/float64(tail)))
	}
}

// shoot runs a comet once from the first to past the last pixel.
func (r *Runner) shoot(ctx context.Context, head Color, tail int, delay time.Duration) error {
	if tail < 1 {
		tail = 1
	}
	n := r.Count()
	for step := 0; step < n+tail; step++ {
		pos := step
		if err := r.draw(func(leds []uint32) { drawComet(leds, nil, pos, 1, tail, n, head) }); err != nil {
			return err
		}
		if err := r.sleep(ctx, delay); err != nil {
			return err
		}
	}
	return nil
}

// shootBounce runs a comet back and forth; each end hit counts half a bounce.
func (r *Runner) shootBounce(ctx context.Context, head Color, tail int, delay time.Duration, bounces int) error {
	if tail < 1 {
		tail = 1
	}
	if bounces < 1 {
		bounces = 1
	}
	n := r.Count()
	pos, dir, hits := 0, 1, 0

	for hits < bounces*2 {
		p, d := pos, dir
		if err := r.draw(func(leds []uint32) { drawComet(leds, nil, p, d, tail, n, head) }); err != nil {
			return err
		}
		if err := r.sleep(ctx, delay); err != nil {
			return err
		}

		pos += dir
		if pos <= 0 {
			pos, dir = 0, 1
			hits++
		} else if pos >= n-1 {
			pos, dir = n-1, -1
			hits++
		}
	}
	return nil
}

// stackedShoot fires comets that pile up at the far end until the strip is
// full, then flashes white blinks times.
func (r *Runner) stackedShoot(ctx context.Context, colors []Color, tail int, delay time.Duration, blinks int) error {
	if tail < 1 {
		tail = 1
	}
	n := r.Count()
	if n == 0 || len(colors) == 0 {
		return nil
	}

	persist := make([]uint32, n)
	filled := n // pixels [filled, n) are stacked
	for shot := 0; filled > 0; shot++ {
		c := colors[shot%len(colors)]
		for step := 0; step < filled+tail; step++ {
			pos, limit := step, filled
			if err := r.draw(func(leds []uint32) { drawComet(leds, persist, pos, 1, tail, limit, c) }); err != nil {
				return err
			}
			if err := r.sleep(ctx, delay); err != nil {
				return err
			}
		}

		chunk := min(tail, filled)
		for i := 0; i < chunk; i++ {
			persist[filled-1-i] = uint32(c)
		}
		filled -= chunk
	}

	if err := r.draw(func(leds []uint32) { copy(leds, persist) }); err != nil {
		return err
	}
	return r.blink(ctx, blinks, White, 220*time.Millisecond, 220*time.Millisecond)
}

// Breathe pulses base slowly until ctx ends, then clears the strip. It holds
// the runner for its whole lifetime; cancel ctx before running another effect.
func (r *Runner) Breathe(ctx context.Context, base Color) error {
	r.effectMu.Lock()
	defer r.effectMu.Unlock()

	if base == Off {
		base = Blue
	}

	const (
		frame           = 10 * time.Millisecond
		secondsPerCycle = 12.0
		minDuty         = 0.10
	)
	omega := 2 * math.Pi / secondsPerCycle
	floor := minLSB(r.brightness)

	r.log.Debug("Breathing started", "color", base)
	for f := 0; ; f++ {
		elapsed := float64(f) * frame.Seconds()
		phase := (math.Sin(omega*elapsed) + 1.0) / 2.0
		phase *= phase
		gain := minDuty + (1.0-minDuty)*phase

		if err := r.fill(scaleWithFloor(base, gain, floor)); err != nil {
			return err
		}
		if err := r.sleep(ctx, frame); err != nil {
			r.log.Debug("Breathing stopped")
			return r.fill(Off)
		}
	}
}
