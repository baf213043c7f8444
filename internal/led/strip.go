package led

import (
	"errors"
	"fmt"
	"sync"
)

// Strip is an addressable pixel strip. Leds exposes the frame buffer; Render
// pushes it to the hardware.
type Strip interface {
	Leds() []uint32
	Render() error
	Close() error
}

// HardwareConfig describes the physical strip.
type HardwareConfig struct {
	Driver     string // "sim" or "ws281x"
	Count      int
	Pin        int
	Brightness int
}

// ErrNoHardware is returned by Open for the ws281x driver in builds without the
// ws281x tag.
var ErrNoHardware = errors.New("binary built without ws281x support")

// Open returns the strip selected by cfg.Driver.
func Open(cfg HardwareConfig) (Strip, error) {
	if cfg.Count <= 0 {
		return nil, fmt.Errorf("invalid led count %d", cfg.Count)
	}
	switch cfg.Driver {
	case "", "sim":
		return NewSimStrip(cfg.Count), nil
	case "ws281x":
		return openWS281x(cfg)
	default:
		return nil, fmt.Errorf("unknown led driver %q", cfg.Driver)
	}
}

// SimStrip is an in-memory strip. OnRender, when set, sees a copy of every
// rendered frame.
type SimStrip struct {
	mu       sync.Mutex
	leds     []uint32
	renders  int
	OnRender func(frame []uint32)
}

func NewSimStrip(count int) *SimStrip {
	return &SimStrip{leds: make([]uint32, count)}
}

func (s *SimStrip) Leds() []uint32 { return s.leds }

func (s *SimStrip) Render() error {
	s.mu.Lock()
	s.renders++
	hook := s.OnRender
	s.mu.Unlock()

	if hook != nil {
		frame := make([]uint32, len(s.leds))
		copy(frame, s.leds)
		hook(frame)
	}
	return nil
}

// Renders counts Render calls.
func (s *SimStrip) Renders() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.renders
}

func (s *SimStrip) Close() error { return nil }
