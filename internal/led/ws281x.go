//go:build ws281x

package led

import (
	"fmt"

	ws2811 "github.com/rpi-ws281x/rpi-ws281x-go"
)

type ws281xStrip struct {
	dev *ws2811.WS2811
}

func openWS281x(cfg HardwareConfig) (Strip, error) {
	opt := ws2811.DefaultOptions
	opt.Channels[0].GpioPin = cfg.Pin
	opt.Channels[0].Brightness = cfg.Brightness
	opt.Channels[0].LedCount = cfg.Count

	dev, err := ws2811.MakeWS2811(&opt)
	if err != nil {
		return nil, fmt.Errorf("makeWS2811: %w", err)
	}
	if err := dev.Init(); err != nil {
		return nil, fmt.Errorf("ws2811 init: %w", err)
	}
	return &ws281xStrip{dev: dev}, nil
}

func (s *ws281xStrip) Leds() []uint32 { return s.dev.Leds(0) }

func (s *ws281xStrip) Render() error { return s.dev.Render() }

func (s *ws281xStrip) Close() error {
	leds := s.dev.Leds(0)
	for i := range leds {
		leds[i] = uint32(Off)
	}
	err := s.dev.Render()
	s.dev.Fini()
	return err
}
