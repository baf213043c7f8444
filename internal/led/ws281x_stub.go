//go:build !ws281x

package led

func openWS281x(HardwareConfig) (Strip, error) {
	return nil, ErrNoHardware
}
