//go:build tinygo

package sx126x

import (
	"fmt"
	"machine"
	"time"
)

// tinygoPin wraps a machine.Pin to satisfy the Pin interface.
type tinygoPin struct {
	pin machine.Pin
}

func (p *tinygoPin) Out(l Level) error {
	p.pin.Configure(machine.PinConfig{Mode: machine.PinOutput})
	p.pin.Set(bool(l))
	return nil
}

func (p *tinygoPin) In(pull Pull) error {
	mode := machine.PinInput
	switch pull {
	case PullUp:
		mode = machine.PinInputPullup
	case PullDown:
		mode = machine.PinInputPulldown
	}
	p.pin.Configure(machine.PinConfig{Mode: mode})
	return nil
}

func (p *tinygoPin) Read() Level {
	return Level(p.pin.Get())
}

func (p *tinygoPin) Watch(edge Edge, handler func()) error {
	var change machine.PinChange
	switch edge {
	case RisingEdge:
		change = machine.PinRising
	case FallingEdge:
		change = machine.PinFalling
	case BothEdges:
		change = machine.PinToggle
	default:
		return nil
	}

	return p.pin.SetInterrupt(change, func(machine.Pin) {
		handler()
	})
}

func (p *tinygoPin) Unwatch() error {
	// A nil callback disables the interrupt on targets that support it.
	return p.pin.SetInterrupt(0, nil)
}

// Config holds the configuration for the TinyGo driver. The SPI bus must
// already be configured (mode 0, MSB first).
type Config struct {
	RadioConfig
	SPI *machine.SPI
	// NSSPin is the chip select pin. Required: the hardware SPI block
	// does not hold chip select across a multi-byte frame. GP0 is not
	// accepted so an unset field is caught.
	NSSPin machine.Pin
	// BusyPin is the BUSY pin. Optional, use machine.NoPin to skip.
	BusyPin machine.Pin
	// ResetPin is the NRESET pin. Optional, use machine.NoPin to skip.
	ResetPin machine.Pin
	// DIO1Pin is the IRQ line. Optional, use machine.NoPin to poll.
	DIO1Pin machine.Pin
	// BusyTimeout defaults to 100ms if not provided.
	BusyTimeout time.Duration
}

func optionalPin(p machine.Pin) Pin {
	if p == machine.NoPin {
		return nil
	}
	return &tinygoPin{pin: p}
}

// New creates and initializes a new SX1262 driver for TinyGo systems.
func New(c Config) (*Device, error) {
	if c.SPI == nil {
		return nil, fmt.Errorf("%w: %w: SPI bus not configured", ErrPkg, ErrInvalidConfig)
	}
	if c.NSSPin == machine.NoPin || c.NSSPin == 0 {
		return nil, fmt.Errorf("%w: %w: NSS pin not configured", ErrPkg, ErrInvalidConfig)
	}
	hwConfig := HardwareConfig{
		RadioConfig: c.RadioConfig,
		NSS:         &tinygoPin{pin: c.NSSPin},
		Busy:        optionalPin(c.BusyPin),
		Reset:       optionalPin(c.ResetPin),
		DIO1:        optionalPin(c.DIO1Pin),
		BusyTimeout: c.BusyTimeout,
	}
	// machine.SPI leaves chip select to the driver, which holds NSS for the
	// whole command frame.
	return NewWithHardware(hwConfig, SPIFunc(c.SPI.Tx))
}
