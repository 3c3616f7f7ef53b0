//go:build !tinygo

package sx126x

import (
	"fmt"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"
)

// realPin wraps a gpio.PinIO to satisfy the Pin interface.
type realPin struct {
	gpio.PinIO
	stopWatch chan struct{}
}

func (p *realPin) Out(l Level) error {
	if l == High {
		return p.PinIO.Out(gpio.High)
	}
	return p.PinIO.Out(gpio.Low)
}

func toGpioPull(pull Pull) gpio.Pull {
	switch pull {
	case PullFloat:
		return gpio.Float
	case PullDown:
		return gpio.PullDown
	case PullUp:
		return gpio.PullUp
	default:
		return gpio.PullNoChange
	}
}

func toGpioEdge(edge Edge) gpio.Edge {
	switch edge {
	case RisingEdge:
		return gpio.RisingEdge
	case FallingEdge:
		return gpio.FallingEdge
	case BothEdges:
		return gpio.BothEdges
	default:
		return gpio.NoEdge
	}
}

func (p *realPin) In(pull Pull) error {
	return p.PinIO.In(toGpioPull(pull), gpio.NoEdge)
}

func (p *realPin) Read() Level {
	if p.PinIO.Read() == gpio.High {
		return High
	}
	return Low
}

// Watch enables edge detection with a pull-down, since DIO1 idles low.
func (p *realPin) Watch(edge Edge, handler func()) error {
	if err := p.PinIO.In(gpio.PullDown, toGpioEdge(edge)); err != nil {
		return err
	}

	stop := make(chan struct{})
	p.stopWatch = stop

	go func() {
		for {
			// -1 blocks until an edge or until In() resets detection.
			edged := p.PinIO.WaitForEdge(-1)
			select {
			case <-stop:
				return
			default:
			}
			if edged {
				handler()
			}
		}
	}()
	return nil
}

func (p *realPin) Unwatch() error {
	if p.stopWatch != nil {
		close(p.stopWatch)
		p.stopWatch = nil
	}
	// Disabling edge detection also unblocks WaitForEdge.
	return p.PinIO.In(gpio.PullDown, gpio.NoEdge)
}

// Config holds the configuration for the Linux/periph.io driver.
// Pin numbers use BCM numbering; the defaults match the Waveshare
// SX1262 LoRa HAT.
type Config struct {
	RadioConfig
	// NSSPin is the chip select pin, driven by the driver.
	// Optional. If not provided, spidev drives its own CE line.
	NSSPin int
	// BusyPin defaults to 20 if not provided.
	BusyPin int
	// ResetPin defaults to 18 if not provided.
	ResetPin int
	// DIO1Pin is the IRQ line.
	// Optional. If not provided, polling is used.
	DIO1Pin int
	// SpiBusPath is the path to the SPI bus (e.g., "/dev/spidev0.0").
	// Defaults to "/dev/spidev0.0" if not provided.
	SpiBusPath string
	// SpiClockHz is the SPI clock frequency in Hz.
	// Defaults to 1000000 (1MHz) if not provided.
	SpiClockHz int
	// BusyTimeout defaults to 100ms if not provided.
	BusyTimeout time.Duration
}

func openPin(role string, n int) (*realPin, error) {
	name := fmt.Sprintf("GPIO%d", n)
	p := gpioreg.ByName(name)
	if p == nil {
		return nil, fmt.Errorf("failed to open %s pin %s", role, name)
	}
	return &realPin{PinIO: p}, nil
}

// New creates and initializes a new SX1262 driver for Linux systems.
// It applies configuration defaults, initializes the GPIO and SPI
// interfaces using periph.io, and runs the radio bring-up sequence.
func New(c Config) (*Device, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize periph.io host: %w", err)
	}

	if c.SpiBusPath == "" {
		c.SpiBusPath = "/dev/spidev0.0"
	}
	if c.SpiClockHz == 0 {
		c.SpiClockHz = 1000000
	}
	if c.BusyPin == 0 {
		c.BusyPin = 20
	}
	if c.ResetPin == 0 {
		c.ResetPin = 18
	}

	p, err := spireg.Open(c.SpiBusPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open SPI port: %w", err)
	}

	// SX126x samples on the rising edge with the clock idling low: mode 0.
	conn, err := p.Connect(physic.Frequency(c.SpiClockHz)*physic.Hertz, spi.Mode0, 8)
	if err != nil {
		p.Close()
		return nil, fmt.Errorf("failed to create SPI connection: %w", err)
	}

	hwConfig := HardwareConfig{
		RadioConfig: c.RadioConfig,
		BusyTimeout: c.BusyTimeout,
	}

	busy, err := openPin("BUSY", c.BusyPin)
	if err != nil {
		p.Close()
		return nil, err
	}
	hwConfig.Busy = busy

	reset, err := openPin("NRESET", c.ResetPin)
	if err != nil {
		p.Close()
		return nil, err
	}
	hwConfig.Reset = reset

	if c.NSSPin != 0 {
		nss, err := openPin("NSS", c.NSSPin)
		if err != nil {
			p.Close()
			return nil, err
		}
		hwConfig.NSS = nss
	}

	if c.DIO1Pin != 0 {
		dio1, err := openPin("DIO1", c.DIO1Pin)
		if err != nil {
			p.Close()
			return nil, err
		}
		hwConfig.DIO1 = dio1
	}

	dev, err := NewWithHardware(hwConfig, conn)
	if err != nil {
		p.Close()
		return nil, err
	}

	dev.port = p
	return dev, nil
}
