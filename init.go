package sx126x

import (
	"fmt"
	"strconv"
	"time"
)

// PaConfig is the SetPaConfig parameter set. The defaults select the
// SX1262 high power PA at its +22 dBm optimum.
type PaConfig struct {
	DutyCycle byte
	HpMax     byte
	// DeviceSel is 0 for SX1262 and 1 for SX1261.
	DeviceSel byte
	PaLut     byte
}

type RadioConfig struct {
	// Frequency is the carrier frequency in Hz, between 150 and 960 MHz.
	// Defaults to 914200000 if not provided.
	Frequency uint32
	// TxPower is the output power in dBm, between -9 and 22.
	// Defaults to 22 if not provided.
	TxPower int8
	// RampTime is the PA ramp up time.
	// Defaults to Ramp200us if not provided.
	RampTime RampTime
	// PaConfig defaults to the SX1262 +22 dBm settings.
	PaConfig PaConfig
	// SpreadingFactor defaults to SF7 if not provided.
	SpreadingFactor SpreadingFactor
	// Bandwidth defaults to BW250 if not provided.
	Bandwidth Bandwidth
	// CodingRate defaults to CR4_6 if not provided.
	CodingRate CodingRate
	// LowDataRateOptimize should be set when the symbol time exceeds 16ms
	// (SF11 and SF12 at 125kHz).
	LowDataRateOptimize bool
	// PreambleLength in symbols.
	// Defaults to 8 if not provided.
	PreambleLength uint16
	HeaderType     HeaderType
	CRC            bool
	InvertIQ       bool
	// SyncWord defaults to SyncWordPrivate if not provided.
	SyncWord uint16
	// DisableDio2RfSwitch stops DIO2 from driving the antenna switch,
	// for boards that wire the switch elsewhere.
	DisableDio2RfSwitch bool
	// UseLDO selects the LDO instead of the DC-DC regulator.
	UseLDO bool
	// TcxoVoltage and TcxoDelay power an external TCXO from DIO3.
	// Leave TcxoDelay at zero for boards with a plain crystal.
	TcxoVoltage TcxoVoltage
	TcxoDelay   time.Duration
	// TxTimeout bounds a single transmission.
	// Defaults to 3s if not provided.
	TxTimeout time.Duration
	// RxTimeout bounds the wait for a reply.
	// Defaults to 3s if not provided.
	RxTimeout time.Duration
}

type HardwareConfig struct {
	RadioConfig
	// NSS is the chip select pin. Optional: leave nil when the SPI
	// peripheral drives chip select itself.
	NSS Pin
	// Busy is the BUSY pin. Optional but strongly recommended: without
	// it every command waits a fixed delay.
	Busy Pin
	// Reset is the NRESET pin. Optional.
	Reset Pin
	// DIO1 is the IRQ line. Optional. If not provided, polling is used.
	DIO1 Pin
	// BusyTimeout bounds the wait for BUSY to drop.
	// Defaults to 100ms if not provided.
	BusyTimeout time.Duration
}

const (
	minFrequencyHz = 150000000
	maxFrequencyHz = 960000000

	defaultFrequencyHz = 914200000
	defaultTxPower     = 22
	defaultPreamble    = 8
	defaultTxTimeout   = 3 * time.Second
	defaultRxTimeout   = 3 * time.Second
)

var defaultPaConfig = PaConfig{DutyCycle: 0x04, HpMax: 0x07, DeviceSel: 0x00, PaLut: 0x01}

func (c *RadioConfig) applyDefaults() {
	if c.Frequency == 0 {
		c.Frequency = defaultFrequencyHz
	}
	if c.TxPower == 0 {
		c.TxPower = defaultTxPower
	}
	if c.RampTime == 0 {
		c.RampTime = Ramp200us
	}
	if c.PaConfig == (PaConfig{}) {
		c.PaConfig = defaultPaConfig
	}
	if c.SpreadingFactor == 0 {
		c.SpreadingFactor = SF7
	}
	if c.Bandwidth == 0 {
		c.Bandwidth = BW250
	}
	if c.CodingRate == 0 {
		c.CodingRate = CR4_6
	}
	if c.PreambleLength == 0 {
		c.PreambleLength = defaultPreamble
	}
	if c.SyncWord == 0 {
		c.SyncWord = SyncWordPrivate
	}
	if c.TxTimeout == 0 {
		c.TxTimeout = defaultTxTimeout
	}
	if c.RxTimeout == 0 {
		c.RxTimeout = defaultRxTimeout
	}
}

func validateFrequency(hz uint32) error {
	if hz < minFrequencyHz || hz > maxFrequencyHz {
		return fmt.Errorf("%w: %w: frequency must be between 150 and 960 MHz", ErrPkg, ErrInvalidConfig)
	}
	return nil
}

func validatePower(dBm int8) error {
	if dBm < -9 || dBm > 22 {
		return fmt.Errorf("%w: %w: TX power must be between -9 and 22 dBm", ErrPkg, ErrInvalidConfig)
	}
	return nil
}

func (c *RadioConfig) validate() error {
	if err := validateFrequency(c.Frequency); err != nil {
		return err
	}
	if err := validatePower(c.TxPower); err != nil {
		return err
	}
	if c.SpreadingFactor < SF5 || c.SpreadingFactor > SF12 {
		return fmt.Errorf("%w: %w: spreading factor must be between 5 and 12", ErrPkg, ErrInvalidConfig)
	}
	if c.CodingRate < CR4_5 || c.CodingRate > CR4_8 {
		return fmt.Errorf("%w: %w: unknown coding rate", ErrPkg, ErrInvalidConfig)
	}
	if !c.Bandwidth.valid() {
		return fmt.Errorf("%w: %w: unknown bandwidth", ErrPkg, ErrInvalidConfig)
	}
	if _, err := timeoutSteps(c.TxTimeout); err != nil {
		return err
	}
	if _, err := timeoutSteps(c.RxTimeout); err != nil {
		return err
	}
	return nil
}

// NewWithHardware creates and initializes a new SX1262 driver with the
// provided hardware interfaces.
func NewWithHardware(c HardwareConfig, conn SPI) (*Device, error) {
	c.applyDefaults()
	if err := c.validate(); err != nil {
		return nil, err
	}

	hw, err := newTransport(conn, c.NSS, c.Busy, c.Reset, c.BusyTimeout)
	if err != nil {
		return nil, err
	}

	dev := &Device{
		config: c,
		hw:     hw,
	}

	globalLogger.Info("Initializing SX1262 SPI communication...")

	// DIO1 is active high on the SX126x.
	if dev.config.DIO1 != nil {
		if err := dev.config.DIO1.In(PullDown); err != nil {
			return nil, fmt.Errorf("%w: failed to configure DIO1 pin: %w", ErrPkg, err)
		}
		dev.irqChan = make(chan struct{}, 1)
		err := dev.config.DIO1.Watch(RisingEdge, func() {
			select {
			case dev.irqChan <- struct{}{}:
			default:
			}
		})
		if err != nil {
			return nil, fmt.Errorf("%w: failed to watch DIO1 pin: %w", ErrPkg, err)
		}
	}

	if err := dev.configure(); err != nil {
		if dev.config.DIO1 != nil {
			dev.config.DIO1.Unwatch()
		}
		return nil, err
	}

	globalLogger.Info("SX1262 initialized in standby. Ready to operate.")
	return dev, nil
}

// configure runs the bring-up sequence. The order follows the datasheet
// (section 14.2): packet type first, then RF, PA and modulation.
func (d *Device) configure() error {
	c := d.config.RadioConfig

	if err := d.hw.hardReset(); err != nil {
		return err
	}
	if err := d.setStandby(StandbyRC); err != nil {
		return err
	}
	s, err := d.getStatus()
	if err != nil {
		return err
	}
	globalLogger.Info("Status after reset: " + s.String())

	if err := d.setPacketType(PacketTypeLoRa); err != nil {
		return err
	}
	// Reading the packet type back proves both directions of the bus work.
	pt, err := d.getPacketType()
	if err != nil {
		return err
	}
	if pt != PacketTypeLoRa {
		return fmt.Errorf("%w: %w: packet type reads back as 0x%02X, check wiring/power", ErrPkg, ErrVerify, byte(pt))
	}

	regulator := RegulatorDCDC
	if c.UseLDO {
		regulator = RegulatorLDO
	}
	if err := d.setRegulatorMode(regulator); err != nil {
		return err
	}
	if c.TcxoDelay > 0 {
		if err := d.setDio3AsTcxoCtrl(c.TcxoVoltage, c.TcxoDelay); err != nil {
			return err
		}
	}
	if err := d.calibrateImage(c.Frequency); err != nil {
		return err
	}
	if err := d.setRfFrequency(c.Frequency); err != nil {
		return err
	}
	if err := d.setPaConfig(c.PaConfig); err != nil {
		return err
	}
	if err := d.setTxParams(c.TxPower, c.RampTime); err != nil {
		return err
	}
	if err := d.setBufferBaseAddress(0, 0); err != nil {
		return err
	}
	if err := d.setDio2AsRfSwitchCtrl(!c.DisableDio2RfSwitch); err != nil {
		return err
	}
	if err := d.setLoRaModulationParams(c.SpreadingFactor, c.Bandwidth, c.CodingRate, c.LowDataRateOptimize); err != nil {
		return err
	}
	if err := d.setLoRaPacketParams(d.packetParams(maxPayloadBytes)); err != nil {
		return err
	}
	if err := d.setSyncWord(c.SyncWord); err != nil {
		return err
	}
	if err := d.setDioIrqParams(pingIrqs, pingIrqs, IrqNone, IrqNone); err != nil {
		return err
	}
	if err := d.clearIrqStatus(IrqAll); err != nil {
		return err
	}

	globalLogger.Info("Configured " + strconv.FormatUint(uint64(c.Frequency), 10) + " Hz, " +
		strconv.Itoa(int(c.TxPower)) + " dBm, SF" + strconv.Itoa(int(c.SpreadingFactor)) +
		", BW " + c.Bandwidth.String() + ", CR " + c.CodingRate.String())
	return nil
}
