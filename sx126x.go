package sx126x

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"
)

var (
	ErrPkg            = errors.New("sx126x")
	ErrBusyTimeout    = errors.New("timeout waiting for BUSY to drop")
	ErrTimeout        = errors.New("timeout waiting for device")
	ErrCommand        = errors.New("command rejected by device")
	ErrVerify         = errors.New("failed to verify device connection")
	ErrFrameTooLarge  = errors.New("frame too large")
	ErrInvalidTimeout = errors.New("invalid timeout")
	ErrInvalidConfig  = errors.New("invalid configuration")
)

// Device is an SX1262 radio attached over SPI.
// All exported methods are concurrent safe.
type Device struct {
	config   HardwareConfig
	hw       *transport
	irqChan  chan struct{}
	port     io.Closer
	mu       sync.Mutex
	sleeping bool
}

func (d *Device) String() string {
	d.mu.Lock()
	defer d.mu.Unlock()

	return fmt.Sprintf("SX1262(Frequency=%dHz, Power=%ddBm, SF=%d, BW=%s, CR=%s, Preamble=%d)",
		d.config.Frequency,
		d.config.TxPower,
		d.config.SpreadingFactor,
		d.config.Bandwidth,
		d.config.CodingRate,
		d.config.PreambleLength,
	)
}

// Close puts the radio to sleep, closes the SPI port and releases the IRQ pin.
func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.setSleep(false); err != nil {
		globalLogger.Warn("Failed to put SX1262 to sleep")
	} else {
		globalLogger.Info("SX1262 put to sleep.")
	}

	if d.port != nil {
		if err := d.port.Close(); err != nil {
			globalLogger.Warn("Failed to close SPI port")
		}
		globalLogger.Info("SPI bus closed.")
	}

	if d.config.DIO1 != nil {
		d.config.DIO1.Unwatch()
	}
	globalLogger.Info("GPIO interface closed.")

	return nil
}

// --- SX126x command plumbing ---

// exec issues a set command. A sleeping chip is woken first.
func (d *Device) exec(opcode byte, params ...byte) error {
	if err := d.ensureAwake(); err != nil {
		return err
	}
	return d.hw.writeCommand([]byte{opcode}, params)
}

// query issues a get command and checks the returned status.
func (d *Device) query(op string, opcode byte, args, data []byte) (Status, error) {
	if err := d.ensureAwake(); err != nil {
		return 0, err
	}
	s, err := d.hw.readCommand(opcode, args, data)
	if err != nil {
		return 0, err
	}
	return s, checkStatus(op, s)
}

func (d *Device) ensureAwake() error {
	if !d.sleeping {
		return nil
	}
	if err := d.hw.wakeup(); err != nil {
		return err
	}
	d.sleeping = false
	return nil
}

func be16(v uint16) (byte, byte) {
	return byte(v >> 8), byte(v)
}

// timeoutSteps converts a duration into 24 bit RTC steps of 15.625us.
func timeoutSteps(timeout time.Duration) (uint32, error) {
	if timeout < 0 {
		return 0, fmt.Errorf("%w: %w: negative timeout", ErrPkg, ErrInvalidTimeout)
	}
	steps := uint64(timeout.Microseconds()) * rtcStepsPerMs / 1000
	if steps > maxTimeoutSteps {
		return 0, fmt.Errorf("%w: %w: %s exceeds %s", ErrPkg, ErrInvalidTimeout, timeout, maxTimeout)
	}
	return uint32(steps), nil
}

// maxTimeout is the longest Tx/Rx timeout the chip accepts.
var maxTimeout = time.Duration(maxTimeoutSteps) * time.Second / (rtcStepsPerMs * 1000)

// --- Operating modes ---

func (d *Device) setStandby(mode StandbyMode) error {
	return d.exec(cmdSetStandby, byte(mode))
}

// SetStandby puts the chip in STDBY_RC or STDBY_XOSC.
func (d *Device) SetStandby(mode StandbyMode) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.setStandby(mode)
}

func (d *Device) setSleep(warm bool) error {
	if err := d.ensureAwake(); err != nil {
		return err
	}
	var cfg byte
	if warm {
		cfg |= sleepWarmStart
	}
	// BUSY stays high while the chip sleeps, so mark it before anything
	// else waits on it.
	if err := d.hw.writeCommand([]byte{cmdSetSleep}, []byte{cfg}); err != nil {
		return err
	}
	d.sleeping = true
	return nil
}

// SetSleep puts the chip in sleep mode. With warm set the configuration is
// retained. The next command wakes the chip up again.
func (d *Device) SetSleep(warm bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.setSleep(warm)
}

// SetFs puts the chip in frequency synthesis mode.
func (d *Device) SetFs() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.exec(cmdSetFs)
}

func (d *Device) setTx(timeout time.Duration) error {
	steps, err := timeoutSteps(timeout)
	if err != nil {
		return err
	}
	return d.exec(cmdSetTx, byte(steps>>16), byte(steps>>8), byte(steps))
}

// SetTx starts transmitting the buffer. A zero timeout disables it.
func (d *Device) SetTx(timeout time.Duration) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.setTx(timeout)
}

func (d *Device) setRx(timeout time.Duration) error {
	steps, err := timeoutSteps(timeout)
	if err != nil {
		return err
	}
	return d.exec(cmdSetRx, byte(steps>>16), byte(steps>>8), byte(steps))
}

// SetRx starts listening. A zero timeout means single packet mode with
// no timeout.
func (d *Device) SetRx(timeout time.Duration) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.setRx(timeout)
}

// SetRxContinuous listens until told otherwise.
func (d *Device) SetRxContinuous() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.exec(cmdSetRx, 0xFF, 0xFF, 0xFF)
}

func (d *Device) getStatus() (Status, error) {
	return d.query("GetStatus", cmdGetStatus, nil, nil)
}

// GetStatus returns the chip mode and the status of the last command.
func (d *Device) GetStatus() (Status, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.getStatus()
}

// --- Radio configuration ---

func (d *Device) setPacketType(p PacketType) error {
	return d.exec(cmdSetPacketType, byte(p))
}

// SetPacketType selects GFSK or LoRa. It must be called in standby.
func (d *Device) SetPacketType(p PacketType) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.setPacketType(p)
}

func (d *Device) getPacketType() (PacketType, error) {
	var b [1]byte
	_, err := d.query("GetPacketType", cmdGetPacketType, nil, b[:])
	return PacketType(b[0]), err
}

// GetPacketType returns the current packet type.
func (d *Device) GetPacketType() (PacketType, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.getPacketType()
}

func (d *Device) setRegulatorMode(m RegulatorMode) error {
	return d.exec(cmdSetRegulatorMode, byte(m))
}

// SetRegulatorMode selects the LDO or the DC-DC converter.
func (d *Device) SetRegulatorMode(m RegulatorMode) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.setRegulatorMode(m)
}

// Calibrate runs the calibration blocks selected by params (CalibAll etc).
func (d *Device) Calibrate(params byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.exec(cmdCalibrate, params&CalibAll)
}

func (d *Device) calibrateImage(hz uint32) error {
	var f1, f2 byte
	switch {
	case hz > 900000000:
		f1, f2 = 0xE1, 0xE9
	case hz > 850000000:
		f1, f2 = 0xD7, 0xDB
	case hz > 770000000:
		f1, f2 = 0xC1, 0xC5
	case hz > 460000000:
		f1, f2 = 0x75, 0x81
	default:
		f1, f2 = 0x6B, 0x6F
	}
	return d.exec(cmdCalibrateImage, f1, f2)
}

// CalibrateImage calibrates the image rejection for the band containing hz.
func (d *Device) CalibrateImage(hz uint32) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calibrateImage(hz)
}

func frequencySteps(hz uint32) uint32 {
	return uint32((uint64(hz) << 25) / xtalFreqHz)
}

func (d *Device) setRfFrequency(hz uint32) error {
	steps := frequencySteps(hz)
	return d.exec(cmdSetRfFrequency, byte(steps>>24), byte(steps>>16), byte(steps>>8), byte(steps))
}

// SetRfFrequency sets the carrier frequency in Hz.
func (d *Device) SetRfFrequency(hz uint32) error {
	if err := validateFrequency(hz); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.setRfFrequency(hz); err != nil {
		return err
	}
	d.config.Frequency = hz
	return nil
}

func (d *Device) setPaConfig(c PaConfig) error {
	return d.exec(cmdSetPaConfig, c.DutyCycle, c.HpMax, c.DeviceSel, c.PaLut)
}

// SetPaConfig configures the power amplifier.
func (d *Device) SetPaConfig(c PaConfig) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.setPaConfig(c); err != nil {
		return err
	}
	d.config.PaConfig = c
	return nil
}

func (d *Device) setTxParams(power int8, ramp RampTime) error {
	return d.exec(cmdSetTxParams, byte(power), byte(ramp))
}

// SetTxParams sets the output power in dBm (-9 to +22) and the PA ramp time.
func (d *Device) SetTxParams(power int8, ramp RampTime) error {
	if err := validatePower(power); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.setTxParams(power, ramp); err != nil {
		return err
	}
	d.config.TxPower = power
	d.config.RampTime = ramp
	return nil
}

// SetCurrentLimit sets the over current protection in mA, in 2.5mA steps.
func (d *Device) SetCurrentLimit(mA float32) error {
	if mA < 0 || mA > 140 {
		return fmt.Errorf("%w: %w: current limit must be between 0 and 140 mA", ErrPkg, ErrInvalidConfig)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.writeRegister(regOCPConfig, []byte{byte(mA / 2.5)})
}

func (d *Device) setBufferBaseAddress(tx, rx byte) error {
	return d.exec(cmdSetBufferBaseAddress, tx, rx)
}

// SetBufferBaseAddress sets where TX and RX payloads start in the data buffer.
func (d *Device) SetBufferBaseAddress(tx, rx byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.setBufferBaseAddress(tx, rx)
}

func (d *Device) setDio2AsRfSwitchCtrl(enable bool) error {
	var v byte
	if enable {
		v = 1
	}
	return d.exec(cmdSetDio2AsRfSwitchCtrl, v)
}

// SetDio2AsRfSwitchCtrl lets DIO2 drive the antenna switch: high in TX,
// low otherwise.
func (d *Device) SetDio2AsRfSwitchCtrl(enable bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.setDio2AsRfSwitchCtrl(enable)
}

func (d *Device) setDio3AsTcxoCtrl(v TcxoVoltage, delay time.Duration) error {
	steps, err := timeoutSteps(delay)
	if err != nil {
		return err
	}
	return d.exec(cmdSetDio3AsTcxoCtrl, byte(v), byte(steps>>16), byte(steps>>8), byte(steps))
}

// SetDio3AsTcxoCtrl powers an external TCXO from DIO3 and waits delay for
// it to start before using it.
func (d *Device) SetDio3AsTcxoCtrl(v TcxoVoltage, delay time.Duration) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.setDio3AsTcxoCtrl(v, delay)
}

func (d *Device) setLoRaModulationParams(sf SpreadingFactor, bw Bandwidth, cr CodingRate, ldro bool) error {
	var l byte
	if ldro {
		l = 1
	}
	return d.exec(cmdSetModulationParams, byte(sf), byte(bw), byte(cr), l)
}

// SetLoRaModulationParams sets spreading factor, bandwidth, coding rate and
// low data rate optimization.
func (d *Device) SetLoRaModulationParams(sf SpreadingFactor, bw Bandwidth, cr CodingRate, ldro bool) error {
	if sf < SF5 || sf > SF12 {
		return fmt.Errorf("%w: %w: spreading factor must be between 5 and 12", ErrPkg, ErrInvalidConfig)
	}
	if !bw.valid() {
		return fmt.Errorf("%w: %w: unknown bandwidth", ErrPkg, ErrInvalidConfig)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.setLoRaModulationParams(sf, bw, cr, ldro); err != nil {
		return err
	}
	d.config.SpreadingFactor = sf
	d.config.Bandwidth = bw
	d.config.CodingRate = cr
	d.config.LowDataRateOptimize = ldro
	return nil
}

// LoRaPacketParams is the LoRa flavour of SetPacketParams.
type LoRaPacketParams struct {
	PreambleLength uint16
	HeaderType     HeaderType
	PayloadLength  byte
	CRC            bool
	InvertIQ       bool
}

func (d *Device) setLoRaPacketParams(p LoRaPacketParams) error {
	hi, lo := be16(p.PreambleLength)
	var crc, iq byte
	if p.CRC {
		crc = 1
	}
	if p.InvertIQ {
		iq = 1
	}
	return d.exec(cmdSetPacketParams, hi, lo, byte(p.HeaderType), p.PayloadLength, crc, iq)
}

// SetLoRaPacketParams sets preamble length, header type, payload length,
// CRC and IQ inversion.
func (d *Device) SetLoRaPacketParams(p LoRaPacketParams) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.setLoRaPacketParams(p)
}

// packetParams builds the packet parameters from the configuration.
func (d *Device) packetParams(payloadLength byte) LoRaPacketParams {
	return LoRaPacketParams{
		PreambleLength: d.config.PreambleLength,
		HeaderType:     d.config.HeaderType,
		PayloadLength:  payloadLength,
		CRC:            d.config.CRC,
		InvertIQ:       d.config.InvertIQ,
	}
}

// --- IRQ handling ---

func (d *Device) setDioIrqParams(irq, dio1, dio2, dio3 IrqMask) error {
	i1, i0 := be16(uint16(irq))
	a1, a0 := be16(uint16(dio1))
	b1, b0 := be16(uint16(dio2))
	c1, c0 := be16(uint16(dio3))
	return d.exec(cmdSetDioIrqParams, i1, i0, a1, a0, b1, b0, c1, c0)
}

// SetDioIrqParams enables the IRQs in irq and routes them to the DIO lines.
func (d *Device) SetDioIrqParams(irq, dio1, dio2, dio3 IrqMask) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.setDioIrqParams(irq, dio1, dio2, dio3)
}

func (d *Device) getIrqStatus() (IrqMask, error) {
	var b [2]byte
	_, err := d.query("GetIrqStatus", cmdGetIrqStatus, nil, b[:])
	return IrqMask(uint16(b[0])<<8 | uint16(b[1])), err
}

// GetIrqStatus returns the raised IRQ flags.
func (d *Device) GetIrqStatus() (IrqMask, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.getIrqStatus()
}

func (d *Device) clearIrqStatus(m IrqMask) error {
	hi, lo := be16(uint16(m))
	return d.exec(cmdClearIrqStatus, hi, lo)
}

// ClearIrqStatus clears the given IRQ flags.
func (d *Device) ClearIrqStatus(m IrqMask) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.clearIrqStatus(m)
}

// --- Buffer, registers, diagnostics ---

func (d *Device) writeBuffer(offset byte, data []byte) error {
	return d.hw.writeCommand([]byte{cmdWriteBuffer, offset}, data)
}

// WriteBuffer writes data into the chip's data buffer at offset.
func (d *Device) WriteBuffer(offset byte, data []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.ensureAwake(); err != nil {
		return err
	}
	return d.writeBuffer(offset, data)
}

func (d *Device) readBuffer(offset byte, n int) ([]byte, error) {
	data := make([]byte, n)
	if _, err := d.query("ReadBuffer", cmdReadBuffer, []byte{offset}, data); err != nil {
		return nil, err
	}
	return data, nil
}

// ReadBuffer reads n bytes of the data buffer from offset.
func (d *Device) ReadBuffer(offset byte, n int) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.readBuffer(offset, n)
}

func (d *Device) writeRegister(addr uint16, data []byte) error {
	if err := d.ensureAwake(); err != nil {
		return err
	}
	hi, lo := be16(addr)
	return d.hw.writeCommand([]byte{cmdWriteRegister, hi, lo}, data)
}

// WriteRegister writes data to consecutive registers starting at addr.
func (d *Device) WriteRegister(addr uint16, data []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.writeRegister(addr, data)
}

// ReadRegister reads n consecutive registers starting at addr.
func (d *Device) ReadRegister(addr uint16, n int) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	hi, lo := be16(addr)
	data := make([]byte, n)
	if _, err := d.query("ReadRegister", cmdReadRegister, []byte{hi, lo}, data); err != nil {
		return nil, err
	}
	return data, nil
}

func (d *Device) setSyncWord(w uint16) error {
	hi, lo := be16(w)
	return d.writeRegister(regLoRaSyncWordMSB, []byte{hi, lo})
}

// SetSyncWord sets the LoRa sync word (SyncWordPrivate or SyncWordPublic).
func (d *Device) SetSyncWord(w uint16) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.setSyncWord(w); err != nil {
		return err
	}
	d.config.SyncWord = w
	return nil
}

func (d *Device) getRxBufferStatus() (RxBufferStatus, error) {
	var b [2]byte
	_, err := d.query("GetRxBufferStatus", cmdGetRxBufferStatus, nil, b[:])
	return RxBufferStatus{PayloadLength: b[0], StartPointer: b[1]}, err
}

// GetRxBufferStatus returns the length and start of the last received payload.
func (d *Device) GetRxBufferStatus() (RxBufferStatus, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.getRxBufferStatus()
}

func (d *Device) getPacketStatus() (PacketStatus, error) {
	var b [3]byte
	if _, err := d.query("GetPacketStatus", cmdGetPacketStatus, nil, b[:]); err != nil {
		return PacketStatus{}, err
	}
	return decodePacketStatus(b[:]), nil
}

// GetPacketStatus returns RSSI and SNR of the last received packet.
func (d *Device) GetPacketStatus() (PacketStatus, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.getPacketStatus()
}

// GetDeviceErrors returns the latched device error flags.
func (d *Device) GetDeviceErrors() (DeviceErrors, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	var b [2]byte
	_, err := d.query("GetDeviceErrors", cmdGetDeviceErrors, nil, b[:])
	return DeviceErrors(uint16(b[0])<<8 | uint16(b[1])), err
}

// ClearDeviceErrors clears all device error flags.
func (d *Device) ClearDeviceErrors() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.exec(cmdClearDeviceErrors, 0x00, 0x00)
}
