package sx126x

import (
	"fmt"
	"strings"
)

// ChipMode is bits 6:4 of the status byte.
type ChipMode byte

const (
	ModeUnused    ChipMode = 0x0
	ModeRFU       ChipMode = 0x1
	ModeStandbyRC ChipMode = 0x2
	ModeStandbyXO ChipMode = 0x3
	ModeFS        ChipMode = 0x4
	ModeRX        ChipMode = 0x5
	ModeTX        ChipMode = 0x6
)

func (m ChipMode) String() string {
	switch m {
	case ModeStandbyRC:
		return "STBY_RC"
	case ModeStandbyXO:
		return "STBY_XOSC"
	case ModeFS:
		return "FS"
	case ModeRX:
		return "RX"
	case ModeTX:
		return "TX"
	default:
		return fmt.Sprintf("mode(%d)", byte(m))
	}
}

// CommandStatus is bits 3:1 of the status byte.
type CommandStatus byte

const (
	CommandReserved      CommandStatus = 0x0
	CommandRFU           CommandStatus = 0x1
	CommandDataAvailable CommandStatus = 0x2
	CommandTimeout       CommandStatus = 0x3
	CommandProcessingErr CommandStatus = 0x4
	CommandExecFailure   CommandStatus = 0x5
	CommandTxDone        CommandStatus = 0x6
)

func (c CommandStatus) String() string {
	switch c {
	case CommandDataAvailable:
		return "data available"
	case CommandTimeout:
		return "command timeout"
	case CommandProcessingErr:
		return "command processing error"
	case CommandExecFailure:
		return "failure to execute command"
	case CommandTxDone:
		return "tx done"
	default:
		return "ok"
	}
}

// Failed reports whether the chip rejected the last command.
func (c CommandStatus) Failed() bool {
	return c == CommandTimeout || c == CommandProcessingErr || c == CommandExecFailure
}

// Status is the status byte the chip shifts out on every transfer.
type Status byte

func (s Status) ChipMode() ChipMode {
	return ChipMode((s >> 4) & 0x07)
}

func (s Status) CommandStatus() CommandStatus {
	return CommandStatus((s >> 1) & 0x07)
}

func (s Status) String() string {
	return fmt.Sprintf("Status(0x%02X, mode=%s, cmd=%s)", byte(s), s.ChipMode(), s.CommandStatus())
}

// checkStatus turns a failed command status into an error wrapping ErrCommand.
func checkStatus(op string, s Status) error {
	if s.CommandStatus().Failed() {
		return fmt.Errorf("%w: %w: %s: %s", ErrPkg, ErrCommand, op, s.CommandStatus())
	}
	return nil
}

// IrqMask is a set of IRQ flags as used by SetDioIrqParams, GetIrqStatus
// and ClearIrqStatus.
type IrqMask uint16

const (
	IrqTxDone           IrqMask = 1 << 0
	IrqRxDone           IrqMask = 1 << 1
	IrqPreambleDetected IrqMask = 1 << 2
	IrqSyncWordValid    IrqMask = 1 << 3
	IrqHeaderValid      IrqMask = 1 << 4
	IrqHeaderErr        IrqMask = 1 << 5
	IrqCrcErr           IrqMask = 1 << 6
	IrqCadDone          IrqMask = 1 << 7
	IrqCadDetected      IrqMask = 1 << 8
	IrqTimeout          IrqMask = 1 << 9

	IrqNone IrqMask = 0x0000
	IrqAll  IrqMask = 0x03FF
)

var irqNames = []struct {
	bit  IrqMask
	name string
}{
	{IrqTxDone, "TxDone"},
	{IrqRxDone, "RxDone"},
	{IrqPreambleDetected, "PreambleDetected"},
	{IrqSyncWordValid, "SyncWordValid"},
	{IrqHeaderValid, "HeaderValid"},
	{IrqHeaderErr, "HeaderErr"},
	{IrqCrcErr, "CrcErr"},
	{IrqCadDone, "CadDone"},
	{IrqCadDetected, "CadDetected"},
	{IrqTimeout, "Timeout"},
}

// Has reports whether all bits of f are set.
func (m IrqMask) Has(f IrqMask) bool {
	return m&f == f
}

func (m IrqMask) String() string {
	if m == IrqNone {
		return "none"
	}
	var names []string
	for _, n := range irqNames {
		if m&n.bit != 0 {
			names = append(names, n.name)
		}
	}
	return strings.Join(names, "|")
}

// DeviceErrors is the result of GetDeviceErrors.
type DeviceErrors uint16

const (
	DeviceErrRC64kCalib DeviceErrors = 1 << 0
	DeviceErrRC13MCalib DeviceErrors = 1 << 1
	DeviceErrPLLCalib   DeviceErrors = 1 << 2
	DeviceErrADCCalib   DeviceErrors = 1 << 3
	DeviceErrImgCalib   DeviceErrors = 1 << 4
	DeviceErrXOSCStart  DeviceErrors = 1 << 5
	DeviceErrPLLLock    DeviceErrors = 1 << 6
	DeviceErrPARamp     DeviceErrors = 1 << 8
)

// RxBufferStatus locates the last received payload in the data buffer.
type RxBufferStatus struct {
	PayloadLength byte
	StartPointer  byte
}

// PacketStatus holds the LoRa link figures of the last received packet.
type PacketStatus struct {
	// RSSI is the average RSSI over the packet, in dBm.
	RSSI float32
	// SNR is the estimated signal to noise ratio, in dB.
	SNR float32
	// SignalRSSI is the RSSI of the despread signal, in dBm.
	SignalRSSI float32
}

func decodePacketStatus(b []byte) PacketStatus {
	return PacketStatus{
		RSSI:       -float32(b[0]) / 2,
		SNR:        float32(int8(b[1])) / 4,
		SignalRSSI: -float32(b[2]) / 2,
	}
}
