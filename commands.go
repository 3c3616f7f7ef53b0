package sx126x

// SX126x opcodes (DS.SX1261-2, section 13).
const (
	cmdSetSleep              = 0x84
	cmdSetStandby            = 0x80
	cmdSetFs                 = 0xC1
	cmdSetTx                 = 0x83
	cmdSetRx                 = 0x82
	cmdSetRegulatorMode      = 0x96
	cmdCalibrate             = 0x89
	cmdCalibrateImage        = 0x98
	cmdSetPaConfig           = 0x95
	cmdSetDioIrqParams       = 0x08
	cmdGetIrqStatus          = 0x12
	cmdClearIrqStatus        = 0x02
	cmdSetDio2AsRfSwitchCtrl = 0x9D
	cmdSetDio3AsTcxoCtrl     = 0x97
	cmdSetRfFrequency        = 0x86
	cmdSetPacketType         = 0x8A
	cmdGetPacketType         = 0x11
	cmdSetTxParams           = 0x8E
	cmdSetModulationParams   = 0x8B
	cmdSetPacketParams       = 0x8C
	cmdSetBufferBaseAddress  = 0x8F
	cmdGetStatus             = 0xC0
	cmdGetRxBufferStatus     = 0x13
	cmdGetPacketStatus       = 0x14
	cmdGetDeviceErrors       = 0x17
	cmdClearDeviceErrors     = 0x07
	cmdWriteRegister         = 0x0D
	cmdReadRegister          = 0x1D
	cmdWriteBuffer           = 0x0E
	cmdReadBuffer            = 0x1E
)

const _NOP = 0x00

// Registers.
const (
	regLoRaSyncWordMSB = 0x0740
	regOCPConfig       = 0x08E7
)

const (
	// SyncWordPrivate is the LoRa sync word for private networks.
	SyncWordPrivate uint16 = 0x1424
	// SyncWordPublic is the LoRa sync word used by LoRaWAN.
	SyncWordPublic uint16 = 0x3444
)

// maxPayloadBytes is the largest payload a single command carries: a full
// LoRa packet in or out of the data buffer.
const maxPayloadBytes = 255

// maxHeaderBytes covers the longest preamble in front of a payload:
// ReadRegister sends opcode, two address bytes and a status NOP.
const maxHeaderBytes = 4

const maxFrameBytes = maxPayloadBytes + maxHeaderBytes

const xtalFreqHz = 32000000

// Tx/Rx timeouts count RTC steps of 15.625us, 64 per millisecond.
const rtcStepsPerMs = 64

// maxTimeoutSteps is the largest 24 bit timeout. 0xFFFFFF is reserved for
// continuous RX, so a timeout may go up to one step below it.
const maxTimeoutSteps = 0xFFFFFE

type StandbyMode byte

const (
	StandbyRC   StandbyMode = 0x00
	StandbyXOSC StandbyMode = 0x01
)

func (m StandbyMode) String() string {
	switch m {
	case StandbyRC:
		return "STDBY_RC"
	case StandbyXOSC:
		return "STDBY_XOSC"
	default:
		return "unknown"
	}
}

type PacketType byte

const (
	PacketTypeGFSK PacketType = 0x00
	PacketTypeLoRa PacketType = 0x01
)

func (p PacketType) String() string {
	switch p {
	case PacketTypeGFSK:
		return "GFSK"
	case PacketTypeLoRa:
		return "LoRa"
	default:
		return "unknown"
	}
}

type RegulatorMode byte

const (
	RegulatorLDO  RegulatorMode = 0x00
	RegulatorDCDC RegulatorMode = 0x01
)

type RampTime byte

const (
	Ramp10us   RampTime = 0x00
	Ramp20us   RampTime = 0x01
	Ramp40us   RampTime = 0x02
	Ramp80us   RampTime = 0x03
	Ramp200us  RampTime = 0x04
	Ramp800us  RampTime = 0x05
	Ramp1700us RampTime = 0x06
	Ramp3400us RampTime = 0x07
)

type SpreadingFactor byte

const (
	SF5  SpreadingFactor = 0x05
	SF6  SpreadingFactor = 0x06
	SF7  SpreadingFactor = 0x07
	SF8  SpreadingFactor = 0x08
	SF9  SpreadingFactor = 0x09
	SF10 SpreadingFactor = 0x0A
	SF11 SpreadingFactor = 0x0B
	SF12 SpreadingFactor = 0x0C
)

type Bandwidth byte

const (
	BW7   Bandwidth = 0x00
	BW10  Bandwidth = 0x08
	BW15  Bandwidth = 0x01
	BW20  Bandwidth = 0x09
	BW31  Bandwidth = 0x02
	BW41  Bandwidth = 0x0A
	BW62  Bandwidth = 0x03
	BW125 Bandwidth = 0x04
	BW250 Bandwidth = 0x05
	BW500 Bandwidth = 0x06
)

func (b Bandwidth) valid() bool {
	switch b {
	case BW7, BW10, BW15, BW20, BW31, BW41, BW62, BW125, BW250, BW500:
		return true
	}
	return false
}

func (b Bandwidth) String() string {
	switch b {
	case BW7:
		return "7.8kHz"
	case BW10:
		return "10.4kHz"
	case BW15:
		return "15.6kHz"
	case BW20:
		return "20.8kHz"
	case BW31:
		return "31.25kHz"
	case BW41:
		return "41.7kHz"
	case BW62:
		return "62.5kHz"
	case BW125:
		return "125kHz"
	case BW250:
		return "250kHz"
	case BW500:
		return "500kHz"
	default:
		return "unknown"
	}
}

type CodingRate byte

const (
	CR4_5 CodingRate = 0x01
	CR4_6 CodingRate = 0x02
	CR4_7 CodingRate = 0x03
	CR4_8 CodingRate = 0x04
)

func (c CodingRate) String() string {
	switch c {
	case CR4_5:
		return "4/5"
	case CR4_6:
		return "4/6"
	case CR4_7:
		return "4/7"
	case CR4_8:
		return "4/8"
	default:
		return "unknown"
	}
}

type HeaderType byte

const (
	HeaderExplicit HeaderType = 0x00
	HeaderImplicit HeaderType = 0x01
)

// TcxoVoltage is the supply voltage DIO3 provides to an external TCXO.
type TcxoVoltage byte

const (
	Tcxo1_6V TcxoVoltage = 0x00
	Tcxo1_7V TcxoVoltage = 0x01
	Tcxo1_8V TcxoVoltage = 0x02
	Tcxo2_2V TcxoVoltage = 0x03
	Tcxo2_4V TcxoVoltage = 0x04
	Tcxo2_7V TcxoVoltage = 0x05
	Tcxo3_0V TcxoVoltage = 0x06
	Tcxo3_3V TcxoVoltage = 0x07
)

// Calibrate parameter bits.
const (
	CalibRC64k    = 1 << 0
	CalibRC13M    = 1 << 1
	CalibPLL      = 1 << 2
	CalibADCPulse = 1 << 3
	CalibADCBulkN = 1 << 4
	CalibADCBulkP = 1 << 5
	CalibImage    = 1 << 6
	CalibAll      = 0x7F
)

// SetSleep configuration bits.
const (
	sleepWarmStart = 1 << 2
	sleepRTCWakeup = 1 << 0
)
