package sx126x

// Level is the logic level on a line.
type Level bool

const (
	Low  Level = false
	High Level = true
)

func (l Level) String() string {
	if l {
		return "High"
	}
	return "Low"
}

// Pull selects the input bias of a line.
type Pull uint8

const (
	PullNoChange Pull = iota
	PullFloat
	PullDown
	PullUp
)

// Edge selects which transition a watched line reports.
type Edge uint8

const (
	NoEdge Edge = iota
	RisingEdge
	FallingEdge
	BothEdges
)

// SPI is a full-duplex, mode 0, MSB first link to the radio.
//
// When the driver is given an NSS pin it frames each command itself and
// Tx must leave chip select alone. Without one, every Tx call has to be a
// complete chip select window, which is what Linux spidev does.
type SPI interface {
	// Tx clocks out w and stores what the radio shifted back in r.
	// w and r may be the same slice.
	Tx(w, r []byte) error
}

// SPIFunc adapts a plain transfer function to SPI.
type SPIFunc func(w, r []byte) error

func (f SPIFunc) Tx(w, r []byte) error {
	return f(w, r)
}

// Pin is one of the radio's control lines. NSS and NRESET are outputs;
// BUSY and DIO1 are inputs.
type Pin interface {
	Out(l Level) error
	In(pull Pull) error
	Read() Level
	// Watch calls handler on every matching edge until Unwatch.
	// handler may run on another goroutine or in interrupt context.
	Watch(edge Edge, handler func()) error
	Unwatch() error
}
