package sx126x

import (
	"fmt"
	"time"
)

const (
	// Datasheet 8.1 asks for NRESET low for at least 100us; 10ms gives
	// slow supplies room to settle as well.
	resetHoldTime = 10 * time.Millisecond
	// defaultBusyTimeout bounds the wait for BUSY to drop. Calibration is
	// the slowest command and completes well within it.
	defaultBusyTimeout = 100 * time.Millisecond
	// busySettleTime is used in place of polling when BUSY is not wired.
	busySettleTime = time.Millisecond
	busyPollTime   = 100 * time.Microsecond
	// csSettleTime pads both NSS edges.
	csSettleTime = time.Microsecond
	// wakeupHoldTime is how long NSS is held low to wake the chip from sleep.
	wakeupHoldTime = time.Millisecond
)

// transport frames SX126x commands on the SPI bus. It owns NSS, BUSY and
// NRESET; it is not safe for concurrent use and relies on Device.mu.
type transport struct {
	conn  SPI
	nss   Pin // optional, nil when the SPI peripheral drives NSS
	busy  Pin // optional, nil falls back to busySettleTime
	reset Pin // optional

	busyTimeout time.Duration
	scratch     [maxFrameBytes]byte
}

func newTransport(conn SPI, nss, busy, reset Pin, busyTimeout time.Duration) (*transport, error) {
	if conn == nil {
		return nil, fmt.Errorf("%w: %w: SPI connection not configured", ErrPkg, ErrInvalidConfig)
	}
	if busyTimeout <= 0 {
		busyTimeout = defaultBusyTimeout
	}
	t := &transport{
		conn:        conn,
		nss:         nss,
		busy:        busy,
		reset:       reset,
		busyTimeout: busyTimeout,
	}

	// NSS is active low: park it high before anything touches the bus.
	if t.nss != nil {
		if err := t.nss.Out(High); err != nil {
			return nil, fmt.Errorf("%w: failed to configure NSS pin: %w", ErrPkg, err)
		}
	}
	if t.busy != nil {
		if err := t.busy.In(PullNoChange); err != nil {
			return nil, fmt.Errorf("%w: failed to configure BUSY pin: %w", ErrPkg, err)
		}
	}
	// NRESET is active low, keep the chip running.
	if t.reset != nil {
		if err := t.reset.Out(High); err != nil {
			return nil, fmt.Errorf("%w: failed to configure NRESET pin: %w", ErrPkg, err)
		}
	}
	return t, nil
}

// hardReset strobes NRESET and waits for the chip to come back up.
func (t *transport) hardReset() error {
	if t.reset == nil {
		globalLogger.Warn("NRESET pin not configured, skipping hardware reset")
		return t.waitOnBusy()
	}
	time.Sleep(resetHoldTime)
	if err := t.reset.Out(Low); err != nil {
		return fmt.Errorf("%w: reset: %w", ErrPkg, err)
	}
	time.Sleep(resetHoldTime)
	if err := t.reset.Out(High); err != nil {
		return fmt.Errorf("%w: reset: %w", ErrPkg, err)
	}
	return t.waitOnBusy()
}

// waitOnBusy blocks until the chip is ready to accept a command.
func (t *transport) waitOnBusy() error {
	if t.busy == nil {
		time.Sleep(busySettleTime)
		return nil
	}
	deadline := time.Now().Add(t.busyTimeout)
	for t.busy.Read() == High {
		if time.Now().After(deadline) {
			return fmt.Errorf("%w: %w", ErrPkg, ErrBusyTimeout)
		}
		time.Sleep(busyPollTime)
	}
	return nil
}

// wakeup pulls NSS low for a moment, which brings the chip out of sleep.
func (t *transport) wakeup() error {
	if t.nss == nil {
		// Without an NSS pin the only way to toggle it is a transfer.
		t.scratch[0] = cmdGetStatus
		t.scratch[1] = _NOP
		if err := t.conn.Tx(t.scratch[:2], t.scratch[:2]); err != nil {
			return fmt.Errorf("%w: wakeup: %w", ErrPkg, err)
		}
		time.Sleep(wakeupHoldTime)
		return t.waitOnBusy()
	}
	t.selectChip()
	time.Sleep(wakeupHoldTime)
	t.deselectChip()
	return t.waitOnBusy()
}

func (t *transport) selectChip() {
	if t.nss == nil {
		return
	}
	time.Sleep(csSettleTime)
	t.nss.Out(Low)
	time.Sleep(csSettleTime)
}

func (t *transport) deselectChip() {
	if t.nss == nil {
		return
	}
	time.Sleep(csSettleTime)
	t.nss.Out(High)
	time.Sleep(csSettleTime)
}

// transfer runs one chip-select window over frame, in place.
// NSS is released even when the transfer fails.
func (t *transport) transfer(frame []byte) error {
	if err := t.waitOnBusy(); err != nil {
		return err
	}
	t.selectChip()
	err := t.conn.Tx(frame, frame)
	t.deselectChip()
	if err != nil {
		globalLogger.Error("SPI transfer error")
		return fmt.Errorf("%w: SPI transfer: %w", ErrPkg, err)
	}
	return nil
}

// writeCommand sends command followed by data in a single frame.
func (t *transport) writeCommand(command, data []byte) error {
	if len(data) > maxPayloadBytes {
		return fmt.Errorf("%w: %w: %d payload bytes, limit is %d", ErrPkg, ErrFrameTooLarge, len(data), maxPayloadBytes)
	}
	n := len(command) + len(data)
	if n > maxFrameBytes {
		return fmt.Errorf("%w: %w: %d bytes, limit is %d", ErrPkg, ErrFrameTooLarge, n, maxFrameBytes)
	}
	frame := t.scratch[:n]
	copy(frame, command)
	copy(frame[len(command):], data)

	globalLogger.Debug("write " + hexFrame(frame))
	return t.transfer(frame)
}

// readCommand sends opcode and args, clocks out one NOP for the status byte
// and len(data) more NOPs, and copies what the chip shifted back into data.
func (t *transport) readCommand(opcode byte, args, data []byte) (Status, error) {
	if len(data) > maxPayloadBytes {
		return 0, fmt.Errorf("%w: %w: %d payload bytes, limit is %d", ErrPkg, ErrFrameTooLarge, len(data), maxPayloadBytes)
	}
	head := 1 + len(args)
	n := head + 1 + len(data)
	if n > maxFrameBytes {
		return 0, fmt.Errorf("%w: %w: %d bytes, limit is %d", ErrPkg, ErrFrameTooLarge, n, maxFrameBytes)
	}
	frame := t.scratch[:n]
	frame[0] = opcode
	copy(frame[1:], args)
	for i := head; i < n; i++ {
		frame[i] = _NOP
	}

	globalLogger.Debug("read " + hexFrame(frame[:head]))
	if err := t.transfer(frame); err != nil {
		return 0, err
	}
	copy(data, frame[head+1:])
	globalLogger.Debug("got " + hexFrame(frame[head:]))

	return Status(frame[head]), nil
}
