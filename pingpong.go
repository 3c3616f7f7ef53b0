package sx126x

import (
	"bytes"
	"context"
	"fmt"
	"time"
)

var (
	pingPayload = []byte("PING")
	pongPayload = []byte("PONG")
)

// pingIrqs are the IRQs the driver enables and routes to DIO1.
const pingIrqs = IrqTxDone | IrqRxDone | IrqTimeout | IrqCrcErr | IrqHeaderErr

const (
	// irqPollInterval is the polling period when DIO1 is not wired.
	irqPollInterval = 5 * time.Millisecond
	// irqWaitMargin is added on top of the chip's own timeouts, which
	// should always fire first.
	irqWaitMargin = 100 * time.Millisecond
)

// --- Generic TX/RX ---

func (d *Device) startTransmit(p []byte) error {
	if len(p) > maxPayloadBytes {
		return fmt.Errorf("%w: payload too large (%d bytes), limit is %d", ErrPkg, len(p), maxPayloadBytes)
	}
	if err := d.setStandby(StandbyRC); err != nil {
		return err
	}
	if err := d.writeBuffer(0, p); err != nil {
		return err
	}
	if err := d.setLoRaPacketParams(d.packetParams(byte(len(p)))); err != nil {
		return err
	}
	if err := d.clearIrqStatus(IrqAll); err != nil {
		return err
	}
	return d.setTx(d.config.TxTimeout)
}

func (d *Device) startReceive(timeout time.Duration) error {
	if err := d.setStandby(StandbyRC); err != nil {
		return err
	}
	if err := d.setLoRaPacketParams(d.packetParams(maxPayloadBytes)); err != nil {
		return err
	}
	if err := d.clearIrqStatus(IrqAll); err != nil {
		return err
	}
	return d.setRx(timeout)
}

// StartReceive puts the radio in RX for at most timeout. A zero timeout
// listens until a packet arrives.
func (d *Device) StartReceive(timeout time.Duration) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.startReceive(timeout)
}

// readPayload fetches the last received packet, or nil if irq does not
// report a clean reception.
func (d *Device) readPayload(irq IrqMask) ([]byte, error) {
	if !irq.Has(IrqRxDone) || irq&(IrqCrcErr|IrqHeaderErr) != 0 {
		return nil, nil
	}
	st, err := d.getRxBufferStatus()
	if err != nil {
		return nil, err
	}
	if st.PayloadLength == 0 {
		return nil, nil
	}
	return d.readBuffer(st.StartPointer, int(st.PayloadLength))
}

// WaitForIrq blocks until one of the IRQs in mask is raised, timeout
// expires or ctx is cancelled. It returns all raised flags without
// clearing them. DIO1 is used when configured, otherwise the IRQ status
// is polled.
func (d *Device) WaitForIrq(ctx context.Context, mask IrqMask, timeout time.Duration) (IrqMask, error) {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	for {
		d.mu.Lock()
		irq, err := d.getIrqStatus()
		d.mu.Unlock()
		if err != nil {
			return 0, err
		}
		if irq&mask != 0 {
			return irq, nil
		}

		if d.irqChan != nil {
			select {
			case <-d.irqChan:
			case <-deadline.C:
				return irq, fmt.Errorf("%w: %w", ErrPkg, ErrTimeout)
			case <-ctx.Done():
				return irq, ctx.Err()
			}
			continue
		}

		select {
		case <-deadline.C:
			return irq, fmt.Errorf("%w: %w", ErrPkg, ErrTimeout)
		case <-ctx.Done():
			return irq, ctx.Err()
		case <-time.After(irqPollInterval):
		}
	}
}

// Transmit sends p and waits for the radio to report TxDone.
func (d *Device) Transmit(ctx context.Context, p []byte) error {
	d.mu.Lock()
	err := d.startTransmit(p)
	d.mu.Unlock()
	if err != nil {
		return fmt.Errorf("failed to send data: %w", err)
	}

	irq, err := d.WaitForIrq(ctx, IrqTxDone|IrqTimeout, d.config.TxTimeout+irqWaitMargin)
	if err != nil {
		return fmt.Errorf("failed to send data: %w", err)
	}
	if err := d.ClearIrqStatus(irq); err != nil {
		return err
	}
	if !irq.Has(IrqTxDone) {
		return fmt.Errorf("failed to send data: %w: %w", ErrPkg, ErrTimeout)
	}
	return nil
}

// Receive listens for a single packet for at most timeout (zero waits
// until ctx is done). It returns nil without error when the radio timed
// out or the packet failed its CRC or header check.
func (d *Device) Receive(ctx context.Context, timeout time.Duration) ([]byte, error) {
	if err := d.StartReceive(timeout); err != nil {
		return nil, err
	}

	wait := timeout + irqWaitMargin
	if timeout == 0 {
		wait = maxTimeout
	}
	irq, err := d.WaitForIrq(ctx, IrqRxDone|IrqTimeout|IrqCrcErr|IrqHeaderErr, wait)
	if err != nil {
		d.SetStandby(StandbyRC)
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.clearIrqStatus(irq); err != nil {
		return nil, err
	}
	if irq&(IrqCrcErr|IrqHeaderErr) != 0 {
		globalLogger.Warn("Dropped packet: " + irq.String())
	}
	return d.readPayload(irq)
}

// --- Ping/pong ---

// SendPing loads "PING" into the buffer and starts transmitting it.
// It does not wait for the transmission to finish.
func (d *Device) SendPing() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	globalLogger.Debug("Sending PING")
	return d.startTransmit(pingPayload)
}

// CheckForPong reads and clears the IRQ status and reports whether a
// "PONG" has been received since the last check.
func (d *Device) CheckForPong() (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	irq, err := d.getIrqStatus()
	if err != nil {
		return false, err
	}
	if err := d.clearIrqStatus(irq); err != nil {
		return false, err
	}
	payload, err := d.readPayload(irq)
	if err != nil {
		return false, err
	}
	return bytes.HasPrefix(payload, pongPayload), nil
}

// Ping sends "PING" and waits up to RxTimeout for a "PONG" back.
// A missing or unexpected reply is not an error.
func (d *Device) Ping(ctx context.Context) (bool, error) {
	if err := d.Transmit(ctx, pingPayload); err != nil {
		return false, err
	}
	reply, err := d.Receive(ctx, d.config.RxTimeout)
	if err != nil {
		return false, err
	}
	if bytes.HasPrefix(reply, pongPayload) {
		globalLogger.Info("Ping Success")
		return true, nil
	}
	globalLogger.Info("Ping Failed")
	return false, nil
}

// Respond is the other end of Ping: it listens until a packet arrives or
// ctx is done, and answers a "PING" with a "PONG". It reports whether a
// PONG was sent.
func (d *Device) Respond(ctx context.Context) (bool, error) {
	msg, err := d.Receive(ctx, 0)
	if err != nil {
		return false, err
	}
	if !bytes.HasPrefix(msg, pingPayload) {
		return false, nil
	}
	if err := d.Transmit(ctx, pongPayload); err != nil {
		return false, err
	}
	return true, nil
}

// LoopConfig paces Run.
type LoopConfig struct {
	// PollDelay is how long to listen after a ping before checking.
	// Defaults to 1s if not provided.
	PollDelay time.Duration
	// Interval is the pause between two pings.
	// Defaults to 5s if not provided.
	Interval time.Duration
}

// Result is the outcome of one ping cycle.
type Result struct {
	Seq  int
	Pong bool
	Err  error
}

func (r Result) String() string {
	switch {
	case r.Err != nil:
		return "Ping failed: " + r.Err.Error()
	case r.Pong:
		return "Pong received!"
	default:
		return "No response."
	}
}

// Run pings forever: send, listen for PollDelay, check for a pong, report,
// sleep Interval. It returns when ctx is done. Transport errors are
// reported and do not stop the loop.
func (d *Device) Run(ctx context.Context, c LoopConfig, report func(Result)) error {
	if c.PollDelay == 0 {
		c.PollDelay = time.Second
	}
	if c.Interval == 0 {
		c.Interval = 5 * time.Second
	}
	if report == nil {
		report = func(r Result) { globalLogger.Info(r.String()) }
	}

	for seq := 1; ; seq++ {
		pong, err := d.pingCycle(ctx, c.PollDelay)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		report(Result{Seq: seq, Pong: pong, Err: err})

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.Interval):
		}
	}
}

func (d *Device) pingCycle(ctx context.Context, pollDelay time.Duration) (bool, error) {
	if err := d.SendPing(); err != nil {
		return false, err
	}
	irq, err := d.WaitForIrq(ctx, IrqTxDone|IrqTimeout, d.config.TxTimeout+irqWaitMargin)
	if err != nil {
		return false, err
	}
	if err := d.ClearIrqStatus(irq); err != nil {
		return false, err
	}
	if !irq.Has(IrqTxDone) {
		return false, fmt.Errorf("%w: %w", ErrPkg, ErrTimeout)
	}
	if err := d.StartReceive(pollDelay); err != nil {
		return false, err
	}

	select {
	case <-ctx.Done():
		return false, ctx.Err()
	case <-time.After(pollDelay):
	}
	return d.CheckForPong()
}
