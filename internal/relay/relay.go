// Package relay pumps frames between a client connection and an upstream
// connection in both directions until either side stops.
package relay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sourcegraph/conc/panics"
	"go.uber.org/zap"

	"github.com/satriahrh/voxrelay/domain/repositories"
)

const (
	// Time allowed to write one frame to either peer.
	defaultWriteWait = 10 * time.Second
)

// Direction identifies one of the two pumps
type Direction string

const (
	ClientToUpstream Direction = "client_to_upstream"
	UpstreamToClient Direction = "upstream_to_client"
)

// Leg identifies the connection on which a pump failed
type Leg string

const (
	LegNone     Leg = ""
	LegClient   Leg = "client"
	LegUpstream Leg = "upstream"
)

var (
	// ErrPumpPanic wraps a panic recovered inside a pump
	ErrPumpPanic = errors.New("relay pump panicked")
	// ErrInterrupted is the outcome of a pump stopped because the other pump finished
	// first or the relay was cancelled
	ErrInterrupted = errors.New("relay pump interrupted")
)

// Outcome is the result of one pump
type Outcome struct {
	Direction Direction
	// Frames is the number of frames forwarded before the pump stopped
	Frames int
	// Err is nil when the pump stopped because its source closed in an orderly way
	Err error
	// FailedLeg is the connection whose read or write failed, LegNone on orderly stop
	FailedLeg Leg
}

// Result holds both pump outcomes in completion order
type Result struct {
	First  Outcome
	Second Outcome
	// Cancelled is set when the relay was stopped through its context
	Cancelled error
}

// Outcome returns the outcome for a direction
func (r Result) Outcome(d Direction) Outcome {
	if r.First.Direction == d {
		return r.First
	}
	return r.Second
}

// Observer receives a read-only view of every frame forwarded from upstream to client
type Observer func(messageType int, data []byte)

// Option configures a Relay
type Option func(*Relay)

// WithWriteWait sets the per-frame write deadline
func WithWriteWait(d time.Duration) Option {
	return func(r *Relay) {
		if d > 0 {
			r.writeWait = d
		}
	}
}

// WithUpstreamObserver registers an observer for upstream frames
func WithUpstreamObserver(o Observer) Option {
	return func(r *Relay) { r.observe = o }
}

// Relay runs the two directional pumps over an accepted client connection and an
// open upstream connection. Each pump owns the read side of its source and the
// write side of its destination.
type Relay struct {
	client    repositories.FrameConn
	upstream  repositories.FrameConn
	writeWait time.Duration
	observe   Observer
	logger    *zap.Logger

	interrupted atomic.Bool
}

// New creates a relay between client and upstream
func New(client, upstream repositories.FrameConn, logger *zap.Logger, opts ...Option) *Relay {
	r := &Relay{
		client:    client,
		upstream:  upstream,
		writeWait: defaultWriteWait,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run starts both pumps and returns once both have stopped. The first pump to stop,
// or cancellation of ctx, interrupts the other through a past I/O deadline on both
// connections. Deadlines are cleared again before Run returns so the caller can still
// send a final frame and close. Run never closes either connection.
func (r *Relay) Run(ctx context.Context) Result {
	outcomes := make(chan Outcome, 2)

	go r.run(ClientToUpstream, r.pumpClientToUpstream, outcomes)
	go r.run(UpstreamToClient, r.pumpUpstreamToClient, outcomes)

	var result Result
	select {
	case result.First = <-outcomes:
		r.logger.Debug("Relay pump finished first",
			zap.String("direction", string(result.First.Direction)),
			zap.Int("frames", result.First.Frames),
			zap.Error(result.First.Err))
		r.interrupt()
	case <-ctx.Done():
		result.Cancelled = ctx.Err()
		r.interrupt()
		result.First = <-outcomes
	}

	result.Second = <-outcomes
	r.restore()

	return result
}

func (r *Relay) run(direction Direction, pump func(frames *int) (Leg, error), out chan<- Outcome) {
	var (
		frames int
		leg    Leg
		err    error
	)

	var pc panics.Catcher
	pc.Try(func() { leg, err = pump(&frames) })
	if recovered := pc.Recovered(); recovered != nil {
		err = fmt.Errorf("%w: %v", ErrPumpPanic, recovered.AsError())
		leg = LegNone
	}

	out <- Outcome{Direction: direction, Frames: frames, Err: err, FailedLeg: leg}
}

// pumpClientToUpstream forwards binary audio frames unchanged. Text frames from the
// client are not part of the audio stream and are dropped.
func (r *Relay) pumpClientToUpstream(frames *int) (Leg, error) {
	for {
		messageType, data, err := r.client.ReadMessage()
		if err != nil {
			return r.stopped(LegClient, fmt.Errorf("read client frame: %w", err))
		}

		if messageType != websocket.BinaryMessage {
			r.logger.Debug("Dropping non-binary client frame", zap.Int("type", messageType))
			continue
		}

		if err := r.write(r.upstream, messageType, data); err != nil {
			return r.stopped(LegUpstream, fmt.Errorf("forward audio frame: %w", err))
		}
		*frames++
	}
}

// pumpUpstreamToClient forwards every upstream message unchanged
func (r *Relay) pumpUpstreamToClient(frames *int) (Leg, error) {
	for {
		messageType, data, err := r.upstream.ReadMessage()
		if err != nil {
			return r.stopped(LegUpstream, fmt.Errorf("read upstream frame: %w", err))
		}

		if err := r.write(r.client, messageType, data); err != nil {
			return r.stopped(LegClient, fmt.Errorf("forward upstream frame: %w", err))
		}
		*frames++

		if r.observe != nil {
			r.observe(messageType, data)
		}
	}
}

func (r *Relay) write(conn repositories.FrameConn, messageType int, data []byte) error {
	if err := conn.SetWriteDeadline(time.Now().Add(r.writeWait)); err != nil {
		return err
	}
	return conn.WriteMessage(messageType, data)
}

// stopped classifies a pump's terminal I/O error
func (r *Relay) stopped(leg Leg, err error) (Leg, error) {
	if r.interrupted.Load() {
		return LegNone, ErrInterrupted
	}
	if isOrderlyClose(err) {
		return LegNone, nil
	}
	return leg, err
}

// interrupt unblocks any pending read or write on both connections
func (r *Relay) interrupt() {
	r.interrupted.Store(true)
	now := time.Now()
	for _, conn := range []repositories.FrameConn{r.client, r.upstream} {
		if err := conn.UnderlyingConn().SetDeadline(now); err != nil {
			r.logger.Debug("Failed to interrupt connection", zap.Error(err))
		}
	}
}

func (r *Relay) restore() {
	for _, conn := range []repositories.FrameConn{r.client, r.upstream} {
		_ = conn.UnderlyingConn().SetDeadline(time.Time{})
	}
}

// isOrderlyClose reports whether err is a peer's normal end of stream
func isOrderlyClose(err error) bool {
	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) {
		switch closeErr.Code {
		case websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived:
			return true
		}
		return false
	}
	return errors.Is(err, io.EOF)
}
