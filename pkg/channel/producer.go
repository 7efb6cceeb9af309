// Package channel moves telemetry records between the sensor and the
// console over a lossy, self-healing websocket link.
//
// The Producer side owns a bounded outbound queue that drops its oldest
// record under backpressure, and a reconnect loop that redials forever
// with a fixed delay until stopped. The Receiver side is a fiber
// websocket endpoint that keeps at most one feed active, parses each
// record, and dispatches callbacks.
package channel

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sonogrid/go-sonogrid/pkg/protocol"
)

// Producer pushes telemetry records to a receiver over websocket.
//
// Enqueue never blocks: records wait in a bounded queue that sheds its
// oldest entry under overflow. A background loop dials the receiver,
// runs a drain task (queue to socket) and a listen task (inbound traffic,
// reserved for future commands) concurrently, and tears both down on the
// first failure before redialing.
type Producer struct {
	cfg    Config
	logger *slog.Logger

	queue *recordQueue

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}

	state atomic.Int32

	sent    atomic.Int64
	retries atomic.Int64
}

// NewProducer creates a producer for the configured receiver URL.
func NewProducer(cfg Config, logger *slog.Logger) (*Producer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid channel config: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Producer{
		cfg:    cfg,
		logger: logger.With("component", "channel.producer"),
		queue:  newRecordQueue(cfg.QueueSize),
	}, nil
}

// Start launches the reconnect loop. Records may be enqueued before
// Start; they are delivered once a connection exists.
func (p *Producer) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.done = make(chan struct{})
	p.running = true

	go p.run(ctx)

	p.logger.Info("📡 producer started", "url", p.cfg.URL, "queue_size", p.cfg.QueueSize)
	return nil
}

// Enqueue queues a record for delivery without blocking. Under overflow
// the oldest queued record is dropped so the newest is always admitted.
func (p *Producer) Enqueue(rec protocol.Record) error {
	data, err := rec.Bytes()
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	if p.queue.push(data) {
		p.logger.Debug("queue full, dropped oldest record")
	}
	return nil
}

// run dials, runs one session, and redials after the configured delay,
// forever, until the context ends.
func (p *Producer) run(ctx context.Context) {
	defer close(p.done)
	defer p.state.Store(int32(StateDisconnected))

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		p.state.Store(int32(StateConnecting))

		conn, err := p.dial(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			p.retries.Add(1)
			p.state.Store(int32(StateDisconnected))
			p.logger.Debug("dial failed, will retry",
				"error", err,
				"delay", p.cfg.ReconnectDelay,
			)

			select {
			case <-ctx.Done():
				return
			case <-time.After(p.cfg.ReconnectDelay):
			}
			continue
		}

		p.state.Store(int32(StateConnected))
		p.logger.Info("📡 channel connected", "url", p.cfg.URL)

		err = p.session(ctx, conn)
		p.state.Store(int32(StateDisconnected))
		if ctx.Err() != nil {
			return
		}

		p.retries.Add(1)
		p.logger.Warn("channel lost, reconnecting",
			"error", err,
			"delay", p.cfg.ReconnectDelay,
		)

		select {
		case <-ctx.Done():
			return
		case <-time.After(p.cfg.ReconnectDelay):
		}
	}
}

func (p *Producer) dial(ctx context.Context) (*websocket.Conn, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: p.cfg.HandshakeTimeout,
	}

	conn, resp, err := dialer.DialContext(ctx, p.cfg.URL, nil)
	if err != nil {
		if resp != nil {
			resp.Body.Close()
		}
		return nil, err
	}
	return conn, nil
}

// session runs the drain and listen tasks for one connection. The first
// task to fail brings the whole session down.
func (p *Producer) session(ctx context.Context, conn *websocket.Conn) error {
	sessCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 2)
	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		errCh <- p.drain(sessCtx, conn)
	}()
	go func() {
		defer wg.Done()
		errCh <- p.listen(conn)
	}()

	var err error
	select {
	case err = <-errCh:
	case <-ctx.Done():
		err = ctx.Err()
	}

	// Closing the connection unblocks whichever task is still inside a
	// socket call.
	cancel()
	conn.Close()
	wg.Wait()

	return err
}

// drain writes queued records to the socket in order.
func (p *Producer) drain(ctx context.Context, conn *websocket.Conn) error {
	for {
		data, err := p.queue.pop(ctx)
		if err != nil {
			return err
		}

		conn.SetWriteDeadline(time.Now().Add(p.cfg.WriteTimeout))
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			return fmt.Errorf("write record: %w", err)
		}
		p.sent.Add(1)
	}
}

// listen consumes inbound traffic so control frames keep being processed.
// Payloads are reserved for future command records and ignored.
func (p *Producer) listen(conn *websocket.Conn) error {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}
		p.logger.Debug("inbound record ignored", "bytes", len(data))
	}
}

// State returns the current connection state.
func (p *Producer) State() ConnectionState {
	return ConnectionState(p.state.Load())
}

// ProducerStats is a snapshot of producer counters.
type ProducerStats struct {
	State   string `json:"state"`
	Sent    int64  `json:"sent"`
	Dropped int64  `json:"dropped"`
	Retries int64  `json:"retries"`
	Queued  int    `json:"queued"`
}

// Stats returns a snapshot of producer counters.
func (p *Producer) Stats() ProducerStats {
	return ProducerStats{
		State:   p.State().String(),
		Sent:    p.sent.Load(),
		Dropped: p.queue.dropped.Load(),
		Retries: p.retries.Load(),
		Queued:  p.queue.len(),
	}
}

// Stop halts the reconnect loop and closes any live connection.
func (p *Producer) Stop() error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = false
	p.cancel()
	done := p.done
	p.mu.Unlock()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		p.logger.Warn("producer did not stop in time")
	}

	p.logger.Info("producer stopped",
		"sent", p.sent.Load(),
		"dropped", p.queue.dropped.Load(),
	)
	return nil
}
