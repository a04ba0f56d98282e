package rpcperf

import (
	"context"
	"math/rand"
	"net"
	"sync/atomic"
	"time"

	"github.com/twitter/rpc-perf/log"
)

// Connection lifecycle. The steady cycle is Connecting -> Idle ->
// AwaitingResponse -> Idle; any I/O error moves to Closed, and Closed goes
// back to Connecting after a capped exponential backoff. There is no
// terminal state while the run is active.
type connState uint32

const (
	stateConnecting connState = iota
	stateIdle
	stateAwaitingResponse
	stateClosed
)

const (
	reconnectBackoffMin = 100 * time.Millisecond
	reconnectBackoffMax = 10 * time.Second
	readChunkSize       = 16 * 1024
)

// result is one completion event sent from a connection to its worker's
// collector: either a decoded response outcome with its latency, or a
// connection-closed event.
type result struct {
	outcome Outcome
	latency time.Duration
	closed  bool
}

// connection drives a single TCP connection to one endpoint. It is owned by
// exactly one goroutine within one worker; nothing here is shared except the
// rate limiter, the generator (immutable) and the results channel.
type connection struct {
	endpoint string
	slot     int

	codec   Codec
	gen     *Generator
	limiter *Ratelimiter
	rng     *rand.Rand
	results chan<- result

	pipeline       int
	requestTimeout time.Duration
	connectTimeout time.Duration

	state    atomic.Uint32 // connState, readable from outside the goroutine
	nc       net.Conn
	wbuf     []byte
	rbuf     []byte
	chunk    []byte
	inflight []time.Time // submit stamps, oldest first
	req      Request

	// one reserved admission slot carried across loop iterations so a
	// deferred send never costs a second token
	admitted bool
	sendAt   time.Time
}

func newConnection(endpoint string, slot int, codec Codec, gen *Generator, limiter *Ratelimiter, rng *rand.Rand, results chan<- result, cfg *Config) *connection {
	return &connection{
		endpoint:       endpoint,
		slot:           slot,
		codec:          codec,
		gen:            gen,
		limiter:        limiter,
		rng:            rng,
		results:        results,
		pipeline:       cfg.Connection.Pipeline,
		requestTimeout: cfg.RequestTimeout(),
		connectTimeout: cfg.ConnectTimeout(),
		chunk:          make([]byte, readChunkSize),
	}
}

// run keeps the connection alive for the whole run: dial, serve until an
// I/O or decode error, count the close, back off, reconnect. Only context
// cancellation ends the loop.
func (c *connection) run(ctx context.Context) {
	backoff := reconnectBackoffMin
	for ctx.Err() == nil {
		c.setState(stateConnecting)
		dialer := net.Dialer{Timeout: c.connectTimeout}
		nc, err := dialer.DialContext(ctx, "tcp", c.endpoint)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Debugf("dial %s#%d: %v", c.endpoint, c.slot, err)
			c.reportClosed(ctx)
			if sleepCtx(ctx, backoff) != nil {
				return
			}
			backoff = nextBackoff(backoff)
			continue
		}
		backoff = reconnectBackoffMin

		c.nc = nc
		c.setState(stateIdle)
		err = c.serve(ctx)
		_ = c.nc.Close()
		c.nc = nil
		c.setState(stateClosed)
		c.rbuf = c.rbuf[:0]
		c.inflight = c.inflight[:0]
		c.admitted = false

		if ctx.Err() != nil {
			return
		}
		if err != nil {
			log.Debugf("connection %s#%d closed: %v", c.endpoint, c.slot, err)
		}
		c.reportClosed(ctx)
		if err != nil {
			if sleepCtx(ctx, backoff) != nil {
				return
			}
			backoff = nextBackoff(backoff)
		}
	}
}

func (c *connection) setState(s connState) { c.state.Store(uint32(s)) }
func (c *connection) getState() connState  { return connState(c.state.Load()) }

func nextBackoff(d time.Duration) time.Duration {
	d *= 2
	if d > reconnectBackoffMax {
		d = reconnectBackoffMax
	}
	return d
}

// serve runs the request/response cycle until an error. Requests are
// written while the pipeline has room and admission allows; responses are
// matched FIFO to the oldest unanswered request.
func (c *connection) serve(ctx context.Context) error {
	for ctx.Err() == nil {
		for len(c.inflight) < c.pipeline {
			if !c.admitted {
				c.sendAt = time.Now().Add(c.limiter.Admit())
				c.admitted = true
			}
			if wait := time.Until(c.sendAt); wait > 0 {
				if len(c.inflight) > 0 {
					// responses are owed; collect them while waiting
					break
				}
				if sleepCtx(ctx, wait) != nil {
					return nil
				}
			}
			if err := c.writeRequest(); err != nil {
				return err
			}
			c.admitted = false
			c.setState(stateAwaitingResponse)
		}

		if len(c.inflight) == 0 {
			continue
		}
		if err := c.readResponse(ctx); err != nil {
			return err
		}
	}
	return nil
}

// writeRequest asks the generator for the next request, encodes it and
// writes it out. The submit stamp is taken when the bytes are handed to the
// writable connection, not at generation time, so limiter waits never count
// as latency.
func (c *connection) writeRequest() error {
	c.gen.Next(c.rng, &c.req)
	wbuf, err := c.codec.Encode(c.wbuf[:0], &c.req)
	if err != nil {
		return err
	}
	c.wbuf = wbuf

	if err := c.nc.SetWriteDeadline(time.Now().Add(c.requestTimeout)); err != nil {
		return err
	}
	submitted := time.Now()
	if _, err := c.nc.Write(c.wbuf); err != nil {
		return err
	}
	c.inflight = append(c.inflight, submitted)
	return nil
}

// readResponse accumulates bytes until the codec yields one complete frame,
// then records its latency against the oldest in-flight request. A frame
// the codec cannot resync on is returned as an error so the caller closes
// the connection instead of misattributing later responses.
func (c *connection) readResponse(ctx context.Context) error {
	for {
		if len(c.rbuf) > 0 {
			n, out, err := c.codec.Decode(c.rbuf)
			if err == nil {
				latency := time.Since(c.inflight[0])
				c.inflight = append(c.inflight[:0], c.inflight[1:]...)
				c.rbuf = append(c.rbuf[:0], c.rbuf[n:]...)
				if len(c.inflight) == 0 {
					c.setState(stateIdle)
				}
				c.report(ctx, result{outcome: out, latency: latency})
				return nil
			}
			if err != ErrIncomplete {
				// the unparseable bytes answer the oldest in-flight request;
				// attribute the failure before the connection is recycled
				c.report(ctx, result{outcome: OutcomeError, latency: time.Since(c.inflight[0])})
				return err
			}
		}

		// a connection stuck awaiting a response past the request timeout
		// is a connection error, never a stall
		if err := c.nc.SetReadDeadline(c.inflight[0].Add(c.requestTimeout)); err != nil {
			return err
		}
		n, err := c.nc.Read(c.chunk)
		if n > 0 {
			c.rbuf = append(c.rbuf, c.chunk[:n]...)
		}
		if err != nil {
			return err
		}
	}
}

func (c *connection) report(ctx context.Context, r result) {
	select {
	case c.results <- r:
	case <-ctx.Done():
	}
}

func (c *connection) reportClosed(ctx context.Context) {
	c.report(ctx, result{closed: true})
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
