package transport

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/danmuck/framefactor/internal/protocol/frame"
)

const (
	readChunkLen = 32 * 1024
	readBacklog  = 64
)

// Options configures one Conn. SendBacklog bounds the frames queued for the writer; a Send
// that finds the queue full fails the connection with ErrShortWrite.
type Options struct {
	Limits       frame.Limits
	WriteTimeout time.Duration
	SendBacklog  int
}

func DefaultOptions() Options {
	return Options{
		Limits:       frame.DefaultLimits(),
		WriteTimeout: 2 * time.Second,
		SendBacklog:  256,
	}
}

type readResult struct {
	data []byte
	err  error
}

// Conn is one established framed duplex stream.
type Conn struct {
	conn net.Conn
	opts Options
	dec  *frame.Decoder

	pumpOnce  sync.Once
	pumping   atomic.Bool
	reads     chan readResult
	done      chan struct{}
	closeOnce sync.Once

	writeOnce sync.Once
	writes    chan []byte

	errMu sync.Mutex
	err   error

	framesIn  atomic.Uint64
	framesOut atomic.Uint64
}

// New wraps conn and disables send coalescing on TCP streams.
func New(conn net.Conn, opts Options) (*Conn, error) {
	if conn == nil {
		return nil, ErrClosed
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = DefaultOptions().WriteTimeout
	}
	if opts.SendBacklog <= 0 {
		opts.SendBacklog = DefaultOptions().SendBacklog
	}
	if tcp, ok := conn.(*net.TCPConn); ok {
		if err := tcp.SetNoDelay(true); err != nil {
			return nil, fmt.Errorf("transport: set nodelay: %w", err)
		}
	}
	return &Conn{
		conn:   conn,
		opts:   opts,
		dec:    frame.NewDecoder(opts.Limits),
		reads:  make(chan readResult, readBacklog),
		writes: make(chan []byte, opts.SendBacklog),
		done:   make(chan struct{}),
	}, nil
}

// ReceiveOneBlocking reads exactly one envelope, waiting up to timeout. It must be called
// before the first ReceiveAll.
func (c *Conn) ReceiveOneBlocking(timeout time.Duration) (frame.Envelope, error) {
	if err := c.Err(); err != nil {
		return frame.Envelope{}, err
	}
	if c.pumping.Load() {
		return frame.Envelope{}, ErrAlreadyPolled
	}
	if timeout > 0 {
		if err := c.conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
			return frame.Envelope{}, c.fail(err)
		}
		defer c.conn.SetReadDeadline(time.Time{})
	}
	buf := make([]byte, 4096)
	for {
		env, err := c.dec.Next()
		if err == nil {
			c.framesIn.Add(1)
			return env, nil
		}
		if !errors.Is(err, frame.ErrIncomplete) {
			return frame.Envelope{}, c.fail(err)
		}
		n, err := c.conn.Read(buf)
		if n > 0 {
			c.dec.Feed(buf[:n])
		}
		if err != nil {
			if IsWouldBlock(err) {
				return frame.Envelope{}, c.fail(fmt.Errorf("%w: %v", ErrReadTimeout, err))
			}
			return frame.Envelope{}, c.fail(wrapReadErr(err))
		}
	}
}

// ReceiveAll returns every envelope that can be decoded from bytes already received. It never
// waits for the peer. Envelopes decoded before a fatal error are returned alongside it.
func (c *Conn) ReceiveAll() ([]frame.Envelope, error) {
	if err := c.Err(); err != nil {
		return nil, err
	}
	c.pumpOnce.Do(c.startPump)

	var readErr error
drain:
	for i := 0; i < readBacklog; i++ {
		select {
		case r := <-c.reads:
			if len(r.data) > 0 {
				c.dec.Feed(r.data)
			}
			if r.err != nil {
				readErr = r.err
				break drain
			}
		default:
			break drain
		}
	}

	var out []frame.Envelope
	for {
		env, err := c.dec.Next()
		if errors.Is(err, frame.ErrIncomplete) {
			break
		}
		if err != nil {
			return out, c.fail(err)
		}
		c.framesIn.Add(1)
		out = append(out, env)
	}
	if readErr != nil {
		return out, c.fail(wrapReadErr(readErr))
	}
	return out, nil
}

// Send queues one complete frame for the writer goroutine and never waits for the peer. A full
// queue or an earlier write failure is fatal.
func (c *Conn) Send(env frame.Envelope) error {
	if err := c.Err(); err != nil {
		return err
	}
	select {
	case <-c.done:
		return c.fail(fmt.Errorf("%w: %w", ErrWriteFailed, ErrClosed))
	default:
	}
	buf, err := frame.Encode(env, c.opts.Limits)
	if err != nil {
		return err
	}
	c.writeOnce.Do(func() { go c.writeLoop() })
	select {
	case c.writes <- buf:
		c.framesOut.Add(1)
		return nil
	default:
		return c.fail(fmt.Errorf("%w: send queue full at %d frames", ErrShortWrite, c.opts.SendBacklog))
	}
}

func (c *Conn) RemoteAddr() string {
	if addr := c.conn.RemoteAddr(); addr != nil {
		return addr.String()
	}
	return ""
}

func (c *Conn) Stats() (in, out uint64) {
	return c.framesIn.Load(), c.framesOut.Load()
}

// Err returns the sticky fatal error, if any.
func (c *Conn) Err() error {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	return c.err
}

func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		err = c.conn.Close()
	})
	return err
}

func (c *Conn) writeLoop() {
	for {
		select {
		case buf := <-c.writes:
			if err := c.write(buf); err != nil {
				_ = c.fail(err)
				return
			}
		case <-c.done:
			return
		}
	}
}

func (c *Conn) write(buf []byte) error {
	if err := c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout)); err != nil {
		return fmt.Errorf("%w: %v", ErrWriteFailed, err)
	}
	n, err := c.conn.Write(buf)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrWriteFailed, err)
	}
	if n != len(buf) {
		return fmt.Errorf("%w: %d of %d bytes", ErrShortWrite, n, len(buf))
	}
	return nil
}

func (c *Conn) startPump() {
	c.pumping.Store(true)
	go c.pump()
}

func (c *Conn) pump() {
	buf := make([]byte, readChunkLen)
	for {
		n, err := c.conn.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			select {
			case c.reads <- readResult{data: chunk}:
			case <-c.done:
				return
			}
		}
		if err != nil {
			select {
			case c.reads <- readResult{err: err}:
			case <-c.done:
			}
			return
		}
	}
}

func (c *Conn) fail(err error) error {
	c.errMu.Lock()
	if c.err == nil {
		c.err = err
	}
	first := c.err
	c.errMu.Unlock()
	_ = c.Close()
	return first
}

func wrapReadErr(err error) error {
	if isClosedErr(err) {
		return fmt.Errorf("%w: %v", ErrClosed, err)
	}
	return err
}
