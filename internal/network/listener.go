package network

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/danmuck/framefactor/internal/observability"
	"github.com/danmuck/framefactor/internal/protocol/session"
	"github.com/rs/zerolog"
)

const (
	pendingBacklog   = 128
	acceptRetryLimit = 20
)

var acceptBackoff = session.BackoffConfig{
	InitialDelay: 5 * time.Millisecond,
	Multiplier:   2.0,
	MaxDelay:     time.Second,
}

// Listener accepts sockets on a background goroutine and hands them out without blocking.
type Listener struct {
	ln      net.Listener
	pending chan net.Conn
	done    chan struct{}
	logger  zerolog.Logger
	backoff session.BackoffConfig

	closeOnce sync.Once
	wg        sync.WaitGroup

	errMu sync.Mutex
	err   error
}

// Listen binds addr. A bind failure is a startup error.
func Listen(addr string) (*Listener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return newListener(ln, acceptBackoff), nil
}

func newListener(ln net.Listener, backoff session.BackoffConfig) *Listener {
	l := &Listener{
		ln:      ln,
		pending: make(chan net.Conn, pendingBacklog),
		done:    make(chan struct{}),
		logger:  observability.Component("listener", "network"),
		backoff: backoff,
	}
	l.wg.Add(1)
	go l.acceptLoop()
	return l
}

// acceptLoop retries failed accepts (EMFILE and friends) with backoff and gives up after
// acceptRetryLimit consecutive failures.
func (l *Listener) acceptLoop() {
	defer l.wg.Done()
	failures := 0
	for {
		conn, err := l.ln.Accept()
		if err != nil {
			if l.closed() || errors.Is(err, net.ErrClosed) {
				return
			}
			failures++
			if failures >= acceptRetryLimit {
				l.setErr(fmt.Errorf("network: accept failed %d times: %w", failures, err))
				l.logger.Error().Err(err).Int("failures", failures).Msg("network.Listener.accept stopped")
				return
			}
			delay := session.NextBackoffDelay(l.backoff, failures, nil)
			l.logger.Warn().Err(err).Int("failures", failures).Dur("retry_in", delay).Msg("network.Listener.accept retrying")
			timer := time.NewTimer(delay)
			select {
			case <-l.done:
				timer.Stop()
				return
			case <-timer.C:
			}
			continue
		}
		failures = 0
		select {
		case l.pending <- conn:
		case <-l.done:
			_ = conn.Close()
			return
		}
	}
}

// Pending returns sockets accepted since the last call. It never blocks; an empty result is the
// would-block case.
func (l *Listener) Pending() []net.Conn {
	var out []net.Conn
	for {
		select {
		case conn := <-l.pending:
			out = append(out, conn)
		default:
			return out
		}
	}
}

func (l *Listener) Addr() string {
	return l.ln.Addr().String()
}

// Err reports the accept error that stopped the accept loop, if any.
func (l *Listener) Err() error {
	l.errMu.Lock()
	defer l.errMu.Unlock()
	return l.err
}

func (l *Listener) Close() error {
	var err error
	l.closeOnce.Do(func() {
		close(l.done)
		err = l.ln.Close()
		l.wg.Wait()
		for _, conn := range l.Pending() {
			_ = conn.Close()
		}
	})
	return err
}

func (l *Listener) closed() bool {
	select {
	case <-l.done:
		return true
	default:
		return false
	}
}

func (l *Listener) setErr(err error) {
	l.errMu.Lock()
	defer l.errMu.Unlock()
	if l.err == nil {
		l.err = err
	}
}
