package transport

import (
	"errors"
	"io"
	"net"
	"os"

	"github.com/danmuck/framefactor/internal/protocol/codec"
	"github.com/danmuck/framefactor/internal/protocol/frame"
)

var (
	ErrClosed        = errors.New("transport: connection closed")
	ErrShortWrite    = errors.New("transport: short write")
	ErrWriteFailed   = errors.New("transport: write failed")
	ErrReadTimeout   = errors.New("transport: blocking read timed out")
	ErrAlreadyPolled = errors.New("transport: blocking receive after polling started")
)

// Kind classifies an I/O outcome.
type Kind string

const (
	KindNone       Kind = "none"
	KindWouldBlock Kind = "would_block"
	KindMalformed  Kind = "malformed"
	KindIO         Kind = "io"
	KindProtocol   Kind = "protocol"
)

// Fatal reports whether an outcome of this kind ends the connection.
func (k Kind) Fatal() bool {
	return k == KindMalformed || k == KindIO
}

func Classify(err error) Kind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrWriteFailed), errors.Is(err, ErrShortWrite), errors.Is(err, ErrClosed),
		errors.Is(err, ErrReadTimeout):
		return KindIO
	case IsWouldBlock(err):
		return KindWouldBlock
	case errors.Is(err, frame.ErrFrameTooLarge),
		errors.Is(err, frame.ErrShortEnvelope),
		errors.Is(err, codec.ErrMalformedBody):
		return KindMalformed
	case errors.Is(err, ErrAlreadyPolled):
		return KindProtocol
	default:
		return KindIO
	}
}

// IsWouldBlock reports "no data now" outcomes that are retried on the next poll. A timed out
// blocking read is reported as ErrReadTimeout instead.
func IsWouldBlock(err error) bool {
	if errors.Is(err, frame.ErrIncomplete) || errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

func isClosedErr(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed)
}
