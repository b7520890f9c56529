package frame

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
)

const (
	LengthPrefixLen = 4
	TagLen          = 16
)

var (
	ErrIncomplete    = errors.New("frame: incomplete frame")
	ErrFrameTooLarge = errors.New("frame: frame too large")
	ErrShortEnvelope = errors.New("frame: envelope shorter than type tag")
)

// Tag is the 128-bit routing key of one replicated type.
type Tag = uuid.UUID

// MustTag parses a canonical uuid string into a Tag and panics on malformed input.
// Intended for package-level tag declarations.
func MustTag(s string) Tag {
	return uuid.MustParse(s)
}

// Envelope is one tagged unit of application data.
type Envelope struct {
	Tag  Tag
	Body []byte
}

// Limits constrains frame decode/encode memory use.
type Limits struct {
	MaxFrameBytes uint32
}

func DefaultLimits() Limits {
	return Limits{
		MaxFrameBytes: 4 * 1024 * 1024,
	}
}

func (l Limits) withDefaults() Limits {
	if l.MaxFrameBytes == 0 {
		return DefaultLimits()
	}
	return l
}

// Encode returns the length-prefixed wire bytes for env.
func Encode(env Envelope, limits Limits) ([]byte, error) {
	limits = limits.withDefaults()
	n := uint64(TagLen) + uint64(len(env.Body))
	if n > uint64(limits.MaxFrameBytes) {
		return nil, fmt.Errorf("%w: %d > %d", ErrFrameTooLarge, n, limits.MaxFrameBytes)
	}
	buf := make([]byte, LengthPrefixLen+int(n))
	binary.BigEndian.PutUint32(buf[0:LengthPrefixLen], uint32(n))
	copy(buf[LengthPrefixLen:LengthPrefixLen+TagLen], env.Tag[:])
	copy(buf[LengthPrefixLen+TagLen:], env.Body)
	return buf, nil
}

// WriteFrame writes one complete frame with a single write call.
func WriteFrame(w io.Writer, env Envelope, limits Limits) error {
	buf, err := Encode(env, limits)
	if err != nil {
		return err
	}
	n, err := w.Write(buf)
	if err != nil {
		return err
	}
	if n != len(buf) {
		return io.ErrShortWrite
	}
	return nil
}

// ReadFrame blocks until exactly one frame has been read from r.
func ReadFrame(r io.Reader, limits Limits) (Envelope, error) {
	limits = limits.withDefaults()
	var prefix [LengthPrefixLen]byte
	if _, err := io.ReadFull(r, prefix[:]); err != nil {
		return Envelope{}, err
	}
	n := binary.BigEndian.Uint32(prefix[:])
	if err := checkLength(n, limits); err != nil {
		return Envelope{}, err
	}
	payload := make([]byte, n)
	if _, err := io.ReadFull(r, payload); err != nil {
		return Envelope{}, err
	}
	return parseEnvelope(payload), nil
}

func checkLength(n uint32, limits Limits) error {
	if n > limits.MaxFrameBytes {
		return fmt.Errorf("%w: %d > %d", ErrFrameTooLarge, n, limits.MaxFrameBytes)
	}
	if n < TagLen {
		return fmt.Errorf("%w: length=%d", ErrShortEnvelope, n)
	}
	return nil
}

// parseEnvelope expects len(payload) >= TagLen.
func parseEnvelope(payload []byte) Envelope {
	var env Envelope
	copy(env.Tag[:], payload[:TagLen])
	env.Body = payload[TagLen:]
	return env
}
