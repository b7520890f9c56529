package frame

import "encoding/binary"

// Decoder reassembles frames from arbitrarily split byte chunks.
//
// Next peeks the length prefix without consuming it and only consumes once the whole frame is
// buffered, so a caller polling a non-blocking source can retry on ErrIncomplete.
type Decoder struct {
	limits Limits
	buf    []byte
	off    int
}

func NewDecoder(limits Limits) *Decoder {
	return &Decoder{limits: limits.withDefaults()}
}

// Feed appends raw stream bytes.
func (d *Decoder) Feed(p []byte) {
	if len(p) == 0 {
		return
	}
	d.compact()
	d.buf = append(d.buf, p...)
}

// Next returns the next complete envelope, ErrIncomplete when more bytes are needed, or a
// fatal error for a frame that can never be decoded.
func (d *Decoder) Next() (Envelope, error) {
	avail := d.buf[d.off:]
	if len(avail) < LengthPrefixLen {
		return Envelope{}, ErrIncomplete
	}
	n := binary.BigEndian.Uint32(avail[:LengthPrefixLen])
	if err := checkLength(n, d.limits); err != nil {
		return Envelope{}, err
	}
	total := LengthPrefixLen + int(n)
	if len(avail) < total {
		return Envelope{}, ErrIncomplete
	}
	payload := make([]byte, n)
	copy(payload, avail[LengthPrefixLen:total])
	d.off += total
	return parseEnvelope(payload), nil
}

// Buffered reports bytes fed but not yet consumed.
func (d *Decoder) Buffered() int {
	return len(d.buf) - d.off
}

func (d *Decoder) compact() {
	if d.off == 0 {
		return
	}
	rest := copy(d.buf, d.buf[d.off:])
	d.buf = d.buf[:rest]
	d.off = 0
}
