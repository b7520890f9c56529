package frame

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"testing"
)

var testTag = MustTag("d4acd5da-0fdd-412c-9c6b-96ed1bca3595")

func TestReadWriteFrameRoundTrip(t *testing.T) {
	in := Envelope{Tag: testTag, Body: []byte(`{"entity":7}`)}
	var buf bytes.Buffer
	if err := WriteFrame(&buf, in, DefaultLimits()); err != nil {
		t.Fatalf("write frame: %v", err)
	}
	if got := binary.BigEndian.Uint32(buf.Bytes()[:4]); got != uint32(TagLen+len(in.Body)) {
		t.Fatalf("unexpected length prefix: %d", got)
	}
	out, err := ReadFrame(&buf, DefaultLimits())
	if err != nil {
		t.Fatalf("read frame: %v", err)
	}
	if out.Tag != in.Tag {
		t.Fatalf("tag mismatch: got=%s want=%s", out.Tag, in.Tag)
	}
	if !bytes.Equal(out.Body, in.Body) {
		t.Fatalf("body mismatch: %q", out.Body)
	}
}

func TestEncodeEmptyBody(t *testing.T) {
	b, err := Encode(Envelope{Tag: testTag}, DefaultLimits())
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if len(b) != LengthPrefixLen+TagLen {
		t.Fatalf("unexpected frame length: %d", len(b))
	}
	d := NewDecoder(DefaultLimits())
	d.Feed(b)
	env, err := d.Next()
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if env.Tag != testTag || len(env.Body) != 0 {
		t.Fatalf("unexpected envelope: %+v", env)
	}
}

func TestEncodeRejectsOversizedFrame(t *testing.T) {
	_, err := Encode(Envelope{Tag: testTag, Body: make([]byte, 64)}, Limits{MaxFrameBytes: 32})
	if !errors.Is(err, ErrFrameTooLarge) {
		t.Fatalf("expected ErrFrameTooLarge, got %v", err)
	}
}

func TestDecoderSplitAtEveryBoundary(t *testing.T) {
	envs := []Envelope{
		{Tag: testTag, Body: []byte("alpha")},
		{Tag: MustTag("053c55fe-dcd8-4746-829f-51760445739e"), Body: nil},
		{Tag: testTag, Body: bytes.Repeat([]byte{0xAB}, 300)},
	}
	var stream []byte
	for _, env := range envs {
		b, err := Encode(env, DefaultLimits())
		if err != nil {
			t.Fatalf("encode: %v", err)
		}
		stream = append(stream, b...)
	}

	whole := decodeAll(t, [][]byte{stream})
	if len(whole) != len(envs) {
		t.Fatalf("expected %d envelopes, got %d", len(envs), len(whole))
	}

	for cut := 0; cut <= len(stream); cut++ {
		got := decodeAll(t, [][]byte{stream[:cut], stream[cut:]})
		assertSameEnvelopes(t, cut, got, whole)
	}

	// one byte at a time
	chunks := make([][]byte, 0, len(stream))
	for i := range stream {
		chunks = append(chunks, stream[i:i+1])
	}
	assertSameEnvelopes(t, -1, decodeAll(t, chunks), whole)
}

func TestDecoderIncompleteDoesNotConsume(t *testing.T) {
	b, err := Encode(Envelope{Tag: testTag, Body: []byte("payload")}, DefaultLimits())
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	d := NewDecoder(DefaultLimits())
	d.Feed(b[:6])
	if _, err := d.Next(); !errors.Is(err, ErrIncomplete) {
		t.Fatalf("expected ErrIncomplete, got %v", err)
	}
	if d.Buffered() != 6 {
		t.Fatalf("incomplete read consumed bytes: buffered=%d", d.Buffered())
	}
	d.Feed(b[6:])
	env, err := d.Next()
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if string(env.Body) != "payload" {
		t.Fatalf("unexpected body: %q", env.Body)
	}
	if d.Buffered() != 0 {
		t.Fatalf("expected drained decoder, buffered=%d", d.Buffered())
	}
}

func TestDecoderRejectsShortEnvelope(t *testing.T) {
	d := NewDecoder(DefaultLimits())
	d.Feed([]byte{0, 0, 0, 3, 1, 2, 3})
	if _, err := d.Next(); !errors.Is(err, ErrShortEnvelope) {
		t.Fatalf("expected ErrShortEnvelope, got %v", err)
	}
}

func TestDecoderRejectsOversizedLengthBeforeBuffering(t *testing.T) {
	d := NewDecoder(Limits{MaxFrameBytes: 64})
	d.Feed([]byte{0, 0, 1, 0})
	if _, err := d.Next(); !errors.Is(err, ErrFrameTooLarge) {
		t.Fatalf("expected ErrFrameTooLarge, got %v", err)
	}
}

func TestReadFrameTruncated(t *testing.T) {
	b, err := Encode(Envelope{Tag: testTag, Body: []byte("abc")}, DefaultLimits())
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	_, err = ReadFrame(bytes.NewReader(b[:len(b)-1]), DefaultLimits())
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Fatalf("expected io.ErrUnexpectedEOF, got %v", err)
	}
}

type shortWriter struct{}

func (shortWriter) Write(p []byte) (int, error) { return len(p) / 2, nil }

func TestWriteFrameShortWrite(t *testing.T) {
	err := WriteFrame(shortWriter{}, Envelope{Tag: testTag, Body: []byte("abcdef")}, DefaultLimits())
	if !errors.Is(err, io.ErrShortWrite) {
		t.Fatalf("expected io.ErrShortWrite, got %v", err)
	}
}

func decodeAll(t *testing.T, chunks [][]byte) []Envelope {
	t.Helper()
	d := NewDecoder(DefaultLimits())
	var out []Envelope
	for _, chunk := range chunks {
		d.Feed(chunk)
		for {
			env, err := d.Next()
			if errors.Is(err, ErrIncomplete) {
				break
			}
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			out = append(out, env)
		}
	}
	if d.Buffered() != 0 {
		t.Fatalf("leftover bytes: %d", d.Buffered())
	}
	return out
}

func assertSameEnvelopes(t *testing.T, cut int, got, want []Envelope) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("cut=%d: expected %d envelopes, got %d", cut, len(want), len(got))
	}
	for i := range want {
		if got[i].Tag != want[i].Tag || !bytes.Equal(got[i].Body, want[i].Body) {
			t.Fatalf("cut=%d: envelope %d mismatch", cut, i)
		}
	}
}
