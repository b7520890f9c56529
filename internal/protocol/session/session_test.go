package session

import (
	"bytes"
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/danmuck/framefactor/internal/protocol/frame"
	"github.com/danmuck/framefactor/internal/testutil/testlog"
)

func TestNextBackoffDelayDeterministicNoJitter(t *testing.T) {
	testlog.Start(t)
	cfg := BackoffConfig{
		InitialDelay: 250 * time.Millisecond,
		Multiplier:   2.0,
		MaxDelay:     5 * time.Second,
		Jitter:       false,
	}
	if got := NextBackoffDelay(cfg, 1, nil); got != 250*time.Millisecond {
		t.Fatalf("attempt1 got=%v", got)
	}
	if got := NextBackoffDelay(cfg, 2, nil); got != 500*time.Millisecond {
		t.Fatalf("attempt2 got=%v", got)
	}
	if got := NextBackoffDelay(cfg, 3, nil); got != time.Second {
		t.Fatalf("attempt3 got=%v", got)
	}
	if got := NextBackoffDelay(cfg, 6, nil); got != 5*time.Second {
		t.Fatalf("attempt6 got=%v", got)
	}
}

func TestNextBackoffDelayJitterRange(t *testing.T) {
	testlog.Start(t)
	cfg := BackoffConfig{
		InitialDelay: 250 * time.Millisecond,
		Multiplier:   2.0,
		MaxDelay:     5 * time.Second,
		Jitter:       true,
	}
	rng := rand.New(rand.NewSource(7))
	got := NextBackoffDelay(cfg, 2, rng)
	if got < 250*time.Millisecond || got > 750*time.Millisecond {
		t.Fatalf("jitter out of range: %v", got)
	}
}

func TestWaitBackoffHonorsContext(t *testing.T) {
	testlog.Start(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := WaitBackoff(ctx, BackoffConfig{InitialDelay: time.Hour}, 1, nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestConfigWithDefaults(t *testing.T) {
	testlog.Start(t)
	cfg := Config{HandshakeTimeout: time.Second}.WithDefaults()
	def := DefaultConfig()
	if cfg.HandshakeTimeout != time.Second {
		t.Fatalf("explicit handshake timeout overwritten: %v", cfg.HandshakeTimeout)
	}
	if cfg.WriteTimeout != def.WriteTimeout || cfg.ConnectAttempts != def.ConnectAttempts {
		t.Fatalf("defaults not applied: %+v", cfg)
	}
	if cfg.Backoff != def.Backoff {
		t.Fatalf("unexpected backoff: %+v", cfg.Backoff)
	}
}

func TestGreetingRoundTripIsUnframed(t *testing.T) {
	testlog.Start(t)
	var buf bytes.Buffer
	if err := WriteGreeting(&buf, Greeting{ClientID: 3, ServerID: ServerID}); err != nil {
		t.Fatalf("write greeting: %v", err)
	}
	if buf.Len() != GreetingLen {
		t.Fatalf("greeting must be exactly %d bytes, got %d", GreetingLen, buf.Len())
	}
	if !bytes.Equal(buf.Bytes(), []byte{0, 0, 0, 3, 0, 0, 0, 0}) {
		t.Fatalf("unexpected greeting bytes: %v", buf.Bytes())
	}
	got, err := ReadGreeting(&buf)
	if err != nil {
		t.Fatalf("read greeting: %v", err)
	}
	if got.ClientID != 3 || got.ServerID != ServerID {
		t.Fatalf("unexpected greeting: %+v", got)
	}
}

func TestReadGreetingShort(t *testing.T) {
	testlog.Start(t)
	if _, err := ReadGreeting(bytes.NewReader([]byte{0, 0, 1})); !errors.Is(err, ErrShortGreeting) {
		t.Fatalf("expected ErrShortGreeting, got %v", err)
	}
}

func TestHelloEnvelopeRoundTrip(t *testing.T) {
	testlog.Start(t)
	env, err := Hello{Name: "katana", Version: "1.2.0"}.Envelope()
	if err != nil {
		t.Fatalf("hello envelope: %v", err)
	}
	got, ok, err := DecodeHello(env)
	if err != nil || !ok {
		t.Fatalf("decode hello ok=%v err=%v", ok, err)
	}
	if got.Name != "katana" || got.Version != "1.2.0" {
		t.Fatalf("unexpected hello: %+v", got)
	}
	if _, ok, _ := DecodeHello(frame.Envelope{Tag: frame.MustTag("4a559fd6-20c6-4d5e-85e8-3e5611b0987f")}); ok {
		t.Fatalf("foreign tag decoded as hello")
	}
}

func TestVersionPolicy(t *testing.T) {
	testlog.Start(t)
	open, err := ParseVersionPolicy("")
	if err != nil {
		t.Fatalf("parse empty policy: %v", err)
	}
	old, _ := Hello{Name: "a", Version: "0.9.0"}.Envelope()
	if err := open.Admit(old); err != nil {
		t.Fatalf("empty policy must admit: %v", err)
	}

	policy, err := ParseVersionPolicy("^1.0")
	if err != nil {
		t.Fatalf("parse policy: %v", err)
	}
	if err := policy.Admit(old); !errors.Is(err, ErrVersionRejected) {
		t.Fatalf("expected ErrVersionRejected, got %v", err)
	}
	current, _ := Hello{Name: "b", Version: "1.4.2"}.Envelope()
	if err := policy.Admit(current); err != nil {
		t.Fatalf("expected admission, got %v", err)
	}
	garbage, _ := Hello{Name: "c", Version: "latest"}.Envelope()
	if err := policy.Admit(garbage); !errors.Is(err, ErrVersionRejected) {
		t.Fatalf("expected ErrVersionRejected for unparsable version, got %v", err)
	}
	if err := policy.Admit(frame.Envelope{Tag: frame.MustTag("4a559fd6-20c6-4d5e-85e8-3e5611b0987f")}); err != nil {
		t.Fatalf("non-hello greeting must be admitted: %v", err)
	}

	if _, err := ParseVersionPolicy(">>nope"); !errors.Is(err, ErrInvalidVersionPolicy) {
		t.Fatalf("expected ErrInvalidVersionPolicy, got %v", err)
	}
}
