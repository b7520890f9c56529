package codec

import (
	"errors"
	"testing"

	"github.com/danmuck/framefactor/internal/protocol/frame"
)

type position struct {
	X float32 `json:"x"`
	Y float32 `json:"y"`
}

type spawnable struct {
	Frame    string   `json:"frame"`
	PlayerID uint32   `json:"player_id"`
	Position position `json:"position"`
}

var testTag = frame.MustTag("053c55fe-dcd8-4746-829f-51760445739e")

func TestMarshalThroughFrameRoundTrip(t *testing.T) {
	in := spawnable{Frame: "frames/katana_one/frame.fme", PlayerID: 2, Position: position{X: -100, Y: 0}}
	env, err := Marshal(testTag, in)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	wire, err := frame.Encode(env, frame.DefaultLimits())
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	d := frame.NewDecoder(frame.DefaultLimits())
	d.Feed(wire)
	decoded, err := d.Next()
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	out, err := UnmarshalTagged[spawnable](testTag, decoded)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out != in {
		t.Fatalf("unexpected value: got=%+v want=%+v", out, in)
	}
}

func TestMarshalIsDeterministic(t *testing.T) {
	v := spawnable{Frame: "f", PlayerID: 1}
	a, err := Marshal(testTag, v)
	if err != nil {
		t.Fatalf("marshal a: %v", err)
	}
	b, err := Marshal(testTag, v)
	if err != nil {
		t.Fatalf("marshal b: %v", err)
	}
	if string(a.Body) != string(b.Body) {
		t.Fatalf("non-deterministic body: %q vs %q", a.Body, b.Body)
	}
}

func TestUnmarshalMalformedBody(t *testing.T) {
	_, err := Unmarshal[spawnable](frame.Envelope{Tag: testTag, Body: []byte("{not json")})
	if !errors.Is(err, ErrMalformedBody) {
		t.Fatalf("expected ErrMalformedBody, got %v", err)
	}
}

func TestUnmarshalTaggedMismatch(t *testing.T) {
	env, err := Marshal(frame.MustTag("1f4df47b-58da-477b-9921-0ac53cefd889"), position{})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if _, err := UnmarshalTagged[position](testTag, env); !errors.Is(err, ErrTagMismatch) {
		t.Fatalf("expected ErrTagMismatch, got %v", err)
	}
}
