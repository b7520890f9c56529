package session

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/danmuck/framefactor/internal/protocol/codec"
	"github.com/danmuck/framefactor/internal/protocol/frame"
)

const GreetingLen = 8

var (
	ErrShortGreeting = errors.New("session: short greeting")
	ErrShortWrite    = errors.New("session: short greeting write")
)

// ActorID identifies one peer in a session. The server is always ServerID.
type ActorID uint32

const ServerID ActorID = 0

func (id ActorID) String() string {
	return fmt.Sprintf("actor:%d", uint32(id))
}

// Greeting is the server->client handshake sent unframed right after accept.
type Greeting struct {
	ClientID ActorID
	ServerID ActorID
}

func WriteGreeting(w io.Writer, g Greeting) error {
	var buf [GreetingLen]byte
	binary.BigEndian.PutUint32(buf[0:4], uint32(g.ClientID))
	binary.BigEndian.PutUint32(buf[4:8], uint32(g.ServerID))
	n, err := w.Write(buf[:])
	if err != nil {
		return err
	}
	if n != GreetingLen {
		return ErrShortWrite
	}
	return nil
}

func ReadGreeting(r io.Reader) (Greeting, error) {
	var buf [GreetingLen]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return Greeting{}, ErrShortGreeting
		}
		return Greeting{}, err
	}
	return Greeting{
		ClientID: ActorID(binary.BigEndian.Uint32(buf[0:4])),
		ServerID: ActorID(binary.BigEndian.Uint32(buf[4:8])),
	}, nil
}

// HelloTag marks the default client greeting payload.
var HelloTag = frame.MustTag("9968f81b-59da-4292-8015-d6d4bbccb5c7")

// Hello is the client->server greeting carried in the first framed envelope.
type Hello struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

func (h Hello) Envelope() (frame.Envelope, error) {
	return codec.Marshal(HelloTag, h)
}

// DecodeHello returns ok=false when env is not a Hello.
func DecodeHello(env frame.Envelope) (Hello, bool, error) {
	if env.Tag != HelloTag {
		return Hello{}, false, nil
	}
	h, err := codec.Unmarshal[Hello](env)
	if err != nil {
		return Hello{}, true, err
	}
	return h, true, nil
}
