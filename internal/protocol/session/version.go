package session

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/danmuck/framefactor/internal/protocol/frame"
)

var (
	ErrInvalidVersionPolicy = errors.New("session: invalid version policy")
	ErrVersionRejected      = errors.New("session: client version rejected")
)

// VersionPolicy admits or rejects client greetings by their declared version.
type VersionPolicy struct {
	constraint *semver.Constraints
	raw        string
}

// ParseVersionPolicy accepts an empty constraint, which admits every client.
func ParseVersionPolicy(constraint string) (VersionPolicy, error) {
	raw := strings.TrimSpace(constraint)
	if raw == "" {
		return VersionPolicy{}, nil
	}
	c, err := semver.NewConstraint(raw)
	if err != nil {
		return VersionPolicy{}, fmt.Errorf("%w: %q: %v", ErrInvalidVersionPolicy, raw, err)
	}
	return VersionPolicy{constraint: c, raw: raw}, nil
}

func (p VersionPolicy) String() string {
	return p.raw
}

// Admit checks a greeting envelope. Greetings that are not a Hello carry no version and are
// admitted.
func (p VersionPolicy) Admit(env frame.Envelope) error {
	if p.constraint == nil {
		return nil
	}
	hello, ok, err := DecodeHello(env)
	if !ok {
		return nil
	}
	if err != nil {
		return err
	}
	v, err := semver.NewVersion(strings.TrimSpace(hello.Version))
	if err != nil {
		return fmt.Errorf("%w: unparsable version %q", ErrVersionRejected, hello.Version)
	}
	if !p.constraint.Check(v) {
		return fmt.Errorf("%w: %s does not satisfy %s", ErrVersionRejected, v, p.raw)
	}
	return nil
}
