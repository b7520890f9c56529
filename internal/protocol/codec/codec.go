// Package codec serializes typed values into tagged envelopes.
package codec

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/danmuck/framefactor/internal/protocol/frame"
)

var (
	ErrMalformedBody = errors.New("codec: malformed body")
	ErrTagMismatch   = errors.New("codec: tag mismatch")
)

func Marshal[T any](tag frame.Tag, v T) (frame.Envelope, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return frame.Envelope{}, fmt.Errorf("codec: marshal %T: %w", v, err)
	}
	return frame.Envelope{Tag: tag, Body: body}, nil
}

func Unmarshal[T any](env frame.Envelope) (T, error) {
	var v T
	if err := json.Unmarshal(env.Body, &v); err != nil {
		return v, fmt.Errorf("%w: tag=%s: %v", ErrMalformedBody, env.Tag, err)
	}
	return v, nil
}

// UnmarshalTagged additionally checks that env carries the expected tag.
func UnmarshalTagged[T any](tag frame.Tag, env frame.Envelope) (T, error) {
	if env.Tag != tag {
		var zero T
		return zero, fmt.Errorf("%w: got=%s want=%s", ErrTagMismatch, env.Tag, tag)
	}
	return Unmarshal[T](env)
}
