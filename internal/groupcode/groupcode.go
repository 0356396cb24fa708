// Package groupcode allocates the short join codes players share to invite
// others into a group.
//
// Uniqueness is enforced by the store, not by a lookup: the allocator draws a
// code, hands it to an insert callback, and draws again only when the insert
// reports repository.ErrCodeTaken.
package groupcode

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/sakif/prediction-league/internal/apperror"
	"github.com/sakif/prediction-league/internal/repository"
)

const (
	Alphabet           = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	DefaultLength      = 6
	DefaultMaxAttempts = 10
)

// ErrStarved is returned by Generate when the random source yields too few
// usable bytes for one code. Allocate counts it as a failed attempt.
var ErrStarved = errors.New("groupcode: random source yielded no usable bytes")

// drawsPerSymbol bounds the bytes read per code symbol.
const drawsPerSymbol = 4

// Allocator draws random codes and retries on collision.
type Allocator struct {
	length      int
	maxAttempts int
	random      io.Reader
}

// Option configures an Allocator.
type Option func(*Allocator)

// WithRandom replaces the random source. Tests use it to force collisions.
func WithRandom(r io.Reader) Option {
	return func(a *Allocator) { a.random = r }
}

// New returns an Allocator producing codes of the given length with at most
// maxAttempts inserts per allocation. Non-positive values fall back to the
// defaults.
func New(length, maxAttempts int, opts ...Option) *Allocator {
	if length <= 0 {
		length = DefaultLength
	}
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	a := &Allocator{length: length, maxAttempts: maxAttempts, random: rand.Reader}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Allocate draws a code and calls insert with it. It retries with a fresh code
// while insert returns repository.ErrCodeTaken and gives up with
// apperror.ErrCodeGenerationExhausted after the attempt cap. Any other insert
// error is returned unchanged.
func (a *Allocator) Allocate(ctx context.Context, insert func(ctx context.Context, code string) error) (string, error) {
	for attempt := 0; attempt < a.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		code, err := a.Generate()
		if errors.Is(err, ErrStarved) {
			continue
		}
		if err != nil {
			return "", err
		}

		err = insert(ctx, code)
		if err == nil {
			return code, nil
		}
		if !errors.Is(err, repository.ErrCodeTaken) {
			return "", err
		}
	}
	return "", apperror.CodeGenerationExhausted(a.maxAttempts)
}

// Generate draws one code. Bytes at or above the largest multiple of the
// alphabet size are rejected so every symbol is equally likely; after
// drawsPerSymbol*length bytes without a full code it returns ErrStarved.
func (a *Allocator) Generate() (string, error) {
	const limit = 256 - 256%len(Alphabet)

	budget := drawsPerSymbol * a.length
	code := make([]byte, 0, a.length)
	for len(code) < a.length {
		if budget == 0 {
			return "", ErrStarved
		}
		buf := make([]byte, min(a.length-len(code), budget))
		budget -= len(buf)
		if _, err := io.ReadFull(a.random, buf); err != nil {
			return "", fmt.Errorf("groupcode: reading random bytes: %w", err)
		}
		for _, b := range buf {
			if int(b) >= limit {
				continue
			}
			code = append(code, Alphabet[int(b)%len(Alphabet)])
		}
	}
	return string(code), nil
}

// Normalize trims and upper-cases a user-supplied code.
func Normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Valid reports whether code has the allocator's shape.
func (a *Allocator) Valid(code string) bool {
	if len(code) != a.length {
		return false
	}
	for i := 0; i < len(code); i++ {
		if strings.IndexByte(Alphabet, code[i]) < 0 {
			return false
		}
	}
	return true
}
