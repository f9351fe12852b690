// Package humanid mints short customer-facing references such as FM-7KQ2XD.
package humanid

import (
	"context"
	"fmt"
	"strings"
	"sync"

	nanoid "github.com/jaevor/go-nanoid"

	pkgerrors "github.com/fashionmarket/storefront-backend/pkg/errors"
)

const (
	// Alphabet drops 0/O and 1/I so codes survive being read over the phone.
	Alphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	// Length is the number of random symbols after the prefix.
	Length = 6
	// MaxAttempts bounds collision retries before giving up.
	MaxAttempts = 10
)

// Generator produces prefixed codes. It is safe for concurrent use.
type Generator struct {
	prefix string
	mu     sync.Mutex
	next   func() string
}

// New builds a generator for codes shaped <prefix>-XXXXXX.
func New(prefix string) (*Generator, error) {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return nil, fmt.Errorf("humanid prefix required")
	}
	next, err := nanoid.CustomASCII(Alphabet, Length)
	if err != nil {
		return nil, fmt.Errorf("humanid generator: %w", err)
	}
	return &Generator{prefix: prefix, next: next}, nil
}

// NewWithSource is New with a caller-controlled symbol source, for tests.
func NewWithSource(prefix string, next func() string) *Generator {
	return &Generator{prefix: prefix, next: next}
}

// Next returns a fresh candidate code.
func (g *Generator) Next() string {
	g.mu.Lock()
	body := g.next()
	g.mu.Unlock()
	return g.prefix + "-" + body
}

// Valid reports whether code has this generator's shape.
func (g *Generator) Valid(code string) bool {
	body, ok := strings.CutPrefix(code, g.prefix+"-")
	if !ok || len(body) != Length {
		return false
	}
	for _, r := range body {
		if !strings.ContainsRune(Alphabet, r) {
			return false
		}
	}
	return true
}

// Exists reports whether a candidate is already taken.
type Exists func(ctx context.Context, code string) (bool, error)

// Allocate draws candidates until one is free, up to MaxAttempts. A lookup
// only filters obvious collisions; the caller's unique index stays the
// authority and the caller retries Allocate on a violation.
func (g *Generator) Allocate(ctx context.Context, exists Exists, what string) (string, error) {
	for attempt := 0; attempt < MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		code := g.Next()
		taken, err := exists(ctx, code)
		if err != nil {
			return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check "+what+" uniqueness")
		}
		if !taken {
			return code, nil
		}
	}
	return "", pkgerrors.New(pkgerrors.CodeConflict, what+" generation exhausted")
}
