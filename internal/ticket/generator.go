// Package ticket allocates human-facing ticket codes for rendiciones.
package ticket

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"

	"go.uber.org/zap"
)

const (
	prefix = "RND-"

	baseDigits = 6
	wideDigits = 9

	// attemptsPerRound bounds the collision retries in each digit space.
	// Exhausting the 6-digit round means the space is badly crowded, so
	// one widened round is tried before giving up.
	attemptsPerRound = 32
)

// ErrExhausted is returned when no free code was found in either digit space
var ErrExhausted = errors.New("ticket space exhausted")

// Exists reports whether a candidate code is already taken
type Exists func(ctx context.Context, code string) (bool, error)

// Generator allocates unique ticket codes of the form RND-123456
type Generator struct {
	exists Exists
	logger *zap.Logger
}

// NewGenerator creates a ticket generator backed by the given existence check
func NewGenerator(exists Exists, logger *zap.Logger) *Generator {
	return &Generator{exists: exists, logger: logger}
}

// Generate returns a ticket code not currently in use. Uniqueness against
// concurrent callers is ultimately enforced by the store's unique index; this
// generator only makes collisions on insert rare.
func (g *Generator) Generate(ctx context.Context) (string, error) {
	code, err := g.tryRound(ctx, baseDigits)
	if err == nil {
		return code, nil
	}
	if !errors.Is(err, ErrExhausted) {
		return "", err
	}

	g.logger.Warn("ticket space crowded, widening suffix", zap.Int("digits", wideDigits))

	code, err = g.tryRound(ctx, wideDigits)
	if err != nil {
		return "", err
	}
	return code, nil
}

func (g *Generator) tryRound(ctx context.Context, digits int) (string, error) {
	limit := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(digits)), nil)

	for attempt := 0; attempt < attemptsPerRound; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", fmt.Errorf("failed to draw ticket suffix: %w", err)
		}
		code := fmt.Sprintf("%s%0*d", prefix, digits, n)

		taken, err := g.exists(ctx, code)
		if err != nil {
			return "", fmt.Errorf("failed to check ticket %s: %w", code, err)
		}
		if !taken {
			return code, nil
		}
	}

	return "", fmt.Errorf("%w: %d attempts at %d digits", ErrExhausted, attemptsPerRound, digits)
}
