// Package codec talks to the external text-generation and embedding
// services.
package codec

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// #region errors

// ErrEmptyGeneration is returned when a backend answers with no text.
var ErrEmptyGeneration = errors.New("generation returned empty text")

// GenerationError carries a backend failure with its status and body so the
// audit log keeps full detail.
type GenerationError struct {
	Status  int
	Body    string
	Backend string
	Err     error
}

func (e *GenerationError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s generation failed (status %d)", e.Backend, e.Status)
	}
	return fmt.Sprintf("%s generation failed (status %d): %s", e.Backend, e.Status, e.Body)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// #endregion errors

// #region types

// Request is one generation call.
type Request struct {
	SystemPrompt string
	UserPrompt   string
	Temperature  float32
	MaxTokens    int
}

// Generator produces reply text. It is called at most once per turn.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// Embedder embeds a batch of inputs. purpose lets a backend pick a model.
type Embedder interface {
	Embed(ctx context.Context, purpose string, inputs []string) ([][]float32, error)
}

// #endregion types

// #region timeout

type timeoutGenerator struct {
	next    Generator
	timeout time.Duration
}

// WithTimeout bounds every Generate call on g by d. A non-positive d
// returns g unchanged.
func WithTimeout(g Generator, d time.Duration) Generator {
	if d <= 0 || g == nil {
		return g
	}
	return &timeoutGenerator{next: g, timeout: d}
}

func (t *timeoutGenerator) Generate(ctx context.Context, req Request) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.next.Generate(ctx, req)
}

// #endregion timeout
