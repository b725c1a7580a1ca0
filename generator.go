package loopdeck

import (
	"context"

	"github.com/cbegin/loopdeck-go/internal/composition"
)

// Generator produces a composition from a free-text prompt. The engine
// never calls it; it marks the boundary to whatever service writes the
// music. Implementations that receive raw model text should pass it
// through composition.Extract.
type Generator interface {
	Generate(ctx context.Context, prompt string) (*composition.Document, error)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(ctx context.Context, prompt string) (*composition.Document, error)

func (f GeneratorFunc) Generate(ctx context.Context, prompt string) (*composition.Document, error) {
	return f(ctx, prompt)
}

// Generate asks g for a composition and loads it. A failed generation or
// a nil document leaves the current composition playing.
func (e *Engine) Generate(ctx context.Context, g Generator, prompt string) error {
	doc, err := g.Generate(ctx, prompt)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return e.LoadComposition(doc)
}
