// Package extract implements an ordered extraction chain: archive →
// rich-document → basic, each strategy answering "can I handle this
// file" and, if so, producing (content, metadata). A strategy can fail
// two ways: an ordinary failure lets the chain try the next strategy,
// while a no-fallback failure means "I positively identified myself as
// the authoritative handler and still failed" and aborts extraction for
// the file. Each strategy is a small pluggable interface behind the
// chain, rather than one monolithic dispatcher.
package extract

import (
	"context"
	"errors"
	"fmt"
	"os"
)

// Content is what every strategy returns: extracted text plus whatever
// metadata it could recover. Metadata always carries "extraction_method";
// it may also carry title, author, description, subject, language,
// producer, application, comments, revision, keywords, and document
// dates.
type Content struct {
	Text     string
	Metadata map[string]string
	Keywords []string
}

// Strategy is one extraction method in the chain.
type Strategy interface {
	// Name identifies the strategy for metadata and logging.
	Name() string
	// CanExtract reports whether this strategy should be tried for path.
	// It must be cheap: extension/MIME sniffing, not a full parse.
	CanExtract(path string) bool
	// Extract produces content for path. A caller sees a *NoFallbackError
	// via errors.As when this strategy positively identified itself as
	// the file's handler and still failed; any other error is ordinary
	// and the chain moves on to the next strategy.
	Extract(ctx context.Context, path string) (Content, error)
}

// NoFallbackError signals that a strategy identified itself as the
// authoritative handler for a file and failed anyway: the chain must
// not try the next strategy and must report this file as an error.
type NoFallbackError struct {
	Strategy string
	Path     string
	Err      error
}

func (e *NoFallbackError) Error() string {
	return fmt.Sprintf("%s: no-fallback failure extracting %s: %v", e.Strategy, e.Path, e.Err)
}

func (e *NoFallbackError) Unwrap() error { return e.Err }

// IsNoFallback reports whether err is (or wraps) a NoFallbackError.
func IsNoFallback(err error) bool {
	var nf *NoFallbackError
	return errors.As(err, &nf)
}

// Chain is an ordered, non-branching list of strategies. Archive
// handling achieves recursion by holding its own inner Chain rather
// than the outer chain being a tree.
type Chain struct {
	strategies []Strategy
}

// NewChain builds a Chain from strategies in priority order.
func NewChain(strategies ...Strategy) *Chain {
	return &Chain{strategies: strategies}
}

// Extract runs path through the chain, stopping at the first strategy
// that claims it and either succeeds or raises a no-fallback failure.
// An ENOENT observed at the top fails immediately rather than letting
// every strategy rediscover the same missing file.
func (c *Chain) Extract(ctx context.Context, path string) (Content, error) {
	if _, err := os.Stat(path); err != nil {
		return Content{}, fmt.Errorf("extract: %w", err)
	}

	var lastErr error
	for _, s := range c.strategies {
		if ctx.Err() != nil {
			return Content{}, ctx.Err()
		}
		if !s.CanExtract(path) {
			continue
		}
		content, err := s.Extract(ctx, path)
		if err == nil {
			if content.Metadata == nil {
				content.Metadata = map[string]string{}
			}
			if _, ok := content.Metadata["extraction_method"]; !ok {
				content.Metadata["extraction_method"] = s.Name()
			}
			return content, nil
		}
		if IsNoFallback(err) {
			return Content{}, err
		}
		lastErr = err
	}

	if lastErr != nil {
		return Content{}, fmt.Errorf("extract: all strategies failed for %s: %w", path, lastErr)
	}
	return Content{Metadata: map[string]string{"extraction_method": "none"}}, nil
}
