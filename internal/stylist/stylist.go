// Package stylist rewrites assistant messages into friendlier prose with a
// hosted language model. Styling is cosmetic: every failure falls back to the
// original text.
package stylist

import (
	"context"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"
)

// MaxOutput is the longest rewrite accepted, in runes.
const MaxOutput = 600

const defaultText = "Thank you. Please continue with the details."

// Rewriter is a language model backend.
type Rewriter interface {
	Rewrite(ctx context.Context, userInput, text string) (string, error)
	Name() string
}

// Stylist applies a Rewriter under a timeout and validates its output.
type Stylist struct {
	rw      Rewriter
	timeout time.Duration
	logger  *slog.Logger
}

// New returns a Stylist. A nil Rewriter returns every message unchanged.
func New(rw Rewriter, timeout time.Duration, logger *slog.Logger) *Stylist {
	return &Stylist{rw: rw, timeout: timeout, logger: logger}
}

// Passthrough returns a Stylist that never calls a model.
func Passthrough(logger *slog.Logger) *Stylist {
	return New(nil, 0, logger)
}

// Provider names the configured backend, or "none".
func (s *Stylist) Provider() string {
	if s.rw == nil {
		return "none"
	}
	return s.rw.Name()
}

// Style returns the rewritten text, or text itself when the backend fails,
// times out, or returns something unusable.
func (s *Stylist) Style(ctx context.Context, userInput, text string) string {
	if text == "" {
		text = defaultText
	}
	if s.rw == nil {
		return text
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	out, err := s.rw.Rewrite(ctx, userInput, text)
	if err != nil {
		s.logger.Warn("stylist failed, using plain text",
			"provider", s.rw.Name(),
			"error", err,
			"elapsed", time.Since(start),
		)
		return text
	}

	out = clean(out)
	if out == "" || utf8.RuneCountInString(out) > MaxOutput {
		s.logger.Warn("stylist output rejected, using plain text",
			"provider", s.rw.Name(),
			"output_len", len(out),
		)
		return text
	}
	return out
}

// clean trims whitespace and one pair of wrapping quotes.
func clean(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = strings.TrimSpace(s[1 : len(s)-1])
	}
	return s
}
