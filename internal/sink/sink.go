// Package sink delivers completed report rows to persistent storage.
package sink

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MikeSquared-Agency/safety-intake/internal/report"
)

// ErrDelivery marks a failed delivery. The row can be retried unchanged.
var ErrDelivery = errors.New("report delivery failed")

// Sink appends one row per completed report.
type Sink interface {
	Append(ctx context.Context, row report.Row) error
	Name() string
}

// Wrap tags err as a delivery failure of the named backend.
func Wrap(backend string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrDelivery) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", ErrDelivery, backend, err)
}

type timeoutSink struct {
	next    Sink
	timeout time.Duration
}

// WithTimeout bounds every Append on s by d.
func WithTimeout(s Sink, d time.Duration) Sink {
	if d <= 0 {
		return s
	}
	return &timeoutSink{next: s, timeout: d}
}

func (t *timeoutSink) Name() string { return t.next.Name() }

func (t *timeoutSink) Append(ctx context.Context, row report.Row) error {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return Wrap(t.next.Name(), t.next.Append(ctx, row))
}
