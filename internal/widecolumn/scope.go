package widecolumn

import (
	"context"
	"errors"
	"fmt"
)

// WithTable acquires a handle on the named table, runs fn with it and
// releases the handle before returning, whatever fn does.
//
// Acquisition failures are wrapped with ErrIO. A close failure is returned
// only when fn itself succeeded, so the original cause is never masked.
func WithTable(ctx context.Context, c Client, name string, fn func(Table) error) (err error) {
	t, err := c.Table(ctx, name)
	if err != nil {
		return IOError(fmt.Sprintf("acquiring table %q", name), err)
	}
	defer func() {
		if closeErr := t.Close(); closeErr != nil && err == nil {
			err = IOError(fmt.Sprintf("releasing table %q", name), closeErr)
		}
	}()
	return fn(t)
}

// WithScanner opens a scan over [start, stop) on t, runs fn with the
// scanner and closes it before returning. fn may stop consuming early.
func WithScanner(ctx context.Context, t Table, start, stop []byte, fn func(Scanner) error) (err error) {
	s, err := t.Scan(ctx, start, stop)
	if err != nil {
		return IOError("opening scanner", err)
	}
	defer func() {
		if closeErr := s.Close(); closeErr != nil && err == nil {
			err = IOError("closing scanner", closeErr)
		}
	}()
	return fn(s)
}

// IOError wraps a backend failure with ErrIO, naming the operation.
// Errors that already carry ErrIO are only annotated.
func IOError(op string, err error) error {
	if errors.Is(err, ErrIO) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%w: %s: %w", ErrIO, op, err)
}
