// Package repository defines storage interfaces for domain entities, with
// in-memory implementations and PostgreSQL-backed ones.
package repository

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

// Option configures a memory repository.
type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock sets the clock used for assigned timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func newOptions(opts []Option) options {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
