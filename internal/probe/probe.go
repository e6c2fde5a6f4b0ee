// Package probe answers "is this item currently available?".
//
// Probers must never panic and should confine failures to their error
// return; callers treat any error as an indeterminate observation.
package probe

import (
	"context"

	"stockwatch/internal/catalog"
)

type Result int

const (
	Indeterminate Result = iota
	Unavailable
	Available
)

func (r Result) String() string {
	switch r {
	case Available:
		return "available"
	case Unavailable:
		return "unavailable"
	default:
		return "indeterminate"
	}
}

// Prober checks a single item's availability. Implementations must be
// safe for concurrent use; one poller per item calls Probe in a loop.
type Prober interface {
	Probe(ctx context.Context, item *catalog.Item) (Result, error)
}

// Static is a fixed-answer prober, used for test mode and in tests.
type Static struct {
	Result Result
}

func (s Static) Probe(ctx context.Context, item *catalog.Item) (Result, error) {
	return s.Result, nil
}
