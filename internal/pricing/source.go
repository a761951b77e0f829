package pricing

import (
	"context"
	"errors"
	"log"

	"github.com/janekbaraniewski/ccost/internal/core"
)

// Loaded is a pricing table together with where it came from.
type Loaded struct {
	Table    Table
	Origin   string
	Warnings []string
}

// Source produces the pricing table for a run.
type Source interface {
	Load(ctx context.Context, kinds []core.SourceKind) (Loaded, error)
}

// EmbeddedSource serves the snapshots compiled into the binary.
type EmbeddedSource struct{}

func (EmbeddedSource) Load(_ context.Context, kinds []core.SourceKind) (Loaded, error) {
	table, err := Embedded(kinds)
	if err != nil {
		return Loaded{}, err
	}
	return Loaded{Table: table, Origin: "embedded"}, nil
}

// LiveSource fetches the current dataset. When FallbackOffline is set a
// failed fetch degrades to the embedded snapshot with a warning; otherwise
// the failure is returned and wraps core.ErrPricingUnavailable.
type LiveSource struct {
	Fetcher         Fetcher
	FallbackOffline bool
}

func (s LiveSource) Load(ctx context.Context, kinds []core.SourceKind) (Loaded, error) {
	table, err := s.Fetcher.Fetch(ctx, kinds)
	if err == nil {
		return Loaded{Table: table, Origin: "live"}, nil
	}
	if !s.FallbackOffline || !errors.Is(err, core.ErrPricingUnavailable) {
		return Loaded{}, err
	}

	log.Printf("[pricing] live fetch failed, using embedded snapshot: %v", err)
	loaded, embErr := EmbeddedSource{}.Load(ctx, kinds)
	if embErr != nil {
		return Loaded{}, errors.Join(err, embErr)
	}
	loaded.Origin = "embedded (fallback)"
	loaded.Warnings = append(loaded.Warnings, "live pricing unavailable, using embedded snapshot: "+err.Error())
	return loaded, nil
}

// StaticSource serves a fixed table.
type StaticSource struct {
	Table  Table
	Origin string
}

func (s StaticSource) Load(context.Context, []core.SourceKind) (Loaded, error) {
	origin := s.Origin
	if origin == "" {
		origin = "static"
	}
	table := make(Table, len(s.Table))
	table.Merge(s.Table)
	return Loaded{Table: table, Origin: origin}, nil
}
