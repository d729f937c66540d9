package intent

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/yangwenmai/sitebook/internal/model"
)

// Lookup searches records by free text, most recently updated first.
type Lookup interface {
	SearchItems(ctx context.Context, query string, limit int) ([]model.Candidate, error)
	SearchProjects(ctx context.Context, query string, limit int) ([]model.Candidate, error)
}

// candidateLimit bounds how many matches are fetched; only the first is used,
// the rest are counted for the ambiguity log.
const candidateLimit = 5

// Resolver maps the references a model writes (titles, aliases, id prefixes)
// onto canonical record identifiers.
type Resolver struct {
	lookup Lookup
	log    zerolog.Logger
}

// NewResolver creates a Resolver backed by lookup.
func NewResolver(lookup Lookup, log zerolog.Logger) *Resolver {
	return &Resolver{lookup: lookup, log: log}
}

// IsCanonicalID reports whether ref is a full 36-character UUID.
func IsCanonicalID(ref string) bool {
	if len(ref) != 36 {
		return false
	}
	_, err := uuid.Parse(ref)
	return err == nil
}

// ResolveItem returns the identifier of the action item ref names.
func (r *Resolver) ResolveItem(ctx context.Context, ref string) (string, error) {
	return r.resolve(ctx, model.RecordItem, ref, r.lookup.SearchItems)
}

// ResolveProject returns the identifier of the project ref names.
func (r *Resolver) ResolveProject(ctx context.Context, ref string) (string, error) {
	return r.resolve(ctx, model.RecordProject, ref, r.lookup.SearchProjects)
}

type searchFunc func(ctx context.Context, query string, limit int) ([]model.Candidate, error)

// resolve passes canonical identifiers through without a query. Anything else
// is searched and the most recently updated match wins. No match yields
// model.ErrNotFound; a failed search is returned as is.
func (r *Resolver) resolve(ctx context.Context, kind model.RecordKind, ref string, search searchFunc) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", model.ErrNotFound
	}
	if IsCanonicalID(ref) {
		return ref, nil
	}

	candidates, err := search(ctx, ref, candidateLimit)
	if err != nil {
		return "", fmt.Errorf("search %s: %w", kind, err)
	}
	if len(candidates) == 0 {
		return "", model.ErrNotFound
	}
	if len(candidates) > 1 {
		r.log.Debug().
			Str("kind", string(kind)).
			Str("chosen", candidates[0].Title).
			Int("matches", len(candidates)).
			Msg("ambiguous reference, taking most recently updated")
	}
	return candidates[0].ID, nil
}
