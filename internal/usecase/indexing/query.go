package indexing

import (
	"context"
	"fmt"

	"newswire-search/internal/infra/vectorindex"
)

// Query runs an ANN search against the deployed index. The query vector
// must match the active index width; filter may be nil. Matches come back
// ranked by similarity descending.
//
// Parameters:
//   - ctx: context for cancellation
//   - vector: query embedding, same width as the index
//   - topK: number of neighbors, defaulted by the provider when <= 0
//   - filter: optional payload filter, nil for none
//
// Returns:
//   - []vectorindex.Match: ranked hits, empty when nothing matches
//   - error: ErrNotDeployed before Deploy, DimensionConflictError on a
//     width mismatch, provider errors otherwise
func (s *Service) Query(ctx context.Context, vector []float32, topK int, filter *vectorindex.Filter) ([]vectorindex.Match, error) {
	state, err := s.activeState(ctx)
	if err != nil {
		return nil, fmt.Errorf("Query: %w", err)
	}
	if !state.Deployed() {
		return nil, fmt.Errorf("Query: index %q: %w", state.Name, ErrNotDeployed)
	}
	if len(vector) != state.Dimensions {
		return nil, fmt.Errorf("Query: %w",
			&vectorindex.DimensionConflictError{Want: state.Dimensions, Got: len(vector)})
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("Query: rate limit: %w", err)
	}

	result, err := s.breaker.Execute(func() (interface{}, error) {
		return s.provider.Query(ctx, vector, topK, filter)
	})
	if err != nil {
		return nil, fmt.Errorf("Query: %w", err)
	}
	return result.([]vectorindex.Match), nil
}
