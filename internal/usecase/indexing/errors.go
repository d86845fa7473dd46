package indexing

import "errors"

// ErrNotDeployed is returned by Query when the active index exists but has
// no deployed endpoint yet. Callers degrade to keyword-only retrieval.
var ErrNotDeployed = errors.New("index is not deployed to an endpoint")
