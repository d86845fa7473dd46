package entity

import (
	"fmt"
	"time"
)

// Distance is the similarity measure an ANN index was built with. Vectors
// indexed under one measure cannot be queried under another, so the value is
// fixed at index creation.
type Distance string

const (
	DistanceDotProduct Distance = "dot_product"
	DistanceCosine     Distance = "cosine"
	DistanceL2         Distance = "l2"
)

// IsValid checks if the distance is one of the supported measures.
func (d Distance) IsValid() bool {
	switch d {
	case DistanceDotProduct, DistanceCosine, DistanceL2:
		return true
	}
	return false
}

// DefaultDimensions is the vector width used when an index is created
// without an explicit dimension.
const DefaultDimensions = 768

// IndexState describes one ANN index known to the system. At most one
// IndexState is active at a time; the active one receives all upserts and
// serves all vector queries.
//
// ProviderIndexID is the provider-side identifier of the index itself.
// EndpointID and DeployedID are set once the index is deployed behind a
// query endpoint; an index without them can accept upserts but not queries.
type IndexState struct {
	ID              int64
	Name            string
	ProviderIndexID string
	EndpointID      string
	DeployedID      string

	Dimensions   int
	Distance     Distance
	TotalVectors int64

	Active      bool
	LastUpdated time.Time
	CreatedAt   time.Time
}

// Deployed reports whether the index is reachable for queries.
func (s *IndexState) Deployed() bool {
	return s.EndpointID != "" && s.DeployedID != ""
}

// Validate checks the invariants an index state must satisfy.
func (s *IndexState) Validate() error {
	if s.Name == "" {
		return &ValidationError{Field: "name", Message: "name is required"}
	}
	if s.Dimensions <= 0 {
		return &ValidationError{
			Field:   "dimensions",
			Message: fmt.Sprintf("dimensions must be positive, got %d", s.Dimensions),
		}
	}
	if !s.Distance.IsValid() {
		return &ValidationError{Field: "distance", Message: "unknown distance: " + string(s.Distance)}
	}
	return nil
}
