// Package vectorindex holds the ANN provider clients the indexing
// coordinator publishes vectors through. Two implementations share one
// contract: PGVectorProvider keeps datapoints in the ann_vectors table and
// searches with pgvector operators; LocalProvider keeps an in-memory HNSW
// graph persisted to a JSON file for development without PostgreSQL.
//
// Deletion is a tombstone upsert on both: queries and enumeration skip
// tombstoned datapoints, so an at-least-once re-upsert can never resurrect
// a retired article.
package vectorindex

import (
	"context"
	"errors"
	"fmt"
	"time"

	"newswire-search/internal/domain/entity"
)

var (
	// ErrNotCreated is returned when an operation needs an index that has
	// not been created or loaded yet.
	ErrNotCreated = errors.New("vector index not created")
)

// DimensionConflictError reports a vector whose width does not match the
// index. Dimensions are fixed at index creation, so this is never retried.
type DimensionConflictError struct {
	Want int
	Got  int
}

func (e *DimensionConflictError) Error() string {
	return fmt.Sprintf("dimension conflict: index holds %d-dimensional vectors, got %d", e.Want, e.Got)
}

// Datapoint is one indexed vector plus the filter payload that rides along
// with it. ID is the article's external ID and chunk index joined with '#'
// (entity.EmbeddingRecord.DatapointID).
type Datapoint struct {
	ID         string    `json:"id"`
	ArticleID  int64     `json:"article_id"`
	ExternalID string    `json:"external_id"`
	ChunkIndex int       `json:"chunk_index"`
	Vector     []float32 `json:"vector"`

	ArticleType string    `json:"article_type,omitempty"`
	MediaCode   string    `json:"media_code,omitempty"`
	Categories  []string  `json:"categories,omitempty"`
	Keywords    []string  `json:"keywords,omitempty"`
	Year        int       `json:"year,omitempty"`
	Month       int       `json:"month,omitempty"`
	Day         int       `json:"day,omitempty"`
	Importance  float64   `json:"importance,omitempty"`
	PublishedAt time.Time `json:"published_at"`

	Tombstone bool `json:"tombstone,omitempty"`
}

// TombstoneDatapoint builds the delete marker for a datapoint. The zero
// vector keeps providers that store tombstones in a NOT NULL vector column
// happy.
func TombstoneDatapoint(id string, articleID int64, dimensions int) *Datapoint {
	return &Datapoint{
		ID:        id,
		ArticleID: articleID,
		Vector:    make([]float32, dimensions),
		Tombstone: true,
	}
}

// Match is one query hit, ranked by Score descending. Score is the
// similarity under the index's distance: the inner product for dot_product,
// cosine similarity for cosine, 1/(1+d) for l2.
type Match struct {
	DatapointID string
	ArticleID   int64
	Score       float64
}

// IndexStatus is the answer to the status contract call.
type IndexStatus struct {
	State        string
	TotalVectors int64
	Tombstones   int64
	LastUpdated  time.Time
}

const (
	IndexStateReady = "ready"
	IndexStateEmpty = "empty"
)

// Provider is the ANN index contract the indexing coordinator depends on.
// One Provider instance is bound to one index; CreateIndex is idempotent
// and must be called (or verified) before upserts and queries.
type Provider interface {
	// CreateIndex creates or verifies the index and returns its
	// provider-side identifier. Fails with DimensionConflictError when an
	// existing index has a different width.
	CreateIndex(ctx context.Context, name string, dimensions int, distance entity.Distance) (string, error)

	// CreateEndpoint provisions a query endpoint and returns its ID.
	CreateEndpoint(ctx context.Context, name string) (string, error)

	// Deploy ties the index to an endpoint under the given deployed ID.
	Deploy(ctx context.Context, endpointID string, deployedID string) (string, error)

	// Upsert writes the batch with at-least-once semantics. Datapoints with
	// Tombstone set are delete markers.
	Upsert(ctx context.Context, points []*Datapoint) error

	// Query returns the topK nearest live datapoints, optionally restricted
	// by a filter over the datapoint payload.
	Query(ctx context.Context, vector []float32, topK int, filter *Filter) ([]Match, error)

	// ListDatapointIDs walks live datapoint IDs in lexicographic order for
	// reconciliation. An empty next cursor means the walk is done.
	ListDatapointIDs(ctx context.Context, cursor string, limit int) ([]string, string, error)

	// Status reports vector counts and freshness.
	Status(ctx context.Context) (*IndexStatus, error)

	// DeleteIndex removes every datapoint. The schema or file backing the
	// index may remain.
	DeleteIndex(ctx context.Context) error

	// DeleteEndpoint tears down a query endpoint.
	DeleteEndpoint(ctx context.Context, endpointID string) error
}

// enumeration page sizes for ListDatapointIDs
const (
	defaultListLimit = 1000
	maxListLimit     = 5000
)

func clampListLimit(limit int) int {
	if limit <= 0 {
		return defaultListLimit
	}
	if limit > maxListLimit {
		return maxListLimit
	}
	return limit
}

const defaultTopK = 10

func clampTopK(topK int) int {
	if topK <= 0 {
		return defaultTopK
	}
	return topK
}
