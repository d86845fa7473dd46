package vectorindex

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/coder/hnsw"

	"newswire-search/internal/domain/entity"
)

// LocalProvider is the development-mode ANN index: an in-memory HNSW graph
// over the datapoints, persisted as a JSON file so runs survive restarts
// without PostgreSQL.
//
// Deletes are lazy. Removing a node from the graph is unreliable in the
// underlying library, so tombstoned datapoints are only dropped from the ID
// maps; their graph nodes become orphans that queries skip. Reloading the
// file rebuilds the graph from live datapoints only, which compacts the
// orphans away.
type LocalProvider struct {
	mu    sync.RWMutex
	graph *hnsw.Graph[uint64]

	name       string
	dimensions int
	distance   entity.Distance
	path       string

	points  map[string]*Datapoint
	idMap   map[string]uint64
	keyMap  map[uint64]string
	nextKey uint64

	lastUpdated time.Time
}

// localIndexFile is the on-disk layout. Datapoints are sorted by ID so the
// file diffs cleanly between runs.
type localIndexFile struct {
	Name       string          `json:"name"`
	Dimensions int             `json:"dimensions"`
	Distance   entity.Distance `json:"distance"`
	SavedAt    time.Time       `json:"saved_at"`
	Datapoints []*Datapoint    `json:"datapoints"`
}

// NewLocalProvider builds a provider persisting to path. An empty path
// keeps the index memory-only, which the tests use.
func NewLocalProvider(path string) *LocalProvider {
	return &LocalProvider{path: path}
}

// CreateIndex initializes the graph, loading the JSON file when one exists.
// Idempotent: calling again with the same dimensions and distance is a
// no-op, a different width is a conflict.
func (p *LocalProvider) CreateIndex(ctx context.Context, name string, dimensions int, distance entity.Distance) (string, error) {
	if dimensions <= 0 {
		dimensions = entity.DefaultDimensions
	}
	if !distance.IsValid() {
		distance = entity.DistanceDotProduct
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.graph != nil {
		if p.dimensions != dimensions {
			return "", &DimensionConflictError{Want: p.dimensions, Got: dimensions}
		}
		if p.distance != distance {
			return "", fmt.Errorf("CreateIndex: index uses %s distance, requested %s", p.distance, distance)
		}
		return "local:" + p.name, nil
	}

	p.name = name
	p.dimensions = dimensions
	p.distance = distance
	p.graph = newLocalGraph(distance)
	p.points = make(map[string]*Datapoint)
	p.idMap = make(map[string]uint64)
	p.keyMap = make(map[uint64]string)
	p.nextKey = 0

	if p.path != "" {
		if err := p.loadLocked(); err != nil {
			p.graph = nil
			return "", fmt.Errorf("CreateIndex: %w", err)
		}
	}

	return "local:" + name, nil
}

func newLocalGraph(distance entity.Distance) *hnsw.Graph[uint64] {
	graph := hnsw.NewGraph[uint64]()
	switch distance {
	case entity.DistanceL2:
		graph.Distance = hnsw.EuclideanDistance
	default:
		// dot_product와 cosine은 정규화된 벡터 위에서 같은 순위를 낸다
		graph.Distance = hnsw.CosineDistance
	}
	graph.M = 16
	graph.EfSearch = 20
	graph.Ml = 0.25
	return graph
}

// CreateEndpoint returns a synthetic endpoint ID; the local index is
// queryable directly.
func (p *LocalProvider) CreateEndpoint(ctx context.Context, name string) (string, error) {
	return "local-endpoint:" + name, nil
}

// Deploy returns the deployed ID unchanged.
func (p *LocalProvider) Deploy(ctx context.Context, endpointID string, deployedID string) (string, error) {
	if endpointID == "" {
		return "", fmt.Errorf("Deploy: endpoint ID is required")
	}
	return deployedID, nil
}

// Upsert applies the batch to the graph and rewrites the JSON file.
func (p *LocalProvider) Upsert(ctx context.Context, points []*Datapoint) error {
	if len(points) == 0 {
		return nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.graph == nil {
		return fmt.Errorf("Upsert: %w", ErrNotCreated)
	}

	for _, dp := range points {
		if dp == nil {
			return fmt.Errorf("Upsert: datapoint is nil")
		}
		if dp.ID == "" {
			return fmt.Errorf("Upsert: datapoint ID is required")
		}
		if len(dp.Vector) != p.dimensions {
			return fmt.Errorf("Upsert: datapoint %s: %w", dp.ID,
				&DimensionConflictError{Want: p.dimensions, Got: len(dp.Vector)})
		}
	}

	for _, dp := range points {
		if dp.Tombstone {
			p.removeLocked(dp.ID)
			continue
		}
		p.addLocked(dp)
	}
	p.lastUpdated = time.Now().UTC()

	if p.path != "" {
		if err := p.saveLocked(); err != nil {
			return fmt.Errorf("Upsert: %w", err)
		}
	}
	return nil
}

func (p *LocalProvider) addLocked(dp *Datapoint) {
	// 기존 노드는 그래프에 고아로 남긴다 (lazy delete)
	if oldKey, exists := p.idMap[dp.ID]; exists {
		delete(p.keyMap, oldKey)
		delete(p.idMap, dp.ID)
	}

	key := p.nextKey
	p.nextKey++

	vec := make([]float32, len(dp.Vector))
	copy(vec, dp.Vector)
	if p.distance != entity.DistanceL2 {
		normalizeInPlace(vec)
	}
	p.graph.Add(hnsw.MakeNode(key, vec))

	p.idMap[dp.ID] = key
	p.keyMap[key] = dp.ID
	p.points[dp.ID] = cloneDatapoint(dp)
}

func (p *LocalProvider) removeLocked(id string) {
	if key, exists := p.idMap[id]; exists {
		delete(p.keyMap, key)
		delete(p.idMap, id)
	}
	delete(p.points, id)
}

// Query searches the graph, or scans the payload table when a filter is
// present. The development corpus is small enough that the exact filtered
// scan is cheaper than overfetching and post-filtering graph results.
func (p *LocalProvider) Query(ctx context.Context, vector []float32, topK int, filter *Filter) ([]Match, error) {
	if err := filter.Validate(); err != nil {
		return nil, fmt.Errorf("Query: %w", err)
	}
	topK = clampTopK(topK)

	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.graph == nil {
		return nil, fmt.Errorf("Query: %w", ErrNotCreated)
	}
	if len(vector) != p.dimensions {
		return nil, &DimensionConflictError{Want: p.dimensions, Got: len(vector)}
	}
	if len(p.idMap) == 0 {
		return []Match{}, nil
	}

	query := make([]float32, len(vector))
	copy(query, vector)
	if p.distance != entity.DistanceL2 {
		normalizeInPlace(query)
	}

	if filter != nil {
		return p.scanLocked(query, topK, filter), nil
	}

	// 고아 노드만큼 더 가져와서 live 결과가 밀려나지 않게 한다
	searchK := topK + (p.graph.Len() - len(p.idMap))
	if searchK > p.graph.Len() {
		searchK = p.graph.Len()
	}

	nodes := p.graph.Search(query, searchK)
	matches := make([]Match, 0, topK)
	for _, node := range nodes {
		id, live := p.keyMap[node.Key]
		if !live {
			continue
		}
		matches = append(matches, Match{
			DatapointID: id,
			ArticleID:   p.points[id].ArticleID,
			Score:       p.score(p.graph.Distance(query, node.Value)),
		})
		if len(matches) == topK {
			break
		}
	}
	return matches, nil
}

func (p *LocalProvider) scanLocked(query []float32, topK int, filter *Filter) []Match {
	matches := make([]Match, 0, topK)
	for id, dp := range p.points {
		if !filter.Matches(dp) {
			continue
		}
		vec := make([]float32, len(dp.Vector))
		copy(vec, dp.Vector)
		if p.distance != entity.DistanceL2 {
			normalizeInPlace(vec)
		}
		matches = append(matches, Match{
			DatapointID: id,
			ArticleID:   dp.ArticleID,
			Score:       p.score(p.graph.Distance(query, vec)),
		})
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].DatapointID < matches[j].DatapointID
	})
	if len(matches) > topK {
		matches = matches[:topK]
	}
	return matches
}

// score converts a graph distance to the contract's similarity score.
func (p *LocalProvider) score(distance float32) float64 {
	if p.distance == entity.DistanceL2 {
		return 1 / (1 + float64(distance))
	}
	// CosineDistance = 1 - cosine similarity; 정규화된 벡터에서는 내적과 같다
	return 1 - float64(distance)
}

// ListDatapointIDs pages live IDs in lexicographic order.
func (p *LocalProvider) ListDatapointIDs(ctx context.Context, cursor string, limit int) ([]string, string, error) {
	limit = clampListLimit(limit)

	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.graph == nil {
		return nil, "", fmt.Errorf("ListDatapointIDs: %w", ErrNotCreated)
	}

	all := make([]string, 0, len(p.points))
	for id := range p.points {
		if id > cursor {
			all = append(all, id)
		}
	}
	sort.Strings(all)

	if len(all) > limit {
		return all[:limit], all[limit-1], nil
	}
	return all, "", nil
}

// Status reports live counts and the orphan backlog left by lazy deletes.
func (p *LocalProvider) Status(ctx context.Context) (*IndexStatus, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.graph == nil {
		return nil, fmt.Errorf("Status: %w", ErrNotCreated)
	}

	status := &IndexStatus{
		State:        IndexStateReady,
		TotalVectors: int64(len(p.points)),
		Tombstones:   int64(p.graph.Len() - len(p.idMap)),
		LastUpdated:  p.lastUpdated,
	}
	if len(p.points) == 0 {
		status.State = IndexStateEmpty
	}
	return status, nil
}

// DeleteIndex drops the graph and removes the JSON file. The provider needs
// CreateIndex again before further use.
func (p *LocalProvider) DeleteIndex(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.graph = nil
	p.points = nil
	p.idMap = nil
	p.keyMap = nil
	p.nextKey = 0

	if p.path != "" {
		if err := os.Remove(p.path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("DeleteIndex: %w", err)
		}
	}
	return nil
}

// DeleteEndpoint is bookkeeping only.
func (p *LocalProvider) DeleteEndpoint(ctx context.Context, endpointID string) error {
	return nil
}

// saveLocked writes the JSON file atomically (temp file + rename).
func (p *LocalProvider) saveLocked() error {
	if err := os.MkdirAll(filepath.Dir(p.path), 0o755); err != nil {
		return fmt.Errorf("create index directory: %w", err)
	}

	snapshot := localIndexFile{
		Name:       p.name,
		Dimensions: p.dimensions,
		Distance:   p.distance,
		SavedAt:    time.Now().UTC(),
		Datapoints: make([]*Datapoint, 0, len(p.points)),
	}
	for _, dp := range p.points {
		snapshot.Datapoints = append(snapshot.Datapoints, dp)
	}
	sort.Slice(snapshot.Datapoints, func(i, j int) bool {
		return snapshot.Datapoints[i].ID < snapshot.Datapoints[j].ID
	})

	tmpPath := p.path + ".tmp"
	file, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("create index file: %w", err)
	}

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(&snapshot); err != nil {
		_ = file.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("encode index file: %w", err)
	}
	if err := file.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("close index file: %w", err)
	}

	if err := os.Rename(tmpPath, p.path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename index file: %w", err)
	}
	return nil
}

// loadLocked rebuilds the graph from the JSON file. A missing file is a
// fresh start.
func (p *LocalProvider) loadLocked() error {
	data, err := os.ReadFile(p.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read index file: %w", err)
	}

	var snapshot localIndexFile
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return fmt.Errorf("decode index file %s: %w", p.path, err)
	}

	if snapshot.Dimensions != p.dimensions {
		return &DimensionConflictError{Want: snapshot.Dimensions, Got: p.dimensions}
	}
	if snapshot.Distance != p.distance {
		return fmt.Errorf("index file %s uses %s distance, requested %s", p.path, snapshot.Distance, p.distance)
	}

	for _, dp := range snapshot.Datapoints {
		p.addLocked(dp)
	}
	return nil
}

func cloneDatapoint(dp *Datapoint) *Datapoint {
	c := *dp
	c.Vector = append([]float32(nil), dp.Vector...)
	c.Categories = append([]string(nil), dp.Categories...)
	c.Keywords = append([]string(nil), dp.Keywords...)
	return &c
}

// normalizeInPlace scales v to unit length. Zero vectors stay zero.
func normalizeInPlace(v []float32) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return
	}
	inv := float32(1 / math.Sqrt(sum))
	for i := range v {
		v[i] *= inv
	}
}

var _ Provider = (*LocalProvider)(nil)
