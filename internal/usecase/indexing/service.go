// Package indexing owns the ANN index lifecycle and moves embedding records
// into it with at-least-once semantics. It is the only writer of IndexState:
// ensure/deploy/delete mutate it, upserts advance its counters, and
// reconciliation corrects the drift those at-least-once upserts leave behind.
package indexing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"newswire-search/internal/domain/entity"
	"newswire-search/internal/infra/vectorindex"
	"newswire-search/internal/observability/metrics"
	"newswire-search/internal/repository"
	"newswire-search/internal/resilience/circuitbreaker"
	"newswire-search/internal/resilience/retry"
)

const (
	// defaultBatchSize is the store-side commit unit: articles are marked
	// embedded in groups of this many datapoints.
	defaultBatchSize = 50

	// defaultProviderQPS bounds calls toward the ANN provider.
	defaultProviderQPS = 10
)

// Service coordinates the ANN index: lifecycle operations, batched upserts,
// similarity queries, and reconciliation. The active IndexState is cached
// process-wide; only the administrative operations replace it.
type Service struct {
	provider   vectorindex.Provider
	states     repository.IndexStateRepository
	articles   repository.ArticleRepository
	embeddings repository.EmbeddingRepository
	logs       repository.ProcessingLogRepository

	breaker   *circuitbreaker.CircuitBreaker
	retryCfg  retry.Config
	limiter   *rate.Limiter
	batchSize int

	mu    sync.RWMutex
	state *entity.IndexState
}

// Option configures the Service.
type Option func(*Service)

// WithBatchSize overrides the store-side commit unit.
func WithBatchSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.batchSize = n
		}
	}
}

// WithProviderQPS bounds the call rate toward the ANN provider. Zero or
// negative disables the limit.
func WithProviderQPS(qps float64) Option {
	return func(s *Service) {
		if qps <= 0 {
			s.limiter = rate.NewLimiter(rate.Inf, 0)
			return
		}
		burst := int(qps)
		if burst < 1 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(qps), burst)
	}
}

// WithRetryConfig overrides the upsert retry policy. Tests use this to avoid
// backoff sleeps.
func WithRetryConfig(cfg retry.Config) Option {
	return func(s *Service) {
		s.retryCfg = cfg
	}
}

// NewService creates the index coordinator.
func NewService(
	provider vectorindex.Provider,
	states repository.IndexStateRepository,
	articles repository.ArticleRepository,
	embeddings repository.EmbeddingRepository,
	logs repository.ProcessingLogRepository,
	opts ...Option,
) *Service {
	s := &Service{
		provider:   provider,
		states:     states,
		articles:   articles,
		embeddings: embeddings,
		logs:       logs,
		breaker:    circuitbreaker.New(circuitbreaker.VectorIndexConfig()),
		retryCfg:   retry.IndexUpsertConfig(),
		limiter:    rate.NewLimiter(rate.Limit(defaultProviderQPS), defaultProviderQPS),
		batchSize:  defaultBatchSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// EnsureIndex creates the ANN index and its IndexState row, or verifies the
// active one. Idempotent: calling again with matching parameters returns the
// active state. A dimension or distance conflict with the active state is an
// error; changing either means building a new index.
func (s *Service) EnsureIndex(ctx context.Context, name string, dimensions int, distance entity.Distance) (*entity.IndexState, error) {
	if name == "" {
		return nil, fmt.Errorf("EnsureIndex: name is required")
	}
	if dimensions <= 0 {
		dimensions = entity.DefaultDimensions
	}
	if !distance.IsValid() {
		distance = entity.DistanceDotProduct
	}

	active, err := s.states.GetActive(ctx)
	switch {
	case err == nil:
		return s.verifyActive(ctx, active, name, dimensions, distance)
	case errors.Is(err, entity.ErrNoActiveIndex):
		return s.createIndex(ctx, name, dimensions, distance)
	default:
		return nil, fmt.Errorf("EnsureIndex: %w", err)
	}
}

func (s *Service) verifyActive(ctx context.Context, active *entity.IndexState, name string, dimensions int, distance entity.Distance) (*entity.IndexState, error) {
	if active.Name != name {
		return nil, fmt.Errorf("EnsureIndex: index %q is already active, requested %q", active.Name, name)
	}
	if active.Dimensions != dimensions {
		return nil, fmt.Errorf("EnsureIndex: %w",
			&vectorindex.DimensionConflictError{Want: active.Dimensions, Got: dimensions})
	}
	if active.Distance != distance {
		return nil, fmt.Errorf("EnsureIndex: active index uses %s distance, requested %s", active.Distance, distance)
	}

	providerID, err := s.provider.CreateIndex(ctx, name, dimensions, distance)
	if err != nil {
		return nil, fmt.Errorf("EnsureIndex: verify provider index: %w", err)
	}
	if active.ProviderIndexID == "" {
		active.ProviderIndexID = providerID
		if err := s.states.Update(ctx, active); err != nil {
			return nil, fmt.Errorf("EnsureIndex: %w", err)
		}
	}

	s.cacheState(active)
	slog.Info("index verified",
		slog.String("name", active.Name),
		slog.Int("dimensions", active.Dimensions),
		slog.String("distance", string(active.Distance)))
	return cloneState(active), nil
}

func (s *Service) createIndex(ctx context.Context, name string, dimensions int, distance entity.Distance) (*entity.IndexState, error) {
	providerID, err := s.provider.CreateIndex(ctx, name, dimensions, distance)
	if err != nil {
		return nil, fmt.Errorf("EnsureIndex: create provider index: %w", err)
	}

	state := &entity.IndexState{
		Name:            name,
		ProviderIndexID: providerID,
		Dimensions:      dimensions,
		Distance:        distance,
		Active:          true,
		LastUpdated:     time.Now().UTC(),
	}
	if err := state.Validate(); err != nil {
		return nil, fmt.Errorf("EnsureIndex: %w", err)
	}
	if err := s.states.Create(ctx, state); err != nil {
		return nil, fmt.Errorf("EnsureIndex: %w", err)
	}

	s.cacheState(state)
	slog.Info("index created",
		slog.String("name", name),
		slog.String("provider_index_id", providerID),
		slog.Int("dimensions", dimensions),
		slog.String("distance", string(distance)))
	return cloneState(state), nil
}

// Deploy binds the active index to a query endpoint. Until an index is
// deployed it accepts upserts but refuses queries.
func (s *Service) Deploy(ctx context.Context, endpointName, deployedID string) (*entity.IndexState, error) {
	state, err := s.activeState(ctx)
	if err != nil {
		return nil, fmt.Errorf("Deploy: %w", err)
	}

	endpointID, err := s.provider.CreateEndpoint(ctx, endpointName)
	if err != nil {
		return nil, fmt.Errorf("Deploy: create endpoint: %w", err)
	}
	deployed, err := s.provider.Deploy(ctx, endpointID, deployedID)
	if err != nil {
		return nil, fmt.Errorf("Deploy: %w", err)
	}

	if err := s.states.SetDeployment(ctx, state.ID, endpointID, deployed); err != nil {
		return nil, fmt.Errorf("Deploy: %w", err)
	}

	state.EndpointID = endpointID
	state.DeployedID = deployed
	s.cacheState(state)

	slog.Info("index deployed",
		slog.String("name", state.Name),
		slog.String("endpoint_id", endpointID),
		slog.String("deployed_id", deployed))
	return cloneState(state), nil
}

// DeleteIndex tears the active index down: the provider endpoint and index
// are deleted and the IndexState is deactivated. The durable vectors stay in
// the record store, so a later EnsureIndex plus Reconcile rebuilds everything.
func (s *Service) DeleteIndex(ctx context.Context) error {
	state, err := s.activeState(ctx)
	if err != nil {
		return fmt.Errorf("DeleteIndex: %w", err)
	}

	if state.EndpointID != "" {
		if err := s.provider.DeleteEndpoint(ctx, state.EndpointID); err != nil {
			return fmt.Errorf("DeleteIndex: delete endpoint: %w", err)
		}
	}
	if err := s.provider.DeleteIndex(ctx); err != nil {
		return fmt.Errorf("DeleteIndex: %w", err)
	}

	state.Active = false
	state.EndpointID = ""
	state.DeployedID = ""
	if err := s.states.Update(ctx, state); err != nil {
		return fmt.Errorf("DeleteIndex: %w", err)
	}

	s.mu.Lock()
	s.state = nil
	s.mu.Unlock()
	metrics.IndexVectorsTotal.Set(0)

	slog.Info("index deleted", slog.String("name", state.Name))
	return nil
}

// Stats combines the stored IndexState with the provider's live view.
type Stats struct {
	State        *entity.IndexState
	ProviderView *vectorindex.IndexStatus
}

// Stats reports the active index and what the provider knows about it.
func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	state, err := s.activeState(ctx)
	if err != nil {
		return nil, fmt.Errorf("Stats: %w", err)
	}
	view, err := s.provider.Status(ctx)
	if err != nil {
		return nil, fmt.Errorf("Stats: %w", err)
	}
	return &Stats{State: state, ProviderView: view}, nil
}

/* ───────── state cache ───────── */

// activeState returns a private copy of the active IndexState, loading it
// from the store on first use.
func (s *Service) activeState(ctx context.Context) (*entity.IndexState, error) {
	s.mu.RLock()
	cached := s.state
	s.mu.RUnlock()
	if cached != nil {
		return cloneState(cached), nil
	}

	state, err := s.states.GetActive(ctx)
	if err != nil {
		return nil, err
	}
	s.cacheState(state)
	return cloneState(state), nil
}

func (s *Service) cacheState(state *entity.IndexState) {
	s.mu.Lock()
	s.state = cloneState(state)
	s.mu.Unlock()
}

// bumpCachedVectors adjusts the cached total so the gauge tracks upserts
// without a store read. Reconcile overwrites it with the provider's count.
func (s *Service) bumpCachedVectors(delta int64, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == nil {
		return
	}
	s.state.TotalVectors += delta
	if at.After(s.state.LastUpdated) {
		s.state.LastUpdated = at
	}
	metrics.IndexVectorsTotal.Set(float64(s.state.TotalVectors))
}

func (s *Service) setCachedVectors(total int64, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != nil {
		s.state.TotalVectors = total
		if at.After(s.state.LastUpdated) {
			s.state.LastUpdated = at
		}
	}
	metrics.IndexVectorsTotal.Set(float64(total))
}

func cloneState(state *entity.IndexState) *entity.IndexState {
	c := *state
	return &c
}
