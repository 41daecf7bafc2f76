package catalog

import (
	"context"
	"log/slog"
	"sync"
	"time"

	apperrors "github.com/concoursapp/catalogsync/pkg/errors"
	"github.com/concoursapp/catalogsync/pkg/metrics"
)

// Service is the sync orchestrator: it keeps the local store consistent with
// the remote catalog and publishes the current best-known dataset to
// consumers. Reads always answer from the local store; the fetcher is only
// ever observed by the orchestrator itself.
type Service interface {
	// Start performs the initial cache read, publishes it, and begins
	// observing connectivity. The cache is always published before any
	// refresh result from the same trigger can supersede it.
	Start(ctx context.Context) error

	// Close stops observing connectivity and stops publishing. An in-flight
	// store write may still complete; cache correctness does not depend on
	// an active subscriber.
	Close()

	// Categories returns the locally known category list.
	Categories(ctx context.Context) ([]Category, error)

	// QuestionsForCategory returns one category's questions from the local
	// store and, when connected, triggers a category-scoped refresh in the
	// background.
	QuestionsForCategory(ctx context.Context, categoryID string) ([]Question, error)

	// Refresh requests a full refresh. Requests arriving while a fetch is in
	// flight coalesce into a single follow-up run.
	Refresh() Status

	// RefreshCategory requests a refresh limited to one category's questions
	// and answers. Shares the single-flight gate with full refreshes.
	RefreshCategory(categoryID string) Status

	// Status reports the orchestrator's current condition.
	Status() Status

	// SubscribeUpdates registers a callback invoked after every published
	// dataset. The returned function unsubscribes and is idempotent.
	SubscribeUpdates(fn func(Snapshot)) (unsubscribe func())
}

// SnapshotCache is an optional read-through cache in front of the store's
// category list. Implementations may be volatile; the store stays the source
// of truth.
type SnapshotCache interface {
	Load(ctx context.Context) ([]Category, bool, error)
	Save(ctx context.Context, categories []Category, ttl time.Duration) error
}

// Config holds runtime knobs for the orchestrator.
type Config struct {
	// CacheTTL bounds how long the snapshot cache may serve the category
	// list without consulting the store.
	CacheTTL time.Duration
	// RefreshOnStart requests a refresh from Start when already connected.
	RefreshOnStart bool
}

// refreshScope describes one requested refresh run. An empty CategoryID
// means the full catalog.
type refreshScope struct {
	CategoryID string
}

func (r refreshScope) full() bool { return r.CategoryID == "" }

// merge coalesces a new request into an already queued one. A full refresh
// subsumes any category-scoped request; two different categories widen to a
// full refresh.
func (r refreshScope) merge(next refreshScope) refreshScope {
	if r.full() || next.full() || r.CategoryID != next.CategoryID {
		return refreshScope{}
	}
	return r
}

type service struct {
	cfg      Config
	store    Store
	fetcher  Fetcher
	monitor  Monitor
	cache    SnapshotCache
	counters *metrics.SyncCounters
	logger   *slog.Logger

	runCtx context.Context
	cancel context.CancelFunc

	mu          sync.Mutex
	state       State
	lastErr     error
	lastRefresh time.Time
	refreshing  bool
	pending     *refreshScope
	closed      bool
	unsubscribe func()
	subscribers map[int]func(Snapshot)
	nextSubID   int

	// publishMu serializes subscriber notification so a later refresh cannot
	// overtake an earlier publish mid-fan-out.
	publishMu sync.Mutex
}

// NewService wires up the sync orchestrator.
func NewService(cfg Config, store Store, fetcher Fetcher, monitor Monitor, cache SnapshotCache, counters *metrics.SyncCounters, logger *slog.Logger) Service {
	return &service{
		cfg:         cfg,
		store:       store,
		fetcher:     fetcher,
		monitor:     monitor,
		cache:       cache,
		counters:    counters,
		logger:      logger.With("component", "catalog.service"),
		state:       StateIdle,
		subscribers: make(map[int]func(Snapshot)),
	}
}

func (s *service) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return apperrors.Wrap(apperrors.CodeInvalidInput, "orchestrator already closed", nil)
	}
	s.runCtx, s.cancel = context.WithCancel(context.Background())
	s.state = StateLoadingLocal
	s.mu.Unlock()

	if err := s.store.EnsureSchema(ctx); err != nil {
		return apperrors.Wrap(apperrors.CodeStorage, "ensure schema", err)
	}

	// The cache is always shown first, never blocked on network.
	if err := s.publishFromStore(ctx, OriginCache); err != nil {
		return err
	}

	unsub := s.monitor.Subscribe(func(connected bool) {
		if connected {
			s.logger.Info("connectivity restored, requesting refresh")
			s.request(refreshScope{})
		}
	})

	s.mu.Lock()
	s.unsubscribe = unsub
	s.mu.Unlock()

	if s.cfg.RefreshOnStart && s.monitor.Connected() {
		s.request(refreshScope{})
	}
	return nil
}

func (s *service) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.pending = nil
	s.subscribers = make(map[int]func(Snapshot))
	unsub := s.unsubscribe
	cancel := s.cancel
	s.mu.Unlock()

	if unsub != nil {
		unsub()
	}
	if cancel != nil {
		cancel()
	}
}

func (s *service) Categories(ctx context.Context) ([]Category, error) {
	if s.cache != nil {
		if cached, ok, err := s.cache.Load(ctx); err == nil && ok {
			return cached, nil
		} else if err != nil {
			s.logger.Warn("snapshot cache read failed", "error", err)
		}
	}

	categories, err := s.store.ListCategories(ctx)
	if err != nil {
		return nil, err
	}
	s.fillCache(ctx, categories)
	return categories, nil
}

func (s *service) QuestionsForCategory(ctx context.Context, categoryID string) ([]Question, error) {
	if categoryID == "" {
		return nil, apperrors.Wrap(apperrors.CodeInvalidInput, "category id cannot be empty", nil)
	}

	questions, err := s.store.ListQuestions(ctx, categoryID)
	if err != nil {
		return nil, err
	}

	if s.monitor.Connected() {
		s.request(refreshScope{CategoryID: categoryID})
	}
	return questions, nil
}

func (s *service) Refresh() Status {
	s.request(refreshScope{})
	return s.Status()
}

func (s *service) RefreshCategory(categoryID string) Status {
	if categoryID != "" {
		s.request(refreshScope{CategoryID: categoryID})
	}
	return s.Status()
}

func (s *service) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	status := Status{
		State:         s.state,
		Connected:     s.monitor.Connected(),
		LastRefreshAt: s.lastRefresh,
	}
	if s.lastErr != nil {
		status.LastError = s.lastErr.Error()
	}
	return status
}

func (s *service) SubscribeUpdates(fn func(Snapshot)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextSubID
	s.nextSubID++
	s.subscribers[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subscribers, id)
			s.mu.Unlock()
		})
	}
}

// request asks for a refresh run. At most one fetch is ever in flight; a
// request arriving mid-flight is queued as a single coalesced follow-up.
func (s *service) request(scope refreshScope) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.runCtx == nil {
		return
	}
	if s.refreshing {
		if s.pending != nil {
			merged := s.pending.merge(scope)
			s.pending = &merged
		} else {
			s.pending = &scope
		}
		return
	}
	s.refreshing = true
	s.state = StateRefreshingRemote
	go s.refreshWorker(scope)
}

func (s *service) refreshWorker(scope refreshScope) {
	for {
		s.refreshOnce(scope)

		s.mu.Lock()
		if s.pending == nil || s.closed {
			s.refreshing = false
			s.mu.Unlock()
			return
		}
		scope = *s.pending
		s.pending = nil
		s.state = StateRefreshingRemote
		s.mu.Unlock()
	}
}

func (s *service) refreshOnce(scope refreshScope) {
	ctx := s.runCtx

	categories, err := s.fetcher.FetchCategories(ctx)
	if err != nil {
		// Fetch failures never propagate: the previously published dataset
		// keeps serving.
		s.counters.RecordRefreshFailure()
		s.logger.Warn("catalog fetch failed, serving cached data", "error", err)
		s.setError(err)
		return
	}

	if !scope.full() {
		categories = filterCategory(categories, scope.CategoryID)
		if len(categories) == 0 {
			// Empty is a valid result, not a fault.
			s.logger.Info("category absent from remote catalog", "categoryId", scope.CategoryID)
			if err := s.publishFromStore(ctx, OriginRemote); err != nil {
				s.logger.Error("publish after empty refresh failed", "error", err)
			}
			return
		}
	}

	if err := s.commit(ctx, categories, scope); err != nil {
		s.counters.RecordRefreshFailure()
		s.logger.Error("refresh commit failed", "error", err)
		s.setError(err)
		return
	}

	if err := s.publishFromStore(ctx, OriginRemote); err != nil {
		s.setError(err)
		return
	}

	s.counters.RecordRefresh()
	s.mu.Lock()
	s.lastRefresh = time.Now()
	s.mu.Unlock()
}

// commit writes a fetched graph into the store: categories first, then each
// category's questions in its own transaction so one bad category cannot
// corrupt the others.
func (s *service) commit(ctx context.Context, categories []Category, scope refreshScope) error {
	if scope.full() {
		if err := s.store.UpsertCategories(ctx, stripQuestions(categories)); err != nil {
			return err
		}
	}

	for _, category := range categories {
		skipped, err := s.store.UpsertQuestions(ctx, category.ID, category.Questions)
		if err != nil {
			s.logger.Error("question batch failed", "categoryId", category.ID, "error", err)
			return err
		}
		if skipped > 0 {
			s.counters.RecordSkippedQuestions(skipped)
			s.logger.Warn("skipped invalid questions", "categoryId", category.ID, "skipped", skipped)
		}
	}
	return nil
}

func (s *service) publishFromStore(ctx context.Context, origin Origin) error {
	categories, err := s.store.ListCategories(ctx)
	if err != nil {
		return err
	}
	s.fillCache(ctx, categories)

	snapshot := Snapshot{
		Categories:  categories,
		Origin:      origin,
		PublishedAt: time.Now(),
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.state = StateReady
	s.lastErr = nil
	listeners := make([]func(Snapshot), 0, len(s.subscribers))
	for _, fn := range s.subscribers {
		listeners = append(listeners, fn)
	}
	s.mu.Unlock()

	s.publishMu.Lock()
	defer s.publishMu.Unlock()
	for _, fn := range listeners {
		fn(snapshot)
	}
	return nil
}

func (s *service) setError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.state = StateError
	s.lastErr = err
}

func (s *service) fillCache(ctx context.Context, categories []Category) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Save(ctx, categories, s.cfg.CacheTTL); err != nil {
		s.logger.Warn("snapshot cache write failed", "error", err)
	}
}

func filterCategory(categories []Category, categoryID string) []Category {
	for _, category := range categories {
		if category.ID == categoryID {
			return []Category{category}
		}
	}
	return nil
}

func stripQuestions(categories []Category) []Category {
	out := make([]Category, len(categories))
	for i, category := range categories {
		category.Questions = nil
		out[i] = category
	}
	return out
}
