package catalog

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"reflect"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/concoursapp/catalogsync/internal/infra/connectivity"
	"github.com/concoursapp/catalogsync/pkg/metrics"
)

func TestStartPublishesCacheBeforeAnyRefresh(t *testing.T) {
	store := newStubStore()
	seedStore(t, store)
	fetcher := &stubFetcher{}
	monitor := connectivity.NewManualMonitor(false)

	svc, updates := newServiceUnderTest(t, store, fetcher, monitor)
	defer svc.Close()

	require.NoError(t, svc.Start(context.Background()))

	first := waitForSnapshot(t, updates)
	require.Equal(t, OriginCache, first.Origin)
	require.Len(t, first.Categories, 1)
	require.Equal(t, "c1", first.Categories[0].ID)
	require.Equal(t, int32(0), fetcher.calls.Load())
}

func TestCacheFirstAvailabilityOffline(t *testing.T) {
	store := newStubStore()
	seedStore(t, store)
	fetcher := &stubFetcher{}
	monitor := connectivity.NewManualMonitor(false)

	svc, _ := newServiceUnderTest(t, store, fetcher, monitor)
	defer svc.Close()
	require.NoError(t, svc.Start(context.Background()))

	categories, err := svc.Categories(context.Background())
	require.NoError(t, err)
	require.Len(t, categories, 1)

	questions, err := svc.QuestionsForCategory(context.Background(), "c1")
	require.NoError(t, err)
	require.Len(t, questions, 1)

	require.Equal(t, int32(0), fetcher.calls.Load(), "no network call may be attempted while offline")
}

func TestConnectivityTransitionTriggersRefresh(t *testing.T) {
	store := newStubStore()
	fetcher := &stubFetcher{categories: mathCatalog()}
	monitor := connectivity.NewManualMonitor(false)

	svc, updates := newServiceUnderTest(t, store, fetcher, monitor)
	defer svc.Close()
	require.NoError(t, svc.Start(context.Background()))

	first := waitForSnapshot(t, updates)
	require.Equal(t, OriginCache, first.Origin)
	require.Empty(t, first.Categories)

	monitor.SetConnected(true)

	refreshed := waitForSnapshotWithOrigin(t, updates, OriginRemote)
	require.Len(t, refreshed.Categories, 1)
	require.Equal(t, "Math", refreshed.Categories[0].Title)
}

func TestEndToEndScenario(t *testing.T) {
	store := newStubStore()
	fetcher := &stubFetcher{categories: mathCatalog()}
	monitor := connectivity.NewManualMonitor(false)

	svc, updates := newServiceUnderTest(t, store, fetcher, monitor)
	defer svc.Close()
	require.NoError(t, svc.Start(context.Background()))
	waitForSnapshot(t, updates)

	monitor.SetConnected(true)
	waitForSnapshotWithOrigin(t, updates, OriginRemote)

	categories, err := store.ListCategories(context.Background())
	require.NoError(t, err)
	require.Len(t, categories, 1)
	require.Equal(t, "c1", categories[0].ID)
	require.Equal(t, "Math", categories[0].Title)

	questions, err := store.ListQuestions(context.Background(), "c1")
	require.NoError(t, err)
	require.Len(t, questions, 1)
	require.Equal(t, "q1", questions[0].ID)
	require.Equal(t, "2+2?", questions[0].Text)
	require.Len(t, questions[0].Answers, 2)

	byID := map[string]Answer{}
	for _, answer := range questions[0].Answers {
		byID[answer.ID] = answer
	}
	require.True(t, byID["a1"].IsCorrect)
	require.False(t, byID["a2"].IsCorrect)
}

func TestFetchFailureFallsBackToCache(t *testing.T) {
	store := newStubStore()
	seedStore(t, store)
	fetcher := &stubFetcher{err: errors.New("boom")}
	monitor := connectivity.NewManualMonitor(false)

	svc, updates := newServiceUnderTest(t, store, fetcher, monitor)
	defer svc.Close()
	require.NoError(t, svc.Start(context.Background()))
	waitForSnapshot(t, updates)

	monitor.SetConnected(true)

	require.Eventually(t, func() bool {
		return svc.Status().State == StateError
	}, time.Second, 5*time.Millisecond)

	categories, err := svc.Categories(context.Background())
	require.NoError(t, err)
	require.Len(t, categories, 1, "previously published dataset must remain accessible")
}

func TestNoOverlappingFetchOnConnectivityFlap(t *testing.T) {
	store := newStubStore()
	gate := make(chan struct{})
	fetcher := &stubFetcher{categories: mathCatalog(), gate: gate}
	monitor := connectivity.NewManualMonitor(false)

	svc, updates := newServiceUnderTest(t, store, fetcher, monitor)
	defer svc.Close()
	require.NoError(t, svc.Start(context.Background()))
	waitForSnapshot(t, updates)

	// Rapid flap: two transitions to connected while the first fetch blocks.
	monitor.SetConnected(true)
	monitor.SetConnected(false)
	monitor.SetConnected(true)

	require.Eventually(t, func() bool {
		return fetcher.calls.Load() >= 1
	}, time.Second, time.Millisecond)
	close(gate)

	waitForSnapshotWithOrigin(t, updates, OriginRemote)
	require.Eventually(t, func() bool {
		return svc.Status().State == StateReady
	}, time.Second, 5*time.Millisecond)

	require.Equal(t, int32(1), fetcher.maxInFlight.Load(), "fetches must never overlap")
	require.LessOrEqual(t, fetcher.calls.Load(), int32(2), "flapped requests must coalesce")
}

func TestIdempotentRefresh(t *testing.T) {
	store := newStubStore()
	fetcher := &stubFetcher{categories: mathCatalog()}
	monitor := connectivity.NewManualMonitor(true)

	svc, updates := newServiceUnderTest(t, store, fetcher, monitor)
	defer svc.Close()
	require.NoError(t, svc.Start(context.Background()))
	waitForSnapshot(t, updates)

	svc.Refresh()
	waitForSnapshotWithOrigin(t, updates, OriginRemote)
	after1 := store.dump()

	svc.Refresh()
	waitForSnapshotWithOrigin(t, updates, OriginRemote)
	after2 := store.dump()

	require.True(t, reflect.DeepEqual(after1, after2), "second refresh of an unchanged dataset must be a no-op")
}

func TestInvalidQuestionsAreSkippedNotFatal(t *testing.T) {
	remote := mathCatalog()
	remote[0].Questions = append(remote[0].Questions,
		Question{ID: "q2", Text: "3+3?", Answers: []Answer{{ID: "a3", Text: "6", IsCorrect: true}}},
		Question{ID: "q3", Text: "no answers"},
	)

	store := newStubStore()
	fetcher := &stubFetcher{categories: remote}
	monitor := connectivity.NewManualMonitor(true)

	svc, updates := newServiceUnderTest(t, store, fetcher, monitor)
	defer svc.Close()
	require.NoError(t, svc.Start(context.Background()))
	waitForSnapshotWithOrigin(t, updates, OriginRemote)

	questions, err := store.ListQuestions(context.Background(), "c1")
	require.NoError(t, err)
	require.Len(t, questions, 2, "the invalid question must be skipped, siblings kept")
	ids := []string{questions[0].ID, questions[1].ID}
	sort.Strings(ids)
	require.Equal(t, []string{"q1", "q2"}, ids)
}

func TestCategoryScopedRefreshUpsertsOnlyThatCategory(t *testing.T) {
	remote := mathCatalog()
	remote = append(remote, Category{
		ID:    "c2",
		Title: "History",
		Questions: []Question{
			{ID: "q9", Text: "1789?", Answers: []Answer{{ID: "a9", Text: "Revolution", IsCorrect: true}}},
		},
	})

	store := newStubStore()
	seedStore(t, store) // store already knows c1
	fetcher := &stubFetcher{categories: remote}
	monitor := connectivity.NewManualMonitor(true)

	svc, updates := newServiceWithConfig(t, Config{}, store, fetcher, monitor)
	defer svc.Close()
	require.NoError(t, svc.Start(context.Background()))
	waitForSnapshot(t, updates)

	svc.RefreshCategory("c1")
	waitForSnapshotWithOrigin(t, updates, OriginRemote)

	dump := store.dump()
	_, hasForeignQuestion := dump.Questions["q9"]
	require.False(t, hasForeignQuestion, "only the requested category's questions may be upserted")
	_, hasForeignCategory := dump.Categories["c2"]
	require.False(t, hasForeignCategory)
	require.Contains(t, dump.Questions, "q1")
}

func TestEmptyCategoryMatchIsNotAnError(t *testing.T) {
	store := newStubStore()
	seedStore(t, store)
	fetcher := &stubFetcher{categories: mathCatalog()}
	monitor := connectivity.NewManualMonitor(true)

	svc, updates := newServiceWithConfig(t, Config{}, store, fetcher, monitor)
	defer svc.Close()
	require.NoError(t, svc.Start(context.Background()))
	waitForSnapshot(t, updates)

	svc.RefreshCategory("missing")
	waitForSnapshotWithOrigin(t, updates, OriginRemote)
	require.Equal(t, StateReady, svc.Status().State)
	require.Empty(t, svc.Status().LastError)
}

func TestCloseStopsAcceptingTriggers(t *testing.T) {
	store := newStubStore()
	fetcher := &stubFetcher{categories: mathCatalog()}
	monitor := connectivity.NewManualMonitor(false)

	svc, updates := newServiceUnderTest(t, store, fetcher, monitor)
	require.NoError(t, svc.Start(context.Background()))
	waitForSnapshot(t, updates)

	svc.Close()
	monitor.SetConnected(true)

	time.Sleep(20 * time.Millisecond)
	require.Equal(t, int32(0), fetcher.calls.Load())
}

func TestUnsubscribeIsIdempotent(t *testing.T) {
	store := newStubStore()
	fetcher := &stubFetcher{}
	monitor := connectivity.NewManualMonitor(false)

	svc, _ := newServiceUnderTest(t, store, fetcher, monitor)
	defer svc.Close()

	calls := 0
	unsub := svc.SubscribeUpdates(func(Snapshot) { calls++ })
	unsub()
	unsub()

	require.NoError(t, svc.Start(context.Background()))
	require.Equal(t, 0, calls)
}

// ---- test fixtures ----

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newServiceUnderTest(t *testing.T, store Store, fetcher Fetcher, monitor Monitor) (Service, chan Snapshot) {
	return newServiceWithConfig(t, Config{RefreshOnStart: true}, store, fetcher, monitor)
}

func newServiceWithConfig(t *testing.T, cfg Config, store Store, fetcher Fetcher, monitor Monitor) (Service, chan Snapshot) {
	t.Helper()
	svc := NewService(cfg, store, fetcher, monitor, nil, metrics.NewSyncCounters(), testLogger())
	updates := make(chan Snapshot, 16)
	svc.SubscribeUpdates(func(s Snapshot) { updates <- s })
	return svc, updates
}

func waitForSnapshot(t *testing.T, updates chan Snapshot) Snapshot {
	t.Helper()
	select {
	case snapshot := <-updates:
		return snapshot
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for snapshot")
		return Snapshot{}
	}
}

func waitForSnapshotWithOrigin(t *testing.T, updates chan Snapshot, origin Origin) Snapshot {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case snapshot := <-updates:
			if snapshot.Origin == origin {
				return snapshot
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s snapshot", origin)
			return Snapshot{}
		}
	}
}

func mathCatalog() []Category {
	return []Category{
		{
			ID:          "c1",
			Title:       "Math",
			Description: "Arithmetic drills",
			Questions: []Question{
				{
					ID:   "q1",
					Text: "2+2?",
					Answers: []Answer{
						{ID: "a1", Text: "4", IsCorrect: true},
						{ID: "a2", Text: "5", IsCorrect: false},
					},
				},
			},
		},
	}
}

func seedStore(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, store.UpsertCategories(ctx, []Category{{ID: "c1", Title: "Math", Description: "Arithmetic drills"}}))
	_, err := store.UpsertQuestions(ctx, "c1", mathCatalog()[0].Questions)
	require.NoError(t, err)
}

type stubFetcher struct {
	categories []Category
	err        error
	gate       chan struct{}

	calls       atomic.Int32
	inFlight    atomic.Int32
	maxInFlight atomic.Int32
}

func (f *stubFetcher) FetchCategories(ctx context.Context) ([]Category, error) {
	f.calls.Add(1)
	current := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		peak := f.maxInFlight.Load()
		if current <= peak || f.maxInFlight.CompareAndSwap(peak, current) {
			break
		}
	}
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	out := make([]Category, len(f.categories))
	copy(out, f.categories)
	return out, nil
}

// stubStore is a minimal in-memory Store for orchestrator tests.
type stubStore struct {
	mu         sync.Mutex
	categories map[string]Category
	questions  map[string]Question
	answers    map[string]Answer
}

func newStubStore() *stubStore {
	return &stubStore{
		categories: make(map[string]Category),
		questions:  make(map[string]Question),
		answers:    make(map[string]Answer),
	}
}

func (s *stubStore) EnsureSchema(context.Context) error { return nil }

func (s *stubStore) UpsertCategories(_ context.Context, categories []Category) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, category := range categories {
		category.Questions = nil
		s.categories[category.ID] = category
	}
	return nil
}

func (s *stubStore) UpsertQuestions(_ context.Context, categoryID string, questions []Question) (int, error) {
	valid, skipped := FilterValidQuestions(questions)
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, question := range valid {
		answers := question.Answers
		question.CategoryID = categoryID
		question.Answers = nil
		s.questions[question.ID] = question
		for _, answer := range answers {
			answer.QuestionID = question.ID
			s.answers[answer.ID] = answer
		}
	}
	return skipped, nil
}

func (s *stubStore) ListCategories(context.Context) ([]Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Category, 0, len(s.categories))
	for _, category := range s.categories {
		out = append(out, category)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *stubStore) ListQuestions(_ context.Context, categoryID string) ([]Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Question, 0)
	for _, question := range s.questions {
		if question.CategoryID != categoryID {
			continue
		}
		for _, answer := range s.answers {
			if answer.QuestionID == question.ID {
				question.Answers = append(question.Answers, answer)
			}
		}
		sort.Slice(question.Answers, func(i, j int) bool { return question.Answers[i].ID < question.Answers[j].ID })
		out = append(out, question)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type storeDump struct {
	Categories map[string]Category
	Questions  map[string]Question
	Answers    map[string]Answer
}

func (s *stubStore) dump() storeDump {
	s.mu.Lock()
	defer s.mu.Unlock()
	dump := storeDump{
		Categories: make(map[string]Category, len(s.categories)),
		Questions:  make(map[string]Question, len(s.questions)),
		Answers:    make(map[string]Answer, len(s.answers)),
	}
	for k, v := range s.categories {
		dump.Categories[k] = v
	}
	for k, v := range s.questions {
		dump.Questions[k] = v
	}
	for k, v := range s.answers {
		dump.Answers[k] = v
	}
	return dump
}
