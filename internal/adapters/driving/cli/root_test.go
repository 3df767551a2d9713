package cli

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/custodia-labs/lexharvest/internal/core/domain"
	"github.com/custodia-labs/lexharvest/internal/core/ports/driving"
)

// mockSyncOrchestrator implements driving.SyncOrchestrator for testing.
type mockSyncOrchestrator struct {
	req     driving.SyncRequest
	results []domain.RunStats
	err     error
}

func (m *mockSyncOrchestrator) Run(_ context.Context, req driving.SyncRequest) ([]domain.RunStats, error) {
	m.req = req
	if req.Observer != nil {
		for _, k := range req.Kinds {
			req.Observer.OnPage(k, 1, 1, 2)
			req.Observer.OnItem(k, "100", nil)
			req.Observer.OnItem(k, "101", errors.New("detail unavailable"))
		}
	}
	return m.results, m.err
}

func (m *mockSyncOrchestrator) Status(kind domain.DocumentKind) driving.SyncStatus {
	return driving.SyncStatus{Kind: kind, Phase: domain.PhaseIdle}
}

// mockSimilarityService implements driving.SimilarityService for testing.
type mockSimilarityService struct {
	query driving.SimilarityQuery
	hits  []domain.HydratedHit
	err   error
}

func (m *mockSimilarityService) Search(_ context.Context, q driving.SimilarityQuery) ([]domain.HydratedHit, error) {
	m.query = q
	return m.hits, m.err
}

// mockIndexService implements driving.IndexService for testing.
type mockIndexService struct {
	rebuilt []domain.DocumentKind
	err     error
}

func (m *mockIndexService) Rebuild(_ context.Context, kind domain.DocumentKind) (*domain.IndexStats, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.rebuilt = append(m.rebuilt, kind)
	return &domain.IndexStats{Kind: kind, Generation: 2, Dimensions: 768, Vectors: 5, LiveEntries: 5, Model: "nomic-embed-text"}, nil
}

func (m *mockIndexService) Stats(_ context.Context, kind domain.DocumentKind) (*domain.IndexStats, error) {
	return &domain.IndexStats{Kind: kind, Generation: 1, Dimensions: 768, Vectors: 7, LiveEntries: 5, Tombstones: 2}, m.err
}

// mockRecordService implements driving.RecordService for testing.
type mockRecordService struct {
	counts map[domain.DocumentKind]int
	runs   []domain.RunStats
	err    error
}

func (m *mockRecordService) Get(_ context.Context, _ domain.DocumentKind, _ string) (*domain.CanonicalRecord, error) {
	return nil, domain.ErrNotFound
}

func (m *mockRecordService) Count(_ context.Context, kind domain.DocumentKind) (int, error) {
	return m.counts[kind], m.err
}

func (m *mockRecordService) RecentRuns(_ context.Context, limit int) ([]domain.RunStats, error) {
	if limit > 0 && len(m.runs) > limit {
		return m.runs[:limit], m.err
	}
	return m.runs, m.err
}

// mockSettingsService implements driving.SettingsService for testing.
type mockSettingsService struct {
	settings domain.AppSettings
	values   map[string]string
	err      error
}

func (m *mockSettingsService) Get() (*domain.AppSettings, error) {
	s := m.settings
	return &s, m.err
}

func (m *mockSettingsService) Set(key, value string) error {
	if m.err != nil {
		return m.err
	}
	if m.values == nil {
		m.values = make(map[string]string)
	}
	m.values[key] = value
	return nil
}

func (m *mockSettingsService) Keys() []string {
	keys := []string{"api.key", "sync.display"}
	sort.Strings(keys)
	return keys
}

// mockScheduler implements driving.Scheduler for testing.
type mockScheduler struct {
	interval time.Duration
	kinds    []domain.DocumentKind
	started  bool
	err      error
}

func (m *mockScheduler) Watch(_ context.Context, interval time.Duration, kinds ...domain.DocumentKind) error {
	m.interval = interval
	m.kinds = kinds
	return m.err
}

func (m *mockScheduler) Start(_ context.Context) error {
	m.started = true
	return context.Canceled
}

func (m *mockScheduler) Stop() error {
	return nil
}

// testServices holds the mocks installed by setupTestServices.
type testServices struct {
	sync      *mockSyncOrchestrator
	search    *mockSimilarityService
	index     *mockIndexService
	records   *mockRecordService
	settings  *mockSettingsService
	scheduler *mockScheduler
}

var mocks *testServices

// setupTestServices installs fresh mocks and returns a cleanup func that
// restores the previous services and resets every flag.
func setupTestServices() func() {
	old := Services{
		Sync:          syncOrchestrator,
		Search:        similarityService,
		Index:         indexService,
		Records:       recordService,
		Settings:      settingsService,
		Scheduler:     watchScheduler,
		WatchInterval: configuredWatchInterval,
	}

	mocks = &testServices{
		sync: &mockSyncOrchestrator{},
		search: &mockSimilarityService{
			hits: []domain.HydratedHit{{
				SimilarityHit: domain.SimilarityHit{SerialNumber: "228541", Kind: domain.KindCase, Score: 0.91},
				Record: &domain.CanonicalRecord{
					Kind: domain.KindCase, SerialNumber: "228541", Title: "손해배상(기)",
					CaseNumber: "2020다12345", CourtName: "대법원",
					DecisionDate: time.Date(2021, 3, 11, 0, 0, 0, 0, time.UTC),
					SummaryText:  "불법행위로 인한 손해배상청구권의 소멸시효",
				},
			}},
		},
		index:     &mockIndexService{},
		records:   &mockRecordService{counts: map[domain.DocumentKind]int{domain.KindCase: 42}},
		settings:  &mockSettingsService{settings: domain.DefaultAppSettings()},
		scheduler: &mockScheduler{},
	}

	SetServices(&Services{
		Sync:      mocks.sync,
		Search:    mocks.search,
		Index:     mocks.index,
		Records:   mocks.records,
		Settings:  mocks.settings,
		Scheduler: mocks.scheduler,
	})

	return func() {
		SetServices(&old)
		resetFlags(rootCmd)
	}
}

// clearServices removes every service and returns a cleanup func.
func clearServices() func() {
	cleanup := setupTestServices()
	SetServices(&Services{})
	return cleanup
}

// resetFlags restores every flag to its default so flag values do not
// leak between tests sharing rootCmd.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}
