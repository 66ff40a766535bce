package syncer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/kozaktomas/facesync/internal/immich"
	"github.com/kozaktomas/facesync/internal/status"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeCatalog struct {
	people     []immich.Person
	peopleErr  error
	faces      map[string][]immich.Face
	facesErr   map[string]error
	thumbErr   map[string]error
	thumbCalls map[string]int
	mu         sync.Mutex
}

func (c *fakeCatalog) GetPeople(context.Context) ([]immich.Person, error) {
	if c.peopleErr != nil {
		return nil, c.peopleErr
	}
	return c.people, nil
}

func (c *fakeCatalog) GetPerson(_ context.Context, id string) (*immich.Person, error) {
	for _, p := range c.people {
		if p.ID == id {
			return &p, nil
		}
	}
	return nil, fmt.Errorf("person %s not found", id)
}

func (c *fakeCatalog) GetPersonFaces(_ context.Context, personID string) ([]immich.Face, error) {
	if err := c.facesErr[personID]; err != nil {
		return nil, err
	}
	return c.faces[personID], nil
}

func (c *fakeCatalog) GetAssetThumbnail(_ context.Context, assetID string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.thumbCalls == nil {
		c.thumbCalls = map[string]int{}
	}
	c.thumbCalls[assetID]++
	if err := c.thumbErr[assetID]; err != nil {
		return nil, err
	}
	return []byte("thumb-" + assetID), nil
}

func (c *fakeCatalog) totalThumbCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, v := range c.thumbCalls {
		n += v
	}
	return n
}

type trainCall struct {
	person, faceID string
}

type fakeTrainer struct {
	mu    sync.Mutex
	calls []trainCall
	err   error
	block chan struct{}
}

func (t *fakeTrainer) Name() string { return "fake" }

func (t *fakeTrainer) Train(_ context.Context, person, faceID string, _ []byte) error {
	if t.block != nil {
		<-t.block
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.err != nil {
		return t.err
	}
	t.calls = append(t.calls, trainCall{person, faceID})
	return nil
}

func (t *fakeTrainer) trained() []trainCall {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]trainCall(nil), t.calls...)
}

type memStore struct {
	mu      sync.Mutex
	ids     map[string]bool
	markErr error
}

func newMemStore(ids ...string) *memStore {
	s := &memStore{ids: map[string]bool{}}
	for _, id := range ids {
		s.ids[id] = true
	}
	return s
}

func (s *memStore) IsSynced(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ids[id]
}

func (s *memStore) MarkSynced(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ids[id] = true
	return s.markErr
}

type fakeNotifier struct {
	calls   int
	trained int
	err     error
}

func (n *fakeNotifier) Notify(_ context.Context, _ string, trained int) error {
	n.calls++
	n.trained = trained
	return n.err
}

type recordingSink struct {
	mu     sync.Mutex
	events []Event
}

func (r *recordingSink) HandleEvent(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recordingSink) ofType(t EventType) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Event
	for _, ev := range r.events {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

func face(id, asset string) immich.Face {
	return immich.Face{
		ID:          id,
		AssetID:     asset,
		BoundingBox: immich.BoundingBox{X1: 10, Y1: 10, X2: 50, Y2: 50},
	}
}

func passthroughCrop(thumb []byte, _ immich.Face) ([]byte, error) {
	return thumb, nil
}

type fixture struct {
	catalog  *fakeCatalog
	trainer  *fakeTrainer
	store    *memStore
	tracker  *status.Tracker
	notifier *fakeNotifier
	sink     *recordingSink
	syncer   *Syncer
}

func newFixture(t *testing.T, catalog *fakeCatalog, store *memStore, opts Options) *fixture {
	t.Helper()
	f := &fixture{
		catalog:  catalog,
		trainer:  &fakeTrainer{},
		store:    store,
		tracker:  status.NewTracker(status.DefaultLogCapacity, nil, zerolog.Nop()),
		notifier: &fakeNotifier{},
		sink:     &recordingSink{},
	}
	runN := 0
	f.syncer = New(Deps{
		Catalog:  f.catalog,
		Trainer:  f.trainer,
		Store:    f.store,
		Tracker:  f.tracker,
		Notifier: f.notifier,
		Sinks:    []Sink{f.sink},
		Logger:   zerolog.Nop(),
		Crop:     passthroughCrop,
		NewRunID: func() string {
			runN++
			return fmt.Sprintf("run-%d", runN)
		},
	}, opts)
	return f
}

// Alice has one already-synced face, one good face and one face whose
// thumbnail cannot be fetched.
func aliceCatalog() *fakeCatalog {
	return &fakeCatalog{
		people: []immich.Person{{ID: "p1", Name: "Alice"}},
		faces: map[string][]immich.Face{
			"p1": {face("f1", "a1"), face("f2", "a2"), face("f3", "a3")},
		},
		thumbErr: map[string]error{"a3": errors.New("connection refused")},
	}
}

func TestRun_AliceScenario(t *testing.T) {
	f := newFixture(t, aliceCatalog(), newMemStore("f1"), Options{SkipExisting: true})

	summary, err := f.syncer.Run(context.Background(), nil)
	require.NoError(t, err)

	assert.Equal(t, status.OutcomePartialFailure, summary.Status)
	assert.Equal(t, 1, summary.Trained)
	assert.Equal(t, 1, summary.Skipped)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, "Sync complete! Trained: 1, Skipped: 1, Failed: 1.", summary.Message)
	assert.Equal(t, []trainCall{{"Alice", "f2"}}, f.trainer.trained())
	assert.True(t, f.store.IsSynced("f2"))
	assert.False(t, f.store.IsSynced("f3"))

	// Skipped face performs no network I/O.
	assert.Equal(t, 0, f.catalog.thumbCalls["a1"])

	snap := f.tracker.Snapshot()
	assert.False(t, snap.InProgress)
	assert.Equal(t, status.PhaseCompleted, snap.Phase)
	require.NotNil(t, snap.LastSummary)
	assert.Equal(t, summary.RunID, snap.LastSummary.RunID)
	assert.Contains(t, snap.Logs, "ERROR: face f3 for Alice: connection refused")

	progress := f.sink.ofType(EventProgress)
	require.Len(t, progress, 3)
	for i, ev := range progress {
		assert.Equal(t, i+1, ev.Progress.Processed)
		assert.Equal(t, 3, ev.Progress.Total)
	}
	assert.Equal(t, "Processing Alice: 3/3 faces (100%)", progress[2].Progress.Message)

	faces := f.sink.ofType(EventFace)
	require.Len(t, faces, 3)
	assert.Equal(t, FaceSkipped, faces[0].Face.Result)
	assert.Equal(t, FaceTrained, faces[1].Face.Result)
	assert.Equal(t, FaceFailed, faces[2].Face.Result)
	assert.Equal(t, "connection refused", faces[2].Face.Error)

	finished := f.sink.ofType(EventRunFinished)
	require.Len(t, finished, 1)
	assert.Equal(t, summary.Considered(), finished[0].Summary.Considered())

	assert.Equal(t, 1, f.notifier.calls)
	assert.Equal(t, 1, f.notifier.trained)
}

func TestRun_EnumerationFailure(t *testing.T) {
	catalog := &fakeCatalog{peopleErr: errors.New("dial tcp: no route to host")}
	f := newFixture(t, catalog, newMemStore(), Options{SkipExisting: true})

	summary, err := f.syncer.Run(context.Background(), nil)
	require.NoError(t, err)

	assert.Equal(t, status.OutcomeFailure, summary.Status)
	assert.Contains(t, summary.Message, "Sync Failed")
	assert.Contains(t, summary.Message, "no route to host")
	assert.Zero(t, summary.Considered())
	assert.Empty(t, f.sink.ofType(EventProgress))
	assert.Equal(t, 0, f.notifier.calls)

	snap := f.tracker.Snapshot()
	assert.Equal(t, status.PhaseFailed, snap.Phase)
	assert.False(t, snap.InProgress)
	assert.Equal(t, summary.Message, snap.StatusMessage)
}

func TestRun_Idempotent(t *testing.T) {
	catalog := &fakeCatalog{
		people: []immich.Person{{ID: "p1", Name: "Alice"}, {ID: "p2", Name: "Bob"}},
		faces: map[string][]immich.Face{
			"p1": {face("f1", "a1"), face("f2", "a2")},
			"p2": {face("f3", "a3")},
		},
	}
	f := newFixture(t, catalog, newMemStore(), Options{SkipExisting: true})

	first, err := f.syncer.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, status.OutcomeSuccess, first.Status)
	assert.Equal(t, 3, first.Trained)

	calls := catalog.totalThumbCalls()

	second, err := f.syncer.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, status.OutcomeSuccess, second.Status)
	assert.Equal(t, 0, second.Trained)
	assert.Equal(t, 3, second.Skipped)
	assert.Equal(t, calls, catalog.totalThumbCalls(), "second run must not fetch thumbnails")
	assert.Len(t, f.trainer.trained(), 3)
	assert.Equal(t, 1, f.notifier.calls, "reload only when something was trained")
}

func TestRun_SkipExistingDisabled(t *testing.T) {
	f := newFixture(t, aliceCatalog(), newMemStore("f1"), Options{SkipExisting: false})

	summary, err := f.syncer.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Trained)
	assert.Equal(t, 0, summary.Skipped)
	assert.Equal(t, 1, summary.Failed)
}

func TestRun_PerPersonCap(t *testing.T) {
	catalog := &fakeCatalog{
		people: []immich.Person{{ID: "p1", Name: "Alice"}},
		faces: map[string][]immich.Face{
			"p1": {face("f1", "a1"), face("f2", "a2"), face("f3", "a3")},
		},
	}
	f := newFixture(t, catalog, newMemStore(), Options{SkipExisting: true, PerPersonCap: 2})

	summary, err := f.syncer.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Considered())
	assert.Equal(t, []trainCall{{"Alice", "f1"}, {"Alice", "f2"}}, f.trainer.trained())
}

func TestRun_ExplicitSelection(t *testing.T) {
	f := newFixture(t, aliceCatalog(), newMemStore(), Options{SkipExisting: true, PerPersonCap: 1})

	summary, err := f.syncer.Run(context.Background(), &Selection{
		PersonID: "p1",
		FaceIDs:  []string{"f2", "f1", "f2", "missing"},
	})
	require.NoError(t, err)

	// Duplicates are dropped, caller order is kept, the cap does not apply
	// and unknown IDs count as failed.
	assert.Equal(t, []trainCall{{"Alice", "f2"}, {"Alice", "f1"}}, f.trainer.trained())
	assert.Equal(t, 2, summary.Trained)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, status.OutcomePartialFailure, summary.Status)
}

func TestRun_InvalidSelection(t *testing.T) {
	f := newFixture(t, aliceCatalog(), newMemStore(), Options{})

	_, err := f.syncer.Run(context.Background(), &Selection{FaceIDs: []string{"f1"}})
	assert.ErrorIs(t, err, ErrInvalidSelection)
	assert.False(t, f.tracker.InProgress())
}

func TestRun_UnknownPersonSelectionFails(t *testing.T) {
	f := newFixture(t, aliceCatalog(), newMemStore(), Options{})

	summary, err := f.syncer.Run(context.Background(), &Selection{PersonID: "nobody"})
	require.NoError(t, err)
	assert.Equal(t, status.OutcomeFailure, summary.Status)
}

func TestRun_UnnamedPeopleAndListingFailures(t *testing.T) {
	catalog := &fakeCatalog{
		people: []immich.Person{
			{ID: "p0", Name: ""},
			{ID: "p1", Name: "Alice"},
			{ID: "p2", Name: "Bob"},
		},
		faces: map[string][]immich.Face{
			"p0": {face("f0", "a0")},
			"p1": {face("f1", "a1")},
		},
		facesErr: map[string]error{"p2": errors.New("500 internal error")},
	}
	f := newFixture(t, catalog, newMemStore(), Options{SkipExisting: true})

	summary, err := f.syncer.Run(context.Background(), nil)
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Trained)
	assert.Equal(t, 0, summary.Failed)
	assert.Equal(t, 1, summary.FailedPeople)
	assert.Equal(t, status.OutcomePartialFailure, summary.Status)
	assert.Contains(t, f.tracker.Snapshot().Logs, "WARN: Skipping person with no name (ID: p0).")
	assert.False(t, f.store.IsSynced("f0"))
}

func TestRun_MarkSyncedErrorStillCountsTrained(t *testing.T) {
	store := newMemStore()
	store.markErr = errors.New("disk full")
	f := newFixture(t, aliceCatalog(), store, Options{SkipExisting: true})

	summary, err := f.syncer.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Trained)
	assert.Equal(t, 1, summary.Failed)

	logs := f.syncer.Tracker().Snapshot().Logs
	assert.Contains(t, logs, "WARN: face f1 trained but not persisted: disk full")
	assert.Contains(t, logs, "WARN: face f2 trained but not persisted: disk full")
}

func TestRun_ReloadFailureDoesNotChangeOutcome(t *testing.T) {
	catalog := &fakeCatalog{
		people: []immich.Person{{ID: "p1", Name: "Alice"}},
		faces:  map[string][]immich.Face{"p1": {face("f1", "a1")}},
	}
	f := newFixture(t, catalog, newMemStore(), Options{SkipExisting: true})
	f.notifier.err = errors.New("webhook down")

	summary, err := f.syncer.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, status.OutcomeSuccess, summary.Status)
	assert.Equal(t, 1, f.notifier.calls)
}

func TestRun_PanicEndsRun(t *testing.T) {
	f := newFixture(t, aliceCatalog(), newMemStore(), Options{})
	f.syncer.deps.Crop = func([]byte, immich.Face) ([]byte, error) {
		panic("decoder exploded")
	}

	summary, err := f.syncer.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, status.OutcomeFailure, summary.Status)
	assert.Contains(t, summary.Message, "decoder exploded")
	assert.False(t, f.tracker.InProgress())
	assert.Len(t, f.sink.ofType(EventRunFinished), 1)
}

func TestTrigger_SingleFlight(t *testing.T) {
	catalog := &fakeCatalog{
		people: []immich.Person{{ID: "p1", Name: "Alice"}},
		faces:  map[string][]immich.Face{"p1": {face("f1", "a1")}},
	}
	f := newFixture(t, catalog, newMemStore(), Options{SkipExisting: true})
	f.trainer.block = make(chan struct{})

	runID, err := f.syncer.Trigger(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "run-1", runID)
	assert.True(t, f.tracker.InProgress())

	_, err = f.syncer.Trigger(context.Background(), nil)
	assert.ErrorIs(t, err, ErrAlreadyRunning)
	_, err = f.syncer.Run(context.Background(), nil)
	assert.ErrorIs(t, err, ErrAlreadyRunning)

	close(f.trainer.block)
	f.syncer.Wait()

	snap := f.tracker.Snapshot()
	assert.False(t, snap.InProgress)
	require.NotNil(t, snap.LastSummary)
	assert.Equal(t, "run-1", snap.LastSummary.RunID)
	assert.Equal(t, 1, snap.LastSummary.Trained)
}

func TestTrigger_DetachedFromRequestContext(t *testing.T) {
	catalog := &fakeCatalog{
		people: []immich.Person{{ID: "p1", Name: "Alice"}},
		faces:  map[string][]immich.Face{"p1": {face("f1", "a1")}},
	}
	f := newFixture(t, catalog, newMemStore(), Options{SkipExisting: true})
	f.trainer.block = make(chan struct{})

	ctx, cancel := context.WithCancel(context.Background())
	_, err := f.syncer.Trigger(ctx, nil)
	require.NoError(t, err)
	cancel()
	close(f.trainer.block)
	f.syncer.Wait()

	assert.Equal(t, status.OutcomeSuccess, f.tracker.Snapshot().LastSummary.Status)
}

func TestRun_ConsideredEqualsSum(t *testing.T) {
	catalog := &fakeCatalog{
		people: []immich.Person{{ID: "p1", Name: "Alice"}, {ID: "p2", Name: "Bob"}},
		faces: map[string][]immich.Face{
			"p1": {face("f1", "a1"), face("f2", "a2"), face("f3", "a3"), face("f4", "a4")},
			"p2": {face("f5", "a5"), face("f6", "a6")},
		},
		thumbErr: map[string]error{"a2": errors.New("timeout"), "a6": errors.New("timeout")},
	}
	f := newFixture(t, catalog, newMemStore("f3", "f5"), Options{SkipExisting: true})

	summary, err := f.syncer.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 6, summary.Considered())
	assert.Equal(t, 2, summary.Trained)
	assert.Equal(t, 2, summary.Skipped)
	assert.Equal(t, 2, summary.Failed)
	assert.Len(t, f.sink.ofType(EventFace), 6)
}

func TestBroadcaster(t *testing.T) {
	b := &Broadcaster{}
	ch := b.AddListener()
	assert.Equal(t, 1, b.Listeners())

	b.HandleEvent(Event{Type: EventLog, Message: "hello"})
	select {
	case ev := <-ch:
		assert.Equal(t, "hello", ev.Message)
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}

	b.RemoveListener(ch)
	assert.Equal(t, 0, b.Listeners())
	_, open := <-ch
	assert.False(t, open)

	// Removing twice is harmless.
	b.RemoveListener(ch)
}

func TestBroadcaster_Close(t *testing.T) {
	b := &Broadcaster{}
	first := b.AddListener()
	second := b.AddListener()

	b.Close()
	assert.Equal(t, 0, b.Listeners())
	for _, ch := range []chan Event{first, second} {
		_, open := <-ch
		assert.False(t, open)
	}

	// Listeners added after Close are closed immediately.
	late := b.AddListener()
	_, open := <-late
	assert.False(t, open)
	assert.Equal(t, 0, b.Listeners())

	// Events after Close are dropped, and removing or closing again is harmless.
	b.HandleEvent(Event{Type: EventLog})
	b.RemoveListener(first)
	b.Close()
}

func TestRunEvery_StopsOnCancel(t *testing.T) {
	catalog := &fakeCatalog{people: []immich.Person{}}
	f := newFixture(t, catalog, newMemStore(), Options{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		f.syncer.RunEvery(ctx, 10*time.Millisecond)
		close(done)
	}()

	require.Eventually(t, func() bool {
		s := f.tracker.Snapshot()
		return s.LastSummary != nil && !s.InProgress
	}, time.Second, 5*time.Millisecond)

	cancel()
	<-done
	f.syncer.Wait()
}

func TestRunEvery_DisabledReturnsImmediately(t *testing.T) {
	f := newFixture(t, aliceCatalog(), newMemStore(), Options{})
	f.syncer.RunEvery(context.Background(), 0)
	assert.Nil(t, f.tracker.Snapshot().LastSummary)
}
