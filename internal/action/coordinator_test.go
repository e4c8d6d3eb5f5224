package action

import (
	"context"
	"errors"
	"sync"
	"testing"

	"go.uber.org/zap"

	"convosync/internal/apperr"
	"convosync/internal/model"
	"convosync/internal/notify"
	"convosync/internal/query"
)

type fakeMutator struct {
	mu     sync.Mutex
	calls  []string
	result *model.Conversation
	err    error
}

func (f *fakeMutator) record(name string) (*model.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, name)
	return f.result, f.err
}

func (f *fakeMutator) ToggleArchive(_ context.Context, _ string) (*model.Conversation, error) {
	return f.record("archive")
}
func (f *fakeMutator) ToggleImportant(_ context.Context, _ string) (*model.Conversation, error) {
	return f.record("important")
}
func (f *fakeMutator) AssignUser(_ context.Context, _, _ string) (*model.Conversation, error) {
	return f.record("assign")
}
func (f *fakeMutator) SetStatus(_ context.Context, _ string, _ model.ConversationStatus) (*model.Conversation, error) {
	return f.record("status")
}
func (f *fakeMutator) SetAIActive(_ context.Context, _ string, _ bool) (*model.Conversation, error) {
	return f.record("ai")
}

func (f *fakeMutator) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// recordingFetch counts refetches per (key, input) so tests can assert
// exactly which cached queries a mutation invalidated.
type recordingFetch struct {
	mu     sync.Mutex
	counts map[string]int
}

func newRecordingFetch() *recordingFetch {
	return &recordingFetch{counts: make(map[string]int)}
}

func (r *recordingFetch) fetch(_ context.Context, key query.Key, input string) (any, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counts[string(key)+"/"+input]++
	return nil, nil
}

func (r *recordingFetch) count(key query.Key, input string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counts[string(key)+"/"+input]
}

func testCoordinator(t *testing.T, m *fakeMutator) (*Coordinator, *recordingFetch, *notify.Center) {
	t.Helper()
	rf := newRecordingFetch()
	cache := query.NewCache(rf.fetch, zap.NewNop())
	iv := query.NewInvalidator(cache, zap.NewNop())
	n := notify.NewCenter()
	return NewCoordinator("client-1", m, iv, n, zap.NewNop()), rf, n
}

func TestArchiveUnarchiveScenario(t *testing.T) {
	m := &fakeMutator{result: &model.Conversation{ID: "conv-1", Status: model.StatusArchived}}
	c, rf, n := testCoordinator(t, m)

	conv := &model.Conversation{ID: "conv-1", Status: model.StatusActive}
	filters := model.ListFilters{Category: model.CategoryAll}

	if err := c.ToggleArchive(context.Background(), conv, filters); err != nil {
		t.Fatal(err)
	}
	if notice, ok := n.Current(); !ok || notice.Message != "Conversation archived" {
		t.Errorf("notice = %+v, want archive confirmation", notice)
	}

	// Narrow invalidation: list + page for the caller's filters, the
	// conversation itself, and stats.
	listInput := query.ListInput("client-1", filters)
	if got := rf.count(query.KeyConversations, listInput); got != 1 {
		t.Errorf("list refetches = %d, want 1", got)
	}
	if got := rf.count(query.KeyPageData, listInput); got != 1 {
		t.Errorf("page refetches = %d, want 1", got)
	}
	if got := rf.count(query.KeyConversation, query.ConversationInput("client-1", "conv-1")); got != 1 {
		t.Errorf("by-id refetches = %d, want 1", got)
	}
	if got := rf.count(query.KeyStats, query.StatsInput("client-1")); got != 1 {
		t.Errorf("stats refetches = %d, want 1 (stats always invalidated)", got)
	}

	// Unarchive with the refetched state.
	m.result = &model.Conversation{ID: "conv-1", Status: model.StatusActive}
	archived := &model.Conversation{ID: "conv-1", Status: model.StatusArchived}
	if err := c.ToggleArchive(context.Background(), archived, filters); err != nil {
		t.Fatal(err)
	}
	if notice, ok := n.Current(); !ok || notice.Message != "Conversation unarchived" {
		t.Errorf("notice = %+v, want unarchive confirmation", notice)
	}
	if got := rf.count(query.KeyStats, query.StatsInput("client-1")); got != 2 {
		t.Errorf("stats refetches = %d, want 2", got)
	}
}

func TestStatusChangeNoOp(t *testing.T) {
	m := &fakeMutator{result: &model.Conversation{ID: "conv-1", Status: model.StatusPaused}}
	c, rf, _ := testCoordinator(t, m)

	conv := &model.Conversation{ID: "conv-1", Status: model.StatusPaused}
	if err := c.SetStatus(context.Background(), conv, model.StatusPaused, model.ListFilters{}); err != nil {
		t.Fatal(err)
	}
	if m.callCount() != 0 {
		t.Error("setting the current status must not hit the network")
	}
	if got := rf.count(query.KeyStats, query.StatsInput("client-1")); got != 0 {
		t.Error("no-op must not invalidate anything")
	}

	// A real transition goes through.
	if err := c.SetStatus(context.Background(), conv, model.StatusActive, model.ListFilters{}); err != nil {
		t.Fatal(err)
	}
	if m.callCount() != 1 {
		t.Errorf("calls = %d, want 1", m.callCount())
	}
}

func TestFailureCapturedAndClearedOnNextInvoke(t *testing.T) {
	m := &fakeMutator{err: errors.New("connection refused")}
	c, rf, n := testCoordinator(t, m)

	conv := &model.Conversation{ID: "conv-1"}
	err := c.ToggleImportant(context.Background(), conv, model.ListFilters{})
	if err == nil {
		t.Fatal("expected failure")
	}
	if c.Pending(KindImportant) {
		t.Error("pending must clear after settle")
	}
	if c.LastError(KindImportant) == nil {
		t.Error("failure should be captured for the error panel")
	}
	if _, ok := n.Current(); !ok {
		t.Error("failure should flash")
	}
	if got := rf.count(query.KeyStats, query.StatsInput("client-1")); got != 0 {
		t.Error("failed mutation must not invalidate")
	}

	// Next invocation of the same kind clears the captured error.
	m.err = nil
	m.result = &model.Conversation{ID: "conv-1", Important: true}
	if err := c.ToggleImportant(context.Background(), conv, model.ListFilters{}); err != nil {
		t.Fatal(err)
	}
	if c.LastError(KindImportant) != nil {
		t.Error("success should leave no captured error")
	}
}

func TestDismissError(t *testing.T) {
	m := &fakeMutator{err: errors.New("boom")}
	c, _, _ := testCoordinator(t, m)

	_ = c.Assign(context.Background(), &model.Conversation{ID: "conv-1"}, "u1", model.ListFilters{})
	if c.LastError(KindAssign) == nil {
		t.Fatal("expected captured error")
	}
	c.DismissError(KindAssign)
	if c.LastError(KindAssign) != nil {
		t.Error("dismiss should clear the error")
	}
}

func TestFailureIsClassified(t *testing.T) {
	m := &fakeMutator{err: errors.New("boom")}
	c, _, _ := testCoordinator(t, m)

	err := c.SetAIActive(context.Background(), &model.Conversation{ID: "conv-1"}, true, model.ListFilters{})
	var ae *apperr.Error
	if !errors.As(err, &ae) {
		t.Fatalf("err = %T, want *apperr.Error", err)
	}
	if ae.Class == "" {
		t.Error("classified error must carry a class")
	}
}
