package sqlite

import (
	"context"
	"encoding/json"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/brewloop/tea"
)

// testLogger implements Logger for testing
type testLogger struct {
	t *testing.T
}

func (l *testLogger) Debug(msg string, args ...any) {
	l.t.Logf("DEBUG: %s %v", msg, args)
}

func (l *testLogger) Info(msg string, args ...any) {
	l.t.Logf("INFO: %s %v", msg, args)
}

func (l *testLogger) Error(msg string, args ...any) {
	l.t.Logf("ERROR: %s %v", msg, args)
}

// testMetricsHook implements MetricsHook for testing
type testMetricsHook struct {
	mu                  sync.Mutex
	recordCount         int
	loadCount           int
	saveCheckpointCount int
	loadCheckpointCount int
	lastRecordErr       error
	lastLoadErr         error
}

func (h *testMetricsHook) OnRecord(duration time.Duration, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.recordCount++
	h.lastRecordErr = err
}

func (h *testMetricsHook) OnLoad(duration time.Duration, count int, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.loadCount++
	h.lastLoadErr = err
}

func (h *testMetricsHook) OnSaveCheckpoint(duration time.Duration, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.saveCheckpointCount++
}

func (h *testMetricsHook) OnLoadCheckpoint(duration time.Duration, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.loadCheckpointCount++
}

func newTestJournal(t *testing.T, opts ...Option) *Journal {
	t.Helper()
	path := filepath.Join(t.TempDir(), "journal.db")
	j, err := New(path, opts...)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(func() { j.Close() })
	return j
}

func testEntry(seq int64, action string) *tea.Entry {
	return &tea.Entry{
		Seq:       seq,
		Action:    action,
		Data:      json.RawMessage(`{"n":1}`),
		State:     json.RawMessage(`{"total":1}`),
		Timestamp: time.Now().UTC(),
	}
}

func TestNewValidation(t *testing.T) {
	tests := []struct {
		name string
		path string
	}{
		{name: "empty path", path: ""},
		{name: "query injection", path: "journal.db?mode=ro"},
		{name: "fragment injection", path: "journal.db#frag"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.path); err == nil {
				t.Error("New accepted an invalid path")
			}
		})
	}
}

func TestNewInMemory(t *testing.T) {
	j, err := New(":memory:")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer j.Close()

	pos, err := j.Position(context.Background())
	if err != nil {
		t.Fatalf("Position failed: %v", err)
	}
	if pos != 0 {
		t.Errorf("Position = %d, want 0", pos)
	}
}

func TestRecordAndLoad(t *testing.T) {
	j := newTestJournal(t)
	ctx := context.Background()

	for i := int64(1); i <= 3; i++ {
		if err := j.Record(ctx, testEntry(i, "incr")); err != nil {
			t.Fatalf("Record failed: %v", err)
		}
	}

	entries, err := j.Load(ctx, 1, -1)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("Load returned %d entries, want 3", len(entries))
	}
	for i, entry := range entries {
		if entry.Seq != int64(i)+1 {
			t.Errorf("entry %d seq = %d, want %d", i, entry.Seq, i+1)
		}
		if entry.Action != "incr" {
			t.Errorf("entry %d action = %q, want %q", i, entry.Action, "incr")
		}
		if string(entry.Data) != `{"n":1}` {
			t.Errorf("entry %d data = %s", i, entry.Data)
		}
		if string(entry.State) != `{"total":1}` {
			t.Errorf("entry %d state = %s", i, entry.State)
		}
	}
}

func TestRecordAssignsSeqWhenZero(t *testing.T) {
	j := newTestJournal(t)
	ctx := context.Background()

	first := testEntry(0, "a")
	if err := j.Record(ctx, first); err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	if first.Seq != 1 {
		t.Errorf("first assigned seq = %d, want 1", first.Seq)
	}

	second := testEntry(0, "b")
	if err := j.Record(ctx, second); err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	if second.Seq != 2 {
		t.Errorf("second assigned seq = %d, want 2", second.Seq)
	}
}

func TestLoadRange(t *testing.T) {
	j := newTestJournal(t)
	ctx := context.Background()

	for i := int64(1); i <= 5; i++ {
		if err := j.Record(ctx, testEntry(i, "incr")); err != nil {
			t.Fatalf("Record failed: %v", err)
		}
	}

	entries, err := j.Load(ctx, 2, 4)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("Load returned %d entries, want 3", len(entries))
	}
	if entries[0].Seq != 2 || entries[2].Seq != 4 {
		t.Errorf("range = [%d,%d], want [2,4]", entries[0].Seq, entries[2].Seq)
	}
}

func TestPosition(t *testing.T) {
	j := newTestJournal(t)
	ctx := context.Background()

	pos, err := j.Position(ctx)
	if err != nil {
		t.Fatalf("Position failed: %v", err)
	}
	if pos != 0 {
		t.Errorf("empty Position = %d, want 0", pos)
	}

	for i := int64(1); i <= 4; i++ {
		if err := j.Record(ctx, testEntry(i, "incr")); err != nil {
			t.Fatalf("Record failed: %v", err)
		}
	}

	pos, err = j.Position(ctx)
	if err != nil {
		t.Fatalf("Position failed: %v", err)
	}
	if pos != 4 {
		t.Errorf("Position = %d, want 4", pos)
	}
}

func TestCheckpoints(t *testing.T) {
	j := newTestJournal(t)
	ctx := context.Background()

	cp, err := j.LatestCheckpoint(ctx)
	if err != nil {
		t.Fatalf("LatestCheckpoint failed: %v", err)
	}
	if cp != nil {
		t.Fatalf("LatestCheckpoint on empty store = %+v, want nil", cp)
	}

	for _, seq := range []int64{2, 4, 6} {
		err := j.SaveCheckpoint(ctx, &tea.Checkpoint{
			Seq:       seq,
			State:     json.RawMessage(`{"total":1}`),
			Timestamp: time.Now().UTC(),
		})
		if err != nil {
			t.Fatalf("SaveCheckpoint failed: %v", err)
		}
	}

	cp, err = j.LatestCheckpoint(ctx)
	if err != nil {
		t.Fatalf("LatestCheckpoint failed: %v", err)
	}
	if cp == nil || cp.Seq != 6 {
		t.Fatalf("LatestCheckpoint = %+v, want seq 6", cp)
	}
	if string(cp.State) != `{"total":1}` {
		t.Errorf("checkpoint state = %s", cp.State)
	}
}

func TestSaveCheckpointUpsert(t *testing.T) {
	j := newTestJournal(t)
	ctx := context.Background()

	for _, state := range []string{`{"total":1}`, `{"total":2}`} {
		err := j.SaveCheckpoint(ctx, &tea.Checkpoint{
			Seq:       3,
			State:     json.RawMessage(state),
			Timestamp: time.Now().UTC(),
		})
		if err != nil {
			t.Fatalf("SaveCheckpoint failed: %v", err)
		}
	}

	cp, err := j.LatestCheckpoint(ctx)
	if err != nil {
		t.Fatalf("LatestCheckpoint failed: %v", err)
	}
	if string(cp.State) != `{"total":2}` {
		t.Errorf("checkpoint state = %s, want updated value", cp.State)
	}
}

func TestStream(t *testing.T) {
	j := newTestJournal(t)
	ctx := context.Background()

	for i := int64(1); i <= 5; i++ {
		if err := j.Record(ctx, testEntry(i, "incr")); err != nil {
			t.Fatalf("Record failed: %v", err)
		}
	}

	var seqs []int64
	for entry, err := range j.Stream(ctx, 3) {
		if err != nil {
			t.Fatalf("Stream failed: %v", err)
		}
		seqs = append(seqs, entry.Seq)
	}
	if len(seqs) != 3 || seqs[0] != 3 || seqs[2] != 5 {
		t.Errorf("streamed seqs = %v, want [3 4 5]", seqs)
	}
}

func TestStreamEarlyBreak(t *testing.T) {
	j := newTestJournal(t)
	ctx := context.Background()

	for i := int64(1); i <= 5; i++ {
		if err := j.Record(ctx, testEntry(i, "incr")); err != nil {
			t.Fatalf("Record failed: %v", err)
		}
	}

	var count int
	for _, err := range j.Stream(ctx, 1) {
		if err != nil {
			t.Fatalf("Stream failed: %v", err)
		}
		count++
		if count == 2 {
			break
		}
	}
	if count != 2 {
		t.Errorf("consumed %d entries, want 2", count)
	}
}

func TestHooksAndLogger(t *testing.T) {
	hook := &testMetricsHook{}
	j := newTestJournal(t,
		WithLogger(&testLogger{t: t}),
		WithMetricsHook(hook),
		WithBusyTimeout(time.Second),
	)
	ctx := context.Background()

	if err := j.Record(ctx, testEntry(1, "incr")); err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	if _, err := j.Load(ctx, 1, -1); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	err := j.SaveCheckpoint(ctx, &tea.Checkpoint{Seq: 1, State: json.RawMessage(`{}`), Timestamp: time.Now().UTC()})
	if err != nil {
		t.Fatalf("SaveCheckpoint failed: %v", err)
	}
	if _, err := j.LatestCheckpoint(ctx); err != nil {
		t.Fatalf("LatestCheckpoint failed: %v", err)
	}

	hook.mu.Lock()
	defer hook.mu.Unlock()
	if hook.recordCount != 1 {
		t.Errorf("recordCount = %d, want 1", hook.recordCount)
	}
	if hook.loadCount != 1 {
		t.Errorf("loadCount = %d, want 1", hook.loadCount)
	}
	if hook.saveCheckpointCount != 1 {
		t.Errorf("saveCheckpointCount = %d, want 1", hook.saveCheckpointCount)
	}
	if hook.loadCheckpointCount != 1 {
		t.Errorf("loadCheckpointCount = %d, want 1", hook.loadCheckpointCount)
	}
	if hook.lastRecordErr != nil || hook.lastLoadErr != nil {
		t.Errorf("unexpected hook errors: %v, %v", hook.lastRecordErr, hook.lastLoadErr)
	}
}

func TestPersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	ctx := context.Background()

	j, err := New(path)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := j.Record(ctx, testEntry(1, "incr")); err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	if err := j.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	reopened, err := New(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer reopened.Close()

	pos, err := reopened.Position(ctx)
	if err != nil {
		t.Fatalf("Position failed: %v", err)
	}
	if pos != 1 {
		t.Errorf("Position after reopen = %d, want 1", pos)
	}
}

func TestJournalWithModel(t *testing.T) {
	j := newTestJournal(t)

	type state struct {
		Total int `json:"total"`
	}
	m := tea.New(func(s state, a int) state {
		s.Total += a
		return s
	}, tea.WithJournal(j), tea.WithJournalErrorHandler(func(err error) {
		t.Errorf("journal error: %v", err)
	}))

	for i := 0; i < 4; i++ {
		m.Send(i + 1)
	}
	m.Close()

	entries, err := j.Load(context.Background(), 1, -1)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(entries) != 4 {
		t.Fatalf("journal holds %d entries, want 4", len(entries))
	}

	var final state
	if err := json.Unmarshal(entries[3].State, &final); err != nil {
		t.Fatalf("decode final state: %v", err)
	}
	if final.Total != 10 {
		t.Errorf("final recorded total = %d, want 10", final.Total)
	}
}
