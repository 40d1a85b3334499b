package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rias-ai/research-engine/internal/observability"
	"github.com/rias-ai/research-engine/internal/workspace"
)

// span records when a stage ran, for ordering assertions.
type span struct {
	start time.Time
	end   time.Time
}

type spanRecorder struct {
	mu    sync.Mutex
	spans map[string]span
}

func newSpanRecorder() *spanRecorder {
	return &spanRecorder{spans: make(map[string]span)}
}

func (r *spanRecorder) handle(code string, d time.Duration) Handle {
	return HandleFunc(func(ctx context.Context, inv Invocation) (Result, error) {
		start := time.Now()
		time.Sleep(d)
		r.mu.Lock()
		r.spans[code] = span{start: start, end: time.Now()}
		r.mu.Unlock()
		return SuccessResult(code + " done"), nil
	})
}

func prepareTestDocument(t *testing.T, stages []workspace.StageDir) *workspace.Document {
	t.Helper()

	input := filepath.Join(t.TempDir(), "paper.pdf")
	require.NoError(t, os.WriteFile(input, []byte("%PDF-1.4"), 0o644))

	mgr := workspace.NewManager(t.TempDir(), stages, observability.Nop())
	session, err := mgr.CreateSession()
	require.NoError(t, err)

	doc, err := mgr.PrepareDocument(session, input)
	require.NoError(t, err)
	return doc
}

func testStageDirs(codes ...string) []workspace.StageDir {
	dirs := make([]workspace.StageDir, 0, len(codes))
	for _, c := range codes {
		dirs = append(dirs, workspace.StageDir{Code: c, Name: "Stage " + c})
	}
	return dirs
}

func TestScheduler_PhaseBarrier(t *testing.T) {
	rec := newSpanRecorder()
	reg := NewRegistry()
	reg.Register(Stage{Code: "01", Name: "One", Handle: rec.handle("01", 30*time.Millisecond)})
	reg.Register(Stage{Code: "06", Name: "Six", Handle: rec.handle("06", 5*time.Millisecond)})
	reg.Register(Stage{Code: "03", Name: "Three", Handle: rec.handle("03", 0)})

	phases := []Phase{
		{Mode: ModeParallel, Stages: []string{"01", "06"}},
		{Mode: ModeSequential, Stages: []string{"03"}},
	}
	s := NewScheduler(reg, NewRunner(0), phases, observability.Nop())

	doc := prepareTestDocument(t, testStageDirs("01", "06", "03"))
	res := s.Run(context.Background(), doc)

	require.Len(t, res.Stages, 3)
	for code, st := range res.Stages {
		assert.Equal(t, StatusSuccess, st.Status, "stage %s", code)
	}

	// The second phase must not start before every first-phase stage ended,
	// including the slow one.
	for _, first := range []string{"01", "06"} {
		assert.False(t, rec.spans["03"].start.Before(rec.spans[first].end),
			"stage 03 started before stage %s finished", first)
	}
}

func TestScheduler_ParallelSiblingsShareSnapshot(t *testing.T) {
	var mu sync.Mutex
	seen := make(map[string][]string)

	record := func(code string) Handle {
		return HandleFunc(func(ctx context.Context, inv Invocation) (Result, error) {
			codes := make([]string, 0, len(inv.Prior))
			for c := range inv.Prior {
				codes = append(codes, c)
			}
			mu.Lock()
			seen[code] = codes
			mu.Unlock()
			return SuccessResult("ok"), nil
		})
	}

	reg := NewRegistry()
	reg.Register(Stage{Code: "01", Name: "One", Handle: record("01")})
	reg.Register(Stage{Code: "06", Name: "Six", Handle: record("06")})

	phases := []Phase{{Mode: ModeParallel, Stages: []string{"01", "06"}}}
	s := NewScheduler(reg, NewRunner(0), phases, observability.Nop())

	doc := prepareTestDocument(t, testStageDirs("01", "06"))
	s.Run(context.Background(), doc)

	// Siblings of a parallel phase never observe each other's results.
	assert.Empty(t, seen["01"])
	assert.Empty(t, seen["06"])
}

func TestScheduler_SequentialSeesPredecessors(t *testing.T) {
	reg := NewRegistry()
	reg.Register(Stage{Code: "01", Name: "One", Handle: HandleFunc(func(ctx context.Context, inv Invocation) (Result, error) {
		return SuccessResult("text"), nil
	})})

	var sawIn03, sawIn04 map[string]Result
	reg.Register(Stage{Code: "03", Name: "Three", Handle: HandleFunc(func(ctx context.Context, inv Invocation) (Result, error) {
		sawIn03 = inv.Prior
		return SuccessResult("compared"), nil
	})})
	reg.Register(Stage{Code: "04", Name: "Four", Handle: HandleFunc(func(ctx context.Context, inv Invocation) (Result, error) {
		sawIn04 = inv.Prior
		return SuccessResult("deck"), nil
	})})

	phases := []Phase{
		{Mode: ModeParallel, Stages: []string{"01"}},
		{Mode: ModeSequential, Stages: []string{"03", "04"}},
	}
	s := NewScheduler(reg, NewRunner(0), phases, observability.Nop())

	doc := prepareTestDocument(t, testStageDirs("01", "03", "04"))
	s.Run(context.Background(), doc)

	// 03 sees the prior phase only; 04 additionally sees its in-phase
	// predecessor 03.
	assert.Contains(t, sawIn03, "01")
	assert.NotContains(t, sawIn03, "04")
	assert.Contains(t, sawIn04, "01")
	assert.Contains(t, sawIn04, "03")
	assert.Equal(t, "compared", sawIn04["03"].Summary)
}

func TestScheduler_FailureDoesNotAbortRun(t *testing.T) {
	reg := NewRegistry()
	reg.Register(Stage{Code: "01", Name: "One", Handle: HandleFunc(func(ctx context.Context, inv Invocation) (Result, error) {
		panic("extractor blew up")
	})})
	reg.Register(Stage{Code: "06", Name: "Six", Handle: HandleFunc(func(ctx context.Context, inv Invocation) (Result, error) {
		return SuccessResult("images"), nil
	})})
	reg.Register(Stage{Code: "03", Name: "Three", Handle: HandleFunc(func(ctx context.Context, inv Invocation) (Result, error) {
		if !inv.Prior["01"].Succeeded() {
			return ErrorResult(assertErr("no text to compare")), nil
		}
		return SuccessResult("compared"), nil
	})})

	phases := []Phase{
		{Mode: ModeParallel, Stages: []string{"01", "06"}},
		{Mode: ModeSequential, Stages: []string{"03"}},
	}
	s := NewScheduler(reg, NewRunner(0), phases, observability.Nop())

	doc := prepareTestDocument(t, testStageDirs("01", "06", "03"))
	res := s.Run(context.Background(), doc)

	// Every scheduled stage has a terminal result; the sibling succeeded and
	// the dependent stage degraded instead of being skipped.
	require.Len(t, res.Stages, 3)
	assert.Equal(t, StatusError, res.Stages["01"].Status)
	assert.Contains(t, res.Stages["01"].Error, "panicked")
	assert.Equal(t, StatusSuccess, res.Stages["06"].Status)
	assert.Equal(t, StatusError, res.Stages["03"].Status)
}

func TestScheduler_MissingStageDegrades(t *testing.T) {
	reg := NewRegistry()
	reg.Register(Stage{Code: "06", Name: "Six", Handle: HandleFunc(func(ctx context.Context, inv Invocation) (Result, error) {
		return SuccessResult("images"), nil
	})})

	phases := []Phase{{Mode: ModeParallel, Stages: []string{"01", "06"}}}
	s := NewScheduler(reg, NewRunner(0), phases, observability.Nop())

	doc := prepareTestDocument(t, testStageDirs("06"))
	res := s.Run(context.Background(), doc)

	require.Len(t, res.Stages, 2)
	assert.Equal(t, StatusError, res.Stages["01"].Status)
	assert.Equal(t, "module missing", res.Stages["01"].Summary)
	assert.Equal(t, StatusSuccess, res.Stages["06"].Status)
}

// assertErr is a trivial error for handles that fail on purpose.
type assertErr string

func (e assertErr) Error() string { return string(e) }
