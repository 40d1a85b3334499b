package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rias-ai/research-engine/internal/observability"
	"github.com/rias-ai/research-engine/internal/workspace"
)

// countingMerger records how often and when it was invoked.
type countingMerger struct {
	calls  atomic.Int32
	result Result
}

func (m *countingMerger) Merge(ctx context.Context, sessionRoot string) Result {
	m.calls.Add(1)
	if m.result.Status == "" {
		return SuccessResult("merged")
	}
	return m.result
}

func orchestratorFixture(t *testing.T, handle01 Handle) (*Orchestrator, *workspace.Session, *countingMerger) {
	t.Helper()

	reg := NewRegistry()
	reg.Register(Stage{Code: "01", Name: "Extract Text", Handle: handle01})

	mgr := workspace.NewManager(t.TempDir(), reg.StageDirs(), observability.Nop())
	session, err := mgr.CreateSession()
	require.NoError(t, err)

	phases := []Phase{{Mode: ModeSequential, Stages: []string{"01"}}}
	sched := NewScheduler(reg, NewRunner(0), phases, observability.Nop())

	merger := &countingMerger{}
	return NewOrchestrator(mgr, sched, merger, observability.Nop()), session, merger
}

func writeInputs(t *testing.T, names ...string) []string {
	t.Helper()
	dir := t.TempDir()
	paths := make([]string, 0, len(names))
	for _, name := range names {
		p := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(p, []byte("%PDF-1.4"), 0o644))
		paths = append(paths, p)
	}
	return paths
}

func TestOrchestrator_MergeRunsExactlyOnce(t *testing.T) {
	ok := HandleFunc(func(ctx context.Context, inv Invocation) (Result, error) {
		return SuccessResult("text"), nil
	})
	o, session, merger := orchestratorFixture(t, ok)

	inputs := writeInputs(t, "a.pdf", "b.pdf", "c.pdf")
	report := o.Run(context.Background(), session, inputs)

	assert.Equal(t, int32(1), merger.calls.Load())
	assert.Len(t, report.Documents, 3)
	assert.Equal(t, StatusSuccess, report.Merge.Status)
	assert.Equal(t, session.ID, report.SessionID)
}

func TestOrchestrator_MergeRunsEvenWhenAllStagesFail(t *testing.T) {
	fail := HandleFunc(func(ctx context.Context, inv Invocation) (Result, error) {
		return Result{}, assertErr("extractor down")
	})
	o, session, merger := orchestratorFixture(t, fail)

	report := o.Run(context.Background(), session, writeInputs(t, "a.pdf", "b.pdf"))

	assert.Equal(t, int32(1), merger.calls.Load())
	for stem, doc := range report.Documents {
		assert.Equal(t, StatusError, doc.Stages["01"].Status, "document %s", stem)
	}
}

func TestOrchestrator_WorkspaceFailureIsolated(t *testing.T) {
	ok := HandleFunc(func(ctx context.Context, inv Invocation) (Result, error) {
		return SuccessResult("text"), nil
	})
	o, session, merger := orchestratorFixture(t, ok)

	inputs := writeInputs(t, "good.pdf")
	inputs = append(inputs, filepath.Join(t.TempDir(), "missing.pdf"))

	report := o.Run(context.Background(), session, inputs)

	require.Len(t, report.Documents, 2)
	assert.Equal(t, StatusSuccess, report.Documents["good"].Stages["01"].Status)

	bad := report.Documents["missing"]
	assert.NotEmpty(t, bad.Error)
	assert.Empty(t, bad.Stages)

	// One bad input never blocks the merge.
	assert.Equal(t, int32(1), merger.calls.Load())
}

func TestOrchestrator_ReportCarriesMergeFailure(t *testing.T) {
	ok := HandleFunc(func(ctx context.Context, inv Invocation) (Result, error) {
		return SuccessResult("text"), nil
	})
	o, session, merger := orchestratorFixture(t, ok)
	merger.result = Result{Status: StatusError, Error: "template missing"}

	report := o.Run(context.Background(), session, writeInputs(t, "a.pdf"))

	assert.Equal(t, StatusError, report.Merge.Status)
	assert.Equal(t, "template missing", report.Merge.Error)
	assert.Equal(t, StatusSuccess, report.Documents["a"].Stages["01"].Status)
}

func TestOrchestrator_DuplicateNamesRecordedNotOverwritten(t *testing.T) {
	ok := HandleFunc(func(ctx context.Context, inv Invocation) (Result, error) {
		return SuccessResult("text"), nil
	})
	o, session, merger := orchestratorFixture(t, ok)

	inputs := writeInputs(t, "a.pdf")
	inputs = append(inputs, writeInputs(t, "a.pdf")...)

	report := o.Run(context.Background(), session, inputs)

	// Both inputs appear in the report: one processed, one flagged.
	require.Len(t, report.Documents, 2)
	assert.Equal(t, StatusSuccess, report.Documents["a"].Stages["01"].Status)

	dup := report.Documents["a_2"]
	assert.Equal(t, "a", dup.Document)
	assert.Contains(t, dup.Error, "duplicate document name")
	assert.Empty(t, dup.Stages)

	assert.Equal(t, int32(1), merger.calls.Load())
}

func TestOrchestrator_NoInputsStillMerges(t *testing.T) {
	ok := HandleFunc(func(ctx context.Context, inv Invocation) (Result, error) {
		return SuccessResult("text"), nil
	})
	o, session, merger := orchestratorFixture(t, ok)

	report := o.Run(context.Background(), session, nil)

	assert.Empty(t, report.Documents)
	assert.Equal(t, int32(1), merger.calls.Load())
	assert.False(t, report.CompletedAt.Before(report.StartedAt))
}
