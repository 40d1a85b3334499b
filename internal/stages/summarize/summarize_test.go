package summarize

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rias-ai/research-engine/internal/observability"
	"github.com/rias-ai/research-engine/internal/pipeline"
)

type fakeCompleter struct {
	reply string
	err   error
}

func (f *fakeCompleter) Complete(ctx context.Context, system, user string) (string, error) {
	return f.reply, f.err
}

func fixture(t *testing.T) pipeline.Invocation {
	t.Helper()
	docDir := t.TempDir()

	outputDir := filepath.Join(docDir, "processed", "08_summarize_output")
	textDir := filepath.Join(docDir, "processed", "01_extract_text_output")
	require.NoError(t, os.MkdirAll(outputDir, 0o755))
	require.NoError(t, os.MkdirAll(textDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(textDir, "paper.txt"), []byte("paper text"), 0o644))

	return pipeline.Invocation{
		RawPath:   filepath.Join(docDir, "raw", "paper.pdf"),
		OutputDir: outputDir,
		Logger:    observability.Nop(),
	}
}

func TestSummarize_WritesDocument(t *testing.T) {
	inv := fixture(t)

	h := New(&fakeCompleter{reply: `{
		"title": "Deep Nets",
		"authors": "A. Author, B. Author",
		"abstract": "A short accessible summary of the work.",
		"key_points": ["point one", "point two"],
		"conclusion": "It works."
	}`}, 1000)

	res, err := h.Invoke(context.Background(), inv)
	require.NoError(t, err)
	assert.Equal(t, pipeline.StatusSuccess, res.Status)
	assert.Equal(t, []string{"paper_summary.docx"}, res.Files)

	info, err := os.Stat(filepath.Join(inv.OutputDir, "paper_summary.docx"))
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}

func TestSummarize_EmptyAbstractIsError(t *testing.T) {
	inv := fixture(t)

	h := New(&fakeCompleter{reply: `{"title": "T", "abstract": ""}`}, 1000)
	_, err := h.Invoke(context.Background(), inv)
	require.Error(t, err)

	_, statErr := os.Stat(filepath.Join(inv.OutputDir, "paper_summary.docx"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestSummarize_CompleterFailurePropagates(t *testing.T) {
	inv := fixture(t)

	h := New(&fakeCompleter{err: context.DeadlineExceeded}, 1000)
	_, err := h.Invoke(context.Background(), inv)
	assert.Error(t, err)
}
