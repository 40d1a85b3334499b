package workspace

import (
	"archive/zip"
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rias-ai/research-engine/internal/observability"
)

func seedSession(t *testing.T) (*Manager, *Session) {
	t.Helper()
	m := NewManager(t.TempDir(), testStages, observability.Nop())
	s, err := m.CreateSession()
	require.NoError(t, err)

	input := writePDF(t, t.TempDir(), "paper.pdf")
	doc, err := m.PrepareDocument(s, input)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(doc.OutputDir("01"), "paper.txt"), []byte("text"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(doc.OutputDir("03"), "paper_comparison.xlsx"), []byte("wb"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(s.Root, LogsDirName, "run.log"), []byte("log"), 0o644))
	return m, s
}

func flatten(nodes []Node) []string {
	var names []string
	for _, n := range nodes {
		names = append(names, n.Name)
		names = append(names, flatten(n.Children)...)
	}
	return names
}

func TestSessionTree_FiltersBookkeeping(t *testing.T) {
	m, s := seedSession(t)

	tree, err := SessionTree(m.Root(), s)
	require.NoError(t, err)

	names := flatten(tree)
	assert.Contains(t, names, "paper.txt")
	assert.Contains(t, names, "paper_comparison.xlsx")
	assert.NotContains(t, names, "raw")
	assert.NotContains(t, names, LogsDirName)
	assert.NotContains(t, names, "run.log")
	assert.NotContains(t, names, "paper.pdf")
}

func TestSessionTree_PinsMergedArtifact(t *testing.T) {
	m, s := seedSession(t)
	require.NoError(t, os.WriteFile(s.MergedArtifactPath(), []byte("wb"), 0o644))

	tree, err := SessionTree(m.Root(), s)
	require.NoError(t, err)
	require.NotEmpty(t, tree)
	assert.Equal(t, MergedArtifactName, tree[0].Name)
	assert.Equal(t, "file", tree[0].Type)
	assert.Equal(t, s.ID+"/"+MergedArtifactName, tree[0].Path)

	// Pinned once, not duplicated.
	count := 0
	for _, name := range flatten(tree) {
		if name == MergedArtifactName {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestWriteZip_ExcludesBookkeeping(t *testing.T) {
	_, s := seedSession(t)

	var buf bytes.Buffer
	require.NoError(t, WriteZip(&buf, s))

	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)

	var names []string
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	assert.Contains(t, names, "paper/processed/01_extract_text_output/paper.txt")
	for _, n := range names {
		assert.NotContains(t, n, "logs/")
		assert.NotContains(t, n, "raw/")
	}
}
