// Package workspace owns the on-disk layout of processing sessions.
//
// Layout:
//
//	<results>/<session_id>/
//	  <document_stem>/
//	    raw/<original filename>
//	    processed/<stage dirs>
//	  03_comparison_merged.xlsx
//	  logs/
package workspace

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/rias-ai/research-engine/internal/domain"
	"github.com/rias-ai/research-engine/internal/observability"
)

// MergedArtifactName is the session-level merged comparison workbook. Its
// existence is the signal that a run is complete.
const MergedArtifactName = "03_comparison_merged.xlsx"

// LogsDirName is excluded from listings and downloads.
const LogsDirName = "logs"

// StageDir declares one per-stage output directory of a document.
type StageDir struct {
	Code string
	Name string
}

// Manager creates and opens sessions under a results root.
type Manager struct {
	root   string
	stages []StageDir
	logger *observability.Logger
}

// Session identifies one processing run and owns its directory tree.
type Session struct {
	ID   string
	Root string
}

// Document is one input file being processed within a session.
type Document struct {
	Stem         string
	RawPath      string
	ProcessedDir string
	outputDirs   map[string]string
}

// OutputDir returns the stage's output directory for this document.
func (d *Document) OutputDir(code string) string {
	return d.outputDirs[code]
}

// NewManager creates a workspace manager. stages declares which per-stage
// output directories PrepareDocument creates.
func NewManager(root string, stages []StageDir, logger *observability.Logger) *Manager {
	return &Manager{root: root, stages: stages, logger: logger}
}

// Root returns the results root all sessions live under.
func (m *Manager) Root() string {
	return m.root
}

// CreateSession allocates a fresh session id and directory. The id is hex,
// so it is safe as both a path segment and a URL segment.
func (m *Manager) CreateSession() (*Session, error) {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	root := filepath.Join(m.root, id)

	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, domain.WorkspaceError("create session root", err)
	}
	if err := os.MkdirAll(filepath.Join(root, LogsDirName), 0o755); err != nil {
		return nil, domain.WorkspaceError("create session logs dir", err)
	}

	m.logger.Info().Str("session_id", id).Str("root", root).Msg("Session created")
	return &Session{ID: id, Root: root}, nil
}

// OpenSession looks up an existing session by id. Non-alphanumeric ids are
// rejected before touching the filesystem.
func (m *Manager) OpenSession(id string) (*Session, error) {
	if !ValidSessionID(id) {
		return nil, domain.ValidationError("invalid session id", nil)
	}

	root := filepath.Join(m.root, id)
	info, err := os.Stat(root)
	if err != nil || !info.IsDir() {
		return nil, domain.WorkspaceError(fmt.Sprintf("session %s not found", id), err)
	}
	return &Session{ID: id, Root: root}, nil
}

// ValidSessionID reports whether id is non-empty and purely alphanumeric.
func ValidSessionID(id string) bool {
	if id == "" {
		return false
	}
	for _, r := range id {
		if !isAlnum(r) {
			return false
		}
	}
	return true
}

func isAlnum(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}

// PrepareDocument sets up a document's workspace inside the session: copies
// the input into raw/ and resets processed/ with one directory per stage.
// Safe to call repeatedly for the same input; the raw copy is skipped when
// the destination is already up to date, and processed outputs are fully
// cleared each call so reruns start clean.
func (m *Manager) PrepareDocument(s *Session, inputPath string) (*Document, error) {
	info, err := os.Stat(inputPath)
	if err != nil {
		return nil, domain.WorkspaceError(fmt.Sprintf("stat input %s", inputPath), err)
	}

	stem := Stem(inputPath)
	docDir := filepath.Join(s.Root, stem)
	rawDir := filepath.Join(docDir, "raw")
	procDir := filepath.Join(docDir, "processed")

	if err := os.MkdirAll(rawDir, 0o755); err != nil {
		return nil, domain.WorkspaceError("create raw dir", err)
	}

	rawPath := filepath.Join(rawDir, filepath.Base(inputPath))
	if needsCopy(rawPath, info) {
		if err := copyFile(inputPath, rawPath); err != nil {
			return nil, domain.WorkspaceError("copy input to raw", err)
		}
	}

	// No stale outputs survive a rerun.
	if err := os.RemoveAll(procDir); err != nil {
		return nil, domain.WorkspaceError("clear processed dir", err)
	}

	outputDirs := make(map[string]string, len(m.stages))
	for _, st := range m.stages {
		dir := filepath.Join(procDir, OutputDirName(st.Code, st.Name))
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, domain.WorkspaceError("create stage output dir", err)
		}
		outputDirs[st.Code] = dir
	}

	m.logger.Debug().
		Str("session_id", s.ID).
		Str("document", stem).
		Msg("Document workspace prepared")

	return &Document{
		Stem:         stem,
		RawPath:      rawPath,
		ProcessedDir: procDir,
		outputDirs:   outputDirs,
	}, nil
}

// MergedArtifactPath returns where the session's merged workbook lives.
func (s *Session) MergedArtifactPath() string {
	return filepath.Join(s.Root, MergedArtifactName)
}

// Complete reports whether the session's merged artifact exists.
func (s *Session) Complete() bool {
	_, err := os.Stat(s.MergedArtifactPath())
	return err == nil
}

// OutputDirName builds a stage output directory name, e.g.
// "01_extract_text_output".
func OutputDirName(code, name string) string {
	slug := strings.ToLower(strings.ReplaceAll(name, " ", "_"))
	return fmt.Sprintf("%s_%s_output", code, slug)
}

// Stem derives a filesystem-safe base name from an input path.
func Stem(path string) string {
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))

	var b strings.Builder
	for _, r := range base {
		switch {
		case isAlnum(r) || r == '-' || r == '_' || r == '.':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	if b.Len() == 0 {
		return "document"
	}
	return b.String()
}

// needsCopy reports whether dst is absent or older than the source.
func needsCopy(dst string, src os.FileInfo) bool {
	info, err := os.Stat(dst)
	if err != nil {
		return true
	}
	return info.ModTime().Before(src.ModTime())
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}
