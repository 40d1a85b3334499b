package workspace

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Node is one entry of a session's output tree, as served to the frontend.
type Node struct {
	Name     string `json:"name"`
	Type     string `json:"type"` // file or folder
	Path     string `json:"path,omitempty"`
	Children []Node `json:"children,omitempty"`
}

// viewableExtensions are the artifact types exposed in listings.
var viewableExtensions = map[string]bool{
	".docx": true,
	".xlsx": true,
	".pptx": true,
	".pdf":  true,
	".txt":  true,
	".md":   true,
	".json": true,
	".zip":  true,
	".png":  true,
	".jpg":  true,
}

// hiddenDirs are internal bookkeeping subtrees excluded from listings
// and downloads.
var hiddenDirs = map[string]bool{
	LogsDirName: true,
	"raw":       true,
}

// BuildTree scans a session directory and returns its output tree, filtering
// out bookkeeping subtrees. Paths are relative to the results root so they
// can be served as static URLs.
func BuildTree(resultsRoot, dir string) ([]Node, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	var tree []Node
	for _, e := range entries {
		name := e.Name()
		if hiddenDirs[name] || strings.HasPrefix(name, ".") {
			continue
		}

		full := filepath.Join(dir, name)
		if e.IsDir() {
			children, err := BuildTree(resultsRoot, full)
			if err != nil {
				continue
			}
			if len(children) == 0 {
				continue
			}
			tree = append(tree, Node{Name: name, Type: "folder", Children: children})
			continue
		}

		if !viewableExtensions[strings.ToLower(filepath.Ext(name))] {
			continue
		}
		rel, err := filepath.Rel(resultsRoot, full)
		if err != nil {
			continue
		}
		tree = append(tree, Node{
			Name: name,
			Type: "file",
			Path: filepath.ToSlash(rel),
		})
	}
	return tree, nil
}

// SessionTree builds the output tree for a session, with the merged artifact
// pinned to the top when present.
func SessionTree(resultsRoot string, s *Session) ([]Node, error) {
	tree, err := BuildTree(resultsRoot, s.Root)
	if err != nil {
		return nil, err
	}

	if s.Complete() {
		rel, err := filepath.Rel(resultsRoot, s.MergedArtifactPath())
		if err == nil {
			merged := Node{Name: MergedArtifactName, Type: "file", Path: filepath.ToSlash(rel)}
			// Drop the duplicate entry BuildTree produced, then pin to top.
			filtered := tree[:0]
			for _, n := range tree {
				if n.Name != MergedArtifactName {
					filtered = append(filtered, n)
				}
			}
			tree = append([]Node{merged}, filtered...)
		}
	}
	return tree, nil
}
