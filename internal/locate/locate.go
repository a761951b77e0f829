// Package locate enumerates the session log files of every enabled source.
package locate

import (
	"io/fs"
	"iter"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/janekbaraniewski/ccost/internal/config"
	"github.com/janekbaraniewski/ccost/internal/core"
)

const (
	logFileExt        = ".jsonl"
	claudeProjectsDir = "projects"
	codexSessionsDir  = "sessions"
	unknownProject    = "unknown"
)

// FileRef is one discovered log file.
type FileRef struct {
	Source  core.SourceKind
	Project string
	Path    string
	// DataDir is the projects/ or sessions/ directory the file was found under.
	DataDir string
}

type Locator struct {
	sources config.Sources
}

func New(sources config.Sources) *Locator {
	return &Locator{sources: sources}
}

// DataDir returns the directory below a root that holds the source's logs.
func DataDir(kind core.SourceKind, root string) string {
	switch kind {
	case core.SourceCodex:
		return filepath.Join(root, codexSessionsDir)
	default:
		return filepath.Join(root, claudeProjectsDir)
	}
}

// Files lazily yields every log file under every existing root of every
// enabled source. All roots contribute; a root that resolves to a directory
// already visited for the same source is skipped, and a missing root is not
// an error.
func (l *Locator) Files() iter.Seq[FileRef] {
	return func(yield func(FileRef) bool) {
		for _, src := range l.sources.All() {
			if !src.Enabled {
				continue
			}
			seenDirs := make(map[string]bool, len(src.Roots))
			for _, root := range src.Roots {
				dataDir := DataDir(src.Kind, root)
				real, ok := resolveDir(dataDir)
				if !ok {
					log.Printf("[locate] %s: no log directory at %s, skipping", src.Kind, dataDir)
					continue
				}
				if seenDirs[real] {
					log.Printf("[locate] %s: %s already scanned via another root", src.Kind, dataDir)
					continue
				}
				seenDirs[real] = true

				kind := src.Kind
				cont := walkLogFiles(dataDir, func(path string) bool {
					return yield(FileRef{
						Source:  kind,
						Project: ProjectLabel(kind, dataDir, path),
						Path:    path,
						DataDir: dataDir,
					})
				})
				if !cont {
					return
				}
			}
		}
	}
}

// ProjectLabel derives the grouping label for a file. Claude logs live under
// projects/<project>/..., so the first segment below the data directory is the
// project; Codex sessions are grouped by date directories, so the session file
// itself is the grouping.
func ProjectLabel(kind core.SourceKind, dataDir, path string) string {
	if kind == core.SourceCodex {
		base := filepath.Base(path)
		return strings.TrimSuffix(base, filepath.Ext(base))
	}

	rel, err := filepath.Rel(dataDir, path)
	if err != nil {
		return unknownProject
	}
	segments := strings.Split(filepath.ToSlash(rel), "/")
	if len(segments) < 2 || strings.TrimSpace(segments[0]) == "" || segments[0] == ".." {
		return unknownProject
	}
	return segments[0]
}

func resolveDir(dir string) (string, bool) {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return "", false
	}
	real, err := filepath.EvalSymlinks(dir)
	if err != nil {
		return dir, true
	}
	return real, true
}

// walkLogFiles visits directories breadth-first from an explicit queue so deep
// trees never grow the call stack. Symlinked directories are followed once per
// resolved path. It returns false when fn asked to stop.
func walkLogFiles(dir string, fn func(path string) bool) bool {
	queue := []string{dir}
	visited := make(map[string]bool)

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		real, err := filepath.EvalSymlinks(current)
		if err != nil {
			log.Printf("[locate] resolve %s: %v", current, err)
			continue
		}
		if visited[real] {
			continue
		}
		visited[real] = true

		entries, err := os.ReadDir(current)
		if err != nil {
			log.Printf("[locate] read dir %s: %v", current, err)
			continue
		}

		for _, entry := range entries {
			path := filepath.Join(current, entry.Name())
			mode := entry.Type()

			if mode&fs.ModeSymlink != 0 {
				info, err := os.Stat(path)
				if err != nil {
					continue
				}
				mode = info.Mode().Type()
			}

			switch {
			case mode.IsDir():
				queue = append(queue, path)
			case mode.IsRegular() && isLogFile(path):
				if !fn(path) {
					return false
				}
			}
		}
	}
	return true
}

func isLogFile(path string) bool {
	return strings.EqualFold(filepath.Ext(path), logFileExt)
}
