package editor

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/charlievieth/fastwalk"
)

var ErrFileNotFound = errors.New("file not found in workspace")

// sourcePrefixes are stripped from paths reported by bundled code
var sourcePrefixes = []string{"webpack:///", "webpack://", "file://"}

// skipDirs are never searched
var skipDirs = map[string]bool{
	".git":         true,
	"node_modules": true,
	".hg":          true,
	".svn":         true,
}

// Locator maps file references from a remote environment, which may be
// absolute paths, workspace-relative paths, globs or source-map style URLs,
// to files under the workspace root.
type Locator struct {
	root string
}

// NewLocator creates a locator for root
func NewLocator(root string) *Locator {
	return &Locator{root: root}
}

// Resolve returns the absolute path of the file ref points to
func (l *Locator) Resolve(ctx context.Context, ref string) (string, error) {
	ref = normalizeRef(ref)
	if ref == "" {
		return "", fmt.Errorf("%w: empty path", ErrFileNotFound)
	}

	if filepath.IsAbs(ref) && isFile(ref) {
		return filepath.Clean(ref), nil
	}

	rel := path.Clean(strings.TrimLeft(filepath.ToSlash(ref), "/"))
	if rel == ".." || strings.HasPrefix(rel, "../") {
		return "", fmt.Errorf("%w: %s escapes the workspace", ErrFileNotFound, ref)
	}
	if candidate := filepath.Join(l.root, filepath.FromSlash(rel)); isFile(candidate) {
		return candidate, nil
	}

	if strings.ContainsAny(rel, "*?[{") {
		if match, err := l.glob(rel); err == nil {
			return match, nil
		} else if !errors.Is(err, ErrFileNotFound) {
			return "", err
		}
	}

	return l.searchSuffix(ctx, rel)
}

// glob returns the first match of pattern under the root
func (l *Locator) glob(pattern string) (string, error) {
	if !doublestar.ValidatePattern(pattern) {
		return "", fmt.Errorf("invalid pattern %q", pattern)
	}

	matches, err := doublestar.Glob(os.DirFS(l.root), pattern, doublestar.WithFilesOnly())
	if err != nil {
		return "", fmt.Errorf("glob failed: %w", err)
	}
	if len(matches) == 0 {
		return "", fmt.Errorf("%w: %s", ErrFileNotFound, pattern)
	}

	sort.Strings(matches)
	return filepath.Join(l.root, filepath.FromSlash(matches[0])), nil
}

// searchSuffix walks the root for files whose path ends with rel. The
// shortest match wins, then the lexically smallest.
func (l *Locator) searchSuffix(ctx context.Context, rel string) (string, error) {
	suffix := "/" + rel

	var (
		mu      sync.Mutex
		matches []string
	)

	conf := fastwalk.Config{Follow: false}
	err := fastwalk.Walk(&conf, l.root, func(p string, d os.DirEntry, err error) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err != nil {
			return nil
		}
		if d.IsDir() {
			if skipDirs[d.Name()] {
				return fastwalk.SkipDir
			}
			return nil
		}

		if strings.HasSuffix(filepath.ToSlash(p), suffix) {
			mu.Lock()
			matches = append(matches, p)
			mu.Unlock()
		}
		return nil
	})
	if err != nil && !errors.Is(err, fs.SkipAll) {
		return "", fmt.Errorf("search failed: %w", err)
	}

	if len(matches) == 0 {
		return "", fmt.Errorf("%w: %s", ErrFileNotFound, rel)
	}

	sort.Slice(matches, func(i, j int) bool {
		if len(matches[i]) != len(matches[j]) {
			return len(matches[i]) < len(matches[j])
		}
		return matches[i] < matches[j]
	})
	return matches[0], nil
}

// normalizeRef strips URL prefixes, query strings and "./" segments
func normalizeRef(ref string) string {
	ref = strings.TrimSpace(ref)
	for _, prefix := range sourcePrefixes {
		if strings.HasPrefix(ref, prefix) {
			ref = strings.TrimPrefix(ref, prefix)
			if prefix != "file://" {
				ref = strings.TrimLeft(ref, "/")
			}
			break
		}
	}
	if i := strings.IndexAny(ref, "?#"); i >= 0 {
		ref = ref[:i]
	}
	for strings.HasPrefix(ref, "./") {
		ref = ref[2:]
	}
	return ref
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
