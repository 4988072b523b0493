// Package discover finds model source files in a Rails application.
package discover

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	ignore "github.com/sabhiram/go-gitignore"

	"github.com/phobologic/railsrel/internal/lang"
)

// DefaultModelsDir is where Rails keeps ActiveRecord models.
const DefaultModelsDir = "app/models"

// FileEntry represents a discovered model file.
type FileEntry struct {
	Path string // Relative to the application root
}

var skipDirs = map[string]struct{}{
	"node_modules": {},
	".git":         {},
	".hg":          {},
	".svn":         {},
	"vendor":       {},
	"tmp":          {},
	"log":          {},
	"coverage":     {},
}

// Options narrows discovery.
type Options struct {
	// ModelsDir is relative to root; defaults to DefaultModelsDir.
	ModelsDir string

	// Exclude holds gitignore-style patterns matched against root-relative paths.
	Exclude []string
}

// Files discovers Ruby files under root's models directory.
// A missing models directory is not an error; it yields no files.
func Files(root string, opts Options) ([]FileEntry, error) {
	modelsDir := opts.ModelsDir
	if modelsDir == "" {
		modelsDir = DefaultModelsDir
	}
	walkRoot := filepath.Join(root, filepath.FromSlash(modelsDir))
	if info, err := os.Stat(walkRoot); err != nil || !info.IsDir() {
		return nil, nil
	}

	gitFiles := gitLsFiles(root)
	var gi *ignore.GitIgnore
	if gitFiles == nil {
		gi = loadGitignore(root)
	}
	var excluded *ignore.GitIgnore
	if len(opts.Exclude) > 0 {
		excluded = ignore.CompileIgnoreLines(opts.Exclude...)
	}

	var results []FileEntry

	err := filepath.WalkDir(walkRoot, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil // skip errors
		}

		name := d.Name()

		if d.IsDir() {
			if path == walkRoot {
				return nil
			}
			if _, skip := skipDirs[name]; skip || strings.HasPrefix(name, ".") {
				return filepath.SkipDir
			}
			return nil
		}

		if strings.HasPrefix(name, ".") {
			return nil
		}

		// Skip symlinks
		if d.Type()&os.ModeSymlink != 0 {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return nil
		}
		slashRel := filepath.ToSlash(rel)

		if gitFiles != nil {
			if _, ok := gitFiles[slashRel]; !ok {
				return nil
			}
		} else if gi != nil && gi.MatchesPath(slashRel) {
			return nil
		}

		if excluded != nil && excluded.MatchesPath(slashRel) {
			return nil
		}

		if !lang.Ruby.HasExtension(filepath.Ext(name)) {
			return nil
		}

		results = append(results, FileEntry{Path: rel})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].Path < results[j].Path
	})

	return results, nil
}

func gitLsFiles(root string) map[string]struct{} {
	gitDir := filepath.Join(root, ".git")
	info, err := os.Stat(gitDir)
	if err != nil || !info.IsDir() {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, "git", "ls-files", "--cached", "--others", "--exclude-standard")
	cmd.Dir = root
	out, err := cmd.Output()
	if err != nil {
		return nil
	}

	files := make(map[string]struct{})
	for _, line := range strings.Split(strings.TrimRight(string(out), "\n"), "\n") {
		if line != "" {
			files[line] = struct{}{}
		}
	}
	return files
}

func loadGitignore(root string) *ignore.GitIgnore {
	path := filepath.Join(root, ".gitignore")
	gi, err := ignore.CompileIgnoreFile(path)
	if err != nil {
		return nil
	}
	return gi
}
