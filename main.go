// railsrel lists the association paths between ActiveRecord models by
// reading a Rails application's model files with tree-sitter.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/go-openapi/inflect"
	sitter "github.com/smacker/go-tree-sitter"

	"github.com/phobologic/railsrel/internal/config"
	"github.com/phobologic/railsrel/internal/discover"
	"github.com/phobologic/railsrel/internal/graph"
	"github.com/phobologic/railsrel/internal/lang"
	"github.com/phobologic/railsrel/internal/model"
	"github.com/phobologic/railsrel/internal/parse"
	"github.com/phobologic/railsrel/internal/pathfind"
	"github.com/phobologic/railsrel/internal/ranking"
	"github.com/phobologic/railsrel/internal/toon"
)

var version = "dev"

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	if len(args) > 0 {
		switch args[0] {
		case "init":
			return runInit(args[1:], stdout, stderr)
		case "models":
			return runModels(args[1:], stdout, stderr)
		}
	}
	return runPaths(args, stdout, stderr)
}

// appFlags are shared by every subcommand that reads the application.
type appFlags struct {
	root        string
	configPath  string
	maxFileSize int
	verbose     bool
}

func (af *appFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&af.root, "C", ".", "application root")
	fs.StringVar(&af.configPath, "config", "", "config file (default <root>/"+config.FileName+")")
	fs.IntVar(&af.maxFileSize, "max-file-size", 0, "skip files larger than this many bytes (default from config)")
	fs.BoolVar(&af.verbose, "v", false, "print a summary to stderr")
}

func runPaths(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("railsrel", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var (
		af          appFlags
		maxDepth    int
		maxSteps    int
		showVersion bool
	)
	af.register(fs)
	fs.IntVar(&maxDepth, "d", pathfind.DefaultMaxDepth, "maximum associations per path")
	fs.IntVar(&maxDepth, "max-depth", pathfind.DefaultMaxDepth, "maximum associations per path")
	fs.IntVar(&maxSteps, "s", pathfind.DefaultMaxSteps, "search step budget")
	fs.IntVar(&maxSteps, "max-steps", pathfind.DefaultMaxSteps, "search step budget")
	fs.BoolVar(&showVersion, "V", false, "show version and exit")
	fs.BoolVar(&showVersion, "version", false, "show version and exit")

	fs.Usage = func() {
		fmt.Fprintf(stderr, `Usage: railsrel [flags] SOURCE DESTINATION
       railsrel models [flags]
       railsrel init [flags] [path-to-CLAUDE.md]

Print every association path from the SOURCE model to the DESTINATION model.
Models are class names (Admin::User) or their underscored form (admin/user).

Flags:
`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(reorderArgs(args)); err != nil {
		return err
	}

	if showVersion {
		_, _ = fmt.Fprintf(stdout, "railsrel %s\n", version)
		return nil
	}

	if fs.NArg() != 2 {
		fs.Usage()
		return fmt.Errorf("expected SOURCE and DESTINATION models, got %d arguments", fs.NArg())
	}

	start := time.Now()
	a, err := loadApp(&af, stderr)
	if err != nil {
		return err
	}

	set := setFlags(fs)
	if !set["d"] && !set["max-depth"] {
		maxDepth = a.cfg.MaxDepth
	}
	if !set["s"] && !set["max-steps"] {
		maxSteps = a.cfg.MaxSteps
	}

	source := a.modelName(fs.Arg(0))
	destination := a.modelName(fs.Arg(1))

	lines, err := pathfind.Relations(a.graph, source, destination,
		pathfind.WithMaxDepth(maxDepth),
		pathfind.WithMaxSteps(maxSteps),
	)
	if af.verbose {
		_, _ = fmt.Fprintf(stderr, "railsrel: %d models, %d paths in %s\n",
			len(a.graph.Names()), len(lines), time.Since(start).Round(time.Millisecond))
	}
	if err != nil {
		if errors.Is(err, pathfind.ErrInvalidArgument) {
			return fmt.Errorf("%w (see `railsrel models` for known models)", err)
		}
		return err
	}

	for _, line := range lines {
		_, _ = fmt.Fprintln(stdout, line)
	}
	return nil
}

func runModels(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("railsrel models", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var (
		af        appFlags
		maxModels int
		filter    string
		cachePath string
	)
	af.register(fs)
	fs.IntVar(&maxModels, "n", 0, "maximum number of models to include")
	fs.StringVar(&filter, "m", "", "only models whose name contains this, plus their neighbors")
	fs.StringVar(&filter, "model", "", "only models whose name contains this, plus their neighbors")
	fs.StringVar(&cachePath, "cache", "", "cache file path")

	if err := fs.Parse(reorderArgs(args)); err != nil {
		return err
	}
	if fs.NArg() > 0 {
		af.root = fs.Arg(0)
	}

	a, err := openApp(&af)
	if err != nil {
		return err
	}

	key := fmt.Sprintf("railsrel models n=%d m=%q", maxModels, filter)
	if cachePath != "" && cacheIsFresh(cachePath, a) {
		if out, ok := readCache(cachePath, key); ok {
			_, _ = io.WriteString(stdout, out)
			return nil
		}
	}

	if err := a.load(stderr); err != nil {
		return err
	}

	sm := &model.SchemaMap{
		App:    filepath.Base(a.root),
		Models: graph.Rank(a.graph),
		Edges:  a.graph.AllEdges(),
	}

	if filter != "" {
		sm = ranking.FilterByModel(sm, filter)
		if len(sm.Models) == 0 {
			return fmt.Errorf("no models matching %q", filter)
		}
	}
	if maxModels > 0 {
		sm = ranking.SelectModels(sm, maxModels)
	}

	output := toon.Encode(sm) + "\n"

	if cachePath != "" {
		_ = os.WriteFile(cachePath, []byte(key+"\n"+output), 0o644)
	}

	_, _ = io.WriteString(stdout, output)
	return nil
}

type app struct {
	root    string
	cfgPath string
	cfg     *config.Config
	files   []discover.FileEntry
	graph   *graph.Graph
}

// loadApp opens the application and builds its association graph.
func loadApp(af *appFlags, stderr io.Writer) (*app, error) {
	a, err := openApp(af)
	if err != nil {
		return nil, err
	}
	if err := a.load(stderr); err != nil {
		return nil, err
	}
	return a, nil
}

// openApp resolves the root, loads config, and discovers the model files.
func openApp(af *appFlags) (*app, error) {
	root, err := filepath.Abs(af.root)
	if err != nil {
		return nil, fmt.Errorf("resolving root: %w", err)
	}

	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("root path: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s: not a directory", root)
	}

	cfgPath := af.configPath
	if cfgPath == "" {
		cfgPath = filepath.Join(root, config.FileName)
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	if af.maxFileSize > 0 {
		cfg.MaxFileSize = af.maxFileSize
	}

	files, err := discover.Files(root, discover.Options{
		ModelsDir: cfg.ModelsDir,
		Exclude:   cfg.Exclude,
	})
	if err != nil {
		return nil, fmt.Errorf("discovering files: %w", err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no model files found under %s", filepath.Join(root, cfg.ModelsDir))
	}

	return &app{root: root, cfgPath: cfgPath, cfg: cfg, files: files}, nil
}

// load parses the discovered files and builds the graph.
func (a *app) load(stderr io.Writer) error {
	files := filterBySize(a.root, a.files, a.cfg.MaxFileSize, stderr)
	if len(files) == 0 {
		return fmt.Errorf("no model files found (all exceeded size limit)")
	}

	parsed, err := parseFilesConcurrent(a.root, files, stderr)
	if err != nil {
		return err
	}

	a.graph = graph.Build(parsed, a.cfg.BaseClasses)
	if len(a.graph.Names()) == 0 {
		return fmt.Errorf("no ActiveRecord models found in %d files", len(files))
	}
	return nil
}

// cacheIsFresh reports whether the cache is newer than every model file and
// the config file, when one exists.
func cacheIsFresh(cachePath string, a *app) bool {
	cacheInfo, err := os.Stat(cachePath)
	if err != nil {
		return false
	}
	cacheMtime := cacheInfo.ModTime()

	if fi, err := os.Stat(a.cfgPath); err == nil && !fi.ModTime().Before(cacheMtime) {
		return false
	}
	for _, f := range a.files {
		fi, err := os.Stat(filepath.Join(a.root, f.Path))
		if err != nil {
			return false
		}
		if !fi.ModTime().Before(cacheMtime) {
			return false
		}
	}
	return true
}

// readCache returns the cached output if it was written for the same key.
func readCache(cachePath, key string) (string, bool) {
	data, err := os.ReadFile(cachePath)
	if err != nil {
		return "", false
	}
	header, output, ok := strings.Cut(string(data), "\n")
	if !ok || header != key {
		return "", false
	}
	return output, true
}

// modelName maps a command-line model reference to a graph node name.
// Exact class names win; otherwise "admin/user" and "line_item" are
// camelized the way Rails maps file paths to constants.
func (a *app) modelName(arg string) string {
	if a.graph.Has(arg) {
		return arg
	}
	parts := strings.Split(strings.ReplaceAll(arg, "::", "/"), "/")
	for i, p := range parts {
		parts[i] = inflect.Camelize(p)
	}
	if name := strings.Join(parts, "::"); a.graph.Has(name) {
		return name
	}
	return arg
}

func setFlags(fs *flag.FlagSet) map[string]bool {
	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) {
		set[f.Name] = true
	})
	return set
}

func filterBySize(root string, files []discover.FileEntry, maxSize int, stderr io.Writer) []discover.FileEntry {
	var kept []discover.FileEntry
	for _, f := range files {
		fi, err := os.Stat(filepath.Join(root, f.Path))
		if err != nil {
			kept = append(kept, f) // keep if can't stat
			continue
		}
		if fi.Size() > int64(maxSize) {
			_, _ = fmt.Fprintf(stderr, "Warning: %s: skipped (>%d bytes)\n", f.Path, maxSize)
			continue
		}
		kept = append(kept, f)
	}
	return kept
}

// parseFilesConcurrent extracts classes from every file and returns them in
// file order, so classes reopened across files merge deterministically.
func parseFilesConcurrent(root string, files []discover.FileEntry, stderr io.Writer) ([]model.Model, error) {
	query, err := lang.Ruby.GetModelQuery()
	if err != nil {
		return nil, fmt.Errorf("loading model query: %w", err)
	}

	type result struct {
		index  int
		models []model.Model
	}

	numWorkers := runtime.GOMAXPROCS(0)
	if numWorkers > len(files) {
		numWorkers = len(files)
	}

	work := make(chan int, len(files))
	results := make(chan result, len(files))

	var wg sync.WaitGroup
	var stderrMu sync.Mutex

	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			// Each goroutine gets its own parser
			var parser *sitter.Parser

			for idx := range work {
				f := files[idx]
				source, err := os.ReadFile(filepath.Join(root, f.Path))
				if err != nil {
					stderrMu.Lock()
					_, _ = fmt.Fprintf(stderr, "Warning: failed to parse %s: %v\n", f.Path, err)
					stderrMu.Unlock()
					continue
				}
				if parser == nil {
					parser = lang.Ruby.NewParser()
				}

				results <- result{
					index:  idx,
					models: parse.ExtractModels(parser, query, source, filepath.ToSlash(f.Path)),
				}
			}
		}()
	}

	for i := range files {
		work <- i
	}
	close(work)

	go func() {
		wg.Wait()
		close(results)
	}()

	// Collect results in original order
	indexed := make([][]model.Model, len(files))
	for r := range results {
		indexed[r.index] = r.models
	}

	var models []model.Model
	for _, ms := range indexed {
		models = append(models, ms...)
	}
	return models, nil
}

// flagsWithValue lists flags that take a value argument.
var flagsWithValue = map[string]bool{
	"-C": true, "--C": true,
	"-config": true, "--config": true,
	"-max-file-size": true, "--max-file-size": true,
	"-d": true, "--d": true,
	"-max-depth": true, "--max-depth": true,
	"-s": true, "--s": true,
	"-max-steps": true, "--max-steps": true,
	"-n": true, "--n": true,
	"-m": true, "--m": true,
	"-model": true, "--model": true,
	"-cache": true, "--cache": true,
}

// reorderArgs moves positional arguments after all flags so Go's flag package
// can parse them correctly (it stops at the first non-flag arg).
func reorderArgs(args []string) []string {
	var flags, positional []string
	for i := 0; i < len(args); i++ {
		if args[i] == "--" {
			positional = append(positional, args[i+1:]...)
			break
		}
		if len(args[i]) > 0 && args[i][0] == '-' {
			flags = append(flags, args[i])
			if flagsWithValue[args[i]] && i+1 < len(args) {
				i++
				flags = append(flags, args[i])
			}
		} else {
			positional = append(positional, args[i])
		}
	}
	return append(flags, positional...)
}
