package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"

	"solvetrack/internal/store"
	"solvetrack/pkg/config"
	"solvetrack/pkg/dataset"
	"solvetrack/pkg/debug"
	"solvetrack/pkg/model"
	"solvetrack/pkg/prefs"
	"solvetrack/pkg/scheduler"
	"solvetrack/pkg/source"
	"solvetrack/pkg/statscache"
	"solvetrack/pkg/version"
)

func usage() {
	fmt.Fprintln(os.Stderr, "Usage: stk <command> [options]")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Track completion progress across curated problem lists.")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Commands:")
	fmt.Fprintln(os.Stderr, "  toggle <url>           Toggle completion for a problem")
	fmt.Fprintln(os.Stderr, "  minutes <url> <n>      Record minutes spent (0 clears)")
	fmt.Fprintln(os.Stderr, "  notes <url> <text>     Attach notes (empty text clears)")
	fmt.Fprintln(os.Stderr, "  stats <scope>|--all    Print solved/total stats for a scope")
	fmt.Fprintln(os.Stderr, "  watch                  Recompute stats when the dataset changes")
	fmt.Fprintln(os.Stderr, "  version                Print the stk version")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Common options (per command):")
	fmt.Fprintln(os.Stderr, "  -config <path>         Config file (default: XDG config dir)")
	fmt.Fprintln(os.Stderr, "  -data-dir <path>       Ledger directory (default: XDG data dir)")
	fmt.Fprintln(os.Stderr, "  -dataset <path>        Dataset definition file")
	fmt.Fprintln(os.Stderr, "  -source-root <path>    Directory holding source files")
	fmt.Fprintln(os.Stderr, "  -debug                 Enable debug logging to stderr")
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	cmd, args := os.Args[1], os.Args[2:]

	var err error
	switch cmd {
	case "toggle":
		err = runToggle(args)
	case "minutes":
		err = runMinutes(args)
	case "notes":
		err = runNotes(args)
	case "stats":
		err = runStats(args)
	case "watch":
		err = runWatch(args)
	case "version", "-version", "--version":
		fmt.Printf("stk %s\n", version.Version)
	case "help", "-h", "-help", "--help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "stk: unknown command %q\n\n", cmd)
		usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "stk: %v\n", err)
		os.Exit(1)
	}
}

// app bundles the pieces most commands need.
type app struct {
	cfg   config.Config
	store *store.Store
}

var debugLog bool

// commonFlags registers the shared options on fs and returns their targets.
func commonFlags(fs *flag.FlagSet) (configPath, dataDir, datasetPath, sourceRoot *string) {
	configPath = fs.String("config", "", "config file path")
	dataDir = fs.String("data-dir", "", "ledger directory")
	datasetPath = fs.String("dataset", "", "dataset definition file")
	sourceRoot = fs.String("source-root", "", "source file directory")
	fs.BoolVar(&debugLog, "debug", false, "enable debug logging to stderr")
	return
}

func openApp(configPath, dataDir, datasetPath, sourceRoot string) (*app, error) {
	if debugLog {
		debug.SetEnabled(true)
	}

	var cfg config.Config
	var err error
	if configPath != "" {
		cfg, err = config.LoadFrom(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}
	if dataDir != "" {
		cfg.DataDir = dataDir
	}
	if datasetPath != "" {
		cfg.DatasetPath = datasetPath
	}
	if sourceRoot != "" {
		cfg.SourceRoot = sourceRoot
	}

	if err := os.MkdirAll(cfg.ResolvedDataDir(), 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	s, err := store.Open(cfg.LedgerPath())
	if err != nil {
		return nil, err
	}
	return &app{cfg: cfg, store: s}, nil
}

func (a *app) close() {
	a.store.Close()
}

// loadDataset requires a configured dataset path.
func (a *app) loadDataset() (*dataset.Dataset, error) {
	if a.cfg.DatasetPath == "" {
		return nil, fmt.Errorf("no dataset configured; pass -dataset or set dataset_path in config")
	}
	return dataset.Load(a.cfg.DatasetPath)
}

// newScheduler wires the full stats pipeline for a dataset.
func (a *app) newScheduler(ds *dataset.Dataset, onResult func(scheduler.Result)) *scheduler.Scheduler {
	warn := func(msg string) { fmt.Fprintf(os.Stderr, "stk: warning: %s\n", msg) }
	agg := source.NewAggregator(
		source.FileFetcher{Root: a.cfg.SourceRoot},
		source.WithFetchLimit(a.cfg.Limits.FetchConcurrency),
		source.WithWarningHandler(warn),
	)
	cache := statscache.New(a.store, statscache.WithWarningHandler(warn))
	sched := scheduler.New(a.store, cache, agg, ds,
		scheduler.WithComputeLimit(a.cfg.Limits.ComputeConcurrency),
		scheduler.WithWarningHandler(warn),
	)
	sched.SetGeneration(ds.GenerationID())
	if onResult != nil {
		sched.Subscribe(onResult)
	}
	return sched
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func runToggle(args []string) error {
	fs := flag.NewFlagSet("toggle", flag.ExitOnError)
	configPath, dataDir, datasetPath, sourceRoot := commonFlags(fs)
	difficulty := fs.String("difficulty", "EASY", "difficulty recorded if the problem is new to the ledger")
	fs.Parse(args)
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: stk toggle <url>")
	}

	fallback, ok := model.ParseDifficulty(*difficulty)
	if !ok {
		return fmt.Errorf("unknown difficulty %q", *difficulty)
	}

	a, err := openApp(*configPath, *dataDir, *datasetPath, *sourceRoot)
	if err != nil {
		return err
	}
	defer a.close()

	ctx, cancel := signalContext()
	defer cancel()

	key := model.NormalizeIdentity(fs.Arg(0))
	rec, ver, err := a.store.ToggleCompleted(ctx, key, fallback)
	if err != nil {
		return err
	}
	state := "not completed"
	if rec.Completed {
		state = "completed"
	}
	fmt.Printf("%s: %s (ledger version %d)\n", key, state, ver)
	return nil
}

func runMinutes(args []string) error {
	fs := flag.NewFlagSet("minutes", flag.ExitOnError)
	configPath, dataDir, datasetPath, sourceRoot := commonFlags(fs)
	difficulty := fs.String("difficulty", "EASY", "difficulty recorded if the problem is new to the ledger")
	fs.Parse(args)
	if fs.NArg() != 2 {
		return fmt.Errorf("usage: stk minutes <url> <n>")
	}

	n, err := strconv.Atoi(fs.Arg(1))
	if err != nil || n < 0 {
		return fmt.Errorf("minutes must be a non-negative integer, got %q", fs.Arg(1))
	}
	fallback, ok := model.ParseDifficulty(*difficulty)
	if !ok {
		return fmt.Errorf("unknown difficulty %q", *difficulty)
	}

	a, err := openApp(*configPath, *dataDir, *datasetPath, *sourceRoot)
	if err != nil {
		return err
	}
	defer a.close()

	ctx, cancel := signalContext()
	defer cancel()

	key := model.NormalizeIdentity(fs.Arg(0))
	var minutes *int
	if n > 0 {
		minutes = &n
	}
	if _, _, err := a.store.SetMinutes(ctx, key, minutes, fallback); err != nil {
		return err
	}
	if minutes == nil {
		fmt.Printf("%s: minutes cleared\n", key)
	} else {
		fmt.Printf("%s: %d minutes\n", key, n)
	}
	return nil
}

func runNotes(args []string) error {
	fs := flag.NewFlagSet("notes", flag.ExitOnError)
	configPath, dataDir, datasetPath, sourceRoot := commonFlags(fs)
	difficulty := fs.String("difficulty", "EASY", "difficulty recorded if the problem is new to the ledger")
	fs.Parse(args)
	if fs.NArg() < 1 {
		return fmt.Errorf("usage: stk notes <url> <text>")
	}

	fallback, ok := model.ParseDifficulty(*difficulty)
	if !ok {
		return fmt.Errorf("unknown difficulty %q", *difficulty)
	}

	a, err := openApp(*configPath, *dataDir, *datasetPath, *sourceRoot)
	if err != nil {
		return err
	}
	defer a.close()

	ctx, cancel := signalContext()
	defer cancel()

	key := model.NormalizeIdentity(fs.Arg(0))
	text := strings.TrimSpace(strings.Join(fs.Args()[1:], " "))
	var notes *string
	if text != "" {
		notes = &text
	}
	if _, _, err := a.store.SetNotes(ctx, key, notes, fallback); err != nil {
		return err
	}
	if notes == nil {
		fmt.Printf("%s: notes cleared\n", key)
	} else {
		fmt.Printf("%s: notes saved\n", key)
	}
	return nil
}

func runStats(args []string) error {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	configPath, dataDir, datasetPath, sourceRoot := commonFlags(fs)
	all := fs.Bool("all", false, "print stats for every scope in the dataset")
	fs.Parse(args)

	a, err := openApp(*configPath, *dataDir, *datasetPath, *sourceRoot)
	if err != nil {
		return err
	}
	defer a.close()

	ds, err := a.loadDataset()
	if err != nil {
		return err
	}

	var scopes []string
	switch {
	case *all:
		scopes = ds.ScopeIDs()
	case fs.NArg() == 1:
		scopes = []string{fs.Arg(0)}
	default:
		return fmt.Errorf("usage: stk stats <scope> | stk stats --all")
	}

	ctx, cancel := signalContext()
	defer cancel()

	var mu sync.Mutex
	results := make(map[string]scheduler.Result, len(scopes))
	var firstErr error
	sched := a.newScheduler(ds, func(r scheduler.Result) {
		mu.Lock()
		defer mu.Unlock()
		results[r.Key.ScopeID] = r
		if r.Err != nil && firstErr == nil {
			firstErr = fmt.Errorf("%s: %w", r.Key.ScopeID, r.Err)
		}
	})
	if err := sched.Schedule(ctx, scopes); err != nil {
		return err
	}

	printStats(scopes, results)
	touchRecents(scopes, *all)
	return firstErr
}

func printStats(scopes []string, results map[string]scheduler.Result) {
	for _, id := range scopes {
		r, ok := results[id]
		if !ok || r.Err != nil {
			continue
		}
		agg := r.Aggregate
		fmt.Printf("%s: %d/%d", id, agg.Overall.Solved, agg.Overall.Total)
		var parts []string
		for _, d := range model.Difficulties {
			c := agg.Bucket(d)
			if c.Total > 0 {
				parts = append(parts, fmt.Sprintf("%s %d/%d", strings.ToLower(string(d)), c.Solved, c.Total))
			}
		}
		if len(parts) > 0 {
			fmt.Printf("  (%s)", strings.Join(parts, ", "))
		}
		if len(r.Issues) > 0 {
			fmt.Printf("  [%d source issues]", len(r.Issues))
		}
		fmt.Println()
	}
}

// touchRecents records explicitly requested scopes in the prefs MRU.
// Best-effort; stats output never fails on prefs problems.
func touchRecents(scopes []string, all bool) {
	if all {
		return
	}
	p, err := prefs.Load()
	if err != nil {
		return
	}
	for _, id := range scopes {
		p.Touch(id)
	}
	if err := prefs.Save(p); err != nil {
		fmt.Fprintf(os.Stderr, "stk: warning: saving prefs: %v\n", err)
	}
}

func runWatch(args []string) error {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	configPath, dataDir, datasetPath, sourceRoot := commonFlags(fs)
	fs.Parse(args)

	a, err := openApp(*configPath, *dataDir, *datasetPath, *sourceRoot)
	if err != nil {
		return err
	}
	defer a.close()

	ds, err := a.loadDataset()
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	printResult := func(r scheduler.Result) {
		if r.Err != nil {
			fmt.Fprintf(os.Stderr, "stk: %s: %v\n", r.Key.ScopeID, r.Err)
			return
		}
		fmt.Printf("%s: %d/%d\n", r.Key.ScopeID, r.Aggregate.Overall.Solved, r.Aggregate.Overall.Total)
	}
	sched := a.newScheduler(ds, printResult)

	fmt.Printf("watching %s (generation %s)\n", ds.Path(), ds.GenerationID())
	sched.SetVisibleScopes(ctx, ds.ScopeIDs())

	w, err := dataset.NewWatcher(ds,
		dataset.WithOnChange(func(next *dataset.Dataset) {
			fmt.Printf("dataset changed (generation %s)\n", next.GenerationID())
			// The resolver must move with the generation: resolving the new
			// scope ids against the old definition would compute from stale
			// sources and cache the result under the new generation.
			sched.SetDataset(next.GenerationID(), next)
			sched.SetVisibleScopes(ctx, next.ScopeIDs())
		}),
		dataset.WithOnError(func(err error) {
			fmt.Fprintf(os.Stderr, "stk: watch: %v\n", err)
		}),
	)
	if err != nil {
		return err
	}
	if err := w.Start(); err != nil {
		return err
	}
	defer w.Stop()

	<-ctx.Done()
	sched.Wait()
	return nil
}
