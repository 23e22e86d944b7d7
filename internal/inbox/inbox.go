// Package inbox watches a directory for CSV files and runs a column job on
// each one, writing the result to an output directory.
package inbox

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/swarmguard/cti-refine/internal/column"
)

type Options struct {
	Dir      string
	OutDir   string
	Job      column.Job
	Debounce time.Duration
	// OnDone, when set, is called after every processed file.
	OnDone func(path string, res column.Result, err error)
}

type Watcher struct {
	opts Options
	proc *column.Processor

	mu     sync.Mutex
	timers map[string]*time.Timer
	wg     sync.WaitGroup
}

func New(proc *column.Processor, opts Options) (*Watcher, error) {
	if opts.Dir == "" || opts.OutDir == "" {
		return nil, errors.New("inbox: dir and out dir are required")
	}
	in, _ := filepath.Abs(opts.Dir)
	out, _ := filepath.Abs(opts.OutDir)
	if in == out {
		return nil, fmt.Errorf("inbox: out dir must differ from %s", opts.Dir)
	}
	if opts.Debounce <= 0 {
		opts.Debounce = 200 * time.Millisecond
	}
	return &Watcher{opts: opts, proc: proc, timers: make(map[string]*time.Timer)}, nil
}

// Run processes CSV files already present, then every CSV file created or
// written in the inbox until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	for _, dir := range []string{w.opts.Dir, w.opts.OutDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("inbox: %w", err)
		}
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("inbox: create watcher: %w", err)
	}
	defer fw.Close()
	if err := fw.Add(w.opts.Dir); err != nil {
		return fmt.Errorf("inbox: watch %s: %w", w.opts.Dir, err)
	}
	slog.Info("inbox watching", "dir", w.opts.Dir, "out_dir", w.opts.OutDir, "operation", w.opts.Job.Operation)

	existing, _ := filepath.Glob(filepath.Join(w.opts.Dir, "*.csv"))
	for _, p := range existing {
		w.schedule(ctx, p)
	}

	defer w.stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return errors.New("inbox: watcher closed")
			}
			if !isCSV(ev.Name) {
				continue
			}
			if ev.Has(fsnotify.Create) || ev.Has(fsnotify.Write) {
				w.schedule(ctx, ev.Name)
			}
		case werr, ok := <-fw.Errors:
			if !ok {
				return errors.New("inbox: watcher closed")
			}
			slog.Error("inbox watcher error", "error", werr)
		}
	}
}

// schedule (re)arms the debounce timer for path so bursts of writes result
// in a single run.
func (w *Watcher) schedule(ctx context.Context, path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.timers[path]; ok && t.Stop() {
		t.Reset(w.opts.Debounce)
		return
	}
	w.wg.Add(1)
	var t *time.Timer
	t = time.AfterFunc(w.opts.Debounce, func() {
		defer w.wg.Done()
		w.mu.Lock()
		if w.timers[path] == t {
			delete(w.timers, path)
		}
		w.mu.Unlock()
		if ctx.Err() != nil {
			return
		}
		res, err := w.ProcessFile(ctx, path)
		if err != nil {
			slog.Error("inbox file failed", "file", path, "error", err)
		}
		if w.opts.OnDone != nil {
			w.opts.OnDone(path, res, err)
		}
	})
	w.timers[path] = t
}

func (w *Watcher) stop() {
	w.mu.Lock()
	for p, t := range w.timers {
		if t.Stop() {
			w.wg.Done()
		}
		delete(w.timers, p)
	}
	w.mu.Unlock()
	w.wg.Wait()
}

// ProcessFile runs the configured job on one CSV file and writes the table
// to the output directory under the same name.
func (w *Watcher) ProcessFile(ctx context.Context, path string) (column.Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return column.Result{}, err
	}
	tbl, err := column.ReadCSV(f)
	f.Close()
	if err != nil {
		return column.Result{}, fmt.Errorf("%s: %w", path, err)
	}
	res, err := w.proc.Apply(ctx, tbl, w.opts.Job)
	if err != nil {
		return column.Result{}, fmt.Errorf("%s: %w", path, err)
	}

	dst := filepath.Join(w.opts.OutDir, filepath.Base(path))
	tmp, err := os.CreateTemp(w.opts.OutDir, ".cti-refine-*")
	if err != nil {
		return column.Result{}, err
	}
	if err := column.WriteCSV(tmp, tbl); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return column.Result{}, err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return column.Result{}, err
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		os.Remove(tmp.Name())
		return column.Result{}, err
	}
	slog.Info("inbox file processed", "file", path, "out", dst, "job_id", res.JobID)
	return res, nil
}

func isCSV(name string) bool {
	base := filepath.Base(name)
	return !strings.HasPrefix(base, ".") && strings.EqualFold(filepath.Ext(base), ".csv")
}
