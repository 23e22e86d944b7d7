package column

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/swarmguard/cti-refine/core/otelinit"
	"github.com/swarmguard/cti-refine/internal/extract"
)

// Mode selects where results are written.
type Mode string

const (
	// ModeInsert adds a new column right after the source column.
	ModeInsert Mode = "insert"
	// ModeReplace rewrites the source column in place.
	ModeReplace Mode = "replace"
)

// ParseMode accepts "insert", "replace" or "" (operation default).
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case "", ModeInsert, ModeReplace:
		return m, nil
	default:
		return "", fmt.Errorf("invalid mode %q", s)
	}
}

// Job describes one column operation. Empty NewColumn and Mode fall back to
// the operation defaults.
type Job struct {
	Operation    string `json:"operation" yaml:"operation"`
	Column       string `json:"column" yaml:"column"`
	DefangResult bool   `json:"defang" yaml:"defang"`
	NewColumn    string `json:"new_column,omitempty" yaml:"new_column,omitempty"`
	Mode         Mode   `json:"mode,omitempty" yaml:"mode,omitempty"`
}

type Result struct {
	JobID     string        `json:"job_id" yaml:"job_id"`
	Operation string        `json:"operation" yaml:"operation"`
	Column    string        `json:"column" yaml:"column"`
	Target    string        `json:"target" yaml:"target"`
	Mode      Mode          `json:"mode" yaml:"mode"`
	Rows      int           `json:"rows" yaml:"rows"`
	Distinct  int           `json:"distinct" yaml:"distinct"`
	Changed   int           `json:"changed" yaml:"changed"`
	Duration  time.Duration `json:"duration" yaml:"duration"`
}

type Options struct {
	Workers  int
	ShardPow uint8
}

// Processor runs jobs against tables. It is safe for concurrent use; each
// Apply call owns its own memo and pool.
type Processor struct {
	reg     *extract.Registry
	opts    Options
	metrics otelinit.Metrics
}

func NewProcessor(reg *extract.Registry, opts Options, metrics otelinit.Metrics) *Processor {
	if reg == nil {
		reg = extract.Default()
	}
	if opts.Workers <= 0 {
		opts.Workers = 8
	}
	if opts.ShardPow == 0 {
		opts.ShardPow = 4
	}
	if metrics.Cells == nil {
		metrics = otelinit.NewMetrics()
	}
	return &Processor{reg: reg, opts: opts, metrics: metrics}
}

// Apply computes the operation once per distinct non-empty cell value of the
// source column and writes the results back into t.
func (p *Processor) Apply(ctx context.Context, t *Table, job Job) (Result, error) {
	ctx, end := otelinit.WithSpan(ctx, "column.apply")
	defer end()
	start := time.Now()

	op, err := p.reg.Lookup(job.Operation)
	if err != nil {
		return Result{}, err
	}
	src, err := t.Index(job.Column)
	if err != nil {
		return Result{}, err
	}
	mode := job.Mode
	if mode == "" {
		mode = ModeInsert
		if op.InPlace() {
			mode = ModeReplace
		}
	}
	target := job.Column
	if mode == ModeInsert {
		target = job.NewColumn
		if target == "" {
			target = op.ColumnName(job.DefangResult)
		}
		if target == "" {
			target = job.Column + "_" + op.Name
		}
		if _, err := t.Index(target); err == nil {
			return Result{}, fmt.Errorf("%w: %q", ErrColumnExists, target)
		}
	}

	cells := t.Column(src)
	distinct := distinctValues(cells)
	memo := NewMemo(p.opts.ShardPow)
	if err := p.compute(ctx, memo, distinct, op, job.DefangResult); err != nil {
		return Result{}, err
	}

	out := make([]string, len(cells))
	changed := 0
	for i, v := range cells {
		if v == "" {
			continue
		}
		out[i], _ = memo.Load(v)
		if out[i] != v {
			changed++
		}
	}
	if mode == ModeInsert {
		if err := t.InsertColumn(src, target, out); err != nil {
			return Result{}, err
		}
	} else {
		t.SetColumn(src, out)
	}

	res := Result{
		JobID:     uuid.NewString(),
		Operation: op.Name,
		Column:    job.Column,
		Target:    target,
		Mode:      mode,
		Rows:      len(cells),
		Distinct:  len(distinct),
		Changed:   changed,
		Duration:  time.Since(start),
	}
	attrs := metric.WithAttributes(attribute.String("operation", op.Name))
	p.metrics.Cells.Add(ctx, int64(res.Rows), attrs)
	p.metrics.DistinctValues.Add(ctx, int64(res.Distinct), attrs)
	p.metrics.JobDuration.Record(ctx, res.Duration.Seconds(), attrs)
	slog.Info("column job finished", "job_id", res.JobID, "operation", op.Name, "column", job.Column,
		"target", target, "mode", mode, "rows", res.Rows, "distinct", res.Distinct, "changed", res.Changed)
	return res, nil
}

func (p *Processor) compute(ctx context.Context, memo *Memo, values []string, op extract.Operation, defangResult bool) error {
	if len(values) == 0 {
		return nil
	}
	var wg sync.WaitGroup
	pool, err := ants.NewPoolWithFunc(p.opts.Workers, func(item interface{}) {
		defer wg.Done()
		v := item.(string)
		memo.Store(v, op.Run(v, defangResult))
	})
	if err != nil {
		return fmt.Errorf("worker pool: %w", err)
	}
	defer pool.Release()

	for _, v := range values {
		if err := ctx.Err(); err != nil {
			wg.Wait()
			return err
		}
		wg.Add(1)
		if err := pool.Invoke(v); err != nil {
			wg.Done()
			wg.Wait()
			return fmt.Errorf("dispatch %q: %w", op.Name, err)
		}
	}
	wg.Wait()
	return nil
}

func distinctValues(cells []string) []string {
	seen := make(map[string]struct{}, len(cells))
	var out []string
	for _, v := range cells {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
