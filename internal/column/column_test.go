package column

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/swarmguard/cti-refine/core/otelinit"
	"github.com/swarmguard/cti-refine/internal/extract"
)

const sampleCSV = `id,note
1,Visit hxxp://evil[.]com/login now
2,
3,Visit hxxp://evil[.]com/login now
4,nothing here
5,see 10.0.0.1
`

func newProcessor() *Processor {
	return NewProcessor(extract.Default(), Options{Workers: 4, ShardPow: 2}, otelinit.Metrics{})
}

func mustRead(t *testing.T, s string) *Table {
	t.Helper()
	tbl, err := ReadCSV(strings.NewReader(s))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	return tbl
}

func TestInsertColumn(t *testing.T) {
	tbl := mustRead(t, sampleCSV)
	res, err := newProcessor().Apply(context.Background(), tbl, Job{Operation: "extractURLs", Column: "note"})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if res.Target != "urls" || res.Mode != ModeInsert {
		t.Fatalf("unexpected result %+v", res)
	}
	if res.Rows != 5 || res.Distinct != 3 {
		t.Fatalf("rows/distinct: %+v", res)
	}
	if res.JobID == "" {
		t.Fatalf("job id not set")
	}
	if strings.Join(tbl.Header, ",") != "id,note,urls" {
		t.Fatalf("header %v", tbl.Header)
	}
	want := []string{"http://evil.com/login", "", "http://evil.com/login", "", ""}
	for i, w := range want {
		if got := tbl.Cell(i, 2); got != w {
			t.Errorf("row %d: got %q want %q", i, got, w)
		}
	}
}

func TestInsertKeepsRowsAligned(t *testing.T) {
	tbl := mustRead(t, "id,text\n1,see 10.0.0.1\n")
	if err := tbl.InsertColumn(1, "ipv4", []string{"10.0.0.1"}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	for i, row := range tbl.Rows {
		if len(row) != len(tbl.Header) {
			t.Fatalf("row %d has %d cells, header has %d", i, len(row), len(tbl.Header))
		}
	}
	var buf bytes.Buffer
	if err := WriteCSV(&buf, tbl); err != nil {
		t.Fatalf("write: %v", err)
	}
	if want := "id,text,ipv4\n1,see 10.0.0.1,10.0.0.1\n"; buf.String() != want {
		t.Fatalf("csv = %q, want %q", buf.String(), want)
	}
}

func TestInsertMiddleOfRaggedTable(t *testing.T) {
	tbl := mustRead(t, "id,text,extra\n1,see 10.0.0.1\n2,x,y\n")
	if _, err := newProcessor().Apply(context.Background(), tbl, Job{Operation: "extractIPv4", Column: "text"}); err != nil {
		t.Fatalf("apply: %v", err)
	}
	var buf bytes.Buffer
	if err := WriteCSV(&buf, tbl); err != nil {
		t.Fatalf("write: %v", err)
	}
	if want := "id,text,ipv4,extra\n1,see 10.0.0.1,10.0.0.1,\n2,x,,y\n"; buf.String() != want {
		t.Fatalf("csv = %q, want %q", buf.String(), want)
	}
}

func TestDefangedColumnName(t *testing.T) {
	tbl := mustRead(t, sampleCSV)
	res, err := newProcessor().Apply(context.Background(), tbl, Job{Operation: "extractIPs", Column: "note", DefangResult: true})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if res.Target != "ips_defanged" {
		t.Fatalf("target %q", res.Target)
	}
	if got := tbl.Cell(4, 2); got != "10[.]0[.]0[.]1" {
		t.Fatalf("got %q", got)
	}
}

func TestReplaceMode(t *testing.T) {
	tbl := mustRead(t, "id,ioc\n1,http://evil.com\n2,\n3,user@x.io\n")
	res, err := newProcessor().Apply(context.Background(), tbl, Job{Operation: "defang", Column: "ioc"})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if res.Mode != ModeReplace || res.Changed != 2 {
		t.Fatalf("unexpected result %+v", res)
	}
	got := tbl.Column(1)
	if got[0] != "hxxp[:]//evil[.]com" || got[1] != "" || got[2] != "user[@]x[.]io" {
		t.Fatalf("got %v", got)
	}
}

func TestColumnErrors(t *testing.T) {
	p := newProcessor()
	tbl := mustRead(t, sampleCSV)
	if _, err := p.Apply(context.Background(), tbl, Job{Operation: "extractURLs", Column: "missing"}); !errors.Is(err, ErrColumnNotFound) {
		t.Fatalf("expected ErrColumnNotFound, got %v", err)
	}
	if _, err := p.Apply(context.Background(), tbl, Job{Operation: "nope", Column: "note"}); !errors.Is(err, extract.ErrUnknownOperation) {
		t.Fatalf("expected ErrUnknownOperation, got %v", err)
	}
	if _, err := p.Apply(context.Background(), tbl, Job{Operation: "extractURLs", Column: "note", NewColumn: "id"}); !errors.Is(err, ErrColumnExists) {
		t.Fatalf("expected ErrColumnExists, got %v", err)
	}
}

func TestCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	tbl := mustRead(t, sampleCSV)
	if _, err := newProcessor().Apply(ctx, tbl, Job{Operation: "extractURLs", Column: "note"}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if len(tbl.Header) != 2 {
		t.Fatalf("table must be untouched on failure")
	}
}

func TestCSVRoundTrip(t *testing.T) {
	tbl := mustRead(t, "a,b\n1\n\"x,y\",2\n")
	var buf bytes.Buffer
	if err := WriteCSV(&buf, tbl); err != nil {
		t.Fatalf("write: %v", err)
	}
	if buf.String() != "a,b\n1,\n\"x,y\",2\n" {
		t.Fatalf("got %q", buf.String())
	}
	if _, err := ReadCSV(strings.NewReader("")); err == nil {
		t.Fatalf("expected error on empty input")
	}
}

func TestMemoConcurrent(t *testing.T) {
	m := NewMemo(3)
	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			k := fmt.Sprintf("k%d", i%16)
			m.Store(k, k+"-v")
		}(i)
	}
	wg.Wait()
	if m.Len() != 16 {
		t.Fatalf("expected 16 keys, got %d", m.Len())
	}
	if v, ok := m.Load("k3"); !ok || v != "k3-v" {
		t.Fatalf("got %q %v", v, ok)
	}
}

func TestParseMode(t *testing.T) {
	if m, err := ParseMode(" Replace "); err != nil || m != ModeReplace {
		t.Fatalf("got %q %v", m, err)
	}
	if _, err := ParseMode("upsert"); err == nil {
		t.Fatalf("expected error")
	}
}
