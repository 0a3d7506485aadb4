package progress

import (
	"bytes"
	"io"
	"testing"
)

type countingReporter struct {
	NoOpProgress
	last int64
}

func (c *countingReporter) Update(current int64) { c.last = current }

func TestReaderReportsBytesRead(t *testing.T) {
	src := bytes.Repeat([]byte("x"), 1000)
	rep := &countingReporter{}
	r := NewReader(bytes.NewReader(src), rep)

	n, err := io.Copy(io.Discard, r)
	if err != nil {
		t.Fatalf("copy: %v", err)
	}
	if n != 1000 {
		t.Fatalf("copied %d bytes, want 1000", n)
	}
	if rep.last != 1000 {
		t.Errorf("reporter saw %d bytes, want 1000", rep.last)
	}
}

func TestNoOpProgressIsSafe(t *testing.T) {
	p := NewNoOpProgress()
	p.Start(10, "x")
	p.Update(5)
	p.SetDescription("y")
	p.Error(nil)
	p.Finish()
}
