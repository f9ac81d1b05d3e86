package convert

import (
	"context"
	"io"
	"iter"
	"os"
)

// Monitor drives a streaming conversion. The caller advances the job with
// Next, Run or Steps, or, for stream targets, by reading from Filter: reads
// advance the job when no output is buffered.
//
// A Monitor has a single controller and is not safe for concurrent use.
// Close releases the job; closing an unfinished job cancels it and
// publishes nothing.
//
//	m, err := c.ConvertToStreaming(ctx, doc, convert.DefaultSVGOptions(), convert.ToFile("out.svg"))
//	if err != nil {
//	    return err
//	}
//	defer m.Close()
//	for m.Next() {
//	    fmt.Println(m.Progress())
//	}
//	return m.Err()
type Monitor struct {
	j *job
}

// ID returns the job ID.
func (m *Monitor) ID() string {
	return m.j.id.String()
}

// Next runs one unit of work. It returns false once the job is ready,
// failed or closed.
func (m *Monitor) Next() bool {
	return m.j.advance()
}

// Ready reports whether output can be read. For streams this happens
// after the first page is written, possibly before Next returns false;
// for path targets it happens once the artifact is published.
func (m *Monitor) Ready() bool {
	return m.j.ready && m.j.state != StateDestroyed
}

// Progress returns the completion percentage. It never decreases and
// reaches 100 only when the artifact is published.
func (m *Monitor) Progress() int {
	return m.j.progress
}

// State returns the job state.
func (m *Monitor) State() State {
	return m.j.state
}

// Err returns the failure that stopped the job, or nil.
func (m *Monitor) Err() error {
	return m.j.err
}

// Report returns the conversion report so far.
func (m *Monitor) Report() Report {
	return m.j.snapshot()
}

// Filter returns the output as a reader. For stream targets the reader
// pulls the job forward; for file targets it is the published file and
// the caller should close it. Filter fails with ErrNotReady before Ready.
func (m *Monitor) Filter() (io.Reader, error) {
	j := m.j
	if j.state == StateDestroyed {
		return nil, ErrClosed
	}
	if !j.ready {
		return nil, ErrNotReady
	}
	switch j.target.kind {
	case targetStream:
		return j.stream, nil
	case targetDir:
		return nil, ErrNoStream
	}
	return os.Open(j.target.path)
}

// Run drives the job to completion and returns its error. Cancelling ctx
// aborts the job.
func (m *Monitor) Run(ctx context.Context) error {
	for m.Next() {
		if err := ctx.Err(); err != nil {
			m.j.fail(cancelled(err))
			break
		}
	}
	return m.Err()
}

// Steps returns a sequence that advances the job one unit per iteration
// and yields the progress after each. The last pair carries the job
// error. Breaking out of the loop leaves the job where it is.
func (m *Monitor) Steps() iter.Seq2[int, error] {
	return func(yield func(int, error) bool) {
		for m.Next() {
			if !yield(m.Progress(), nil) {
				return
			}
		}
		yield(m.Progress(), m.Err())
	}
}

// Close cancels an unfinished job, discarding its partial output, and
// releases it. Close is idempotent.
func (m *Monitor) Close() error {
	m.j.destroy()
	return nil
}
