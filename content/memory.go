package content

import (
	"context"
	"fmt"
	"sync"
)

// Memory is an in-memory Document and AppendTarget.
//
// Memory is safe for concurrent use.
type Memory struct {
	mu       sync.RWMutex
	info     Info
	pages    []*Page
	failures map[int]error
}

// NewMemory returns a document holding pages. Page indices are renumbered
// to match their position.
func NewMemory(info Info, pages ...*Page) *Memory {
	m := &Memory{info: info}
	for _, p := range pages {
		m.pages = append(m.pages, renumber(p, len(m.pages)))
	}
	return m
}

func renumber(p *Page, i int) *Page {
	if p.Index == i {
		return p
	}
	c := p.Clone()
	c.Index = i
	return c
}

// NumPages implements Document.
func (m *Memory) NumPages() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.pages)
}

// Page implements Document.
func (m *Memory) Page(ctx context.Context, i int) (*Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if i < 0 || i >= len(m.pages) {
		return nil, fmt.Errorf("%w: %d", ErrPageRange, i)
	}
	if err := m.failures[i]; err != nil {
		return nil, err
	}
	return m.pages[i], nil
}

// Info implements Document.
func (m *Memory) Info() Info {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.info
}

// Pages returns a snapshot of the page list.
func (m *Memory) Pages() []*Page {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]*Page(nil), m.pages...)
}

// FailPage makes every later load of page i return err. A nil err clears
// the failure.
func (m *Memory) FailPage(i int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.failures, i)
		return
	}
	if m.failures == nil {
		m.failures = make(map[int]error)
	}
	m.failures[i] = err
}

// AppendPages implements AppendTarget. Pages are renumbered to follow the
// existing ones. The update is applied under one lock so readers see
// either none or all of the new pages.
func (m *Memory) AppendPages(ctx context.Context, pages []*Page) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	for i, p := range pages {
		if p == nil {
			return fmt.Errorf("content: append: page %d is nil", i)
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	next := make([]*Page, len(m.pages), len(m.pages)+len(pages))
	copy(next, m.pages)
	for _, p := range pages {
		next = append(next, renumber(p, len(next)))
	}
	m.pages = next
	return nil
}
