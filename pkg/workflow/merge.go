package workflow

import (
	"context"
	"sync"

	"github.com/filconv/filconv/pkg/client"
	"github.com/filconv/filconv/pkg/logger"
)

// Merger merges PDFs in the given order.
type Merger interface {
	MergeFiles(ctx context.Context, files []client.File) (*client.Handoff, error)
}

// MergeFlow is the ordered list of PDFs waiting to be merged.
type MergeFlow struct {
	mu     sync.Mutex
	state  State
	files  []File
	result *client.Handoff
	errMsg string
}

func NewMergeFlow() *MergeFlow {
	return &MergeFlow{state: StateInitial}
}

func (m *MergeFlow) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Add appends files. Non-PDF files are rejected as a whole. The same file may
// be listed more than once.
func (m *MergeFlow) Add(files ...File) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == StateProcessing {
		return ErrBusy
	}
	for _, f := range files {
		if !f.IsPDF() {
			return ErrNotPDF
		}
	}
	m.files = append(m.files, files...)
	m.settle()
	return nil
}

// nextUnused is the first position holding id that used does not mark.
func (m *MergeFlow) nextUnused(id string, used []bool) int {
	for i, f := range m.files {
		if !used[i] && f.ID() == id {
			return i
		}
	}
	return -1
}

// settle derives the idle state from the list.
func (m *MergeFlow) settle() {
	m.result, m.errMsg = nil, ""
	if len(m.files) == 0 {
		m.state = StateInitial
		return
	}
	m.state = StateFileSelected
}

// Remove drops every entry of the file with this id.
func (m *MergeFlow) Remove(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == StateProcessing {
		return ErrBusy
	}
	kept := m.files[:0]
	for _, f := range m.files {
		if f.ID() != id {
			kept = append(kept, f)
		}
	}
	if len(kept) == len(m.files) {
		return ErrUnknownFile
	}
	clear(m.files[len(kept):])
	m.files = kept
	m.settle()
	return nil
}

// RemoveAt drops the entry at position i only.
func (m *MergeFlow) RemoveAt(i int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == StateProcessing {
		return ErrBusy
	}
	if i < 0 || i >= len(m.files) {
		return ErrUnknownFile
	}
	m.files = append(m.files[:i], m.files[i+1:]...)
	m.settle()
	return nil
}

// Move shifts the file at index from to index to.
func (m *MergeFlow) Move(from, to int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == StateProcessing {
		return ErrBusy
	}
	if from < 0 || from >= len(m.files) || to < 0 || to >= len(m.files) {
		return ErrUnknownFile
	}
	f := m.files[from]
	m.files = append(m.files[:from], m.files[from+1:]...)
	m.files = append(m.files[:to], append([]File{f}, m.files[to:]...)...)
	return nil
}

// Reorder re-synchronizes the list with a displayed order. A repeated id
// takes the next copy of that file; ids beyond the listed copies are
// ignored. Entries the order leaves out keep their relative order at the end.
func (m *MergeFlow) Reorder(ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == StateProcessing {
		return ErrBusy
	}
	used := make([]bool, len(m.files))
	out := make([]File, 0, len(m.files))
	for _, id := range ids {
		i := m.nextUnused(id, used)
		if i < 0 {
			continue
		}
		used[i] = true
		out = append(out, m.files[i])
	}
	for i, f := range m.files {
		if !used[i] {
			out = append(out, f)
		}
	}
	m.files = out
	return nil
}

// Files returns the list in merge order.
func (m *MergeFlow) Files() []File {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]File(nil), m.files...)
}

func (m *MergeFlow) IDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, len(m.files))
	for i, f := range m.files {
		ids[i] = f.ID()
	}
	return ids
}

func (m *MergeFlow) CanSubmit() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state != StateProcessing && len(m.files) >= 2
}

func (m *MergeFlow) Submit(ctx context.Context, merger Merger) (*client.Handoff, error) {
	m.mu.Lock()
	if m.state == StateProcessing {
		m.mu.Unlock()
		return nil, ErrBusy
	}
	if len(m.files) < 2 {
		m.mu.Unlock()
		return nil, ErrTooFewFiles
	}
	files := append([]File(nil), m.files...)
	m.state = StateProcessing
	m.mu.Unlock()

	logger.Debugf("merging %d files", len(files))
	out, err := submitMerge(ctx, merger, files)

	m.mu.Lock()
	defer m.mu.Unlock()
	if err != nil {
		m.state = StateError
		m.errMsg = message(err)
		return nil, err
	}
	m.state = StateSuccess
	m.result = out
	return out, nil
}

func submitMerge(ctx context.Context, merger Merger, files []File) (*client.Handoff, error) {
	o, err := openAll(files...)
	if err != nil {
		return nil, err
	}
	defer o.close()
	return merger.MergeFiles(ctx, o.files)
}

func (m *MergeFlow) Result() *client.Handoff {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.result
}

func (m *MergeFlow) Error() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.errMsg
}

// Reset empties the list.
func (m *MergeFlow) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == StateProcessing {
		return
	}
	m.files = nil
	m.settle()
}
