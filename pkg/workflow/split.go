package workflow

import (
	"context"
	"strings"
	"sync"

	"github.com/filconv/filconv/pkg/client"
	"github.com/filconv/filconv/pkg/logger"
)

// Splitter cuts one PDF on the server.
type Splitter interface {
	Split(ctx context.Context, f client.File, method string) (*client.Handoff, error)
}

// SplitFlow is the single-PDF split screen.
type SplitFlow struct {
	mu     sync.Mutex
	state  State
	file   *File
	method string
	result *client.Handoff
	errMsg string
}

func NewSplitFlow() *SplitFlow {
	return &SplitFlow{state: StateInitial, method: "all"}
}

func (s *SplitFlow) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// SelectFile replaces the selection. Only PDFs are accepted; a rejected
// file leaves the current selection alone.
func (s *SplitFlow) SelectFile(f File) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateProcessing {
		return ErrBusy
	}
	if !f.IsPDF() {
		return ErrNotPDF
	}
	s.file = &f
	s.result, s.errMsg = nil, ""
	s.state = StateFileSelected
	return nil
}

// SetMethod stores the split method sent with the file. The server
// validates it.
func (s *SplitFlow) SetMethod(method string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateProcessing {
		return ErrBusy
	}
	method = strings.TrimSpace(method)
	if method == "" {
		method = "all"
	}
	s.method = method
	return nil
}

func (s *SplitFlow) Method() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.method
}

func (s *SplitFlow) Submit(ctx context.Context, sp Splitter) (*client.Handoff, error) {
	s.mu.Lock()
	if s.state == StateProcessing {
		s.mu.Unlock()
		return nil, ErrBusy
	}
	if s.file == nil {
		s.mu.Unlock()
		return nil, ErrNoFile
	}
	file, method := *s.file, s.method
	s.state = StateProcessing
	s.mu.Unlock()

	logger.Debugf("splitting %s (%s)", file.Name, method)
	out, err := submitSplit(ctx, sp, file, method)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.state = StateError
		s.errMsg = message(err)
		return nil, err
	}
	s.state = StateSuccess
	s.result = out
	return out, nil
}

func submitSplit(ctx context.Context, sp Splitter, file File, method string) (*client.Handoff, error) {
	o, err := openAll(file)
	if err != nil {
		return nil, err
	}
	defer o.close()
	return sp.Split(ctx, o.files[0], method)
}

func (s *SplitFlow) Result() *client.Handoff {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result
}

func (s *SplitFlow) Error() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.errMsg
}

func (s *SplitFlow) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateProcessing {
		return
	}
	s.state = StateInitial
	s.file = nil
	s.method = "all"
	s.result, s.errMsg = nil, ""
}
