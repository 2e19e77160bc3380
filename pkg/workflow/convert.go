package workflow

import (
	"context"
	"sync"

	"github.com/filconv/filconv/pkg/client"
	"github.com/filconv/filconv/pkg/logger"
)

type State string

const (
	StateInitial           State = "initial"
	StateFileSelected      State = "fileSelected"
	StateProcessing        State = "processing"
	StateConversionSuccess State = "conversionSuccess"
	StateSuccess           State = "success"
	StateError             State = "error"
)

// Converter runs one streamed conversion.
type Converter interface {
	UploadConvert(ctx context.Context, f client.File, outputFormat string) (*client.Converted, error)
}

// ConvertFlow is the single-file conversion screen.
type ConvertFlow struct {
	mu     sync.Mutex
	state  State
	file   *File
	format string
	result *client.Converted
	errMsg string
}

func NewConvertFlow() *ConvertFlow {
	return &ConvertFlow{state: StateInitial}
}

func (f *ConvertFlow) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// SelectFile picks the input and shows the format picker.
func (f *ConvertFlow) SelectFile(file File) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state == StateProcessing {
		return ErrBusy
	}
	f.file = &file
	f.format = ""
	f.result, f.errMsg = nil, ""
	f.state = StateFileSelected
	return nil
}

// SelectFormat sets the output format. It must be one of Formats().
func (f *ConvertFlow) SelectFormat(format string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state == StateProcessing {
		return ErrBusy
	}
	if f.file == nil {
		return ErrNoFile
	}
	norm, ok := NormalizeFormat(format)
	if !ok {
		return ErrUnknownFormat
	}
	f.format = norm
	return nil
}

// RemoveFile drops the selection and returns to the initial state.
func (f *ConvertFlow) RemoveFile() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state == StateProcessing {
		return ErrBusy
	}
	f.reset()
	return nil
}

// ConvertEnabled is true iff both a file and a format are selected and no
// conversion is running.
func (f *ConvertFlow) ConvertEnabled() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state == StateFileSelected && f.file != nil && f.format != ""
}

func (f *ConvertFlow) Format() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.format
}

// Submit converts the selection. Inputs are locked while it runs.
func (f *ConvertFlow) Submit(ctx context.Context, conv Converter) (*client.Converted, error) {
	f.mu.Lock()
	switch {
	case f.state == StateProcessing:
		f.mu.Unlock()
		return nil, ErrBusy
	case f.file == nil:
		f.mu.Unlock()
		return nil, ErrNoFile
	case f.format == "":
		f.mu.Unlock()
		return nil, ErrNoFormat
	}
	file, format := *f.file, f.format
	f.state = StateProcessing
	f.mu.Unlock()

	logger.Debugf("converting %s to %s", file.Name, format)
	out, err := submitConvert(ctx, conv, file, format)

	f.mu.Lock()
	defer f.mu.Unlock()
	if err != nil {
		f.state = StateError
		f.errMsg = message(err)
		return nil, err
	}
	f.state = StateConversionSuccess
	f.result = out
	return out, nil
}

func submitConvert(ctx context.Context, conv Converter, file File, format string) (*client.Converted, error) {
	o, err := openAll(file)
	if err != nil {
		return nil, err
	}
	defer o.close()
	return conv.UploadConvert(ctx, o.files[0], format)
}

// Result is the converted file after a successful Submit.
func (f *ConvertFlow) Result() *client.Converted {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.result
}

// Error is the message of the last failed Submit.
func (f *ConvertFlow) Error() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.errMsg
}

// Reset clears file and format and goes back to the initial state.
func (f *ConvertFlow) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state == StateProcessing {
		return
	}
	f.reset()
}

func (f *ConvertFlow) reset() {
	f.state = StateInitial
	f.file = nil
	f.format = ""
	f.result = nil
	f.errMsg = ""
}
