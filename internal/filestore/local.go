package filestore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// Local stores artifacts as files in one directory per area under Root.
type Local struct {
	Root string
}

// NewLocal creates every area directory under root.
func NewLocal(root string) (*Local, error) {
	for _, a := range Areas {
		if err := os.MkdirAll(filepath.Join(root, string(a)), 0o755); err != nil {
			return nil, fmt.Errorf("create %s dir: %w", a, err)
		}
	}
	return &Local{Root: root}, nil
}

func (l *Local) path(area Area, name string) (string, error) {
	if !validArea(area) {
		return "", fmt.Errorf("unknown area %q", area)
	}
	clean, err := CleanName(name)
	if err != nil {
		return "", err
	}
	return filepath.Join(l.Root, string(area), clean), nil
}

func (l *Local) Save(ctx context.Context, area Area, name string, r io.Reader) (int64, error) {
	p, err := l.path(area, name)
	if err != nil {
		return 0, err
	}
	f, err := os.OpenFile(p, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return 0, fmt.Errorf("create %s: %w", name, ErrExists)
		}
		return 0, fmt.Errorf("create %s: %w", name, err)
	}
	n, err := io.Copy(f, contextReader{ctx: ctx, r: r})
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(p)
		return n, fmt.Errorf("write %s: %w", name, err)
	}
	return n, nil
}

func (l *Local) Open(_ context.Context, area Area, name string) (io.ReadCloser, Info, error) {
	p, err := l.path(area, name)
	if err != nil {
		return nil, Info{}, err
	}
	f, err := os.Open(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, Info{}, ErrNotFound
		}
		return nil, Info{}, err
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, Info{}, err
	}
	if st.IsDir() {
		f.Close()
		return nil, Info{}, ErrNotFound
	}
	return f, Info{Name: name, Size: st.Size(), ModTime: st.ModTime()}, nil
}

func (l *Local) Remove(_ context.Context, area Area, name string) error {
	p, err := l.path(area, name)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ErrNotFound
		}
		return err
	}
	return nil
}

func (l *Local) Exists(_ context.Context, area Area, name string) (bool, error) {
	p, err := l.path(area, name)
	if err != nil {
		return false, err
	}
	st, err := os.Stat(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return !st.IsDir(), nil
}

func (l *Local) List(_ context.Context, area Area) ([]Info, error) {
	if !validArea(area) {
		return nil, fmt.Errorf("unknown area %q", area)
	}
	entries, err := os.ReadDir(filepath.Join(l.Root, string(area)))
	if err != nil {
		return nil, err
	}
	out := make([]Info, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		fi, err := e.Info()
		if err != nil {
			// removed between ReadDir and Info
			continue
		}
		out = append(out, Info{Name: e.Name(), Size: fi.Size(), ModTime: fi.ModTime()})
	}
	return out, nil
}

// contextReader stops a copy once ctx is done.
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
