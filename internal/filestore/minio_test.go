package filestore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/require"
)

func TestMinIOListStopsProducerOnError(t *testing.T) {
	stopped := make(chan struct{})
	s := &MinIO{bucket: "filconv"}
	s.listObjects = func(ctx context.Context, bucket string, opts minio.ListObjectsOptions) <-chan minio.ObjectInfo {
		require.Equal(t, "filconv", bucket)
		require.Equal(t, "split/", opts.Prefix)
		ch := make(chan minio.ObjectInfo)
		go func() {
			defer close(stopped)
			defer close(ch)
			items := []minio.ObjectInfo{
				{Key: "split/a.zip", Size: 3},
				{Err: errors.New("AccessDenied")},
				{Key: "split/b.zip"},
				{Key: "split/c.zip"},
			}
			for _, it := range items {
				select {
				case ch <- it:
				case <-ctx.Done():
					return
				}
			}
		}()
		return ch
	}

	_, err := s.List(context.Background(), Split)
	require.EqualError(t, err, "AccessDenied")

	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("listing goroutine still blocked after List returned")
	}
}

func TestMinIOListNames(t *testing.T) {
	s := &MinIO{bucket: "filconv"}
	s.listObjects = func(ctx context.Context, _ string, _ minio.ListObjectsOptions) <-chan minio.ObjectInfo {
		ch := make(chan minio.ObjectInfo, 2)
		ch <- minio.ObjectInfo{Key: "downloads/1-report.pdf", Size: 10}
		ch <- minio.ObjectInfo{Key: "downloads/2-notes.txt", Size: 4}
		close(ch)
		return ch
	}
	items, err := s.List(context.Background(), Downloads)
	require.NoError(t, err)
	require.Len(t, items, 2)
	require.Equal(t, "1-report.pdf", items[0].Name)
	require.Equal(t, int64(4), items[1].Size)

	_, err = s.List(context.Background(), Area("tmp"))
	require.Error(t, err)
}
