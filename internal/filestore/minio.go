package filestore

import (
	"context"
	"fmt"
	"io"
	"path"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinIOConfig holds MinIO connection configuration
type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Bucket    string
}

// MinIO stores artifacts in one bucket under "<area>/<name>" keys.
type MinIO struct {
	client *minio.Client
	bucket string

	listObjects func(context.Context, string, minio.ListObjectsOptions) <-chan minio.ObjectInfo
}

// NewMinIO creates a MinIO-backed store and ensures the bucket exists.
func NewMinIO(ctx context.Context, cfg MinIOConfig) (*MinIO, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("minio config missing")
	}
	mc, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio new: %w", err)
	}
	s := &MinIO{client: mc, bucket: cfg.Bucket, listObjects: mc.ListObjects}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := mc.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
		// ignore "already exists" style errors
		exist, xerr := mc.BucketExists(ctx, s.bucket)
		if xerr != nil || !exist {
			return nil, fmt.Errorf("minio bucket ensure: %w", err)
		}
	}
	return s, nil
}

func (s *MinIO) key(area Area, name string) (string, error) {
	if !validArea(area) {
		return "", fmt.Errorf("unknown area %q", area)
	}
	clean, err := CleanName(name)
	if err != nil {
		return "", err
	}
	return path.Join(string(area), clean), nil
}

func (s *MinIO) Save(ctx context.Context, area Area, name string, r io.Reader) (int64, error) {
	key, err := s.key(area, name)
	if err != nil {
		return 0, err
	}
	info, err := s.client.PutObject(ctx, s.bucket, key, r, -1, minio.PutObjectOptions{ContentType: contentTypeFor(name)})
	if err != nil {
		return 0, fmt.Errorf("put %s: %w", key, err)
	}
	return info.Size, nil
}

func (s *MinIO) Open(ctx context.Context, area Area, name string) (io.ReadCloser, Info, error) {
	key, err := s.key(area, name)
	if err != nil {
		return nil, Info{}, err
	}
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, Info{}, mapMinIOErr(err)
	}
	// GetObject is lazy; Stat surfaces a missing key
	st, err := obj.Stat()
	if err != nil {
		obj.Close()
		return nil, Info{}, mapMinIOErr(err)
	}
	return obj, Info{Name: name, Size: st.Size, ModTime: st.LastModified}, nil
}

func (s *MinIO) Remove(ctx context.Context, area Area, name string) error {
	key, err := s.key(area, name)
	if err != nil {
		return err
	}
	if ok, err := s.Exists(ctx, area, name); err != nil {
		return err
	} else if !ok {
		return ErrNotFound
	}
	return s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{})
}

func (s *MinIO) Exists(ctx context.Context, area Area, name string) (bool, error) {
	key, err := s.key(area, name)
	if err != nil {
		return false, err
	}
	if _, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{}); err != nil {
		if mapMinIOErr(err) == ErrNotFound {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *MinIO) List(ctx context.Context, area Area) ([]Info, error) {
	if !validArea(area) {
		return nil, fmt.Errorf("unknown area %q", area)
	}
	// stops the listing goroutine when we return before draining it
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var out []Info
	for obj := range s.listObjects(ctx, s.bucket, minio.ListObjectsOptions{Prefix: string(area) + "/", Recursive: true}) {
		if obj.Err != nil {
			return nil, obj.Err
		}
		out = append(out, Info{Name: path.Base(obj.Key), Size: obj.Size, ModTime: obj.LastModified})
	}
	return out, nil
}

// Ping checks that the bucket is reachable.
func (s *MinIO) Ping(ctx context.Context) error {
	ok, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("bucket %s missing", s.bucket)
	}
	return nil
}

func mapMinIOErr(err error) error {
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NoSuchObject":
		return ErrNotFound
	}
	return err
}

func contentTypeFor(name string) string {
	switch path.Ext(name) {
	case ".pdf":
		return "application/pdf"
	case ".zip":
		return "application/zip"
	}
	return "application/octet-stream"
}
