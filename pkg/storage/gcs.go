package storage

import (
	"context"
	"io"

	gcs "cloud.google.com/go/storage"
	"github.com/cyclopcam/logs"
)

// StorageGCS is a Google Cloud Storage-based blob store.
// Useful when several server instances must see the same uploaded images.
type StorageGCS struct {
	bucketName string
	prefix     string
	client     *gcs.Client
	bucket     *gcs.BucketHandle
	log        logs.Log
}

// prefix is prepended to every object name, eg "yorubaocr/sessions/"
func NewStorageGCS(ctx context.Context, log logs.Log, bucketName, prefix string) (*StorageGCS, error) {
	client, err := gcs.NewClient(ctx)
	if err != nil {
		return nil, err
	}
	return &StorageGCS{
		bucketName: bucketName,
		prefix:     prefix,
		client:     client,
		bucket:     client.Bucket(bucketName),
		log:        log,
	}, nil
}

func (s *StorageGCS) WriteFile(ctx context.Context, name string) (io.WriteCloser, error) {
	if err := checkName(name); err != nil {
		return nil, err
	}
	s.log.Debugf("Writing gs://%v/%v%v", s.bucketName, s.prefix, name)
	return s.bucket.Object(s.prefix + name).NewWriter(ctx), nil
}

func (s *StorageGCS) ReadFile(ctx context.Context, name string) (*File, error) {
	if err := checkName(name); err != nil {
		return nil, err
	}
	r, err := s.bucket.Object(s.prefix + name).NewReader(ctx)
	if err != nil {
		return nil, err
	}
	return &File{
		Reader:     r,
		ModifiedAt: r.Attrs.LastModified,
		Size:       r.Attrs.Size,
	}, nil
}

func (s *StorageGCS) DeleteFile(ctx context.Context, name string) error {
	if err := checkName(name); err != nil {
		return err
	}
	return s.bucket.Object(s.prefix + name).Delete(ctx)
}

func (s *StorageGCS) Close() error {
	return s.client.Close()
}
