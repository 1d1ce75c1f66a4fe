// Package blob stores card attachment payloads in an S3-compatible bucket.
package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"regexp"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	log "github.com/sirupsen/logrus"
)

var ErrDisabled = errors.New("attachment storage not configured")

// Object describes a stored attachment.
type Object struct {
	Key         string `json:"key"`
	Name        string `json:"nome"`
	Size        int64  `json:"tamanho"`
	ContentType string `json:"contentType"`
}

// Store is the narrow surface the service needs for uploads.
type Store interface {
	Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) (Object, error)
	Ping(ctx context.Context) error
}

type Options struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

type Minio struct {
	client *minio.Client
	bucket string
}

func NewMinio(ctx context.Context, opts Options) (*Minio, error) {
	if strings.TrimSpace(opts.Endpoint) == "" {
		return nil, ErrDisabled
	}
	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}
	m := &Minio{client: client, bucket: opts.Bucket}
	if err := m.ensureBucket(ctx); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Minio) ensureBucket(ctx context.Context) error {
	exists, err := m.client.BucketExists(ctx, m.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", m.bucket, err)
	}
	if exists {
		return nil
	}
	if err := m.client.MakeBucket(ctx, m.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("create bucket %s: %w", m.bucket, err)
	}
	log.WithField("bucket", m.bucket).Info("created attachment bucket")
	return nil
}

func (m *Minio) Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) (Object, error) {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	info, err := m.client.PutObject(ctx, m.bucket, key, body, size, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return Object{}, fmt.Errorf("put object %s: %w", key, err)
	}
	return Object{Key: info.Key, Name: path.Base(key), Size: info.Size, ContentType: contentType}, nil
}

func (m *Minio) Ping(ctx context.Context) error {
	_, err := m.client.BucketExists(ctx, m.bucket)
	return err
}

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// ObjectKey places an upload under its board and card, e.g. boards/1/cards/2/17-proposta.pdf.
func ObjectKey(boardID, cardID, attachmentID int64, filename string) string {
	name := unsafeName.ReplaceAllString(strings.TrimSpace(path.Base(filename)), "-")
	name = strings.Trim(name, "-.")
	if name == "" {
		name = "arquivo"
	}
	return fmt.Sprintf("boards/%d/cards/%d/%d-%s", boardID, cardID, attachmentID, name)
}
