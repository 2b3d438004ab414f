// Package storage talks to the object store holding uploaded media.
package storage

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type Config struct {
	Endpoint string
	Access   string
	Secret   string
	Bucket   string
	UseSSL   bool
}

type Client struct {
	minio   *minio.Client
	bucket  string
	baseURL string
}

func NewClient(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, fmt.Errorf("bucket is required")
	}

	mc, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.Access, cfg.Secret, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	return &Client{
		minio:   mc,
		bucket:  cfg.Bucket,
		baseURL: bucketURL(mc.EndpointURL(), cfg.Bucket),
	}, nil
}

func bucketURL(endpoint *url.URL, bucket string) string {
	u := *endpoint
	u.Path = "/" + url.PathEscape(bucket)
	u.RawQuery = ""
	return strings.TrimSuffix(u.String(), "/")
}

func (c *Client) Bucket() string {
	return c.bucket
}

// BaseURL is the public URL of the bucket root, e.g.
// http://localhost:9000/perflab-uploads. Attachment paths are relative to it.
func (c *Client) BaseURL() string {
	return c.baseURL
}

func (c *Client) EnsureBucket(ctx context.Context) error {
	exists, err := c.minio.BucketExists(ctx, c.bucket)
	if err != nil {
		return fmt.Errorf("check bucket existence: %w", err)
	}
	if exists {
		return nil
	}

	if err := c.minio.MakeBucket(ctx, c.bucket, minio.MakeBucketOptions{}); err != nil {
		exists, checkErr := c.minio.BucketExists(ctx, c.bucket)
		if checkErr == nil && exists {
			return nil
		}
		return fmt.Errorf("create bucket %s: %w", c.bucket, err)
	}

	return nil
}

// ObjectExists reports whether an upload is present. objectKey is an
// attachment path relative to the bucket root.
func (c *Client) ObjectExists(ctx context.Context, objectKey string) (bool, error) {
	objectKey = strings.TrimPrefix(objectKey, "/")
	_, err := c.minio.StatObject(ctx, c.bucket, objectKey, minio.StatObjectOptions{})
	if err == nil {
		return true, nil
	}

	resp := minio.ToErrorResponse(err)
	if resp.Code == "NoSuchKey" || resp.Code == "NoSuchObject" {
		return false, nil
	}
	return false, fmt.Errorf("stat object %s: %w", objectKey, err)
}
