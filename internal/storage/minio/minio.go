package minio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"

	"photo-generator/internal/config"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/rs/zerolog"
)

// Folder names namespace objects by purpose.
const (
	FolderUploads   = "uploads"
	FolderGenerated = "generated"
	FolderFullRes   = "generated/4k"
	FolderSquare    = "generated/instagram"
	FolderBanner    = "generated/facebook"
	FolderStory     = "generated/whatsapp"
)

var ErrForeignURL = errors.New("url does not belong to this store")

type UploadResult struct {
	URL      string
	ObjectID string
}

type Client struct {
	client  *minio.Client
	bucket  string
	prefix  string
	baseURL string
	logger  zerolog.Logger
}

// NewClient creates a new Minio client and ensures the bucket exists and is publicly readable
func NewClient(ctx context.Context, cfg config.StorageConfig, logger zerolog.Logger) (*Client, error) {
	minioClient, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	client := &Client{
		client:  minioClient,
		bucket:  cfg.Bucket,
		prefix:  strings.Trim(cfg.ObjectPrefix, "/"),
		baseURL: publicBaseURL(cfg),
		logger:  logger,
	}

	if err := client.ensureBucketExists(ctx); err != nil {
		return nil, fmt.Errorf("failed to ensure bucket %s exists: %w", cfg.Bucket, err)
	}

	logger.Info().Str("bucket", cfg.Bucket).Str("public_url", client.baseURL).Msg("minio client initialized")
	return client, nil
}

func publicBaseURL(cfg config.StorageConfig) string {
	if cfg.PublicURL != "" {
		return strings.TrimSuffix(cfg.PublicURL, "/")
	}
	scheme := "http"
	if cfg.UseSSL {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s", scheme, strings.TrimSuffix(cfg.Endpoint, "/"))
}

// ensureBucketExists creates the bucket if it doesn't exist and opens it for anonymous reads
func (c *Client) ensureBucketExists(ctx context.Context) error {
	exists, err := c.client.BucketExists(ctx, c.bucket)
	if err != nil {
		return fmt.Errorf("failed to check if bucket exists: %w", err)
	}

	if exists {
		c.logger.Debug().Str("bucket", c.bucket).Msg("bucket already exists")
		return nil
	}

	if err := c.client.MakeBucket(ctx, c.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("failed to create bucket: %w", err)
	}
	if err := c.client.SetBucketPolicy(ctx, c.bucket, readOnlyPolicy(c.bucket)); err != nil {
		return fmt.Errorf("failed to set bucket policy: %w", err)
	}
	c.logger.Info().Str("bucket", c.bucket).Msg("created bucket")
	return nil
}

func readOnlyPolicy(bucket string) string {
	return fmt.Sprintf(`{"Version":"2012-10-17","Statement":[{"Effect":"Allow","Principal":{"AWS":["*"]},"Action":["s3:GetObject"],"Resource":["arn:aws:s3:::%s/*"]}]}`, bucket)
}

// Upload stores data under folder and returns its public URL
func (c *Client) Upload(ctx context.Context, data []byte, folder string) (UploadResult, error) {
	if len(data) == 0 {
		return UploadResult{}, fmt.Errorf("failed to upload file: empty payload")
	}

	contentType := http.DetectContentType(data)
	objectName := c.objectName(folder, extensionFor(contentType))

	_, err := c.client.PutObject(ctx, c.bucket, objectName, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return UploadResult{}, fmt.Errorf("failed to upload file: %w", err)
	}

	c.logger.Debug().Str("object", objectName).Int("bytes", len(data)).Msg("uploaded object")
	return UploadResult{
		URL:      c.PublicURL(objectName),
		ObjectID: objectName,
	}, nil
}

// DownloadAsBytes fetches an object previously returned by Upload
func (c *Client) DownloadAsBytes(ctx context.Context, rawURL string) ([]byte, error) {
	objectName, err := c.objectNameFromURL(rawURL)
	if err != nil {
		return nil, err
	}

	obj, err := c.client.GetObject(ctx, c.bucket, objectName, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to download file: %w", err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", objectName, err)
	}
	return data, nil
}

// PublicURL builds the stable path-style URL for an object
func (c *Client) PublicURL(objectName string) string {
	return fmt.Sprintf("%s/%s/%s", c.baseURL, c.bucket, objectName)
}

// Ping checks the bucket is reachable.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.client.BucketExists(ctx, c.bucket)
	return err
}

func (c *Client) objectName(folder, ext string) string {
	return path.Join(c.prefix, folder, uuid.NewString()+ext)
}

// objectNameFromURL recovers the key of a URL built by PublicURL. The public
// base may carry a path, so the whole prefix is matched before falling back to
// a path-style /<bucket>/ lookup on the storage endpoint.
func (c *Client) objectNameFromURL(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	u.RawQuery, u.Fragment = "", ""

	key, ok := strings.CutPrefix(u.String(), c.baseURL+"/"+c.bucket+"/")
	if !ok {
		key, ok = strings.CutPrefix(u.Path, "/"+c.bucket+"/")
	}
	if !ok || key == "" {
		return "", fmt.Errorf("%w: %s", ErrForeignURL, rawURL)
	}
	return key, nil
}

func extensionFor(contentType string) string {
	switch contentType {
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	default:
		return ".jpg"
	}
}
