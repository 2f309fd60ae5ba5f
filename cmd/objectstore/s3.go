package objectstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
)

// Static errors for object storage access
var (
	ErrInvalidURI       = errors.New("invalid s3 uri: expected s3://bucket/key")
	ErrBucketRequired   = errors.New("S3 bucket is required")
	ErrClientNotStarted = errors.New("S3 client not initialized")
)

const regionAuto = "auto"

// Config describes an S3-compatible endpoint
type Config struct {
	Endpoint  string
	Bucket    string
	AccessKey string
	SecretKey string
	Region    string
}

// Location is a parsed s3://bucket/key reference
type Location struct {
	Bucket string
	Key    string
}

func (l Location) String() string {
	return fmt.Sprintf("s3://%s/%s", l.Bucket, l.Key)
}

// IsURI reports whether s looks like an s3:// reference
func IsURI(s string) bool {
	return strings.HasPrefix(s, "s3://")
}

// ParseURI splits s3://bucket/key into its parts
func ParseURI(s string) (Location, error) {
	u, err := url.Parse(s)
	if err != nil {
		return Location{}, fmt.Errorf("%w: %w", ErrInvalidURI, err)
	}
	if u.Scheme != "s3" || u.Host == "" {
		return Location{}, fmt.Errorf("%w: %s", ErrInvalidURI, s)
	}
	key := strings.TrimPrefix(u.Path, "/")
	if key == "" {
		return Location{}, fmt.Errorf("%w: %s", ErrInvalidURI, s)
	}
	return Location{Bucket: u.Host, Key: key}, nil
}

// Client wraps the S3 client, downloader and uploader for one endpoint
type Client struct {
	config     Config
	s3Client   *s3.S3
	downloader *s3manager.Downloader
	uploader   *s3manager.Uploader
}

// NewClient creates an S3 session. Empty credentials fall back to the default
// AWS credential chain; an empty endpoint targets AWS itself.
func NewClient(cfg Config) (*Client, error) {
	awsConfig := &aws.Config{
		S3ForcePathStyle: aws.Bool(true),
	}
	if cfg.Endpoint != "" {
		awsConfig.Endpoint = aws.String(cfg.Endpoint)
	}
	region := cfg.Region
	if region == "" || region == regionAuto {
		region = "us-east-1"
	}
	awsConfig.Region = aws.String(region)
	if cfg.AccessKey != "" || cfg.SecretKey != "" {
		awsConfig.Credentials = credentials.NewStaticCredentials(cfg.AccessKey, cfg.SecretKey, "")
	}

	sess, err := session.NewSession(awsConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 session: %w", err)
	}

	return &Client{
		config:     cfg,
		s3Client:   s3.New(sess),
		downloader: s3manager.NewDownloader(sess),
		uploader:   s3manager.NewUploader(sess),
	}, nil
}

// Download reads a whole object into memory
func (c *Client) Download(ctx context.Context, loc Location) ([]byte, error) {
	if c == nil || c.downloader == nil {
		return nil, ErrClientNotStarted
	}

	buf := aws.NewWriteAtBuffer(nil)
	_, err := c.downloader.DownloadWithContext(ctx, buf, &s3.GetObjectInput{
		Bucket: aws.String(loc.Bucket),
		Key:    aws.String(loc.Key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to download %s: %w", loc, err)
	}
	return buf.Bytes(), nil
}

// Upload writes data under key in the configured bucket
func (c *Client) Upload(ctx context.Context, key string, data []byte, contentType string) (Location, error) {
	if c == nil || c.uploader == nil {
		return Location{}, ErrClientNotStarted
	}
	if c.config.Bucket == "" {
		return Location{}, ErrBucketRequired
	}

	loc := Location{Bucket: c.config.Bucket, Key: strings.TrimPrefix(key, "/")}
	_, err := c.uploader.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket:      aws.String(loc.Bucket),
		Key:         aws.String(loc.Key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return Location{}, fmt.Errorf("failed to upload %s: %w", loc, err)
	}
	return loc, nil
}
