package storage

import (
	"bytes"
	"context"
	"fmt"
	"mime"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

// ArchiveOptions configures the S3 bucket uploaded menus are copied into.
type ArchiveOptions struct {
	Bucket    string
	Region    string
	Endpoint  string // S3-compatible endpoint, e.g. Cloudflare R2
	AccessKey string
	SecretKey string
}

// ObjectPutter is the part of *s3.Client the archive needs.
type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Archive stores copies of uploaded menu photos.
type Archive struct {
	client ObjectPutter
	bucket string
	now    func() time.Time
}

// NewArchive builds an S3 client from opts. Without static keys the default
// AWS credential chain is used.
func NewArchive(ctx context.Context, opts ArchiveOptions) (*Archive, error) {
	loadOpts := []func(*config.LoadOptions) error{
		config.WithRegion(opts.Region),
	}
	if opts.AccessKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	})

	return NewArchiveWithClient(client, opts.Bucket), nil
}

// NewArchiveWithClient wraps an existing client.
func NewArchiveWithClient(client ObjectPutter, bucket string) *Archive {
	return &Archive{
		client: client,
		bucket: bucket,
		now:    time.Now,
	}
}

// Put uploads the photo and returns its object key.
func (a *Archive) Put(ctx context.Context, filename, contentType string, data []byte) (string, error) {
	key := a.objectKey(filename, contentType)

	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(a.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(data))),
		Metadata: map[string]string{
			"original-filename": filename,
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to archive %s: %w", filename, err)
	}

	return key, nil
}

// objectKey lays keys out as menus/YYYY/MM/DD/<uuid><ext>.
func (a *Archive) objectKey(filename, contentType string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if ext == "" {
		if exts, _ := mime.ExtensionsByType(contentType); len(exts) > 0 {
			ext = exts[0]
		}
	}
	day := a.now().UTC().Format("2006/01/02")
	return path.Join("menus", day, uuid.NewString()+ext)
}
