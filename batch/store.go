package batch

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Store takes ownership of a finished batch file and returns the location to
// put in the BATCH message.
type Store interface {
	Put(ctx context.Context, localPath, name string) (location string, err error)
}

// LocalStore moves batch files into Dir.
type LocalStore struct {
	Dir string
}

func (s LocalStore) Put(_ context.Context, localPath, name string) (string, error) {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return "", fmt.Errorf("batch: create %s: %w", s.Dir, err)
	}
	dst, err := filepath.Abs(filepath.Join(s.Dir, name))
	if err != nil {
		return "", err
	}
	if err := os.Rename(localPath, dst); err == nil {
		return dst, nil
	}
	// Rename fails across filesystems; fall back to a copy.
	if err := copyFile(localPath, dst); err != nil {
		return "", err
	}
	_ = os.Remove(localPath)
	return dst, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("batch: create %s: %w", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return fmt.Errorf("batch: copy to %s: %w", dst, err)
	}
	return out.Close()
}

// PutObjectAPI is the subset of *s3.Client used by S3Store.
type PutObjectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Store uploads batch files to an S3-compatible bucket.
type S3Store struct {
	Client PutObjectAPI
	Bucket string
	// Prefix is prepended to every object key, e.g. "taps/postgres".
	Prefix string
}

// S3Config locates a bucket. If Endpoint is non-empty, path-style
// addressing is enabled (for MinIO and similar).
type S3Config struct {
	Bucket   string
	Prefix   string
	Region   string
	Endpoint string
}

// NewS3Store loads the default AWS credential chain and returns a store for cfg.Bucket.
func NewS3Store(ctx context.Context, cfg S3Config) (*S3Store, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("config: bucket required")
	}
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	var s3opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		s3opts = append(s3opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		})
	}
	return &S3Store{
		Client: s3.NewFromConfig(awsCfg, s3opts...),
		Bucket: cfg.Bucket,
		Prefix: cfg.Prefix,
	}, nil
}

// Put uploads the file and removes the local copy. The location is an s3:// URL.
func (s *S3Store) Put(ctx context.Context, localPath, name string) (string, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return "", err
	}
	defer f.Close()

	key := path.Join(s.Prefix, name)
	contentType := "application/x-ndjson"
	_, err = s.Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.Bucket),
		Key:         aws.String(key),
		Body:        f,
		ContentType: &contentType,
	})
	if err != nil {
		return "", fmt.Errorf("s3 put object: %w", err)
	}
	_ = f.Close()
	_ = os.Remove(localPath)
	return "s3://" + s.Bucket + "/" + key, nil
}
