package store

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"

	"github.com/huahuahua1223/w3a-mpc/interfaces"
)

// S3Store keeps backup files as objects in an S3 or S3-compatible bucket
// under an optional key prefix.
type S3Store struct {
	client *s3.S3
	bucket string
	prefix string
	log    *slog.Logger
}

// NewS3Store creates an S3 backup store. Credentials may be empty, in which
// case the SDK's default chain (environment, profile, instance role) applies.
// A non-empty endpoint selects an S3-compatible service and forces path-style
// addressing.
func NewS3Store(bucket, prefix, region, endpoint, accessKey, secretKey string, log *slog.Logger) (*S3Store, error) {
	cfg := aws.Config{
		Region: aws.String(region),
	}
	if endpoint != "" {
		cfg.Endpoint = aws.String(endpoint)
		cfg.S3ForcePathStyle = aws.Bool(true)
	}
	if accessKey != "" && secretKey != "" {
		cfg.Credentials = credentials.NewStaticCredentials(accessKey, secretKey, "")
	}

	sess, err := session.NewSession(&cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}

	return &S3Store{
		client: s3.New(sess),
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
		log:    log,
	}, nil
}

func (s *S3Store) objectKey(name string) string {
	if s.prefix == "" {
		return name
	}
	return path.Join(s.prefix, name)
}

func (s *S3Store) List(ctx context.Context, prefix string) ([]interfaces.BackupFileHandle, error) {
	var handles []interfaces.BackupFileHandle
	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s.objectKey(prefix)),
	}
	err := s.client.ListObjectsV2PagesWithContext(ctx, input, func(page *s3.ListObjectsV2Output, lastPage bool) bool {
		for _, obj := range page.Contents {
			key := aws.StringValue(obj.Key)
			modified := aws.TimeValue(obj.LastModified)
			handles = append(handles, interfaces.BackupFileHandle{
				ID:           key,
				Name:         path.Base(key),
				CreatedTime:  modified,
				ModifiedTime: modified,
				Size:         aws.Int64Value(obj.Size),
			})
		}
		return true
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list objects in S3: %w", err)
	}

	s.log.Debug("Listed backups in S3",
		slog.String("bucket", s.bucket),
		slog.Int("count", len(handles)))
	return handles, nil
}

func (s *S3Store) Download(ctx context.Context, fileID string) ([]byte, error) {
	result, err := s.client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(fileID),
	})
	if err != nil {
		if strings.Contains(err.Error(), "NoSuchKey") || strings.Contains(err.Error(), "404") {
			return nil, &interfaces.RemoteStoreError{Op: "download", StatusCode: 404, Message: "no such backup object"}
		}
		return nil, fmt.Errorf("failed to get object from S3: %w", err)
	}
	defer result.Body.Close()

	data, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read object body: %w", err)
	}
	return data, nil
}

func (s *S3Store) Create(ctx context.Context, fileName string, content []byte) (interfaces.BackupFileHandle, error) {
	key := s.objectKey(fileName)
	_, err := s.client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(content),
	})
	if err != nil {
		return interfaces.BackupFileHandle{}, fmt.Errorf("failed to upload object to S3: %w", err)
	}

	now := time.Now().UTC()
	s.log.Debug("Stored backup in S3",
		slog.String("bucket", s.bucket),
		slog.String("key", key),
		slog.Int("size", len(content)))
	return interfaces.BackupFileHandle{
		ID:           key,
		Name:         fileName,
		CreatedTime:  now,
		ModifiedTime: now,
		Size:         int64(len(content)),
	}, nil
}
