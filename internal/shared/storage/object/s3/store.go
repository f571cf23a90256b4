package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"esign-backend/internal/shared/storage/object"
)

type s3API interface {
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	CopyObject(ctx context.Context, params *s3.CopyObjectInput, optFns ...func(*s3.Options)) (*s3.CopyObjectOutput, error)
}

// Store implements object.Store using Amazon S3.
type Store struct {
	client     s3API
	presign    *s3.PresignClient
	bucket     string
	region     string
	prefix     string
	kmsKeyID   string
	publicBase string
}

// New creates a new S3-backed object store.
func New(ctx context.Context, region, bucket, prefix, kmsKeyID, publicBase string) (*Store, error) {
	if bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{}
	if region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(region))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(cfg)
	return &Store{
		client:     client,
		presign:    s3.NewPresignClient(client),
		bucket:     bucket,
		region:     cfg.Region,
		prefix:     normalizePrefix(prefix),
		kmsKeyID:   strings.TrimSpace(kmsKeyID),
		publicBase: strings.TrimRight(strings.TrimSpace(publicBase), "/"),
	}, nil
}

// Exists issues a HEAD request for the key.
func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	objectKey, err := s.objectKey(ctx, key)
	if err != nil {
		return false, err
	}
	_, err = s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objectKey),
	})
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("s3 head object bucket=%s key=%s: %w", s.bucket, objectKey, err)
	}
	return true, nil
}

// Get downloads the object body.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	objectKey, err := s.objectKey(ctx, key)
	if err != nil {
		return nil, err
	}
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objectKey),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: %s", object.ErrNotFound, key)
		}
		return nil, fmt.Errorf("s3 get object bucket=%s key=%s: %w", s.bucket, objectKey, err)
	}
	defer out.Body.Close()
	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("s3 read object bucket=%s key=%s: %w", s.bucket, objectKey, err)
	}
	return data, nil
}

// Put uploads data to key.
func (s *Store) Put(ctx context.Context, key string, data []byte) error {
	_, err := s.SaveWithKey(ctx, key, object.DetectContentType(key, data), bytes.NewReader(data))
	return err
}

// SaveWithKey uploads data to a specific storage key.
func (s *Store) SaveWithKey(ctx context.Context, key string, contentType string, r io.Reader) (int64, error) {
	objectKey, err := s.objectKey(ctx, key)
	if err != nil {
		return 0, err
	}
	counter := &countingReader{r: r}

	input := &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(objectKey),
		Body:        counter,
		ContentType: aws.String(contentType),
	}
	s.applySSE(&input.ServerSideEncryption, &input.SSEKMSKeyId)

	if _, err := s.client.PutObject(ctx, input); err != nil {
		return 0, fmt.Errorf("s3 put object bucket=%s key=%s: %w", s.bucket, objectKey, err)
	}
	return counter.n, nil
}

// Delete removes the object. S3 treats missing keys as success.
func (s *Store) Delete(ctx context.Context, key string) error {
	objectKey, err := s.objectKey(ctx, key)
	if err != nil {
		return err
	}
	if _, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objectKey),
	}); err != nil && !isNotFound(err) {
		return fmt.Errorf("s3 delete object bucket=%s key=%s: %w", s.bucket, objectKey, err)
	}
	return nil
}

// Copy performs a server-side copy inside the bucket.
func (s *Store) Copy(ctx context.Context, src, dst string) error {
	srcKey, err := s.objectKey(ctx, src)
	if err != nil {
		return err
	}
	dstKey, err := s.objectKey(ctx, dst)
	if err != nil {
		return err
	}
	input := &s3.CopyObjectInput{
		Bucket:     aws.String(s.bucket),
		Key:        aws.String(dstKey),
		CopySource: aws.String(copySource(s.bucket, srcKey)),
	}
	s.applySSE(&input.ServerSideEncryption, &input.SSEKMSKeyId)
	if _, err := s.client.CopyObject(ctx, input); err != nil {
		if isNotFound(err) {
			return fmt.Errorf("%w: %s", object.ErrNotFound, src)
		}
		return fmt.Errorf("s3 copy object bucket=%s src=%s dst=%s: %w", s.bucket, srcKey, dstKey, err)
	}
	return nil
}

// MakeDirectory is a no-op; S3 has no directories.
func (s *Store) MakeDirectory(ctx context.Context, key string) error {
	_, err := s.objectKey(ctx, key)
	return err
}

// PublicURL returns the configured public base or the virtual-hosted bucket URL.
func (s *Store) PublicURL(key string) string {
	objectKey := applyPrefix(s.prefix, key)
	if s.publicBase != "" {
		return s.publicBase + "/" + objectKey
	}
	if s.region == "" {
		return fmt.Sprintf("https://%s.s3.amazonaws.com/%s", s.bucket, objectKey)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucket, s.region, objectKey)
}

// PresignPut returns a URL the browser can PUT the file to directly.
func (s *Store) PresignPut(ctx context.Context, key, contentType string, expires time.Duration) (string, error) {
	if s.presign == nil {
		return "", errors.New("s3 presign client not configured")
	}
	objectKey, err := s.objectKey(ctx, key)
	if err != nil {
		return "", err
	}
	out, err := s.presign.PresignPutObject(ctx, presignInput(s.bucket, objectKey, contentType), s3.WithPresignExpires(expires))
	if err != nil {
		return "", fmt.Errorf("s3 presign put bucket=%s key=%s: %w", s.bucket, objectKey, err)
	}
	return out.URL, nil
}

// presignInput leaves Content-Length unsigned so browsers can PUT any size.
func presignInput(bucket, key, contentType string) *s3.PutObjectInput {
	in := &s3.PutObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}
	if contentType != "" {
		in.ContentType = aws.String(contentType)
	}
	return in
}

func (s *Store) applySSE(sse *s3types.ServerSideEncryption, kmsKey **string) {
	if s.kmsKeyID != "" {
		*sse = s3types.ServerSideEncryptionAwsKms
		*kmsKey = aws.String(s.kmsKeyID)
		return
	}
	*sse = s3types.ServerSideEncryptionAes256
}

func (s *Store) objectKey(ctx context.Context, key string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	clean, err := object.CleanKey(key)
	if err != nil {
		return "", err
	}
	return applyPrefix(s.prefix, clean), nil
}

func isNotFound(err error) bool {
	var nsk *s3types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var nf *s3types.NotFound
	return errors.As(err, &nf)
}

func copySource(bucket, key string) string {
	parts := strings.Split(key, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return bucket + "/" + strings.Join(parts, "/")
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

func normalizePrefix(prefix string) string {
	return strings.Trim(strings.TrimSpace(prefix), "/")
}

func applyPrefix(prefix, key string) string {
	cleanPrefix := strings.Trim(prefix, "/")
	cleanKey := strings.TrimLeft(key, "/")
	if cleanPrefix == "" {
		return cleanKey
	}
	if cleanKey == "" {
		return cleanPrefix
	}
	return cleanPrefix + "/" + cleanKey
}

var _ object.Store = (*Store)(nil)
