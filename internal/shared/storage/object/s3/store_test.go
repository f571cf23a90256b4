package s3

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"esign-backend/internal/shared/storage/object"
)

type fakeS3 struct {
	objects map[string][]byte
	puts    []*s3.PutObjectInput
	copies  []*s3.CopyObjectInput
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: map[string][]byte{}}
}

func (f *fakeS3) HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	if _, ok := f.objects[aws.ToString(params.Key)]; !ok {
		return nil, &s3types.NotFound{}
	}
	return &s3.HeadObjectOutput{}, nil
}

func (f *fakeS3) GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	data, ok := f.objects[aws.ToString(params.Key)]
	if !ok {
		return nil, &s3types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeS3) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, err
	}
	f.objects[aws.ToString(params.Key)] = data
	f.puts = append(f.puts, params)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	delete(f.objects, aws.ToString(params.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func (f *fakeS3) CopyObject(ctx context.Context, params *s3.CopyObjectInput, optFns ...func(*s3.Options)) (*s3.CopyObjectOutput, error) {
	f.copies = append(f.copies, params)
	return &s3.CopyObjectOutput{}, nil
}

func TestApplyPrefix(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		prefix string
		key    string
		want   string
	}{
		{name: "no prefix", prefix: "", key: "docs/originals/file.pdf", want: "docs/originals/file.pdf"},
		{name: "simple prefix", prefix: "root", key: "docs/originals/file.pdf", want: "root/docs/originals/file.pdf"},
		{name: "prefix trailing slash", prefix: "root/", key: "docs/originals/file.pdf", want: "root/docs/originals/file.pdf"},
		{name: "prefix and key slashes", prefix: "/root/", key: "/docs/originals/file.pdf", want: "root/docs/originals/file.pdf"},
		{name: "nested prefix", prefix: "root/sub", key: "docs/signed/file.pdf", want: "root/sub/docs/signed/file.pdf"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := applyPrefix(tt.prefix, tt.key); got != tt.want {
				t.Fatalf("applyPrefix(%q, %q) = %q, want %q", tt.prefix, tt.key, got, tt.want)
			}
		})
	}
}

func TestStoreMapsMissingObjects(t *testing.T) {
	ctx := context.Background()
	fake := newFakeS3()
	store := &Store{client: fake, bucket: "bucket", prefix: "tenant"}

	ok, err := store.Exists(ctx, "docs/signed/a_signed.pdf")
	if err != nil || ok {
		t.Fatalf("Exists = %v, %v; want false, nil", ok, err)
	}
	if _, err := store.Get(ctx, "docs/signed/a_signed.pdf"); !errors.Is(err, object.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestStorePutUsesPrefixAndEncryption(t *testing.T) {
	ctx := context.Background()
	fake := newFakeS3()
	store := &Store{client: fake, bucket: "bucket", prefix: "tenant", kmsKeyID: "kms-1"}

	if err := store.Put(ctx, "docs/audit/a_audit.pdf", []byte("%PDF-1.3")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if len(fake.puts) != 1 {
		t.Fatalf("expected one put, got %d", len(fake.puts))
	}
	put := fake.puts[0]
	if aws.ToString(put.Key) != "tenant/docs/audit/a_audit.pdf" {
		t.Fatalf("unexpected key %q", aws.ToString(put.Key))
	}
	if aws.ToString(put.ContentType) != "application/pdf" {
		t.Fatalf("unexpected content type %q", aws.ToString(put.ContentType))
	}
	if put.ServerSideEncryption != s3types.ServerSideEncryptionAwsKms || aws.ToString(put.SSEKMSKeyId) != "kms-1" {
		t.Fatalf("expected kms encryption, got %v", put.ServerSideEncryption)
	}

	got, err := store.Get(ctx, "docs/audit/a_audit.pdf")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != "%PDF-1.3" {
		t.Fatalf("unexpected body %q", got)
	}
}

func TestStoreCopyEscapesSource(t *testing.T) {
	fake := newFakeS3()
	store := &Store{client: fake, bucket: "bucket"}

	if err := store.Copy(context.Background(), "docs/originals/my file.pdf", "docs/signed/my file_signed.pdf"); err != nil {
		t.Fatalf("Copy: %v", err)
	}
	if len(fake.copies) != 1 {
		t.Fatalf("expected one copy, got %d", len(fake.copies))
	}
	if got := aws.ToString(fake.copies[0].CopySource); got != "bucket/docs/originals/my%20file.pdf" {
		t.Fatalf("unexpected copy source %q", got)
	}
}

func TestPublicURL(t *testing.T) {
	store := &Store{bucket: "bucket", region: "eu-west-1", prefix: "tenant"}
	if got := store.PublicURL("docs/signed/a.pdf"); got != "https://bucket.s3.eu-west-1.amazonaws.com/tenant/docs/signed/a.pdf" {
		t.Fatalf("unexpected url %q", got)
	}
	store.publicBase = "https://cdn.example.com"
	if got := store.PublicURL("docs/signed/a.pdf"); got != "https://cdn.example.com/tenant/docs/signed/a.pdf" {
		t.Fatalf("unexpected url %q", got)
	}
}

func TestPresignSignedHeadersExcludeContentLength(t *testing.T) {
	cfg := aws.Config{
		Region:      "us-east-1",
		Credentials: aws.NewCredentialsCache(credentials.NewStaticCredentialsProvider("AKID", "SECRET", "")),
	}
	store := &Store{
		client:  newFakeS3(),
		presign: s3.NewPresignClient(s3.NewFromConfig(cfg)),
		bucket:  "bucket",
		prefix:  normalizePrefix("esign"),
	}

	raw, err := store.PresignPut(context.Background(), "originals/abc/file.pdf", "application/pdf", 15*time.Minute)
	if err != nil {
		t.Fatalf("presign: %v", err)
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse url: %v", err)
	}
	if !strings.HasSuffix(parsed.Path, "/esign/originals/abc/file.pdf") {
		t.Fatalf("unexpected presigned path %s", parsed.Path)
	}

	signed := parsed.Query().Get("X-Amz-SignedHeaders")
	if signed == "" {
		t.Fatalf("expected X-Amz-SignedHeaders")
	}
	if strings.Contains(signed, "content-length") {
		t.Fatalf("unexpected content-length in signed headers: %s", signed)
	}
	if !strings.Contains(signed, "host") {
		t.Fatalf("expected host in signed headers: %s", signed)
	}
}

func TestPresignRejectsTraversal(t *testing.T) {
	store := &Store{client: newFakeS3(), presign: s3.NewPresignClient(s3.New(s3.Options{Region: "us-east-1"})), bucket: "bucket"}
	if _, err := store.PresignPut(context.Background(), "../escape.pdf", "application/pdf", time.Minute); err == nil {
		t.Fatalf("expected traversal key to be rejected")
	}
}
