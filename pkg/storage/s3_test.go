package storage

import (
	"bytes"
	"context"
	"io"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// fakeS3 is an in-memory S3API for tests.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string]map[string][]byte
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: make(map[string]map[string][]byte)}
}

func (f *fakeS3) GetObject(_ context.Context, params *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, ok := f.objects[*params.Bucket][*params.Key]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeS3) PutObject(_ context.Context, params *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	bucket := f.objects[*params.Bucket]
	if bucket == nil {
		bucket = make(map[string][]byte)
		f.objects[*params.Bucket] = bucket
	}
	bucket[*params.Key] = data
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) DeleteObject(_ context.Context, params *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	delete(f.objects[*params.Bucket], *params.Key)
	return &s3.DeleteObjectOutput{}, nil
}

func TestS3StorageRoundTrip(t *testing.T) {
	client := newFakeS3()
	s := NewS3Storage(client, "bucket")

	mustAbsent(t, s, "a")

	if err := s.SetItem("a", "1"); err != nil {
		t.Fatalf("SetItem: %v", err)
	}
	if got := mustGet(t, s, "a"); got != "1" {
		t.Errorf("expected 1, got %q", got)
	}

	// Objects are stored under the prefix.
	if _, ok := client.objects["bucket"]["vueuse-kv/a"]; !ok {
		t.Errorf("expected prefixed object key, have %v", client.objects["bucket"])
	}

	if err := s.RemoveItem("a"); err != nil {
		t.Fatalf("RemoveItem: %v", err)
	}
	mustAbsent(t, s, "a")
}

func TestS3StorageCustomPrefix(t *testing.T) {
	client := newFakeS3()
	s := NewS3Storage(client, "bucket", WithS3Prefix("settings/"))

	s.SetItem("theme", "dark")

	if got := string(client.objects["bucket"]["settings/theme"]); got != "dark" {
		t.Errorf("expected object under settings/, got %q", got)
	}
}
