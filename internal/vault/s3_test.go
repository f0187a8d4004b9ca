package vault

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"hawk-go/internal/config"
)

type fakeObject struct {
	data     []byte
	metadata map[string]string
}

// fakeS3 keeps objects in memory. Multipart uploads are not supported, so
// snapshots in tests stay below the uploader part size.
type fakeS3 struct {
	mu        sync.Mutex
	bucket    string
	objects   map[string]fakeObject
	lastInput *s3.PutObjectInput
}

func newFakeS3(bucket string) *fakeS3 {
	return &fakeS3{bucket: bucket, objects: make(map[string]fakeObject)}
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastInput = in
	f.objects[aws.ToString(in.Key)] = fakeObject{data: data, metadata: in.Metadata}
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	obj, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(obj.data))}, nil
}

func (f *fakeS3) HeadObject(_ context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	obj, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NotFound{}
	}
	return &s3.HeadObjectOutput{Metadata: obj.metadata}, nil
}

func (f *fakeS3) HeadBucket(_ context.Context, in *s3.HeadBucketInput, _ ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	if aws.ToString(in.Bucket) != f.bucket {
		return nil, &types.NotFound{}
	}
	return &s3.HeadBucketOutput{}, nil
}

var errMultipart = errors.New("multipart upload not supported by fake")

func (f *fakeS3) UploadPart(context.Context, *s3.UploadPartInput, ...func(*s3.Options)) (*s3.UploadPartOutput, error) {
	return nil, errMultipart
}

func (f *fakeS3) CreateMultipartUpload(context.Context, *s3.CreateMultipartUploadInput, ...func(*s3.Options)) (*s3.CreateMultipartUploadOutput, error) {
	return nil, errMultipart
}

func (f *fakeS3) CompleteMultipartUpload(context.Context, *s3.CompleteMultipartUploadInput, ...func(*s3.Options)) (*s3.CompleteMultipartUploadOutput, error) {
	return nil, errMultipart
}

func (f *fakeS3) AbortMultipartUpload(context.Context, *s3.AbortMultipartUploadInput, ...func(*s3.Options)) (*s3.AbortMultipartUploadOutput, error) {
	return nil, errMultipart
}

func TestS3Vault(t *testing.T) {
	testVault(t, newS3Vault("test", "hawk-backups", "prod", newFakeS3("hawk-backups")))
}

func TestS3Vault_ObjectLayout(t *testing.T) {
	client := newFakeS3("hawk-backups")
	v := newS3Vault("test", "hawk-backups", "prod", client)

	data := "encrypted"
	if err := v.PutSnapshot("node-1", strings.NewReader(data), int64(len(data)), 7); err != nil {
		t.Fatalf("PutSnapshot() error = %v", err)
	}

	in := client.lastInput
	if got := aws.ToString(in.Bucket); got != "hawk-backups" {
		t.Errorf("Bucket = %q, want %q", got, "hawk-backups")
	}
	if got, want := aws.ToString(in.Key), "prod/snapshots/node-1.snap"; got != want {
		t.Errorf("Key = %q, want %q", got, want)
	}
	if got := in.Metadata[versionMetadataKey]; got != "7" {
		t.Errorf("Metadata[%s] = %q, want %q", versionMetadataKey, got, "7")
	}
}

func TestS3Vault_ValidateSetup(t *testing.T) {
	v := newS3Vault("test", "missing", "", newFakeS3("hawk-backups"))
	if err := v.ValidateSetup(); err == nil {
		t.Error("ValidateSetup() expected error for missing bucket")
	}
}

func TestS3Vault_MissingVersionMetadata(t *testing.T) {
	client := newFakeS3("b")
	client.objects["snapshots/node.snap"] = fakeObject{data: []byte("x")}
	v := newS3Vault("test", "b", "", client)

	if _, err := v.GetSnapshotVersion("node"); err == nil {
		t.Error("GetSnapshotVersion() expected error for object without version")
	}
}

func TestNewS3Vault(t *testing.T) {
	t.Setenv("AWS_CONFIG_FILE", "/nonexistent")
	t.Setenv("AWS_SHARED_CREDENTIALS_FILE", "/nonexistent")

	if _, err := NewS3Vault(context.Background(), config.VaultConfig{Type: "s3"}); err == nil {
		t.Error("NewS3Vault() expected error without bucket")
	}

	v, err := NewS3Vault(context.Background(), config.VaultConfig{
		Type:              "s3",
		Name:              "remote",
		S3Bucket:          "hawk-backups",
		S3Region:          "eu-west-1",
		S3Endpoint:        "http://localhost:9000",
		S3AccessKeyID:     "key",
		S3SecretAccessKey: "secret",
	})
	if err != nil {
		t.Fatalf("NewS3Vault() error = %v", err)
	}
	if v.bucket != "hawk-backups" || v.name != "remote" {
		t.Errorf("vault = %+v", v)
	}
}
