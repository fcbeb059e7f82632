package s3

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/fastygo/catalog-sync/domain"
)

type fakeBucket struct {
	objects  map[string][]byte
	putCalls int
	failPuts int
}

func (f *fakeBucket) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.putCalls++
	if f.failPuts > 0 {
		f.failPuts--
		return nil, errors.New("slow down")
	}
	body, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[aws.ToString(in.Key)] = body
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeBucket) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	body, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(body))}, nil
}

func (f *fakeBucket) HeadBucket(context.Context, *s3.HeadBucketInput, ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	return &s3.HeadBucketOutput{}, nil
}

func TestSnapshotStoreRetriesAndReadsBack(t *testing.T) {
	bucket := &fakeBucket{objects: map[string][]byte{}, failPuts: 1}
	store := NewSnapshotStore(bucket, "catalog-bucket", 0)
	store.backoff = 0

	ctx := context.Background()
	if err := store.Put(ctx, "catalogs/o1/catalog.json", []byte(`{"owner_id":"o1"}`)); err != nil {
		t.Fatalf("put: %v", err)
	}
	if bucket.putCalls != 2 {
		t.Fatalf("expected one retry, got %d calls", bucket.putCalls)
	}

	body, err := store.Get(ctx, "catalogs/o1/catalog.json")
	if err != nil || string(body) != `{"owner_id":"o1"}` {
		t.Fatalf("unexpected read back %q %v", body, err)
	}

	if _, err := store.Get(ctx, "catalogs/o2/catalog.json"); !errors.Is(err, domain.ErrSnapshotNotFound) {
		t.Fatalf("expected snapshot not found, got %v", err)
	}
}
