package s3

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	blobcore "cellcore/internal/blob/core"
)

type fakeObject struct {
	data        []byte
	contentType string
	metadata    map[string]string
	modified    time.Time
}

type fakeClient struct {
	objects map[string]fakeObject
}

func newFakeClient() *fakeClient {
	return &fakeClient{objects: make(map[string]fakeObject)}
}

func (f *fakeClient) PutObject(ctx context.Context, in *awss3.PutObjectInput, _ ...func(*awss3.Options)) (*awss3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	obj := fakeObject{data: data, metadata: in.Metadata, modified: time.Now().UTC()}
	if in.ContentType != nil {
		obj.contentType = *in.ContentType
	}
	f.objects[*in.Key] = obj
	return &awss3.PutObjectOutput{ETag: aws.String(`"fake-etag"`)}, nil
}

func (f *fakeClient) GetObject(ctx context.Context, in *awss3.GetObjectInput, _ ...func(*awss3.Options)) (*awss3.GetObjectOutput, error) {
	obj, ok := f.objects[*in.Key]
	if !ok {
		return nil, &s3types.NoSuchKey{}
	}
	return &awss3.GetObjectOutput{
		Body:          io.NopCloser(bytes.NewReader(obj.data)),
		ContentLength: aws.Int64(int64(len(obj.data))),
		ContentType:   aws.String(obj.contentType),
		ETag:          aws.String(`"fake-etag"`),
		LastModified:  aws.Time(obj.modified),
		Metadata:      obj.metadata,
	}, nil
}

func (f *fakeClient) HeadObject(ctx context.Context, in *awss3.HeadObjectInput, _ ...func(*awss3.Options)) (*awss3.HeadObjectOutput, error) {
	obj, ok := f.objects[*in.Key]
	if !ok {
		return nil, &s3types.NotFound{}
	}
	return &awss3.HeadObjectOutput{
		ContentLength: aws.Int64(int64(len(obj.data))),
		ContentType:   aws.String(obj.contentType),
		ETag:          aws.String(`"fake-etag"`),
		LastModified:  aws.Time(obj.modified),
		Metadata:      obj.metadata,
	}, nil
}

func (f *fakeClient) DeleteObject(ctx context.Context, in *awss3.DeleteObjectInput, _ ...func(*awss3.Options)) (*awss3.DeleteObjectOutput, error) {
	delete(f.objects, *in.Key)
	return &awss3.DeleteObjectOutput{}, nil
}

func (f *fakeClient) ListObjectsV2(ctx context.Context, in *awss3.ListObjectsV2Input, _ ...func(*awss3.Options)) (*awss3.ListObjectsV2Output, error) {
	out := &awss3.ListObjectsV2Output{IsTruncated: aws.Bool(false)}
	prefix := ""
	if in.Prefix != nil {
		prefix = *in.Prefix
	}
	for key, obj := range f.objects {
		if strings.HasPrefix(key, prefix) {
			out.Contents = append(out.Contents, s3types.Object{
				Key:          aws.String(key),
				Size:         aws.Int64(int64(len(obj.data))),
				ETag:         aws.String(`"fake-etag"`),
				LastModified: aws.Time(obj.modified),
			})
		}
	}
	return out, nil
}

func TestS3StoreRoundTripWithPrefix(t *testing.T) {
	client := newFakeClient()
	store := NewStoreWithClient(client, "bucket", "cellcore/")
	ctx := context.Background()

	info, err := store.Put(ctx, "models/scvi/manifest.json", strings.NewReader(`{"v":1}`), blobcore.PutOptions{
		ContentType: "application/json",
		Metadata:    map[string]string{"model": "scvi"},
	})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if info.Key != "models/scvi/manifest.json" {
		t.Fatalf("info key should not carry bucket prefix: %q", info.Key)
	}
	if _, ok := client.objects["cellcore/models/scvi/manifest.json"]; !ok {
		t.Fatalf("object stored under wrong key: %v", client.objects)
	}

	got, rc, err := store.Get(ctx, "models/scvi/manifest.json")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer rc.Close()
	data, _ := io.ReadAll(rc)
	if string(data) != `{"v":1}` {
		t.Fatalf("unexpected payload %q", data)
	}
	if got.ContentType != "application/json" || got.Metadata["model"] != "scvi" {
		t.Fatalf("metadata not preserved: %+v", got)
	}
}

func TestS3StoreNotFoundMapsToSentinel(t *testing.T) {
	store := NewStoreWithClient(newFakeClient(), "bucket", "")
	ctx := context.Background()
	if _, _, err := store.Get(ctx, "absent"); !errors.Is(err, blobcore.ErrNotFound) {
		t.Fatalf("get: expected ErrNotFound, got %v", err)
	}
	if _, err := store.Head(ctx, "absent"); !errors.Is(err, blobcore.ErrNotFound) {
		t.Fatalf("head: expected ErrNotFound, got %v", err)
	}
	existed, err := store.Delete(ctx, "absent")
	if err != nil || existed {
		t.Fatalf("delete absent: existed=%v err=%v", existed, err)
	}
}

func TestS3StoreListStripsPrefix(t *testing.T) {
	client := newFakeClient()
	store := NewStoreWithClient(client, "bucket", "cellcore")
	ctx := context.Background()
	for _, key := range []string{"models/a/manifest.json", "models/b/manifest.json"} {
		if _, err := store.Put(ctx, key, strings.NewReader("x"), blobcore.PutOptions{}); err != nil {
			t.Fatalf("put %s: %v", key, err)
		}
	}
	infos, err := store.List(ctx, "models/")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(infos) != 2 {
		t.Fatalf("expected 2 artifacts, got %d", len(infos))
	}
	for _, info := range infos {
		if strings.HasPrefix(info.Key, "cellcore/") {
			t.Fatalf("listed key carries store prefix: %q", info.Key)
		}
	}
}
