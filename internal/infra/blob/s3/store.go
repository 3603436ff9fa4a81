package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	blobcore "cellcore/internal/blob/core"
)

// Config captures the settings needed to talk to an S3-compatible bucket.
//
// Environment variables:
//
//	CELLCORE_BLOB_S3_BUCKET      bucket name (required)
//	CELLCORE_BLOB_S3_REGION      region (default us-east-1)
//	CELLCORE_BLOB_S3_ENDPOINT    custom endpoint for MinIO-style deployments
//	CELLCORE_BLOB_S3_PREFIX      key prefix prepended to every artifact key
//	CELLCORE_BLOB_S3_ACCESS_KEY  static access key (optional)
//	CELLCORE_BLOB_S3_SECRET_KEY  static secret key (optional)
//	CELLCORE_BLOB_S3_PATH_STYLE  "true" to force path-style addressing
type Config struct {
	Bucket       string
	Region       string
	Endpoint     string
	Prefix       string
	AccessKey    string
	SecretKey    string
	UsePathStyle bool
}

// ConfigFromEnv reads Config from the CELLCORE_BLOB_S3_* variables.
func ConfigFromEnv() Config {
	return Config{
		Bucket:       os.Getenv("CELLCORE_BLOB_S3_BUCKET"),
		Region:       os.Getenv("CELLCORE_BLOB_S3_REGION"),
		Endpoint:     os.Getenv("CELLCORE_BLOB_S3_ENDPOINT"),
		Prefix:       os.Getenv("CELLCORE_BLOB_S3_PREFIX"),
		AccessKey:    os.Getenv("CELLCORE_BLOB_S3_ACCESS_KEY"),
		SecretKey:    os.Getenv("CELLCORE_BLOB_S3_SECRET_KEY"),
		UsePathStyle: strings.EqualFold(os.Getenv("CELLCORE_BLOB_S3_PATH_STYLE"), "true"),
	}
}

// Client is the subset of the S3 API the store uses. Tests supply fakes.
type Client interface {
	PutObject(ctx context.Context, in *awss3.PutObjectInput, optFns ...func(*awss3.Options)) (*awss3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *awss3.GetObjectInput, optFns ...func(*awss3.Options)) (*awss3.GetObjectOutput, error)
	HeadObject(ctx context.Context, in *awss3.HeadObjectInput, optFns ...func(*awss3.Options)) (*awss3.HeadObjectOutput, error)
	DeleteObject(ctx context.Context, in *awss3.DeleteObjectInput, optFns ...func(*awss3.Options)) (*awss3.DeleteObjectOutput, error)
	ListObjectsV2(ctx context.Context, in *awss3.ListObjectsV2Input, optFns ...func(*awss3.Options)) (*awss3.ListObjectsV2Output, error)
}

// Store implements blobcore.Store on an S3 bucket.
type Store struct {
	client Client
	bucket string
	prefix string
}

var _ blobcore.Store = (*Store)(nil)

// NewStore builds an S3-backed artifact store from cfg, loading the AWS
// configuration chain and applying static credentials when both keys are set.
func NewStore(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 blob store requires bucket")
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(region),
	}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := awss3.NewFromConfig(awsCfg, func(o *awss3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})
	return NewStoreWithClient(client, cfg.Bucket, cfg.Prefix), nil
}

// NewStoreWithClient wires a store over an existing client. Intended for
// tests and callers that manage their own AWS configuration.
func NewStoreWithClient(client Client, bucket, prefix string) *Store {
	return &Store{client: client, bucket: bucket, prefix: strings.Trim(prefix, "/")}
}

// Driver reports the backend driver.
func (s *Store) Driver() blobcore.Driver { return blobcore.DriverS3 }

func (s *Store) objectKey(key string) string {
	if s.prefix == "" {
		return key
	}
	return s.prefix + "/" + key
}

func (s *Store) artifactKey(objectKey string) string {
	if s.prefix == "" {
		return objectKey
	}
	return strings.TrimPrefix(objectKey, s.prefix+"/")
}

// Put uploads the artifact, replacing any existing object at the key.
func (s *Store) Put(ctx context.Context, key string, r io.Reader, opts blobcore.PutOptions) (blobcore.Info, error) {
	in := &awss3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(key)),
		Body:   r,
	}
	if opts.ContentType != "" {
		in.ContentType = aws.String(opts.ContentType)
	}
	if len(opts.Metadata) > 0 {
		in.Metadata = opts.Metadata
	}
	out, err := s.client.PutObject(ctx, in)
	if err != nil {
		return blobcore.Info{}, fmt.Errorf("put object %q: %w", key, err)
	}
	info, err := s.Head(ctx, key)
	if err != nil {
		// The upload succeeded; fall back to what the put response carries.
		info = blobcore.Info{Key: key, ContentType: opts.ContentType, Metadata: opts.Metadata}
		if out.ETag != nil {
			info.ETag = strings.Trim(*out.ETag, `"`)
		}
	}
	return info, nil
}

// Get downloads the artifact.
func (s *Store) Get(ctx context.Context, key string) (blobcore.Info, io.ReadCloser, error) {
	out, err := s.client.GetObject(ctx, &awss3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(key)),
	})
	if err != nil {
		if isNotFound(err) {
			return blobcore.Info{}, nil, blobcore.ErrNotFound
		}
		return blobcore.Info{}, nil, fmt.Errorf("get object %q: %w", key, err)
	}
	info := blobcore.Info{Key: key, Metadata: out.Metadata}
	if out.ContentLength != nil {
		info.Size = *out.ContentLength
	}
	if out.ContentType != nil {
		info.ContentType = *out.ContentType
	}
	if out.ETag != nil {
		info.ETag = strings.Trim(*out.ETag, `"`)
	}
	if out.LastModified != nil {
		info.LastModified = *out.LastModified
	}
	return info, out.Body, nil
}

// Head fetches artifact metadata without the body.
func (s *Store) Head(ctx context.Context, key string) (blobcore.Info, error) {
	out, err := s.client.HeadObject(ctx, &awss3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(key)),
	})
	if err != nil {
		if isNotFound(err) {
			return blobcore.Info{}, blobcore.ErrNotFound
		}
		return blobcore.Info{}, fmt.Errorf("head object %q: %w", key, err)
	}
	info := blobcore.Info{Key: key, Metadata: out.Metadata}
	if out.ContentLength != nil {
		info.Size = *out.ContentLength
	}
	if out.ContentType != nil {
		info.ContentType = *out.ContentType
	}
	if out.ETag != nil {
		info.ETag = strings.Trim(*out.ETag, `"`)
	}
	if out.LastModified != nil {
		info.LastModified = *out.LastModified
	}
	return info, nil
}

// Delete removes the artifact, reporting whether it existed.
func (s *Store) Delete(ctx context.Context, key string) (bool, error) {
	if _, err := s.Head(ctx, key); err != nil {
		if errors.Is(err, blobcore.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	_, err := s.client.DeleteObject(ctx, &awss3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(key)),
	})
	if err != nil {
		return false, fmt.Errorf("delete object %q: %w", key, err)
	}
	return true, nil
}

// List pages through the bucket collecting artifacts under prefix.
func (s *Store) List(ctx context.Context, prefix string) ([]blobcore.Info, error) {
	var infos []blobcore.Info
	var token *string
	for {
		out, err := s.client.ListObjectsV2(ctx, &awss3.ListObjectsV2Input{
			Bucket:            aws.String(s.bucket),
			Prefix:            aws.String(s.objectKey(prefix)),
			ContinuationToken: token,
		})
		if err != nil {
			return nil, fmt.Errorf("list objects: %w", err)
		}
		for _, obj := range out.Contents {
			if obj.Key == nil {
				continue
			}
			info := blobcore.Info{Key: s.artifactKey(*obj.Key)}
			if obj.Size != nil {
				info.Size = *obj.Size
			}
			if obj.ETag != nil {
				info.ETag = strings.Trim(*obj.ETag, `"`)
			}
			if obj.LastModified != nil {
				info.LastModified = *obj.LastModified
			}
			infos = append(infos, info)
		}
		if out.IsTruncated == nil || !*out.IsTruncated {
			break
		}
		token = out.NextContinuationToken
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Key < infos[j].Key })
	return infos, nil
}

func isNotFound(err error) bool {
	var noKey *s3types.NoSuchKey
	if errors.As(err, &noKey) {
		return true
	}
	var notFound *s3types.NotFound
	return errors.As(err, &notFound)
}
