// Package snapshot periodically archives the durable store to an
// S3-compatible object store (spec.md's "Availability and Disaster
// Recovery" operational requirement: the core must survive node loss
// without losing committed position/inventory/locate state).
package snapshot

import (
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Config names the bucket and S3-compatible endpoint a Service archives
// to (spec.md §6: S3Endpoint/S3Region/SnapshotBucket are the operator's
// object-store coordinates; an empty S3Endpoint targets AWS S3 itself,
// a non-empty one targets an S3-compatible provider such as Cloudflare
// R2 or MinIO).
type S3Config struct {
	Bucket          string
	Endpoint        string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
}

// s3Client is the thin object-store surface Service needs: upload, list,
// delete. It is satisfied by *s3Adapter in production and by a fake in
// tests.
type s3Client interface {
	Upload(ctx context.Context, key string, body io.Reader, size int64) error
	List(ctx context.Context, prefix string) ([]objectInfo, error)
	Delete(ctx context.Context, key string) error
}

type objectInfo struct {
	Key  string
	Size int64
}

type s3Adapter struct {
	bucket   string
	client   *s3.Client
	uploader *manager.Uploader
}

// newS3Adapter builds an aws-sdk-go-v2 S3 client pointed at cfg's endpoint
// (or AWS's default endpoint resolution when Endpoint is empty), the way
// an S3-compatible object store is wired when no in-pack client wrapper
// exists to adapt (see DESIGN.md).
func newS3Adapter(ctx context.Context, cfg S3Config) (*s3Adapter, error) {
	var opts []func(*awsconfig.LoadOptions) error
	opts = append(opts, awsconfig.WithRegion(cfg.Region))
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &s3Adapter{
		bucket:   cfg.Bucket,
		client:   client,
		uploader: manager.NewUploader(client),
	}, nil
}

func (a *s3Adapter) Upload(ctx context.Context, key string, body io.Reader, size int64) error {
	_, err := a.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(a.bucket),
		Key:           aws.String(key),
		Body:          body,
		ContentLength: aws.Int64(size),
	})
	return err
}

func (a *s3Adapter) List(ctx context.Context, prefix string) ([]objectInfo, error) {
	var out []objectInfo
	paginator := s3.NewListObjectsV2Paginator(a.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(a.bucket),
		Prefix: aws.String(prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list objects: %w", err)
		}
		for _, obj := range page.Contents {
			if obj.Key == nil {
				continue
			}
			var size int64
			if obj.Size != nil {
				size = *obj.Size
			}
			out = append(out, objectInfo{Key: *obj.Key, Size: size})
		}
	}
	return out, nil
}

func (a *s3Adapter) Delete(ctx context.Context, key string) error {
	_, err := a.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(key),
	})
	return err
}
