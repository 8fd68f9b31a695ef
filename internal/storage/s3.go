package storage

import (
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
)

// DefaultS3Region is used to bootstrap the client when no region is given;
// the bucket's real region is then looked up.
const DefaultS3Region = "us-east-1"

// S3Bucket lists and reads objects in an Amazon S3 bucket.
type S3Bucket struct {
	client *awss3.Client
	uri    URI
}

// newS3Bucket creates an S3Bucket for uri. When the credentials carry no
// region, the bucket's region is resolved with a HeadBucket request.
func newS3Bucket(ctx context.Context, uri URI, creds Credentials) (*S3Bucket, error) {
	var (
		provider aws.CredentialsProvider
		region   string
	)
	switch c := creds.(type) {
	case S3Anonymous:
		provider = aws.AnonymousCredentials{}
		region = c.Region
	case AccessKeyPair:
		if c.KeyID == "" || c.Secret == "" {
			return nil, NewError(KindInvalidCredentials, "connect", fmt.Errorf("access key id and secret access key are required"))
		}
		provider = credentials.NewStaticCredentialsProvider(c.KeyID, c.Secret, c.SessionToken)
		region = c.Region
	default:
		return nil, NewError(KindInvalidCredentials, "connect", fmt.Errorf("%T is not an S3 credential", creds))
	}

	explicitRegion := region != ""
	if !explicitRegion {
		region = DefaultS3Region
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(region),
		awsconfig.WithCredentialsProvider(provider),
	)
	if err != nil {
		return nil, classify("connect", fmt.Errorf("load aws config: %w", err))
	}
	client := awss3.NewFromConfig(cfg)

	if !explicitRegion {
		resolved, err := manager.GetBucketRegion(ctx, client, uri.Bucket)
		if err != nil {
			return nil, classify("connect", fmt.Errorf("s3://%s: resolve region: %w", uri.Bucket, err))
		}
		if resolved != region {
			client = awss3.NewFromConfig(cfg, func(o *awss3.Options) {
				o.Region = resolved
			})
		}
	}

	return &S3Bucket{client: client, uri: URI{Scheme: SchemeS3, Bucket: uri.Bucket}}, nil
}

func (b *S3Bucket) URI() URI { return b.uri }

// List performs a delimited listing so only direct children of prefix are
// returned. Folders arrive as common prefixes after the page's contents.
func (b *S3Bucket) List(ctx context.Context, prefix string) ([]Object, error) {
	p := awss3.NewListObjectsV2Paginator(b.client, &awss3.ListObjectsV2Input{
		Bucket:    aws.String(b.uri.Bucket),
		Prefix:    aws.String(prefix),
		Delimiter: aws.String("/"),
	})

	var objects []Object
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, classify("list", fmt.Errorf("s3://%s/%s: %w", b.uri.Bucket, prefix, err))
		}
		for _, cp := range page.CommonPrefixes {
			objects = append(objects, Object{Key: aws.ToString(cp.Prefix), IsPrefix: true})
		}
		for _, obj := range page.Contents {
			objects = append(objects, Object{Key: aws.ToString(obj.Key)})
		}
	}
	return objects, nil
}

// Read downloads the object at key in full.
func (b *S3Bucket) Read(ctx context.Context, key string) ([]byte, error) {
	out, err := b.client.GetObject(ctx, &awss3.GetObjectInput{
		Bucket: aws.String(b.uri.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, classify("read", fmt.Errorf("s3://%s/%s: %w", b.uri.Bucket, key, err))
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, classify("read", fmt.Errorf("s3://%s/%s: %w", b.uri.Bucket, key, err))
	}
	return data, nil
}

// Close is a no-op; the S3 client holds no resources that need releasing.
func (b *S3Bucket) Close() error { return nil }

func (b *S3Bucket) check(ctx context.Context, prefix string) error {
	_, err := b.client.ListObjectsV2(ctx, &awss3.ListObjectsV2Input{
		Bucket:    aws.String(b.uri.Bucket),
		Prefix:    aws.String(prefix),
		Delimiter: aws.String("/"),
		MaxKeys:   aws.Int32(1),
	})
	if err != nil {
		return classify("connect", fmt.Errorf("s3://%s: %w", b.uri.Bucket, err))
	}
	return nil
}
