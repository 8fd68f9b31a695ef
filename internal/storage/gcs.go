package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"cloud.google.com/go/storage"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// GCSBucket lists and reads objects in a Google Cloud Storage bucket.
type GCSBucket struct {
	client *storage.Client
	uri    URI
}

// newGCSBucket creates a GCSBucket for uri. The credential variant decides
// which client options are passed to the GCS client.
func newGCSBucket(ctx context.Context, uri URI, creds Credentials) (*GCSBucket, error) {
	opts, err := gcsClientOptions(ctx, creds)
	if err != nil {
		return nil, err
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, classify("connect", fmt.Errorf("failed to create GCS client: %w", err))
	}
	return &GCSBucket{client: client, uri: URI{Scheme: SchemeGCS, Bucket: uri.Bucket}}, nil
}

func gcsClientOptions(ctx context.Context, creds Credentials) ([]option.ClientOption, error) {
	switch c := creds.(type) {
	case GCSAnonymous:
		return []option.ClientOption{option.WithoutAuthentication()}, nil

	case ServiceAccountJSON:
		if !json.Valid(c.Data) {
			return nil, NewError(KindInvalidCredentials, "connect", fmt.Errorf("service account key is not valid JSON"))
		}
		gc, err := google.CredentialsFromJSONWithType(ctx, c.Data, google.ServiceAccount, storage.ScopeReadOnly)
		if err != nil {
			return nil, NewError(KindInvalidCredentials, "connect", err)
		}
		return []option.ClientOption{option.WithCredentials(gc)}, nil

	case ApplicationDefault:
		gc, err := google.FindDefaultCredentials(ctx, storage.ScopeReadOnly)
		if err != nil {
			return nil, NewError(KindNoAmbientCredentials, "connect", err)
		}
		return []option.ClientOption{option.WithCredentials(gc)}, nil
	}
	return nil, NewError(KindInvalidCredentials, "connect", fmt.Errorf("%T is not a GCS credential", creds))
}

func (b *GCSBucket) URI() URI { return b.uri }

// List performs a delimited listing so only direct children of prefix are
// returned; deeper keys arrive folded into prefix entries.
func (b *GCSBucket) List(ctx context.Context, prefix string) ([]Object, error) {
	it := b.client.Bucket(b.uri.Bucket).Objects(ctx, &storage.Query{
		Prefix:    prefix,
		Delimiter: "/",
	})

	var objects []Object
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, classify("list", fmt.Errorf("gs://%s/%s: %w", b.uri.Bucket, prefix, err))
		}
		if attrs.Prefix != "" {
			objects = append(objects, Object{Key: attrs.Prefix, IsPrefix: true})
			continue
		}
		objects = append(objects, Object{Key: attrs.Name})
	}
	return objects, nil
}

// Read downloads the object at key in full.
func (b *GCSBucket) Read(ctx context.Context, key string) ([]byte, error) {
	r, err := b.client.Bucket(b.uri.Bucket).Object(key).NewReader(ctx)
	if err != nil {
		return nil, classify("read", fmt.Errorf("gs://%s/%s: %w", b.uri.Bucket, key, err))
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, classify("read", fmt.Errorf("gs://%s/%s: %w", b.uri.Bucket, key, err))
	}
	return data, nil
}

func (b *GCSBucket) Close() error {
	return b.client.Close()
}

// check fetches at most one entry under prefix.
func (b *GCSBucket) check(ctx context.Context, prefix string) error {
	it := b.client.Bucket(b.uri.Bucket).Objects(ctx, &storage.Query{
		Prefix:    prefix,
		Delimiter: "/",
	})
	it.PageInfo().MaxSize = 1

	if _, err := it.Next(); err != nil && err != iterator.Done {
		return classify("connect", fmt.Errorf("gs://%s: %w", b.uri.Bucket, err))
	}
	return nil
}
