// Package storage connects to a cloud object store and exposes a small,
// provider-neutral handle for listing one level of a bucket and reading
// object bytes. Google Cloud Storage and Amazon S3 are supported.
package storage

import (
	"context"
	"fmt"
)

// Object is a single entry returned by a delimited listing. Prefix entries
// are the virtual folders the provider folded at the delimiter.
type Object struct {
	// Key is the full object key, or the folder prefix ending in "/" when
	// IsPrefix is set.
	Key string

	IsPrefix bool
}

// Handle is an authenticated session against one bucket.
type Handle interface {
	// URI identifies the bucket root the handle was connected to.
	URI() URI

	// List returns the direct children of prefix, in the order the provider
	// returns them.
	List(ctx context.Context, prefix string) ([]Object, error)

	// Read returns the full content of the object at key.
	Read(ctx context.Context, key string) ([]byte, error)

	Close() error
}

// Connector builds a Handle. Connect is the production implementation;
// callers accept a Connector so tests can substitute their own.
type Connector func(ctx context.Context, uri URI, creds Credentials) (Handle, error)

// ConnectOption customises Connect.
type ConnectOption func(*connectOptions)

type connectOptions struct {
	check bool
}

// WithoutCheck skips the connectivity check normally performed by Connect.
func WithoutCheck() ConnectOption {
	return func(o *connectOptions) { o.check = false }
}

// Connect validates creds against the URI's scheme, builds a provider
// client and, unless WithoutCheck is given, issues a single-entry listing of
// the URI's prefix so that permission and network problems surface here
// rather than on first use.
func Connect(ctx context.Context, uri URI, creds Credentials, opts ...ConnectOption) (Handle, error) {
	o := connectOptions{check: true}
	for _, opt := range opts {
		opt(&o)
	}

	if uri.Scheme != SchemeGCS && uri.Scheme != SchemeS3 {
		return nil, NewError(KindUnsupportedScheme, "connect", fmt.Errorf("scheme %q", uri.Scheme))
	}
	if creds == nil {
		return nil, NewError(KindInvalidCredentials, "connect", fmt.Errorf("no credentials supplied"))
	}
	if creds.scheme() != uri.Scheme {
		return nil, NewError(KindInvalidCredentials, "connect",
			fmt.Errorf("%s credentials cannot be used with %s://", creds.scheme(), uri.Scheme))
	}

	var (
		h   checker
		err error
	)
	switch c := creds.(type) {
	case GCSAnonymous:
		h, err = newGCSBucket(ctx, uri, c)
	case ServiceAccountJSON:
		h, err = newGCSBucket(ctx, uri, c)
	case ApplicationDefault:
		h, err = newGCSBucket(ctx, uri, c)
	case S3Anonymous:
		h, err = newS3Bucket(ctx, uri, c)
	case AccessKeyPair:
		h, err = newS3Bucket(ctx, uri, c)
	default:
		return nil, NewError(KindInvalidCredentials, "connect", fmt.Errorf("unknown credential type %T", creds))
	}
	if err != nil {
		return nil, err
	}

	if o.check {
		if err := h.check(ctx, uri.Prefix); err != nil {
			_ = h.Close()
			return nil, err
		}
	}
	return h, nil
}

type checker interface {
	Handle
	check(ctx context.Context, prefix string) error
}
