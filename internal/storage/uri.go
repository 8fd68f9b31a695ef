package storage

import (
	"fmt"
	"strings"
)

// Scheme identifies a storage provider.
type Scheme string

const (
	SchemeGCS Scheme = "gs"
	SchemeS3  Scheme = "s3"
)

// URI addresses a virtual folder inside a bucket. Prefix never starts with a
// slash and, unless empty, always ends with one.
type URI struct {
	Scheme Scheme `json:"scheme"`
	Bucket string `json:"bucket"`
	Prefix string `json:"prefix"`
}

// ParseURI parses gs://bucket/prefix/ and s3://bucket/prefix/ strings.
// Surrounding whitespace is ignored and the prefix is cleaned so that
// "gs://b/a/b" and "gs://b//a/b/" address the same folder.
func ParseURI(raw string) (URI, error) {
	raw = strings.TrimSpace(raw)

	scheme, rest, ok := strings.Cut(raw, "://")
	if !ok {
		return URI{}, NewError(KindUnsupportedScheme, "parse", fmt.Errorf("%q has no scheme", raw))
	}

	s := Scheme(strings.ToLower(scheme))
	if s != SchemeGCS && s != SchemeS3 {
		return URI{}, NewError(KindUnsupportedScheme, "parse", fmt.Errorf("scheme %q", scheme))
	}

	bucket, prefix, _ := strings.Cut(rest, "/")
	if bucket == "" {
		return URI{}, NewError(KindUnsupportedScheme, "parse", fmt.Errorf("%q has no bucket", raw))
	}

	return URI{Scheme: s, Bucket: bucket, Prefix: CleanPrefix(prefix)}, nil
}

// CleanPrefix strips leading slashes and enforces a single trailing slash on
// a non-empty prefix.
func CleanPrefix(prefix string) string {
	prefix = strings.TrimSpace(prefix)
	prefix = strings.TrimLeft(prefix, "/")
	prefix = strings.TrimRight(prefix, "/")
	if prefix == "" {
		return ""
	}
	return prefix + "/"
}

// String renders the URI as scheme://bucket/prefix.
func (u URI) String() string {
	return fmt.Sprintf("%s://%s/%s", u.Scheme, u.Bucket, u.Prefix)
}

// ObjectURL renders the full URL of an object key within the URI's bucket.
func (u URI) ObjectURL(key string) string {
	return fmt.Sprintf("%s://%s/%s", u.Scheme, u.Bucket, key)
}

// Parent returns the URI one level up. The bucket root is its own parent.
func (u URI) Parent() URI {
	trimmed := strings.TrimSuffix(u.Prefix, "/")
	i := strings.LastIndex(trimmed, "/")
	if i < 0 {
		u.Prefix = ""
		return u
	}
	u.Prefix = trimmed[:i+1]
	return u
}

// Child returns the URI of the named sub-folder.
func (u URI) Child(name string) URI {
	u.Prefix = CleanPrefix(u.Prefix + strings.Trim(name, "/"))
	return u
}

// WithPrefix returns a copy of u addressing prefix instead.
func (u URI) WithPrefix(prefix string) URI {
	u.Prefix = CleanPrefix(prefix)
	return u
}
