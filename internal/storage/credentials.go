package storage

import "fmt"

// Credentials is a closed set of per-provider credential variants. Each
// variant belongs to exactly one Scheme; Connect rejects a variant that does
// not match the URI it is used with.
//
// GCS: GCSAnonymous, ServiceAccountJSON, ApplicationDefault.
// S3:  S3Anonymous, AccessKeyPair.
type Credentials interface {
	scheme() Scheme
	variant() string
}

// GCSAnonymous restricts the handle to public-read operations.
type GCSAnonymous struct{}

// ServiceAccountJSON carries an uploaded service account key file.
type ServiceAccountJSON struct {
	Data []byte
}

// ApplicationDefault discovers credentials from the environment
// (GOOGLE_APPLICATION_CREDENTIALS, gcloud, metadata server).
type ApplicationDefault struct{}

// S3Anonymous issues unsigned requests.
type S3Anonymous struct {
	Region string
}

// AccessKeyPair signs requests with a static key. KeyID and Secret are
// required.
type AccessKeyPair struct {
	KeyID        string
	Secret       string
	SessionToken string
	Region       string
}

func (GCSAnonymous) scheme() Scheme       { return SchemeGCS }
func (ServiceAccountJSON) scheme() Scheme { return SchemeGCS }
func (ApplicationDefault) scheme() Scheme { return SchemeGCS }
func (S3Anonymous) scheme() Scheme        { return SchemeS3 }
func (AccessKeyPair) scheme() Scheme      { return SchemeS3 }

func (GCSAnonymous) variant() string       { return "anonymous" }
func (ServiceAccountJSON) variant() string { return "service_account_json" }
func (ApplicationDefault) variant() string { return "application_default" }
func (S3Anonymous) variant() string        { return "anonymous" }
func (AccessKeyPair) variant() string      { return "access_key_pair" }

// Variant names the credential variant for logging. It never includes secret
// material.
func Variant(c Credentials) string {
	if c == nil {
		return "none"
	}
	return c.variant()
}

// CredentialInput is the raw form input a user supplies alongside a URI.
type CredentialInput struct {
	Anonymous          bool
	ServiceAccountJSON []byte
	AccessKeyID        string
	SecretAccessKey    string
	SessionToken       string
	Region             string
}

// Credentials selects the credential variant for the given scheme.
func (in CredentialInput) Credentials(s Scheme) (Credentials, error) {
	switch s {
	case SchemeGCS:
		switch {
		case in.Anonymous:
			return GCSAnonymous{}, nil
		case len(in.ServiceAccountJSON) > 0:
			return ServiceAccountJSON{Data: in.ServiceAccountJSON}, nil
		default:
			return ApplicationDefault{}, nil
		}
	case SchemeS3:
		if in.Anonymous {
			return S3Anonymous{Region: in.Region}, nil
		}
		return AccessKeyPair{
			KeyID:        in.AccessKeyID,
			Secret:       in.SecretAccessKey,
			SessionToken: in.SessionToken,
			Region:       in.Region,
		}, nil
	}
	return nil, NewError(KindUnsupportedScheme, "credentials", fmt.Errorf("scheme %q", s))
}
