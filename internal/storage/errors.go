package storage

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"cloud.google.com/go/storage"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/smithy-go"
	"google.golang.org/api/googleapi"
)

// Kind classifies a failure so callers can show a targeted message near the
// point of failure. The set is closed.
type Kind string

const (
	KindUnsupportedScheme    Kind = "unsupported_scheme"
	KindInvalidCredentials   Kind = "invalid_credentials"
	KindNoAmbientCredentials Kind = "no_ambient_credentials"
	KindAccessDenied         Kind = "access_denied"
	KindUnreachable          Kind = "unreachable"
	KindParseError           Kind = "parse_error"
)

// Sentinel errors, one per Kind, for use with errors.Is.
var (
	ErrUnsupportedScheme    = &kindError{KindUnsupportedScheme}
	ErrInvalidCredentials   = &kindError{KindInvalidCredentials}
	ErrNoAmbientCredentials = &kindError{KindNoAmbientCredentials}
	ErrAccessDenied         = &kindError{KindAccessDenied}
	ErrUnreachable          = &kindError{KindUnreachable}
	ErrParse                = &kindError{KindParseError}
)

type kindError struct{ kind Kind }

func (e *kindError) Error() string { return string(e.kind) }

// Error is returned by every operation in this package and by the listing
// and table packages. Op names the failed operation, e.g. "connect".
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

// NewError builds an Error of the given kind.
func NewError(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches the sentinel for the error's kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*kindError)
	return ok && t.kind == e.Kind
}

// KindOf returns the Kind carried by err, or the empty string when err was
// not produced by this package.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Message renders err as a short human readable sentence for display.
func Message(err error) string {
	switch KindOf(err) {
	case KindUnsupportedScheme:
		return "Unsupported scheme. Use s3:// or gs://"
	case KindInvalidCredentials:
		return "The supplied credentials are invalid: " + cause(err)
	case KindNoAmbientCredentials:
		return "Upload a Service Account JSON or run 'gcloud auth application-default login' before connecting."
	case KindAccessDenied:
		return "Access denied: " + cause(err)
	case KindUnreachable:
		return "Storage service unreachable: " + cause(err)
	case KindParseError:
		return "Failed to read file: " + cause(err)
	}
	if err == nil {
		return ""
	}
	return err.Error()
}

func cause(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Err != nil {
		return e.Err.Error()
	}
	return err.Error()
}

// classify maps a provider error to AccessDenied or Unreachable. Anything it
// does not recognise as a permission problem is treated as a connectivity
// failure.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	if isAccessDenied(err) {
		return NewError(KindAccessDenied, op, err)
	}
	return NewError(KindUnreachable, op, err)
}

var deniedCodes = map[string]bool{
	"AccessDenied":          true,
	"AllAccessDisabled":     true,
	"InvalidAccessKeyId":    true,
	"SignatureDoesNotMatch": true,
	"NoSuchBucket":          true,
	"NoSuchKey":             true,
	"ExpiredToken":          true,
	"InvalidToken":          true,
	"AccountProblem":        true,
}

func isAccessDenied(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, storage.ErrBucketNotExist) || errors.Is(err, storage.ErrObjectNotExist) {
		return true
	}
	var bnf manager.BucketNotFound
	if errors.As(err, &bnf) {
		return true
	}

	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return deniedStatus(gerr.Code)
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) && deniedCodes[apiErr.ErrorCode()] {
		return true
	}
	var respErr *awshttp.ResponseError
	if errors.As(err, &respErr) {
		return deniedStatus(respErr.HTTPStatusCode())
	}
	return false
}

func deniedStatus(code int) bool {
	return code == http.StatusUnauthorized || code == http.StatusForbidden || code == http.StatusNotFound
}
