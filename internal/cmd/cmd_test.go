package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/tomasbasham/cli-runtime/iooption"

	"github.com/tomasbasham/bucketview/internal/chart"
	"github.com/tomasbasham/bucketview/internal/config"
	"github.com/tomasbasham/bucketview/internal/listing"
	"github.com/tomasbasham/bucketview/internal/storage"
	"github.com/tomasbasham/bucketview/internal/visualize"
)

type fakeHandle struct {
	uri     storage.URI
	objects []storage.Object
	files   map[string][]byte
}

func (h *fakeHandle) URI() storage.URI { return h.uri }

func (h *fakeHandle) List(context.Context, string) ([]storage.Object, error) {
	return h.objects, nil
}

func (h *fakeHandle) Read(_ context.Context, key string) ([]byte, error) {
	return h.files[key], nil
}

func (h *fakeHandle) Close() error { return nil }

func testRoot() (*BucketViewOptions, *bytes.Buffer, *bytes.Buffer) {
	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	o := NewBucketViewOptions(iooption.IOStreams{In: &bytes.Buffer{}, Out: out, ErrOut: errOut})
	o.Config = &config.Config{
		AllowedExtensions: listing.DefaultExtensions,
		TimeSeries: config.TimeSeriesConfig{
			X:      chart.DefaultTimeSeriesX,
			Series: chart.DefaultTimeSeriesSeries,
		},
		MaxFiles:    visualize.DefaultMaxFiles,
		PreviewRows: visualize.DefaultPreviewRows,
	}
	return o, out, errOut
}

func testHandle() *fakeHandle {
	return &fakeHandle{
		uri: storage.URI{Scheme: storage.SchemeS3, Bucket: "bucket", Prefix: "runs/"},
		objects: []storage.Object{
			{Key: "runs/"},
			{Key: "runs/2024/", IsPrefix: true},
			{Key: "runs/a.csv"},
			{Key: "runs/b.csv"},
			{Key: "runs/c.csv"},
			{Key: "runs/notes.txt"},
		},
		files: map[string][]byte{
			"runs/a.csv": []byte("City,Sales\nLondon,10\nParis,12\n"),
			"runs/b.csv": []byte("a,b\n1,2\n3,4\n"),
			"runs/c.csv": []byte("a\n1\n"),
		},
	}
}

func TestList_Text(t *testing.T) {
	root, out, _ := testRoot()
	o := NewListOptions(root)

	var got storage.Credentials
	o.connect = func(_ context.Context, uri storage.URI, creds storage.Credentials) (storage.Handle, error) {
		got = creds
		return testHandle(), nil
	}

	cmd := NewListCommand(o)
	cmd.SetArgs([]string{"s3://bucket/runs", "--region", "eu-west-1"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("ls: %v", err)
	}

	if want := (storage.S3Anonymous{Region: "eu-west-1"}); got != want {
		t.Fatalf("credentials = %#v, want %#v", got, want)
	}
	text := out.String()
	for _, want := range []string{"2024/", "a.csv", "s3://bucket/runs/b.csv"} {
		if !strings.Contains(text, want) {
			t.Fatalf("output missing %q:\n%s", want, text)
		}
	}
	if strings.Contains(text, "notes.txt") {
		t.Fatalf("output lists a disallowed file:\n%s", text)
	}
}

func TestList_JSON(t *testing.T) {
	root, out, _ := testRoot()
	o := NewListOptions(root)
	o.connect = func(context.Context, storage.URI, storage.Credentials) (storage.Handle, error) {
		return testHandle(), nil
	}

	cmd := NewListCommand(o)
	cmd.SetArgs([]string{"s3://bucket/runs/", "-o", "json"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("ls: %v", err)
	}

	var l listing.DirectoryListing
	if err := json.Unmarshal(out.Bytes(), &l); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(l.Files) != 3 || len(l.Subfolders) != 1 {
		t.Fatalf("listing = %+v", l)
	}
}

func TestList_Errors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want error
	}{
		{"unsupported scheme", []string{"ftp://bucket/"}, storage.ErrUnsupportedScheme},
		{"access denied", []string{"gs://bucket/"}, storage.ErrAccessDenied},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root, _, _ := testRoot()
			o := NewListOptions(root)
			o.connect = func(context.Context, storage.URI, storage.Credentials) (storage.Handle, error) {
				return nil, storage.NewError(storage.KindAccessDenied, "connect", errors.New("403"))
			}

			cmd := NewListCommand(o)
			cmd.SetArgs(tt.args)
			err := cmd.Execute()
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
			if err.Error() != storage.Message(err) {
				t.Fatalf("err = %q, want the display message", err)
			}
		})
	}
}

func TestList_InvalidOutput(t *testing.T) {
	root, _, _ := testRoot()
	cmd := NewListCommand(NewListOptions(root))
	cmd.SetArgs([]string{"gs://bucket/", "-o", "yaml"})
	if err := cmd.Execute(); err == nil {
		t.Fatalf("expected an error for -o yaml")
	}
}

func TestShow(t *testing.T) {
	root, out, errOut := testRoot()
	o := NewShowOptions(root)
	o.connect = func(context.Context, storage.URI, storage.Credentials) (storage.Handle, error) {
		return testHandle(), nil
	}

	cmd := NewShowCommand(o)
	cmd.SetArgs([]string{"s3://bucket/runs/", "a.csv", "b.csv", "c.csv"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("show: %v", err)
	}

	if !strings.Contains(errOut.String(), "Only the first 2 will be used") {
		t.Fatalf("missing max files warning: %q", errOut.String())
	}
	text := out.String()
	first, second := strings.Index(text, "[1] s3://bucket/runs/a.csv"), strings.Index(text, "[2] s3://bucket/runs/b.csv")
	if first < 0 || second < first {
		t.Fatalf("slots missing or out of order:\n%s", text)
	}
	if !strings.Contains(text, "Bar: City vs Sales") || !strings.Contains(text, "Line plot (numeric columns)") {
		t.Fatalf("charts missing:\n%s", text)
	}
	if strings.Contains(text, "c.csv") {
		t.Fatalf("third file should be ignored:\n%s", text)
	}
}

func TestShow_UnknownFile(t *testing.T) {
	root, _, _ := testRoot()
	o := NewShowOptions(root)
	o.connect = func(context.Context, storage.URI, storage.Credentials) (storage.Handle, error) {
		return testHandle(), nil
	}

	cmd := NewShowCommand(o)
	cmd.SetArgs([]string{"s3://bucket/runs/", "notes.txt"})
	if err := cmd.Execute(); err == nil || !strings.Contains(err.Error(), "notes.txt") {
		t.Fatalf("err = %v, want not found", err)
	}
}

func TestCredentialFlags(t *testing.T) {
	key := filepath.Join(t.TempDir(), "key.json")
	if err := os.WriteFile(key, []byte(`{"type":"service_account"}`), 0o600); err != nil {
		t.Fatalf("write key: %v", err)
	}

	tests := []struct {
		name string
		args []string
		want storage.Credentials
	}{
		{"default anonymous", []string{"gs://bucket/"}, storage.GCSAnonymous{}},
		{"ambient", []string{"gs://bucket/", "--anonymous=false"}, storage.ApplicationDefault{}},
		{
			"key pair implies signed",
			[]string{"s3://bucket/", "--access-key-id", "id", "--secret-access-key", "secret"},
			storage.AccessKeyPair{KeyID: "id", Secret: "secret"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root, _, _ := testRoot()
			o := NewListOptions(root)
			var got storage.Credentials
			o.connect = func(_ context.Context, uri storage.URI, creds storage.Credentials) (storage.Handle, error) {
				got = creds
				return &fakeHandle{uri: uri}, nil
			}
			cmd := NewListCommand(o)
			cmd.SetArgs(tt.args)
			if err := cmd.Execute(); err != nil {
				t.Fatalf("ls: %v", err)
			}
			if got != tt.want {
				t.Fatalf("credentials = %#v, want %#v", got, tt.want)
			}
		})
	}

	t.Run("service account file", func(t *testing.T) {
		root, _, _ := testRoot()
		o := NewListOptions(root)
		var got storage.Credentials
		o.connect = func(_ context.Context, uri storage.URI, creds storage.Credentials) (storage.Handle, error) {
			got = creds
			return &fakeHandle{uri: uri}, nil
		}
		cmd := NewListCommand(o)
		cmd.SetArgs([]string{"gs://bucket/", "--credentials", key})
		if err := cmd.Execute(); err != nil {
			t.Fatalf("ls: %v", err)
		}
		sa, ok := got.(storage.ServiceAccountJSON)
		if !ok || !strings.Contains(string(sa.Data), "service_account") {
			t.Fatalf("credentials = %#v, want service account", got)
		}
	})
}

func TestRoot_ConfigError(t *testing.T) {
	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	o := NewBucketViewOptions(iooption.IOStreams{In: &bytes.Buffer{}, Out: out, ErrOut: errOut})

	cmd := NewRootCommandWithArgs(o)
	cmd.SetArgs([]string{"--config", filepath.Join(t.TempDir(), "missing.yaml"), "ls", "gs://bucket/"})
	err := cmd.Execute()
	if err == nil || !strings.Contains(err.Error(), "config:") {
		t.Fatalf("err = %v, want config error", err)
	}
}

func TestServe_Port(t *testing.T) {
	root, _, _ := testRoot()
	root.Config.Server.Port = 8080

	o := NewServeOptions(root)
	cmd := NewServeCommand(o)
	if err := cmd.ParseFlags(nil); err != nil {
		t.Fatalf("parse: %v", err)
	}
	if err := o.Complete(cmd, nil); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if o.Port != 8080 {
		t.Fatalf("port = %d, want config port", o.Port)
	}
	if o.newServer() == nil {
		t.Fatalf("newServer returned nil")
	}

	o.Port = 0
	if err := o.Validate(); err == nil {
		t.Fatalf("expected port validation error")
	}
}

func TestServe_RunPortInUse(t *testing.T) {
	ln, err := net.Listen("tcp", ":0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	root, _, errOut := testRoot()
	root.Logger = zerolog.New(errOut)

	o := NewServeOptions(root)
	o.Port = ln.Addr().(*net.TCPAddr).Port
	if err := o.Run(); err == nil {
		t.Fatalf("expected listen error on a bound port")
	}
	if !strings.Contains(errOut.String(), "starting bucketview server") {
		t.Fatalf("missing start log, got %q", errOut.String())
	}
	if !strings.Contains(errOut.String(), `"component":"server"`) {
		t.Fatalf("start log not tagged with component, got %q", errOut.String())
	}
}
