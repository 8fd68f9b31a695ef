// Package listing enumerates one level of a bucket prefix, splitting the
// entries into sub-folders and files with an allowed extension.
package listing

import (
	"context"
	"path"
	"strings"

	"github.com/tomasbasham/bucketview/internal/storage"
)

// DefaultExtensions are the file extensions listed when none are configured.
var DefaultExtensions = []string{"csv", "xls", "xlsx"}

// Config controls which files a Lister reports.
type Config struct {
	// AllowedExtensions are matched case-insensitively against the file
	// suffix, with or without a leading dot.
	AllowedExtensions []string
}

// FileEntry is a listed file.
type FileEntry struct {
	// Name is the base name, e.g. "a.csv".
	Name string `json:"name"`

	// Key is the object key within the bucket.
	Key string `json:"key"`

	// FullPath is the scheme://bucket/key URL of the file.
	FullPath string `json:"full_path"`

	// Extension is the lower-cased extension without the dot.
	Extension string `json:"extension"`
}

// DirectoryListing holds the direct children of a prefix. Both slices keep
// the order in which the provider returned the entries.
type DirectoryListing struct {
	URI        storage.URI `json:"uri"`
	Subfolders []string    `json:"subfolders"`
	Files      []FileEntry `json:"files"`
}

// Lookup finds a listed file by base name.
func (l *DirectoryListing) Lookup(name string) (FileEntry, bool) {
	for _, f := range l.Files {
		if f.Name == name {
			return f, true
		}
	}
	return FileEntry{}, false
}

// Lister lists prefixes against a storage.Handle.
type Lister struct {
	allowed map[string]bool
}

// New creates a Lister. An empty extension set falls back to
// DefaultExtensions.
func New(cfg Config) *Lister {
	exts := cfg.AllowedExtensions
	if len(exts) == 0 {
		exts = DefaultExtensions
	}
	allowed := make(map[string]bool, len(exts))
	for _, ext := range exts {
		allowed[normalizeExt(ext)] = true
	}
	return &Lister{allowed: allowed}
}

// Allowed reports whether name carries an allowed extension.
func (l *Lister) Allowed(name string) bool {
	return l.allowed[Extension(name)]
}

// List returns the direct children of prefix. Keys that continue past a
// further "/" are folded into the name of the sub-folder that contains them.
// An empty prefix lists the bucket root. Failures carry the
// storage.KindAccessDenied or storage.KindUnreachable kinds.
func (l *Lister) List(ctx context.Context, h storage.Handle, prefix string) (*DirectoryListing, error) {
	prefix = storage.CleanPrefix(prefix)

	objects, err := h.List(ctx, prefix)
	if err != nil {
		return nil, err
	}

	listing := &DirectoryListing{
		URI:        h.URI().WithPrefix(prefix),
		Subfolders: []string{},
		Files:      []FileEntry{},
	}
	seen := make(map[string]bool)

	for _, obj := range objects {
		rel := strings.TrimPrefix(obj.Key, prefix)
		if rel == "" {
			// Placeholder object for the prefix itself.
			continue
		}

		if folder, _, nested := strings.Cut(rel, "/"); nested || obj.IsPrefix {
			if folder != "" && !seen[folder] {
				seen[folder] = true
				listing.Subfolders = append(listing.Subfolders, folder)
			}
			continue
		}

		if !l.Allowed(rel) {
			continue
		}
		listing.Files = append(listing.Files, FileEntry{
			Name:      rel,
			Key:       obj.Key,
			FullPath:  h.URI().ObjectURL(obj.Key),
			Extension: Extension(rel),
		})
	}

	return listing, nil
}

// Extension returns the lower-cased extension of name without the dot.
func Extension(name string) string {
	return normalizeExt(path.Ext(name))
}

func normalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
}
