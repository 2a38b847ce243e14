package types

import (
	"fmt"
	"net/url"
	"strings"
)

// FileURL is a download URL split into its base and the trailing filename.
// BaseURL + Filename always equals the original URL.
type FileURL struct {
	baseURL  string
	filename string
}

// ParseFileURL splits raw into base URL and filename.
// The URL must be absolute, name a host, and end in a non-empty filename.
// Query strings and fragments are rejected since they would end up in the
// filename.
func ParseFileURL(raw string) (FileURL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return FileURL{}, fmt.Errorf("invalid file url %q: %w", raw, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return FileURL{}, fmt.Errorf("invalid file url %q: missing scheme or host", raw)
	}
	if u.RawQuery != "" || u.Fragment != "" || strings.ContainsAny(raw, "?#") {
		return FileURL{}, fmt.Errorf("invalid file url %q: query and fragment are not supported", raw)
	}
	idx := strings.LastIndex(raw, "/")
	prefix := u.Scheme + "://" + u.Host
	if idx < len(prefix) {
		return FileURL{}, fmt.Errorf("invalid file url %q: no path", raw)
	}
	filename := raw[idx+1:]
	if filename == "" {
		return FileURL{}, fmt.Errorf("invalid file url %q: no filename", raw)
	}
	return FileURL{baseURL: raw[:idx+1], filename: filename}, nil
}

// MustParseFileURL is like ParseFileURL but panics on error.
func MustParseFileURL(raw string) FileURL {
	u, err := ParseFileURL(raw)
	if err != nil {
		panic(err)
	}
	return u
}

// BaseURL returns everything up to and including the last slash.
func (f FileURL) BaseURL() string { return f.baseURL }

// Filename returns the unescaped last path segment.
func (f FileURL) Filename() string {
	name, err := url.PathUnescape(f.filename)
	if err != nil {
		return f.filename
	}
	return name
}

// URL returns the full URL.
func (f FileURL) URL() string { return f.baseURL + f.filename }

// String returns the full URL.
func (f FileURL) String() string { return f.URL() }

// IsZero reports whether f is the zero value.
func (f FileURL) IsZero() bool { return f.baseURL == "" && f.filename == "" }

// Sibling returns a URL for another file relative to the same directory.
// name may contain slash separated directories, which are escaped one
// segment at a time.
func (f FileURL) Sibling(name string) FileURL {
	segments := strings.Split(name, "/")
	base := f.baseURL
	for _, dir := range segments[:len(segments)-1] {
		base += url.PathEscape(dir) + "/"
	}
	return FileURL{baseURL: base, filename: url.PathEscape(segments[len(segments)-1])}
}

// MarshalText implements encoding.TextMarshaler.
func (f FileURL) MarshalText() ([]byte, error) {
	return []byte(f.URL()), nil
}
