package lsp

import (
	"net/url"
	"path/filepath"
)

func uriToPath(uri string) string {
	if uri == "" {
		return ""
	}
	parsed, err := url.Parse(uri)
	if err != nil {
		return ""
	}
	if parsed.Scheme != "" && parsed.Scheme != "file" {
		return ""
	}
	path := parsed.Path
	if parsed.Scheme == "" {
		path = uri
	}
	if unescaped, err := url.PathUnescape(path); err == nil {
		path = unescaped
	}
	path = filepath.FromSlash(path)
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	return path
}

func pathToURI(path string) string {
	if path == "" {
		return ""
	}
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	u := url.URL{Scheme: "file", Path: filepath.ToSlash(path)}
	return u.String()
}

// canonicalURI re-encodes file URIs so differently escaped spellings of the
// same path key one document. Other schemes are kept as sent.
func canonicalURI(uri string) string {
	if p := uriToPath(uri); p != "" {
		return pathToURI(p)
	}
	return uri
}

// docPath is the document path for uri: the file path, or the URI itself
// for buffers that live nowhere on disk.
func docPath(uri string) string {
	if p := uriToPath(uri); p != "" {
		return p
	}
	return uri
}
