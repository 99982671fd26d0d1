// Package naming derives the on-disk names used for downloaded images.
package naming

import (
	"fmt"
	"hash/fnv"
	"path"
	"strings"
)

// DefaultFolder is used when a page title sanitizes to nothing.
const DefaultFolder = "downloaded_images"

var reserved = strings.NewReplacer(
	`\`, "_",
	"/", "_",
	":", "_",
	"*", "_",
	"?", "_",
	`"`, "_",
	"<", "_",
	">", "_",
	"|", "_",
)

// SanitizeTitle turns a document title into a folder name.
func SanitizeTitle(title string) string {
	folder := strings.TrimSpace(reserved.Replace(title))
	if folder == "" {
		return DefaultFolder
	}
	return folder
}

// FileName returns the last path segment of rawURL with any query or
// fragment removed. URLs without a usable segment get a stable
// image_<hash>.jpg name.
func FileName(rawURL string) string {
	name := rawURL
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	if i := strings.IndexAny(name, "?#"); i >= 0 {
		name = name[:i]
	}
	name = strings.TrimSpace(name)
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return fallbackName(rawURL)
	}
	return name
}

// Target joins the sanitized title and the file name into the
// "<folder>/<file>" form handed to the download sink.
func Target(title, rawURL string) string {
	return path.Join(SanitizeTitle(title), FileName(rawURL))
}

func fallbackName(rawURL string) string {
	h := fnv.New32a()
	_, _ = h.Write([]byte(rawURL))
	return fmt.Sprintf("image_%08x.jpg", h.Sum32())
}
