package util

import (
	"errors"
	"net/url"
	"path"
	"strings"
)

var (
	ErrNoFilename = errors.New("cannot extract valid filename")
)

func FilenameFromURL(url *url.URL) (string, error) {
	if url == nil {
		return "", ErrNoFilename
	}
	path := strings.Trim(url.Path, "/")
	if path == "" {
		return "", ErrNoFilename
	}
	pathElements := strings.Split(path, "/")
	filename := pathElements[len(pathElements)-1]
	if filename == "" {
		return "", ErrNoFilename
	}
	// Don't allow "filenames" that are just ".", "..", etc.
	if strings.ReplaceAll(filename, ".", "") == "" {
		return "", ErrNoFilename
	}
	return filename, nil
}

func FilenameFromURLString(s string) (string, error) {
	if parsedURL, err := url.Parse(s); err != nil {
		return "", err
	} else {
		return FilenameFromURL(parsedURL)
	}
}

// ExtensionFromURL returns the lower-cased extension of the URL's filename, including the ".", or "" if there isn't
// one. Query strings and fragments are ignored.
func ExtensionFromURL(url *url.URL) string {
	filename, err := FilenameFromURL(url)
	if err != nil {
		return ""
	}
	return strings.ToLower(path.Ext(filename))
}

func ExtensionFromURLString(s string) string {
	if parsedURL, err := url.Parse(s); err != nil {
		return ""
	} else {
		return ExtensionFromURL(parsedURL)
	}
}

// HostMatches reports whether host is domain or a subdomain of it.
func HostMatches(host string, domain string) bool {
	host = strings.ToLower(strings.TrimSuffix(host, "."))
	return host == domain || strings.HasSuffix(host, "."+domain)
}
