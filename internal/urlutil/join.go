// Package urlutil holds URL helpers shared by the API client, the session
// manager and the navigation guard.
package urlutil

import (
	"net/url"
	"path"
	"strings"
)

// JoinPath appends slash-separated paths to base. A trailing slash on the
// last path is kept.
func JoinPath(base string, paths ...string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}

	u.Path = path.Join(append([]string{u.Path}, paths...)...)
	u.RawPath = ""
	if len(paths) > 0 && strings.HasSuffix(paths[len(paths)-1], "/") {
		u.Path += "/"
	}
	return u.String(), nil
}

// AppendSegment appends one escaped path segment, so an identifier that
// contains "/" or "?" cannot address a different resource.
func AppendSegment(base, segment string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	escaped := strings.TrimSuffix(u.EscapedPath(), "/") + "/" + url.PathEscape(segment)
	unescaped, err := url.PathUnescape(escaped)
	if err != nil {
		return "", err
	}
	u.Path = unescaped
	u.RawPath = escaped
	return u.String(), nil
}

// StripQuery returns a copy of u without the named query parameters and
// without a fragment.
func StripQuery(u *url.URL, keys ...string) *url.URL {
	stripped := *u
	q := stripped.Query()
	for _, k := range keys {
		q.Del(k)
	}
	stripped.RawQuery = q.Encode()
	stripped.Fragment = ""
	stripped.RawFragment = ""
	return &stripped
}

// IsLocalPath reports whether p is an absolute path on this origin. Scheme
// relative ("//host") and backslash forms are rejected since browsers
// treat them as other origins.
func IsLocalPath(p string) bool {
	if !strings.HasPrefix(p, "/") || strings.HasPrefix(p, "//") || strings.HasPrefix(p, "/\\") {
		return false
	}
	u, err := url.Parse(p)
	return err == nil && u.Scheme == "" && u.Host == ""
}
