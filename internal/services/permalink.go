package services

import (
	"net/url"
	"regexp"
	"strings"
)

var (
	shortcodePattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
	usernamePattern  = regexp.MustCompile(`^[A-Za-z0-9._]+$`)
)

// postKinds are the path segments that precede a shortcode in a permalink.
var postKinds = map[string]bool{
	"p":    true,
	"reel": true,
	"tv":   true,
}

// ParsePermalink extracts the post shortcode from an Instagram permalink.
//
// Accepted shapes (query strings and fragments are ignored):
//
//	https://instagram.com/p/{code}/
//	https://www.instagram.com/reel/{code}
//	https://www.instagram.com/tv/{code}/
//	https://www.instagram.com/{username}/p/{code}/
//	https://instagr.am/p/{code}
//
// It returns ErrInvalidPermalink for anything else.
func ParsePermalink(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return "", ErrInvalidPermalink
	}

	host := strings.ToLower(u.Hostname())
	host = strings.TrimPrefix(host, "www.")
	host = strings.TrimPrefix(host, "m.")
	if host != "instagram.com" && host != "instagr.am" {
		return "", ErrInvalidPermalink
	}

	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	switch {
	case len(segments) == 2 && postKinds[segments[0]]:
		return shortcode(segments[1])
	case len(segments) == 3 && postKinds[segments[1]] && usernamePattern.MatchString(segments[0]):
		return shortcode(segments[2])
	}
	return "", ErrInvalidPermalink
}

func shortcode(s string) (string, error) {
	if !shortcodePattern.MatchString(s) {
		return "", ErrInvalidPermalink
	}
	return s, nil
}

// CanonicalPermalink builds the canonical permalink for a shortcode.
func CanonicalPermalink(code string) string {
	return "https://www.instagram.com/p/" + code + "/"
}
