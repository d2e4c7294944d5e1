package utils

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"lanzoufetch/internal"
)

// ShareURLInfo contains parsed information from a Lanzou share URL
type ShareURLInfo struct {
	OriginalURL string
	Domain      string
	Path        string
	ShareID     string
}

// ShareURLValidator validates share links and maps them onto mirrors
type ShareURLValidator struct {
	sharePattern *regexp.Regexp
	domainSuffix string
}

// NewShareURLValidator creates a validator for lanzou*.com share links
func NewShareURLValidator() *ShareURLValidator {
	return &ShareURLValidator{
		// lanzoux.com/iAbc, wwi.lanzoup.com/b0c1d, https://lanzou.com/xyz
		sharePattern: regexp.MustCompile(`lanzou\w*\.com/[a-zA-Z0-9]`),
		domainSuffix: ".com",
	}
}

// Validate checks a raw share URL. It returns an InvalidInput LanzouError with
// the localized message when the URL is empty or not a share link.
func (v *ShareURLValidator) Validate(rawURL string) error {
	if strings.TrimSpace(rawURL) == "" {
		return internal.NewInvalidInputError(internal.MsgURLRequired)
	}
	if !v.sharePattern.MatchString(rawURL) {
		return internal.NewInvalidInputError(internal.MsgInvalidShareURL).WithURL(rawURL)
	}
	return nil
}

// Parse validates rawURL and extracts the path following the domain
func (v *ShareURLValidator) Parse(rawURL string) (*ShareURLInfo, error) {
	if err := v.Validate(rawURL); err != nil {
		return nil, err
	}

	info := &ShareURLInfo{
		OriginalURL: rawURL,
		Path:        v.SharePath(rawURL),
	}

	if parsed, err := url.Parse(rawURL); err == nil && parsed.Host != "" {
		info.Domain = strings.ToLower(parsed.Hostname())
	} else if i := strings.Index(rawURL, v.domainSuffix); i >= 0 {
		info.Domain = strings.ToLower(rawURL[:i+len(v.domainSuffix)])
	}

	id := strings.TrimPrefix(info.Path, "/")
	if i := strings.IndexAny(id, "/?#"); i >= 0 {
		id = id[:i]
	}
	info.ShareID = id

	return info, nil
}

// SharePath returns the segment between the first and second ".com" of
// rawURL, which is the share path for well-formed links.
func (v *ShareURLValidator) SharePath(rawURL string) string {
	parts := strings.Split(rawURL, v.domainSuffix)
	if len(parts) < 2 {
		return ""
	}
	return parts[1]
}

// MirrorURL rebases the share path onto a mirror origin
func (info *ShareURLInfo) MirrorURL(mirror string) string {
	return strings.TrimRight(mirror, "/") + info.Path
}

// String returns a string representation of the ShareURLInfo
func (info *ShareURLInfo) String() string {
	return fmt.Sprintf("ShareURLInfo{Domain: %s, Path: %s, ShareID: %s}", info.Domain, info.Path, info.ShareID)
}
