package tiktok

import (
	"regexp"
	"strings"
)

// The three identifier kinds that flow through the whole tool. Each type keeps
// its raw string representation; construct them through NewUsername, NewLink
// and NewDate so that comparisons always happen on normalized forms.

var (
	usernamePattern = regexp.MustCompile(`^[a-z0-9_.]+$`)
	linkPattern     = regexp.MustCompile(`^https://www\.tiktok\.com/@[a-z0-9_.]+/video/[0-9]{19}$`)
	datePattern     = regexp.MustCompile(`^[0-9]{8}$`)

	// ownerPattern deliberately accepts any run of digits for the video ID.
	// It exists only to find a link's owner; the strict 19-digit check lives
	// in linkPattern. Keep the two separate.
	ownerPattern = regexp.MustCompile(`^https://www\.tiktok\.com/@([a-z0-9_.]+)/video/[0-9]+`)
)

// Username is a case-folded TikTok handle, without the leading @.
type Username string

// NewUsername normalizes a raw handle: surrounding whitespace is trimmed and
// the result is lower-cased. Normalization is idempotent.
func NewUsername(raw string) Username {
	return Username(strings.ToLower(strings.TrimSpace(raw)))
}

// IsValid reports whether the username is non-empty and consists only of
// lowercase letters, digits, underscores and dots.
func (u Username) IsValid() bool {
	return usernamePattern.MatchString(string(u))
}

func (u Username) String() string { return string(u) }

// Link identifies exactly one video. The canonical form is
// https://www.tiktok.com/@{username}/video/{19-digit-id}.
type Link string

// NewLink normalizes a raw link: trim, lower-case, drop any ?query suffix,
// then strip one trailing slash. Normalization is idempotent.
func NewLink(raw string) Link {
	l := strings.ToLower(strings.TrimSpace(raw))
	if i := strings.IndexByte(l, '?'); i >= 0 {
		l = l[:i]
	}
	l = strings.TrimSuffix(l, "/")
	return Link(l)
}

// IsValid reports whether the link fully matches the canonical form,
// including the exact 19-digit video ID.
func (l Link) IsValid() bool {
	return linkPattern.MatchString(string(l))
}

// Owner returns the username that owns this link, normalized. It uses a
// looser pattern than IsValid (any digit run is accepted for the ID), so a
// link can have a recoverable owner without being formally valid.
func (l Link) Owner() (Username, error) {
	m := ownerPattern.FindStringSubmatch(string(l))
	if m == nil {
		return "", &InvalidLinkError{Link: string(l)}
	}
	return NewUsername(m[1]), nil
}

func (l Link) String() string { return string(l) }

// Date is an 8-digit YYYYMMDD marker. Only the shape is checked; no calendar
// validation is performed (99999999 is "valid").
type Date string

// NewDate normalizes a raw date by trimming surrounding whitespace.
func NewDate(raw string) Date {
	return Date(strings.TrimSpace(raw))
}

// IsValid reports whether the date is exactly eight ASCII digits.
func (d Date) IsValid() bool {
	return datePattern.MatchString(string(d))
}

func (d Date) String() string { return string(d) }
