package tiktok

import "fmt"

// Typed errors raised by the policy store and resolver. Every error carries
// the offending raw value so the operator can locate the bad record. Match
// with errors.As; plain I/O errors (including fs.ErrNotExist on a missing
// config file) are wrapped and propagated unchanged.

// InvalidUsernameError reports a username that fails validation.
type InvalidUsernameError struct {
	Username string
}

func (e *InvalidUsernameError) Error() string {
	return fmt.Sprintf("invalid username: %q", e.Username)
}

// InvalidLinkError reports a link that fails validation or owner extraction.
type InvalidLinkError struct {
	Link string
}

func (e *InvalidLinkError) Error() string {
	return fmt.Sprintf("invalid link: %q", e.Link)
}

// InvalidDateError reports a date that is not exactly eight digits.
type InvalidDateError struct {
	Date string
}

func (e *InvalidDateError) Error() string {
	return fmt.Sprintf("invalid date: %q (want YYYYMMDD)", e.Date)
}

// InvalidCommentError reports a comment that decoded to something other than
// a string. Any string value is a valid comment, so this only arises when
// validating untyped JSON.
type InvalidCommentError struct {
	User  string
	Value string
}

func (e *InvalidCommentError) Error() string {
	return fmt.Sprintf("invalid comment for user %q: %s", e.User, e.Value)
}

// NotConfiguredError reports an accessor call for a user with no policy.
type NotConfiguredError struct {
	User string
}

func (e *NotConfiguredError) Error() string {
	return fmt.Sprintf("user %q is not configured", e.User)
}

// MissingFieldError reports a config record that lacks a required field.
type MissingFieldError struct {
	User  string
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("config record for user %q is missing field %q", e.User, e.Field)
}

// MalformedJSONError reports a config file that is not valid JSON.
type MalformedJSONError struct {
	Path string
	Err  error
}

func (e *MalformedJSONError) Error() string {
	return fmt.Sprintf("config file %s is not valid JSON: %v", e.Path, e.Err)
}

func (e *MalformedJSONError) Unwrap() error { return e.Err }

// InvalidPatternError reports a user filter expression that failed to compile.
type InvalidPatternError struct {
	Pattern string
	Err     error
}

func (e *InvalidPatternError) Error() string {
	return fmt.Sprintf("invalid filter pattern %q: %v", e.Pattern, e.Err)
}

func (e *InvalidPatternError) Unwrap() error { return e.Err }
