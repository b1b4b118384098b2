// Package policy maintains the per-user download rules: a not-before date,
// a free-text comment, and a set of links that must never be downloaded.
// The whole store lives in memory and persists as a single JSON file.
package policy

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"

	"github.com/CasualYT31/tiktok-dl/internal/fs"
	"github.com/CasualYT31/tiktok-dl/internal/tiktok"
)

// DefaultNotBefore is the sentinel cutoff assigned to newly created policies.
// It predates the platform, so a fresh policy excludes nothing.
const DefaultNotBefore = tiktok.Date("20000101")

// Policy holds the retention rules for one user.
type Policy struct {
	NotBefore tiktok.Date
	Comment   string
	Ignore    map[tiktok.Link]struct{}
}

func newDefaultPolicy() *Policy {
	return &Policy{
		NotBefore: DefaultNotBefore,
		Ignore:    make(map[tiktok.Link]struct{}),
	}
}

// Store maps usernames to their policies. Keys are always already folded;
// no two distinct keys may fold to the same value. Load and Save are each a
// single atomic unit: a failed Load leaves the previous state untouched.
type Store struct {
	users    map[tiktok.Username]*Policy
	notifier tiktok.Notifier
}

// NewStore creates an empty store. notifier may be nil, in which case
// diagnostics are discarded.
func NewStore(notifier tiktok.Notifier) *Store {
	if notifier == nil {
		notifier = tiktok.NewNopNotifier()
	}
	return &Store{
		users:    make(map[tiktok.Username]*Policy),
		notifier: notifier,
	}
}

// Len returns the number of configured users.
func (s *Store) Len() int { return len(s.users) }

// IsConfigured reports whether the given user has a policy.
func (s *Store) IsConfigured(user string) bool {
	_, ok := s.users[tiktok.NewUsername(user)]
	return ok
}

// CreateDefault inserts a default policy for the given user.
// Creating a user that already exists resets their policy.
func (s *Store) CreateDefault(user string) error {
	u := tiktok.NewUsername(user)
	if !u.IsValid() {
		return &tiktok.InvalidUsernameError{Username: user}
	}
	s.users[u] = newDefaultPolicy()
	return nil
}

// ensure returns the policy for user, creating a default one if absent.
func (s *Store) ensure(user string) (*Policy, error) {
	u := tiktok.NewUsername(user)
	if p, ok := s.users[u]; ok {
		return p, nil
	}
	if !u.IsValid() {
		return nil, &tiktok.InvalidUsernameError{Username: user}
	}
	p := newDefaultPolicy()
	s.users[u] = p
	return p, nil
}

// NotBefore returns the user's upload cutoff date.
func (s *Store) NotBefore(user string) (tiktok.Date, error) {
	p, ok := s.users[tiktok.NewUsername(user)]
	if !ok {
		return "", &tiktok.NotConfiguredError{User: user}
	}
	return p.NotBefore, nil
}

// Comment returns the user's free-text comment.
func (s *Store) Comment(user string) (string, error) {
	p, ok := s.users[tiktok.NewUsername(user)]
	if !ok {
		return "", &tiktok.NotConfiguredError{User: user}
	}
	return p.Comment, nil
}

// IgnoredLinks returns a copy of the user's ignore set, ascending.
func (s *Store) IgnoredLinks(user string) ([]tiktok.Link, error) {
	p, ok := s.users[tiktok.NewUsername(user)]
	if !ok {
		return nil, &tiktok.NotConfiguredError{User: user}
	}
	links := make([]tiktok.Link, 0, len(p.Ignore))
	for l := range p.Ignore {
		links = append(links, l)
	}
	sort.Slice(links, func(i, j int) bool { return links[i] < links[j] })
	return links, nil
}

// IsIgnored reports whether the link sits in its owner's ignore set.
// Unconfigured owners and malformed links ignore nothing.
func (s *Store) IsIgnored(link tiktok.Link) bool {
	owner, err := link.Owner()
	if err != nil {
		return false
	}
	p, ok := s.users[owner]
	if !ok {
		return false
	}
	_, ignored := p.Ignore[link]
	return ignored
}

// SetNotBefore overwrites the user's cutoff date, creating a default policy
// for the user first if none exists.
func (s *Store) SetNotBefore(user, date string) error {
	d := tiktok.NewDate(date)
	if !d.IsValid() {
		return &tiktok.InvalidDateError{Date: date}
	}
	p, err := s.ensure(user)
	if err != nil {
		return err
	}
	p.NotBefore = d
	return nil
}

// SetComment overwrites the user's comment, creating a default policy for the
// user first if none exists. Any string is a valid comment.
func (s *Store) SetComment(user, comment string) error {
	p, err := s.ensure(user)
	if err != nil {
		return err
	}
	p.Comment = comment
	return nil
}

// ToggleIgnoreLink adds the link to its owner's ignore set, or removes it if
// already there. The owner is always derived from the link itself, never
// supplied by the caller, so an ignore entry can only ever belong to its
// owner's policy. Returns true when the link was added, false when removed.
func (s *Store) ToggleIgnoreLink(link string) (bool, error) {
	l := tiktok.NewLink(link)
	if !l.IsValid() {
		return false, &tiktok.InvalidLinkError{Link: link}
	}
	owner, err := l.Owner()
	if err != nil {
		return false, err
	}
	p, err := s.ensure(owner.String())
	if err != nil {
		return false, err
	}
	if _, ok := p.Ignore[l]; ok {
		delete(p.Ignore, l)
		return false, nil
	}
	p.Ignore[l] = struct{}{}
	return true, nil
}

// DeleteUser removes the user's policy.
func (s *Store) DeleteUser(user string) error {
	u := tiktok.NewUsername(user)
	if _, ok := s.users[u]; !ok {
		return &tiktok.NotConfiguredError{User: user}
	}
	delete(s.users, u)
	return nil
}

// Users returns the configured usernames whose folded form fully matches the
// given filter expression, ascending. Use ".*" to list everyone.
func (s *Store) Users(filter string) ([]tiktok.Username, error) {
	re, err := regexp.Compile(`\A(?:` + filter + `)\z`)
	if err != nil {
		return nil, &tiktok.InvalidPatternError{Pattern: filter, Err: err}
	}
	var users []tiktok.Username
	for u := range s.users {
		if re.MatchString(u.String()) {
			users = append(users, u)
		}
	}
	sort.Slice(users, func(i, j int) bool { return users[i] < users[j] })
	return users, nil
}

// Render produces a human-readable block describing the user's policy.
func (s *Store) Render(user string) (string, error) {
	u := tiktok.NewUsername(user)
	p, ok := s.users[u]
	if !ok {
		return "", &tiktok.NotConfiguredError{User: user}
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Configuration for %s\n", u)
	fmt.Fprintf(&b, "    Not before: %s\n", p.NotBefore)
	fmt.Fprintf(&b, "    Comment: %s\n", p.Comment)
	fmt.Fprintf(&b, "    Ignored links: %d", len(p.Ignore))
	return b.String(), nil
}

// userRecord is the on-disk shape of one user's policy.
type userRecord struct {
	NotBefore string   `json:"notbefore"`
	Comment   string   `json:"comment"`
	Ignore    []string `json:"ignore"`
}

// Load replaces the store's contents with the given JSON config file.
// The load is all-or-nothing: the in-memory map is rebuilt from scratch and
// swapped in only once every surviving record validates. Any failure leaves
// the previous contents untouched and propagates the error.
func (s *Store) Load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return &tiktok.MalformedJSONError{Path: path, Err: err}
	}

	// Fold keys. If a raw key is not canonical-cased and the canonical form
	// also appears as its own key, the raw entry loses. Among several
	// non-canonical variants with no canonical entry present, the
	// lexicographically smallest raw key wins; the original left this
	// precedence unspecified, so any deterministic rule will do.
	rawKeys := make([]string, 0, len(raw))
	for k := range raw {
		rawKeys = append(rawKeys, k)
	}
	sort.Strings(rawKeys)

	survivors := make(map[tiktok.Username]json.RawMessage, len(raw))
	for _, key := range rawKeys {
		folded := tiktok.NewUsername(key)
		if string(folded) != key {
			if _, canonical := raw[string(folded)]; canonical {
				s.notifier.Notice("Dropping config record %q: canonical entry %q exists.", key, folded)
				continue
			}
		}
		if _, taken := survivors[folded]; taken {
			s.notifier.Notice("Dropping config record %q: another record already folds to %q.", key, folded)
			continue
		}
		survivors[folded] = raw[key]
	}

	users := make(map[tiktok.Username]*Policy, len(survivors))
	for folded, rec := range survivors {
		p, err := s.decodeRecord(folded, rec, path)
		if err != nil {
			return err
		}
		users[folded] = p
	}

	s.users = users
	return nil
}

// decodeRecord validates one user record field by field. A missing field or a
// wrongly-typed value fails the whole load; an ignore entry that is a string
// but not a valid link is dropped with a notice.
func (s *Store) decodeRecord(user tiktok.Username, rec json.RawMessage, path string) (*Policy, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(rec, &fields); err != nil {
		return nil, &tiktok.MalformedJSONError{Path: path, Err: err}
	}

	rawDate, ok := fields["notbefore"]
	if !ok {
		return nil, &tiktok.MissingFieldError{User: user.String(), Field: "notbefore"}
	}
	var dateStr string
	if err := json.Unmarshal(rawDate, &dateStr); err != nil {
		return nil, &tiktok.InvalidDateError{Date: string(rawDate)}
	}
	date := tiktok.NewDate(dateStr)
	if !date.IsValid() {
		return nil, &tiktok.InvalidDateError{Date: dateStr}
	}

	rawComment, ok := fields["comment"]
	if !ok {
		return nil, &tiktok.MissingFieldError{User: user.String(), Field: "comment"}
	}
	var comment string
	if err := json.Unmarshal(rawComment, &comment); err != nil {
		return nil, &tiktok.InvalidCommentError{User: user.String(), Value: string(rawComment)}
	}

	rawIgnore, ok := fields["ignore"]
	if !ok {
		return nil, &tiktok.MissingFieldError{User: user.String(), Field: "ignore"}
	}
	var entries []json.RawMessage
	if err := json.Unmarshal(rawIgnore, &entries); err != nil {
		return nil, &tiktok.InvalidLinkError{Link: string(rawIgnore)}
	}

	p := &Policy{
		NotBefore: date,
		Comment:   comment,
		Ignore:    make(map[tiktok.Link]struct{}, len(entries)),
	}
	for _, entry := range entries {
		var linkStr string
		if err := json.Unmarshal(entry, &linkStr); err != nil {
			return nil, &tiktok.InvalidLinkError{Link: string(entry)}
		}
		link := tiktok.NewLink(linkStr)
		if !link.IsValid() {
			s.notifier.Notice("Dropping invalid ignore link %q for user %q.", linkStr, user)
			continue
		}
		p.Ignore[link] = struct{}{}
	}
	return p, nil
}

// Save serializes the store to JSON and writes it atomically, overwriting
// the target. Keys and ignore arrays are emitted in ascending order so the
// file diffs cleanly between runs.
func (s *Store) Save(path string) error {
	out := make(map[string]userRecord, len(s.users))
	for u, p := range s.users {
		ignore := make([]string, 0, len(p.Ignore))
		for l := range p.Ignore {
			ignore = append(ignore, l.String())
		}
		sort.Strings(ignore)
		out[u.String()] = userRecord{
			NotBefore: p.NotBefore.String(),
			Comment:   p.Comment,
			Ignore:    ignore,
		}
	}

	data, err := json.MarshalIndent(out, "", "    ")
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	w, err := fs.NewAtomicWriter(path)
	if err != nil {
		return fmt.Errorf("preparing config write: %w", err)
	}
	if _, err := w.Write(append(data, '\n')); err != nil {
		w.Abort()
		return fmt.Errorf("writing config: %w", err)
	}
	if err := w.Commit(); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}
