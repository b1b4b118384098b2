package policy

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/CasualYT31/tiktok-dl/internal/tiktok"
)

const (
	testLink  = "https://www.tiktok.com/@user1/video/7123150069146094849"
	testLink2 = "https://www.tiktok.com/@user1/video/7123150069146094850"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(contents), 0644); err != nil {
		t.Fatalf("writing test config: %v", err)
	}
	return path
}

func TestStore_CreateDefault(t *testing.T) {
	t.Run("creates a folded entry", func(t *testing.T) {
		s := NewStore(nil)
		if err := s.CreateDefault(" NewUser "); err != nil {
			t.Fatalf("CreateDefault() error = %v", err)
		}
		if !s.IsConfigured("newuser") {
			t.Error("IsConfigured(newuser) = false after CreateDefault")
		}
		nb, err := s.NotBefore("NEWUSER")
		if err != nil {
			t.Fatalf("NotBefore() error = %v", err)
		}
		if nb != DefaultNotBefore {
			t.Errorf("NotBefore = %q, want %q", nb, DefaultNotBefore)
		}
	})

	t.Run("rejects invalid usernames", func(t *testing.T) {
		s := NewStore(nil)
		err := s.CreateDefault("not a valid user!!")
		var invalid *tiktok.InvalidUsernameError
		if !errors.As(err, &invalid) {
			t.Fatalf("CreateDefault() error = %v, want InvalidUsernameError", err)
		}
		if s.Len() != 0 {
			t.Errorf("Len() = %d, want 0", s.Len())
		}
	})
}

func TestStore_Accessors_NotConfigured(t *testing.T) {
	s := NewStore(nil)
	var notConfigured *tiktok.NotConfiguredError

	if _, err := s.NotBefore("ghost"); !errors.As(err, &notConfigured) {
		t.Errorf("NotBefore() error = %v, want NotConfiguredError", err)
	}
	if _, err := s.Comment("ghost"); !errors.As(err, &notConfigured) {
		t.Errorf("Comment() error = %v, want NotConfiguredError", err)
	}
	if _, err := s.IgnoredLinks("ghost"); !errors.As(err, &notConfigured) {
		t.Errorf("IgnoredLinks() error = %v, want NotConfiguredError", err)
	}
	if _, err := s.Render("ghost"); !errors.As(err, &notConfigured) {
		t.Errorf("Render() error = %v, want NotConfiguredError", err)
	}
	if err := s.DeleteUser("ghost"); !errors.As(err, &notConfigured) {
		t.Errorf("DeleteUser() error = %v, want NotConfiguredError", err)
	}
}

func TestStore_SetNotBefore(t *testing.T) {
	t.Run("auto-creates the user", func(t *testing.T) {
		s := NewStore(nil)
		if err := s.SetNotBefore("NEWUSER", "20200101"); err != nil {
			t.Fatalf("SetNotBefore() error = %v", err)
		}

		nb, err := s.NotBefore("newuser")
		if err != nil {
			t.Fatalf("NotBefore() error = %v", err)
		}
		if nb != "20200101" {
			t.Errorf("NotBefore = %q, want %q", nb, "20200101")
		}

		comment, err := s.Comment("newuser")
		if err != nil {
			t.Fatalf("Comment() error = %v", err)
		}
		if comment != "" {
			t.Errorf("Comment = %q, want empty", comment)
		}

		ignored, err := s.IgnoredLinks("newuser")
		if err != nil {
			t.Fatalf("IgnoredLinks() error = %v", err)
		}
		if len(ignored) != 0 {
			t.Errorf("len(IgnoredLinks) = %d, want 0", len(ignored))
		}
	})

	t.Run("overwrites an existing date", func(t *testing.T) {
		s := NewStore(nil)
		if err := s.SetNotBefore("user1", "20200101"); err != nil {
			t.Fatalf("SetNotBefore() error = %v", err)
		}
		if err := s.SetNotBefore("user1", "\t20210202 "); err != nil {
			t.Fatalf("SetNotBefore() error = %v", err)
		}
		nb, _ := s.NotBefore("user1")
		if nb != "20210202" {
			t.Errorf("NotBefore = %q, want %q", nb, "20210202")
		}
	})

	t.Run("rejects malformed dates", func(t *testing.T) {
		s := NewStore(nil)
		var invalid *tiktok.InvalidDateError
		if err := s.SetNotBefore("user1", "2020010"); !errors.As(err, &invalid) {
			t.Errorf("SetNotBefore() error = %v, want InvalidDateError", err)
		}
		if s.IsConfigured("user1") {
			t.Error("user created despite invalid date")
		}
	})
}

func TestStore_SetComment(t *testing.T) {
	s := NewStore(nil)
	if err := s.SetComment("User1", "any text at all"); err != nil {
		t.Fatalf("SetComment() error = %v", err)
	}
	comment, err := s.Comment("user1")
	if err != nil {
		t.Fatalf("Comment() error = %v", err)
	}
	if comment != "any text at all" {
		t.Errorf("Comment = %q, want %q", comment, "any text at all")
	}
}

func TestStore_ToggleIgnoreLink(t *testing.T) {
	t.Run("is involutive", func(t *testing.T) {
		s := NewStore(nil)

		added, err := s.ToggleIgnoreLink(testLink)
		if err != nil {
			t.Fatalf("first toggle error = %v", err)
		}
		if !added {
			t.Error("first toggle = false, want true (added)")
		}

		ignored, err := s.IgnoredLinks("user1")
		if err != nil {
			t.Fatalf("IgnoredLinks() error = %v", err)
		}
		if len(ignored) != 1 || ignored[0] != tiktok.Link(testLink) {
			t.Errorf("IgnoredLinks = %v, want [%s]", ignored, testLink)
		}

		added, err = s.ToggleIgnoreLink(testLink)
		if err != nil {
			t.Fatalf("second toggle error = %v", err)
		}
		if added {
			t.Error("second toggle = true, want false (removed)")
		}

		ignored, _ = s.IgnoredLinks("user1")
		if len(ignored) != 0 {
			t.Errorf("IgnoredLinks after involution = %v, want empty", ignored)
		}
	})

	t.Run("normalizes before toggling", func(t *testing.T) {
		s := NewStore(nil)
		if _, err := s.ToggleIgnoreLink(testLink + "?is_copy_url=1"); err != nil {
			t.Fatalf("toggle error = %v", err)
		}
		removed, err := s.ToggleIgnoreLink(" " + testLink + "/")
		if err != nil {
			t.Fatalf("toggle error = %v", err)
		}
		if removed {
			t.Error("variant forms of the same link did not collapse")
		}
	})

	t.Run("derives the owner from the link", func(t *testing.T) {
		s := NewStore(nil)
		if _, err := s.ToggleIgnoreLink(testLink); err != nil {
			t.Fatalf("toggle error = %v", err)
		}
		if !s.IsConfigured("user1") {
			t.Error("owner policy was not auto-created")
		}
		if !s.IsIgnored(tiktok.Link(testLink)) {
			t.Error("IsIgnored = false for a toggled link")
		}
	})

	t.Run("rejects invalid links", func(t *testing.T) {
		s := NewStore(nil)
		var invalid *tiktok.InvalidLinkError
		if _, err := s.ToggleIgnoreLink("not a link"); !errors.As(err, &invalid) {
			t.Errorf("toggle error = %v, want InvalidLinkError", err)
		}
	})
}

func TestStore_DeleteUser(t *testing.T) {
	s := NewStore(nil)
	if err := s.CreateDefault("user1"); err != nil {
		t.Fatalf("CreateDefault() error = %v", err)
	}
	if err := s.DeleteUser("USER1"); err != nil {
		t.Fatalf("DeleteUser() error = %v", err)
	}
	if s.IsConfigured("user1") {
		t.Error("user still configured after delete")
	}
}

func TestStore_Users(t *testing.T) {
	s := NewStore(nil)
	for _, u := range []string{"bob", "alice", "alicia", "carol"} {
		if err := s.CreateDefault(u); err != nil {
			t.Fatalf("CreateDefault(%s) error = %v", u, err)
		}
	}

	t.Run("match all is sorted", func(t *testing.T) {
		users, err := s.Users(".*")
		if err != nil {
			t.Fatalf("Users() error = %v", err)
		}
		want := []tiktok.Username{"alice", "alicia", "bob", "carol"}
		if !reflect.DeepEqual(users, want) {
			t.Errorf("Users = %v, want %v", users, want)
		}
	})

	t.Run("filter must fully match", func(t *testing.T) {
		users, err := s.Users("alice")
		if err != nil {
			t.Fatalf("Users() error = %v", err)
		}
		want := []tiktok.Username{"alice"}
		if !reflect.DeepEqual(users, want) {
			t.Errorf("Users = %v, want %v (partial matches must not count)", users, want)
		}
	})

	t.Run("bad pattern", func(t *testing.T) {
		var invalid *tiktok.InvalidPatternError
		if _, err := s.Users("a[b"); !errors.As(err, &invalid) {
			t.Errorf("Users() error = %v, want InvalidPatternError", err)
		}
	})
}

func TestStore_Render(t *testing.T) {
	s := NewStore(nil)
	if err := s.SetNotBefore("user1", "20200101"); err != nil {
		t.Fatalf("SetNotBefore() error = %v", err)
	}
	if err := s.SetComment("user1", "favourite chef"); err != nil {
		t.Fatalf("SetComment() error = %v", err)
	}
	if _, err := s.ToggleIgnoreLink(testLink); err != nil {
		t.Fatalf("ToggleIgnoreLink() error = %v", err)
	}

	out, err := s.Render("USER1")
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	want := "Configuration for user1\n" +
		"    Not before: 20200101\n" +
		"    Comment: favourite chef\n" +
		"    Ignored links: 1"
	if out != want {
		t.Errorf("Render() = %q, want %q", out, want)
	}
}

func TestStore_Load(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		s := NewStore(nil)
		err := s.Load(filepath.Join(t.TempDir(), "nope.json"))
		if !errors.Is(err, fs.ErrNotExist) {
			t.Errorf("Load() error = %v, want fs.ErrNotExist", err)
		}
	})

	t.Run("empty object", func(t *testing.T) {
		s := NewStore(nil)
		if err := s.Load(writeConfig(t, "{}")); err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if s.Len() != 0 {
			t.Errorf("Len() = %d, want 0", s.Len())
		}
	})

	t.Run("valid record", func(t *testing.T) {
		s := NewStore(nil)
		path := writeConfig(t, `{"username": {"ignore": ["`+testLink+`", "`+testLink+`"], "notbefore": "20200505", "comment": "Hello"}}`)
		if err := s.Load(path); err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		nb, _ := s.NotBefore("username")
		if nb != "20200505" {
			t.Errorf("NotBefore = %q, want 20200505", nb)
		}
		comment, _ := s.Comment("username")
		if comment != "Hello" {
			t.Errorf("Comment = %q, want Hello", comment)
		}
		ignored, _ := s.IgnoredLinks("username")
		if len(ignored) != 1 {
			t.Errorf("len(IgnoredLinks) = %d, want 1 (duplicates collapse)", len(ignored))
		}
	})

	t.Run("malformed json", func(t *testing.T) {
		s := NewStore(nil)
		err := s.Load(writeConfig(t, `{"username": {"ignore": ["link", "link2", "notbefore"`))
		var malformed *tiktok.MalformedJSONError
		if !errors.As(err, &malformed) {
			t.Errorf("Load() error = %v, want MalformedJSONError", err)
		}
	})

	t.Run("notbefore as number", func(t *testing.T) {
		s := NewStore(nil)
		err := s.Load(writeConfig(t, `{"username": {"ignore": [], "notbefore": 20200505, "comment": "Hello"}}`))
		var invalid *tiktok.InvalidDateError
		if !errors.As(err, &invalid) {
			t.Errorf("Load() error = %v, want InvalidDateError", err)
		}
	})

	t.Run("notbefore wrong shape", func(t *testing.T) {
		s := NewStore(nil)
		err := s.Load(writeConfig(t, `{"username": {"ignore": [], "notbefore": "2020050", "comment": "Hello"}}`))
		var invalid *tiktok.InvalidDateError
		if !errors.As(err, &invalid) {
			t.Errorf("Load() error = %v, want InvalidDateError", err)
		}
	})

	t.Run("comment not a string", func(t *testing.T) {
		s := NewStore(nil)
		err := s.Load(writeConfig(t, `{"username": {"ignore": [], "notbefore": "20200505", "comment": [9]}}`))
		var invalid *tiktok.InvalidCommentError
		if !errors.As(err, &invalid) {
			t.Errorf("Load() error = %v, want InvalidCommentError", err)
		}
	})

	t.Run("ignore not a list", func(t *testing.T) {
		s := NewStore(nil)
		err := s.Load(writeConfig(t, `{"username": {"ignore": "link", "notbefore": "20200505", "comment": "Hello"}}`))
		var invalid *tiktok.InvalidLinkError
		if !errors.As(err, &invalid) {
			t.Errorf("Load() error = %v, want InvalidLinkError", err)
		}
	})

	t.Run("ignore entry not a string", func(t *testing.T) {
		s := NewStore(nil)
		err := s.Load(writeConfig(t, `{"username": {"ignore": ["1", 2], "notbefore": "20200505", "comment": "Hello"}}`))
		var invalid *tiktok.InvalidLinkError
		if !errors.As(err, &invalid) {
			t.Errorf("Load() error = %v, want InvalidLinkError", err)
		}
	})

	t.Run("invalid ignore links are dropped silently", func(t *testing.T) {
		s := NewStore(nil)
		path := writeConfig(t, `{"username": {"ignore": ["nonsense", "`+testLink+`"], "notbefore": "20200505", "comment": ""}}`)
		if err := s.Load(path); err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		ignored, _ := s.IgnoredLinks("username")
		if len(ignored) != 1 || ignored[0] != tiktok.Link(testLink) {
			t.Errorf("IgnoredLinks = %v, want just the valid link", ignored)
		}
	})

	t.Run("missing field fails and preserves previous state", func(t *testing.T) {
		s := NewStore(nil)
		if err := s.SetNotBefore("existing", "20190101"); err != nil {
			t.Fatalf("SetNotBefore() error = %v", err)
		}

		err := s.Load(writeConfig(t, `{"username": {"ignore": [], "notbefore": "20200505"}}`))
		var missing *tiktok.MissingFieldError
		if !errors.As(err, &missing) {
			t.Fatalf("Load() error = %v, want MissingFieldError", err)
		}
		if missing.Field != "comment" {
			t.Errorf("missing field = %q, want comment", missing.Field)
		}

		// The failed load must not have touched the store.
		if s.IsConfigured("username") {
			t.Error("failed load leaked a record into the store")
		}
		nb, err := s.NotBefore("existing")
		if err != nil {
			t.Fatalf("NotBefore() error = %v", err)
		}
		if nb != "20190101" {
			t.Errorf("NotBefore = %q, want 20190101", nb)
		}
	})

	t.Run("canonical-cased entry wins a case collision", func(t *testing.T) {
		s := NewStore(nil)
		path := writeConfig(t, `{"USER1": {"ignore": ["`+testLink+`"], "notbefore": "12345678", "comment": "abc"},`+
			`"user1": {"ignore": ["`+testLink+`", "`+testLink2+`"], "notbefore": "20200505", "comment": "Hello"}}`)
		if err := s.Load(path); err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if s.Len() != 1 {
			t.Fatalf("Len() = %d, want 1", s.Len())
		}
		nb, _ := s.NotBefore("user1")
		if nb != "20200505" {
			t.Errorf("NotBefore = %q, want the canonical entry's 20200505", nb)
		}
		ignored, _ := s.IgnoredLinks("user1")
		if len(ignored) != 2 {
			t.Errorf("len(IgnoredLinks) = %d, want 2", len(ignored))
		}
	})

	t.Run("non-canonical entry survives under its folded name", func(t *testing.T) {
		s := NewStore(nil)
		path := writeConfig(t, `{"UserNAME": {"ignore": [], "notbefore": "20200505", "comment": "Hello"}}`)
		if err := s.Load(path); err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if !s.IsConfigured("username") {
			t.Error("folded record missing")
		}
	})

	t.Run("two non-canonical variants keep exactly one survivor", func(t *testing.T) {
		s := NewStore(nil)
		path := writeConfig(t, `{"USERNAME": {"ignore": [], "notbefore": "12345678", "comment": "abc"},`+
			`"userName": {"ignore": [], "notbefore": "20200505", "comment": "Hello"}}`)
		if err := s.Load(path); err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if s.Len() != 1 {
			t.Fatalf("Len() = %d, want 1", s.Len())
		}
		if !s.IsConfigured("username") {
			t.Error("survivor not keyed by folded username")
		}
	})
}

func TestStore_SaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")

	s := NewStore(nil)
	if err := s.SetNotBefore("user1", "20200101"); err != nil {
		t.Fatalf("SetNotBefore() error = %v", err)
	}
	if err := s.SetComment("user1", "first"); err != nil {
		t.Fatalf("SetComment() error = %v", err)
	}
	if _, err := s.ToggleIgnoreLink(testLink); err != nil {
		t.Fatalf("ToggleIgnoreLink() error = %v", err)
	}
	if _, err := s.ToggleIgnoreLink(testLink2); err != nil {
		t.Fatalf("ToggleIgnoreLink() error = %v", err)
	}
	if err := s.CreateDefault("user2"); err != nil {
		t.Fatalf("CreateDefault() error = %v", err)
	}

	if err := s.Save(path); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded := NewStore(nil)
	if err := loaded.Load(path); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if loaded.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", loaded.Len())
	}
	nb, _ := loaded.NotBefore("user1")
	if nb != "20200101" {
		t.Errorf("NotBefore = %q, want 20200101", nb)
	}
	comment, _ := loaded.Comment("user1")
	if comment != "first" {
		t.Errorf("Comment = %q, want first", comment)
	}
	ignored, _ := loaded.IgnoredLinks("user1")
	want := []tiktok.Link{tiktok.Link(testLink), tiktok.Link(testLink2)}
	if !reflect.DeepEqual(ignored, want) {
		t.Errorf("IgnoredLinks = %v, want %v", ignored, want)
	}
	nb2, _ := loaded.NotBefore("user2")
	if nb2 != DefaultNotBefore {
		t.Errorf("user2 NotBefore = %q, want %q", nb2, DefaultNotBefore)
	}
}

func TestStore_Save_Overwrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(strings.Repeat("x", 4096)), 0644); err != nil {
		t.Fatalf("seeding file: %v", err)
	}

	s := NewStore(nil)
	if err := s.CreateDefault("user1"); err != nil {
		t.Fatalf("CreateDefault() error = %v", err)
	}
	if err := s.Save(path); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded := NewStore(nil)
	if err := loaded.Load(path); err != nil {
		t.Fatalf("Load() after overwrite error = %v", err)
	}
	if loaded.Len() != 1 || !loaded.IsConfigured("user1") {
		t.Error("overwritten file did not round-trip")
	}
}
