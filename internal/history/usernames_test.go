package history

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/CasualYT31/tiktok-dl/internal/tiktok"
)

func TestUpdateUsernameFile(t *testing.T) {
	t.Run("creates file with sorted names", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "usernames.txt")

		err := UpdateUsernameFile(path, []tiktok.Username{"zeta", "alpha"})
		if err != nil {
			t.Fatalf("UpdateUsernameFile() error = %v", err)
		}

		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("reading file: %v", err)
		}
		if got, want := string(data), "alpha\nzeta\n"; got != want {
			t.Errorf("file contents = %q, want %q", got, want)
		}
	})

	t.Run("merges with existing names", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "usernames.txt")
		if err := os.WriteFile(path, []byte("existing\nalpha\n"), 0644); err != nil {
			t.Fatalf("seeding file: %v", err)
		}

		if err := UpdateUsernameFile(path, []tiktok.Username{"alpha", "newuser"}); err != nil {
			t.Fatalf("UpdateUsernameFile() error = %v", err)
		}

		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("reading file: %v", err)
		}
		if got, want := string(data), "alpha\nexisting\nnewuser\n"; got != want {
			t.Errorf("file contents = %q, want %q", got, want)
		}
	})

	t.Run("drops invalid lines", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "usernames.txt")
		if err := os.WriteFile(path, []byte("good\nhas spaces in it\n\n"), 0644); err != nil {
			t.Fatalf("seeding file: %v", err)
		}

		if err := UpdateUsernameFile(path, nil); err != nil {
			t.Fatalf("UpdateUsernameFile() error = %v", err)
		}

		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("reading file: %v", err)
		}
		if got, want := string(data), "good\n"; got != want {
			t.Errorf("file contents = %q, want %q", got, want)
		}
	})
}

func TestReadUsernameFile(t *testing.T) {
	t.Run("missing file yields empty list", func(t *testing.T) {
		names, err := ReadUsernameFile(filepath.Join(t.TempDir(), "absent.txt"))
		if err != nil {
			t.Fatalf("ReadUsernameFile() error = %v", err)
		}
		if len(names) != 0 {
			t.Errorf("got %d names, want 0", len(names))
		}
	})

	t.Run("returns sorted valid names", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "usernames.txt")
		if err := os.WriteFile(path, []byte("zeta\nbad user\nalpha\n"), 0644); err != nil {
			t.Fatalf("seeding file: %v", err)
		}

		names, err := ReadUsernameFile(path)
		if err != nil {
			t.Fatalf("ReadUsernameFile() error = %v", err)
		}
		want := []tiktok.Username{"alpha", "zeta"}
		if len(names) != len(want) {
			t.Fatalf("got %v, want %v", names, want)
		}
		for i := range want {
			if names[i] != want[i] {
				t.Errorf("names[%d] = %s, want %s", i, names[i], want[i])
			}
		}
	})
}
