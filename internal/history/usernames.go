package history

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strings"

	tfs "github.com/CasualYT31/tiktok-dl/internal/fs"
	"github.com/CasualYT31/tiktok-dl/internal/tiktok"
)

// UpdateUsernameFile merges users into the username list at path and writes
// it back sorted, one name per line. Lines that are not valid usernames are
// dropped. A missing file is treated as an empty list.
func UpdateUsernameFile(path string, users []tiktok.Username) error {
	names := make(map[tiktok.Username]struct{}, len(users))

	data, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("reading username list: %w", err)
	}
	if err == nil {
		for _, line := range strings.Split(strings.ReplaceAll(string(data), "\r\n", "\n"), "\n") {
			name := tiktok.NewUsername(line)
			if name.IsValid() {
				names[name] = struct{}{}
			}
		}
	}

	for _, user := range users {
		if user.IsValid() {
			names[user] = struct{}{}
		}
	}

	sorted := make([]string, 0, len(names))
	for name := range names {
		sorted = append(sorted, name.String())
	}
	sort.Strings(sorted)

	w, err := tfs.NewAtomicWriter(path)
	if err != nil {
		return fmt.Errorf("preparing username list write: %w", err)
	}
	for _, name := range sorted {
		if _, err := fmt.Fprintln(w, name); err != nil {
			w.Abort()
			return fmt.Errorf("writing username list: %w", err)
		}
	}
	if err := w.Commit(); err != nil {
		return fmt.Errorf("writing username list: %w", err)
	}
	return nil
}

// ReadUsernameFile returns the usernames recorded at path, sorted. A missing
// file yields an empty list.
func ReadUsernameFile(path string) ([]tiktok.Username, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading username list: %w", err)
	}

	var names []tiktok.Username
	for _, line := range strings.Split(strings.ReplaceAll(string(data), "\r\n", "\n"), "\n") {
		name := tiktok.NewUsername(line)
		if name.IsValid() {
			names = append(names, name)
		}
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names, nil
}
