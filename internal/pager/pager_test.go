package pager

import (
	"errors"
	"strings"
	"testing"
)

func stubHeight(t *testing.T, height int, err error) {
	t.Helper()
	orig := terminalHeight
	terminalHeight = func() (int, error) { return height, err }
	t.Cleanup(func() { terminalHeight = orig })
}

func TestCreatePages(t *testing.T) {
	tests := []struct {
		name         string
		text         string
		linesPerPage int
		want         []string
	}{
		{"empty text one page", "", 20, []string{""}},
		{"single line one page", "Hello, world!", 20, []string{"Hello, world!"}},
		{"multiple lines one page", "Hello,\nworld!", 20, []string{"Hello,\nworld!"}},
		{"two pages", "Hello,\nworld!", 1, []string{"Hello,\n", "world!"}},
		{"three pages", "Hello,\nworld!\nIt's me again!", 1,
			[]string{"Hello,\n", "world!\n", "It's me again!"}},
		{"two lines per page", "Pg1Ln1\nPg1Ln2\nPg2Ln1\nPg2Ln2\nPg3Ln1\nPg3Ln2", 2,
			[]string{"Pg1Ln1\nPg1Ln2\n", "Pg2Ln1\nPg2Ln2\n", "Pg3Ln1\nPg3Ln2"}},
		{"trailing newline adds empty page", "Pg1Ln1\nPg1Ln2\nPg2Ln1\nPg2Ln2\n", 2,
			[]string{"Pg1Ln1\nPg1Ln2\n", "Pg2Ln1\nPg2Ln2\n", ""}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CreatePages(tt.text, tt.linesPerPage)
			if len(got) != len(tt.want) {
				t.Fatalf("got %d pages %q, want %d", len(got), got, len(tt.want))
			}
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Errorf("page %d = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestCreatePages_JoiningPagesReproducesText(t *testing.T) {
	text := "one\ntwo\nthree\nfour\nfive"
	pages := CreatePages(text, 2)
	if got := strings.Join(pages, ""); got != text {
		t.Errorf("joined pages = %q, want %q", got, text)
	}
}

func TestCreatePages_TerminalHeight(t *testing.T) {
	text := strings.Repeat("line\n", 19) + "line"

	t.Run("uses terminal height when unset", func(t *testing.T) {
		stubHeight(t, 13, nil)
		pages := CreatePages(text, 0)
		if len(pages) != 2 {
			t.Errorf("got %d pages, want 2", len(pages))
		}
	})

	t.Run("short terminal yields one page", func(t *testing.T) {
		stubHeight(t, 2, nil)
		pages := CreatePages(text, 0)
		if len(pages) != 1 {
			t.Errorf("got %d pages, want 1", len(pages))
		}
	})

	t.Run("size query failure yields one page", func(t *testing.T) {
		stubHeight(t, 0, errors.New("not a terminal"))
		pages := CreatePages(text, -383)
		if len(pages) != 1 {
			t.Errorf("got %d pages, want 1", len(pages))
		}
	})
}

func TestPager_PrintPages(t *testing.T) {
	t.Run("prints pages with footers", func(t *testing.T) {
		var out strings.Builder
		p := &Pager{Out: &out, In: strings.NewReader("\n\n")}

		p.PrintPages([]string{"first", "second"})

		got := out.String()
		for _, want := range []string{
			"first\n",
			"Page 1 out of 2 (press enter to continue)...",
			"second\n",
			"Page 2 out of 2...",
		} {
			if !strings.Contains(got, want) {
				t.Errorf("output %q missing %q", got, want)
			}
		}
		if strings.Count(got, "press enter to continue") != 1 {
			t.Errorf("continue hint should appear exactly once in %q", got)
		}
	})

	t.Run("empty page list prints nothing", func(t *testing.T) {
		var out strings.Builder
		p := &Pager{Out: &out, In: strings.NewReader("")}

		p.PrintPages(nil)

		if out.Len() != 0 {
			t.Errorf("output = %q, want empty", out.String())
		}
	})

	t.Run("stops when input closes", func(t *testing.T) {
		var out strings.Builder
		p := &Pager{Out: &out, In: strings.NewReader("")}

		p.PrintPages([]string{"first", "second"})

		if strings.Contains(out.String(), "second") {
			t.Errorf("second page printed without input: %q", out.String())
		}
	})
}
