package content

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

func TestDefaultIsValid(t *testing.T) {
	pack := Default()
	if err := pack.Validate(); err != nil {
		t.Fatalf("default pack invalid: %v", err)
	}
	if len(pack.Topics) < 2 {
		t.Fatalf("expected a rotatable topic pool, got %d topics", len(pack.Topics))
	}
	for _, token := range []string{"/joke", "/excuse", "/rant", "/tip"} {
		if len(pack.Commands[token]) == 0 {
			t.Fatalf("expected replies for %s", token)
		}
	}
}

func TestDefaultReturnsCopies(t *testing.T) {
	a := Default()
	a.Topics[0] = "changed"
	a.Commands["/joke"][0] = "changed"

	b := Default()
	if b.Topics[0] == "changed" || b.Commands["/joke"][0] == "changed" {
		t.Fatalf("expected Default to return independent copies")
	}
}

func TestParseOverridesOnlyPresentSections(t *testing.T) {
	pack, err := Parse([]byte(`
botName: "Robo"
topics:
  - "one"
  - "two"
`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pack.BotName != "Robo" {
		t.Fatalf("expected bot name override, got %q", pack.BotName)
	}
	if len(pack.Topics) != 2 || pack.Topics[1] != "two" {
		t.Fatalf("unexpected topics %+v", pack.Topics)
	}
	if pack.Help != DefaultHelp {
		t.Fatalf("expected default help to be kept")
	}
	if len(pack.Commands["/joke"]) != len(DefaultCommands["/joke"]) {
		t.Fatalf("expected default commands to be kept")
	}
}

func TestParseRejectsInvalidPacks(t *testing.T) {
	cases := map[string]string{
		"bad yaml":       "topics: [unterminated",
		"empty replies":  "commands:\n  /joke: []\n",
		"no slash":       "commands:\n  joke: [\"x\"]\n",
		"blank topic":    "topics: [\"  \"]\n",
		"space in token": "commands:\n  \"/a b\": [\"x\"]\n",
		"blank reply":    "commands:\n  /x: [\"\"]\n",
		"spaces reply":   "commands:\n  /x: [\"ok\", \"  \"]\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Parse([]byte(doc)); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pack.yaml")
	if err := os.WriteFile(path, []byte("commands:\n  /ping: [\"pong\"]\n"), 0o644); err != nil {
		t.Fatalf("write pack: %v", err)
	}
	pack, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pack.Commands) != 1 || pack.Commands["/ping"][0] != "pong" {
		t.Fatalf("unexpected commands %+v", pack.Commands)
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestWatchReloadsChangedPack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pack.yaml")
	if err := os.WriteFile(path, []byte("topics: [\"a\", \"b\"]\n"), 0o644); err != nil {
		t.Fatalf("write pack: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	packs := make(chan Pack, 16)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, path, zerolog.Nop(), func(p Pack) { packs <- p })
	}()

	// the watcher registers asynchronously, so keep editing until a reload lands
	deadline := time.After(5 * time.Second)
	for i := 0; ; i++ {
		doc := fmt.Sprintf("botName: \"Robo %d\"\ntopics: [\"c\", \"d\"]\n", i)
		if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
			t.Fatalf("rewrite pack: %v", err)
		}
		select {
		case p := <-packs:
			if len(p.Topics) != 2 || p.Topics[0] != "c" {
				t.Fatalf("unexpected reloaded pack %+v", p)
			}
			cancel()
			if err := <-done; err != nil {
				t.Fatalf("watch: %v", err)
			}
			return
		case <-time.After(4 * RELOAD_DEBOUNCE):
		case <-deadline:
			t.Fatalf("no reload observed")
		}
	}
}

func TestWatchMissingDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nope", "pack.yaml")
	if err := Watch(context.Background(), path, zerolog.Nop(), func(Pack) {}); err == nil {
		t.Fatalf("expected error watching a missing directory")
	}
}

func TestIsPackEventMatchesExactName(t *testing.T) {
	dir := t.TempDir()
	cases := []struct {
		name string
		op   fsnotify.Op
		want bool
	}{
		{"pack.yaml", fsnotify.Write, true},
		{"pack.yaml", fsnotify.Create, true},
		{"pack.yaml", fsnotify.Rename, true},
		{"pack.yaml", fsnotify.Chmod, false},
		{"Pack.yaml", fsnotify.Write, false},
		{"PACK.YAML", fsnotify.Create, false},
		{"other.yaml", fsnotify.Write, false},
	}
	for _, tc := range cases {
		ev := fsnotify.Event{Name: filepath.Join(dir, tc.name), Op: tc.op}
		if got := isPackEvent(ev, "pack.yaml"); got != tc.want {
			t.Fatalf("isPackEvent(%s %v) = %v, want %v", tc.name, tc.op, got, tc.want)
		}
	}
}
