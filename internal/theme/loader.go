package theme

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Loader resolves a theme name. Lookup order is: [theme.<name>] sections
// from the rc file, an existing file path, the embedded themes, then each
// directory in Dirs.
type Loader struct {
	// Sections holds themes defined inline in the config, keyed by
	// lower-case name.
	Sections map[string]*Theme
	Dirs     []string
}

// NewLoader returns a Loader over the config sections plus the user and
// system theme directories.
func NewLoader(sections map[string]*Theme) *Loader {
	l := &Loader{Sections: sections}
	if dir, err := os.UserConfigDir(); err == nil {
		l.Dirs = append(l.Dirs, filepath.Join(dir, "pagemark", "themes"))
	}
	l.Dirs = append(l.Dirs, "/usr/share/pagemark/themes")
	return l
}

// Load returns the named theme. An empty name or "default" yields Default.
// Themes without a palette get the default annotation palette.
func (l *Loader) Load(name string) (*Theme, error) {
	name = strings.TrimSpace(name)
	if name == "" || strings.EqualFold(name, "default") {
		return Default(), nil
	}
	if t, ok := l.Sections[strings.ToLower(name)]; ok && t != nil {
		return withPalette(t), nil
	}
	if info, err := os.Stat(name); err == nil && !info.IsDir() {
		return parseFile(name)
	}

	filename := name
	if !strings.HasSuffix(filename, ".theme") {
		filename += ".theme"
	}
	if f, err := EmbeddedThemes.Open("defaults/" + filename); err == nil {
		defer f.Close()
		t, err := Parse(f)
		if err != nil {
			return nil, fmt.Errorf("embedded theme %s: %w", name, err)
		}
		return withPalette(t), nil
	}
	for _, dir := range l.Dirs {
		path := filepath.Join(dir, filename)
		if _, err := os.Stat(path); err == nil {
			return parseFile(path)
		}
	}
	return nil, fmt.Errorf("theme '%s' not found (available: %s)", name, strings.Join(l.Names(), ", "))
}

// Names lists the config and embedded theme names.
func (l *Loader) Names() []string {
	seen := map[string]bool{"default": true}
	for name := range l.Sections {
		seen[name] = true
	}
	entries, _ := fs.ReadDir(EmbeddedThemes, "defaults")
	for _, e := range entries {
		if n, ok := strings.CutSuffix(e.Name(), ".theme"); ok {
			seen[n] = true
		}
	}
	names := make([]string, 0, len(seen))
	for n := range seen {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func parseFile(path string) (*Theme, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	t, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("theme %s: %w", path, err)
	}
	if t.Name == "" || t.Name == Default().Name {
		t.Name = strings.TrimSuffix(filepath.Base(path), ".theme")
	}
	return withPalette(t), nil
}

func withPalette(t *Theme) *Theme {
	if len(t.Palette) == 0 {
		t.Palette = DefaultPalette()
	}
	return t
}
