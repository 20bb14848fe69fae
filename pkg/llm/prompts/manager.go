package prompts

import (
	"bytes"
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path"
	"strings"
	"text/template"

	"echopaths/pkg/model"
)

//go:embed templates
var defaultTemplates embed.FS

// Template names.
const (
	Outline = "outline.tmpl"
	Segment = "segment.tmpl"
)

// OutlineData feeds the outline template.
type OutlineData struct {
	Journey  *model.Journey
	Total    int
	Duration string
	Style    string
}

// SegmentData feeds the segment template. Context is empty for the first
// segment.
type SegmentData struct {
	Journey      *model.Journey
	Index        int
	Total        int
	Style        string
	ChapterGoal  string
	Context      string
	ContextChars int
	Seconds      int
	Words        int
	Progress     string
}

// Manager handles loading and rendering of prompt templates.
type Manager struct {
	root *template.Template
}

// NewManager loads the built-in templates. When dir is set, templates found
// there replace the built-in ones of the same name.
func NewManager(dir string) (*Manager, error) {
	m := &Manager{}
	m.root = template.New("root").Funcs(template.FuncMap{
		"lower": func(v any) string { return strings.ToLower(fmt.Sprint(v)) },
		"tail":  tailFunc,
	})

	builtin, err := fs.Sub(defaultTemplates, "templates")
	if err != nil {
		return nil, err
	}
	if err := m.load(builtin); err != nil {
		return nil, fmt.Errorf("loading built-in templates: %w", err)
	}
	if dir != "" {
		if _, err := os.Stat(dir); err == nil {
			if err := m.load(os.DirFS(dir)); err != nil {
				return nil, fmt.Errorf("loading templates from %s: %w", dir, err)
			}
		}
	}
	return m, nil
}

// load parses common/ first so the other templates can reference it.
func (m *Manager) load(fsys fs.FS) error {
	var common, rest []string
	err := fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || path.Ext(p) != ".tmpl" {
			return nil
		}
		if strings.HasPrefix(p, "common/") {
			common = append(common, p)
		} else {
			rest = append(rest, p)
		}
		return nil
	})
	if err != nil {
		return err
	}

	for _, p := range common {
		content, err := fs.ReadFile(fsys, p)
		if err != nil {
			return err
		}
		if _, err = m.root.Parse(string(content)); err != nil {
			return fmt.Errorf("parsing %s: %w", p, err)
		}
	}
	for _, p := range rest {
		content, err := fs.ReadFile(fsys, p)
		if err != nil {
			return err
		}
		if _, err = m.root.New(p).Parse(string(content)); err != nil {
			return fmt.Errorf("parsing %s: %w", p, err)
		}
	}
	return nil
}

// Render executes the named template with the provided data.
func (m *Manager) Render(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := m.root.ExecuteTemplate(&buf, name, data); err != nil {
		return "", err
	}
	return strings.TrimSpace(buf.String()), nil
}

// tailFunc keeps the last n runes of s.
func tailFunc(s string, n int) string {
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}
	return string(r[len(r)-n:])
}
