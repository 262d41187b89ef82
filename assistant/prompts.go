package assistant

import (
	"bytes"
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"

	"github.com/dshills/shopagent/graph/model"
)

//go:embed prompts/*.yaml
var bundledPrompts embed.FS

// promptFile is the on-disk layout of one prompt.
type promptFile struct {
	Name     string `yaml:"name"`
	Template string `yaml:"template"`
}

// PromptData is what agent templates are rendered with.
type PromptData struct {
	AvailableTools []model.ToolSpec
	UserID         string
	CartID         string
}

// Prompts holds one parsed template per agent. It is immutable once built.
type Prompts struct {
	templates map[string]*template.Template
}

// DefaultPrompts returns the bundled prompt set.
func DefaultPrompts() (*Prompts, error) {
	return LoadPrompts(bundledPrompts, "prompts")
}

// LoadPromptDir loads prompts from a directory on disk, falling back to the
// bundled prompt of any agent the directory does not define.
func LoadPromptDir(dir string) (*Prompts, error) {
	p, err := DefaultPrompts()
	if err != nil {
		return nil, err
	}
	override, err := LoadPrompts(os.DirFS(dir), ".")
	if err != nil {
		return nil, err
	}
	for name, t := range override.templates {
		p.templates[name] = t
	}
	return p, nil
}

// LoadPrompts parses every *.yaml file under dir in fsys.
func LoadPrompts(fsys fs.FS, dir string) (*Prompts, error) {
	matches, err := fs.Glob(fsys, path.Join(dir, "*.yaml"))
	if err != nil {
		return nil, fmt.Errorf("prompts: list %s: %w", dir, err)
	}
	p := &Prompts{templates: make(map[string]*template.Template, len(matches))}
	for _, file := range matches {
		data, err := fs.ReadFile(fsys, file)
		if err != nil {
			return nil, fmt.Errorf("prompts: read %s: %w", file, err)
		}
		var pf promptFile
		if err := yaml.Unmarshal(data, &pf); err != nil {
			return nil, fmt.Errorf("prompts: decode %s: %w", file, err)
		}
		if pf.Name == "" || strings.TrimSpace(pf.Template) == "" {
			return nil, fmt.Errorf("prompts: %s needs a name and a template", file)
		}
		if _, dup := p.templates[pf.Name]; dup {
			return nil, fmt.Errorf("prompts: %s redefines %q", file, pf.Name)
		}
		t, err := template.New(pf.Name).Funcs(promptFuncs).Parse(pf.Template)
		if err != nil {
			return nil, fmt.Errorf("prompts: parse %s: %w", file, err)
		}
		p.templates[pf.Name] = t
	}
	return p, nil
}

var promptFuncs = template.FuncMap{
	"yaml": func(v interface{}) (string, error) {
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return "", err
		}
		return strings.TrimRight(buf.String(), "\n"), nil
	},
	"indent": func(n int, s string) string {
		return strings.ReplaceAll(s, "\n", "\n"+strings.Repeat(" ", n))
	},
}

// Render executes the named agent's template.
func (p *Prompts) Render(agent string, data PromptData) (string, error) {
	t, ok := p.templates[agent]
	if !ok {
		return "", fmt.Errorf("prompts: no template for %s", agent)
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("prompts: render %s: %w", agent, err)
	}
	return buf.String(), nil
}

// Has reports whether a template exists for agent.
func (p *Prompts) Has(agent string) bool {
	_, ok := p.templates[agent]
	return ok
}
