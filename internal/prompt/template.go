// Package prompt renders the instructions sent to the generation oracle.
//
// Interpolated values are treated as data: text/template never re-scans
// substituted text, so schema or glossary content containing template syntax
// such as "{{" reaches the oracle unchanged.
package prompt

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
)

type Template struct {
	tmpl *template.Template
}

func New(name, text string) (*Template, error) {
	tmpl, err := template.New(name).Option("missingkey=error").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("failed to parse prompt %s: %w", name, err)
	}
	return &Template{tmpl: tmpl}, nil
}

func Must(t *Template, err error) *Template {
	if err != nil {
		panic(err)
	}
	return t
}

func (t *Template) Render(data any) (string, error) {
	var buf bytes.Buffer
	if err := t.tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render prompt %s: %w", t.tmpl.Name(), err)
	}
	return strings.TrimSpace(buf.String()), nil
}

const noExistingQuestions = "(No existing questions yet)"

// ExistingQuestions joins prior questions one per line, or returns a
// placeholder when there are none.
func ExistingQuestions(prior []string) string {
	lines := make([]string, 0, len(prior))
	for _, q := range prior {
		if q = strings.TrimSpace(q); q != "" {
			lines = append(lines, q)
		}
	}
	if len(lines) == 0 {
		return noExistingQuestions
	}
	return strings.Join(lines, "\n")
}
