// Package agent implements the reverser and checker agents and the fix loop
// that drives them. Prompts are baked into the binary so the tool has no
// filesystem dependency for its built-in templates.
package agent

import (
	"bytes"
	"embed"
	"fmt"
	"text/template"
)

//go:embed prompts
var promptFS embed.FS

var promptTemplates = template.Must(template.ParseFS(promptFS, "prompts/*.md"))

// renderPrompt executes a named embedded template with the given data.
func renderPrompt(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := promptTemplates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("render prompt %s: %w", name, err)
	}
	return buf.String(), nil
}
