// Package template renders message content with event data.
package template

import (
	"fmt"
	"regexp"
	"strings"
	"text/template"

	"github.com/dukex/marketflow/pkg/models"
)

// placeholder matches {{name}} and {{order.total}} style variables. Native
// text/template actions such as {{ .name | upper }} do not match and are
// passed through untouched.
var placeholder = regexp.MustCompile(`\{\{\s*([A-Za-z_][A-Za-z0-9_]*(?:\.[A-Za-z0-9_]+)*)\s*\}\}`)

var funcs = template.FuncMap{
	"lookup": lookup,
	"upper":  strings.ToUpper,
	"lower": strings.ToLower,
}

// Vars builds the variables visible to a message: the event data plus the
// subject fields of the execution context. Event data wins on conflicts.
func Vars(execCtx *models.ExecutionContext) map[string]any {
	vars := map[string]any{
		"subject_id":          execCtx.SubjectID,
		"destination_address": execCtx.DestinationAddress,
		"order_ref":           execCtx.OrderRef,
	}

	for key, value := range execCtx.EventData {
		vars[key] = value
	}

	return vars
}

// Render substitutes vars into input. Unknown variables render as empty
// strings. The output depends only on input and vars.
func Render(input string, vars map[string]any) (string, error) {
	if !strings.Contains(input, "{{") {
		return input, nil
	}

	source := placeholder.ReplaceAllString(input, `{{ lookup . "$1" }}`)

	tmpl, err := template.New("message").Funcs(funcs).Option("missingkey=zero").Parse(source)
	if err != nil {
		return "", fmt.Errorf("failed to parse template '%s': %w", input, err)
	}

	var buf strings.Builder

	err = tmpl.Execute(&buf, vars)
	if err != nil {
		return "", fmt.Errorf("failed to execute template '%s': %w", input, err)
	}

	return buf.String(), nil
}

// lookup resolves a possibly dotted key. An exact key match wins over
// descending into nested maps.
func lookup(vars map[string]any, key string) string {
	if value, ok := vars[key]; ok {
		return format(value)
	}

	var current any = vars

	for _, part := range strings.Split(key, ".") {
		nested, ok := current.(map[string]any)
		if !ok {
			return ""
		}

		current, ok = nested[part]
		if !ok {
			return ""
		}
	}

	return format(current)
}

func format(value any) string {
	if value == nil {
		return ""
	}

	return fmt.Sprint(value)
}
