package console

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatMessagesWithoutColor(t *testing.T) {
	SetColor(false)

	tests := []struct {
		name     string
		format   func(string) string
		expected string
	}{
		{"info", FormatInfoMessage, "ℹ Running workflow 'all'"},
		{"warning", FormatWarningMessage, "⚠ Running workflow 'all'"},
		{"success", FormatSuccessMessage, "✔ Running workflow 'all'"},
		{"error", FormatErrorMessage, "✘ Running workflow 'all'"},
		{"command", FormatCommandMessage, "$ Running workflow 'all'"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.format("Running workflow 'all'"))
		})
	}
}

func TestRule(t *testing.T) {
	SetColor(false)

	out := Rule("train", 40)
	assert.Contains(t, out, " train ")
	assert.True(t, strings.HasPrefix(out, "───"))
	assert.True(t, strings.HasSuffix(out, "───"))
}

func TestRenderTable(t *testing.T) {
	SetColor(false)

	out := RenderTable(TableConfig{
		Title:   "commands in project.yml",
		Headers: []string{"command", "describe"},
		Rows: [][]string{
			{"preprocess", "Convert the data"},
			{"train", "Train a model"},
		},
	})

	for _, expected := range []string{"commands in project.yml", "command", "describe", "preprocess", "Train a model"} {
		assert.Contains(t, out, expected)
	}
}
