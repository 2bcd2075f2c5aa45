package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeScenario(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadScenario_Valid(t *testing.T) {
	path := writeScenario(t, `
name: basic
description: a single commit
steps:
  - commit: {id: aaaaaaaa, summary: one}
`)

	scenario, err := LoadScenario(path)
	require.NoError(t, err)
	assert.Equal(t, "basic", scenario.Name)
	assert.Len(t, scenario.Steps, 1)
	require.NotNil(t, scenario.Steps[0].Commit)
	assert.Equal(t, "aaaaaaaa", scenario.Steps[0].Commit.ID)
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoadScenario_UnknownField(t *testing.T) {
	path := writeScenario(t, `
name: typo
description: misspelled steps key
step:
  - commit: {id: aaaaaaaa, summary: one}
`)

	_, err := LoadScenario(path)
	assert.ErrorContains(t, err, "step")
}

func TestLoadScenario_MissingRequiredFields(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name: "no name",
			content: `
description: d
steps:
  - commit: {id: aaaaaaaa, summary: one}
`,
			wantErr: "name is required",
		},
		{
			name: "no description",
			content: `
name: n
steps:
  - commit: {id: aaaaaaaa, summary: one}
`,
			wantErr: "description is required",
		},
		{
			name: "no steps",
			content: `
name: n
description: d
`,
			wantErr: "steps list is required",
		},
		{
			name: "commit without summary",
			content: `
name: n
description: d
steps:
  - commit: {id: aaaaaaaa}
`,
			wantErr: "summary is required",
		},
		{
			name: "two operations in one step",
			content: `
name: n
description: d
steps:
  - commit: {id: aaaaaaaa, summary: one}
    checkout: {target: master}
`,
			wantErr: "exactly one operation",
		},
		{
			name: "empty step",
			content: `
name: n
description: d
steps:
  - {}
`,
			wantErr: "empty step",
		},
		{
			name: "rebase without pairs",
			content: `
name: n
description: d
steps:
  - rebase: {onto: aaaaaaaa}
`,
			wantErr: "pairs list is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeScenario(t, tt.content)
			_, err := LoadScenario(path)
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}
