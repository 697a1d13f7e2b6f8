package export

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCSVRenderEscapesFormulaCells(t *testing.T) {
	data := Dataset{
		Headers: []string{"Name", "Note"},
		Rows: []map[string]string{
			{"Name": "Amira", "Note": "=HYPERLINK(\"http://evil\")"},
			{"Name": "Bima", "Note": "plain text"},
		},
	}

	out, err := NewCSVExporter().Render(data)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "Name,Note", lines[0])
	assert.Contains(t, lines[1], "'=HYPERLINK")
	assert.Equal(t, "Bima,plain text", lines[2])
}

func TestCSVRenderRequiresHeaders(t *testing.T) {
	_, err := NewCSVExporter().Render(Dataset{})
	require.Error(t, err)
}

func TestPDFRenderProducesDocument(t *testing.T) {
	data := Dataset{
		Headers: []string{"Teacher", "Assigned"},
		Rows:    []map[string]string{{"Teacher": "Dr. Hartono", "Assigned": "5"}},
	}

	out, err := NewPDFExporter().Render(data, "Supervision Allocation")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(out), "%PDF"))
}
