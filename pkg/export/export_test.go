package export

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleDataset() Dataset {
	return Dataset{
		Headers: []string{"Building", "Status", "Price"},
		Rows: []map[string]string{
			{"Building": "Av. Siempre Viva 742", "Status": "pending", "Price": "150.00"},
			{"Building": "Calle 9", "Status": "completed", "Price": "200.50"},
		},
		Footer: map[string]string{"Building": "TOTAL", "Price": "350.50"},
	}
}

func TestCSVExporterRendersFooter(t *testing.T) {
	out, err := NewCSVExporter().Render(sampleDataset())
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "Building,Status,Price", lines[0])
	assert.Equal(t, "Av. Siempre Viva 742,pending,150.00", lines[1])
	assert.Equal(t, "TOTAL,,350.50", lines[3])
}

func TestCSVExporterRequiresHeaders(t *testing.T) {
	_, err := NewCSVExporter().Render(Dataset{})
	require.Error(t, err)
}

func TestPDFExporterRender(t *testing.T) {
	out, err := NewPDFExporter().Render(sampleDataset(), "Work orders 03/2025")
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
}
