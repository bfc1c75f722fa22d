package export

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTable() Table {
	return Table{
		Columns: []Column{{Key: "action", Title: "Action"}, {Key: "entity", Title: "Entity", Width: 2}},
		Rows: []map[string]string{
			{"action": "create", "entity": "enrollment"},
			{"action": "delete", "entity": "client, with comma"},
		},
	}
}

func TestCSVExporterRender(t *testing.T) {
	out, err := NewCSVExporter().Render(sampleTable(), "")
	require.NoError(t, err)
	assert.Equal(t, "Action,Entity\ncreate,enrollment\ndelete,\"client, with comma\"\n", string(out))
}

func TestExportersRejectEmptyColumns(t *testing.T) {
	_, err := NewCSVExporter().Render(Table{}, "")
	assert.ErrorIs(t, err, ErrNoColumns)
	_, err = NewPDFExporter().Render(Table{}, "x")
	assert.ErrorIs(t, err, ErrNoColumns)
}

func TestPDFExporterRender(t *testing.T) {
	out, err := NewPDFExporter().Render(sampleTable(), "Audit Logs")
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
}

func TestColumnWidthsUseWeights(t *testing.T) {
	widths := columnWidths(sampleTable().Columns)
	require.Len(t, widths, 2)
	assert.InDelta(t, pdfPageWidth/3, widths[0], 0.001)
	assert.InDelta(t, 2*pdfPageWidth/3, widths[1], 0.001)
}
