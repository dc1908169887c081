package export

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCSVExporterRender(t *testing.T) {
	data := Dataset{Headers: []string{"Student Name", "Class", "Amount"}}
	require.NoError(t, data.AddRow("Asha, Rao", "JR KG", "10000.00"))

	out, err := NewCSVExporter().Render(data)
	require.NoError(t, err)
	assert.Equal(t, "Student Name,Class,Amount\n\"Asha, Rao\",JR KG,10000.00\n", string(out))
}

func TestCSVExporterRejectsRaggedRows(t *testing.T) {
	data := Dataset{Headers: []string{"A", "B"}, Rows: [][]string{{"only-one"}}}
	_, err := NewCSVExporter().Render(data)
	require.Error(t, err)
	require.Error(t, data.AddRow("x"))
}

func TestReadRecordsKeysByHeader(t *testing.T) {
	input := "\ufeffName , CLASS,contact\nAsha,JR KG,98765\nRavi,SR KG\n"
	records, err := ReadRecords(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, "Asha", records[0].Get("name"))
	assert.Equal(t, "JR KG", records[0].Get("class"))
	assert.Equal(t, "98765", records[0].Get("contact"))
	assert.Equal(t, 2, records[0].Line)

	assert.Equal(t, "Ravi", records[1].Get("name"))
	assert.Equal(t, "", records[1].Get("contact"))
}

func TestReadRecordsEmptyInput(t *testing.T) {
	_, err := ReadRecords(strings.NewReader(""))
	require.Error(t, err)
}

func TestPDFExporterRender(t *testing.T) {
	data := Dataset{Title: "Outstanding Fees", Headers: []string{"Student Name", "Class", "Pending"}}
	for i := 0; i < 80; i++ {
		require.NoError(t, data.AddRow("Student", "MINI KG", "19000.00"))
	}
	out, err := NewPDFExporter().Render(data)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
}

func TestReceiptRendererWrite(t *testing.T) {
	buf := &bytes.Buffer{}
	err := NewReceiptRenderer().Write(buf, Receipt{
		School:      School{Name: "Little Angels Pre-School", Slogan: "CHOOSE SMART, BE SMART"},
		Number:      "0007",
		IssuedOn:    "15/01/2024",
		StudentName: "Asha Rao",
		Class:       "JR KG",
		Amount:      "10000.00",
		TotalFee:    "19000.00",
		PaidToDate:  "10000.00",
		Remaining:   "9000.00",
		Status:      "Pending",
	})
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF")))
}

func TestReceiptRendererRequiresNumber(t *testing.T) {
	err := NewReceiptRenderer().Write(&bytes.Buffer{}, Receipt{})
	require.Error(t, err)
}
