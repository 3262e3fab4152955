package sheet

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestXLSXRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "book.xlsx")
	err := Write(path,
		Sheet{Name: "Geography", Header: []string{"Question", "Correct answer"}, Rows: [][]any{
			{"Capital of France?", "Paris"},
			{"Capital of Italy?", "Rome"},
		}},
		Sheet{Name: "Scores", Header: []string{"student_id", "score"}, Rows: [][]any{
			{"s1", 12.5},
		}},
	)
	require.NoError(t, err)

	tables, err := Read(path)
	require.NoError(t, err)
	require.Len(t, tables, 2)

	geo := tables[0]
	assert.Equal(t, "Geography", geo.Name)
	assert.Equal(t, []string{"Question", "Correct answer"}, geo.Header)
	require.Len(t, geo.Rows, 2)
	assert.Equal(t, "Rome", geo.Cell(1, 1))

	assert.Equal(t, "Scores", tables[1].Name)
	assert.Equal(t, "12.5", tables[1].Cell(0, 1))
}

func TestCSVRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "History.csv")
	body := "Testo della domanda,Risposta corretta,Alternativa 1,Alternativa 2\n" +
		"Who?,Caesar,Brutus\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	tables, err := Read(path)
	require.NoError(t, err)
	require.Len(t, tables, 1)

	tb := tables[0]
	assert.Equal(t, "History", tb.Name)
	assert.Equal(t, 1, tb.Column("risposta corretta", "Correct answer"))
	assert.Equal(t, []int{2, 3}, tb.ColumnsWithPrefix("alternativa", "distractor"))
	assert.Equal(t, "Brutus", tb.Cell(0, 2))
	assert.Equal(t, "", tb.Cell(0, 3), "short rows read as blank")
	assert.Equal(t, "", tb.Cell(5, 0))
}

func TestCSVWriteSingleSheet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	require.NoError(t, Write(path, Sheet{Name: "x", Header: []string{"a", "b"}, Rows: [][]any{{1, 2.25}}}))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "a,b\n1,2.25\n", string(data))

	err = Write(path, Sheet{Name: "x"}, Sheet{Name: "y"})
	assert.Error(t, err)
}

func TestUnsupportedFormat(t *testing.T) {
	_, err := Read("questions.ods")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestBlankRowAndSheetRow(t *testing.T) {
	tb := Table{Header: []string{"a", "b"}, Rows: [][]string{{" ", ""}, {"", "x"}}}
	assert.True(t, tb.BlankRow(0))
	assert.False(t, tb.BlankRow(1))
	assert.Equal(t, 2, SheetRow(0))
}
