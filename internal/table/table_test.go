package table

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/JonMunkholm/moodlelogsmart/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRead_PadsAndTrims(t *testing.T) {
	in := "\ufeff Time ;User full name;Event name\n22/01/26;Ana\n23/01/26;Bia;Quiz attempt viewed;extra\n"

	tbl, err := Read(strings.NewReader(in), core.CSVFormat{Encoding: "utf-8", Delimiter: ';'})
	require.NoError(t, err)

	assert.Equal(t, []string{"Time", "User full name", "Event name"}, tbl.Header)
	require.Equal(t, 2, tbl.Len())
	assert.Equal(t, []string{"22/01/26", "Ana", ""}, tbl.Rows[0])
	assert.Equal(t, []string{"23/01/26", "Bia", "Quiz attempt viewed"}, tbl.Rows[1])
}

func TestRead_Latin1(t *testing.T) {
	in := "Componente,Hor\xe1rio\nF\xf3rum,22/01/26\n"

	tbl, err := Read(strings.NewReader(in), core.CSVFormat{Encoding: "iso-8859-1", Delimiter: ','})
	require.NoError(t, err)
	assert.Equal(t, []string{"Componente", "Horário"}, tbl.Header)
	assert.Equal(t, []string{"Fórum"}, tbl.Column("Componente"))
}

func TestRead_InvalidUTF8Fails(t *testing.T) {
	in := "Componente,Nome\nF\xf3rum,Jo\xe3o\n"

	_, err := Read(strings.NewReader(in), core.CSVFormat{Encoding: "ascii", Delimiter: ','})
	assert.ErrorIs(t, err, core.ErrEncodingUndetectable)
	assert.Equal(t, core.KindEncodingUndetectable, core.KindOf(err))
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.csv"), core.CSVFormat{Encoding: "ascii", Delimiter: ','})
	assert.ErrorIs(t, err, core.ErrInvalidInput)
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log.csv")
	require.NoError(t, os.WriteFile(path, []byte("a,b\n1,2\n3,4\n"), 0o600))

	tbl, err := Load(path, core.CSVFormat{Encoding: "ascii", Delimiter: ','})
	require.NoError(t, err)
	assert.Equal(t, []string{"2", "4"}, tbl.Column("b"))
	assert.Nil(t, tbl.Column("c"))
}

func TestRename(t *testing.T) {
	tbl := &Table{Header: []string{"Hora", "Nome completo", "Extra"}}
	tbl.Rename(map[string]string{"Hora": "time", "Nome completo": "user_full_name"})

	assert.Equal(t, []string{"time", "user_full_name", "Extra"}, tbl.Header)
	assert.Equal(t, 0, tbl.Index("time"))
	assert.Equal(t, -1, tbl.Index("Hora"))
}
