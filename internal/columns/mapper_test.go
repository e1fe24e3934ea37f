package columns

import (
	"errors"
	"strings"
	"testing"

	"github.com/JonMunkholm/moodlelogsmart/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMap_EnglishExport(t *testing.T) {
	headers := []string{
		"Time", "User full name", "Affected user", "Event context",
		"Component", "Event name", "Description", "Origin", "IP address",
	}

	got, err := Map(headers)
	require.NoError(t, err)

	assert.Equal(t, core.ColumnMapping{
		Time:         "Time",
		UserFullName: "User full name",
		EventName:    "Event name",
		Component:    "Component",
		EventContext: "Event context",
		Description:  "Description",
		AffectedUser: "Affected user",
		Origin:       "Origin",
		IPAddress:    "IP address",
	}, got)
}

func TestMap_PortugueseExport(t *testing.T) {
	headers := []string{
		"Hora", "Nome completo", "Usuário afetado", "Contexto do Evento",
		"Componente", "Nome do evento", "Descrição", "Origem", "endereço IP",
	}

	got, err := Map(headers)
	require.NoError(t, err)

	assert.Equal(t, "Hora", got.Time)
	assert.Equal(t, "Nome completo", got.UserFullName)
	assert.Equal(t, "Nome do evento", got.EventName)
	assert.Equal(t, "Componente", got.Component)
	assert.Equal(t, "Contexto do Evento", got.EventContext)
	assert.Equal(t, "Descrição", got.Description)
	assert.Equal(t, "Usuário afetado", got.AffectedUser)
	assert.Equal(t, "Origem", got.Origin)
	assert.Equal(t, "endereço IP", got.IPAddress)
}

func TestMap_PortugueseAlternatives(t *testing.T) {
	got, err := Map([]string{"Horário", "Nome", "Evento", "Módulo", "Contexto", "Detalhes"})
	require.NoError(t, err)

	assert.Equal(t, "Horário", got.Time)
	assert.Equal(t, "Nome", got.UserFullName)
	assert.Equal(t, "Evento", got.EventName)
	assert.Equal(t, "Módulo", got.Component)
	assert.Equal(t, "Contexto", got.EventContext)
	assert.Equal(t, "Detalhes", got.Description)
	assert.Empty(t, got.AffectedUser)
}

func TestMap_CaseInsensitive(t *testing.T) {
	headers := []string{
		"hora", "NOME COMPLETO", "Usuário Afetado", "CONTEXTO DO EVENTO",
		"componente", "Nome Do Evento", "DESCRIÇÃO", "origem", "Endereço IP",
	}

	got, err := Map(headers)
	require.NoError(t, err)

	assert.Equal(t, "hora", got.Time)
	assert.Equal(t, "NOME COMPLETO", got.UserFullName)
	assert.Equal(t, "Usuário Afetado", got.AffectedUser)
	assert.Equal(t, "CONTEXTO DO EVENTO", got.EventContext)
	assert.Equal(t, "DESCRIÇÃO", got.Description)
	assert.Equal(t, "Endereço IP", got.IPAddress)
}

func TestMap_DecomposedAccents(t *testing.T) {
	// "Descrição" written with combining marks (NFD), as some macOS tools do.
	nfd := "Descric\u0327a\u0303o"
	got, err := Map([]string{"Time", "User", "Event", "Component", "Context", nfd})
	require.NoError(t, err)
	assert.Equal(t, nfd, got.Description)
}

func TestMap_ExactPreemptsFuzzy(t *testing.T) {
	// "Timestamps" is a close fuzzy match, but "Time" is exact.
	got, err := Map([]string{"Timestamps", "Time", "User", "Event", "Component", "Context", "Details"})
	require.NoError(t, err)
	assert.Equal(t, "Time", got.Time)
}

func TestMap_FuzzyMatch(t *testing.T) {
	got, err := Map([]string{"Timestamps", "User full names", "Event nam", "Component", "Event context", "Description"})
	require.NoError(t, err)

	assert.Equal(t, "Timestamps", got.Time)
	assert.Equal(t, "User full names", got.UserFullName)
	assert.Equal(t, "Event nam", got.EventName)
}

func TestMap_HeaderClaimedOnce(t *testing.T) {
	always := func(a, b string) float64 { return 90 }
	headers := []string{"a", "b", "c", "d", "e", "f"}

	got, err := NewMapper(WithSimilarity(always)).Map(headers)
	require.NoError(t, err)

	assert.Equal(t, "a", got.Time)
	assert.Equal(t, "b", got.UserFullName)
	assert.Equal(t, "c", got.EventName)
	assert.Equal(t, "d", got.Component)
	assert.Equal(t, "e", got.EventContext)
	assert.Equal(t, "f", got.Description)
	assert.Empty(t, got.AffectedUser, "no unclaimed header left for optional fields")
}

func TestMap_MissingRequired(t *testing.T) {
	_, err := Map([]string{"Nome completo", "Nome do evento", "Componente", "Contexto do Evento", "Descrição"})
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrRequiredColumnMissing)

	var cerr *core.Error
	require.True(t, errors.As(err, &cerr))
	assert.Equal(t, "time", cerr.Field)
	assert.Contains(t, err.Error(), "Hora")
}

func TestMap_FirstMissingInDeclarationOrder(t *testing.T) {
	_, err := Map([]string{"Time", "Component"})

	var cerr *core.Error
	require.True(t, errors.As(err, &cerr))
	assert.Equal(t, "user_full_name", cerr.Field)
}

func TestRenameMap(t *testing.T) {
	m := core.ColumnMapping{Time: "Hora", UserFullName: "Nome completo", Origin: "Origem"}

	assert.Equal(t, map[string]string{
		"Hora":          "time",
		"Nome completo": "user_full_name",
		"Origem":        "origin",
	}, RenameMap(m))
}

func TestAliasesAreDisjoint(t *testing.T) {
	seen := map[string]core.Field{}
	for _, f := range core.CanonicalFields {
		list := Aliases(f)
		require.NotEmpty(t, list, "field %s has no aliases", f)
		for _, a := range list {
			key := strings.ToLower(normalize(a))
			if prev, ok := seen[key]; ok {
				t.Errorf("alias %q used by both %s and %s", a, prev, f)
			}
			seen[key] = f
		}
	}
}

func TestRatio(t *testing.T) {
	tests := []struct {
		a, b string
		want float64
	}{
		{"time", "time", 100},
		{"", "", 100},
		{"abc", "", 0},
		{"kitten", "sitting", 100 * 8.0 / 13.0},
		{"timestamps", "timestamp", 100 * 18.0 / 19.0},
		{"horário", "horario", 100 * 12.0 / 14.0},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, Ratio(tt.a, tt.b), 0.001, "Ratio(%q, %q)", tt.a, tt.b)
	}
}
