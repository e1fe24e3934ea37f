package clean

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/JonMunkholm/moodlelogsmart/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 1, 22, 23, 26, 24, 0, time.UTC)

func quiet() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func ev(user, name string, at time.Time) core.RawEvent {
	return core.RawEvent{Time: at, UserFullName: user, EventName: name, Component: "System"}
}

func TestClean_DefaultDenylist(t *testing.T) {
	events := []core.RawEvent{
		ev("Ana", "Course viewed", t0),
		ev("Prof", "Course updated", t0),
		ev("Bia", "Course module viewed", t0),
		ev("Prof", "Course backup created", t0),
		ev("Prof", "Course rollover", t0),
	}

	got := New(DefaultConfig(), quiet()).Clean(events)

	require.Len(t, got, 2)
	assert.Equal(t, "Ana", got[0].UserFullName)
	assert.Equal(t, "Bia", got[1].UserFullName)
}

func TestClean_DenylistIsExact(t *testing.T) {
	events := []core.RawEvent{
		ev("Ana", "course updated", t0),
		ev("Ana", "Course updated ", t0),
	}
	got := New(DefaultConfig(), quiet()).Clean(events)
	assert.Len(t, got, 2)
}

func TestClean_DropsMissingTime(t *testing.T) {
	events := []core.RawEvent{
		ev("Ana", "Course viewed", t0),
		ev("Bia", "Course viewed", time.Time{}),
	}
	got := New(DefaultConfig(), quiet()).Clean(events)

	require.Len(t, got, 1)
	assert.Equal(t, "Ana", got[0].UserFullName)
}

func TestClean_RoleFilter(t *testing.T) {
	t.Run("no role data passes through", func(t *testing.T) {
		events := []core.RawEvent{ev("Ana", "Course viewed", t0), ev("Prof", "Course viewed", t0)}
		got := New(DefaultConfig(), quiet()).FilterRoles(events)
		assert.Equal(t, events, got)
	})

	t.Run("keeps only the student role", func(t *testing.T) {
		student := ev("Ana", "Course viewed", t0)
		student.RoleID = "5"
		instructor := ev("Prof", "Course viewed", t0)
		instructor.RoleID = "3"
		unknown := ev("Guest", "Course viewed", t0)

		got := New(DefaultConfig(), quiet()).FilterRoles([]core.RawEvent{student, instructor, unknown})
		assert.Equal(t, []core.RawEvent{student}, got)
	})

	t.Run("custom student role", func(t *testing.T) {
		e := ev("Ana", "Course viewed", t0)
		e.RoleID = "7"
		got := New(Config{StudentRoleID: "7"}, quiet()).FilterRoles([]core.RawEvent{e})
		assert.Len(t, got, 1)
	})
}

func TestClean_Idempotent(t *testing.T) {
	events := []core.RawEvent{
		ev("Ana", "Course viewed", t0),
		ev("Prof", "Course reset", t0),
		ev("Bia", "Quiz attempt submitted", time.Time{}),
		ev("Caio", "Discussion created", t0.Add(time.Minute)),
	}
	c := New(DefaultConfig(), quiet())

	once := c.Clean(events)
	twice := c.Clean(once)
	assert.Equal(t, once, twice)
}

func TestClean_DoesNotModifyInput(t *testing.T) {
	events := []core.RawEvent{ev("Prof", "Course updated", t0), ev("Ana", "Course viewed", t0)}
	snapshot := append([]core.RawEvent(nil), events...)

	_ = New(DefaultConfig(), quiet()).Clean(events)
	assert.Equal(t, snapshot, events)
}

func TestClean_EmptyResultIsValid(t *testing.T) {
	got := New(DefaultConfig(), quiet()).Clean([]core.RawEvent{ev("Prof", "Course updated", t0)})
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestNew_CustomDenylistReplacesDefaults(t *testing.T) {
	c := New(Config{NonStudentEvents: []string{"Report viewed"}}, quiet())
	got := c.FilterEvents([]core.RawEvent{ev("Ana", "Report viewed", t0), ev("Prof", "Course updated", t0)})

	require.Len(t, got, 1)
	assert.Equal(t, "Course updated", got[0].EventName)
}

func TestLoadRoles(t *testing.T) {
	path := filepath.Join(t.TempDir(), "roles.csv")
	body := "Nome completo;Papel\nAna Souza;5\nProf Lima;3\n;5\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	roles, err := LoadRoles(path)
	require.NoError(t, err)
	assert.Equal(t, Roles{"Ana Souza": "5", "Prof Lima": "3"}, roles)

	events := roles.Attach([]core.RawEvent{ev("Ana Souza", "Course viewed", t0), ev("Visitor", "Course viewed", t0)})
	assert.Equal(t, "5", events[0].RoleID)
	assert.Empty(t, events[1].RoleID)

	got := New(DefaultConfig(), quiet()).Clean(events)
	require.Len(t, got, 1)
	assert.Equal(t, "Ana Souza", got[0].UserFullName)
}

func TestLoadRoles_FallsBackToFirstColumns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "roles.csv")
	require.NoError(t, os.WriteFile(path, []byte("who,what\nAna,5\n"), 0o600))

	roles, err := LoadRoles(path)
	require.NoError(t, err)
	assert.Equal(t, Roles{"Ana": "5"}, roles)
}
