package export

import (
	"context"
	"fmt"
	"strings"

	"github.com/JonMunkholm/moodlelogsmart/internal/core"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
)

// DefaultTable receives enriched events when no table is configured.
const DefaultTable = "enriched_events"

// DB is satisfied by *pgxpool.Pool and *pgx.Conn.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresSink copies enriched events into a table, one transaction per job.
// EnsureTable must have run once before the first Write.
type PostgresSink struct {
	db    DB
	table pgx.Identifier
}

// NewPostgresSink returns a sink writing to table (DefaultTable if empty).
func NewPostgresSink(db DB, table string) *PostgresSink {
	if table == "" {
		table = DefaultTable
	}
	return &PostgresSink{db: db, table: pgx.Identifier(strings.Split(table, "."))}
}

var sinkColumns = []string{
	"job_id",
	"event_time",
	"user_full_name",
	"event_name",
	"component",
	"event_context",
	"description",
	"affected_user",
	"origin",
	"ip_address",
	"role_id",
	"activity_type",
	"bloom_level",
	"is_active",
}

func (s *PostgresSink) createTableSQL() string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	job_id          UUID        NOT NULL,
	event_time      TIMESTAMPTZ,
	user_full_name  TEXT        NOT NULL,
	event_name      TEXT        NOT NULL,
	component       TEXT        NOT NULL,
	event_context   TEXT,
	description     TEXT,
	affected_user   TEXT,
	origin          TEXT,
	ip_address      TEXT,
	role_id         TEXT,
	activity_type   TEXT        NOT NULL,
	bloom_level     TEXT        NOT NULL,
	is_active       BOOLEAN     NOT NULL
)`, s.table.Sanitize())
}

// EnsureTable creates the events table if it does not exist. Call it once
// at startup, outside any job transaction.
func (s *PostgresSink) EnsureTable(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, s.createTableSQL()); err != nil {
		return core.WrapError(core.KindExportFailed, "create table", err)
	}
	return nil
}

// Write stores events under jobID and returns the number of rows copied.
// Either every row is stored or none is.
func (s *PostgresSink) Write(ctx context.Context, jobID uuid.UUID, events []core.EnrichedEvent) (int64, error) {
	if len(events) == 0 {
		return 0, core.Errorf(core.KindExportFailed, "no events to store")
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return 0, core.WrapError(core.KindExportFailed, "begin transaction", err)
	}
	defer tx.Rollback(ctx) // no-op after commit

	id := pgtype.UUID{Bytes: jobID, Valid: true}
	n, err := tx.CopyFrom(ctx, s.table, sinkColumns, pgx.CopyFromSlice(len(events), func(i int) ([]any, error) {
		return sinkRow(id, events[i]), nil
	}))
	if err != nil {
		return 0, core.WrapError(core.KindExportFailed, "copy events", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, core.WrapError(core.KindExportFailed, "commit", err)
	}
	return n, nil
}

func sinkRow(jobID pgtype.UUID, ev core.EnrichedEvent) []any {
	ts := pgtype.Timestamptz{}
	if ev.HasTime() {
		ts = pgtype.Timestamptz{Time: ev.Time, Valid: true}
	}
	return []any{
		jobID,
		ts,
		ev.UserFullName,
		ev.EventName,
		ev.Component,
		toPgText(ev.EventContext),
		toPgText(ev.Description),
		toPgText(ev.AffectedUser),
		toPgText(ev.Origin),
		toPgText(ev.IPAddress),
		toPgText(ev.RoleID),
		ev.ActivityType,
		ev.BloomLevel,
		ev.IsActive,
	}
}

func toPgText(s string) pgtype.Text {
	s = strings.TrimSpace(s)
	if s == "" {
		return pgtype.Text{Valid: false}
	}
	return pgtype.Text{String: s, Valid: true}
}
