// Package db provides the optional Postgres index of VOD records: connection, schema
// migration and the small queries the server and CLI use. Description files stay the
// source of truth; the index is rebuilt from them on every save.
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx postgres driver registered as 'pgx'

	"github.com/onnwee/vod-tender/archive/vod"
)

// Connect opens a pgx-backed *sql.DB and pings it.
func Connect(ctx context.Context, dsn string) (*sql.DB, error) {
	if dsn == "" {
		return nil, errors.New("empty DB_DSN")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetConnMaxIdleTime(5 * time.Minute)
	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return db, nil
}

// Migrate brings the schema up to date with the embedded migrations.
func Migrate(ctx context.Context, db *sql.DB) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return RunMigrations(db)
}

// VodIndex implements vod.Indexer over the vod_records table.
type VodIndex struct {
	DB *sql.DB
}

var _ vod.Indexer = (*VodIndex)(nil)

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC()
}

// UpsertRecord writes s, replacing any row with the same basename.
func (x *VodIndex) UpsertRecord(ctx context.Context, s vod.Summary) error {
	_, err := x.DB.ExecContext(ctx, `
INSERT INTO vod_records (basename, directory, streamer_name, streamer_login, twitch_vod_id,
    exist_status, mute_status, is_finalized, duration_seconds, total_size, started_at, saved_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,NOW())
ON CONFLICT (basename) DO UPDATE SET
    directory=EXCLUDED.directory,
    streamer_name=EXCLUDED.streamer_name,
    streamer_login=EXCLUDED.streamer_login,
    twitch_vod_id=EXCLUDED.twitch_vod_id,
    exist_status=EXCLUDED.exist_status,
    mute_status=EXCLUDED.mute_status,
    is_finalized=EXCLUDED.is_finalized,
    duration_seconds=EXCLUDED.duration_seconds,
    total_size=EXCLUDED.total_size,
    started_at=EXCLUDED.started_at,
    saved_at=EXCLUDED.saved_at,
    updated_at=NOW()`,
		s.Basename, s.Directory, s.StreamerName, s.StreamerLogin, s.TwitchVODID,
		int(s.ExistStatus), int(s.MuteStatus), s.IsFinalized, s.DurationSeconds, s.TotalSize,
		nullTime(s.StartedAt), nullTime(s.SavedAt))
	if err != nil {
		return fmt.Errorf("upsert %s: %w", s.Basename, err)
	}
	return nil
}

// DeleteRecord removes the row for basename. Missing rows are not an error.
func (x *VodIndex) DeleteRecord(ctx context.Context, basename string) error {
	if _, err := x.DB.ExecContext(ctx, `DELETE FROM vod_records WHERE basename=$1`, basename); err != nil {
		return fmt.Errorf("delete %s: %w", basename, err)
	}
	return nil
}

const summaryColumns = `basename, directory, COALESCE(streamer_name,''), COALESCE(streamer_login,''), COALESCE(twitch_vod_id,''),
    exist_status, mute_status, is_finalized, duration_seconds, total_size, started_at, saved_at`

func scanSummary(row interface{ Scan(...any) error }) (vod.Summary, error) {
	var (
		s                vod.Summary
		exist, mute      int
		started, savedAt sql.NullTime
	)
	if err := row.Scan(&s.Basename, &s.Directory, &s.StreamerName, &s.StreamerLogin, &s.TwitchVODID,
		&exist, &mute, &s.IsFinalized, &s.DurationSeconds, &s.TotalSize, &started, &savedAt); err != nil {
		return vod.Summary{}, err
	}
	s.ExistStatus = vod.ExistStatus(exist)
	s.MuteStatus = vod.MuteStatus(mute)
	if started.Valid {
		s.StartedAt = started.Time
	}
	if savedAt.Valid {
		s.SavedAt = savedAt.Time
	}
	return s, nil
}

// Get returns the row for basename, or vod.ErrNotFound.
func (x *VodIndex) Get(ctx context.Context, basename string) (vod.Summary, error) {
	row := x.DB.QueryRowContext(ctx, `SELECT `+summaryColumns+` FROM vod_records WHERE basename=$1`, basename)
	s, err := scanSummary(row)
	if errors.Is(err, sql.ErrNoRows) {
		return vod.Summary{}, fmt.Errorf("%s: %w", basename, vod.ErrNotFound)
	}
	return s, err
}

// ListFilter narrows List. Zero values match everything.
type ListFilter struct {
	StreamerLogin string
	ExistStatus   vod.ExistStatus
	MuteStatus    vod.MuteStatus
	Limit         int
	Offset        int
}

// List returns rows newest first.
func (x *VodIndex) List(ctx context.Context, f ListFilter) ([]vod.Summary, error) {
	var (
		where []string
		args  []any
	)
	if f.StreamerLogin != "" {
		args = append(args, strings.ToLower(f.StreamerLogin))
		where = append(where, fmt.Sprintf("LOWER(streamer_login)=$%d", len(args)))
	}
	if f.ExistStatus != 0 {
		args = append(args, int(f.ExistStatus))
		where = append(where, fmt.Sprintf("exist_status=$%d", len(args)))
	}
	if f.MuteStatus != 0 {
		args = append(args, int(f.MuteStatus))
		where = append(where, fmt.Sprintf("mute_status=$%d", len(args)))
	}
	q := `SELECT ` + summaryColumns + ` FROM vod_records`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	limit := f.Limit
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	args = append(args, limit, f.Offset)
	q += fmt.Sprintf(` ORDER BY started_at DESC NULLS LAST, basename LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	rows, err := x.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []vod.Summary
	for rows.Next() {
		s, err := scanSummary(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
