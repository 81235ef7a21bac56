package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/court-captions/constants"
	"github.com/joseph-ayodele/court-captions/internal/extract"
)

type ResultRepository interface {
	Save(ctx context.Context, res *extract.Result, contentHash string) error
	List(ctx context.Context, limit int) ([]*extract.Result, error)
	Get(ctx context.Context, id uuid.UUID) (*extract.Result, error)
	ExistsByHash(ctx context.Context, contentHash string) (bool, error)
}

// timeLayout is fixed width so started_at sorts as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// ErrNotFound is returned by Get for an unknown id.
var ErrNotFound = errors.New("result not found")

type resultRepo struct {
	db  *DB
	log *slog.Logger
}

func NewResultRepository(db *DB, log *slog.Logger) ResultRepository {
	if log == nil {
		log = db.logger
	}
	return &resultRepo{db: db, log: log}
}

func (r *resultRepo) Save(ctx context.Context, res *extract.Result, contentHash string) error {
	regionText, err := json.Marshal(nonNil(res.RegionText))
	if err != nil {
		return fmt.Errorf("encode region text: %w", err)
	}
	diags, err := json.Marshal(nonNil(res.Diagnostics))
	if err != nil {
		return fmt.Errorf("encode diagnostics: %w", err)
	}

	tx, err := r.db.SQL.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, r.db.rebind(`INSERT INTO extraction_runs
		(id, document, path, content_hash, preset, page_index, state, region_text, diagnostics, started_at, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		res.ID.String(), res.Document, res.Path, contentHash, res.Preset, res.PageIndex, string(res.State),
		string(regionText), string(diags), res.StartedAt.UTC().Format(timeLayout), res.Duration.Milliseconds())
	if err != nil {
		r.log.Error("extraction_run insert failed", "result_id", res.ID, "err", err)
		return err
	}

	insertField := r.db.rebind(`INSERT INTO extraction_fields
		(run_id, position, name, value, raw, source, region) VALUES (?, ?, ?, ?, ?, ?, ?)`)
	for i, name := range res.Order {
		var value, raw, source sql.NullString
		var region sql.NullInt64
		if v := res.Fields[name]; v != nil {
			value = sql.NullString{String: v.Value, Valid: true}
			raw = sql.NullString{String: v.Raw, Valid: true}
			source = sql.NullString{String: string(v.Source), Valid: true}
			region = sql.NullInt64{Int64: int64(v.Region), Valid: true}
		}
		if _, err := tx.ExecContext(ctx, insertField, res.ID.String(), i, name, value, raw, source, region); err != nil {
			r.log.Error("extraction_field insert failed", "result_id", res.ID, "field", name, "err", err)
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	r.log.Debug("extraction result saved", "result_id", res.ID, "document", res.Document, "fields", res.Found())
	return nil
}

const selectRuns = `SELECT id, document, path, preset, page_index, state, region_text, diagnostics, started_at, duration_ms
	FROM extraction_runs`

// List returns the most recent results first.
func (r *resultRepo) List(ctx context.Context, limit int) ([]*extract.Result, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.SQL.QueryContext(ctx, r.db.rebind(selectRuns+` ORDER BY started_at DESC, id LIMIT ?`), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*extract.Result
	for rows.Next() {
		res, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for _, res := range out {
		if err := r.loadFields(ctx, res); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (r *resultRepo) Get(ctx context.Context, id uuid.UUID) (*extract.Result, error) {
	row := r.db.SQL.QueryRowContext(ctx, r.db.rebind(selectRuns+` WHERE id = ?`), id.String())
	res, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	if err := r.loadFields(ctx, res); err != nil {
		return nil, err
	}
	return res, nil
}

func (r *resultRepo) ExistsByHash(ctx context.Context, contentHash string) (bool, error) {
	var n int
	err := r.db.SQL.QueryRowContext(ctx,
		r.db.rebind(`SELECT COUNT(*) FROM extraction_runs WHERE content_hash = ?`), contentHash).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (*extract.Result, error) {
	var (
		id, regionText, diags, startedAt, state string
		durationMs                              int64
		res                                     extract.Result
	)
	if err := s.Scan(&id, &res.Document, &res.Path, &res.Preset, &res.PageIndex, &state,
		&regionText, &diags, &startedAt, &durationMs); err != nil {
		return nil, err
	}
	var err error
	if res.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("parse id %q: %w", id, err)
	}
	if res.StartedAt, err = time.Parse(time.RFC3339Nano, startedAt); err != nil {
		return nil, fmt.Errorf("parse started_at %q: %w", startedAt, err)
	}
	res.State = constants.State(state)
	res.Duration = time.Duration(durationMs) * time.Millisecond
	if err := json.Unmarshal([]byte(regionText), &res.RegionText); err != nil {
		return nil, fmt.Errorf("decode region text: %w", err)
	}
	if err := json.Unmarshal([]byte(diags), &res.Diagnostics); err != nil {
		return nil, fmt.Errorf("decode diagnostics: %w", err)
	}
	if len(res.RegionText) == 0 {
		res.RegionText = nil
	}
	if len(res.Diagnostics) == 0 {
		res.Diagnostics = nil
	}
	return &res, nil
}

func (r *resultRepo) loadFields(ctx context.Context, res *extract.Result) error {
	rows, err := r.db.SQL.QueryContext(ctx, r.db.rebind(`SELECT name, value, raw, source, region
		FROM extraction_fields WHERE run_id = ? ORDER BY position`), res.ID.String())
	if err != nil {
		return err
	}
	defer rows.Close()

	res.Fields = map[string]*extract.FieldValue{}
	res.Order = nil
	for rows.Next() {
		var (
			name               string
			value, raw, source sql.NullString
			region             sql.NullInt64
		)
		if err := rows.Scan(&name, &value, &raw, &source, &region); err != nil {
			return err
		}
		res.Order = append(res.Order, name)
		if !value.Valid {
			res.Fields[name] = nil
			continue
		}
		res.Fields[name] = &extract.FieldValue{
			Value:  value.String,
			Raw:    raw.String,
			Source: constants.Source(source.String),
			Region: int(region.Int64),
		}
	}
	return rows.Err()
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
