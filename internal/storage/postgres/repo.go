// Package postgres implements the warehouse session: staging DDL, COPY into
// staging relations, and the key-based upsert merge. It uses pgx v5 over a
// single connection; one logical session serializes all DDL/DML for a run,
// and every component receives the session explicitly rather than sharing
// global state.
package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
)

// Session wraps the one connection a load/merge run uses.
type Session struct {
	conn *pgx.Conn
}

// Connect opens the single warehouse connection and returns a close function
// for cleanup.
func Connect(ctx context.Context, dsn string) (*Session, func(), error) {
	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("pgx connect: %w", err)
	}
	closeFn := func() { _ = conn.Close(context.Background()) }
	return &Session{conn: conn}, closeFn, nil
}

// Exec runs a statement on the session connection.
func (s *Session) Exec(ctx context.Context, sql string, args ...any) error {
	_, err := s.conn.Exec(ctx, sql, args...)
	return err
}

// QueryRow runs a single-row query on the session connection.
func (s *Session) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return s.conn.QueryRow(ctx, sql, args...)
}

// CreateStaging drops and re-creates the staging relation for spec. The
// default shape clones the target's columns with no rows; drivers with a
// bespoke staged shape supply their own column list DDL.
func (s *Session) CreateStaging(ctx context.Context, spec MergeSpec) error {
	if err := s.Exec(ctx, "DROP TABLE IF EXISTS "+pgIdent(spec.Staging)); err != nil {
		return fmt.Errorf("drop staging %s: %w", spec.Staging, err)
	}
	var create string
	if spec.StagingDDL != "" {
		create = fmt.Sprintf("CREATE TABLE %s %s", pgIdent(spec.Staging), spec.StagingDDL)
	} else {
		create = fmt.Sprintf(
			"CREATE TABLE %s AS SELECT %s FROM %s WHERE false",
			pgIdent(spec.Staging),
			strings.Join(mapIdent(spec.Columns), ", "),
			pgFQN(spec.Table),
		)
	}
	if err := s.Exec(ctx, create); err != nil {
		return fmt.Errorf("create staging %s: %w", spec.Staging, err)
	}
	return nil
}

// CopyInto bulk-writes one batch of rows into the staging relation. COPY is
// atomic per call: a failed batch inserts nothing.
func (s *Session) CopyInto(ctx context.Context, staging string, columns []string, rows [][]any) (int64, error) {
	return s.conn.CopyFrom(ctx, pgx.Identifier{staging}, columns, pgx.CopyFromRows(rows))
}

// Merge reconciles the staging relation against the target in one
// transaction: update matches, insert the anti-join remainder, drop staging.
// On any error the transaction rolls back and the staging relation survives
// for inspection.
func (s *Session) Merge(ctx context.Context, spec MergeSpec) (MergeStats, error) {
	var stats MergeStats

	tx, err := s.conn.Begin(ctx)
	if err != nil {
		return stats, fmt.Errorf("begin merge %s: %w", spec.Table, err)
	}
	defer func() { _ = tx.Rollback(ctx) }() // no-op after commit

	stats, err = mergeInTx(ctx, tx, spec)
	if err != nil {
		return stats, err
	}
	if err := tx.Commit(ctx); err != nil {
		return stats, fmt.Errorf("commit merge %s: %w", spec.Table, err)
	}
	return stats, nil
}

// pgIdent safely quotes a single identifier segment for Postgres.
func pgIdent(id string) string { return `"` + strings.ReplaceAll(id, `"`, `""`) + `"` }

// pgFQN quotes a possibly schema-qualified name like "public.receipts" to
// "public"."receipts". If no dot is present, returns a single quoted ident.
func pgFQN(name string) string {
	parts := strings.Split(name, ".")
	for i, p := range parts {
		parts[i] = pgIdent(p)
	}
	return strings.Join(parts, ".")
}

// mapIdent maps a list of column names to their quoted forms.
func mapIdent(cols []string) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = pgIdent(c)
	}
	return out
}
