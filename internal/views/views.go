// Package views rebuilds the derived materialized aggregates on top of the
// merged relations. Each view is described by its defining query and the
// other views it reads; the graph is walked in a fixed order so a dependent
// is never attempted before its dependency. A view that already exists is
// refreshed in place, one that is absent is created — decided by an explicit
// pg_matviews existence check rather than error-driven fallback.
package views

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5"
)

// DB is the session surface the builder needs. *postgres.Session satisfies it.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) error
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// View is one materialized aggregate: its name, the views it reads, and its
// defining query.
type View struct {
	Name      string
	DependsOn []string // upstream views; base tables are not listed
	Query     string
}

// Graph returns every view in build order: base aggregates first, then views
// reading only tables, then views reading other views, with the full-text
// search aggregate last since it reads nearly everything.
func Graph() []View {
	return []View{
		{Name: "expenditures_by_candidate", Query: expendituresByCandidate},
		{Name: "receipts_by_week", Query: receiptsByWeek},
		{Name: "committee_receipts_by_week", Query: committeeReceiptsByWeek},
		{Name: "incumbent_candidates", Query: incumbentCandidates()},
		{Name: "most_recent_filings", Query: mostRecentFilings},
		{Name: "condensed_receipts", DependsOn: []string{"most_recent_filings"}, Query: condensedReceipts},
		{Name: "condensed_expenditures", DependsOn: []string{"most_recent_filings"}, Query: condensedExpenditures},
		{Name: "committee_money", DependsOn: []string{"most_recent_filings"}, Query: committeeMoney},
		{Name: "candidate_money", DependsOn: []string{"committee_money"}, Query: candidateMoney},
		{Name: "full_search", DependsOn: []string{"condensed_receipts", "condensed_expenditures"}, Query: fullSearch},
	}
}

// Build creates v when absent, refreshes it when present.
func Build(ctx context.Context, db DB, v View) error {
	var exists bool
	err := db.QueryRow(ctx,
		"SELECT EXISTS (SELECT 1 FROM pg_matviews WHERE matviewname = $1)", v.Name,
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("view %s: existence check: %w", v.Name, err)
	}

	if exists {
		if err := db.Exec(ctx, "REFRESH MATERIALIZED VIEW "+pgIdent(v.Name)); err != nil {
			return fmt.Errorf("view %s: refresh: %w", v.Name, err)
		}
		log.Printf("view %s: refreshed", v.Name)
		return nil
	}

	if err := db.Exec(ctx, fmt.Sprintf("CREATE MATERIALIZED VIEW %s AS (%s)", pgIdent(v.Name), v.Query)); err != nil {
		return fmt.Errorf("view %s: create: %w", v.Name, err)
	}
	log.Printf("view %s: created", v.Name)
	return nil
}

// BuildAll walks the graph in order, attempting every view. A failed view
// does not abort its siblings; its downstream dependents will fail on their
// own when the dependency is missing. All failures are reported joined.
func BuildAll(ctx context.Context, db DB) error {
	var errs []error
	for _, v := range Graph() {
		if err := Build(ctx, db, v); err != nil {
			log.Printf("view %s: %v", v.Name, err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// DropAll removes every materialized view in reverse build order so a full
// rebuild starts from scratch. most_recent_filings cascades in case an
// out-of-graph dependent was created against it.
func DropAll(ctx context.Context, db DB) error {
	graph := Graph()
	for i := len(graph) - 1; i >= 0; i-- {
		name := graph[i].Name
		stmt := "DROP MATERIALIZED VIEW IF EXISTS " + pgIdent(name)
		if name == "most_recent_filings" {
			stmt += " CASCADE"
		}
		if err := db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("drop view %s: %w", name, err)
		}
	}
	return nil
}

// EnsureIndexes creates the operator-facing indexes after the views exist:
// the full-text name index plus the receipts hot paths.
func EnsureIndexes(ctx context.Context, db DB) error {
	stmts := []string{
		`CREATE INDEX IF NOT EXISTS name_index ON full_search USING gin(to_tsvector('english', name))`,
		`CREATE INDEX IF NOT EXISTS received_date_idx ON receipts (received_date)`,
		`CREATE INDEX IF NOT EXISTS receipts_committee_idx ON receipts (committee_id)`,
	}
	for _, s := range stmts {
		if err := db.Exec(ctx, s); err != nil {
			return fmt.Errorf("create index: %w", err)
		}
	}
	return nil
}

func pgIdent(id string) string { return `"` + id + `"` }

const expendituresByCandidate = `
  SELECT
    c.id AS candidate_id,
    MAX(c.first_name) AS first_name,
    MAX(c.last_name) AS last_name,
    MAX(c.office) AS office,
    cm.id AS committee_id,
    MAX(cm.name) AS committee_name,
    MAX(cm.type) AS committee_type,
    bool_or(e.supporting) AS supporting,
    bool_or(e.opposing) AS opposing,
    SUM(e.amount) AS total_amount,
    MIN(e.expended_date) AS min_date,
    MAX(e.expended_date) AS max_date
  FROM candidates AS c
  JOIN expenditures AS e
    ON c.first_name || ' ' || c.last_name = e.candidate_name
  JOIN committees AS cm
    ON e.committee_id = cm.id
  GROUP BY cm.id, c.id`

const receiptsByWeek = `
  SELECT
    date_trunc('week', received_date) AS week,
    SUM(amount) AS total_amount,
    COUNT(id) AS donation_count,
    AVG(amount) AS average_donation
  FROM receipts
  GROUP BY date_trunc('week', received_date)
  ORDER BY week`

const committeeReceiptsByWeek = `
  SELECT
    committee_id,
    date_trunc('week', received_date) AS week,
    SUM(amount) AS total_amount,
    COUNT(id) AS donation_count,
    AVG(amount) AS average_donation
  FROM receipts
  GROUP BY committee_id,
           date_trunc('week', received_date)
  ORDER BY week`

// incumbentCandidates pins the winners of last year's (or later) races, one
// per district/office. The year is embedded at build time; materialized view
// definitions cannot carry bind parameters.
func incumbentCandidates() string {
	return fmt.Sprintf(`
  SELECT DISTINCT ON (cd.district, cd.office)
    cd.*,
    cs.election_year AS last_election_year,
    cs.election_type AS last_election_type,
    cs.race_type AS last_race_type
  FROM candidates AS cd
  JOIN candidacies AS cs
    ON cd.id = cs.candidate_id
  WHERE cs.outcome = 'won'
    AND cs.election_year >= %d
  ORDER BY cd.district, cd.office, cs.id DESC`, time.Now().Year()-1)
}

const mostRecentFilings = `
  SELECT
    d2.end_funds_available,
    d2.total_investments,
    d2.total_debts,
    cm.name AS committee_name,
    cm.id AS committee_id,
    cm.type AS committee_type,
    cm.active AS committee_active,
    fd.id AS filed_doc_id,
    fd.doc_name,
    fd.reporting_period_end,
    fd.reporting_period_begin,
    fd.received_datetime
  FROM committees AS cm
  LEFT JOIN (
    SELECT DISTINCT ON (committee_id)
      id,
      committee_id,
      doc_name,
      reporting_period_end,
      reporting_period_begin,
      received_datetime
    FROM filed_docs
    WHERE doc_name NOT IN (
      'A-1',
      'Statement of Organization',
      'Letter/Correspondence',
      'B-1'
    )
    ORDER BY committee_id, received_datetime DESC
  ) AS fd
    ON fd.committee_id = cm.id
  LEFT JOIN d2_reports AS d2
    ON fd.id = d2.filed_doc_id`

const condensedReceipts = `
  (
    SELECT
      r.*
    FROM receipts AS r
    JOIN most_recent_filings AS m
      USING(committee_id)
    WHERE r.received_date > m.reporting_period_end
  ) UNION (
    SELECT
      r.*
    FROM receipts AS r
    JOIN (
      SELECT DISTINCT ON (
        reporting_period_begin,
        reporting_period_end,
        committee_id
      )
        id AS filed_doc_id
      FROM filed_docs
      ORDER BY reporting_period_begin,
               reporting_period_end,
               committee_id,
               received_datetime DESC
    ) AS f
      USING(filed_doc_id)
  )`

const condensedExpenditures = `
  (
    SELECT
      e.*
    FROM expenditures AS e
    JOIN most_recent_filings AS m
      USING(committee_id)
    WHERE e.expended_date > m.reporting_period_end
  ) UNION (
    SELECT
      e.*
    FROM expenditures AS e
    JOIN (
      SELECT DISTINCT ON (
        reporting_period_begin,
        reporting_period_end,
        committee_id
      )
        id AS filed_doc_id
      FROM filed_docs
      ORDER BY reporting_period_begin,
               reporting_period_end,
               committee_id,
               received_datetime DESC
    ) AS f
      USING(filed_doc_id)
  )`

const committeeMoney = `
  SELECT
    MAX(filings.end_funds_available) AS end_funds_available,
    MAX(filings.committee_name) AS committee_name,
    MAX(filings.committee_id) AS committee_id,
    MAX(filings.committee_type) AS committee_type,
    bool_and(filings.committee_active) AS committee_active,
    MAX(filings.doc_name) AS doc_name,
    MAX(filings.reporting_period_end) AS reporting_period_end,
    MAX(filings.reporting_period_begin) AS reporting_period_begin,
    (SUM(COALESCE(receipts.amount, 0)) +
     MAX(COALESCE(filings.end_funds_available, 0)) +
     MAX(COALESCE(filings.total_investments, 0)) -
     MAX(COALESCE(filings.total_debts, 0))) AS total,
    MAX(receipts.received_date) AS last_receipt_date
  FROM most_recent_filings AS filings
  LEFT JOIN receipts
    ON receipts.committee_id = filings.committee_id
    AND receipts.received_date > filings.reporting_period_end
  GROUP BY filings.committee_id
  ORDER BY total DESC NULLS LAST`

const candidateMoney = `
  SELECT
    cd.id AS candidate_id,
    cd.first_name AS candidate_first_name,
    cd.last_name AS candidate_last_name,
    cd.office AS candidate_office,
    cm.id AS committee_id,
    cm.name AS committee_name,
    cm.type AS committee_type,
    m.total,
    m.last_receipt_date
  FROM candidates AS cd
  JOIN candidate_committees AS cc
    ON cd.id = cc.candidate_id
  JOIN committees AS cm
    ON cc.committee_id = cm.id
  JOIN committee_money AS m
    ON cm.id = m.committee_id
  ORDER BY m.total DESC NULLS LAST`

const fullSearch = `
  SELECT
    name,
    table_name,
    json_agg(record_json) AS records
  FROM (
    SELECT
      COALESCE(TRIM(TRANSLATE(first_name, '.,-/', '')), '') || ' ' ||
      COALESCE(TRIM(TRANSLATE(last_name, '.,-/', '')), '') AS name,
      'candidates' AS table_name,
      row_to_json(cand) AS record_json
    FROM candidates AS cand
    UNION ALL
    SELECT
      name,
      'committees' AS table_name,
      row_to_json(comm) AS record_json
    FROM committees AS comm
    UNION ALL
    SELECT
      COALESCE(TRIM(TRANSLATE(first_name, '.,-/', '')), '') || ' ' ||
      COALESCE(TRIM(TRANSLATE(last_name, '.,-/', '')), '') AS name,
      'receipts' AS table_name,
      row_to_json(rec) AS record_json
    FROM (
      SELECT
        r.*,
        c.name AS committee_name,
        c.type AS committee_type
      FROM condensed_receipts AS r
      JOIN committees AS c
        ON r.committee_id = c.id
    ) AS rec
    UNION ALL
    SELECT
      COALESCE(TRIM(TRANSLATE(first_name, '.,-/', '')), '') || ' ' ||
      COALESCE(TRIM(TRANSLATE(last_name, '.,-/', '')), '') AS name,
      'expenditures' AS table_name,
      row_to_json(exp) AS record_json
    FROM (
      SELECT
        e.*,
        c.name AS committee_name,
        c.type AS committee_type
      FROM condensed_expenditures AS e
      JOIN committees AS c
        ON e.committee_id = c.id
    ) AS exp
    UNION ALL
    SELECT
      COALESCE(TRIM(TRANSLATE(first_name, '.,-/', '')), '') || ' ' ||
      COALESCE(TRIM(TRANSLATE(last_name, '.,-/', '')), '') AS name,
      'officers' AS table_name,
      row_to_json(off) AS record_json
    FROM (
      SELECT
        o.*,
        c.name AS committee_name,
        c.type AS committee_type
      FROM officers AS o
      JOIN committees AS c
        ON o.committee_id = c.id
    ) AS off
    UNION ALL
    SELECT
      COALESCE(TRIM(TRANSLATE(first_name, '.,-/', '')), '') || ' ' ||
      COALESCE(TRIM(TRANSLATE(last_name, '.,-/', '')), '') AS name,
      'investments' AS table_name,
      row_to_json(inv) AS record_json
    FROM (
      SELECT
        i.*,
        c.name AS committee_name,
        c.type AS committee_type
      FROM investments AS i
      JOIN committees AS c
        ON i.committee_id = c.id
    ) AS inv
  ) AS s
  GROUP BY table_name, name`
