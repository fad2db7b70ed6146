// Package schema provisions the warehouse relations the datasets merge into.
// All statements are idempotent (IF NOT EXISTS / guarded enum creation) so
// bootstrap can run at the start of every load.
package schema

import (
	"context"
	"fmt"
)

// Execer is the narrow session surface schema needs.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) error
}

// committeePositionEnum guards the enum create so re-runs are no-ops.
const committeePositionEnum = `
DO $$ BEGIN
  CREATE TYPE committee_position AS ENUM ('support', 'oppose');
EXCEPTION WHEN duplicate_object THEN NULL;
END $$`

// tables holds the target relation DDL in creation order.
var tables = []string{
	`CREATE TABLE IF NOT EXISTS committees (
  id BIGINT PRIMARY KEY,
  type TEXT,
  state_committee BOOLEAN,
  state_id BIGINT,
  local_committee BOOLEAN,
  local_id BIGINT,
  refer_name TEXT,
  name TEXT,
  address1 TEXT,
  address2 TEXT,
  address3 TEXT,
  city TEXT,
  state TEXT,
  zipcode TEXT,
  active BOOLEAN,
  status_date DATE,
  creation_date DATE,
  creation_amount NUMERIC,
  disp_funds_return BOOLEAN,
  disp_funds_political_committee BOOLEAN,
  disp_funds_charity BOOLEAN,
  disp_funds_95 BOOLEAN,
  disp_funds_description TEXT,
  candidate_position committee_position,
  policy_position committee_position,
  party TEXT
)`,
	`CREATE TABLE IF NOT EXISTS candidates (
  id BIGINT PRIMARY KEY,
  last_name TEXT,
  first_name TEXT,
  address_1 TEXT,
  address_2 TEXT,
  city TEXT,
  state TEXT,
  zipcode TEXT,
  office TEXT,
  district_type TEXT,
  district TEXT,
  residence_county TEXT,
  party TEXT,
  redaction_requested BOOLEAN,
  date_added TIMESTAMP,
  last_update TIMESTAMP
)`,
	`CREATE TABLE IF NOT EXISTS officers (
  id BIGINT,
  committee_id BIGINT,
  last_name TEXT,
  first_name TEXT,
  title TEXT,
  address_1 TEXT,
  address_2 TEXT,
  city TEXT,
  state TEXT,
  zipcode TEXT,
  phone TEXT,
  resign_date DATE,
  current BOOLEAN,
  PRIMARY KEY (id, current)
)`,
	`CREATE TABLE IF NOT EXISTS candidacies (
  id BIGINT PRIMARY KEY,
  candidate_id BIGINT,
  election_type TEXT,
  election_year INTEGER,
  race_type TEXT,
  outcome TEXT,
  fair_campaign BOOLEAN,
  limits_off BOOLEAN,
  limits_off_reason TEXT
)`,
	`CREATE TABLE IF NOT EXISTS candidate_committees (
  committee_id BIGINT,
  candidate_id BIGINT,
  PRIMARY KEY (committee_id, candidate_id)
)`,
	`CREATE TABLE IF NOT EXISTS filed_docs (
  id BIGINT PRIMARY KEY,
  committee_id BIGINT,
  doc_type TEXT,
  doc_name TEXT,
  amended BOOLEAN,
  page_count INTEGER,
  received_datetime TIMESTAMP,
  reporting_period_begin DATE,
  reporting_period_end DATE,
  signer TEXT
)`,
	`CREATE TABLE IF NOT EXISTS d2_reports (
  id BIGINT PRIMARY KEY,
  committee_id BIGINT,
  filed_doc_id BIGINT,
  begin_funds_available NUMERIC,
  individual_itemized_contrib NUMERIC,
  individual_non_itemized_contrib NUMERIC,
  transfers_in NUMERIC,
  loans_received NUMERIC,
  other_receipts NUMERIC,
  total_receipts NUMERIC,
  total_expenditures NUMERIC,
  end_funds_available NUMERIC,
  total_investments NUMERIC,
  total_debts NUMERIC
)`,
	`CREATE TABLE IF NOT EXISTS receipts (
  id BIGINT PRIMARY KEY,
  committee_id BIGINT,
  filed_doc_id BIGINT,
  etrans_id TEXT,
  last_name TEXT,
  first_name TEXT,
  received_date DATE,
  amount NUMERIC,
  aggregate_amount NUMERIC,
  loan_amount NUMERIC,
  occupation TEXT,
  employer TEXT,
  address1 TEXT,
  address2 TEXT,
  city TEXT,
  state TEXT,
  zip TEXT,
  d2_part TEXT,
  description TEXT,
  vendor_name TEXT,
  archived BOOLEAN
)`,
	`CREATE TABLE IF NOT EXISTS expenditures (
  id BIGINT PRIMARY KEY,
  committee_id BIGINT,
  filed_doc_id BIGINT,
  etrans_id TEXT,
  last_name TEXT,
  first_name TEXT,
  expended_date DATE,
  amount NUMERIC,
  aggregate_amount NUMERIC,
  address1 TEXT,
  address2 TEXT,
  city TEXT,
  state TEXT,
  zip TEXT,
  d2_part TEXT,
  purpose TEXT,
  candidate_name TEXT,
  office TEXT,
  supporting BOOLEAN,
  opposing BOOLEAN,
  description TEXT
)`,
	`CREATE TABLE IF NOT EXISTS investments (
  id BIGINT PRIMARY KEY,
  committee_id BIGINT,
  filed_doc_id BIGINT,
  etrans_id TEXT,
  last_name TEXT,
  first_name TEXT,
  purchase_date DATE,
  purchase_amount NUMERIC,
  current_value NUMERIC,
  liquid BOOLEAN,
  liquidate_date DATE,
  liquidate_amount NUMERIC
)`,
}

// Ensure provisions the committee_position enum and every target relation.
func Ensure(ctx context.Context, db Execer) error {
	if err := db.Exec(ctx, committeePositionEnum); err != nil {
		return fmt.Errorf("create committee_position enum: %w", err)
	}
	for _, ddl := range tables {
		if err := db.Exec(ctx, ddl); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}
	return nil
}
