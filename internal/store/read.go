package store

import (
	"context"
	"database/sql"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/roach88/zkfuzz/internal/ir"
)

// Filter narrows Records. Zero fields match everything.
type Filter struct {
	CampaignID   string
	Program      string
	DivergedOnly bool
}

// Records returns stored records matching f, in append order.
func (s *Store) Records(ctx context.Context, f Filter) ([]ir.Record, error) {
	var (
		where []string
		args  []any
	)
	if f.CampaignID != "" {
		where = append(where, "campaign_id = ?")
		args = append(args, f.CampaignID)
	}
	if f.Program != "" {
		where = append(where, "program = ?")
		args = append(args, f.Program)
	}
	if f.DivergedOnly {
		where = append(where, "equal = 0")
	}

	query := "SELECT " + strings.Join(ir.Columns, ", ") + " FROM runs"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	// Rows migrated from v1 all have seq 0; id keeps their insertion order.
	query += " ORDER BY seq ASC, id ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	var out []ir.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return out, nil
}

func scanRecord(rows *sql.Rows) (ir.Record, error) {
	var (
		rec                    ir.Record
		statusA, statusB, prov string
		equal                  int
	)
	err := rows.Scan(
		&rec.RunID,
		&rec.Program,
		&rec.Input,
		&statusA,
		&statusB,
		&equal,
		&rec.Reason,
		&rec.ElapsedAMS,
		&rec.ElapsedBMS,
		&rec.TimingDeltaMS,
		&rec.ReproPath,
		&prov,
		&rec.BaseSeed,
		&rec.MutationOp,
		&rec.RngSeed,
		&rec.BackendTarget,
		&rec.BackendVersion,
		&rec.Toolchain,
		&rec.CampaignID,
		&rec.VariantIndex,
		&rec.InputDigest,
		&rec.Seq,
	)
	if err != nil {
		return ir.Record{}, err
	}
	rec.StatusA = ir.Status(statusA)
	rec.StatusB = ir.Status(statusB)
	rec.Provenance = ir.Provenance(prov)
	rec.Equal = equal != 0
	return rec, nil
}

// ProcessedIndices returns the variant indices already recorded for
// program within campaignID, ascending.
func (s *Store) ProcessedIndices(ctx context.Context, campaignID, program string) ([]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT variant_index FROM runs
		WHERE campaign_id = ? AND program = ? AND variant_index >= 0
		ORDER BY variant_index ASC
	`, campaignID, program)
	if err != nil {
		return nil, fmt.Errorf("query processed indices: %w", err)
	}
	defer rows.Close()

	var out []int
	for rows.Next() {
		var idx int
		if err := rows.Scan(&idx); err != nil {
			return nil, fmt.Errorf("scan processed index: %w", err)
		}
		out = append(out, idx)
	}
	return out, rows.Err()
}

// ProgramSummary aggregates the records of one program.
type ProgramSummary struct {
	Program  string `json:"program"`
	Total    int    `json:"total"`
	Diverged int    `json:"diverged"`
	Panics   int    `json:"panics"`
	Timeouts int    `json:"timeouts"`
}

// Summary aggregates every record in the store.
type Summary struct {
	Total    int              `json:"total"`
	Diverged int              `json:"diverged"`
	Programs []ProgramSummary `json:"programs"`
}

// Summary counts records per program. A record counts as a panic or
// timeout when either backend reported that status.
func (s *Store) Summary(ctx context.Context) (Summary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT program,
		       COUNT(*),
		       SUM(CASE WHEN equal = 0 THEN 1 ELSE 0 END),
		       SUM(CASE WHEN backend_a_status = 'PANIC' OR backend_b_status = 'PANIC' THEN 1 ELSE 0 END),
		       SUM(CASE WHEN backend_a_status = 'TIMEOUT' OR backend_b_status = 'TIMEOUT' THEN 1 ELSE 0 END)
		FROM runs
		GROUP BY program
		ORDER BY program ASC
	`)
	if err != nil {
		return Summary{}, fmt.Errorf("query summary: %w", err)
	}
	defer rows.Close()

	sum := Summary{Programs: []ProgramSummary{}}
	for rows.Next() {
		var p ProgramSummary
		if err := rows.Scan(&p.Program, &p.Total, &p.Diverged, &p.Panics, &p.Timeouts); err != nil {
			return Summary{}, fmt.Errorf("scan summary: %w", err)
		}
		sum.Total += p.Total
		sum.Diverged += p.Diverged
		sum.Programs = append(sum.Programs, p)
	}
	if err := rows.Err(); err != nil {
		return Summary{}, fmt.Errorf("iterate summary: %w", err)
	}
	return sum, nil
}

// ReadCSV parses a summary file written by any schema version. Each row
// is interpreted under the most recent header above it; columns that
// header lacks read as empty.
func ReadCSV(path string) ([]ir.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open csv: %w", err)
	}
	defer f.Close()

	cr := csv.NewReader(f)
	cr.FieldsPerRecord = -1

	var (
		header []string
		out    []ir.Record
	)
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv: %w", err)
		}
		if isHeader(row) {
			header = row
			continue
		}
		if header == nil {
			return nil, fmt.Errorf("read csv: row before header")
		}
		out = append(out, ir.RecordFromValues(header, row))
	}
	return out, nil
}
