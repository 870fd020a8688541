package store

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/roach88/zkfuzz/internal/fsx"
	"github.com/roach88/zkfuzz/internal/ir"
)

var insertSQL = "INSERT INTO runs (" + strings.Join(ir.Columns, ", ") + ") VALUES (" +
	strings.TrimSuffix(strings.Repeat("?, ", len(ir.Columns)), ", ") + ")"

// Append writes one record to both the database and the CSV summary and
// returns it with its assigned Seq.
//
// Append blocks until the writer has handled the record. ctx only bounds
// the wait: a record already queued is still written after ctx ends.
// A duplicate RunID is rejected; records are never overwritten.
func (s *Store) Append(ctx context.Context, rec ir.Record) (ir.Record, error) {
	if rec.RunID == "" {
		return ir.Record{}, errors.New("append record: run_id is required")
	}
	if rec.Program == "" {
		return ir.Record{}, errors.New("append record: program is required")
	}

	done := make(chan appendReply, 1)
	s.mu.RLock()
	queued := !s.closed && s.queue.Enqueue(appendRequest{rec: rec, done: done})
	s.mu.RUnlock()
	if !queued {
		return ir.Record{}, ErrClosed
	}

	select {
	case reply := <-done:
		return reply.rec, reply.err
	case <-ctx.Done():
		return ir.Record{}, ctx.Err()
	}
}

// writeLoop is the only goroutine that touches the database rows and the
// CSV writer. It exits once the queue is closed and drained.
func (s *Store) writeLoop() {
	defer close(s.stopped)
	for {
		for {
			req, ok := s.queue.TryDequeue()
			if !ok {
				break
			}
			rec, err := s.write(req.rec)
			if err != nil {
				s.logger.Error("append failed", "run_id", req.rec.RunID, "error", err)
			}
			req.done <- appendReply{rec: rec, err: err}
		}
		if s.queue.Drained() {
			return
		}
		<-s.queue.Wait()
	}
}

// write inserts rec inside a transaction and commits only once the CSV row
// is flushed, so a failed CSV write leaves no database row behind.
func (s *Store) write(rec ir.Record) (ir.Record, error) {
	rec.Seq = s.clock.Next()

	tx, err := s.db.Begin()
	if err != nil {
		return ir.Record{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if _, err := tx.Exec(insertSQL, recordArgs(rec)...); err != nil {
		return ir.Record{}, fmt.Errorf("insert record %s: %w", rec.RunID, err)
	}

	if err := s.csvWriter.Write(rec.Values()); err != nil {
		return ir.Record{}, fmt.Errorf("write csv row %s: %w", rec.RunID, err)
	}
	s.csvWriter.Flush()
	if err := s.csvWriter.Error(); err != nil {
		return ir.Record{}, fmt.Errorf("flush csv row %s: %w", rec.RunID, err)
	}

	if err := tx.Commit(); err != nil {
		return ir.Record{}, fmt.Errorf("commit record %s: %w", rec.RunID, err)
	}
	s.logger.Debug("record appended", "run_id", rec.RunID, "program", rec.Program, "seq", rec.Seq, "equal", rec.Equal)
	return rec, nil
}

// recordArgs returns the insert arguments in ir.Columns order.
func recordArgs(rec ir.Record) []any {
	return []any{
		rec.RunID,
		rec.Program,
		rec.Input,
		string(rec.StatusA),
		string(rec.StatusB),
		boolToInt(rec.Equal),
		rec.Reason,
		rec.ElapsedAMS,
		rec.ElapsedBMS,
		rec.TimingDeltaMS,
		rec.ReproPath,
		string(rec.Provenance),
		rec.BaseSeed,
		rec.MutationOp,
		rec.RngSeed,
		rec.BackendTarget,
		rec.BackendVersion,
		rec.Toolchain,
		rec.CampaignID,
		rec.VariantIndex,
		rec.InputDigest,
		rec.Seq,
	}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// openCSV opens summary.csv for appending. A new file gets a header line
// for ir.Columns. A file whose header predates the current column set is
// first rewritten under the current header, so it always holds exactly
// one header row.
func (s *Store) openCSV() error {
	path := filepath.Join(s.dir, CSVFile)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open csv: %w", err)
	}

	header, err := lastHeader(f)
	if err != nil {
		f.Close()
		return fmt.Errorf("read csv header: %w", err)
	}

	if header != nil && !slices.Equal(header, ir.Columns) {
		f.Close()
		s.logger.Info("upgrading csv header", "from_columns", len(header), "to_columns", len(ir.Columns))
		if err := upgradeCSV(path); err != nil {
			return fmt.Errorf("upgrade csv: %w", err)
		}
		if f, err = os.OpenFile(path, os.O_RDWR|os.O_APPEND, 0o644); err != nil {
			return fmt.Errorf("open csv: %w", err)
		}
	}

	s.csvFile = f
	s.csvWriter = csv.NewWriter(f)
	if header != nil {
		return nil
	}
	if err := s.csvWriter.Write(ir.Columns); err != nil {
		f.Close()
		return fmt.Errorf("write csv header: %w", err)
	}
	s.csvWriter.Flush()
	if err := s.csvWriter.Error(); err != nil {
		f.Close()
		return fmt.Errorf("write csv header: %w", err)
	}
	return nil
}

// upgradeCSV atomically rewrites path under a single ir.Columns header.
// Each row is mapped by column name from the header it was written under;
// columns it lacks are left empty.
func upgradeCSV(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	cr := csv.NewReader(bytes.NewReader(data))
	cr.FieldsPerRecord = -1

	var buf bytes.Buffer
	cw := csv.NewWriter(&buf)
	if err := cw.Write(ir.Columns); err != nil {
		return err
	}
	var header []string
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		if isHeader(row) {
			header = row
			continue
		}
		if header == nil {
			return errors.New("row before header")
		}
		if err := cw.Write(reorder(header, row)); err != nil {
			return err
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return err
	}
	return fsx.WriteFileAtomic(path, buf.Bytes(), 0o644)
}

func reorder(header, row []string) []string {
	out := make([]string, len(ir.Columns))
	for i, col := range ir.Columns {
		if j := slices.Index(header, col); j >= 0 && j < len(row) {
			out[i] = row[j]
		}
	}
	return out
}

// lastHeader returns the last header row in r, or nil for an empty file.
func lastHeader(r io.ReadSeeker) ([]string, error) {
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	var header []string
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if isHeader(row) {
			header = row
		}
	}
	return header, nil
}

func isHeader(row []string) bool {
	return len(row) > 0 && row[0] == ir.Columns[0]
}
