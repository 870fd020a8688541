package store

import (
	"context"
	"database/sql"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/roach88/zkfuzz/internal/ir"
)

// createTestStore opens a store in a fresh temp directory, closed on cleanup.
func createTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	s, err := Open(t.TempDir(), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func testRecord(runID string) ir.Record {
	return ir.Record{
		RunID:          runID,
		Program:        "fib",
		Input:          "seeds/fib.json",
		StatusA:        ir.StatusOK,
		StatusB:        ir.StatusOK,
		Equal:          true,
		ElapsedAMS:     3,
		ElapsedBMS:     5,
		TimingDeltaMS:  2,
		Provenance:     ir.ProvenanceSeed,
		BackendTarget:  "native|yaegi",
		BackendVersion: "go1.25|v0.16.1",
		Toolchain:      "go1.25",
		VariantIndex:   -1,
	}
}

func TestOpen_Pragmas(t *testing.T) {
	s := createTestStore(t)

	require.NoError(t, s.verifyPragma("journal_mode", "wal"))
	require.NoError(t, s.verifyPragma("synchronous", "1"))
	require.NoError(t, s.verifyPragma("busy_timeout", "5000"))
	require.NoError(t, s.verifyPragma("user_version", fmt.Sprint(currentSchemaVersion)))
}

func TestOpen_CreatesFiles(t *testing.T) {
	s := createTestStore(t)

	assert.FileExists(t, filepath.Join(s.Dir(), DBFile))
	assert.FileExists(t, filepath.Join(s.Dir(), CSVFile))

	recs, err := ReadCSV(filepath.Join(s.Dir(), CSVFile))
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestOpen_Idempotent(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s, err := Open(dir)
	require.NoError(t, err)
	_, err = s.Append(ctx, testRecord("run-1"))
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(dir)
	require.NoError(t, err)
	defer s.Close()

	rec, err := s.Append(ctx, testRecord("run-2"))
	require.NoError(t, err)
	assert.Equal(t, int64(2), rec.Seq, "seq resumes after reopen")

	content, err := os.ReadFile(filepath.Join(dir, CSVFile))
	require.NoError(t, err)
	header := ir.Columns[0] + ","
	assert.Equal(t, 1, countPrefix(string(content), header), "header written once")
}

func countPrefix(content, prefix string) int {
	n := 0
	for _, line := range splitLines(content) {
		if len(line) >= len(prefix) && line[:len(prefix)] == prefix {
			n++
		}
	}
	return n
}

func splitLines(s string) []string {
	var out []string
	start := 0
	for i := range len(s) {
		if s[i] == '\n' {
			out = append(out, s[start:i])
			start = i + 1
		}
	}
	if start < len(s) {
		out = append(out, s[start:])
	}
	return out
}

func TestAppend_RoundTrip(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	in := testRecord("run-1")
	in.Equal = false
	in.StatusB = ir.StatusPanic
	in.Reason = "status mismatch: OK vs PANIC"
	in.ReproPath = s.DivergencePath("run-1")
	in.Provenance = ir.ProvenanceMutated
	in.BaseSeed = "seeds/fib.json"
	in.MutationOp = "fib_value:n=0"
	in.RngSeed = "42"
	in.CampaignID = "camp-1"
	in.VariantIndex = 3
	in.InputDigest = "abc"

	got, err := s.Append(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.Seq)

	want := in
	want.Seq = 1

	recs, err := s.Records(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, want, recs[0])

	csvRecs, err := ReadCSV(filepath.Join(s.Dir(), CSVFile))
	require.NoError(t, err)
	require.Len(t, csvRecs, 1)
	assert.Equal(t, want, csvRecs[0])
}

func TestAppend_RequiresIdentity(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	_, err := s.Append(ctx, ir.Record{Program: "fib"})
	assert.ErrorContains(t, err, "run_id is required")

	_, err = s.Append(ctx, ir.Record{RunID: "run-1"})
	assert.ErrorContains(t, err, "program is required")
}

func TestAppend_DuplicateRunIDRejected(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	_, err := s.Append(ctx, testRecord("run-1"))
	require.NoError(t, err)
	_, err = s.Append(ctx, testRecord("run-1"))
	require.Error(t, err)

	recs, err := s.Records(ctx, Filter{})
	require.NoError(t, err)
	assert.Len(t, recs, 1)

	csvRecs, err := ReadCSV(filepath.Join(s.Dir(), CSVFile))
	require.NoError(t, err)
	assert.Len(t, csvRecs, 1, "rejected record must not reach the csv")
}

func TestAppend_SameComparisonTwice(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	a := testRecord("run-1")
	b := testRecord("run-2")

	_, err := s.Append(ctx, a)
	require.NoError(t, err)
	_, err = s.Append(ctx, b)
	require.NoError(t, err)

	recs, err := s.Records(ctx, Filter{Program: "fib"})
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "run-1", recs[0].RunID)
	assert.Equal(t, "run-2", recs[1].RunID)
}

func TestAppend_Concurrent(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	const n = 50
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Append(ctx, testRecord(fmt.Sprintf("run-%03d", i)))
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	recs, err := s.Records(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, recs, n)
	for i, rec := range recs {
		assert.Equal(t, int64(i+1), rec.Seq, "seq is dense and ordered")
	}

	csvRecs, err := ReadCSV(filepath.Join(s.Dir(), CSVFile))
	require.NoError(t, err)
	require.Len(t, csvRecs, n)
	for i := range recs {
		assert.Equal(t, recs[i], csvRecs[i], "csv and database agree at row %d", i)
	}
}

func TestAppend_AfterClose(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close(), "close is idempotent")

	_, err = s.Append(context.Background(), testRecord("run-1"))
	assert.ErrorIs(t, err, ErrClosed)
}

func TestClose_StopsWriter(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	s, err := Open(t.TempDir())
	require.NoError(t, err)
	_, err = s.Append(context.Background(), testRecord("run-1"))
	require.NoError(t, err)
	require.NoError(t, s.Close())
}

func TestRecords_Filter(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	r1 := testRecord("run-1")
	r1.CampaignID = "camp-a"
	r2 := testRecord("run-2")
	r2.CampaignID = "camp-a"
	r2.Equal = false
	r2.Reason = "commit[0] mismatch: 1 vs 2"
	r3 := testRecord("run-3")
	r3.CampaignID = "camp-b"
	r3.Program = "io_echo"

	for _, r := range []ir.Record{r1, r2, r3} {
		_, err := s.Append(ctx, r)
		require.NoError(t, err)
	}

	recs, err := s.Records(ctx, Filter{CampaignID: "camp-a"})
	require.NoError(t, err)
	assert.Len(t, recs, 2)

	recs, err = s.Records(ctx, Filter{CampaignID: "camp-a", DivergedOnly: true})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "run-2", recs[0].RunID)

	recs, err = s.Records(ctx, Filter{Program: "io_echo"})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "run-3", recs[0].RunID)
}

func TestProcessedIndices(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	for i, idx := range []int{4, 0, 2, 2} {
		r := testRecord(fmt.Sprintf("run-%d", i))
		r.CampaignID = "camp-a"
		r.VariantIndex = idx
		_, err := s.Append(ctx, r)
		require.NoError(t, err)
	}
	seed := testRecord("run-seed")
	seed.CampaignID = "camp-a"
	_, err := s.Append(ctx, seed)
	require.NoError(t, err)

	other := testRecord("run-other")
	other.CampaignID = "camp-b"
	other.VariantIndex = 1
	_, err = s.Append(ctx, other)
	require.NoError(t, err)

	got, err := s.ProcessedIndices(ctx, "camp-a", "fib")
	require.NoError(t, err)
	assert.Equal(t, []int{0, 2, 4}, got)

	got, err = s.ProcessedIndices(ctx, "camp-a", "io_echo")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSummary(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	empty, err := s.Summary(ctx)
	require.NoError(t, err)
	assert.Equal(t, Summary{Programs: []ProgramSummary{}}, empty)

	recs := []ir.Record{testRecord("run-1"), testRecord("run-2"), testRecord("run-3"), testRecord("run-4")}
	recs[1].StatusA, recs[1].StatusB = ir.StatusPanic, ir.StatusPanic
	recs[2].StatusB = ir.StatusTimeout
	recs[2].Equal = false
	recs[3].Program = "arithmetic"
	for _, r := range recs {
		_, err := s.Append(ctx, r)
		require.NoError(t, err)
	}

	sum, err := s.Summary(ctx)
	require.NoError(t, err)
	assert.Equal(t, Summary{
		Total:    4,
		Diverged: 1,
		Programs: []ProgramSummary{
			{Program: "arithmetic", Total: 1},
			{Program: "fib", Total: 3, Diverged: 1, Panics: 1, Timeouts: 1},
		},
	}, sum)
}

func TestMigration_FromV1(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	db, err := sql.Open("sqlite3", filepath.Join(dir, DBFile))
	require.NoError(t, err)
	_, err = db.Exec(schemaSQL)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO runs (run_id, program, input, backend_a_status, backend_b_status, equal,
		backend_a_elapsed_ms, backend_b_elapsed_ms, timing_delta_ms, provenance)
		VALUES ('old-1', 'fib', 'seeds/fib.json', 'OK', 'OK', 1, 4, 6, 2, 'seed')`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	s, err := Open(dir)
	require.NoError(t, err)
	defer s.Close()
	require.NoError(t, s.verifyPragma("user_version", "2"))

	rec, err := s.Append(ctx, testRecord("new-1"))
	require.NoError(t, err)
	assert.Equal(t, int64(1), rec.Seq)

	recs, err := s.Records(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "old-1", recs[0].RunID)
	assert.Equal(t, "", recs[0].CampaignID)
	assert.Equal(t, -1, recs[0].VariantIndex)
	assert.Equal(t, int64(0), recs[0].Seq)
	assert.Equal(t, int64(6), recs[0].ElapsedBMS)
	assert.Equal(t, "new-1", recs[1].RunID)
}

func TestCSV_HeaderUpgrade(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	v1 := ir.Record{
		RunID:         "old-1",
		Program:       "fib",
		Input:         "seeds/fib.json",
		StatusA:       ir.StatusOK,
		StatusB:       ir.StatusOK,
		Equal:         true,
		ElapsedAMS:    1,
		ElapsedBMS:    2,
		TimingDeltaMS: 1,
		Provenance:    ir.ProvenanceSeed,
	}
	old := csvLine(ir.ColumnsV1) + csvLine(v1.Values()[:len(ir.ColumnsV1)])
	require.NoError(t, os.WriteFile(filepath.Join(dir, CSVFile), []byte(old), 0o644))

	s, err := Open(dir)
	require.NoError(t, err)
	_, err = s.Append(ctx, testRecord("new-1"))
	require.NoError(t, err)
	require.NoError(t, s.Close())

	recs, err := ReadCSV(filepath.Join(dir, CSVFile))
	require.NoError(t, err)
	require.Len(t, recs, 2)

	assert.Equal(t, "old-1", recs[0].RunID)
	assert.Equal(t, "", recs[0].CampaignID, "missing columns read as empty")
	assert.Equal(t, -1, recs[0].VariantIndex)
	assert.Equal(t, "new-1", recs[1].RunID)
	assert.Equal(t, int64(1), recs[1].Seq)

	s, err = Open(dir)
	require.NoError(t, err)
	require.NoError(t, s.Close())
	content, err := os.ReadFile(filepath.Join(dir, CSVFile))
	require.NoError(t, err)
	assert.Equal(t, 1, countPrefix(string(content), ir.Columns[0]+","), "single header after upgrade")
	assert.True(t, strings.HasPrefix(string(content), strings.Join(ir.Columns, ",")+"\n"))

	rows, err := csv.NewReader(strings.NewReader(string(content))).ReadAll()
	require.NoError(t, err, "plain csv reader sees a rectangular file")
	require.Len(t, rows, 3)
	assert.Equal(t, "old-1", rows[1][0])
	assert.Equal(t, "new-1", rows[2][0])
}

func csvLine(fields []string) string {
	line := ""
	for i, f := range fields {
		if i > 0 {
			line += ","
		}
		line += f
	}
	return line + "\n"
}

func TestReadCSV_RowBeforeHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), CSVFile)
	require.NoError(t, os.WriteFile(path, []byte("x,fib\n"), 0o644))

	_, err := ReadCSV(path)
	assert.ErrorContains(t, err, "row before header")
}
