package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestColumnsAppendOnly(t *testing.T) {
	assert.Len(t, ColumnsV1, 18)
	assert.Equal(t, ColumnsV1, Columns[:len(ColumnsV1)])
	assert.Equal(t, []string{"campaign_id", "variant_index", "input_digest", "seq"}, Columns[len(ColumnsV1):])
}

func TestRecordValuesRoundTrip(t *testing.T) {
	rec := Record{
		RunID:         "r1",
		Program:       "fib",
		Input:         "inputs/fib_24.json",
		StatusA:       StatusOK,
		StatusB:       StatusOK,
		Equal:         true,
		ElapsedAMS:    3,
		ElapsedBMS:    5,
		TimingDeltaMS: 2,
		Provenance:    ProvenanceSeed,
		CampaignID:    "c1",
		VariantIndex:  4,
		Seq:           9,
	}
	values := rec.Values()
	assert.Len(t, values, len(Columns))
	assert.Equal(t, rec, RecordFromValues(Columns, values))
}

func TestRecordFromValuesPadsOldRows(t *testing.T) {
	values := Record{RunID: "old", StatusA: StatusPanic, StatusB: StatusOK}.Values()[:len(ColumnsV1)]
	rec := RecordFromValues(ColumnsV1, values)
	assert.Equal(t, "old", rec.RunID)
	assert.Equal(t, StatusPanic, rec.StatusA)
	assert.Empty(t, rec.CampaignID)
	assert.Equal(t, -1, rec.VariantIndex)
	assert.Zero(t, rec.Seq)
}
