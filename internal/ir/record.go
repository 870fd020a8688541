package ir

import (
	"strconv"
)

// Provenance records where an input came from.
type Provenance string

const (
	ProvenanceSeed      Provenance = "seed"
	ProvenanceMutated   Provenance = "mutated"
	ProvenanceGenerated Provenance = "generated"
)

// Record is one row of the artifact log: exactly one per executed
// (program, input) pair. All fields are flattened to strings in Columns
// order when written.
type Record struct {
	RunID          string
	Program        string
	Input          string
	StatusA        Status
	StatusB        Status
	Equal          bool
	Reason         string
	ElapsedAMS     int64
	ElapsedBMS     int64
	TimingDeltaMS  int64
	ReproPath      string
	Provenance     Provenance
	BaseSeed       string
	MutationOp     string
	RngSeed        string
	BackendTarget  string
	BackendVersion string
	Toolchain      string

	// Appended in schema version 2.
	CampaignID   string
	VariantIndex int
	InputDigest  string
	Seq          int64
}

// ColumnsV1 is the original column set. Files written before schema
// version 2 carry only these.
var ColumnsV1 = []string{
	"run_id",
	"program",
	"input",
	"backend_a_status",
	"backend_b_status",
	"equal",
	"reason",
	"backend_a_elapsed_ms",
	"backend_b_elapsed_ms",
	"timing_delta_ms",
	"repro_path",
	"provenance",
	"base_seed",
	"mutation_op",
	"rng_seed",
	"backend_target",
	"backend_version",
	"toolchain_version",
}

// Columns is the current column order. New columns are only ever appended.
var Columns = append(append([]string{}, ColumnsV1...),
	"campaign_id",
	"variant_index",
	"input_digest",
	"seq",
)

// Values flattens r in Columns order.
func (r Record) Values() []string {
	variant := ""
	if r.VariantIndex >= 0 {
		variant = strconv.Itoa(r.VariantIndex)
	}
	return []string{
		r.RunID,
		r.Program,
		r.Input,
		string(r.StatusA),
		string(r.StatusB),
		strconv.FormatBool(r.Equal),
		r.Reason,
		strconv.FormatInt(r.ElapsedAMS, 10),
		strconv.FormatInt(r.ElapsedBMS, 10),
		strconv.FormatInt(r.TimingDeltaMS, 10),
		r.ReproPath,
		string(r.Provenance),
		r.BaseSeed,
		r.MutationOp,
		r.RngSeed,
		r.BackendTarget,
		r.BackendVersion,
		r.Toolchain,
		r.CampaignID,
		variant,
		r.InputDigest,
		strconv.FormatInt(r.Seq, 10),
	}
}

// RecordFromValues rebuilds a record from a row written under header.
// Columns missing from header read as empty; unknown columns are ignored.
func RecordFromValues(header, values []string) Record {
	get := func(name string) string {
		for i, h := range header {
			if h == name && i < len(values) {
				return values[i]
			}
		}
		return ""
	}
	atoi := func(s string) int64 {
		n, _ := strconv.ParseInt(s, 10, 64)
		return n
	}
	variant := -1
	if s := get("variant_index"); s != "" {
		variant = int(atoi(s))
	}
	return Record{
		RunID:          get("run_id"),
		Program:        get("program"),
		Input:          get("input"),
		StatusA:        Status(get("backend_a_status")),
		StatusB:        Status(get("backend_b_status")),
		Equal:          get("equal") == "true",
		Reason:         get("reason"),
		ElapsedAMS:     atoi(get("backend_a_elapsed_ms")),
		ElapsedBMS:     atoi(get("backend_b_elapsed_ms")),
		TimingDeltaMS:  atoi(get("timing_delta_ms")),
		ReproPath:      get("repro_path"),
		Provenance:     Provenance(get("provenance")),
		BaseSeed:       get("base_seed"),
		MutationOp:     get("mutation_op"),
		RngSeed:        get("rng_seed"),
		BackendTarget:  get("backend_target"),
		BackendVersion: get("backend_version"),
		Toolchain:      get("toolchain_version"),
		CampaignID:     get("campaign_id"),
		VariantIndex:   variant,
		InputDigest:    get("input_digest"),
		Seq:            atoi(get("seq")),
	}
}
