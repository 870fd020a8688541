package ir

// Input is a seed or variant document bound to a program. Raw is JSON;
// the harness never looks inside it.
type Input struct {
	Program string
	// Path is where the document came from, or a plan reference such as
	// "plan.json#3" for generated variants.
	Path string
	Raw  []byte
}

// Variant is one generated input in a mutation plan.
type Variant struct {
	// Index is the variant's position in the plan, starting at 0.
	Index int
	// Operator labels the mutation, e.g. "length_bias:1kb".
	Operator string
	// Size is the declared size the strategy aimed for, or -1.
	Size int64
	// Input is the canonical JSON document handed to both backends.
	Input []byte
}

// Plan is the deterministic output of one strategy applied to one seed.
// The same seed, strategy name, strategy version and RngSeed always
// produce the same variants in the same order.
type Plan struct {
	Program         string
	Strategy        string
	StrategyVersion int
	BaseSeed        string
	SeedDigest      string
	RngSeed         *uint64
	Variants        []Variant
	Digest          string
}

// Manifest is the persisted form of a Plan. Variant inputs are not stored;
// they are regenerated on resume and checked against InputDigest.
type Manifest struct {
	Program         string          `json:"program"`
	Strategy        string          `json:"strategy"`
	StrategyVersion int             `json:"strategy_version"`
	BaseSeed        string          `json:"base_seed"`
	SeedDigest      string          `json:"seed_digest"`
	RngSeed         *uint64         `json:"rng_seed,omitempty"`
	Entries         []ManifestEntry `json:"entries"`
	Digest          string          `json:"digest,omitempty"`
}

// ManifestEntry describes one variant without its payload.
type ManifestEntry struct {
	Index       int    `json:"index"`
	Operator    string `json:"operator"`
	Size        int64  `json:"size"`
	InputDigest string `json:"input_digest"`
}
