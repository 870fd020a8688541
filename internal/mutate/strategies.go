package mutate

import (
	"fmt"
	"math"
	"math/rand/v2"
	"slices"
	"strings"

	"github.com/roach88/zkfuzz/internal/ir"
)

// DefaultSizes is the length_bias size set: powers of two up to 1 MiB,
// values just below common width limits, and a few small edge sizes.
var DefaultSizes = func() []int {
	var sizes []int
	sizes = append(sizes, 0)
	for n := 1; n <= 1<<20; n <<= 1 {
		sizes = append(sizes, n)
	}
	sizes = append(sizes, 127, 255, 1023, 4095, 65535)
	sizes = append(sizes, 3, 7, 15, 31, 63)
	slices.Sort(sizes)
	return slices.Compact(sizes)
}()

// LengthBias materializes a byte payload of each size in Sizes. Byte i of
// every payload is i mod 256.
type LengthBias struct {
	Sizes []int
}

func (LengthBias) Name() string { return "length_bias" }
func (LengthBias) Version() int { return 2 }

func (s LengthBias) Generate([]byte) ([]ir.Variant, error) {
	sizes := s.Sizes
	if len(sizes) == 0 {
		sizes = DefaultSizes
	}
	sizes = slices.Compact(slices.Sorted(slices.Values(sizes)))

	variants := make([]ir.Variant, 0, len(sizes))
	for _, n := range sizes {
		if n < 0 {
			return nil, fmt.Errorf("negative size %d", n)
		}
		data := make(ir.IRArray, n)
		for i := range data {
			data[i] = ir.IRInt(i % 256)
		}
		v, err := variant(fmt.Sprintf("length_bias:%s", sizeLabel(n)), int64(n), ir.IRObject{"data": data})
		if err != nil {
			return nil, err
		}
		variants = append(variants, v)
	}
	return variants, nil
}

// sizeLabel names a byte count. Only exact multiples use kb or mb, so
// distinct sizes always get distinct labels.
func sizeLabel(n int) string {
	switch {
	case n >= 1<<20 && n%(1<<20) == 0:
		return fmt.Sprintf("%dmb", n>>20)
	case n >= 1<<10 && n%(1<<10) == 0:
		return fmt.Sprintf("%dkb", n>>10)
	default:
		return fmt.Sprintf("%db", n)
	}
}

// RandomLength draws Count payload sizes and contents from a PCG source
// seeded with Seed. Draws may repeat a size, so labels carry the draw
// number: "random_length:3:1500b".
type RandomLength struct {
	Seed  uint64
	Count int
	// MaxSize bounds each payload. Zero means 64 KiB.
	MaxSize int
}

func (RandomLength) Name() string      { return "random_length" }
func (RandomLength) Version() int      { return 2 }
func (s RandomLength) RngSeed() uint64 { return s.Seed }

func (s RandomLength) Generate([]byte) ([]ir.Variant, error) {
	count := s.Count
	if count <= 0 {
		count = 8
	}
	maxSize := s.MaxSize
	if maxSize <= 0 {
		maxSize = 1 << 16
	}
	rng := rand.New(rand.NewPCG(s.Seed, s.Seed^0x9e3779b97f4a7c15))

	variants := make([]ir.Variant, 0, count)
	for k := 0; k < count; k++ {
		n := rng.IntN(maxSize + 1)
		data := make(ir.IRArray, n)
		for i := range data {
			data[i] = ir.IRInt(rng.IntN(256))
		}
		v, err := variant(fmt.Sprintf("random_length:%d:%s", k, sizeLabel(n)), int64(n), ir.IRObject{"data": data})
		if err != nil {
			return nil, err
		}
		variants = append(variants, v)
	}
	return variants, nil
}

// BoundaryValues pairs representative uint32 values for each arithmetic
// operation. For the k-th operation, operand a takes every value once and
// b is the value k+1 places further along, so (0, 0) never occurs and
// every operation sees both overflow-prone and trivial pairs.
type BoundaryValues struct{}

// BoundaryOperands are the representative uint32 values.
var BoundaryOperands = []int64{0, 1, 2, math.MaxUint32 / 2, math.MaxUint32 - 1, math.MaxUint32}

// BoundaryOperations are the operations the arithmetic program supports.
var BoundaryOperations = []string{"add", "sub", "mul", "div"}

func (BoundaryValues) Name() string { return "boundary_values" }
func (BoundaryValues) Version() int { return 1 }

func (BoundaryValues) Generate([]byte) ([]ir.Variant, error) {
	vals := BoundaryOperands
	var variants []ir.Variant
	for k, op := range BoundaryOperations {
		for i, a := range vals {
			b := vals[(i+k+1)%len(vals)]
			v, err := variant(fmt.Sprintf("boundary_values:%d_%d_op_%s", a, b, op), -1, ir.IRObject{
				"a":         ir.IRInt(a),
				"b":         ir.IRInt(b),
				"operation": ir.IRString(op),
			})
			if err != nil {
				return nil, err
			}
			variants = append(variants, v)
		}
	}
	return variants, nil
}

// StringVariation exercises string handling with ten shapes of field2.
type StringVariation struct{}

type stringCase struct {
	label string
	value string
}

var stringCases = []stringCase{
	{"empty", ""},
	{"single", "a"},
	{"short", "hello"},
	{"100chars", strings.Repeat("a", 100)},
	{"1000chars", strings.Repeat("a", 1000)},
	{"10kchars", strings.Repeat("a", 10000)},
	{"emoji", "\U0001F980"},
	{"unicode_mixed", "\U0001F980 Rust zkVM"},
	{"newline", "Hello\nWorld"},
	{"tab", "Tab\tSeparated"},
}

func (StringVariation) Name() string { return "string_variation" }
func (StringVariation) Version() int { return 1 }

func (StringVariation) Generate([]byte) ([]ir.Variant, error) {
	field1 := []int64{0, 1, 42, math.MaxUint32}
	variants := make([]ir.Variant, 0, len(stringCases))
	for i, c := range stringCases {
		v, err := variant("string_variation:"+c.label, int64(len(c.value)), ir.IRObject{
			"field1": ir.IRInt(field1[i%len(field1)]),
			"field2": ir.IRString(c.value),
			"field3": ir.IRBool(i%2 == 0),
		})
		if err != nil {
			return nil, err
		}
		variants = append(variants, v)
	}
	return variants, nil
}

// FibValue walks n across small, medium and large values.
type FibValue struct{}

var fibValues = []int64{0, 1, 2, 5, 10, 20, 30, 40, 50, 100, 1000}

func (FibValue) Name() string { return "fib_value" }
func (FibValue) Version() int { return 1 }

func (FibValue) Generate([]byte) ([]ir.Variant, error) {
	variants := make([]ir.Variant, 0, len(fibValues))
	for _, n := range fibValues {
		v, err := variant(fmt.Sprintf("fib_value:n=%d", n), -1, ir.IRObject{"n": ir.IRInt(n)})
		if err != nil {
			return nil, err
		}
		variants = append(variants, v)
	}
	return variants, nil
}

// BoolVariation toggles should_panic.
type BoolVariation struct{}

var boolCases = []struct {
	label string
	panic bool
}{
	{"no_panic", false},
	{"panic_simple", true},
	{"panic_with_long_message", true},
	{"no_panic_alternate", false},
}

func (BoolVariation) Name() string { return "bool_variation" }
func (BoolVariation) Version() int { return 1 }

func (BoolVariation) Generate([]byte) ([]ir.Variant, error) {
	variants := make([]ir.Variant, 0, len(boolCases))
	for _, c := range boolCases {
		doc := ir.IRObject{"should_panic": ir.IRBool(c.panic)}
		if c.panic {
			msg := "Test panic: " + c.label
			if c.label == "panic_with_long_message" {
				msg += ": " + strings.Repeat("x", 4096)
			}
			doc["panic_msg"] = ir.IRString(msg)
		}
		v, err := variant("bool_variation:"+c.label, -1, doc)
		if err != nil {
			return nil, err
		}
		variants = append(variants, v)
	}
	return variants, nil
}

// IterationVariation scales the loop count by powers of ten. Zero never
// terminates and is expected to time out on every backend.
type IterationVariation struct{}

var iterationCounts = []int64{0, 1, 10, 100, 1_000, 10_000, 100_000, 1_000_000, 10_000_000}

func (IterationVariation) Name() string { return "iteration_variation" }
func (IterationVariation) Version() int { return 1 }

func (IterationVariation) Generate([]byte) ([]ir.Variant, error) {
	variants := make([]ir.Variant, 0, len(iterationCounts))
	for _, n := range iterationCounts {
		v, err := variant(fmt.Sprintf("iteration_variation:%d", n), n, ir.IRObject{"iterations": ir.IRInt(n)})
		if err != nil {
			return nil, err
		}
		variants = append(variants, v)
	}
	return variants, nil
}

func variant(op string, size int64, doc ir.IRObject) (ir.Variant, error) {
	raw, err := ir.MarshalCanonical(doc)
	if err != nil {
		return ir.Variant{}, fmt.Errorf("%s: %w", op, err)
	}
	return ir.Variant{Operator: op, Size: size, Input: raw}, nil
}
