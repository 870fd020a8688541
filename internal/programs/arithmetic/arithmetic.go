// Package arithmetic applies one wrapping uint32 operation and reports
// whether it overflowed.
package arithmetic

import "encoding/json"

const maxUint32 = 1<<32 - 1

type Input struct {
	A         uint32 `json:"a"`
	B         uint32 `json:"b"`
	Operation string `json:"operation"`
}

type Output struct {
	Result     uint32
	Overflowed bool
}

// Run panics on division by zero and on an unknown operation.
func Run(in Input) Output {
	a := uint64(in.A)
	b := uint64(in.B)
	switch in.Operation {
	case "add":
		sum := a + b
		return Output{Result: uint32(sum & maxUint32), Overflowed: sum > maxUint32}
	case "sub":
		return Output{Result: uint32((a - b) & maxUint32), Overflowed: b > a}
	case "mul":
		prod := a * b
		return Output{Result: uint32(prod & maxUint32), Overflowed: prod > maxUint32}
	case "div":
		if b == 0 {
			panic("Division by zero")
		}
		return Output{Result: uint32(a / b)}
	default:
		panic("Unknown operation: " + in.Operation)
	}
}

// Commit decodes raw and returns the commit stream: result, overflowed.
func Commit(raw []byte) ([]int64, error) {
	var in Input
	if err := json.Unmarshal(raw, &in); err != nil {
		return nil, err
	}
	out := Run(in)
	overflowed := int64(0)
	if out.Overflowed {
		overflowed = 1
	}
	return []int64{int64(out.Result), overflowed}, nil
}
