// Package fib computes Fibonacci numbers reduced modulo a small prime.
package fib

import "encoding/json"

// Modulus keeps every intermediate value well inside uint32.
const Modulus = 7919

type Input struct {
	N uint32 `json:"n"`
}

type Output struct {
	N uint32
	A uint32
	B uint32
}

// Run advances the pair (a, b) = (0, 1) n times.
func Run(in Input) Output {
	var a, b uint32 = 0, 1
	for i := uint32(0); i < in.N; i++ {
		c := (a + b) % Modulus
		a = b
		b = c
	}
	return Output{N: in.N, A: a, B: b}
}

// Commit decodes raw and returns the commit stream: n, a, b.
func Commit(raw []byte) ([]int64, error) {
	var in Input
	if err := json.Unmarshal(raw, &in); err != nil {
		return nil, err
	}
	out := Run(in)
	return []int64{int64(out.N), int64(out.A), int64(out.B)}, nil
}
