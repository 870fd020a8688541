// Package ioecho reports the shape of a byte payload.
package ioecho

import "encoding/json"

type Input struct {
	Data []int `json:"data"`
}

type Output struct {
	Len   int
	First int
	Last  int
	Empty bool
}

func Run(in Input) Output {
	n := len(in.Data)
	if n == 0 {
		return Output{Empty: true}
	}
	return Output{Len: n, First: in.Data[0] & 0xff, Last: in.Data[n-1] & 0xff}
}

// Commit decodes raw and returns the commit stream: len, first, last.
// An absent byte commits 0 and a present byte b commits 1+b.
func Commit(raw []byte) ([]int64, error) {
	var in Input
	if err := json.Unmarshal(raw, &in); err != nil {
		return nil, err
	}
	out := Run(in)
	if out.Empty {
		return []int64{0, 0, 0}, nil
	}
	return []int64{int64(out.Len), int64(out.First) + 1, int64(out.Last) + 1}, nil
}
