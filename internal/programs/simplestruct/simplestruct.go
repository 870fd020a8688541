// Package simplestruct commits a summary of a three-field record.
package simplestruct

import (
	"encoding/json"
	"unicode/utf8"
)

type Input struct {
	Field1 uint32 `json:"field1"`
	Field2 string `json:"field2"`
	Field3 bool   `json:"field3"`
}

// Commit decodes raw and returns the commit stream: field1, byte length
// of field2, rune count of field2, field3 as 0 or 1.
func Commit(raw []byte) ([]int64, error) {
	var in Input
	if err := json.Unmarshal(raw, &in); err != nil {
		return nil, err
	}
	flag := int64(0)
	if in.Field3 {
		flag = 1
	}
	return []int64{
		int64(in.Field1),
		int64(len(in.Field2)),
		int64(utf8.RuneCountInString(in.Field2)),
		flag,
	}, nil
}
