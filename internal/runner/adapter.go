package runner

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"
)

// ServeAdapter implements the adapter side of the Exec protocol: it runs
// program on the input file with r and writes the result document to w.
// A precondition failure is returned as an error and nothing is written.
func ServeAdapter(ctx context.Context, r Runner, program, inputPath string, timeout time.Duration, w io.Writer) error {
	input, err := os.ReadFile(inputPath)
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}
	res, err := r.Execute(ctx, program, input, timeout)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return enc.Encode(res)
}
