package trace

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// VerifyResult is the outcome of verifying a trace file.
type VerifyResult struct {
	EventCount int
	Runs       int
	Valid      bool
	BrokenAt   int // -1 if no break
	Error      string
}

// VerifyFile verifies the hash chain of a trace file.
func VerifyFile(path string) (*VerifyResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open trace file: %w", err)
	}
	defer f.Close()
	return Verify(f)
}

// Verify checks that every event links to the hash of the line before it
// and that terminal events carry the matching chain_hash.
func Verify(r io.Reader) (*VerifyResult, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)

	expected := Genesis
	count, runs := 0, 0
	broken := func(format string, args ...any) *VerifyResult {
		return &VerifyResult{
			EventCount: count,
			Runs:       runs,
			BrokenAt:   count,
			Error:      fmt.Sprintf("event %d: ", count) + fmt.Sprintf(format, args...),
		}
	}

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		count++

		var evt Event
		if err := json.Unmarshal(line, &evt); err != nil {
			return broken("invalid JSON: %v", err), nil
		}
		if evt.PrevHash != expected {
			return broken("prev_hash mismatch (expected %.16s..., got %.16s...)", expected, evt.PrevHash), nil
		}
		if evt.Type == EventRunStart {
			runs++
		}
		if evt.Type == EventRunComplete || evt.Type == EventRunAborted {
			if chain, _ := evt.Data["chain_hash"].(string); chain != expected {
				return broken("chain_hash mismatch"), nil
			}
		}
		expected = hashLine(line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read trace: %w", err)
	}

	return &VerifyResult{EventCount: count, Runs: runs, Valid: true, BrokenAt: -1}, nil
}
