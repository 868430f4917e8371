package openai

import (
	"fmt"
	"testing"
)

func TestSplitBatches(t *testing.T) {
	numbered := func(n int) []string {
		out := make([]string, n)
		for i := range out {
			out[i] = fmt.Sprintf("input-%d", i)
		}
		return out
	}

	tests := []struct {
		name      string
		inputs    int
		size      int
		wantSizes []int
	}{
		{name: "under the cap", inputs: 3, size: 4, wantSizes: []int{3}},
		{name: "exactly the cap", inputs: 4, size: 4, wantSizes: []int{4}},
		{name: "one over", inputs: 5, size: 4, wantSizes: []int{4, 1}},
		{name: "several full batches", inputs: 12, size: 4, wantSizes: []int{4, 4, 4}},
		{name: "remainder batch", inputs: 10, size: 4, wantSizes: []int{4, 4, 2}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			inputs := numbered(tc.inputs)
			batches := splitBatches(inputs, tc.size)
			if len(batches) != len(tc.wantSizes) {
				t.Fatalf("got %d batches, want %d", len(batches), len(tc.wantSizes))
			}
			idx := 0
			for i, batch := range batches {
				if len(batch) != tc.wantSizes[i] {
					t.Errorf("batch %d has %d inputs, want %d", i, len(batch), tc.wantSizes[i])
				}
				for _, in := range batch {
					if in != inputs[idx] {
						t.Fatalf("batch %d out of order: got %q, want %q", i, in, inputs[idx])
					}
					idx++
				}
			}
			if idx != tc.inputs {
				t.Errorf("batches cover %d inputs, want %d", idx, tc.inputs)
			}
		})
	}
}
