package cull

import "testing"

func TestOutputBufferSize(t *testing.T) {
	const n = 100
	want := CountBufferOffset(n) + 4
	if got := OutputBufferSize(n); got != want {
		t.Errorf("OutputBufferSize(%d) = %d, want %d", n, got, want)
	}
	if got := uint64(CountBufferOffset(n)); got != uint64(n*drawCommandSize) {
		t.Errorf("CountBufferOffset(%d) = %d, want %d", n, got, n*drawCommandSize)
	}
}
