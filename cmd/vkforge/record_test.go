package main

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/vkforge/vkforge/gfxstate"
	"github.com/vkforge/vkforge/linear"
)

func TestCopyMatrixColumnMajor(t *testing.T) {
	var m linear.M4
	var want float32
	for c := 0; c < 4; c++ {
		for r := 0; r < 4; r++ {
			want++
			m[c][r] = want
		}
	}

	dst := make([]byte, 64)
	copyMatrix(dst, &m)

	want = 0
	for c := 0; c < 4; c++ {
		for r := 0; r < 4; r++ {
			want++
			off := (c*4 + r) * 4
			got := math.Float32frombits(binary.LittleEndian.Uint32(dst[off:]))
			if got != want {
				t.Fatalf("copyMatrix[%d][%d]: have %v, want %v", c, r, got, want)
			}
		}
	}
}

func TestTransientBarrierCoversWholeBuffer(t *testing.T) {
	b := transientBarrier(0, gfxstate.ComputeShaderWriteGeneral, gfxstate.DrawIndirectRead)
	if b.Offset != 0 {
		t.Fatalf("transientBarrier must cover the whole buffer: have Offset=%d, want 0", b.Offset)
	}
	if b.SrcStageMask != gfxstate.ComputeShaderWriteGeneral.Stage || b.DstStageMask != gfxstate.DrawIndirectRead.Stage {
		t.Fatalf("transientBarrier must carry the given src/dst stage masks through unchanged")
	}
}
