package frame

import (
	"testing"

	"github.com/vkforge/vkforge/gfx"
)

func TestRingSizeMatchesMaxFramesInFlight(t *testing.T) {
	var l Loop
	if len(l.ring) != gfx.MaxFramesInFlight {
		t.Fatalf("ring has %d slots, want %d", len(l.ring), gfx.MaxFramesInFlight)
	}
}

func TestRingIndexWrapsModuloMaxFramesInFlight(t *testing.T) {
	l := &Loop{}
	for i := 0; i < gfx.MaxFramesInFlight*3; i++ {
		l.ringIndex = (l.ringIndex + 1) % gfx.MaxFramesInFlight
		if l.ringIndex < 0 || l.ringIndex >= gfx.MaxFramesInFlight {
			t.Fatalf("ringIndex out of range: %d", l.ringIndex)
		}
	}
}
