package gfx

import "testing"

func TestMipLevels(t *testing.T) {
	cases := []struct{ w, h, want uint32 }{
		{1, 1, 1},
		{2, 2, 2},
		{256, 256, 9},
		{256, 128, 9},
		{300, 300, 9},
	}
	for _, c := range cases {
		if got := MipLevels(c.w, c.h); got != c.want {
			t.Errorf("MipLevels(%d,%d) = %d, want %d", c.w, c.h, got, c.want)
		}
	}
}

func TestAlign(t *testing.T) {
	if got := align(1, 256); got != 256 {
		t.Errorf("align(1,256) = %d, want 256", got)
	}
	if got := align(256, 256); got != 256 {
		t.Errorf("align(256,256) = %d, want 256", got)
	}
	if got := align(257, 256); got != 512 {
		t.Errorf("align(257,256) = %d, want 512", got)
	}
}
