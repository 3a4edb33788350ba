package ssao

import "testing"

func TestCeilDiv(t *testing.T) {
	cases := []struct{ a, b, want uint32 }{
		{0, 8, 0}, {1, 8, 1}, {8, 8, 1}, {9, 8, 2}, {1920, 8, 240}, {1921, 8, 241},
	}
	for _, c := range cases {
		if got := ceilDiv(c.a, c.b); got != c.want {
			t.Errorf("ceilDiv(%d, %d) = %d, want %d", c.a, c.b, got, c.want)
		}
	}
}

func TestInverseProjectionParams(t *testing.T) {
	scale, offset := InverseProjectionParams(2, 3)
	if scale[0] != 0.5 || scale[1] != 1.0/3.0 {
		t.Errorf("InverseProjectionParams scale = %v, want {0.5, 0.333...}", scale)
	}
	if offset != [2]float32{0, 0} {
		t.Errorf("InverseProjectionParams offset = %v, want zero", offset)
	}
}
