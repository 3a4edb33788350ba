package shadow

import "testing"

func TestSplitMonotonic(t *testing.T) {
	splits := Split(0.1, 500, 0.75, 5)
	if len(splits) != 6 {
		t.Fatalf("Split: have %d entries, want 6", len(splits))
	}
	if splits[0] != 0.1 {
		t.Errorf("Split[0] = %v, want 0.1", splits[0])
	}
	for i := 1; i < len(splits); i++ {
		if splits[i] <= splits[i-1] {
			t.Errorf("Split must be strictly increasing: splits[%d]=%v <= splits[%d]=%v", i, splits[i], i-1, splits[i-1])
		}
	}
	if splits[len(splits)-1] != 500 {
		t.Errorf("final split = %v, want far=500", splits[len(splits)-1])
	}
}

func TestSplitLambdaExtremes(t *testing.T) {
	log := Split(1, 100, 1, 4)
	uniform := Split(1, 100, 0, 4)
	if log[1] >= uniform[1] {
		t.Errorf("logarithmic split should place the first boundary closer than uniform: log=%v uniform=%v", log[1], uniform[1])
	}
}
