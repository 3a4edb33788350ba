package blob

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPartitionSingleBallShellBracket(t *testing.T) {
	balls := []Metaball{
		{Scale: [3]float32{1, 1, 1}, BaseRadius: 0.1, MaxRadius: 0.4},
	}
	domains := Partition(balls, 0.05)

	if len(domains) < 1 || len(domains) > 64 {
		t.Fatalf("Partition: have %d domains, want in [1, 64]", len(domains))
	}
	for _, d := range domains {
		if len(d.Members) == 0 {
			t.Errorf("Partition produced an empty-member domain")
		}
	}
}

func TestPartitionDeduplicatesDomains(t *testing.T) {
	balls := []Metaball{
		{Scale: [3]float32{1, 1, 1}, BaseRadius: 0.1, MaxRadius: 0.4},
		{Center: [3]float32{0.02, 0, 0}, Scale: [3]float32{1, 1, 1}, BaseRadius: 0.1, MaxRadius: 0.4},
	}
	domains := Partition(balls, 0.05)

	seen := map[[3]float32]bool{}
	for _, d := range domains {
		key := [3]float32{d.Bounds.Min[0], d.Bounds.Min[1], d.Bounds.Min[2]}
		if seen[key] {
			t.Fatalf("Partition produced a duplicate voxel key at %v", key)
		}
		seen[key] = true
	}
}

func TestEstimateVertexCount(t *testing.T) {
	if got := EstimateVertexCount(8); got <= 0 {
		t.Errorf("EstimateVertexCount(8) = %d, want > 0", got)
	}
}

func TestPartitionTwoFarBallsStaySeparate(t *testing.T) {
	balls := []Metaball{
		{Scale: [3]float32{1, 1, 1}, BaseRadius: 0.1, MaxRadius: 0.3},
		{Center: [3]float32{10, 0, 0}, Scale: [3]float32{1, 1, 1}, BaseRadius: 0.1, MaxRadius: 0.3},
	}
	domains := Partition(balls, 0.2)

	require.GreaterOrEqual(t, len(domains), 2, "two widely separated balls must land in at least two domains")
	seen := map[int]bool{}
	for _, d := range domains {
		require.NotEmpty(t, d.Members, "Partition produced an empty-member domain")
		for _, bi := range d.Members {
			seen[bi] = true
		}
	}
	require.Len(t, seen, len(balls), "every ball must appear in at least one domain's member list")
}
