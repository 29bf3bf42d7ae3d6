package window

import (
	"testing"

	"github.com/opensource-finance/shrike/internal/domain"
)

func TestKey(t *testing.T) {
	tests := []struct {
		name  string
		step  float64
		size  float64
		scale float64
		want  int64
	}{
		{"start of first window", 0, 24, 1, 0},
		{"inside first window", 23, 24, 1, 0},
		{"boundary opens second window", 24, 24, 1, 1},
		{"inside second window", 47, 24, 1, 1},
		{"day-scaled steps", 1, 24, 24, 1},
		{"day-scaled same day", 0.5, 24, 24, 0},
		{"hour window", 90, 1, 1, 90},
		{"fractional step floors down", 23.9, 24, 1, 0},
		{"week window", 100, 168, 1, 0},
		{"non-positive size collapses to one bucket", 500, 0, 1, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Key(tt.step, tt.size, tt.scale); got != tt.want {
				t.Errorf("Key(%v, %v, %v) = %d, want %d", tt.step, tt.size, tt.scale, got, tt.want)
			}
		})
	}
}

func TestKeyIsMonotonic(t *testing.T) {
	prev := Key(0, 24, 1)
	for step := 1.0; step <= 500; step++ {
		k := Key(step, 24, 1)
		if k < prev {
			t.Fatalf("key decreased at step %v: %d < %d", step, k, prev)
		}
		prev = k
	}
}

func TestGroupByPreservesOrder(t *testing.T) {
	txs := []domain.Transaction{
		{Index: 0, Account: "C1"},
		{Index: 1, Account: "C2"},
		{Index: 2, Account: "C1"},
		{Index: 3, Account: "C1"},
	}

	groups := GroupBy(txs, func(tx *domain.Transaction) string { return tx.Account })

	if len(groups) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(groups))
	}
	c1 := groups["C1"]
	if len(c1) != 3 {
		t.Fatalf("expected 3 transactions for C1, got %d", len(c1))
	}
	for i, want := range []int{0, 2, 3} {
		if c1[i].Index != want {
			t.Errorf("position %d: expected index %d, got %d", i, want, c1[i].Index)
		}
	}
}

func TestPartition(t *testing.T) {
	group := []domain.Transaction{
		{Index: 0, Step: 1},
		{Index: 1, Step: 10},
		{Index: 2, Step: 25},
		{Index: 3, Step: 49},
	}

	buckets := Partition(group, 24, 1)

	if len(buckets) != 3 {
		t.Fatalf("expected 3 buckets, got %d", len(buckets))
	}
	if len(buckets[0]) != 2 || buckets[0][0].Index != 0 || buckets[0][1].Index != 1 {
		t.Errorf("unexpected window 0 contents: %+v", buckets[0])
	}
	if len(buckets[1]) != 1 || buckets[1][0].Index != 2 {
		t.Errorf("unexpected window 1 contents: %+v", buckets[1])
	}
	if len(buckets[2]) != 1 || buckets[2][0].Index != 3 {
		t.Errorf("unexpected window 2 contents: %+v", buckets[2])
	}
}

func TestPartitionEmptyGroup(t *testing.T) {
	if got := Partition(nil, 24, 1); len(got) != 0 {
		t.Errorf("expected no buckets for empty group, got %d", len(got))
	}
}
