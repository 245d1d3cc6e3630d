package natsort

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCompare(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"item2", "item10", -1},
		{"item10", "item2", 1},
		{"Item2", "item2", -1},
		{"abc", "ABC", 1},
		{"same", "same", 0},
		{"a", "ab", -1},
		{"file007", "file7", 1},
		{"file7", "file007", -1},
		{"x99999999999999999999999", "x100000000000000000000000", -1},
		{"10", "9", 1},
		{"", "a", -1},
		{"Zebra", "apple", 1},
		{"chapter 1 part 10", "chapter 1 part 9", 1},
	}
	for _, tt := range tests {
		t.Run(tt.a+"_vs_"+tt.b, func(t *testing.T) {
			assert.Equal(t, tt.want, Compare(tt.a, tt.b))
			assert.Equal(t, -tt.want, Compare(tt.b, tt.a), "must be antisymmetric")
		})
	}
}

func TestSortIsDeterministic(t *testing.T) {
	in := []string{"/media/Item10", "/media/item2", "/media/item1", "/media/Item2", "/media/b", "/media/A"}
	want := []string{"/media/A", "/media/b", "/media/item1", "/media/Item2", "/media/item2", "/media/Item10"}

	for i := 0; i < 3; i++ {
		got := append([]string(nil), in...)
		sort.SliceStable(got, func(i, j int) bool { return Less(got[i], got[j]) })
		assert.Equal(t, want, got)
	}
}
