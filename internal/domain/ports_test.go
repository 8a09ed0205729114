package domain

import (
	"math"
	"testing"
)

func TestClampPage(t *testing.T) {
	cases := []struct {
		page, size, want int
	}{
		{0, 10, 0},
		{-3, 10, 0},
		{4, 10, 4},
		{math.MaxInt, 10, math.MaxInt / 10},
		{math.MaxInt, 1, math.MaxInt},
		{7, 0, 7},
	}
	for _, c := range cases {
		if got := ClampPage(c.page, c.size); got != c.want {
			t.Errorf("ClampPage(%d, %d) = %d, want %d", c.page, c.size, got, c.want)
		}
	}
}

func TestOffsetNeverNegative(t *testing.T) {
	for _, size := range []int{1, 3, 10, 100} {
		q := SearchQuery{Page: math.MaxInt, Size: size}
		if off := q.Offset(); off < 0 {
			t.Errorf("SearchQuery size %d offset = %d", size, off)
		}
		p := PageQuery{Page: math.MaxInt - 1, Size: size}
		if off := p.Offset(); off < 0 {
			t.Errorf("PageQuery size %d offset = %d", size, off)
		}
	}
}
