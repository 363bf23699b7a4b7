package connector

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/steosofficial/mecabkit/mmapfile"
)

func buildMatrix(t *testing.T, lsize, rsize uint16, costs []int16) *Matrix {
	t.Helper()
	buf := make([]byte, 4+len(costs)*2)
	binary.LittleEndian.PutUint16(buf[0:2], lsize)
	binary.LittleEndian.PutUint16(buf[2:4], rsize)
	for i, c := range costs {
		binary.LittleEndian.PutUint16(buf[4+i*2:], uint16(c))
	}

	path := filepath.Join(t.TempDir(), "matrix.bin")
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		t.Fatal(err)
	}
	mt, err := mmapfile.Open(path, mmapfile.ModeRead)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { mt.Close() })

	m, err := Open(mt)
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func TestTransitionCostIndexing(t *testing.T) {
	// 2x3 matrix, row-major by left attribute.
	m := buildMatrix(t, 2, 3, []int16{
		0, 1, 2,
		3, 4, 5,
	})

	cases := []struct {
		left, right uint16
		want        int16
	}{
		{0, 0, 0},
		{0, 2, 2},
		{1, 0, 3},
		{1, 2, 5},
	}
	for _, c := range cases {
		if got := m.TransitionCost(c.left, c.right); got != c.want {
			t.Errorf("TransitionCost(%d,%d) = %d, want %d", c.left, c.right, got, c.want)
		}
	}
}

func TestCostAddsWordCost(t *testing.T) {
	m := buildMatrix(t, 1, 1, []int16{7})
	if got := m.Cost(0, 0, 5); got != 12 {
		t.Errorf("Cost = %d, want 12", got)
	}
}

func TestOutOfRangeAttrsReturnZero(t *testing.T) {
	m := buildMatrix(t, 1, 1, []int16{7})
	if got := m.TransitionCost(5, 5); got != 0 {
		t.Errorf("out-of-range TransitionCost = %d, want 0", got)
	}
}
