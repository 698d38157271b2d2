package gri

import "testing"

func TestLevelForLength(t *testing.T) {
	cases := []struct {
		length int64
		want   int
	}{
		{0, 0},
		{1, 0},
		{16, 1},
		{17, 2},
		{256, 2},
		{257, 3},
		{1 << 40, 10},
		{1 << 62, MaxLevel},
	}
	for _, c := range cases {
		if got := LevelForLength(c.length, 0); got != c.want {
			t.Errorf("LevelForLength(%d) = %d, want %d", c.length, got, c.want)
		}
	}
}

func TestLevelForLengthFloor(t *testing.T) {
	if got := LevelForLength(1, 3); got != 3 {
		t.Errorf("LevelForLength(1, floor=3) = %d, want 3", got)
	}
	if got := LevelForLength(1<<40, 3); got != 10 {
		t.Errorf("LevelForLength(2^40, floor=3) = %d, want 10", got)
	}
}

func TestCompositeKeyOrdering(t *testing.T) {
	// Pour un même (rid, lvl), des beg croissants doivent produire des clés
	// croissantes lexicographiquement.
	k1 := compositeKey(3, storedLevel(0), 10)
	k2 := compositeKey(3, storedLevel(0), 20)
	if !(k1 < k2) {
		t.Errorf("expected k1 < k2, got k1=%q k2=%q", k1, k2)
	}

	// Des rid différents ne doivent jamais s'entremêler.
	k3 := compositeKey(4, storedLevel(0), 0)
	if !(k2 < k3) {
		t.Errorf("expected rid=3 keys to sort before rid=4 keys, got k2=%q k3=%q", k2, k3)
	}
}

func TestBucketSpan(t *testing.T) {
	if bucketSpan(0) != 1 {
		t.Errorf("bucketSpan(0) = %d, want 1", bucketSpan(0))
	}
	if bucketSpan(2) != 256 {
		t.Errorf("bucketSpan(2) = %d, want 256", bucketSpan(2))
	}
}
