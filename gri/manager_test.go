package gri

import (
	"testing"

	"github.com/Felmond13/novusdb/storage"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	pager, err := storage.OpenPagerMemory()
	if err != nil {
		t.Fatalf("OpenPagerMemory: %v", err)
	}
	t.Cleanup(func() { pager.Close() })
	m, err := Create(pager, "features", 0)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return m
}

// TestOverlapPointQuery : trois features semi-ouvertes (rid=3, [0,23)),
// (rid=3, [12,34)), (rid=3, [34,56)). Une requête ponctuelle à 34 doit
// retourner les 2e et 3e lignes seulement — la 1re finit à 23 et ne touche
// pas la requête, la 2e finit exactement à 34 et la 3e y commence.
func TestOverlapPointQuery(t *testing.T) {
	m := newTestManager(t)

	id1, err := m.Insert(Feature{RID: 3, Beg: 0, Len: 23})
	if err != nil {
		t.Fatalf("insert 1: %v", err)
	}
	id2, err := m.Insert(Feature{RID: 3, Beg: 12, Len: 22})
	if err != nil {
		t.Fatalf("insert 2: %v", err)
	}
	id3, err := m.Insert(Feature{RID: 3, Beg: 34, Len: 22})
	if err != nil {
		t.Fatalf("insert 3: %v", err)
	}

	rowIDs, err := m.OverlappingRowIDs(3, 34, 34)
	if err != nil {
		t.Fatalf("OverlappingRowIDs: %v", err)
	}
	got := map[uint64]bool{}
	for _, id := range rowIDs {
		got[id] = true
	}
	if got[id1] {
		t.Errorf("feature 1 ([0,23)) ends before 34 and should not match a zero-width query at 34")
	}
	if !got[id2] {
		t.Errorf("feature 2 ([12,34)) should overlap a point query exactly at its end boundary")
	}
	if !got[id3] {
		t.Errorf("feature 3 ([34,56)) should match query at beg=34")
	}
}

func TestOverlapRangeQuery(t *testing.T) {
	m := newTestManager(t)
	a, _ := m.Insert(Feature{RID: 1, Beg: 100, Len: 50})  // [100,150)
	b, _ := m.Insert(Feature{RID: 1, Beg: 200, Len: 10})  // [200,210)
	_, _ = m.Insert(Feature{RID: 2, Beg: 100, Len: 50})   // autre rid
	_, _ = m.Insert(Feature{RID: 1, Beg: 500, Len: 1000}) // loin de la requête

	rowIDs, err := m.OverlappingRowIDs(1, 120, 205)
	if err != nil {
		t.Fatalf("OverlappingRowIDs: %v", err)
	}
	got := map[uint64]bool{}
	for _, id := range rowIDs {
		got[id] = true
	}
	if !got[a] || !got[b] {
		t.Errorf("expected both overlapping features in range, got %v", rowIDs)
	}
	if len(rowIDs) != 2 {
		t.Errorf("expected exactly 2 rows, got %d", len(rowIDs))
	}
}

// TestLevelsAfterMutation : insérer des longueurs {5, 120, 2000}, vérifier
// les bornes de niveaux, supprimer la plus grande, revérifier — le cache de
// bornes doit être invalidé par la suppression et recalculé.
func TestLevelsAfterMutation(t *testing.T) {
	m := newTestManager(t)
	m.Insert(Feature{RID: 9, Beg: 0, Len: 5})
	m.Insert(Feature{RID: 9, Beg: 100, Len: 120})
	big, _ := m.Insert(Feature{RID: 9, Beg: 1000, Len: 2000})

	lv, err := m.Levels()
	if err != nil {
		t.Fatalf("Levels: %v", err)
	}
	if lv.Empty {
		t.Fatalf("expected non-empty levels")
	}
	wantCeiling := LevelForLength(2000, 0)
	wantFloor := LevelForLength(5, 0)
	if lv.Ceiling != wantCeiling || lv.Floor != wantFloor {
		t.Errorf("got ceiling=%d floor=%d, want ceiling=%d floor=%d", lv.Ceiling, lv.Floor, wantCeiling, wantFloor)
	}

	if err := m.Remove(Feature{RowID: big, RID: 9, Beg: 1000, Len: 2000}); err != nil {
		t.Fatalf("Remove: %v", err)
	}

	lv2, err := m.Levels()
	if err != nil {
		t.Fatalf("Levels after delete: %v", err)
	}
	if lv2.Ceiling != LevelForLength(120, 0) {
		t.Errorf("after delete, got ceiling=%d, want %d", lv2.Ceiling, LevelForLength(120, 0))
	}
}

// TestRemoveExcludesFromOverlap : une feature supprimée ne doit plus
// apparaître dans les résultats d'overlap ni dans la collection.
func TestRemoveExcludesFromOverlap(t *testing.T) {
	m := newTestManager(t)
	keep, err := m.Insert(Feature{RID: 4, Beg: 10, Len: 20})
	if err != nil {
		t.Fatalf("insert keep: %v", err)
	}
	gone, err := m.Insert(Feature{RID: 4, Beg: 15, Len: 20})
	if err != nil {
		t.Fatalf("insert gone: %v", err)
	}

	if err := m.Remove(Feature{RowID: gone, RID: 4, Beg: 15, Len: 20}); err != nil {
		t.Fatalf("Remove: %v", err)
	}

	rowIDs, err := m.OverlappingRowIDs(4, 0, 100)
	if err != nil {
		t.Fatalf("OverlappingRowIDs: %v", err)
	}
	if len(rowIDs) != 1 || rowIDs[0] != keep {
		t.Errorf("after remove, got %v, want [%d]", rowIDs, keep)
	}
}

func TestOverlappingRowIDsAscending(t *testing.T) {
	m := newTestManager(t)
	// Insérés dans un ordre de beg décroissant pour que l'ordre des row ids
	// diffère de l'ordre de scan de l'index.
	var ids []uint64
	for _, beg := range []int64{900, 500, 100} {
		id, err := m.Insert(Feature{RID: 7, Beg: beg, Len: 50})
		if err != nil {
			t.Fatalf("insert beg=%d: %v", beg, err)
		}
		ids = append(ids, id)
	}
	rowIDs, err := m.OverlappingRowIDs(7, 0, 1000)
	if err != nil {
		t.Fatalf("OverlappingRowIDs: %v", err)
	}
	if len(rowIDs) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rowIDs))
	}
	for i := 1; i < len(rowIDs); i++ {
		if rowIDs[i-1] >= rowIDs[i] {
			t.Errorf("row ids not ascending: %v", rowIDs)
		}
	}
}

func TestOverlapEmptyTable(t *testing.T) {
	m := newTestManager(t)
	rowIDs, err := m.OverlappingRowIDs(1, 0, 100)
	if err != nil {
		t.Fatalf("OverlappingRowIDs: %v", err)
	}
	if len(rowIDs) != 0 {
		t.Errorf("expected no rows on empty table, got %v", rowIDs)
	}
	lv, err := m.Levels()
	if err != nil {
		t.Fatalf("Levels: %v", err)
	}
	if !lv.Empty {
		t.Errorf("expected Empty=true on an untouched index")
	}
}
