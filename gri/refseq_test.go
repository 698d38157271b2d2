package gri

import (
	"errors"
	"testing"

	"github.com/Felmond13/novusdb/storage"
)

func newTestRefseqTable(t *testing.T) *RefseqTable {
	t.Helper()
	pager, err := storage.OpenPagerMemory()
	if err != nil {
		t.Fatalf("OpenPagerMemory: %v", err)
	}
	t.Cleanup(func() { pager.Close() })
	tbl, err := OpenRefseqTable(pager)
	if err != nil {
		t.Fatalf("OpenRefseqTable: %v", err)
	}
	return tbl
}

func TestPutRefseqRejectsDuplicateAssemblyName(t *testing.T) {
	tbl := newTestRefseqTable(t)
	if _, err := tbl.PutRefseq(Refseq{Name: "chr1", Assembly: "GRCh38", Length: 248956422}); err != nil {
		t.Fatalf("first PutRefseq: %v", err)
	}
	_, err := tbl.PutRefseq(Refseq{Name: "chr1", Assembly: "GRCh38", Length: 248956422})
	if !errors.Is(err, ErrDuplicateRefseq) {
		t.Errorf("expected ErrDuplicateRefseq for repeated (assembly, name), got %v", err)
	}

	// Le même nom sous un autre assembly n'est pas un conflit.
	if _, err := tbl.PutRefseq(Refseq{Name: "chr1", Assembly: "GRCh37", Length: 249250621}); err != nil {
		t.Errorf("expected distinct assembly to succeed, got %v", err)
	}
}

func TestPutRefseqRejectsDuplicateRefgetID(t *testing.T) {
	tbl := newTestRefseqTable(t)
	if _, err := tbl.PutRefseq(Refseq{Name: "chr1", Assembly: "GRCh38", RefgetID: "abc123"}); err != nil {
		t.Fatalf("first PutRefseq: %v", err)
	}
	_, err := tbl.PutRefseq(Refseq{Name: "chr2", Assembly: "GRCh38", RefgetID: "abc123"})
	if !errors.Is(err, ErrDuplicateRefseq) {
		t.Errorf("expected ErrDuplicateRefseq for repeated refget_id, got %v", err)
	}
}

func TestPutAssemblyThenLookup(t *testing.T) {
	tbl := newTestRefseqTable(t)
	n, err := tbl.PutAssembly("GRCh38", []AssemblyRecord{{Name: "chr1", Length: 248956422}, {Name: "chrM", Length: 16569}})
	if err != nil {
		t.Fatalf("PutAssembly: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 rows inserted, got %d", n)
	}
	row, ok, err := tbl.Lookup("chrM")
	if err != nil || !ok {
		t.Fatalf("Lookup(chrM): ok=%v err=%v", ok, err)
	}
	if row.Length != 16569 || row.Assembly != "GRCh38" {
		t.Errorf("unexpected row: %+v", row)
	}
}
