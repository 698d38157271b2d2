package compress

import (
	"bytes"
	"testing"

	"github.com/Felmond13/novusdb/storage"
)

func TestCompressedFileRoundTrip(t *testing.T) {
	cf, err := OpenMemory(Options{InnerPageSize: 4096, Threads: 2})
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	defer cf.Close()

	page0 := make([]byte, 4096)
	for i := range page0 {
		page0[i] = byte(i % 251)
	}
	if _, err := cf.WriteAt(page0, 0); err != nil {
		t.Fatalf("WriteAt page 0: %v", err)
	}

	page1 := bytes.Repeat([]byte{0x42}, 4096)
	if _, err := cf.WriteAt(page1, 4096); err != nil {
		t.Fatalf("WriteAt page 1: %v", err)
	}

	got0 := make([]byte, 4096)
	if _, err := cf.ReadAt(got0, 0); err != nil {
		t.Fatalf("ReadAt page 0: %v", err)
	}
	if !bytes.Equal(got0, page0) {
		t.Errorf("page 0 round-trip mismatch")
	}

	got1 := make([]byte, 4096)
	if _, err := cf.ReadAt(got1, 4096); err != nil {
		t.Fatalf("ReadAt page 1: %v", err)
	}
	if !bytes.Equal(got1, page1) {
		t.Errorf("page 1 round-trip mismatch")
	}
}

func TestCompressedFileOverwrite(t *testing.T) {
	cf, err := OpenMemory(Options{InnerPageSize: 4096})
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	defer cf.Close()

	first := bytes.Repeat([]byte{0x01}, 4096)
	second := bytes.Repeat([]byte{0x02}, 4096)

	if _, err := cf.WriteAt(first, 0); err != nil {
		t.Fatalf("WriteAt first: %v", err)
	}
	if _, err := cf.WriteAt(second, 0); err != nil {
		t.Fatalf("WriteAt second: %v", err)
	}

	got := make([]byte, 4096)
	if _, err := cf.ReadAt(got, 0); err != nil {
		t.Fatalf("ReadAt: %v", err)
	}
	if !bytes.Equal(got, second) {
		t.Errorf("expected overwritten content, got stale data")
	}
}

func TestCompressedFileUnwrittenPageIsZero(t *testing.T) {
	cf, err := OpenMemory(Options{InnerPageSize: 4096})
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	defer cf.Close()

	buf := make([]byte, 4096)
	for i := range buf {
		buf[i] = 0xFF
	}
	if _, err := cf.ReadAt(buf, 0); err != nil {
		t.Fatalf("ReadAt never-written page: %v", err)
	}
	for i, b := range buf {
		if b != 0 {
			t.Fatalf("byte %d = %d, want 0 for never-written page", i, b)
		}
	}
}

func TestCompressedFileTruncate(t *testing.T) {
	cf, err := OpenMemory(Options{InnerPageSize: 4096})
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	defer cf.Close()

	for i := 0; i < 4; i++ {
		page := bytes.Repeat([]byte{byte(i + 1)}, 4096)
		if _, err := cf.WriteAt(page, int64(i)*4096); err != nil {
			t.Fatalf("WriteAt page %d: %v", i, err)
		}
	}

	if err := cf.Truncate(2 * 4096); err != nil {
		t.Fatalf("Truncate: %v", err)
	}
	info, err := cf.Stat()
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if info.Size() != 2*4096 {
		t.Errorf("size after truncate = %d, want %d", info.Size(), 2*4096)
	}

	// Les pages conservées restent lisibles, les pages coupées relisent zéro.
	got := make([]byte, 4096)
	if _, err := cf.ReadAt(got, 4096); err != nil {
		t.Fatalf("ReadAt kept page: %v", err)
	}
	if !bytes.Equal(got, bytes.Repeat([]byte{2}, 4096)) {
		t.Errorf("kept page content changed after truncate")
	}
	if _, err := cf.ReadAt(got, 3*4096); err != nil {
		t.Fatalf("ReadAt truncated page: %v", err)
	}
	for i, b := range got {
		if b != 0 {
			t.Fatalf("byte %d of truncated page = %d, want 0", i, b)
		}
	}

	if err := cf.Truncate(4096 + 1); err == nil {
		t.Errorf("expected error for non-page-aligned truncate size")
	}
}

func TestOpenPagerWithFileOverCompressedStore(t *testing.T) {
	cf, err := OpenMemory(Options{InnerPageSize: storage.DefaultPageSize})
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	pager, err := storage.OpenPagerWithFile(cf, storage.DefaultPageSize, false)
	if err != nil {
		t.Fatalf("OpenPagerWithFile: %v", err)
	}
	defer pager.Close()

	coll, err := pager.GetOrCreateCollection("widgets")
	if err != nil {
		t.Fatalf("GetOrCreateCollection: %v", err)
	}
	if _, _, err := pager.InsertRecordAtomic(coll, 1, []byte("hello")); err != nil {
		t.Fatalf("InsertRecordAtomic: %v", err)
	}
	page, err := pager.ReadPage(coll.FirstPageID)
	if err != nil {
		t.Fatalf("ReadPage: %v", err)
	}
	slots := page.ReadRecords()
	if len(slots) != 1 || string(slots[0].Data) != "hello" {
		t.Fatalf("unexpected slots after insert: %+v", slots)
	}
}

func TestReopenPreservesMeta(t *testing.T) {
	pager, err := storage.OpenPagerMemory()
	if err != nil {
		t.Fatalf("OpenPagerMemory: %v", err)
	}
	cf, err := newCompressedFile(pager, Options{InnerPageSize: 8192, Level: 3}.normalized())
	if err != nil {
		t.Fatalf("newCompressedFile: %v", err)
	}
	if cf.innerPageSize() != 8192 {
		t.Fatalf("innerPageSize = %d, want 8192", cf.innerPageSize())
	}

	data := bytes.Repeat([]byte{0x9}, 8192)
	if _, err := cf.WriteAt(data, 0); err != nil {
		t.Fatalf("WriteAt: %v", err)
	}

	cf2, err := newCompressedFile(pager, Options{}.normalized())
	if err != nil {
		t.Fatalf("reopen newCompressedFile: %v", err)
	}
	if cf2.innerPageSize() != 8192 {
		t.Fatalf("reopened innerPageSize = %d, want 8192 (loaded from meta)", cf2.innerPageSize())
	}
	got := make([]byte, 8192)
	if _, err := cf2.ReadAt(got, 0); err != nil {
		t.Fatalf("ReadAt after reopen: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Errorf("data mismatch after reopen")
	}
}
