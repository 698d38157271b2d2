package compress

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/Felmond13/novusdb/index"
	"github.com/Felmond13/novusdb/storage"
)

const (
	pagesCollection = "pages"
	metaCollection  = "meta"
	metaRecordID    = uint64(1)

	// prefetchWindow est le nombre de lectures de pages consécutives qui
	// marquent un handle comme "scanning" avant de planifier des read-aheads.
	prefetchWindow = 3
	// prefetchAhead est le nombre de pages décompressées spéculativement une
	// fois le scan détecté.
	prefetchAhead = 4
	// noPrefetchBelow désactive le prefetch pour les petites pages internes :
	// en dessous, le surcoût dépasse le bénéfice.
	noPrefetchBelow = 16 * 1024
)

// CompressedFile implémente storage.StorageFile en compressant des pages
// internes entières en records de longueur variable d'une base novusdb
// externe. Un storage.Pager interne ouvert sur une CompressedFile (via
// storage.OpenPagerWithFile) reçoit le Compressed Page Store de façon
// transparente : chaque ReadAt/WriteAt qu'il émet est déjà aligné sur une
// page et long d'exactement une page, ce sur quoi ce type s'appuie.
type CompressedFile struct {
	outer    *storage.Pager
	pagesIdx *index.Index
	enc      *zstd.Encoder
	dec      *zstd.Decoder
	pool     *workerPool
	cache    *hotPageCache

	mu            sync.Mutex
	meta          cpsMeta
	metaPageID    uint32
	metaSlotOff   uint16
	readOnly      bool
	closed        bool
	lastPageCount uint32

	// batchActive et dirty forment le dirty page set collecté pendant une
	// transaction d'écriture interne en cours : tant qu'un batch est actif,
	// WriteAt met les pages compressées en attente ici au lieu de les
	// appliquer aux collections pages/meta externes, pour que CommitBatch
	// applique le lot entier et le rende durable derrière un seul
	// FlushMeta+CommitWAL. L'atomicité de la transaction externe est le seul
	// mécanisme qui fournit l'ACID de la base interne, elle doit donc couvrir
	// une transaction interne complète, pas une page à la fois.
	batchActive bool
	dirty       map[uint32][]byte

	scanMu     sync.Mutex
	scanWindow []uint32
	prefetch   bool
}

// Options configure un Compressed Page Store créé ou rouvert.
type Options struct {
	InnerPageSize int    // Pi ; défaut storage.DefaultPageSize
	Level         int    // niveau de compression zstd ; 0 = zstd.SpeedDefault
	Threads       int    // taille du worker pool ; <= 0 = 1
	NoPrefetch    bool   // désactive le read-ahead des scans séquentiels
	ReadOnly      bool
	SessionUUID   string // renseigne cpsMeta.SessionUUID à l'ouverture, si non vide

	// OuterPageSize dimensionne le pager de la base externe (outer_page_KiB) ;
	// défaut storage.DefaultPageSize, indépendant de InnerPageSize.
	OuterPageSize int
	// CacheCapacity borne le nombre de pages du hot-page cache
	// (page_cache_MiB, converti par l'appelant) ; défaut 256 pages.
	CacheCapacity int
}

// zstdLevel projette le petit réglage public Options.Level (0-4) sur les
// paliers nommés de klauspost/compress/zstd plutôt que d'exposer l'échelle
// numérique propre de la bibliothèque.
func zstdLevel(level int) zstd.EncoderLevel {
	switch {
	case level <= 0:
		return zstd.SpeedDefault
	case level == 1:
		return zstd.SpeedFastest
	case level == 2:
		return zstd.SpeedDefault
	case level == 3:
		return zstd.SpeedBetterCompression
	default:
		return zstd.SpeedBestCompression
	}
}

func (o Options) normalized() Options {
	if o.InnerPageSize <= 0 {
		o.InnerPageSize = storage.DefaultPageSize
	}
	if o.Threads <= 0 {
		o.Threads = 1
	}
	if o.OuterPageSize <= 0 {
		o.OuterPageSize = storage.DefaultPageSize
	}
	if o.CacheCapacity <= 0 {
		o.CacheCapacity = 256
	}
	return o
}

// Open crée ou rouvre un Compressed Page Store adossé au fichier de base
// externe outerPath. La CompressedFile retournée est une storage.StorageFile
// utilisable avec storage.OpenPagerWithFile.
func Open(outerPath string, opts Options) (*CompressedFile, error) {
	opts = opts.normalized()
	var outer *storage.Pager
	var err error
	if opts.ReadOnly {
		outer, err = storage.OpenPagerReadOnlyWithSize(outerPath, opts.OuterPageSize)
	} else {
		outer, err = storage.OpenPagerWithSize(outerPath, opts.OuterPageSize)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: opening outer database: %v", ErrIoError, err)
	}
	return newCompressedFile(outer, opts)
}

// OpenMemory crée un Compressed Page Store en mémoire (pas de fichier
// externe, pas de WAL externe), utile pour les tests et le playground WASM.
func OpenMemory(opts Options) (*CompressedFile, error) {
	opts = opts.normalized()
	outer, err := storage.OpenPagerMemoryWithSize(opts.OuterPageSize)
	if err != nil {
		return nil, fmt.Errorf("%w: opening outer database: %v", ErrIoError, err)
	}
	return newCompressedFile(outer, opts)
}

func newCompressedFile(outer *storage.Pager, opts Options) (*CompressedFile, error) {
	level := zstdLevel(opts.Level)
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(level))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInternal, err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInternal, err)
	}

	cf := &CompressedFile{
		outer:    outer,
		enc:      enc,
		dec:      dec,
		pool:     newWorkerPool(opts.Threads),
		cache:    newHotPageCache(opts.CacheCapacity),
		readOnly: opts.ReadOnly,
		prefetch: !opts.NoPrefetch && opts.InnerPageSize >= noPrefetchBelow && opts.Threads > 1,
	}

	metaColl, err := outer.GetOrCreateCollection(metaCollection)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIoError, err)
	}
	if _, err := outer.GetOrCreateCollection(pagesCollection); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIoError, err)
	}

	existing := findMetaRecord(outer, metaColl)
	if existing != nil {
		m, err := decodeMeta(existing.Data)
		if err != nil {
			return nil, fmt.Errorf("%w: meta record: %v", ErrCorruptPage, err)
		}
		if m.FormatVersion != formatVersion {
			return nil, fmt.Errorf("%w: unsupported CPS format version %d", ErrCorruptPage, m.FormatVersion)
		}
		cf.meta = m
		cf.lastPageCount = m.LastPageCount
		cf.metaPageID = existing.PageID
		cf.metaSlotOff = existing.SlotOff
		cf.pagesIdx = index.OpenIndex(pagesCollection, "pageid", outer, m.PagesIndexRoot)
		if opts.SessionUUID != "" && !opts.ReadOnly {
			cf.meta.SessionUUID = opts.SessionUUID
			if err := cf.flushMetaLocked(); err != nil {
				return nil, err
			}
		}
		return cf, nil
	}

	if opts.ReadOnly {
		return nil, fmt.Errorf("%w: cannot initialize a new CPS in read-only mode", ErrIoError)
	}

	pagesIdx, err := index.NewIndex(pagesCollection, "pageid", outer)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIoError, err)
	}
	cf.pagesIdx = pagesIdx
	cf.meta = cpsMeta{
		InnerPageSize:  opts.InnerPageSize,
		Level:          opts.Level,
		FormatVersion:  formatVersion,
		LastPageCount:  0,
		PagesIndexRoot: pagesIdx.RootPageID(),
		SessionUUID:    opts.SessionUUID,
	}
	if err := cf.flushMetaLocked(); err != nil {
		return nil, err
	}
	return cf, nil
}

type metaRecordRef struct {
	Data    []byte
	PageID  uint32
	SlotOff uint16
}

// findMetaRecord scanne l'unique record de la collection "meta" externe (il
// n'y en a jamais qu'un : recordID 1). Un scan complet suffit, la collection
// garde un seul record pour toute la vie du CPS.
func findMetaRecord(outer *storage.Pager, coll *storage.CollectionMeta) *metaRecordRef {
	pageID := coll.FirstPageID
	for pageID != 0 {
		page, err := outer.ReadPage(pageID)
		if err != nil {
			return nil
		}
		for _, slot := range page.ReadRecords() {
			if slot.Deleted || slot.RecordID != metaRecordID {
				continue
			}
			return &metaRecordRef{Data: slot.Data, PageID: pageID, SlotOff: slot.Offset}
		}
		pageID = page.NextPageID()
	}
	return nil
}

func (cf *CompressedFile) flushMetaLocked() error {
	data, err := encodeMeta(cf.meta)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInternal, err)
	}
	coll := cf.outer.GetCollection(metaCollection)
	if coll == nil {
		return fmt.Errorf("%w: meta collection missing", ErrInternal)
	}
	if cf.metaPageID == 0 {
		pid, soff, err := cf.outer.InsertRecordAtomic(coll, metaRecordID, data)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrIoError, err)
		}
		cf.metaPageID, cf.metaSlotOff = pid, soff
		return nil
	}
	pid, soff, err := cf.outer.UpdateRecordAtomic(coll, cf.metaPageID, cf.metaSlotOff, metaRecordID, data)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrIoError, err)
	}
	cf.metaPageID, cf.metaSlotOff = pid, soff
	return nil
}

// innerPageSize retourne la taille fixe des pages internes compressées par ce store.
func (cf *CompressedFile) innerPageSize() int {
	return cf.meta.InnerPageSize
}

// ReadAt implémente storage.StorageFile. Le Pager de novusdb n'émet que des
// lectures d'exactement une page, à un offset aligné sur une page (voir
// readPageUnlocked dans storage/pager.go), donc O/Pi est toujours un id de
// page interne exact.
func (cf *CompressedFile) ReadAt(b []byte, off int64) (int, error) {
	pageSize := cf.innerPageSize()
	if pageSize == 0 {
		return 0, fmt.Errorf("%w: read before CPS initialized", ErrInternal)
	}
	innerPageID := uint32(off/int64(pageSize)) + 1
	data, err := cf.readInnerPage(innerPageID)
	if err != nil {
		return 0, err
	}
	if len(data) != len(b) {
		return 0, fmt.Errorf("%w: expected %d bytes, decompressed %d", ErrCorruptPage, len(b), len(data))
	}
	n := copy(b, data)
	cf.noteSequentialRead(innerPageID)
	return n, nil
}

func (cf *CompressedFile) readInnerPage(innerPageID uint32) ([]byte, error) {
	if data, ok := cf.cache.acquire(innerPageID); ok {
		defer cf.cache.release(innerPageID)
		return data, nil
	}

	cf.mu.Lock()
	if compressed, ok := cf.dirty[innerPageID]; ok {
		cf.mu.Unlock()
		// En attente mais pas encore appliquée au store externe (batch
		// actif) : le dirty set fait autorité autant que le cache pour une
		// page que le hot-page cache a depuis évincée.
		out, err := cf.dec.DecodeAll(compressed, make([]byte, 0, cf.innerPageSize()))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorruptPage, err)
		}
		return out, nil
	}
	if innerPageID > cf.lastPageCount {
		cf.mu.Unlock()
		// Page jamais écrite : une page zéro fraîche (la convention du
		// pager interne pour les pages au-delà de la fin de fichier).
		return make([]byte, cf.innerPageSize()), nil
	}
	cf.mu.Unlock()

	loc, err := cf.lookupPageLoc(innerPageID)
	if err != nil {
		return nil, err
	}
	if loc == nil {
		return make([]byte, cf.innerPageSize()), nil
	}

	page, err := cf.outer.ReadPage(loc.PageID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIoError, err)
	}
	slot, ok := page.ReadRecordAt(loc.SlotOff)
	if !ok {
		return nil, fmt.Errorf("%w: dangling pages-index entry for inner page %d", ErrCorruptPage, innerPageID)
	}
	out, err := cf.dec.DecodeAll(slot.Data, make([]byte, 0, cf.innerPageSize()))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptPage, err)
	}
	if len(out) != cf.innerPageSize() {
		return nil, fmt.Errorf("%w: inner page %d decompressed to %d bytes, want %d",
			ErrCorruptPage, innerPageID, len(out), cf.innerPageSize())
	}
	cf.cache.put(innerPageID, out)
	return out, nil
}

func (cf *CompressedFile) lookupPageLoc(innerPageID uint32) (*index.RecordLoc, error) {
	locs, err := cf.pagesIdx.Lookup(pageKey(innerPageID))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIoError, err)
	}
	if len(locs) == 0 {
		return nil, nil
	}
	return &locs[len(locs)-1], nil
}

func pageKey(innerPageID uint32) string {
	return index.ValueToKey(int64(innerPageID))
}

// WriteAt implémente storage.StorageFile. Les écritures font toujours une
// page interne complète, alignée (voir writePageUnlocked dans
// storage/pager.go). La page est compressée de façon synchrone via le worker
// pool, puis soit mise en attente dans le dirty page set (fenêtre
// BeginBatch/CommitBatch, c.-à-d. transaction interne en cours), soit
// appliquée et commitée immédiatement à la base externe (pas de batch
// actif : cette écriture est sa propre transaction externe autocommit, le
// chemin qu'empruntent les appelants sans transaction interne, comme
// gri.Manager).
func (cf *CompressedFile) WriteAt(b []byte, off int64) (int, error) {
	if cf.readOnly {
		return 0, storage.ErrReadOnly
	}
	pageSize := cf.innerPageSize()
	if pageSize == 0 {
		return 0, fmt.Errorf("%w: write before CPS initialized", ErrInternal)
	}
	if len(b) != pageSize {
		return 0, fmt.Errorf("%w: partial inner page write of %d bytes (page size %d)", ErrInternal, len(b), pageSize)
	}
	innerPageID := uint32(off/int64(pageSize)) + 1

	result := <-cf.pool.submit(innerPageID, b, func(in []byte) ([]byte, error) {
		return cf.enc.EncodeAll(in, make([]byte, 0, len(in)/2)), nil
	})
	if result.err != nil {
		return 0, fmt.Errorf("%w: %v", ErrIoError, result.err)
	}

	cf.mu.Lock()
	if cf.batchActive {
		cf.dirty[innerPageID] = result.output
		cf.mu.Unlock()
	} else {
		cf.mu.Unlock()
		if err := cf.commitCompressedPage(innerPageID, result.output); err != nil {
			return 0, err
		}
	}
	cf.cache.invalidate(innerPageID)
	cf.cache.put(innerPageID, b)
	return len(b), nil
}

// applyCompressedPage écrit une page interne compressée dans la
// collection/l'index pages externes et met à jour la comptabilité meta si
// elle étend le fichier. Ne flushe pas meta et ne commite pas le WAL
// externe ; l'appelant décide quand le résultat devient durable :
// immédiatement pour une écriture autocommit, ou une fois pour tout un lot
// de pages dans CommitBatch. cf.mu doit déjà être tenu.
func (cf *CompressedFile) applyCompressedPage(innerPageID uint32, compressed []byte) error {
	coll := cf.outer.GetCollection(pagesCollection)
	if coll == nil {
		return fmt.Errorf("%w: pages collection missing", ErrInternal)
	}

	loc, err := cf.lookupPageLoc(innerPageID)
	if err != nil {
		return err
	}
	recordID := uint64(innerPageID)
	if loc != nil {
		if _, _, err := cf.outer.UpdateRecordAtomic(coll, loc.PageID, loc.SlotOff, recordID, compressed); err != nil {
			return fmt.Errorf("%w: %v", ErrIoError, err)
		}
	} else {
		pid, soff, err := cf.outer.InsertRecordAtomic(coll, recordID, compressed)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrIoError, err)
		}
		if err := cf.pagesIdx.Add(pageKey(innerPageID), recordID, pid, soff); err != nil {
			return fmt.Errorf("%w: %v", ErrIoError, err)
		}
	}

	if innerPageID > cf.lastPageCount {
		cf.lastPageCount = innerPageID
		cf.meta.LastPageCount = innerPageID
		cf.meta.PagesIndexRoot = cf.pagesIdx.RootPageID()
		if err := cf.flushMetaLocked(); err != nil {
			return err
		}
	}
	return nil
}

// commitCompressedPage applique une page et la rend durable seule : le
// chemin autocommit d'un WriteAt émis hors de toute fenêtre BeginBatch.
func (cf *CompressedFile) commitCompressedPage(innerPageID uint32, compressed []byte) error {
	cf.mu.Lock()
	defer cf.mu.Unlock()

	if err := cf.applyCompressedPage(innerPageID, compressed); err != nil {
		return err
	}
	if err := cf.outer.FlushMeta(); err != nil {
		return fmt.Errorf("%w: %v", ErrIoError, err)
	}
	return cf.outer.CommitWAL()
}

// BeginBatch implémente storage.TransactionalStorageFile. D'ici à
// CommitBatch ou DiscardBatch, WriteAt met les pages compressées en attente
// dans le dirty set au lieu de toucher la base externe.
func (cf *CompressedFile) BeginBatch() error {
	cf.mu.Lock()
	defer cf.mu.Unlock()
	if cf.batchActive {
		return fmt.Errorf("%w: batch already active", ErrInternal)
	}
	cf.batchActive = true
	cf.dirty = make(map[uint32][]byte)
	return nil
}

// CommitBatch applique chaque page en attente depuis BeginBatch à la
// collection/l'index pages externes et rend le lot entier durable derrière
// un seul FlushMeta+CommitWAL : l'unique frontière de transaction externe
// qui porte toute la transaction interne, si bien qu'aucun sous-ensemble
// partiel de ses pages n'est jamais visible après un crash.
func (cf *CompressedFile) CommitBatch() error {
	cf.mu.Lock()
	defer cf.mu.Unlock()
	if !cf.batchActive {
		return fmt.Errorf("%w: no active batch", ErrInternal)
	}
	for innerPageID, compressed := range cf.dirty {
		if err := cf.applyCompressedPage(innerPageID, compressed); err != nil {
			cf.batchActive = false
			cf.dirty = nil
			return err
		}
	}
	cf.batchActive = false
	cf.dirty = nil
	if err := cf.outer.FlushMeta(); err != nil {
		return fmt.Errorf("%w: %v", ErrIoError, err)
	}
	return cf.outer.CommitWAL()
}

// DiscardBatch abandonne chaque page en attente depuis BeginBatch. Aucune
// n'a été appliquée au store externe, il n'y a donc rien à y défaire ; les
// entrées du hot-page cache écrites de façon optimiste par WriteAt sont
// invalidées pour qu'une lecture ultérieure retombe sur ce qui est encore
// durablement stocké (ou une page zéro, pour une page que cette transaction
// introduisait au-delà de l'ancienne fin de fichier).
func (cf *CompressedFile) DiscardBatch() error {
	cf.mu.Lock()
	defer cf.mu.Unlock()
	if !cf.batchActive {
		return nil
	}
	for innerPageID := range cf.dirty {
		cf.cache.invalidate(innerPageID)
	}
	cf.batchActive = false
	cf.dirty = nil
	return nil
}

// noteSequentialRead suit la fenêtre de lectures récentes et planifie la
// décompression en read-ahead dès qu'un scan contigu monotone est détecté.
func (cf *CompressedFile) noteSequentialRead(pageID uint32) {
	if !cf.prefetch {
		return
	}
	cf.scanMu.Lock()
	cf.scanWindow = append(cf.scanWindow, pageID)
	if len(cf.scanWindow) > prefetchWindow {
		cf.scanWindow = cf.scanWindow[len(cf.scanWindow)-prefetchWindow:]
	}
	scanning := isSequential(cf.scanWindow)
	cf.scanMu.Unlock()
	if !scanning {
		return
	}
	for k := uint32(1); k <= prefetchAhead; k++ {
		next := pageID + k
		go func(id uint32) {
			cf.mu.Lock()
			closed := cf.closed
			cf.mu.Unlock()
			if closed {
				return
			}
			if _, ok := cf.cache.acquire(id); ok {
				cf.cache.release(id)
				return
			}
			data, err := cf.readInnerPage(id)
			if err == nil {
				cf.cache.put(id, data)
			}
		}(next)
	}
}

func isSequential(window []uint32) bool {
	if len(window) < prefetchWindow {
		return false
	}
	for i := 1; i < len(window); i++ {
		if window[i] != window[i-1]+1 {
			return false
		}
	}
	return true
}

// Truncate ramène la taille logique du fichier interne à size octets : les
// records compressés des pages internes au-delà de la nouvelle fin sont
// marqués supprimés, leurs entrées d'index retirées et leurs slots de cache
// invalidés, puis meta est réécrit et l'ensemble commité en une fois. size
// doit être un multiple de la taille de page interne.
func (cf *CompressedFile) Truncate(size int64) error {
	if cf.readOnly {
		return storage.ErrReadOnly
	}
	pageSize := int64(cf.innerPageSize())
	if pageSize == 0 {
		return fmt.Errorf("%w: truncate before CPS initialized", ErrInternal)
	}
	if size < 0 || size%pageSize != 0 {
		return fmt.Errorf("%w: truncate to %d bytes not page-aligned (page size %d)", ErrInternal, size, pageSize)
	}
	newCount := uint32(size / pageSize)

	cf.mu.Lock()
	defer cf.mu.Unlock()
	if cf.batchActive {
		return fmt.Errorf("%w: truncate during an active batch", ErrInternal)
	}
	if newCount >= cf.lastPageCount {
		return nil
	}

	for pid := newCount + 1; pid <= cf.lastPageCount; pid++ {
		loc, err := cf.lookupPageLoc(pid)
		if err != nil {
			return err
		}
		if loc == nil {
			continue
		}
		if err := cf.outer.MarkDeletedAtomic(loc.PageID, loc.SlotOff); err != nil {
			return fmt.Errorf("%w: %v", ErrIoError, err)
		}
		if err := cf.pagesIdx.Remove(pageKey(pid), uint64(pid)); err != nil {
			return fmt.Errorf("%w: %v", ErrIoError, err)
		}
		cf.cache.invalidate(pid)
	}

	cf.lastPageCount = newCount
	cf.meta.LastPageCount = newCount
	cf.meta.PagesIndexRoot = cf.pagesIdx.RootPageID()
	if err := cf.flushMetaLocked(); err != nil {
		return err
	}
	if err := cf.outer.FlushMeta(); err != nil {
		return fmt.Errorf("%w: %v", ErrIoError, err)
	}
	return cf.outer.CommitWAL()
}

// Sync implémente storage.StorageFile en flushant le pager externe.
func (cf *CompressedFile) Sync() error {
	if cf.readOnly {
		return nil
	}
	if err := cf.outer.FlushMeta(); err != nil {
		return fmt.Errorf("%w: %v", ErrIoError, err)
	}
	return nil
}

// Close signale l'arrêt aux workers en vol et ferme le pager externe.
func (cf *CompressedFile) Close() error {
	cf.mu.Lock()
	if cf.closed {
		cf.mu.Unlock()
		return nil
	}
	cf.closed = true
	cf.mu.Unlock()
	cf.pool.close()
	return cf.outer.Close()
}

// Stat implémente storage.StorageFile : la taille logique du fichier interne
// est lastPageCount * innerPageSize.
func (cf *CompressedFile) Stat() (os.FileInfo, error) {
	cf.mu.Lock()
	size := int64(cf.lastPageCount) * int64(cf.innerPageSize())
	cf.mu.Unlock()
	return &cpsFileInfo{size: size}, nil
}

// CacheStats expose les compteurs hit/miss du hot-page cache pour diagnostic.
func (cf *CompressedFile) CacheStats() (hits, misses uint64, size, capacity int) {
	return cf.cache.stats()
}

type cpsFileInfo struct{ size int64 }

func (fi *cpsFileInfo) Name() string       { return "cps" }
func (fi *cpsFileInfo) Size() int64        { return fi.size }
func (fi *cpsFileInfo) Mode() os.FileMode  { return 0644 }
func (fi *cpsFileInfo) ModTime() time.Time { return time.Time{} }
func (fi *cpsFileInfo) IsDir() bool        { return false }
func (fi *cpsFileInfo) Sys() interface{}   { return nil }
