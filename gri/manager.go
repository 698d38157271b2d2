package gri

import (
	"fmt"
	"sort"
	"sync"

	"github.com/Felmond13/novusdb/index"
	"github.com/Felmond13/novusdb/storage"
)

// Manager possède un Genomic Range Index : le B-Tree à clé composite
// (rid, lvl, beg) plus la collection de features qu'il indexe. Il joue pour
// les intervalles le rôle que index.Manager joue pour les champs
// égalité/BETWEEN, mais garde son propre btree parce que la forme de la clé
// (trois composantes numériques, bucketées par niveau) n'a rien en commun
// avec ValueToKey.
type Manager struct {
	pager      *storage.Pager
	collection string
	idx        *index.Index
	floor      int // niveau plancher choisi à la création, voir LevelForLength
	mu       sync.RWMutex
	version  uint64
	cachedAt uint64
	bounds   map[int64]levelBounds // rid -> [minLevel, maxLevel] observés
}

// griIndexField est le nom d'IndexDef sous lequel le B-Tree du GRI est
// persisté pour sa collection.
const griIndexField = "__gri__"

// levelBounds mémorise le plus petit et le plus grand niveau stocké observés
// pour une séquence de référence — le résultat mis en cache de detect_levels
// pour ce rid.
type levelBounds struct {
	min, max int
	seen     bool
}

// Feature est un intervalle (rid, beg, len) plus les champs supplémentaires
// que l'appelant veut stocker avec lui dans la collection.
type Feature struct {
	RowID uint64 // affecté par Insert ; ignoré en entrée
	RID   int64
	Beg   int64
	Len   int64
	Extra *storage.Document // peut être nil
}

func (m *Manager) levelOf(f Feature) int { return LevelForLength(f.Len, m.floor) }

func (m *Manager) keyOf(f Feature) string {
	return compositeKey(f.RID, storedLevel(m.levelOf(f)), f.Beg)
}

func (f *Feature) toDocument() *storage.Document {
	doc := storage.NewDocument()
	if f.Extra != nil {
		doc.Fields = append(doc.Fields, f.Extra.Fields...)
	}
	doc.Set("rid", f.RID)
	doc.Set("beg", f.Beg)
	doc.Set("len", f.Len)
	return doc
}

func featureFromDocument(rowID uint64, doc *storage.Document) (Feature, bool) {
	rid, ok1 := doc.Get("rid")
	beg, ok2 := doc.Get("beg")
	length, ok3 := doc.Get("len")
	if !ok1 || !ok2 || !ok3 {
		return Feature{}, false
	}
	return Feature{
		RowID: rowID,
		RID:   rid.(int64),
		Beg:   beg.(int64),
		Len:   length.(int64),
		Extra: doc,
	}, true
}

// Create initialise un GRI sur collection via pager, ou rouvre l'index
// persisté si la collection en porte déjà un (même clé d'IndexDef que les
// index d'égalité : le GRI survit ainsi à une réouverture de la base).
// floor est le niveau plancher choisi à la création : LevelForLength ne
// bucketera jamais une feature de cette collection sous floor, si courte
// soit-elle. Les valeurs hors bornes sont ramenées dans
// [MinLevel, MaxLevel].
func Create(pager *storage.Pager, collection string, floor int) (*Manager, error) {
	if _, err := pager.GetOrCreateCollection(collection); err != nil {
		return nil, err
	}
	for _, def := range pager.IndexDefs() {
		if def.Collection == collection && def.Field == griIndexField {
			return Open(pager, collection, def.RootPageID, floor), nil
		}
	}
	idx, err := index.NewIndex(collection, griIndexField, pager)
	if err != nil {
		return nil, err
	}
	if err := pager.AddIndexDef("gri_"+collection, collection, griIndexField, idx.RootPageID()); err != nil {
		return nil, err
	}
	return &Manager{
		pager:      pager,
		collection: collection,
		idx:        idx,
		floor:      clampLevel(floor),
		bounds:     make(map[int64]levelBounds),
	}, nil
}

// Open rouvre un GRI existant depuis sa page racine persistée, avec le floor
// de sa création (c'est à l'appelant de s'en souvenir — l'IndexDef de novusdb
// n'a pas de champ libre pour le persister).
func Open(pager *storage.Pager, collection string, rootPageID uint32, floor int) *Manager {
	return &Manager{
		pager:      pager,
		collection: collection,
		idx:        index.OpenIndex(collection, griIndexField, pager, rootPageID),
		floor:      clampLevel(floor),
		bounds:     make(map[int64]levelBounds),
	}
}

// Insert stocke une nouvelle feature dans la collection et l'indexe.
// Retourne le row id affecté.
func (m *Manager) Insert(f Feature) (uint64, error) {
	if f.Len < 0 {
		return 0, ErrInvalidRange
	}
	coll, err := m.pager.GetOrCreateCollection(m.collection)
	if err != nil {
		return 0, err
	}
	recordID, err := m.pager.NextRecordID(m.collection)
	if err != nil {
		return 0, err
	}
	f.RowID = recordID
	encoded, err := f.toDocument().Encode()
	if err != nil {
		return 0, err
	}
	pageID, slotOff, err := m.pager.InsertRecordAtomic(coll, recordID, encoded)
	if err != nil {
		return 0, err
	}
	if err := m.idx.Add(m.keyOf(f), recordID, pageID, slotOff); err != nil {
		return 0, err
	}
	if err := m.pager.FlushMeta(); err != nil {
		return 0, err
	}
	if err := m.pager.CommitWAL(); err != nil {
		return 0, err
	}
	m.bumpLevel(f.RID, m.levelOf(f))
	return recordID, nil
}

// Remove supprime la feature identifiée par rowID : le record est marqué
// supprimé dans la collection, l'entrée d'index retirée, et le cache de
// bornes de niveaux invalidé pour ce rid. L'appelant doit fournir le
// (rid, beg, len) d'insertion, la clé composite ne pouvant pas être
// reconstruite depuis le row id seul — la même contrainte que
// index.Index.Remove impose à ses appelants.
func (m *Manager) Remove(f Feature) error {
	key := m.keyOf(f)
	locs, err := m.idx.Lookup(key)
	if err != nil {
		return err
	}
	for _, loc := range locs {
		if loc.RecordID != f.RowID {
			continue
		}
		if err := m.pager.MarkDeletedAtomic(loc.PageID, loc.SlotOff); err != nil {
			return err
		}
		break
	}
	if err := m.idx.Remove(key, f.RowID); err != nil {
		return err
	}
	if err := m.pager.FlushMeta(); err != nil {
		return err
	}
	if err := m.pager.CommitWAL(); err != nil {
		return err
	}
	m.invalidateLevels(f.RID)
	return nil
}

// Update remplace oldFeature par newFeature (même row id), en la re-bucketant
// si sa longueur l'a déplacée vers un autre niveau.
func (m *Manager) Update(oldFeature, newFeature Feature) error {
	if oldFeature != newFeature {
		oldKey := m.keyOf(oldFeature)
		locs, err := m.idx.Lookup(oldKey)
		if err != nil {
			return err
		}
		for _, loc := range locs {
			if loc.RecordID != oldFeature.RowID {
				continue
			}
			if err := m.pager.MarkDeletedAtomic(loc.PageID, loc.SlotOff); err != nil {
				return err
			}
			break
		}
		if err := m.idx.Remove(oldKey, oldFeature.RowID); err != nil {
			return err
		}
		coll := m.pager.GetCollection(m.collection)
		encoded, err := newFeature.toDocument().Encode()
		if err != nil {
			return err
		}
		pageID, slotOff, err := m.pager.InsertRecordAtomic(coll, newFeature.RowID, encoded)
		if err != nil {
			return err
		}
		if err := m.idx.Add(m.keyOf(newFeature), newFeature.RowID, pageID, slotOff); err != nil {
			return err
		}
		if err := m.pager.FlushMeta(); err != nil {
			return err
		}
		if err := m.pager.CommitWAL(); err != nil {
			return err
		}
		m.invalidateLevels(oldFeature.RID)
	}
	m.bumpLevel(newFeature.RID, m.levelOf(newFeature))
	return nil
}

func (m *Manager) bumpLevel(rid int64, level int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.version++
	b, ok := m.bounds[rid]
	if !ok || !b.seen {
		m.bounds[rid] = levelBounds{min: level, max: level, seen: true}
		return
	}
	if level < b.min {
		b.min = level
	}
	if level > b.max {
		b.max = level
	}
	m.bounds[rid] = b
}

// invalidateLevels oublie les bornes cachées d'un rid après une suppression :
// contrairement à un insert (qui ne peut qu'élargir les bornes, voir
// bumpLevel), une suppression peut les resserrer, et seul un rescan de
// l'index peut le constater. L'entrée reste dans la map (seen=false) pour que
// Levels continue d'énumérer ce rid et déclenche le rescan.
func (m *Manager) invalidateLevels(rid int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.version++
	m.bounds[rid] = levelBounds{}
}

// DetectLevels retourne l'intervalle [minLevel, maxLevel] des buckets
// réellement occupés pour rid, en scannant l'index la première fois puis en
// servant la réponse cachée tant qu'aucun insert/update/delete n'a touché les
// niveaux de ce rid (suivi via un compteur de version par manager, la même
// forme invalidate-on-write que le cache de stats de l'executor).
func (m *Manager) DetectLevels(rid int64) (minLevel, maxLevel int, err error) {
	m.mu.RLock()
	b, ok := m.bounds[rid]
	version := m.version
	cachedAt := m.cachedAt
	m.mu.RUnlock()
	if ok && b.seen && version == cachedAt {
		return b.min, b.max, nil
	}

	minLevel, maxLevel = MaxLevel, MinLevel
	found := false
	for l := MinLevel; l <= MaxLevel; l++ {
		lo, hi := compositeKeyRange(rid, storedLevel(l), 0, maxCoordinate)
		locs, err := m.idx.RangeScan(lo, hi)
		if err != nil {
			return 0, 0, err
		}
		if len(locs) == 0 {
			continue
		}
		found = true
		if l < minLevel {
			minLevel = l
		}
		if l > maxLevel {
			maxLevel = l
		}
	}
	if !found {
		minLevel, maxLevel = 0, 0
	}

	m.mu.Lock()
	m.bounds[rid] = levelBounds{min: minLevel, max: maxLevel, seen: found}
	m.cachedAt = m.version
	m.mu.Unlock()
	return minLevel, maxLevel, nil
}

// maxCoordinate borne la composante beg d'un scan : assez grand pour couvrir
// toute coordonnée à l'échelle d'un chromosome (2^48), assez petit pour que
// la largeur zéro-paddée des clés de level.go reste fixée à 20 chiffres.
const maxCoordinate = int64(1) << 48

// OverlappingFeatures retourne toutes les features de rid dont l'intervalle
// [beg, beg+len] touche l'intervalle de requête [qbeg, qend], bornes
// incluses : une feature qui finit exactement à qbeg ou commence exactement
// à qend est retournée.
func (m *Manager) OverlappingFeatures(rid int64, qbeg, qend int64) ([]Feature, error) {
	if qbeg > qend {
		return nil, ErrInvalidRange
	}
	minLevel, maxLevel, err := m.DetectLevels(rid)
	if err != nil {
		return nil, err
	}

	seen := make(map[uint64]bool)
	var out []Feature
	for l := minLevel; l <= maxLevel; l++ {
		span := bucketSpan(l)
		// Une feature au niveau l a une longueur <= span : sous le prédicat
		// d'overlap inclusif (beg+len >= qbeg) son beg peut descendre jusqu'à
		// qbeg-span et encore matcher ; il peut monter jusqu'à qend (une
		// feature qui commence exactement à qend compte encore, voir le
		// prédicat ci-dessous) et rester candidate.
		lowBeg := qbeg - span
		if lowBeg < 0 {
			lowBeg = 0
		}
		lo, hi := compositeKeyRange(rid, storedLevel(l), lowBeg, qend)
		locs, err := m.idx.RangeScan(lo, hi)
		if err != nil {
			return nil, err
		}
		for _, loc := range locs {
			if seen[loc.RecordID] {
				continue
			}
			f, err := m.readFeature(loc)
			if err != nil {
				return nil, err
			}
			// Prédicat d'overlap : NOT (qbeg > end OR qend < beg), c.-à-d.
			// qu'une borne touchée compte encore comme overlap — une requête
			// ponctuelle (qbeg == qend) matche une feature qui commence ou
			// finit exactement là.
			if !(qbeg > f.Beg+f.Len || qend < f.Beg) {
				seen[loc.RecordID] = true
				out = append(out, f)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Beg < out[j].Beg })
	return out, nil
}

func (m *Manager) readFeature(loc index.RecordLoc) (Feature, error) {
	page, err := m.pager.ReadPage(loc.PageID)
	if err != nil {
		return Feature{}, err
	}
	slot, ok := page.ReadRecordAt(loc.SlotOff)
	if !ok || slot.Deleted {
		return Feature{}, fmt.Errorf("gri: dangling index entry for record %d", loc.RecordID)
	}
	doc, err := storage.Decode(slot.Data)
	if err != nil {
		return Feature{}, err
	}
	f, ok := featureFromDocument(loc.RecordID, doc)
	if !ok {
		return Feature{}, fmt.Errorf("gri: record %d missing rid/beg/len", loc.RecordID)
	}
	return f, nil
}
