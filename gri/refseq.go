package gri

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/Felmond13/novusdb/index"
	"github.com/Felmond13/novusdb/storage"
)

const refseqCollection = "refseq"

// Refseq reflète une ligne de la table de métadonnées refseq.
type Refseq struct {
	RID      int64
	Name     string
	Assembly string
	RefgetID string
	Length   int64
	MetaJSON string
}

// RefseqTable enveloppe la collection novusdb ordinaire qui porte la table
// refseq, avec un index secondaire sur name comme toute colonne interrogée
// par égalité en recevrait un via index.Manager, plus deux autres index
// secondaires garantissant l'unicité sur (assembly, name) et sur refget_id.
type RefseqTable struct {
	pager           *storage.Pager
	nameIdx         *index.Index
	assemblyNameIdx *index.Index
	refgetIdx       *index.Index

	mu     sync.Mutex
	nextID int64
}

// openOrCreateIndex rouvre l'index secondaire de field sur refseqCollection
// depuis les index defs persistés du pager, ou en construit et enregistre un
// nouveau.
func openOrCreateIndex(pager *storage.Pager, field string) (*index.Index, error) {
	for _, def := range pager.IndexDefs() {
		if def.Collection == refseqCollection && def.Field == field {
			return index.OpenIndex(refseqCollection, field, pager, def.RootPageID), nil
		}
	}
	idx, err := index.NewIndex(refseqCollection, field, pager)
	if err != nil {
		return nil, err
	}
	if err := pager.AddIndexDef("refseq_"+field, refseqCollection, field, idx.RootPageID()); err != nil {
		return nil, err
	}
	return idx, nil
}

// assemblyNameKey construit la clé d'index composite garantissant l'unicité
// sur (assembly, name) : le préfixe "s:" de ValueToKey plus un séparateur NUL
// la gardent non ambiguë même si la valeur d'un champ contient l'autre.
func assemblyNameKey(assembly, name string) string {
	return index.ValueToKey(assembly + "\x00" + name)
}

// OpenRefseqTable crée la collection refseq et ses index au premier usage,
// ou les rouvre s'ils existent déjà.
func OpenRefseqTable(pager *storage.Pager) (*RefseqTable, error) {
	if _, err := pager.GetOrCreateCollection(refseqCollection); err != nil {
		return nil, err
	}
	nameIdx, err := openOrCreateIndex(pager, "name")
	if err != nil {
		return nil, err
	}
	assemblyNameIdx, err := openOrCreateIndex(pager, "assembly_name")
	if err != nil {
		return nil, err
	}
	refgetIdx, err := openOrCreateIndex(pager, "refget_id")
	if err != nil {
		return nil, err
	}
	return &RefseqTable{
		pager:           pager,
		nameIdx:         nameIdx,
		assemblyNameIdx: assemblyNameIdx,
		refgetIdx:       refgetIdx,
	}, nil
}

// PutRefseq insère une ligne de séquence de référence. Un RID à zéro reçoit
// le prochain disponible ; un RefgetID vide reçoit un UUID fraîchement généré
// plutôt que de rester blanc, pour que chaque ligne soit identifiable même
// avant qu'un vrai checksum refget ne soit calculé.
func (t *RefseqTable) PutRefseq(r Refseq) (int64, error) {
	t.mu.Lock()
	if r.RID == 0 {
		t.nextID++
		r.RID = t.nextID
	} else if r.RID > t.nextID {
		t.nextID = r.RID
	}
	t.mu.Unlock()

	if r.RefgetID == "" {
		r.RefgetID = uuid.NewString()
	}
	if r.MetaJSON == "" {
		r.MetaJSON = "{}"
	}

	if locs, err := t.assemblyNameIdx.Lookup(assemblyNameKey(r.Assembly, r.Name)); err != nil {
		return 0, err
	} else if len(locs) > 0 {
		return 0, fmt.Errorf("%w: (assembly=%q, name=%q)", ErrDuplicateRefseq, r.Assembly, r.Name)
	}
	if locs, err := t.refgetIdx.Lookup(index.ValueToKey(r.RefgetID)); err != nil {
		return 0, err
	} else if len(locs) > 0 {
		return 0, fmt.Errorf("%w: refget_id=%q", ErrDuplicateRefseq, r.RefgetID)
	}

	doc := storage.NewDocument()
	doc.Set("rid", r.RID)
	doc.Set("name", r.Name)
	doc.Set("assembly", r.Assembly)
	doc.Set("refget_id", r.RefgetID)
	doc.Set("length", r.Length)
	doc.Set("meta_json", r.MetaJSON)

	coll, err := t.pager.GetOrCreateCollection(refseqCollection)
	if err != nil {
		return 0, err
	}
	recordID, err := t.pager.NextRecordID(refseqCollection)
	if err != nil {
		return 0, err
	}
	encoded, err := doc.Encode()
	if err != nil {
		return 0, err
	}
	pageID, slotOff, err := t.pager.InsertRecordAtomic(coll, recordID, encoded)
	if err != nil {
		return 0, err
	}
	if err := t.nameIdx.Add(index.ValueToKey(r.Name), recordID, pageID, slotOff); err != nil {
		return 0, err
	}
	if err := t.assemblyNameIdx.Add(assemblyNameKey(r.Assembly, r.Name), recordID, pageID, slotOff); err != nil {
		return 0, err
	}
	if err := t.refgetIdx.Add(index.ValueToKey(r.RefgetID), recordID, pageID, slotOff); err != nil {
		return 0, err
	}
	if err := t.pager.FlushMeta(); err != nil {
		return 0, err
	}
	if err := t.pager.CommitWAL(); err != nil {
		return 0, err
	}
	return r.RID, nil
}

// Lookup retourne la ligne refseq de name, si elle existe.
func (t *RefseqTable) Lookup(name string) (Refseq, bool, error) {
	locs, err := t.nameIdx.Lookup(index.ValueToKey(name))
	if err != nil {
		return Refseq{}, false, err
	}
	if len(locs) == 0 {
		return Refseq{}, false, nil
	}
	loc := locs[len(locs)-1]
	page, err := t.pager.ReadPage(loc.PageID)
	if err != nil {
		return Refseq{}, false, err
	}
	slot, ok := page.ReadRecordAt(loc.SlotOff)
	if !ok || slot.Deleted {
		return Refseq{}, false, nil
	}
	doc, err := storage.Decode(slot.Data)
	if err != nil {
		return Refseq{}, false, err
	}
	return refseqFromDocument(doc), true, nil
}

func refseqFromDocument(doc *storage.Document) Refseq {
	get := func(name string) interface{} { v, _ := doc.Get(name); return v }
	str := func(v interface{}) string { s, _ := v.(string); return s }
	i64 := func(v interface{}) int64 { n, _ := v.(int64); return n }
	return Refseq{
		RID:      i64(get("rid")),
		Name:     str(get("name")),
		Assembly: str(get("assembly")),
		RefgetID: str(get("refget_id")),
		Length:   i64(get("length")),
		MetaJSON: str(get("meta_json")),
	}
}

// AssemblyRecord est une paire (name, length) d'une petite table de
// référence intégrée, tenant lieu du jeu refseq complet volontairement
// laissé hors périmètre.
type AssemblyRecord struct {
	Name   string
	Length int64
}

// GRCh38PrimaryAssembly est un substitut minimal codé en dur d'un vrai
// assembly report : les 24 chromosomes nucléaires humains plus la séquence
// mitochondriale, longueurs GRCh38.p14. Suffisant pour exercer PutAssembly
// sans embarquer le report complet de plusieurs mégaoctets.
var GRCh38PrimaryAssembly = []AssemblyRecord{
	{"chr1", 248956422}, {"chr2", 242193529}, {"chr3", 198295559},
	{"chr4", 190214555}, {"chr5", 181538259}, {"chr6", 170805979},
	{"chr7", 159345973}, {"chr8", 145138636}, {"chr9", 138394717},
	{"chr10", 133797422}, {"chr11", 135086622}, {"chr12", 133275309},
	{"chr13", 114364328}, {"chr14", 107043718}, {"chr15", 101991189},
	{"chr16", 90338345}, {"chr17", 83257441}, {"chr18", 80373285},
	{"chr19", 58617616}, {"chr20", 64444167}, {"chr21", 46709983},
	{"chr22", 50818468}, {"chrX", 156040895}, {"chrY", 57227415},
	{"chrM", 16569},
}

// PutAssembly insère dans refseq une ligne par record d'un assembly intégré
// nommé, et retourne le nombre de lignes insérées.
func (t *RefseqTable) PutAssembly(assembly string, records []AssemblyRecord) (int, error) {
	for _, rec := range records {
		if _, err := t.PutRefseq(Refseq{Name: rec.Name, Assembly: assembly, Length: rec.Length}); err != nil {
			return 0, fmt.Errorf("gri: put_assembly(%s): %w", rec.Name, err)
		}
	}
	return len(records), nil
}
