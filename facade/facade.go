// Package facade assemble le Compressed Page Store, le Genomic Range Index
// et la couche de tuning derrière un seul appel Open, comme
// Open/OpenReadOnly/OpenMemory dans api/db.go assemblent le pager,
// l'executor et le gestionnaire d'index de novusdb.
package facade

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/Felmond13/novusdb/api"
	"github.com/Felmond13/novusdb/compress"
	"github.com/Felmond13/novusdb/gri"
	"github.com/Felmond13/novusdb/storage"
	"github.com/Felmond13/novusdb/tuning"
)

// DB est une connexion novusdb adossée au Compressed Page Store, augmentée
// de la gestion des Genomic Range Index. Sa zero value n'est pas utilisable ;
// construire avec Open.
type DB struct {
	*api.DB

	cps *compress.CompressedFile
	cfg tuning.Config

	mu   sync.Mutex
	gris map[string]*gri.Manager

	refseqOnce sync.Once
	refseq     *RefseqTable
}

// RefseqTable ré-exporte gri.RefseqTable sous la façade pour que les
// appelants du chemin courant n'aient jamais à importer gri directement.
type RefseqTable = gri.RefseqTable

// Open crée ou rouvre une base à path sous le Compressed Page Store,
// configurée en fusionnant configJSON (possiblement vide) par-dessus
// tuning.DefaultConfig.
func Open(path string, configJSON string) (*DB, error) {
	cfg, err := tuning.MergeConfigJSON(configJSON)
	if err != nil {
		return nil, err
	}

	cf, err := compress.Open(path, compress.Options{
		InnerPageSize: cfg.InnerPageSize(),
		Level:         cfg.ZstdLevel,
		Threads:       cfg.Threads,
		NoPrefetch:    !cfg.ForcePrefetch && cfg.InnerPageSize() < 16*1024,
		ReadOnly:      cfg.Immutable,
		SessionUUID:   uuid.NewString(),
		OuterPageSize: cfg.OuterPageSize(),
		CacheCapacity: cfg.CachePageCount(),
	})
	if err != nil {
		return nil, fmt.Errorf("facade: opening compressed page store: %w", err)
	}

	innerPager, err := storage.OpenPagerWithFile(cf, cfg.InnerPageSize(), cfg.Immutable)
	if err != nil {
		return nil, fmt.Errorf("facade: opening inner database: %w", err)
	}

	db := &DB{
		DB:   api.NewWithPager(innerPager),
		cps:  cf,
		cfg:  cfg,
		gris: make(map[string]*gri.Manager),
	}
	db.Executor().SetTableFuncProvider(db)
	return db, nil
}

// OpenMemory crée une base en mémoire adossée au Compressed Page Store,
// utile pour les tests : les pagers interne et externe sont tous deux en
// mémoire.
func OpenMemory(configJSON string) (*DB, error) {
	cfg, err := tuning.MergeConfigJSON(configJSON)
	if err != nil {
		return nil, err
	}
	cf, err := compress.OpenMemory(compress.Options{
		InnerPageSize: cfg.InnerPageSize(),
		Level:         cfg.ZstdLevel,
		Threads:       cfg.Threads,
		NoPrefetch:    !cfg.ForcePrefetch && cfg.InnerPageSize() < 16*1024,
		SessionUUID:   uuid.NewString(),
		OuterPageSize: cfg.OuterPageSize(),
		CacheCapacity: cfg.CachePageCount(),
	})
	if err != nil {
		return nil, fmt.Errorf("facade: opening compressed page store: %w", err)
	}
	innerPager, err := storage.OpenPagerWithFile(cf, cfg.InnerPageSize(), false)
	if err != nil {
		return nil, fmt.Errorf("facade: opening inner database: %w", err)
	}
	db := &DB{
		DB:   api.NewWithPager(innerPager),
		cps:  cf,
		cfg:  cfg,
		gris: make(map[string]*gri.Manager),
	}
	db.Executor().SetTableFuncProvider(db)
	return db, nil
}

// Close flushe et ferme le pager interne, qui flushe et ferme à son tour le
// fichier externe du Compressed Page Store.
func (db *DB) Close() error {
	return db.DB.Close()
}

// CacheStats rapporte les compteurs du hot-page cache du Compressed Page
// Store, distincts de api.DB.CacheHitRate qui rapporte le cache de records
// du pager interne.
func (db *DB) CacheStats() (hits, misses uint64, size, capacity int) {
	return db.cps.CacheStats()
}

// GRI retourne (en le créant au premier usage) le manager de Genomic Range
// Index de table, adossé à sa propre collection B-tree dans la base interne
// compressée par le CPS. Le floor par défaut est 0 ; utiliser CreateGRI pour
// choisir un floor non nul avant le premier accès à l'index.
func (db *DB) GRI(table string) (*gri.Manager, error) {
	return db.CreateGRI(table, 0)
}

// CreateGRI est le pendant programmatique de create_gri_sql(table, ...,
// floor) : retourne le manager existant de table s'il est déjà en cache,
// sinon crée un nouvel index GRI avec le floor donné. floor ne prend effet
// qu'à la première création ; il est sans effet sur une table dont l'index
// existe déjà.
func (db *DB) CreateGRI(table string, floor int) (*gri.Manager, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if m, ok := db.gris[table]; ok {
		return m, nil
	}
	m, err := gri.Create(db.Pager(), table, floor)
	if err != nil {
		return nil, err
	}
	db.gris[table] = m
	return m, nil
}

// GRIManager implémente engine.TableFuncProvider : overlapping_rowids et
// gri_levels résolvent un nom de table vers son manager GRI depuis un plan
// SELECT ... FROM <func>(...).
func (db *DB) GRIManager(table string) (*gri.Manager, error) {
	return db.GRI(table)
}

// Refseq retourne (en la créant au premier usage) la table de métadonnées refseq.
func (db *DB) Refseq() (*RefseqTable, error) {
	var err error
	db.refseqOnce.Do(func() {
		db.refseq, err = gri.OpenRefseqTable(db.Pager())
	})
	if err != nil {
		return nil, err
	}
	return db.refseq, nil
}

// Attach génère (sans l'exécuter lui-même, novusdb n'ayant pas encore de
// support ATTACH) le script ATTACH + tuning qu'un appelant exécuterait
// contre une connexion déjà ouverte pour monter une autre base CPS sous
// schemaName, selon attach_sql(path, schema_name, config_json?).
func (db *DB) Attach(path, schemaName, configJSON string) (string, error) {
	return tuning.AttachSQL(path, schemaName, configJSON)
}

// VacuumInto génère le script VACUUM INTO qui copierait cette base vers un
// fichier de destination fraîchement réglé à destPath.
func (db *DB) VacuumInto(destPath, configJSON string) (string, error) {
	return tuning.VacuumIntoSQL(destPath, configJSON)
}
