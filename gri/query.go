package gri

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// RefseqDDL retourne le CREATE TABLE IF NOT EXISTS de la table de métadonnées
// refseq, émis à la demande plutôt qu'embarqué dans chaque base.
func RefseqDDL() string {
	return "CREATE TABLE IF NOT EXISTS refseq (" +
		"rid INTEGER PRIMARY KEY, " +
		"name TEXT NOT NULL, " +
		"assembly TEXT NULL, " +
		"refget_id TEXT UNIQUE NULL, " +
		"length INTEGER NOT NULL, " +
		"meta_json TEXT DEFAULT '{}')"
}

// CreateGRISQL est la fonction scalaire create_gri_sql(table, rid_expr,
// beg_expr, end_expr, floor?) : une description lisible de l'index à
// construire, retournée en texte pour les outils qui veulent l'afficher ou
// la journaliser avant exécution (l'index réel est construit par Create,
// pas en exécutant ce texte — l'executor de novusdb n'a pas de DDL de
// colonnes générées à cibler).
func CreateGRISQL(table, ridExpr, begExpr, endExpr string, floor int) string {
	return fmt.Sprintf(
		"-- GRI(%s): rid=%s beg=%s len=(%s)-(%s) floor=%d\nCREATE INDEX gri_%s ON %s (rid, lvl, beg, len)",
		table, ridExpr, begExpr, endExpr, begExpr, floor, table, table,
	)
}

// OverlapSQL est la fonction scalaire overlap_sql(table, qrid?, qbeg?, qend?,
// ceiling?, floor?) : le template UNION par niveau que l'algorithme d'overlap
// évalue en interne, rendu en texte pour les appelants qui veulent
// l'inspecter ou l'incorporer dans leur propre requête plutôt que d'appeler
// overlapping_rowids. Le (qend)-0 sur la borne haute est volontaire : il
// force certains planners à garder le range scan voulu au lieu de
// pessimiser sur un paramètre nu.
func OverlapSQL(table string, qrid, qbeg, qend string, ceiling, floor int) string {
	var parts []string
	for l := floor; l <= ceiling; l++ {
		span := bucketSpan(l)
		parts = append(parts, fmt.Sprintf(
			"SELECT _rowid_ FROM %s WHERE rid=%s AND lvl=%d AND beg BETWEEN (%s)-%d AND (%s)-0 AND NOT (%s > (beg+len) OR (%s)-0 < beg)",
			table, qrid, storedLevel(l), qbeg, span, qend, qbeg, qend,
		))
	}
	if len(parts) == 0 {
		return "SELECT _rowid_ FROM " + table + " WHERE 0"
	}
	return strings.Join(parts, "\nUNION\n")
}

// PutRefseqSQL est la fonction scalaire put_refseq_sql(...) : le texte INSERT
// miroir de ce que RefseqTable.PutRefseq effectue via l'API Go, pour les
// appelants qui préfèrent la forme SQL.
func PutRefseqSQL(r Refseq) string {
	assembly := "NULL"
	if r.Assembly != "" {
		assembly = quoteSQL(r.Assembly)
	}
	refget := "NULL"
	if r.RefgetID != "" {
		refget = quoteSQL(r.RefgetID)
	}
	metaJSON := r.MetaJSON
	if metaJSON == "" {
		metaJSON = "{}"
	}
	return fmt.Sprintf(
		"INSERT INTO refseq (name, assembly, refget_id, length, meta_json) VALUES (%s, %s, %s, %d, %s)",
		quoteSQL(r.Name), assembly, refget, r.Length, quoteSQL(metaJSON),
	)
}

// PutAssemblySQL est la fonction scalaire put_assembly_sql(name, schema?) :
// un INSERT par record de l'assembly intégré demandé.
func PutAssemblySQL(assembly string, records []AssemblyRecord) string {
	var stmts []string
	for _, rec := range records {
		stmts = append(stmts, PutRefseqSQL(Refseq{Name: rec.Name, Assembly: assembly, Length: rec.Length}))
	}
	return strings.Join(stmts, ";\n")
}

func quoteSQL(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// GRILevels est le résultat de gri_levels(table) : les bornes de niveaux
// occupés d'un GRI, ceiling étant le niveau le plus grossier (plus grand
// span) en usage et floor le plus fin.
type GRILevels struct {
	Ceiling int
	Floor   int
	Empty   bool
}

// Levels exécute detect_levels sur chaque rid que le manager a rencontré et
// agrège les bornes par rid en une seule paire (ceiling, floor), la ligne
// unique produite par la fonction table gri_levels(table).
func (m *Manager) Levels() (GRILevels, error) {
	m.mu.RLock()
	rids := make([]int64, 0, len(m.bounds))
	for rid := range m.bounds {
		rids = append(rids, rid)
	}
	m.mu.RUnlock()

	ceiling, floor := 0, 0
	found := false
	for _, rid := range rids {
		lo, hi, err := m.DetectLevels(rid)
		if err != nil {
			return GRILevels{}, err
		}
		m.mu.RLock()
		b := m.bounds[rid]
		m.mu.RUnlock()
		if !b.seen {
			continue
		}
		if !found || lo < floor {
			floor = lo
		}
		if !found || hi > ceiling {
			ceiling = hi
		}
		found = true
	}
	if !found {
		return GRILevels{Empty: true}, nil
	}
	return GRILevels{Ceiling: ceiling, Floor: floor}, nil
}

// OverlappingRowIDs alimente la fonction table overlapping_rowids(table,
// qrid, qbeg, qend [, ceiling, floor]) : les valeurs de _rowid_, dédupliquées
// et en ordre croissant.
func (m *Manager) OverlappingRowIDs(rid int64, qbeg, qend int64) ([]uint64, error) {
	features, err := m.OverlappingFeatures(rid, qbeg, qend)
	if err != nil {
		return nil, err
	}
	out := make([]uint64, 0, len(features))
	for _, f := range features {
		out = append(out, f.RowID)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

// ParseInt64 est un petit helper partagé pour la coercition des arguments de
// fonctions table côté engine (littéraux qrid/qbeg/qend), aligné sur le
// traitement déjà permissif des littéraux numériques dans le parser.
func ParseInt64(s string) (int64, error) {
	return strconv.ParseInt(strings.TrimSpace(s), 10, 64)
}
