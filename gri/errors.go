// Package gri implémente le Genomic Range Index : un index secondaire B-Tree
// bucketé par niveau sur des intervalles 1-D (rid, beg, len), supportant des
// requêtes d'overlap efficaces là où un index égalité/BETWEEN ordinaire ne
// le peut pas.
package gri

import "errors"

var (
	// ErrNoSuchIndex désigne un index jamais créé par Create ni ouvert par
	// Open ; aucune fonction du package ne le retourne.
	ErrNoSuchIndex = errors.New("gri: no such index")
	// ErrInvalidRange est retourné pour une requête ou un insert avec beg > end.
	ErrInvalidRange = errors.New("gri: invalid range (beg > end)")
	// ErrDuplicateRefseq est retourné quand PutRefseq entre en collision sur
	// (assembly, name) ou sur refget_id.
	ErrDuplicateRefseq = errors.New("gri: duplicate refseq")
)
