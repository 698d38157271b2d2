// Package compress implémente le Compressed Page Store : une
// storage.StorageFile qui compresse de façon transparente des pages internes
// de taille fixe en records de longueur variable d'un fichier novusdb
// externe.
package compress

import "errors"

// Catégories d'erreurs exposées aux appelants de CompressedFile, sur le
// modèle du sentinel nu storage.ErrReadOnly.
var (
	// ErrIoError enveloppe un échec de lecture ou d'écriture de la base externe.
	ErrIoError = errors.New("compress: io error")
	// ErrCorruptPage est retourné quand une page décompressée n'a pas la bonne longueur.
	ErrCorruptPage = errors.New("compress: corrupt page")
	// ErrCancelled est retourné aux opérations de workers encore en vol après Close.
	ErrCancelled = errors.New("compress: cancelled")
	// ErrInternal couvre les violations d'invariants qui ne devraient jamais arriver.
	ErrInternal = errors.New("compress: internal error")
)
