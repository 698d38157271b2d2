package compress

import "encoding/json"

// formatVersion identifie le layout on-disk des collections pages/meta
// externes ; incrémenté à chaque changement incompatible.
const formatVersion = 1

// cpsMeta est le record à schéma fixe persisté dans la collection "meta" de
// la base externe : taille de page interne, niveau de compression, version de
// format et dernier nombre de pages internes connu, plus la racine de l'index
// pages pour le rouvrir sans reconstruction.
type cpsMeta struct {
	InnerPageSize  int    `json:"inner_page_size"`
	Level          int    `json:"level"`
	FormatVersion  int    `json:"format_version"`
	LastPageCount  uint32 `json:"last_page_count"`
	PagesIndexRoot uint32 `json:"pages_index_root"`
	// SessionUUID marque le dernier ouvreur à avoir écrit meta — une aide au
	// debug des erreurs d'ouverture concurrente, pas un contrôle de
	// correction.
	SessionUUID string `json:"session_uuid"`
}

func encodeMeta(m cpsMeta) ([]byte, error) {
	return json.Marshal(m)
}

func decodeMeta(data []byte) (cpsMeta, error) {
	var m cpsMeta
	err := json.Unmarshal(data, &m)
	return m, err
}
