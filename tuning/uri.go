package tuning

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// BuildURI alimente la fonction scalaire build_uri(path, config_json?) :
// rend une URI file sélectionnant le VFS compressé avec les réglages de la
// config en paramètres de requête, la forme qu'un appelant passerait à
// l'ouvreur de connexion du moteur hôte.
func BuildURI(path string, configJSON string) (string, error) {
	cfg, err := MergeConfigJSON(configJSON)
	if err != nil {
		return "", err
	}
	q := url.Values{}
	q.Set("vfs", "compressed")
	q.Set("outer_page_size", strconv.Itoa(cfg.OuterPageSize()))
	q.Set("level", strconv.Itoa(cfg.ZstdLevel))
	q.Set("threads", strconv.Itoa(cfg.Threads))
	if cfg.UnsafeLoad {
		q.Set("outer_unsafe", "1")
	}
	if cfg.Immutable {
		q.Set("immutable", "1")
	}
	if !cfg.ForcePrefetch && cfg.InnerPageSize() < 16*1024 {
		q.Set("noprefetch", "1")
	}
	u := url.URL{Scheme: "file", Path: path, RawQuery: q.Encode()}
	return u.String(), nil
}

// TuningSQL alimente tuning_sql(config_json?, schema?) : le script de
// pragmas post-ouverture réglant la taille de page, le cache de pages
// interne et le mode de journal. La taille de page vient toujours en
// premier : elle doit être fixée avant tout pragma qui forcerait une
// allocation de page implicite.
func TuningSQL(configJSON, schema string) (string, error) {
	cfg, err := MergeConfigJSON(configJSON)
	if err != nil {
		return "", err
	}
	prefix := ""
	if schema != "" {
		prefix = schema + "."
	}

	var stmts []string
	stmts = append(stmts, fmt.Sprintf("PRAGMA %spage_size=%d", prefix, cfg.InnerPageSize()))
	stmts = append(stmts, fmt.Sprintf("PRAGMA %scache_size=-%d", prefix, cfg.PageCacheMiB*1024))
	if cfg.UnsafeLoad {
		stmts = append(stmts, fmt.Sprintf("PRAGMA %sjournal_mode=OFF", prefix))
		stmts = append(stmts, fmt.Sprintf("PRAGMA %ssynchronous=OFF", prefix))
		stmts = append(stmts, fmt.Sprintf("PRAGMA %slocking_mode=EXCLUSIVE", prefix))
	} else {
		stmts = append(stmts, fmt.Sprintf("PRAGMA %sjournal_mode=WAL", prefix))
		stmts = append(stmts, fmt.Sprintf("PRAGMA %ssynchronous=NORMAL", prefix))
	}
	if cfg.Immutable {
		stmts = append(stmts, fmt.Sprintf("PRAGMA %squery_only=1", prefix))
	}
	return strings.Join(stmts, ";\n") + ";", nil
}

// AttachSQL alimente attach_sql(path, schema_name, config_json?) : un
// ATTACH contre une connexion déjà ouverte, suivi du même script de tuning
// restreint au nouveau schéma.
func AttachSQL(path, schemaName, configJSON string) (string, error) {
	uri, err := BuildURI(path, configJSON)
	if err != nil {
		return "", err
	}
	tuning, err := TuningSQL(configJSON, schemaName)
	if err != nil {
		return "", err
	}
	attach := fmt.Sprintf("ATTACH DATABASE '%s' AS %s", uri, schemaName)
	return attach + ";\n" + tuning, nil
}

// VacuumIntoSQL alimente vacuum_into_sql(dest_path, config_json?) : un
// VACUUM INTO visant une URI de destination fraîchement réglée.
func VacuumIntoSQL(destPath, configJSON string) (string, error) {
	uri, err := BuildURI(destPath, configJSON)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("VACUUM INTO '%s'", uri), nil
}
