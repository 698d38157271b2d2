// Package tuning rend le JSON de configuration, l'URI de connexion et les
// scripts de pragmas post-ouverture que le package facade utilise pour
// ouvrir une base adossée au Compressed Page Store, sans dépendre lui-même
// de storage, compress ou gri : il ne fait que produire et parser du texte.
package tuning

import (
	"encoding/json"
	"fmt"
	"runtime"
)

// moduleVersion est incrémenté avec tout changement de la forme JSON de Config.
const moduleVersion = "0.1.0"

// Config reflète les clés JSON de configuration reconnues.
type Config struct {
	UnsafeLoad    bool `json:"unsafe_load"`
	Immutable     bool `json:"immutable"`
	PageCacheMiB  int  `json:"page_cache_MiB"`
	Threads       int  `json:"threads"` // -1 = auto, plafonné à 8
	ForcePrefetch bool `json:"force_prefetch"`
	ZstdLevel     int  `json:"zstd_level"`
	InnerPageKiB  int  `json:"inner_page_KiB"`
	OuterPageKiB  int  `json:"outer_page_KiB"`
}

// DefaultConfig retourne la base codée en dur sous laquelle tout JSON fourni
// par l'appelant est fusionné.
func DefaultConfig() Config {
	return Config{
		UnsafeLoad:    false,
		Immutable:     false,
		PageCacheMiB:  64,
		Threads:       -1,
		ForcePrefetch: false,
		ZstdLevel:     0,
		InnerPageKiB:  16,
		OuterPageKiB:  4,
	}
}

// DefaultConfigJSON alimente la fonction scalaire default_config_json().
func DefaultConfigJSON() string {
	data, _ := json.Marshal(DefaultConfig())
	return string(data)
}

// Version alimente la fonction scalaire version().
func Version() string {
	return moduleVersion
}

// validPageKiB vérifie qu'une taille de page en KiB est l'une des puissances
// de deux acceptées.
func validPageKiB(kib int) bool {
	switch kib {
	case 1, 2, 4, 8, 16, 32, 64:
		return true
	}
	return false
}

// MergeConfigJSON fusionne configJSON (possiblement vide) par-dessus
// DefaultConfig, en n'écrasant que les clés réellement présentes dans
// configJSON, puis valide les tailles de pages.
func MergeConfigJSON(configJSON string) (Config, error) {
	cfg := DefaultConfig()
	if configJSON != "" {
		if err := json.Unmarshal([]byte(configJSON), &cfg); err != nil {
			return Config{}, fmt.Errorf("tuning: invalid config json: %w", err)
		}
	}
	if !validPageKiB(cfg.InnerPageKiB) {
		return Config{}, fmt.Errorf("tuning: inner_page_KiB must be one of 1,2,4,8,16,32,64, got %d", cfg.InnerPageKiB)
	}
	if !validPageKiB(cfg.OuterPageKiB) {
		return Config{}, fmt.Errorf("tuning: outer_page_KiB must be one of 1,2,4,8,16,32,64, got %d", cfg.OuterPageKiB)
	}
	cfg.resolveThreads()
	return cfg, nil
}

func (c *Config) resolveThreads() {
	if c.Threads < 0 {
		n := runtime.NumCPU()
		if n > 8 {
			n = 8
		}
		if n < 1 {
			n = 1
		}
		c.Threads = n
	}
}

// InnerPageSize retourne la taille de page interne configurée, en octets.
func (c Config) InnerPageSize() int {
	if c.InnerPageKiB <= 0 {
		return 16 * 1024
	}
	return c.InnerPageKiB * 1024
}

// OuterPageSize retourne la taille de page externe configurée, en octets.
func (c Config) OuterPageSize() int {
	if c.OuterPageKiB <= 0 {
		return 4 * 1024
	}
	return c.OuterPageKiB * 1024
}

// CachePageCount convertit page_cache_MiB en capacité du hot-page cache
// exprimée en pages internes entières, le cache contenant des pages internes
// décompressées et non des octets bruts.
func (c Config) CachePageCount() int {
	if c.PageCacheMiB <= 0 {
		return 256
	}
	n := (c.PageCacheMiB * 1024 * 1024) / c.InnerPageSize()
	if n < 1 {
		n = 1
	}
	return n
}
