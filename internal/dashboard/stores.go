package dashboard

import (
	"strings"

	"marketpulse-dash/internal/auth"
	"marketpulse-dash/internal/cache"
	"marketpulse-dash/internal/config"
)

// Stores hands out credential stores of the configured kind. The Redis
// client, when set, is shared by every store and owned by the caller.
type Stores struct {
	kind  string
	dir   string
	key   string
	redis cache.RedisClient
}

// NewStores returns file stores unless cfg selects redis and rdb is set.
func NewStores(cfg *config.Config, rdb cache.RedisClient) *Stores {
	kind := cfg.CredentialStore
	if kind == config.CredentialStoreRedis && rdb == nil {
		kind = config.CredentialStoreFile
	}
	return &Stores{
		kind:  kind,
		dir:   cfg.CredentialDir,
		key:   cfg.CredentialKey,
		redis: rdb,
	}
}

func (s *Stores) Kind() string { return s.kind }

// ForKey returns the store for the configured key, or for key-suffix when
// suffix is set, so that several users can share one backend.
func (s *Stores) ForKey(suffix string) auth.Store {
	key := s.key
	if key == "" {
		key = auth.DefaultKey
	}
	if suffix = sanitizeKey(suffix); suffix != "" {
		key += "-" + suffix
	}

	if s.kind == config.CredentialStoreRedis {
		return cache.NewCredentialStore(s.redis, key)
	}
	return auth.NewFileStore(s.dir, key)
}

var keyReplacer = strings.NewReplacer("/", "_", "+", "-", ":", "_", "=", "", " ", "_")

// sanitizeKey makes SSH fingerprints ("SHA256:ab/c+d") usable as file names.
func sanitizeKey(s string) string {
	return keyReplacer.Replace(strings.TrimSpace(s))
}
