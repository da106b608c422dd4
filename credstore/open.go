package credstore

import (
	"fmt"
	"strings"

	"github.com/leelynne/gbusiness-httpsig/session"
)

// Config selects and configures a backend.
type Config struct {
	Backend    string // "file", "redis" or "memory"
	Path       string // file backend
	Passphrase string // file backend, optional
	RedisAddr  string
	RedisDB    int
}

// Open returns the backend named by cfg.Backend.
func Open(cfg Config) (session.Store, error) {
	switch strings.ToLower(cfg.Backend) {
	case "", "file":
		if cfg.Path == "" {
			return nil, fmt.Errorf("credstore: file backend needs a path")
		}
		return NewFile(cfg.Path, cfg.Passphrase), nil
	case "redis":
		if cfg.RedisAddr == "" {
			return nil, fmt.Errorf("credstore: redis backend needs an address")
		}
		return NewRedis(cfg.RedisAddr, cfg.RedisDB), nil
	case "memory":
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("credstore: unknown backend %q", cfg.Backend)
	}
}
