package types

import (
	"errors"
	"fmt"
)

// Config selects the persistence backend a Store attaches to.
type Config struct {
	Backend string `json:"backend" yaml:"backend"`
	DataDir string `json:"data_dir" yaml:"data_dir"`
}

// Supported backend names.
const (
	BackendSQLite = "sqlite"
)

// Config validation errors.
var (
	ErrBackendEmpty   = errors.New("backend must not be empty")
	ErrBackendUnknown = errors.New("unknown backend")
	ErrDataDirEmpty   = errors.New("data dir must not be empty")
)

// Validate checks that the Config names a known backend and a data
// directory for it.
func (c Config) Validate() error {
	switch c.Backend {
	case "":
		return ErrBackendEmpty
	case BackendSQLite:
	default:
		return fmt.Errorf("%w: %q", ErrBackendUnknown, c.Backend)
	}
	if c.DataDir == "" {
		return ErrDataDirEmpty
	}
	return nil
}
