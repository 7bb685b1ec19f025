package config

import (
	"bytes"
	"fmt"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/creachadair/atomicfile"
	tmos "github.com/tendermint/tendermint/libs/os"
)

// defaultDirPerm is the default permissions used when creating directories.
const defaultDirPerm = 0700

const configHeader = `# This is a TOML config file.
# For more information, see https://github.com/toml-lang/toml

# NOTE: Any path below can be absolute (e.g. "/var/compactd/data") or
# relative to the home directory (e.g. "data"). The home directory is
# "$HOME/.compactd" by default, but could be changed via $CDHOME env variable
# or --home cmd flag.

`

// EnsureRoot creates the root, config, and data directories if they don't
// exist.
func EnsureRoot(rootDir string) error {
	for _, dir := range []string{
		rootDir,
		filepath.Join(rootDir, defaultConfigDir),
		filepath.Join(rootDir, defaultDataDir),
	} {
		if err := tmos.EnsureDir(dir, defaultDirPerm); err != nil {
			return err
		}
	}
	return nil
}

// WriteConfigFile encodes config and writes it to the config.toml of
// rootDir.
func WriteConfigFile(rootDir string, config *Config) error {
	return config.WriteToFile(filepath.Join(rootDir, defaultConfigFilePath))
}

// WriteToFile encodes the config as TOML and atomically replaces the file at
// path.
func (cfg *Config) WriteToFile(path string) error {
	var buf bytes.Buffer
	buf.WriteString(configHeader)
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	if _, err := atomicfile.WriteAll(path, &buf, 0644); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// WriteDefaultConfigFileIfNone writes the default configuration unless a
// config file already exists under rootDir.
func WriteDefaultConfigFileIfNone(rootDir string) error {
	if tmos.FileExists(filepath.Join(rootDir, defaultConfigFilePath)) {
		return nil
	}
	return WriteConfigFile(rootDir, DefaultConfig())
}

// LoadConfigFile decodes the config file at path over the defaults.
func LoadConfigFile(path string) (*Config, error) {
	cfg := DefaultConfig()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("decoding config %s: %w", path, err)
	}
	return cfg, nil
}
