package config

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/compactchain/compactd/libs/log"
)

// NOTE: libs/cli must know to look in the config dir!
var (
	DefaultCompactdDir = ".compactd"
	defaultConfigDir   = "config"
	defaultDataDir     = "data"

	defaultConfigFileName = "config.toml"

	defaultConfigFilePath = filepath.Join(defaultConfigDir, defaultConfigFileName)
)

// Config defines the top level configuration for a compactd node
type Config struct {
	// Top level options use an anonymous struct
	BaseConfig `mapstructure:",squash"`

	// Options for services
	ABCI            *ABCIConfig            `mapstructure:"abci" toml:"abci"`
	GRPC            *GRPCConfig            `mapstructure:"grpc" toml:"grpc"`
	Consensus       *ConsensusConfig       `mapstructure:"consensus" toml:"consensus"`
	Instrumentation *InstrumentationConfig `mapstructure:"instrumentation" toml:"instrumentation"`
}

// DefaultConfig returns a default configuration for a compactd node
func DefaultConfig() *Config {
	return &Config{
		BaseConfig:      DefaultBaseConfig(),
		ABCI:            DefaultABCIConfig(),
		GRPC:            DefaultGRPCConfig(),
		Consensus:       DefaultConsensusConfig(),
		Instrumentation: DefaultInstrumentationConfig(),
	}
}

// TestConfig returns a configuration that can be used for testing
func TestConfig() *Config {
	return &Config{
		BaseConfig:      TestBaseConfig(),
		ABCI:            TestABCIConfig(),
		GRPC:            TestGRPCConfig(),
		Consensus:       DefaultConsensusConfig(),
		Instrumentation: DefaultInstrumentationConfig(),
	}
}

// SetRoot sets the RootDir for all Config structs
func (cfg *Config) SetRoot(root string) *Config {
	cfg.BaseConfig.RootDir = root
	return cfg
}

// ValidateBasic performs basic validation (checking param bounds, etc.) and
// returns an error if any check fails.
func (cfg *Config) ValidateBasic() error {
	if err := cfg.BaseConfig.ValidateBasic(); err != nil {
		return err
	}
	if err := cfg.ABCI.ValidateBasic(); err != nil {
		return fmt.Errorf("error in [abci] section: %w", err)
	}
	if err := cfg.GRPC.ValidateBasic(); err != nil {
		return fmt.Errorf("error in [grpc] section: %w", err)
	}
	if err := cfg.Consensus.ValidateBasic(); err != nil {
		return fmt.Errorf("error in [consensus] section: %w", err)
	}
	if err := cfg.Instrumentation.ValidateBasic(); err != nil {
		return fmt.Errorf("error in [instrumentation] section: %w", err)
	}
	return nil
}

//-----------------------------------------------------------------------------
// BaseConfig

// BaseConfig defines the base configuration for a compactd node
type BaseConfig struct {
	// The root directory for all data.
	// This should be set in viper so it can unmarshal into this struct
	RootDir string `mapstructure:"home" toml:"-"`

	// Database backend: goleveldb | cleveldb | boltdb | rocksdb | badgerdb | memdb
	// * goleveldb (github.com/syndtr/goleveldb - most popular implementation)
	//   - pure go
	//   - stable
	// * memdb
	//   - in-memory, nothing survives a restart. Testing only.
	DBBackend string `mapstructure:"db_backend" toml:"db_backend"`

	// Database directory
	DBPath string `mapstructure:"db_dir" toml:"db_dir"`

	// Output level for logging
	LogLevel string `mapstructure:"log_level" toml:"log_level"`

	// Output format: 'plain' (colored text) or 'json'
	LogFormat string `mapstructure:"log_format" toml:"log_format"`
}

// DefaultBaseConfig returns a default base configuration for a compactd node
func DefaultBaseConfig() BaseConfig {
	return BaseConfig{
		DBBackend: "goleveldb",
		DBPath:    defaultDataDir,
		LogLevel:  log.LogLevelInfo,
		LogFormat: log.LogFormatPlain,
	}
}

// TestBaseConfig returns a base configuration for testing a compactd node
func TestBaseConfig() BaseConfig {
	cfg := DefaultBaseConfig()
	cfg.DBBackend = "memdb"
	cfg.LogLevel = log.LogLevelDebug
	return cfg
}

// DBDir returns the full path to the database directory
func (cfg BaseConfig) DBDir() string {
	return rootify(cfg.DBPath, cfg.RootDir)
}

// ConfigFile returns the full path to the config.toml file
func (cfg BaseConfig) ConfigFile() string {
	return rootify(defaultConfigFilePath, cfg.RootDir)
}

// ValidateBasic performs basic validation (checking param bounds, etc.) and
// returns an error if any check fails.
func (cfg BaseConfig) ValidateBasic() error {
	switch cfg.LogFormat {
	case log.LogFormatPlain, log.LogFormatText, log.LogFormatJSON:
	default:
		return errors.New("unknown log format (must be 'plain', 'text' or 'json')")
	}
	switch cfg.LogLevel {
	case log.LogLevelDebug, log.LogLevelInfo, log.LogLevelWarn, log.LogLevelError:
	default:
		return fmt.Errorf("unknown log level %q", cfg.LogLevel)
	}
	if cfg.DBBackend == "" {
		return errors.New("db_backend can't be empty")
	}
	return nil
}

//-----------------------------------------------------------------------------
// ABCIConfig

// ABCIConfig defines the configuration of the connection to the consensus
// engine.
type ABCIConfig struct {
	// TCP or UNIX socket address the ABCI server listens on
	ListenAddress string `mapstructure:"laddr" toml:"laddr"`

	// Transport protocol used by the consensus engine: socket | grpc
	Transport string `mapstructure:"transport" toml:"transport"`
}

// DefaultABCIConfig returns a default configuration for the ABCI server
func DefaultABCIConfig() *ABCIConfig {
	return &ABCIConfig{
		ListenAddress: "tcp://127.0.0.1:26658",
		Transport:     "socket",
	}
}

// TestABCIConfig returns a configuration for testing the ABCI server
func TestABCIConfig() *ABCIConfig {
	cfg := DefaultABCIConfig()
	cfg.ListenAddress = "tcp://127.0.0.1:36658"
	return cfg
}

// ValidateBasic performs basic validation.
func (cfg *ABCIConfig) ValidateBasic() error {
	if cfg.ListenAddress == "" {
		return errors.New("laddr can't be empty")
	}
	switch cfg.Transport {
	case "socket", "grpc":
		return nil
	default:
		return fmt.Errorf("unknown transport %q (must be 'socket' or 'grpc')", cfg.Transport)
	}
}

//-----------------------------------------------------------------------------
// GRPCConfig

// GRPCConfig defines the configuration of the light client gRPC server.
type GRPCConfig struct {
	// TCP or UNIX socket address for the gRPC server to listen on
	ListenAddress string `mapstructure:"laddr" toml:"laddr"`

	// Maximum number of simultaneous connections.
	// 0 - unlimited.
	MaxOpenConnections int `mapstructure:"max_open_connections" toml:"max_open_connections"`
}

// DefaultGRPCConfig returns a default configuration for the gRPC server
func DefaultGRPCConfig() *GRPCConfig {
	return &GRPCConfig{
		ListenAddress:      "tcp://127.0.0.1:8080",
		MaxOpenConnections: 0,
	}
}

// TestGRPCConfig returns a configuration for testing the gRPC server
func TestGRPCConfig() *GRPCConfig {
	cfg := DefaultGRPCConfig()
	cfg.ListenAddress = "tcp://127.0.0.1:36680"
	return cfg
}

// ValidateBasic performs basic validation.
func (cfg *GRPCConfig) ValidateBasic() error {
	if cfg.ListenAddress == "" {
		return errors.New("laddr can't be empty")
	}
	if cfg.MaxOpenConnections < 0 {
		return errors.New("max_open_connections can't be negative")
	}
	return nil
}

//-----------------------------------------------------------------------------
// ConsensusConfig

// ConsensusConfig defines the configuration of the consensus driver.
type ConsensusConfig struct {
	// Number of consensus requests that may wait behind the one being
	// applied.
	QueueSize int `mapstructure:"queue_size" toml:"queue_size"`
}

// DefaultConsensusConfig returns a default configuration for the consensus
// driver
func DefaultConsensusConfig() *ConsensusConfig {
	return &ConsensusConfig{QueueSize: 1}
}

// ValidateBasic performs basic validation.
func (cfg *ConsensusConfig) ValidateBasic() error {
	if cfg.QueueSize < 0 {
		return errors.New("queue_size can't be negative")
	}
	return nil
}

//-----------------------------------------------------------------------------
// InstrumentationConfig

// InstrumentationConfig defines the configuration for metrics reporting.
type InstrumentationConfig struct {
	// When true, Prometheus metrics are served under /metrics on
	// PrometheusListenAddr.
	// Check out the documentation for the list of available metrics.
	Prometheus bool `mapstructure:"prometheus" toml:"prometheus"`

	// Address to listen for Prometheus collector(s) connections.
	PrometheusListenAddr string `mapstructure:"prometheus_listen_addr" toml:"prometheus_listen_addr"`

	// Maximum number of simultaneous /metrics requests.
	// 0 - unlimited.
	MaxOpenConnections int `mapstructure:"max_open_connections" toml:"max_open_connections"`

	// Instrumentation namespace.
	Namespace string `mapstructure:"namespace" toml:"namespace"`
}

// DefaultInstrumentationConfig returns a default configuration for metrics
// reporting.
func DefaultInstrumentationConfig() *InstrumentationConfig {
	return &InstrumentationConfig{
		Prometheus:           false,
		PrometheusListenAddr: ":26660",
		MaxOpenConnections:   3,
		Namespace:            "compactd",
	}
}

// ValidateBasic performs basic validation (checking param bounds, etc.) and
// returns an error if any check fails.
func (cfg *InstrumentationConfig) ValidateBasic() error {
	if cfg.MaxOpenConnections < 0 {
		return errors.New("max_open_connections can't be negative")
	}
	if cfg.Prometheus && cfg.PrometheusListenAddr == "" {
		return errors.New("prometheus_listen_addr can't be empty when prometheus is enabled")
	}
	return nil
}

//-----------------------------------------------------------------------------
// Utils

// helper function to make config creation independent of root dir
func rootify(path, root string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(root, path)
}
