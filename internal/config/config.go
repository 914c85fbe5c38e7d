// Package config loads the rtinode server configuration. Sources merge
// in precedence order: CLI flags override environment variables
// (RTINODE_*), which override the config file, which overrides the
// defaults. The canonical file format is the XML server config; TOML
// and YAML renderings of the same shape are accepted for operators who
// template their node configs.
package config

import (
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// Config is the merged server-node configuration.
type Config struct {
	// ServerName labels this node in server paths and log lines.
	ServerName string `mapstructure:"server_name" validate:"required" yaml:"server_name"`

	// EnableZLibCompression advertises zlib during the connect
	// handshake.
	EnableZLibCompression bool `mapstructure:"enable_zlib_compression" yaml:"enable_zlib_compression"`

	// PermitTimeRegulation is this node's time-regulation policy for
	// its subtree.
	PermitTimeRegulation bool `mapstructure:"permit_time_regulation" yaml:"permit_time_regulation"`

	// ParentServer is the URL of the parent node, empty for a root.
	ParentServer string `mapstructure:"parent_server" yaml:"parent_server"`

	// Listen is the set of URLs to accept connects on. Empty means
	// rti:// on every address.
	Listen []string `mapstructure:"listen" yaml:"listen"`

	// Logging controls log level, format and destination.
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// Admin configures the read-only inspection HTTP surface.
	Admin AdminConfig `mapstructure:"admin" yaml:"admin"`

	// Metrics configures the Prometheus scrape endpoint.
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`

	// Telemetry configures OpenTelemetry trace export.
	Telemetry TelemetryConfig `mapstructure:"telemetry" yaml:"telemetry"`

	// Profiling configures Pyroscope continuous profiling.
	Profiling ProfilingConfig `mapstructure:"profiling" yaml:"profiling"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level" validate:"omitempty,oneof=DEBUG INFO WARN ERROR debug info warn error" yaml:"level"`
	Format string `mapstructure:"format" validate:"omitempty,oneof=text json" yaml:"format"`
	Output string `mapstructure:"output" yaml:"output"`
}

type AdminConfig struct {
	Enabled       bool   `mapstructure:"enabled" yaml:"enabled"`
	ListenAddress string `mapstructure:"listen_address" validate:"required_if=Enabled true" yaml:"listen_address"`
	// JWTSecret signs the bearer tokens the admin API requires. The
	// RTI wire protocol itself carries no auth; this only guards the
	// operator surface.
	JWTSecret string `mapstructure:"jwt_secret" validate:"required_if=Enabled true" yaml:"jwt_secret"`
}

type MetricsConfig struct {
	Enabled       bool   `mapstructure:"enabled" yaml:"enabled"`
	ListenAddress string `mapstructure:"listen_address" validate:"required_if=Enabled true" yaml:"listen_address"`
}

type TelemetryConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	// Endpoint is the OTLP gRPC collector address.
	Endpoint   string  `mapstructure:"endpoint" validate:"required_if=Enabled true" yaml:"endpoint"`
	Insecure   bool    `mapstructure:"insecure" yaml:"insecure"`
	SampleRate float64 `mapstructure:"sample_rate" validate:"gte=0,lte=1" yaml:"sample_rate"`
}

type ProfilingConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	// Endpoint is the Pyroscope server URL.
	Endpoint     string   `mapstructure:"endpoint" validate:"required_if=Enabled true" yaml:"endpoint"`
	ProfileTypes []string `mapstructure:"profile_types" yaml:"profile_types"`
}

// Default returns the configuration a bare `rtinode` runs with.
func Default() Config {
	return Config{
		ServerName:           "rtinode",
		PermitTimeRegulation: true,
		Logging: LoggingConfig{
			Level:  "INFO",
			Format: "text",
			Output: "stderr",
		},
		Telemetry: TelemetryConfig{
			Endpoint:   "localhost:4317",
			Insecure:   true,
			SampleRate: 1.0,
		},
		Profiling: ProfilingConfig{
			Endpoint:     "http://localhost:4040",
			ProfileTypes: []string{"cpu", "inuse_space", "goroutines"},
		},
	}
}

// xmlConfig mirrors the XML server-config document:
//
//	<rtinode>
//	  <enableZLibCompression>true</enableZLibCompression>
//	  <permitTimeRegulation>false</permitTimeRegulation>
//	  <parentServer url="rti://parent:14321"/>
//	  <listen url="rti://0.0.0.0:14321"/>
//	  <listen url="pipe:///var/run/rtinode.sock"/>
//	</rtinode>
type xmlConfig struct {
	XMLName               xml.Name `xml:"rtinode"`
	EnableZLibCompression *bool    `xml:"enableZLibCompression"`
	PermitTimeRegulation  *bool    `xml:"permitTimeRegulation"`
	ParentServer          *xmlURL  `xml:"parentServer"`
	Listen                []xmlURL `xml:"listen"`
}

type xmlURL struct {
	URL string `xml:"url,attr"`
}

// applyXML folds a parsed XML document over cfg.
func applyXML(cfg *Config, doc xmlConfig) {
	if doc.EnableZLibCompression != nil {
		cfg.EnableZLibCompression = *doc.EnableZLibCompression
	}
	if doc.PermitTimeRegulation != nil {
		cfg.PermitTimeRegulation = *doc.PermitTimeRegulation
	}
	if doc.ParentServer != nil {
		cfg.ParentServer = doc.ParentServer.URL
	}
	for _, l := range doc.Listen {
		cfg.Listen = append(cfg.Listen, l.URL)
	}
}

// parseXML reads the XML server config from data.
func parseXML(data []byte) (xmlConfig, error) {
	var doc xmlConfig
	if err := xml.Unmarshal(data, &doc); err != nil {
		return xmlConfig{}, fmt.Errorf("parse server config XML: %w", err)
	}
	return doc, nil
}

// Load merges defaults, the optional config file (or literal XML
// string), and RTINODE_* environment variables, then validates the
// result. pathOrXML may be empty, a file path, or a literal XML
// document starting with '<'.
func Load(pathOrXML string) (Config, error) {
	cfg := Default()

	if strings.HasPrefix(strings.TrimSpace(pathOrXML), "<") {
		doc, err := parseXML([]byte(pathOrXML))
		if err != nil {
			return Config{}, err
		}
		applyXML(&cfg, doc)
	} else if pathOrXML != "" {
		switch ext := strings.ToLower(filepath.Ext(pathOrXML)); ext {
		case ".xml":
			data, err := os.ReadFile(pathOrXML)
			if err != nil {
				return Config{}, fmt.Errorf("read server config: %w", err)
			}
			doc, err := parseXML(data)
			if err != nil {
				return Config{}, err
			}
			applyXML(&cfg, doc)
		case ".toml", ".yaml", ".yml":
			if err := loadViperFile(&cfg, pathOrXML); err != nil {
				return Config{}, err
			}
		default:
			return Config{}, fmt.Errorf("unsupported config format %q", pathOrXML)
		}
	}

	applyEnv(&cfg)
	return cfg, Validate(cfg)
}

// loadViperFile merges a TOML or YAML file over cfg with the same
// key names the mapstructure tags declare.
func loadViperFile(cfg *Config, path string) error {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("read server config: %w", err)
	}
	decoderConfig := &mapstructure.DecoderConfig{
		Result:           cfg,
		WeaklyTypedInput: true,
		TagName:          "mapstructure",
	}
	decoder, err := mapstructure.NewDecoder(decoderConfig)
	if err != nil {
		return err
	}
	if err := decoder.Decode(v.AllSettings()); err != nil {
		return fmt.Errorf("decode server config: %w", err)
	}
	return nil
}

// applyEnv folds RTINODE_* variables over cfg.
func applyEnv(cfg *Config) {
	if v, ok := os.LookupEnv("RTINODE_SERVER_NAME"); ok {
		cfg.ServerName = v
	}
	if v, ok := os.LookupEnv("RTINODE_PARENT_SERVER"); ok {
		cfg.ParentServer = v
	}
	if v, ok := os.LookupEnv("RTINODE_PERMIT_TIME_REGULATION"); ok {
		cfg.PermitTimeRegulation = v == "true" || v == "1"
	}
	if v, ok := os.LookupEnv("RTINODE_ENABLE_ZLIB_COMPRESSION"); ok {
		cfg.EnableZLibCompression = v == "true" || v == "1"
	}
	if v, ok := os.LookupEnv("RTINODE_LOG_LEVEL"); ok {
		cfg.Logging.Level = v
	}
	if v, ok := os.LookupEnv("RTINODE_LISTEN"); ok {
		cfg.Listen = strings.Split(v, ",")
	}
}

// Validate checks the merged configuration.
func Validate(cfg Config) error {
	validate := validator.New()
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}
