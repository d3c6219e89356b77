package config

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	Paths    PathsConfig   `mapstructure:"paths"`
	Runtime  RuntimeConfig `mapstructure:"runtime"`
	Server   ServerConfig  `mapstructure:"server"`
	Synth    SynthConfig   `mapstructure:"synth"`
	LogLevel string        `mapstructure:"log_level"`
}

// PathsConfig locates the trained weight table on disk.
type PathsConfig struct {
	WeightTablePath string `mapstructure:"weight_table_path"`
}

// RuntimeConfig selects and configures the frame-network backend.
type RuntimeConfig struct {
	Backend        string `mapstructure:"backend"` // native|onnx
	ORTLibraryPath string `mapstructure:"ort_library_path"`
	ORTModelPath   string `mapstructure:"ort_model_path"`
}

type ServerConfig struct {
	ListenAddr      string `mapstructure:"listen_addr"`
	Workers         int    `mapstructure:"workers"`
	ShutdownTimeout int    `mapstructure:"shutdown_timeout_secs"`
	RequestTimeout  int    `mapstructure:"request_timeout_secs"`
}

// SynthConfig holds per-stream vocoder options, mirroring vocoder.StateOption.
type SynthConfig struct {
	SampleRate       int     `mapstructure:"sample_rate"`
	Seed             int64   `mapstructure:"seed"`
	DLPC             bool    `mapstructure:"dlpc"`
	GaussTemperature float64 `mapstructure:"gauss_temperature"`
	Convert          bool    `mapstructure:"convert"`
}

type LoadOptions struct {
	Cmd        flagBinder
	ConfigFile string
	Defaults   Config
}

type flagBinder interface {
	Flags() *pflag.FlagSet
}

func DefaultConfig() Config {
	return Config{
		Paths: PathsConfig{
			WeightTablePath: "models/mwdlp10.safetensors",
		},
		Runtime: RuntimeConfig{
			Backend:        BackendNative,
			ORTLibraryPath: "",
			ORTModelPath:   "models/frame_network.onnx",
		},
		Server: ServerConfig{
			ListenAddr:      ":8090",
			Workers:         2,
			ShutdownTimeout: 30,
			RequestTimeout:  60,
		},
		Synth: SynthConfig{
			SampleRate:       24000,
			Seed:             0,
			DLPC:             true,
			GaussTemperature: 0.25,
			Convert:          false,
		},
		LogLevel: "info",
	}
}

func RegisterFlags(fs *pflag.FlagSet, defaults Config) {
	fs.String("paths-weight-table", defaults.Paths.WeightTablePath, "Path to the MWDLP10 safetensors weight table")
	fs.String("backend", defaults.Runtime.Backend, "Frame network backend (native|onnx)")
	fs.String("runtime-ort-library-path", defaults.Runtime.ORTLibraryPath, "Path to ONNX Runtime shared library")
	fs.String("runtime-ort-model-path", defaults.Runtime.ORTModelPath, "Path to the exported frame network ONNX graph")
	fs.String("server-listen-addr", defaults.Server.ListenAddr, "HTTP listen address")
	fs.Int("workers", defaults.Server.Workers, "Max concurrent synthesis streams for the serve command")
	fs.Int("shutdown-timeout", defaults.Server.ShutdownTimeout, "Graceful shutdown drain timeout in seconds")
	fs.Int("request-timeout", defaults.Server.RequestTimeout, "Per-stream synthesis timeout in seconds")
	fs.Int("sample-rate", defaults.Synth.SampleRate, "Output PCM sample rate")
	fs.Int64("seed", defaults.Synth.Seed, "RNG seed for sampling (0 picks a fresh seed per stream)")
	fs.Bool("dlpc", defaults.Synth.DLPC, "Enable data-driven linear prediction correction")
	fs.Float64("gauss-temperature", defaults.Synth.GaussTemperature, "Gaussian sampler temperature (no synthesis stage draws Gaussian noise, so output does not depend on it)")
	fs.Bool("convert", defaults.Synth.Convert, "Run the CycleVAE voice-conversion front-end before synthesis")
	fs.String("log-level", defaults.LogLevel, "Log level (debug|info|warn|error)")
}

func Load(opts LoadOptions) (Config, error) {
	v := viper.New()

	setDefaults(v, opts.Defaults)
	if opts.Cmd != nil {
		if err := v.BindPFlags(opts.Cmd.Flags()); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}
	registerAliases(v)

	v.SetEnvPrefix("MWDLP")
	replacer := strings.NewReplacer("-", "_", ".", "_", "__", "_")
	v.SetEnvKeyReplacer(replacer)
	if err := v.BindEnv("runtime.ort_library_path", "MWDLP_ORT_LIB", "ORT_LIBRARY_PATH"); err != nil {
		return Config{}, fmt.Errorf("bind ort env vars: %w", err)
	}
	v.AutomaticEnv()

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	} else {
		v.SetConfigName("mwdlp")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}

	backend, err := NormalizeBackend(cfg.Runtime.Backend)
	if err != nil {
		return Config{}, err
	}
	cfg.Runtime.Backend = backend

	return cfg, nil
}

func setDefaults(v *viper.Viper, c Config) {
	v.SetDefault("paths.weight_table_path", c.Paths.WeightTablePath)
	v.SetDefault("runtime.backend", c.Runtime.Backend)
	v.SetDefault("runtime.ort_library_path", c.Runtime.ORTLibraryPath)
	v.SetDefault("runtime.ort_model_path", c.Runtime.ORTModelPath)
	v.SetDefault("server.listen_addr", c.Server.ListenAddr)
	v.SetDefault("server.workers", c.Server.Workers)
	v.SetDefault("server.shutdown_timeout_secs", c.Server.ShutdownTimeout)
	v.SetDefault("server.request_timeout_secs", c.Server.RequestTimeout)
	v.SetDefault("synth.sample_rate", c.Synth.SampleRate)
	v.SetDefault("synth.seed", c.Synth.Seed)
	v.SetDefault("synth.dlpc", c.Synth.DLPC)
	v.SetDefault("synth.gauss_temperature", c.Synth.GaussTemperature)
	v.SetDefault("synth.convert", c.Synth.Convert)
	v.SetDefault("log_level", c.LogLevel)
}

func registerAliases(v *viper.Viper) {
	v.RegisterAlias("paths.weight_table_path", "paths-weight-table")
	v.RegisterAlias("runtime.backend", "backend")
	v.RegisterAlias("runtime.ort_library_path", "runtime-ort-library-path")
	v.RegisterAlias("runtime.ort_model_path", "runtime-ort-model-path")
	v.RegisterAlias("server.listen_addr", "server-listen-addr")
	v.RegisterAlias("server.workers", "workers")
	v.RegisterAlias("server.shutdown_timeout_secs", "shutdown-timeout")
	v.RegisterAlias("server.request_timeout_secs", "request-timeout")
	v.RegisterAlias("synth.sample_rate", "sample-rate")
	v.RegisterAlias("synth.seed", "seed")
	v.RegisterAlias("synth.dlpc", "dlpc")
	v.RegisterAlias("synth.gauss_temperature", "gauss-temperature")
	v.RegisterAlias("synth.convert", "convert")
	v.RegisterAlias("log_level", "log-level")
}
