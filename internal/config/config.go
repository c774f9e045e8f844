package config

import (
	"errors"
	"fmt"
	"io/ioutil"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type TelemetryConfig struct {
	LogLevel       string `yaml:"log_level"`
	OTLPEndpoint   string `yaml:"otlp_endpoint"`
	OTLPInsecure   bool   `yaml:"otlp_insecure"`
	PrometheusBind string `yaml:"prometheus_bind"`
}

type GatewayConfig struct {
	MaxMessageBytes int64 `yaml:"max_message_bytes"`
	IdleTimeoutMS   int   `yaml:"idle_timeout_ms"`
	WriteTimeoutMS  int   `yaml:"write_timeout_ms"`
}

type Config struct {
	RuntimeName string           `yaml:"runtime_name"`
	Environment string           `yaml:"environment"`
	Telemetry   TelemetryConfig  `yaml:"telemetry"`
	Gateway     GatewayConfig    `yaml:"gateway"`
	Bus         BusConfig        `yaml:"bus"`
	Presence    PresenceConfig   `yaml:"presence"`
	Artifacts   ArtifactConfig   `yaml:"artifacts"`
	ASR         ASRConfig        `yaml:"asr"`
	Translator  TranslatorConfig `yaml:"translator"`
	TTS         TTSConfig        `yaml:"tts"`
}

type BusConfig struct {
	Enabled        bool     `yaml:"enabled"`
	Embedded       bool     `yaml:"embedded"`
	Port           int      `yaml:"port"`
	Servers        []string `yaml:"servers"`
	Username       string   `yaml:"username"`
	Password       string   `yaml:"password"`
	Token          string   `yaml:"token"`
	TLSInsecure    bool     `yaml:"tls_insecure"`
	ConnectTimeout int      `yaml:"connect_timeout_ms"`
}

type PresenceConfig struct {
	Enabled           bool   `yaml:"enabled"`
	NodeID            string `yaml:"node_id"`
	HeartbeatInterval int    `yaml:"heartbeat_interval_ms"`
	HeartbeatTimeout  int    `yaml:"heartbeat_timeout_ms"`
}

type ArtifactConfig struct {
	Directory     string `yaml:"directory"`
	IndexPath     string `yaml:"index_path"`
	PublicBase    string `yaml:"public_base"`
	RetentionDays int    `yaml:"retention_days"`
	MaxArtifacts  int    `yaml:"max_artifacts"`
	VacuumOnStart bool   `yaml:"vacuum_on_start"`
}

type ASRConfig struct {
	Enabled          bool   `yaml:"enabled"`
	Bind             string `yaml:"bind"`
	Port             int    `yaml:"port"`
	DefaultLanguage  string `yaml:"default_language"`
	Command          string `yaml:"command"`
	ModelPath        string `yaml:"model_path"`
	Endpoint         string `yaml:"endpoint"`
	APIKey           string `yaml:"api_key"`
	Model            string `yaml:"model"`
	RequestTimeoutMS int    `yaml:"request_timeout_ms"`
}

type TranslatorConfig struct {
	Enabled          bool   `yaml:"enabled"`
	Bind             string `yaml:"bind"`
	Port             int    `yaml:"port"`
	Mode             string `yaml:"mode"` // pivot, direct
	PivotLanguage    string `yaml:"pivot_language"`
	CacheSize        int    `yaml:"cache_size"`
	Command          string `yaml:"command"`
	Endpoint         string `yaml:"endpoint"`
	APIKey           string `yaml:"api_key"`
	Model            string `yaml:"model"`
	RequestTimeoutMS int    `yaml:"request_timeout_ms"`
}

type TTSConfig struct {
	Enabled          bool   `yaml:"enabled"`
	Bind             string `yaml:"bind"`
	Port             int    `yaml:"port"`
	DefaultLanguage  string `yaml:"default_language"`
	Command          string `yaml:"command"`
	Endpoint         string `yaml:"endpoint"`
	APIKey           string `yaml:"api_key"`
	Model            string `yaml:"model"`
	Voice            string `yaml:"voice"`
	SampleRate       int    `yaml:"sample_rate"`
	Channels         int    `yaml:"channels"`
	RequestTimeoutMS int    `yaml:"request_timeout_ms"`
}

func Default() Config {
	return Config{
		RuntimeName: "vaani",
		Environment: "development",
		Telemetry: TelemetryConfig{
			LogLevel:       "info",
			OTLPEndpoint:   "",
			OTLPInsecure:   true,
			PrometheusBind: ":9091",
		},
		Gateway: GatewayConfig{
			MaxMessageBytes: 16 << 20,
			IdleTimeoutMS:   0,
			WriteTimeoutMS:  10000,
		},
		Bus: BusConfig{
			Enabled:        false,
			Embedded:       false,
			Port:           4222,
			Servers:        []string{"nats://localhost:4222"},
			ConnectTimeout: 2000,
		},
		Presence: PresenceConfig{
			Enabled:           false,
			NodeID:            "vaani-node-1",
			HeartbeatInterval: 2000,
			HeartbeatTimeout:  6000,
		},
		Artifacts: ArtifactConfig{
			Directory:     "./data/audio",
			IndexPath:     "./data/vaani-artifacts.db",
			PublicBase:    "/audio",
			RetentionDays: 0,
			MaxArtifacts:  0,
			VacuumOnStart: false,
		},
		ASR: ASRConfig{
			Enabled:          true,
			Bind:             "0.0.0.0",
			Port:             8001,
			DefaultLanguage:  "en",
			Model:            "whisper-1",
			RequestTimeoutMS: 30000,
		},
		Translator: TranslatorConfig{
			Enabled:          true,
			Bind:             "0.0.0.0",
			Port:             8002,
			Mode:             "pivot",
			PivotLanguage:    "english",
			CacheSize:        256,
			RequestTimeoutMS: 15000,
		},
		TTS: TTSConfig{
			Enabled:          true,
			Bind:             "0.0.0.0",
			Port:             8003,
			DefaultLanguage:  "en",
			Model:            "gpt-4o-mini-tts",
			SampleRate:       22050,
			Channels:         1,
			RequestTimeoutMS: 30000,
		},
	}
}

func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := ioutil.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return cfg, fmt.Errorf("config file not found: %w", err)
			}
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	if err := validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	overrideString(&cfg.RuntimeName, "VAANI_RUNTIME_NAME")
	overrideString(&cfg.Environment, "VAANI_RUNTIME_ENVIRONMENT")
	overrideString(&cfg.Telemetry.LogLevel, "VAANI_TELEMETRY_LOG_LEVEL")
	overrideString(&cfg.Telemetry.OTLPEndpoint, "VAANI_TELEMETRY_OTLP_ENDPOINT")
	overrideBool(&cfg.Telemetry.OTLPInsecure, "VAANI_TELEMETRY_OTLP_INSECURE")
	overrideString(&cfg.Telemetry.PrometheusBind, "VAANI_TELEMETRY_PROMETHEUS_BIND")
	overrideInt64(&cfg.Gateway.MaxMessageBytes, "VAANI_GATEWAY_MAX_MESSAGE_BYTES")
	overrideInt(&cfg.Gateway.IdleTimeoutMS, "VAANI_GATEWAY_IDLE_TIMEOUT_MS")
	overrideInt(&cfg.Gateway.WriteTimeoutMS, "VAANI_GATEWAY_WRITE_TIMEOUT_MS")
	overrideBool(&cfg.Bus.Enabled, "VAANI_BUS_ENABLED")
	overrideBool(&cfg.Bus.Embedded, "VAANI_BUS_EMBEDDED")
	overrideInt(&cfg.Bus.Port, "VAANI_BUS_PORT")
	overrideStringSlice(&cfg.Bus.Servers, "VAANI_BUS_SERVERS")
	overrideString(&cfg.Bus.Username, "VAANI_BUS_USERNAME")
	overrideString(&cfg.Bus.Password, "VAANI_BUS_PASSWORD")
	overrideString(&cfg.Bus.Token, "VAANI_BUS_TOKEN")
	overrideBool(&cfg.Bus.TLSInsecure, "VAANI_BUS_TLS_INSECURE")
	overrideInt(&cfg.Bus.ConnectTimeout, "VAANI_BUS_CONNECT_TIMEOUT_MS")
	overrideBool(&cfg.Presence.Enabled, "VAANI_PRESENCE_ENABLED")
	overrideString(&cfg.Presence.NodeID, "VAANI_PRESENCE_NODE_ID")
	overrideInt(&cfg.Presence.HeartbeatInterval, "VAANI_PRESENCE_HEARTBEAT_INTERVAL_MS")
	overrideInt(&cfg.Presence.HeartbeatTimeout, "VAANI_PRESENCE_HEARTBEAT_TIMEOUT_MS")
	overrideString(&cfg.Artifacts.Directory, "VAANI_ARTIFACTS_DIRECTORY")
	overrideString(&cfg.Artifacts.IndexPath, "VAANI_ARTIFACTS_INDEX_PATH")
	overrideString(&cfg.Artifacts.PublicBase, "VAANI_ARTIFACTS_PUBLIC_BASE")
	overrideInt(&cfg.Artifacts.RetentionDays, "VAANI_ARTIFACTS_RETENTION_DAYS")
	overrideInt(&cfg.Artifacts.MaxArtifacts, "VAANI_ARTIFACTS_MAX_ARTIFACTS")
	overrideBool(&cfg.Artifacts.VacuumOnStart, "VAANI_ARTIFACTS_VACUUM_ON_START")
	overrideBool(&cfg.ASR.Enabled, "VAANI_ASR_ENABLED")
	overrideString(&cfg.ASR.Bind, "VAANI_ASR_BIND")
	overrideInt(&cfg.ASR.Port, "VAANI_ASR_PORT")
	overrideString(&cfg.ASR.DefaultLanguage, "VAANI_ASR_DEFAULT_LANGUAGE")
	overrideString(&cfg.ASR.Command, "VAANI_ASR_COMMAND")
	overrideString(&cfg.ASR.ModelPath, "VAANI_ASR_MODEL_PATH")
	overrideString(&cfg.ASR.Endpoint, "VAANI_ASR_ENDPOINT")
	overrideString(&cfg.ASR.APIKey, "VAANI_ASR_API_KEY")
	overrideString(&cfg.ASR.Model, "VAANI_ASR_MODEL")
	overrideInt(&cfg.ASR.RequestTimeoutMS, "VAANI_ASR_REQUEST_TIMEOUT_MS")
	overrideBool(&cfg.Translator.Enabled, "VAANI_TRANSLATOR_ENABLED")
	overrideString(&cfg.Translator.Bind, "VAANI_TRANSLATOR_BIND")
	overrideInt(&cfg.Translator.Port, "VAANI_TRANSLATOR_PORT")
	overrideString(&cfg.Translator.Mode, "VAANI_TRANSLATOR_MODE")
	overrideString(&cfg.Translator.PivotLanguage, "VAANI_TRANSLATOR_PIVOT_LANGUAGE")
	overrideInt(&cfg.Translator.CacheSize, "VAANI_TRANSLATOR_CACHE_SIZE")
	overrideString(&cfg.Translator.Command, "VAANI_TRANSLATOR_COMMAND")
	overrideString(&cfg.Translator.Endpoint, "VAANI_TRANSLATOR_ENDPOINT")
	overrideString(&cfg.Translator.APIKey, "VAANI_TRANSLATOR_API_KEY")
	overrideString(&cfg.Translator.Model, "VAANI_TRANSLATOR_MODEL")
	overrideInt(&cfg.Translator.RequestTimeoutMS, "VAANI_TRANSLATOR_REQUEST_TIMEOUT_MS")
	overrideBool(&cfg.TTS.Enabled, "VAANI_TTS_ENABLED")
	overrideString(&cfg.TTS.Bind, "VAANI_TTS_BIND")
	overrideInt(&cfg.TTS.Port, "VAANI_TTS_PORT")
	overrideString(&cfg.TTS.DefaultLanguage, "VAANI_TTS_DEFAULT_LANGUAGE")
	overrideString(&cfg.TTS.Command, "VAANI_TTS_COMMAND")
	overrideString(&cfg.TTS.Endpoint, "VAANI_TTS_ENDPOINT")
	overrideString(&cfg.TTS.APIKey, "VAANI_TTS_API_KEY")
	overrideString(&cfg.TTS.Model, "VAANI_TTS_MODEL")
	overrideString(&cfg.TTS.Voice, "VAANI_TTS_VOICE")
	overrideInt(&cfg.TTS.SampleRate, "VAANI_TTS_SAMPLE_RATE")
	overrideInt(&cfg.TTS.Channels, "VAANI_TTS_CHANNELS")
	overrideInt(&cfg.TTS.RequestTimeoutMS, "VAANI_TTS_REQUEST_TIMEOUT_MS")
}

func overrideString(target *string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok && strings.TrimSpace(value) != "" {
		*target = value
	}
}

func overrideInt(target *int, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			*target = parsed
		}
	}
}

func overrideInt64(target *int64, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseInt(value, 10, 64); err == nil {
			*target = parsed
		}
	}
}

func overrideBool(target *bool, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseBool(value); err == nil {
			*target = parsed
		}
	}
}

func overrideStringSlice(target *[]string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		parts := strings.Split(value, ",")
		var trimmed []string
		for _, p := range parts {
			if s := strings.TrimSpace(p); s != "" {
				trimmed = append(trimmed, s)
			}
		}
		if len(trimmed) > 0 {
			*target = trimmed
		}
	}
}

func validate(cfg Config) error {
	if cfg.RuntimeName == "" {
		return errors.New("runtime_name must not be empty")
	}
	if !cfg.ASR.Enabled && !cfg.Translator.Enabled && !cfg.TTS.Enabled {
		return errors.New("at least one of asr, translator, tts must be enabled")
	}
	if cfg.Gateway.MaxMessageBytes <= 0 {
		return errors.New("gateway.max_message_bytes must be positive")
	}
	if cfg.Gateway.IdleTimeoutMS < 0 {
		return errors.New("gateway.idle_timeout_ms must be >= 0")
	}
	if cfg.Telemetry.PrometheusBind == "" {
		return errors.New("telemetry.prometheus_bind must not be empty")
	}
	ports := map[int]string{}
	checkPort := func(name string, port int) error {
		if port <= 0 || port > 65535 {
			return fmt.Errorf("%s.port must be between 1 and 65535", name)
		}
		if other, taken := ports[port]; taken {
			return fmt.Errorf("%s.port collides with %s.port", name, other)
		}
		ports[port] = name
		return nil
	}
	if cfg.ASR.Enabled {
		if err := checkPort("asr", cfg.ASR.Port); err != nil {
			return err
		}
		if cfg.ASR.Endpoint != "" && cfg.ASR.APIKey == "" {
			return errors.New("asr.api_key must be set when asr.endpoint is set")
		}
	}
	if cfg.Translator.Enabled {
		if err := checkPort("translator", cfg.Translator.Port); err != nil {
			return err
		}
		switch cfg.Translator.Mode {
		case "pivot", "direct":
		default:
			return errors.New("translator.mode must be one of pivot|direct")
		}
		if cfg.Translator.PivotLanguage == "" {
			return errors.New("translator.pivot_language must not be empty")
		}
		if cfg.Translator.CacheSize < 0 {
			return errors.New("translator.cache_size must be >= 0")
		}
		if cfg.Translator.Endpoint != "" && cfg.Translator.APIKey == "" {
			return errors.New("translator.api_key must be set when translator.endpoint is set")
		}
	}
	if cfg.TTS.Enabled {
		if err := checkPort("tts", cfg.TTS.Port); err != nil {
			return err
		}
		if cfg.TTS.SampleRate <= 0 {
			return errors.New("tts.sample_rate must be positive")
		}
		if cfg.TTS.Channels <= 0 {
			return errors.New("tts.channels must be positive")
		}
		if cfg.TTS.Endpoint != "" && cfg.TTS.APIKey == "" {
			return errors.New("tts.api_key must be set when tts.endpoint is set")
		}
		if cfg.Artifacts.Directory == "" {
			return errors.New("artifacts.directory must not be empty when tts is enabled")
		}
		if cfg.Artifacts.IndexPath == "" {
			return errors.New("artifacts.index_path must not be empty when tts is enabled")
		}
		if cfg.Artifacts.PublicBase == "" {
			return errors.New("artifacts.public_base must not be empty when tts is enabled")
		}
	}
	if cfg.Artifacts.RetentionDays < 0 {
		return errors.New("artifacts.retention_days must be >= 0")
	}
	if cfg.Artifacts.MaxArtifacts < 0 {
		return errors.New("artifacts.max_artifacts must be >= 0")
	}
	if cfg.Bus.Enabled {
		if cfg.Bus.Embedded {
			if cfg.Bus.Port <= 0 || cfg.Bus.Port > 65535 {
				return errors.New("bus.port must be between 1 and 65535 when embedded mode is enabled")
			}
		} else {
			if len(cfg.Bus.Servers) == 0 {
				return errors.New("bus.servers must not be empty when embedded mode is disabled")
			}
		}
	}
	if cfg.Presence.Enabled {
		if !cfg.Bus.Enabled {
			return errors.New("presence.enabled requires bus.enabled")
		}
		if cfg.Presence.NodeID == "" {
			return errors.New("presence.node_id must not be empty")
		}
		if cfg.Presence.HeartbeatInterval <= 0 {
			return errors.New("presence.heartbeat_interval_ms must be positive")
		}
		if cfg.Presence.HeartbeatTimeout <= cfg.Presence.HeartbeatInterval {
			return errors.New("presence.heartbeat_timeout_ms must be greater than heartbeat interval")
		}
	}
	return nil
}
