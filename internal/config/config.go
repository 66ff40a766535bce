package config

import (
	_ "embed"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kozaktomas/facesync/internal/constants"
)

//go:embed curation.yaml
var curationYAML []byte

const defaultDataDir = "./data"

type Config struct {
	Immich     ImmichConfig
	DoubleTake DoubleTakeConfig
	Trainer    TrainerConfig
	Embedding  EmbeddingConfig
	Sync       SyncConfig
	Curation   CurationConfig
	HTTP       HTTPConfig
	MQTT       MQTTConfig
	Web        WebConfig
	Log        LogConfig
}

type ImmichConfig struct {
	URL    string
	APIKey string
}

type DoubleTakeConfig struct {
	URL    string
	APIKey string
}

type TrainerConfig struct {
	Dir       string // file-drop directory, used when no Double Take URL is configured
	ReloadURL string // optional webhook notified after a run wrote new faces
}

type EmbeddingConfig struct {
	URL string // face embedding/landmark backend; curation is disabled when empty
}

type SyncConfig struct {
	SkipExisting bool
	PerPersonCap int // 0 means every face the catalog returns
	DataDir      string
	StateFile    string
	Interval     time.Duration // 0 disables the periodic trigger
}

type CurationWeights struct {
	Clarity  float64 `yaml:"clarity"`
	Frontal  float64 `yaml:"frontal"`
	Lighting float64 `yaml:"lighting"`
}

type CurationConfig struct {
	Weights           CurationWeights `yaml:"weights"`
	K                 int             `yaml:"k"`
	MaxCandidates     int             `yaml:"max_candidates"`
	DistanceThreshold float64         `yaml:"distance_threshold"`
	CacheTTL          time.Duration   `yaml:"cache_ttl"`
}

type HTTPConfig struct {
	Timeout      time.Duration
	MaxRetries   int
	RetryBackoff time.Duration
}

type MQTTConfig struct {
	Host        string
	Port        int
	Username    string
	Password    string
	TopicPrefix string
	ClientID    string
}

// Enabled reports whether an MQTT broker is configured.
func (c *MQTTConfig) Enabled() bool {
	return c.Host != ""
}

// BrokerURL returns the paho broker address, e.g. tcp://mqtt:1883.
func (c *MQTTConfig) BrokerURL() string {
	if strings.Contains(c.Host, "://") {
		return c.Host
	}
	return "tcp://" + c.Host + ":" + strconv.Itoa(c.Port)
}

type WebConfig struct {
	Host           string
	Port           int
	AllowedOrigins string // comma-separated CORS whitelist
}

type LogConfig struct {
	Level  string
	Format string
}

// envInt reads an environment variable and parses it as a non-negative integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n >= 0 {
		return n
	}
	return defaultVal
}

func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f >= 0 {
		return f
	}
	return defaultVal
}

func envBool(key string, defaultVal bool) bool {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if b, err := strconv.ParseBool(s); err == nil {
		return b
	}
	return defaultVal
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if d, err := time.ParseDuration(s); err == nil && d >= 0 {
		return d
	}
	return defaultVal
}

func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

// defaultCuration parses the embedded curation policy.
func defaultCuration() CurationConfig {
	var raw struct {
		Weights           CurationWeights `yaml:"weights"`
		K                 int             `yaml:"k"`
		MaxCandidates     int             `yaml:"max_candidates"`
		DistanceThreshold float64         `yaml:"distance_threshold"`
		CacheTTL          string          `yaml:"cache_ttl"`
	}
	if err := yaml.Unmarshal(curationYAML, &raw); err != nil {
		// This is an embedded file so this error should never happen in practice
		panic("failed to unmarshal embedded curation.yaml: " + err.Error())
	}
	ttl, err := time.ParseDuration(raw.CacheTTL)
	if err != nil {
		panic("invalid cache_ttl in embedded curation.yaml: " + err.Error())
	}
	return CurationConfig{
		Weights:           raw.Weights,
		K:                 raw.K,
		MaxCandidates:     raw.MaxCandidates,
		DistanceThreshold: raw.DistanceThreshold,
		CacheTTL:          ttl,
	}
}

func Load() *Config {
	curation := defaultCuration()
	curation.K = envInt("CURATION_K", curation.K)
	curation.MaxCandidates = envInt("CURATION_MAX_CANDIDATES", curation.MaxCandidates)
	curation.DistanceThreshold = envFloat("CURATION_DISTANCE_THRESHOLD", curation.DistanceThreshold)
	curation.CacheTTL = envDuration("CURATION_CACHE_TTL", curation.CacheTTL)
	curation.Weights.Clarity = envFloat("CURATION_WEIGHT_CLARITY", curation.Weights.Clarity)
	curation.Weights.Frontal = envFloat("CURATION_WEIGHT_FRONTAL", curation.Weights.Frontal)
	curation.Weights.Lighting = envFloat("CURATION_WEIGHT_LIGHTING", curation.Weights.Lighting)

	dataDir := envString("DATA_DIR", defaultDataDir)

	return &Config{
		Immich: ImmichConfig{
			URL:    strings.TrimSuffix(os.Getenv("IMMICH_API_URL"), "/"),
			APIKey: os.Getenv("IMMICH_API_KEY"),
		},
		DoubleTake: DoubleTakeConfig{
			URL:    strings.TrimSuffix(os.Getenv("DOUBLETAKE_API_URL"), "/"),
			APIKey: os.Getenv("DOUBLETAKE_API_KEY"),
		},
		Trainer: TrainerConfig{
			Dir:       os.Getenv("TRAIN_DIR"),
			ReloadURL: os.Getenv("RELOAD_URL"),
		},
		Embedding: EmbeddingConfig{
			URL: os.Getenv("EMBEDDING_URL"),
		},
		Sync: SyncConfig{
			SkipExisting: envBool("SKIP_EXISTING_FACES", true),
			PerPersonCap: envInt("MAX_FACES_PER_PERSON", 0),
			DataDir:      dataDir,
			StateFile:    envString("STATE_FILE", filepath.Join(dataDir, constants.StateFileName)),
			Interval:     envDuration("SYNC_INTERVAL", 0),
		},
		Curation: curation,
		HTTP: HTTPConfig{
			Timeout:      envDuration("HTTP_TIMEOUT", 30*time.Second),
			MaxRetries:   envInt("HTTP_MAX_RETRIES", 1),
			RetryBackoff: envDuration("HTTP_RETRY_BACKOFF", 500*time.Millisecond),
		},
		MQTT: MQTTConfig{
			Host:        os.Getenv("MQTT_HOST"),
			Port:        envInt("MQTT_PORT", 1883),
			Username:    os.Getenv("MQTT_USERNAME"),
			Password:    os.Getenv("MQTT_PASSWORD"),
			TopicPrefix: strings.TrimSuffix(envString("MQTT_TOPIC_PREFIX", "facesync"), "/"),
			ClientID:    envString("MQTT_CLIENT_ID", "facesync"),
		},
		Web: WebConfig{
			Host:           envString("WEB_HOST", "0.0.0.0"),
			Port:           envInt("WEB_PORT", 8080),
			AllowedOrigins: os.Getenv("WEB_ALLOWED_ORIGINS"),
		},
		Log: LogConfig{
			Level:  envString("LOG_LEVEL", "info"),
			Format: os.Getenv("LOG_FORMAT"),
		},
	}
}

// Validate checks that the variables needed to run a sync are present.
func (c *Config) Validate() error {
	var missing []string
	if c.Immich.URL == "" {
		missing = append(missing, "IMMICH_API_URL")
	}
	if c.Immich.APIKey == "" {
		missing = append(missing, "IMMICH_API_KEY")
	}
	if c.DoubleTake.URL == "" && c.Trainer.Dir == "" {
		missing = append(missing, "DOUBLETAKE_API_URL (or TRAIN_DIR)")
	}
	if len(missing) > 0 {
		return errors.New("missing required environment variables: " + strings.Join(missing, ", "))
	}
	if c.Curation.K <= 0 {
		return errors.New("CURATION_K must be positive")
	}
	return nil
}

// ValidateCatalog checks only the catalog settings (enough for curation).
func (c *Config) ValidateCatalog() error {
	if c.Immich.URL == "" || c.Immich.APIKey == "" {
		return errors.New("IMMICH_API_URL and IMMICH_API_KEY environment variables are required")
	}
	return nil
}
