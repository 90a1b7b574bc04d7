package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	WorkDir string `toml:"work_dir"`
	LogDir  string `toml:"log_dir"`
	APIBind string `toml:"api_bind"`
}

// Broker contains the RabbitMQ connection and retry topology settings.
type Broker struct {
	URL string `toml:"url"`
	// HeartbeatSeconds must outlast the longest single-task recognition or the
	// server will drop the connection mid-task.
	HeartbeatSeconds      int `toml:"heartbeat_seconds"`
	ReconnectDelaySeconds int `toml:"reconnect_delay_seconds"`
	RetryDelayMS          int `toml:"retry_delay_ms"`
	MaxRetries            int `toml:"max_retries"`
}

// Storage contains the MinIO/S3 object storage settings.
type Storage struct {
	Endpoint  string `toml:"endpoint"`
	AccessKey string `toml:"access_key"`
	SecretKey string `toml:"secret_key"`
	Bucket    string `toml:"bucket"`
	UseSSL    bool   `toml:"use_ssl"`
}

// Redis contains the job-status cache settings.
type Redis struct {
	URL string `toml:"url"`
}

// Recognizer contains speech recognition backend settings.
type Recognizer struct {
	// Backend selects the recognition engine: "whisper_cli" or "openai".
	Backend string `toml:"backend"`
	// Mode selects per-interval invocation ("per_segment") or a single
	// whole-file pass using the model's own segmentation ("whole_file").
	Mode            string `toml:"mode"`
	Model           string `toml:"model"`
	Binary          string `toml:"binary"`
	BeamSize        int    `toml:"beam_size"`
	DefaultLanguage string `toml:"default_language"`
	// InitialPrompt seeds domain vocabulary (product names, jargon) to guide
	// recognition.
	InitialPrompt string `toml:"initial_prompt"`
	// SentenceSplitChars is the block length above which recognized text is
	// re-split into sentence-bounded segments.
	SentenceSplitChars int    `toml:"sentence_split_chars"`
	OpenAIAPIKey       string `toml:"openai_api_key"`
	OpenAIBaseURL      string `toml:"openai_base_url"`
}

// VAD contains voice-activity detection and interval merge thresholds.
type VAD struct {
	// Aggressiveness is the WebRTC VAD mode, 0 (quality) to 3 (aggressive).
	Aggressiveness    int     `toml:"aggressiveness"`
	FrameMS           int     `toml:"frame_ms"`
	MinSpeechMS       int     `toml:"min_speech_ms"`
	MinSilenceMS      int     `toml:"min_silence_ms"`
	SpeechPadMS       int     `toml:"speech_pad_ms"`
	MaxGapSeconds     float64 `toml:"max_gap_seconds"`
	MaxSegmentSeconds float64 `toml:"max_segment_seconds"`
}

// Callback contains result delivery settings.
type Callback struct {
	TimeoutSeconds int `toml:"timeout_seconds"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for the scribe worker.
//
// Sections by subsystem:
//   - Paths: working/log directories and API bind address
//   - Broker: RabbitMQ connection, heartbeat, retry topology
//   - Storage: MinIO object storage holding source recordings
//   - Redis: batch job status cache
//   - Recognizer: speech recognition backend and invocation mode
//   - VAD: voice-activity detection and interval merge thresholds
//   - Callback: result delivery timeouts
//   - Logging: log format and level
type Config struct {
	Paths      Paths      `toml:"paths"`
	Broker     Broker     `toml:"broker"`
	Storage    Storage    `toml:"storage"`
	Redis      Redis      `toml:"redis"`
	Recognizer Recognizer `toml:"recognizer"`
	VAD        VAD        `toml:"vad"`
	Callback   Callback   `toml:"callback"`
	Logging    Logging    `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/scribe/config.toml")
}

// Load locates, parses, and validates a configuration file. Environment
// variables (optionally from a .env file) override file values. The returned
// config has all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	// Best-effort: a missing .env file is the normal case.
	_ = godotenv.Load()

	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("scribe.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

func (c *Config) applyEnvOverrides() {
	overrides := map[string]*string{
		"SCRIBE_BROKER_URL":       &c.Broker.URL,
		"SCRIBE_REDIS_URL":        &c.Redis.URL,
		"MINIO_ENDPOINT":          &c.Storage.Endpoint,
		"MINIO_ACCESS_KEY":        &c.Storage.AccessKey,
		"MINIO_SECRET_KEY":        &c.Storage.SecretKey,
		"MINIO_BUCKET":            &c.Storage.Bucket,
		"OPENAI_API_KEY":          &c.Recognizer.OpenAIAPIKey,
		"SCRIBE_DEFAULT_LANGUAGE": &c.Recognizer.DefaultLanguage,
	}
	for key, target := range overrides {
		if value := os.Getenv(key); value != "" {
			*target = value
		}
	}
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.WorkDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// SampleConfig returns the embedded sample configuration file contents.
func SampleConfig() string {
	return sampleConfig
}
