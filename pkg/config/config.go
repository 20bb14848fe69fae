package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the application configuration.
type Config struct {
	LLM        LLMConfig        `yaml:"llm"`
	TTS        TTSConfig        `yaml:"tts"`
	Generation GenerationConfig `yaml:"generation"`
	Retry      RetryConfig      `yaml:"retry"`
	Audio      AudioConfig      `yaml:"audio"`
	Log        LogConfig        `yaml:"log"`
	DB         DBConfig         `yaml:"db"`
	Server     ServerConfig     `yaml:"server"`
}

// LLMConfig holds settings for the Large Language Model provider.
type LLMConfig struct {
	Provider string            `yaml:"provider"` // "gemini"
	Key      string            `yaml:"key"`      // API Key
	Profiles map[string]string `yaml:"profiles"` // Map of intent -> model
}

// GeminiTTSConfig holds settings for Gemini speech generation.
type GeminiTTSConfig struct {
	Model      string `yaml:"model"`
	Voice      string `yaml:"voice"`
	SampleRate int    `yaml:"sample_rate"` // used when the response mime type carries no rate
}

// EdgeTTSConfig holds settings for Edge TTS.
type EdgeTTSConfig struct {
	VoiceID string `yaml:"voice"` // e.g. "en-US-AvaMultilingualNeural"
}

// TTSConfig holds Text-To-Speech settings.
type TTSConfig struct {
	Engine  string          `yaml:"engine"`
	Gemini  GeminiTTSConfig `yaml:"gemini"`
	EdgeTTS EdgeTTSConfig   `yaml:"edge_tts"`
	Cache   bool            `yaml:"cache"` // cache synthesized audio in the database
}

// GenerationConfig controls the buffering controller and prompt shaping.
type GenerationConfig struct {
	Lookahead          int      `yaml:"lookahead"`
	MinInterval        Duration `yaml:"min_interval"`
	OutlineTimeout     Duration `yaml:"outline_timeout"`
	TextTimeout        Duration `yaml:"text_timeout"`
	AudioTimeout       Duration `yaml:"audio_timeout"`
	SegmentDuration    Duration `yaml:"segment_duration"`
	WordsPerMinute     int      `yaml:"words_per_minute"`
	ContextChars       int      `yaml:"context_chars"`        // prior text gathered for the next segment
	PromptContextChars int      `yaml:"prompt_context_chars"` // tail of that context placed in the prompt
	DefaultStyle       string   `yaml:"default_style"`
}

// RetryProfile configures one retry policy.
type RetryProfile struct {
	MaxAttempts int      `yaml:"max_attempts"`
	BaseDelay   Duration `yaml:"base_delay"`
	MaxDelay    Duration `yaml:"max_delay"`
	Jitter      float64  `yaml:"jitter"` // fraction of the delay, 0 disables
}

// RetryConfig holds the retry profiles for generation calls.
type RetryConfig struct {
	Transport RetryProfile `yaml:"transport"` // inside the generation client, overload errors only
	Text      RetryProfile `yaml:"text"`      // outline and segment text
	Audio     RetryProfile `yaml:"audio"`
}

// AudioConfig holds playback backend settings.
type AudioConfig struct {
	Backend  string  `yaml:"backend"` // "speaker", "silent"
	Volume   float64 `yaml:"volume"`  // 0.0 - 1.0
	AutoPlay bool    `yaml:"autoplay"` // start playing once the first segment is ready
}

// LogConfig holds logging settings.
type LogConfig struct {
	Server   LogSettings `yaml:"server"`
	Requests LogSettings `yaml:"requests"`
}

// LogSettings holds settings for a specific logger.
type LogSettings struct {
	Path  string `yaml:"path"`
	Level string `yaml:"level"`
}

// DBConfig holds database settings.
type DBConfig struct {
	Path string `yaml:"path"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Address string `yaml:"address"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		LLM: LLMConfig{
			Provider: "gemini",
			Profiles: map[string]string{
				"outline": "gemini-2.5-flash",
				"segment": "gemini-3-flash-preview",
			},
		},
		TTS: TTSConfig{
			Engine: "gemini",
			Gemini: GeminiTTSConfig{
				Model:      "gemini-2.5-flash-preview-tts",
				Voice:      "Kore",
				SampleRate: 24000,
			},
			EdgeTTS: EdgeTTSConfig{
				VoiceID: "en-US-AvaMultilingualNeural",
			},
			Cache: true,
		},
		Generation: GenerationConfig{
			Lookahead:          2,
			MinInterval:        Duration(2 * time.Second),
			OutlineTimeout:     Duration(60 * time.Second),
			TextTimeout:        Duration(60 * time.Second),
			AudioTimeout:       Duration(100 * time.Second),
			SegmentDuration:    Duration(60 * time.Second),
			WordsPerMinute:     145,
			ContextChars:       3000,
			PromptContextChars: 1500,
			DefaultStyle:       "IMMERSIVE",
		},
		Retry: RetryConfig{
			Transport: RetryProfile{MaxAttempts: 4, BaseDelay: Duration(1 * time.Second), MaxDelay: Duration(8 * time.Second)},
			Text:      RetryProfile{MaxAttempts: 5, BaseDelay: Duration(3 * time.Second), MaxDelay: Duration(30 * time.Second)},
			Audio:     RetryProfile{MaxAttempts: 3, BaseDelay: Duration(3 * time.Second), MaxDelay: Duration(30 * time.Second)},
		},
		Audio: AudioConfig{
			Backend:  "speaker",
			Volume:   1.0,
			AutoPlay: true,
		},
		Log: LogConfig{
			Server:   LogSettings{Path: "logs/server.log", Level: "INFO"},
			Requests: LogSettings{Path: "logs/requests.log", Level: "INFO"},
		},
		DB: DBConfig{
			Path: "data/echopaths.db",
		},
		Server: ServerConfig{
			Address: "localhost:1930",
		},
	}
}

// Load loads the configuration from the given path.
// If the file does not exist, it creates it with default values.
// If the file exists, it merges defaults with existing values but does NOT save back to disk.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	if _, err := os.Stat(path); err == nil {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	} else if err := Save(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to save config file: %w", err)
	}

	// Env fallback, never persisted.
	if cfg.LLM.Key == "" {
		if key := os.Getenv("GEMINI_API_KEY"); key != "" {
			cfg.LLM.Key = key
		}
	}

	cfg.DB.Path = expandPath(cfg.DB.Path)
	cfg.Log.Server.Path = expandPath(cfg.Log.Server.Path)
	cfg.Log.Requests.Path = expandPath(cfg.Log.Requests.Path)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

var windowsEnvRe = regexp.MustCompile(`%([A-Za-z0-9_]+)%`)

// expandPath expands $VAR, ${VAR} and %VAR% references.
func expandPath(p string) string {
	p = windowsEnvRe.ReplaceAllStringFunc(p, func(m string) string {
		return os.Getenv(m[1 : len(m)-1])
	})
	return os.ExpandEnv(p)
}

// ErrInvalidConfig is wrapped by all validation failures.
var ErrInvalidConfig = errors.New("invalid config")

// Validate checks value ranges.
func (c *Config) Validate() error {
	g := c.Generation
	switch {
	case g.Lookahead < 1:
		return fmt.Errorf("%w: generation.lookahead must be >= 1, got %d", ErrInvalidConfig, g.Lookahead)
	case g.MinInterval < 0:
		return fmt.Errorf("%w: generation.min_interval must not be negative", ErrInvalidConfig)
	case g.TextTimeout <= 0 || g.AudioTimeout <= 0 || g.OutlineTimeout <= 0:
		return fmt.Errorf("%w: generation timeouts must be positive", ErrInvalidConfig)
	case g.SegmentDuration < Duration(time.Second):
		return fmt.Errorf("%w: generation.segment_duration must be at least 1s", ErrInvalidConfig)
	case g.PromptContextChars > g.ContextChars:
		return fmt.Errorf("%w: generation.prompt_context_chars exceeds context_chars", ErrInvalidConfig)
	}
	for name, p := range map[string]RetryProfile{"transport": c.Retry.Transport, "text": c.Retry.Text, "audio": c.Retry.Audio} {
		if p.MaxAttempts < 1 {
			return fmt.Errorf("%w: retry.%s.max_attempts must be >= 1", ErrInvalidConfig, name)
		}
		if p.Jitter < 0 || p.Jitter > 1 {
			return fmt.Errorf("%w: retry.%s.jitter must be within [0, 1]", ErrInvalidConfig, name)
		}
	}
	if c.Audio.Volume < 0 || c.Audio.Volume > 1 {
		return fmt.Errorf("%w: audio.volume must be within [0, 1]", ErrInvalidConfig)
	}
	switch c.TTS.Engine {
	case "gemini", "edge-tts":
	default:
		return fmt.Errorf("%w: unknown tts.engine %q", ErrInvalidConfig, c.TTS.Engine)
	}
	return nil
}

// Save writes the configuration to the path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(`# echopaths configuration
# -----------------------
# Supported Units:
#   Duration: ns, us, ms, s, m, h, d (day), w (week)

`)
	data = append(header, data...)

	reEngine := regexp.MustCompile(`(?m)^(\s+)engine:`)
	data = reEngine.ReplaceAll(data, []byte("${1}# Options: gemini, edge-tts\n${1}engine:"))

	reBackend := regexp.MustCompile(`(?m)^(\s+)backend:`)
	data = reBackend.ReplaceAll(data, []byte("${1}# Options: speaker, silent\n${1}backend:"))

	reStyle := regexp.MustCompile(`(?m)^(\s+)default_style:`)
	data = reStyle.ReplaceAll(data, []byte("${1}# Options: IMMERSIVE, NOIR, CHILDREN, HISTORICAL, FANTASY, HISTORIAN_GUIDE, HORROR,\n${1}#          MYSTERY, HISTORICAL_FICTION, SCIENCE_FICTION, NOIR_EPIC, WALKINGTOUR_ADVENTURE\n${1}default_style:"))

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// GenerateDefault creates a default config file at the given path.
// Returns nil if the file already exists.
func GenerateDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	return Save(path, DefaultConfig())
}
