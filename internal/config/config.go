package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// Duration accepts "5s"-style strings in YAML.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

type Config struct {
	Addr            string   `yaml:"addr"`
	APIBaseURL      string   `yaml:"apiBaseUrl"`
	APIToken        string   `yaml:"apiToken"`
	PushURL         string   `yaml:"pushUrl"`
	UserID          string   `yaml:"userId"`
	LogLevel        string   `yaml:"logLevel"`
	GracePeriod     Duration `yaml:"gracePeriod"`
	PollInterval    Duration `yaml:"pollInterval"`
	PollMaxAttempts int      `yaml:"pollMaxAttempts"`
	EventQueueSize  int      `yaml:"eventQueueSize"`
}

func Default() Config {
	return Config{
		Addr:            ":8090",
		APIBaseURL:      "http://127.0.0.1:8080",
		LogLevel:        "info",
		GracePeriod:     Duration(5 * time.Second),
		PollInterval:    Duration(5 * time.Second),
		PollMaxAttempts: 60,
		EventQueueSize:  1024,
	}
}

// Load reads the optional YAML file, then applies NOTESYNC_* env overrides.
// A local .env file is honored when present.
func Load(path string) (Config, error) {
	_ = godotenv.Load()
	cfg := Default()
	if strings.TrimSpace(path) != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, err
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, err
		}
	}
	applyEnv(&cfg)
	clamp(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.Addr = strEnv("NOTESYNC_ADDR", cfg.Addr)
	cfg.APIBaseURL = strEnv("NOTESYNC_API_BASE_URL", cfg.APIBaseURL)
	cfg.APIToken = strEnv("NOTESYNC_API_TOKEN", cfg.APIToken)
	cfg.PushURL = strEnv("NOTESYNC_PUSH_URL", cfg.PushURL)
	cfg.UserID = strEnv("NOTESYNC_USER_ID", cfg.UserID)
	cfg.LogLevel = strEnv("NOTESYNC_LOG_LEVEL", cfg.LogLevel)
	cfg.GracePeriod = durationEnv("NOTESYNC_GRACE_PERIOD", cfg.GracePeriod)
	cfg.PollInterval = durationEnv("NOTESYNC_POLL_INTERVAL", cfg.PollInterval)
	cfg.PollMaxAttempts = intEnv("NOTESYNC_POLL_MAX_ATTEMPTS", cfg.PollMaxAttempts)
	cfg.EventQueueSize = intEnv("NOTESYNC_EVENT_QUEUE_SIZE", cfg.EventQueueSize)
}

func clamp(cfg *Config) {
	if cfg.GracePeriod <= 0 {
		cfg.GracePeriod = Duration(5 * time.Second)
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = Duration(5 * time.Second)
	}
	if cfg.PollMaxAttempts <= 0 {
		cfg.PollMaxAttempts = 60
	}
	if cfg.EventQueueSize <= 0 {
		cfg.EventQueueSize = 1024
	}
}

func strEnv(name, fallback string) string {
	if raw := strings.TrimSpace(os.Getenv(name)); raw != "" {
		return raw
	}
	return fallback
}

func intEnv(name string, fallback int) int {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}

func durationEnv(name string, fallback Duration) Duration {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	value, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}
	return Duration(value)
}

// Watch reloads the config file on change and hands the result to onChange.
// The parent directory is watched because editors typically replace the file.
func Watch(ctx context.Context, path string, logger zerolog.Logger, onChange func(Config)) error {
	if strings.TrimSpace(path) == "" || onChange == nil {
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close()
		return err
	}
	target, err := filepath.Abs(path)
	if err != nil {
		_ = watcher.Close()
		return err
	}
	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				name, err := filepath.Abs(event.Name)
				if err != nil || name != target {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}
				cfg, err := Load(path)
				if err != nil {
					logger.Warn().Err(err).Str("path", path).Msg("config reload failed, keeping previous settings")
					continue
				}
				logger.Info().Str("path", path).Msg("config reloaded")
				onChange(cfg)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warn().Err(err).Msg("config watcher error")
			}
		}
	}()
	return nil
}
