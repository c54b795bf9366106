package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"OreChat/internal/prompt"
	"OreChat/internal/provider"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

const (
	ModeStream = "stream"
	ModeBatch  = "batch"
)

// EnvConfigPath names the variable that points at a config file
const EnvConfigPath = "ORECHAT_CONFIG"

// Config holds application configuration
type Config struct {
	Relay  RelayConfig  `yaml:"relay"`
	Client ClientConfig `yaml:"client"`
	LogDir string       `yaml:"log_dir" validate:"required"`
	Debug  bool         `yaml:"debug"`
}

// RelayConfig configures `orechat serve`
type RelayConfig struct {
	Addr           string   `yaml:"addr" validate:"required"`
	BaseURL        string   `yaml:"base_url" validate:"required,url"`
	Model          string   `yaml:"model" validate:"required"`
	APIKeyEnv      string   `yaml:"api_key_env" validate:"required"`
	DefaultPersona string   `yaml:"default_persona" validate:"required,persona"`
	RatePerMinute  int      `yaml:"rate_per_minute" validate:"gte=0"`
	RateBurst      int      `yaml:"rate_burst" validate:"gte=0"`
	JournalPath    string   `yaml:"journal_path"` // empty disables the journal
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// ClientConfig configures `orechat chat`
type ClientConfig struct {
	RelayURL     string        `yaml:"relay_url" validate:"required,url"`
	Mode         string        `yaml:"mode" validate:"required,oneof=stream batch"`
	Persona      string        `yaml:"persona" validate:"required,persona"`
	ConnectDelay time.Duration `yaml:"connect_delay" validate:"gte=0"`
	Sound        bool          `yaml:"sound"`
	Greeting     string        `yaml:"greeting"`
	ErrorMessage string        `yaml:"error_message"`
}

// Default returns the built-in configuration
func Default() Config {
	return Config{
		Relay: RelayConfig{
			Addr:           ":8080",
			BaseURL:        provider.DefaultBaseURL,
			Model:          provider.DefaultModel,
			APIKeyEnv:      "GROQ_API_KEY",
			DefaultPersona: string(prompt.PersonaWarm),
			RatePerMinute:  30,
			RateBurst:      10,
			JournalPath:    "orechat.db",
		},
		Client: ClientConfig{
			RelayURL:     "http://localhost:8080",
			Mode:         ModeStream,
			Persona:      string(prompt.PersonaStrict),
			ConnectDelay: 2 * time.Second,
			Sound:        true,
		},
		LogDir: "logs",
	}
}

// Load reads defaults, then the YAML file at path (or $ORECHAT_CONFIG),
// then environment overrides, and validates the result
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv(EnvConfigPath)
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	if v := os.Getenv("ORECHAT_RELAY_ADDR"); v != "" {
		cfg.Relay.Addr = v
	}
	if v := os.Getenv("ORECHAT_RELAY_URL"); v != "" {
		cfg.Client.RelayURL = v
	}
	if v := os.Getenv("ORECHAT_MODEL"); v != "" {
		cfg.Relay.Model = v
	}
	if v := os.Getenv("ORECHAT_PERSONA"); v != "" {
		cfg.Client.Persona = v
	}
	if v := os.Getenv("ORECHAT_LOG_DIR"); v != "" {
		cfg.LogDir = v
	}
	if v := os.Getenv("ORECHAT_DEBUG"); v != "" {
		debug, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid ORECHAT_DEBUG value %q: %w", v, err)
		}
		cfg.Debug = debug
	}
	return nil
}

// Validate checks field constraints
func (c *Config) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("persona", func(fl validator.FieldLevel) bool {
		_, err := prompt.ParsePersona(fl.Field().String(), "")
		return err == nil
	})
	if err := v.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s (%s)", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid configuration: %s", strings.Join(fields, ", "))
		}
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// APIKey reads the provider credential from the configured variable
func (r RelayConfig) APIKey() (string, error) {
	key := strings.TrimSpace(os.Getenv(r.APIKeyEnv))
	if key == "" {
		return "", fmt.Errorf("%s environment variable not set", r.APIKeyEnv)
	}
	return key, nil
}
