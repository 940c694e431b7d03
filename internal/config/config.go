package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	OpenAI    OpenAIConfig    `mapstructure:"openai"`
	Assistant AssistantConfig `mapstructure:"assistant"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Run       RunConfig       `mapstructure:"run"`
	Shopping  ShoppingConfig  `mapstructure:"shopping"`
	Reviews   ReviewsConfig   `mapstructure:"reviews"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

type ServerConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	ReadTimeout  int    `mapstructure:"read_timeout"`
	WriteTimeout int    `mapstructure:"write_timeout"`
}

// OpenAIConfig configures the hosted assistant service
type OpenAIConfig struct {
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
	Model   string `mapstructure:"model"`
	Timeout int    `mapstructure:"timeout"`
}

// AssistantConfig describes the assistant registered on first start
type AssistantConfig struct {
	Name             string `mapstructure:"name"`
	IDFile           string `mapstructure:"id_file"`
	KnowledgeFile    string `mapstructure:"knowledge_file"`
	InstructionsFile string `mapstructure:"instructions_file"` // Optional override of the built-in instructions
}

type StorageConfig struct {
	Backend string `mapstructure:"backend"` // "file" or "bolt"
	Path    string `mapstructure:"path"`    // Bolt database path
}

// RunConfig bounds the run polling loop
type RunConfig struct {
	PollIntervalMS int `mapstructure:"poll_interval_ms"`
	Timeout        int `mapstructure:"timeout"` // Seconds
}

// ShoppingConfig configures the SerpApi shopping provider
type ShoppingConfig struct {
	BaseURL string `mapstructure:"base_url"`
	APIKey  string `mapstructure:"api_key"`
	Engine  string `mapstructure:"engine"`
	Num     int    `mapstructure:"num"`
	Timeout int    `mapstructure:"timeout"`
}

// ReviewsConfig configures the DuckDuckGo review search
type ReviewsConfig struct {
	BaseURL string `mapstructure:"base_url"`
	Site    string `mapstructure:"site"`
	Timeout int    `mapstructure:"timeout"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// PollInterval returns the delay between run status checks
func (c RunConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMS) * time.Millisecond
}

// Deadline returns the maximum time a single chat turn may take
func (c RunConfig) Deadline() time.Duration {
	return time.Duration(c.Timeout) * time.Second
}

func Load(cfgFile string) (*Config, error) {
	// Load .env file if exists (ignore error if not found)
	godotenv.Load()
	godotenv.Load(".env.local")

	v := viper.New()

	setDefaults(v)

	// Replace . with _ for nested config keys, e.g. SB_SERVER_PORT
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetEnvPrefix("SB")
	v.AutomaticEnv()

	// Well-known credential variables
	v.BindEnv("openai.api_key", "SB_OPENAI_API_KEY", "OPENAI_API_KEY")
	v.BindEnv("shopping.api_key", "SB_SHOPPING_API_KEY", "SERPAPI_KEY")

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
	}

	if err := v.ReadInConfig(); err != nil {
		// Config file not found is ok, use defaults
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !isMissingFile(err) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	return &cfg, nil
}

// Validate reports configuration the process cannot start without
func (c *Config) Validate() error {
	var errs []error
	if c.OpenAI.APIKey == "" {
		errs = append(errs, errors.New("OPENAI_API_KEY is not set"))
	}
	if c.Shopping.APIKey == "" {
		errs = append(errs, errors.New("SERPAPI_KEY is not set"))
	}
	switch c.Storage.Backend {
	case "file", "bolt":
	default:
		errs = append(errs, fmt.Errorf("unknown storage backend %q", c.Storage.Backend))
	}
	if c.Run.PollIntervalMS <= 0 {
		errs = append(errs, errors.New("run.poll_interval_ms must be positive"))
	}
	if c.Run.Timeout <= 0 {
		errs = append(errs, errors.New("run.timeout must be positive"))
	}
	return errors.Join(errs...)
}

// isMissingFile reports an explicitly named config file that does not exist
func isMissingFile(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}

func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 30)
	v.SetDefault("server.write_timeout", 300)

	// OpenAI defaults
	v.SetDefault("openai.base_url", "https://api.openai.com/v1")
	v.SetDefault("openai.model", "gpt-4o-mini")
	v.SetDefault("openai.timeout", 60)

	// Assistant defaults
	v.SetDefault("assistant.name", "Supplement Advisor")
	v.SetDefault("assistant.id_file", "assistant.json")
	v.SetDefault("assistant.knowledge_file", "KB.docx")

	// Storage defaults
	v.SetDefault("storage.backend", "file")
	v.SetDefault("storage.path", "./data/assistant.db")

	// Run defaults
	v.SetDefault("run.poll_interval_ms", 1000)
	v.SetDefault("run.timeout", 120)

	// Shopping defaults
	v.SetDefault("shopping.base_url", "https://serpapi.com")
	v.SetDefault("shopping.engine", "google_shopping")
	v.SetDefault("shopping.num", 5)
	v.SetDefault("shopping.timeout", 30)

	// Review search defaults
	v.SetDefault("reviews.base_url", "https://html.duckduckgo.com/html/")
	v.SetDefault("reviews.site", "webmd.com")
	v.SetDefault("reviews.timeout", 30)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}
