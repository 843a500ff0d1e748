package cmd

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/spigell/cv-screener/internal/ai"
	"github.com/spigell/cv-screener/internal/cache"
	"github.com/spigell/cv-screener/internal/extract"
	"github.com/spigell/cv-screener/internal/ranking"
	"github.com/spigell/cv-screener/internal/render"
	"github.com/spigell/cv-screener/internal/store/redisstore"
	"github.com/spigell/cv-screener/internal/structuring"
)

const (
	app       = "cv-screener"
	envPrefix = "CV_SCREENER"
)

type Config struct {
	AI           *AIConfig           `mapstructure:"ai" validate:"required"`
	Render       *RenderConfig       `mapstructure:"render" validate:"required"`
	Cache        cache.TTLs          `mapstructure:"cache"`
	Storage      *StorageConfig      `mapstructure:"storage" validate:"required"`
	Extract      *ExtractConfig      `mapstructure:"extract" validate:"required"`
	Conversation *ConversationConfig `mapstructure:"conversation" validate:"required"`
	Ranking      ranking.Config      `mapstructure:"ranking"`
}

type AIConfig struct {
	Provider          string            `mapstructure:"provider" validate:"oneof=gemini completion"`
	Timeout           time.Duration     `mapstructure:"timeout" validate:"gte=0"`
	MaxAttempts       int               `mapstructure:"max-attempts" validate:"gte=0"`
	MaxLogLength      int               `mapstructure:"max-log-length" validate:"gte=0"`
	RequestsPerMinute int               `mapstructure:"requests-per-minute" validate:"gte=0"`
	Summary           bool              `mapstructure:"summary"`
	Gemini            *GeminiConfig     `mapstructure:"gemini"`
	Completion        *CompletionConfig `mapstructure:"completion"`
}

type GeminiConfig struct {
	APIKey     string `mapstructure:"api-key" json:"-"`
	APIKeyFile string `mapstructure:"api-key-file"`
	Model      string `mapstructure:"model"`
}

type CompletionConfig struct {
	Endpoint   string `mapstructure:"endpoint" validate:"omitempty,url"`
	APIKey     string `mapstructure:"api-key" json:"-"`
	APIKeyFile string `mapstructure:"api-key-file"`
	Model      string `mapstructure:"model"`
}

type RenderConfig struct {
	Timeout    time.Duration `mapstructure:"timeout" validate:"gte=0"`
	ChromePath string        `mapstructure:"chrome-path"`
	Paper      string        `mapstructure:"paper" validate:"oneof=a4 letter"`
}

type StorageConfig struct {
	PostgresURL      string        `mapstructure:"postgres-url" json:"-"`
	RedisURL         string        `mapstructure:"redis-url" json:"-"`
	SessionRetention time.Duration `mapstructure:"session-retention" validate:"gte=0"`
}

type ExtractConfig struct {
	Timeout  time.Duration `mapstructure:"timeout" validate:"gte=0"`
	MaxBytes int64         `mapstructure:"max-bytes" validate:"gte=0"`
}

type ConversationConfig struct {
	DefaultLanguage string `mapstructure:"default-language"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "cv-screener structures resumes, collects job postings in a chat and ranks evaluated candidates",
	}
)

// Execute executes the root command.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is cv-screener.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func setDefaults() {
	viper.SetDefault("ai.provider", "gemini")
	viper.SetDefault("ai.timeout", structuring.DefaultTimeout)
	viper.SetDefault("ai.max-attempts", ai.MaxAttempts)
	viper.SetDefault("ai.max-log-length", 200)
	viper.SetDefault("ai.requests-per-minute", 0)
	viper.SetDefault("ai.summary", false)
	viper.SetDefault("ai.gemini.api-key", "")
	viper.SetDefault("ai.gemini.api-key-file", "")
	viper.SetDefault("ai.gemini.model", "")
	viper.SetDefault("ai.completion.endpoint", "")
	viper.SetDefault("ai.completion.api-key", "")
	viper.SetDefault("ai.completion.api-key-file", "")
	viper.SetDefault("ai.completion.model", "")

	viper.SetDefault("render.timeout", render.DefaultTimeout)
	viper.SetDefault("render.chrome-path", "")
	viper.SetDefault("render.paper", string(render.PaperA4))

	viper.SetDefault("cache.session-ttl", cache.DefaultSessionTTL)
	viper.SetDefault("cache.list-ttl", cache.DefaultListTTL)
	viper.SetDefault("cache.evaluation-ttl", cache.DefaultEvaluationTTL)

	viper.SetDefault("storage.postgres-url", "")
	viper.SetDefault("storage.redis-url", "")
	viper.SetDefault("storage.session-retention", redisstore.DefaultRetention)

	viper.SetDefault("extract.timeout", extract.DefaultTimeout)
	viper.SetDefault("extract.max-bytes", extract.DefaultMaxBytes)

	viper.SetDefault("conversation.default-language", "en")

	viper.SetDefault("ranking.min-score", 0)
	viper.SetDefault("ranking.exclude-file", "")
	viper.SetDefault("ranking.job-id", "")
	viper.SetDefault("ranking.job-title", "")
}

func initConfig() {
	// A missing .env is normal.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Printf("loading .env: %v", err)
	}

	setDefaults()

	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app)
		viper.SetConfigType("yaml")
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		// Defaults and environment are enough unless a file was requested explicitly.
		if cfgFile != "" || !errors.As(err, &notFound) {
			log.Fatal(err)
		}
	}
}

func getConfig() (*Config, error) {
	var config *Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}
	if config == nil {
		return nil, errors.New("config is required")
	}

	config.AI.Provider = strings.ToLower(strings.TrimSpace(config.AI.Provider))
	config.Render.Paper = strings.ToLower(strings.TrimSpace(config.Render.Paper))
	if config.AI.Gemini == nil {
		config.AI.Gemini = &GeminiConfig{}
	}
	if config.AI.Completion == nil {
		config.AI.Completion = &CompletionConfig{}
	}

	if err := validator.New(validator.WithRequiredStructEnabled()).Struct(config); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return config, nil
}
