package cmd

import (
	"errors"
	"io/fs"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	app       = "ats-scorer"
	envPrefix = "ATS"
)

type Config struct {
	Storage  *StorageConfig  `mapstructure:"storage"`
	AI       *AIConfig       `mapstructure:"ai"`
	CV       *CVConfig       `mapstructure:"cv"`
	JobBoard *JobBoardConfig `mapstructure:"job-board"`
	Events   *EventsConfig   `mapstructure:"events"`
	Server   *ServerConfig   `mapstructure:"server"`
	Scoring  *ScoringConfig  `mapstructure:"scoring"`
}

type StorageConfig struct {
	// Driver is one of memory, sqlite or postgres.
	Driver          string `mapstructure:"driver"`
	SQLitePath      string `mapstructure:"sqlite-path"`
	PostgresURL     string `mapstructure:"postgres-url"`
	PostgresURLFile string `mapstructure:"postgres-url-file"`
	MaxConns        int32  `mapstructure:"max-conns"`
}

type AIConfig struct {
	Provider   string        `mapstructure:"provider"`
	MaxCVChars int           `mapstructure:"max-cv-chars"`
	Gemini     *GeminiConfig `mapstructure:"gemini"`
}

type GeminiConfig struct {
	APIKey       string        `mapstructure:"api-key"`
	APIKeyFile   string        `mapstructure:"api-key-file"`
	Model        string        `mapstructure:"model"`
	Backend      string        `mapstructure:"backend"`
	Project      string        `mapstructure:"project"`
	Location     string        `mapstructure:"location"`
	Temperature  float32       `mapstructure:"temperature"`
	Timeout      time.Duration `mapstructure:"timeout"`
	MaxLogLength int           `mapstructure:"max-log-length"`
}

type CVConfig struct {
	Timeout  time.Duration `mapstructure:"timeout"`
	MaxBytes int64         `mapstructure:"max-bytes"`
	S3       *S3Config     `mapstructure:"s3"`
}

type S3Config struct {
	Endpoint      string `mapstructure:"endpoint"`
	Region        string `mapstructure:"region"`
	AccessKey     string `mapstructure:"access-key"`
	SecretKey     string `mapstructure:"secret-key"`
	SecretKeyFile string `mapstructure:"secret-key-file"`
	PathStyle     bool   `mapstructure:"path-style"`
}

type JobBoardConfig struct {
	BaseURL   string `mapstructure:"base-url"`
	Token     string `mapstructure:"token"`
	TokenFile string `mapstructure:"token-file"`
	UserAgent string `mapstructure:"user-agent"`
}

type EventsConfig struct {
	AMQPURL  string `mapstructure:"amqp-url"`
	Exchange string `mapstructure:"exchange"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

type ScoringConfig struct {
	Concurrency   int     `mapstructure:"concurrency"`
	RatePerSecond float64 `mapstructure:"rate-per-second"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "ats-scorer scores job applicants with an LLM and a weighted rubric",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is ats-scorer.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))

	setDefaults()
}

// setDefaults also registers every key AutomaticEnv should resolve on Unmarshal.
func setDefaults() {
	defaults := map[string]any{
		"storage.driver":            "memory",
		"storage.sqlite-path":       app + ".db",
		"storage.postgres-url":      "",
		"storage.postgres-url-file": "",
		"storage.max-conns":         10,

		"ai.provider":              "gemini",
		"ai.max-cv-chars":          20000,
		"ai.gemini.api-key":        "",
		"ai.gemini.api-key-file":   "",
		"ai.gemini.model":          "gemini-2.5-flash",
		"ai.gemini.backend":        "gemini-api",
		"ai.gemini.project":        "",
		"ai.gemini.location":       "",
		"ai.gemini.temperature":    0.2,
		"ai.gemini.timeout":        "60s",
		"ai.gemini.max-log-length": 500,

		"cv.timeout":            "10s",
		"cv.max-bytes":          20 << 20,
		"cv.s3.endpoint":        "",
		"cv.s3.region":          "",
		"cv.s3.access-key":      "",
		"cv.s3.secret-key":      "",
		"cv.s3.secret-key-file": "",
		"cv.s3.path-style":      false,

		"job-board.base-url":   "https://listailor-web.onrender.com",
		"job-board.token":      "",
		"job-board.token-file": "",
		"job-board.user-agent": "",

		"events.amqp-url": "",
		"events.exchange": "candidate_events",

		"server.addr": ":8080",

		"scoring.concurrency":     4,
		"scoring.rate-per-second": 0,
	}
	for key, value := range defaults {
		viper.SetDefault(key, value)
	}
}

func initConfig() {
	// .env is optional; real environment variables win over it.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Fatalf("loading .env: %v", err)
	}

	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
		// An explicit config file must be readable.
		if err := viper.ReadInConfig(); err != nil {
			log.Fatal(err)
		}
		return
	}

	viper.AddConfigPath(".")
	viper.SetConfigName(app)
	viper.SetConfigType("yaml")
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			log.Fatal(err)
		}
	}
}

func getConfig() (*Config, error) {
	var config *Config
	err := viper.Unmarshal(&config)
	if err != nil {
		return config, err
	}

	return config, nil
}
