package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Default sweep used when neither the config file nor the environment
// override it. The order is the order cells are run and written.
var (
	DefaultFractions   = []float64{0.01, 0.05, 0.1, 0.25, 0.5, 0.75, 1.0}
	DefaultParallelism = []int{2, 4, 8, 12, 16}
)

const (
	DefaultSeed      int64 = 42
	DefaultInputURI        = "s3://us-accidents-dataset/US_Accidents_March23_reduzido.csv"
	DefaultOutputURI       = "s3://us-accidents-dataset/parallel_metrics_actions/"
)

// Config holds all configuration for scalebench
type Config struct {
	Log        LogConfig
	Database   DatabaseConfig
	Storage    StorageConfig
	Experiment ExperimentConfig
	Metrics    MetricsConfig
	History    HistoryConfig
}

type LogConfig struct {
	Level  string
	Format string
}

type DatabaseConfig struct {
	MaxConnections int
	MemoryLimit    string
	TempDirectory  string // Spill directory for sorts/windows larger than memory_limit
}

type StorageConfig struct {
	StagingDir string // Local directory remote inputs are downloaded to before loading
	// S3/MinIO configuration
	S3Region    string
	S3Endpoint  string // Custom endpoint for MinIO (e.g., "http://localhost:9000")
	S3AccessKey string // AWS access key (or use AWS_ACCESS_KEY_ID env var)
	S3SecretKey string // AWS secret key (or use AWS_SECRET_ACCESS_KEY env var)
	S3UseSSL    bool
	S3PathStyle bool // Use path-style addressing (required for MinIO)
	// Azure Blob Storage configuration
	AzureConnectionString   string
	AzureAccountName        string
	AzureAccountKey         string
	AzureSASToken           string
	AzureEndpoint           string // Custom endpoint (for Azurite testing)
	AzureUseManagedIdentity bool
}

type ExperimentConfig struct {
	InputURI    string
	OutputURI   string
	Fractions   []float64
	Parallelism []int
	Seed        int64
}

type MetricsConfig struct {
	TextfilePath string // node_exporter textfile output; empty disables it
}

type HistoryConfig struct {
	Enabled bool
	DBPath  string
}

// Load loads configuration from .env, environment and config file
func Load() (*Config, error) {
	v := viper.New()
	return LoadWith(v)
}

// LoadWith loads configuration into a caller-provided viper instance so that
// command-line flags bound to it take precedence over file and env values.
func LoadWith(v *viper.Viper) (*Config, error) {
	// A missing .env is the common case
	_ = godotenv.Load()

	setDefaults(v)

	v.SetEnvPrefix("SCALEBENCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigName("scalebench")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/scalebench/")
	v.AddConfigPath("$HOME/.scalebench/")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	fractions, err := ParseFractions(v.GetStringSlice("experiment.fractions"))
	if err != nil {
		return nil, fmt.Errorf("invalid experiment.fractions: %w", err)
	}
	parallelism, err := ParseParallelism(v.GetStringSlice("experiment.parallelism"))
	if err != nil {
		return nil, fmt.Errorf("invalid experiment.parallelism: %w", err)
	}

	cfg := &Config{
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
		},
		Database: DatabaseConfig{
			MaxConnections: v.GetInt("database.max_connections"),
			MemoryLimit:    v.GetString("database.memory_limit"),
			TempDirectory:  v.GetString("database.temp_directory"),
		},
		Storage: StorageConfig{
			StagingDir:              v.GetString("storage.staging_dir"),
			S3Region:                v.GetString("storage.s3_region"),
			S3Endpoint:              v.GetString("storage.s3_endpoint"),
			S3AccessKey:             v.GetString("storage.s3_access_key"),
			S3SecretKey:             v.GetString("storage.s3_secret_key"),
			S3UseSSL:                v.GetBool("storage.s3_use_ssl"),
			S3PathStyle:             v.GetBool("storage.s3_path_style"),
			AzureConnectionString:   v.GetString("storage.azure_connection_string"),
			AzureAccountName:        v.GetString("storage.azure_account_name"),
			AzureAccountKey:         v.GetString("storage.azure_account_key"),
			AzureSASToken:           v.GetString("storage.azure_sas_token"),
			AzureEndpoint:           v.GetString("storage.azure_endpoint"),
			AzureUseManagedIdentity: v.GetBool("storage.azure_use_managed_identity"),
		},
		Experiment: ExperimentConfig{
			InputURI:    v.GetString("experiment.input_uri"),
			OutputURI:   v.GetString("experiment.output_uri"),
			Fractions:   fractions,
			Parallelism: parallelism,
			Seed:        v.GetInt64("experiment.seed"),
		},
		Metrics: MetricsConfig{
			TextfilePath: v.GetString("metrics.textfile_path"),
		},
		History: HistoryConfig{
			Enabled: v.GetBool("history.enabled"),
			DBPath:  v.GetString("history.db_path"),
		},
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	// Database defaults - dynamically calculated based on system resources
	v.SetDefault("database.max_connections", getDefaultMaxConnections())
	v.SetDefault("database.memory_limit", getDefaultMemoryLimit())
	v.SetDefault("database.temp_directory", "./data/spill")

	v.SetDefault("storage.staging_dir", os.TempDir())
	v.SetDefault("storage.s3_region", "us-east-1")
	v.SetDefault("storage.s3_use_ssl", true)
	v.SetDefault("storage.s3_path_style", false)

	v.SetDefault("experiment.input_uri", DefaultInputURI)
	v.SetDefault("experiment.output_uri", DefaultOutputURI)
	v.SetDefault("experiment.fractions", formatFractions(DefaultFractions))
	v.SetDefault("experiment.parallelism", formatParallelism(DefaultParallelism))
	v.SetDefault("experiment.seed", DefaultSeed)

	v.SetDefault("metrics.textfile_path", "")

	v.SetDefault("history.enabled", false)
	v.SetDefault("history.db_path", "./data/scalebench.db")
}

// Validate checks values that would otherwise fail deep inside a sweep
func (c *Config) Validate() error {
	if c.Experiment.InputURI == "" {
		return fmt.Errorf("experiment.input_uri is required")
	}
	if c.Experiment.OutputURI == "" {
		return fmt.Errorf("experiment.output_uri is required")
	}
	if len(c.Experiment.Fractions) == 0 {
		return fmt.Errorf("experiment.fractions must not be empty")
	}
	if len(c.Experiment.Parallelism) == 0 {
		return fmt.Errorf("experiment.parallelism must not be empty")
	}
	if c.Database.MaxConnections < 1 {
		return fmt.Errorf("database.max_connections must be at least 1, got %d", c.Database.MaxConnections)
	}
	if c.Database.MemoryLimit != "" {
		if _, err := ParseSize(c.Database.MemoryLimit); err != nil {
			return fmt.Errorf("invalid database.memory_limit: %w", err)
		}
	}
	if c.History.Enabled && c.History.DBPath == "" {
		return fmt.Errorf("history enabled but history.db_path not specified")
	}
	return nil
}

func getDefaultMaxConnections() int {
	// One connection runs a cell; the rest serve staging and inspection
	cores := runtime.NumCPU()
	if cores < 4 {
		return 4
	}
	if cores > 16 {
		return 16
	}
	return cores
}

func getDefaultMemoryLimit() string {
	// Heuristic: assume ~2GB per core, give DuckDB half of it
	targetMemGB := runtime.NumCPU()

	if targetMemGB < 1 {
		return "1GB"
	}
	if targetMemGB > 32 {
		return "32GB"
	}
	return fmt.Sprintf("%dGB", targetMemGB)
}

// ParseSize parses a human-readable size string (e.g., "1GB", "500MB", "100KB") to bytes.
// Supports: B, KB, MB, GB (case-insensitive).
func ParseSize(sizeStr string) (int64, error) {
	sizeStr = strings.TrimSpace(strings.ToUpper(sizeStr))
	if sizeStr == "" {
		return 0, fmt.Errorf("empty size string")
	}

	type unitInfo struct {
		suffix     string
		multiplier int64
	}
	units := []unitInfo{
		{"GB", 1024 * 1024 * 1024},
		{"MB", 1024 * 1024},
		{"KB", 1024},
		{"B", 1},
	}

	for _, unit := range units {
		if strings.HasSuffix(sizeStr, unit.suffix) {
			numStr := strings.TrimSpace(strings.TrimSuffix(sizeStr, unit.suffix))

			var num float64
			var trailing string
			n, _ := fmt.Sscanf(numStr, "%f%s", &num, &trailing)
			if n == 0 {
				return 0, fmt.Errorf("invalid size number: %s", numStr)
			}
			if trailing != "" {
				return 0, fmt.Errorf("invalid size format: %s (use e.g., '1GB', '500MB', '100KB')", sizeStr)
			}
			if num < 0 {
				return 0, fmt.Errorf("size cannot be negative: %s", sizeStr)
			}
			return int64(num * float64(unit.multiplier)), nil
		}
	}

	var num int64
	var trailing string
	n, _ := fmt.Sscanf(sizeStr, "%d%s", &num, &trailing)
	if n == 0 || trailing != "" {
		return 0, fmt.Errorf("invalid size format: %s (use e.g., '1GB', '500MB', '100KB')", sizeStr)
	}
	if num < 0 {
		return 0, fmt.Errorf("size cannot be negative: %s", sizeStr)
	}
	return num, nil
}
