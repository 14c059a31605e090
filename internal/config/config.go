package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Security SecurityConfig `mapstructure:"security"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	PowerBI  PowerBIConfig  `mapstructure:"powerbi"`
	Glean    GleanConfig    `mapstructure:"glean"`
	Sync     SyncConfig     `mapstructure:"sync"`
}

type ServerConfig struct {
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
	Host string `mapstructure:"host"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	Database string `mapstructure:"database"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	SSL      string `mapstructure:"ssl"`
}

type SecurityConfig struct {
	JWTSecret          string        `mapstructure:"jwt_secret"`
	JWTExpiration      time.Duration `mapstructure:"jwt_expiration"`
	RateLimitPerMinute int           `mapstructure:"rate_limit_per_minute"`
	RateLimitBurst     int           `mapstructure:"rate_limit_burst"`
	EnableAuth         bool          `mapstructure:"enable_auth"`
	EnableRateLimit    bool          `mapstructure:"enable_rate_limit"`
}

type LoggingConfig struct {
	Level string `mapstructure:"level"`
	Dir   string `mapstructure:"dir"`
}

// PowerBIConfig covers the tenant credentials and the scan/query knobs
type PowerBIConfig struct {
	APIBaseURL       string        `mapstructure:"api_base_url"`
	PortalBaseURL    string        `mapstructure:"portal_base_url"`
	AuthorityBaseURL string        `mapstructure:"authority_base_url"`
	TenantID         string        `mapstructure:"tenant_id"`
	ClientID         string        `mapstructure:"client_id"`
	RefreshToken     string        `mapstructure:"refresh_token"`
	Scopes           []string      `mapstructure:"scopes"`
	WorkspaceName    string        `mapstructure:"workspace_name"`
	WorkspaceID      string        `mapstructure:"workspace_id"`
	ScanPollInterval time.Duration `mapstructure:"scan_poll_interval"`
	ScanTimeout      time.Duration `mapstructure:"scan_timeout"`
	RowLimit         int           `mapstructure:"row_limit"`
	SystemPrefixes   []string      `mapstructure:"system_table_prefixes"`
	RateLimitRPS     float64       `mapstructure:"rate_limit_rps"`
	RateLimitBurst   int           `mapstructure:"rate_limit_burst"`
}

type GleanConfig struct {
	BaseURL    string `mapstructure:"base_url"`
	Token      string `mapstructure:"token"`
	Datasource string `mapstructure:"datasource"`
}

type SyncConfig struct {
	Enabled    bool          `mapstructure:"enabled"`
	Interval   time.Duration `mapstructure:"interval"`
	RunOnStart bool          `mapstructure:"run_on_start"`
	Archive    ArchiveConfig `mapstructure:"archive"`
}

// ArchiveConfig controls best-effort raw scan archival to object storage
type ArchiveConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Bucket    string `mapstructure:"bucket"`
	UseSSL    bool   `mapstructure:"use_ssl"`
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath(".")

	// Set default values
	setDefaults()

	// Enable environment variable support
	viper.AutomaticEnv()

	// Read config file
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Config file not found, use defaults and environment
			fmt.Println("Config file not found, using defaults and environment variables")
		} else {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	// Server defaults
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.mode", "debug")
	viper.SetDefault("server.host", "0.0.0.0")

	// Database defaults
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", "3306")
	viper.SetDefault("database.database", "connector_db")
	viper.SetDefault("database.username", "connector_user")
	viper.SetDefault("database.ssl", "false")

	// Security defaults
	viper.SetDefault("security.jwt_secret", "your-secret-key")
	viper.SetDefault("security.jwt_expiration", "24h")
	viper.SetDefault("security.rate_limit_per_minute", 60)
	viper.SetDefault("security.rate_limit_burst", 10)
	viper.SetDefault("security.enable_auth", false)
	viper.SetDefault("security.enable_rate_limit", true)

	// Logging defaults
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.dir", "logs")

	// Power BI defaults
	viper.SetDefault("powerbi.api_base_url", "https://api.powerbi.com/v1.0/myorg")
	viper.SetDefault("powerbi.portal_base_url", "https://app.powerbi.com")
	viper.SetDefault("powerbi.authority_base_url", "https://login.microsoftonline.com")
	viper.SetDefault("powerbi.scopes", []string{
		"https://analysis.windows.net/powerbi/api/Report.Read.All",
		"https://analysis.windows.net/powerbi/api/Dataset.Read.All",
		"https://analysis.windows.net/powerbi/api/Group.Read.All",
	})
	viper.SetDefault("powerbi.scan_poll_interval", "2s")
	viper.SetDefault("powerbi.scan_timeout", "10m")
	viper.SetDefault("powerbi.row_limit", 50)
	viper.SetDefault("powerbi.system_table_prefixes", []string{"Date", "LocalDate", "RowNumber"})
	viper.SetDefault("powerbi.rate_limit_rps", 5.0)
	viper.SetDefault("powerbi.rate_limit_burst", 5)

	// Glean defaults
	viper.SetDefault("glean.base_url", "https://app.glean.com")
	viper.SetDefault("glean.datasource", "powerbiconductor")

	// Sync defaults
	viper.SetDefault("sync.enabled", true)
	viper.SetDefault("sync.interval", "30m")
	viper.SetDefault("sync.run_on_start", false)
	viper.SetDefault("sync.archive.enabled", false)
	viper.SetDefault("sync.archive.endpoint", "localhost:9000")
	viper.SetDefault("sync.archive.bucket", "powerbi-scans")
	viper.SetDefault("sync.archive.use_ssl", false)
}
