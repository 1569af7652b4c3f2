package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

const (
	DefaultListingsURL = "https://www.otodom.pl/pl/wyniki/sprzedaz/mieszkanie/dolnoslaskie/wroclaw"
	DefaultUserAgent   = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 " +
		"(KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	ListingsURL string `yaml:"listings_url"`
	OutputPath  string `yaml:"output_path"`
	Delimiter   string `yaml:"delimiter"`
	Fields      string `yaml:"fields"`
	MaxListings int    `yaml:"max_listings"`

	BoundariesPath    string `yaml:"boundaries_path"`
	DistrictNameField string `yaml:"district_name_field"`
	StrictValidation  bool   `yaml:"strict_validation"`

	FetchMode        string `yaml:"fetch_mode"`
	UserAgent        string `yaml:"user_agent"`
	RequestTimeoutMs int    `yaml:"request_timeout_ms"`
	MaxRetries       int    `yaml:"max_retries"`
	PaceMinMs        int    `yaml:"pace_min_ms"`
	PaceMaxMs        int    `yaml:"pace_max_ms"`
	ChromeBin        string `yaml:"chrome_bin"`

	LogLevel   string `yaml:"log_level"`
	LogJSON    bool   `yaml:"log_json"`
	StatusAddr string `yaml:"status_addr"`

	PostgresDSN     string `yaml:"postgres_dsn"`
	MongoURI        string `yaml:"mongo_uri"`
	MongoDB         string `yaml:"mongo_db"`
	MongoCollection string `yaml:"mongo_collection"`
}

// Load reads the .env file and returns a populated Config struct. When
// CONFIG_FILE names a YAML file, its keys override the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("[config] No .env file found, falling back to system env vars")
	}

	cfg := &Config{
		ListingsURL: getEnv("LISTINGS_URL", DefaultListingsURL),
		OutputPath:  getEnv("OUTPUT_PATH", "./listings.csv"),
		Delimiter:   getEnv("DELIMITER", ";"),
		Fields:      getEnv("FIELDS", ""),
		MaxListings: getEnvInt("MAX_LISTINGS", 0),

		BoundariesPath:    getEnv("BOUNDARIES_PATH", "./wroclaw/borders.shp"),
		DistrictNameField: getEnv("DISTRICT_NAME_FIELD", "NAZWAOSIED"),
		StrictValidation:  getEnvBool("STRICT_VALIDATION", true),

		FetchMode:        getEnv("FETCH_MODE", "http"),
		UserAgent:        getEnv("USER_AGENT", DefaultUserAgent),
		RequestTimeoutMs: getEnvInt("REQUEST_TIMEOUT_MS", 30000),
		MaxRetries:       getEnvInt("MAX_RETRIES", 3),
		PaceMinMs:        getEnvInt("PACE_MIN_MS", 1500),
		PaceMaxMs:        getEnvInt("PACE_MAX_MS", 4000),
		ChromeBin:        getEnv("CHROME_BIN", ""),

		LogLevel:   getEnv("LOG_LEVEL", "info"),
		LogJSON:    getEnvBool("LOG_JSON", false),
		StatusAddr: getEnv("STATUS_ADDR", ""),

		PostgresDSN:     getEnv("POSTGRES_DSN", ""),
		MongoURI:        getEnv("MONGO_URI", ""),
		MongoDB:         getEnv("MONGO_DB", "otodom"),
		MongoCollection: getEnv("MONGO_COLLECTION", "listings"),
	}

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.overlayFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// overlayFile applies the keys present in a YAML file on top of cfg.
func (c *Config) overlayFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	// Unmarshalling into the populated struct leaves absent keys untouched.
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	return nil
}

// Validate rejects settings the crawler cannot run with.
func (c *Config) Validate() error {
	if len([]rune(c.Delimiter)) != 1 {
		return fmt.Errorf("config: delimiter must be a single character, got %q", c.Delimiter)
	}
	switch c.FetchMode {
	case "http", "browser":
	default:
		return fmt.Errorf("config: fetch mode must be http or browser, got %q", c.FetchMode)
	}
	if c.PaceMinMs < 0 || c.PaceMaxMs < 0 {
		return fmt.Errorf("config: pacing delays must not be negative")
	}
	if c.RequestTimeoutMs <= 0 {
		return fmt.Errorf("config: request timeout must be positive")
	}
	return nil
}

// DelimiterRune returns the dataset field separator.
func (c *Config) DelimiterRune() rune {
	return []rune(c.Delimiter)[0]
}

// FieldList splits the FIELDS setting on commas and spaces. Empty means
// every field.
func (c *Config) FieldList() []string {
	list := strings.FieldsFunc(c.Fields, func(r rune) bool { return r == ',' || r == ' ' })
	if len(list) == 0 {
		return nil
	}
	return list
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		n, err := strconv.Atoi(val)
		if err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		b, err := strconv.ParseBool(val)
		if err == nil {
			return b
		}
	}
	return fallback
}
