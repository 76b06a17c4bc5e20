package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port         string   `mapstructure:"PORT"`
	DrugInfoPort string   `mapstructure:"DRUGINFO_PORT"`
	Env          string   `mapstructure:"ENV"`
	DatabaseURL  string   `mapstructure:"DATABASE_URL"`
	DBMaxConns   int32    `mapstructure:"DB_MAX_CONNS"`
	DBMinConns   int32    `mapstructure:"DB_MIN_CONNS"`
	JWTSecret    string   `mapstructure:"JWT_SECRET"`
	CORSOrigins  []string `mapstructure:"CORS_ORIGINS"`

	RateLimitRPS   float64 `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst int     `mapstructure:"RATE_LIMIT_BURST"`

	TwilioAccountSID  string `mapstructure:"TWILIO_ACCOUNT_SID"`
	TwilioAuthToken   string `mapstructure:"TWILIO_AUTH_TOKEN"`
	TwilioPhoneNumber string `mapstructure:"TWILIO_PHONE_NUMBER"`
	SMSCountryCode    string `mapstructure:"SMS_COUNTRY_CODE"`

	SMTPHost     string `mapstructure:"SMTP_HOST"`
	SMTPPort     int    `mapstructure:"SMTP_PORT"`
	SMTPUsername string `mapstructure:"SMTP_USERNAME"`
	SMTPPassword string `mapstructure:"SMTP_PASSWORD"`
	SMTPFrom     string `mapstructure:"SMTP_FROM"`

	PrescriptionsDir string `mapstructure:"PRESCRIPTIONS_DIR"`
	ConflictDayTZ    string `mapstructure:"CONFLICT_DAY_TZ"`

	GeminiAPIKey   string `mapstructure:"GEMINI_API_KEY"`
	GeminiModel    string `mapstructure:"GEMINI_MODEL"`
	DrugBatchSize  int    `mapstructure:"DRUG_BATCH_SIZE"`
	UploadMaxBytes int64  `mapstructure:"UPLOAD_MAX_BYTES"`
	MongoURI       string `mapstructure:"MONGODB_URI"`
	MongoDatabase  string `mapstructure:"MONGODB_DATABASE"`
}

var keys = []string{
	"PORT", "DRUGINFO_PORT", "ENV", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS",
	"JWT_SECRET", "CORS_ORIGINS", "RATE_LIMIT_RPS", "RATE_LIMIT_BURST",
	"TWILIO_ACCOUNT_SID", "TWILIO_AUTH_TOKEN", "TWILIO_PHONE_NUMBER", "SMS_COUNTRY_CODE",
	"SMTP_HOST", "SMTP_PORT", "SMTP_USERNAME", "SMTP_PASSWORD", "SMTP_FROM",
	"PRESCRIPTIONS_DIR", "CONFLICT_DAY_TZ",
	"GEMINI_API_KEY", "GEMINI_MODEL", "DRUG_BATCH_SIZE", "UPLOAD_MAX_BYTES",
	"MONGODB_URI", "MONGODB_DATABASE",
}

// Load reads configuration from the environment and an optional .env file.
// It does not enforce required keys; each binary calls the matching Validate
// method.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()

	v.SetDefault("PORT", "5000")
	v.SetDefault("DRUGINFO_PORT", "5001")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 2)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("RATE_LIMIT_RPS", 50)
	v.SetDefault("RATE_LIMIT_BURST", 100)
	v.SetDefault("SMS_COUNTRY_CODE", "+91")
	v.SetDefault("SMTP_PORT", 587)
	v.SetDefault("PRESCRIPTIONS_DIR", "./prescriptions")
	v.SetDefault("CONFLICT_DAY_TZ", "Local")
	v.SetDefault("GEMINI_MODEL", "gemini-1.5-pro")
	v.SetDefault("DRUG_BATCH_SIZE", 5)
	v.SetDefault("UPLOAD_MAX_BYTES", 10<<20)
	v.SetDefault("MONGODB_DATABASE", "druginfo")

	for _, k := range keys {
		_ = v.BindEnv(k)
	}

	// .env is optional
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if len(cfg.CORSOrigins) == 1 && strings.Contains(cfg.CORSOrigins[0], ",") {
		cfg.CORSOrigins = strings.Split(cfg.CORSOrigins[0], ",")
	}
	for i := range cfg.CORSOrigins {
		cfg.CORSOrigins[i] = strings.TrimSpace(cfg.CORSOrigins[i])
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// SMSConfigured reports whether all Twilio credentials are present.
func (c *Config) SMSConfigured() bool {
	return c.TwilioAccountSID != "" && c.TwilioAuthToken != "" && c.TwilioPhoneNumber != ""
}

func (c *Config) EmailConfigured() bool {
	return c.SMTPHost != "" && c.SMTPFrom != ""
}

// ConflictLocation returns the zone used to compute calendar-day boundaries
// for the duplicate booking check.
func (c *Config) ConflictLocation() (*time.Location, error) {
	if c.ConflictDayTZ == "" || strings.EqualFold(c.ConflictDayTZ, "local") {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.ConflictDayTZ)
	if err != nil {
		return nil, fmt.Errorf("CONFLICT_DAY_TZ: %w", err)
	}
	return loc, nil
}

// Validate checks the settings the hospital API cannot start without.
// Outside development the Twilio credentials are mandatory because patient
// login depends on SMS delivery.
func (c *Config) Validate() error {
	var missing []string
	if c.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}
	if c.JWTSecret == "" {
		missing = append(missing, "JWT_SECRET")
	}
	if !c.IsDev() {
		if c.TwilioAccountSID == "" {
			missing = append(missing, "TWILIO_ACCOUNT_SID")
		}
		if c.TwilioAuthToken == "" {
			missing = append(missing, "TWILIO_AUTH_TOKEN")
		}
		if c.TwilioPhoneNumber == "" {
			missing = append(missing, "TWILIO_PHONE_NUMBER")
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}
	if _, err := c.ConflictLocation(); err != nil {
		return err
	}
	if c.SMTPHost != "" && c.SMTPFrom == "" {
		return fmt.Errorf("SMTP_FROM is required when SMTP_HOST is set")
	}
	return nil
}

// ValidateDrugInfo checks the settings of the drug information service.
func (c *Config) ValidateDrugInfo() error {
	if c.GeminiAPIKey == "" {
		return fmt.Errorf("missing required environment variables: GEMINI_API_KEY")
	}
	if c.DrugBatchSize <= 0 {
		return fmt.Errorf("DRUG_BATCH_SIZE must be positive, got %d", c.DrugBatchSize)
	}
	if c.UploadMaxBytes <= 0 {
		return fmt.Errorf("UPLOAD_MAX_BYTES must be positive, got %d", c.UploadMaxBytes)
	}
	return nil
}
