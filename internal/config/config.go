package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"
)

type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	WhatsApp   WhatsAppConfig
	Contentful ContentfulConfig
	Events     EventsConfig
	Dedup      DedupConfig
	Sweep      SweepConfig
	Admin      AdminConfig
	Log        LogConfig
}

type ServerConfig struct {
	Address     string
	HTTPTimeout time.Duration
}

type DatabaseConfig struct {
	Driver     string
	URL        string
	HistoryMax int
}

type RedisConfig struct {
	Enabled  bool
	Address  string
	Password string
	DB       int
}

type WhatsAppConfig struct {
	APIURL        string
	Token         string
	PhoneNumberID string
	VerifyToken   string
}

type ContentfulConfig struct {
	Enabled     bool
	APIURL      string
	SpaceID     string
	AccessToken string
	Environment string
	ContentType string
}

type EventsConfig struct {
	BaseURL  string
	Max      int
	Timezone string
	MediaTTL time.Duration
}

type DedupConfig struct {
	Capacity int
}

type SweepConfig struct {
	Interval time.Duration
}

type AdminConfig struct {
	Token string
}

type LogConfig struct {
	Level  string
	Format string
}

func LoadAll() (*Config, error) {
	var errs []error

	req := func(key string) string {
		v, err := requireEnv(key)
		if err != nil {
			errs = append(errs, err)
		}
		return v
	}
	num := func(key string, def int) int {
		v, err := getEnvInt(key, def)
		if err != nil {
			errs = append(errs, err)
		}
		return v
	}

	cfg := &Config{
		Server: ServerConfig{
			Address:     getEnv("SERVER_ADDRESS", ":8080"),
			HTTPTimeout: time.Duration(num("HTTP_TIMEOUT_SECONDS", 10)) * time.Second,
		},
		Database: DatabaseConfig{
			Driver:     strings.ToLower(getEnv("DATABASE_DRIVER", "postgres")),
			URL:        req("DATABASE_URL"),
			HistoryMax: num("HISTORY_MAX", 200),
		},
		WhatsApp: WhatsAppConfig{
			APIURL:        strings.TrimRight(getEnv("WHATSAPP_API_URL", "https://graph.facebook.com/v23.0"), "/"),
			Token:         req("WHATSAPP_TOKEN"),
			PhoneNumberID: req("WHATSAPP_PHONE_NUMBER_ID"),
			VerifyToken:   req("VERIFY_TOKEN"),
		},
		Events: EventsConfig{
			BaseURL:  strings.TrimRight(getEnv("EVENTS_BASE_URL", "https://cultural.upc.edu.pe/agenda"), "/"),
			Max:      num("EVENTS_MAX", 3),
			Timezone: getEnv("EVENTS_TIMEZONE", "America/Lima"),
			MediaTTL: time.Duration(num("MEDIA_TTL_DAYS", 25)) * 24 * time.Hour,
		},
		Dedup: DedupConfig{
			Capacity: num("DEDUP_CAPACITY", 1000),
		},
		Sweep: SweepConfig{
			Interval: time.Duration(num("SWEEP_INTERVAL_SECONDS", 3600)) * time.Second,
		},
		Admin: AdminConfig{
			Token: os.Getenv("ADMIN_TOKEN"),
		},
		Log: LogConfig{
			Level:  strings.ToLower(getEnv("LOG_LEVEL", "info")),
			Format: strings.ToLower(getEnv("LOG_FORMAT", "text")),
		},
	}

	redisCfg, err := loadRedisConfig()
	if err != nil {
		errs = append(errs, err)
	}
	cfg.Redis = redisCfg
	cfg.Contentful = loadContentfulConfig()

	errs = append(errs, validate(cfg)...)
	if err := joinErrors(errs); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadRedisConfig() (RedisConfig, error) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		return RedisConfig{Enabled: false}, nil
	}

	db, err := getEnvInt("REDIS_DB", 0)
	return RedisConfig{
		Enabled:  true,
		Address:  addr,
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       db,
	}, err
}

func loadContentfulConfig() ContentfulConfig {
	space := os.Getenv("CONTENTFUL_SPACE_ID")
	token := os.Getenv("CONTENTFUL_ACCESS_TOKEN")
	if space == "" || token == "" {
		return ContentfulConfig{Enabled: false}
	}

	return ContentfulConfig{
		Enabled:     true,
		APIURL:      strings.TrimRight(getEnv("CONTENTFUL_API_URL", "https://cdn.contentful.com"), "/"),
		SpaceID:     space,
		AccessToken: token,
		Environment: getEnv("CONTENTFUL_ENVIRONMENT", "master"),
		ContentType: getEnv("CONTENTFUL_CONTENT_TYPE", "event"),
	}
}

func validate(cfg *Config) []error {
	var errs []error
	if cfg.Server.HTTPTimeout <= 0 {
		errs = append(errs, errors.New("HTTP_TIMEOUT_SECONDS must be > 0"))
	}
	if cfg.Database.Driver != "postgres" && cfg.Database.Driver != "sqlite" {
		errs = append(errs, fmt.Errorf("DATABASE_DRIVER must be postgres or sqlite, got %q", cfg.Database.Driver))
	}
	if cfg.Database.HistoryMax <= 0 {
		errs = append(errs, errors.New("HISTORY_MAX must be > 0"))
	}
	if cfg.Events.Max <= 0 {
		errs = append(errs, errors.New("EVENTS_MAX must be > 0"))
	}
	if cfg.Events.MediaTTL <= 0 {
		errs = append(errs, errors.New("MEDIA_TTL_DAYS must be > 0"))
	}
	if _, err := time.LoadLocation(cfg.Events.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("EVENTS_TIMEZONE: %w", err))
	}
	if u, err := url.Parse(cfg.Events.BaseURL); err != nil || !u.IsAbs() || u.Host == "" {
		errs = append(errs, fmt.Errorf("EVENTS_BASE_URL must be an absolute URL, got %q", cfg.Events.BaseURL))
	}
	if cfg.Dedup.Capacity <= 0 {
		errs = append(errs, errors.New("DEDUP_CAPACITY must be > 0"))
	}
	if cfg.Sweep.Interval <= 0 {
		errs = append(errs, errors.New("SWEEP_INTERVAL_SECONDS must be > 0"))
	}
	return errs
}

func requireEnv(key string) (string, error) {
	val := os.Getenv(key)
	if val == "" {
		return "", fmt.Errorf("missing required env var: %s", key)
	}
	return val, nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def, fmt.Errorf("invalid int for env %s: %s", key, v)
	}
	return i, nil
}

func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	return errors.Join(errs...)
}
