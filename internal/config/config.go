package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// envPrefix is prepended to every environment override, e.g. COMANDA_DATABASE_HOST.
const envPrefix = "COMANDA_"

// Config holds all configuration for the restaurant backend
type Config struct {
	App      AppConfig      `yaml:"app"`
	HTTP     HTTPConfig     `yaml:"http"`
	Database DatabaseConfig `yaml:"database"`
	RabbitMQ RabbitMQConfig `yaml:"rabbitmq"`
	NATS     NATSConfig     `yaml:"nats"`
	Mongo    MongoConfig    `yaml:"mongo"`
	Events   EventsConfig   `yaml:"events"`
	Images   ImagesConfig   `yaml:"images"`
	Auth     AuthConfig     `yaml:"auth"`
}

type AppConfig struct {
	// Store selects the entity store: "postgres" or "memory".
	Store          string `yaml:"store"`
	MigrationsPath string `yaml:"migrations_path"`
}

type HTTPConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	MaxUploadBytes  int64         `yaml:"max_upload_bytes"`
}

// DatabaseConfig holds database connection configuration
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	SSLMode  string `yaml:"sslmode"`
	MaxConns int32  `yaml:"max_conns"`
}

// RabbitMQConfig holds RabbitMQ connection configuration
type RabbitMQConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	VHost    string `yaml:"vhost"`
}

type NATSConfig struct {
	URL     string `yaml:"url"`
	Subject string `yaml:"subject"`
}

type MongoConfig struct {
	URI      string `yaml:"uri"`
	Database string `yaml:"database"`
	Bucket   string `yaml:"bucket"`
}

// EventsConfig selects where status notifications go: "rabbitmq", "nats" or "none".
type EventsConfig struct {
	Driver string `yaml:"driver"`
}

// ImagesConfig selects the table picture store: "filesystem" or "gridfs".
type ImagesConfig struct {
	Driver    string `yaml:"driver"`
	Directory string `yaml:"directory"`
}

// AuthConfig holds the token settings. When PartnerEmail is set the api
// creates that PARTNER account at startup if it does not exist yet.
type AuthConfig struct {
	Secret          string        `yaml:"secret"`
	TokenTTL        time.Duration `yaml:"token_ttl"`
	Issuer          string        `yaml:"issuer"`
	PartnerEmail    string        `yaml:"partner_email"`
	PartnerPassword string        `yaml:"partner_password"`
}

// Default returns the configuration used when a key is absent from the file.
func Default() *Config {
	return &Config{
		App: AppConfig{Store: "postgres", MigrationsPath: "migrations"},
		HTTP: HTTPConfig{
			Port:            3000,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			MaxUploadBytes:  10 << 20,
		},
		Database: DatabaseConfig{Host: "localhost", Port: 5432, SSLMode: "disable", MaxConns: 25},
		RabbitMQ: RabbitMQConfig{Host: "localhost", Port: 5672, User: "guest", Password: "guest", VHost: "/"},
		NATS:     NATSConfig{URL: "nats://localhost:4222", Subject: "comanda.status"},
		Mongo:    MongoConfig{URI: "mongodb://localhost:27017", Database: "comanda", Bucket: "table_pictures"},
		Events:   EventsConfig{Driver: "rabbitmq"},
		Images:   ImagesConfig{Driver: "filesystem", Directory: "images"},
		Auth:     AuthConfig{TokenTTL: 24 * time.Hour, Issuer: "comanda"},
	}
}

// Load reads .env (when present), then the YAML file, then COMANDA_* overrides.
func Load(filename string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	content, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(content, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

type lookupFunc func(key string) (string, bool)

func (c *Config) applyEnv(lookup lookupFunc) error {
	strs := map[string]*string{
		"APP_STORE":             &c.App.Store,
		"DATABASE_HOST":         &c.Database.Host,
		"DATABASE_USER":         &c.Database.User,
		"DATABASE_PASSWORD":     &c.Database.Password,
		"DATABASE_NAME":         &c.Database.Database,
		"RABBITMQ_HOST":         &c.RabbitMQ.Host,
		"RABBITMQ_USER":         &c.RabbitMQ.User,
		"RABBITMQ_PASSWORD":     &c.RabbitMQ.Password,
		"NATS_URL":              &c.NATS.URL,
		"MONGO_URI":             &c.Mongo.URI,
		"EVENTS_DRIVER":         &c.Events.Driver,
		"IMAGES_DRIVER":         &c.Images.Driver,
		"IMAGES_DIRECTORY":      &c.Images.Directory,
		"AUTH_SECRET":           &c.Auth.Secret,
		"AUTH_PARTNER_EMAIL":    &c.Auth.PartnerEmail,
		"AUTH_PARTNER_PASSWORD": &c.Auth.PartnerPassword,
	}
	for key, dst := range strs {
		if v, ok := lookup(envPrefix + key); ok {
			*dst = v
		}
	}

	ints := map[string]*int{
		"HTTP_PORT":     &c.HTTP.Port,
		"DATABASE_PORT": &c.Database.Port,
		"RABBITMQ_PORT": &c.RabbitMQ.Port,
	}
	for key, dst := range ints {
		v, ok := lookup(envPrefix + key)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s%s: %w", envPrefix, key, err)
		}
		*dst = n
	}

	return nil
}

// Validate checks the values the services cannot start without.
func (c *Config) Validate() error {
	switch c.App.Store {
	case "postgres", "memory":
	default:
		return fmt.Errorf("app.store must be postgres or memory, got %q", c.App.Store)
	}
	switch c.Events.Driver {
	case "rabbitmq", "nats", "none":
	default:
		return fmt.Errorf("events.driver must be rabbitmq, nats or none, got %q", c.Events.Driver)
	}
	switch c.Images.Driver {
	case "filesystem", "gridfs":
	default:
		return fmt.Errorf("images.driver must be filesystem or gridfs, got %q", c.Images.Driver)
	}
	if c.Auth.Secret == "" {
		return errors.New("auth.secret is required")
	}
	if c.HTTP.Port <= 0 {
		return fmt.Errorf("http.port must be positive, got %d", c.HTTP.Port)
	}
	return nil
}

// DatabaseURL returns the PostgreSQL connection URL
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Database,
		c.Database.SSLMode,
	)
}

// RabbitMQURL returns the RabbitMQ connection URL
func (c *Config) RabbitMQURL() string {
	vhost := c.RabbitMQ.VHost
	if vhost == "/" {
		vhost = ""
	}
	return fmt.Sprintf("amqp://%s:%s@%s:%d/%s",
		c.RabbitMQ.User,
		c.RabbitMQ.Password,
		c.RabbitMQ.Host,
		c.RabbitMQ.Port,
		vhost,
	)
}
