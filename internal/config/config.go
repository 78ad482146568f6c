package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Repository RepositoryConfig `mapstructure:"repository"`
	Mongo      MongoConfig      `mapstructure:"mongo"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Datastore  DatastoreConfig  `mapstructure:"datastore"`
	LLM        LLMConfig        `mapstructure:"llm"`
	Parser     ParserConfig     `mapstructure:"parser"`
	CORS       CORSConfig       `mapstructure:"cors"`
}

type ServerConfig struct {
	Port            string        `mapstructure:"port"`
	Host            string        `mapstructure:"host"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

const (
	RepositoryMongo     = "mongo"
	RepositoryPostgres  = "postgres"
	RepositoryDatastore = "datastore"
	RepositoryInMemory  = "inmemory"
)

type RepositoryConfig struct {
	Type string `mapstructure:"type"` // mongo, postgres, datastore or inmemory
}

type MongoConfig struct {
	URI        string `mapstructure:"uri"`
	Database   string `mapstructure:"database"`
	Collection string `mapstructure:"collection"`
}

// DatabaseConfig configures the PostgreSQL backend.
type DatabaseConfig struct {
	URL            string        `mapstructure:"url"`
	MaxConnections int32         `mapstructure:"max_connections"`
	MinConnections int32         `mapstructure:"min_connections"`
	IdleTimeout    time.Duration `mapstructure:"idle_timeout"`
}

type DatastoreConfig struct {
	ProjectID       string `mapstructure:"project_id"`
	CredentialsFile string `mapstructure:"credentials_file"`
}

type LLMConfig struct {
	Provider    string  `mapstructure:"provider"` // gemini or openai
	APIKey      string  `mapstructure:"api_key"`
	Model       string  `mapstructure:"model"`
	BaseURL     string  `mapstructure:"base_url"`
	Temperature float64 `mapstructure:"temperature"`
}

type ParserConfig struct {
	Timezone string `mapstructure:"timezone"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8000")
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.shutdown_timeout", 30*time.Second)
	v.SetDefault("logging.development", false)
	v.SetDefault("repository.type", RepositoryMongo)
	v.SetDefault("mongo.uri", "")
	v.SetDefault("mongo.database", "todoapp")
	v.SetDefault("mongo.collection", "tasks")
	v.SetDefault("database.url", "")
	v.SetDefault("database.max_connections", 10)
	v.SetDefault("database.min_connections", 2)
	v.SetDefault("database.idle_timeout", 5*time.Minute)
	v.SetDefault("datastore.project_id", "")
	v.SetDefault("datastore.credentials_file", "")
	v.SetDefault("llm.provider", "gemini")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.model", "")
	v.SetDefault("llm.base_url", "")
	v.SetDefault("llm.temperature", 0.0)
	v.SetDefault("parser.timezone", "UTC")
	v.SetDefault("cors.allowed_origins", []string{"http://localhost:5173", "http://localhost:3000"})
}

// Load reads .env, the optional YAML file at path (config.yml in the working
// directory when path is empty) and the environment, in increasing priority.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("reading .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yml")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// names used by the existing deployment
	_ = v.BindEnv("mongo.uri", "MONGO_URI", "MONGODB_URI")
	_ = v.BindEnv("llm.api_key", "LLM_API_KEY", "GEMINI_API_KEY")
	_ = v.BindEnv("cors.allowed_origins", "CORS_ALLOWED_ORIGINS", "CORS_ORIGINS")
	_ = v.BindEnv("database.url", "DATABASE_URL")

	var cfg Config
	err := v.Unmarshal(&cfg, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)))
	if err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	cfg.CORS.AllowedOrigins = trimAll(cfg.CORS.AllowedOrigins)

	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.Repository.Type {
	case RepositoryMongo:
		if c.Mongo.URI == "" {
			return errors.New("mongo.uri (MONGODB_URI) is not set")
		}
	case RepositoryPostgres:
		if c.Database.URL == "" {
			return errors.New("database.url (DATABASE_URL) is not set")
		}
	case RepositoryDatastore:
		if c.Datastore.ProjectID == "" {
			return errors.New("datastore.project_id is not set")
		}
	case RepositoryInMemory:
	default:
		return fmt.Errorf("unknown repository type %q", c.Repository.Type)
	}

	if _, err := time.LoadLocation(c.Parser.Timezone); err != nil {
		return fmt.Errorf("parser.timezone: %w", err)
	}
	return nil
}

func (c *Config) GetServerAddr() string {
	return fmt.Sprintf("%s:%s", c.Server.Host, c.Server.Port)
}

// Location returns the zone relative dates are resolved in.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Parser.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func trimAll(values []string) []string {
	res := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v != "" {
			res = append(res, v)
		}
	}
	return res
}
