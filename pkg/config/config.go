package config

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	LLM       LLMConfig
	Databases DatabasesConfig
	Pipeline  PipelineConfig
	Redis     RedisConfig
	Milvus    MilvusConfig
	Neo4j     Neo4jConfig
	Ledger    LedgerConfig
	Server    ServerConfig
	Logging   LoggingConfig
}

type LLMConfig struct {
	Provider       string
	Model          string
	APIKey         string
	BaseURL        string
	MaxTokens      int
	TimeoutSec     int
	EmbeddingModel string
	EmbeddingDim   int
}

// DatabasesConfig locates target databases. Root follows the
// <root>/<db_id>/<db_id>.sqlite convention; Overrides point an id elsewhere.
type DatabasesConfig struct {
	Root      string
	Overrides []DatabaseOverride
}

type DatabaseOverride struct {
	ID       string
	Driver   string
	DSN      string
	Glossary string
}

type PipelineConfig struct {
	Mode      string
	DBIDs     []string
	Count     int
	OutputDir string
	Stages    []string
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
	TTLHours int
}

type MilvusConfig struct {
	Endpoint       string
	APIKey         string
	CollectionName string
	ChunkSize      int
	ChunkOverlap   int
}

type Neo4jConfig struct {
	URI      string
	Username string
	Password string
	Database string
}

type LedgerConfig struct {
	Path string
}

type ServerConfig struct {
	Host                 string
	Port                 int
	ReadTimeout          int
	WriteTimeout         int
	BodyLimit            int
	MaxRequestsPerMinute int
	AllowedOrigins       []string
	Development          bool
}

type LoggingConfig struct {
	Level      string
	Format     string
	OutputPath string
}

// Option adjusts the viper instance before the config file is read.
type Option func(v *viper.Viper) error

// WithFlags binds flags to config keys. A flag wins over the file and the
// environment only when it was set on the command line.
func WithFlags(fs *pflag.FlagSet, keys map[string]string) Option {
	return func(v *viper.Viper) error {
		for name, key := range keys {
			f := fs.Lookup(name)
			if f == nil {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return fmt.Errorf("failed to bind flag %s: %w", name, err)
			}
		}
		return nil
	}
}

// Load reads config.yaml (when present) and the environment into a Config.
// configFile overrides the search path when non-empty.
func Load(configFile string, opts ...Option) (*Config, error) {
	v := viper.New()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/mas-rag")
	}

	v.SetEnvPrefix("MAS_RAG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// plain OPENAI_* variables are honored too
	_ = v.BindEnv("llm.apiKey", "MAS_RAG_LLM_APIKEY", "OPENAI_API_KEY")
	_ = v.BindEnv("llm.baseURL", "MAS_RAG_LLM_BASEURL", "OPENAI_BASE_URL")

	SetDefaults(v)

	for _, opt := range opts {
		if err := opt(v); err != nil {
			return nil, err
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}

func SetDefaults(v *viper.Viper) {
	v.SetDefault("llm.provider", "openai")
	v.SetDefault("llm.model", "gpt-5")
	v.SetDefault("llm.maxTokens", 4096)
	v.SetDefault("llm.timeoutSec", 120)
	v.SetDefault("llm.embeddingModel", "text-embedding-3-small")
	v.SetDefault("llm.embeddingDim", 1536)

	v.SetDefault("databases.root", "./dev_databases")

	v.SetDefault("pipeline.mode", "targeted")
	v.SetDefault("pipeline.dbIds", []string{"california_schools"})
	v.SetDefault("pipeline.count", 5)
	v.SetDefault("pipeline.outputDir", "./dataset")
	v.SetDefault("pipeline.stages", []string{"generate", "execute", "synthesize"})

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.ttlHours", 168)

	v.SetDefault("milvus.endpoint", "localhost:19530")
	v.SetDefault("milvus.collectionName", "mas_rag_documents")
	v.SetDefault("milvus.chunkSize", 1000)
	v.SetDefault("milvus.chunkOverlap", 100)

	v.SetDefault("neo4j.uri", "bolt://localhost:7687")
	v.SetDefault("neo4j.username", "neo4j")
	v.SetDefault("neo4j.password", "password")
	v.SetDefault("neo4j.database", "neo4j")

	v.SetDefault("ledger.path", "")

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.readTimeout", 30)
	v.SetDefault("server.writeTimeout", 30)
	v.SetDefault("server.bodyLimit", 1048576)
	v.SetDefault("server.maxRequestsPerMinute", 30)
	v.SetDefault("server.allowedOrigins", []string{"*"})
	v.SetDefault("server.development", false)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.outputPath", "stderr")
}
