package config

import (
	"strings"
	"time"

	pkgconfig "github.com/weiawesome/wes-io-chat/pkg/config"
	"github.com/weiawesome/wes-io-chat/pkg/pubsub"
)

type Config struct {
	Server       ServerConfig
	WebSocket    WebSocketConfig
	Database     DatabaseConfig
	MessageStore MessageStoreConfig `mapstructure:"message_store"`
	Cassandra    CassandraConfig
	Redis        RedisConfig
	Cache        CacheConfig
	Relay        RelayConfig
	Auth         AuthConfig
	Chat         ChatConfig
	Log          LogConfig
}

type ServerConfig struct {
	Host            string
	Port            int
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type WebSocketConfig struct {
	PingInterval   time.Duration `mapstructure:"ping_interval"`
	PongWait       time.Duration `mapstructure:"pong_wait"`
	WriteWait      time.Duration `mapstructure:"write_wait"`
	MaxMessageSize int64         `mapstructure:"max_message_size"`
	SendBuffer     int           `mapstructure:"send_buffer"`
}

type DatabaseConfig struct {
	Driver          string `mapstructure:"driver"`
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	FilePath        string `mapstructure:"file_path"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`
	LogLevel        string `mapstructure:"log_level"`
}

// MessageStoreConfig selects where the message log lives: "gorm" shares
// the relational database, "cassandra" uses the wide-column cluster.
type MessageStoreConfig struct {
	Driver string
}

type CassandraConfig struct {
	Hosts             []string
	Keyspace          string
	Consistency       string
	Username          string
	Password          string
	ConnectTimeout    time.Duration `mapstructure:"connect_timeout"`
	Timeout           time.Duration
	NumConns          int  `mapstructure:"num_conns"`
	PageSize          int  `mapstructure:"page_size"`
	CreateSchema      bool `mapstructure:"create_schema"`
	ReplicationFactor int  `mapstructure:"replication_factor"`
}

type RedisConfig struct {
	Address  string
	Password string
	DB       int
}

// CacheConfig controls the room metadata cache. Driver "none" disables it.
type CacheConfig struct {
	Driver string
	Prefix string
	TTL    time.Duration
}

// RelayConfig selects cross-instance fan-out. Driver "local" delivers
// only to this process's connections.
type RelayConfig struct {
	Driver string
	Kafka  pubsub.KafkaConfig
}

type AuthConfig struct {
	JWTSecret string        `mapstructure:"jwt_secret"`
	Issuer    string        `mapstructure:"issuer"`
	TokenTTL  time.Duration `mapstructure:"token_ttl"`
}

type ChatConfig struct {
	MaxContentLength  int           `mapstructure:"max_content_length"`
	MaxRoomNameLength int           `mapstructure:"max_room_name_length"`
	RequestTimeout    time.Duration `mapstructure:"request_timeout"`
	HistoryPageLimit  int           `mapstructure:"history_page_limit"`
	AppendRetries     int           `mapstructure:"append_retries"`
	SeqCacheSize      int           `mapstructure:"seq_cache_size"`
}

type LogConfig struct {
	Level  string
	Pretty bool
}

// Load reads config/config.yaml (if any) and the environment.
func Load() (*Config, error) {
	return LoadFrom("./config", "config")
}

// LoadFrom is Load with an explicit directory and file name.
func LoadFrom(configPath, configName string) (*Config, error) {
	v, err := pkgconfig.Load(configPath, configName)
	if err != nil {
		return nil, err
	}

	// Set defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8090)
	v.SetDefault("server.shutdown_timeout", "15s")
	v.SetDefault("websocket.ping_interval", "30s")
	v.SetDefault("websocket.pong_wait", "60s")
	v.SetDefault("websocket.write_wait", "10s")
	v.SetDefault("websocket.max_message_size", 8192)
	v.SetDefault("websocket.send_buffer", 256)
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "chat")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.file_path", "./data/chat.db")
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.max_open_conns", 100)
	v.SetDefault("database.conn_max_lifetime", 60)
	v.SetDefault("database.log_level", "warn")
	v.SetDefault("message_store.driver", "gorm")
	v.SetDefault("cassandra.hosts", []string{"localhost"})
	v.SetDefault("cassandra.keyspace", "chat")
	v.SetDefault("cassandra.consistency", "LOCAL_QUORUM")
	v.SetDefault("cassandra.connect_timeout", "5s")
	v.SetDefault("cassandra.timeout", "2s")
	v.SetDefault("cassandra.num_conns", 2)
	v.SetDefault("cassandra.page_size", 500)
	v.SetDefault("cassandra.create_schema", true)
	v.SetDefault("cassandra.replication_factor", 1)
	v.SetDefault("redis.address", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("cache.driver", "none")
	v.SetDefault("cache.prefix", "chat:room")
	v.SetDefault("cache.ttl", "10m")
	v.SetDefault("relay.driver", "local")
	v.SetDefault("relay.kafka.brokers", "localhost:9092")
	v.SetDefault("relay.kafka.group_id", "chat-relay")
	v.SetDefault("relay.kafka.partitions", 8)
	v.SetDefault("auth.issuer", "wes-io-chat")
	v.SetDefault("auth.token_ttl", "24h")
	v.SetDefault("chat.max_content_length", 4000)
	v.SetDefault("chat.max_room_name_length", 100)
	v.SetDefault("chat.request_timeout", "5s")
	v.SetDefault("chat.history_page_limit", 100)
	v.SetDefault("chat.append_retries", 3)
	v.SetDefault("chat.seq_cache_size", 10000)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)

	// Override from environment
	v.BindEnv("server.port", "PORT")
	v.BindEnv("database.driver", "DB_DRIVER")
	v.BindEnv("database.host", "DB_HOST")
	v.BindEnv("database.port", "DB_PORT")
	v.BindEnv("database.user", "DB_USER")
	v.BindEnv("database.password", "DB_PASSWORD")
	v.BindEnv("database.dbname", "DB_NAME")
	v.BindEnv("database.sslmode", "DB_SSLMODE")
	v.BindEnv("database.file_path", "DB_FILE_PATH")
	v.BindEnv("message_store.driver", "MESSAGE_STORE_DRIVER")
	v.BindEnv("cassandra.hosts", "CASSANDRA_HOSTS")
	v.BindEnv("cassandra.keyspace", "CASSANDRA_KEYSPACE")
	v.BindEnv("cassandra.username", "CASSANDRA_USERNAME")
	v.BindEnv("cassandra.password", "CASSANDRA_PASSWORD")
	v.BindEnv("redis.address", "REDIS_ADDRESS")
	v.BindEnv("redis.password", "REDIS_PASSWORD")
	v.BindEnv("cache.driver", "CACHE_DRIVER")
	v.BindEnv("relay.driver", "RELAY_DRIVER")
	v.BindEnv("relay.kafka.brokers", "KAFKA_BROKERS")
	v.BindEnv("auth.jwt_secret", "JWT_SECRET")
	v.BindEnv("log.level", "LOG_LEVEL")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	cfg.Cassandra.Hosts = splitList(v.GetStringSlice("cassandra.hosts"))

	cfg.Server.ShutdownTimeout = pkgconfig.Duration(v, "server.shutdown_timeout", 15*time.Second)
	cfg.WebSocket.PingInterval = pkgconfig.Duration(v, "websocket.ping_interval", 30*time.Second)
	cfg.WebSocket.PongWait = pkgconfig.Duration(v, "websocket.pong_wait", 60*time.Second)
	cfg.WebSocket.WriteWait = pkgconfig.Duration(v, "websocket.write_wait", 10*time.Second)
	cfg.Cassandra.ConnectTimeout = pkgconfig.Duration(v, "cassandra.connect_timeout", 5*time.Second)
	cfg.Cassandra.Timeout = pkgconfig.Duration(v, "cassandra.timeout", 2*time.Second)
	cfg.Cache.TTL = pkgconfig.Duration(v, "cache.ttl", 10*time.Minute)
	cfg.Auth.TokenTTL = pkgconfig.Duration(v, "auth.token_ttl", 24*time.Hour)
	cfg.Chat.RequestTimeout = pkgconfig.Duration(v, "chat.request_timeout", 5*time.Second)

	return &cfg, nil
}

// splitList flattens comma separated entries, as delivered by
// CASSANDRA_HOSTS=a,b.
func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
