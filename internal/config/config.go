package config

import (
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Auth    AuthConfig    `mapstructure:"auth"`
	Storage StorageConfig `mapstructure:"storage"`
	Mongo   MongoConfig   `mapstructure:"mongo"`
	Redis   RedisConfig   `mapstructure:"redis"`
	MinIO   MinIOConfig   `mapstructure:"minio"`
	Scylla  ScyllaConfig  `mapstructure:"scylla"`
	Log     LogConfig     `mapstructure:"log"`
}

type ServerConfig struct {
	Host        string   `mapstructure:"host"`
	Port        int      `mapstructure:"port"`
	CORSOrigins []string `mapstructure:"cors_origins"`
	UploadsDir  string   `mapstructure:"uploads_dir"`
}

type AuthConfig struct {
	JWTSecret     string        `mapstructure:"jwt_secret"`
	TokenTTL      time.Duration `mapstructure:"token_ttl"`
	AdminEmail    string        `mapstructure:"admin_email"`
	AdminPassword string        `mapstructure:"admin_password"`
}

// StorageConfig selects the repository backend: "mongo" or "memory".
type StorageConfig struct {
	Driver string `mapstructure:"driver"`
}

type MongoConfig struct {
	URI      string `mapstructure:"uri"`
	Database string `mapstructure:"database"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type MinIOConfig struct {
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Bucket    string `mapstructure:"bucket"`
	UseSSL    bool   `mapstructure:"use_ssl"`
}

// Enabled reports whether product images go to MinIO rather than local disk.
func (c MinIOConfig) Enabled() bool {
	return c.Endpoint != "" && c.Bucket != ""
}

type ScyllaConfig struct {
	Hosts    []string      `mapstructure:"hosts"`
	Keyspace string        `mapstructure:"keyspace"`
	Username string        `mapstructure:"username"`
	Password string        `mapstructure:"password"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

func (c ScyllaConfig) Enabled() bool {
	return len(c.Hosts) > 0 && c.Hosts[0] != "" && c.Keyspace != ""
}

type LogConfig struct {
	Level    string `mapstructure:"level"`
	Encoding string `mapstructure:"encoding"`
}

var defaults = map[string]interface{}{
	"server.host":         "0.0.0.0",
	"server.port":         8080,
	"server.cors_origins": []string{"*"},
	"server.uploads_dir":  "uploads",
	"auth.jwt_secret":     "change-me",
	"auth.token_ttl":      7 * 24 * time.Hour,
	"auth.admin_email":    "",
	"auth.admin_password": "",
	"storage.driver":      "mongo",
	"mongo.uri":           "mongodb://localhost:27017",
	"mongo.database":      "storefront",
	"redis.addr":          "localhost:6379",
	"redis.password":      "",
	"redis.db":            0,
	"minio.endpoint":      "",
	"minio.access_key":    "",
	"minio.secret_key":    "",
	"minio.bucket":        "product-images",
	"minio.use_ssl":       false,
	"scylla.hosts":        []string{},
	"scylla.keyspace":     "",
	"scylla.username":     "",
	"scylla.password":     "",
	"scylla.timeout":      5 * time.Second,
	"log.level":           "info",
	"log.encoding":        "json",
}

// Load reads an optional .env file then binds the environment onto Config.
// Keys map to variables by upper-casing and replacing dots, so "mongo.uri"
// is read from MONGO_URI. Lists are comma separated.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	// A missing .env is fine; the process environment still applies.
	_ = godotenv.Load(envFiles...)

	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
