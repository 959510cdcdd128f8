package database

import (
	"context"
	"fmt"
	"time"

	"github.com/gocql/gocql"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"storefront/internal/config"
)

// Clients holds every backing service connection the server uses. Optional
// services (MinIO, Scylla) are nil when not configured.
type Clients struct {
	Mongo   *mongo.Client
	MongoDB *mongo.Database
	Redis   *redis.Client
	MinIO   *minio.Client
	Scylla  *gocql.Session
}

func Connect(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Clients, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	c := &Clients{}

	if cfg.Storage.Driver == "mongo" {
		if err := c.connectMongo(ctx, cfg.Mongo); err != nil {
			return nil, err
		}
		logger.Info("Connected to MongoDB", zap.String("database", cfg.Mongo.Database))
	}

	if err := c.connectRedis(ctx, cfg.Redis); err != nil {
		c.Close(context.Background())
		return nil, err
	}
	logger.Info("Connected to Redis", zap.String("addr", cfg.Redis.Addr))

	if cfg.MinIO.Enabled() {
		if err := c.connectMinIO(ctx, cfg.MinIO); err != nil {
			c.Close(context.Background())
			return nil, err
		}
		logger.Info("Connected to MinIO",
			zap.String("endpoint", cfg.MinIO.Endpoint),
			zap.String("bucket", cfg.MinIO.Bucket))
	}

	if cfg.Scylla.Enabled() {
		if err := c.connectScylla(cfg.Scylla); err != nil {
			c.Close(context.Background())
			return nil, err
		}
		logger.Info("Connected to ScyllaDB", zap.String("keyspace", cfg.Scylla.Keyspace))
	}

	return c, nil
}

func (c *Clients) connectMongo(ctx context.Context, cfg config.MongoConfig) error {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return fmt.Errorf("ping mongo: %w", err)
	}
	c.Mongo = client
	c.MongoDB = client.Database(cfg.Database)
	return nil
}

func (c *Clients) connectRedis(ctx context.Context, cfg config.RedisConfig) error {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return fmt.Errorf("ping redis: %w", err)
	}
	c.Redis = client
	return nil
}

func (c *Clients) connectMinIO(ctx context.Context, cfg config.MinIOConfig) error {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return fmt.Errorf("connect minio: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("create bucket %s: %w", cfg.Bucket, err)
		}
	}
	c.MinIO = client
	return nil
}

func (c *Clients) connectScylla(cfg config.ScyllaConfig) error {
	cluster := gocql.NewCluster(cfg.Hosts...)
	cluster.Keyspace = cfg.Keyspace
	cluster.Consistency = gocql.Quorum
	cluster.Timeout = cfg.Timeout
	cluster.ReconnectInterval = time.Second
	if cfg.Username != "" {
		cluster.Authenticator = gocql.PasswordAuthenticator{
			Username: cfg.Username,
			Password: cfg.Password,
		}
	}
	cluster.PoolConfig.HostSelectionPolicy = gocql.TokenAwareHostPolicy(gocql.RoundRobinHostPolicy())

	session, err := cluster.CreateSession()
	if err != nil {
		return fmt.Errorf("connect scylla keyspace %s: %w", cfg.Keyspace, err)
	}
	c.Scylla = session
	return nil
}

func (c *Clients) Close(ctx context.Context) {
	if c.Scylla != nil {
		c.Scylla.Close()
	}
	if c.Redis != nil {
		_ = c.Redis.Close()
	}
	if c.Mongo != nil {
		_ = c.Mongo.Disconnect(ctx)
	}
}
