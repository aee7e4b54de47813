package cache

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	mask "github.com/showa-93/go-mask"
)

type Config struct {
	Host                string        `default:"127.0.0.1"`
	Port                int           `default:"6379"`
	Password            string        `default:"" mask:"fixed"`
	DB                  int           `default:"0"`
	IsElastiCache       bool          `default:"false"`
	IsClusterMode       bool          `default:"false"`
	ClusterAddrs        []string      `default:""`
	ClusterMaxRedirects int           `default:"3"`
	ReadTimeout         time.Duration `default:"3s"`
	PoolSize            int           `default:"50"`
}

// LoadConfig reads <envPrefix>_* variables, e.g. REDIS_HOST.
func LoadConfig(envPrefix string) (*Config, error) {
	c := &Config{}
	if err := envconfig.Process(envPrefix, c); err != nil {
		return nil, fmt.Errorf("failed to read redis config: %w", err)
	}
	return c, nil
}

// NewRedisClient connects to redis, instruments the client and pings it.
func NewRedisClient(ctx context.Context, c *Config) (redis.UniversalClient, error) {
	if c == nil {
		return nil, fmt.Errorf("redis config is nil")
	}
	masker := mask.NewMasker()
	masker.RegisterMaskStringFunc(mask.MaskTypeFilled, masker.MaskFilledString)
	masker.RegisterMaskStringFunc(mask.MaskTypeFixed, masker.MaskFixedString)
	conf, _ := masker.Mask(*c)
	log.Info().Msgf("Redis Config: %+v", conf)

	var redisClient redis.UniversalClient
	if c.IsClusterMode {
		redisClient = redis.NewClusterClient(&redis.ClusterOptions{
			Addrs:        c.ClusterAddrs,
			MaxRedirects: c.ClusterMaxRedirects,
			ReadTimeout:  c.ReadTimeout,
			PoolSize:     c.PoolSize,
			Password:     c.Password,
		})
	} else {
		option := &redis.Options{
			Addr:        fmt.Sprintf("%s:%d", c.Host, c.Port),
			DB:          c.DB,
			ReadTimeout: c.ReadTimeout,
			PoolSize:    c.PoolSize,
			Password:    c.Password,
		}
		if c.IsElastiCache {
			// Elasticache cert cannot be applied to cname record we use
			option.TLSConfig = &tls.Config{
				// nolint: gosec
				InsecureSkipVerify: true,
			}
		}
		redisClient = redis.NewClient(option)
	}

	if err := redisotel.InstrumentTracing(redisClient); err != nil {
		redisClient.Close()
		return nil, fmt.Errorf("failed to instrument redis tracing: %w", err)
	}
	if err := redisotel.InstrumentMetrics(redisClient); err != nil {
		redisClient.Close()
		return nil, fmt.Errorf("failed to instrument redis metrics: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := redisClient.Ping(pingCtx).Err(); err != nil {
		redisClient.Close()
		return nil, fmt.Errorf("failed to connect to redis at %v: %w", conf, err)
	}
	return redisClient, nil
}
