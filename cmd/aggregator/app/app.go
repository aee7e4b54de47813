package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/Agentopians/WeAi/internal/database/cache"
	"github.com/Agentopians/WeAi/internal/metric"
	"github.com/Agentopians/WeAi/pkg/aggregator"
	"github.com/Agentopians/WeAi/pkg/aggregator/api"
	"github.com/Agentopians/WeAi/pkg/aggregator/publisher"
	"github.com/Agentopians/WeAi/pkg/common/contracts/ethereum"
	"github.com/Agentopians/WeAi/pkg/common/crypto/signer"
	"github.com/Agentopians/WeAi/pkg/config"
)

const (
	shutdownTimeout = 10 * time.Second
	redisNamespace  = "weai-aggregator"
)

// App holds all the dependencies
type App struct {
	cfg     *config.AggregatorConfig
	secrets *config.AggregatorSecrets

	txSigner     *signer.LocalSigner
	chainClient  *ethereum.ChainClient
	redisConn    redis.UniversalClient
	aggregator   *aggregator.Aggregator
	publisher    *publisher.Publisher
	store        publisher.SubmittedStore
	submitter    *publisher.Submitter
	apiServer    *api.Server
	metricServer *metric.Server
}

func New(cfg *config.AggregatorConfig, secrets *config.AggregatorSecrets) *App {
	return &App{cfg: cfg, secrets: secrets}
}

// Run initializes all components and serves until ctx is done or one of
// them fails.
func (a *App) Run(ctx context.Context) error {
	defer a.close()

	if err := a.initSigner(); err != nil {
		return fmt.Errorf("failed to initialize signer: %w", err)
	}
	if err := a.initChainClient(ctx); err != nil {
		return fmt.Errorf("failed to initialize chain client: %w", err)
	}
	if err := a.initAggregator(); err != nil {
		return fmt.Errorf("failed to initialize aggregator: %w", err)
	}
	if err := a.initPublisher(); err != nil {
		return fmt.Errorf("failed to initialize publisher: %w", err)
	}
	if err := a.initStore(ctx); err != nil {
		return fmt.Errorf("failed to initialize settlement store: %w", err)
	}
	if err := a.initSubmitter(); err != nil {
		return fmt.Errorf("failed to initialize submitter: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)

	if err := a.initAPI(gctx); err != nil {
		return fmt.Errorf("failed to initialize API: %w", err)
	}
	a.metricServer = metric.New(nil)

	g.Go(a.apiServer.Start)
	g.Go(a.metricServer.Start)
	g.Go(func() error { return a.aggregator.Run(gctx) })
	g.Go(func() error { return a.submitter.Run(gctx) })
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := a.apiServer.Stop(shutdownCtx); err != nil {
			log.Printf("[Main] API server shutdown error: %v", err)
		}
		if err := a.metricServer.Stop(shutdownCtx); err != nil {
			log.Printf("[Main] Metric server shutdown error: %v", err)
		}
		return nil
	})

	metric.RecordRequest("aggregator", "startup_complete")
	log.Info().
		Str("address", a.txSigner.Address().Hex()).
		Str("http", a.cfg.HTTP.Addr()).
		Str("settlement_store", a.cfg.Settlement.Store).
		Msg("[Main] Aggregator started")

	err := g.Wait()
	log.Printf("[Main] Aggregator stopped")
	return err
}

// close releases held resources and zeroes key material
func (a *App) close() {
	if a.redisConn != nil {
		if err := a.redisConn.Close(); err != nil {
			log.Printf("[Main] Failed to close redis: %v", err)
		}
	}
	if a.chainClient != nil {
		a.chainClient.Close()
	}
	if a.txSigner != nil {
		a.txSigner.Close()
	}
}

func (a *App) initSigner() error {
	var err error
	a.txSigner, err = signer.NewLocalSigner(&signer.Config{
		KeystorePath: a.cfg.ECDSAKeystore,
		Password:     a.secrets.ECDSAKeyPassword,
	})
	if err != nil {
		metric.RecordError("signer_init_failed")
		return err
	}
	return nil
}

func (a *App) initChainClient(ctx context.Context) error {
	var err error
	a.chainClient, err = ethereum.NewChainClient(ctx, &ethereum.Config{
		RPCEndpoint:        a.cfg.Chain.RPC,
		TaskManagerAddress: common.HexToAddress(a.cfg.Chain.Contracts.TaskManager),
		RegistryAddress:    common.HexToAddress(a.cfg.Chain.Contracts.Registry),
		TxSigner:           a.txSigner,
		GasLimit:           a.cfg.Chain.GasLimit,
	})
	if err != nil {
		metric.RecordError("chain_client_init_failed")
		return err
	}
	return nil
}

func (a *App) initAggregator() error {
	var err error
	a.aggregator, err = aggregator.New(&aggregator.Config{
		SweepInterval: a.cfg.Aggregation.SweepInterval,
		Retention:     a.cfg.Aggregation.Retention,
	})
	return err
}

func (a *App) initPublisher() error {
	var err error
	a.publisher, err = publisher.NewPublisher(&publisher.Config{
		ChainClient:   a.chainClient,
		Aggregator:    a.aggregator,
		QuorumNumbers: a.cfg.Publish.QuorumNumbers,
		TimeToExpiry:  a.cfg.Aggregation.TimeToExpiry,
		Retry:         a.cfg.Settlement.Retry,
	})
	return err
}

func (a *App) initStore(ctx context.Context) error {
	if !strings.EqualFold(a.cfg.Settlement.Store, config.StoreRedis) {
		a.store = publisher.NewMemoryStore()
		return nil
	}

	redisCfg, err := cache.LoadConfig("redis")
	if err != nil {
		return err
	}
	a.redisConn, err = cache.NewRedisClient(ctx, redisCfg)
	if err != nil {
		metric.RecordError("cache_init_failed")
		return err
	}
	client, err := cache.New(a.redisConn, redisNamespace)
	if err != nil {
		return err
	}
	a.store, err = publisher.NewRedisStore(client, a.cfg.Settlement.RecordTTL)
	return err
}

func (a *App) initSubmitter() error {
	var err error
	a.submitter, err = publisher.NewSubmitter(&publisher.SubmitterConfig{
		ChainClient: a.chainClient,
		Results:     a.aggregator,
		Store:       a.store,
		Retry:       a.cfg.Settlement.Retry,
	})
	return err
}

func (a *App) initAPI(ctx context.Context) error {
	handler, err := api.NewHandler(api.Config{
		Aggregator:              a.aggregator,
		Publisher:               a.publisher,
		DefaultThresholdPercent: a.cfg.Publish.ThresholdPercent,
	})
	if err != nil {
		metric.RecordError("api_handler_creation_failed")
		return err
	}
	router := handler.NewRouter(ctx, api.RouterConfig{
		PublishRate:  rate.Limit(a.cfg.Publish.RateLimit),
		PublishBurst: a.cfg.Publish.RateBurst,
	})
	a.apiServer = api.NewServer(router, a.cfg.HTTP.Addr())
	return nil
}
