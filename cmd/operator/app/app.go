package app

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/Agentopians/WeAi/internal/metric"
	"github.com/Agentopians/WeAi/pkg/common/contracts/ethereum"
	"github.com/Agentopians/WeAi/pkg/common/crypto/signer"
	"github.com/Agentopians/WeAi/pkg/config"
	"github.com/Agentopians/WeAi/pkg/operator"
	"github.com/Agentopians/WeAi/pkg/operator/client"
	"github.com/Agentopians/WeAi/pkg/policy"
)

const shutdownTimeout = 5 * time.Second

// App holds all the dependencies
type App struct {
	cfg     *config.OperatorConfig
	secrets *config.OperatorSecrets

	blsSigner    *signer.BLSSigner
	ecdsaSigner  *signer.LocalSigner
	chainClient  *ethereum.ChainClient
	operator     *operator.Operator
	metricServer *metric.Server
}

func New(cfg *config.OperatorConfig, secrets *config.OperatorSecrets) *App {
	return &App{cfg: cfg, secrets: secrets}
}

// Run starts the operator and blocks until ctx is done.
func (a *App) Run(ctx context.Context) error {
	defer a.close()

	if err := a.initSigners(); err != nil {
		return fmt.Errorf("failed to initialize signer: %w", err)
	}
	if err := a.initChainClient(ctx); err != nil {
		return fmt.Errorf("failed to initialize chain client: %w", err)
	}
	if err := a.initOperator(); err != nil {
		return fmt.Errorf("failed to initialize operator: %w", err)
	}
	a.metricServer = metric.New(nil)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(a.metricServer.Start)
	g.Go(func() error { return a.operator.Run(gctx) })
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := a.metricServer.Stop(shutdownCtx); err != nil {
			log.Printf("[Main] Metric server shutdown error: %v", err)
		}
		return nil
	})

	metric.RecordRequest("operator", "startup_complete")
	event := log.Info().Stringer("operator_id", a.blsSigner.OperatorID())
	if a.ecdsaSigner != nil {
		event = event.Str("address", a.ecdsaSigner.Address().Hex())
	}
	event.Str("aggregator", a.cfg.Delivery.AggregatorURL).Msg("[Main] Operator node started")

	err := g.Wait()
	log.Printf("[Main] Operator node stopped")
	return err
}

func (a *App) close() {
	if a.chainClient != nil {
		a.chainClient.Close()
	}
	if a.blsSigner != nil {
		a.blsSigner.Close()
	}
	if a.ecdsaSigner != nil {
		a.ecdsaSigner.Close()
	}
}

// initSigners loads the BLS attestation key. The ECDSA key only identifies
// the operator address and is optional.
func (a *App) initSigners() error {
	var err error
	a.blsSigner, err = signer.NewBLSSigner(&signer.BLSConfig{
		KeystorePath: a.cfg.BLSKeystore,
		Password:     a.secrets.BLSKeyPassword,
	})
	if err != nil {
		metric.RecordError("signer_init_failed")
		return err
	}

	if a.cfg.ECDSAKeystore == "" {
		return nil
	}
	a.ecdsaSigner, err = signer.NewLocalSigner(&signer.Config{
		KeystorePath: a.cfg.ECDSAKeystore,
		Password:     a.secrets.ECDSAKeyPassword,
	})
	if err != nil {
		metric.RecordError("signer_init_failed")
		return err
	}
	return nil
}

// initChainClient connects read-only, the operator never sends transactions
func (a *App) initChainClient(ctx context.Context) error {
	var err error
	a.chainClient, err = ethereum.NewChainClient(ctx, &ethereum.Config{
		RPCEndpoint:        a.cfg.Chain.RPC,
		TaskManagerAddress: common.HexToAddress(a.cfg.Chain.Contracts.TaskManager),
		RegistryAddress:    common.HexToAddress(a.cfg.Chain.Contracts.Registry),
	})
	if err != nil {
		metric.RecordError("chain_client_init_failed")
		return err
	}
	return nil
}

func (a *App) initOperator() error {
	aggClient, err := client.New(&client.Config{
		BaseURL: a.cfg.Delivery.AggregatorURL,
		Timeout: a.cfg.Delivery.RequestTimeout,
	})
	if err != nil {
		return err
	}

	policyCfg := a.cfg.Policy
	a.operator, err = operator.New(&operator.Config{
		TaskSource:    a.chainClient,
		Evaluator:     policy.NewEvaluator(&policyCfg),
		Signer:        a.blsSigner,
		Aggregator:    aggClient,
		PollInterval:  a.cfg.PollInterval,
		MaxConcurrent: a.cfg.Delivery.MaxConcurrent,
		MaxRequeues:   a.cfg.Delivery.MaxRequeues,
		Retry:         a.cfg.Delivery.Retry,
	})
	return err
}
