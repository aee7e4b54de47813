package ethereum

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/Agentopians/WeAi/pkg/common/contracts/bindings"
	"github.com/Agentopians/WeAi/pkg/common/crypto/signer"
)

var (
	ErrReadOnlyClient = errors.New("[ChainClient] client has no transaction signer")
	ErrTxReverted     = errors.New("[ChainClient] transaction reverted")
)

// Backend is the subset of ethclient.Client the chain client needs.
type Backend interface {
	bind.ContractBackend
	bind.DeployBackend
	BlockNumber(ctx context.Context) (uint64, error)
	ChainID(ctx context.Context) (*big.Int, error)
	Close()
}

// ChainClient talks to the TaskManager and OperatorRegistry contracts.
type ChainClient struct {
	backend  Backend
	chainID  *big.Int
	txSigner signer.TxSigner
	signFn   bind.SignerFn
	gasLimit uint64

	taskManagerAddress common.Address
	taskManagerABI     *abi.ABI
	taskManager        *bind.BoundContract
	registry           *bind.BoundContract
}

// NewChainClient dials cfg.RPCEndpoint and binds the contracts.
func NewChainClient(ctx context.Context, cfg *Config) (*ChainClient, error) {
	if cfg == nil {
		return nil, errors.New("[ChainClient] config is nil")
	}
	ethClient, err := ethclient.DialContext(ctx, cfg.RPCEndpoint)
	if err != nil {
		return nil, fmt.Errorf("[ChainClient] failed to connect to Ethereum node: %w", err)
	}
	client, err := NewChainClientWithBackend(ctx, ethClient, cfg)
	if err != nil {
		ethClient.Close()
		return nil, err
	}
	return client, nil
}

// NewChainClientWithBackend binds the contracts on an existing backend.
func NewChainClientWithBackend(ctx context.Context, backend Backend, cfg *Config) (*ChainClient, error) {
	if cfg == nil {
		return nil, errors.New("[ChainClient] config is nil")
	}
	if backend == nil {
		return nil, errors.New("[ChainClient] backend is nil")
	}

	taskManagerABI, err := bindings.TaskManagerMetaData.GetAbi()
	if err != nil {
		return nil, fmt.Errorf("[ChainClient] failed to parse task manager abi: %w", err)
	}
	taskManager, err := bindings.NewTaskManager(cfg.TaskManagerAddress, backend)
	if err != nil {
		return nil, fmt.Errorf("[ChainClient] failed to create task manager binding: %w", err)
	}
	registry, err := bindings.NewOperatorRegistry(cfg.RegistryAddress, backend)
	if err != nil {
		return nil, fmt.Errorf("[ChainClient] failed to create registry binding: %w", err)
	}

	c := &ChainClient{
		backend:            backend,
		txSigner:           cfg.TxSigner,
		gasLimit:           cfg.GasLimit,
		taskManagerAddress: cfg.TaskManagerAddress,
		taskManagerABI:     taskManagerABI,
		taskManager:        taskManager,
		registry:           registry,
	}

	if cfg.TxSigner != nil {
		chainID, err := backend.ChainID(ctx)
		if err != nil {
			return nil, fmt.Errorf("[ChainClient] failed to get chain id: %w", err)
		}
		signFn, err := cfg.TxSigner.SignerFn(chainID)
		if err != nil {
			return nil, fmt.Errorf("[ChainClient] failed to create tx signer: %w", err)
		}
		c.chainID = chainID
		c.signFn = signFn
	}
	return c, nil
}

// Close implements io.Closer semantics for the underlying connection
func (c *ChainClient) Close() error {
	c.backend.Close()
	return nil
}

// BlockNumber returns the latest block number
func (c *ChainClient) BlockNumber(ctx context.Context) (uint64, error) {
	return c.backend.BlockNumber(ctx)
}

// WaitMined blocks until tx is included and returns its receipt. A reverted
// tx returns its receipt and ErrTxReverted.
func (c *ChainClient) WaitMined(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	receipt, err := bind.WaitMined(ctx, c.backend, tx)
	if err != nil {
		return nil, fmt.Errorf("[ChainClient] failed waiting for tx %s: %w", tx.Hash().Hex(), err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return receipt, fmt.Errorf("%w: tx %s", ErrTxReverted, tx.Hash().Hex())
	}
	return receipt, nil
}

func (c *ChainClient) transactOpts(ctx context.Context) (*bind.TransactOpts, error) {
	if c.signFn == nil {
		return nil, ErrReadOnlyClient
	}
	return &bind.TransactOpts{
		From:     c.txSigner.Address(),
		Signer:   c.signFn,
		Context:  ctx,
		GasLimit: c.gasLimit,
	}, nil
}
