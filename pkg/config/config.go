package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/Agentopians/WeAi/pkg/policy"
)

type ChainConfig struct {
	// RPC endpoint for the chain
	RPC string `yaml:"rpc"`

	// Contract addresses
	Contracts ContractConfig `yaml:"contracts"`

	// Gas limit for sent transactions, 0 lets the node estimate
	GasLimit uint64 `yaml:"gas_limit"`
}

type ContractConfig struct {
	// TaskManager contract address
	TaskManager string `yaml:"task_manager"`

	// OperatorRegistry contract address
	Registry string `yaml:"registry"`
}

type HTTPConfig struct {
	Port int    `yaml:"port"`
	Host string `yaml:"host"`
}

func (c HTTPConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type RetryConfig struct {
	MaxAttempts    int           `yaml:"max_attempts"`
	InitialBackoff time.Duration `yaml:"initial_backoff"`
	MaxBackoff     time.Duration `yaml:"max_backoff"`
}

// Backoff returns the wait before retry number attempt (1-based).
func (c RetryConfig) Backoff(attempt int) time.Duration {
	d := c.InitialBackoff
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= c.MaxBackoff {
			return c.MaxBackoff
		}
	}
	if d > c.MaxBackoff {
		return c.MaxBackoff
	}
	return d
}

func (c RetryConfig) validate(name string) error {
	if c.MaxAttempts < 1 {
		return fmt.Errorf("%s.max_attempts must be at least 1", name)
	}
	if c.InitialBackoff <= 0 || c.MaxBackoff < c.InitialBackoff {
		return fmt.Errorf("%s backoff must satisfy 0 < initial_backoff <= max_backoff", name)
	}
	return nil
}

type AggregationConfig struct {
	// How long a task accepts attestations after initialization
	TimeToExpiry time.Duration `yaml:"time_to_expiry"`
	// How often open tasks are checked for expiry
	SweepInterval time.Duration `yaml:"sweep_interval"`
	// How long finalized and expired tasks are kept for status queries
	Retention time.Duration `yaml:"retention"`
}

type PublishConfig struct {
	QuorumNumbers    []byte `yaml:"quorum_numbers"`
	ThresholdPercent uint32 `yaml:"threshold_percent"`
	// Per-IP limit on the publish endpoint
	RateLimit float64 `yaml:"rate_limit"`
	RateBurst int     `yaml:"rate_burst"`
}

type SettlementConfig struct {
	// memory or redis
	Store string `yaml:"store"`
	// How long redis keeps a settlement record, 0 keeps it forever
	RecordTTL time.Duration `yaml:"record_ttl"`
	Retry     RetryConfig   `yaml:"retry"`
}

const (
	StoreMemory = "memory"
	StoreRedis  = "redis"
)

type AggregatorConfig struct {
	Chain         ChainConfig       `yaml:"chain"`
	ECDSAKeystore string            `yaml:"ecdsa_keystore"`
	HTTP          HTTPConfig        `yaml:"http"`
	Aggregation   AggregationConfig `yaml:"aggregation"`
	Publish       PublishConfig     `yaml:"publish"`
	Settlement    SettlementConfig  `yaml:"settlement"`
	Logging       LogConfig         `yaml:"logging"`
}

type DeliveryConfig struct {
	AggregatorURL  string        `yaml:"aggregator_url"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	MaxConcurrent  int           `yaml:"max_concurrent"`
	MaxRequeues    int           `yaml:"max_requeues"`
	Retry          RetryConfig   `yaml:"retry"`
}

type OperatorConfig struct {
	Chain         ChainConfig    `yaml:"chain"`
	BLSKeystore   string         `yaml:"bls_keystore"`
	ECDSAKeystore string         `yaml:"ecdsa_keystore"`
	PollInterval  time.Duration  `yaml:"poll_interval"`
	Delivery      DeliveryConfig `yaml:"delivery"`
	Policy        policy.Config  `yaml:"policy"`
	Logging       LogConfig      `yaml:"logging"`
}

// OperatorSecrets are read from OPERATOR_* environment variables only.
type OperatorSecrets struct {
	BLSKeyPassword   string `envconfig:"BLS_KEY_PASSWORD"`
	ECDSAKeyPassword string `envconfig:"ECDSA_KEY_PASSWORD"`
}

// AggregatorSecrets are read from AGGREGATOR_* environment variables only.
type AggregatorSecrets struct {
	ECDSAKeyPassword string `envconfig:"ECDSA_KEY_PASSWORD"`
}

func LoadOperatorSecrets() (*OperatorSecrets, error) {
	s := &OperatorSecrets{}
	if err := envconfig.Process("operator", s); err != nil {
		return nil, fmt.Errorf("failed to read operator secrets: %w", err)
	}
	return s, nil
}

func LoadAggregatorSecrets() (*AggregatorSecrets, error) {
	s := &AggregatorSecrets{}
	if err := envconfig.Process("aggregator", s); err != nil {
		return nil, fmt.Errorf("failed to read aggregator secrets: %w", err)
	}
	return s, nil
}

func readExpanded(path string) ([]byte, error) {
	log.Printf("Loading config from file: %s", path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	// Replace environment variables in the config file
	return []byte(os.ExpandEnv(string(data))), nil
}

// LoadAggregatorConfig loads the aggregator configuration from path on top
// of the defaults and validates it.
func LoadAggregatorConfig(path string) (*AggregatorConfig, error) {
	content, err := readExpanded(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultAggregatorConfig()
	if err := yaml.Unmarshal(content, cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid aggregator config: %w", err)
	}
	return cfg, nil
}

// LoadOperatorConfig loads the operator configuration from path on top of
// the defaults and validates it.
func LoadOperatorConfig(path string) (*OperatorConfig, error) {
	content, err := readExpanded(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultOperatorConfig()
	if err := yaml.Unmarshal(content, cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid operator config: %w", err)
	}
	return cfg, nil
}

func DefaultAggregatorConfig() *AggregatorConfig {
	return &AggregatorConfig{
		Chain: ChainConfig{
			RPC: "http://localhost:8545",
		},
		HTTP: HTTPConfig{
			Port: 8090,
			Host: "0.0.0.0",
		},
		Aggregation: AggregationConfig{
			TimeToExpiry:  60 * time.Second,
			SweepInterval: time.Second,
			Retention:     time.Hour,
		},
		Publish: PublishConfig{
			QuorumNumbers:    []byte{0},
			ThresholdPercent: 100,
			RateLimit:        1,
			RateBurst:        5,
		},
		Settlement: SettlementConfig{
			Store:     StoreMemory,
			RecordTTL: 7 * 24 * time.Hour,
			Retry: RetryConfig{
				MaxAttempts:    5,
				InitialBackoff: time.Second,
				MaxBackoff:     30 * time.Second,
			},
		},
		Logging: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

func DefaultOperatorConfig() *OperatorConfig {
	return &OperatorConfig{
		Chain: ChainConfig{
			RPC: "http://localhost:8545",
		},
		PollInterval: 3 * time.Second,
		Delivery: DeliveryConfig{
			AggregatorURL:  "http://localhost:8090",
			RequestTimeout: 10 * time.Second,
			MaxConcurrent:  20,
			MaxRequeues:    10,
			Retry: RetryConfig{
				MaxAttempts:    5,
				InitialBackoff: 500 * time.Millisecond,
				MaxBackoff:     8 * time.Second,
			},
		},
		Policy: policy.Config{
			MaxLength: policy.DefaultMaxLength,
			Keywords:  append([]string(nil), policy.DefaultKeywords...),
		},
		Logging: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

func (c ChainConfig) validate() error {
	if c.RPC == "" {
		return errors.New("chain.rpc is required")
	}
	if !common.IsHexAddress(c.Contracts.TaskManager) {
		return fmt.Errorf("chain.contracts.task_manager %q is not an address", c.Contracts.TaskManager)
	}
	if !common.IsHexAddress(c.Contracts.Registry) {
		return fmt.Errorf("chain.contracts.registry %q is not an address", c.Contracts.Registry)
	}
	return nil
}

func (c *AggregatorConfig) Validate() error {
	if err := c.Chain.validate(); err != nil {
		return err
	}
	if c.ECDSAKeystore == "" {
		return errors.New("ecdsa_keystore is required")
	}
	if c.HTTP.Port <= 0 {
		return errors.New("http.port must be positive")
	}
	if c.Aggregation.TimeToExpiry <= 0 || c.Aggregation.SweepInterval <= 0 {
		return errors.New("aggregation.time_to_expiry and aggregation.sweep_interval must be positive")
	}
	if c.Aggregation.Retention < 0 {
		return errors.New("aggregation.retention must not be negative")
	}
	if len(c.Publish.QuorumNumbers) == 0 {
		return errors.New("publish.quorum_numbers must not be empty")
	}
	if c.Publish.ThresholdPercent == 0 || c.Publish.ThresholdPercent > 100 {
		return fmt.Errorf("publish.threshold_percent %d out of range (1..100)", c.Publish.ThresholdPercent)
	}
	if c.Publish.RateLimit <= 0 || c.Publish.RateBurst <= 0 {
		return errors.New("publish.rate_limit and publish.rate_burst must be positive")
	}
	if c.Settlement.RecordTTL < 0 {
		return errors.New("settlement.record_ttl must not be negative")
	}
	switch strings.ToLower(c.Settlement.Store) {
	case StoreMemory, StoreRedis:
	default:
		return fmt.Errorf("settlement.store %q must be %s or %s", c.Settlement.Store, StoreMemory, StoreRedis)
	}
	return c.Settlement.Retry.validate("settlement.retry")
}

func (c *OperatorConfig) Validate() error {
	if err := c.Chain.validate(); err != nil {
		return err
	}
	if c.BLSKeystore == "" {
		return errors.New("bls_keystore is required")
	}
	if c.PollInterval <= 0 {
		return errors.New("poll_interval must be positive")
	}
	if c.Delivery.AggregatorURL == "" {
		return errors.New("delivery.aggregator_url is required")
	}
	if c.Delivery.MaxConcurrent < 1 {
		return errors.New("delivery.max_concurrent must be at least 1")
	}
	if c.Delivery.MaxRequeues < 0 {
		return errors.New("delivery.max_requeues must not be negative")
	}
	if c.Policy.MaxLength <= 0 {
		return errors.New("policy.max_length must be positive")
	}
	return c.Delivery.Retry.validate("delivery.retry")
}
