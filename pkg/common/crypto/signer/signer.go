package signer

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"os"
	"strings"
	"sync"

	"github.com/Layr-Labs/eigensdk-go/signerv2"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/accounts/keystore"
	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

var ErrSignerClosed = errors.New("signer is closed")

// LocalSigner holds an ECDSA key loaded from a keystore file or a hex string.
type LocalSigner struct {
	mu      sync.RWMutex
	key     *ecdsa.PrivateKey
	address ethcommon.Address
}

// NewLocalSigner creates a new local signer
func NewLocalSigner(cfg *Config) (*LocalSigner, error) {
	if cfg == nil {
		return nil, errors.New("[Signer] config is nil")
	}
	if !cfg.IsValid() {
		return nil, errors.New("[Signer] exactly one of keystore path or private key must be set")
	}

	var key *ecdsa.PrivateKey
	if cfg.KeystorePath != "" {
		keyJson, err := os.ReadFile(cfg.KeystorePath)
		if err != nil {
			return nil, fmt.Errorf("[Signer] failed to read keystore file: %w", err)
		}
		decrypted, err := keystore.DecryptKey(keyJson, cfg.Password)
		if err != nil {
			return nil, fmt.Errorf("[Signer] failed to decrypt keystore: %w", err)
		}
		key = decrypted.PrivateKey
	} else {
		var err error
		key, err = crypto.HexToECDSA(strings.TrimPrefix(cfg.PrivateKey, "0x"))
		if err != nil {
			return nil, fmt.Errorf("[Signer] failed to parse private key: %w", err)
		}
	}

	return &LocalSigner{
		key:     key,
		address: crypto.PubkeyToAddress(key.PublicKey),
	}, nil
}

// Address implements TxSigner
func (s *LocalSigner) Address() ethcommon.Address {
	return s.address
}

// SignerFn implements TxSigner using the eigensdk private key signer.
func (s *LocalSigner) SignerFn(chainID *big.Int) (bind.SignerFn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.key == nil {
		return nil, ErrSignerClosed
	}
	fn, err := signerv2.PrivateKeySignerFn(s.key, chainID)
	if err != nil {
		return nil, fmt.Errorf("[Signer] failed to create signer fn: %w", err)
	}
	return bind.SignerFn(fn), nil
}

// Sign signs keccak256(message) with the key
func (s *LocalSigner) Sign(message []byte) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.key == nil {
		return nil, ErrSignerClosed
	}
	signature, err := crypto.Sign(crypto.Keccak256(message), s.key)
	if err != nil {
		return nil, fmt.Errorf("failed to sign message: %w", err)
	}
	return signature, nil
}

// VerifySignature verifies if the signature was signed by the given address
func VerifySignature(address ethcommon.Address, message []byte, signature []byte) bool {
	pubkey, err := crypto.SigToPub(crypto.Keccak256(message), signature)
	if err != nil {
		return false
	}
	return address == crypto.PubkeyToAddress(*pubkey)
}

// Close zeroes the private scalar. Later calls fail with ErrSignerClosed.
func (s *LocalSigner) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.key == nil {
		return
	}
	zeroBigInt(s.key.D)
	s.key = nil
}

func zeroBigInt(b *big.Int) {
	if b == nil {
		return
	}
	words := b.Bits()
	for i := range words {
		words[i] = 0
	}
	b.SetInt64(0)
}
