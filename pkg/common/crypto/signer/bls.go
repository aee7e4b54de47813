package signer

import (
	"errors"
	"fmt"
	"sync"

	"github.com/Layr-Labs/eigensdk-go/crypto/bls"

	"github.com/Agentopians/WeAi/pkg/common/types"
)

// BLSSigner signs attestations with an operator's BLS key pair.
type BLSSigner struct {
	mu         sync.RWMutex
	keyPair    *bls.KeyPair
	pubG1      *types.G1Point
	pubG2      *types.G2Point
	operatorID types.OperatorID
}

// NewBLSSigner reads an eigensdk BLS keystore.
func NewBLSSigner(cfg *BLSConfig) (*BLSSigner, error) {
	if cfg == nil {
		return nil, errors.New("[Signer] bls config is nil")
	}
	if cfg.KeystorePath == "" {
		return nil, errors.New("[Signer] bls keystore path is empty")
	}
	kp, err := bls.ReadPrivateKeyFromFile(cfg.KeystorePath, cfg.Password)
	if err != nil {
		return nil, fmt.Errorf("[Signer] failed to read bls keystore: %w", err)
	}
	return NewBLSSignerFromKeyPair(kp), nil
}

// NewBLSSignerFromKeyPair takes ownership of kp.
func NewBLSSignerFromKeyPair(kp *bls.KeyPair) *BLSSigner {
	pubG1 := kp.GetPubKeyG1()
	return &BLSSigner{
		keyPair:    kp,
		pubG1:      pubG1,
		pubG2:      kp.GetPubKeyG2(),
		operatorID: types.OperatorIDFromG1(pubG1),
	}
}

func (s *BLSSigner) SignAttestation(taskIndex uint32, verdict bool) (*types.Signature, error) {
	digest, err := TaskResponseDigest(taskIndex, verdict)
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.keyPair == nil {
		return nil, ErrSignerClosed
	}
	return s.keyPair.SignMessage(digest), nil
}

func (s *BLSSigner) OperatorID() types.OperatorID { return s.operatorID }

func (s *BLSSigner) PublicKeyG1() *types.G1Point { return s.pubG1 }

func (s *BLSSigner) PublicKeyG2() *types.G2Point { return s.pubG2 }

// Close zeroes the private key.
func (s *BLSSigner) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.keyPair == nil {
		return
	}
	if s.keyPair.PrivKey != nil {
		s.keyPair.PrivKey.SetZero()
	}
	s.keyPair = nil
}

// AggregateSignatures sums the signatures. Inputs are not modified.
func AggregateSignatures(sigs []*types.Signature) *types.Signature {
	agg := bls.NewZeroSignature()
	for _, sig := range sigs {
		agg.Add(sig)
	}
	return agg
}

// AggregatePublicKeys sums G2 public keys. Inputs are not modified.
func AggregatePublicKeys(keys []*types.G2Point) *types.G2Point {
	apk := bls.NewZeroG2Point()
	for _, k := range keys {
		apk.Add(k)
	}
	return apk
}

// Verify checks sig against pub over the task response digest.
func Verify(sig *types.Signature, pub *types.G2Point, taskIndex uint32, verdict bool) (bool, error) {
	if sig == nil || sig.G1Point == nil || sig.G1Affine == nil {
		return false, errors.New("signature is empty")
	}
	if !sig.G1Affine.IsOnCurve() {
		return false, nil
	}
	digest, err := TaskResponseDigest(taskIndex, verdict)
	if err != nil {
		return false, err
	}
	ok, err := sig.Verify(pub, digest)
	if err != nil {
		return false, fmt.Errorf("failed to verify signature: %w", err)
	}
	return ok, nil
}
