package signer

import (
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	ethcommon "github.com/ethereum/go-ethereum/common"

	"github.com/Agentopians/WeAi/pkg/common/types"
)

// TxSigner signs ledger transactions.
type TxSigner interface {
	// Address returns the account the transactions are sent from
	Address() ethcommon.Address
	// SignerFn returns a go-ethereum signer bound to chainID
	SignerFn(chainID *big.Int) (bind.SignerFn, error)
	// Close zeroes the key material
	Close()
}

// AttestationSigner signs task verdicts with an operator's BLS key.
type AttestationSigner interface {
	// SignAttestation signs the digest of (taskIndex, verdict)
	SignAttestation(taskIndex uint32, verdict bool) (*types.Signature, error)
	// OperatorID returns the id derived from the G1 public key
	OperatorID() types.OperatorID
	PublicKeyG1() *types.G1Point
	PublicKeyG2() *types.G2Point
	Close()
}
