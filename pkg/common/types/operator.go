package types

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"math/big"
	"sort"
	"strings"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// OperatorID identifies an operator inside a quorum. It is the keccak256
// of the operator's registered G1 public key.
type OperatorID [32]byte

func (id OperatorID) Hex() string {
	return "0x" + hex.EncodeToString(id[:])
}

func (id OperatorID) String() string {
	return id.Hex()
}

// ParseOperatorID accepts a 32-byte hex string with or without 0x prefix.
func ParseOperatorID(s string) (OperatorID, error) {
	var id OperatorID
	raw, err := hex.DecodeString(strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X"))
	if err != nil {
		return id, fmt.Errorf("invalid operator id %q: %w", s, err)
	}
	if len(raw) != len(id) {
		return id, fmt.Errorf("invalid operator id %q: expected %d bytes, got %d", s, len(id), len(raw))
	}
	copy(id[:], raw)
	return id, nil
}

// OperatorIDFromG1 derives the id as keccak256(X || Y), each coordinate
// left padded to 32 bytes.
func OperatorIDFromG1(pub *G1Point) OperatorID {
	x, y := G1ToBig(pub)
	var id OperatorID
	copy(id[:], crypto.Keccak256(
		ethcommon.LeftPadBytes(x.Bytes(), 32),
		ethcommon.LeftPadBytes(y.Bytes(), 32),
	))
	return id
}

// OperatorInfo is a quorum member as of a task's creation block.
type OperatorInfo struct {
	ID       OperatorID
	Address  ethcommon.Address
	Stake    *big.Int
	PubkeyG1 *G1Point
	PubkeyG2 *G2Point
}

// SortOperators orders operators by id, the order used for signer bitmaps.
func SortOperators(ops []OperatorInfo) {
	sort.Slice(ops, func(i, j int) bool {
		return bytes.Compare(ops[i].ID[:], ops[j].ID[:]) < 0
	})
}

// SortOperatorIDs sorts ids in place.
func SortOperatorIDs(ids []OperatorID) {
	sort.Slice(ids, func(i, j int) bool {
		return bytes.Compare(ids[i][:], ids[j][:]) < 0
	})
}

// Attestation is one operator's signed verdict on one task.
type Attestation struct {
	TaskIndex     uint32
	OperatorID    OperatorID
	Verdict       bool
	Signature     *Signature
	ObservedBlock uint64
}
