package signer

import (
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/crypto"
)

var taskResponseArgs abi.Arguments

func init() {
	uint32Ty, err := abi.NewType("uint32", "", nil)
	if err != nil {
		panic(err)
	}
	boolTy, err := abi.NewType("bool", "", nil)
	if err != nil {
		panic(err)
	}
	taskResponseArgs = abi.Arguments{{Type: uint32Ty}, {Type: boolTy}}
}

// TaskResponseDigest returns keccak256(abi.encode(uint32 taskIndex, bool verdict)),
// the message every operator signs and the contract re-derives.
func TaskResponseDigest(taskIndex uint32, verdict bool) ([32]byte, error) {
	var digest [32]byte
	encoded, err := taskResponseArgs.Pack(taskIndex, verdict)
	if err != nil {
		return digest, fmt.Errorf("failed to encode task response: %w", err)
	}
	copy(digest[:], crypto.Keccak256(encoded))
	return digest, nil
}
