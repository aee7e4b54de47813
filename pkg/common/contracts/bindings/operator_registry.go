package bindings

import (
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
)

// OperatorRegistryMetaData holds the read-only quorum view of the registry.
var OperatorRegistryMetaData = &bind.MetaData{
	ABI: `[
{"type":"function","name":"getQuorumOperators","stateMutability":"view","inputs":[
	{"name":"quorumNumbers","type":"bytes","internalType":"bytes"},
	{"name":"blockNumber","type":"uint32","internalType":"uint32"}],
	"outputs":[{"name":"","type":"tuple[]","internalType":"struct IOperatorRegistry.QuorumOperator[]","components":[
		{"name":"operatorId","type":"bytes32","internalType":"bytes32"},
		{"name":"operator","type":"address","internalType":"address"},
		{"name":"stake","type":"uint96","internalType":"uint96"},
		{"name":"pubkeyG1","type":"tuple","internalType":"struct BN254.G1Point","components":[
			{"name":"X","type":"uint256","internalType":"uint256"},
			{"name":"Y","type":"uint256","internalType":"uint256"}]},
		{"name":"pubkeyG2","type":"tuple","internalType":"struct BN254.G2Point","components":[
			{"name":"X","type":"uint256[2]","internalType":"uint256[2]"},
			{"name":"Y","type":"uint256[2]","internalType":"uint256[2]"}]}]}]}
]`,
}

// OperatorRegistryQuorumOperator mirrors IOperatorRegistry.QuorumOperator.
type OperatorRegistryQuorumOperator struct {
	OperatorId [32]byte
	Operator   common.Address
	Stake      *big.Int
	PubkeyG1   BN254G1Point
	PubkeyG2   BN254G2Point
}

// NewOperatorRegistry binds the registry at address.
func NewOperatorRegistry(address common.Address, backend bind.ContractBackend) (*bind.BoundContract, error) {
	parsed, err := OperatorRegistryMetaData.GetAbi()
	if err != nil {
		return nil, err
	}
	return bind.NewBoundContract(address, *parsed, backend, backend, backend), nil
}
