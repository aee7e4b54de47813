package ethereum

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"

	"github.com/Agentopians/WeAi/pkg/common/contracts/bindings"
	"github.com/Agentopians/WeAi/pkg/common/types"
)

// GetQuorumOperators returns the registered operators of quorumNumbers
// with their stake and public keys as of blockNumber.
func (c *ChainClient) GetQuorumOperators(ctx context.Context, quorumNumbers []byte, blockNumber uint32) ([]types.OperatorInfo, error) {
	var out []interface{}
	err := c.registry.Call(&bind.CallOpts{Context: ctx}, &out, "getQuorumOperators", quorumNumbers, blockNumber)
	if err != nil {
		return nil, fmt.Errorf("[ChainClient] failed to get quorum operators at block %d: %w", blockNumber, err)
	}
	raw := *abi.ConvertType(out[0], new([]bindings.OperatorRegistryQuorumOperator)).(*[]bindings.OperatorRegistryQuorumOperator)

	operators := make([]types.OperatorInfo, 0, len(raw))
	for _, op := range raw {
		operators = append(operators, operatorFromBinding(op))
	}
	types.SortOperators(operators)
	return operators, nil
}
