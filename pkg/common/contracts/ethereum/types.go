package ethereum

import (
	"math/big"

	"github.com/Layr-Labs/eigensdk-go/crypto/bls"
	"github.com/ethereum/go-ethereum/common"

	"github.com/Agentopians/WeAi/pkg/common/contracts/bindings"
	"github.com/Agentopians/WeAi/pkg/common/crypto/signer"
	"github.com/Agentopians/WeAi/pkg/common/types"
)

// Config contains Ethereum client configuration
type Config struct {
	RPCEndpoint        string
	TaskManagerAddress common.Address
	RegistryAddress    common.Address
	// TxSigner is required only for clients that send transactions.
	TxSigner signer.TxSigner
	// GasLimit of zero lets the node estimate.
	GasLimit uint64
}

// NewTaskCreatedEvent is a decoded NewTaskCreated log.
type NewTaskCreatedEvent struct {
	Task        types.Task
	BlockNumber uint64
	TxHash      common.Hash
}

func taskFromBinding(index uint32, t bindings.TaskManagerTask) types.Task {
	return types.Task{
		Index:            index,
		Type:             types.TaskType(t.TaskType),
		Prompt:           t.AgentPrompt,
		CreatedBlock:     t.TaskCreatedBlock,
		QuorumNumbers:    t.QuorumNumbers,
		ThresholdPercent: t.QuorumThresholdPercentage,
	}
}

func taskToBinding(t types.Task) bindings.TaskManagerTask {
	return bindings.TaskManagerTask{
		TaskType:                  uint8(t.Type),
		AgentPrompt:               t.Prompt,
		TaskCreatedBlock:          t.CreatedBlock,
		QuorumNumbers:             t.QuorumNumbers,
		QuorumThresholdPercentage: t.ThresholdPercent,
	}
}

func signatureBundle(res *types.FinalizedResult) bindings.TaskManagerSignatureBundle {
	nonSigners := make([][32]byte, len(res.NonSigners))
	for i, id := range res.NonSigners {
		nonSigners[i] = id
	}
	sigX, sigY := types.SignatureToBig(res.AggregateSignature)
	apkX, apkY := types.G2ToBig(res.SignersApkG2)
	bitmap := res.SignerBitmap
	if bitmap == nil {
		bitmap = new(big.Int)
	}
	return bindings.TaskManagerSignatureBundle{
		SignerBitmap:         bitmap,
		NonSignerOperatorIds: nonSigners,
		AggregateSignature:   bindings.BN254G1Point{X: sigX, Y: sigY},
		SignersApkG2:         bindings.BN254G2Point{X: apkX, Y: apkY},
	}
}

func operatorFromBinding(op bindings.OperatorRegistryQuorumOperator) types.OperatorInfo {
	return types.OperatorInfo{
		ID:       types.OperatorID(op.OperatorId),
		Address:  op.Operator,
		Stake:    new(big.Int).Set(op.Stake),
		PubkeyG1: bls.NewG1Point(op.PubkeyG1.X, op.PubkeyG1.Y),
		PubkeyG2: bls.NewG2Point(op.PubkeyG2.X, op.PubkeyG2.Y),
	}
}
