package bindings

import (
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// TaskManagerMetaData holds the subset of the NewsletterPromptTaskManager ABI
// used by the aggregator and operators.
var TaskManagerMetaData = &bind.MetaData{
	ABI: `[
{"type":"function","name":"createNewTask","stateMutability":"nonpayable","inputs":[
	{"name":"taskType","type":"uint8","internalType":"enum TaskType"},
	{"name":"agentPrompt","type":"string","internalType":"string"},
	{"name":"quorumThresholdPercentage","type":"uint32","internalType":"uint32"},
	{"name":"quorumNumbers","type":"bytes","internalType":"bytes"}],"outputs":[]},
{"type":"function","name":"latestTaskNum","stateMutability":"view","inputs":[],
	"outputs":[{"name":"","type":"uint32","internalType":"uint32"}]},
{"type":"function","name":"allTaskHashes","stateMutability":"view",
	"inputs":[{"name":"","type":"uint32","internalType":"uint32"}],
	"outputs":[{"name":"","type":"bytes32","internalType":"bytes32"}]},
{"type":"function","name":"respondToTask","stateMutability":"nonpayable","inputs":[
	{"name":"task","type":"tuple","internalType":"struct ITaskManager.Task","components":[
		{"name":"taskType","type":"uint8","internalType":"enum TaskType"},
		{"name":"agentPrompt","type":"string","internalType":"string"},
		{"name":"taskCreatedBlock","type":"uint32","internalType":"uint32"},
		{"name":"quorumNumbers","type":"bytes","internalType":"bytes"},
		{"name":"quorumThresholdPercentage","type":"uint32","internalType":"uint32"}]},
	{"name":"taskResponse","type":"tuple","internalType":"struct ITaskManager.TaskResponse","components":[
		{"name":"referenceTaskIndex","type":"uint32","internalType":"uint32"},
		{"name":"verificationStatus","type":"bool","internalType":"bool"}]},
	{"name":"signatureBundle","type":"tuple","internalType":"struct ITaskManager.SignatureBundle","components":[
		{"name":"signerBitmap","type":"uint256","internalType":"uint256"},
		{"name":"nonSignerOperatorIds","type":"bytes32[]","internalType":"bytes32[]"},
		{"name":"aggregateSignature","type":"tuple","internalType":"struct BN254.G1Point","components":[
			{"name":"X","type":"uint256","internalType":"uint256"},
			{"name":"Y","type":"uint256","internalType":"uint256"}]},
		{"name":"signersApkG2","type":"tuple","internalType":"struct BN254.G2Point","components":[
			{"name":"X","type":"uint256[2]","internalType":"uint256[2]"},
			{"name":"Y","type":"uint256[2]","internalType":"uint256[2]"}]}]}],"outputs":[]},
{"type":"event","name":"NewTaskCreated","anonymous":false,"inputs":[
	{"name":"taskIndex","type":"uint32","indexed":true,"internalType":"uint32"},
	{"name":"task","type":"tuple","indexed":false,"internalType":"struct ITaskManager.Task","components":[
		{"name":"taskType","type":"uint8","internalType":"enum TaskType"},
		{"name":"agentPrompt","type":"string","internalType":"string"},
		{"name":"taskCreatedBlock","type":"uint32","internalType":"uint32"},
		{"name":"quorumNumbers","type":"bytes","internalType":"bytes"},
		{"name":"quorumThresholdPercentage","type":"uint32","internalType":"uint32"}]}]}
]`,
}

// TaskManagerTask mirrors ITaskManager.Task.
type TaskManagerTask struct {
	TaskType                  uint8
	AgentPrompt               string
	TaskCreatedBlock          uint32
	QuorumNumbers             []byte
	QuorumThresholdPercentage uint32
}

// TaskManagerTaskResponse mirrors ITaskManager.TaskResponse.
type TaskManagerTaskResponse struct {
	ReferenceTaskIndex uint32
	VerificationStatus bool
}

// BN254G1Point mirrors BN254.G1Point.
type BN254G1Point struct {
	X *big.Int
	Y *big.Int
}

// BN254G2Point mirrors BN254.G2Point, coordinates in [A1, A0] order.
type BN254G2Point struct {
	X [2]*big.Int
	Y [2]*big.Int
}

// TaskManagerSignatureBundle mirrors ITaskManager.SignatureBundle.
type TaskManagerSignatureBundle struct {
	SignerBitmap         *big.Int
	NonSignerOperatorIds [][32]byte
	AggregateSignature   BN254G1Point
	SignersApkG2         BN254G2Point
}

// TaskManagerNewTaskCreated represents a NewTaskCreated event raised by the TaskManager contract.
type TaskManagerNewTaskCreated struct {
	TaskIndex uint32
	Task      TaskManagerTask
	Raw       types.Log
}

// NewTaskManager binds the TaskManager at address.
func NewTaskManager(address common.Address, backend bind.ContractBackend) (*bind.BoundContract, error) {
	parsed, err := TaskManagerMetaData.GetAbi()
	if err != nil {
		return nil, err
	}
	return bind.NewBoundContract(address, *parsed, backend, backend, backend), nil
}
