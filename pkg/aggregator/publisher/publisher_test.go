package publisher

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
	"go.uber.org/goleak"

	"github.com/Agentopians/WeAi/pkg/common/contracts/ethereum"
	"github.com/Agentopians/WeAi/pkg/common/types"
	"github.com/Agentopians/WeAi/pkg/config"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type mockChainClient struct {
	mock.Mock
}

func (m *mockChainClient) CreateNewTask(ctx context.Context, taskType types.TaskType, prompt string, thresholdPercent uint32, quorumNumbers []byte) (*gethtypes.Transaction, error) {
	args := m.Called(ctx, taskType, prompt, thresholdPercent, quorumNumbers)
	tx, _ := args.Get(0).(*gethtypes.Transaction)
	return tx, args.Error(1)
}

func (m *mockChainClient) WaitMined(ctx context.Context, tx *gethtypes.Transaction) (*gethtypes.Receipt, error) {
	args := m.Called(ctx, tx)
	receipt, _ := args.Get(0).(*gethtypes.Receipt)
	return receipt, args.Error(1)
}

func (m *mockChainClient) TaskFromReceipt(receipt *gethtypes.Receipt) (*ethereum.NewTaskCreatedEvent, error) {
	args := m.Called(receipt)
	ev, _ := args.Get(0).(*ethereum.NewTaskCreatedEvent)
	return ev, args.Error(1)
}

func (m *mockChainClient) LatestTaskNum(ctx context.Context) (uint32, error) {
	args := m.Called(ctx)
	return args.Get(0).(uint32), args.Error(1)
}

func (m *mockChainClient) TaskHash(ctx context.Context, taskIndex uint32) ([32]byte, error) {
	args := m.Called(ctx, taskIndex)
	return args.Get(0).([32]byte), args.Error(1)
}

func (m *mockChainClient) HashTask(task types.Task) ([32]byte, error) {
	args := m.Called(task)
	return args.Get(0).([32]byte), args.Error(1)
}

func (m *mockChainClient) GetQuorumOperators(ctx context.Context, quorumNumbers []byte, blockNumber uint32) ([]types.OperatorInfo, error) {
	args := m.Called(ctx, quorumNumbers, blockNumber)
	ops, _ := args.Get(0).([]types.OperatorInfo)
	return ops, args.Error(1)
}

func (m *mockChainClient) RespondToTask(ctx context.Context, res *types.FinalizedResult) (*gethtypes.Transaction, error) {
	args := m.Called(ctx, res)
	tx, _ := args.Get(0).(*gethtypes.Transaction)
	return tx, args.Error(1)
}

type mockInitializer struct {
	mock.Mock
}

func (m *mockInitializer) InitializeTask(task types.Task, operators []types.OperatorInfo, timeToExpiry time.Duration) error {
	return m.Called(task, operators, timeToExpiry).Error(0)
}

var testRetry = config.RetryConfig{
	MaxAttempts:    3,
	InitialBackoff: time.Millisecond,
	MaxBackoff:     2 * time.Millisecond,
}

func newTx(nonce uint64) *gethtypes.Transaction {
	return gethtypes.NewTx(&gethtypes.LegacyTx{Nonce: nonce, Gas: 21000, GasPrice: big.NewInt(1)})
}

type PublisherTestSuite struct {
	suite.Suite
	ctx   context.Context
	chain *mockChainClient
	agg   *mockInitializer
	pub   *Publisher
	ops   []types.OperatorInfo
}

func TestPublisherSuite(t *testing.T) {
	suite.Run(t, new(PublisherTestSuite))
}

func (s *PublisherTestSuite) SetupTest() {
	s.ctx = context.Background()
	s.chain = new(mockChainClient)
	s.agg = new(mockInitializer)
	s.ops = []types.OperatorInfo{{ID: types.OperatorID{1}, Stake: big.NewInt(10)}}

	pub, err := NewPublisher(&Config{
		ChainClient:   s.chain,
		Aggregator:    s.agg,
		QuorumNumbers: []byte{0},
		TimeToExpiry:  time.Minute,
		Retry:         testRetry,
	})
	s.Require().NoError(err)
	s.pub = pub
}

func (s *PublisherTestSuite) TearDownTest() {
	s.chain.AssertExpectations(s.T())
	s.agg.AssertExpectations(s.T())
}

func (s *PublisherTestSuite) expectedTask(index, block uint32) types.Task {
	return types.Task{
		Index:            index,
		Type:             types.TaskTypeVerifyInstructions,
		Prompt:           "rate the new vault strategy",
		CreatedBlock:     block,
		QuorumNumbers:    []byte{0},
		ThresholdPercent: 67,
	}
}

func (s *PublisherTestSuite) TestPublishFromReceiptEvent() {
	tx := newTx(1)
	receipt := &gethtypes.Receipt{TxHash: tx.Hash(), BlockNumber: big.NewInt(42)}
	task := s.expectedTask(7, 42)

	s.chain.On("CreateNewTask", mock.Anything, types.TaskTypeVerifyInstructions, task.Prompt, uint32(67), []byte{0}).Return(tx, nil).Once()
	s.chain.On("WaitMined", mock.Anything, tx).Return(receipt, nil).Once()
	s.chain.On("TaskFromReceipt", receipt).Return(&ethereum.NewTaskCreatedEvent{Task: task, BlockNumber: 42}, nil).Once()
	s.chain.On("GetQuorumOperators", mock.Anything, []byte{0}, uint32(42)).Return(s.ops, nil).Once()
	s.agg.On("InitializeTask", task, s.ops, time.Minute).Return(nil).Once()

	idx, err := s.pub.PublishTask(s.ctx, task.Prompt, 67)
	s.Require().NoError(err)
	s.Equal(uint32(7), idx)
}

func (s *PublisherTestSuite) TestSendIsRetried() {
	tx := newTx(2)
	receipt := &gethtypes.Receipt{TxHash: tx.Hash(), BlockNumber: big.NewInt(50)}
	task := s.expectedTask(3, 50)

	s.chain.On("CreateNewTask", mock.Anything, types.TaskTypeVerifyInstructions, task.Prompt, uint32(67), []byte{0}).Return(nil, errors.New("nonce too low")).Twice()
	s.chain.On("CreateNewTask", mock.Anything, types.TaskTypeVerifyInstructions, task.Prompt, uint32(67), []byte{0}).Return(tx, nil).Once()
	s.chain.On("WaitMined", mock.Anything, tx).Return(receipt, nil).Once()
	s.chain.On("TaskFromReceipt", receipt).Return(&ethereum.NewTaskCreatedEvent{Task: task}, nil).Once()
	s.chain.On("GetQuorumOperators", mock.Anything, []byte{0}, uint32(50)).Return(s.ops, nil).Once()
	s.agg.On("InitializeTask", task, s.ops, time.Minute).Return(nil).Once()

	idx, err := s.pub.PublishTask(s.ctx, task.Prompt, 67)
	s.Require().NoError(err)
	s.Equal(uint32(3), idx)
}

func (s *PublisherTestSuite) TestSendGivesUpAfterMaxAttempts() {
	s.chain.On("CreateNewTask", mock.Anything, types.TaskTypeVerifyInstructions, "p", uint32(67), []byte{0}).Return(nil, errors.New("rpc down")).Times(testRetry.MaxAttempts)

	_, err := s.pub.PublishTask(s.ctx, "p", 67)
	s.Require().Error(err)
	s.Contains(err.Error(), "rpc down")
}

func (s *PublisherTestSuite) TestWaitRetryDoesNotResend() {
	tx := newTx(3)
	receipt := &gethtypes.Receipt{TxHash: tx.Hash(), BlockNumber: big.NewInt(60)}
	task := s.expectedTask(4, 60)

	s.chain.On("CreateNewTask", mock.Anything, types.TaskTypeVerifyInstructions, task.Prompt, uint32(67), []byte{0}).Return(tx, nil).Once()
	s.chain.On("WaitMined", mock.Anything, tx).Return(nil, errors.New("header not found")).Once()
	s.chain.On("WaitMined", mock.Anything, tx).Return(receipt, nil).Once()
	s.chain.On("TaskFromReceipt", receipt).Return(&ethereum.NewTaskCreatedEvent{Task: task}, nil).Once()
	s.chain.On("GetQuorumOperators", mock.Anything, []byte{0}, uint32(60)).Return(s.ops, nil).Once()
	s.agg.On("InitializeTask", task, s.ops, time.Minute).Return(nil).Once()

	_, err := s.pub.PublishTask(s.ctx, task.Prompt, 67)
	s.Require().NoError(err)
	s.chain.AssertNumberOfCalls(s.T(), "CreateNewTask", 1)
}

func (s *PublisherTestSuite) TestRevertIsNotRetried() {
	tx := newTx(4)
	reverted := errors.Join(ethereum.ErrTxReverted, errors.New("tx 0x01"))

	s.chain.On("CreateNewTask", mock.Anything, types.TaskTypeVerifyInstructions, "p", uint32(67), []byte{0}).Return(tx, nil).Once()
	s.chain.On("WaitMined", mock.Anything, tx).Return(nil, reverted).Once()

	_, err := s.pub.PublishTask(s.ctx, "p", 67)
	s.Require().ErrorIs(err, ethereum.ErrTxReverted)
	s.chain.AssertNumberOfCalls(s.T(), "WaitMined", 1)
}

func (s *PublisherTestSuite) TestFallbackMatchesPreviousIndex() {
	tx := newTx(5)
	receipt := &gethtypes.Receipt{TxHash: tx.Hash(), BlockNumber: big.NewInt(70)}
	task := s.expectedTask(0, 70)
	want := [32]byte{0xaa}

	s.chain.On("CreateNewTask", mock.Anything, types.TaskTypeVerifyInstructions, task.Prompt, uint32(67), []byte{0}).Return(tx, nil).Once()
	s.chain.On("WaitMined", mock.Anything, tx).Return(receipt, nil).Once()
	s.chain.On("TaskFromReceipt", receipt).Return(nil, ethereum.ErrNoTaskEvent).Once()
	s.chain.On("HashTask", task).Return(want, nil).Once()
	s.chain.On("LatestTaskNum", mock.Anything).Return(uint32(9), nil).Once()
	s.chain.On("TaskHash", mock.Anything, uint32(8)).Return(want, nil).Once()

	resolved := task
	resolved.Index = 8
	s.chain.On("GetQuorumOperators", mock.Anything, []byte{0}, uint32(70)).Return(s.ops, nil).Once()
	s.agg.On("InitializeTask", resolved, s.ops, time.Minute).Return(nil).Once()

	idx, err := s.pub.PublishTask(s.ctx, task.Prompt, 67)
	s.Require().NoError(err)
	s.Equal(uint32(8), idx)
}

func (s *PublisherTestSuite) TestFallbackMatchesLatestIndex() {
	tx := newTx(6)
	receipt := &gethtypes.Receipt{TxHash: tx.Hash(), BlockNumber: big.NewInt(71)}
	task := s.expectedTask(0, 71)
	want := [32]byte{0xbb}

	s.chain.On("CreateNewTask", mock.Anything, types.TaskTypeVerifyInstructions, task.Prompt, uint32(67), []byte{0}).Return(tx, nil).Once()
	s.chain.On("WaitMined", mock.Anything, tx).Return(receipt, nil).Once()
	s.chain.On("TaskFromReceipt", receipt).Return(nil, ethereum.ErrNoTaskEvent).Once()
	s.chain.On("HashTask", task).Return(want, nil).Once()
	s.chain.On("LatestTaskNum", mock.Anything).Return(uint32(9), nil).Once()
	s.chain.On("TaskHash", mock.Anything, uint32(8)).Return([32]byte{0x01}, nil).Once()
	s.chain.On("TaskHash", mock.Anything, uint32(9)).Return(want, nil).Once()

	resolved := task
	resolved.Index = 9
	s.chain.On("GetQuorumOperators", mock.Anything, []byte{0}, uint32(71)).Return(s.ops, nil).Once()
	s.agg.On("InitializeTask", resolved, s.ops, time.Minute).Return(nil).Once()

	idx, err := s.pub.PublishTask(s.ctx, task.Prompt, 67)
	s.Require().NoError(err)
	s.Equal(uint32(9), idx)
}

func (s *PublisherTestSuite) TestFallbackMismatch() {
	tx := newTx(7)
	receipt := &gethtypes.Receipt{TxHash: tx.Hash(), BlockNumber: big.NewInt(72)}
	task := s.expectedTask(0, 72)

	s.chain.On("CreateNewTask", mock.Anything, types.TaskTypeVerifyInstructions, task.Prompt, uint32(67), []byte{0}).Return(tx, nil).Once()
	s.chain.On("WaitMined", mock.Anything, tx).Return(receipt, nil).Once()
	s.chain.On("TaskFromReceipt", receipt).Return(nil, ethereum.ErrNoTaskEvent).Once()
	s.chain.On("HashTask", task).Return([32]byte{0xcc}, nil).Once()
	s.chain.On("LatestTaskNum", mock.Anything).Return(uint32(0), nil).Once()
	s.chain.On("TaskHash", mock.Anything, uint32(0)).Return([32]byte{}, nil).Once()

	_, err := s.pub.PublishTask(s.ctx, task.Prompt, 67)
	s.Require().ErrorIs(err, ErrTaskIndexMismatch)
	s.agg.AssertNotCalled(s.T(), "InitializeTask", mock.Anything, mock.Anything, mock.Anything)
}

func (s *PublisherTestSuite) TestInitializeErrorIsReturned() {
	tx := newTx(8)
	receipt := &gethtypes.Receipt{TxHash: tx.Hash(), BlockNumber: big.NewInt(80)}
	task := s.expectedTask(11, 80)
	initErr := errors.New("duplicate task")

	s.chain.On("CreateNewTask", mock.Anything, types.TaskTypeVerifyInstructions, task.Prompt, uint32(67), []byte{0}).Return(tx, nil).Once()
	s.chain.On("WaitMined", mock.Anything, tx).Return(receipt, nil).Once()
	s.chain.On("TaskFromReceipt", receipt).Return(&ethereum.NewTaskCreatedEvent{Task: task}, nil).Once()
	s.chain.On("GetQuorumOperators", mock.Anything, []byte{0}, uint32(80)).Return(s.ops, nil).Once()
	s.agg.On("InitializeTask", task, s.ops, time.Minute).Return(initErr).Once()

	_, err := s.pub.PublishTask(s.ctx, task.Prompt, 67)
	s.Require().ErrorIs(err, initErr)
}

func (s *PublisherTestSuite) TestThresholdOutOfRange() {
	_, err := s.pub.PublishTask(s.ctx, "p", 0)
	s.Error(err)
	_, err = s.pub.PublishTask(s.ctx, "p", 101)
	s.Error(err)
}

func (s *PublisherTestSuite) TestNewPublisherValidation() {
	_, err := NewPublisher(nil)
	s.Error(err)
	_, err = NewPublisher(&Config{ChainClient: s.chain, Aggregator: s.agg, TimeToExpiry: time.Minute, Retry: testRetry})
	s.Error(err, "empty quorum numbers")
	_, err = NewPublisher(&Config{ChainClient: s.chain, Aggregator: s.agg, QuorumNumbers: []byte{0}, Retry: testRetry})
	s.Error(err, "zero expiry")
}

// resultFeed hands out results and then blocks until ctx is done.
type resultFeed struct {
	mu      sync.Mutex
	results []*types.FinalizedResult
}

func (f *resultFeed) NextFinalizedResult(ctx context.Context) (*types.FinalizedResult, error) {
	f.mu.Lock()
	if len(f.results) > 0 {
		res := f.results[0]
		f.results = f.results[1:]
		f.mu.Unlock()
		return res, nil
	}
	f.mu.Unlock()
	<-ctx.Done()
	return nil, ctx.Err()
}

type SubmitterTestSuite struct {
	suite.Suite
	ctx   context.Context
	chain *mockChainClient
	store *MemoryStore
}

func TestSubmitterSuite(t *testing.T) {
	suite.Run(t, new(SubmitterTestSuite))
}

func (s *SubmitterTestSuite) SetupTest() {
	s.ctx = context.Background()
	s.chain = new(mockChainClient)
	s.store = NewMemoryStore()
}

func (s *SubmitterTestSuite) newSubmitter(results ...*types.FinalizedResult) *Submitter {
	sub, err := NewSubmitter(&SubmitterConfig{
		ChainClient: s.chain,
		Results:     &resultFeed{results: results},
		Store:       s.store,
		Retry:       testRetry,
	})
	s.Require().NoError(err)
	return sub
}

func (s *SubmitterTestSuite) TestSettleSuccess() {
	res := &types.FinalizedResult{TaskIndex: 5, Verdict: true}
	tx := newTx(10)
	s.chain.On("RespondToTask", mock.Anything, res).Return(nil, errors.New("replacement underpriced")).Once()
	s.chain.On("RespondToTask", mock.Anything, res).Return(tx, nil).Once()
	s.chain.On("WaitMined", mock.Anything, tx).Return(&gethtypes.Receipt{Status: gethtypes.ReceiptStatusSuccessful}, nil).Once()

	s.newSubmitter().settle(s.ctx, res)

	rec, err := s.store.Get(s.ctx, 5)
	s.Require().NoError(err)
	s.Require().NotNil(rec)
	s.Equal(SettlementSubmitted, rec.Status)
	s.Equal(tx.Hash().Hex(), rec.TxHash)
	s.True(rec.Verdict)
	s.chain.AssertExpectations(s.T())
}

func (s *SubmitterTestSuite) TestSettleSkipsClaimedTask() {
	claimed, err := s.store.MarkSubmitted(s.ctx, SettlementRecord{TaskIndex: 6, Status: SettlementSubmitted})
	s.Require().NoError(err)
	s.Require().True(claimed)

	s.newSubmitter().settle(s.ctx, &types.FinalizedResult{TaskIndex: 6})
	s.chain.AssertNotCalled(s.T(), "RespondToTask", mock.Anything, mock.Anything)
}

func (s *SubmitterTestSuite) TestSettleRecordsRevert() {
	res := &types.FinalizedResult{TaskIndex: 7}
	tx := newTx(11)
	s.chain.On("RespondToTask", mock.Anything, res).Return(tx, nil).Once()
	s.chain.On("WaitMined", mock.Anything, tx).Return(nil, ethereum.ErrTxReverted).Once()

	s.newSubmitter().settle(s.ctx, res)

	rec, err := s.store.Get(s.ctx, 7)
	s.Require().NoError(err)
	s.Require().NotNil(rec)
	s.Equal(SettlementFailed, rec.Status)
	s.Equal(tx.Hash().Hex(), rec.TxHash)
	s.NotEmpty(rec.Error)
	s.chain.AssertExpectations(s.T())
}

func (s *SubmitterTestSuite) TestRunSettlesInOrderAndStops() {
	first := &types.FinalizedResult{TaskIndex: 1, Verdict: true}
	second := &types.FinalizedResult{TaskIndex: 2}
	tx1, tx2 := newTx(20), newTx(21)
	s.chain.On("RespondToTask", mock.Anything, first).Return(tx1, nil).Once()
	s.chain.On("RespondToTask", mock.Anything, second).Return(tx2, nil).Once()
	s.chain.On("WaitMined", mock.Anything, mock.Anything).Return(&gethtypes.Receipt{}, nil).Twice()

	sub := s.newSubmitter(first, second, first)
	ctx, cancel := context.WithCancel(s.ctx)
	done := make(chan error, 1)
	go func() { done <- sub.Run(ctx) }()

	s.Eventually(func() bool {
		rec, _ := s.store.Get(s.ctx, 2)
		return rec != nil && rec.Status == SettlementSubmitted
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		s.NoError(err)
	case <-time.After(time.Second):
		s.Fail("submitter did not stop")
	}
	s.chain.AssertExpectations(s.T())
	s.chain.AssertNumberOfCalls(s.T(), "RespondToTask", 2)
}

func (s *SubmitterTestSuite) TestNewSubmitterValidation() {
	_, err := NewSubmitter(nil)
	s.Error(err)
	_, err = NewSubmitter(&SubmitterConfig{ChainClient: s.chain, Results: &resultFeed{}, Retry: testRetry})
	s.Error(err, "missing store")
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	rec, err := store.Get(ctx, 1)
	if err != nil || rec != nil {
		t.Fatalf("expected no record, got %v %v", rec, err)
	}
	if err := store.RecordOutcome(ctx, SettlementRecord{TaskIndex: 1}); err == nil {
		t.Fatal("expected error recording unclaimed task")
	}

	ok, err := store.MarkSubmitted(ctx, SettlementRecord{TaskIndex: 1, Status: SettlementPending})
	if err != nil || !ok {
		t.Fatalf("first claim: %v %v", ok, err)
	}
	ok, err = store.MarkSubmitted(ctx, SettlementRecord{TaskIndex: 1, Status: SettlementPending})
	if err != nil || ok {
		t.Fatalf("second claim should fail: %v %v", ok, err)
	}

	hash := common.HexToHash("0x01").Hex()
	if err := store.RecordOutcome(ctx, SettlementRecord{TaskIndex: 1, Status: SettlementSubmitted, TxHash: hash}); err != nil {
		t.Fatal(err)
	}
	rec, err = store.Get(ctx, 1)
	if err != nil || rec == nil || rec.Status != SettlementSubmitted || rec.TxHash != hash {
		t.Fatalf("unexpected record %+v %v", rec, err)
	}
}
