package types_test

import (
	"encoding/json"
	"math/big"
	"testing"

	"github.com/Layr-Labs/eigensdk-go/crypto/bls"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Agentopians/WeAi/pkg/common/types"
)

func TestParseOperatorID(t *testing.T) {
	var id types.OperatorID
	id[0] = 0xab
	id[31] = 0x01

	t.Run("round trip with prefix", func(t *testing.T) {
		parsed, err := types.ParseOperatorID(id.Hex())
		require.NoError(t, err)
		assert.Equal(t, id, parsed)
	})

	t.Run("without prefix", func(t *testing.T) {
		parsed, err := types.ParseOperatorID(id.Hex()[2:])
		require.NoError(t, err)
		assert.Equal(t, id, parsed)
	})

	t.Run("wrong length", func(t *testing.T) {
		_, err := types.ParseOperatorID("0x1234")
		assert.Error(t, err)
	})

	t.Run("not hex", func(t *testing.T) {
		_, err := types.ParseOperatorID("0xzz")
		assert.Error(t, err)
	})
}

func TestOperatorIDFromG1Deterministic(t *testing.T) {
	kp, err := bls.GenRandomBlsKeys()
	require.NoError(t, err)

	id1 := types.OperatorIDFromG1(kp.GetPubKeyG1())
	id2 := types.OperatorIDFromG1(kp.GetPubKeyG1())
	assert.Equal(t, id1, id2)
	assert.NotEqual(t, types.OperatorID{}, id1)
}

func TestSortOperators(t *testing.T) {
	ops := []types.OperatorInfo{
		{ID: types.OperatorID{3}, Stake: big.NewInt(1)},
		{ID: types.OperatorID{1}, Stake: big.NewInt(1)},
		{ID: types.OperatorID{2}, Stake: big.NewInt(1)},
	}
	types.SortOperators(ops)
	assert.Equal(t, types.OperatorID{1}, ops[0].ID)
	assert.Equal(t, types.OperatorID{2}, ops[1].ID)
	assert.Equal(t, types.OperatorID{3}, ops[2].ID)
}

func TestSignatureBigRoundTrip(t *testing.T) {
	kp, err := bls.GenRandomBlsKeys()
	require.NoError(t, err)
	sig := kp.SignMessage([32]byte{1, 2, 3})

	x, y := types.SignatureToBig(sig)
	rebuilt := types.SignatureFromBig(x, y)
	x2, y2 := types.SignatureToBig(rebuilt)
	assert.Equal(t, 0, x.Cmp(x2))
	assert.Equal(t, 0, y.Cmp(y2))
}

func TestSignatureRequestRoundTrip(t *testing.T) {
	kp, err := bls.GenRandomBlsKeys()
	require.NoError(t, err)
	att := types.Attestation{
		TaskIndex:     7,
		OperatorID:    types.OperatorIDFromG1(kp.GetPubKeyG1()),
		Verdict:       true,
		Signature:     kp.SignMessage([32]byte{7}),
		ObservedBlock: 42,
	}

	req, err := types.NewSignatureRequest(att)
	require.NoError(t, err)
	body, err := json.Marshal(req)
	require.NoError(t, err)

	var decoded types.SignatureRequest
	require.NoError(t, json.Unmarshal(body, &decoded))
	got, err := decoded.Attestation()
	require.NoError(t, err)

	assert.Equal(t, att.TaskIndex, got.TaskIndex)
	assert.Equal(t, att.OperatorID, got.OperatorID)
	assert.Equal(t, att.Verdict, got.Verdict)
	assert.Equal(t, att.ObservedBlock, got.ObservedBlock)
	assert.True(t, att.Signature.G1Affine.Equal(got.Signature.G1Affine))
}

func TestSignatureRequestAcceptsNumericCoordinates(t *testing.T) {
	body := `{"task_id":3,"verification_status":false,"block_number":9,
		"operator_id":"0x0101010101010101010101010101010101010101010101010101010101010101",
		"signature":{"X":1,"Y":"2"}}`
	var req types.SignatureRequest
	require.NoError(t, json.Unmarshal([]byte(body), &req))
	att, err := req.Attestation()
	require.NoError(t, err)
	x, y := types.SignatureToBig(att.Signature)
	assert.Equal(t, int64(1), x.Int64())
	assert.Equal(t, int64(2), y.Int64())
}

func TestSignatureRequestRejectsMalformed(t *testing.T) {
	bad := []string{
		`{"task_id":1,"operator_id":"0x01","signature":{"X":"1","Y":"2"}}`,
		`{"task_id":1,"operator_id":"0x0101010101010101010101010101010101010101010101010101010101010101","signature":{"X":"1"}}`,
	}
	for _, body := range bad {
		var req types.SignatureRequest
		require.NoError(t, json.Unmarshal([]byte(body), &req))
		_, err := req.Attestation()
		assert.Error(t, err, body)
	}

	for _, body := range []string{
		`{"signature":{"X":"abc","Y":"2"}}`,
		`{"signature":{"X":"-5","Y":"2"}}`,
		`{"task_id":-1}`,
	} {
		var req types.SignatureRequest
		assert.Error(t, json.Unmarshal([]byte(body), &req), body)
	}
}
