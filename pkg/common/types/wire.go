package types

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
)

// Coordinate is a field element on the wire. It decodes from a JSON number
// or a decimal string and encodes as a decimal string.
type Coordinate struct {
	big.Int
}

func NewCoordinate(v *big.Int) *Coordinate {
	c := &Coordinate{}
	c.Set(v)
	return c
}

func (c *Coordinate) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return errors.New("coordinate is null")
	}
	s := string(bytes.Trim(data, `"`))
	if s == "" {
		return errors.New("coordinate is empty")
	}
	if _, ok := c.SetString(s, 10); !ok {
		return fmt.Errorf("coordinate %q is not a decimal integer", s)
	}
	if c.Sign() < 0 {
		return fmt.Errorf("coordinate %q is negative", s)
	}
	return nil
}

func (c *Coordinate) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.Int.String())
}

// SignaturePoint is a G1 signature in affine coordinates.
type SignaturePoint struct {
	X *Coordinate `json:"X"`
	Y *Coordinate `json:"Y"`
}

// SignatureRequest is the body operators POST to the aggregator.
type SignatureRequest struct {
	TaskID             uint32         `json:"task_id"`
	VerificationStatus bool           `json:"verification_status"`
	Signature          SignaturePoint `json:"signature"`
	BlockNumber        uint64         `json:"block_number"`
	OperatorID         string         `json:"operator_id"`
}

// SignatureResponse is the aggregator's reply to a SignatureRequest.
type SignatureResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

func NewSignatureRequest(att Attestation) (*SignatureRequest, error) {
	if att.Signature == nil || att.Signature.G1Point == nil {
		return nil, errors.New("attestation has no signature")
	}
	x, y := SignatureToBig(att.Signature)
	return &SignatureRequest{
		TaskID:             att.TaskIndex,
		VerificationStatus: att.Verdict,
		Signature:          SignaturePoint{X: NewCoordinate(x), Y: NewCoordinate(y)},
		BlockNumber:        att.ObservedBlock,
		OperatorID:         att.OperatorID.Hex(),
	}, nil
}

// Attestation validates the request shape and converts it.
func (r *SignatureRequest) Attestation() (Attestation, error) {
	if r.Signature.X == nil || r.Signature.Y == nil {
		return Attestation{}, errors.New("signature must have X and Y")
	}
	id, err := ParseOperatorID(r.OperatorID)
	if err != nil {
		return Attestation{}, err
	}
	return Attestation{
		TaskIndex:     r.TaskID,
		OperatorID:    id,
		Verdict:       r.VerificationStatus,
		Signature:     SignatureFromBig(&r.Signature.X.Int, &r.Signature.Y.Int),
		ObservedBlock: r.BlockNumber,
	}, nil
}
