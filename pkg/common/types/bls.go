package types

import (
	"math/big"

	"github.com/Layr-Labs/eigensdk-go/crypto/bls"
)

type (
	Signature = bls.Signature
	G1Point   = bls.G1Point
	G2Point   = bls.G2Point
)

// G1ToBig returns the affine coordinates of p.
func G1ToBig(p *G1Point) (x, y *big.Int) {
	x = p.X.BigInt(new(big.Int))
	y = p.Y.BigInt(new(big.Int))
	return x, y
}

// G2ToBig returns the coordinates of p in the [A1, A0] order the
// contracts expect.
func G2ToBig(p *G2Point) (x, y [2]*big.Int) {
	x = [2]*big.Int{p.X.A1.BigInt(new(big.Int)), p.X.A0.BigInt(new(big.Int))}
	y = [2]*big.Int{p.Y.A1.BigInt(new(big.Int)), p.Y.A0.BigInt(new(big.Int))}
	return x, y
}

// SignatureFromBig builds a G1 signature. The point is not validated.
func SignatureFromBig(x, y *big.Int) *Signature {
	return &Signature{G1Point: bls.NewG1Point(x, y)}
}

// SignatureToBig returns the affine coordinates of sig.
func SignatureToBig(sig *Signature) (x, y *big.Int) {
	return G1ToBig(sig.G1Point)
}
