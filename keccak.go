package sevm

import (
	"golang.org/x/crypto/sha3"

	"github.com/holiman/uint256"
)

// Keccak256 returns the concrete Keccak-256 digest of data.
func Keccak256(data []byte) *uint256.Int {
	h := sha3.NewLegacyKeccak256()
	h.Write(data)
	return new(uint256.Int).SetBytes(h.Sum(nil))
}

// ConstantBytes returns the big-endian bytes of a constant expression
// whose width is a whole number of bytes.
func ConstantBytes(c *ConstantExpr) []byte {
	assert(c.Width%8 == 0, "constant is not whole bytes: %d bits", c.Width)
	n := int(c.Width / 8)
	full := c.Value.Bytes32()
	return full[32-n:]
}

// Sha3Axioms returns the injectivity axioms for every pair of symbolic
// Keccak applications reachable from the given expressions:
//
//   - equal-width applications agree exactly when their sources agree
//   - different-width applications never collide
//
// The axioms keep the uninterpreted digest function honest: without them
// the solver could satisfy a path by colliding two unrelated hashes.
func Sha3Axioms(exprs ...Expr) []Expr {
	shas := FindSha3Exprs(exprs...)
	var axioms []Expr
	for i := 0; i < len(shas); i++ {
		for j := i + 1; j < len(shas); j++ {
			a, b := shas[i], shas[j]
			digestsEqual := NewBinaryExpr(EQ, Expr(a), Expr(b))
			if len(a.Bytes) != len(b.Bytes) {
				axioms = append(axioms, NewNotExpr(digestsEqual))
				continue
			}
			srcsEqual := Expr(NewBoolConstantExpr(true))
			for k := range a.Bytes {
				srcsEqual = NewBinaryExpr(AND, srcsEqual, NewBinaryExpr(EQ, a.Bytes[k], b.Bytes[k]))
			}
			axioms = append(axioms, NewBinaryExpr(EQ, digestsEqual, srcsEqual))
		}
	}
	return axioms
}
