package sevm

// ExpandExp rewrites base**exp as a square-and-multiply chain of MUL
// expressions when exp is concrete and small enough. The second return is
// false when the exponent needs more than maxNest squarings, in which case
// the caller must concretize instead.
func ExpandExp(base Expr, exp *ConstantExpr, maxNest uint) (Expr, bool) {
	width := ExprWidth(base)

	if exp.Value.IsZero() {
		return NewConstantExpr(1, width), true
	}
	bitLen := uint(exp.Value.BitLen())
	if bitLen > maxNest {
		return nil, false
	}

	result := Expr(NewConstantExpr(1, width))
	acc := base
	for i := uint(0); i < bitLen; i++ {
		if bitAt(exp.Value, i) == 1 {
			result = NewBinaryExpr(MUL, result, acc)
		}
		if i+1 < bitLen {
			acc = NewBinaryExpr(MUL, acc, acc)
		}
	}
	return result, true
}
