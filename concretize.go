package sevm

import (
	"context"
	"fmt"
)

// Concretizer enumerates concrete values an expression may take under a
// path's constraints. It is the single funnel through which symbolic jump
// targets, oversized exponents, SHA3 buffers and call results become
// concrete.
type Concretizer struct {
	session Session
	max     int
}

// NewConcretizer returns a concretizer drawing up to max candidates per
// query through session.
func NewConcretizer(session Session, max int) *Concretizer {
	assert(max >= 1, "concretizer requires max >= 1")
	return &Concretizer{session: session, max: max}
}

// Concretize returns distinct values of expr satisfiable under the
// constraints, found by repeatedly solving and excluding the previous
// model. At most max values are enumerated; if expr admits more than max,
// the enumeration is abandoned and a single arbitrary model is returned,
// trading completeness for bounded fan-out.
//
// If the constraints themselves are unsatisfiable the result is
// ErrUnsatisfiable; the result slice is never empty otherwise. A solver
// unknown yields ErrBoundedUnknown, wrapped with the solver's reason.
func (c *Concretizer) Concretize(ctx context.Context, constraints []Expr, expr Expr) ([]*ConstantExpr, error) {
	if expr, ok := expr.(*ConstantExpr); ok {
		return []*ConstantExpr{expr}, nil
	}

	cons := constraints[0:len(constraints):len(constraints)]

	var values []*ConstantExpr
	for len(values) <= c.max {
		result, err := c.session.Check(ctx, cons)
		if err != nil {
			return nil, err
		}

		switch result.Status {
		case CheckUnsat:
			if len(values) == 0 {
				return nil, ErrUnsatisfiable
			}
			return values, nil // exhausted all candidates

		case CheckUnknown:
			if result.Reason != nil {
				return nil, fmt.Errorf("%w: %s", ErrBoundedUnknown, result.Reason)
			}
			return nil, ErrBoundedUnknown
		}

		model, err := c.session.Model()
		if err != nil {
			return nil, err
		}
		value, err := model.Eval(expr)
		if err != nil {
			return nil, err
		}
		values = append(values, value)

		// Exclude this value and look for another.
		cons = append(cons, NewNotExpr(NewBinaryExpr(EQ, expr, value)))
	}

	// Fan-out exceeds the cutoff. Keep one arbitrary candidate.
	return values[:1], nil
}
