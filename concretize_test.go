package sevm_test

import (
	"context"
	"errors"
	"testing"

	"github.com/evmlab/sevm"
	"github.com/holiman/uint256"
)

// scriptSession is a Session that replays a fixed sequence of check
// results and models.
type scriptSession struct {
	results []sevm.CheckResult
	models  []*sevm.Model

	checkN int
	lastN  []int // constraint count observed per check
}

func (s *scriptSession) Check(ctx context.Context, constraints []sevm.Expr) (sevm.CheckResult, error) {
	if s.checkN >= len(s.results) {
		return sevm.CheckResult{}, errors.New("script exhausted")
	}
	s.lastN = append(s.lastN, len(constraints))
	result := s.results[s.checkN]
	s.checkN++
	return result, nil
}

func (s *scriptSession) Model() (*sevm.Model, error) {
	return s.models[s.checkN-1], nil
}

func (s *scriptSession) Close() error { return nil }

func modelWith(name string, value uint64) *sevm.Model {
	m := sevm.NewModel()
	m.Values[name] = uint256.NewInt(value)
	return m
}

func TestConcretizer(t *testing.T) {
	x := sevm.NewSymbolExpr("CONC_X", 256)

	t.Run("Constant", func(t *testing.T) {
		session := &scriptSession{}
		c := sevm.NewConcretizer(session, 4)
		values, err := c.Concretize(context.Background(), nil, sevm.NewConstantExpr(7, 256))
		if err != nil {
			t.Fatal(err)
		} else if len(values) != 1 || values[0].Uint64() != 7 {
			t.Fatalf("unexpected values: %v", values)
		} else if session.checkN != 0 {
			t.Fatalf("unexpected solver use: %d", session.checkN)
		}
	})

	t.Run("Enumerates", func(t *testing.T) {
		session := &scriptSession{
			results: []sevm.CheckResult{
				{Status: sevm.CheckSat},
				{Status: sevm.CheckSat},
				{Status: sevm.CheckUnsat},
			},
			models: []*sevm.Model{
				modelWith("CONC_X", 3),
				modelWith("CONC_X", 5),
				nil,
			},
		}
		c := sevm.NewConcretizer(session, 4)
		values, err := c.Concretize(context.Background(), nil, x)
		if err != nil {
			t.Fatal(err)
		} else if len(values) != 2 {
			t.Fatalf("unexpected value count: %d", len(values))
		} else if values[0].Uint64() != 3 || values[1].Uint64() != 5 {
			t.Fatalf("unexpected values: %v", values)
		}

		// Each round must exclude the previous model.
		if session.lastN[1] != session.lastN[0]+1 {
			t.Fatalf("expected a disequality per round: %v", session.lastN)
		}
	})

	t.Run("Unsatisfiable", func(t *testing.T) {
		session := &scriptSession{
			results: []sevm.CheckResult{{Status: sevm.CheckUnsat}},
		}
		c := sevm.NewConcretizer(session, 4)
		if _, err := c.Concretize(context.Background(), nil, x); err != sevm.ErrUnsatisfiable {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("Unknown", func(t *testing.T) {
		session := &scriptSession{
			results: []sevm.CheckResult{{Status: sevm.CheckUnknown, Reason: sevm.ErrSolverTimeout}},
		}
		c := sevm.NewConcretizer(session, 4)
		_, err := c.Concretize(context.Background(), nil, x)
		if !errors.Is(err, sevm.ErrBoundedUnknown) {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("FanOutCutoff", func(t *testing.T) {
		session := &scriptSession{
			results: []sevm.CheckResult{
				{Status: sevm.CheckSat},
				{Status: sevm.CheckSat},
				{Status: sevm.CheckSat},
			},
			models: []*sevm.Model{
				modelWith("CONC_X", 1),
				modelWith("CONC_X", 2),
				modelWith("CONC_X", 3),
			},
		}
		c := sevm.NewConcretizer(session, 2)
		values, err := c.Concretize(context.Background(), nil, x)
		if err != nil {
			t.Fatal(err)
		}
		// Exceeding the cutoff keeps one arbitrary candidate.
		if len(values) != 1 {
			t.Fatalf("unexpected value count: %d", len(values))
		}
	})
}
