package sevm_test

import (
	"math/rand"
	"testing"

	"github.com/evmlab/sevm"
)

func TestDFSSearcher(t *testing.T) {
	s := sevm.NewDFSSearcher()
	a := &sevm.ExecutionState{ID: 1}
	b := &sevm.ExecutionState{ID: 2}
	s.AddState(a)
	s.AddState(b)

	if s.Len() != 2 {
		t.Fatalf("unexpected length: %d", s.Len())
	}
	if state := s.SelectState(); state != b {
		t.Fatalf("unexpected state: %s", state)
	}
	if state := s.SelectState(); state != a {
		t.Fatalf("unexpected state: %s", state)
	}
	if state := s.SelectState(); state != nil {
		t.Fatalf("expected empty searcher, got %s", state)
	}
}

func TestBFSSearcher(t *testing.T) {
	s := sevm.NewBFSSearcher()
	a := &sevm.ExecutionState{ID: 1}
	b := &sevm.ExecutionState{ID: 2}
	s.AddState(a)
	s.AddState(b)

	if state := s.SelectState(); state != a {
		t.Fatalf("unexpected state: %s", state)
	}
	if state := s.SelectState(); state != b {
		t.Fatalf("unexpected state: %s", state)
	}
}

func TestRandomSearcher(t *testing.T) {
	s := sevm.NewRandomSearcher(rand.New(rand.NewSource(0)))
	a := &sevm.ExecutionState{ID: 1}
	b := &sevm.ExecutionState{ID: 2}
	s.AddState(a)
	s.AddState(b)

	seen := map[*sevm.ExecutionState]bool{}
	seen[s.SelectState()] = true
	seen[s.SelectState()] = true
	if !seen[a] || !seen[b] {
		t.Fatal("expected both states to be selected")
	}
	if s.Len() != 0 {
		t.Fatalf("unexpected length: %d", s.Len())
	}
}
