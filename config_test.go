package sevm_test

import (
	"testing"

	"github.com/evmlab/sevm"
)

func TestConfig_Validate(t *testing.T) {
	t.Run("Default", func(t *testing.T) {
		config := sevm.DefaultConfig()
		if err := config.Validate(); err != nil {
			t.Fatal(err)
		}
	})
	t.Run("ZeroTimeout", func(t *testing.T) {
		config := sevm.DefaultConfig()
		config.SolverTimeout = 0
		if err := config.Validate(); err == nil {
			t.Fatal("expected error")
		}
	})
	t.Run("GreedySha3WithoutLimit", func(t *testing.T) {
		config := sevm.DefaultConfig()
		config.MaxSha3Size = 0
		if err := config.Validate(); err == nil {
			t.Fatal("expected error")
		}
	})
	t.Run("MaxConcretizeTooSmall", func(t *testing.T) {
		config := sevm.DefaultConfig()
		config.MaxConcretize = 0
		if err := config.Validate(); err == nil {
			t.Fatal("expected error")
		}
	})
	t.Run("StackSizeTooLarge", func(t *testing.T) {
		config := sevm.DefaultConfig()
		config.MaxStackSize = 4096
		if err := config.Validate(); err == nil {
			t.Fatal("expected error")
		}
	})
	t.Run("BadCallResult", func(t *testing.T) {
		config := sevm.DefaultConfig()
		config.DefaultCallResult = 2
		if err := config.Validate(); err == nil {
			t.Fatal("expected error")
		}
	})
	t.Run("MissingCreateAddress", func(t *testing.T) {
		config := sevm.DefaultConfig()
		config.DefaultCreateAddress = nil
		if err := config.Validate(); err == nil {
			t.Fatal("expected error")
		}
	})
}
