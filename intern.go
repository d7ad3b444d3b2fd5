package sevm

import (
	"hash/fnv"
	"sync"
)

// internTable deduplicates expression nodes so that structurally equal
// expressions share identity. A single table is shared by all states and
// all goroutines; constructors insert-or-get under its mutex.
type internTable struct {
	mu      sync.Mutex
	buckets map[uint64][]Expr
	ids     map[Expr]uint64
	seq     uint64
}

var exprTable = internTable{
	buckets: make(map[uint64][]Expr),
	ids:     make(map[Expr]uint64),
}

// internExpr returns the canonical instance of expr, inserting it if no
// structurally equal node exists. Children of expr must already be interned.
func internExpr(expr Expr) Expr {
	exprTable.mu.Lock()
	defer exprTable.mu.Unlock()

	h := hashExpr(expr)
	for _, other := range exprTable.buckets[h] {
		if CompareExpr(expr, other) == 0 {
			return other
		}
	}
	exprTable.buckets[h] = append(exprTable.buckets[h], expr)
	exprTable.seq++
	exprTable.ids[expr] = exprTable.seq
	return expr
}

// internConstantExpr is internExpr with a concrete return type.
func internConstantExpr(expr *ConstantExpr) *ConstantExpr {
	return internExpr(expr).(*ConstantExpr)
}

// ExprID returns a process-stable identifier for an interned expression.
// Structurally equal expressions always map to the same id. Used by state
// fingerprints.
func ExprID(expr Expr) uint64 {
	exprTable.mu.Lock()
	defer exprTable.mu.Unlock()
	id, ok := exprTable.ids[expr]
	assert(ok, "expression is not interned: %s", expr)
	return id
}

// hashExpr computes a hash over the node's kind and shallow fields.
// Children hash by pointer identity since they are interned; collisions are
// resolved by CompareExpr in the bucket scan.
func hashExpr(expr Expr) uint64 {
	h := fnv.New64a()
	writeByte := func(b byte) { h.Write([]byte{b}) }
	writeUint64 := func(v uint64) {
		var buf [8]byte
		for i := 0; i < 8; i++ {
			buf[i] = byte(v >> (8 * i))
		}
		h.Write(buf[:])
	}
	writeChild := func(e Expr) { writeUint64(exprTable.ids[e]) }

	writeByte(byte(exprKind(expr)))
	switch expr := expr.(type) {
	case *ConstantExpr:
		writeUint64(uint64(expr.Width))
		writeUint64(expr.Value[0])
		writeUint64(expr.Value[1])
		writeUint64(expr.Value[2])
		writeUint64(expr.Value[3])
	case *SymbolExpr:
		writeUint64(uint64(expr.Width))
		h.Write([]byte(expr.Name))
	case *BinaryExpr:
		writeByte(byte(expr.Op))
		writeChild(expr.LHS)
		writeChild(expr.RHS)
	case *NotExpr:
		writeChild(expr.Expr)
	case *CastExpr:
		writeUint64(uint64(expr.Width))
		if expr.Signed {
			writeByte(1)
		}
		writeChild(expr.Src)
	case *ConcatExpr:
		writeChild(expr.MSB)
		writeChild(expr.LSB)
	case *ExtractExpr:
		writeUint64(uint64(expr.Offset))
		writeUint64(uint64(expr.Width))
		writeChild(expr.Expr)
	case *SelectExpr:
		writeUint64(expr.Array.ID)
		writeUint64(hashArrayUpdates(expr.Array.Updates))
		writeChild(expr.Index)
	case *IteExpr:
		writeChild(expr.Cond)
		writeChild(expr.Then)
		writeChild(expr.Else)
	case *Sha3Expr:
		writeUint64(uint64(len(expr.Bytes)))
		for _, b := range expr.Bytes {
			writeChild(b)
		}
	default:
		panic("unreachable")
	}
	return h.Sum64()
}

// hashArrayUpdates hashes an update chain by the identities of its entries.
func hashArrayUpdates(upd *ArrayUpdate) uint64 {
	h := fnv.New64a()
	var buf [8]byte
	for ; upd != nil; upd = upd.Next {
		for _, id := range []uint64{exprTable.ids[upd.Index], exprTable.ids[upd.Value]} {
			for i := 0; i < 8; i++ {
				buf[i] = byte(id >> (8 * i))
			}
			h.Write(buf[:])
		}
	}
	return h.Sum64()
}
