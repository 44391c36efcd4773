package deps

import (
	"fmt"
	"slices"

	"github.com/roach88/polydep/internal/poly"
)

// Kind is a class of dependence.
type Kind int

const (
	Flow Kind = iota
	False
	Order
	Forced
	RAR
	WAW
)

// Kinds lists every kind in declaration order.
var Kinds = []Kind{Flow, False, Order, Forced, RAR, WAW}

var kindNames = [...]string{"flow", "false", "order", "forced", "rar", "waw"}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("Kind(%d)", int(k))
	}
	return kindNames[k]
}

// ParseKind parses a kind name as printed by String.
func ParseKind(s string) (Kind, error) {
	if i := slices.Index(kindNames[:], s); i >= 0 {
		return Kind(i), nil
	}
	return 0, fmt.Errorf("unknown dependence kind %q", s)
}

// Bundle maps dependence kinds to relations. Each kind is written at most
// once by the analysis; a kind that was never computed reads as empty.
type Bundle struct {
	rels map[Kind]poly.Map
}

func (b *Bundle) set(k Kind, m poly.Map) {
	if b.rels == nil {
		b.rels = make(map[Kind]poly.Map)
	}
	if _, dup := b.rels[k]; dup {
		panic(fmt.Sprintf("deps: %s dependences written twice", k))
	}
	b.rels[k] = m
}

// Get returns the relation for k, or the empty relation.
func (b Bundle) Get(k Kind) poly.Map { return b.rels[k] }

// Has reports whether k was computed.
func (b Bundle) Has(k Kind) bool {
	_, ok := b.rels[k]
	return ok
}

// Kinds returns the computed kinds in declaration order.
func (b Bundle) Kinds() []Kind {
	var out []Kind
	for _, k := range Kinds {
		if b.Has(k) {
			out = append(out, k)
		}
	}
	return out
}

// with returns a copy of b with k replaced.
func (b Bundle) with(k Kind, m poly.Map) Bundle {
	rels := make(map[Kind]poly.Map, len(b.rels)+1)
	for kk, v := range b.rels {
		rels[kk] = v
	}
	rels[k] = m
	return Bundle{rels: rels}
}
