package testutil

import "github.com/roach88/polydep/internal/ir"

// Scop fixtures shared by the deps, engine and harness tests. Each returns a
// fresh value so callers may modify it.

// ProducerConsumer is
//
//	for (i = 0; i < N; i++) { S1: A[i] = 0; S2: A[i] = A[i] + 1; }
func ProducerConsumer(n int64) *ir.ScopSpec {
	return &ir.ScopSpec{
		Name:   "producer_consumer",
		Params: map[string]int64{"N": n},
		Statements: []ir.StatementSpec{
			{
				Name:     "S1",
				Domain:   []ir.LoopBound{{Iter: "i", Lower: "0", Upper: "N"}},
				Schedule: []string{"i", "0"},
				Accesses: []ir.AccessSpec{
					{Ref: "w_S1_A", Kind: ir.AccessMustWrite, Array: "A", Index: []string{"i"}},
				},
			},
			{
				Name:     "S2",
				Domain:   []ir.LoopBound{{Iter: "i", Lower: "0", Upper: "N"}},
				Schedule: []string{"i", "1"},
				Accesses: []ir.AccessSpec{
					{Ref: "r_S2_A", Kind: ir.AccessRead, Array: "A", Index: []string{"i"}},
					{Ref: "w_S2_A", Kind: ir.AccessMustWrite, Array: "A", Index: []string{"i"}},
				},
			},
		},
	}
}

// ShiftedRead is
//
//	for (i = 0; i < N; i++) S1: C[i] = B[i + 1];
func ShiftedRead(n int64) *ir.ScopSpec {
	return &ir.ScopSpec{
		Name:   "shifted_read",
		Params: map[string]int64{"N": n},
		Statements: []ir.StatementSpec{
			{
				Name:     "S1",
				Domain:   []ir.LoopBound{{Iter: "i", Lower: "0", Upper: "N"}},
				Schedule: []string{"i"},
				Accesses: []ir.AccessSpec{
					{Ref: "r_B", Kind: ir.AccessRead, Array: "B", Index: []string{"i + 1"}},
					{Ref: "w_C", Kind: ir.AccessMustWrite, Array: "C", Index: []string{"i"}},
				},
			},
		},
	}
}

// Reduction is
//
//	for (i = 0; i < N; i++)
//	  for (j = 0; j < M; j++)
//	    S1: D[i][j] = C[j];
func Reduction(n, m int64) *ir.ScopSpec {
	return &ir.ScopSpec{
		Name:   "reduction",
		Params: map[string]int64{"N": n, "M": m},
		Statements: []ir.StatementSpec{
			{
				Name: "S1",
				Domain: []ir.LoopBound{
					{Iter: "i", Lower: "0", Upper: "N"},
					{Iter: "j", Lower: "0", Upper: "M"},
				},
				Schedule: []string{"i", "j"},
				Accesses: []ir.AccessSpec{
					{Ref: "r_C", Kind: ir.AccessRead, Array: "C", Index: []string{"j"}},
					{Ref: "w_D", Kind: ir.AccessMustWrite, Array: "D", Index: []string{"i", "j"}},
				},
			},
		},
	}
}

// DeadStore is
//
//	for (i = 0; i < N; i++) {
//	  S1: A[i] = i;
//	  S2: B[i] = A[i];
//	  S3: T[i] = A[i];
//	}
//	for (i = 0; i < N; i++) K: kill(T[i]);
//
// T is never read and is killed after the loop, so S3 is dead.
func DeadStore(n int64) *ir.ScopSpec {
	loop := []ir.LoopBound{{Iter: "i", Lower: "0", Upper: "N"}}
	return &ir.ScopSpec{
		Name:   "dead_store",
		Params: map[string]int64{"N": n},
		Statements: []ir.StatementSpec{
			{
				Name: "S1", Domain: loop, Schedule: []string{"0", "i", "0"},
				Accesses: []ir.AccessSpec{
					{Ref: "w_S1_A", Kind: ir.AccessMustWrite, Array: "A", Index: []string{"i"}},
				},
			},
			{
				Name: "S2", Domain: loop, Schedule: []string{"0", "i", "1"},
				Accesses: []ir.AccessSpec{
					{Ref: "r_S2_A", Kind: ir.AccessRead, Array: "A", Index: []string{"i"}},
					{Ref: "w_S2_B", Kind: ir.AccessMustWrite, Array: "B", Index: []string{"i"}},
				},
			},
			{
				Name: "S3", Domain: loop, Schedule: []string{"0", "i", "2"},
				Accesses: []ir.AccessSpec{
					{Ref: "r_S3_A", Kind: ir.AccessRead, Array: "A", Index: []string{"i"}},
					{Ref: "w_S3_T", Kind: ir.AccessMustWrite, Array: "T", Index: []string{"i"}},
				},
			},
			{
				Name: "K", Domain: loop, Schedule: []string{"1", "i", "0"},
				Accesses: []ir.AccessSpec{
					{Ref: "k_T", Kind: ir.AccessKill, Array: "T", Index: []string{"i"}},
				},
			},
		},
	}
}

// Stencil is a two-statement stencil with a scalar temporary, suitable for
// live-range reordering:
//
//	for (i = 1; i < N; i++) {
//	  S1: t = A[i - 1] + A[i];
//	  S2: B[i] = t;
//	}
func Stencil(n int64) *ir.ScopSpec {
	loop := []ir.LoopBound{{Iter: "i", Lower: "1", Upper: "N"}}
	return &ir.ScopSpec{
		Name:   "stencil",
		Params: map[string]int64{"N": n},
		Statements: []ir.StatementSpec{
			{
				Name: "S1", Domain: loop, Schedule: []string{"i", "0"},
				Accesses: []ir.AccessSpec{
					{Ref: "r_S1_A0", Kind: ir.AccessRead, Array: "A", Index: []string{"i - 1"}},
					{Ref: "r_S1_A1", Kind: ir.AccessRead, Array: "A", Index: []string{"i"}},
					{Ref: "w_S1_t", Kind: ir.AccessMustWrite, Array: "t"},
				},
			},
			{
				Name: "S2", Domain: loop, Schedule: []string{"i", "1"},
				Accesses: []ir.AccessSpec{
					{Ref: "r_S2_t", Kind: ir.AccessRead, Array: "t"},
					{Ref: "w_S2_B", Kind: ir.AccessMustWrite, Array: "B", Index: []string{"i"}},
				},
			},
		},
	}
}
