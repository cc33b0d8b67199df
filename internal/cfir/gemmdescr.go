// Copyright 2025 chainforge Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cfir

import (
	"fmt"

	"github.com/chainforge-gpu/chainforge/internal/cferrors"
)

// GemmDescr is one link of a gemm chain: C = alpha*op(A)*op(B) + beta*C.
// It is immutable once constructed; the builder consumes it.
type GemmDescr struct {
	TransA, TransB   bool
	MatA, MatB, MatC *Matrix
	Alpha, Beta      float64
	StrictMatch      bool

	m, n, k int
}

// NewGemmDescr validates the operand shapes and derives m, n, k. alpha
// and beta default to 1.0 and 0.0 when nil.
func NewGemmDescr(transA, transB bool, a, b, c *Matrix, alpha, beta *float64, strictMatch bool) (*GemmDescr, error) {
	alphaVal, betaVal := 1.0, 0.0
	if alpha != nil {
		alphaVal = *alpha
	}
	if beta != nil {
		betaVal = *beta
	}
	g := &GemmDescr{
		TransA: transA, TransB: transB, MatA: a, MatB: b, MatC: c,
		Alpha: alphaVal, Beta: betaVal, StrictMatch: strictMatch,
	}
	a.SetDataFlowDirection(Source)
	b.SetDataFlowDirection(Source)
	c.SetDataFlowDirection(Sink)

	if err := g.check(); err != nil {
		return nil, err
	}
	g.analyze()
	return g, nil
}

func (g *GemmDescr) analyze() {
	if g.TransA {
		g.m = g.MatA.ActualNumCols()
		g.k = g.MatA.ActualNumRows()
	} else {
		g.m = g.MatA.ActualNumRows()
		g.k = g.MatA.ActualNumCols()
	}
	if g.TransB {
		g.n = g.MatB.ActualNumRows()
	} else {
		g.n = g.MatB.ActualNumCols()
	}
}

// NumThreads returns the thread count a default kernel would allocate
// for this GEMM (aligned m) and the raw m for reference.
func (g *GemmDescr) NumThreads(ctx *Context) (numThreads, m int) {
	return ctx.Align(g.m), g.m
}

func (g *GemmDescr) AccumulatorSize() int { return g.n }

func (g *GemmDescr) betaIsZero() bool { return g.Beta == 0 }

func (g *GemmDescr) String() string {
	suffixA, suffixB := "", ""
	if g.TransA {
		suffixA = "^T"
	}
	if g.TransB {
		suffixB = "^T"
	}
	op1 := fmt.Sprintf("%v * %s%s x %s%s", g.Alpha, g.MatA.Name, suffixA, g.MatB.Name, suffixB)
	op2 := ""
	if !g.betaIsZero() {
		op2 = fmt.Sprintf(" + %v * %s", g.Beta, g.MatC.Name)
	}
	return fmt.Sprintf("%s = %s%s", g.MatC.Name, op1, op2)
}

func (g *GemmDescr) check() error {
	if g.TransA {
		if g.MatC.ActualNumRows() != g.MatA.ActualNumCols() {
			return cferrors.Generation("matrix C and A (trans) do not match: %s vs %s", g.MatC.GenDescr(), g.MatA.GenDescr())
		}
	} else if g.MatC.ActualNumRows() != g.MatA.ActualNumRows() {
		return cferrors.Generation("matrix C and A (no-trans) do not match: %s vs %s", g.MatC.GenDescr(), g.MatA.GenDescr())
	}

	if g.TransB {
		if g.MatC.ActualNumCols() != g.MatB.ActualNumRows() {
			return cferrors.Generation("matrix C and B (trans) do not match: %s vs %s", g.MatC.GenDescr(), g.MatB.GenDescr())
		}
	} else if g.MatC.ActualNumCols() != g.MatB.ActualNumCols() {
		return cferrors.Generation("matrix C and B (no-trans) do not match: %s vs %s", g.MatC.GenDescr(), g.MatB.GenDescr())
	}

	// The contraction length of A and B may legitimately differ due to
	// matrix-chain alignment padding; only strict matching checks it.
	if g.StrictMatch {
		aLen, bLen := g.contractionLens()
		if aLen != bLen {
			return cferrors.Generation("matrix A and B contraction lengths do not match under strict matching: %d vs %d", aLen, bLen)
		}
	}
	return nil
}

func (g *GemmDescr) contractionLens() (aLen, bLen int) {
	if g.TransA {
		aLen = g.MatA.ActualNumRows()
	} else {
		aLen = g.MatA.ActualNumCols()
	}
	if g.TransB {
		bLen = g.MatB.ActualNumCols()
	} else {
		bLen = g.MatB.ActualNumRows()
	}
	return aLen, bLen
}

// EstimatedFLOPs follows original_source's compute_flops: (2k-1)*m*n,
// plus m*n when beta is nonzero. Advisory only — it does not influence
// kernel-type selection.
func (g *GemmDescr) EstimatedFLOPs() int64 {
	flops := int64(2*g.k-1) * int64(g.m) * int64(g.n)
	if !g.betaIsZero() {
		flops += int64(g.m) * int64(g.n)
	}
	return flops
}
