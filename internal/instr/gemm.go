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

package instr

import (
	"fmt"

	"github.com/chainforge-gpu/chainforge/internal/cferrors"
	"github.com/chainforge-gpu/chainforge/internal/cfir"
	"github.com/chainforge-gpu/chainforge/internal/datatypes"
	"github.com/chainforge-gpu/chainforge/internal/symtab"
	"github.com/chainforge-gpu/chainforge/internal/writer"
)

// Gemm reads one element of op1 per thread, then walks the n range
// accumulating op1Element*op2[...] into the register tile. Correctness
// guards (layout agreement, contraction-length agreement) run once at
// GenCode time rather than at construction, mirroring that op1/op2's
// DataViews may still be mutated by the optimizer after the
// instruction is built.
type Gemm struct {
	base
	transA, transB bool
	op1, op2, dest *symtab.Symbol
	preferAlign    bool
	numThreads     int

	op1View            *symtab.DataView
	isLayoutAsRequested bool
	nRange, mRange     int
	metaData           string
}

// NewGemm builds a GEMM accumulation step. numThreads is the kernel's
// thread count, needed to recover the physical row a given register
// tile slot corresponds to whenever the tile packs more than one row
// per thread (kernels.MinThreads with m > warp size).
func NewGemm(ctx *cfir.Context, transA, transB bool, op1, op2, dest *symtab.Symbol, preferAlign bool, numThreads int) (*Gemm, error) {
	if dest.Stype != symtab.Register {
		return nil, cferrors.Internal("gemm: accumulator-register array is not provided. Instead: %s", dest.Stype)
	}
	if _, ok := op1.Obj.(*cfir.Matrix); !ok {
		return nil, cferrors.Internal("gemm: op1 is not a matrix")
	}
	if _, ok := op2.Obj.(*cfir.Matrix); !ok {
		return nil, cferrors.Internal("gemm: op2 is not a matrix")
	}

	g := &Gemm{base: newBase(ctx), transA: transA, transB: transB, op1: op1, op2: op2, dest: dest, preferAlign: preferAlign, numThreads: numThreads}
	g.isReady = true
	op1.AddUser(g)
	op2.AddUser(g)
	dest.AddUser(g)
	g.analyze()
	return g, nil
}

func (g *Gemm) analyze() {
	op1View := g.op1.DataView
	op2View := g.op2.DataView

	g.isLayoutAsRequested = op2View.IsTransposed == g.transB
	if g.isLayoutAsRequested {
		g.nRange = op2View.DimSize(1)
	} else {
		g.nRange = op2View.DimSize(0)
	}

	g.mRange = op1View.DimSize(0)
	numDirtyRows := 0

	if g.preferAlign {
		bbox := op1View.GetBbox()
		aligned := *op1View
		g.op1View = &aligned
		alignedBegin, alignedEnd, _ := g.ctx.AlignRange(bbox[0], bbox[2], aligned.LeadDim())

		alignedBbox := [4]int{alignedBegin, bbox[1], alignedEnd, bbox[3]}
		g.op1View.ResetBbox(alignedBbox)
		numDirtyRows = bbox[0] - alignedBegin

		if alignedBegin != bbox[0] || alignedEnd != bbox[2] {
			g.metaData = fmt.Sprintf("gemm aligned along `m` dim: from [%d, %d] to [%d, %d]; num. dirty rows in `result`: %d",
				bbox[0], bbox[2], alignedBegin, alignedEnd, numDirtyRows)
		}
	} else {
		g.op1View = op1View
	}

	destBbox := [4]int{numDirtyRows, 0, g.mRange + numDirtyRows, g.nRange}
	g.dest.DataView = symtab.NewDataView(g.op1View.DimSize(0), g.nRange, false, &destBbox)
}

func (g *Gemm) check() error {
	op1View := g.op1.DataView
	op2View := g.op2.DataView
	if op1View == nil {
		return cferrors.Internal("symbol data view has not been assigned to `op1`")
	}
	if op1View.IsTransposed != g.transA {
		return cferrors.Generation("op1 layout does not match the layout requested by gemm instr.")
	}
	if op2View == nil {
		return cferrors.Internal("gemm: symbol data view has not been assigned to `op2`")
	}

	isRequestedLayout := op2View.IsTransposed == g.transB
	kRangeOp1 := op1View.DimSize(1)
	var kRangeOp2 int
	if isRequestedLayout {
		kRangeOp2 = op2View.DimSize(0)
	} else {
		kRangeOp2 = op2View.DimSize(1)
	}

	if g.ctx.Options.ExactContractionLength && kRangeOp1 != kRangeOp2 {
		return cferrors.Generation("gemm: mismatch of contraction length k_range_op1(%d) != k_range_op2(%d)", kRangeOp1, kRangeOp2)
	}

	op2Columns := op2View.DimSize(1)
	regObj := g.dest.Obj.(*datatypes.RegMemObject)
	if op2Columns > regObj.Size[1] {
		return cferrors.Internal("gemm: contraction length is bigger than reg. size i.e, %d > %d", op2Columns, regObj.Size[1])
	}
	return nil
}

func (g *Gemm) GenCode(w *writer.Writer) {
	if err := g.check(); err != nil {
		panic(err)
	}
	w.NewLine()
	w.Linef("// gemm: %s x %s", g.op1.Name, g.op2.Name)
	if g.metaData != "" {
		w.Linef("// meta: %s", g.metaData)
	}

	regObj := g.dest.Obj.(*datatypes.RegMemObject)
	kRange := g.op1View.DimSize(1)

	w.Block(g.GenMaskThreads(g.op1View.DimSize(0)), func() {
		switch {
		case regObj.Size[0] > 1:
			// one warp sweeps the whole `m` range: each thread owns
			// regObj.Size[0] rows of the tile, spaced numThreads apart.
			w.Block(fmt.Sprintf("for (int c = 0; c < %d; ++c)", regObj.Size[0]), func() {
				w.Linef("int t = %s + c * %d;", g.lexic().ThreadIdxX, g.numThreads)
				w.Linef("if (t >= %d) break;", g.mRange)
				w.PragmaUnroll(g.ctx.Options.UnrollFactor)
				w.Block(fmt.Sprintf("for (int k = 0; k < %d; ++k)", kRange), func() {
					address := g.op1View.Address("t", "k")
					w.Linef("%s value = %s[%s];", g.fpAsStr(), g.op1.Name, address)
					w.NewLine()
					g.genInnerLoop(w, "value", "c", "k")
				})
			})

		case g.ctx.Options.PrefetchGemm && g.op1.Stype == symtab.Global && kRange > 1:
			g.genPrefetchLoop(w, kRange)

		default:
			w.PragmaUnroll(g.ctx.Options.UnrollFactor)
			w.Block(fmt.Sprintf("for (int k = 0; k < %d; ++k)", kRange), func() {
				address := g.op1View.Address(g.lexic().ThreadIdxX, "k")
				w.Linef("%s value = %s[%s];", g.fpAsStr(), g.op1.Name, address)
				w.NewLine()
				g.genInnerLoop(w, "value", "", "k")
			})
		}
	})
}

// genPrefetchLoop implements the prefetch_gemm option: pre-read
// A[tid] once, then on each of the first kRange-1 iterations issue
// the multiply against the value fetched on the previous iteration
// while prefetching the next one, and finish with an unrolled tail
// iteration that only consumes the last prefetched value.
func (g *Gemm) genPrefetchLoop(w *writer.Writer, kRange int) {
	tid := g.lexic().ThreadIdxX
	w.Linef("%s value = %s[%s];", g.fpAsStr(), g.op1.Name, g.op1View.Address(tid, "0"))
	w.NewLine()
	w.PragmaUnroll(g.ctx.Options.UnrollFactor)
	w.Block(fmt.Sprintf("for (int k = 0; k < %d; ++k)", kRange-1), func() {
		nextAddress := g.op1View.Address(tid, "k + 1")
		w.Linef("%s next = %s[%s];", g.fpAsStr(), g.op1.Name, nextAddress)
		w.NewLine()
		g.genInnerLoop(w, "value", "", "k")
		w.Line("value = next;")
	})
	w.NewLine()
	w.Line("// unrolled tail")
	g.genInnerLoop(w, "value", "", fmt.Sprintf("%d", kRange-1))
}

// genInnerLoop walks the n range, accumulating op1Element*op2[...]
// into the register tile. rowIdx is the literal C expression indexing
// the tile's row axis ("c" under the single-warp row-packed layout),
// or empty when the tile has exactly one row per thread. kExpr is the
// C expression for the current k (a loop variable, or a constant when
// called from the prefetch variant's unrolled tail).
func (g *Gemm) genInnerLoop(w *writer.Writer, op1Element, rowIdx, kExpr string) {
	w.PragmaUnroll(g.ctx.Options.UnrollFactor)
	w.Block(fmt.Sprintf("for (int n = 0; n < %d; ++n)", g.nRange), func() {
		var address string
		if g.isLayoutAsRequested {
			address = g.op2.DataView.Address(kExpr, "n")
		} else {
			address = g.op2.DataView.Address("n", kExpr)
		}

		destAddress := "[n]"
		if g.dest.DataView.Columns == 1 {
			destAddress = ""
		}
		if rowIdx != "" {
			destAddress = fmt.Sprintf("[%s]%s", rowIdx, destAddress)
		}
		w.Linef("%s%s += %s * %s[%s];", g.dest.Name, destAddress, op1Element, g.op2.Name, address)
	})
}

func (g *Gemm) Op1() *symtab.Symbol { return g.op1 }
func (g *Gemm) Op2() *symtab.Symbol { return g.op2 }

func (g *Gemm) String() string {
	return fmt.Sprintf("%s = gemm %s, %s;", g.dest.Name, g.op1.Name, g.op2.Name)
}
