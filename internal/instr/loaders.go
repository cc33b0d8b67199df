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
	"math"

	"modernc.org/mathutil"

	"github.com/chainforge-gpu/chainforge/internal/cferrors"
	"github.com/chainforge-gpu/chainforge/internal/cfir"
	"github.com/chainforge-gpu/chainforge/internal/symtab"
	"github.com/chainforge-gpu/chainforge/internal/writer"
)

// ShrMemLoaderType tags whether a loader leaves a matrix's layout
// untouched or transposes it on the fly while staging it to shared
// memory, so the GEMM builder can decide whether a previously staged
// operand can be reused.
type ShrMemLoaderType int

const (
	NotTransposed ShrMemLoaderType = iota
	Transposed
)

// loaderBase is embedded by all four patch-loader variants.
type loaderBase struct {
	shrMemWriteBase
	dest, src, shrMem *symtab.Symbol
	numThreads        int
	loadAndTranspose  bool
	matrix            *cfir.Matrix
}

func newLoaderBase(ctx *cfir.Context, dest, src, shrMem *symtab.Symbol, numThreads int, loadAndTranspose bool) (loaderBase, error) {
	if src.Stype != symtab.Global {
		return loaderBase{}, cferrors.Internal("shr-load: `src` operand is not in global mem.")
	}
	matrix, ok := src.Obj.(*cfir.Matrix)
	if !ok {
		return loaderBase{}, cferrors.Internal("shr-load: `src` operand is not a matrix")
	}
	if dest.Stype != symtab.SharedMem {
		return loaderBase{}, cferrors.Internal("shr-load: `dest` operand is not in shr. mem.")
	}

	lb := loaderBase{
		shrMemWriteBase:  newShrMemWriteBase(ctx),
		dest:             dest,
		src:              src,
		shrMem:           shrMem,
		numThreads:       numThreads,
		loadAndTranspose: loadAndTranspose,
		matrix:           matrix,
	}
	return lb, nil
}

// registerUsers records u (the concrete loader) as a user of its three
// operand symbols. Called by each variant's constructor once u exists,
// since loaderBase itself has no String() method to satisfy User.
func registerUsers(u symtab.User, dest, src, shrMem *symtab.Symbol) {
	dest.AddUser(u)
	src.AddUser(u)
	shrMem.AddUser(u)
}

func (b *loaderBase) genPointerBind(w *writer.Writer) {
	w.NewLine()
	lhs := fmt.Sprintf("%s* %s %s", b.fpAsStr(), b.lexic().RestrictKw, b.dest.Name)
	rhs := fmt.Sprintf("%s[%d]", b.shrMem.Name, b.shrMemOffset)
	w.Linef("%s = &%s;", lhs, rhs)
}

func (b *loaderBase) GetSrc() *symtab.Symbol  { return b.src }
func (b *loaderBase) GetDest() *symtab.Symbol { return b.dest }

func srcOffsetPrefix(v *symtab.DataView) string {
	if off := v.Offset(); off != 0 {
		return fmt.Sprintf("%d + ", off)
	}
	return ""
}

// ExtendedPatchLoader stages an entire matrix into shared memory,
// without transposing it.
type ExtendedPatchLoader struct{ loaderBase }

func NewExtendedPatchLoader(ctx *cfir.Context, dest, src, shrMem *symtab.Symbol, numThreads int) (*ExtendedPatchLoader, error) {
	lb, err := newLoaderBase(ctx, dest, src, shrMem, numThreads, false)
	if err != nil {
		return nil, err
	}
	l := &ExtendedPatchLoader{loaderBase: lb}

	fullSubvolume := (l.matrix.ActualNumCols() - 2) * l.matrix.NumRows
	croppedSubvolume := l.matrix.ActualNumRows() + l.matrix.NumRows
	l.shmVolume = croppedSubvolume + fullSubvolume

	srcBbox := l.matrix.Bbox
	src.DataView = symtab.NewDataView(l.matrix.NumRows, l.matrix.NumCols, false, &srcBbox)

	dstBbox := [4]int{0, 0, srcBbox[2] - srcBbox[0], srcBbox[3] - srcBbox[1]}
	dest.DataView = symtab.NewDataView(l.matrix.NumRows, l.matrix.NumCols, false, &dstBbox)
	registerUsers(l, dest, src, shrMem)
	return l, nil
}

func (l *ExtendedPatchLoader) GetLoaderType() ShrMemLoaderType { return NotTransposed }

func (l *ExtendedPatchLoader) GenCode(w *writer.Writer) {
	l.genPointerBind(w)
	w.Linef("// loading %s to %s: # no trans, extended", l.src.Name, l.dest.Name)

	srcOffset := srcOffsetPrefix(l.src.DataView)
	numHops := l.shmVolume / l.numThreads
	if numHops > 0 {
		w.PragmaUnroll(l.ctx.Options.UnrollFactor)
		w.Block(fmt.Sprintf("for (int i = 0; i < %d; ++i)", numHops), func() {
			index := fmt.Sprintf("%s + i * %d", l.lexic().ThreadIdxX, l.numThreads)
			w.Linef("%s[%s] = %s[%s%s];", l.dest.Name, index, l.src.Name, srcOffset, index)
		})
	}

	if l.shmVolume%l.numThreads != 0 {
		residue := l.shmVolume - numHops*l.numThreads
		w.Block(fmt.Sprintf("if (%s < %d)", l.lexic().ThreadIdxX, residue), func() {
			index := fmt.Sprintf("%s + %d", l.lexic().ThreadIdxX, numHops*l.numThreads)
			w.Linef("%s[%s] = %s[%s%s];", l.dest.Name, index, l.src.Name, srcOffset, index)
		})
	}
}

func (l *ExtendedPatchLoader) String() string {
	return fmt.Sprintf("%s = load_g2s_ext %s, %s;", l.dest.Name, l.shrMem.Name, l.src.Name)
}

// ExactPatchLoader stages only the active bbox of a matrix into shared
// memory, column by column.
type ExactPatchLoader struct{ loaderBase }

func NewExactPatchLoader(ctx *cfir.Context, dest, src, shrMem *symtab.Symbol, numThreads int) (*ExactPatchLoader, error) {
	lb, err := newLoaderBase(ctx, dest, src, shrMem, numThreads, false)
	if err != nil {
		return nil, err
	}
	l := &ExactPatchLoader{loaderBase: lb}
	l.shmVolume = l.matrix.ActualVolume()

	bbox := l.matrix.Bbox
	src.DataView = symtab.NewDataView(l.matrix.NumRows, l.matrix.NumCols, false, &bbox)
	dest.DataView = symtab.NewDataView(src.DataView.DimSize(0), src.DataView.DimSize(1), false, nil)
	registerUsers(l, dest, src, shrMem)
	return l, nil
}

func (l *ExactPatchLoader) GetLoaderType() ShrMemLoaderType { return NotTransposed }

func (l *ExactPatchLoader) GenCode(w *writer.Writer) {
	l.genPointerBind(w)
	w.Linef("// loading %s to %s: # no trans, exact.", l.src.Name, l.dest.Name)

	numDataRows := l.src.DataView.DimSize(0)
	srcOffset := srcOffsetPrefix(l.src.DataView)

	w.Block(fmt.Sprintf("for (int i = 0; i < %d; ++i)", l.src.DataView.DimSize(1)), func() {
		numHops := numDataRows / l.numThreads
		if numHops > 0 {
			w.PragmaUnroll(l.ctx.Options.UnrollFactor)
			w.Block(fmt.Sprintf("for (int counter = 0; counter < %d; ++counter)", numHops), func() {
				shrIndex := fmt.Sprintf("%s + counter * %d + i * %d", l.lexic().ThreadIdxX, l.numThreads, l.dest.DataView.LeadDim())
				glbIndex := fmt.Sprintf("%s + counter * %d + i * %d", l.lexic().ThreadIdxX, l.numThreads, l.src.DataView.LeadDim())
				w.Linef("%s[%s] = %s[%s%s];", l.dest.Name, shrIndex, l.src.Name, srcOffset, glbIndex)
			})
		}

		if numDataRows%l.numThreads != 0 {
			residue := numDataRows - numHops*l.numThreads
			w.Block(fmt.Sprintf("if (%s < %d)", l.lexic().ThreadIdxX, residue), func() {
				finalOffset := numHops * l.numThreads
				shrIndex := fmt.Sprintf("%s + %d + i * %d", l.lexic().ThreadIdxX, finalOffset, l.dest.DataView.LeadDim())
				glbIndex := fmt.Sprintf("%s + %d + i * %d", l.lexic().ThreadIdxX, finalOffset, l.src.DataView.LeadDim())
				w.Linef("%s[%s] = %s[%s%s];", l.dest.Name, shrIndex, l.src.Name, srcOffset, glbIndex)
			})
		}
	})
}

func (l *ExactPatchLoader) String() string {
	return fmt.Sprintf("%s = load_g2s %s, %s;", l.dest.Name, l.shrMem.Name, l.src.Name)
}

// nextPrimeGE finds the smallest prime >= n, matching the search order
// of the original's range(n, 2n) trial-division scan but delegating
// primality itself to mathutil rather than hand-rolled trial division.
func nextPrimeGE(n int) int {
	if n < 2 {
		return 2
	}
	for candidate := n; ; candidate++ {
		if mathutil.ProbablyPrime(uint32(candidate)) {
			return candidate
		}
	}
}

// ExtendedTransposePatchLoader stages an entire matrix into shared
// memory and transposes it on the fly. The destination's lead
// dimension is padded to the next prime to stagger bank-conflicting
// strided accesses across warps.
type ExtendedTransposePatchLoader struct{ loaderBase }

func NewExtendedTransposePatchLoader(ctx *cfir.Context, dest, src, shrMem *symtab.Symbol, numThreads int) (*ExtendedTransposePatchLoader, error) {
	lb, err := newLoaderBase(ctx, dest, src, shrMem, numThreads, true)
	if err != nil {
		return nil, err
	}
	l := &ExtendedTransposePatchLoader{loaderBase: lb}

	optimalNumCols := nextPrimeGE(l.matrix.ActualNumCols())
	l.shmVolume = optimalNumCols * l.matrix.NumRows

	srcBbox := l.matrix.Bbox
	src.DataView = symtab.NewDataView(l.matrix.NumRows, l.matrix.NumCols, false, &srcBbox)

	destBbox := [4]int{0, 0, srcBbox[3] - srcBbox[1], srcBbox[2] - srcBbox[0]}
	dest.DataView = symtab.NewDataView(optimalNumCols, l.matrix.ActualNumRows(), true, &destBbox)
	registerUsers(l, dest, src, shrMem)
	return l, nil
}

func (l *ExtendedTransposePatchLoader) GetLoaderType() ShrMemLoaderType { return Transposed }

func (l *ExtendedTransposePatchLoader) GenCode(w *writer.Writer) {
	l.genPointerBind(w)
	w.Linef("// loading %s to %s: # trans, extended", l.src.Name, l.dest.Name)

	numHops := l.shmVolume / l.numThreads
	const tmpVar = "index"

	srcLeadDim := l.src.DataView.LeadDim()
	destLeadDim := l.dest.DataView.LeadDim()
	srcOffset := srcOffsetPrefix(l.src.DataView)

	w.Block("", func() {
		w.Linef("int %s;", tmpVar)
		w.NewLine()
		if numHops > 0 {
			w.PragmaUnroll(l.ctx.Options.UnrollFactor)
			w.Block(fmt.Sprintf("for (int i = 0; i < %d; ++i)", numHops), func() {
				w.Linef("%s = %s + i * %d;", tmpVar, l.lexic().ThreadIdxX, l.numThreads)
				shrIndex := fmt.Sprintf("(%s %% %d) * %d + %s / %d", tmpVar, srcLeadDim, destLeadDim, tmpVar, srcLeadDim)
				glbIndex := fmt.Sprintf("%s + i * %d", l.lexic().ThreadIdxX, l.numThreads)
				w.Linef("%s[%s] = %s[%s%s];", l.dest.Name, shrIndex, l.src.Name, srcOffset, glbIndex)
			})
		}

		if l.shmVolume%l.numThreads != 0 {
			residual := l.shmVolume - numHops*l.numThreads
			w.Block(fmt.Sprintf("if (%s < %d)", l.lexic().ThreadIdxX, residual), func() {
				w.Linef("%s = %s + %d;", tmpVar, l.lexic().ThreadIdxX, numHops*l.numThreads)
				shrIndex := fmt.Sprintf("(%s %% %d) * %d + %s / %d", tmpVar, srcLeadDim, destLeadDim, tmpVar, srcLeadDim)
				glbIndex := fmt.Sprintf("%s + %d", l.lexic().ThreadIdxX, numHops*l.numThreads)
				w.Linef("%s[%s] = %s[%s%s];", l.dest.Name, shrIndex, l.src.Name, srcOffset, glbIndex)
			})
		}
	})
}

func (l *ExtendedTransposePatchLoader) String() string {
	return fmt.Sprintf("%s = load_g2s_trans_ext %s, %s;", l.dest.Name, l.shrMem.Name, l.src.Name)
}

// ExactTransposePatchLoader stages only the active bbox into shared
// memory and transposes it on the fly.
type ExactTransposePatchLoader struct{ loaderBase }

func NewExactTransposePatchLoader(ctx *cfir.Context, dest, src, shrMem *symtab.Symbol, numThreads int) (*ExactTransposePatchLoader, error) {
	lb, err := newLoaderBase(ctx, dest, src, shrMem, numThreads, true)
	if err != nil {
		return nil, err
	}
	l := &ExactTransposePatchLoader{loaderBase: lb}

	optimalNumCols := nextPrimeGE(l.matrix.ActualNumCols())
	l.shmVolume = optimalNumCols * l.matrix.NumRows

	srcBbox := l.matrix.Bbox
	src.DataView = symtab.NewDataView(l.matrix.NumRows, l.matrix.NumCols, false, &srcBbox)

	destBbox := [4]int{0, 0, srcBbox[3] - srcBbox[1], srcBbox[2] - srcBbox[0]}
	dest.DataView = symtab.NewDataView(optimalNumCols, l.matrix.ActualNumRows(), true, &destBbox)
	registerUsers(l, dest, src, shrMem)
	return l, nil
}

func (l *ExactTransposePatchLoader) GetLoaderType() ShrMemLoaderType { return Transposed }

func (l *ExactTransposePatchLoader) GenCode(w *writer.Writer) {
	l.genPointerBind(w)
	w.Linef("// loading %s to %s: # trans, exact", l.src.Name, l.dest.Name)

	const tmpVar = "index"
	srcView := l.src.DataView
	destView := l.dest.DataView
	srcOffset := srcOffsetPrefix(srcView)

	w.Block(fmt.Sprintf("for (int i = 0; i < %d; ++i)", srcView.DimSize(1)), func() {
		numHops := srcView.DimSize(0) / l.numThreads
		if numHops > 0 {
			w.PragmaUnroll(l.ctx.Options.UnrollFactor)
			w.Block(fmt.Sprintf("for (int counter = 0; counter < %d; ++counter)", numHops), func() {
				threadIdx := fmt.Sprintf("%s + counter * %d", l.lexic().ThreadIdxX, l.numThreads)
				w.Linef("int %s = %s + i * %d;", tmpVar, threadIdx, srcView.DimSize(0))
				shrIndex := fmt.Sprintf("(%s %% %d) * %d + %s / %d", tmpVar, srcView.DimSize(0), destView.LeadDim(), tmpVar, srcView.DimSize(0))
				glbIndex := fmt.Sprintf("%s + i * %d", threadIdx, srcView.LeadDim())
				w.Linef("%s[%s] = %s[%s%s];", l.dest.Name, shrIndex, l.src.Name, srcOffset, glbIndex)
			})
		}

		if srcView.DimSize(0)%l.numThreads != 0 {
			residual := srcView.DimSize(0) - numHops*l.numThreads
			w.Block(fmt.Sprintf("if (%s < %d)", l.lexic().ThreadIdxX, residual), func() {
				finalOffset := numHops * l.numThreads
				threadIdx := fmt.Sprintf("%s + %d", l.lexic().ThreadIdxX, finalOffset)
				w.Linef("int %s = %s + i * %d;", tmpVar, threadIdx, srcView.DimSize(0))
				shrIndex := fmt.Sprintf("(%s %% %d) * %d + %s / %d", tmpVar, srcView.DimSize(0), destView.LeadDim(), tmpVar, srcView.DimSize(0))
				glbIndex := fmt.Sprintf("%s + i * %d", threadIdx, srcView.LeadDim())
				w.Linef("%s[%s] = %s[%s%s];", l.dest.Name, shrIndex, l.src.Name, srcOffset, glbIndex)
			})
		}
	})
}

func (l *ExactTransposePatchLoader) String() string {
	return fmt.Sprintf("%s = load_g2s_trans %s, %s;", l.dest.Name, l.shrMem.Name, l.src.Name)
}

// ShrMemLoader is the common interface the GEMM builder programs
// against, satisfied by all four patch-loader variants.
type ShrMemLoader interface {
	ShrMemWrite
	GetLoaderType() ShrMemLoaderType
	GetSrc() *symtab.Symbol
	GetDest() *symtab.Symbol
}

// NewShrMemLoader picks an extended (whole-matrix) or exact (bbox-only)
// loader depending on whether an extended load's thread-tail would
// spill into a neighboring column, and whether the caller asked for an
// on-the-fly transpose.
func NewShrMemLoader(ctx *cfir.Context, dest, src, shrMem *symtab.Symbol, numThreads int, loadAndTranspose bool) (ShrMemLoader, error) {
	matrix, ok := src.Obj.(*cfir.Matrix)
	if !ok {
		return nil, cferrors.Internal("shm-factory: `src` operand is not a matrix")
	}

	numLoadsPerColumn := int(math.Ceil(float64(matrix.ActualNumRows())/float64(numThreads))) * numThreads

	if matrix.NumRows > numLoadsPerColumn {
		if loadAndTranspose {
			return NewExactTransposePatchLoader(ctx, dest, src, shrMem, numThreads)
		}
		return NewExactPatchLoader(ctx, dest, src, shrMem, numThreads)
	}
	if loadAndTranspose {
		return NewExtendedTransposePatchLoader(ctx, dest, src, shrMem, numThreads)
	}
	return NewExtendedPatchLoader(ctx, dest, src, shrMem, numThreads)
}
