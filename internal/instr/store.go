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

// copySymbol snapshots a symbol's name/stype/obj/DataView at
// construction time, so a later instruction re-targeting the live
// symbol (e.g. a subsequent GEMM reusing a register tile) doesn't
// retroactively change how this store renders its own addressing.
func copySymbol(s *symtab.Symbol) *symtab.Symbol {
	cp := *s
	if s.DataView != nil {
		dv := *s.DataView
		cp.DataView = &dv
	}
	return &cp
}

// StoreRegToShr writes a register tile out to a shared-memory region,
// one row of threads at a time.
type StoreRegToShr struct {
	shrMemWriteBase
	src, dest, shrMem *symtab.Symbol
	numThreads        int
}

func NewStoreRegToShr(ctx *cfir.Context, src, dest, shrMem *symtab.Symbol, numThreads int) (*StoreRegToShr, error) {
	if src.Stype != symtab.Register {
		return nil, cferrors.Internal("store: operand `src` is not in registers")
	}
	if _, ok := src.Obj.(*datatypes.RegMemObject); !ok {
		return nil, cferrors.Internal("store: operand `src` is not registers")
	}
	if dest.Stype != symtab.SharedMem {
		return nil, cferrors.Internal("store: operand `dest` is not in shared mem.")
	}
	matrix, ok := dest.Obj.(*cfir.Matrix)
	if !ok {
		return nil, cferrors.Internal("store: operand `dest` is not a matrix")
	}

	s := &StoreRegToShr{shrMemWriteBase: newShrMemWriteBase(ctx), shrMem: shrMem, numThreads: numThreads}

	bbox := matrix.Bbox
	bbox = [4]int{0, 0, bbox[2] - bbox[0], bbox[3] - bbox[1]}
	numRows := ctx.Align(bbox[2] - bbox[0])
	numCols := matrix.ActualNumCols()
	dest.DataView = symtab.NewDataView(numRows, numCols, false, &bbox)

	s.dest = dest
	s.src = copySymbol(src)
	s.shmVolume = dest.DataView.Volume()

	src.AddUser(s)
	dest.AddUser(s)
	shrMem.AddUser(s)
	return s, nil
}

func (s *StoreRegToShr) GetDest() *symtab.Symbol { return s.dest }

func (s *StoreRegToShr) GenCode(w *writer.Writer) {
	w.NewLine()
	w.Linef(" // writing to shr mem: from %s to %s", s.src.Name, s.dest.Name)
	lhs := fmt.Sprintf("%s* %s %s", s.fpAsStr(), s.lexic().RestrictKw, s.dest.Name)
	rhs := fmt.Sprintf("&%s[%d]", s.shrMem.Name, s.shrMemOffset)
	w.Linef("%s = %s;", lhs, rhs)

	destView := s.dest.DataView
	srcBbox := s.src.DataView.GetBbox()
	regObj := s.src.Obj.(*datatypes.RegMemObject)

	w.Block(s.GenRangeMaskThreads(srcBbox[0], srcBbox[2]), func() {
		if regObj.Size[0] > 1 {
			w.Block(fmt.Sprintf("for (int c = 0; c < %d; ++c)", regObj.Size[0]), func() {
				w.Linef("int t = %s + c * %d;", s.lexic().ThreadIdxX, s.numThreads)
				w.Linef("if (t >= %d) break;", srcBbox[2]-srcBbox[0])
				w.PragmaUnroll(s.ctx.Options.UnrollFactor)
				w.Block(fmt.Sprintf("for (int i = 0; i < %d; ++i)", destView.DimSize(1)), func() {
					destAddr := destView.Address("t", "i")
					w.Linef("%s[%s] = %s[c][i];", s.dest.Name, destAddr, s.src.Name)
				})
			})
			return
		}
		w.PragmaUnroll(s.ctx.Options.UnrollFactor)
		w.Block(fmt.Sprintf("for (int i = 0; i < %d; ++i)", destView.DimSize(1)), func() {
			destRowIdx := s.lexic().ThreadIdxX
			if disp := s.src.DataView.Offset(); disp != 0 {
				destRowIdx += fmt.Sprintf(" - %d", disp)
			}
			destAddr := destView.Address(destRowIdx, "i")
			w.Linef("%s[%s] = %s[i];", s.dest.Name, destAddr, s.src.Name)
		})
	})
}

func (s *StoreRegToShr) String() string {
	return fmt.Sprintf("%s = store_r2s %s, %s;", s.dest.Name, s.shrMem.Name, s.src.Name)
}

// StoreRegToGlb writes the final register tile back to global memory,
// applying the GEMM chain's alpha/beta scaling. A beta of exactly zero
// omits the "+ beta*C" read-modify-write term entirely, matching the
// WAR-collapse invariant the optimizer depends on.
type StoreRegToGlb struct {
	base
	src, dest    *symtab.Symbol
	alpha, beta  float64
	numThreads   int
}

func NewStoreRegToGlb(ctx *cfir.Context, src, dest *symtab.Symbol, alpha, beta float64, numThreads int) (*StoreRegToGlb, error) {
	if src.Stype != symtab.Register {
		return nil, cferrors.Internal("store: operand `src` is not in reg mem")
	}
	if _, ok := src.Obj.(*datatypes.RegMemObject); !ok {
		return nil, cferrors.Internal("store: operand `src` is registers")
	}
	if dest.Stype != symtab.Global {
		return nil, cferrors.Internal("store: operand `dest` is not in global memory.")
	}
	matrix, ok := dest.Obj.(*cfir.Matrix)
	if !ok {
		return nil, cferrors.Internal("store: operand `dest` is not a matrix")
	}
	if dest.DataView.DimSize(0) != src.DataView.DimSize(0) {
		return nil, cferrors.Internal("store: `src` and `dest` do not match in size along dim `0`")
	}

	s := &StoreRegToGlb{base: newBase(ctx), alpha: alpha, beta: beta, numThreads: numThreads}
	s.isReady = true

	bbox := matrix.Bbox
	dest.DataView = symtab.NewDataView(matrix.NumRows, matrix.NumCols, false, &bbox)

	s.dest = dest
	s.src = copySymbol(src)

	src.AddUser(s)
	dest.AddUser(s)
	return s, nil
}

func (s *StoreRegToGlb) GenCode(w *writer.Writer) {
	w.NewLine()
	destView := s.dest.DataView

	w.Line("// write results back to glb. memory")
	srcBbox := s.src.DataView.GetBbox()
	regObj := s.src.Obj.(*datatypes.RegMemObject)

	w.Block(s.GenRangeMaskThreads(srcBbox[0], srcBbox[2]), func() {
		if regObj.Size[0] > 1 {
			w.Block(fmt.Sprintf("for (int c = 0; c < %d; ++c)", regObj.Size[0]), func() {
				w.Linef("int t = %s + c * %d;", s.lexic().ThreadIdxX, s.numThreads)
				w.Linef("if (t >= %d) break;", srcBbox[2]-srcBbox[0])
				w.PragmaUnroll(s.ctx.Options.UnrollFactor)
				w.Block(fmt.Sprintf("for(int n = 0; n < %d; ++n)", destView.DimSize(1)), func() {
					destAddr := destView.Address("t", "n")
					lhs := fmt.Sprintf("%s[%s]", s.dest.Name, destAddr)

					srcAddress := "[c][n]"
					if regObj.Size[1] == 1 {
						srcAddress = "[c]"
					}
					rhs := fmt.Sprintf("%v * %s%s", s.alpha, s.src.Name, srcAddress)
					if s.beta != 0.0 {
						rhs += fmt.Sprintf(" + %v * %s", s.beta, lhs)
					}
					w.Linef("%s = %s;", lhs, rhs)
				})
			})
			return
		}
		w.PragmaUnroll(s.ctx.Options.UnrollFactor)
		w.Block(fmt.Sprintf("for(int n = 0; n < %d; ++n)", destView.DimSize(1)), func() {
			destRowIdx := s.lexic().ThreadIdxX
			if disp := s.src.DataView.Offset(); disp != 0 {
				destRowIdx += fmt.Sprintf(" - %d", disp)
			}
			destAddr := destView.Address(destRowIdx, "n")
			lhs := fmt.Sprintf("%s[%s]", s.dest.Name, destAddr)

			srcAddress := "[n]"
			if regObj.Size[1] == 1 {
				srcAddress = ""
			}
			rhs := fmt.Sprintf("%v * %s%s", s.alpha, s.src.Name, srcAddress)
			if s.beta != 0.0 {
				rhs += fmt.Sprintf(" + %v * %s", s.beta, lhs)
			}
			w.Linef("%s = %s;", lhs, rhs)
		})
	})
}

func (s *StoreRegToGlb) String() string {
	return fmt.Sprintf("%s = store_r2g %s;", s.dest.Name, s.src.Name)
}

func (s *StoreRegToGlb) BetaIsZero() bool { return s.beta == 0.0 }

// GetDest returns the global-memory matrix symbol this store writes.
func (s *StoreRegToGlb) GetDest() *symtab.Symbol { return s.dest }

// GetSrc returns the register tile this store reads from.
func (s *StoreRegToGlb) GetSrc() *symtab.Symbol { return s.src }

// Beta returns the current beta scaling factor.
func (s *StoreRegToGlb) Beta() float64 { return s.beta }

// SetBeta overrides the beta scaling factor. The data-dependency
// optimizer uses this to drop the final store's "+ beta*C" term once
// it has hoisted the preload into a LoadGlobalToReg.
func (s *StoreRegToGlb) SetBeta(beta float64) { s.beta = beta }
