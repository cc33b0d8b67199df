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

// LoadGlobalToReg preloads beta*C into the accumulator tile, replacing
// a ClearRegisters when the optimizer's WAR-collapse pass determines
// the chain's final store can drop its own beta*C term (spec.md §5.6).
// It is not present in the instruction set this package was grounded
// on; its body follows ClearRegisters' nested-loop shape and
// StoreRegToGlb's addressing so it reads idiomatically alongside them.
type LoadGlobalToReg struct {
	base
	dest       *symtab.Symbol // register tile being preloaded
	src        *symtab.Symbol // global-memory matrix pointer
	beta       float64
	numThreads int
}

func NewLoadGlobalToReg(ctx *cfir.Context, dest, src *symtab.Symbol, beta float64, numThreads int) (*LoadGlobalToReg, error) {
	if dest.Stype != symtab.Register {
		return nil, cferrors.Internal("load_g2r: operand `dest` is not in registers")
	}
	if src.Stype != symtab.Global {
		return nil, cferrors.Internal("load_g2r: operand `src` is not in global mem.")
	}
	if _, ok := src.Obj.(*cfir.Matrix); !ok {
		return nil, cferrors.Internal("load_g2r: operand `src` is not a matrix")
	}

	l := &LoadGlobalToReg{base: newBase(ctx), dest: dest, src: src, beta: beta, numThreads: numThreads}
	l.isReady = true
	dest.AddUser(l)
	src.AddUser(l)
	return l, nil
}

func (l *LoadGlobalToReg) GenCode(w *writer.Writer) {
	w.NewLine()
	w.Linef("// preload beta*C: from %s to %s", l.src.Name, l.dest.Name)

	destView := l.dest.DataView
	srcView := l.src.DataView
	regObj := l.dest.Obj.(*datatypes.RegMemObject)

	w.Block(l.GenMaskThreads(destView.DimSize(0)), func() {
		if regObj.Size[0] > 1 {
			w.Block(fmt.Sprintf("for (int c = 0; c < %d; ++c)", regObj.Size[0]), func() {
				w.Linef("int t = %s + c * %d;", l.lexic().ThreadIdxX, l.numThreads)
				w.Linef("if (t >= %d) break;", destView.DimSize(0))
				w.PragmaUnroll(l.ctx.Options.UnrollFactor)
				w.Block(fmt.Sprintf("for (int n = 0; n < %d; ++n)", destView.DimSize(1)), func() {
					address := srcView.Address("t", "n")
					destAddress := "[c][n]"
					if regObj.Size[1] == 1 {
						destAddress = "[c]"
					}
					w.Linef("%s%s = %v * %s[%s];", l.dest.Name, destAddress, l.beta, l.src.Name, address)
				})
			})
			return
		}
		w.PragmaUnroll(l.ctx.Options.UnrollFactor)
		w.Block(fmt.Sprintf("for (int n = 0; n < %d; ++n)", destView.DimSize(1)), func() {
			address := srcView.Address(l.lexic().ThreadIdxX, "n")
			destAddress := "[n]"
			if regObj.Size[1] == 1 {
				destAddress = ""
			}
			w.Linef("%s%s = %v * %s[%s];", l.dest.Name, destAddress, l.beta, l.src.Name, address)
		})
	})
}

func (l *LoadGlobalToReg) String() string {
	return fmt.Sprintf("%s = load_g2r %s, beta=%v;", l.dest.Name, l.src.Name, l.beta)
}
