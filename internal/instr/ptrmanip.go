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
	"github.com/chainforge-gpu/chainforge/internal/symtab"
	"github.com/chainforge-gpu/chainforge/internal/writer"
)

// GetElementPtr binds a restricted global pointer for one batch
// element's matrix, computing its address from the matrix's addressing
// mode and attaching a DataView to dest that mirrors src's bbox.
type GetElementPtr struct {
	base
	src, dest *symtab.Symbol
}

func NewGetElementPtr(ctx *cfir.Context, src, dest *symtab.Symbol) (*GetElementPtr, error) {
	if src.Stype != symtab.Batch {
		return nil, cferrors.Internal("ptr: operand `src` is not in a batch")
	}
	srcMat, ok := src.Obj.(*cfir.Matrix)
	if !ok {
		return nil, cferrors.Internal("ptr: operand `src` is not a matrix")
	}
	if dest.Stype != symtab.Global {
		return nil, cferrors.Internal("ptr: operand `dest` is not in global mem.")
	}
	if _, ok := dest.Obj.(*cfir.Matrix); !ok {
		return nil, cferrors.Internal("ptr: operand `dest` is not a matrix")
	}

	bbox := srcMat.Bbox
	dest.DataView = symtab.NewDataView(srcMat.NumRows, srcMat.NumCols, false, &bbox)

	g := &GetElementPtr{base: newBase(ctx), src: src, dest: dest}
	g.isReady = true
	src.AddUser(g)
	dest.AddUser(g)
	return g, nil
}

func get2DBlockID(ctx *cfir.Context) string {
	lex := ctx.VM.Lexic
	return fmt.Sprintf("%s + %s * %s", lex.ThreadIdxY, lex.BlockDimY, lex.BlockIdxX)
}

func extraOffsetName(sym *symtab.Symbol) string {
	return sym.Name + cfir.ExtraOffsetSuffix
}

func (g *GetElementPtr) GenCode(w *writer.Writer) {
	extraOffset := extraOffsetName(g.src)
	batchID := get2DBlockID(g.ctx)
	matrix := g.src.Obj.(*cfir.Matrix)

	var address string
	switch matrix.Addressing {
	case cfir.AddrStrided:
		address = fmt.Sprintf("(%s) * %d + %s", batchID, matrix.RealVolume(), extraOffset)
	case cfir.AddrPtrBased:
		address = fmt.Sprintf("%s][%s", batchID, extraOffset)
	case cfir.AddrNone:
		address = "0"
	}

	rhs := fmt.Sprintf("&%s[%s]", g.src.Name, address)
	lhs := ""
	if matrix.Direction == cfir.Source {
		lhs = "const "
	}
	lhs += fmt.Sprintf("%s * const %s %s", g.fpAsStr(), g.lexic().RestrictKw, g.dest.Name)
	w.Linef("%s = %s;", lhs, rhs)
}

func (g *GetElementPtr) String() string {
	return fmt.Sprintf("%s = getelementptr_b2g %s;", g.dest.Name, g.src.Name)
}
