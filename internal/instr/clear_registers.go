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

// ClearRegisters zeros a register tile with nested loops. The
// optimizer's WAR-collapse pass eliminates it when the store that
// follows can instead preload beta*C (see LoadGlobalToReg).
type ClearRegisters struct {
	base
	src *symtab.Symbol
}

func NewClearRegisters(ctx *cfir.Context, src *symtab.Symbol) (*ClearRegisters, error) {
	if src.Stype != symtab.Register {
		return nil, cferrors.Internal("clear_registers: operand `src` is not in registers")
	}
	c := &ClearRegisters{base: newBase(ctx), src: src}
	c.isReady = true
	src.AddUser(c)
	return c, nil
}

func (c *ClearRegisters) GenCode(w *writer.Writer) {
	w.NewLine()
	w.Line("// clear registers")
	w.PragmaUnroll(c.ctx.Options.UnrollFactor)
	w.Block(fmt.Sprintf("for (int i = 0; i < %d; ++i)", c.src.DataView.Rows), func() {
		w.PragmaUnroll(c.ctx.Options.UnrollFactor)
		w.Block(fmt.Sprintf("for (int j = 0; j < %d; ++j)", c.src.DataView.Columns), func() {
			fpPrefix := ""
			if c.ctx.FPType == cfir.Float {
				fpPrefix = "f"
			}
			w.Linef("%s[i][j] = 0.0%s;", c.src.Name, fpPrefix)
		})
	})
}

// GetSrc returns the register tile this instruction zeros.
func (c *ClearRegisters) GetSrc() *symtab.Symbol { return c.src }

// Unregister removes this instruction from its operand's user list.
// The data-dependency optimizer calls this when it replaces a final
// ClearRegisters with a LoadGlobalToReg.
func (c *ClearRegisters) Unregister() { c.src.RemoveUser(c) }

func (c *ClearRegisters) String() string {
	obj := c.src.Obj.(*datatypes.RegMemObject)
	return fmt.Sprintf("clear_regs %s%v;", c.src.Name, obj.Size)
}
