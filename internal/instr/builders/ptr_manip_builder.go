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

package builders

import (
	"github.com/chainforge-gpu/chainforge/internal/cferrors"
	"github.com/chainforge-gpu/chainforge/internal/cfir"
	"github.com/chainforge-gpu/chainforge/internal/instr"
	"github.com/chainforge-gpu/chainforge/internal/symtab"
)

// GetElementPtrBuilder binds a per-batch global pointer for a matrix
// held in a Batch-scoped symbol, registering the new Global symbol in
// scope and appending the single GetElementPtr it emits.
type GetElementPtrBuilder struct {
	base
}

func NewGetElementPtrBuilder(ctx *cfir.Context, scopes *symtab.Scopes) *GetElementPtrBuilder {
	return &GetElementPtrBuilder{base: newBase(ctx, scopes)}
}

// Build returns the new Global symbol, or an error if src isn't a
// batch-scoped matrix.
func (b *GetElementPtrBuilder) Build(src *symtab.Symbol) (*symtab.Symbol, error) {
	b.reset()
	if src.Stype != symtab.Batch {
		return nil, cferrors.Internal("src operand is not in a batch")
	}
	if _, ok := src.Obj.(*cfir.Matrix); !ok {
		return nil, cferrors.Internal("src operand is not a matrix")
	}

	dest := symtab.NewSymbol("glb"+src.Name, symtab.Global, src.Obj)
	if err := b.scopes.AddSymbol(dest); err != nil {
		return nil, err
	}

	ptr, err := instr.NewGetElementPtr(b.ctx, src, dest)
	if err != nil {
		return nil, err
	}
	b.instructions = append(b.instructions, ptr)
	return dest, nil
}
