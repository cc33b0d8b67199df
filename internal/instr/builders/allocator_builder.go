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
	"fmt"

	"github.com/chainforge-gpu/chainforge/internal/cfir"
	"github.com/chainforge-gpu/chainforge/internal/datatypes"
	"github.com/chainforge-gpu/chainforge/internal/instr"
	"github.com/chainforge-gpu/chainforge/internal/symtab"
)

// ShrMemAllocBuilder mints fresh shrmemN shared-memory symbols.
type ShrMemAllocBuilder struct {
	base
	counter int
	obj     *datatypes.ShrMemObject
}

func NewShrMemAllocBuilder(ctx *cfir.Context, scopes *symtab.Scopes) *ShrMemAllocBuilder {
	return &ShrMemAllocBuilder{base: newBase(ctx, scopes)}
}

func (b *ShrMemAllocBuilder) Build() (*symtab.Symbol, error) {
	b.reset()
	name := fmt.Sprintf("shrmem%d", b.counter)
	b.counter++

	b.obj = datatypes.NewShrMemObject(name)
	dest := symtab.NewSymbol(name, symtab.SharedMem, b.obj)
	if err := b.scopes.AddSymbol(dest); err != nil {
		return nil, err
	}

	b.instructions = append(b.instructions, instr.NewShrMemAlloc(b.ctx, dest))
	return dest, nil
}

func (b *ShrMemAllocBuilder) ResultantObj() *datatypes.ShrMemObject { return b.obj }

// RegistersAllocBuilder mints fresh regN register-tile symbols.
type RegistersAllocBuilder struct {
	base
	counter int
	obj     *datatypes.RegMemObject
}

func NewRegistersAllocBuilder(ctx *cfir.Context, scopes *symtab.Scopes) *RegistersAllocBuilder {
	return &RegistersAllocBuilder{base: newBase(ctx, scopes)}
}

func (b *RegistersAllocBuilder) Build(size [2]int, initValue *float64) (*symtab.Symbol, error) {
	b.reset()
	name := fmt.Sprintf("reg%d", b.counter)
	b.counter++

	b.obj = datatypes.NewRegMemObject(name, size)
	dest := symtab.NewSymbol(name, symtab.Register, b.obj)
	if err := b.scopes.AddSymbol(dest); err != nil {
		return nil, err
	}

	b.instructions = append(b.instructions, instr.NewRegisterAlloc(b.ctx, dest, size, initValue))
	return dest, nil
}

func (b *RegistersAllocBuilder) ResultantObj() *datatypes.RegMemObject { return b.obj }
