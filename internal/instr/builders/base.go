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

// Package builders assembles sequences of instr.Instruction: one
// builder per concern (pointer binding, allocation, a full GEMM step),
// each accumulating into its own instruction list that the kernel
// builder later concatenates.
package builders

import (
	"github.com/chainforge-gpu/chainforge/internal/cfir"
	"github.com/chainforge-gpu/chainforge/internal/instr"
	"github.com/chainforge-gpu/chainforge/internal/symtab"
)

// base is embedded by every builder to hold the shared context, scope
// stack, and accumulated instruction list.
type base struct {
	ctx          *cfir.Context
	scopes       *symtab.Scopes
	instructions []instr.Instruction
}

func newBase(ctx *cfir.Context, scopes *symtab.Scopes) base {
	return base{ctx: ctx, scopes: scopes}
}

func (b *base) Instructions() []instr.Instruction { return b.instructions }

func (b *base) reset() { b.instructions = nil }
