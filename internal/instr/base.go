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

// Package instr is the IR instruction set: GetElementPtr, the four
// shared-memory loader variants, Gemm, the two stores,
// LoadGlobalToReg, ClearRegisters, SyncThreads, and the two allocs.
// Each is a tagged variant of the Instruction interface, dispatched by
// a single GenCode(writer) method — the arena/tagged-sum design
// spec.md §9 calls for, expressed here as one Go interface per
// instruction rather than a class hierarchy.
package instr

import (
	"fmt"

	"github.com/chainforge-gpu/chainforge/internal/cfir"
	"github.com/chainforge-gpu/chainforge/internal/vm"
	"github.com/chainforge-gpu/chainforge/internal/writer"
)

// Instruction is the common interface every IR node satisfies.
type Instruction interface {
	GenCode(w *writer.Writer)
	IsReady() bool
	String() string
}

// ShrMemWrite is additionally satisfied by instructions that write to
// shared memory and must report how many bytes they need, and receive
// an offset from the optimizer before they become ready.
type ShrMemWrite interface {
	Instruction
	ComputeSharedMemSize() int
	SetShrMemOffset(offset int)
}

// base is embedded by every instruction to provide the common fields
// and the default GenMaskThreads rendering.
type base struct {
	ctx     *cfir.Context
	isReady bool
}

func newBase(ctx *cfir.Context) base { return base{ctx: ctx} }

func (b *base) IsReady() bool { return b.isReady }

func (b *base) fpAsStr() string { return b.ctx.FPAsStr() }

func (b *base) lexic() vm.ArchLexicon { return b.ctx.VM.Lexic }

// GenMaskThreads renders the thread-range guard most instructions open
// their body with.
func (b *base) GenMaskThreads(numThreads int) string {
	return fmt.Sprintf("if (%s < %d)", b.lexic().ThreadIdxX, numThreads)
}

// GenRangeMaskThreads renders a guard over an explicit [begin,end)
// thread range, used by the stores whose source bbox doesn't start at
// thread 0.
func (b *base) GenRangeMaskThreads(begin, end int) string {
	tid := b.lexic().ThreadIdxX
	if begin == 0 {
		return fmt.Sprintf("if (%s < %d)", tid, end)
	}
	return fmt.Sprintf("if (%s >= %d && %s < %d)", tid, begin, tid, end)
}

// shrMemWriteBase additionally tracks the pending shared-memory size
// and offset shared by loaders and StoreRegToShr.
type shrMemWriteBase struct {
	base
	shmVolume     int
	shrMemOffset  int
}

func newShrMemWriteBase(ctx *cfir.Context) shrMemWriteBase {
	return shrMemWriteBase{base: newBase(ctx)}
}

func (b *shrMemWriteBase) ComputeSharedMemSize() int { return b.shmVolume }

func (b *shrMemWriteBase) SetShrMemOffset(offset int) {
	b.shrMemOffset = offset
	b.isReady = true
}
