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

package opt

import (
	"github.com/chainforge-gpu/chainforge/internal/cfir"
	"github.com/chainforge-gpu/chainforge/internal/instr"
)

// DataDependencyOpt removes the write-after-read dependency that
// forms at the tail of a fused chain whenever its last step has a
// nonzero beta: StoreRegToGlb would otherwise read the destination
// matrix (for "+ beta*C"), accumulate into registers, then write the
// same location back, serializing the read behind the write of every
// other thread in the block.
//
// It finds the chain's final ClearRegisters/StoreRegToGlb pair, zeros
// the store's beta (so it becomes a pure write), and replaces the
// clear with a LoadGlobalToReg that preloads beta*C into the
// accumulator before the GEMM ever runs — turning the read-after-write
// into a read that happens safely before the write exists.
type DataDependencyOpt struct {
	ctx        *cfir.Context
	instrs     []instr.Instruction
	numThreads int

	regToGlbIndex int
	clearRegIndex int
}

func NewDataDependencyOpt(ctx *cfir.Context, instrs []instr.Instruction, numThreads int) *DataDependencyOpt {
	return &DataDependencyOpt{ctx: ctx, instrs: instrs, numThreads: numThreads, regToGlbIndex: -1, clearRegIndex: -1}
}

func (o *DataDependencyOpt) Instructions() []instr.Instruction { return o.instrs }

func (o *DataDependencyOpt) Apply() {
	if !o.findCandidate() {
		return
	}

	store := o.instrs[o.regToGlbIndex].(*instr.StoreRegToGlb)
	beta := store.Beta()
	store.SetBeta(0.0)

	clear := o.instrs[o.clearRegIndex].(*instr.ClearRegisters)
	clear.Unregister()
	o.instrs = append(o.instrs[:o.clearRegIndex], o.instrs[o.clearRegIndex+1:]...)

	preload, err := instr.NewLoadGlobalToReg(o.ctx, clear.GetSrc(), store.GetDest(), beta, o.numThreads)
	if err != nil {
		panic(err)
	}

	o.instrs = append(o.instrs[:o.clearRegIndex],
		append([]instr.Instruction{preload}, o.instrs[o.clearRegIndex:]...)...)
}

// findCandidate walks the instruction list from the bottom looking
// for the last StoreRegToGlb and the last ClearRegisters, and reports
// whether the store comes after the clear with a nonzero beta — the
// exact shape GemmBuilder produces for a chain's final step.
func (o *DataDependencyOpt) findCandidate() bool {
	for i := len(o.instrs) - 1; i >= 0; i-- {
		in := o.instrs[i]
		if _, ok := in.(*instr.StoreRegToGlb); ok && o.regToGlbIndex == -1 {
			o.regToGlbIndex = i
		}
		if _, ok := in.(*instr.ClearRegisters); ok {
			o.clearRegIndex = i
			break
		}
	}

	if o.regToGlbIndex == -1 || o.clearRegIndex == -1 {
		return false
	}
	if o.regToGlbIndex <= o.clearRegIndex {
		return false
	}
	store := o.instrs[o.regToGlbIndex].(*instr.StoreRegToGlb)
	return !store.BetaIsZero()
}
