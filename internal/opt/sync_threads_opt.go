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
	"github.com/chainforge-gpu/chainforge/internal/symtab"
)

// SyncThreadsOpt inserts the minimal set of barriers a region-packed
// instruction stream needs: one before a Gemm reads an operand that a
// preceding shared-memory write just produced, and one before a
// shared-memory write into a region that a Gemm has read since the
// last barrier, so the old contents are consumed before being
// overwritten.
type SyncThreadsOpt struct {
	ctx        *cfir.Context
	instrs     []instr.Instruction
	regions    []*Region
	numThreads int
}

func NewSyncThreadsOpt(ctx *cfir.Context, instrs []instr.Instruction, regions []*Region, numThreads int) *SyncThreadsOpt {
	return &SyncThreadsOpt{ctx: ctx, instrs: instrs, regions: regions, numThreads: numThreads}
}

func (o *SyncThreadsOpt) Instructions() []instr.Instruction { return o.instrs }

func (o *SyncThreadsOpt) Apply() {
	o.removePreviousSyncInstructions()
	o.insertSyncBeforeUse()
	o.insertSyncAfterUse()
}

func (o *SyncThreadsOpt) removePreviousSyncInstructions() {
	out := o.instrs[:0:0]
	for _, in := range o.instrs {
		if _, ok := in.(*instr.SyncThreads); !ok {
			out = append(out, in)
		}
	}
	o.instrs = out
}

// insertSyncBeforeUse finds every Gemm whose operand was written by a
// shared-memory write instruction since the last such sync point, and
// schedules a barrier right before it.
func (o *SyncThreadsOpt) insertSyncBeforeUse() {
	var selected []instr.Instruction
	writes := make(map[*symtab.Symbol]struct{})

	for _, in := range o.instrs {
		if w, ok := in.(instr.ShrMemWrite); ok {
			writes[w.(hasDest).GetDest()] = struct{}{}
		}
		if g, ok := in.(*instr.Gemm); ok {
			_, op1Written := writes[g.Op1()]
			_, op2Written := writes[g.Op2()]
			if op1Written || op2Written {
				selected = append(selected, g)
				writes = make(map[*symtab.Symbol]struct{})
			}
		}
	}
	o.insertSyncInstrs(selected)
}

// insertSyncAfterUse finds, for each region, the write that follows
// the last Gemm to read that region, and schedules a barrier right
// before that write (so the old contents have been fully consumed
// before being overwritten).
func (o *SyncThreadsOpt) insertSyncAfterUse() {
	var selected []instr.Instruction
	flags := make([]bool, len(o.regions))

	for _, in := range o.instrs {
		if g, ok := in.(*instr.Gemm); ok {
			for _, src := range []*symtab.Symbol{g.Op1(), g.Op2()} {
				if src.Stype == symtab.SharedMem {
					if id := o.regionID(src); id >= 0 {
						flags[id] = true
					}
				}
			}
		}

		if _, ok := in.(*instr.SyncThreads); ok {
			flags = make([]bool, len(o.regions))
		}

		if w, ok := in.(instr.ShrMemWrite); ok {
			dest := w.(hasDest).GetDest()
			if id := o.regionID(dest); id >= 0 && flags[id] {
				selected = append(selected, in)
				flags = make([]bool, len(o.regions))
			}
		}
	}
	o.insertSyncInstrs(selected)
}

func (o *SyncThreadsOpt) insertSyncInstrs(selected []instr.Instruction) {
	for _, target := range selected {
		index := indexOf(o.instrs, target)
		if index < 0 {
			continue
		}
		sync := instr.NewSyncThreads(o.ctx, o.numThreads)
		o.instrs = append(o.instrs[:index], append([]instr.Instruction{sync}, o.instrs[index:]...)...)
	}
}

func (o *SyncThreadsOpt) regionID(sym *symtab.Symbol) int {
	for id, region := range o.regions {
		if region.Contains(sym) {
			return id
		}
	}
	return -1
}

func indexOf(instrs []instr.Instruction, target instr.Instruction) int {
	for i, in := range instrs {
		if in == target {
			return i
		}
	}
	return -1
}
