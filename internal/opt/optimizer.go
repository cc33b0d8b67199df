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
	"github.com/chainforge-gpu/chainforge/internal/datatypes"
	"github.com/chainforge-gpu/chainforge/internal/instr"
)

// Stage runs the fixed six-pass pipeline over one kernel's instruction
// list: liveness, memory-region coloring, shared-memory offset
// assignment, sync insertion, dead-tail removal, and write-after-read
// collapse.
type Stage struct {
	ctx        *cfir.Context
	shrMem     *datatypes.ShrMemObject
	instrs     []instr.Instruction
	numThreads int
}

func NewStage(ctx *cfir.Context, shrMem *datatypes.ShrMemObject, instrs []instr.Instruction, numThreads int) *Stage {
	return &Stage{ctx: ctx, shrMem: shrMem, instrs: instrs, numThreads: numThreads}
}

func (s *Stage) Instructions() []instr.Instruction { return s.instrs }

func (s *Stage) Optimize() error {
	liveness := NewLivenessAnalysis(s.instrs)
	liveMap := liveness.Apply()

	regionAlloc := NewMemoryRegionAllocation(s.ctx, liveMap)
	regionAlloc.Apply()
	regions := regionAlloc.Regions()

	shrMemOpt := NewShrMemOpt(s.ctx, s.shrMem, regions)
	if err := shrMemOpt.Apply(); err != nil {
		return err
	}

	if s.ctx.Options.EnableSyncThreadsOpt {
		syncOpt := NewSyncThreadsOpt(s.ctx, s.instrs, regions, s.numThreads)
		syncOpt.Apply()
		s.instrs = syncOpt.Instructions()
	}

	redundancy := NewRemoveRedundancyOpt(s.instrs)
	redundancy.Apply()
	s.instrs = redundancy.Instructions()

	warCollapse := NewDataDependencyOpt(s.ctx, s.instrs, s.numThreads)
	warCollapse.Apply()
	s.instrs = warCollapse.Instructions()

	return nil
}
