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
	"github.com/chainforge-gpu/chainforge/internal/instr"
	"github.com/chainforge-gpu/chainforge/internal/symtab"
)

// LiveMap records, for each program point (an index into the
// instruction list, with len(instrs) denoting "after the last
// instruction"), the set of shared-memory symbols live at that point.
type LiveMap map[int]map[*symtab.Symbol]struct{}

// hasDest is satisfied by the two instruction kinds that define a
// shared-memory symbol: StoreRegToShr and every ShrMemLoader variant.
type hasDest interface {
	GetDest() *symtab.Symbol
}

// LivenessAnalysis sweeps an instruction list backward, tracking
// which shared-memory symbols are live (read by a later Gemm before
// being redefined) at every program point.
type LivenessAnalysis struct {
	instrs []instr.Instruction
	live   LiveMap
}

var _ hasDest = (*instr.StoreRegToShr)(nil)

func NewLivenessAnalysis(instrs []instr.Instruction) *LivenessAnalysis {
	return &LivenessAnalysis{instrs: instrs}
}

// Apply runs the backward sweep and returns the resulting LiveMap.
func (l *LivenessAnalysis) Apply() LiveMap {
	n := len(l.instrs)
	l.live = make(LiveMap, n+1)
	l.live[n] = make(map[*symtab.Symbol]struct{})

	for index := n - 1; index >= 0; index-- {
		set := make(map[*symtab.Symbol]struct{}, len(l.live[index+1]))
		for s := range l.live[index+1] {
			set[s] = struct{}{}
		}
		l.live[index] = set

		in := l.instrs[index]
		switch v := in.(type) {
		case *instr.Gemm:
			l.checkUse(index, v)
		case *instr.StoreRegToShr:
			l.checkDefine(index, v)
		default:
			if loader, ok := in.(instr.ShrMemLoader); ok {
				l.checkDefine(index, loader)
			}
		}
	}
	return l.live
}

func (l *LivenessAnalysis) checkUse(index int, g *instr.Gemm) {
	for _, operand := range []*symtab.Symbol{g.Op1(), g.Op2()} {
		if operand.Stype == symtab.SharedMem {
			l.live[index][operand] = struct{}{}
		}
	}
}

func (l *LivenessAnalysis) checkDefine(index int, d hasDest) {
	delete(l.live[index], d.GetDest())
}
