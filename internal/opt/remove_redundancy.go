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

import "github.com/chainforge-gpu/chainforge/internal/instr"

// RemoveRedundancyOpt drops every instruction after the chain's last
// StoreRegToGlb. GemmBuilder always appends one ClearRegisters per
// GEMM step to reset the accumulator for the next step, including the
// very last one — but there is no next step, so that final clear is
// dead.
type RemoveRedundancyOpt struct {
	instrs []instr.Instruction
}

func NewRemoveRedundancyOpt(instrs []instr.Instruction) *RemoveRedundancyOpt {
	return &RemoveRedundancyOpt{instrs: instrs}
}

func (o *RemoveRedundancyOpt) Instructions() []instr.Instruction { return o.instrs }

func (o *RemoveRedundancyOpt) Apply() {
	o.removeBottomInstrs()
}

func (o *RemoveRedundancyOpt) removeBottomInstrs() {
	numRemove := 0
	for i := len(o.instrs) - 1; i >= 0; i-- {
		numRemove++
		if _, ok := o.instrs[i].(*instr.StoreRegToGlb); ok {
			break
		}
	}
	for i := 0; i < numRemove-1; i++ {
		o.instrs = o.instrs[:len(o.instrs)-1]
	}
}
