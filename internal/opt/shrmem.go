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
	"github.com/chainforge-gpu/chainforge/internal/cferrors"
	"github.com/chainforge-gpu/chainforge/internal/cfir"
	"github.com/chainforge-gpu/chainforge/internal/datatypes"
	"github.com/chainforge-gpu/chainforge/internal/instr"
)

// ShrMemOpt turns the region partition into concrete byte offsets
// within one shared-memory array: each region gets the offset
// following the previous region's largest member, and every symbol in
// a region shares that one offset. Assigning the offset is what
// flips a ShrMemWrite instruction's deferred IsReady to true.
type ShrMemOpt struct {
	ctx     *cfir.Context
	shrMem  *datatypes.ShrMemObject
	regions []*Region
}

func NewShrMemOpt(ctx *cfir.Context, shrMem *datatypes.ShrMemObject, regions []*Region) *ShrMemOpt {
	return &ShrMemOpt{ctx: ctx, shrMem: shrMem, regions: regions}
}

func (o *ShrMemOpt) Apply() error {
	if err := o.checkRegions(); err != nil {
		return err
	}

	maxMemory, memPerRegion := o.computeTotalShrMemSize()
	o.shrMem.SetSizePerMult(maxMemory)

	offsets := computeStartAddresses(memPerRegion)
	o.assignOffsets(offsets)
	return nil
}

// checkRegions verifies every symbol's first user is the one
// instruction kind that can report its own size: a shared-memory
// loader or StoreRegToShr.
func (o *ShrMemOpt) checkRegions() error {
	for _, region := range o.regions {
		for _, sym := range region.Items() {
			firstUser := sym.FirstUser()
			if _, ok := firstUser.(instr.ShrMemWrite); !ok {
				return cferrors.Generation("expected the first user of symbol %s to implement ShrMemWrite", sym.Name)
			}
		}
	}
	return nil
}

func (o *ShrMemOpt) computeTotalShrMemSize() (maxMemory int, memPerRegion []int) {
	memPerRegion = make([]int, len(o.regions))
	for index, region := range o.regions {
		for _, sym := range region.Items() {
			write := sym.FirstUser().(instr.ShrMemWrite)
			if size := write.ComputeSharedMemSize(); size > memPerRegion[index] {
				memPerRegion[index] = size
			}
		}
		maxMemory += memPerRegion[index]
	}
	return maxMemory, memPerRegion
}

func computeStartAddresses(memPerRegion []int) []int {
	offsets := make([]int, len(memPerRegion))
	for index := 1; index < len(memPerRegion); index++ {
		offsets[index] = offsets[index-1] + memPerRegion[index-1]
	}
	return offsets
}

func (o *ShrMemOpt) assignOffsets(offsets []int) {
	for index, region := range o.regions {
		for _, sym := range region.Items() {
			sym.FirstUser().(instr.ShrMemWrite).SetShrMemOffset(offsets[index])
		}
	}
}
