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

// Package threadblock decides how many matrix-multiplication instances
// ("mults") share one thread block, trading shared-memory occupancy
// against block count on the target SM.
package threadblock

import "github.com/chainforge-gpu/chainforge/internal/vm"

// Policy picks the number of mults packed into one thread block for a
// kernel with the given per-mult shared-memory footprint and thread
// count.
type Policy interface {
	NumMultsPerBlock() int
	MaxBlocks() int
	MaxAllowedMem() int
}

// base carries the fields every policy derives its decision from: the
// target hardware, one mult's shared-memory footprint, and the
// kernel's thread count.
type base struct {
	vm            *vm.VM
	memPerMult    int
	numThreads    int
	maxBlocks     int
	maxAllowedMem int
}

func newBase(v *vm.VM, memPerMult, numThreads int) base {
	return base{
		vm:            v,
		memPerMult:    memPerMult,
		numThreads:    numThreads,
		maxBlocks:     v.HwDescr.MaxBlockPerSM,
		maxAllowedMem: v.HwDescr.MaxLocalMemPerBlock,
	}
}

func (b base) MaxBlocks() int     { return b.maxBlocks }
func (b base) MaxAllowedMem() int { return b.maxAllowedMem }

// Simple packs two mults per block when a mult runs at most 32 threads,
// one otherwise. The threshold is 32 on every architecture, including
// those with 64-wide wavefronts, and the per-mult shared-memory
// footprint is not consulted.
type Simple struct{ base }

func NewSimple(v *vm.VM, memPerMult, numThreads int) *Simple {
	return &Simple{base: newBase(v, memPerMult, numThreads)}
}

func (s *Simple) NumMultsPerBlock() int {
	if s.numThreads <= 32 {
		return 2
	}
	return 1
}
