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

package cfir

import (
	"math"

	"modernc.org/mathutil"

	"github.com/chainforge-gpu/chainforge/internal/vm"
)

// Options tunes pipeline behavior the caller can opt into. Defaults
// match original_source/common/context.py's Options defaults.
type Options struct {
	ExactContractionLength bool
	PrefetchGemm           bool
	AlignShrMem            bool
	EnableSyncThreadsOpt   bool
	PreferAlign            bool // see SPEC_FULL.md §12.1
	UnrollFactor           int  // 0 = bare "#pragma unroll"
}

// DefaultOptions mirrors the Python constructor's defaults
// (align_shr_mem and enable_sync_threads_opt default true).
func DefaultOptions() Options {
	return Options{AlignShrMem: true, EnableSyncThreadsOpt: true}
}

// Context is the per-kernel-generation environment: target hardware,
// scalar element type, and user-tunable options.
type Context struct {
	VM      *vm.VM
	FPType  FloatingPointType
	Options Options
}

func NewContext(arch, backend string, fpType FloatingPointType, opts Options) (*Context, error) {
	v, err := vm.New(arch, backend)
	if err != nil {
		return nil, err
	}
	return &Context{VM: v, FPType: fpType, Options: opts}, nil
}

func (c *Context) FPAsStr() string { return c.FPType.String() }

// Align rounds num up to the nearest multiple of the hardware's
// vectorization quantum Q = vecUnitLength*hwFPWordSize/sizeof(fp).
func (c *Context) Align(num int) int {
	q := float64(c.VM.HwDescr.VecUnitLength*c.VM.HwDescr.HwFPWordSize) / float64(c.FPType.Sizeof())
	return int(math.Ceil(float64(num)/q) * q)
}

// AlignRange widens [begin,end) outward to the alignment quantum,
// clipped to [0, limit). Returns the new range and how many rows were
// added to the left edge (the "dirty" rows described in SPEC_FULL.md
// §12.1).
func (c *Context) AlignRange(begin, end, limit int) (newBegin, newEnd, dirtyRows int) {
	q := float64(c.VM.HwDescr.VecUnitLength*c.VM.HwDescr.HwFPWordSize) / float64(c.FPType.Sizeof())
	quantum := int(q)
	if quantum <= 0 {
		quantum = 1
	}
	newBegin = mathutil.Max(begin-(begin%quantum), 0)
	tail := (quantum - end%quantum) % quantum
	newEnd = mathutil.Min(end+tail, limit)
	return newBegin, newEnd, begin - newBegin
}
