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

package vm

import "github.com/chainforge-gpu/chainforge/internal/cferrors"

// HwDescr carries the per-architecture constants the emitter and
// optimizer need: warp/wavefront width, shared-memory budget, and the
// register/thread ceilings that the thread-block policy consults.
type HwDescr struct {
	Manufacturer          string
	Model                 string
	Backend               string
	VecUnitLength         int // warp size (nvidia) or wavefront size (amd)
	HwFPWordSize          int // bytes per hardware fp word
	MemAccessAlignSize    int
	MaxLocalMemPerBlock   int
	MaxThreadsPerBlock    int
	MaxRegPerBlock        int
	MaxThreadsPerSM       int
	MaxBlockPerSM         int
}

const kb = 1024

// hwTable mirrors original_source/common/vm/hw_descr.py's get_known_arch
// table. Values are the architecture's own constants, not derived.
var hwTable = map[string]HwDescr{
	"sm_60": {Manufacturer: "nvidia", VecUnitLength: 32, HwFPWordSize: 4, MemAccessAlignSize: 32,
		MaxLocalMemPerBlock: 48 * kb, MaxThreadsPerBlock: 1024, MaxRegPerBlock: 64 * kb,
		MaxThreadsPerSM: 2048, MaxBlockPerSM: 32},
	"sm_70": {Manufacturer: "nvidia", VecUnitLength: 32, HwFPWordSize: 4, MemAccessAlignSize: 32,
		MaxLocalMemPerBlock: 96 * kb, MaxThreadsPerBlock: 1024, MaxRegPerBlock: 64 * kb,
		MaxThreadsPerSM: 2048, MaxBlockPerSM: 32},
	"sm_75": {Manufacturer: "nvidia", VecUnitLength: 32, HwFPWordSize: 4, MemAccessAlignSize: 32,
		MaxLocalMemPerBlock: 64 * kb, MaxThreadsPerBlock: 1024, MaxRegPerBlock: 64 * kb,
		MaxThreadsPerSM: 2048, MaxBlockPerSM: 16},
	"sm_80": {Manufacturer: "nvidia", VecUnitLength: 32, HwFPWordSize: 4, MemAccessAlignSize: 32,
		MaxLocalMemPerBlock: 164 * kb, MaxThreadsPerBlock: 1024, MaxRegPerBlock: 64 * kb,
		MaxThreadsPerSM: 2048, MaxBlockPerSM: 32},
	"sm_86": {Manufacturer: "nvidia", VecUnitLength: 32, HwFPWordSize: 4, MemAccessAlignSize: 32,
		MaxLocalMemPerBlock: 100 * kb, MaxThreadsPerBlock: 1024, MaxRegPerBlock: 64 * kb,
		MaxThreadsPerSM: 1536, MaxBlockPerSM: 16},
	"sm_90": {Manufacturer: "nvidia", VecUnitLength: 32, HwFPWordSize: 4, MemAccessAlignSize: 32,
		MaxLocalMemPerBlock: 228 * kb, MaxThreadsPerBlock: 1024, MaxRegPerBlock: 64 * kb,
		MaxThreadsPerSM: 2048, MaxBlockPerSM: 32},
	"gfx906": {Manufacturer: "amd", VecUnitLength: 64, HwFPWordSize: 4, MemAccessAlignSize: 32,
		MaxLocalMemPerBlock: 64 * kb, MaxThreadsPerBlock: 1024, MaxRegPerBlock: 256 * kb,
		MaxThreadsPerSM: 40 * 64, MaxBlockPerSM: 40},
	"gfx908": {Manufacturer: "amd", VecUnitLength: 64, HwFPWordSize: 4, MemAccessAlignSize: 32,
		MaxLocalMemPerBlock: 64 * kb, MaxThreadsPerBlock: 1024, MaxRegPerBlock: 512 * kb,
		MaxThreadsPerSM: 40 * 64, MaxBlockPerSM: 40},
	"gfx90a": {Manufacturer: "amd", VecUnitLength: 64, HwFPWordSize: 4, MemAccessAlignSize: 32,
		MaxLocalMemPerBlock: 64 * kb, MaxThreadsPerBlock: 1024, MaxRegPerBlock: 512 * kb,
		MaxThreadsPerSM: 40 * 64, MaxBlockPerSM: 40},
	"dg1": {Manufacturer: "intel", VecUnitLength: 64, HwFPWordSize: 4, MemAccessAlignSize: 32,
		MaxLocalMemPerBlock: 64 * kb, MaxThreadsPerBlock: 512, MaxRegPerBlock: 64 * kb,
		MaxThreadsPerSM: 512, MaxBlockPerSM: 64},
}

// aliases to architectures that reuse sm_60's or sm_70's table wholesale,
// per the source's deepcopy-without-override entries.
var aliases = map[string]string{
	"sm_61": "sm_60", "sm_62": "sm_60", "sm_71": "sm_70",
}

func lookupHwDescr(arch string) (HwDescr, bool) {
	if base, ok := aliases[arch]; ok {
		arch = base
	}
	d, ok := hwTable[arch]
	return d, ok
}

func newHwDescr(arch, backend string) (HwDescr, error) {
	d, ok := lookupHwDescr(arch)
	if !ok {
		return HwDescr{}, cferrors.Generation("unknown gpu architecture: %s/%s", backend, arch)
	}
	d.Model = arch
	d.Backend = backend
	return d, nil
}
