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

package instr

import (
	"github.com/chainforge-gpu/chainforge/internal/cfir"
	"github.com/chainforge-gpu/chainforge/internal/writer"
)

// SyncThreads renders a block-wide sync when the kernel runs more
// threads than one warp, a warp-scoped sync otherwise. It has no
// conditional guard: syncs must be unconditional or they deadlock.
type SyncThreads struct {
	base
	numThreadsPerMult int
}

func NewSyncThreads(ctx *cfir.Context, numThreadsPerMult int) *SyncThreads {
	s := &SyncThreads{base: newBase(ctx), numThreadsPerMult: numThreadsPerMult}
	s.isReady = true
	return s
}

func (s *SyncThreads) GenCode(w *writer.Writer) { w.Line(s.String()) }

func (s *SyncThreads) String() string {
	if s.numThreadsPerMult > s.ctx.VM.HwDescr.VecUnitLength {
		return s.lexic().SyncBlockThreads + ";"
	}
	return s.lexic().SyncWarpThreads + ";"
}

// GenMaskThreads is intentionally a no-op override: a sync must never
// be emitted behind a thread-range guard.
func (s *SyncThreads) GenMaskThreads(int) string { return "" }
