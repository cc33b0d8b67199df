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
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/chainforge-gpu/chainforge/internal/instr"
)

func TestDataDependencyOptCollapsesTrailingWriteAfterRead(t *testing.T) {
	instrs, _, numThreads, ctx := buildTwoLinkChainIR(t, 0.5)

	redundancy := NewRemoveRedundancyOpt(instrs)
	redundancy.Apply()
	instrs = redundancy.Instructions()

	numClearsBefore := 0
	for _, in := range instrs {
		if _, ok := in.(*instr.ClearRegisters); ok {
			numClearsBefore++
		}
	}
	require.Equal(t, 1, numClearsBefore, "only the first link's clear should survive redundancy removal")

	warOpt := NewDataDependencyOpt(ctx, instrs, numThreads)
	warOpt.Apply()
	result := warOpt.Instructions()

	store, ok := result[len(result)-1].(*instr.StoreRegToGlb)
	require.True(t, ok)
	require.True(t, store.BetaIsZero(), "the final store must become a pure write")

	numClearsAfter := 0
	numPreloads := 0
	var preloadIndex int
	for i, in := range result {
		if _, ok := in.(*instr.ClearRegisters); ok {
			numClearsAfter++
		}
		if _, ok := in.(*instr.LoadGlobalToReg); ok {
			numPreloads++
			preloadIndex = i
		}
	}
	require.Equal(t, 0, numClearsAfter, "the clear is replaced, not merely left in place")
	require.Equal(t, 1, numPreloads)
	require.Less(t, preloadIndex, len(result)-1, "the preload runs before the final store")
}

func TestDataDependencyOptNoopWhenFinalBetaIsZero(t *testing.T) {
	instrs, _, numThreads, ctx := buildTwoLinkChainIR(t, 0.0)

	redundancy := NewRemoveRedundancyOpt(instrs)
	redundancy.Apply()
	instrs = redundancy.Instructions()

	warOpt := NewDataDependencyOpt(ctx, instrs, numThreads)
	before := len(instrs)
	warOpt.Apply()
	result := warOpt.Instructions()

	require.Equal(t, before, len(result), "nothing to collapse when the store was already a pure write")
}
