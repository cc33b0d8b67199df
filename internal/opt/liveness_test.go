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
	"github.com/chainforge-gpu/chainforge/internal/symtab"
)

func TestLivenessAnalysisEmptyAfterLastInstruction(t *testing.T) {
	instrs, _, _, _ := buildTwoLinkChainIR(t, 0.5)
	live := NewLivenessAnalysis(instrs).Apply()
	require.Empty(t, live[len(instrs)])
}

func TestLivenessAnalysisTracksSharedMemDefUseAcrossGemm(t *testing.T) {
	instrs, _, _, _ := buildTwoLinkChainIR(t, 0.5)
	live := NewLivenessAnalysis(instrs).Apply()

	var gemm1 *instr.Gemm
	gemm1Index := -1
	for i, in := range instrs {
		if g, ok := in.(*instr.Gemm); ok {
			gemm1, gemm1Index = g, i
			break
		}
	}
	require.NotNil(t, gemm1)
	region0 := gemm1.Op2()
	require.Equal(t, symtab.SharedMem, region0.Stype)

	defIndex := -1
	for i, in := range instrs {
		if d, ok := in.(hasDest); ok && d.GetDest() == region0 {
			defIndex = i
			break
		}
	}
	require.GreaterOrEqual(t, defIndex, 0)
	require.Less(t, defIndex, gemm1Index, "the region must be defined before the gemm that reads it")

	require.Contains(t, live[gemm1Index], region0, "live going into the instruction that reads it")
	require.NotContains(t, live[defIndex], region0, "not yet live at the point that defines it")
}

func TestLivenessAnalysisTmpRegionDiesAtItsStore(t *testing.T) {
	instrs, _, _, _ := buildTwoLinkChainIR(t, 0.5)
	live := NewLivenessAnalysis(instrs).Apply()

	var secondGemm *instr.Gemm
	gemmCount := 0
	var gemm2Index int
	for i, in := range instrs {
		if g, ok := in.(*instr.Gemm); ok {
			gemmCount++
			if gemmCount == 2 {
				secondGemm, gemm2Index = g, i
			}
		}
	}
	require.NotNil(t, secondGemm)
	tmpRegion := secondGemm.Op1()
	require.Equal(t, symtab.SharedMem, tmpRegion.Stype)

	storeIndex := -1
	for i, in := range instrs {
		if d, ok := in.(hasDest); ok && d.GetDest() == tmpRegion {
			storeIndex = i
			break
		}
	}
	require.GreaterOrEqual(t, storeIndex, 0)
	require.Less(t, storeIndex, gemm2Index)
	require.NotContains(t, live[storeIndex], tmpRegion)
	require.Contains(t, live[gemm2Index], tmpRegion)
}
