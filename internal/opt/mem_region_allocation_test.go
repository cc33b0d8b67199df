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

	"github.com/chainforge-gpu/chainforge/internal/symtab"
)

func TestComputeNumRegionsIsMaxConcurrentLiveSymbols(t *testing.T) {
	live := LiveMap{
		0: {symtab.NewSymbol("a", symtab.SharedMem, nil): {}},
		1: {
			symtab.NewSymbol("a", symtab.SharedMem, nil): {},
			symtab.NewSymbol("b", symtab.SharedMem, nil): {},
		},
		2: {},
	}
	require.Equal(t, 2, ComputeNumRegions(live))
}

func TestMemoryRegionAllocationNeverPacksSimultaneouslyLiveSymbolsTogether(t *testing.T) {
	instrs, _, _, ctx := buildTwoLinkChainIR(t, 0.5)
	live := NewLivenessAnalysis(instrs).Apply()

	alloc := NewMemoryRegionAllocation(ctx, live)
	alloc.Apply()
	regions := alloc.Regions()
	require.Equal(t, ComputeNumRegions(live), len(regions))

	regionOf := func(sym *symtab.Symbol) *Region {
		for _, r := range regions {
			if r.Contains(sym) {
				return r
			}
		}
		return nil
	}

	for _, set := range live {
		var syms []*symtab.Symbol
		for s := range set {
			syms = append(syms, s)
		}
		for i := range syms {
			for j := i + 1; j < len(syms); j++ {
				require.NotSame(t, regionOf(syms[i]), regionOf(syms[j]),
					"%s and %s are simultaneously live and must not share a region", syms[i].Name, syms[j].Name)
			}
		}
	}
}

func TestMemoryRegionAllocationAssignsEverySymbolToExactlyOneRegion(t *testing.T) {
	instrs, _, _, ctx := buildTwoLinkChainIR(t, 0.5)
	live := NewLivenessAnalysis(instrs).Apply()

	alloc := NewMemoryRegionAllocation(ctx, live)
	alloc.Apply()

	counts := make(map[*symtab.Symbol]int)
	for _, r := range alloc.Regions() {
		for _, s := range r.Items() {
			counts[s]++
		}
	}
	for sym, count := range counts {
		require.Equal(t, 1, count, "symbol %s assigned to %d regions", sym.Name, count)
	}
	require.NotEmpty(t, counts)
}
