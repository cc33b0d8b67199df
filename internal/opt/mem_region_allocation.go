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
	"sort"

	"github.com/samber/lo"

	"github.com/chainforge-gpu/chainforge/internal/cfir"
	"github.com/chainforge-gpu/chainforge/internal/opt/coloring"
	"github.com/chainforge-gpu/chainforge/internal/symtab"
)

// MemoryRegionAllocation builds the interference graph of every
// shared-memory symbol live at any program point (an edge between two
// symbols simultaneously live somewhere) and colors it, producing the
// smallest possible number of Regions that two interfering symbols
// are never packed into together.
type MemoryRegionAllocation struct {
	ctx     *cfir.Context
	live    LiveMap
	regions []*Region

	vertexCounter  int
	adjList        []*coloring.Vertex
	objectToVertex map[*symtab.Symbol]*coloring.Vertex
}

// orderedIndices returns live's program-point indices (0..len(instrs))
// in ascending order. LiveMap's keys are contiguous so a plain range
// would do, but Go map iteration order is randomized and later vertex
// numbering (hence tie-breaking in the coloring pass) must not depend
// on it.
func orderedIndices(live LiveMap) []int {
	indices := make([]int, 0, len(live))
	for index := range live {
		indices = append(indices, index)
	}
	sort.Ints(indices)
	return indices
}

// sortedSymbols orders a live-set snapshot by name, so iterating a
// map[*symtab.Symbol]struct{} (whose native order is randomized)
// yields a reproducible sequence.
func sortedSymbols(set map[*symtab.Symbol]struct{}) []*symtab.Symbol {
	out := make([]*symtab.Symbol, 0, len(set))
	for s := range set {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func NewMemoryRegionAllocation(ctx *cfir.Context, live LiveMap) *MemoryRegionAllocation {
	return &MemoryRegionAllocation{ctx: ctx, live: live}
}

func (m *MemoryRegionAllocation) Apply() {
	numRegions := ComputeNumRegions(m.live)
	variableSet := m.variableSet()
	m.generateVertices(variableSet)
	m.assignNeighbours()

	m.regions = make([]*Region, numRegions)
	userObjects := make([]any, numRegions)
	for i := range m.regions {
		m.regions[i] = NewRegion()
		userObjects[i] = m.regions[i]
	}

	gc := coloring.New(append([]*coloring.Vertex(nil), m.adjList...), userObjects)
	coloringMap := gc.Apply()

	vertexToObject := make(map[*coloring.Vertex]*symtab.Symbol, len(m.objectToVertex))
	for sym, vertex := range m.objectToVertex {
		vertexToObject[vertex] = sym
	}

	for _, vertex := range m.adjList {
		region := coloringMap[vertex].(*Region)
		region.AddItem(vertexToObject[vertex])
	}
}

func (m *MemoryRegionAllocation) Regions() []*Region { return m.regions }

// variableSet collects every symbol appearing anywhere in the live
// map, in first-seen program-point order (ties broken by name) — the
// order vertex ids are handed out in, which in turn decides
// coloring's tie-breaking. lo.Uniq preserves first-occurrence order,
// so deduplication doesn't disturb that ordering.
func (m *MemoryRegionAllocation) variableSet() []*symtab.Symbol {
	var withDupes []*symtab.Symbol
	for _, index := range orderedIndices(m.live) {
		withDupes = append(withDupes, sortedSymbols(m.live[index])...)
	}
	return lo.Uniq(withDupes)
}

func (m *MemoryRegionAllocation) generateVertices(variables []*symtab.Symbol) {
	m.objectToVertex = make(map[*symtab.Symbol]*coloring.Vertex, len(variables))
	for _, sym := range variables {
		vertex := coloring.NewVertex(m.nextVertexID())
		m.adjList = append(m.adjList, vertex)
		m.objectToVertex[sym] = vertex
	}
}

func (m *MemoryRegionAllocation) assignNeighbours() {
	for _, index := range orderedIndices(m.live) {
		vars := sortedSymbols(m.live[index])
		for _, var1 := range vars {
			for _, var2 := range vars {
				m.objectToVertex[var1].AddNeighbour(m.objectToVertex[var2])
			}
		}
	}
}

func (m *MemoryRegionAllocation) nextVertexID() int {
	id := m.vertexCounter
	m.vertexCounter++
	return id
}

// ComputeNumRegions returns the maximum number of shared-memory
// symbols simultaneously live at any single program point — the
// minimum number of colors the allocator could possibly need.
func ComputeNumRegions(live LiveMap) int {
	numRegions := 0
	for _, progPoint := range live {
		if len(progPoint) > numRegions {
			numRegions = len(progPoint)
		}
	}
	return numRegions
}
