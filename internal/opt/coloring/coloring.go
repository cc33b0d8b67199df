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

package coloring

import (
	"math"
	"sort"

	"modernc.org/sortutil"
)

// GraphColoring assigns each vertex of an interference graph one of
// len(userObjects) colors such that no edge connects two
// identically-colored vertices, then maps each vertex's color to the
// user object (a memory region) that owns it.
//
// The algorithm is the standard two-phase simplicial-elimination
// coloring: repeatedly remove a vertex whose degree is below the
// color budget (pushing it and its incident edges onto a stack),
// color whatever's left with any one color, then pop the stack and
// give each restored vertex the lowest color none of its neighbours
// already holds.
type GraphColoring struct {
	graph           []*Vertex
	userObjects     []any
	colors          []int
	allowedColorSet map[int]struct{}
	color2object    map[int]any
	stack           []*Vertex
	vertex2color    map[*Vertex]int
}

const unassigned = -1

func New(graph []*Vertex, userObjects []any) *GraphColoring {
	numColors := len(userObjects)
	colors := make([]int, numColors)
	allowed := make(map[int]struct{}, numColors)
	color2object := make(map[int]any, numColors)
	for i := 0; i < numColors; i++ {
		colors[i] = i
		allowed[i] = struct{}{}
		color2object[i] = userObjects[i]
	}

	vertex2color := make(map[*Vertex]int, len(graph))
	for _, v := range graph {
		vertex2color[v] = unassigned
	}

	return &GraphColoring{
		graph:           append([]*Vertex(nil), graph...),
		userObjects:     userObjects,
		colors:          colors,
		allowedColorSet: allowed,
		color2object:    color2object,
		vertex2color:    vertex2color,
	}
}

// Apply runs the coloring and returns, for every vertex, the user
// object assigned to its color.
func (g *GraphColoring) Apply() map[*Vertex]any {
	g.graph = sortByDescendingDegree(g.graph)

	for g.coarseGraph() {
	}

	// Bottom case: whatever remains has no edges left, so any one
	// color (the first) satisfies all of them.
	for _, v := range g.graph {
		g.vertex2color[v] = g.colors[0]
	}

	for len(g.stack) > 0 {
		g.restoreGraphAndColor()
	}

	result := make(map[*Vertex]any, len(g.vertex2color))
	for v, color := range g.vertex2color {
		result[v] = g.color2object[color]
	}
	return result
}

// sortByDescendingDegree orders graph by descending neighbour count,
// ties broken by ascending original index, matching the priority the
// simplicial-elimination heuristic wants: peel low-degree vertices
// last. Vertex degrees are packed into the high bits of a uint64 key
// (inverted, so ascending key order is descending degree) and the
// original index into the low bits, then sorted via
// modernc.org/sortutil's Uint64Slice rather than a raw sort.Slice
// comparator, matching the corpus's modernc.org sort-utility habit.
func sortByDescendingDegree(graph []*Vertex) []*Vertex {
	keys := make(sortutil.Uint64Slice, len(graph))
	for i, v := range graph {
		inv := uint64(math.MaxUint32) - uint64(v.NumNeighbours())
		keys[i] = inv<<32 | uint64(i)
	}
	sort.Sort(keys)

	out := make([]*Vertex, len(graph))
	for pos, key := range keys {
		out[pos] = graph[key&0xffffffff]
	}
	return out
}

// coarseGraph removes one vertex whose degree fits under the color
// budget, pushing it (with its then-current neighbour set) onto the
// stack for later restoration. Returns false once no such vertex
// remains.
func (g *GraphColoring) coarseGraph() bool {
	for index, v := range g.graph {
		if len(v.neighbours) == 0 {
			continue
		}
		if len(g.colors) > v.NumNeighbours() {
			g.graph = append(g.graph[:index], g.graph[index+1:]...)
			g.stack = append(g.stack, v)
			g.removeEdges(v)
			return true
		}
	}
	return false
}

func (g *GraphColoring) removeEdges(v *Vertex) {
	for neighbour := range v.neighbours {
		neighbour.RemoveNeighbour(v)
	}
}

func (g *GraphColoring) restoreGraphAndColor() {
	n := len(g.stack) - 1
	v := g.stack[n]
	g.stack = g.stack[:n]

	g.assignColor(v)
	g.addEdgesToGraph(v)
}

// assignColor gives v the lowest-numbered color not already used by
// one of its neighbours. original_source picks an arbitrary free
// color via set.pop(); this always picks the minimum instead, so
// region assignment (and therefore generated offsets) are
// deterministic across runs.
func (g *GraphColoring) assignColor(v *Vertex) {
	occupied := make(map[int]struct{}, len(v.neighbours))
	for neighbour := range v.neighbours {
		occupied[g.vertex2color[neighbour]] = struct{}{}
	}

	free := -1
	for _, c := range g.colors {
		if _, taken := occupied[c]; !taken {
			free = c
			break
		}
	}
	g.vertex2color[v] = free
}

func (g *GraphColoring) addEdgesToGraph(v *Vertex) {
	for neighbour := range v.neighbours {
		neighbour.AddNeighbour(v)
	}
	g.graph = append(g.graph, v)
}
