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

// Package coloring implements the simplicial-elimination graph coloring used to
// pack interfering shared-memory regions: each vertex is a
// live-range; an edge means two ranges are simultaneously live and
// thus cannot share a color (memory region).
package coloring

import (
	"fmt"
	"strings"
)

// Vertex is one node of the interference graph. Identity is the
// pointer itself, matching original_source's id-based equality: two
// Vertex values are "the same" exactly when they are the same Go
// object, never by field comparison.
type Vertex struct {
	id         int
	neighbours map[*Vertex]struct{}
}

func NewVertex(id int) *Vertex {
	return &Vertex{id: id, neighbours: make(map[*Vertex]struct{})}
}

func (v *Vertex) AddNeighbour(other *Vertex) {
	if other != v {
		v.neighbours[other] = struct{}{}
	}
}

func (v *Vertex) RemoveNeighbour(other *Vertex) { delete(v.neighbours, other) }

func (v *Vertex) Neighbours() map[*Vertex]struct{} { return v.neighbours }

func (v *Vertex) ID() int { return v.id }

func (v *Vertex) NumNeighbours() int { return len(v.neighbours) }

func (v *Vertex) String() string {
	ids := make([]string, 0, len(v.neighbours))
	for n := range v.neighbours {
		ids = append(ids, fmt.Sprintf("%d", n.id))
	}
	return fmt.Sprintf("%d -> %s", v.id, strings.Join(ids, ", "))
}
