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

// Package opt runs the fixed pipeline of post-codegen passes over one
// kernel's instruction list: liveness analysis, interference-graph
// region allocation, shared-memory offset assignment, barrier
// placement, dead-tail removal, and write-after-read collapse.
package opt

import "github.com/chainforge-gpu/chainforge/internal/symtab"

// Region is a set of shared-memory symbols that, because their live
// ranges never overlap, can be packed into the same backing memory.
type Region struct {
	items []*symtab.Symbol
}

func NewRegion() *Region { return &Region{} }

func (r *Region) AddItem(s *symtab.Symbol) { r.items = append(r.items, s) }

func (r *Region) Items() []*symtab.Symbol { return r.items }

func (r *Region) Contains(s *symtab.Symbol) bool {
	for _, item := range r.items {
		if item == s {
			return true
		}
	}
	return false
}
