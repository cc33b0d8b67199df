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

package symtab

import "github.com/chainforge-gpu/chainforge/internal/cferrors"

// GlobalScope is the index of the bottom-most, never-popped scope.
const GlobalScope = 0

// inverseTable is a reverse lookup table keyed by the semantic object a
// Symbol wraps, rather than by name — the same shape as
// original_source's InverseSymbolTable.
type inverseTable map[any]*Symbol

// Scopes is a stack of inverseTables: the scope stack described in
// spec.md §4.2. It is owned exclusively by one Generator for the
// lifetime of one kernel's synthesis. A parallel slice-of-slices
// records insertion order per level, since Go map iteration order is
// randomized and parameter lists/kernel names must be deterministic.
type Scopes struct {
	tables []inverseTable
	order  [][]any
}

func NewScopes() *Scopes {
	return &Scopes{
		tables: []inverseTable{make(inverseTable)},
		order:  [][]any{nil},
	}
}

// doesNameExist scans every symbol in the given tables comparing by
// name — an O(n) scan, not a set, matching the source's semantics
// (names, not objects, are the uniqueness key here).
func doesNameExist(tables []inverseTable, name string) bool {
	for _, t := range tables {
		for _, sym := range t {
			if sym.Name == name {
				return true
			}
		}
	}
	return false
}

// AddToGlobal adds sym to the global scope only. It is idempotent over
// object identity (re-adding the same matrix object, as happens when
// one matrix appears in several GEMMs of a chain, is a no-op) and
// silently ignores a name collision with a different object, exactly
// as original_source/backend/scopes.py's add_to_global does by
// catching and discarding its own InternalError.
func (s *Scopes) AddToGlobal(sym *Symbol) {
	global := s.tables[GlobalScope]
	if _, exists := global[sym.Obj]; exists {
		return
	}
	if doesNameExist([]inverseTable{global}, sym.Name) {
		return
	}
	global[sym.Obj] = sym
	s.order[GlobalScope] = append(s.order[GlobalScope], sym.Obj)
}

// AddSymbol adds sym to the innermost scope, failing if its name
// collides with any symbol visible in any currently active scope.
func (s *Scopes) AddSymbol(sym *Symbol) error {
	if doesNameExist(s.tables, sym.Name) {
		return cferrors.Internal("symbol name %q already exists in an active scope", sym.Name)
	}
	top := len(s.tables) - 1
	s.tables[top][sym.Obj] = sym
	s.order[top] = append(s.order[top], sym.Obj)
	return nil
}

func (s *Scopes) DeleteSymbol(obj any) {
	top := s.tables[len(s.tables)-1]
	delete(top, obj)
}

func (s *Scopes) DeleteFromGlobal(obj any) {
	delete(s.tables[GlobalScope], obj)
}

// GetSymbol walks scopes innermost-to-outermost, returning the first
// match for obj, or nil.
func (s *Scopes) GetSymbol(obj any) *Symbol {
	for i := len(s.tables) - 1; i >= 0; i-- {
		if sym, ok := s.tables[i][obj]; ok {
			return sym
		}
	}
	return nil
}

func (s *Scopes) Contains(obj any) bool {
	return s.GetSymbol(obj) != nil
}

func (s *Scopes) AddScope() {
	s.tables = append(s.tables, make(inverseTable))
	s.order = append(s.order, nil)
}

// RemoveScope pops the innermost scope. Removing the last remaining
// (global) scope is an internal invariant violation.
func (s *Scopes) RemoveScope() error {
	if len(s.tables) <= 1 {
		return cferrors.Internal("attempt to delete global scope")
	}
	s.tables = s.tables[:len(s.tables)-1]
	s.order = s.order[:len(s.order)-1]
	return nil
}

func (s *Scopes) NumScopes() int { return len(s.tables) }

// GlobalSymbols returns every symbol in the global scope, in the
// insertion order needed for deterministic parameter lists and kernel
// naming. Map iteration order in Go is randomized, so the table tracks
// insertion order via a parallel slice.
func (s *Scopes) GlobalSymbols() []*Symbol {
	return s.orderedSymbols(GlobalScope)
}

func (s *Scopes) orderedSymbols(level int) []*Symbol {
	order := s.order[level]
	out := make([]*Symbol, 0, len(order))
	table := s.tables[level]
	for _, obj := range order {
		if sym, ok := table[obj]; ok {
			out = append(out, sym)
		}
	}
	return out
}
