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

// Package symtab implements the symbol table and scope stack: a stack
// of reverse lookup tables keyed by semantic object, yielding a named
// Symbol carrying an optional DataView.
package symtab

// SymbolType classifies what memory space a Symbol's object lives in.
type SymbolType int

const (
	Batch SymbolType = iota + 1
	Global
	SharedMem
	Register
)

func (t SymbolType) String() string {
	switch t {
	case Batch:
		return "Batch"
	case Global:
		return "Global"
	case SharedMem:
		return "SharedMem"
	case Register:
		return "Register"
	default:
		return "Unknown"
	}
}

// User is anything that can consume a Symbol as an operand and render
// itself; kept as a narrow interface here (rather than importing the
// instr package) to avoid an import cycle between symtab and instr.
type User interface {
	String() string
}

// Symbol names a semantic object (a Matrix, a ShrMemObject, a
// RegMemObject) within a scope. Users are recorded as they reference
// the symbol, enabling liveness and "first user" lookups without
// walking the instruction list.
type Symbol struct {
	Name     string
	Stype    SymbolType
	Obj      any
	DataView *DataView

	users []User
}

func NewSymbol(name string, stype SymbolType, obj any) *Symbol {
	return &Symbol{Name: name, Stype: stype, Obj: obj}
}

func (s *Symbol) AddUser(u User) { s.users = append(s.users, u) }

// RemoveUser drops u from the user list by identity. Used when an
// optimizer pass retires an instruction it previously registered,
// e.g. replacing a ClearRegisters with a LoadGlobalToReg.
func (s *Symbol) RemoveUser(u User) {
	for i, existing := range s.users {
		if existing == u {
			s.users = append(s.users[:i], s.users[i+1:]...)
			return
		}
	}
}

func (s *Symbol) Users() []User { return s.users }

// FirstUser returns the instruction that first referenced this symbol,
// or nil if none has yet. Shared-memory offset assignment relies on
// this to reach the loader/store that owns the symbol's sizing.
func (s *Symbol) FirstUser() User {
	if len(s.users) == 0 {
		return nil
	}
	return s.users[0]
}
