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
	"fmt"

	"github.com/chainforge-gpu/chainforge/internal/cfir"
	"github.com/chainforge-gpu/chainforge/internal/datatypes"
	"github.com/chainforge-gpu/chainforge/internal/symtab"
	"github.com/chainforge-gpu/chainforge/internal/writer"
)

// RegisterAlloc declares a per-thread register tile of shape
// [rows, cols], optionally pre-filled with a repeated init value. The
// kernel builder passes 0, so the accumulator tile starts zeroed.
type RegisterAlloc struct {
	base
	dest      *symtab.Symbol
	size      [2]int
	initValue *float64
}

func NewRegisterAlloc(ctx *cfir.Context, dest *symtab.Symbol, size [2]int, initValue *float64) *RegisterAlloc {
	dest.DataView = symtab.NewDataView(size[0], size[1], false, nil)
	r := &RegisterAlloc{base: newBase(ctx), dest: dest, size: size, initValue: initValue}
	r.isReady = true
	dest.AddUser(r)
	return r
}

func (r *RegisterAlloc) GenCode(w *writer.Writer) {
	init := ""
	if r.initValue != nil {
		elems := make([]string, r.size[0]*r.size[1])
		for i := range elems {
			elems[i] = fmt.Sprintf("%v", *r.initValue)
		}
		init = " = {" + join(elems, ", ") + "}"
	}
	w.Linef("%s %s[%d][%d]%s;", r.fpAsStr(), r.dest.Name, r.size[0], r.size[1], init)
}

func (r *RegisterAlloc) String() string {
	return fmt.Sprintf("%s = alloc_regs %v;", r.dest.Name, r.size)
}

func join(elems []string, sep string) string {
	out := ""
	for i, e := range elems {
		if i > 0 {
			out += sep
		}
		out += e
	}
	return out
}

// ShrMemAlloc declares the block-wide shared-memory backing array and
// binds a per-instance base pointer into it. It is deferred-ready: it
// only becomes ready once the optimizer's shared-memory offset pass
// has populated the object's total size.
type ShrMemAlloc struct {
	base
	dest *symtab.Symbol
	obj  *datatypes.ShrMemObject
}

func NewShrMemAlloc(ctx *cfir.Context, dest *symtab.Symbol) *ShrMemAlloc {
	obj := dest.Obj.(*datatypes.ShrMemObject)
	a := &ShrMemAlloc{base: newBase(ctx), dest: dest, obj: obj}
	dest.AddUser(a)
	return a
}

func (a *ShrMemAlloc) IsReady() bool { return a.obj.Ready() }

func (a *ShrMemAlloc) GenCode(w *writer.Writer) {
	totalName := "total_" + a.dest.Name
	w.Linef("%s __align__(8) %s %s[%d];", a.lexic().ShrMemKw, a.fpAsStr(), totalName, a.obj.TotalSize())
	w.Linef("%s* %s = &%s[%d * %s];", a.fpAsStr(), a.dest.Name, totalName, a.obj.SizePerMult(), a.lexic().ThreadIdxY)
}

func (a *ShrMemAlloc) String() string {
	return fmt.Sprintf("%s = alloc_shared %s;", a.dest.Name, a.obj.String())
}
