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

// Package kernels builds the full instruction sequence for one kernel:
// prologue pointer binding for every batch-scope operand, followed by
// accumulator/shared-memory allocation and one GemmBuilder step per
// link in the chain.
package kernels

import (
	"math"

	"github.com/chainforge-gpu/chainforge/internal/cferrors"
	"github.com/chainforge-gpu/chainforge/internal/cfir"
	"github.com/chainforge-gpu/chainforge/internal/datatypes"
	"github.com/chainforge-gpu/chainforge/internal/instr"
	"github.com/chainforge-gpu/chainforge/internal/instr/builders"
	"github.com/chainforge-gpu/chainforge/internal/symtab"
)

// Type selects which thread/accumulator-shape strategy a kernel uses.
type Type int

const (
	Auto Type = iota
	Default
	MinThreads
)

// variant supplies the two decisions that differ between kernel
// shapes: how many threads run per block-mult, and what accumulator
// tile shape each thread needs.
type variant interface {
	deduceNumThreads(ctx *cfir.Context, chain []*cfir.GemmDescr) int
	deduceAccumulatorSize(ctx *cfir.Context, numThreads int, chain []*cfir.GemmDescr) [2]int
	kind() Type
}

// Builder assembles one kernel's full instruction list: prologue
// pointer binds, then allocation, then one GemmBuilder step per GEMM
// in the chain.
type Builder struct {
	ctx          *cfir.Context
	scopes       *symtab.Scopes
	chain        []*cfir.GemmDescr
	v            variant
	instructions []instr.Instruction

	numThreads      int
	accumulatorSize [2]int
	regArrayObj     *datatypes.RegMemObject
	shrMemObj       *datatypes.ShrMemObject
}

// New builds a kernel builder of the requested Type. Auto resolves to
// Default, mirroring the factory's fallback.
func New(ctx *cfir.Context, scopes *symtab.Scopes, chain []*cfir.GemmDescr, kind Type) (*Builder, error) {
	var v variant
	switch kind {
	case Auto, Default:
		v = defaultVariant{}
	case MinThreads:
		v = minThreadsVariant{}
	default:
		return nil, cferrors.Internal("unknown kernel type: %d", kind)
	}
	return &Builder{ctx: ctx, scopes: scopes, chain: chain, v: v}, nil
}

func (b *Builder) Instructions() []instr.Instruction { return b.instructions }
func (b *Builder) NumThreads() int                   { return b.numThreads }
func (b *Builder) AccumulatorSize() [2]int            { return b.accumulatorSize }
func (b *Builder) RegArrayObj() *datatypes.RegMemObject { return b.regArrayObj }
func (b *Builder) ShrMemObj() *datatypes.ShrMemObject   { return b.shrMemObj }
func (b *Builder) SelectedKernelType() Type           { return b.v.kind() }

// Build runs the prologue (pointer binds for every batch-scope global
// operand) followed by the kernel body (allocation plus one GemmBuilder
// step per chain link).
func (b *Builder) Build() error {
	b.numThreads = b.v.deduceNumThreads(b.ctx, b.chain)
	b.accumulatorSize = b.v.deduceAccumulatorSize(b.ctx, b.numThreads, b.chain)

	if err := b.buildPrologue(); err != nil {
		return err
	}
	return b.buildKernel()
}

func (b *Builder) buildPrologue() error {
	ptrBuilder := builders.NewGetElementPtrBuilder(b.ctx, b.scopes)
	b.scopes.AddScope()
	for _, sym := range b.scopes.GlobalSymbols() {
		if _, err := ptrBuilder.Build(sym); err != nil {
			return err
		}
		b.instructions = append(b.instructions, ptrBuilder.Instructions()...)
	}
	return nil
}

func (b *Builder) buildKernel() error {
	regBuilder := builders.NewRegistersAllocBuilder(b.ctx, b.scopes)
	zero := 0.0
	regSym, err := regBuilder.Build(b.accumulatorSize, &zero)
	if err != nil {
		return err
	}
	b.regArrayObj = regBuilder.ResultantObj()
	b.instructions = append(b.instructions, regBuilder.Instructions()...)

	shrBuilder := builders.NewShrMemAllocBuilder(b.ctx, b.scopes)
	shrSym, err := shrBuilder.Build()
	if err != nil {
		return err
	}
	b.shrMemObj = shrBuilder.ResultantObj()
	b.instructions = append(b.instructions, shrBuilder.Instructions()...)

	b.scopes.AddScope()
	gemmBuilder := builders.NewGemmBuilder(b.ctx, b.scopes, regSym, shrSym, b.numThreads)
	for _, descr := range b.chain {
		op1 := b.scopes.GetSymbol(descr.MatA)
		op2 := b.scopes.GetSymbol(descr.MatB)
		if op1 == nil || op2 == nil {
			return cferrors.Internal("kernel-builder: gemm operand not found in scope")
		}
		if err := gemmBuilder.Build(op1, op2, descr.MatC, descr); err != nil {
			return err
		}
		b.instructions = append(b.instructions, gemmBuilder.Instructions()...)
	}
	return nil
}

// defaultVariant maps one thread to one row of the largest operand,
// accumulating a single row of the widest result per thread.
type defaultVariant struct{}

func (defaultVariant) kind() Type { return Default }

func (defaultVariant) deduceNumThreads(ctx *cfir.Context, chain []*cfir.GemmDescr) int {
	numThreads := 0
	for _, g := range chain {
		t, _ := g.NumThreads(ctx)
		if t > numThreads {
			numThreads = t
		}
	}
	return numThreads
}

func (defaultVariant) deduceAccumulatorSize(ctx *cfir.Context, numThreads int, chain []*cfir.GemmDescr) [2]int {
	cols := 0
	for _, g := range chain {
		if s := g.AccumulatorSize(); s > cols {
			cols = s
		}
	}
	return [2]int{1, cols}
}

// minThreadsVariant packs the whole kernel into one warp, giving each
// thread several rows of the accumulator when the chain's largest `m`
// exceeds the warp width.
type minThreadsVariant struct{}

func (minThreadsVariant) kind() Type { return MinThreads }

func (minThreadsVariant) deduceNumThreads(ctx *cfir.Context, chain []*cfir.GemmDescr) int {
	return ctx.VM.HwDescr.VecUnitLength
}

func (minThreadsVariant) deduceAccumulatorSize(ctx *cfir.Context, numThreads int, chain []*cfir.GemmDescr) [2]int {
	cols, maxRows := 0, 0
	for _, g := range chain {
		if s := g.AccumulatorSize(); s > cols {
			cols = s
		}
		_, m := g.NumThreads(ctx)
		if m > maxRows {
			maxRows = m
		}
	}
	rows := int(math.Ceil(float64(maxRows) / float64(numThreads)))
	return [2]int{rows, cols}
}
