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

package builders

import (
	"fmt"

	"github.com/chainforge-gpu/chainforge/internal/cferrors"
	"github.com/chainforge-gpu/chainforge/internal/cfir"
	"github.com/chainforge-gpu/chainforge/internal/instr"
	"github.com/chainforge-gpu/chainforge/internal/symtab"
)

// GemmBuilder assembles the full instruction sequence for one GEMM
// step of a chain: stage operands to shared memory as needed, sync,
// emit the Gemm accumulation, sync, store the result, sync, clear the
// accumulator for the next step.
//
// It caches which shared-memory region backs each operand so a
// shared-memory region loaded by an earlier GEMM in the same chain can
// be reused rather than reloaded, unless a later step needs a
// different transpose of it.
type GemmBuilder struct {
	base
	destRegs, shrMem *symtab.Symbol
	numThreads       int
	counter          int
	loaderCache      map[*symtab.Symbol]instr.ShrMemLoader
}

func NewGemmBuilder(ctx *cfir.Context, scopes *symtab.Scopes, destRegs, shrMem *symtab.Symbol, numThreads int) *GemmBuilder {
	return &GemmBuilder{
		base:        newBase(ctx, scopes),
		destRegs:    destRegs,
		shrMem:      shrMem,
		numThreads:  numThreads,
		loaderCache: make(map[*symtab.Symbol]instr.ShrMemLoader),
	}
}

// Build appends the instruction sequence for one GEMM in the chain:
// op1 (shape [transA? k x m : m x k]) times op2, accumulated into
// destRegs, and finally stored to destObj (a Matrix operand already
// registered in scope, or a fresh temporary).
func (b *GemmBuilder) Build(op1, op2 *symtab.Symbol, destObj *cfir.Matrix, descr *cfir.GemmDescr) error {
	b.reset()

	memRegionA, err := b.makeLoadOp1(op1, descr)
	if err != nil {
		return err
	}
	memRegionB, err := b.makeLoadOp2(op2, descr)
	if err != nil {
		return err
	}
	b.insertSyncThreads()

	if b.destRegs.Stype != symtab.Register {
		return cferrors.Internal("gemm-builder: reg_array must be in registers")
	}

	gemm, err := instr.NewGemm(b.ctx, descr.TransA, descr.TransB, memRegionA, memRegionB, b.destRegs, b.ctx.Options.PreferAlign, b.numThreads)
	if err != nil {
		return err
	}
	b.instructions = append(b.instructions, gemm)
	b.insertSyncThreads()

	if err := b.makeStore(destObj, descr); err != nil {
		return err
	}
	b.insertSyncThreads()

	clear, err := instr.NewClearRegisters(b.ctx, b.destRegs)
	if err != nil {
		return err
	}
	b.instructions = append(b.instructions, clear)
	return nil
}

func (b *GemmBuilder) makeLoadOp1(op1 *symtab.Symbol, descr *cfir.GemmDescr) (*symtab.Symbol, error) {
	switch op1.Stype {
	case symtab.Global:
		if descr.TransA {
			region, loader, err := b.makeLoaderAndSymbol(op1, true)
			if err != nil {
				return nil, err
			}
			b.loaderCache[region] = loader
			b.instructions = append(b.instructions, loader)
			return region, nil
		}
		return op1, nil

	case symtab.SharedMem:
		prevLoader, cached := b.loaderCache[op1]
		if !cached {
			return op1, nil
		}
		switch {
		case descr.TransA && prevLoader.GetLoaderType() == instr.NotTransposed:
			// Previously staged without transpose; a transposed read is
			// now required, so reload (and retranspose) from the
			// original global source under a fresh scope.
			b.scopes.AddScope()
			prevSrc := prevLoader.GetSrc()
			region, loader, err := b.makeLoaderAndSymbol(prevSrc, descr.TransA)
			if err != nil {
				return nil, err
			}
			b.loaderCache[region] = loader
			b.instructions = append(b.instructions, loader)
			return region, nil
		case !descr.TransA && prevLoader.GetLoaderType() == instr.Transposed:
			// Staged data is transposed but this step wants it
			// untransposed: read straight from global instead of
			// restaging to shared memory.
			return prevLoader.GetSrc(), nil
		default:
			// Fully reusable as-is.
			return op1, nil
		}

	default:
		return nil, cferrors.Internal("gemm-builder: op1 (%s) must be either in shr or glb mem.", op1.Name)
	}
}

func (b *GemmBuilder) makeLoadOp2(op2 *symtab.Symbol, descr *cfir.GemmDescr) (*symtab.Symbol, error) {
	switch op2.Stype {
	case symtab.Global:
		region, loader, err := b.makeLoaderAndSymbol(op2, descr.TransB)
		if err != nil {
			return nil, err
		}
		b.loaderCache[region] = loader
		b.instructions = append(b.instructions, loader)
		return region, nil
	case symtab.SharedMem:
		return op2, nil
	default:
		return nil, cferrors.Internal("gemm-builder: op2 (%s) must be either in shr or glb mem.", op2.Name)
	}
}

func (b *GemmBuilder) makeLoaderAndSymbol(operand *symtab.Symbol, isTranspose bool) (*symtab.Symbol, instr.ShrMemLoader, error) {
	region := symtab.NewSymbol(b.nameShrReg(), symtab.SharedMem, operand.Obj)
	if err := b.scopes.AddSymbol(region); err != nil {
		return nil, nil, err
	}
	loader, err := instr.NewShrMemLoader(b.ctx, region, operand, b.shrMem, b.numThreads, isTranspose)
	if err != nil {
		return nil, nil, err
	}
	return region, loader, nil
}

func (b *GemmBuilder) makeStore(destObj *cfir.Matrix, descr *cfir.GemmDescr) error {
	if b.scopes.Contains(destObj) {
		destSymbol := b.scopes.GetSymbol(destObj)
		switch destSymbol.Stype {
		case symtab.SharedMem:
			store, err := instr.NewStoreRegToShr(b.ctx, b.destRegs, destSymbol, b.shrMem, b.numThreads)
			if err != nil {
				return err
			}
			b.instructions = append(b.instructions, store)
		case symtab.Global:
			store, err := instr.NewStoreRegToGlb(b.ctx, b.destRegs, destSymbol, descr.Alpha, descr.Beta, b.numThreads)
			if err != nil {
				return err
			}
			b.instructions = append(b.instructions, store)
		default:
			return cferrors.Internal("gemm-builder: `res` must be either in shr. or glb. mem., given: %s", destSymbol.Stype)
		}
		return nil
	}

	if !destObj.IsTmp {
		return cferrors.Internal("gemm-builder: `res` is not in scopes and thus must be tmp")
	}

	destSymbol := symtab.NewSymbol(b.nameShrReg(), symtab.SharedMem, destObj)
	if err := b.scopes.AddSymbol(destSymbol); err != nil {
		return err
	}
	store, err := instr.NewStoreRegToShr(b.ctx, b.destRegs, destSymbol, b.shrMem, b.numThreads)
	if err != nil {
		return err
	}
	b.instructions = append(b.instructions, store)
	return nil
}

func (b *GemmBuilder) insertSyncThreads() {
	b.instructions = append(b.instructions, instr.NewSyncThreads(b.ctx, b.numThreads))
}

func (b *GemmBuilder) nameShrReg() string {
	name := fmt.Sprintf("_%d", b.counter)
	b.counter++
	return name
}
