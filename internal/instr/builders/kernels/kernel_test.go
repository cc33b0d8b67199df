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

package kernels

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/chainforge-gpu/chainforge/internal/cfir"
	"github.com/chainforge-gpu/chainforge/internal/instr"
	"github.com/chainforge-gpu/chainforge/internal/symtab"
	"github.com/chainforge-gpu/chainforge/internal/writer"
)

// renderReady assigns a dummy shared-memory offset to any deferred
// writer the region-coloring optimizer would otherwise settle, then
// concatenates the generated code of every instruction in order, the
// same traversal the kernel generator uses.
func renderReady(t *testing.T, instructions []instr.Instruction) string {
	t.Helper()
	w := writer.New()
	for _, in := range instructions {
		if write, ok := in.(instr.ShrMemWrite); ok && !in.IsReady() {
			write.SetShrMemOffset(0)
		}
		require.True(t, in.IsReady(), "instruction not ready: %v", in)
		in.GenCode(w)
	}
	return w.Source()
}

func newTestContext(t *testing.T) *cfir.Context {
	t.Helper()
	ctx, err := cfir.NewContext("sm_80", "cuda", cfir.Float, cfir.DefaultOptions())
	require.NoError(t, err)
	return ctx
}

func batchSymbol(t *testing.T, scopes *symtab.Scopes, name string, rows, cols int) *symtab.Symbol {
	t.Helper()
	m, err := cfir.NewMatrix(rows, cols, cfir.AddrStrided, nil, name, false)
	require.NoError(t, err)
	sym := symtab.NewSymbol(name, symtab.Batch, m)
	scopes.AddToGlobal(sym)
	return sym
}

func oneLinkChain(t *testing.T, a, b, c *symtab.Symbol) []*cfir.GemmDescr {
	t.Helper()
	descr, err := cfir.NewGemmDescr(false, false, a.Obj.(*cfir.Matrix), b.Obj.(*cfir.Matrix), c.Obj.(*cfir.Matrix), nil, nil, false)
	require.NoError(t, err)
	return []*cfir.GemmDescr{descr}
}

func TestNewUnknownKernelType(t *testing.T) {
	ctx := newTestContext(t)
	scopes := symtab.NewScopes()
	_, err := New(ctx, scopes, nil, Type(99))
	require.Error(t, err)
}

func TestNewAutoResolvesToDefaultVariant(t *testing.T) {
	ctx := newTestContext(t)
	scopes := symtab.NewScopes()
	b, err := New(ctx, scopes, nil, Auto)
	require.NoError(t, err)
	require.Equal(t, Default, b.v.kind())
}

func TestBuilderBuildDefaultKernelEmitsPrologueAllocAndGemmStep(t *testing.T) {
	ctx := newTestContext(t)
	scopes := symtab.NewScopes()

	a := batchSymbol(t, scopes, "A", 4, 6)
	b := batchSymbol(t, scopes, "B", 6, 8)
	c := batchSymbol(t, scopes, "C", 4, 8)
	chain := oneLinkChain(t, a, b, c)

	builder, err := New(ctx, scopes, chain, Default)
	require.NoError(t, err)

	require.NoError(t, builder.Build())

	require.Equal(t, ctx.Align(4), builder.NumThreads())
	require.Equal(t, [2]int{1, 8}, builder.AccumulatorSize())
	require.NotNil(t, builder.RegArrayObj())
	require.NotNil(t, builder.ShrMemObj())
	require.Equal(t, Default, builder.SelectedKernelType())

	// 3 prologue GetElementPtr binds, then register alloc, shr alloc,
	// then the gemm step's own instruction sequence.
	require.GreaterOrEqual(t, len(builder.Instructions()), 3+2)
}

func TestBuilderBuildMinThreadsVariantPacksRowsPerThread(t *testing.T) {
	ctx := newTestContext(t)
	scopes := symtab.NewScopes()

	a := batchSymbol(t, scopes, "A", 64, 6)
	b := batchSymbol(t, scopes, "B", 6, 8)
	c := batchSymbol(t, scopes, "C", 64, 8)
	chain := oneLinkChain(t, a, b, c)

	builder, err := New(ctx, scopes, chain, MinThreads)
	require.NoError(t, err)
	require.NoError(t, builder.Build())

	require.Equal(t, ctx.VM.HwDescr.VecUnitLength, builder.NumThreads())
	require.Equal(t, MinThreads, builder.SelectedKernelType())
	// 64 rows over VecUnitLength threads: rows = ceil(64/VecUnitLength).
	wantRows := (64 + ctx.VM.HwDescr.VecUnitLength - 1) / ctx.VM.HwDescr.VecUnitLength
	require.Equal(t, wantRows, builder.AccumulatorSize()[0])
}

// TestBuilderBuildMinThreadsVariantRendersRowTiledGemmBody renders the
// actual kernel body for a MinThreads chain with m > warp_size and
// checks the generated GEMM and store carry the per-row loop and
// break, not just the accumulator's shape.
func TestBuilderBuildMinThreadsVariantRendersRowTiledGemmBody(t *testing.T) {
	ctx := newTestContext(t)
	scopes := symtab.NewScopes()

	a := batchSymbol(t, scopes, "A", 64, 6)
	b := batchSymbol(t, scopes, "B", 6, 8)
	c := batchSymbol(t, scopes, "C", 64, 8)
	chain := oneLinkChain(t, a, b, c)

	builder, err := New(ctx, scopes, chain, MinThreads)
	require.NoError(t, err)
	require.NoError(t, builder.Build())

	rows := builder.AccumulatorSize()[0]
	require.Greater(t, rows, 1, "m=64 over a single warp must pack more than one row per thread")

	source := renderReady(t, builder.Instructions())
	require.Contains(t, source, fmt.Sprintf("for (int c = 0; c < %d; ++c)", rows))
	require.Contains(t, source, "if (t >= 64) break;")
}
