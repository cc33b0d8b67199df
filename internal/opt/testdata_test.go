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
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/chainforge-gpu/chainforge/internal/cfir"
	"github.com/chainforge-gpu/chainforge/internal/datatypes"
	"github.com/chainforge-gpu/chainforge/internal/instr"
	"github.com/chainforge-gpu/chainforge/internal/instr/builders/kernels"
	"github.com/chainforge-gpu/chainforge/internal/symtab"
)

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

// buildTwoLinkChainIR assembles D = A1*B1 (a shared-memory
// temporary), then Cfinal = D*B2 + beta*Cfinal — the shape needed to
// exercise region reuse, sync placement, and the write-after-read
// collapse at the chain's tail.
func buildTwoLinkChainIR(t *testing.T, beta float64) ([]instr.Instruction, *datatypes.ShrMemObject, int, *cfir.Context) {
	t.Helper()
	ctx := newTestContext(t)
	scopes := symtab.NewScopes()

	a1 := batchSymbol(t, scopes, "A1", 4, 6)
	b1 := batchSymbol(t, scopes, "B1", 6, 8)
	b2 := batchSymbol(t, scopes, "B2", 8, 8)
	cFinal := batchSymbol(t, scopes, "C", 4, 8)

	tmpD, err := cfir.NewMatrix(4, 8, cfir.AddrNone, nil, "tmpD", true)
	require.NoError(t, err)

	descr1, err := cfir.NewGemmDescr(false, false, a1.Obj.(*cfir.Matrix), b1.Obj.(*cfir.Matrix), tmpD, nil, nil, false)
	require.NoError(t, err)

	betaVal := beta
	descr2, err := cfir.NewGemmDescr(false, false, tmpD, b2.Obj.(*cfir.Matrix), cFinal.Obj.(*cfir.Matrix), nil, &betaVal, false)
	require.NoError(t, err)

	builder, err := kernels.New(ctx, scopes, []*cfir.GemmDescr{descr1, descr2}, kernels.Default)
	require.NoError(t, err)
	require.NoError(t, builder.Build())

	return builder.Instructions(), builder.ShrMemObj(), builder.NumThreads(), ctx
}
