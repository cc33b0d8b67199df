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
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/chainforge-gpu/chainforge/internal/cfir"
	"github.com/chainforge-gpu/chainforge/internal/symtab"
)

func batchMatrix(t *testing.T, name string) *symtab.Symbol {
	t.Helper()
	m, err := cfir.NewMatrix(4, 8, cfir.AddrStrided, nil, "", false)
	require.NoError(t, err)
	m.Name = name
	return symtab.NewSymbol(name, symtab.Batch, m)
}

func TestGetElementPtrBuilderRejectsNonBatchSrc(t *testing.T) {
	ctx := newTestContext(t)
	scopes := symtab.NewScopes()
	b := NewGetElementPtrBuilder(ctx, scopes)

	src := symtab.NewSymbol("A", symtab.Global, nil)
	_, err := b.Build(src)
	require.Error(t, err)
}

func TestGetElementPtrBuilderRejectsNonMatrixObj(t *testing.T) {
	ctx := newTestContext(t)
	scopes := symtab.NewScopes()
	b := NewGetElementPtrBuilder(ctx, scopes)

	src := symtab.NewSymbol("A", symtab.Batch, 42)
	_, err := b.Build(src)
	require.Error(t, err)
}

func TestGetElementPtrBuilderRegistersDestAndEmitsInstruction(t *testing.T) {
	ctx := newTestContext(t)
	scopes := symtab.NewScopes()
	b := NewGetElementPtrBuilder(ctx, scopes)

	src := batchMatrix(t, "A")
	dest, err := b.Build(src)
	require.NoError(t, err)
	require.Equal(t, "glbA", dest.Name)
	require.Equal(t, symtab.Global, dest.Stype)
	require.True(t, scopes.Contains(src.Obj))
	require.Len(t, b.Instructions(), 1)
}
