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

package cfir

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func newSquareMatrix(t *testing.T, name string, rows, cols int) *Matrix {
	t.Helper()
	m, err := NewMatrix(rows, cols, AddrStrided, nil, "", false)
	require.NoError(t, err)
	m.Name = name
	return m
}

func TestNewGemmDescrNoTrans(t *testing.T) {
	a := newSquareMatrix(t, "A", 4, 6)
	b := newSquareMatrix(t, "B", 6, 8)
	c := newSquareMatrix(t, "C", 4, 8)

	g, err := NewGemmDescr(false, false, a, b, c, nil, nil, false)
	require.NoError(t, err)
	require.Equal(t, 1.0, g.Alpha)
	require.Equal(t, 0.0, g.Beta)
	require.Equal(t, Source, a.Direction)
	require.Equal(t, Source, b.Direction)
	require.Equal(t, Sink, c.Direction)

	numThreads, m := g.NumThreads(mustContext(t))
	require.Equal(t, 4, m)
	require.GreaterOrEqual(t, numThreads, m)
	require.Equal(t, 8, g.AccumulatorSize())
}

func mustContext(t *testing.T) *Context {
	t.Helper()
	ctx, err := NewContext("sm_80", "cuda", Float, DefaultOptions())
	require.NoError(t, err)
	return ctx
}

func TestNewGemmDescrShapeMismatchRejected(t *testing.T) {
	a := newSquareMatrix(t, "A", 4, 6)
	b := newSquareMatrix(t, "B", 6, 8)
	c := newSquareMatrix(t, "C", 5, 8) // wrong row count

	_, err := NewGemmDescr(false, false, a, b, c, nil, nil, false)
	require.Error(t, err)
}

func TestNewGemmDescrTransposedShapes(t *testing.T) {
	a := newSquareMatrix(t, "A", 6, 4) // A^T is 4x6
	b := newSquareMatrix(t, "B", 8, 6) // B^T is 6x8
	c := newSquareMatrix(t, "C", 4, 8)

	g, err := NewGemmDescr(true, true, a, b, c, nil, nil, false)
	require.NoError(t, err)
	require.Equal(t, "C", g.MatC.Name)
}

func TestNewGemmDescrContractionMismatchAllowedUnlessStrict(t *testing.T) {
	a := newSquareMatrix(t, "A", 4, 6) // contraction length 6
	b := newSquareMatrix(t, "B", 7, 8) // contraction length 7
	c := newSquareMatrix(t, "C", 4, 8)

	_, err := NewGemmDescr(false, false, a, b, c, nil, nil, false)
	require.NoError(t, err, "non-strict matching tolerates a contraction-length disagreement")

	_, err = NewGemmDescr(false, false, a, b, c, nil, nil, true)
	require.Error(t, err, "strict matching must reject the same disagreement")
}

func TestNewGemmDescrAlphaBeta(t *testing.T) {
	a := newSquareMatrix(t, "A", 4, 6)
	b := newSquareMatrix(t, "B", 6, 8)
	c := newSquareMatrix(t, "C", 4, 8)
	alpha, beta := 2.5, 1.0

	g, err := NewGemmDescr(false, false, a, b, c, &alpha, &beta, false)
	require.NoError(t, err)
	require.Equal(t, 2.5, g.Alpha)
	require.Equal(t, 1.0, g.Beta)
	require.Equal(t, "C = 2.5 * A x B + 1 * C", g.String())
}

func TestNewGemmDescrBetaZeroOmitsAccumTermInString(t *testing.T) {
	a := newSquareMatrix(t, "A", 4, 6)
	b := newSquareMatrix(t, "B", 6, 8)
	c := newSquareMatrix(t, "C", 4, 8)

	g, err := NewGemmDescr(false, false, a, b, c, nil, nil, false)
	require.NoError(t, err)
	require.Equal(t, "C = 1 * A x B", g.String())
}

func TestEstimatedFLOPs(t *testing.T) {
	a := newSquareMatrix(t, "A", 4, 6)
	b := newSquareMatrix(t, "B", 6, 8)
	c := newSquareMatrix(t, "C", 4, 8)

	g, err := NewGemmDescr(false, false, a, b, c, nil, nil, false)
	require.NoError(t, err)
	// (2*6-1)*4*8 = 11*32 = 352, beta==0 so no +m*n term.
	require.EqualValues(t, 352, g.EstimatedFLOPs())

	beta := 1.0
	gBeta, err := NewGemmDescr(false, false, a, b, c, nil, &beta, false)
	require.NoError(t, err)
	require.EqualValues(t, 352+32, gBeta.EstimatedFLOPs())
}
