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

package chainfile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/chainforge-gpu/chainforge/internal/cfir"
)

const validChainJSON = `{
  "arch": "sm_80",
  "backend": "cuda",
  "fp_type": "float",
  "matrices": [
    {"name": "A", "rows": 4, "cols": 6, "addressing": "strided"},
    {"name": "B", "rows": 6, "cols": 8, "addressing": "strided"},
    {"name": "C", "rows": 4, "cols": 8, "addressing": "strided"}
  ],
  "gemms": [
    {"trans_a": false, "trans_b": false, "mat_a": "A", "mat_b": "B", "mat_c": "C"}
  ]
}`

func writeChainFile(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "chain.json")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoadDecodesAWellFormedFile(t *testing.T) {
	path := writeChainFile(t, validChainJSON)

	f, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "sm_80", f.Arch)
	require.Equal(t, "cuda", f.Backend)
	require.Len(t, f.Matrix, 3)
	require.Len(t, f.Gemm, 1)
}

func TestLoadReportsAMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "does-not-exist.json"))
	require.Error(t, err)
}

func TestLoadReportsMalformedJSON(t *testing.T) {
	path := writeChainFile(t, `{not json`)
	_, err := Load(path)
	require.Error(t, err)
}

func TestBuildContextResolvesFPType(t *testing.T) {
	f := &File{Arch: "sm_80", Backend: "cuda", FPType: "double"}
	ctx, err := f.BuildContext(cfir.DefaultOptions())
	require.NoError(t, err)
	require.Equal(t, cfir.Double, ctx.FPType)
}

func TestBuildContextDefaultsToFloat(t *testing.T) {
	f := &File{Arch: "sm_80", Backend: "cuda"}
	ctx, err := f.BuildContext(cfir.DefaultOptions())
	require.NoError(t, err)
	require.Equal(t, cfir.Float, ctx.FPType)
}

func TestBuildContextRejectsUnknownFPType(t *testing.T) {
	f := &File{Arch: "sm_80", Backend: "cuda", FPType: "half"}
	_, err := f.BuildContext(cfir.DefaultOptions())
	require.Error(t, err)
}

func TestBuildChainMaterializesMatricesAndGemms(t *testing.T) {
	path := writeChainFile(t, validChainJSON)
	f, err := Load(path)
	require.NoError(t, err)

	chain, err := f.BuildChain()
	require.NoError(t, err)
	require.Len(t, chain, 1)
	require.Equal(t, 4, chain[0].MatA.NumRows)
	require.Equal(t, 8, chain[0].MatB.NumCols)
}

func TestBuildChainRejectsAnUndeclaredOperand(t *testing.T) {
	f := &File{
		Matrix: []Matrix{
			{Name: "A", Rows: 4, Cols: 6, Addressing: "strided"},
			{Name: "B", Rows: 6, Cols: 8, Addressing: "strided"},
		},
		Gemm: []Gemm{{MatA: "A", MatB: "B", MatC: "C"}},
	}
	_, err := f.BuildChain()
	require.Error(t, err)
}

func TestBuildChainRejectsAnUnknownAddressing(t *testing.T) {
	f := &File{
		Matrix: []Matrix{{Name: "A", Rows: 4, Cols: 6, Addressing: "bogus"}},
	}
	_, err := f.BuildChain()
	require.Error(t, err)
}

func TestBuildChainPropagatesAShapeMismatchFromGemmDescr(t *testing.T) {
	f := &File{
		Matrix: []Matrix{
			{Name: "A", Rows: 4, Cols: 6, Addressing: "strided"},
			{Name: "B", Rows: 6, Cols: 8, Addressing: "strided"},
			{Name: "C", Rows: 99, Cols: 99, Addressing: "strided"},
		},
		Gemm: []Gemm{{MatA: "A", MatB: "B", MatC: "C"}},
	}
	_, err := f.BuildChain()
	require.Error(t, err)
}
