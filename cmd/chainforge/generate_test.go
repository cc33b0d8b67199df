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

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const testChainJSON = `{
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

func writeTestChainFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "chain.json")
	require.NoError(t, os.WriteFile(path, []byte(testChainJSON), 0o644))
	return path
}

func TestGenerateCommandWritesKernelLauncherAndHeader(t *testing.T) {
	chainPath := writeTestChainFile(t)
	outDir := t.TempDir()

	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"generate", "--chain", chainPath, "--out-dir", outDir})
	require.NoError(t, root.Execute())

	entries, err := os.ReadDir(outDir)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	require.Contains(t, out.String(), "generated ")
}

func TestGenerateCommandRequiresTheChainFlag(t *testing.T) {
	root := newRootCmd()
	root.SetArgs([]string{"generate"})
	root.SilenceUsage = true
	root.SilenceErrors = true
	require.Error(t, root.Execute())
}

func TestGenerateCommandPropagatesAMissingChainFileError(t *testing.T) {
	root := newRootCmd()
	root.SilenceUsage = true
	root.SilenceErrors = true
	root.SetArgs([]string{"generate", "--chain", filepath.Join(t.TempDir(), "missing.json")})
	require.Error(t, root.Execute())
}
