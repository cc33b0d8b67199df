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

// Package chainfile decodes a gemm chain's declarative shape — operand
// sizes, addressing, and per-link scalars — from JSON. It is plumbing
// for cmd/chainforge, not the GEMM DSL frontend spec.md's Non-goals
// exclude: it carries no algebraic rewriting, operand inference, or
// expression parsing, just a literal transcription of the fields
// cfir.NewMatrix/cfir.NewGemmDescr already require.
package chainfile

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/chainforge-gpu/chainforge/internal/cfir"
)

// Matrix is one named operand's declared shape.
type Matrix struct {
	Name       string `json:"name"`
	Rows       int    `json:"rows"`
	Cols       int    `json:"cols"`
	Addressing string `json:"addressing"`
	Alias      string `json:"alias,omitempty"`
	IsTmp      bool   `json:"is_tmp,omitempty"`
}

// Gemm is one chain link, referencing its operands by Matrix.Name.
type Gemm struct {
	TransA      bool     `json:"trans_a"`
	TransB      bool     `json:"trans_b"`
	MatA        string   `json:"mat_a"`
	MatB        string   `json:"mat_b"`
	MatC        string   `json:"mat_c"`
	Alpha       *float64 `json:"alpha,omitempty"`
	Beta        *float64 `json:"beta,omitempty"`
	StrictMatch bool     `json:"strict_match,omitempty"`
}

// File is the full on-disk chain description: target hardware, scalar
// type, every operand, and the chain of gemms over them.
type File struct {
	Arch    string   `json:"arch"`
	Backend string   `json:"backend"`
	FPType  string   `json:"fp_type"`
	Matrix  []Matrix `json:"matrices"`
	Gemm    []Gemm   `json:"gemms"`
}

// Load reads and decodes a chain-file from path.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("chainfile: %w", err)
	}
	var f File
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("chainfile: decode %s: %w", path, err)
	}
	return &f, nil
}

// BuildContext constructs the cfir.Context this file's matrices and
// gemms are generated against.
func (f *File) BuildContext(opts cfir.Options) (*cfir.Context, error) {
	fpType, err := parseFPType(f.FPType)
	if err != nil {
		return nil, err
	}
	return cfir.NewContext(f.Arch, f.Backend, fpType, opts)
}

func parseFPType(s string) (cfir.FloatingPointType, error) {
	switch s {
	case "", "float":
		return cfir.Float, nil
	case "double":
		return cfir.Double, nil
	default:
		return 0, fmt.Errorf("chainfile: unknown fp_type %q", s)
	}
}

// BuildChain materializes every declared Matrix and Gemm into their
// cfir counterparts, returning the gemm list in file order ready to
// hand to generator.New.
func (f *File) BuildChain() ([]*cfir.GemmDescr, error) {
	matrices := make(map[string]*cfir.Matrix, len(f.Matrix))
	for _, m := range f.Matrix {
		addr, err := cfir.ParseAddressing(m.Addressing)
		if err != nil {
			return nil, fmt.Errorf("chainfile: matrix %q: %w", m.Name, err)
		}
		matrix, err := cfir.NewMatrix(m.Rows, m.Cols, addr, nil, m.Alias, m.IsTmp)
		if err != nil {
			return nil, fmt.Errorf("chainfile: matrix %q: %w", m.Name, err)
		}
		matrices[m.Name] = matrix
	}

	chain := make([]*cfir.GemmDescr, 0, len(f.Gemm))
	for i, g := range f.Gemm {
		a, b, c := matrices[g.MatA], matrices[g.MatB], matrices[g.MatC]
		if a == nil || b == nil || c == nil {
			return nil, fmt.Errorf("chainfile: gemm #%d references an undeclared matrix", i)
		}
		descr, err := cfir.NewGemmDescr(g.TransA, g.TransB, a, b, c, g.Alpha, g.Beta, g.StrictMatch)
		if err != nil {
			return nil, fmt.Errorf("chainfile: gemm #%d: %w", i, err)
		}
		chain = append(chain, descr)
	}
	return chain, nil
}
