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
	"fmt"

	"github.com/chainforge-gpu/chainforge/internal/cferrors"
)

// Matrix is declarative metadata about one operand or result: the
// allocated shape, the active bounding box inside that allocation, and
// how its per-batch pointer is addressed.
type Matrix struct {
	Name      string
	Alias     string
	NumRows   int
	NumCols   int
	IsTmp     bool
	Direction DataFlowDirection

	// Bbox is [r0, c0, r1, c1): the active rectangle. r1>r0, c1>c0,
	// and it must fit inside [0,0,NumRows,NumCols].
	Bbox [4]int

	Addressing Addressing
}

// NewMatrix builds a Matrix whose active bbox defaults to the full
// allocation. Pass bbox nil to accept that default.
func NewMatrix(numRows, numCols int, addressing Addressing, bbox *[4]int, alias string, isTmp bool) (*Matrix, error) {
	m := &Matrix{
		NumRows: numRows, NumCols: numCols, Addressing: addressing,
		Alias: alias, IsTmp: isTmp,
	}
	if bbox != nil {
		m.Bbox = *bbox
		if m.NumRows < m.ActualNumRows() || m.NumCols < m.ActualNumCols() {
			return nil, cferrors.Generation("matrix size %dx%d is smaller than bbox %v", m.NumRows, m.NumCols, m.Bbox)
		}
		if m.NumRows < m.Bbox[2] || m.NumCols < m.Bbox[3] {
			return nil, cferrors.Generation("bbox %v is outside of matrix %dx%d", m.Bbox, m.NumRows, m.NumCols)
		}
	} else {
		m.Bbox = [4]int{0, 0, numRows, numCols}
	}
	return m, nil
}

func (m *Matrix) SetDataFlowDirection(d DataFlowDirection) { m.Direction = d }

func (m *Matrix) ActualNumRows() int { return m.Bbox[2] - m.Bbox[0] }
func (m *Matrix) ActualNumCols() int { return m.Bbox[3] - m.Bbox[1] }
func (m *Matrix) ActualVolume() int  { return m.ActualNumRows() * m.ActualNumCols() }
func (m *Matrix) RealVolume() int    { return m.NumRows * m.NumCols }

func (m *Matrix) OffsetToFirstElement() int {
	return m.NumRows*m.Bbox[1] + m.Bbox[0]
}

// IsSimilar compares shape, addressing and bbox, ignoring alias/tmp.
func (m *Matrix) IsSimilar(other *Matrix) bool {
	if m.NumRows != other.NumRows || m.NumCols != other.NumCols || m.Addressing != other.Addressing {
		return false
	}
	return m.Bbox == other.Bbox
}

func (m *Matrix) IsSame(other *Matrix) bool {
	return m.IsSimilar(other) && m.Alias == other.Alias && m.IsTmp == other.IsTmp
}

// GenDescr renders a one-line human-readable descriptor used both in
// kernel meta-data comments and as part of the naming digest.
func (m *Matrix) GenDescr() string {
	return fmt.Sprintf("%s = {rows: %d, cols: %d, addr: %s, bbox: %v};",
		m.Name, m.NumRows, m.NumCols, m.Addressing, m.Bbox)
}
