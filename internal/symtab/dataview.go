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

package symtab

import "fmt"

// DataView is attached to a Symbol once it participates in an
// instruction: the rows/cols it addresses, whether it is read/written
// transposed, and the active bbox within its backing allocation.
type DataView struct {
	Rows         int
	Columns      int
	IsTransposed bool
	Bbox         [4]int // [r0, c0, r1, c1)
}

// NewDataView defaults bbox to the full [0,0,rows,columns) rectangle.
func NewDataView(rows, columns int, isTransposed bool, bbox *[4]int) *DataView {
	v := &DataView{Rows: rows, Columns: columns, IsTransposed: isTransposed}
	if bbox != nil {
		v.Bbox = *bbox
	} else {
		v.Bbox = [4]int{0, 0, rows, columns}
	}
	return v
}

func (v *DataView) GetBbox() [4]int { return v.Bbox }

// ResetBbox replaces the active rectangle, recomputing derived state.
// The caller is responsible for ensuring the new bbox still fits
// within [0,0,Rows,Columns).
func (v *DataView) ResetBbox(bbox [4]int) {
	v.Bbox = bbox
}

func (v *DataView) LeadDim() int { return v.Rows }

func (v *DataView) Offset() int {
	return v.Bbox[0] + v.Bbox[1]*v.LeadDim()
}

func (v *DataView) Volume() int { return v.Rows * v.Columns }

// DimSize returns the active extent along axis 0 (rows) or 1 (cols).
func (v *DataView) DimSize(axis int) int {
	return v.Bbox[2+axis] - v.Bbox[axis]
}

// Address renders the C index expression for element (rowIdx, colIdx),
// prefixed by the view's offset when it is nonzero.
func (v *DataView) Address(rowIdx, colIdx string) string {
	addr := fmt.Sprintf("%s + %s*%d", rowIdx, colIdx, v.LeadDim())
	if off := v.Offset(); off != 0 {
		return fmt.Sprintf("%d + %s", off, addr)
	}
	return addr
}
