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

// Package cfir holds the context and matrix model shared by every
// later stage of the pipeline: floating-point type, user options,
// alignment arithmetic, and matrix metadata.
package cfir

import "github.com/chainforge-gpu/chainforge/internal/cferrors"

// DataFlowDirection marks whether a matrix feeds into a GEMM (SOURCE)
// or receives its result (SINK).
type DataFlowDirection int

const (
	Source DataFlowDirection = iota
	Sink
)

// Addressing describes how a per-batch pointer is recovered from the
// batch index inside the kernel.
type Addressing int

const (
	AddrNone Addressing = iota
	AddrStrided
	AddrPtrBased
)

func (a Addressing) PtrType() string {
	if a == AddrPtrBased {
		return "**"
	}
	return "*"
}

func (a Addressing) String() string {
	switch a {
	case AddrNone:
		return "none"
	case AddrStrided:
		return "strided"
	case AddrPtrBased:
		return "pointer_based"
	default:
		return "unknown"
	}
}

func ParseAddressing(s string) (Addressing, error) {
	switch s {
	case "none":
		return AddrNone, nil
	case "strided":
		return AddrStrided, nil
	case "pointer_based":
		return AddrPtrBased, nil
	default:
		return 0, cferrors.Generation("arg must be either none, strided or pointer_based, given: %s", s)
	}
}

// FloatingPointType is the scalar element type kernels operate on.
type FloatingPointType int

const (
	Float FloatingPointType = iota
	Double
)

func (f FloatingPointType) String() string {
	if f == Double {
		return "double"
	}
	return "float"
}

// Sizeof returns the C storage size, in bytes, of the fp type.
func (f FloatingPointType) Sizeof() int {
	if f == Double {
		return 8
	}
	return 4
}

// GeneralLexicon names the well-known identifiers the emitter uses in
// generated kernel/launcher signatures.
const (
	NumElementsParam   = "numElements"
	ExtraOffsetSuffix  = "_extraOffset"
	StreamPtrParam     = "streamPtr"
	AlphaSymbolName    = "alpha"
	BetaSymbolName     = "beta"
	FlagsName          = "flags"
	BatchIDName        = "bid"
)
