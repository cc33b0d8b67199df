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

func TestParseAddressingRoundTrip(t *testing.T) {
	tests := []struct {
		in   string
		want Addressing
	}{
		{"none", AddrNone},
		{"strided", AddrStrided},
		{"pointer_based", AddrPtrBased},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseAddressing(tt.in)
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
			require.Equal(t, tt.in, got.String())
		})
	}
}

func TestParseAddressingInvalid(t *testing.T) {
	_, err := ParseAddressing("bogus")
	require.Error(t, err)
}

func TestAddressingPtrType(t *testing.T) {
	require.Equal(t, "*", AddrNone.PtrType())
	require.Equal(t, "*", AddrStrided.PtrType())
	require.Equal(t, "**", AddrPtrBased.PtrType())
}

func TestFloatingPointTypeSizeof(t *testing.T) {
	require.Equal(t, 4, Float.Sizeof())
	require.Equal(t, "float", Float.String())
	require.Equal(t, 8, Double.Sizeof())
	require.Equal(t, "double", Double.String())
}
