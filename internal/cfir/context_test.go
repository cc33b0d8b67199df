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

func TestDefaultOptions(t *testing.T) {
	o := DefaultOptions()
	require.True(t, o.AlignShrMem)
	require.True(t, o.EnableSyncThreadsOpt)
	require.False(t, o.ExactContractionLength)
	require.False(t, o.PrefetchGemm)
	require.False(t, o.PreferAlign)
	require.Zero(t, o.UnrollFactor)
}

func TestNewContextUnknownArch(t *testing.T) {
	_, err := NewContext("sm_123", "cuda", Float, DefaultOptions())
	require.Error(t, err)
}

func TestContextAlign(t *testing.T) {
	// sm_80: VecUnitLength=32, HwFPWordSize=4, quantum = 32*4/4 = 32 for float.
	ctx, err := NewContext("sm_80", "cuda", Float, DefaultOptions())
	require.NoError(t, err)

	tests := []struct {
		num  int
		want int
	}{
		{0, 0},
		{1, 32},
		{31, 32},
		{32, 32},
		{33, 64},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, ctx.Align(tt.num), "Align(%d)", tt.num)
	}
}

func TestContextAlignDoubleHalvesQuantum(t *testing.T) {
	ctx, err := NewContext("sm_80", "cuda", Double, DefaultOptions())
	require.NoError(t, err)

	// quantum = 32*4/8 = 16 for double.
	require.Equal(t, 16, ctx.Align(1))
	require.Equal(t, 16, ctx.Align(16))
	require.Equal(t, 32, ctx.Align(17))
}

func TestContextAlignRangeWidensOutwardAndClips(t *testing.T) {
	ctx, err := NewContext("sm_80", "cuda", Float, DefaultOptions())
	require.NoError(t, err)

	// quantum 32: range [5, 40) widens to [0, 64), dirty = 5 rows.
	begin, end, dirty := ctx.AlignRange(5, 40, 1000)
	require.Equal(t, 0, begin)
	require.Equal(t, 64, end)
	require.Equal(t, 5, dirty)

	// clipped to limit.
	_, end2, _ := ctx.AlignRange(5, 40, 50)
	require.Equal(t, 50, end2)
}

func TestContextFPAsStr(t *testing.T) {
	ctx, err := NewContext("sm_80", "cuda", Double, DefaultOptions())
	require.NoError(t, err)
	require.Equal(t, "double", ctx.FPAsStr())
}
