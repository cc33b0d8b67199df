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

package instr

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBaseGenMaskThreads(t *testing.T) {
	b := newBase(newTestContext(t))
	require.Equal(t, "if (threadIdx.x < 128)", b.GenMaskThreads(128))
}

func TestBaseGenRangeMaskThreadsFromZero(t *testing.T) {
	b := newBase(newTestContext(t))
	require.Equal(t, "if (threadIdx.x < 64)", b.GenRangeMaskThreads(0, 64))
}

func TestBaseGenRangeMaskThreadsNonzeroBegin(t *testing.T) {
	b := newBase(newTestContext(t))
	require.Equal(t, "if (threadIdx.x >= 32 && threadIdx.x < 64)", b.GenRangeMaskThreads(32, 64))
}

func TestBaseIsReadyDefaultsFalse(t *testing.T) {
	b := newBase(newTestContext(t))
	require.False(t, b.IsReady())
}

func TestShrMemWriteBaseBecomesReadyOnOffset(t *testing.T) {
	b := newShrMemWriteBase(newTestContext(t))
	require.False(t, b.IsReady())

	b.SetShrMemOffset(16)
	require.True(t, b.IsReady())
}
