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

package threadblock

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/chainforge-gpu/chainforge/internal/vm"
)

func newTestVM(t *testing.T) *vm.VM {
	t.Helper()
	v, err := vm.New("sm_80", "cuda")
	require.NoError(t, err)
	return v
}

func TestSimplePacksTwoMultsPerBlockUpToThirtyTwoThreads(t *testing.T) {
	v := newTestVM(t)
	policy := NewSimple(v, 1024, 32)
	require.Equal(t, 2, policy.NumMultsPerBlock())
}

func TestSimplePacksOneMultPerBlockAboveThirtyTwoThreads(t *testing.T) {
	v := newTestVM(t)
	policy := NewSimple(v, 1024, 33)
	require.Equal(t, 1, policy.NumMultsPerBlock())
}

func TestSimpleExposesHardwareLimitsVerbatim(t *testing.T) {
	v := newTestVM(t)
	policy := NewSimple(v, 2048, 64)
	require.Equal(t, v.HwDescr.MaxBlockPerSM, policy.MaxBlocks())
	require.Equal(t, v.HwDescr.MaxLocalMemPerBlock, policy.MaxAllowedMem())
}
