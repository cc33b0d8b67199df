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

	"github.com/chainforge-gpu/chainforge/internal/cfir"
)

func newTestContext(t *testing.T) *cfir.Context {
	t.Helper()
	ctx, err := cfir.NewContext("sm_80", "cuda", cfir.Float, cfir.DefaultOptions())
	require.NoError(t, err)
	return ctx
}
