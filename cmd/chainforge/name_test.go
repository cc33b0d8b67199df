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
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNameCommandPrintsTheDerivedKernelName(t *testing.T) {
	chainPath := writeTestChainFile(t)

	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"name", "--chain", chainPath})
	require.NoError(t, root.Execute())

	name := strings.TrimSpace(out.String())
	require.True(t, strings.HasPrefix(name, "cf_gemms_"))
}

func TestNameCommandIsDeterministicAcrossRuns(t *testing.T) {
	chainPath := writeTestChainFile(t)

	run := func() string {
		root := newRootCmd()
		var out bytes.Buffer
		root.SetOut(&out)
		root.SetArgs([]string{"name", "--chain", chainPath})
		require.NoError(t, root.Execute())
		return strings.TrimSpace(out.String())
	}

	require.Equal(t, run(), run())
}
