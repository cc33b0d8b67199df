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

package generator

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/chainforge-gpu/chainforge/internal/cfir"
	"github.com/chainforge-gpu/chainforge/internal/instr/builders/kernels"
)

// Chain is one gemm chain plus the kernel-builder strategy it should
// use, the unit of work GenerateAll fans out.
type Chain struct {
	Gemms      []*cfir.GemmDescr
	KernelType kernels.Type
}

// GenerateAll builds and generates every chain concurrently, one
// Generator per chain. Each Generator owns its own Scopes and IR
// slice, so running several chains' pipelines at once shares no
// mutable state between them — generation of one chain is internally
// single-threaded and synchronous, but nothing prevents many chains
// from proceeding in parallel, which is the realistic shape of a model
// that emits dozens of chains per translation unit. The first error
// from any chain cancels the rest and is returned: chains that have not
// begun generating by then are skipped, while chains already generating
// run to completion.
func GenerateAll(ctx context.Context, chains []Chain, cfctx *cfir.Context) ([]*Generator, error) {
	generators := make([]*Generator, len(chains))

	group, gctx := errgroup.WithContext(ctx)
	for i, c := range chains {
		i, c := i, c
		group.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			g, err := New(c.Gemms, cfctx, c.KernelType)
			if err != nil {
				return err
			}
			if err := g.Generate(); err != nil {
				return err
			}
			generators[i] = g
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	return generators, nil
}
