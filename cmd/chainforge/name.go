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
	"fmt"

	"github.com/spf13/cobra"

	"github.com/chainforge-gpu/chainforge/internal/chainfile"
	"github.com/chainforge-gpu/chainforge/internal/generator"
)

// newNameCmd prints a chain's derived kernel name without rendering
// any source — useful for a build system deciding whether a kernel
// already exists before paying for full generation.
func newNameCmd() *cobra.Command {
	var chainPath string

	cmd := &cobra.Command{
		Use:   "name",
		Short: "Print the kernel name a gemm chain would generate to",
	}

	opts := bindOptionFlags(cmd.Flags())
	cmd.Flags().StringVarP(&chainPath, "chain", "c", "", "path to a chain-file (JSON, see internal/chainfile)")
	cmd.MarkFlagRequired("chain")

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		f, err := chainfile.Load(chainPath)
		if err != nil {
			return err
		}
		ctx, err := f.BuildContext(opts.options())
		if err != nil {
			return err
		}
		chain, err := f.BuildChain()
		if err != nil {
			return err
		}
		kernelType, err := opts.parseKernelType()
		if err != nil {
			return err
		}
		gen, err := generator.New(chain, ctx, kernelType)
		if err != nil {
			return err
		}
		gen.Register()
		fmt.Fprintln(cmd.OutOrStdout(), gen.BaseName())
		return nil
	}
	return cmd
}
