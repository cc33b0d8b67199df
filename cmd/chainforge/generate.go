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
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/chainforge-gpu/chainforge/internal/chainfile"
	"github.com/chainforge-gpu/chainforge/internal/generator"
)

func newGenerateCmd() *cobra.Command {
	var chainPath, outDir string

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a kernel, launcher, and header for one gemm chain",
	}

	opts := bindOptionFlags(cmd.Flags())
	cmd.Flags().StringVarP(&chainPath, "chain", "c", "", "path to a chain-file (JSON, see internal/chainfile)")
	cmd.Flags().StringVarP(&outDir, "out-dir", "o", ".", "directory to write kernel/launcher/header files into")
	cmd.MarkFlagRequired("chain")

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		return runGenerate(cmd, opts, chainPath, outDir)
	}
	return cmd
}

func runGenerate(cmd *cobra.Command, opts *optionFlags, chainPath, outDir string) error {
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
	if err := gen.Generate(); err != nil {
		return fmt.Errorf("generate: %w", err)
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return err
	}
	files := map[string]string{
		gen.BaseName() + ".cu.inc":     gen.Kernel(),
		gen.BaseName() + "_launch.inc": gen.Launcher(),
		gen.BaseName() + ".h":          gen.Header(),
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(outDir, name), []byte(content), 0o644); err != nil {
			return err
		}
	}
	fmt.Fprintf(cmd.OutOrStdout(), "generated %s\n", gen.BaseName())
	return nil
}
