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

	"github.com/spf13/pflag"

	"github.com/chainforge-gpu/chainforge/internal/cfir"
	"github.com/chainforge-gpu/chainforge/internal/instr/builders/kernels"
)

// optionFlags binds cfir.Options to a pflag.FlagSet directly, rather
// than letting cobra register them implicitly — mirroring the
// teacher's flat "parse flags into a struct" idiom one level below
// cobra's command tree.
type optionFlags struct {
	exactContractionLength *bool
	prefetchGemm           *bool
	alignShrMem            *bool
	enableSyncThreadsOpt   *bool
	preferAlign            *bool
	unrollFactor           *int
	kernelType             *string
}

func bindOptionFlags(fs *pflag.FlagSet) *optionFlags {
	defaults := cfir.DefaultOptions()
	return &optionFlags{
		exactContractionLength: fs.Bool("exact-contraction-length", defaults.ExactContractionLength, "require exact A/B contraction-length agreement"),
		prefetchGemm:           fs.Bool("prefetch-gemm", defaults.PrefetchGemm, "prefetch gemm operands ahead of use"),
		alignShrMem:            fs.Bool("align-shr-mem", defaults.AlignShrMem, "align shared-memory regions to the hardware's vectorization quantum"),
		enableSyncThreadsOpt:   fs.Bool("sync-threads-opt", defaults.EnableSyncThreadsOpt, "enable the sync-placement optimizer pass"),
		preferAlign:            fs.Bool("prefer-align", defaults.PreferAlign, "widen transpose-on-read operands to enable coalesced loads"),
		unrollFactor:           fs.Int("unroll-factor", defaults.UnrollFactor, "explicit #pragma unroll factor (0 = bare pragma)"),
		kernelType:             fs.StringP("kernel-type", "k", "auto", "kernel strategy: auto, default, or min-threads"),
	}
}

func (o *optionFlags) options() cfir.Options {
	return cfir.Options{
		ExactContractionLength: *o.exactContractionLength,
		PrefetchGemm:           *o.prefetchGemm,
		AlignShrMem:            *o.alignShrMem,
		EnableSyncThreadsOpt:   *o.enableSyncThreadsOpt,
		PreferAlign:            *o.preferAlign,
		UnrollFactor:           *o.unrollFactor,
	}
}

func (o *optionFlags) parseKernelType() (kernels.Type, error) {
	switch *o.kernelType {
	case "auto":
		return kernels.Auto, nil
	case "default":
		return kernels.Default, nil
	case "min-threads":
		return kernels.MinThreads, nil
	default:
		return 0, fmt.Errorf("unknown --kernel-type %q", *o.kernelType)
	}
}
