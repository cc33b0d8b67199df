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

package vm

import (
	"fmt"
	"strings"

	"github.com/chainforge-gpu/chainforge/internal/cferrors"
)

// ArchLexicon is the per-backend vocabulary the emitter renders
// against: thread-index names, sync primitives, launch macros. CUDA
// and HIP agree on the kernel shape but disagree on spelling.
type ArchLexicon struct {
	ThreadIdxX, ThreadIdxY, ThreadIdxZ string
	BlockDimX, BlockDimY, BlockDimZ    string
	BlockIdxX                          string
	StreamType                         string
	KernelType                         string
	ShrMemKw                           string
	Dim3Type                           string
	SyncBlockThreads                   string
	SyncWarpThreads                    string
	RestrictKw                         string

	launch func(funcName, grid, block, stream, params string) string
	bounds func(threadsPerBlock int) string
}

func (l ArchLexicon) LaunchCode(funcName, grid, block, stream, params string) string {
	return l.launch(funcName, grid, block, stream, params)
}

func (l ArchLexicon) LaunchBounds(threadsPerBlock int) string {
	return l.bounds(threadsPerBlock)
}

func nvidiaLexicon() ArchLexicon {
	return ArchLexicon{
		ThreadIdxX: "threadIdx.x", ThreadIdxY: "threadIdx.y", ThreadIdxZ: "threadIdx.z",
		BlockDimX: "blockDim.x", BlockDimY: "blockDim.y", BlockDimZ: "blockDim.z",
		BlockIdxX:         "blockIdx.x",
		StreamType:        "cudaStream_t",
		KernelType:        "__global__ void",
		ShrMemKw:          "__shared__",
		Dim3Type:          "dim3",
		SyncBlockThreads:  "__syncthreads()",
		SyncWarpThreads:   "__syncwarp()",
		RestrictKw:        "__restrict__",
		launch: func(funcName, grid, block, stream, params string) string {
			return fmt.Sprintf("%s<<<%s, %s, 0, %s>>>(%s)", funcName, grid, block, stream, params)
		},
		bounds: func(threadsPerBlock int) string {
			return fmt.Sprintf("__launch_bounds__(%d)", threadsPerBlock)
		},
	}
}

func amdLexicon() ArchLexicon {
	return ArchLexicon{
		ThreadIdxX: "hipThreadIdx_x", ThreadIdxY: "hipThreadIdx_y", ThreadIdxZ: "hipThreadIdx_z",
		BlockDimX: "hipBlockDim_x", BlockDimY: "hipBlockDim_y", BlockDimZ: "hipBlockDim_z",
		BlockIdxX:         "hipBlockIdx_x",
		StreamType:        "hipStream_t",
		KernelType:        "__global__ void",
		ShrMemKw:          "__shared__",
		Dim3Type:          "dim3",
		SyncBlockThreads:  "__syncthreads()",
		SyncWarpThreads:   "__syncthreads()",
		RestrictKw:        "__restrict__",
		launch: func(funcName, grid, block, stream, params string) string {
			return fmt.Sprintf("hipLaunchKernelGGL(%s, %s, %s, 0, %s, %s)", funcName, grid, block, stream, params)
		},
		bounds: func(threadsPerBlock int) string { return "" },
	}
}

func newLexicon(backend string) (ArchLexicon, error) {
	switch strings.ToLower(backend) {
	case "cuda":
		return nvidiaLexicon(), nil
	case "hip":
		return amdLexicon(), nil
	default:
		return ArchLexicon{}, cferrors.Generation("unknown backend, given: %s", backend)
	}
}
