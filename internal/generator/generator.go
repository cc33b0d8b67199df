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

// Package generator drives one gemm chain from declared matrices to
// rendered CUDA/HIP source: it builds the IR via a kernel builder,
// hands it to the optimizer, deduces block occupancy, and renders the
// kernel, its host-side launcher, and the launcher's header
// declaration.
package generator

import (
	"fmt"
	"strings"

	"github.com/samber/lo"

	"github.com/chainforge-gpu/chainforge/internal/cferrors"
	"github.com/chainforge-gpu/chainforge/internal/cfir"
	"github.com/chainforge-gpu/chainforge/internal/datatypes"
	"github.com/chainforge-gpu/chainforge/internal/instr"
	"github.com/chainforge-gpu/chainforge/internal/instr/builders/kernels"
	"github.com/chainforge-gpu/chainforge/internal/opt"
	"github.com/chainforge-gpu/chainforge/internal/symtab"
	"github.com/chainforge-gpu/chainforge/internal/threadblock"
	"github.com/chainforge-gpu/chainforge/internal/writer"
)

// Generator turns one gemm chain, plus a Context describing the target
// hardware and scalar type, into kernel/launcher/header source text.
// One Generator handles exactly one chain; GenerateAll (in batch.go)
// fans a whole chain list out over a worker pool.
type Generator struct {
	chain      []*cfir.GemmDescr
	ctx        *cfir.Context
	kernelType kernels.Type

	baseName string
	scopes   *symtab.Scopes

	matrices []*cfir.Matrix
	tmps     map[*cfir.Matrix]bool

	ir         []instr.Instruction
	numThreads int
	regObj     *datatypes.RegMemObject
	shrMemObj  *datatypes.ShrMemObject

	registered bool

	kernel, launcher, header string
}

// New names every operand of chain (mutating each Matrix's Name field)
// and returns a Generator ready to Register/Generate. kernelType
// selects the kernel-builder strategy; kernels.Auto resolves to the
// default strategy, matching the factory's own fallback.
func New(chain []*cfir.GemmDescr, ctx *cfir.Context, kernelType kernels.Type) (*Generator, error) {
	g := &Generator{
		chain:      chain,
		ctx:        ctx,
		kernelType: kernelType,
		scopes:     symtab.NewScopes(),
		tmps:       make(map[*cfir.Matrix]bool),
	}
	if err := g.checkConsistency(); err != nil {
		return nil, err
	}
	g.nameOperands()
	return g, nil
}

// SetKernelName overrides the digest-derived name Register would
// otherwise compute.
func (g *Generator) SetKernelName(name string) { g.baseName = name }

func (g *Generator) BaseName() string  { return g.baseName }
func (g *Generator) Kernel() string    { return g.kernel }
func (g *Generator) Launcher() string  { return g.launcher }
func (g *Generator) Header() string    { return g.header }

// checkConsistency mirrors the constructor's own sanity check: every
// link's strict-matching flag must agree with the context's global
// exact-contraction-length option, since a mixed chain would leave the
// non-strict links silently padding past what the strict ones assume.
func (g *Generator) checkConsistency() error {
	for _, gemm := range g.chain {
		if gemm.StrictMatch != g.ctx.Options.ExactContractionLength {
			return cferrors.Generation(
				"gemm list is not consistent with user options: strict_match=%v but exact_contraction_length=%v",
				gemm.StrictMatch, g.ctx.Options.ExactContractionLength)
		}
	}
	return nil
}

// nameOperands assigns every chain operand a name: "A", "B", "C", ...
// for persistent matrices in first-seen order, "tmp0", "tmp1", ... for
// intermediates, independent of the persistent counter.
func (g *Generator) nameOperands() {
	opCounter := byte('A')
	tmpCounter := 0

	for _, gemm := range g.chain {
		for _, m := range []*cfir.Matrix{gemm.MatA, gemm.MatB, gemm.MatC} {
			g.matrices = append(g.matrices, m)
		}
	}

	for _, m := range g.matrices {
		if m.Name != "" {
			continue
		}
		if m.IsTmp {
			m.Name = fmt.Sprintf("tmp%d", tmpCounter)
			tmpCounter++
		} else {
			m.Name = string(opCounter)
			opCounter++
		}
	}
}

// Register collects temporaries, populates the global scope with the
// chain's persistent operands, and fixes the kernel's base name. It is
// called automatically by Generate if the caller skips it.
func (g *Generator) Register() {
	g.collectTmpMatrices()
	g.populateGlobalScope()
	if g.baseName == "" {
		g.baseName = deriveKernelName(g.scopes.GlobalSymbols(), g.chain)
	}
	g.registered = true
}

func (g *Generator) collectTmpMatrices() {
	for _, m := range g.matrices {
		if m.IsTmp {
			g.tmps[m] = true
		}
	}
}

func (g *Generator) populateGlobalScope() {
	persistent := lo.Filter(g.matrices, func(m *cfir.Matrix, _ int) bool { return !g.tmps[m] })
	symbols := lo.Map(persistent, func(m *cfir.Matrix, _ int) *symtab.Symbol {
		return symtab.NewSymbol(m.Name, symtab.Batch, m)
	})
	for _, sym := range symbols {
		g.scopes.AddToGlobal(sym)
	}
}

// Generate runs the full pipeline: IR emission, optimization, block
// occupancy, and the three text-rendering passes. Register runs first
// if the caller hasn't already called it.
func (g *Generator) Generate() error {
	if !g.registered {
		g.Register()
	}

	if err := g.emitIR(); err != nil {
		return err
	}

	stage := opt.NewStage(g.ctx, g.shrMemObj, g.ir, g.numThreads)
	if err := stage.Optimize(); err != nil {
		return err
	}
	g.ir = stage.Instructions()

	g.deduceMultsPerBlock()

	if err := g.generateKernel(); err != nil {
		return err
	}
	g.generateLauncher()
	g.generateHeader()
	return nil
}

func (g *Generator) emitIR() error {
	builder, err := kernels.New(g.ctx, g.scopes, g.chain, g.kernelType)
	if err != nil {
		return err
	}
	if err := builder.Build(); err != nil {
		return err
	}
	g.ir = builder.Instructions()
	g.numThreads = builder.NumThreads()
	g.regObj = builder.RegArrayObj()
	g.shrMemObj = builder.ShrMemObj()
	g.kernelType = builder.SelectedKernelType()
	return nil
}

func (g *Generator) deduceMultsPerBlock() {
	policy := threadblock.NewSimple(g.ctx.VM, g.shrMemObj.SizePerMult(), g.numThreads)
	g.shrMemObj.SetMultsPerBlock(policy.NumMultsPerBlock())
}

func (g *Generator) generateKernel() error {
	w := writer.New()
	var genErr error
	w.Block(g.kernelProto(), func() {
		g.writeKernelMetaData(w)

		w.Linef("unsigned %s = %s;", cfir.BatchIDName, g.blockID2D())
		w.Block(fmt.Sprintf("if (%s)", g.elementSizeGuard()), func() {
			w.Block(fmt.Sprintf("if (%s)", g.flagGuard(w)), func() {
				for _, in := range g.ir {
					if !in.IsReady() {
						if genErr == nil {
							genErr = cferrors.Generation("instr is not ready to be generated: %s", in)
						}
						continue
					}
					in.GenCode(w)
				}
			})
		})
	})
	if genErr != nil {
		return genErr
	}
	g.kernel = w.Source()
	return nil
}

func (g *Generator) generateLauncher() {
	w := writer.New()
	proto := g.launcherProto(false)
	multsPerBlock := g.shrMemObj.MultsPerBlock()
	lexic := g.ctx.VM.Lexic

	w.Block(proto, func() {
		w.Linef("%s block(%d, %d, 1);", lexic.Dim3Type, g.numThreads, multsPerBlock)
		numBlocks := fmt.Sprintf("(%s + %d - 1) / %d", cfir.NumElementsParam, multsPerBlock, multsPerBlock)
		w.Linef("%s grid(%s, 1, 1);", lexic.Dim3Type, numBlocks)

		ifStreamExists := fmt.Sprintf("(%s != nullptr)", cfir.StreamPtrParam)
		streamObj := fmt.Sprintf("static_cast<%s>(%s)", lexic.StreamType, cfir.StreamPtrParam)
		w.Linef("%s stream = %s ? %s : 0;", lexic.StreamType, ifStreamExists, streamObj)

		args := strings.Join(g.kernelBaseArgs(), ", ")
		kernelName := fmt.Sprintf("kernel_%s", g.baseName)
		callSite := lexic.LaunchCode(kernelName, "grid", "block", "stream", args)
		w.Linef("%s;", callSite)
		w.Line("CHECK_ERR;")
	})
	g.launcher = w.Source()
}

func (g *Generator) generateHeader() {
	g.header = g.launcherProto(true) + ";\n"
}

func (g *Generator) writeKernelMetaData(w *writer.Writer) {
	w.Line("// meta data:")
	for _, sym := range g.scopes.GlobalSymbols() {
		w.Linef("// %s", sym.Obj.(*cfir.Matrix).GenDescr())
	}
	w.NewLine()
	for _, gemm := range g.chain {
		w.Linef("// %s", gemm)
	}
	w.NewLine()
}

// scalarParamList is always empty in this port: GemmDescr's alpha/beta
// are plain float64, never a named runtime symbol, so the branch
// original_source uses to emit a scalar kernel parameter for a
// non-literal alpha/beta can never fire here.
func (g *Generator) scalarParamList(withTypes bool) []string { return nil }

func (g *Generator) baseParamsList(symbols []*symtab.Symbol, withTypes, withDefaults bool) []string {
	fpAsStr := g.ctx.FPAsStr()
	var params []string
	for _, sym := range symbols {
		matrix := sym.Obj.(*cfir.Matrix)
		ptrType := matrix.Addressing.PtrType()
		batchType := ""
		if withTypes {
			batchType = fpAsStr + ptrType
		}
		offsetType := ""
		if withTypes {
			offsetType = "unsigned"
		}
		params = append(params, fmt.Sprintf("%s %s", batchType, sym.Name))
		params = append(params, fmt.Sprintf("%s %s%s", offsetType, sym.Name, cfir.ExtraOffsetSuffix))
	}

	batchSizeType := ""
	if withTypes {
		batchSizeType = "size_t"
	}
	params = append(params, fmt.Sprintf("%s %s", batchSizeType, cfir.NumElementsParam))

	flagsType := ""
	if withTypes {
		flagsType = "unsigned*"
	}
	defaultFlagsValue := ""
	if withDefaults {
		defaultFlagsValue = "= nullptr"
	}
	params = append(params, strings.TrimSpace(fmt.Sprintf("%s %s %s", flagsType, cfir.FlagsName, defaultFlagsValue)))
	return params
}

func (g *Generator) kernelBaseArgs() []string {
	args := g.scalarParamList(false)
	args = append(args, g.baseParamsList(g.scopes.GlobalSymbols(), false, false)...)
	return args
}

func (g *Generator) kernelProto() string {
	params := g.scalarParamList(true)
	params = append(params, g.baseParamsList(g.scopes.GlobalSymbols(), true, false)...)

	lexic := g.ctx.VM.Lexic
	totalThreads := g.numThreads * g.shrMemObj.MultsPerBlock()
	launchBounds := lexic.LaunchBounds(totalThreads)
	if launchBounds != "" {
		return fmt.Sprintf("%s %s kernel_%s(%s)", lexic.KernelType, launchBounds, g.baseName, strings.Join(params, ", "))
	}
	return fmt.Sprintf("%s kernel_%s(%s)", lexic.KernelType, g.baseName, strings.Join(params, ", "))
}

func (g *Generator) launcherProto(withDefaults bool) string {
	params := g.scalarParamList(true)
	params = append(params, g.baseParamsList(g.scopes.GlobalSymbols(), true, withDefaults)...)

	defaultValue := ""
	if withDefaults {
		defaultValue = " = nullptr"
	}
	params = append(params, fmt.Sprintf("void* %s%s", cfir.StreamPtrParam, defaultValue))
	return fmt.Sprintf("void launcher_%s(%s)", g.baseName, strings.Join(params, ", "))
}

// DefaultCallSite renders a call to this chain's launcher using each
// operand's alias where one was given, falling back to its assigned
// name — the form a generated translation unit emits to invoke itself
// from a test harness.
func (g *Generator) DefaultCallSite() (string, error) {
	if !g.registered {
		return "", cferrors.Internal("generator is not registered; call Register first")
	}
	symbols := g.scopes.GlobalSymbols()
	names := lo.Map(symbols, func(sym *symtab.Symbol, _ int) string {
		matrix := sym.Obj.(*cfir.Matrix)
		if matrix.Alias != "" {
			return matrix.Alias
		}
		return sym.Name
	})

	args := g.scalarParamList(false)
	args = append(args, g.baseCallArgs(symbols, names)...)
	args = append(args, cfir.FlagsName, cfir.StreamPtrParam)
	return fmt.Sprintf("launcher_%s(%s);", g.baseName, strings.Join(args, ", ")), nil
}

func (g *Generator) baseCallArgs(symbols []*symtab.Symbol, names []string) []string {
	args := lo.FlatMap(names, func(name string, _ int) []string {
		return []string{name, name + cfir.ExtraOffsetSuffix}
	})
	args = append(args, cfir.NumElementsParam)
	return args
}

func (g *Generator) blockID2D() string {
	lexic := g.ctx.VM.Lexic
	return fmt.Sprintf("%s + %s * %s", lexic.ThreadIdxY, lexic.BlockDimY, lexic.BlockIdxX)
}

func (g *Generator) elementSizeGuard() string {
	return fmt.Sprintf("%s < %s", cfir.BatchIDName, cfir.NumElementsParam)
}

func (g *Generator) flagGuard(w *writer.Writer) string {
	w.Linef("bool isFlagsProvided = (%s != nullptr);", cfir.FlagsName)
	flagValue := fmt.Sprintf("static_cast<bool>(%s[%s])", cfir.FlagsName, cfir.BatchIDName)
	w.Linef("bool allowed = isFlagsProvided ? %s : true;", flagValue)
	return "allowed"
}
