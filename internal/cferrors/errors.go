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

// Package cferrors defines the two error kinds the kernel synthesis
// pipeline raises: a user-visible GenerationError and a core-invariant
// InternalError.
package cferrors

import "fmt"

// GenerationError reports a user-visible inconsistency in the
// generator's inputs: mismatched matrix shapes, a contraction-length
// disagreement under strict matching, an instruction that reached
// emission without being ready, or an unrecognized arch/backend.
type GenerationError struct {
	msg   string
	cause error
}

func Generation(format string, args ...any) *GenerationError {
	return &GenerationError{msg: fmt.Sprintf(format, args...)}
}

func WrapGeneration(cause error, format string, args ...any) *GenerationError {
	return &GenerationError{msg: fmt.Sprintf(format, args...), cause: cause}
}

func (e *GenerationError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("generation error: %s: %v", e.msg, e.cause)
	}
	return fmt.Sprintf("generation error: %s", e.msg)
}

func (e *GenerationError) Unwrap() error { return e.cause }

// InternalError reports a violated builder invariant: a symbol of
// unexpected kind, a missing DataView, an addressing mismatch. It
// indicates a bug in the pipeline itself, not in the caller's input.
type InternalError struct {
	msg   string
	cause error
}

func Internal(format string, args ...any) *InternalError {
	return &InternalError{msg: fmt.Sprintf(format, args...)}
}

func WrapInternal(cause error, format string, args ...any) *InternalError {
	return &InternalError{msg: fmt.Sprintf(format, args...), cause: cause}
}

func (e *InternalError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("internal error: %s: %v", e.msg, e.cause)
	}
	return fmt.Sprintf("internal error: %s", e.msg)
}

func (e *InternalError) Unwrap() error { return e.cause }
