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

// Package datatypes holds the allocation placeholders that symbols of
// kind SharedMem/Register reference: sizing is filled in after
// construction, by the thread-block occupancy policy (mults per block) and the
// optimizer (bytes per chain instance).
package datatypes

import "fmt"

// ShrMemObject is the backing allocation for one kernel's shared
// memory. SizePerMult is set by the optimizer's offset-assignment
// pass; MultsPerBlock by the thread-block occupancy policy. Total size
// is deferred until both are known.
type ShrMemObject struct {
	Name          string
	sizePerMult   int
	multsPerBlock int
}

func NewShrMemObject(name string) *ShrMemObject {
	return &ShrMemObject{Name: name}
}

func (o *ShrMemObject) SetSizePerMult(n int)   { o.sizePerMult = n }
func (o *ShrMemObject) SetMultsPerBlock(n int) { o.multsPerBlock = n }
func (o *ShrMemObject) SizePerMult() int       { return o.sizePerMult }
func (o *ShrMemObject) MultsPerBlock() int     { return o.multsPerBlock }
func (o *ShrMemObject) TotalSize() int         { return o.sizePerMult * o.multsPerBlock }

// Ready reports whether SizePerMult has been populated by the
// optimizer; used as the deferred-readiness gate for shared-memory
// allocations and loaders.
func (o *ShrMemObject) Ready() bool { return o.sizePerMult != 0 }

func (o *ShrMemObject) String() string {
	if !o.Ready() {
		return fmt.Sprintf("name %s: total size = not yet defined", o.Name)
	}
	return fmt.Sprintf("name %s: total size = %d", o.Name, o.TotalSize())
}

// RegMemObject is the backing allocation for a per-thread register
// tile, shaped [rows, cols].
type RegMemObject struct {
	Name string
	Size [2]int
}

func NewRegMemObject(name string, size [2]int) *RegMemObject {
	return &RegMemObject{Name: name, Size: size}
}

func (o *RegMemObject) String() string {
	return fmt.Sprintf("name: %s; size = %v", o.Name, o.Size)
}
