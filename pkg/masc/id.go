// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package masc

import (
	"math/rand"
	"sync"

	"github.com/google/uuid"
)

// IDGenerator mints entity identifiers. The default is random UUID v4;
// tests install a seeded generator for reproducible ids.
type IDGenerator interface {
	NewID() string
}

type randomIDs struct{}

func (randomIDs) NewID() string { return uuid.NewString() }

// RandomIDs returns the production UUID v4 generator.
func RandomIDs() IDGenerator { return randomIDs{} }

type seededIDs struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// SeededIDs returns a deterministic generator producing valid UUID v4
// strings from the given seed.
func SeededIDs(seed int64) IDGenerator {
	return &seededIDs{rng: rand.New(rand.NewSource(seed))}
}

func (g *seededIDs) NewID() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	var b [16]byte
	g.rng.Read(b[:])
	b[6] = (b[6] & 0x0f) | 0x40 // version 4
	b[8] = (b[8] & 0x3f) | 0x80 // variant 10
	id, err := uuid.FromBytes(b[:])
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
