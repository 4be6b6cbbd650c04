// Copyright 2026 The espbridge Authors.
// SPDX-License-Identifier: Apache-2.0
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

package espbridge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccumulatorIngestAndPeek(t *testing.T) {
	t.Parallel()

	acc := NewAccumulator(16)
	require.NoError(t, acc.Ingest([]byte{1, 2, 3, 4}))

	assert.Equal(t, 4, acc.Available())
	assert.Equal(t, 12, acc.Free())
	assert.Equal(t, []byte{1, 2, 3, 4}, acc.Peek(0, 4))
	assert.Equal(t, []byte{2, 3}, acc.Peek(1, 2))
}

func TestAccumulatorAdvanceAndCompact(t *testing.T) {
	t.Parallel()

	acc := NewAccumulator(8)
	require.NoError(t, acc.Ingest([]byte{1, 2, 3, 4}))

	acc.Advance(2)
	assert.Equal(t, 2, acc.Available())
	assert.Equal(t, []byte{3, 4}, acc.Peek(0, 2))

	// Compact is a no-op while unread bytes remain.
	acc.Compact()
	assert.Equal(t, 2, acc.Available())
	assert.Equal(t, 4, acc.Free())

	acc.Advance(2)
	acc.Compact()
	assert.Equal(t, 0, acc.Available())
	assert.Equal(t, 8, acc.Free())

	// The full capacity is usable again after compaction.
	require.NoError(t, acc.Ingest(make([]byte, 8)))
	assert.Equal(t, 8, acc.Available())
}

func TestAccumulatorOverflow(t *testing.T) {
	t.Parallel()

	acc := NewAccumulator(4)
	require.NoError(t, acc.Ingest([]byte{1, 2, 3}))

	err := acc.Ingest([]byte{4, 5})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBufferOverflow)

	// A fill that lands exactly on capacity is fine.
	require.NoError(t, acc.Ingest([]byte{4}))
	assert.Equal(t, 0, acc.Free())
}

func TestAccumulatorContractViolations(t *testing.T) {
	t.Parallel()

	acc := NewAccumulator(4)
	require.NoError(t, acc.Ingest([]byte{1, 2}))

	assert.Panics(t, func() { acc.Advance(3) })
	assert.Panics(t, func() { acc.Peek(1, 2) })
}
