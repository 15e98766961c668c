// Copyright (C) 2025 Beacon Labs (dev@beaconhq.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package conversation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBeginAndRelease(t *testing.T) {
	r := NewRegistry(nil)
	ctx, release := r.Begin(context.Background(), "c1")

	assert.Equal(t, 1, r.ActiveCount())
	assert.NoError(t, ctx.Err())

	release()
	assert.Equal(t, 0, r.ActiveCount())
	assert.ErrorIs(t, ctx.Err(), context.Canceled)
}

func TestCancelAbortsLiveStream(t *testing.T) {
	r := NewRegistry(nil)
	ctx, release := r.Begin(context.Background(), "c1")
	defer release()

	assert.True(t, r.Cancel("c1"))
	assert.ErrorIs(t, ctx.Err(), context.Canceled)
	assert.False(t, r.Cancel("c1"), "second cancel finds nothing")
}

func TestSecondStreamSupersedesFirst(t *testing.T) {
	r := NewRegistry(nil)
	first, releaseFirst := r.Begin(context.Background(), "c1")
	second, releaseSecond := r.Begin(context.Background(), "c1")
	defer releaseSecond()

	assert.ErrorIs(t, first.Err(), context.Canceled, "old stream cancelled by its successor")
	assert.NoError(t, second.Err())
	assert.Equal(t, 1, r.ActiveCount())

	// Releasing the superseded stream must not evict the live one.
	releaseFirst()
	assert.Equal(t, 1, r.ActiveCount())
}

func TestCloseCancelsEverything(t *testing.T) {
	r := NewRegistry(nil)
	a, _ := r.Begin(context.Background(), "c1")
	b, _ := r.Begin(context.Background(), "c2")

	r.Close()
	assert.ErrorIs(t, a.Err(), context.Canceled)
	assert.ErrorIs(t, b.Err(), context.Canceled)
	assert.Equal(t, 0, r.ActiveCount())

	// New registrations after Close come back pre-cancelled.
	ctx, release := r.Begin(context.Background(), "c3")
	defer release()
	assert.ErrorIs(t, ctx.Err(), context.Canceled)
}
