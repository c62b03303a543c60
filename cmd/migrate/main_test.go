package main

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"keyhouse/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecute(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)

	run := func(args ...string) (string, error) {
		var out bytes.Buffer
		err := execute(ctx, db, args, &out)
		return out.String(), err
	}

	out, err := run("status")
	require.NoError(t, err)
	assert.Contains(t, out, "driver=sqlite applied=3 pending=0")

	out, err = run("down", "3")
	require.NoError(t, err)
	assert.Equal(t, "rolled back 000003\n", out)

	out, err = run("list")
	require.NoError(t, err)
	assert.Contains(t, out, "[x] 000001_stage_history_open_row\n")
	assert.Contains(t, out, "[ ] 000003_open_reschedule_per_inspection\n")

	out, err = run("STATUS")
	require.NoError(t, err)
	assert.Contains(t, out, "pending=1")
	assert.Contains(t, out, "pending 000003_open_reschedule_per_inspection")

	_, err = run("up")
	require.NoError(t, err)
	out, err = run("status")
	require.NoError(t, err)
	assert.Contains(t, out, "pending=0")

	_, err = run("auto")
	require.NoError(t, err)
}

func TestExecute_BadArguments(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)

	err := execute(ctx, db, nil, &bytes.Buffer{})
	assert.True(t, errors.Is(err, errUsage))

	err = execute(ctx, db, []string{"sideways"}, &bytes.Buffer{})
	assert.True(t, errors.Is(err, errUsage))

	err = execute(ctx, db, []string{"down"}, &bytes.Buffer{})
	assert.Error(t, err)

	err = execute(ctx, db, []string{"down", "three"}, &bytes.Buffer{})
	assert.ErrorContains(t, err, `invalid version "three"`)

	err = execute(ctx, db, []string{"down", "99"}, &bytes.Buffer{})
	assert.ErrorContains(t, err, "not found")
}
