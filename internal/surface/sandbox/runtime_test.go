package sandbox

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRuntimeExecute(t *testing.T) {
	rt := NewRuntime(Config{Timeout: time.Second}, nil)
	defer rt.Close()

	v, err := rt.Execute(context.Background(), `console.log("hi", 2); 40 + 2`)
	require.NoError(t, err)
	assert.EqualValues(t, 42, v)

	entries := rt.Console()
	require.Len(t, entries, 1)
	assert.Equal(t, "log", entries[0].Level)
	assert.Equal(t, "hi 2", entries[0].Message)
}

func TestRuntimeTimeout(t *testing.T) {
	rt := NewRuntime(Config{Timeout: 20 * time.Millisecond}, nil)
	defer rt.Close()

	_, err := rt.Execute(context.Background(), `for (;;) {}`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timeout")

	v, err := rt.Execute(context.Background(), `1`)
	require.NoError(t, err, "runtime usable after an interrupt")
	assert.EqualValues(t, 1, v)
}

func TestRuntimeCloseInterruptsRunningScript(t *testing.T) {
	rt := NewRuntime(Config{Timeout: time.Minute}, nil)

	errc := make(chan error, 1)
	go func() {
		_, err := rt.Execute(context.Background(), `console.log("looping"); for (;;) {}`)
		errc <- err
	}()
	require.Eventually(t, func() bool { return len(rt.Console()) > 0 }, time.Second, time.Millisecond)

	require.NoError(t, rt.Close())
	select {
	case err := <-errc:
		assert.ErrorIs(t, err, errRuntimeClosed)
	case <-time.After(time.Second):
		t.Fatal("script still running after Close")
	}

	_, err := rt.Execute(context.Background(), `1`)
	assert.ErrorIs(t, err, errRuntimeClosed)
}
