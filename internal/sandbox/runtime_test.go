package sandbox

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRuntimeExecution(t *testing.T) {
	runtime, err := New(DefaultConfig())
	require.NoError(t, err)
	defer runtime.Close()

	tests := []struct {
		name   string
		script string
		want   interface{}
	}{
		{name: "simple return", script: "42", want: int64(42)},
		{name: "console log", script: "console.log('hello'); 'test'", want: "test"},
		{name: "math operations", script: "Math.sqrt(16)", want: int64(4)},
		{name: "string operations", script: "'hello'.toUpperCase()", want: "HELLO"},
		{name: "undefined", script: "undefined", want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := runtime.Execute(context.Background(), tt.script)
			require.NoError(t, err)
			assert.Equal(t, tt.want, result.Value)
		})
	}
}

func TestRuntimeSecurity(t *testing.T) {
	runtime, err := New(DefaultConfig())
	require.NoError(t, err)
	defer runtime.Close()

	dangerousScripts := []struct {
		name   string
		script string
	}{
		{name: "require blocked", script: "require('fs')"},
		{name: "process blocked", script: "process.exit(1)"},
		{name: "module blocked", script: "module.exports = {}"},
	}

	for _, tt := range dangerousScripts {
		t.Run(tt.name, func(t *testing.T) {
			result, err := runtime.Execute(context.Background(), tt.script)
			assert.Error(t, err)
			require.NotNil(t, result)
			assert.Nil(t, result.Value)
		})
	}
}

func TestRuntimeTimeout(t *testing.T) {
	config := DefaultConfig()
	config.Timeout = 100 * time.Millisecond

	runtime, err := New(config)
	require.NoError(t, err)
	defer runtime.Close()

	result, err := runtime.Execute(context.Background(), `while (true) {}`)
	require.Error(t, err)
	assert.Error(t, result.Error)

	// The VM stays usable after an interrupt
	result, err = runtime.Execute(context.Background(), "1 + 1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), result.Value)
}

func TestRuntimeContextCancel(t *testing.T) {
	runtime, err := New(DefaultConfig())
	require.NoError(t, err)
	defer runtime.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err = runtime.Execute(ctx, `while (true) {}`)
	assert.Error(t, err)
}

func TestRuntimeConsoleCapture(t *testing.T) {
	runtime, err := New(DefaultConfig())
	require.NoError(t, err)
	defer runtime.Close()

	script := `
		console.log('info message');
		console.warn('warning message', 2);
		console.error('error message');
		'done'
	`

	result, err := runtime.Execute(context.Background(), script)
	require.NoError(t, err)
	require.Len(t, result.Console, 3)

	levels := []string{"log", "warn", "error"}
	for i, entry := range result.Console {
		assert.Equal(t, levels[i], entry.Level)
	}
	assert.Equal(t, "warning message 2", result.Console[1].Message)

	result, err = runtime.Execute(context.Background(), "console.info('second')")
	require.NoError(t, err)
	assert.Len(t, result.Console, 1, "result only carries output of its own call")
	assert.Len(t, runtime.Console(), 4)
}

func TestRuntimeConsoleLimit(t *testing.T) {
	config := DefaultConfig()
	config.MaxConsole = 3

	runtime, err := New(config)
	require.NoError(t, err)
	defer runtime.Close()

	_, err = runtime.Execute(context.Background(), "for (var i = 0; i < 10; i++) console.log(i)")
	require.NoError(t, err)

	entries := runtime.Console()
	require.Len(t, entries, 3)
	assert.Equal(t, "9", entries[2].Message)
}

func TestRuntimeResetAndClose(t *testing.T) {
	runtime, err := New(DefaultConfig())
	require.NoError(t, err)

	_, err = runtime.Execute(context.Background(), "var leaked = 1; console.log('x')")
	require.NoError(t, err)

	require.NoError(t, runtime.Reset())
	result, err := runtime.Execute(context.Background(), "typeof leaked")
	require.NoError(t, err)
	assert.Equal(t, "undefined", result.Value)
	assert.Empty(t, runtime.Console())

	require.NoError(t, runtime.Close())
	_, err = runtime.Execute(context.Background(), "1")
	assert.ErrorIs(t, err, ErrClosed)
}
