/*
Package sandbox hosts rempl environments in isolated goja runtimes.

# Overview

A Frame is the Go stand-in for an embedded iframe: its scripts run in their
own VM and can reach the host only through parent.postMessage. Messages the
host posts to the frame are dispatched to the listeners the script registered
with addEventListener("message", fn). Frame implements transport.Endpoint, so
the host transport treats it like any other remote target.

Each runtime has:

  - CPU limits (per-call timeout, context cancellation)
  - API restrictions (no require, process or module; timers are inert)
  - Console capture, mirrored to the zap logger at debug level

# Usage Example

	pool, _ := sandbox.NewPool(sandbox.DefaultConfig(), 4)
	frame, err := pool.Open(ctx, window, sandbox.FrameOptions{URL: url})
	if err != nil {
		return err
	}
	tr.GetEnv(frame, onReady)
	err = frame.Load(ctx, script)

Detaching a frame makes Attached report false, which lets
Transport.CleanupTargets drop its binding, and returns the runtime to the pool.
*/
package sandbox
