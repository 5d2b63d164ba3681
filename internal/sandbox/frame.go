package sandbox

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"sync/atomic"

	"github.com/GriffinCanCode/remplhost/internal/transport"
	"github.com/dop251/goja"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Poster receives the messages a frame sends to its parent window
type Poster interface {
	Post(ev transport.MessageEvent)
}

// FrameOptions describes the page a frame hosts
type FrameOptions struct {
	URL    string // exposed to scripts as location.href
	Origin string // origin reported on host messages; "*" when empty
}

type eventListener struct {
	value goja.Value
	fn    goja.Callable
}

// Frame is an embedded rempl environment: a goja VM that talks to the host
// only through postMessage. It implements transport.Endpoint.
//
// Scripts see window/self, location.href, parent.postMessage(data, origin)
// and addEventListener("message", fn). Host messages arrive as events with
// data, origin and source fields.
type Frame struct {
	id      string
	url     string
	origin  string
	host    Poster
	runtime *Runtime
	logger  *zap.Logger

	// Guarded by the runtime lock
	listeners []eventListener
	parse     goja.Callable
	stringify goja.Callable
	parent    *goja.Object

	attached   atomic.Bool
	detachOnce sync.Once
	release    func(*Runtime)
}

// NewFrame installs the frame globals into rt and attaches the frame to host
func NewFrame(host Poster, rt *Runtime, opts FrameOptions) (*Frame, error) {
	if host == nil || rt == nil {
		return nil, errors.New("frame requires a host and a runtime")
	}

	origin := opts.Origin
	if origin == "" {
		origin = "*"
	}

	f := &Frame{
		id:      uuid.New().String(),
		url:     opts.URL,
		origin:  origin,
		host:    host,
		runtime: rt,
		logger:  rt.logger.With(zap.String("url", opts.URL)),
	}

	if _, err := rt.Do(context.Background(), f.install); err != nil {
		return nil, fmt.Errorf("failed to install frame globals: %w", err)
	}

	f.attached.Store(true)
	return f, nil
}

// install sets up the browser-like globals a rempl environment expects
func (f *Frame) install(vm *goja.Runtime) (goja.Value, error) {
	json := vm.Get("JSON").ToObject(vm)
	var ok bool
	if f.parse, ok = goja.AssertFunction(json.Get("parse")); !ok {
		return nil, errors.New("JSON.parse unavailable")
	}
	if f.stringify, ok = goja.AssertFunction(json.Get("stringify")); !ok {
		return nil, errors.New("JSON.stringify unavailable")
	}

	global := vm.GlobalObject()

	f.parent = vm.NewObject()
	if err := f.parent.Set("postMessage", f.postToHost); err != nil {
		return nil, err
	}

	location := vm.NewObject()
	_ = location.Set("href", f.url)
	_ = location.Set("origin", originOf(f.url))

	for name, value := range map[string]interface{}{
		"window":              global,
		"self":                global,
		"parent":              f.parent,
		"location":            location,
		"addEventListener":    f.addEventListener,
		"removeEventListener": f.removeEventListener,
	} {
		if err := vm.Set(name, value); err != nil {
			return nil, fmt.Errorf("failed to set %s: %w", name, err)
		}
	}

	return nil, nil
}

// postToHost implements parent.postMessage inside the VM
func (f *Frame) postToHost(call goja.FunctionCall) goja.Value {
	if !f.attached.Load() {
		return goja.Undefined()
	}

	encoded, err := f.stringify(goja.Undefined(), call.Argument(0))
	if err != nil || goja.IsUndefined(encoded) {
		f.logger.Debug("Dropped unserializable message", zap.Error(err))
		return goja.Undefined()
	}

	env, err := transport.DecodeEnvelope([]byte(encoded.String()))
	if err != nil {
		f.logger.Debug("Dropped non-envelope message", zap.Error(err))
		return goja.Undefined()
	}

	f.host.Post(transport.MessageEvent{Source: f, Data: env})
	return goja.Undefined()
}

func (f *Frame) addEventListener(call goja.FunctionCall) goja.Value {
	if call.Argument(0).String() != "message" {
		return goja.Undefined()
	}
	value := call.Argument(1)
	fn, ok := goja.AssertFunction(value)
	if !ok {
		return goja.Undefined()
	}
	for _, l := range f.listeners {
		if l.value.SameAs(value) {
			return goja.Undefined()
		}
	}
	f.listeners = append(f.listeners, eventListener{value: value, fn: fn})
	return goja.Undefined()
}

func (f *Frame) removeEventListener(call goja.FunctionCall) goja.Value {
	if call.Argument(0).String() != "message" {
		return goja.Undefined()
	}
	value := call.Argument(1)
	for i, l := range f.listeners {
		if l.value.SameAs(value) {
			f.listeners = append(f.listeners[:i:i], f.listeners[i+1:]...)
			break
		}
	}
	return goja.Undefined()
}

// ID returns the frame's unique id
func (f *Frame) ID() string { return f.id }

// URL returns the page URL the frame was opened with
func (f *Frame) URL() string { return f.url }

// Load runs a page script inside the frame
func (f *Frame) Load(ctx context.Context, script string) error {
	if !f.attached.Load() {
		return ErrDetached
	}
	if _, err := f.runtime.Execute(ctx, script); err != nil {
		return fmt.Errorf("failed to run frame script: %w", err)
	}
	return nil
}

// PostMessage delivers env to the frame's message listeners. Exceptions
// thrown by a listener are logged and do not stop the others.
func (f *Frame) PostMessage(env transport.Envelope) error {
	raw, err := env.Marshal()
	if err != nil {
		return err
	}

	_, err = f.runtime.Do(context.Background(), func(vm *goja.Runtime) (goja.Value, error) {
		if !f.attached.Load() {
			return nil, ErrDetached
		}

		data, err := f.parse(goja.Undefined(), vm.ToValue(string(raw)))
		if err != nil {
			return nil, err
		}

		listeners := append([]eventListener(nil), f.listeners...)
		for _, l := range listeners {
			event := vm.NewObject()
			_ = event.Set("data", data)
			_ = event.Set("origin", f.origin)
			_ = event.Set("source", f.parent)

			if _, err := l.fn(goja.Undefined(), event); err != nil {
				var interrupted *goja.InterruptedError
				if errors.As(err, &interrupted) {
					return nil, err
				}
				f.logger.Warn("Message listener threw", zap.Error(err))
			}
		}
		return nil, nil
	})
	return err
}

// Attached reports whether the frame is still part of the host
func (f *Frame) Attached() bool {
	return f.attached.Load()
}

// Detach removes the frame from the host. Listeners are dropped and the
// runtime is released; later messages in either direction are discarded.
// It must not be called from inside a frame script.
func (f *Frame) Detach() {
	f.detachOnce.Do(func() {
		_, _ = f.runtime.Do(context.Background(), func(*goja.Runtime) (goja.Value, error) {
			f.attached.Store(false)
			f.listeners = nil
			return nil, nil
		})
		if f.release != nil {
			f.release(f.runtime)
		}
	})
}

// Console returns the frame's console output
func (f *Frame) Console() []LogEntry {
	return f.runtime.Console()
}

func originOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "null"
	}
	return u.Scheme + "://" + u.Host
}
