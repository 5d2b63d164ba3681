package editor

import (
	"context"
	"errors"
	"path/filepath"
	"time"

	"github.com/GriffinCanCode/remplhost/internal/transport"
	"go.uber.org/zap"
)

// Methods an environment may call on the host
const (
	MethodSetStatusBarContent = "setStatusBarContent"
	MethodOpenFile            = "openFile"
	MethodGetContent          = "getContent"
	MethodPublisherChanged    = "publisherChanged"
	MethodGetHostInfo         = "getHostInfo"
)

const resolveTimeout = 5 * time.Second

// HostInfo is the getHostInfo reply
type HostInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	Root    string `json:"root"`
	Views   int    `json:"views"`
	Debug   bool   `json:"debug"`
}

// OpenFileResult is the openFile reply
type OpenFileResult struct {
	OK    bool   `json:"ok"`
	Path  string `json:"path,omitempty"`
	Error string `json:"error,omitempty"`
}

// requestHandler returns the subscriber serving calls from one endpoint.
// view is nil for endpoints that are not embedded in a pane.
func (p *Plugin) requestHandler(view *RemplView) transport.Listener {
	return func(args ...interface{}) {
		args, reply := splitReply(args)
		if len(args) == 0 {
			return
		}
		method, ok := args[0].(string)
		if !ok {
			return
		}
		params := args[1:]
		p.metrics.RecordRemoteRequest(method)

		switch method {
		case MethodSetStatusBarContent:
			html, _ := stringArg(params, 0)
			p.workspace.StatusBar().SetContent(html)

		case MethodOpenFile:
			result := p.openFile(params)
			if reply != nil {
				reply(result)
			}

		case MethodGetContent:
			if reply != nil {
				reply(p.activeContent())
			}

		case MethodPublisherChanged:
			if view != nil && len(params) > 0 {
				view.SetPublisher(params[0])
			}

		case MethodGetHostInfo:
			if reply != nil {
				reply(p.HostInfo())
			}

		default:
			p.logger.Debug("Unknown remote request", zap.String("method", method))
		}
	}
}

// openFile resolves params[0] in the workspace and opens it. Line and
// column are 1-based.
func (p *Plugin) openFile(params []interface{}) OpenFileResult {
	ref, ok := stringArg(params, 0)
	if !ok || ref == "" {
		return OpenFileResult{Error: "path is required"}
	}

	ctx, cancel := context.WithTimeout(context.Background(), resolveTimeout)
	defer cancel()

	path, err := p.locator.Resolve(ctx, ref)
	if err != nil {
		if !errors.Is(err, ErrFileNotFound) {
			p.logger.Warn("Failed to resolve file", zap.String("ref", ref), zap.Error(err))
		}
		return OpenFileResult{Error: err.Error()}
	}

	line, _ := intArg(params, 1)
	column, _ := intArg(params, 2)
	if _, err := p.workspace.OpenFile(path, max(line-1, 0), max(column-1, 0)); err != nil {
		return OpenFileResult{Error: err.Error()}
	}

	rel, err := filepath.Rel(p.workspace.Root(), path)
	if err != nil {
		rel = path
	}
	return OpenFileResult{OK: true, Path: filepath.ToSlash(rel)}
}

// activeContent reads the active editor's file. It returns nil when no
// editor is active.
func (p *Plugin) activeContent() interface{} {
	editor := p.workspace.ActiveEditor()
	if editor == nil {
		return nil
	}
	content, err := ReadContent(editor.Path())
	if err != nil {
		p.logger.Warn("Failed to read content", zap.String("path", editor.Path()), zap.Error(err))
		return map[string]string{"error": err.Error()}
	}
	return content
}

// splitReply separates a trailing reply continuation from call arguments
func splitReply(args []interface{}) ([]interface{}, transport.Callback) {
	if n := len(args); n > 0 {
		if cb, ok := args[n-1].(transport.Callback); ok {
			return args[:n-1], cb
		}
	}
	return args, nil
}

func stringArg(args []interface{}, i int) (string, bool) {
	if i >= len(args) {
		return "", false
	}
	s, ok := args[i].(string)
	return s, ok
}

func intArg(args []interface{}, i int) (int, bool) {
	if i >= len(args) {
		return 0, false
	}
	switch v := args[i].(type) {
	case float64:
		return int(v), true
	case int:
		return v, true
	case int64:
		return int(v), true
	default:
		return 0, false
	}
}
