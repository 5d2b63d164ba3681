package editor

import (
	"context"
	"fmt"

	"github.com/GriffinCanCode/remplhost/internal/remote"
	"github.com/GriffinCanCode/remplhost/internal/sandbox"
	"github.com/GriffinCanCode/remplhost/internal/transport"
	"go.uber.org/zap"
)

// Opener creates the endpoint embedding a rempl client. attach runs after
// the endpoint exists and before the client's scripts start, so callers can
// wait for its handshake.
type Opener interface {
	Open(ctx context.Context, url string, attach func(transport.Endpoint)) error
}

// ScriptLoader fetches the scripts of a rempl client page
type ScriptLoader interface {
	LoadClient(ctx context.Context, url string) ([]remote.Script, error)
}

// SandboxOpener runs rempl clients in sandbox frames
type SandboxOpener struct {
	pool   *sandbox.Pool
	host   sandbox.Poster
	loader ScriptLoader
	logger *zap.Logger
}

// NewSandboxOpener creates an opener that loads clients with loader into
// frames from pool, posting their messages to host
func NewSandboxOpener(pool *sandbox.Pool, host sandbox.Poster, loader ScriptLoader, logger *zap.Logger) *SandboxOpener {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SandboxOpener{pool: pool, host: host, loader: loader, logger: logger.Named("opener")}
}

// Open fetches the client, attaches a fresh frame and runs the client's
// scripts in document order. A failing script is logged and the rest still
// run.
func (o *SandboxOpener) Open(ctx context.Context, url string, attach func(transport.Endpoint)) error {
	scripts, err := o.loader.LoadClient(ctx, url)
	if err != nil {
		return fmt.Errorf("failed to load client: %w", err)
	}

	frame, err := o.pool.Open(ctx, o.host, sandbox.FrameOptions{URL: url})
	if err != nil {
		return fmt.Errorf("failed to open frame: %w", err)
	}
	attach(frame)

	for _, script := range scripts {
		if err := frame.Load(ctx, script.Code); err != nil {
			o.logger.Warn("Client script failed",
				zap.String("url", url),
				zap.String("src", script.Source),
				zap.Error(err))
		}
	}

	o.logger.Info("Client opened", zap.String("url", url), zap.Int("scripts", len(scripts)))
	return nil
}
