// Package debug starts the eino visual debugging server when enabled.
package debug

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino-ext/devops"
	"go.uber.org/zap"

	"github.com/dyike/BrokerGo/config"
)

type EinoDebugger struct {
	enabled bool
	port    int
	logger  *zap.Logger
}

func NewEinoDebugger(cfg *config.Config, logger *zap.Logger) *EinoDebugger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EinoDebugger{
		enabled: cfg.EinoDebugEnabled,
		port:    cfg.EinoDebugPort,
		logger:  logger,
	}
}

// Initialize must run before any graph or agent is compiled so they are
// registered with the debug server.
func (d *EinoDebugger) Initialize(ctx context.Context) error {
	if !d.enabled {
		return nil
	}
	if err := devops.Init(ctx); err != nil {
		return fmt.Errorf("failed to initialize Eino debug plugin: %w", err)
	}
	d.logger.Info("eino debug server started", zap.String("url", d.URL()))
	return nil
}

func (d *EinoDebugger) IsEnabled() bool {
	return d.enabled
}

func (d *EinoDebugger) URL() string {
	if !d.enabled {
		return ""
	}
	return fmt.Sprintf("http://localhost:%d", d.port)
}
