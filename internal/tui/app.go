package tui

import (
	"context"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/wavesbyte/cibtron-tool/internal/api"
	"github.com/wavesbyte/cibtron-tool/internal/config"
	"github.com/wavesbyte/cibtron-tool/internal/push"
)

// Run starts the TUI application. pc may be nil to run without live job
// status.
func Run(ctx context.Context, client *api.Client, pc *push.Client, cfg *config.Config, logger *zap.Logger) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var events chan push.Message
	if pc != nil {
		events = make(chan push.Message, 64)
		go func() {
			if err := pc.Run(ctx, events); err != nil && ctx.Err() == nil {
				logger.Warn("push channel stopped", zap.Error(err))
			}
		}()
	}

	opts := Options{
		PollInterval:  cfg.PollInterval,
		HTTPTimeout:   cfg.HTTPTimeout,
		SerialTimeout: cfg.SerialTimeout,
		Brand:         cfg.Brand,
		Model:         cfg.Model,
		AutoReset:     cfg.AutoReset,
		Logger:        logger,
	}
	if events != nil {
		opts.Push = events
	}

	m := NewModel(client, opts)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))

	final, err := p.Run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error running TUI: %v\n", err)
		return err
	}
	if fm, ok := final.(Model); ok && fm.loggedOut {
		fmt.Println("Session closed.")
	}
	return nil
}
