package tui

import (
	"context"
	"errors"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"pkt.systems/pslog"
)

// Run starts the terminal UI on the alternate screen and blocks until it exits.
// The session, if one was created, is torn down on the way out.
func Run(ctx context.Context, deps Deps) error {
	p := tea.NewProgram(New(ctx, deps), tea.WithAltScreen(), tea.WithContext(ctx))
	final, err := p.Run()

	if m, ok := final.(Model); ok {
		m.stop()
		if sess := m.Session(); sess != nil {
			tctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
			defer cancel()
			if terr := deps.Bootstrap.Teardown(tctx, sess); terr != nil {
				pslog.Ctx(ctx).Warn("session teardown failed", "session", sess.ID, "err", terr)
			}
		}
	}
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
