package tui

import (
	"walletfolio/pkg/config"
	"walletfolio/pkg/watcher"

	tea "github.com/charmbracelet/bubbletea"
)

// Start runs the dashboard until the user quits.
func Start(w *watcher.Watcher, cfg config.Config, version string) error {
	Version = version
	m := initialModel(w, cfg)
	defer w.Unsubscribe(m.sub)

	p := tea.NewProgram(m, tea.WithAltScreen())
	_, err := p.Run()
	return err
}
