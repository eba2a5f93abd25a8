package tui

import (
	"context"
	"fmt"
	"time"

	"walletfolio/pkg/watcher"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case watcher.Event:
		cmds = append(cmds, listenForWatcher(m.sub))
		m.refreshSnapshot()

	case refreshDoneMsg:
		m.refreshing = false
		m.refreshSnapshot()
		m.statusMessage = "Balances refreshed"
		cmds = append(cmds, clearStatusAfter(2*time.Second))

	case privacyTimeoutMsg:
		if m.config.PrivacyTimeoutSeconds <= 0 || m.privacyMode {
			break
		}
		timeoutDuration := time.Duration(m.config.PrivacyTimeoutSeconds) * time.Second
		if time.Since(m.lastInteraction) >= timeoutDuration {
			m.privacyMode = true
			m.statusMessage = "Privacy Mode enabled due to inactivity"
			cmds = append(cmds, clearStatusAfter(2*time.Second))
		} else {
			remaining := timeoutDuration - time.Since(m.lastInteraction)
			cmds = append(cmds, tea.Tick(remaining, func(t time.Time) tea.Msg {
				return privacyTimeoutMsg{}
			}))
		}

	case tea.KeyMsg:
		m.lastInteraction = time.Now()
		return m.handleKey(msg)

	case uiTickMsg:
		cmds = append(cmds, tea.Tick(time.Second, func(t time.Time) tea.Msg { return uiTickMsg(t) }))

	case clearStatusMsg:
		m.statusMessage = ""
	}

	if m.snap.Price.Loading || m.refreshing {
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

func (m model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	if m.adding {
		return m.handleAddKey(msg)
	}
	if m.editing {
		return m.handleEditKey(msg)
	}
	if m.confirmingDelete {
		switch msg.String() {
		case "y", "Y", "enter":
			if w, ok := m.selectedWallet(); ok {
				m.watcher.RemoveWallet(w.ID)
				m.statusMessage = fmt.Sprintf("Removed %s", w.Label)
				m.refreshSnapshot()
				cmds = append(cmds, clearStatusAfter(2*time.Second))
			}
			m.confirmingDelete = false
		case "n", "N", "q", "esc":
			m.confirmingDelete = false
		}
		return m, tea.Batch(cmds...)
	}

	if msg.String() == "?" {
		m.showHelp = !m.showHelp
		return m, nil
	}
	if m.showHelp {
		if msg.String() == "q" || msg.String() == "esc" {
			m.showHelp = false
		}
		return m, nil
	}

	if msg.String() == "P" {
		m.privacyMode = !m.privacyMode
		if !m.privacyMode && m.config.PrivacyTimeoutSeconds > 0 {
			cmds = append(cmds, tea.Tick(time.Duration(m.config.PrivacyTimeoutSeconds)*time.Second, func(t time.Time) tea.Msg {
				return privacyTimeoutMsg{}
			}))
		}
		return m, tea.Batch(cmds...)
	}

	if m.showGraph {
		switch msg.String() {
		case "g", "q", "esc":
			m.showGraph = false
		case "ctrl+c":
			return m, tea.Quit
		}
		return m, nil
	}

	switch msg.String() {
	case "q", "ctrl+c", "esc":
		return m, tea.Quit

	case "tab", "right", "l":
		m.moveSelection(1)
	case "shift+tab", "left", "h":
		m.moveSelection(-1)

	case "a":
		m.openAddForm()
		return m, textinput.Blink

	case "e":
		if w, ok := m.selectedWallet(); ok {
			m.editing = true
			m.editInput.SetValue(w.Label)
			m.editInput.CursorEnd()
			m.editInput.Focus()
			return m, textinput.Blink
		}

	case "d":
		if _, ok := m.selectedWallet(); ok {
			m.confirmingDelete = true
		}

	case "p":
		if w, ok := m.selectedWallet(); ok {
			m.watcher.SetPrimaryWallet(w.ID)
			m.statusMessage = fmt.Sprintf("%s is now the primary wallet", w.Label)
			m.refreshSnapshot()
			cmds = append(cmds, clearStatusAfter(2*time.Second))
		}

	case "v":
		mode := m.watcher.ToggleViewMode()
		m.statusMessage = fmt.Sprintf("Switched to %s view", mode)
		m.refreshSnapshot()
		cmds = append(cmds, clearStatusAfter(2*time.Second))

	case "g":
		m.showGraph = true

	case "x":
		if m.watcher.Disconnect() {
			m.statusMessage = "Wallet disconnected"
		} else {
			m.statusMessage = "No wallet connected"
		}
		m.refreshSnapshot()
		cmds = append(cmds, clearStatusAfter(2*time.Second))

	case "r":
		if !m.refreshing && len(m.snap.Wallets) > 0 {
			m.refreshing = true
			m.statusMessage = "Refreshing balances..."
			w := m.watcher
			cmds = append(cmds, m.spinner.Tick, func() tea.Msg {
				ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
				defer cancel()
				w.RefreshBalances(ctx)
				return refreshDoneMsg{}
			})
		}

	case "c":
		if w, ok := m.selectedWallet(); ok {
			if err := clipboard.WriteAll(w.Address); err != nil {
				m.statusMessage = "Failed to copy to clipboard"
			} else if m.privacyMode {
				m.statusMessage = "Full address copied (Privacy Mode active)!"
			} else {
				m.statusMessage = "Full address copied to clipboard!"
			}
			cmds = append(cmds, clearStatusAfter(2*time.Second))
		}

	case "o":
		if w, ok := m.selectedWallet(); ok {
			url := m.explorerURL(w.Address)
			switch {
			case url == "":
				m.statusMessage = "Explorer URL not configured"
			case openBrowser(url) != nil:
				m.statusMessage = "Failed to open browser"
			default:
				m.statusMessage = "Opened in browser"
			}
			cmds = append(cmds, clearStatusAfter(2*time.Second))
		}
	}

	return m, tea.Batch(cmds...)
}

func (m model) handleAddKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.closeAddForm()
		m.statusMessage = ""
		return m, nil
	case "tab", "shift+tab", "up", "down":
		m.addFocus = cycle(m.addFocus, len(m.addressInputs), 1)
		m.focusAddInput()
		return m, nil
	case "enter":
		if m.addFocus == 0 && m.addressInputs[1].Value() == "" {
			m.addFocus = 1
			m.focusAddInput()
			return m, nil
		}
		m.submitAdd()
		return m, clearStatusAfter(3 * time.Second)
	}

	var cmd tea.Cmd
	m.addressInputs[m.addFocus], cmd = m.addressInputs[m.addFocus].Update(msg)
	return m, cmd
}

func (m model) handleEditKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.editing = false
		m.editInput.Blur()
		return m, nil
	case "enter":
		m.submitEdit()
		return m, clearStatusAfter(2 * time.Second)
	}

	var cmd tea.Cmd
	m.editInput, cmd = m.editInput.Update(msg)
	return m, cmd
}
