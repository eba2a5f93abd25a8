package tui

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"walletfolio/pkg/models"
	"walletfolio/pkg/registry"
	"walletfolio/pkg/watcher"

	tea "github.com/charmbracelet/bubbletea"
)

func listenForWatcher(sub watcher.Subscriber) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-sub
		if !ok {
			return nil
		}
		return ev
	}
}

func clearStatusAfter(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return clearStatusMsg{}
	})
}

// cycle moves idx by delta within [0, n), wrapping at both ends.
func cycle(idx, n, delta int) int {
	if n == 0 {
		return 0
	}
	return ((idx+delta)%n + n) % n
}

// selectedIndex is the position of the selected wallet, or -1.
func (m model) selectedIndex() int {
	for i, w := range m.snap.Wallets {
		if w.ID == m.snap.SelectedWalletID {
			return i
		}
	}
	return -1
}

func (m model) selectedWallet() (models.Wallet, bool) {
	if i := m.selectedIndex(); i >= 0 {
		return m.snap.Wallets[i], true
	}
	return models.Wallet{}, false
}

func (m *model) refreshSnapshot() {
	m.snap = m.watcher.Snapshot()
	m.lastUpdate = time.Now()
}

// moveSelection selects the wallet delta positions away from the current one.
func (m *model) moveSelection(delta int) {
	n := len(m.snap.Wallets)
	if n == 0 {
		return
	}
	idx := m.selectedIndex()
	if idx < 0 {
		idx = 0
	} else {
		idx = cycle(idx, n, delta)
	}
	m.watcher.SelectWallet(m.snap.Wallets[idx].ID)
	m.refreshSnapshot()
}

// submitAdd registers the wallet typed into the add form. On an invalid
// address the form stays open with the error shown.
func (m *model) submitAdd() {
	address := strings.TrimSpace(m.addressInputs[0].Value())
	label := strings.TrimSpace(m.addressInputs[1].Value())

	wallet, created, err := m.watcher.AddWallet(address, label)
	if errors.Is(err, registry.ErrInvalidAddress) {
		m.statusMessage = err.Error()
		m.addFocus = 0
		m.focusAddInput()
		return
	}
	if err != nil {
		m.statusMessage = fmt.Sprintf("Failed to add wallet: %v", err)
		return
	}

	if created {
		m.statusMessage = fmt.Sprintf("Added %s", wallet.Label)
	} else {
		m.watcher.SelectWallet(wallet.ID)
		m.statusMessage = fmt.Sprintf("Already tracking %s as %s", m.maskAddress(wallet.Address), wallet.Label)
	}
	m.closeAddForm()
	m.refreshSnapshot()
}

func (m *model) openAddForm() {
	m.adding = true
	m.addFocus = 0
	for i := range m.addressInputs {
		m.addressInputs[i].SetValue("")
	}
	m.focusAddInput()
}

func (m *model) closeAddForm() {
	m.adding = false
	for i := range m.addressInputs {
		m.addressInputs[i].Blur()
		m.addressInputs[i].SetValue("")
	}
}

func (m *model) focusAddInput() {
	for i := range m.addressInputs {
		if i == m.addFocus {
			m.addressInputs[i].Focus()
		} else {
			m.addressInputs[i].Blur()
		}
	}
}

func (m *model) submitEdit() {
	w, ok := m.selectedWallet()
	m.editing = false
	m.editInput.Blur()
	if !ok {
		return
	}
	label := strings.TrimSpace(m.editInput.Value())
	if label == "" {
		m.statusMessage = "Label unchanged"
		return
	}
	m.watcher.UpdateWallet(w.ID, models.WalletUpdate{Label: &label})
	m.statusMessage = "Label updated"
	m.refreshSnapshot()
}

// walletValuation finds the derived figures for wallet id.
func (m model) walletValuation(id string) (models.WalletValuation, bool) {
	for _, wv := range m.snap.Valuation.Wallets {
		if wv.WalletID == id {
			return wv, true
		}
	}
	return models.WalletValuation{}, false
}

func (m model) explorerURL(address string) string {
	if m.config.ExplorerURL == "" {
		return ""
	}
	return fmt.Sprintf("%s/address/%s", strings.TrimRight(m.config.ExplorerURL, "/"), address)
}
