package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"

	"walletfolio/pkg/models"
	"walletfolio/pkg/pricefeed"
	"walletfolio/pkg/utils"
)

func (m model) View() string {
	if m.showHelp {
		return m.viewHelp()
	}
	if m.showGraph {
		return m.viewGraph()
	}
	if m.adding {
		return m.viewAddForm()
	}
	if m.editing {
		return m.viewEditForm()
	}
	if m.confirmingDelete {
		return m.viewConfirmDelete()
	}

	var content string
	if len(m.snap.Wallets) == 0 {
		content = boxStyle.Render(lipgloss.JoinVertical(lipgloss.Center,
			titleStyle.Render("Portfolio Tracker"),
			"\n",
			"No wallets tracked yet.",
			subtleStyle.Render("Press 'a' to add a wallet address."),
		))
	} else {
		content = m.viewPortfolio()
	}

	footer := m.viewFooter()

	h := m.height - 1
	if h < 0 {
		h = 0
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		m.viewTopBar(),
		lipgloss.Place(
			m.width,
			h,
			lipgloss.Center,
			lipgloss.Center,
			lipgloss.JoinVertical(lipgloss.Center, content, "\n", footer),
		),
	)
}

// priceLine renders the unit price, its 24h change and the feed state.
func (m model) priceLine() string {
	p := m.snap.Price
	switch {
	case p.Loading:
		return m.spinner.View() + " Fetching ETH price..."
	case !p.HasQuote && p.State == pricefeed.StateError:
		return errStyle.Render("ETH price unavailable")
	case !p.HasQuote:
		return subtleStyle.Render("ETH price: -")
	}

	change := utils.FormatPercent(p.Quote.USD24hChange)
	changeStyle := infoStyle
	if p.Quote.USD24hChange < 0 {
		changeStyle = errStyle
	}
	line := fmt.Sprintf("ETH %s %s", utils.FormatUSD(p.Quote.USD, 2), changeStyle.Render(change))
	if p.Stale {
		line += warnStyle.Render(" (stale)")
	}
	return line
}

func (m model) viewTopBar() string {
	leftBlock := " " + m.priceLine()

	privacyIndicator := ""
	if m.privacyMode {
		privacyIndicator = "🔒 "
	}
	spinnerView := ""
	if m.refreshing {
		spinnerView = m.spinner.View() + " "
	}
	rightBlock := subtleStyle.Render(fmt.Sprintf("%s%sLast updated: %s ", privacyIndicator, spinnerView, m.lastUpdate.Format("15:04:05")))

	gap := m.width - lipgloss.Width(leftBlock) - lipgloss.Width(rightBlock)
	if gap < 0 {
		gap = 0
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, leftBlock, strings.Repeat(" ", gap), rightBlock)
}

func (m model) viewPortfolio() string {
	v := m.snap.Valuation

	title := "Combined Portfolio"
	if v.Mode == models.ViewIndividual {
		title = "Wallet View"
		if w, ok := m.selectedWallet(); ok {
			title = fmt.Sprintf("Wallet View - %s", w.Label)
		}
	}
	header := lipgloss.JoinHorizontal(lipgloss.Center,
		titleStyle.Render(title), " ",
		modeStyle.Render(fmt.Sprintf("%d wallets", len(m.snap.Wallets))),
	)

	total := valueStyle.Render(m.displayUSD(v.ValueUSD))
	if !v.HasPrice {
		total = subtleStyle.Render("$ -")
	}
	balance := m.displayETH(v.Balance)

	changeStyle := infoStyle
	if v.Change24hUSD < 0 {
		changeStyle = errStyle
	}
	change := subtleStyle.Render("24h: -")
	if v.HasPrice {
		change = changeStyle.Render(fmt.Sprintf("24h: %s (%s)", m.displaySignedUSD(v.Change24hUSD), utils.FormatPercent(v.Change24hPct)))
	}

	targetWidth := m.width - 4
	if targetWidth < 60 {
		targetWidth = 60
	}

	block := lipgloss.JoinVertical(lipgloss.Center,
		header,
		"\n",
		total,
		balance,
		change,
		"\n",
		m.viewWalletTable(),
	)
	return boxStyle.Width(targetWidth).Align(lipgloss.Center).Render(block)
}

// Cells hold styled text, so width comes from lipgloss rather than fmt padding.
var (
	balanceCell = lipgloss.NewStyle().Width(18).Align(lipgloss.Right)
	valueCell   = lipgloss.NewStyle().Width(16).Align(lipgloss.Right)
)

const walletTableHeader = "  %-2s %-18s %-13s %18s %16s"

func (m model) viewWalletTable() string {
	headers := tableHeaderStyle.Render(fmt.Sprintf(walletTableHeader, "", "LABEL", "ADDRESS", "BALANCE", "VALUE"))
	rows := []string{headers}
	for _, w := range m.snap.Wallets {
		rows = append(rows, m.walletRow(w))
	}
	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}

func (m model) walletRow(w models.Wallet) string {
	wv, _ := m.walletValuation(w.ID)

	cursor := " "
	if w.ID == m.snap.SelectedWalletID {
		cursor = ">"
	}
	marker := " "
	if w.IsPrimary {
		marker = "★"
	}

	balance := subtleStyle.Render("loading...")
	value := ""
	if errMsg, failed := m.snap.BalanceErrors[strings.ToLower(w.Address)]; failed && !wv.HasBalance {
		balance = errStyle.Render("unavailable")
		value = subtleStyle.Render(utils.TruncateString(errMsg, 16))
	} else if wv.HasBalance {
		balance = m.displayETH(wv.Balance)
		if m.snap.Valuation.HasPrice {
			value = m.displayUSD(wv.ValueUSD)
		}
	}

	row := fmt.Sprintf("%s %-2s %-18s %-13s %s %s",
		cursor, marker,
		utils.TruncateString(w.Label, 18),
		m.maskAddress(w.Address),
		balanceCell.Render(balance), valueCell.Render(value),
	)
	if w.ID == m.snap.SelectedWalletID {
		row = selectedRowStyle.Render(row)
	}
	return row
}

func (m model) viewFooter() string {
	line1 := "a:add • e:edit • d:del • p:primary • v:view • c:copy • o:open • x:disconnect"
	line2 := fmt.Sprintf("Tab:cycle • r:refresh • g:graph • P:privacy • ?:help • q:quit • v%s", Version)

	var footer string
	if m.width > 0 {
		l1 := subtleStyle.Width(m.width).Align(lipgloss.Center).Render(line1)
		l2 := subtleStyle.Width(m.width).Align(lipgloss.Center).Render(line2)
		footer = lipgloss.JoinVertical(lipgloss.Center, l1, l2)
	} else {
		footer = subtleStyle.Render(line1 + "\n" + line2)
	}

	if m.statusMessage != "" {
		footer = lipgloss.JoinVertical(lipgloss.Center, infoStyle.Render(m.statusMessage), footer)
	}
	return footer
}

func (m model) viewAddForm() string {
	labels := []string{"Address", "Label"}
	var inputs []string
	for i, label := range labels {
		inputs = append(inputs, fmt.Sprintf("%-8s %s", label, m.addressInputs[i].View()))
	}

	status := ""
	if m.statusMessage != "" {
		status = errStyle.Render(m.statusMessage)
	}

	return lipgloss.Place(
		m.width, m.height, lipgloss.Center, lipgloss.Center,
		boxStyle.Render(lipgloss.JoinVertical(lipgloss.Left,
			titleStyle.Render("Add Wallet"),
			"\n",
			strings.Join(inputs, "\n"),
			status,
			"\n",
			subtleStyle.Render("Tab to switch field • Enter to next/save • Esc to cancel"),
		)),
	)
}

func (m model) viewEditForm() string {
	w, _ := m.selectedWallet()
	return lipgloss.Place(
		m.width, m.height, lipgloss.Center, lipgloss.Center,
		boxStyle.Render(lipgloss.JoinVertical(lipgloss.Left,
			titleStyle.Render("Edit Wallet Label"),
			"\n",
			fmt.Sprintf("Address: %s", utils.ChecksumAddress(w.Address)),
			"\n",
			m.editInput.View(),
			"\n",
			subtleStyle.Render("Enter to save • Esc to cancel"),
		)),
	)
}

func (m model) viewConfirmDelete() string {
	w, _ := m.selectedWallet()
	lines := []string{
		titleStyle.Render("Remove Wallet"),
		"\n",
		fmt.Sprintf("Stop tracking %s (%s)?", w.Label, m.maskAddress(w.Address)),
	}
	if w.IsPrimary && len(m.snap.Wallets) > 1 {
		lines = append(lines, subtleStyle.Render("The next wallet will become primary."))
	}
	lines = append(lines, "\n", subtleStyle.Render("(y) Yes • (n) No"))

	return lipgloss.Place(
		m.width, m.height, lipgloss.Center, lipgloss.Center,
		boxStyle.Render(lipgloss.JoinVertical(lipgloss.Center, lines...)),
	)
}

func (m model) viewGraph() string {
	header := titleStyle.Render("Portfolio History")
	var graph string
	if len(m.snap.History) > 1 && !m.privacyMode {
		width := m.width - 10
		if width < 10 {
			width = 10
		}
		height := m.height - 12
		if height < 5 {
			height = 5
		}
		graph = asciigraph.Plot(m.snap.History,
			asciigraph.Height(height),
			asciigraph.Width(width),
			asciigraph.Caption(fmt.Sprintf("Portfolio Value History (USD, %s view)", m.snap.ViewMode)),
		)
	} else if m.privacyMode {
		graph = "Graph hidden in Privacy Mode."
	} else {
		graph = "Not enough data to draw graph."
	}

	content := boxStyle.Render(lipgloss.JoinVertical(lipgloss.Center, header, "\n", graph))
	footer := subtleStyle.Render("g/q/esc: back")

	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, lipgloss.JoinVertical(lipgloss.Center, content, "\n", footer))
}

func (m model) viewHelp() string {
	shortcuts := []string{
		"Tab/l/Right: Next Wallet",
		"S-Tab/h/Left: Prev Wallet",
		"a: Add Wallet",
		"e: Edit Label",
		"d: Remove Wallet",
		"p: Set Primary",
		"v: Toggle Combined/Individual View",
		"c: Copy Address",
		"o: Open in Explorer",
		"r: Refresh Balances",
		"x: Disconnect Wallet",
		"g: Value History Graph",
		"P: Toggle Privacy",
		"q/esc: Quit",
		"?: Toggle Help",
	}

	header := titleStyle.Render("Help: Main View")
	content := boxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, header, "\n", strings.Join(shortcuts, "\n")))
	footer := subtleStyle.Render("Press '?' or 'esc' to close")

	return lipgloss.Place(
		m.width,
		m.height,
		lipgloss.Center,
		lipgloss.Center,
		lipgloss.JoinVertical(lipgloss.Center, content, "\n", footer),
	)
}
