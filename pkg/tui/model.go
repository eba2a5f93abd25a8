package tui

import (
	"time"

	"walletfolio/pkg/config"
	"walletfolio/pkg/watcher"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Version is set by Start()
var Version = "dev"

// --- Messages ---

type clearStatusMsg struct{}
type uiTickMsg time.Time
type privacyTimeoutMsg struct{}
type refreshDoneMsg struct{}

// --- Model ---

type model struct {
	watcher *watcher.Watcher
	sub     watcher.Subscriber
	snap    watcher.Snapshot
	config  config.Config

	width         int
	height        int
	spinner       spinner.Model
	statusMessage string
	lastUpdate    time.Time

	adding        bool
	addressInputs []textinput.Model
	addFocus      int

	editing   bool
	editInput textinput.Model

	confirmingDelete bool
	refreshing       bool
	showGraph        bool
	showHelp         bool

	privacyMode     bool
	lastInteraction time.Time
}

func initialModel(w *watcher.Watcher, cfg config.Config) model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	ais := make([]textinput.Model, 2)
	for i := range ais {
		ais[i] = textinput.New()
		ais[i].Width = 44
	}
	ais[0].Placeholder = "0x..."
	ais[0].CharLimit = 42
	ais[1].Placeholder = "Label (Optional)"
	ais[1].CharLimit = 32

	editTi := textinput.New()
	editTi.Placeholder = "Label"
	editTi.Width = 32
	editTi.CharLimit = 32

	return model{
		watcher:         w,
		sub:             w.Subscribe(),
		snap:            w.Snapshot(),
		config:          cfg,
		spinner:         s,
		addressInputs:   ais,
		editInput:       editTi,
		lastUpdate:      time.Now(),
		lastInteraction: time.Now(),
	}
}

func (m model) Init() tea.Cmd {
	var cmds []tea.Cmd

	cmds = append(cmds, listenForWatcher(m.sub))
	cmds = append(cmds, m.spinner.Tick)

	if m.config.PrivacyTimeoutSeconds > 0 {
		cmds = append(cmds, tea.Tick(time.Duration(m.config.PrivacyTimeoutSeconds)*time.Second, func(t time.Time) tea.Msg {
			return privacyTimeoutMsg{}
		}))
	}
	cmds = append(cmds, tea.Tick(time.Second, func(t time.Time) tea.Msg { return uiTickMsg(t) }))
	return tea.Batch(cmds...)
}
