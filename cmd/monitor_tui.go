// SPDX-License-Identifier: MIT

package cmd

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/scottmsilver/precor-9.3x/pkg/precor"
	"github.com/scottmsilver/precor-9.3x/pkg/session"
)

// Messages
type busEventMsg struct {
	event session.Event
}
type readerErrMsg struct {
	err error
}
type monitorTickMsg time.Time

// keyState is the latest observation of one key/value pair.
type keyState struct {
	value   string
	channel string
	seen    time.Time
	count   int
}

// monitorModel is the TUI model for the monitor command.
type monitorModel struct {
	connInfo string
	started  time.Time

	keys       map[string]*keyState
	frameCount int
	pairCount  int
	truncated  int

	log       []string
	maxLog    int
	vp        viewport.Model
	follow    bool
	ready     bool
	width     int
	height    int
	quitting  bool
	readerErr error
}

func initialMonitorModel(connInfo string) monitorModel {
	return monitorModel{
		connInfo: connInfo,
		started:  time.Now(),
		keys:     make(map[string]*keyState),
		maxLog:   500,
		follow:   true,
	}
}

func monitorTick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return monitorTickMsg(t)
	})
}

func (m monitorModel) Init() tea.Cmd {
	return monitorTick()
}

func (m monitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		case "end":
			m.follow = true
			m.vp.GotoBottom()
			return m, nil
		default:
			// Any scroll key detaches from follow mode.
			var cmd tea.Cmd
			m.vp, cmd = m.vp.Update(msg)
			m.follow = m.vp.AtBottom()
			return m, cmd
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		logHeight := m.height - m.statePanelHeight() - 4
		if logHeight < 3 {
			logHeight = 3
		}
		if !m.ready {
			m.vp = viewport.New(m.width-2, logHeight)
			m.ready = true
		} else {
			m.vp.Width = m.width - 2
			m.vp.Height = logHeight
		}
		m.vp.SetContent(strings.Join(m.log, "\n"))
		if m.follow {
			m.vp.GotoBottom()
		}
		return m, nil

	case busEventMsg:
		m.ingest(msg.event)
		if m.ready {
			m.vp.SetContent(strings.Join(m.log, "\n"))
			if m.follow {
				m.vp.GotoBottom()
			}
		}
		return m, nil

	case readerErrMsg:
		m.readerErr = msg.err
		m.quitting = true
		return m, tea.Quit

	case monitorTickMsg:
		return m, monitorTick()
	}

	return m, nil
}

func (m *monitorModel) ingest(ev session.Event) {
	switch ev.Kind() {
	case session.PairSeen:
		m.pairCount++
		st, ok := m.keys[ev.Pair.Key]
		if !ok {
			st = &keyState{}
			m.keys[ev.Pair.Key] = st
		}
		st.value = ev.Pair.Value
		st.channel = ev.Channel
		st.seen = ev.Time
		st.count++
	case session.FrameTruncated:
		m.truncated++
		m.frameCount++
	default:
		m.frameCount++
	}

	line := fmt.Sprintf("[%s] %s", ev.Time.Format("15:04:05.000"), ev.String())
	m.log = append(m.log, line)
	if len(m.log) > m.maxLog {
		m.log = m.log[len(m.log)-m.maxLog:]
	}
}

// statePanelHeight is the rendered height of the key/value panel.
func (m monitorModel) statePanelHeight() int {
	rows := (len(m.keys) + 2) / 3
	if rows < 2 {
		rows = 2
	}
	return rows + 4
}

func (m monitorModel) View() string {
	if m.quitting {
		return "Monitor stopped.\n"
	}
	if !m.ready {
		return "Starting up..."
	}

	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("12")).
		Background(lipgloss.Color("235")).
		Padding(0, 1)

	headerStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241"))

	keyStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("12")).
		Bold(true)

	valueStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("10"))

	staleStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241"))

	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1)

	var b strings.Builder
	b.WriteString(titleStyle.Render("precor monitor"))
	b.WriteString("  ")
	b.WriteString(headerStyle.Render(fmt.Sprintf("%s | up %s | %d frames (%d truncated) | %d pairs",
		m.connInfo, time.Since(m.started).Round(time.Second), m.frameCount, m.truncated, m.pairCount)))
	b.WriteString("\n")

	// State panel: latest value per key, three columns, with the two
	// values the motor actually obeys rendered first.
	names := make([]string, 0, len(m.keys))
	for k := range m.keys {
		names = append(names, k)
	}
	sort.Slice(names, func(i, j int) bool {
		pi, pj := keyRank(names[i]), keyRank(names[j])
		if pi != pj {
			return pi < pj
		}
		return names[i] < names[j]
	})

	var cells []string
	now := time.Now()
	for _, name := range names {
		st := m.keys[name]
		vs := valueStyle
		if now.Sub(st.seen) > 3*time.Second {
			vs = staleStyle
		}
		label := name
		if decoded := decorateKey(name, st.value); decoded != "" {
			label = name + " " + decoded
		}
		cells = append(cells, fmt.Sprintf("%s %s",
			keyStyle.Render(fmt.Sprintf("%-6s", label)),
			vs.Render(fmt.Sprintf("%-10s", st.value))))
	}
	if len(cells) == 0 {
		cells = append(cells, headerStyle.Render("waiting for traffic..."))
	}
	var rows []string
	for i := 0; i < len(cells); i += 3 {
		end := i + 3
		if end > len(cells) {
			end = len(cells)
		}
		rows = append(rows, strings.Join(cells[i:end], "   "))
	}
	b.WriteString(boxStyle.Width(m.width - 2).Render(strings.Join(rows, "\n")))
	b.WriteString("\n")

	b.WriteString(boxStyle.Width(m.width - 2).Render(m.vp.View()))
	b.WriteString("\n")
	b.WriteString(headerStyle.Render("arrows/pgup/pgdn scroll · end follows · q quits"))
	return b.String()
}

// keyRank orders the state panel: live motion values first, telemetry
// after, identity keys last.
func keyRank(key string) int {
	switch key {
	case "hmph", "inc":
		return 0
	case "amps", "err", "belt", "vbus", "lift", "lfts", "lftg":
		return 1
	default:
		return 2
	}
}

// decorateKey renders engineering units for the keys whose encoding is
// known.
func decorateKey(key, value string) string {
	switch key {
	case "hmph":
		if mph, ok := precor.ParseSpeedHex(value); ok {
			return fmt.Sprintf("(%.1f mph)", mph)
		}
	case "inc":
		var half int
		if _, err := fmt.Sscanf(value, "%d", &half); err == nil {
			return fmt.Sprintf("(%.1f%%)", float64(half)/2)
		}
	}
	return ""
}
