// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/Thermoquad/obdstat/pkg/obd2"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

//////////////////////////////////////////////////////////////
// Command
//////////////////////////////////////////////////////////////

var (
	monitorInterval time.Duration
	monitorPIDs     string
)

const defaultMonitorPIDs = "04,05,0B,0C,0D,0F,10,11,2F,42"

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Live dashboard of vehicle data",
	Long: `Poll a set of mode 01 PIDs and show them in a live terminal dashboard,
along with ignition and engine state, trouble codes and request statistics.

Keys:
  d   read trouble codes
  q   quit`,
	RunE: runMonitor,
}

func init() {
	monitorCmd.Flags().DurationVarP(&monitorInterval, "interval", "i", time.Second, "Polling interval")
	monitorCmd.Flags().StringVar(&monitorPIDs, "pids", defaultMonitorPIDs, "Comma separated PIDs to poll (hex)")
	rootCmd.AddCommand(monitorCmd)
}

func runMonitor(cmd *cobra.Command, args []string) error {
	pids, err := parsePIDList(monitorPIDs)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	engine, conn, connInfo, err := openEngine(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	m := initialMonitorModel(engine, connInfo, pids, monitorInterval)
	p := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}

//////////////////////////////////////////////////////////////
// Model
//////////////////////////////////////////////////////////////

// eventLogEntry is one line in the dashboard's event log
type eventLogEntry struct {
	timestamp time.Time
	message   string
	isError   bool
}

// pidSample is the latest reading of one PID
type pidSample struct {
	value int64
	err   error
	at    time.Time
}

type monitorModel struct {
	engine   *obd2.Engine
	connInfo string
	interval time.Duration
	pids     []obd2.PID

	table   table.Model
	samples map[obd2.PID]pidSample

	ignition bool
	running  bool
	polls    int
	codes    []obd2.TroubleCode
	codesAt  time.Time
	stats    obd2.Statistics

	eventLog      []eventLogEntry
	maxLogEntries int

	width    int
	height   int
	quitting bool
}

//////////////////////////////////////////////////////////////
// Messages
//////////////////////////////////////////////////////////////

type pollResultMsg struct {
	at       time.Time
	ignition bool
	running  bool
	samples  map[obd2.PID]pidSample
	stats    obd2.Statistics
}

type troubleCodesMsg struct {
	codes []obd2.TroubleCode
	err   error
}

type pollTickMsg time.Time

//////////////////////////////////////////////////////////////
// Model Initialization
//////////////////////////////////////////////////////////////

func initialMonitorModel(engine *obd2.Engine, connInfo string, pids []obd2.PID, interval time.Duration) monitorModel {
	columns := []table.Column{
		{Title: "PID", Width: 5},
		{Title: "Name", Width: 36},
		{Title: "Value", Width: 16},
		{Title: "Age", Width: 6},
	}

	t := table.New(
		table.WithColumns(columns),
		table.WithHeight(len(pids)+1),
		table.WithFocused(false),
	)
	styles := table.DefaultStyles()
	styles.Header = styles.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(true)
	styles.Selected = lipgloss.NewStyle()
	t.SetStyles(styles)

	m := monitorModel{
		engine:        engine,
		connInfo:      connInfo,
		interval:      interval,
		pids:          pids,
		table:         t,
		samples:       make(map[obd2.PID]pidSample),
		maxLogEntries: 100,
		width:         80,
		height:        24,
	}
	m.updateRows(time.Now())
	return m
}

func (m monitorModel) Init() tea.Cmd {
	return pollCmd(m.engine, m.pids)
}

// pollCmd refreshes the vehicle flags and reads every PID. With the
// ignition off no PID is requested.
func pollCmd(engine *obd2.Engine, pids []obd2.PID) tea.Cmd {
	return func() tea.Msg {
		ignition, running := engine.Refresh()
		result := pollResultMsg{
			at:       time.Now(),
			ignition: ignition,
			running:  running,
			samples:  make(map[obd2.PID]pidSample, len(pids)),
		}
		if ignition {
			for _, pid := range pids {
				v, err := engine.PID(pid)
				result.samples[pid] = pidSample{value: v, err: err, at: time.Now()}
			}
		}
		result.stats = engine.Stats()
		return result
	}
}

func readCodesCmd(engine *obd2.Engine) tea.Cmd {
	return func() tea.Msg {
		codes, err := engine.ReadTroubleCodes()
		return troubleCodesMsg{codes: codes, err: err}
	}
}

func nextPollCmd(interval time.Duration) tea.Cmd {
	return tea.Tick(interval, func(t time.Time) tea.Msg {
		return pollTickMsg(t)
	})
}

//////////////////////////////////////////////////////////////
// Update
//////////////////////////////////////////////////////////////

func (m monitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		case "d":
			m.addLogEntry("Reading trouble codes", false)
			return m, readCodesCmd(m.engine)
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case pollTickMsg:
		return m, pollCmd(m.engine, m.pids)

	case pollResultMsg:
		m.applyPoll(msg)
		return m, nextPollCmd(m.interval)

	case troubleCodesMsg:
		if msg.err != nil {
			m.addLogEntry(fmt.Sprintf("Trouble code read failed: %v", msg.err), true)
			break
		}
		m.codes = msg.codes
		m.codesAt = time.Now()
		if len(msg.codes) == 0 {
			m.addLogEntry("No trouble codes", false)
		}
		for _, c := range msg.codes {
			m.addLogEntry(fmt.Sprintf("%s %s", c, c.Description()), true)
		}
	}

	return m, nil
}

func (m *monitorModel) applyPoll(msg pollResultMsg) {
	if m.polls > 0 && msg.ignition != m.ignition {
		m.addLogEntry(fmt.Sprintf("Ignition %s", onOff(msg.ignition)), !msg.ignition)
	}
	if m.polls > 0 && msg.running != m.running {
		m.addLogEntry(fmt.Sprintf("Engine %s", onOff(msg.running)), false)
	}

	m.polls++
	m.ignition = msg.ignition
	m.running = msg.running
	m.stats = msg.stats
	for pid, s := range msg.samples {
		m.samples[pid] = s
	}
	m.updateRows(msg.at)
}

func (m *monitorModel) updateRows(now time.Time) {
	rows := make([]table.Row, 0, len(m.pids))
	for _, pid := range m.pids {
		value, age := "-", ""
		if s, ok := m.samples[pid]; ok {
			if s.err != nil {
				value = sampleError(s.err)
			} else {
				value = obd2.FormatValue(pid, s.value)
			}
			age = formatAge(now.Sub(s.at))
		}
		rows = append(rows, table.Row{
			fmt.Sprintf("0x%02X", uint8(pid)),
			obd2.PIDName(pid),
			value,
			age,
		})
	}
	m.table.SetRows(rows)
}

// sampleError shortens an engine error for a table cell
func sampleError(err error) string {
	switch {
	case errors.Is(err, obd2.ErrUnsupportedPID):
		return "unsupported"
	case errors.Is(err, obd2.ErrTimeout):
		return "timeout"
	case errors.Is(err, obd2.ErrTruncated):
		return "truncated"
	case errors.Is(err, obd2.ErrReadFailed):
		return "failed"
	case errors.Is(err, obd2.ErrUnknownPID):
		return "unknown"
	default:
		return "error"
	}
}

func formatAge(d time.Duration) string {
	if d < time.Second {
		return "now"
	}
	return fmt.Sprintf("%ds", int(d.Seconds()))
}

func (m *monitorModel) addLogEntry(message string, isError bool) {
	m.eventLog = append(m.eventLog, eventLogEntry{
		timestamp: time.Now(),
		message:   message,
		isError:   isError,
	})

	if len(m.eventLog) > m.maxLogEntries {
		m.eventLog = m.eventLog[len(m.eventLog)-m.maxLogEntries:]
	}
}

//////////////////////////////////////////////////////////////
// View
//////////////////////////////////////////////////////////////

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("12")).
			Background(lipgloss.Color("235")).
			Padding(0, 1)

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("12")).
			Bold(true)

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("10"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("9")).
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("11"))

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)
)

func flagStyle(on bool) lipgloss.Style {
	if on {
		return valueStyle
	}
	return warningStyle
}

func (m monitorModel) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	var s strings.Builder
	s.WriteString(titleStyle.Render("OBDSTAT - MONITOR"))
	s.WriteString("\n")
	s.WriteString(headerStyle.Render(fmt.Sprintf("%s | Every %v | 'd' trouble codes, 'q' quit", m.connInfo, m.interval)))
	s.WriteString("\n\n")

	// Vehicle state
	status := fmt.Sprintf("%s %s   %s %s   %s %s",
		labelStyle.Render("Ignition:"), flagStyle(m.ignition).Render(onOff(m.ignition)),
		labelStyle.Render("Engine:"), flagStyle(m.running).Render(onOff(m.running)),
		labelStyle.Render("Trouble codes:"), func() string {
			if m.codesAt.IsZero() {
				return headerStyle.Render("not read")
			}
			if len(m.codes) == 0 {
				return valueStyle.Render("none")
			}
			return errorStyle.Render(fmt.Sprintf("%d", len(m.codes)))
		}(),
	)
	s.WriteString(boxStyle.Render(status))
	s.WriteString("\n\n")

	// Live data
	s.WriteString(m.table.View())
	s.WriteString("\n\n")

	// Statistics
	stats := fmt.Sprintf("%s %s   %s %s   %s %s   %s %s",
		labelStyle.Render("Requests:"), valueStyle.Render(fmt.Sprintf("%d", m.stats.TotalRequests)),
		labelStyle.Render("OK:"), valueStyle.Render(fmt.Sprintf("%.1f%%", m.stats.SuccessRate())),
		labelStyle.Render("Timeouts:"), func() string {
			if m.stats.Timeouts > 0 {
				return errorStyle.Render(fmt.Sprintf("%d", m.stats.Timeouts))
			}
			return valueStyle.Render("0")
		}(),
		labelStyle.Render("Rate:"), valueStyle.Render(fmt.Sprintf("%.1f req/s", m.stats.RequestRate)),
	)
	s.WriteString(boxStyle.Render(stats))
	s.WriteString("\n\n")

	// Event log
	s.WriteString(labelStyle.Render("Recent Events:"))
	s.WriteString("\n")

	logHeight := m.height - len(m.pids) - 16
	if logHeight < 3 {
		logHeight = 3
	}
	startIdx := len(m.eventLog) - logHeight
	if startIdx < 0 {
		startIdx = 0
	}

	var logContent strings.Builder
	if len(m.eventLog) == 0 {
		logContent.WriteString(headerStyle.Render("  (no events yet)"))
	}
	for i := startIdx; i < len(m.eventLog); i++ {
		entry := m.eventLog[i]
		timestamp := headerStyle.Render(entry.timestamp.Format("15:04:05"))
		if entry.isError {
			logContent.WriteString(fmt.Sprintf("%s %s\n", timestamp, errorStyle.Render("✗ "+entry.message)))
		} else {
			logContent.WriteString(fmt.Sprintf("%s %s\n", timestamp, warningStyle.Render("ℹ "+entry.message)))
		}
	}

	width := m.width - 4
	if width < 20 {
		width = 20
	}
	s.WriteString(boxStyle.Width(width).Render(logContent.String()))

	return s.String()
}
