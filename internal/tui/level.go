// SPDX-License-Identifier: MIT
package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/zthompson47/time2freq/internal/analysis"
	"github.com/zthompson47/time2freq/internal/audio"
)

// loudnessRange maps LUFS onto the loudness bar.
const (
	loudnessMin = float64(analysis.LoudnessFloor)
	loudnessMax = 0.0
)

var (
	labelStyle = lipgloss.NewStyle().Width(10)
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#767676"))
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#E5C07B")).Bold(true)
)

// StatsSource is implemented by *audio.Session.
type StatsSource interface {
	Stats() audio.Stats
	Idle() bool
}

type levelMsg analysis.Level

type statsMsg struct {
	stats audio.Stats
	idle  bool
}

type closedMsg struct{}

// LevelModel shows per-channel RMS bars and momentary loudness. Levels
// arrive from a meter's update channel; it never queries the session's
// level itself.
type LevelModel struct {
	title   string
	levels  <-chan analysis.Level
	stats   StatsSource
	refresh time.Duration

	level    analysis.Level
	current  audio.Stats
	idle     bool
	channels [2]progress.Model
	loudness progress.Model
	width    int
}

// NewLevelModel creates a level meter titled title.
func NewLevelModel(title string, levels <-chan analysis.Level, stats StatsSource) LevelModel {
	bar := func() progress.Model {
		return progress.New(progress.WithDefaultGradient(), progress.WithoutPercentage())
	}
	return LevelModel{
		title:    title,
		levels:   levels,
		stats:    stats,
		refresh:  250 * time.Millisecond,
		level:    analysis.Silent,
		channels: [2]progress.Model{bar(), bar()},
		loudness: progress.New(progress.WithScaledGradient("#25A065", "#E06C75"), progress.WithoutPercentage()),
	}
}

func (m LevelModel) waitLevel() tea.Msg {
	l, ok := <-m.levels
	if !ok {
		return closedMsg{}
	}
	return levelMsg(l)
}

func (m LevelModel) pollStats() tea.Cmd {
	return tea.Tick(m.refresh, func(time.Time) tea.Msg {
		return statsMsg{stats: m.stats.Stats(), idle: m.stats.Idle()}
	})
}

func (m LevelModel) Init() tea.Cmd {
	cmds := []tea.Cmd{m.waitLevel}
	if m.stats != nil {
		cmds = append(cmds, m.pollStats())
	}
	return tea.Batch(cmds...)
}

func (m LevelModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		w := max(msg.Width-labelStyle.GetWidth()-12, 10)
		for i := range m.channels {
			m.channels[i].Width = w
		}
		m.loudness.Width = w
	case levelMsg:
		m.level = analysis.Level(msg)
		return m, m.waitLevel
	case closedMsg:
		return m, tea.Quit
	case statsMsg:
		m.current = msg.stats
		m.idle = msg.idle
		return m, m.pollStats()
	case tea.KeyMsg:
		if key.Matches(msg, key.NewBinding(key.WithKeys("q", "esc", "ctrl+c"))) {
			return m, tea.Quit
		}
	}
	return m, nil
}

// loudnessFraction maps LUFS to [0, 1] for the bar.
func loudnessFraction(lufs float32) float64 {
	f := (float64(lufs) - loudnessMin) / (loudnessMax - loudnessMin)
	return min(max(f, 0), 1)
}

func (m LevelModel) View() string {
	var sb strings.Builder
	sb.WriteString(titleStyle.Render(m.title))
	sb.WriteString("\n\n")

	for i, name := range []string{"Left", "Right"} {
		v := m.level.RMS[i]
		fmt.Fprintf(&sb, "%s%s %6.3f\n", labelStyle.Render(name), m.channels[i].ViewAs(min(float64(v), 1)), v)
	}
	fmt.Fprintf(&sb, "%s%s %6.1f LUFS\n\n", labelStyle.Render("Loudness"),
		m.loudness.ViewAs(loudnessFraction(m.level.Loudness)), m.level.Loudness)

	if m.stats != nil {
		state := "playing"
		if m.idle {
			state = "idle"
		}
		sb.WriteString(dimStyle.Render(fmt.Sprintf("%s • %d frames played • %d tracks (%d failed) • tap drops %d",
			state, m.current.FramesPlayed, m.current.TracksStarted, m.current.TracksFailed, m.current.TapDropped)))
		sb.WriteString("\n")
		if m.current.Underruns > 0 {
			sb.WriteString(warnStyle.Render(fmt.Sprintf("underruns: %d frames", m.current.Underruns)))
			sb.WriteString("\n")
		}
	}
	sb.WriteString("\n")
	sb.WriteString(infoStyle.Render("q: Quit"))
	return sb.String()
}

// RunLevelUI runs the level meter until the user quits or levels closes.
func RunLevelUI(title string, levels <-chan analysis.Level, stats StatsSource) error {
	_, err := tea.NewProgram(NewLevelModel(title, levels, stats), tea.WithAltScreen()).Run()
	return err
}
