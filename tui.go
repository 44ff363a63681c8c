package main

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"murmur/orchestrator"
)

// TUI message types
type RecordingStartMsg struct{}
type RecordingStopMsg struct{}
type ProcessingMsg struct{}
type RecordingTickMsg struct{ Seconds float64 }
type AudioLevelMsg struct{ Level float64 }
type VoiceWarningMsg struct{ On bool }
type TranscriptionMsg struct {
	Text       string
	Confidence float64
	Language   string
	NoSpeech   bool
}
type TranscriptionErrorMsg struct{ Text string }
type ModeLineMsg struct{ Text string }   // engine/model info
type DeviceLineMsg struct{ Text string } // microphone device name
type HelpLineMsg struct{ Text string }   // active combo and policy
type UpdateAvailableMsg struct{ Version string }
type tickMsg time.Time

type tuiState int

const (
	tuiStateIdle tuiState = iota
	tuiStateRecording
	tuiStateProcessing
	tuiStateError
)

// errorHold mirrors the recorder's own error display window so the
// banner disappears when new activations are accepted again.
const errorHold = 3 * time.Second

type tuiModel struct {
	state         tuiState
	frame         int
	duration      float64
	level         float64
	peak          float64
	voiceWarn     bool
	msgCount      int
	width, height int
	modeLine      string
	deviceLine    string
	helpLine      string
	updateLine    string
	lastText      string
	lastConf      float64
	lastLang      string
	noSpeech      bool
	errText       string
	errAt         time.Time
}

var (
	tuiProgram   *tea.Program
	tuiMu        sync.Mutex
	tuiReady     = make(chan struct{})
	tuiReadyOnce sync.Once
)

var (
	styleRec     = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	styleProc    = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	styleStandby = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	styleErr     = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	styleWarn    = lipgloss.NewStyle().Foreground(lipgloss.Color("208"))
	styleMeter   = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	styleMode    = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	styleDim     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	styleText    = lipgloss.NewStyle().Foreground(lipgloss.Color("4"))
	styleNoText  = lipgloss.NewStyle().Foreground(lipgloss.Color("208"))
	styleMeta    = lipgloss.NewStyle().Foreground(lipgloss.Color("243"))
	styleHelp    = lipgloss.NewStyle().Foreground(lipgloss.Color("239"))
	styleHelpKey = lipgloss.NewStyle().Foreground(lipgloss.Color("239")).Bold(true)
	styleUpdate  = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
)

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

func NewTUIProgram() *tea.Program {
	return tea.NewProgram(tuiModel{}, tea.WithAltScreen())
}

func tuiTick() tea.Cmd {
	return tea.Tick(60*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m tuiModel) Init() tea.Cmd {
	return tuiTick()
}

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		tuiReadyOnce.Do(func() { close(tuiReady) })

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "ctrl+g":
			select {
			case deviceSelectChan <- struct{}{}:
			default:
			}
		}

	case tickMsg:
		m.frame++
		if m.state == tuiStateError && time.Since(m.errAt) > errorHold {
			m.state = tuiStateIdle
			m.errText = ""
		}
		return m, tuiTick()

	case RecordingStartMsg:
		m.state = tuiStateRecording
		m.duration = 0
		m.level = 0
		m.peak = 0
		m.voiceWarn = false
		m.errText = ""

	case RecordingStopMsg:
		if m.state == tuiStateRecording {
			m.state = tuiStateIdle
		}
		m.level = 0
		m.voiceWarn = false

	case ProcessingMsg:
		m.state = tuiStateProcessing

	case RecordingTickMsg:
		m.duration = msg.Seconds

	case AudioLevelMsg:
		if m.state == tuiStateRecording {
			m.level = m.level*0.6 + msg.Level*0.4
			if msg.Level > m.peak {
				m.peak = msg.Level
			}
		}

	case VoiceWarningMsg:
		m.voiceWarn = msg.On

	case TranscriptionMsg:
		m.state = tuiStateIdle
		m.msgCount++
		m.lastText = msg.Text
		m.lastConf = msg.Confidence
		m.lastLang = msg.Language
		m.noSpeech = msg.NoSpeech

	case TranscriptionErrorMsg:
		m.state = tuiStateError
		m.errText = msg.Text
		m.errAt = time.Now()

	case ModeLineMsg:
		m.modeLine = msg.Text

	case DeviceLineMsg:
		m.deviceLine = msg.Text

	case HelpLineMsg:
		m.helpLine = msg.Text

	case UpdateAvailableMsg:
		m.updateLine = "update available: " + msg.Version + " (run: murmur update)"
	}
	return m, nil
}

func (m tuiModel) View() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	var lines []string

	switch m.state {
	case tuiStateRecording:
		status := styleRec.Render(fmt.Sprintf("● REC %.1fs", m.duration))
		lines = append(lines, status+"  "+styleMeter.Render(levelMeter(m.level)))
		if m.voiceWarn {
			lines = append(lines, styleWarn.Render("  ⚠ no voice detected"))
		}
	case tuiStateProcessing:
		spin := spinnerFrames[m.frame%len(spinnerFrames)]
		lines = append(lines, styleProc.Render(spin+" transcribing..."))
	case tuiStateError:
		lines = append(lines, styleErr.Render("✗ "+m.errText))
	default:
		lines = append(lines, styleStandby.Render("○ STANDBY"))
	}

	if m.modeLine != "" {
		lines = append(lines, styleMode.Render(m.modeLine))
	}
	if m.deviceLine != "" {
		lines = append(lines, styleDim.Render(m.deviceLine))
	}

	lines = append(lines, "")

	wrapWidth := m.width - 4
	if wrapWidth < 10 {
		wrapWidth = 10
	}
	if m.lastText != "" {
		lines = append(lines, styleMeta.Render(fmt.Sprintf("Last transcription (#%d)", m.msgCount)))
		style := styleText
		if m.noSpeech {
			style = styleNoText
		}
		for _, line := range wrapText(m.lastText, wrapWidth) {
			lines = append(lines, style.Render(line))
		}
		if !m.noSpeech {
			meta := fmt.Sprintf("%s  %.0f%%", m.lastLang, m.lastConf*100)
			lines = append(lines, styleMeta.Render(meta))
		}
	} else {
		lines = append(lines, styleDim.Render("No transcriptions yet"))
	}

	lines = append(lines, "")

	if m.helpLine != "" {
		parts := strings.SplitN(m.helpLine, " ", 2)
		help := styleHelpKey.Render(parts[0])
		if len(parts) > 1 {
			help += styleHelp.Render(" " + parts[1])
		}
		lines = append(lines, help)
	}
	lines = append(lines, styleHelp.Render("ctrl+g mic  ·  q quit  ·  murmur "+version))
	if m.updateLine != "" {
		lines = append(lines, styleUpdate.Render(m.updateLine))
	}

	body := lipgloss.NewStyle().Padding(1, 2).Render(strings.Join(lines, "\n"))
	return body
}

// levelMeter renders smoothed input level as a fixed-width bar.
func levelMeter(level float64) string {
	const width = 24
	filled := int(level * 3 * width)
	if filled > width {
		filled = width
	}
	return strings.Repeat("▮", filled) + strings.Repeat("▯", width-filled)
}

func wrapText(text string, width int) []string {
	if len(text) == 0 {
		return []string{""}
	}
	if width <= 0 {
		width = 1
	}

	var lines []string
	for len(text) > width {
		splitAt := width
		for i := width; i > 0; i-- {
			if text[i] == ' ' {
				splitAt = i
				break
			}
		}
		lines = append(lines, text[:splitAt])
		text = strings.TrimLeft(text[splitAt:], " ")
	}
	if len(text) > 0 {
		lines = append(lines, text)
	}
	return lines
}

func tuiSend(msg tea.Msg) {
	tuiMu.Lock()
	p := tuiProgram
	tuiMu.Unlock()
	if p != nil {
		p.Send(msg)
	}
}

// tuiSink forwards recorder events into the Bubble Tea program. Sends
// are droppable program messages, so the recorder never blocks on a
// slow terminal.
type tuiSink struct {
	transcripts atomic.Int64
}

func (s *tuiSink) RecordingStarted()  { tuiSend(RecordingStartMsg{}) }
func (s *tuiSink) RecordingStopped()  { tuiSend(RecordingStopMsg{}) }
func (s *tuiSink) ProcessingStarted() { tuiSend(ProcessingMsg{}) }

func (s *tuiSink) RecordingTick(seconds float64) { tuiSend(RecordingTickMsg{Seconds: seconds}) }
func (s *tuiSink) AmplitudeUpdate(level float64) { tuiSend(AudioLevelMsg{Level: level}) }
func (s *tuiSink) VoiceWarning(on bool)          { tuiSend(VoiceWarningMsg{On: on}) }

func (s *tuiSink) TranscriptReady(res orchestrator.Result) {
	text := res.Text
	noSpeech := strings.TrimSpace(text) == ""
	if noSpeech {
		text = "(no speech detected)"
	} else {
		s.transcripts.Add(1)
	}
	tuiSend(TranscriptionMsg{
		Text:       text,
		Confidence: res.Confidence,
		Language:   res.Language,
		NoSpeech:   noSpeech,
	})
}

func (s *tuiSink) TranscriptFailed(message string) {
	tuiSend(TranscriptionErrorMsg{Text: message})
}

func (s *tuiSink) Transcripts() int {
	return int(s.transcripts.Load())
}
