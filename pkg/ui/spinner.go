package ui

import (
	"fmt"
	"io"
	"sync"

	bspinner "github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/kopi-vm/kopi/pkg/duration"
	"github.com/kopi-vm/kopi/pkg/locking"
	log "github.com/kopi-vm/kopi/pkg/logger"
	"github.com/kopi-vm/kopi/pkg/perf"
)

// Bubble Tea spinner model.
type spinnerModel struct {
	spinner bspinner.Model
	message string
	done    bool
}

// statusMsg replaces the text next to the spinner.
type statusMsg string

// waitDoneMsg stops the spinner and clears its line.
type waitDoneMsg struct{}

func newSpinnerModel(message string, styles Styles) *spinnerModel {
	s := bspinner.New()
	s.Spinner = bspinner.Dot
	s.Style = styles.Spinner
	return &spinnerModel{spinner: s, message: message}
}

func (m *spinnerModel) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m *spinnerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case bspinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case statusMsg:
		m.message = string(msg)
	case waitDoneMsg:
		m.done = true
		return m, tea.Quit
	}
	return m, nil
}

func (m *spinnerModel) View() string {
	if m.done {
		return ""
	}
	return fmt.Sprintf("%s %s", m.spinner.View(), m.message)
}

// SpinnerObserver shows an animated wait indicator on a terminal while a lock is
// contended. Nothing is drawn for uncontended acquisitions.
type SpinnerObserver struct {
	out    io.Writer
	styles Styles
	// programOptions lets tests run the program without a TTY.
	programOptions []tea.ProgramOption

	mu       sync.Mutex
	program  *tea.Program
	finished chan struct{}
}

// NewSpinnerObserver draws on out, which should be a terminal.
func NewSpinnerObserver(out io.Writer, styles Styles) *SpinnerObserver {
	defer perf.Track(nil, "ui.NewSpinnerObserver")()

	return &SpinnerObserver{
		out:    out,
		styles: styles,
		// Ctrl-C is handled by the signal context, not by the spinner.
		programOptions: []tea.ProgramOption{tea.WithOutput(out), tea.WithInput(nil), tea.WithoutSignalHandler()},
	}
}

// Observe implements locking.Observer.
func (s *SpinnerObserver) Observe(e locking.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	label := e.Scope.Label()
	switch e.Kind {
	case locking.EventWaiting:
		if s.program == nil {
			s.start(fmt.Sprintf("Waiting for %s lock (timeout %s, source %s). Press Ctrl-C to cancel.",
				label, e.Timeout.Timeout, e.Timeout.Source))
			return
		}
		text := fmt.Sprintf("Still waiting for %s lock after %s", label, duration.Format(e.Elapsed))
		if e.HasDeadline {
			text += fmt.Sprintf(" (~%s remaining)", duration.Format(e.Remaining))
		}
		s.program.Send(statusMsg(text))
	case locking.EventAcquired:
		if s.stop() {
			s.println(s.styles.Success.Render("✓"), fmt.Sprintf("Acquired %s lock after %s", label, duration.Format(e.Elapsed)))
		}
	case locking.EventTimedOut:
		s.stop()
		s.println(s.styles.Error.Render("✗"), fmt.Sprintf("Timed out waiting for %s lock after %s", label, duration.Format(e.Elapsed)))
	case locking.EventCancelled:
		s.stop()
		s.println(s.styles.Warning.Render("!"), fmt.Sprintf("Cancelled while waiting for %s lock after %s", label, duration.Format(e.Elapsed)))
	}
}

func (s *SpinnerObserver) start(message string) {
	s.program = tea.NewProgram(newSpinnerModel(message, s.styles), s.programOptions...)
	s.finished = make(chan struct{})

	program, finished := s.program, s.finished
	go func() {
		defer close(finished)
		if _, err := program.Run(); err != nil {
			log.Debug("Lock wait spinner stopped", "error", err)
		}
	}()
}

// stop ends the spinner and reports whether one was running.
func (s *SpinnerObserver) stop() bool {
	if s.program == nil {
		return false
	}
	s.program.Send(waitDoneMsg{})
	<-s.finished
	s.program = nil
	s.finished = nil
	return true
}

func (s *SpinnerObserver) println(icon, text string) {
	_, _ = fmt.Fprintf(s.out, "%s %s\n", icon, text)
}
