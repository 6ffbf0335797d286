package progress

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/pterm/pterm"
	"golang.org/x/term"
)

// Interactive reports whether w is a terminal. Spinners on anything else,
// a pipe or a pod log stream, degrade into escape-code noise.
func Interactive(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// MultiSpinner renders one spinner line per component on a shared terminal
// area. Safe for concurrent use by build pipelines.
type MultiSpinner struct {
	mu       sync.Mutex
	multi    *pterm.MultiPrinter
	spinners map[string]*pterm.SpinnerPrinter
}

var _ Reporter = &MultiSpinner{}

// NewMultiSpinner starts the shared display. Call Stop when all pipelines
// have reported a terminal phase.
func NewMultiSpinner() *MultiSpinner {
	multi := pterm.DefaultMultiPrinter
	multi.Start() //nolint:errcheck

	return &MultiSpinner{
		multi:    &multi,
		spinners: map[string]*pterm.SpinnerPrinter{},
	}
}

func (m *MultiSpinner) Phase(component string, phase Phase, detail string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	text := fmt.Sprintf("%s: %s", component, phase)
	if detail != "" {
		text = fmt.Sprintf("%s: %s - %s", component, phase, detail)
	}

	spinner, ok := m.spinners[component]
	if !ok {
		spinner, _ = pterm.DefaultSpinner.
			WithWriter(m.multi.NewWriter()).
			Start(text)
		m.spinners[component] = spinner
	}

	switch phase {
	case PhaseDone:
		spinner.Success(text)
	case PhaseFailed:
		spinner.Fail(text)
	default:
		spinner.UpdateText(text)
	}
}

// Stop tears the shared display down.
func (m *MultiSpinner) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.multi.Stop() //nolint:errcheck
}

// Stage runs fn under a single spinner line for sequential orchestration
// steps. The spinner succeeds or fails with fn; without a terminal fn runs
// silently.
func Stage(message string, fn func() error) error {
	if !Interactive(os.Stdout) {
		return fn()
	}
	spinner, _ := pterm.DefaultSpinner.Start(message)
	if err := fn(); err != nil {
		spinner.Fail(fmt.Sprintf("%s: %v", message, err))
		return err
	}
	spinner.Success(message)
	return nil
}
