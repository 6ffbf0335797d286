// Package progress decouples orchestration from terminal presentation.
// Pipelines emit discrete phase transitions into a Reporter; whether those
// become spinners, log lines or nothing at all is the sink's business.
package progress

// Phase is a discrete state of a component pipeline.
type Phase string

const (
	PhaseQueued   Phase = "queued"
	PhaseCloning  Phase = "cloning"
	PhaseBuilding Phase = "building"
	PhasePushing  Phase = "pushing"
	PhaseDone     Phase = "done"
	PhaseFailed   Phase = "failed"
)

// Terminal reports whether the phase ends a pipeline.
func (p Phase) Terminal() bool {
	return p == PhaseDone || p == PhaseFailed
}

// Reporter receives phase transitions of named tasks.
type Reporter interface {
	Phase(component string, phase Phase, detail string)
}

// Discard drops all events.
var Discard Reporter = discard{}

type discard struct{}

func (discard) Phase(string, Phase, string) {}
