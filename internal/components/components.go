package components

import (
	"fmt"
	"regexp"
	"strings"
)

// KnownComponents lists every component that can be selected for a run.
var KnownComponents = []string{
	"pipeline", "triggers", "chains", "results",
	"manual-approval-gate", "console-plugin",
}

// Spec selects a component to build and deploy, optionally pinned to a git
// ref or an as-of date for historical builds.
type Spec struct {
	Name string
	// Ref is a branch, tag, commit or "pr/NNN" reference. Empty means the
	// default branch.
	Ref string
	// AsOfDate in YYYY-MM-DD form. Only set for specs without an explicit Ref.
	AsOfDate string
}

// ParseSpecs parses a comma-separated component selection.
//
// Format: name[:ref],name[:ref],...
// Examples: "pipeline,triggers" or "pipeline:pr/123,triggers:v0.28.0".
func ParseSpecs(input string) ([]Spec, error) {
	var specs []Spec
	for _, part := range strings.Split(input, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		name, ref := part, ""
		if idx := strings.Index(part, ":"); idx >= 0 {
			name = strings.TrimSpace(part[:idx])
			ref = strings.TrimSpace(part[idx+1:])
		}
		if !isKnown(name) {
			return nil, fmt.Errorf(
				"unknown component %q, known: %s", name, strings.Join(KnownComponents, ", "))
		}

		specs = append(specs, Spec{Name: name, Ref: ref})
	}
	if len(specs) == 0 {
		return nil, fmt.Errorf("no components specified")
	}
	return specs, nil
}

// DefaultSpecs returns specs for every known component at its default ref.
func DefaultSpecs() []Spec {
	specs := make([]Spec, 0, len(KnownComponents))
	for _, name := range KnownComponents {
		specs = append(specs, Spec{Name: name})
	}
	return specs
}

// ApplyAsOfDate pins all specs without an explicit ref to the given date.
// Specs carrying a ref were pinned by the user already and are left alone.
func ApplyAsOfDate(specs []Spec, asOf string) {
	for i := range specs {
		if specs[i].Ref == "" {
			specs[i].AsOfDate = asOf
		}
	}
}

var dateRE = regexp.MustCompile(`^\d{4}-(0[1-9]|1[0-2])-(0[1-9]|[12]\d|3[01])$`)

// ValidateDate checks YYYY-MM-DD format for the as-of flag.
func ValidateDate(s string) error {
	if !dateRE.MatchString(s) {
		return fmt.Errorf("date must be in YYYY-MM-DD format (e.g. 2024-01-15)")
	}
	return nil
}

// ResolveGitRef maps a user-provided ref to a fetchable refspec.
// "pr/NNN" becomes "refs/pull/NNN/head", everything else passes through.
func ResolveGitRef(userRef string) string {
	if num, ok := strings.CutPrefix(userRef, "pr/"); ok {
		return "refs/pull/" + num + "/head"
	}
	return userRef
}

func isKnown(name string) bool {
	for _, known := range KnownComponents {
		if known == name {
			return true
		}
	}
	return false
}
