// Package build runs component build pipelines: acquire a workspace, clone
// the source at the requested ref, invoke the configured build system and
// collect pinned image references. Pipelines run concurrently and fail
// independently.
package build

import (
	"time"
)

// Image is one built artifact: the short name the static configuration keys
// on, and the reference it can be pulled by.
type Image struct {
	Name     string
	PullSpec string
}

// Outcome is the final result of one component pipeline. Produced exactly
// once per component; a failed outcome carries an error and no images.
type Outcome struct {
	Component string
	Images    []Image
	Err       error
	Elapsed   time.Duration
}

// Failed reports whether the pipeline ended in an error.
func (o Outcome) Failed() bool {
	return o.Err != nil
}
