package buildstate

import "os"

const (
	ActionWrite = "write"
	ActionSkip  = "skip"

	ReasonForced         = "forced"
	ReasonNew            = "new manifest"
	ReasonContentChanged = "content changed"
	ReasonFormatChanged  = "format changed"
	ReasonOutputMissing  = "output missing"
	ReasonOutputModified = "output modified"
	ReasonUpToDate       = "up to date"
)

// Decision says whether a manifest needs writing and why.
type Decision struct {
	Action string
	Reason string
}

// Write reports whether the manifest has to be written.
func (d Decision) Write() bool {
	return d.Action == ActionWrite
}

// Detect compares a freshly built manifest against the recorded state of
// output.
func Detect(st *State, output, digest, format string, force bool) Decision {
	if force {
		return Decision{Action: ActionWrite, Reason: ReasonForced}
	}

	prior, exists := st.Manifests[key(output)]
	if !exists {
		return Decision{Action: ActionWrite, Reason: ReasonNew}
	}
	if prior.Digest != digest {
		return Decision{Action: ActionWrite, Reason: ReasonContentChanged}
	}
	if prior.Format != format {
		return Decision{Action: ActionWrite, Reason: ReasonFormatChanged}
	}

	info, err := os.Stat(output)
	if os.IsNotExist(err) {
		return Decision{Action: ActionWrite, Reason: ReasonOutputMissing}
	}
	if err != nil || info.Size() != prior.Size {
		return Decision{Action: ActionWrite, Reason: ReasonOutputModified}
	}

	return Decision{Action: ActionSkip, Reason: ReasonUpToDate}
}
