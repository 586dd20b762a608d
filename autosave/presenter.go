package autosave

const (
	verboseIntervalLimit = 5

	MarkerUnsaved = "*"
	MarkerSaving  = "saving"
	MarkerSaved   = "saved"
	MarkerFailed  = "failed"
)

// Status is what the save indicator shows for a state.
type Status struct {
	State   State
	Marker  string
	Tooltip string
	Busy    bool
}

type IPresenter interface {
	Present(s State) Status
}

type IIndicator interface {
	Show(st Status)
}

type verbosePresenter struct{}

func (verbosePresenter) Present(s State) Status {
	st := Status{State: s}
	switch s {
	case StateDirty:
		st.Marker, st.Tooltip = MarkerUnsaved, "There are unsaved changes"
	case StateSaving:
		st.Marker, st.Tooltip, st.Busy = MarkerSaving, "Saving", true
	case StateClean:
		st.Marker, st.Tooltip = MarkerSaved, "All changes saved"
	case StateError:
		st.Marker, st.Tooltip = MarkerFailed, "Save failed, click for recovery options"
	}
	return st
}

// minimalPresenter only shows a spinner while saving and a failure marker.
type minimalPresenter struct{}

func (minimalPresenter) Present(s State) Status {
	st := Status{State: s}
	switch s {
	case StateSaving:
		st.Busy = true
	case StateError:
		st.Marker, st.Tooltip = MarkerFailed, "Save failed, click for recovery options"
	}
	return st
}

// NewPresenter picks the presentation policy for an interval in seconds: short intervals get
// the verbose one.
func NewPresenter(intervalSec int) IPresenter {
	if intervalSec <= verboseIntervalLimit {
		return verbosePresenter{}
	}
	return minimalPresenter{}
}

type nopIndicator struct{}

func (nopIndicator) Show(Status) {}
