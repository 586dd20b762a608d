package autosave

type State int

const (
	StateClean State = iota
	StateDirty
	StateSaving
	StateError
)

func (s State) String() string {
	switch s {
	case StateClean:
		return "clean"
	case StateDirty:
		return "dirty"
	case StateSaving:
		return "saving"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

type RecoveryOption string

const (
	RecoveryRetry    RecoveryOption = "retry"
	RecoverySaveAs   RecoveryOption = "save-as"
	RecoveryDownload RecoveryOption = "download"
)

var errorRecoveryOptions = []RecoveryOption{RecoveryRetry, RecoverySaveAs, RecoveryDownload}
