package activation

import "github.com/kilianp07/lpgsim/core/activation/logging"

// ProfileActivationKey groups activations for the profile report.
type ProfileActivationKey struct {
	DeviceName    string
	ProfileName   string
	ProfileSource string
	LoadTypeName  string
}

// ProfileActivationEntry counts the activations of one key. It is used for
// reporting only.
type ProfileActivationEntry struct {
	ProfileActivationKey
	ActivationCount int
}

func (e ProfileActivationEntry) record() logging.ProfileActivation {
	return logging.ProfileActivation{
		DeviceName:      e.DeviceName,
		ProfileName:     e.ProfileName,
		ProfileSource:   e.ProfileSource,
		LoadTypeName:    e.LoadTypeName,
		ActivationCount: e.ActivationCount,
	}
}
