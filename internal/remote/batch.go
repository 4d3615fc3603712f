package remote

// Batch accumulates the net effect of the operations seen in one wakeup.
//
// The sign of a bias selects the direction of its axis and its magnitude is
// discarded, so any number of same-direction presses yields one action.
// MuteToggled flips once per Mute operation.
type Batch struct {
	PlayBias    int
	SkipBias    int
	VolumeBias  int
	MuteToggled bool
}

// Add folds op into the batch.
func (b *Batch) Add(op Operation) {
	switch op {
	case Pause:
		b.PlayBias--
	case Play:
		b.PlayBias++
	case Previous:
		b.SkipBias--
	case Next:
		b.SkipBias++
	case VolumeUp:
		b.VolumeBias++
	case VolumeDown:
		b.VolumeBias--
	case Mute:
		b.MuteToggled = !b.MuteToggled
	}
}

// Empty reports whether applying the batch would dispatch nothing.
func (b Batch) Empty() bool {
	return b.PlayBias == 0 && b.SkipBias == 0 && b.VolumeBias == 0 && !b.MuteToggled
}

// Apply dispatches at most one action per axis to out, in the order
// play/pause, skip, volume, mute. The volume delta is volumeStep in the
// direction of VolumeBias; each input chooses its own step.
func (b Batch) Apply(out Output, volumeStep int) {
	switch {
	case b.PlayBias > 0:
		out.Play()
	case b.PlayBias < 0:
		out.Pause()
	}

	switch {
	case b.SkipBias > 0:
		out.Next()
	case b.SkipBias < 0:
		out.Previous()
	}

	switch {
	case b.VolumeBias > 0:
		out.AdjustVolume(volumeStep)
	case b.VolumeBias < 0:
		out.AdjustVolume(-volumeStep)
	}

	if b.MuteToggled {
		out.ToggleMute()
	}
}
