package domain

// SelectLevel picks the highest level whose team-size threshold the count
// meets or exceeds. Returns (current, false) when no threshold is met or
// the candidate would sit below the current level: this path never
// demotes an account.
func SelectLevel(thresholds []LevelThreshold, current, teamSize int) (int, bool) {
	best := -1
	for _, th := range thresholds {
		if teamSize >= th.MinTeam && th.Level > best {
			best = th.Level
		}
	}
	if best < 0 || best < current {
		return current, false
	}
	return best, best != current
}

// ThresholdFor returns the configuration row for a level.
func ThresholdFor(thresholds []LevelThreshold, level int) (LevelThreshold, bool) {
	for _, th := range thresholds {
		if th.Level == level {
			return th, true
		}
	}
	return LevelThreshold{}, false
}
