package pipeline

// Group is a maximal run of consecutive stages sharing the same parallelizability.
type Group struct {
	Parallel bool
	Stages   []Stage
}

// Plan partitions stages into groups. A boundary is placed only where
// parallelizability changes, so adjacent parallel stages fan out together.
func Plan(stages []Stage) []Group {
	var groups []Group
	var current []Stage
	parallel := false

	for _, st := range stages {
		if len(current) > 0 && st.Parallel() != parallel {
			groups = append(groups, Group{Parallel: parallel, Stages: current})
			current = nil
		}
		if len(current) == 0 {
			parallel = st.Parallel()
		}
		current = append(current, st)
	}
	if len(current) > 0 {
		groups = append(groups, Group{Parallel: parallel, Stages: current})
	}
	return groups
}
