package jobdesc

import (
	"context"
	"slices"
	"strings"
)

// Skilled adds bucketed skills.
type Skilled struct {
	Classified
	Required  []string
	Preferred []string
	TechStack []string
	Mentions  []SkillMention
}

// SkillMention counts the matches of one canonical skill.
type SkillMention struct {
	Name  string
	Count int
}

type bucket int

const (
	bucketTechStack bucket = iota
	bucketRequired
	bucketPreferred
)

var (
	requiredCues  = []string{"must have", "required", "we require", "you have", "strong experience in", "proficient in"}
	preferredCues = []string{"nice to have", "preferred", "bonus", "plus", "good to have", "would be a plus"}
)

func containsAny(s string, cues []string) bool {
	for _, c := range cues {
		if strings.Contains(s, c) {
			return true
		}
	}
	return false
}

// classifyLine prefers explicit cue phrases over the inherited block label.
func classifyLine(l LabeledLine) bucket {
	lower := strings.ToLower(l.Text)
	switch {
	case containsAny(lower, requiredCues):
		return bucketRequired
	case containsAny(lower, preferredCues):
		return bucketPreferred
	case l.Label == LabelPreferred:
		return bucketPreferred
	case l.Label == LabelRequirements:
		return bucketRequired
	default:
		return bucketTechStack
	}
}

// allowsAmbiguous reports whether a block lists skills closely enough for
// short aliases like "go" to count. Cue phrases alone never qualify.
func allowsAmbiguous(l Label) bool {
	switch l {
	case LabelRequirements, LabelPreferred, LabelSkills:
		return true
	}
	return false
}

// findSkills returns canonical skills and their match counts on one line.
func findSkills(line string, allowAmbiguous bool) map[string]int {
	found := make(map[string]int)
	for _, entry := range skillDictionary {
		n := 0
		for _, alias := range entry.aliases {
			if alias.ambiguous && !allowAmbiguous {
				continue
			}
			n += len(alias.re.FindAllStringIndex(line, -1))
		}
		if n > 0 {
			found[entry.name] = n
		}
	}
	// "spring boot" also satisfies the bare spring alias.
	if _, ok := found[skillSpringBoot]; ok {
		delete(found, skillSpring)
	}
	return found
}

func extractSkills(_ context.Context, in Classified) (Skilled, error) {
	required := map[string]struct{}{}
	preferred := map[string]struct{}{}
	tech := map[string]struct{}{}
	counts := map[string]int{}

	for _, l := range in.Lines {
		if strings.TrimSpace(l.Text) == "" {
			continue
		}
		b := classifyLine(l)
		for name, n := range findSkills(l.Text, allowsAmbiguous(l.Label)) {
			counts[name] += n
			tech[name] = struct{}{}
			switch b {
			case bucketRequired:
				required[name] = struct{}{}
			case bucketPreferred:
				preferred[name] = struct{}{}
			}
		}
	}

	out := Skilled{
		Classified: in,
		Required:   sortedKeys(required),
		Preferred:  sortedKeys(preferred),
		TechStack:  sortedKeys(tech),
	}
	for _, name := range sortedKeys(counts) {
		out.Mentions = append(out.Mentions, SkillMention{Name: name, Count: counts[name]})
	}
	return out, nil
}

func sortedKeys[V any](m map[string]V) []string {
	if len(m) == 0 {
		return nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
