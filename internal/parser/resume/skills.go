package resume

import (
	"context"
	"regexp"
	"strings"
)

// Skill is a canonical skill name.
type Skill string

type skillAlias struct {
	re        *regexp.Regexp
	ambiguous bool
}

type skillEntry struct {
	skill   Skill
	aliases []skillAlias
}

// aliasPattern compiles a lower case alias. Aliases with symbols cannot use
// word boundaries and are matched literally.
func aliasPattern(alias string) *regexp.Regexp {
	parts := strings.Fields(strings.ToLower(alias))
	for i, p := range parts {
		parts[i] = regexp.QuoteMeta(p)
	}
	core := strings.Join(parts, `\s+`)
	if strings.ContainsAny(alias, ".+#") {
		return regexp.MustCompile(core)
	}
	return regexp.MustCompile(`\b` + core + `\b`)
}

func skill(name Skill, aliases ...string) skillEntry {
	e := skillEntry{skill: name}
	for _, a := range aliases {
		ambiguous := strings.HasSuffix(a, "?")
		e.aliases = append(e.aliases, skillAlias{re: aliasPattern(strings.TrimSuffix(a, "?")), ambiguous: ambiguous})
	}
	return e
}

// Dictionary order is output order. A trailing "?" marks an alias that is
// only trusted inside a skills section.
var skillDictionary = []skillEntry{
	skill("JAVA", "java"),
	skill("SPRING", "spring"),
	skill("SPRING_BOOT", "spring boot", "spring-boot"),
	skill("KAFKA", "kafka"),
	skill("SQL", "sql"),
	skill("POSTGRESQL", "postgresql", "postgres"),
	skill("MONGODB", "mongodb", "mongo"),
	skill("DOCKER", "docker"),
	skill("KUBERNETES", "kubernetes", "k8s"),
	skill("AWS", "aws", "amazon web services"),
	skill("REACT", "react", "react.js", "reactjs"),
	skill("NEXTJS", "next.js", "nextjs"),
	skill("PYTHON", "python"),
	skill("GOLANG", "golang", "go?"),
	skill("NODEJS", "node.js", "nodejs", "node"),
}

func matchSkills(text string, allowAmbiguous bool, found map[Skill]bool) {
	if strings.TrimSpace(text) == "" {
		return
	}
	lower := strings.ToLower(text)
	for _, e := range skillDictionary {
		for _, a := range e.aliases {
			if a.ambiguous && !allowAmbiguous {
				continue
			}
			if a.re.MatchString(lower) {
				found[e.skill] = true
				break
			}
		}
	}
}

func skills(_ context.Context, in Sectioned) (SkillsOutput, error) {
	var section []string
	for _, s := range in.Sections {
		if s.Section == SectionSkills {
			section = append(section, s.Lines...)
		}
	}
	found := map[Skill]bool{}
	matchSkills(strings.Join(section, "\n"), true, found)
	matchSkills(in.NormalizedText, false, found)

	var out SkillsOutput
	for _, e := range skillDictionary {
		if found[e.skill] {
			out.Skills = append(out.Skills, e.skill)
		}
	}
	return out, nil
}
