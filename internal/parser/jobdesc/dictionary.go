package jobdesc

import (
	"regexp"
	"strings"
)

// Seniority levels, highest precedence first.
type Seniority string

const (
	SeniorityPrincipal Seniority = "PRINCIPAL"
	SeniorityStaff     Seniority = "STAFF"
	SeniorityLead      Seniority = "LEAD"
	SeniorityManager   Seniority = "MANAGER"
	SenioritySenior    Seniority = "SENIOR"
	SeniorityMid       Seniority = "MID"
	SeniorityJunior    Seniority = "JUNIOR"
	SeniorityIntern    Seniority = "INTERN"
	SeniorityUnknown   Seniority = "UNKNOWN"
)

// Domain is the engineering area a posting belongs to.
type Domain string

const (
	DomainBackend   Domain = "BACKEND"
	DomainFrontend  Domain = "FRONTEND"
	DomainFullstack Domain = "FULLSTACK"
	DomainData      Domain = "DATA"
	DomainML        Domain = "ML"
	DomainPlatform  Domain = "PLATFORM"
	DomainDevOps    Domain = "DEVOPS"
	DomainMobile    Domain = "MOBILE"
	DomainSecurity  Domain = "SECURITY"
	DomainUnknown   Domain = "UNKNOWN"
)

// term is a dictionary alias compiled to a case-insensitive, word-bounded pattern.
type term struct {
	text      string
	re        *regexp.Regexp
	ambiguous bool
}

// compileTerm joins the alias' words with \s+ so wrapped or double-spaced
// mentions still match.
func compileTerm(alias string) term {
	parts := strings.Fields(alias)
	for i, p := range parts {
		parts[i] = regexp.QuoteMeta(p)
	}
	return term{text: alias, re: regexp.MustCompile(`(?i)\b` + strings.Join(parts, `\s+`) + `\b`)}
}

func compileTerms(aliases ...string) []term {
	out := make([]term, 0, len(aliases))
	for _, a := range aliases {
		out = append(out, compileTerm(a))
	}
	return out
}

type seniorityEntry struct {
	level   Seniority
	aliases []term
}

var seniorityDictionary = []seniorityEntry{
	{SeniorityPrincipal, compileTerms("principal")},
	{SeniorityStaff, compileTerms("staff")},
	{SeniorityLead, compileTerms("lead", "leading")},
	{SeniorityManager, compileTerms("manager", "management")},
	{SenioritySenior, compileTerms("senior", "sr")},
	{SeniorityMid, compileTerms("mid", "mid-level")},
	{SeniorityJunior, compileTerms("junior", "jr", "entry")},
	{SeniorityIntern, compileTerms("intern", "internship")},
}

type domainEntry struct {
	domain   Domain
	keywords []term
}

var domainDictionary = []domainEntry{
	{DomainBackend, compileTerms("backend", "microservices", "api", "server")},
	{DomainFrontend, compileTerms("frontend", "react", "ui", "ux", "browser")},
	{DomainFullstack, compileTerms("fullstack", "full stack")},
	{DomainData, compileTerms("data pipeline", "etl", "warehouse", "analytics")},
	{DomainML, compileTerms("machine learning", "ml", "model", "training")},
	{DomainPlatform, compileTerms("platform", "infrastructure", "runtime")},
	{DomainDevOps, compileTerms("devops", "ci/cd", "kubernetes", "terraform")},
	{DomainMobile, compileTerms("android", "ios", "mobile")},
	{DomainSecurity, compileTerms("security", "threat", "vulnerability", "infosec")},
}

type skillEntry struct {
	name    string
	aliases []term
}

// "go" collides with ordinary English and is only trusted on requirement lines.
var skillDictionary = []skillEntry{
	{"JAVA", compileTerms("java")},
	{"SPRING", compileTerms("spring")},
	{"SPRING_BOOT", compileTerms("spring boot", "springboot")},
	{"SQL", compileTerms("sql")},
	{"POSTGRESQL", compileTerms("postgres", "postgresql", "postgre")},
	{"MYSQL", compileTerms("mysql")},
	{"MONGODB", compileTerms("mongo", "mongodb")},
	{"REDIS", compileTerms("redis")},
	{"KAFKA", compileTerms("kafka")},
	{"AWS", compileTerms("aws", "amazon web services")},
	{"DOCKER", compileTerms("docker")},
	{"KUBERNETES", compileTerms("kubernetes", "k8s")},
	{"TERRAFORM", compileTerms("terraform")},
	{"GIT", compileTerms("git")},
	{"CI_CD", compileTerms("ci/cd", "cicd", "continuous integration")},
	{"REST", compileTerms("rest", "restful")},
	{"GRAPHQL", compileTerms("graphql")},
	{"GO", append(compileTerms("golang"), ambiguousTerm("go"))},
	{"PYTHON", compileTerms("python")},
}

// ambiguousTerm matches only the capitalized or upper-case spelling, so "Go"
// and "GO" count while the verb "go" does not.
func ambiguousTerm(alias string) term {
	title := strings.ToUpper(alias[:1]) + alias[1:]
	upper := strings.ToUpper(alias)
	re := regexp.MustCompile(`\b(?:` + regexp.QuoteMeta(title) + `|` + regexp.QuoteMeta(upper) + `)\b`)
	return term{text: alias, re: re, ambiguous: true}
}

const (
	skillSpring     = "SPRING"
	skillSpringBoot = "SPRING_BOOT"
)

// Seniorities lists every seniority the pipeline can emit, in precedence order.
func Seniorities() []string {
	out := make([]string, 0, len(seniorityDictionary)+1)
	for _, e := range seniorityDictionary {
		out = append(out, string(e.level))
	}
	return append(out, string(SeniorityUnknown))
}

// Domains lists every domain the pipeline can emit.
func Domains() []string {
	out := make([]string, 0, len(domainDictionary)+1)
	for _, e := range domainDictionary {
		out = append(out, string(e.domain))
	}
	return append(out, string(DomainUnknown))
}

// Skills lists the canonical skill names in dictionary order.
func Skills() []string {
	out := make([]string, 0, len(skillDictionary))
	for _, e := range skillDictionary {
		out = append(out, e.name)
	}
	return out
}
