package constants

import "strings"

// InputType says how the job description reached us.
type InputType string

const (
	InputTypeURL    InputType = "URL"
	InputTypePasted InputType = "PASTED"
)

var allInputTypes = []InputType{InputTypeURL, InputTypePasted}

// ParseInputType canonicalizes user supplied input type names.
func ParseInputType(input string) (InputType, bool) {
	normalized := strings.ToUpper(strings.TrimSpace(input))
	if normalized == "" {
		return "", false
	}
	synonyms := map[string]InputType{
		"LINK":  InputTypeURL,
		"PASTE": InputTypePasted,
		"TEXT":  InputTypePasted,
	}
	if t, ok := synonyms[normalized]; ok {
		return t, true
	}
	for _, t := range allInputTypes {
		if normalized == string(t) {
			return t, true
		}
	}
	return "", false
}

// SourceType says how a résumé reached us.
type SourceType string

const (
	SourcePasted   SourceType = "PASTED"
	SourceUploaded SourceType = "UPLOADED"
)
