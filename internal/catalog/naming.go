package catalog

import (
	"regexp"
	"strings"
)

// replicateSuffix matches the trailing replicate number of an instance name,
// e.g. "Ethanol 12" or "Ethanol-3 ".
var replicateSuffix = regexp.MustCompile(`[\s-]\d+\s*\z`)

type familyRule struct {
	pattern *regexp.Regexp
	family  string
}

// familyRules is checked in order and the first match wins. Patterns are
// anchored to the end of the species name so that e.g. "Pinacolone" is a
// ketone rather than an alcohol.
var familyRules = []familyRule{
	{regexp.MustCompile(`(?i)ate\z`), "Acetates"},
	{regexp.MustCompile(`(?i)ol\z`), "Alcohols"},
	{regexp.MustCompile(`(?i)al\z`), "Aldehydes"},
	{regexp.MustCompile(`(?i)ane\z`), "Alkanes"},
	{regexp.MustCompile(`(?i)ene\z`), "Alkenes"},
	{regexp.MustCompile(`(?i)yne\z`), "Alkynes"},
	{regexp.MustCompile(`(?i)ine\z`), "Amines"},
	{regexp.MustCompile(`(?i)oic acid\z`), "Carboxylic Acids"},
	{regexp.MustCompile(`(?i)ether\z`), "Ethers"},
	{regexp.MustCompile(`(?i)one\z`), "Ketones"},
}

// SpeciesOf strips the replicate suffix from an instance name.
func SpeciesOf(name string) string {
	return replicateSuffix.ReplaceAllString(name, "")
}

func matchFamily(species string) (string, bool) {
	for _, rule := range familyRules {
		if rule.pattern.MatchString(species) {
			return rule.family, true
		}
	}
	return "", false
}

// Derive resolves both the species and the family of an instance name.
func Derive(name string) (species, family string, err error) {
	if strings.TrimSpace(name) == "" {
		return "", "", &DerivationError{Name: name}
	}
	species = SpeciesOf(name)
	family, ok := matchFamily(species)
	if !ok {
		return "", "", &DerivationError{Name: name, Species: species}
	}
	return species, family, nil
}
