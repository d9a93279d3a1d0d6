package product

import (
	"fmt"
	"slices"
	"strings"
)

// resolver yields a code for an analysis center and solution type.
type resolver interface {
	resolve(center, solution string) string
}

// constant resolves to itself.
type constant string

func (c constant) resolve(_, _ string) string { return string(c) }

// bySolution resolves by the solution type, e.g. FIN or RAP.
type bySolution struct {
	values   map[string]string
	fallback string
}

func (s bySolution) resolve(_, solution string) string {
	if v, ok := s.values[solution]; ok {
		return v
	}
	return s.fallback
}

// rule applies its resolver if the analysis center is one of centers.
type rule struct {
	centers []string
	then    resolver
}

func (r rule) match(center string) bool {
	return slices.Contains(r.centers, center)
}

// ruleSet evaluates rules in declared order, the first matching rule wins.
// If no rule matches, the fallback is used.
type ruleSet struct {
	rules    []rule
	fallback resolver
}

func (rs ruleSet) resolve(center, solution string) string {
	for _, r := range rs.rules {
		if r.match(center) {
			return r.then.resolve(center, solution)
		}
	}
	return rs.fallback.resolve(center, solution)
}

// contentTypes maps the format extension to the 3-char content type (CNT).
var contentTypes = map[string]resolver{
	"ERP": constant("ERP"),
	"SP3": constant("ORB"),
	"CLK": constant("CLK"),
	"OBX": constant("ATT"),
	"TRO": constant("TRO"),
	"SNX": constant("CRD"),
	"BIA": ruleSet{
		rules:    []rule{{centers: []string{"ESA"}, then: constant("BIA")}},
		fallback: constant("OSB"),
	},
}

// defaultSamplingRate is used for extensions without an entry in samplingRates.
const defaultSamplingRate = "01D"

// samplingRates maps the format extension to the 3-char sampling rate (SMP).
// Some centers differ between final and rapid solutions.
var samplingRates = map[string]resolver{
	"ERP": constant("01D"),
	"BIA": constant("01D"),
	"SNX": constant("01D"),
	"SP3": ruleSet{
		rules: []rule{
			{centers: []string{"COD", "GFZ", "GRG", "IAC", "JAX", "MIT", "WUM"}, then: constant("05M")},
			{centers: []string{"ESA"}, then: bySolution{values: map[string]string{"FIN": "05M", "RAP": "15M"}, fallback: "15M"}},
		},
		fallback: constant("15M"),
	},
	"CLK": ruleSet{
		rules: []rule{
			{centers: []string{"EMR", "IGS", "MIT", "SHA", "USN"}, then: constant("05M")},
			{centers: []string{"ESA", "GFZ", "GRG"}, then: bySolution{values: map[string]string{"FIN": "30S", "RAP": "05M"}, fallback: "30S"}},
		},
		fallback: constant("30S"),
	},
	"OBX": ruleSet{
		rules:    []rule{{centers: []string{"GRG"}, then: constant("05M")}},
		fallback: constant("30S"),
	},
	"TRO": ruleSet{
		rules:    []rule{{centers: []string{"JPL"}, then: constant("30S")}},
		fallback: constant("01H"),
	},
}

// ContentType returns the content type (CNT) of a product given by its format extension, e.g. "SP3" -> "ORB".
func ContentType(ext, center string) (string, error) {
	r, ok := contentTypes[strings.ToUpper(ext)]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, ext)
	}
	return r.resolve(strings.ToUpper(center), ""), nil
}

// SamplingRate returns the sampling rate (SMP) of a product given by its format extension, analysis center
// and solution type. It never returns an empty string.
func SamplingRate(ext, center, solution string) string {
	r, ok := samplingRates[strings.ToUpper(ext)]
	if !ok {
		return defaultSamplingRate
	}
	return r.resolve(strings.ToUpper(center), strings.ToUpper(solution))
}
