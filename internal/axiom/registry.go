package axiom

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"slices"
	"strconv"
	"strings"
)

var (
	// ErrUnknownAxiom is returned for an axiom name that is not registered.
	ErrUnknownAxiom = errors.New("unknown axiom")
	// ErrInvalidWeight is returned for a weight that is not a finite number.
	ErrInvalidWeight = errors.New("invalid axiom weight")
)

// Dependencies are the collaborators some axioms are constructed with.
type Dependencies struct {
	Rand       *rand.Rand
	Similarity TermSimilarity
}

type constructor func(Dependencies) Axiom

func stateless(a Axiom) constructor {
	return func(Dependencies) Axiom { return a }
}

var registry = map[string]constructor{
	"random": func(d Dependencies) Axiom {
		rng := d.Rand
		if rng == nil {
			rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
		}
		return NewRandom(rng)
	},
	"document-id": stateless(DocumentID{}),
	"original":    stateless(Original{}),
	"tf-idf":      stateless(TFIDF{}),
	"bm25":        stateless(BM25{}),
	"pl2":         stateless(PL2{}),
	"ql":          stateless(QL{}),
	"tfc1":        stateless(TFC1{}),
	"tfc3":        stateless(TFC3{}),
	"lnc1":        stateless(LNC1{}),

	"argument-count":                               stateless(ArgumentCount{}),
	"query-terms-in-argument":                      stateless(QueryTermsInArgument{}),
	"query-term-position-in-argument":              stateless(QueryTermPositionInArgument{}),
	"comparative-object-terms-in-argument":         stateless(ComparativeObjectTermsInArgument{}),
	"comparative-object-term-position-in-argument": stateless(ComparativeObjectTermPositionInArgument{}),
	"average-sentence-length":                      stateless(AverageSentenceLength{}),
	"argument-quality":                             stateless(ArgumentQuality{}),
	"argument-stance":                              stateless(ArgumentStance{}),

	"stmc1": func(d Dependencies) Axiom { return STMC1{Similarity: d.Similarity} },
}

var aliases = map[string]string{
	"tfidf": "tf-idf",
	"id":    "document-id",
}

// Names returns the registered axiom names in sorted order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Entry is one weighted axiom of a profile.
type Entry struct {
	Name   string
	Weight float64
}

// Profile is a weighted list of axiom names.
type Profile []Entry

// ParseProfile parses a comma separated list of name[:weight] entries, for example
// "argument-count:2,tfc1". Names are resolved immediately so configuration errors surface
// before any query is processed.
func ParseProfile(s string) (Profile, error) {
	var profile Profile
	for _, field := range strings.Split(s, ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}

		name, weightStr, hasWeight := strings.Cut(field, ":")
		name = canonicalName(name)
		if _, ok := registry[name]; !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownAxiom, name)
		}

		weight := 1.0
		if hasWeight {
			w, err := strconv.ParseFloat(strings.TrimSpace(weightStr), 64)
			if err != nil || math.IsNaN(w) || math.IsInf(w, 0) {
				return nil, fmt.Errorf("%w: %q", ErrInvalidWeight, field)
			}
			weight = w
		}
		profile = append(profile, Entry{Name: name, Weight: weight})
	}
	return profile, nil
}

// String formats the profile in the syntax accepted by ParseProfile.
func (p Profile) String() string {
	parts := make([]string, len(p))
	for i, e := range p {
		if e.Weight == 1 {
			parts[i] = e.Name
			continue
		}
		parts[i] = e.Name + ":" + strconv.FormatFloat(e.Weight, 'g', -1, 64)
	}
	return strings.Join(parts, ",")
}

// Contains reports whether the profile uses the named axiom.
func (p Profile) Contains(name string) bool {
	name = canonicalName(name)
	for _, e := range p {
		if canonicalName(e.Name) == name {
			return true
		}
	}
	return false
}

// Build constructs the aggregated axiom of the profile.
func (p Profile) Build(deps Dependencies) (Axiom, error) {
	axioms := make(Aggregated, 0, len(p))
	for _, e := range p {
		newAxiom, ok := registry[canonicalName(e.Name)]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownAxiom, e.Name)
		}
		a := newAxiom(deps)
		if e.Weight != 1 {
			a = Weighted{Axiom: a, Weight: e.Weight}
		}
		axioms = append(axioms, a)
	}
	return axioms, nil
}

func canonicalName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	name = strings.ReplaceAll(name, "_", "-")
	if alias, ok := aliases[name]; ok {
		return alias
	}
	return name
}
