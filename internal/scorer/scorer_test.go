package scorer

import (
	"reflect"
	"strings"
	"testing"
)

func TestScoreScenario(t *testing.T) {
	text := "Acme Corp is a company at acme.com"
	a := Score(text, []string{"Acme"}, []string{"acme.com"})

	if a.Brands.Get("Acme") != 1 {
		t.Error("brand flag not set")
	}
	if a.Domains.Get("acme.com") != 1 {
		t.Error("domain flag not set")
	}
	if !a.HasBrandMention || !a.HasDomainMention {
		t.Error("has-mention flags not set")
	}
	if a.TotalBrandMentions != 1 || a.TotalDomainMentions != 1 {
		t.Errorf("totals = %d/%d, want 1/1", a.TotalBrandMentions, a.TotalDomainMentions)
	}
}

func TestScoreCaseInsensitive(t *testing.T) {
	a := Score("we compared ACME against Globex", []string{"acme", "Globex", "Initech"}, nil)
	if a.Brands.Get("acme") != 1 || a.Brands.Get("Globex") != 1 {
		t.Error("case-insensitive matches missed")
	}
	if a.Brands.Get("Initech") != 0 {
		t.Error("absent brand flagged")
	}
	if a.TotalBrandMentions != 2 {
		t.Errorf("total = %d, want 2", a.TotalBrandMentions)
	}
}

func TestScoreSubstringFalsePositive(t *testing.T) {
	// Substring matching is the documented contract, false positives included.
	a := Score("a smart appliance", []string{"Art"}, nil)
	if a.Brands.Get("Art") != 1 {
		t.Error("substring containment is the contract; 'Art' should match inside 'smart'")
	}
}

func TestScoreEmptyLists(t *testing.T) {
	a := Score("anything at all", nil, nil)
	if a.Brands.Len() != 0 || a.Domains.Len() != 0 {
		t.Error("empty inputs should yield empty flag maps")
	}
	if a.HasBrandMention || a.HasDomainMention || a.TotalBrandMentions != 0 || a.TotalDomainMentions != 0 {
		t.Error("empty inputs should yield zero aggregates")
	}
}

func TestScoreFlagOrderMatchesInput(t *testing.T) {
	a := Score("x", []string{"C", "A", "B"}, nil)
	if got := a.Brands.Names(); !reflect.DeepEqual(got, []string{"C", "A", "B"}) {
		t.Errorf("flag order = %v, want input order", got)
	}
}

func TestScoreTotalsEqualFlagCount(t *testing.T) {
	brands := []string{"Acme", "Globex", "acme.com", "Umbrella"}
	text := "Acme bought Globex"
	a := Score(text, brands, nil)

	flagged := 0
	for _, b := range a.Brands.Names() {
		flagged += a.Brands.Get(b)
	}
	if a.TotalBrandMentions != flagged {
		t.Errorf("total %d != flags-set count %d", a.TotalBrandMentions, flagged)
	}
}

func TestScoreIdempotent(t *testing.T) {
	text := "Acme at acme.com, twice: Acme"
	first := Score(text, []string{"Acme"}, []string{"acme.com"})
	second := Score(text, []string{"Acme"}, []string{"acme.com"})
	if !reflect.DeepEqual(first, second) {
		t.Error("identical inputs must yield identical analyses")
	}
}

func BenchmarkScore(b *testing.B) {
	text := strings.Repeat("The quick brown fox mentions Acme and acme.com now and then. ", 50)
	brands := []string{"Acme", "Globex", "Initech", "Umbrella", "Hooli"}
	domains := []string{"acme.com", "globex.io", "initech.net"}
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		Score(text, brands, domains)
	}
}
