// Package scorer computes brand and domain mention flags for a response
// text. Matching is deliberately plain case-insensitive substring
// containment; no tokenization or word-boundary handling, so short names can
// match inside longer words ("Art" inside "Smart").
package scorer

import (
	"strings"

	"github.com/osvaldoandrade/geoscope/pkg/domain"
)

// Score is a pure function of its inputs: identical calls yield identical
// results. Empty name lists produce empty flag maps and zero aggregates.
func Score(responseText string, brands, domains []string) domain.MentionAnalysis {
	lower := strings.ToLower(responseText)

	analysis := domain.MentionAnalysis{
		Brands:  domain.NewMentionFlags(brands),
		Domains: domain.NewMentionFlags(domains),
	}

	for _, brand := range analysis.Brands.Names() {
		if strings.Contains(lower, strings.ToLower(brand)) {
			analysis.Brands.Set(brand, true)
			analysis.HasBrandMention = true
			analysis.TotalBrandMentions++
		}
	}
	for _, d := range analysis.Domains.Names() {
		if strings.Contains(lower, strings.ToLower(d)) {
			analysis.Domains.Set(d, true)
			analysis.HasDomainMention = true
			analysis.TotalDomainMentions++
		}
	}
	return analysis
}
