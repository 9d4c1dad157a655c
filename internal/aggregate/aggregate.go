// Package aggregate turns a batch's per-item results into the durable
// report snapshot.
package aggregate

import (
	"math"
	"time"

	"github.com/osvaldoandrade/geoscope/pkg/domain"
)

type Input struct {
	TaskID   string
	TaskName string
	Results  []domain.PromptResult
	Brands   []string
	Domains  []string
	Settings domain.ReportSettings
	Now      time.Time
}

// Summarize builds the report once, after all items have resolved. An answer
// counts toward brandMentionCount once no matter how many distinct brands it
// mentions; per-name stats count that name's flag across successful results.
// All rates are percentages rounded to two decimals, zero when there were no
// successful queries.
func Summarize(in Input) *domain.BatchReport {
	successful := 0
	brandHits := 0
	domainHits := 0
	perBrand := make(map[string]int, len(in.Brands))
	perDomain := make(map[string]int, len(in.Domains))

	for _, res := range in.Results {
		if res.Status != domain.ResultSuccess {
			continue
		}
		successful++
		if res.Analysis.HasBrandMention {
			brandHits++
		}
		if res.Analysis.HasDomainMention {
			domainHits++
		}
		for _, b := range in.Brands {
			perBrand[b] += res.Analysis.Brands.Get(b)
		}
		for _, d := range in.Domains {
			perDomain[d] += res.Analysis.Domains.Get(d)
		}
	}

	brandStats := make(map[string]domain.NameStats, len(in.Brands))
	for _, b := range in.Brands {
		brandStats[b] = domain.NameStats{
			MentionCount: perBrand[b],
			MentionRate:  rate(perBrand[b], successful),
		}
	}
	domainStats := make(map[string]domain.NameStats, len(in.Domains))
	for _, d := range in.Domains {
		domainStats[d] = domain.NameStats{
			MentionCount: perDomain[d],
			MentionRate:  rate(perDomain[d], successful),
		}
	}

	return &domain.BatchReport{
		TaskID:             in.TaskID,
		TaskName:           in.TaskName,
		TotalPrompts:       len(in.Results),
		SuccessfulQueries:  successful,
		BrandMentionCount:  brandHits,
		DomainMentionCount: domainHits,
		BrandMentionRate:   rate(brandHits, successful),
		DomainMentionRate:  rate(domainHits, successful),
		Brands:             in.Brands,
		Domains:            in.Domains,
		BrandStats:         brandStats,
		DomainStats:        domainStats,
		Timestamp:          in.Now,
		Settings:           in.Settings,
		Results:            in.Results,
	}
}

// rate returns count/total as a percentage with two-decimal rounding, 0 when
// total is zero.
func rate(count, total int) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(count)/float64(total)*100*100) / 100
}
