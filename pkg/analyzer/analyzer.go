// Package analyzer scores a crawled set of pages into an audit result,
// porting the original analyzer.py rule set (spec §4.F) to idiomatic Go.
package analyzer

import (
	"github.com/shakhawat2680/autoseo/pkg/audit"
	"github.com/shakhawat2680/autoseo/pkg/crawler"
)

const (
	minScore = 0
	maxScore = 100

	penaltyMissingTitle   = 20
	penaltyShortTitle     = 10
	penaltyMissingMeta    = 20
	penaltyShortMeta      = 10
	penaltyLowWordCount   = 15
	shortTitleThreshold   = 30
	shortMetaThreshold    = 70
	lowWordCountThreshold = 300
)

// Result is the outcome of analyzing one crawl: an overall score plus the
// concatenated issues that produced it (spec §4.F).
type Result struct {
	Score         int
	Issues        []audit.Issue
	PagesAnalyzed int
}

// Analyze scores every page, then combines per-page scores into one overall
// score (arithmetic mean for multi-page audits) with issues concatenated.
func Analyze(pages []crawler.Page) Result {
	if len(pages) == 0 {
		return Result{Score: minScore, PagesAnalyzed: 0}
	}

	var (
		total  int
		issues []audit.Issue
	)
	for _, page := range pages {
		score, pageIssues := analyzePage(page)
		total += score
		issues = append(issues, pageIssues...)
	}

	return Result{
		Score:         total / len(pages),
		Issues:        issues,
		PagesAnalyzed: len(pages),
	}
}

// analyzePage applies the fixed rule set to a single page, starting at 100
// and deducting per triggered rule, clamped to [0,100] (spec §4.F).
func analyzePage(page crawler.Page) (int, []audit.Issue) {
	score := maxScore
	var issues []audit.Issue

	if page.Title == "" {
		score -= penaltyMissingTitle
		issues = append(issues, audit.Issue{
			Kind: "missing_title", Severity: "high", Penalty: penaltyMissingTitle,
			Message: "page has no title tag", PageURL: page.URL,
		})
	}
	if len(page.Title) < shortTitleThreshold {
		score -= penaltyShortTitle
		issues = append(issues, audit.Issue{
			Kind: "short_title", Severity: "medium", Penalty: penaltyShortTitle,
			Message: "title is shorter than 30 characters", PageURL: page.URL,
		})
	}

	if page.MetaDescription == "" {
		score -= penaltyMissingMeta
		issues = append(issues, audit.Issue{
			Kind: "missing_meta_description", Severity: "high", Penalty: penaltyMissingMeta,
			Message: "page has no meta description", PageURL: page.URL,
		})
	} else if len(page.MetaDescription) < shortMetaThreshold {
		score -= penaltyShortMeta
		issues = append(issues, audit.Issue{
			Kind: "short_meta_description", Severity: "medium", Penalty: penaltyShortMeta,
			Message: "meta description is shorter than 70 characters", PageURL: page.URL,
		})
	}

	if page.WordCount < lowWordCountThreshold {
		score -= penaltyLowWordCount
		issues = append(issues, audit.Issue{
			Kind: "thin_content", Severity: "medium", Penalty: penaltyLowWordCount,
			Message: "page has fewer than 300 words", PageURL: page.URL,
		})
	}

	if score < minScore {
		score = minScore
	}
	if score > maxScore {
		score = maxScore
	}
	return score, issues
}
