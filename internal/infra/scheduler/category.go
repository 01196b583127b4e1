package scheduler

import (
	"strings"

	"mcpscout/internal/domain"
)

type categoryRule struct {
	category domain.ProviderCategory
	keywords []string
}

// Rules are evaluated in order; the first matching keyword wins.
var categoryRules = []categoryRule{
	{category: domain.CategoryFilesystem, keywords: []string{"file"}},
	{category: domain.CategorySearch, keywords: []string{"duck", "search", "fire", "crawl"}},
	{category: domain.CategoryMemory, keywords: []string{"memory", "graph"}},
	{category: domain.CategoryCodeHosting, keywords: []string{"github", "git"}},
	{category: domain.CategoryBrowser, keywords: []string{"brows", "play"}},
	{category: domain.CategoryEmail, keywords: []string{"mail"}},
	{category: domain.CategoryCalendar, keywords: []string{"calendar", "outlook"}},
	{category: domain.CategoryTravel, keywords: []string{"airbnb"}},
	{category: domain.CategoryVoice, keywords: []string{"eleven"}},
}

// Categorize maps a provider name to a category. Every name maps to exactly one.
func Categorize(name string) domain.ProviderCategory {
	lower := strings.ToLower(name)
	for _, rule := range categoryRules {
		for _, keyword := range rule.keywords {
			if strings.Contains(lower, keyword) {
				return rule.category
			}
		}
	}
	return domain.CategoryOther
}
