package scheduler

import (
	"sort"

	"mcpscout/internal/domain"
)

type Tier string

const (
	TierHigh     Tier = "high"
	TierMedium   Tier = "medium"
	TierCategory Tier = "category"
)

// Placement explains where a provider landed in the schedule.
type Placement struct {
	Name     string                  `json:"name"`
	Tier     Tier                    `json:"tier"`
	Category domain.ProviderCategory `json:"category"`
	Priority int                     `json:"priority"`
}

type Scheduler struct {
	table domain.PriorityTable
}

func New(table domain.PriorityTable) *Scheduler {
	return &Scheduler{table: table}
}

// Schedule orders names: exact high-priority matches in list order, then
// exact medium-priority matches in list order, then the rest stably sorted
// by category priority. Duplicate input names are emitted once.
func (s *Scheduler) Schedule(names []string) []string {
	plan := s.Plan(names)
	out := make([]string, 0, len(plan))
	for _, placement := range plan {
		out = append(out, placement.Name)
	}
	return out
}

// Plan is Schedule with the reasoning attached to each entry.
func (s *Scheduler) Plan(names []string) []Placement {
	present := make(map[string]struct{}, len(names))
	unique := make([]string, 0, len(names))
	for _, name := range names {
		if _, seen := present[name]; seen {
			continue
		}
		present[name] = struct{}{}
		unique = append(unique, name)
	}

	placed := make(map[string]struct{}, len(unique))
	plan := make([]Placement, 0, len(unique))
	takeListed := func(list []string, tier Tier, priority int) {
		for _, name := range list {
			if _, ok := present[name]; !ok {
				continue
			}
			if _, done := placed[name]; done {
				continue
			}
			placed[name] = struct{}{}
			plan = append(plan, Placement{
				Name:     name,
				Tier:     tier,
				Category: Categorize(name),
				Priority: priority,
			})
		}
	}
	takeListed(s.table.High, TierHigh, 0)
	takeListed(s.table.Medium, TierMedium, 0)

	rest := make([]Placement, 0, len(unique)-len(plan))
	for _, name := range unique {
		if _, done := placed[name]; done {
			continue
		}
		category := Categorize(name)
		rest = append(rest, Placement{
			Name:     name,
			Tier:     TierCategory,
			Category: category,
			Priority: s.table.CategoryPriority(category),
		})
	}
	sort.SliceStable(rest, func(i, j int) bool {
		return rest[i].Priority < rest[j].Priority
	})
	return append(plan, rest...)
}
