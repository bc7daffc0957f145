package track

import (
	"context"
	"fmt"
	"sort"
	"time"

	"tempo/internal/core"
)

// Service computes elapsed-time totals and calendar reports from stored
// records. Every call recomputes from the store, so results always
// reflect the state at call time; the only ambient input is the clock,
// consulted for the open record's elapsed time.
type Service struct {
	store Store
	clock core.Clock
}

func NewService(store Store, clock core.Clock) *Service {
	if clock == nil {
		clock = core.SystemClock()
	}
	return &Service{store: store, clock: clock}
}

// ElapsedTime sums the elapsed seconds of the project's records whose
// start instant falls in [begin, end). The filter looks at start times
// only: a record starting before begin is excluded even when it overlaps
// the range, and a record starting in range counts in full even when it
// stops after end.
func (s *Service) ElapsedTime(ctx context.Context, project string, begin, end *time.Time) (int64, error) {
	var lo, hi *int64
	if begin != nil {
		v := begin.Unix()
		lo = &v
	}
	if end != nil {
		v := end.Unix()
		hi = &v
	}

	records, err := s.store.RecordsForProject(ctx, project, lo, hi)
	if err != nil {
		return 0, fmt.Errorf("find records for project %s: %w", project, err)
	}

	now := s.clock.Now()
	var total int64
	for _, r := range records {
		total += r.Elapsed(now)
	}
	return total, nil
}

// ElapsedTimePerCategory sums ElapsedTime over the category's current
// member projects. A category with no projects totals 0; a project linked
// to two categories counts toward both totals.
func (s *Service) ElapsedTimePerCategory(ctx context.Context, category string, begin, end *time.Time) (int64, error) {
	projects, err := s.store.ListCategoryProjects(ctx, category)
	if err != nil {
		return 0, fmt.Errorf("list projects of category %s: %w", category, err)
	}

	var total int64
	for _, p := range projects {
		elapsed, err := s.ElapsedTime(ctx, p.Name, begin, end)
		if err != nil {
			return 0, err
		}
		total += elapsed
	}
	return total, nil
}

// EntriesPerDay maps project name to elapsed seconds for records starting
// within the day's window: local midnight through the next midnight,
// inclusive on both ends. Bucketing is by start time only; a record
// running past midnight is attributed entirely to its start day.
//
// A non-empty category restricts the result to its member projects; an
// unknown category name is an error, not an empty map.
func (s *Service) EntriesPerDay(ctx context.Context, day core.Date, category string) (map[string]int64, error) {
	begin, end := day.Window()

	records, err := s.store.RecordsStartedBetween(ctx, begin, end)
	if err != nil {
		return nil, fmt.Errorf("find records on %s: %w", day, err)
	}

	if category != "" {
		if _, err := s.store.FindCategory(ctx, category); err != nil {
			return nil, fmt.Errorf("category %s: %w", category, err)
		}
		members, err := s.store.ListCategoryProjects(ctx, category)
		if err != nil {
			return nil, fmt.Errorf("list projects of category %s: %w", category, err)
		}
		inCategory := make(map[string]struct{}, len(members))
		for _, p := range members {
			inCategory[p.Name] = struct{}{}
		}
		filtered := records[:0]
		for _, r := range records {
			if _, ok := inCategory[r.Project]; ok {
				filtered = append(filtered, r)
			}
		}
		records = filtered
	}

	now := s.clock.Now()
	result := make(map[string]int64)
	for _, r := range records {
		result[r.Project] += r.Elapsed(now)
	}
	return result, nil
}

// EntriesPerWeek produces the seven-day report for an ISO week by
// aggregating each day Monday through Sunday. Projects is the sorted
// union of project names appearing on any day. A week without activity
// yields seven empty days and an empty project list, never nil.
func (s *Service) EntriesPerWeek(ctx context.Context, week core.ISOWeek, category string) (core.WeekReport, error) {
	report := core.WeekReport{
		WeekNumber: week.String(),
		Category:   category,
		Days:       make([]core.DayReport, 0, 7),
	}

	seen := make(map[string]struct{})
	for _, day := range week.Days() {
		entries, err := s.EntriesPerDay(ctx, day, category)
		if err != nil {
			return core.WeekReport{}, err
		}

		var total int64
		for name, seconds := range entries {
			seen[name] = struct{}{}
			total += seconds
		}
		report.Days = append(report.Days, core.DayReport{
			Date:    day,
			Records: entries,
			Total:   total,
		})
	}

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	report.Projects = names

	return report, nil
}
