package catalog

import "strings"

// SectionAggregate joins a section document with the resources currently
// attached to it by the reconciler. Links always reflect the latest resource
// stream snapshot and are never authoritative for resource existence.
type SectionAggregate struct {
	Section
	Links []Resource
}

// FilterAggregates derives a narrowed view of the provided aggregates for a
// free-text query. The match is a case-insensitive substring test against
// resource title, description and tags. A section survives the filter when it
// retains at least one matching resource, or unconditionally when the query
// is empty. The input is never mutated and the result holds fresh slices.
func FilterAggregates(aggregates []SectionAggregate, query string) []SectionAggregate {
	filtered := make([]SectionAggregate, 0, len(aggregates))

	if query == "" {
		for _, aggregate := range aggregates {
			links := make([]Resource, len(aggregate.Links))
			copy(links, aggregate.Links)
			filtered = append(filtered, SectionAggregate{Section: aggregate.Section, Links: links})
		}
		return filtered
	}

	needle := strings.ToLower(query)
	for _, aggregate := range aggregates {
		links := make([]Resource, 0, len(aggregate.Links))
		for _, link := range aggregate.Links {
			if resourceMatches(link, needle) {
				links = append(links, link)
			}
		}
		if len(links) == 0 {
			continue
		}
		filtered = append(filtered, SectionAggregate{Section: aggregate.Section, Links: links})
	}
	return filtered
}

func resourceMatches(resource Resource, needle string) bool {
	if strings.Contains(strings.ToLower(resource.Title), needle) {
		return true
	}
	if resource.Description != "" && strings.Contains(strings.ToLower(resource.Description), needle) {
		return true
	}
	for _, tag := range resource.Tags {
		if strings.Contains(strings.ToLower(tag), needle) {
			return true
		}
	}
	return false
}
