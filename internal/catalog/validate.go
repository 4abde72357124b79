package catalog

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

var (
	// ErrTitleRequired rejects any section or resource saved without a title.
	ErrTitleRequired = errors.New("catalog: title is required")
	// ErrDescriptionRequired rejects a section saved without a description.
	ErrDescriptionRequired = errors.New("catalog: description is required")
	// ErrInvalidResourceURL rejects a file resource whose url is not absolute.
	ErrInvalidResourceURL = errors.New("catalog: file resources require an absolute url")
	// ErrTableColumnsRequired rejects a table resource with no columns.
	ErrTableColumnsRequired = errors.New("catalog: table resources require at least one column")
	// ErrNotesContentRequired rejects a notes resource with empty content.
	ErrNotesContentRequired = errors.New("catalog: notes resources require content")
	// ErrUnknownResourceType rejects a resource whose type tag is not recognised.
	ErrUnknownResourceType = errors.New("catalog: unknown resource type")
	// ErrMissingSectionReference rejects a resource saved without an owning section.
	ErrMissingSectionReference = errors.New("catalog: resource requires a section reference")
)

// ValidateSection gates section drafts before any write reaches the store.
func ValidateSection(section Section) error {
	if strings.TrimSpace(section.Title) == "" {
		return fmt.Errorf("%w: section title must not be empty", ErrTitleRequired)
	}
	if strings.TrimSpace(section.Description) == "" {
		return fmt.Errorf("%w: section description must not be empty", ErrDescriptionRequired)
	}
	return nil
}

// ValidateResource gates resource drafts before any write reaches the store.
// Failures carry a type-aware message and never escape to the backend.
func ValidateResource(resource Resource) error {
	if strings.TrimSpace(resource.Title) == "" {
		return fmt.Errorf("%w: resource title must not be empty", ErrTitleRequired)
	}
	if strings.TrimSpace(resource.SectionID) == "" {
		return fmt.Errorf("%w: section id must not be empty", ErrMissingSectionReference)
	}

	switch resource.Type {
	case ResourceTypeFile:
		if !isAbsoluteURL(resource.URL) {
			return fmt.Errorf("%w: %q", ErrInvalidResourceURL, resource.URL)
		}
	case ResourceTypeTable:
		if resource.TableData == nil || len(resource.TableData.Columns) == 0 {
			return fmt.Errorf("%w: define at least one column", ErrTableColumnsRequired)
		}
	case ResourceTypeNotes:
		if strings.TrimSpace(resource.Content) == "" {
			return fmt.Errorf("%w: notes content must not be empty", ErrNotesContentRequired)
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownResourceType, string(resource.Type))
	}

	return nil
}

func isAbsoluteURL(raw string) bool {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return false
	}
	return parsed.IsAbs() && parsed.Host != ""
}
