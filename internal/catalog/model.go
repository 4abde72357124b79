package catalog

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ResourceType selects the payload variant carried by a Resource document.
type ResourceType string

const (
	// ResourceTypeFile links to an external document by URL.
	ResourceTypeFile ResourceType = "file"
	// ResourceTypeTable embeds an editable grid of rows and columns.
	ResourceTypeTable ResourceType = "table"
	// ResourceTypeNotes embeds free-form text content.
	ResourceTypeNotes ResourceType = "notes"
)

const maxIdentifierLength = 190

var (
	// ErrInvalidSectionID indicates that a section identifier is empty or exceeds storage bounds.
	ErrInvalidSectionID = errors.New("catalog: invalid section id")
	// ErrInvalidResourceID indicates that a resource identifier is empty or exceeds storage bounds.
	ErrInvalidResourceID = errors.New("catalog: invalid resource id")
	// ErrInvalidUserID indicates that a user identifier is empty or exceeds storage bounds.
	ErrInvalidUserID = errors.New("catalog: invalid user id")
)

// SectionID represents a validated section identifier.
type SectionID string

// NewSectionID validates raw input and returns a SectionID.
func NewSectionID(rawInput string) (SectionID, error) {
	trimmed := strings.TrimSpace(rawInput)
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidSectionID)
	}
	if len(trimmed) > maxIdentifierLength {
		return "", fmt.Errorf("%w: exceeds %d characters", ErrInvalidSectionID, maxIdentifierLength)
	}
	return SectionID(trimmed), nil
}

// String returns the underlying string identifier.
func (id SectionID) String() string {
	return string(id)
}

// ResourceID represents a validated resource identifier.
type ResourceID string

// NewResourceID validates raw input and returns a ResourceID.
func NewResourceID(rawInput string) (ResourceID, error) {
	trimmed := strings.TrimSpace(rawInput)
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidResourceID)
	}
	if len(trimmed) > maxIdentifierLength {
		return "", fmt.Errorf("%w: exceeds %d characters", ErrInvalidResourceID, maxIdentifierLength)
	}
	return ResourceID(trimmed), nil
}

// String returns the underlying string identifier.
func (id ResourceID) String() string {
	return string(id)
}

// UserID represents a validated user identifier.
type UserID string

// NewUserID validates raw input and returns a UserID.
func NewUserID(rawInput string) (UserID, error) {
	trimmed := strings.TrimSpace(rawInput)
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidUserID)
	}
	if len(trimmed) > maxIdentifierLength {
		return "", fmt.Errorf("%w: exceeds %d characters", ErrInvalidUserID, maxIdentifierLength)
	}
	return UserID(trimmed), nil
}

// String returns the underlying string identifier.
func (id UserID) String() string {
	return string(id)
}

// TableColumn identifies one ordered column of an embedded table.
type TableColumn struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// TableRow holds the sparse cell values of one ordered row, keyed by column id.
type TableRow struct {
	ID   string            `json:"id"`
	Data map[string]string `json:"data"`
}

// TableData is the grid payload of a table resource.
type TableData struct {
	Columns []TableColumn `json:"columns"`
	Rows    []TableRow    `json:"rows"`
}

// Clone returns a deep copy so editors never alias the saved payload.
func (d TableData) Clone() TableData {
	cloned := TableData{
		Columns: make([]TableColumn, len(d.Columns)),
		Rows:    make([]TableRow, len(d.Rows)),
	}
	copy(cloned.Columns, d.Columns)
	for index, row := range d.Rows {
		data := make(map[string]string, len(row.Data))
		for columnID, value := range row.Data {
			data[columnID] = value
		}
		cloned.Rows[index] = TableRow{ID: row.ID, Data: data}
	}
	return cloned
}

// Section models a persisted section document. The resources belonging to a
// section are never stored on it; they are joined in memory from the links
// collection at read time.
type Section struct {
	ID          string    `gorm:"column:id;primaryKey;size:190;not null" json:"id"`
	Title       string    `gorm:"column:title;size:320;not null" json:"title"`
	Description string    `gorm:"column:description;type:text;not null" json:"description"`
	Color       string    `gorm:"column:color;size:190;not null" json:"color"`
	IconName    string    `gorm:"column:icon_name;size:64;not null;default:''" json:"icon_name"`
	CreatedBy   string    `gorm:"column:created_by;size:190;not null;default:''" json:"created_by"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

// TableName provides the explicit table binding for GORM.
func (Section) TableName() string {
	return "sections"
}

// Resource models a persisted resource document. Exactly one of the payload
// fields is meaningful depending on Type.
type Resource struct {
	ID          string       `gorm:"column:id;primaryKey;size:190;not null" json:"id"`
	SectionID   string       `gorm:"column:section_id;size:190;not null;index" json:"section_id"`
	Type        ResourceType `gorm:"column:type;size:16;not null" json:"type"`
	Title       string       `gorm:"column:title;size:320;not null" json:"title"`
	Description string       `gorm:"column:description;type:text;not null;default:''" json:"description,omitempty"`
	Tags        []string     `gorm:"column:tags;serializer:json" json:"tags,omitempty"`
	URL         string       `gorm:"column:url;size:2048;not null;default:''" json:"url,omitempty"`
	TableData   *TableData   `gorm:"column:table_data;serializer:json" json:"table_data,omitempty"`
	Content     string       `gorm:"column:content;type:text;not null;default:''" json:"content,omitempty"`
	CreatedBy   string       `gorm:"column:created_by;size:190;not null;default:''" json:"created_by"`
	CreatedAt   time.Time    `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time    `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

// TableName provides the explicit table binding for GORM.
func (Resource) TableName() string {
	return "links"
}

// Clone returns a copy that shares no mutable state with the receiver.
func (r Resource) Clone() Resource {
	cloned := r
	if r.Tags != nil {
		cloned.Tags = append([]string(nil), r.Tags...)
	}
	if r.TableData != nil {
		data := r.TableData.Clone()
		cloned.TableData = &data
	}
	return cloned
}

// ParseResourceType validates a raw type tag.
func ParseResourceType(value string) (ResourceType, error) {
	switch ResourceType(strings.ToLower(strings.TrimSpace(value))) {
	case ResourceTypeFile:
		return ResourceTypeFile, nil
	case ResourceTypeTable:
		return ResourceTypeTable, nil
	case ResourceTypeNotes:
		return ResourceTypeNotes, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownResourceType, value)
	}
}
