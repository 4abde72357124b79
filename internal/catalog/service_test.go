package catalog

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

type sequenceIDProvider struct {
	next int
}

func (p *sequenceIDProvider) NewID() (string, error) {
	p.next++
	return fmt.Sprintf("id-%d", p.next), nil
}

type recordingPublisher struct {
	sectionSnapshots  [][]Section
	resourceSnapshots [][]Resource
	sectionErrors     []error
	resourceErrors    []error
}

func (p *recordingPublisher) PublishSections(sections []Section) {
	p.sectionSnapshots = append(p.sectionSnapshots, sections)
}

func (p *recordingPublisher) PublishSectionsError(err error) {
	p.sectionErrors = append(p.sectionErrors, err)
}

func (p *recordingPublisher) PublishResources(resources []Resource) {
	p.resourceSnapshots = append(p.resourceSnapshots, resources)
}

func (p *recordingPublisher) PublishResourcesError(err error) {
	p.resourceErrors = append(p.resourceErrors, err)
}

func newCatalogDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to access sql handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(&Section{}, &Resource{}); err != nil {
		t.Fatalf("failed to migrate schema: %v", err)
	}
	return db
}

func newServiceUnderTest(t *testing.T) (*Service, *recordingPublisher) {
	t.Helper()
	publisher := &recordingPublisher{}
	service, err := NewService(ServiceConfig{
		Database:   newCatalogDB(t),
		Clock:      func() time.Time { return time.Unix(1700000000, 0) },
		IDProvider: &sequenceIDProvider{},
		Publisher:  publisher,
	})
	if err != nil {
		t.Fatalf("failed to create service: %v", err)
	}
	return service, publisher
}

func TestNewServiceRequiresDatabaseAndIDProvider(t *testing.T) {
	if _, err := NewService(ServiceConfig{IDProvider: &sequenceIDProvider{}}); err == nil {
		t.Fatalf("expected missing database to be rejected")
	}
	if _, err := NewService(ServiceConfig{Database: newCatalogDB(t)}); err == nil {
		t.Fatalf("expected missing id provider to be rejected")
	}
}

func TestAddSectionPersistsAndReplaysSnapshot(t *testing.T) {
	service, publisher := newServiceUnderTest(t)

	created, err := service.AddSection(context.Background(), Section{
		Title:       "Engineering",
		Description: "Team references",
		Color:       "bg-blue-50",
		IconName:    "Code",
	}, UserID("user-1"))
	if err != nil {
		t.Fatalf("add section failed: %v", err)
	}

	if created.ID == "" {
		t.Fatalf("expected generated id")
	}
	if created.CreatedBy != "user-1" {
		t.Fatalf("expected creator to be recorded, got %q", created.CreatedBy)
	}

	if len(publisher.sectionSnapshots) != 1 {
		t.Fatalf("expected one sections replay, got %d", len(publisher.sectionSnapshots))
	}
	snapshot := publisher.sectionSnapshots[0]
	if len(snapshot) != 1 || snapshot[0].ID != created.ID {
		t.Fatalf("expected replayed snapshot to carry the new section, got %+v", snapshot)
	}
}

func TestAddSectionValidationFailurePublishesNothing(t *testing.T) {
	service, publisher := newServiceUnderTest(t)

	if _, err := service.AddSection(context.Background(), Section{Title: " "}, UserID("user-1")); !errors.Is(err, ErrTitleRequired) {
		t.Fatalf("expected ErrTitleRequired, got %v", err)
	}
	if len(publisher.sectionSnapshots) != 0 {
		t.Fatalf("expected no replay after rejected write")
	}
}

func TestUpdateSectionReplacesWholeDocument(t *testing.T) {
	service, publisher := newServiceUnderTest(t)

	created, err := service.AddSection(context.Background(), Section{
		Title:       "Engineering",
		Description: "Team references",
		Color:       "bg-blue-50",
		IconName:    "Code",
	}, UserID("user-1"))
	if err != nil {
		t.Fatalf("add section failed: %v", err)
	}

	updated, err := service.UpdateSection(context.Background(), Section{
		ID:          created.ID,
		Title:       "Platform",
		Description: "Platform references",
		Color:       "bg-green-50",
		IconName:    "Server",
	})
	if err != nil {
		t.Fatalf("update section failed: %v", err)
	}
	if updated.Title != "Platform" || updated.IconName != "Server" {
		t.Fatalf("expected updated fields, got %+v", updated)
	}
	if updated.CreatedBy != "user-1" {
		t.Fatalf("expected creator to survive update, got %q", updated.CreatedBy)
	}
	if len(publisher.sectionSnapshots) != 2 {
		t.Fatalf("expected a replay per accepted write, got %d", len(publisher.sectionSnapshots))
	}
}

func TestUpdateSectionUnknownIDReturnsNotFound(t *testing.T) {
	service, _ := newServiceUnderTest(t)

	_, err := service.UpdateSection(context.Background(), Section{
		ID:          "ghost",
		Title:       "Ghost",
		Description: "Nothing",
	})
	if !errors.Is(err, ErrSectionNotFound) {
		t.Fatalf("expected ErrSectionNotFound, got %v", err)
	}
}

func TestDeleteSectionCascadesAndReplaysBothCollections(t *testing.T) {
	service, publisher := newServiceUnderTest(t)

	section, err := service.AddSection(context.Background(), Section{
		Title:       "Engineering",
		Description: "Team references",
	}, UserID("user-1"))
	if err != nil {
		t.Fatalf("add section failed: %v", err)
	}
	if _, err := service.AddResource(context.Background(), Resource{
		Type:    ResourceTypeNotes,
		Title:   "Notes",
		Content: "remember",
	}, SectionID(section.ID), UserID("user-1")); err != nil {
		t.Fatalf("add resource failed: %v", err)
	}

	if err := service.DeleteSection(context.Background(), SectionID(section.ID)); err != nil {
		t.Fatalf("delete section failed: %v", err)
	}

	sections, err := service.ListSections(context.Background())
	if err != nil {
		t.Fatalf("list sections failed: %v", err)
	}
	if len(sections) != 0 {
		t.Fatalf("expected no sections after delete, got %d", len(sections))
	}
	resources, err := service.ListResources(context.Background())
	if err != nil {
		t.Fatalf("list resources failed: %v", err)
	}
	if len(resources) != 0 {
		t.Fatalf("expected cascade to remove resources, got %d", len(resources))
	}

	lastSections := publisher.sectionSnapshots[len(publisher.sectionSnapshots)-1]
	if len(lastSections) != 0 {
		t.Fatalf("expected final sections snapshot to be empty, got %+v", lastSections)
	}
	lastResources := publisher.resourceSnapshots[len(publisher.resourceSnapshots)-1]
	if len(lastResources) != 0 {
		t.Fatalf("expected final resources snapshot to be empty, got %+v", lastResources)
	}
}

func TestAddResourceRoundTripsSerializedPayloads(t *testing.T) {
	service, _ := newServiceUnderTest(t)

	section, err := service.AddSection(context.Background(), Section{
		Title:       "Engineering",
		Description: "Team references",
	}, UserID("user-1"))
	if err != nil {
		t.Fatalf("add section failed: %v", err)
	}

	tableData := &TableData{
		Columns: []TableColumn{{ID: "c1", Name: "Name"}},
		Rows:    []TableRow{{ID: "r1", Data: map[string]string{"c1": "Ada"}}},
	}
	created, err := service.AddResource(context.Background(), Resource{
		Type:      ResourceTypeTable,
		Title:     "Rotation",
		Tags:      []string{"oncall", "weekly"},
		TableData: tableData,
	}, SectionID(section.ID), UserID("user-1"))
	if err != nil {
		t.Fatalf("add resource failed: %v", err)
	}

	loaded, err := service.GetResource(context.Background(), ResourceID(created.ID))
	if err != nil {
		t.Fatalf("get resource failed: %v", err)
	}
	if len(loaded.Tags) != 2 || loaded.Tags[0] != "oncall" {
		t.Fatalf("expected tags to round-trip, got %+v", loaded.Tags)
	}
	if loaded.TableData == nil || len(loaded.TableData.Rows) != 1 {
		t.Fatalf("expected table payload to round-trip, got %+v", loaded.TableData)
	}
	if loaded.TableData.Rows[0].Data["c1"] != "Ada" {
		t.Fatalf("expected cell value to survive storage, got %+v", loaded.TableData.Rows[0].Data)
	}
}

func TestUpdateResourceNeverMovesSections(t *testing.T) {
	service, _ := newServiceUnderTest(t)

	section, err := service.AddSection(context.Background(), Section{
		Title:       "Engineering",
		Description: "Team references",
	}, UserID("user-1"))
	if err != nil {
		t.Fatalf("add section failed: %v", err)
	}
	created, err := service.AddResource(context.Background(), Resource{
		Type:    ResourceTypeNotes,
		Title:   "Notes",
		Content: "remember",
	}, SectionID(section.ID), UserID("user-1"))
	if err != nil {
		t.Fatalf("add resource failed: %v", err)
	}

	updated, err := service.UpdateResource(context.Background(), Resource{
		ID:        created.ID,
		SectionID: "some-other-section",
		Type:      ResourceTypeNotes,
		Title:     "Notes v2",
		Content:   "updated",
	})
	if err != nil {
		t.Fatalf("update resource failed: %v", err)
	}
	if updated.SectionID != section.ID {
		t.Fatalf("expected section reference to be preserved, got %q", updated.SectionID)
	}
	if updated.Title != "Notes v2" || updated.Content != "updated" {
		t.Fatalf("expected payload fields to update, got %+v", updated)
	}
}

func TestUpdateResourceUnknownIDReturnsNotFound(t *testing.T) {
	service, _ := newServiceUnderTest(t)

	_, err := service.UpdateResource(context.Background(), Resource{
		ID:      "ghost",
		Type:    ResourceTypeNotes,
		Title:   "Ghost",
		Content: "nothing",
	})
	if !errors.Is(err, ErrResourceNotFound) {
		t.Fatalf("expected ErrResourceNotFound, got %v", err)
	}
}

func TestListSectionsOrdersByTitle(t *testing.T) {
	service, _ := newServiceUnderTest(t)

	for _, title := range []string{"Zulu", "Alpha", "Mike"} {
		if _, err := service.AddSection(context.Background(), Section{
			Title:       title,
			Description: "section " + title,
		}, UserID("user-1")); err != nil {
			t.Fatalf("add section %q failed: %v", title, err)
		}
	}

	sections, err := service.ListSections(context.Background())
	if err != nil {
		t.Fatalf("list sections failed: %v", err)
	}
	titles := make([]string, 0, len(sections))
	for _, section := range sections {
		titles = append(titles, section.Title)
	}
	expected := []string{"Alpha", "Mike", "Zulu"}
	for index, title := range expected {
		if titles[index] != title {
			t.Fatalf("expected title order %v, got %v", expected, titles)
		}
	}
}

func TestServiceErrorCarriesDottedCode(t *testing.T) {
	service, _ := newServiceUnderTest(t)

	// close the underlying pool so the write fails at the database layer.
	sqlDB, err := service.db.DB()
	if err != nil {
		t.Fatalf("failed to access sql handle: %v", err)
	}
	if err := sqlDB.Close(); err != nil {
		t.Fatalf("failed to close database: %v", err)
	}

	_, err = service.AddSection(context.Background(), Section{
		Title:       "Docs",
		Description: "Team docs",
	}, UserID("user-1"))
	var serviceErr *ServiceError
	if !errors.As(err, &serviceErr) {
		t.Fatalf("expected ServiceError, got %v", err)
	}
	if serviceErr.Code() != "catalog.add_section.insert_failed" {
		t.Fatalf("unexpected error code: %q", serviceErr.Code())
	}
}
