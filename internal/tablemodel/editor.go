// Package tablemodel implements the editing state machine for the grid
// payload of table resources.
package tablemodel

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/dochub-labs/dochub/backend/internal/catalog"
)

// Mode is the editor state. Structural operations are only legal in Editing.
type Mode int

const (
	// ModeViewing renders the latest saved payload read-only.
	ModeViewing Mode = iota
	// ModeEditing renders a local mutable copy of the payload.
	ModeEditing
)

var (
	// ErrNotEditing rejects a mutation attempted outside Editing mode.
	ErrNotEditing = errors.New("tablemodel: operation requires editing mode")
	// ErrAlreadyEditing rejects a second Begin before Cancel or Save.
	ErrAlreadyEditing = errors.New("tablemodel: editing already in progress")
	// ErrUnknownColumn rejects an operation on a column id not in the table.
	ErrUnknownColumn = errors.New("tablemodel: unknown column")
	// ErrUnknownRow rejects an operation on a row id not in the table.
	ErrUnknownRow = errors.New("tablemodel: unknown row")
	// ErrLastColumn refuses to remove the only remaining column.
	ErrLastColumn = errors.New("tablemodel: a table must keep at least one column")
	// ErrColumnNameRequired rejects an empty column name.
	ErrColumnNameRequired = errors.New("tablemodel: column name is required")
	// ErrMissingIDProvider indicates the editor was built without an id source.
	ErrMissingIDProvider = errors.New("tablemodel: id provider is required")
)

// Editor holds the saved baseline and, while editing, a local draft that the
// user mutates before flushing it back through the write gateway. Every
// operation leaves the draft fully consistent: no dangling cell keys, never
// zero rows, never zero columns by user action.
type Editor struct {
	saved catalog.TableData
	draft catalog.TableData
	mode  Mode
	ids   catalog.IDProvider
}

// NewEditor constructs a Viewing editor over the saved payload.
func NewEditor(saved catalog.TableData, ids catalog.IDProvider) (*Editor, error) {
	if ids == nil {
		return nil, ErrMissingIDProvider
	}
	return &Editor{
		saved: saved.Clone(),
		mode:  ModeViewing,
		ids:   ids,
	}, nil
}

// Mode reports the current state.
func (e *Editor) Mode() Mode {
	return e.mode
}

// Data returns a copy of what the user currently sees: the draft while
// editing, the saved baseline otherwise.
func (e *Editor) Data() catalog.TableData {
	if e.mode == ModeEditing {
		return e.draft.Clone()
	}
	return e.saved.Clone()
}

// Dirty reports whether the draft differs from the saved baseline.
func (e *Editor) Dirty() bool {
	if e.mode != ModeEditing {
		return false
	}
	return !reflect.DeepEqual(e.draft, e.saved)
}

// Begin clones the saved payload into a local draft and enters Editing. A
// table with no rows gains one fresh empty row so input is always possible.
func (e *Editor) Begin() error {
	if e.mode == ModeEditing {
		return ErrAlreadyEditing
	}
	e.draft = e.saved.Clone()
	if len(e.draft.Rows) == 0 {
		row, err := e.emptyRow()
		if err != nil {
			return err
		}
		e.draft.Rows = []catalog.TableRow{row}
	}
	e.mode = ModeEditing
	return nil
}

// Cancel discards the draft and returns to Viewing.
func (e *Editor) Cancel() error {
	if e.mode != ModeEditing {
		return ErrNotEditing
	}
	e.draft = catalog.TableData{}
	e.mode = ModeViewing
	return nil
}

// Save flushes the draft through the provided write func. On success the
// draft becomes the new saved baseline and the editor returns to Viewing. On
// failure the editor stays in Editing with the user's edits intact.
func (e *Editor) Save(flush func(catalog.TableData) error) error {
	if e.mode != ModeEditing {
		return ErrNotEditing
	}
	if flush != nil {
		if err := flush(e.draft.Clone()); err != nil {
			return err
		}
	}
	e.saved = e.draft.Clone()
	e.draft = catalog.TableData{}
	e.mode = ModeViewing
	return nil
}

// AddRow appends a fresh row with an empty cell for every column.
func (e *Editor) AddRow() (catalog.TableRow, error) {
	if e.mode != ModeEditing {
		return catalog.TableRow{}, ErrNotEditing
	}
	row, err := e.emptyRow()
	if err != nil {
		return catalog.TableRow{}, err
	}
	e.draft.Rows = append(e.draft.Rows, row)
	return row, nil
}

// RemoveRow deletes the identified row. Removing the last remaining row
// synthesizes a fresh empty row instead, so the grid never reaches zero rows.
func (e *Editor) RemoveRow(rowID string) error {
	if e.mode != ModeEditing {
		return ErrNotEditing
	}

	index := e.rowIndex(rowID)
	if index < 0 {
		return fmt.Errorf("%w: %q", ErrUnknownRow, rowID)
	}

	e.draft.Rows = append(e.draft.Rows[:index], e.draft.Rows[index+1:]...)
	if len(e.draft.Rows) == 0 {
		row, err := e.emptyRow()
		if err != nil {
			return err
		}
		e.draft.Rows = []catalog.TableRow{row}
	}
	return nil
}

// SetCell writes a single cell value.
func (e *Editor) SetCell(rowID, columnID, value string) error {
	if e.mode != ModeEditing {
		return ErrNotEditing
	}
	if e.columnIndex(columnID) < 0 {
		return fmt.Errorf("%w: %q", ErrUnknownColumn, columnID)
	}
	index := e.rowIndex(rowID)
	if index < 0 {
		return fmt.Errorf("%w: %q", ErrUnknownRow, rowID)
	}
	if e.draft.Rows[index].Data == nil {
		e.draft.Rows[index].Data = make(map[string]string)
	}
	e.draft.Rows[index].Data[columnID] = value
	return nil
}

// AddColumn appends a named column and backfills an empty cell into every
// existing row.
func (e *Editor) AddColumn(name string) (catalog.TableColumn, error) {
	if e.mode != ModeEditing {
		return catalog.TableColumn{}, ErrNotEditing
	}
	if strings.TrimSpace(name) == "" {
		return catalog.TableColumn{}, ErrColumnNameRequired
	}

	id, err := e.ids.NewID()
	if err != nil {
		return catalog.TableColumn{}, err
	}

	column := catalog.TableColumn{ID: id, Name: strings.TrimSpace(name)}
	e.draft.Columns = append(e.draft.Columns, column)
	for index := range e.draft.Rows {
		if e.draft.Rows[index].Data == nil {
			e.draft.Rows[index].Data = make(map[string]string)
		}
		e.draft.Rows[index].Data[column.ID] = ""
	}
	return column, nil
}

// RemoveColumn deletes the column and strips its key from every row. The
// last remaining column cannot be removed.
func (e *Editor) RemoveColumn(columnID string) error {
	if e.mode != ModeEditing {
		return ErrNotEditing
	}
	index := e.columnIndex(columnID)
	if index < 0 {
		return fmt.Errorf("%w: %q", ErrUnknownColumn, columnID)
	}
	if len(e.draft.Columns) == 1 {
		return ErrLastColumn
	}

	e.draft.Columns = append(e.draft.Columns[:index], e.draft.Columns[index+1:]...)
	for rowIndex := range e.draft.Rows {
		delete(e.draft.Rows[rowIndex].Data, columnID)
	}
	return nil
}

// RenameColumn changes a column's display name.
func (e *Editor) RenameColumn(columnID, name string) error {
	if e.mode != ModeEditing {
		return ErrNotEditing
	}
	if strings.TrimSpace(name) == "" {
		return ErrColumnNameRequired
	}
	index := e.columnIndex(columnID)
	if index < 0 {
		return fmt.Errorf("%w: %q", ErrUnknownColumn, columnID)
	}
	e.draft.Columns[index].Name = strings.TrimSpace(name)
	return nil
}

func (e *Editor) emptyRow() (catalog.TableRow, error) {
	id, err := e.ids.NewID()
	if err != nil {
		return catalog.TableRow{}, err
	}
	data := make(map[string]string, len(e.draft.Columns))
	for _, column := range e.draft.Columns {
		data[column.ID] = ""
	}
	return catalog.TableRow{ID: id, Data: data}, nil
}

func (e *Editor) rowIndex(rowID string) int {
	for index, row := range e.draft.Rows {
		if row.ID == rowID {
			return index
		}
	}
	return -1
}

func (e *Editor) columnIndex(columnID string) int {
	for index, column := range e.draft.Columns {
		if column.ID == columnID {
			return index
		}
	}
	return -1
}
