package catalog

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/CunningBard/minase/internal/table"
)

var ErrTableNotFound = errors.New("catalog: table not found")

// Catalog holds tables addressed by position. Dropping a table shifts the ids
// of every table after it.
type Catalog struct {
	mu     sync.RWMutex
	tables []*table.Table
}

func New() *Catalog {
	return &Catalog{}
}

// AddTable creates an empty table with the given column types and returns its id.
func (c *Catalog) AddTable(types ...table.ScalarType) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.tables = append(c.tables, table.NewTable(types...))
	id := len(c.tables) - 1
	slog.Debug("catalog: table added", "id", id, "columns", len(types))
	return id
}

// Insert appends one row to table id.
func (c *Catalog) Insert(id int, row []any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	t, err := c.lookup(id)
	if err != nil {
		return err
	}
	if err := t.AddRow(row); err != nil {
		return fmt.Errorf("catalog: insert into table %d: %w", id, err)
	}
	return nil
}

// Table returns table id.
func (c *Catalog) Table(id int) (*table.Table, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lookup(id)
}

// Drop removes table id.
func (c *Catalog) Drop(id int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := c.lookup(id); err != nil {
		return err
	}
	c.tables = append(c.tables[:id], c.tables[id+1:]...)
	slog.Debug("catalog: table dropped", "id", id)
	return nil
}

func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.tables)
}

func (c *Catalog) lookup(id int) (*table.Table, error) {
	if id < 0 || id >= len(c.tables) {
		return nil, fmt.Errorf("%w: %d", ErrTableNotFound, id)
	}
	return c.tables[id], nil
}

// NewDemo returns a catalog with a single people table (id Int, name String)
// holding rows 0..rows-1.
func NewDemo(rows int) (*Catalog, error) {
	c := New()
	id := c.AddTable(table.Int, table.String)
	for i := 0; i < rows; i++ {
		if err := c.Insert(id, []any{i, fmt.Sprintf("Person %d", i)}); err != nil {
			return nil, err
		}
	}
	return c, nil
}
