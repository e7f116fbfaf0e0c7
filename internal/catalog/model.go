package catalog

import (
	"time"

	"github.com/tuannm99/slotdb/internal/record"
)

// TableMeta is the schema sidecar stored next to each table file.
type TableMeta struct {
	Name      string        `json:"name"`
	FileName  string        `json:"file_name"`
	Schema    record.Schema `json:"schema"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}
