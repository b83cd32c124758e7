// Package migrate upgrades stored editor documents written by older builds
// to the current format before they are decoded.
//
// Migrations work on the raw JSON so that fields the current schema no
// longer knows about can still be read and moved.
package migrate

import (
	"errors"
	"fmt"
	"sort"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"pageeditor/internal/domain"
)

// ErrInvalidJSON is returned for input that is not a JSON document.
var ErrInvalidJSON = errors.New("migrate: invalid JSON")

// Migration upgrades a document from one version to the next.
type Migration struct {
	From        int
	Description string
	Apply       func(doc []byte) ([]byte, error)
}

// Migrator applies registered migrations in version order.
type Migrator struct {
	migrations []Migration
	current    int
}

// NewMigrator creates a Migrator targeting version current.
func NewMigrator(current int) *Migrator {
	return &Migrator{current: current}
}

// Register adds a migration.
func (m *Migrator) Register(mig Migration) {
	m.migrations = append(m.migrations, mig)
	sort.SliceStable(m.migrations, func(i, j int) bool {
		return m.migrations[i].From < m.migrations[j].From
	})
}

// Version reads the document version; documents without one are version 0.
func Version(doc []byte) int {
	return int(gjson.GetBytes(doc, "version").Int())
}

// Upgrade runs every migration whose From is at or above the document's
// version and stamps the result with the current version. Documents that
// are not JSON objects are passed through untouched for the caller to
// reconcile.
func (m *Migrator) Upgrade(doc []byte) ([]byte, error) {
	if !gjson.ValidBytes(doc) {
		return nil, ErrInvalidJSON
	}
	if !gjson.ParseBytes(doc).IsObject() {
		return doc, nil
	}

	version := Version(doc)
	if version >= m.current {
		return doc, nil
	}

	var err error
	for _, mig := range m.migrations {
		if mig.From < version {
			continue
		}
		if doc, err = mig.Apply(doc); err != nil {
			return nil, fmt.Errorf("migrate v%d (%s): %w", mig.From, mig.Description, err)
		}
	}
	return sjson.SetBytes(doc, "version", m.current)
}

// Default is the migrator for the current document format.
var Default = newDefault()

// Upgrade upgrades doc with the default migrator.
func Upgrade(doc []byte) ([]byte, error) {
	return Default.Upgrade(doc)
}

func newDefault() *Migrator {
	m := NewMigrator(domain.CurrentVersion)
	m.Register(Migration{
		From:        0,
		Description: "move top-level grid and theme into settings",
		Apply:       hoistSettings,
	})
	m.Register(Migration{
		From:        1,
		Description: "normalise element collection",
		Apply:       normaliseElements,
	})
	return m
}

// hoistSettings moves the flat v0 fields into the settings object.
func hoistSettings(doc []byte) ([]byte, error) {
	moves := []struct{ from, to string }{
		{"showGrid", "settings.grid"},
		{"grid", "settings.grid"},
		{"theme", "settings.theme"},
		{"gradients", "settings.gradients"},
		{"layout", "settings.layout"},
	}
	var err error
	for _, mv := range moves {
		v := gjson.GetBytes(doc, mv.from)
		if !v.Exists() {
			continue
		}
		if !gjson.GetBytes(doc, mv.to).Exists() {
			if doc, err = sjson.SetRawBytes(doc, mv.to, []byte(v.Raw)); err != nil {
				return nil, err
			}
		}
		if doc, err = sjson.DeleteBytes(doc, mv.from); err != nil {
			return nil, err
		}
	}
	return doc, nil
}

// normaliseElements renames "components" to "elements", turns an id-keyed
// object into an ordered array and renames each element's "kind" to "type".
func normaliseElements(doc []byte) ([]byte, error) {
	var err error
	if comps := gjson.GetBytes(doc, "components"); comps.Exists() {
		if !gjson.GetBytes(doc, "elements").Exists() {
			if doc, err = sjson.SetRawBytes(doc, "elements", []byte(comps.Raw)); err != nil {
				return nil, err
			}
		}
		if doc, err = sjson.DeleteBytes(doc, "components"); err != nil {
			return nil, err
		}
	}

	els := gjson.GetBytes(doc, "elements")
	if els.IsObject() {
		type keyed struct {
			id  string
			raw string
		}
		var items []keyed
		els.ForEach(func(key, value gjson.Result) bool {
			items = append(items, keyed{id: key.String(), raw: value.Raw})
			return true
		})
		sort.Slice(items, func(i, j int) bool { return items[i].id < items[j].id })

		if doc, err = sjson.SetRawBytes(doc, "elements", []byte("[]")); err != nil {
			return nil, err
		}
		for i, it := range items {
			raw := []byte(it.raw)
			if !gjson.GetBytes(raw, "id").Exists() {
				if raw, err = sjson.SetBytes(raw, "id", it.id); err != nil {
					return nil, err
				}
			}
			if doc, err = sjson.SetRawBytes(doc, fmt.Sprintf("elements.%d", i), raw); err != nil {
				return nil, err
			}
		}
	}

	n := int(gjson.GetBytes(doc, "elements.#").Int())
	for i := 0; i < n; i++ {
		kindPath := fmt.Sprintf("elements.%d.kind", i)
		kind := gjson.GetBytes(doc, kindPath)
		if !kind.Exists() {
			continue
		}
		typePath := fmt.Sprintf("elements.%d.type", i)
		if !gjson.GetBytes(doc, typePath).Exists() {
			if doc, err = sjson.SetRawBytes(doc, typePath, []byte(kind.Raw)); err != nil {
				return nil, err
			}
		}
		if doc, err = sjson.DeleteBytes(doc, kindPath); err != nil {
			return nil, err
		}
	}
	return doc, nil
}
