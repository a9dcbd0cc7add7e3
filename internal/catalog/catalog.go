// Package catalog loads entity search descriptors from YAML files.
//
// A descriptor file looks like:
//
//	entity: parcels
//	collection: parcels
//	locationField: fromAddress.loc
//	searchFields:
//	  content: string
//	  services_name: objectArray
//	filterFields:
//	  parcelStatus: {type: string}
//	  services_cost: {type: object, cost: {type: range}}
//	  user_age: {type: refObject, age: {type: range}}
//	sortFields:
//	  created: date
//	  commission_amount: {type: object, amount: {type: number}}
//	references: [customer]
//	joins:
//	  customer: customers
//	  user: users
//
// Nested filter and sort fields are named <outer>_<inner>; the inner type is
// declared under the inner name and defaults to string.
package catalog

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"docquery-service/internal/domain"
)

//go:embed entities/*.yaml
var builtin embed.FS

// Catalog is an immutable set of descriptors keyed by entity name.
// It is safe for concurrent use.
type Catalog struct {
	entities map[string]*domain.Descriptor
}

// New builds a catalog from descriptors. Entity names must be unique.
func New(descriptors ...*domain.Descriptor) (*Catalog, error) {
	c := &Catalog{entities: make(map[string]*domain.Descriptor, len(descriptors))}
	for _, d := range descriptors {
		if _, dup := c.entities[d.Entity]; dup {
			return nil, fmt.Errorf("duplicate descriptor for entity %q", d.Entity)
		}
		c.entities[d.Entity] = d
	}
	return c, nil
}

// Load reads the built-in descriptors, then every *.yaml file in dir.
// A file in dir replaces the built-in descriptor of the same entity.
// An empty dir loads only the built-in descriptors.
func Load(dir string) (*Catalog, error) {
	byEntity := make(map[string]*domain.Descriptor)

	if err := loadFS(builtin, "entities", byEntity); err != nil {
		return nil, fmt.Errorf("loading built-in descriptors: %w", err)
	}
	if dir != "" {
		if err := loadFS(os.DirFS(dir), ".", byEntity); err != nil {
			return nil, fmt.Errorf("loading descriptors from %s: %w", dir, err)
		}
	}

	descriptors := make([]*domain.Descriptor, 0, len(byEntity))
	for _, d := range byEntity {
		descriptors = append(descriptors, d)
	}
	return New(descriptors...)
}

func loadFS(fsys fs.FS, root string, into map[string]*domain.Descriptor) error {
	files, err := fs.Glob(fsys, filepath.ToSlash(filepath.Join(root, "*.yaml")))
	if err != nil {
		return err
	}
	for _, name := range files {
		data, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading %s: %w", name, err)
		}
		d, err := Parse(data)
		if err != nil {
			return fmt.Errorf("parsing %s: %w", name, err)
		}
		into[d.Entity] = d
	}
	return nil
}

// Get returns the descriptor for entity.
func (c *Catalog) Get(entity string) (*domain.Descriptor, error) {
	d, ok := c.entities[entity]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownEntity, entity)
	}
	return d, nil
}

// Entities returns every descriptor ordered by entity name.
func (c *Catalog) Entities() []*domain.Descriptor {
	out := make([]*domain.Descriptor, 0, len(c.entities))
	for _, d := range c.entities {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Entity < out[j].Entity })
	return out
}

// file is the YAML layout of a descriptor.
type file struct {
	Entity        string            `yaml:"entity"`
	Collection    string            `yaml:"collection"`
	LocationField string            `yaml:"locationField"`
	SearchFields  map[string]string `yaml:"searchFields"`
	FilterFields  map[string]any    `yaml:"filterFields"`
	SortFields    map[string]any    `yaml:"sortFields"`
	References    []string          `yaml:"references"`
	Joins         map[string]string `yaml:"joins"`
}

// Parse decodes and checks a single descriptor document.
func Parse(data []byte) (*domain.Descriptor, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decoding yaml: %w", err)
	}

	var errs []error
	if f.Entity == "" {
		errs = append(errs, errors.New("entity name is required"))
	}
	if f.Collection == "" {
		errs = append(errs, fmt.Errorf("entity %q: a storage collection is required", f.Entity))
	}

	d := &domain.Descriptor{
		Entity:        f.Entity,
		Collection:    f.Collection,
		LocationField: f.LocationField,
		SearchFields:  make(map[string]domain.SearchShape, len(f.SearchFields)),
		FilterFields:  make(map[string]domain.FilterType, len(f.FilterFields)),
		SortFields:    make(map[string]domain.SortKind, len(f.SortFields)),
		References:    append([]string(nil), f.References...),
		Joins:         make(map[string]string, len(f.Joins)),
	}
	for k, v := range f.Joins {
		d.Joins[k] = v
	}

	for name, shape := range f.SearchFields {
		s, err := parseSearchShape(name, shape)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		d.SearchFields[name] = s
	}

	for name, raw := range f.FilterFields {
		t, err := parseFilterType(name, raw)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if ref, ok := t.(domain.RefObjectFilter); ok {
			if _, ok := d.Joins[ref.Path]; !ok {
				errs = append(errs, fmt.Errorf("filter %s: no join declared for reference path %q", name, ref.Path))
				continue
			}
		}
		d.FilterFields[name] = t
	}

	for name, raw := range f.SortFields {
		k, err := parseSortKind(name, raw)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		d.SortFields[name] = k
	}

	for _, ref := range d.References {
		if _, ok := d.Joins[ref]; !ok {
			errs = append(errs, fmt.Errorf("reference %q: no join declared", ref))
		}
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return d, nil
}

func parseSearchShape(name, shape string) (domain.SearchShape, error) {
	switch {
	case strings.EqualFold(shape, string(domain.SearchShapeString)):
		return domain.SearchShapeString, nil
	case strings.EqualFold(shape, string(domain.SearchShapeObjectArray)):
		if _, _, ok := domain.SplitNested(name); !ok {
			return "", fmt.Errorf("search field %s: objectArray fields must be named <field>_<subfield>", name)
		}
		return domain.SearchShapeObjectArray, nil
	default:
		return "", fmt.Errorf("search field %s: unknown shape %q", name, shape)
	}
}

func parseFilterType(name string, raw any) (domain.FilterType, error) {
	kind, props, err := kindOf(raw)
	if err != nil {
		return nil, fmt.Errorf("filter field %s: %w", name, err)
	}

	switch domain.FilterKind(kind) {
	case domain.FilterKindObject, domain.FilterKindRefObject:
		outer, inner, ok := domain.SplitNested(name)
		if !ok {
			return nil, fmt.Errorf("filter field %s: %s fields must be named <field>_<subfield>", name, kind)
		}
		of, err := parseInnerType(name, props[inner])
		if err != nil {
			return nil, err
		}
		if domain.FilterKind(kind) == domain.FilterKindObject {
			return domain.ObjectFilter{Outer: outer, Inner: inner, Of: of}, nil
		}
		return domain.RefObjectFilter{Path: outer, Field: inner, Of: of}, nil
	default:
		t, ok := domain.ScalarFilterType(domain.FilterKind(kind))
		if !ok {
			return nil, fmt.Errorf("filter field %s: unknown type %q", name, kind)
		}
		return t, nil
	}
}

// parseInnerType reads the declared type of a nested field. Absent means string.
func parseInnerType(name string, raw any) (domain.FilterType, error) {
	if raw == nil {
		return domain.StringFilter{}, nil
	}
	kind, _, err := kindOf(raw)
	if err != nil {
		return nil, fmt.Errorf("filter field %s: %w", name, err)
	}
	switch domain.FilterKind(kind) {
	case domain.FilterKindString, domain.FilterKindRange, domain.FilterKindObjectID, domain.FilterKindBool:
		t, _ := domain.ScalarFilterType(domain.FilterKind(kind))
		return t, nil
	default:
		return nil, fmt.Errorf("filter field %s: unsupported nested type %q", name, kind)
	}
}

func parseSortKind(name string, raw any) (domain.SortKind, error) {
	kind, _, err := kindOf(raw)
	if err != nil {
		return "", fmt.Errorf("sort field %s: %w", name, err)
	}
	switch k := domain.SortKind(strings.ToLower(kind)); k {
	case domain.SortKindString, domain.SortKindNumber, domain.SortKindDate:
		return k, nil
	case domain.SortKindObject:
		if _, _, ok := domain.SplitNested(name); !ok {
			return "", fmt.Errorf("sort field %s: object fields must be named <field>_<subfield>", name)
		}
		return k, nil
	default:
		return "", fmt.Errorf("sort field %s: unknown kind %q", name, kind)
	}
}

// kindOf accepts either a bare kind ("bool") or a mapping with a type key.
func kindOf(raw any) (string, map[string]any, error) {
	switch v := raw.(type) {
	case string:
		return v, nil, nil
	case map[string]any:
		kind, ok := v["type"].(string)
		if !ok || kind == "" {
			return "", nil, errors.New("missing type")
		}
		return kind, v, nil
	default:
		return "", nil, fmt.Errorf("unexpected declaration %v", raw)
	}
}
