package ravel

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// Directive controls how a single field or parameter lands in an extracted
// fragment. The zero Directive stores the value under its natural name.
type Directive struct {
	// Name is the explicit context key. It wins over Alias when not blank.
	Name string

	// Alias is the fallback key, used when Name is blank.
	Alias string

	// Index selects one element of a sequence value before placement.
	// It is only honored while HasIndex is set.
	Index    int
	HasIndex bool

	// Flatten treats the value as a nested object: its own tagged fields
	// are extracted and merged into the surrounding fragment instead of
	// storing the value itself.
	Flatten bool
}

// Key resolves the context key for a member with the given natural name.
// Blank (empty or all-whitespace) directive names are passed over.
func (d Directive) Key(fieldName string) string {
	if strings.TrimSpace(d.Name) != "" {
		return d.Name
	}

	if strings.TrimSpace(d.Alias) != "" {
		return d.Alias
	}

	return fieldName
}

type taggedField struct {
	// Name is the natural field name, the last fallback for key resolution
	Name      string
	Index     []int
	Directive Directive
}

type extractPlan struct {
	fields []taggedField

	// raw field census across the walk, counting unexported and untagged
	// fields. Zero only for genuinely shapeless types.
	fieldCount int
}

// planOf walks ty breadth-first and collects every field carrying a
// directive tag. Untagged embedded structs are descended into so promoted
// fields participate; a tagged embedded field is a directive field like any
// other. Malformed tags fail the whole plan.
func planOf(ty reflect.Type, structTag string) (extractPlan, error) {
	if ty.Kind() != reflect.Struct {
		panic("not a struct")
	}

	type queued struct {
		Type        reflect.Type
		ParentIndex []int
	}

	// initialize queue to walk
	queue := []queued{{Type: ty}}

	var plan extractPlan

	for len(queue) > 0 {
		item := queue[0]
		queue = queue[1:]

		plan.fieldCount += item.Type.NumField()

		for idx := range item.Type.NumField() {
			fi := item.Type.Field(idx)
			if !fi.IsExported() {
				continue
			}

			tag, tagged := fi.Tag.Lookup(structTag)
			if tag == "-" {
				// this one is skipped
				continue
			}

			// derive index of this one. ensure we allocate a new slice by
			// setting cap to the length of the parents index
			parent := item.ParentIndex
			index := append(parent[:len(parent):len(parent)], fi.Index...)

			if fi.Anonymous && !tagged {
				// embedded field. descend if it is a plain struct
				if fi.Type.Kind() != reflect.Struct {
					continue
				}

				queue = append(queue, queued{fi.Type, index})
				continue
			}

			if !tagged {
				continue
			}

			dir, err := parseDirective(tag)
			if err != nil {
				return extractPlan{}, fmt.Errorf("field %q of %q: %w", fi.Name, ty, err)
			}

			plan.fields = append(plan.fields, taggedField{
				Name:      fi.Name,
				Index:     index,
				Directive: dir,
			})
		}
	}

	return plan, nil
}

// parseDirective parses a non-empty directive tag of the form
//
//	<alias>[,name=<key>][,index=<n>][,flatten]
//
// An empty tag is a directive with all defaults. A negative index means no
// indexing, matching the zero Directive.
func parseDirective(tag string) (Directive, error) {
	var dir Directive

	alias, rest, _ := strings.Cut(tag, ",")
	dir.Alias = alias

	for rest != "" {
		var opt string
		opt, rest, _ = strings.Cut(rest, ",")

		switch {
		case opt == "":
			// tolerate a trailing comma

		case opt == "flatten":
			dir.Flatten = true

		case strings.HasPrefix(opt, "name="):
			dir.Name = opt[len("name="):]

		case strings.HasPrefix(opt, "index="):
			n, err := strconv.Atoi(opt[len("index="):])
			if err != nil {
				return Directive{}, fmt.Errorf("directive option %q: %w", opt, err)
			}

			if n >= 0 {
				dir.Index = n
				dir.HasIndex = true
			}

		default:
			return Directive{}, fmt.Errorf("unknown directive option %q", opt)
		}
	}

	return dir, nil
}
