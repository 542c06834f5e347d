package render

import (
	"fmt"
	"io"
	"reflect"
	"slices"
	"strings"
	"text/tabwriter"
	"time"
)

var timeType = reflect.TypeFor[time.Time]()

// section is a slice-of-struct field expanded below the field list.
type section struct {
	title string
	rows  reflect.Value
}

func (r *Renderer) renderTable(data any) error {
	w := tabwriter.NewWriter(r.out, 0, 0, 2, ' ', 0)
	v := indirect(reflect.ValueOf(data))

	switch v.Kind() {
	case reflect.Slice, reflect.Array:
		if v.Len() == 0 {
			fmt.Fprintln(w, "(no results)")
			break
		}
		writeRows(w, v)
	case reflect.Struct:
		for _, s := range writeFields(w, v) {
			fmt.Fprintf(w, "\n%s\n", r.title.Render(s.title+":"))
			writeRows(w, s.rows)
		}
	case reflect.Map:
		for _, e := range mapEntries(v) {
			fmt.Fprintf(w, "%s:\t%s\n", e.key, formatValue(e.val))
		}
	case reflect.Invalid:
		fmt.Fprintln(w, "(no results)")
	default:
		fmt.Fprintf(w, "%v\n", v.Interface())
	}
	return w.Flush()
}

// writeFields prints one line per field and returns the sections to expand.
func writeFields(w io.Writer, v reflect.Value) []section {
	var sections []section
	t := v.Type()
	for i := range t.NumField() {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		name := fieldName(f)
		fv := v.Field(i)
		fmt.Fprintf(w, "%s:\t%s\n", name, formatValue(fv))
		if isStructSlice(fv) && fv.Len() > 0 {
			sections = append(sections, section{title: name, rows: fv})
		}
	}
	return sections
}

// writeRows prints a header row and one row per element.
func writeRows(w io.Writer, v reflect.Value) {
	elem := indirectType(v.Type().Elem())

	switch elem.Kind() {
	case reflect.Struct:
		if elem == timeType {
			break
		}
		var headers []string
		for i := range elem.NumField() {
			if elem.Field(i).IsExported() {
				headers = append(headers, fieldName(elem.Field(i)))
			}
		}
		fmt.Fprintln(w, strings.Join(headers, "\t"))
		for i := range v.Len() {
			row := indirect(v.Index(i))
			cells := make([]string, 0, len(headers))
			for j := range elem.NumField() {
				if !elem.Field(j).IsExported() {
					continue
				}
				if row.IsValid() {
					cells = append(cells, formatValue(row.Field(j)))
				} else {
					cells = append(cells, "")
				}
			}
			fmt.Fprintln(w, strings.Join(cells, "\t"))
		}
		return
	case reflect.Map:
		var headers []string
		for _, e := range mapEntries(indirect(v.Index(0))) {
			headers = append(headers, e.key)
		}
		fmt.Fprintln(w, strings.Join(headers, "\t"))
		for i := range v.Len() {
			byKey := map[string]string{}
			for _, e := range mapEntries(indirect(v.Index(i))) {
				byKey[e.key] = formatValue(e.val)
			}
			cells := make([]string, len(headers))
			for j, h := range headers {
				cells[j] = byKey[h]
			}
			fmt.Fprintln(w, strings.Join(cells, "\t"))
		}
		return
	}

	for i := range v.Len() {
		fmt.Fprintln(w, formatValue(v.Index(i)))
	}
}

func fieldName(f reflect.StructField) string {
	if name, _, _ := strings.Cut(f.Tag.Get("json"), ","); name != "" && name != "-" {
		return name
	}
	return strings.ToLower(f.Name)
}

func formatValue(v reflect.Value) string {
	v = indirect(v)
	if !v.IsValid() {
		return ""
	}

	if v.Type() == timeType {
		t := v.Interface().(time.Time)
		if t.IsZero() {
			return ""
		}
		return t.UTC().Format(time.RFC3339)
	}

	switch v.Kind() {
	case reflect.Slice, reflect.Array:
		if v.Len() == 0 {
			return "[]"
		}
		if v.Kind() == reflect.Slice && v.Type().Elem().Kind() == reflect.Uint8 {
			return string(v.Bytes())
		}
		return fmt.Sprintf("[%d items]", v.Len())
	case reflect.Map:
		if v.Len() == 0 {
			return "{}"
		}
		return fmt.Sprintf("{%d keys}", v.Len())
	case reflect.Struct:
		return "{...}"
	default:
		return fmt.Sprintf("%v", v.Interface())
	}
}

func isStructSlice(v reflect.Value) bool {
	if v.Kind() != reflect.Slice && v.Kind() != reflect.Array {
		return false
	}
	elem := indirectType(v.Type().Elem())
	return elem.Kind() == reflect.Struct && elem != timeType
}

type mapEntry struct {
	key string
	val reflect.Value
}

// mapEntries returns a map's entries ordered by the string form of the key.
func mapEntries(v reflect.Value) []mapEntry {
	if v.Kind() != reflect.Map {
		return nil
	}
	entries := make([]mapEntry, 0, v.Len())
	iter := v.MapRange()
	for iter.Next() {
		entries = append(entries, mapEntry{key: fmt.Sprint(iter.Key().Interface()), val: iter.Value()})
	}
	slices.SortFunc(entries, func(a, b mapEntry) int { return strings.Compare(a.key, b.key) })
	return entries
}

func indirect(v reflect.Value) reflect.Value {
	for v.IsValid() && (v.Kind() == reflect.Ptr || v.Kind() == reflect.Interface) {
		if v.IsNil() {
			return reflect.Value{}
		}
		v = v.Elem()
	}
	return v
}

func indirectType(t reflect.Type) reflect.Type {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t
}
