package parcel

import (
	"reflect"
	"slices"
	"strings"
	"sync"

	"github.com/zoobzio/sentinel"
)

func init() {
	// Register the wire tag with sentinel
	sentinel.Tag("parcel")

	// Warm the message types
	sentinel.Scan[Request]()
	sentinel.Scan[Response]()
}

// fieldPlan describes how a single struct field reaches the wire.
type fieldPlan struct {
	index     []int  // fieldByIndex access path, through embedded structs
	key       string // wire member name
	omitEmpty bool   // skip zero values
}

// typePlan lists the wire fields of a struct type in declaration order.
type typePlan struct {
	fields  []fieldPlan
	scanned bool // metadata came from sentinel rather than reflection
}

var (
	registry   = make(map[reflect.Type]*typePlan)
	registryMu sync.RWMutex
)

// Register scans T with sentinel and caches its wire plan. Types that are
// never registered are planned from reflection on first encode.
func Register[T any]() error {
	meta, err := sentinel.TryScan[T]()
	if err != nil {
		return err
	}
	rt := reflect.TypeFor[T]()
	if rt.Kind() == reflect.Pointer {
		rt = rt.Elem()
	}

	scanned := describes(meta, rt)
	if !scanned {
		meta = reflectMetadata(rt)
	}

	registryMu.Lock()
	defer registryMu.Unlock()
	registry[rt] = buildPlan(rt, meta, scanned)
	return nil
}

// planFor returns the cached plan for struct type rt, building it on first use.
func planFor(rt reflect.Type) *typePlan {
	// Fast path: read-lock cache check
	registryMu.RLock()
	if cached, ok := registry[rt]; ok {
		registryMu.RUnlock()
		return cached
	}
	registryMu.RUnlock()

	// Slow path: build and cache with write-lock
	registryMu.Lock()
	defer registryMu.Unlock()

	// Double-check pattern
	if cached, ok := registry[rt]; ok {
		return cached
	}

	meta, scanned := metadataFor(rt)
	plan := buildPlan(rt, meta, scanned)
	registry[rt] = plan
	return plan
}

// Reset clears the plan registry.
// This is primarily useful for test isolation.
func Reset() {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry = make(map[reflect.Type]*typePlan)
}

// buildPlan creates the plan for struct type rt from its metadata.
func buildPlan(rt reflect.Type, meta sentinel.Metadata, scanned bool) *typePlan {
	plan := &typePlan{scanned: scanned}
	collectFields(plan, rt, meta, nil, map[reflect.Type]bool{rt: true})
	plan.fields = dominantFields(plan.fields)

	// Declaration order is wire order; promoted fields sit where their
	// embedded struct is declared.
	slices.SortStableFunc(plan.fields, func(a, b fieldPlan) int {
		return slices.Compare(a.index, b.index)
	})
	return plan
}

// collectFields appends the wire fields of meta to plan. Untagged embedded
// structs are flattened into their parent.
func collectFields(plan *typePlan, rt reflect.Type, meta sentinel.Metadata, parentIndex []int, visiting map[reflect.Type]bool) {
	for _, field := range meta.Fields {
		fullIndex := append(slices.Clone(parentIndex), field.Index...)

		tag := field.Tags["parcel"]
		key, omitEmpty, skip := parseWireTag(tag, field.Name)
		if skip {
			continue
		}

		named := !strings.HasPrefix(tag, ",") && tag != ""
		if embedded := embeddedStruct(rt, field); embedded != nil && !named && !visiting[embedded] {
			nested, _ := metadataFor(embedded)
			visiting[embedded] = true
			collectFields(plan, embedded, nested, fullIndex, visiting)
			delete(visiting, embedded)
			continue
		}

		plan.fields = append(plan.fields, fieldPlan{
			index:     fullIndex,
			key:       key,
			omitEmpty: omitEmpty,
		})
	}
}

// embeddedStruct returns the struct type behind an embedded field, or nil
// when the field is not embedded or encodes as a single value.
func embeddedStruct(rt reflect.Type, field sentinel.FieldMetadata) reflect.Type {
	var st reflect.Type
	switch field.Kind {
	case sentinel.KindStruct:
		st = field.ReflectType
	case sentinel.KindPointer:
		if field.ReflectType.Elem().Kind() != reflect.Struct {
			return nil
		}
		st = field.ReflectType.Elem()
	default:
		return nil
	}
	if len(field.Index) != 1 || !rt.Field(field.Index[0]).Anonymous {
		return nil
	}
	switch st {
	case headerType, contentRType, urlType, timeType:
		return nil
	}
	if st.Implements(marshalerType) || reflect.PointerTo(st).Implements(marshalerType) {
		return nil
	}
	return st
}

// dominantFields resolves duplicate keys the way encoding/json does: the
// shallowest field wins, and a tie at the same depth drops the key.
func dominantFields(fields []fieldPlan) []fieldPlan {
	byKey := make(map[string][]fieldPlan, len(fields))
	for _, f := range fields {
		byKey[f.key] = append(byKey[f.key], f)
	}

	out := fields[:0:0]
	for _, f := range fields {
		group := byKey[f.key]
		if len(group) == 1 {
			out = append(out, f)
			continue
		}
		depth, count := len(f.index), 0
		for _, g := range group {
			if len(g.index) < depth {
				depth, count = len(g.index), 0
			}
			if len(g.index) == depth {
				count++
			}
		}
		if len(f.index) == depth && count == 1 {
			out = append(out, f)
		}
	}
	return out
}

// metadataFor returns sentinel's metadata for rt when sentinel has scanned
// it. Sentinel keys types by bare name, so the entry must also match rt's
// package and fields. Other types get equivalent metadata from reflection.
func metadataFor(rt reflect.Type) (sentinel.Metadata, bool) {
	if meta, ok := sentinel.Lookup(rt.Name()); ok && describes(meta, rt) {
		return meta, true
	}
	return reflectMetadata(rt), false
}

// describes reports whether meta was extracted from rt.
func describes(meta sentinel.Metadata, rt reflect.Type) bool {
	if meta.PackageName != rt.PkgPath() || len(meta.Fields) != exportedFields(rt) {
		return false
	}
	for _, f := range meta.Fields {
		if len(f.Index) != 1 || f.Index[0] >= rt.NumField() {
			return false
		}
		sf := rt.Field(f.Index[0])
		if sf.Name != f.Name || sf.Type != f.ReflectType {
			return false
		}
	}
	return true
}

// reflectMetadata builds the subset of sentinel metadata that plans read.
func reflectMetadata(rt reflect.Type) sentinel.Metadata {
	meta := sentinel.Metadata{TypeName: rt.Name(), PackageName: rt.PkgPath()}
	for i := 0; i < rt.NumField(); i++ {
		sf := rt.Field(i)
		if !sf.IsExported() {
			continue
		}
		fm := sentinel.FieldMetadata{
			Name:        sf.Name,
			Index:       sf.Index,
			Kind:        sentinel.KindScalar,
			ReflectType: sf.Type,
		}
		switch sf.Type.Kind() {
		case reflect.Struct:
			fm.Kind = sentinel.KindStruct
		case reflect.Pointer:
			fm.Kind = sentinel.KindPointer
		}
		if tag := sf.Tag.Get("parcel"); tag != "" {
			fm.Tags = map[string]string{"parcel": tag}
		}
		meta.Fields = append(meta.Fields, fm)
	}
	return meta
}

// exportedFields counts the exported fields of struct type rt.
func exportedFields(rt reflect.Type) int {
	n := 0
	for i := 0; i < rt.NumField(); i++ {
		if rt.Field(i).IsExported() {
			n++
		}
	}
	return n
}

// parseWireTag splits a parcel tag into member name and options.
// "-" skips the field; an empty name falls back to the field name.
func parseWireTag(tag, fieldName string) (key string, omitEmpty, skip bool) {
	if tag == "-" {
		return "", false, true
	}
	name, opts, _ := strings.Cut(tag, ",")
	if name == "" {
		name = fieldName
	}
	for _, opt := range strings.Split(opts, ",") {
		if strings.TrimSpace(opt) == "omitempty" {
			omitEmpty = true
		}
	}
	return name, omitEmpty, false
}
