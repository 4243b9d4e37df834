package mapping

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrUnresolved is returned by a Resolver when a reference has no match and
// may not be created. The mapper drops the field and moves on.
var ErrUnresolved = errors.New("mapping: unresolved reference")

// Resolver exchanges reference ids for display names and back for fields
// flagged use_name. Reverse resolution may create the referenced entity
// where the domain allows it (contact lists); other reference kinds return
// ErrUnresolved when absent.
type Resolver interface {
	DisplayName(ctx context.Context, field, id string) (string, error)
	Reference(ctx context.Context, field, name string) (string, error)
}

// ToRemote maps a local record to Brevo attributes. Fields absent from the
// source are skipped; source fields with no mapping entry are dropped.
func ToRemote(ctx context.Context, fields []Field, local map[string]any, r Resolver) (map[string]any, error) {
	out := make(map[string]any, len(fields))
	for _, f := range fields {
		v, ok := local[f.Local]
		if !ok || v == nil {
			continue
		}

		if len(f.Split) == 2 {
			first, last := splitComposite(toString(v))
			out[f.Split[0]] = first
			out[f.Split[1]] = last
			continue
		}

		if f.UseName {
			name, err := r.DisplayName(ctx, f.Local, toString(v))
			if errors.Is(err, ErrUnresolved) {
				continue
			}
			if err != nil {
				return nil, fmt.Errorf("mapping: resolve %s: %w", f.Local, err)
			}
			out[f.Remote] = name
			continue
		}

		converted, ok := convert(v, f.Type)
		if !ok {
			continue
		}
		out[f.Remote] = converted
	}
	return out, nil
}

// ToLocal maps Brevo attributes to a local record. The inverse of ToRemote:
// split sub-fields are joined, display names are resolved back to reference
// ids, unmapped attributes are dropped.
func ToLocal(ctx context.Context, fields []Field, attrs map[string]any, r Resolver) (map[string]any, error) {
	out := make(map[string]any, len(fields))
	for _, f := range fields {
		if len(f.Split) == 2 {
			first, okFirst := attrs[f.Split[0]]
			last, okLast := attrs[f.Split[1]]
			if !okFirst && !okLast {
				continue
			}
			joined := strings.TrimSpace(toString(first) + " " + toString(last))
			if joined != "" {
				out[f.Local] = joined
			}
			continue
		}

		v, ok := attrs[f.Remote]
		if !ok || v == nil {
			continue
		}

		if f.UseName {
			id, err := r.Reference(ctx, f.Local, toString(v))
			if errors.Is(err, ErrUnresolved) {
				continue
			}
			if err != nil {
				return nil, fmt.Errorf("mapping: resolve %s: %w", f.Local, err)
			}
			out[f.Local] = id
			continue
		}

		converted, ok := convert(v, f.Type)
		if !ok {
			continue
		}
		out[f.Local] = converted
	}
	return out, nil
}

// splitComposite divides a composite value at the first space: "Verena
// Schweighuber" becomes ("Verena", "Schweighuber"). A value without a space
// lands entirely in the first component.
func splitComposite(v string) (string, string) {
	v = strings.TrimSpace(v)
	first, last, found := strings.Cut(v, " ")
	if !found {
		return v, ""
	}
	return first, strings.TrimSpace(last)
}

// convert coerces a value to the mapping's declared type. Unconvertible
// values are dropped rather than propagated as garbage.
func convert(v any, typ string) (any, bool) {
	switch typ {
	case "", "text":
		return toString(v), true
	case "number":
		switch n := v.(type) {
		case float64:
			return n, true
		case int64:
			return float64(n), true
		case string:
			f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
			return f, err == nil
		}
		return nil, false
	case "boolean":
		switch b := v.(type) {
		case bool:
			return b, true
		case float64:
			return b != 0, true
		case string:
			switch strings.ToLower(strings.TrimSpace(b)) {
			case "1", "true", "yes", "y":
				return true, true
			case "0", "false", "no", "n":
				return false, true
			}
		}
		return nil, false
	case "date":
		t, ok := toTime(v)
		if !ok {
			return nil, false
		}
		return t.Format("2006-01-02"), true
	case "datetime":
		t, ok := toTime(v)
		if !ok {
			return nil, false
		}
		return t.Format("2006-01-02 15:04:05"), true
	}
	return nil, false
}

func toString(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(s)
	default:
		return fmt.Sprint(v)
	}
}

var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

func toTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t.UTC(), true
	case string:
		for _, layout := range timeLayouts {
			if parsed, err := time.Parse(layout, strings.TrimSpace(t)); err == nil {
				return parsed.UTC(), true
			}
		}
	}
	return time.Time{}, false
}
