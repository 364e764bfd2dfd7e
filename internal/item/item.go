// Package item defines the item types exchanged between source commands,
// the daemon, and IPC clients, along with dotted-path field extraction.
package item

import (
	"encoding/json"
	"strconv"
	"strings"
)

// MenuItem is the wire form emitted by source and evaluator commands and by
// jsonl-mode IPC clients: one JSON object per line. It is immutable once
// parsed.
type MenuItem struct {
	Title    string `json:"title"`
	Subtitle string `json:"subtitle,omitempty"`
	IconPath string `json:"icon_path,omitempty"`
	Data     any    `json:"data,omitempty"`
}

// Parse decodes a single JSONL line into a MenuItem. Items without a title
// are rejected so that junk objects do not show up as blank rows.
func Parse(line []byte) (MenuItem, error) {
	var mi MenuItem
	if err := json.Unmarshal(line, &mi); err != nil {
		return MenuItem{}, err
	}
	if mi.Title == "" {
		return MenuItem{}, errNoTitle
	}
	return mi, nil
}

type parseError string

func (e parseError) Error() string { return string(e) }

const errNoTitle = parseError(`item has no "title"`)

// Field resolves a dot-separated field path against the item and always
// returns a string. "title", "subtitle" and "icon_path" return the scalar
// (empty when absent). "data" renders the data value as plain text, and
// "data.a.b" walks nested keys; a missing key at any step yields "". Any
// other path falls back to the title.
func (m MenuItem) Field(path string) string {
	switch path {
	case "title":
		return m.Title
	case "subtitle":
		return m.Subtitle
	case "icon_path":
		return m.IconPath
	}
	if path == "data" || strings.HasPrefix(path, "data.") {
		if path == "data" {
			return renderValue(m.Data)
		}
		cur := m.Data
		for _, key := range strings.Split(strings.TrimPrefix(path, "data."), ".") {
			obj, ok := cur.(map[string]any)
			if !ok {
				return ""
			}
			cur, ok = obj[key]
			if !ok {
				return ""
			}
		}
		return renderValue(cur)
	}
	return m.Title
}

// renderValue converts a decoded JSON value to the plain string passed to
// action commands. encoding/json decodes all numbers as float64.
func renderValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case float64:
		if x == float64(int64(x)) {
			return strconv.FormatInt(int64(x), 10)
		}
		return strconv.FormatFloat(x, 'g', -1, 64)
	case json.Number:
		return x.String()
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(b)
	}
}

// DisplayItem is the daemon-internal form handed to the ranking oracle and
// the display surface.
type DisplayItem struct {
	// ID is the position of the originating raw line for external
	// sessions; nil for items loaded from providers and evaluators.
	ID *int
	// Title shown in the list.
	Title string
	// Subtitle shown under the title, may be empty.
	Subtitle string
	// ExecPath is the match-time field value (the "data" field rendered
	// as text).
	ExecPath string
	// SourceName attributes the item to the provider, evaluator, or
	// external session that produced it.
	SourceName string
}

// LoadedItem pairs a DisplayItem with the provider that produced it and the
// original MenuItem, so action-time field extraction can use a different
// field than match-time.
type LoadedItem struct {
	Display  DisplayItem
	Provider string
	Item     MenuItem
}

// Loaded builds a LoadedItem for a provider-sourced MenuItem.
func Loaded(mi MenuItem, provider, sourceName string) LoadedItem {
	return LoadedItem{
		Display: DisplayItem{
			Title:      mi.Title,
			Subtitle:   mi.Subtitle,
			ExecPath:   mi.Field("data"),
			SourceName: sourceName,
		},
		Provider: provider,
		Item:     mi,
	}
}

// Displays projects a slice of LoadedItems to their DisplayItems.
func Displays(items []LoadedItem) []DisplayItem {
	out := make([]DisplayItem, len(items))
	for i, li := range items {
		out[i] = li.Display
	}
	return out
}
