package export

import (
	"encoding/xml"
	"io"
	"strconv"
	"time"

	"github.com/JonMunkholm/moodlelogsmart/internal/core"
)

// XES 1.0 document. Only the attribute kinds the log uses are modelled.
type xesLog struct {
	XMLName    xml.Name       `xml:"log"`
	Version    string         `xml:"xes.version,attr"`
	Features   string         `xml:"xes.features,attr"`
	Xmlns      string         `xml:"xmlns,attr"`
	Extensions []xesExtension `xml:"extension"`
	Strings    []xesString    `xml:"string"`
	Traces     []xesTrace     `xml:"trace"`
}

type xesExtension struct {
	Name   string `xml:"name,attr"`
	Prefix string `xml:"prefix,attr"`
	URI    string `xml:"uri,attr"`
}

type xesTrace struct {
	Strings []xesString `xml:"string"`
	Events  []xesEvent  `xml:"event"`
}

type xesEvent struct {
	Strings  []xesString `xml:"string"`
	Dates    []xesDate   `xml:"date"`
	Booleans []xesBool   `xml:"boolean"`
}

type xesString struct {
	Key   string `xml:"key,attr"`
	Value string `xml:"value,attr"`
}

type xesDate struct {
	Key   string `xml:"key,attr"`
	Value string `xml:"value,attr"`
}

type xesBool struct {
	Key   string `xml:"key,attr"`
	Value string `xml:"value,attr"`
}

var xesExtensions = []xesExtension{
	{Name: "Concept", Prefix: "concept", URI: "http://www.xes-standard.org/concept.xesext"},
	{Name: "Time", Prefix: "time", URI: "http://www.xes-standard.org/time.xesext"},
	{Name: "Lifecycle", Prefix: "lifecycle", URI: "http://www.xes-standard.org/lifecycle.xesext"},
	{Name: "Organizational", Prefix: "org", URI: "http://www.xes-standard.org/org.xesext"},
}

// WriteXES writes events as an XES log with one trace per user, traces in
// order of each user's first event and events in input order.
func WriteXES(w io.Writer, events []core.EnrichedEvent) error {
	if len(events) == 0 {
		return core.Errorf(core.KindExportFailed, "no events to export")
	}

	doc := xesLog{
		Version:    "1.0",
		Features:   "nested-attributes",
		Xmlns:      "http://www.xes-standard.org/",
		Extensions: xesExtensions,
		Strings:    []xesString{{Key: "concept:name", Value: "Moodle event log"}},
	}

	index := make(map[string]int)
	for _, ev := range events {
		i, ok := index[ev.UserFullName]
		if !ok {
			i = len(doc.Traces)
			index[ev.UserFullName] = i
			doc.Traces = append(doc.Traces, xesTrace{
				Strings: []xesString{{Key: "concept:name", Value: ev.UserFullName}},
			})
		}
		doc.Traces[i].Events = append(doc.Traces[i].Events, xesEventOf(ev))
	}

	if _, err := io.WriteString(w, xml.Header); err != nil {
		return core.WrapError(core.KindExportFailed, "write xes", err)
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return core.WrapError(core.KindExportFailed, "encode xes", err)
	}
	if err := enc.Close(); err != nil {
		return core.WrapError(core.KindExportFailed, "encode xes", err)
	}
	return nil
}

func xesEventOf(ev core.EnrichedEvent) xesEvent {
	out := xesEvent{
		Strings: []xesString{
			{Key: "concept:name", Value: ev.EventName},
			{Key: "lifecycle:transition", Value: "complete"},
			{Key: "org:resource", Value: ev.UserFullName},
			{Key: "component", Value: ev.Component},
			{Key: "activity:type", Value: ev.ActivityType},
		},
		Booleans: []xesBool{{Key: "activity:active", Value: strconv.FormatBool(ev.IsActive)}},
	}
	if ev.BloomLevel != "" && ev.BloomLevel != "Unknown" {
		out.Strings = append(out.Strings, xesString{Key: "bloom:level", Value: ev.BloomLevel})
	}
	if ev.HasTime() {
		out.Dates = []xesDate{{Key: "time:timestamp", Value: ev.Time.Format(time.RFC3339)}}
	}
	return out
}

// WriteXESFile writes events to path, creating parent directories.
func WriteXESFile(path string, events []core.EnrichedEvent) error {
	return writeFile(path, func(w io.Writer) error {
		return WriteXES(w, events)
	})
}
