package timestamp

import (
	"regexp"
	"strings"
	"time"
)

// Pattern is one known timestamp format. Shape is checked before
// time.Parse so digits counts and separators are as strict as the
// format's name says; time.Parse alone accepts looser input.
type Pattern struct {
	// Name is the human-readable form, e.g. "dd/mm/yy, HH:MM:SS".
	Name string

	// Layout is the Go reference layout.
	Layout string

	shape *regexp.Regexp
}

func newPattern(name, layout, shape string) *Pattern {
	return &Pattern{Name: name, Layout: layout, shape: regexp.MustCompile(shape)}
}

// Parse parses s, trimmed, or returns an error.
func (p *Pattern) Parse(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if !p.shape.MatchString(s) {
		return time.Time{}, &time.ParseError{Layout: p.Layout, Value: s, Message: ": does not match " + p.Name}
	}
	return time.Parse(p.Layout, s)
}

// Matches reports whether s parses under p.
func (p *Pattern) Matches(s string) bool {
	_, err := p.Parse(s)
	return err == nil
}

func (p *Pattern) String() string {
	return p.Name
}

const hms = `\d{1,2}:\d{1,2}:\d{1,2}`

// Two-digit years follow the usual pivot: 00-68 are 2000-2068, 69-99 are
// 1969-1999.
var (
	Brazilian     = newPattern("dd/mm/yy, HH:MM:SS", "2/1/06, 15:4:5", `^\d{1,2}/\d{1,2}/\d{2}, `+hms+`$`)
	BrazilianLong = newPattern("dd/mm/yyyy HH:MM:SS", "2/1/2006 15:4:5", `^\d{1,2}/\d{1,2}/\d{4} `+hms+`$`)
	ISO           = newPattern("yyyy-mm-dd HH:MM:SS", "2006-1-2 15:4:5", `^\d{4}-\d{1,2}-\d{1,2} `+hms+`$`)
	European      = newPattern("dd-mm-yyyy HH:MM:SS", "2-1-2006 15:4:5", `^\d{1,2}-\d{1,2}-\d{4} `+hms+`$`)
	US12Hour      = newPattern("mm/dd/yyyy hh:MM:SS AM", "1/2/2006 3:4:5 PM", `^\d{1,2}/\d{1,2}/\d{4} `+hms+` (AM|PM)$`)
	US24Hour      = newPattern("mm/dd/yyyy HH:MM:SS", "1/2/2006 15:4:5", `^\d{1,2}/\d{1,2}/\d{4} `+hms+`$`)
	USShort       = newPattern("mm/dd/yy HH:MM:SS", "1/2/06 15:4:5", `^\d{1,2}/\d{1,2}/\d{2} `+hms+`$`)
	Asian         = newPattern("yyyy/mm/dd HH:MM:SS", "2006/1/2 15:4:5", `^\d{4}/\d{1,2}/\d{1,2} `+hms+`$`)
	German        = newPattern("dd.mm.yyyy HH:MM:SS", "2.1.2006 15:4:5", `^\d{1,2}\.\d{1,2}\.\d{4} `+hms+`$`)
	ISO8601       = newPattern("yyyy-mm-ddTHH:MM:SS", "2006-1-2T15:4:5", `^\d{4}-\d{1,2}-\d{1,2}T`+hms+`$`)
	ISO8601Frac   = newPattern("yyyy-mm-ddTHH:MM:SS.ffffff", "2006-1-2T15:4:5", `^\d{4}-\d{1,2}-\d{1,2}T`+hms+`\.\d{1,6}$`)
	UK            = newPattern("dd Mon yyyy HH:MM:SS", "2 Jan 2006 15:4:5", `^\d{1,2} [A-Za-z]{3} \d{4} `+hms+`$`)
)

// Known lists the patterns in detection priority order. The Brazilian
// short form comes first since it dominates Moodle exports.
var Known = []*Pattern{
	Brazilian,
	BrazilianLong,
	ISO,
	European,
	US12Hour,
	US24Hour,
	USShort,
	Asian,
	German,
	ISO8601,
	ISO8601Frac,
	UK,
}

// Lookup returns the known pattern with the given name.
func Lookup(name string) (*Pattern, bool) {
	for _, p := range Known {
		if p.Name == name {
			return p, true
		}
	}
	return nil, false
}
