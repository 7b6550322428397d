package dialogue

import (
	"fmt"
	"regexp"
	"strings"
	"time"
	_ "time/tzdata"
)

const timeLayout = "3:04 PM on January 02, 2006"

var (
	// "what time is it in Tokyo", "time in Paris right now"
	timeInCityPattern = regexp.MustCompile(`(?i)^(?:what(?:['’]s|\s+is)?\s+)?(?:the\s+)?(?:current\s+|local\s+)?time\s+(?:is\s+it\s+|now\s+)?in\s+([\p{L}][\p{L} .'-]{0,40}?)(?:\s+(?:right\s+)?now)?\s*[?.!]*$`)
	// "Tokyo time", "what's the London time"
	cityTimePattern = regexp.MustCompile(`(?i)^(?:what(?:['’]s|\s+is)?\s+)?(?:the\s+)?(?:current\s+)?([\p{L}][\p{L} .'-]{0,40}?)\s+time\s*(?:now)?\s*[?.!]*$`)
	// "what's the time", "what time is it", "current time"
	bareTimePattern = regexp.MustCompile(`(?i)^(?:what(?:['’]s|\s+is)\s+the\s+(?:current\s+)?time|what\s+time\s+is\s+it|(?:the\s+)?current\s+time)(?:\s+(?:right\s+)?now)?\s*[?.!]*$`)
)

// Clock answers explicit time questions from a city table without any
// model or search call.
type Clock struct {
	tables      *Tables
	defaultCity string
	now         func() time.Time
}

// NewClock resolves bare time questions to defaultCity.
func NewClock(tables *Tables, defaultCity string) *Clock {
	if tables == nil {
		tables = DefaultTables()
	}
	return &Clock{tables: tables, defaultCity: defaultCity, now: time.Now}
}

// Answer returns the reply to a time question, or ok=false when utterance
// is not one.
func (c *Clock) Answer(utterance string) (reply string, ok bool) {
	u := strings.TrimSpace(utterance)
	if m := timeInCityPattern.FindStringSubmatch(u); m != nil {
		return c.TimeIn(m[1]), true
	}
	if m := cityTimePattern.FindStringSubmatch(u); m != nil {
		if _, known := c.lookup(m[1]); known {
			return c.TimeIn(m[1]), true
		}
	}
	if bareTimePattern.MatchString(u) {
		return c.TimeIn(c.defaultCity), true
	}
	return "", false
}

// TimeIn formats the current time in city, or explains that the city is
// unknown.
func (c *Clock) TimeIn(city string) string {
	city = strings.TrimSpace(strings.Trim(city, "?.!"))
	zone, ok := c.lookup(city)
	if !ok {
		return fmt.Sprintf("I don't have timezone information for '%s'.", city)
	}
	loc, err := time.LoadLocation(zone.Zone)
	if err != nil {
		return fmt.Sprintf("I don't have timezone information for '%s'.", city)
	}
	return fmt.Sprintf("The current time in %s is %s.", zone.Name, c.now().In(loc).Format(timeLayout))
}

// Location returns the zone of the default city, UTC when unknown.
func (c *Clock) Location() *time.Location {
	if zone, ok := c.lookup(c.defaultCity); ok {
		if loc, err := time.LoadLocation(zone.Zone); err == nil {
			return loc
		}
	}
	return time.UTC
}

func (c *Clock) lookup(city string) (CityZone, bool) {
	key := strings.ToLower(strings.Join(strings.Fields(city), " "))
	key = strings.TrimPrefix(key, "the ")
	zone, ok := c.tables.Cities[key]
	return zone, ok
}
