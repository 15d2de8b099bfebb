package worker

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/viant/parsly"
)

// Trip defaults applied when a request leaves a detail out.
const (
	DefaultOrigin   = "Seattle"
	DefaultLeadDays = 30
	DefaultNights   = 3
)

// Trip is the travel intent extracted from a request.
type Trip struct {
	Origin      string `json:"origin"`
	Destination string `json:"destination"`
	LeadDays    int    `json:"leadDays"` // days between booking and departure
	Nights      int    `json:"nights"`
}

func (t *Trip) String() string {
	return fmt.Sprintf("%s -> %s, %d nights, departing in %d days", t.Origin, t.Destination, t.Nights, t.LeadDays)
}

type word struct {
	text   string // lower case
	number int
	isNum  bool
}

func tokenize(text string) []word {
	cursor := parsly.NewCursor("", []byte(text), 0)
	var ret []word
	for cursor.Pos < cursor.InputSize {
		matched := cursor.MatchAny(whitespaceToken, numberToken, wordToken, symbolToken)
		switch matched.Code {
		case numberCode:
			n, _ := strconv.Atoi(matched.Text(cursor))
			ret = append(ret, word{text: matched.Text(cursor), number: n, isNum: true})
		case wordCode:
			ret = append(ret, word{text: strings.ToLower(matched.Text(cursor))})
		case whitespaceCode, symbolCode:
		default:
			return ret
		}
	}
	return ret
}

var numberWords = map[string]int{
	"one": 1, "two": 2, "three": 3, "four": 4, "five": 5, "six": 6, "seven": 7,
	"eight": 8, "nine": 9, "ten": 10, "a": 1, "an": 1,
}

// ParseTrip extracts origin, destination, lead time and length of stay from
// a free-text request. Unknown details fall back to defaults.
func ParseTrip(request string, cities []string) *Trip {
	words := tokenize(request)
	trip := &Trip{LeadDays: DefaultLeadDays, Nights: DefaultNights}

	var mentioned []string
	for i := 0; i < len(words); i++ {
		city, size := matchCity(words, i, cities)
		if city == "" {
			continue
		}
		if i > 0 && words[i-1].text == "from" && trip.Origin == "" {
			trip.Origin = city
		} else {
			mentioned = append(mentioned, city)
		}
		i += size - 1
	}
	if trip.Origin == "" && len(mentioned) >= 2 {
		trip.Origin, mentioned = mentioned[0], mentioned[1:]
	}
	if trip.Origin == "" {
		trip.Origin = DefaultOrigin
	}
	for _, city := range mentioned {
		if city != trip.Origin {
			trip.Destination = city
			break
		}
	}
	if trip.Destination == "" {
		trip.Destination = "New York"
		if trip.Origin == trip.Destination {
			trip.Destination = DefaultOrigin
		}
	}

	for i, w := range words {
		switch w.text {
		case "tomorrow":
			trip.LeadDays = 1
		case "today", "tonight":
			trip.LeadDays = 0
		case "week":
			if i > 0 && words[i-1].text == "next" {
				trip.LeadDays = 7
			}
		case "month":
			if i > 0 && words[i-1].text == "next" {
				trip.LeadDays = 30
			}
		case "night", "nights":
			if n, ok := quantity(words, i); ok {
				trip.Nights = n
			}
		case "day", "days":
			n, ok := quantity(words, i)
			if !ok {
				continue
			}
			if (i > 1 && words[i-2].text == "in") || next(words, i, "from", "out", "ahead", "away") {
				trip.LeadDays = n
			} else if next(words, i, "trip", "stay", "visit") || (i > 1 && words[i-2].text == "for") {
				trip.Nights = n
			}
		}
	}
	return trip
}

func matchCity(words []word, at int, cities []string) (string, int) {
	for _, city := range cities {
		parts := strings.Fields(strings.ToLower(city))
		if at+len(parts) > len(words) {
			continue
		}
		ok := true
		for j, part := range parts {
			if words[at+j].text != part {
				ok = false
				break
			}
		}
		if ok {
			return city, len(parts)
		}
	}
	return "", 0
}

func quantity(words []word, at int) (int, bool) {
	if at == 0 {
		return 0, false
	}
	prev := words[at-1]
	if prev.isNum {
		return prev.number, true
	}
	n, ok := numberWords[prev.text]
	return n, ok
}

func next(words []word, at int, candidates ...string) bool {
	if at+1 >= len(words) {
		return false
	}
	for _, c := range candidates {
		if words[at+1].text == c {
			return true
		}
	}
	return false
}
