// Package extract provides pure text-scanning helpers used by archive
// ingestion: person-name, date, phone and email extraction from free-form
// strings (filenames, archive names), plus best-effort recovery of filenames
// that were mangled by a legacy archive tool.
package extract

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Person names follow the Russian three-part convention: Surname Given
// Patronymic, with the trailing word ending in a patronymic suffix. Parts are
// separated by space, hyphen or underscore and each part starts with an
// uppercase letter. Surnames may be double-barrelled.
var nameRe = regexp.MustCompile(
	`(?:^|[ \-_])([А-ЯЁ][а-яё]+(?:-[А-ЯЁ][а-яё]+)?)[ \-_]([А-ЯЁ][а-яё]+)[ \-_]([А-ЯЁ][а-яё]*(?:ович|евич|овна|евна|ична|инична))`)

var (
	dateRe  = regexp.MustCompile(`\b(?:\d{1,2}\s[а-яА-Я]+\s\d{4}|\d{1,2}[./]\d{1,2}[./]\d{4})\b`)
	phoneRe = regexp.MustCompile(`\+?\d{1,3}?[-.\s]?\(?\d{1,4}?\)?[-.\s]?\d{1,4}[-.\s]?\d{1,9}`)
	emailRe = regexp.MustCompile(`[a-zA-Z0-9_.+-]+@[a-zA-Z0-9-]+\.[a-zA-Z0-9-.]+`)
)

// Russian month names in the genitive case (as written inside dates) and the
// nominative, both lowercase.
var months = map[string]time.Month{
	"января": time.January, "январь": time.January,
	"февраля": time.February, "февраль": time.February,
	"марта": time.March, "март": time.March,
	"апреля": time.April, "апрель": time.April,
	"мая": time.May, "май": time.May,
	"июня": time.June, "июнь": time.June,
	"июля": time.July, "июль": time.July,
	"августа": time.August, "август": time.August,
	"сентября": time.September, "сентябрь": time.September,
	"октября": time.October, "октябрь": time.October,
	"ноября": time.November, "ноябрь": time.November,
	"декабря": time.December, "декабрь": time.December,
}

// PersonNames returns every non-overlapping "Surname Given Patronymic" match
// in scan order, with part separators normalized to single spaces. Duplicates
// are kept; deduplication is the caller's concern.
func PersonNames(text string) []string {
	matches := nameRe.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return nil
	}
	names := make([]string, 0, len(matches))
	for _, m := range matches {
		names = append(names, m[1]+" "+m[2]+" "+m[3])
	}
	return names
}

// Dates returns every date-shaped substring that parses to a real calendar
// date, re-rendered as DD.MM.YYYY. Candidates that fail to parse are dropped
// silently.
func Dates(text string) []string {
	var out []string
	for _, raw := range dateRe.FindAllString(text, -1) {
		if t, ok := parseDate(raw); ok {
			out = append(out, t.Format("02.01.2006"))
		}
	}
	return out
}

func parseDate(raw string) (time.Time, bool) {
	fields := strings.Fields(raw)
	if len(fields) == 3 {
		month, ok := months[strings.ToLower(fields[1])]
		if !ok {
			return time.Time{}, false
		}
		t, err := time.Parse("2 1 2006", fmt.Sprintf("%s %d %s", fields[0], int(month), fields[2]))
		if err != nil {
			return time.Time{}, false
		}
		return t, true
	}
	t, err := time.Parse("2.1.2006", strings.ReplaceAll(raw, "/", "."))
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// Phones returns loosely-delimited digit runs of plausible phone shape. The
// pattern is intentionally permissive and over-matches; callers must not
// assume the results are dialable numbers.
func Phones(text string) []string {
	return phoneRe.FindAllString(text, -1)
}

// Emails returns every local@domain shaped substring.
func Emails(text string) []string {
	return emailRe.FindAllString(text, -1)
}

// NameSplitter turns a full name string into its (last, first, middle)
// parts. The default is the whitespace heuristic below; alternate locales can
// supply their own.
type NameSplitter interface {
	Split(full string) (last, first, middle string)
}

// WhitespaceSplitter splits on whitespace: first token is the surname, second
// the given name, anything remaining the patronymic. Missing parts come back
// empty.
type WhitespaceSplitter struct{}

func (WhitespaceSplitter) Split(full string) (last, first, middle string) {
	parts := strings.Fields(full)
	if len(parts) > 0 {
		last = parts[0]
	}
	if len(parts) > 1 {
		first = parts[1]
	}
	if len(parts) > 2 {
		middle = strings.Join(parts[2:], " ")
	}
	return last, first, middle
}
