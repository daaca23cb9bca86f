package certificate

import (
	"strings"
	"time"
)

// DefaultLocale is used when no or an unknown locale is configured.
const DefaultLocale = "en-US"

var dateLayouts = map[string]string{
	"en-us": "1/2/2006",
	"en-gb": "02/01/2006",
	"en-au": "2/01/2006",
	"de-de": "2.1.2006",
	"fr-fr": "02/01/2006",
	"nl-nl": "2-1-2006",
	"id-id": "2/1/2006",
	"ja-jp": "2006/1/2",
	"iso":   "2006-01-02",
}

// FormatDate renders t as a short numeric date in the given locale.
func FormatDate(t time.Time, locale string) string {
	layout, ok := dateLayouts[strings.ToLower(strings.ReplaceAll(locale, "_", "-"))]
	if !ok {
		layout = dateLayouts[strings.ToLower(DefaultLocale)]
	}
	return t.Format(layout)
}
