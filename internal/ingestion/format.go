// Package ingestion implements the knowledge-base build job. It reads rows
// from the platform's source tables, renders each row into a natural-language
// sentence, embeds the sentence, and upserts the result into the vector
// store keyed by the source row's primary key so re-runs update in place.
package ingestion

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/reachhk/reachbot-go/internal/source"
)

// DefaultTables is the set of source tables swept by a full ingestion run.
var DefaultTables = []string{
	"campaigns",
	"champions",
	"donations",
	"post",
	"leaderboard_region",
	"regions",
}

// FormatRow renders a source row into the sentence that gets embedded. Each
// known table has a fixed template so the same row always yields the same
// text; unknown tables fall back to a key-sorted field dump.
func FormatRow(table string, rec source.Record) string {
	f := rec.Fields
	switch table {
	case "campaigns":
		return fmt.Sprintf("Campaign named %q: %s. Status is %s. Goal is %s cents.",
			f["name"], f["description"], f["status"], cents(f["goal_cents"]))
	case "champions":
		return fmt.Sprintf("Community champion named %s from %s. Bio: %s. Their next initiative is %q which involves: %s.",
			f["name"], f["organization"], f["bio"], f["next_initiative_title"], f["next_initiative_description"])
	case "donations":
		donor := f["donor_name"]
		if isTrue(f["is_anonymous"]) {
			donor = "an anonymous donor"
		}
		return fmt.Sprintf("A donation was made by %s of %s %s.",
			donor, cents(f["amount_cents"]), f["currency"])
	case "post":
		return fmt.Sprintf("A post by %s says: %q.", f["author"], f["description"])
	case "leaderboard_region":
		return fmt.Sprintf("The leaderboard for the region %s in %s shows a total of %s cents raised with %s donations. The lead champion is %s.",
			f["name"], f["country"], cents(f["total_amount_cents"]), f["donation_count"], f["lead_champion_name"])
	case "regions":
		return fmt.Sprintf("This is the %s region in country %s. The fundraising goal is %s cents.",
			f["name"], f["country"], cents(f["goal_cents"]))
	default:
		return genericRow(table, f)
	}
}

// cents renders a cent amount divided by 100, keeping the shortest decimal
// form. Unparseable input is passed through untouched.
func cents(raw string) string {
	n, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return raw
	}
	return strconv.FormatFloat(n/100, 'f', -1, 64)
}

// isTrue reports whether a rendered SQL value is truthy ("1" or "true").
func isTrue(raw string) bool {
	return raw == "1" || strings.EqualFold(raw, "true")
}

// genericRow renders an unknown table's row as "Table: t, k: v, ..." with
// keys sorted so the output is deterministic.
func genericRow(table string, fields map[string]string) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	fmt.Fprintf(&b, "Table: %s", table)
	for _, k := range keys {
		fmt.Fprintf(&b, ", %s: %s", k, fields[k])
	}
	return b.String()
}
