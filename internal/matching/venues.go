package matching

import "strings"

// venueAliases maps known alternate or former venue names to one canonical
// name. Keys are lowercase. Marketplaces are inconsistent about renamed
// arenas, so both old and new names appear.
var venueAliases = map[string]string{
	"moda center":                "Moda Center",
	"rose garden arena":          "Moda Center",
	"rose garden":                "Moda Center",
	"madison square garden":      "Madison Square Garden",
	"msg":                        "Madison Square Garden",
	"the garden":                 "Madison Square Garden",
	"crypto.com arena":           "Crypto.com Arena",
	"staples center":             "Crypto.com Arena",
	"barclays center":            "Barclays Center",
	"chase center":               "Chase Center",
	"climate pledge arena":       "Climate Pledge Arena",
	"keyarena":                   "Climate Pledge Arena",
	"united center":              "United Center",
	"td garden":                  "TD Garden",
	"scotiabank arena":           "Scotiabank Arena",
	"air canada centre":          "Scotiabank Arena",
	"oakland arena":              "Oakland Arena",
	"oracle arena":               "Oakland Arena",
	"ball arena":                 "Ball Arena",
	"pepsi center":               "Ball Arena",
	"footprint center":           "Footprint Center",
	"talking stick resort arena": "Footprint Center",
	"smoothie king center":       "Smoothie King Center",
	"red rocks amphitheatre":     "Red Rocks Amphitheatre",
	"red rocks":                  "Red Rocks Amphitheatre",
	"hollywood bowl":             "Hollywood Bowl",
	"radio city music hall":      "Radio City Music Hall",
	"the forum":                  "Kia Forum",
	"kia forum":                  "Kia Forum",
}

// CanonicalVenue resolves a marketplace venue name to its canonical form:
// exact alias lookup, then substring match in both directions, then
// title-cased passthrough.
func CanonicalVenue(name string) string {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		return ""
	}
	if canonical, ok := venueAliases[key]; ok {
		return canonical
	}
	for alias, canonical := range venueAliases {
		if strings.Contains(key, alias) || strings.Contains(alias, key) {
			return canonical
		}
	}
	return titleCase(key)
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
