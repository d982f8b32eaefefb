package ranking

// synonymGroups is the fixed synonym table query expansion draws from.
// Each inner slice is a set of interchangeable terms; a term's group-mates
// (excluding itself) become its synonym variants.
var synonymGroups = [][]string{
	{"install", "setup", "configure"},
	{"error", "issue", "problem"},
	{"delete", "remove", "uninstall"},
	{"start", "launch", "run"},
	{"stop", "halt", "shutdown"},
	{"doc", "docs", "documentation"},
	{"guide", "tutorial", "howto"},
	{"bug", "defect", "fault"},
	{"update", "upgrade"},
	{"login", "signin", "authenticate"},
}

var synonymIndex = buildSynonymIndex()

func buildSynonymIndex() map[string][]string {
	index := make(map[string][]string)
	for _, group := range synonymGroups {
		for _, term := range group {
			var variants []string
			for _, other := range group {
				if other != term {
					variants = append(variants, other)
				}
			}
			index[term] = variants
		}
	}
	return index
}

// SynonymsOf returns term's registered synonym variants, or nil if it has
// none.
func SynonymsOf(term string) []string {
	return synonymIndex[term]
}
