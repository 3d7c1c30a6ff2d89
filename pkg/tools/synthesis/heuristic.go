// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package synthesis

import (
	"regexp"
	"sort"
	"strings"
	"unicode"
)

var (
	clauseSplit = regexp.MustCompile(`[.!?;\n]+|,\s+|\s+(?:but|however|although|though|while|yet|whereas)\s+`)
	wordSplit   = regexp.MustCompile(`[a-z0-9']+`)
)

var positiveWords = wordSet(
	"great", "good", "excellent", "amazing", "awesome", "love", "loved", "loves",
	"best", "bright", "crisp", "sharp", "comfortable", "lasts", "reliable",
	"accurate", "smooth", "solid", "sturdy", "premium", "beautiful", "nice",
	"perfect", "fantastic", "impressive", "easy", "responsive", "clear",
	"vibrant", "durable", "lightweight", "worth", "happy", "recommend",
	"superb", "decent", "fine", "quick", "snappy", "stunning", "brilliant",
)

var negativeWords = wordSet(
	"bad", "poor", "terrible", "awful", "worst", "hate", "drains", "drain",
	"draining", "dies", "dim", "slow", "laggy", "lags", "flimsy", "broke",
	"broken", "breaks", "issue", "issues", "problem", "problems",
	"disappointing", "disappointed", "weak", "inaccurate", "uncomfortable",
	"expensive", "overpriced", "buggy", "crash", "crashes", "fails", "failed",
	"annoying", "noisy", "scratches", "unreliable", "mediocre", "useless",
	"horrible", "cheap", "faulty", "defective", "disconnects", "overheats",
)

var negators = wordSet("not", "no", "never", "isn't", "wasn't", "doesn't", "don't", "didn't", "hardly", "barely", "without")

// aspects maps a topic to the words that signal it. Order decides ties.
var aspects = []struct {
	name  string
	words map[string]bool
}{
	{"battery", wordSet("battery", "charge", "charging", "charger", "recharge")},
	{"display", wordSet("display", "screen", "brightness", "amoled", "oled", "lcd", "resolution")},
	{"sound", wordSet("sound", "audio", "speaker", "speakers", "bass", "volume", "microphone", "mic")},
	{"camera", wordSet("camera", "photo", "photos", "video", "lens")},
	{"price", wordSet("price", "value", "cost", "money", "expensive", "overpriced", "cheap", "affordable")},
	{"comfort", wordSet("comfort", "comfortable", "uncomfortable", "fit", "fits", "strap", "band", "weight", "lightweight")},
	{"build", wordSet("build", "quality", "material", "materials", "design", "flimsy", "sturdy", "durable", "scratches")},
	{"performance", wordSet("performance", "speed", "lag", "laggy", "lags", "responsive", "snappy", "processor")},
	{"connectivity", wordSet("bluetooth", "wifi", "gps", "connection", "pairing", "sync", "disconnects", "signal")},
	{"software", wordSet("app", "apps", "software", "update", "updates", "firmware", "interface", "ui")},
	{"tracking", wordSet("tracking", "tracker", "sensor", "sensors", "heart", "sleep", "steps", "accurate", "inaccurate")},
}

type group struct {
	statement string
	count     int
	first     int
}

// Heuristic synthesizes pros and cons without a language model. Reviews are
// split into clauses, each clause gets a polarity from small lexicons (with
// negation flipping it) and a topic; clauses sharing a polarity and topic are
// merged and ranked by how many reviews mention them.
func Heuristic(reviews []string, maxItems int) Synthesis {
	if maxItems <= 0 {
		maxItems = DefaultMaxItems
	}
	pros := map[string]*group{}
	cons := map[string]*group{}
	seq := 0

	for _, review := range reviews {
		seenInReview := map[string]bool{}
		for _, clause := range clauseSplit.Split(review, -1) {
			clause = strings.TrimSpace(clause)
			words := wordSplit.FindAllString(strings.ToLower(clause), -1)
			if len(words) == 0 {
				continue
			}
			polarity := score(words)
			if polarity == 0 {
				continue
			}
			key := topic(words)
			if key == "" {
				key = "clause:" + strings.Join(words, " ")
			}

			target, side := pros, "+"
			if polarity < 0 {
				target, side = cons, "-"
			}
			if seenInReview[side+key] {
				continue
			}
			seenInReview[side+key] = true

			seq++
			if g, ok := target[key]; ok {
				g.count++
				continue
			}
			target[key] = &group{statement: statement(clause), count: 1, first: seq}
		}
	}

	return Synthesis{Pros: rank(pros, maxItems), Cons: rank(cons, maxItems)}
}

func score(words []string) int {
	total := 0
	for i, w := range words {
		var v int
		switch {
		case positiveWords[w]:
			v = 1
		case negativeWords[w]:
			v = -1
		default:
			continue
		}
		for j := i - 1; j >= 0 && j >= i-2; j-- {
			if negators[words[j]] || strings.HasSuffix(words[j], "n't") {
				v = -v
				break
			}
		}
		total += v
	}
	return total
}

func topic(words []string) string {
	for _, a := range aspects {
		for _, w := range words {
			if a.words[w] {
				return a.name
			}
		}
	}
	return ""
}

func statement(clause string) string {
	clause = strings.Trim(strings.TrimSpace(clause), `"'-*• `)
	lower := strings.ToLower(clause)
	for _, lead := range []string{"but ", "and ", "so ", "yet ", "however ", "although ", "though ", "sadly ", "unfortunately "} {
		if strings.HasPrefix(lower, lead) {
			clause = strings.TrimSpace(clause[len(lead):])
			break
		}
	}
	const maxLen = 120
	if r := []rune(clause); len(r) > maxLen {
		clause = strings.TrimSpace(string(r[:maxLen])) + "..."
	}
	r := []rune(clause)
	if len(r) > 0 {
		r[0] = unicode.ToUpper(r[0])
	}
	return string(r)
}

func rank(groups map[string]*group, maxItems int) []string {
	list := make([]*group, 0, len(groups))
	for _, g := range groups {
		list = append(list, g)
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].count != list[j].count {
			return list[i].count > list[j].count
		}
		return list[i].first < list[j].first
	})
	return normalizeItems(statements(list), maxItems)
}

func statements(groups []*group) []string {
	out := make([]string, 0, len(groups))
	for _, g := range groups {
		out = append(out, g.statement)
	}
	return out
}

func wordSet(words ...string) map[string]bool {
	m := make(map[string]bool, len(words))
	for _, w := range words {
		m[w] = true
	}
	return m
}
