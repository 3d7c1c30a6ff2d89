package memory

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultPreferences is the starter preference profile used by "memory seed".
var DefaultPreferences = []string{
	"User likes leather goods such as bags, belts, and wallets.",
	"Prefers products under a strict budget of $100.",
	"Interested in eco-friendly and sustainable fashion.",
	"Dislikes bright neon colors, prefers neutral tones like black, brown, and grey.",
	"Enjoys high-quality footwear, especially leather boots.",
	"Prefers online shopping platforms with quick delivery options.",
	"Looking for gift suggestions for friends in the tech category.",
	"User has shown interest in luxury watches but prefers discounts.",
	"Interested in reading reviews before making a purchase.",
	"Likes to stay updated with the latest fashion trends.",
	"Interested in fitness and wellness products.",
}

type seedFile struct {
	Preferences []string `yaml:"preferences"`
}

// LoadSeedFile reads preferences from a YAML file holding either a plain list
// or a mapping with a "preferences" list.
func LoadSeedFile(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	return ParseSeed(data)
}

// ParseSeed decodes seed YAML, dropping blank entries.
func ParseSeed(data []byte) ([]string, error) {
	var list []string
	if err := yaml.Unmarshal(data, &list); err != nil {
		var doc seedFile
		if err2 := yaml.Unmarshal(data, &doc); err2 != nil {
			return nil, fmt.Errorf("parse seed file: %w", err2)
		}
		list = doc.Preferences
	}
	out := make([]string, 0, len(list))
	for _, s := range list {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out, nil
}
