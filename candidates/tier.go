package candidates

import "fmt"

var tierNames = []string{"Bronze", "Silver", "Gold", "Platinum", "Diamond", "Ruby"}

// Tier renders a difficulty level (1..30) as "Bronze 5" .. "Ruby 1".
// Level 0 and anything out of range is "Unrated".
func Tier(level int) string {
	if level < 1 || level > len(tierNames)*5 {
		return "Unrated"
	}
	group := (level - 1) / 5
	step := 5 - (level-1)%5
	return fmt.Sprintf("%s %d", tierNames[group], step)
}
