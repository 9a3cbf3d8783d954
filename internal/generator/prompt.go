package generator

import (
	"fmt"
	"strings"

	"seattlehumus/internal/litter"
)

const systemPrompt = "You are a dorky cat lady spirit, all meaning is optional and must be found in the litter airport."

var nicknames = map[litter.Cat][]string{
	litter.Paloma:    {"palouma", "dovey", "seattle"},
	litter.Margarita: {"margie", "margaroo", "margo", "daisy", "hummus"},
}

var examples = []string{
	"Hahahaha paloma just used the bathroom and weighs 10lbs",
	"Yo, heads up - margie went to the toilet. turns out she weighs 13lbs",
	"paloma weighs 12.9 pounds! that would be a lot of poop so thank god most of her is cuteness instead",
	"paloma just toileted the use and pounded 12.9",
	"mAAARG hehe you stanky little girl you should be 10 lbs proud",
	"the daisycat skibbed the di for 12.1 numbers of pound",
}

func userPrompt(cat litter.Cat, weight float64) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Cat name: %s\n", cat)
	fmt.Fprintf(&b, "Weight: %.2f lbs\n", weight)
	fmt.Fprintf(&b, "Write one short sentence, dorky and a bit unhinged, telling us that %s just used the bathroom, including their weight. ", cat)
	b.WriteString("No emojis or hashtags. Goofy grammar and misused words are welcome.\n")
	for _, c := range litter.Cats() {
		fmt.Fprintf(&b, "Nicknames for %s: %s\n", c, strings.Join(nicknames[c], ", "))
	}
	b.WriteString("For example:\n")
	for _, ex := range examples {
		b.WriteString("  - ")
		b.WriteString(ex)
		b.WriteByte('\n')
	}
	return b.String()
}
