package litter

import "math/rand"

// StickerTable maps each cat to its pool of Telegram sticker file IDs.
// Tables are treated as immutable once built.
type StickerTable map[Cat][]string

// DefaultStickers is the sticker set the bot ships with.
func DefaultStickers() StickerTable {
	return StickerTable{
		Margarita: {
			"CAACAgEAAxkBAAEPMytoppUVe7fyBDxR3Q50bQ9Eqa3qjAACGgQAAuewcEcNR614LPY-NDYE",
			"CAACAgEAAxkBAAEPMwtoppI9Dd2PtoDvB0kqJIsfshVmSwACvwQAAmK2aEcITvOjKzSM4DYE",
			"CAACAgEAAxkBAAEPMxFoppJhptR6-uJuKWdwz-z0nXoUmwACiAYAAgHpcUe-LriOk3onbzYE",
			"CAACAgEAAxkBAAEPMxVoppJ-zCaFifpQgEDp8XvYJ2LKSgACzAcAAixjuUSJbzbpmBy86DYE",
			"CAACAgEAAxkBAAEPMw1oppJLp6m7cfX6tXhhXUF7CQca_AACkQQAAuOnKEXKH-BDT3PXbTYE",
			"CAACAgEAAxkBAAEPMw9oppJVjZFoRHOkuqU4b0dnuYqaaAACrQUAAkCSKEVsRh8UNnqRYTYE",
		},
		Paloma: {
			"CAACAgEAAxkBAAEPMx1oppS6UNrkk-ac5A5OWjRL5BTVkgACtwYAAsnz-EYGt7LEVkwdczYE",
			"CAACAgEAAxkBAAEPMx9oppTLd9jKNieDINz1XyM0IfqcGQACQQUAAhBlGEfJFDs-5ppZqzYE",
			"CAACAgEAAxkBAAEPMyFoppTYcTlCi_P3gONJ5Zp1vd4GFQACnAQAAh1ycEe4rvsvvaNvAjYE",
			"CAACAgEAAxkBAAEPMyNoppTmBwdf3F3bGTZTPlBQSXy7egACEQYAAkGhWUSlEo0uccVLljYE",
			"CAACAgEAAxkBAAEPMxdoppKNBgKaoyVFHREOsl7Ec02IvQACPAYAAriqaETWOr6ybnBmdjYE",
			"CAACAgEAAxkBAAEPMxNoppJscrfOxiLybMYG8u2dYtLAUAACSQgAAu7QgEQoNA5yZ6AuDDYE",
			"CAACAgEAAxkBAAEPMyloppUCNs0Lo6MLj5Ves4JQUEo34gACZAUAApA4KEU185JASpuqGTYE",
			"CAACAgEAAxkBAAEPMzdoppVmKZesa4rL7k5J24PxBHEnRAACggUAAoRKKUU9gRbxNN_kXzYE",
			"CAACAgEAAxkBAAEPMzloppV2XV2wXxd1t-B3SH4PAZ9LkAACkwcAAtfFMUXGURcgacZdgDYE",
			"CAACAgEAAxkBAAEPMztoppWCWQKjOvDs7TmhsPEo-CIumwAC7gUAAkPxMUUvOQl8zn8XsjYE",
		},
	}
}

// Choose draws a sticker for cat uniformly from its pool.
// ok is false when the cat has no stickers.
func (t StickerTable) Choose(cat Cat, rng *rand.Rand) (id string, ok bool) {
	pool := t[cat]
	if len(pool) == 0 {
		return "", false
	}
	return pool[rng.Intn(len(pool))], true
}
