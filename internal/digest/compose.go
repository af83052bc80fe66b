// Nuntius - Tautulli Recently Added Digests for Discord
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/nuntius

package digest

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/tomtom215/nuntius/internal/discord"
	"github.com/tomtom215/nuntius/internal/logging"
	"github.com/tomtom215/nuntius/internal/metrics"
)

const (
	// maxFieldLen is Discord's limit for one embed field value.
	maxFieldLen = 1024

	// maxFieldsPerEmbed is Discord's limit on fields per embed.
	maxFieldsPerEmbed = 25

	// embedSizeBudget keeps the total embed size safely under Discord's
	// 6000-character limit, leaving room for JSON overhead.
	embedSizeBudget = 5800

	// fieldSplitMargin is headroom kept when packing lines into a field.
	fieldSplitMargin = 50

	// maxTrimAttempts bounds the shrink loop for an oversized embed.
	maxTrimAttempts = 5

	// trimKeepRatio is the share of items kept per trim attempt.
	trimKeepRatio = 0.8

	// maxItemsPerMessage is the item count one message starts from.
	maxItemsPerMessage = 25

	digestColor = 0x57F287
	emptyColor  = 0x5865F2
)

// mediaIcons decorates embed titles per category.
var mediaIcons = map[Category]string{
	CategoryMovies:   "🎬",
	CategoryShows:    "📺",
	CategorySeasons:  "📺",
	CategoryEpisodes: "📺",
	CategoryAlbums:   "💿",
	CategoryTracks:   "🎵",
}

const fallbackIcon = "📁"

var emptyStateTitles = []string{
	"🛋️ Quiet Plex vibes",
	"🍃 Nothing new this round",
	"📭 No fresh arrivals",
	"🌙 Calm library check-in",
}

var emptyStateBodies = []string{
	"No new releases in the last %d %s. Time to add something awesome to the library 🍿",
	"Your Plex library stayed peaceful for %d %s. Maybe tonight is a perfect time to queue a new download ✨",
	"Nothing new landed in the past %d %s. Give your future self a surprise and add something fun 🎬",
	"No new content in %d %s. Friendly reminder: your watchlist won’t fill itself 😄",
}

// markdownEscaper escapes the markdown metacharacters that would alter a
// title's visible text in Discord.
var markdownEscaper = strings.NewReplacer(
	`\`, `\\`,
	"`", "\\`",
	`*`, `\*`,
	`_`, `\_`,
	`~`, `\~`,
	`[`, `\[`,
	`]`, `\]`,
)

func escapeMarkdown(s string) string {
	return markdownEscaper.Replace(s)
}

// Composer builds Discord payloads from normalized items. The RNG only
// picks the empty-state wording; everything else is deterministic.
type Composer struct {
	rng *rand.Rand
}

// NewComposer returns a Composer. A nil rng seeds one from the clock;
// tests pass a fixed seed.
func NewComposer(rng *rand.Rand) *Composer {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Composer{rng: rng}
}

// composeState tracks trim activity across one Compose call.
type composeState struct {
	trimAttempts     int
	overflowMessages int
}

// Compose renders a batch into ready-to-send payloads: one embed per
// message, categories in fixed order, messages paging from the newest
// items down. An empty batch produces a single friendly no-new-items
// message.
func (c *Composer) Compose(ctx context.Context, items []Item, links LinkBuilder, days int, now time.Time) []discord.Payload {
	if len(items) == 0 {
		metrics.RecordEmptyDigest()
		metrics.RecordCompose(1, 0, 0)
		return []discord.Payload{c.emptyPayload(days, now)}
	}

	grouped := make(map[Category][]Item)
	for _, item := range items {
		grouped[item.Category] = append(grouped[item.Category], item)
	}

	state := &composeState{}
	var payloads []discord.Payload
	for _, category := range categoryOrder {
		catItems := grouped[category]
		if len(catItems) == 0 {
			continue
		}
		payloads = append(payloads, c.composeCategory(ctx, category, catItems, links, days, now, state)...)
	}

	metrics.RecordCompose(len(payloads), state.trimAttempts, state.overflowMessages)
	return payloads
}

// composeCategory pages one category into messages of up to
// maxItemsPerMessage items, newest first. Items a trim pushes out of a
// message stay at the front of the pool and lead the next (older) part.
func (c *Composer) composeCategory(ctx context.Context, category Category, items []Item, links LinkBuilder, days int, now time.Time, state *composeState) []discord.Payload {
	sorted := make([]Item, len(items))
	copy(sorted, items)
	sortNewestFirst(sorted)

	var payloads []discord.Payload
	remaining := sorted
	partNum := 1
	for len(remaining) > 0 {
		chunkLen := maxItemsPerMessage
		if chunkLen > len(remaining) {
			chunkLen = len(remaining)
		}
		chunk := remaining[:chunkLen]

		embed, sent := c.buildEmbed(ctx, category, chunk, len(remaining), len(sorted), links, days, partNum, now, state)
		payloads = append(payloads, discord.Payload{Embeds: []discord.Embed{embed}})

		remaining = remaining[sent:]
		partNum++
	}
	return payloads
}

// buildEmbed renders a chunk, shrinking it until the embed fits the size
// budget. It returns the embed and how many of the chunk's newest items it
// carries. chunk must be newest first.
func (c *Composer) buildEmbed(ctx context.Context, category Category, chunk []Item, remainingTotal, categoryTotal int, links LinkBuilder, days, partNum int, now time.Time, state *composeState) (discord.Embed, int) {
	log := logging.Ctx(ctx)

	current := chunk
	for attempt := 0; ; attempt++ {
		estimatedParts := (remainingTotal + len(current) - 1) / len(current)

		embed := c.renderEmbed(category, current, categoryTotal, links, days, partNum, estimatedParts, now)

		size := embedSize(embed)
		if size <= embedSizeBudget && len(embed.Fields) <= maxFieldsPerEmbed {
			if len(current) < len(chunk) {
				log.Warn().
					Str("category", string(category)).
					Int("part", partNum).
					Int("trimmed", len(chunk)-len(current)).
					Int("size", size).
					Msg("Trimmed items to fit the size limit, they will lead the next message")
			}
			return embed, len(current)
		}

		if len(current) <= 1 {
			log.Error().
				Str("category", string(category)).
				Int("size", size).
				Int("limit", embedSizeBudget).
				Msg("Cannot reduce embed further, Discord may reject this message")
			state.overflowMessages++
			return embed, len(current)
		}

		if attempt >= maxTrimAttempts {
			log.Error().
				Str("category", string(category)).
				Int("size", size).
				Int("items", len(current)).
				Msg("Embed still over budget after trimming, Discord may reject this message")
			state.overflowMessages++
			return embed, len(current)
		}

		keep := int(float64(len(current)) * trimKeepRatio)
		if keep < 1 {
			keep = 1
		}
		log.Warn().
			Str("category", string(category)).
			Int("size", size).
			Int("from", len(current)).
			Int("to", keep).
			Int("attempt", attempt+1).
			Int("max_attempts", maxTrimAttempts).
			Msg("Embed too large, keeping the newest items")
		state.trimAttempts++
		current = current[:keep]
	}
}

// renderEmbed builds the embed for one message. chunk is newest first; the
// rendered message reads oldest to newest.
func (c *Composer) renderEmbed(category Category, chunk []Item, categoryTotal int, links LinkBuilder, days, partNum, estimatedParts int, now time.Time) discord.Embed {
	display := make([]Item, len(chunk))
	for i, item := range chunk {
		display[len(chunk)-1-i] = item
	}

	icon, ok := mediaIcons[category]
	if !ok {
		icon = fallbackIcon
	}

	title := fmt.Sprintf("%s %s - Last %d day%s", icon, category, days, pluralS(days))
	if estimatedParts > 1 || partNum > 1 {
		title = fmt.Sprintf("%s (Part %d)", title, partNum)
	}

	lower := strings.ToLower(string(category))
	noun := lower
	if categoryTotal == 1 {
		noun = strings.TrimSuffix(lower, "s")
	}
	description := fmt.Sprintf("**%d %s added**", categoryTotal, noun)

	embed := discord.Embed{
		Title:       title,
		Description: description,
		Color:       digestColor,
		Footer:      &discord.Footer{Text: "Generated on " + now.Format("2006-01-02 15:04:05")},
		Timestamp:   now.UTC().Format(time.RFC3339),
	}
	addItemFields(&embed, display, links)
	return embed
}

// addItemFields packs display lines into fields, opening a new field
// before one would pass maxFieldLen minus the split margin. Each field is
// named after the date range of the items it holds.
func addItemFields(embed *discord.Embed, display []Item, links LinkBuilder) {
	var (
		lines []string
		span  []Item
		chars int
	)
	chunkNum := 1

	flush := func() {
		if len(lines) == 0 {
			return
		}
		embed.Fields = append(embed.Fields, discord.Field{
			Name:  fieldName(span, chunkNum),
			Value: strings.Join(lines, "\n"),
		})
		chunkNum++
		lines, span, chars = nil, nil, 0
	}

	for _, item := range display {
		line := formatLine(item, links)
		length := utf8.RuneCountInString(line) + 1
		if chars+length > maxFieldLen-fieldSplitMargin && len(lines) > 0 {
			flush()
		}
		lines = append(lines, line)
		span = append(span, item)
		chars += length
	}
	flush()
}

// formatLine renders one item as a bullet line, linked when possible.
func formatLine(item Item, links LinkBuilder) string {
	safe := escapeMarkdown(item.Title)
	if link := links.Link(item.RatingKey); link != "" {
		return fmt.Sprintf("• [%s](%s)", safe, link)
	}
	return fmt.Sprintf("• **%s**", safe)
}

// fieldName labels a field with the DD/MM date range its items span.
func fieldName(span []Item, chunkNum int) string {
	if len(span) == 0 || span[0].AddedAt.IsZero() || span[len(span)-1].AddedAt.IsZero() {
		if chunkNum > 1 {
			return fmt.Sprintf("Items (%d)", chunkNum)
		}
		return "Items"
	}

	first := span[0].AddedAt.Format("02/01")
	last := span[len(span)-1].AddedAt.Format("02/01")
	if first == last {
		return first
	}
	return fmt.Sprintf("%s - %s", first, last)
}

// emptyPayload is the single friendly message for a window with nothing
// new in it.
func (c *Composer) emptyPayload(days int, now time.Time) discord.Payload {
	dayWord := "days"
	if days == 1 {
		dayWord = "day"
	}

	title := emptyStateTitles[c.rng.Intn(len(emptyStateTitles))]
	body := fmt.Sprintf(emptyStateBodies[c.rng.Intn(len(emptyStateBodies))], days, dayWord)

	return discord.Payload{Embeds: []discord.Embed{{
		Title:       title,
		Description: body,
		Color:       emptyColor,
		Footer:      &discord.Footer{Text: "Checked on " + now.Format("2006-01-02 15:04:05")},
		Timestamp:   now.UTC().Format(time.RFC3339),
	}}}
}

// embedSize counts the characters Discord counts: title, description,
// field names and values, and footer text.
func embedSize(e discord.Embed) int {
	total := utf8.RuneCountInString(e.Title) + utf8.RuneCountInString(e.Description)
	for _, f := range e.Fields {
		total += utf8.RuneCountInString(f.Name) + utf8.RuneCountInString(f.Value)
	}
	if e.Footer != nil {
		total += utf8.RuneCountInString(e.Footer.Text)
	}
	return total
}

func pluralS(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}
