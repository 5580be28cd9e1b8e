package mcpserver

// NoteFormatURI is the resource holding NoteFormatContract.
const NoteFormatURI = "cardring://note-format"

// NoteFormatContract describes how a Markdown vault note becomes a card.
const NoteFormatContract = `# Cardring Note Format

Every Markdown file in a vault project becomes one card on the ring.

## Structure

` + "```" + `markdown
---
title: Human-readable title   # OPTIONAL – defaults to the file name stem
image: images/cover.png       # OPTIONAL – card thumbnail
---

Body text in standard Markdown.

Use [[wikilinks]] to connect this card to other cards.
` + "```" + `

## Rules

1. **Frontmatter is optional.** When present, the ` + "```" + `---` + "```" + ` fences must be
   the first thing in the file.
2. **Titles are case-insensitive.** ` + "`" + `[[Tokyo]]` + "`" + ` and ` + "`" + `[[tokyo]]` + "`" + ` reach the same card.
3. **Wikilinks** use double brackets. ` + "`" + `[[target|alias]]` + "`" + ` and ` + "`" + `[[target#heading]]` + "`" + `
   both link to ` + "`" + `target` + "`" + `. A link to a title with no file is ignored.
4. **Links are symmetric.** A link from A to B also lists A on B's card.
5. **Image** is the ` + "`" + `image` + "`" + ` frontmatter field, else the first Markdown image in
   the body. Paths are relative to the note; http(s) URLs are fetched.
   Supported formats: png, jpg, gif, webp.
6. **Ring order** follows the file listing order (sorted paths).
7. **Hidden files** (names starting with ` + "`" + `.` + "`" + `) are skipped.

## Example

` + "```" + `markdown
---
title: Tokyo
image: img/tokyo.jpg
---

Capital of Japan. See also [[Kyoto]] and [[Osaka|the kitchen of Japan]].
` + "```" + `
`
