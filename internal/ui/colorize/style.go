package colorize

import (
	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/styles"
)

// ListingDark colors offsets gray, mnemonics white and stack comments lilac.
var ListingDark = styles.Register(chroma.MustNewStyle("listing-dark", chroma.StyleEntries{
	chroma.Text:       "#FFFFFF",
	chroma.Background: "bg:#1e1e1e",
	chroma.Comment:    "#EBC2ED",

	chroma.Keyword:      "#FFFFFF",
	chroma.NameLabel:    "#4F4F4F",
	chroma.NameFunction: "#7C9C9D",
	chroma.NameVariable: "#FFD700",

	chroma.LiteralNumber:        "#FF5F87",
	chroma.LiteralNumberInteger: "#FF5F87",

	chroma.Punctuation: "#FFFFFF",
}))
