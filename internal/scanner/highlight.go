package scanner

import (
	"github.com/starford/folio/internal/docmodel"
	"github.com/starford/folio/internal/findreg"
)

// Renderer tags name the decoration a range is painted with.
const (
	RenderLinkSource   = "link-source"
	RenderLinkDest     = "link-dest"
	RenderImage        = "block-image"
	RenderWikiSection  = "wiki-section"
	RenderHighlightTag = "highlight-tag"
	RenderFindMatch    = "find-match"
)

// Decorator pairs a strategy with the renderer tag it feeds.
type Decorator struct {
	Strategy Strategy
	Renderer string
}

// DocumentRef identifies a document by id and display name.
type DocumentRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// HighlightOptions selects the optional highlighters.
type HighlightOptions struct {
	// Documents lists every document; the names of all but CurrentDoc are
	// highlighted as tags when ShowAllTags is set.
	Documents   []DocumentRef
	CurrentDoc  string
	ShowAllTags bool

	// SearchTerm enables the find highlighter. When Register is set, every
	// match is recorded there in document order.
	SearchTerm string
	Register   *findreg.Register
	Order      findreg.BlockOrder
}

// BuildHighlightStrategies returns the decorators for a document, in
// priority order.
func BuildHighlightStrategies(opts HighlightOptions) []Decorator {
	out := []Decorator{
		{EntityStrategy(docmodel.EntityLinkSource), RenderLinkSource},
		{EntityStrategy(docmodel.EntityLinkDest), RenderLinkDest},
		{EntityStrategy(docmodel.EntityImage), RenderImage},
		{BlockStrategy(docmodel.WikiSection), RenderWikiSection},
	}

	if opts.ShowAllTags {
		names := make([]string, 0, len(opts.Documents))
		for _, d := range opts.Documents {
			if d.ID != opts.CurrentDoc {
				names = append(names, d.Name)
			}
		}
		out = append(out, Decorator{KeywordStrategy(names, nil), RenderHighlightTag})
	}

	if opts.SearchTerm != "" {
		var hook MatchHook
		if opts.Register != nil && opts.Order != nil {
			hook = RegisterHook{Register: opts.Register, Order: opts.Order, Term: opts.SearchTerm}
		}
		out = append(out, Decorator{KeywordStrategy([]string{opts.SearchTerm}, hook), RenderFindMatch})
	}
	return out
}
