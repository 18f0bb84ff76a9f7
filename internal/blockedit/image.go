package blockedit

import (
	"fmt"
	"slices"

	"github.com/starford/folio/internal/docmodel"
)

// AttachImage appends img to the image list of the block at the selection
// start and returns the key of the block that received it. Section titles
// never carry images: the next block is used when it is not a section, then
// the previous one, and failing both a new unstyled block is created after
// the title.
func AttachImage(s docmodel.State, img docmodel.ImageRef) (docmodel.State, string, error) {
	if err := checkSelection("attach image", s); err != nil {
		return s, "", err
	}
	c := s.Content
	key := s.Selection.StartKey()
	b := c.BlockForKey(key)

	if b.Type() == docmodel.WikiSection {
		switch after, before := c.BlockAfter(key), c.BlockBefore(key); {
		case after != nil && after.Type() != docmodel.WikiSection:
			b = after
		case before != nil && before.Type() != docmodel.WikiSection:
			b = before
		default:
			var lower string
			c, lower = c.SplitBlock(docmodel.Collapsed(key, b.Length()))
			c = c.SetBlockType(docmodel.Collapsed(lower, 0), docmodel.Unstyled)
			b = c.BlockForKey(lower)
		}
	}

	data := b.Data()
	data.Images = append(data.Images, img)
	c = c.SetBlockData(docmodel.Collapsed(b.Key(), 0), data)
	return docmodel.State{Content: c, Selection: s.Selection}, b.Key(), nil
}

// UpdateImage replaces, in place, the image of blockKey identified by
// imageID and imageUseID with img.
func UpdateImage(s docmodel.State, blockKey, imageID, imageUseID string, img docmodel.ImageRef) (docmodel.State, error) {
	b := s.Content.BlockForKey(blockKey)
	if b == nil {
		return s, fmt.Errorf("blockedit: update image %q: %w", blockKey, docmodel.ErrBlockNotFound)
	}
	data := b.Data()
	i := slices.IndexFunc(data.Images, func(r docmodel.ImageRef) bool {
		return r.ImageID == imageID && r.ImageUseID == imageUseID
	})
	if i < 0 {
		return s, fmt.Errorf("blockedit: update image %s/%s: %w", imageID, imageUseID, ErrImageNotFound)
	}
	data.Images[i] = img
	c := s.Content.SetBlockData(docmodel.Collapsed(blockKey, 0), data)
	return docmodel.State{Content: c, Selection: s.Selection}, nil
}
