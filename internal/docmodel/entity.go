package docmodel

// EntityKey references an entity in a snapshot's entity arena. The empty key
// means "no entity".
type EntityKey string

// EntityType names the kind of an entity.
type EntityType string

// Entity types used by the editor.
const (
	EntityLinkSource EntityType = "LINK-SOURCE"
	EntityLinkDest   EntityType = "LINK-DEST"
	EntityImage      EntityType = "IMAGE"
)

// Entity is an immutable typed annotation. LinkID is meaningful for
// LINK-SOURCE and LINK-DEST entities.
type Entity struct {
	Type   EntityType        `json:"type"`
	LinkID int               `json:"linkId"`
	Data   map[string]string `json:"data,omitempty"`
}

// IsLink reports whether e is a LINK-SOURCE or LINK-DEST entity.
func (e Entity) IsLink() bool {
	return e.Type == EntityLinkSource || e.Type == EntityLinkDest
}
