package boardsync

/*
Elements are the shapes on the drawing surface. The surface owns the live
records; a copy of each lives in the shared document. `Version` is bumped by
the surface on every semantic mutation, including reorder, and is the only
signal the change detector trusts.

The payload is a tagged schema rather than an opaque blob: one variant per
shape kind, plus a schema version so a newer binary can read entries written
by an older one.
*/

type ShapeKind string

const (
	ShapeRectangle ShapeKind = "rectangle"
	ShapeEllipse   ShapeKind = "ellipse"
	ShapeDiamond   ShapeKind = "diamond"
	ShapeArrow     ShapeKind = "arrow"
	ShapeFreedraw  ShapeKind = "freedraw"
	ShapeText      ShapeKind = "text"
	ShapeImage     ShapeKind = "image"
)

// bump when a field is added to ShapePayload.
// schema 1 predates Opacity; see migrateShapePayload.
const ShapeSchemaVersion = 2

type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type ShapePayload struct {
	Schema int       `json:"schema"`
	Kind   ShapeKind `json:"kind"`

	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Angle  float64 `json:"angle"`

	StrokeColor string  `json:"strokeColor"`
	FillColor   string  `json:"fillColor"`
	Opacity     float64 `json:"opacity"`

	// arrow and freedraw
	Points []Point `json:"points,omitempty"`

	// text
	Text string `json:"text,omitempty"`

	// image, references an entry in the shared assets map
	AssetId string `json:"assetId,omitempty"`
}

type Element struct {
	Id      string       `json:"id"`
	Version int64        `json:"version"`
	Payload ShapePayload `json:"payload"`
}

func (self *Element) Clone() *Element {
	out := *self
	if self.Payload.Points != nil {
		out.Payload.Points = append([]Point{}, self.Payload.Points...)
	}
	return &out
}

// migrateShapePayload upgrades a payload read from the shared document when
// it was written by an older schema. Entries from a newer schema pass
// through untouched; unknown fields were dropped at decode and the newer
// peer's copy remains authoritative.
func migrateShapePayload(payload ShapePayload) ShapePayload {
	if ShapeSchemaVersion <= payload.Schema {
		return payload
	}
	if payload.Schema < 2 {
		// schema 1 had no opacity, everything rendered fully opaque
		payload.Opacity = 100
	}
	payload.Schema = ShapeSchemaVersion
	return payload
}
