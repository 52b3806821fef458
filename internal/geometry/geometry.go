package geometry

// Point is a 2D coordinate. Raw geometry uses pixel units, scaled geometry
// uses meters.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Room is a closed polygon outlining one room. The first and last vertex are
// not required to coincide; the outline is implicitly closed.
type Room struct {
	Label   string  `json:"label,omitempty"`
	Outline []Point `json:"outline"`
}

// Wall is a single wall segment between two points.
type Wall struct {
	Start Point `json:"start"`
	End   Point `json:"end"`
}

// ScaleReference is a known real-world measurement embedded in or supplied
// alongside raw geometry: a segment of PixelLength pixels that corresponds to
// RealLength meters.
type ScaleReference struct {
	PixelLength float64 `json:"pixel_length"`
	RealLength  float64 `json:"real_length"`
}

// RawGeometry is the pixel-space output of the segmentation capability.
type RawGeometry struct {
	Rooms     []Room          `json:"rooms"`
	Walls     []Wall          `json:"walls"`
	Reference *ScaleReference `json:"reference,omitempty"`
}

// ScaledGeometry is RawGeometry converted to real-world units.
type ScaledGeometry struct {
	Rooms  []Room  `json:"rooms"`
	Walls  []Wall  `json:"walls"`
	Factor float64 `json:"factor"`
}
