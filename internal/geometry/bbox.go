package geometry

import "math"

// BoundingBox represents an axis-aligned 3D bounding box.
type BoundingBox struct {
	MinX, MinY, MinZ float64
	MaxX, MaxY, MaxZ float64
}

// Width returns the X dimension of the bounding box.
func (b *BoundingBox) Width() float64 {
	return b.MaxX - b.MinX
}

// Height returns the Y dimension of the bounding box.
func (b *BoundingBox) Height() float64 {
	return b.MaxY - b.MinY
}

// Depth returns the Z dimension of the bounding box.
func (b *BoundingBox) Depth() float64 {
	return b.MaxZ - b.MinZ
}

// BoundingBoxOf calculates the bounding box of a set of points after applying
// the given transform. Returns false if there are no points.
func BoundingBoxOf(points []Vec3, transform Mat4) (BoundingBox, bool) {
	if len(points) == 0 {
		return BoundingBox{}, false
	}
	box := BoundingBox{
		MinX: math.Inf(1), MinY: math.Inf(1), MinZ: math.Inf(1),
		MaxX: math.Inf(-1), MaxY: math.Inf(-1), MaxZ: math.Inf(-1),
	}
	for _, p := range points {
		v := transform.Apply(p)
		box.MinX = math.Min(box.MinX, v.X)
		box.MinY = math.Min(box.MinY, v.Y)
		box.MinZ = math.Min(box.MinZ, v.Z)
		box.MaxX = math.Max(box.MaxX, v.X)
		box.MaxY = math.Max(box.MaxY, v.Y)
		box.MaxZ = math.Max(box.MaxZ, v.Z)
	}
	return box, true
}
