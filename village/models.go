package village

import "time"

// Village mirrors the villages table. Geometry is a centroid plus a
// south/west/north/east bounding box in WGS84 degrees.
type Village struct {
	ID         int64
	Name       string
	Block      string
	District   string
	State      string
	Lat        float64
	Lng        float64
	South      float64
	West       float64
	North      float64
	East       float64
	Population *int64
	ShowPin    bool
	GeoPending bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Geometry is the coordinate payload written when a village is created or
// back-filled.
type Geometry struct {
	Lat   float64
	Lng   float64
	South float64
	West  float64
	North float64
	East  float64
}
