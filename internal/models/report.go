package models

import (
	"time"
)

// Point is a 3D coordinate in millimetres, serialised as [x, y, z]
type Point [3]float64

// Landmarks holds the input points of an AC-PC computation in RAS
type Landmarks struct {
	// AC is the anterior commissure
	AC Point `json:"ac"`

	// PC is the posterior commissure
	PC Point `json:"pc"`

	// MS is the midsagittal point used to resolve left and right
	MS Point `json:"ms"`
}

// Frame is the AC-PC coordinate frame expressed in native RAS coordinates
type Frame struct {
	// Origin maps to (0, 0, 0) in AC-PC space
	Origin Point `json:"origin"`

	// Right, Anterior and Superior are the unit axes of AC-PC space
	Right    Point `json:"right"`
	Anterior Point `json:"anterior"`
	Superior Point `json:"superior"`
}

// Report is the JSON form of a computed AC-PC transform
type Report struct {
	// CoordinateSystem is always RAS; matrices map RAS points to RAS points
	CoordinateSystem string `json:"coordinateSystem"`

	// Center names the landmark placed at the origin (MC, AC or PC)
	Center string `json:"center,omitempty"`

	// Landmarks are the inputs, when known
	Landmarks *Landmarks `json:"landmarks,omitempty"`

	Frame Frame `json:"frame"`

	// ToACPC is the row-major native → AC-PC matrix
	ToACPC [4][4]float64 `json:"toACPC"`

	// ToNative is the row-major AC-PC → native matrix
	ToNative [4][4]float64 `json:"toNative"`

	// Sources lists the files the landmarks were read from
	Sources []string `json:"sources,omitempty"`

	// CreatedAt is when the report was written
	CreatedAt time.Time `json:"createdAt"`
}
