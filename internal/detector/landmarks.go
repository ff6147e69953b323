// Package detector provides the hand landmark types and the detector interface
// that feeds the palm capture pipeline.
package detector

import "math"

// Hand landmark indices following MediaPipe convention.
// See: https://developers.google.com/mediapipe/solutions/vision/hand_landmarker
const (
	Wrist        = 0
	ThumbCMC     = 1
	ThumbMCP     = 2
	ThumbIP      = 3
	ThumbTip     = 4
	IndexMCP     = 5
	IndexPIP     = 6
	IndexDIP     = 7
	IndexTip     = 8
	MiddleMCP    = 9
	MiddlePIP    = 10
	MiddleDIP    = 11
	MiddleTip    = 12
	RingMCP      = 13
	RingPIP      = 14
	RingDIP      = 15
	RingTip      = 16
	PinkyMCP     = 17
	PinkyPIP     = 18
	PinkyDIP     = 19
	PinkyTip     = 20
	NumLandmarks = 21
)

// Point3D is one landmark in normalized frame space.
// X and Y are nominally in [0,1]; Z is relative depth with no fixed unit.
type Point3D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// HandLandmarks is the fixed-topology 21-point skeleton of one detected hand.
// Point order is significant and follows the index constants above.
type HandLandmarks struct {
	Points     [NumLandmarks]Point3D `json:"points"`
	Handedness string                `json:"handedness"` // "Left" or "Right"
	Score      float64               `json:"score"`
}

// Finite reports whether every coordinate is a finite number.
func (h HandLandmarks) Finite() bool {
	for _, p := range h.Points {
		for _, v := range [3]float64{p.X, p.Y, p.Z} {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return false
			}
		}
	}
	return true
}

// Translate returns a copy of the hand with every point shifted by d.
func (h HandLandmarks) Translate(d Point3D) HandLandmarks {
	out := h
	for i := range out.Points {
		out.Points[i].X += d.X
		out.Points[i].Y += d.Y
		out.Points[i].Z += d.Z
	}
	return out
}

// Scale returns a copy of the hand with every coordinate multiplied by k.
func (h HandLandmarks) Scale(k float64) HandLandmarks {
	out := h
	for i := range out.Points {
		out.Points[i].X *= k
		out.Points[i].Y *= k
		out.Points[i].Z *= k
	}
	return out
}

// First returns the first detected hand, or nil when hands is empty.
// The capture pipeline only ever considers one hand per frame.
func First(hands []HandLandmarks) *HandLandmarks {
	if len(hands) == 0 {
		return nil
	}
	h := hands[0]
	return &h
}
