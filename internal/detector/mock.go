package detector

import (
	"sync"

	"gocv.io/x/gocv"
)

// MockDetector is a test implementation of the Detector interface.
// It allows tests to control the detection results.
type MockDetector struct {
	mu     sync.Mutex
	hands  []HandLandmarks
	err    error
	calls  int
	closed bool
}

// NewMockDetector creates a new MockDetector instance.
func NewMockDetector() *MockDetector {
	return &MockDetector{}
}

// SetHands sets the hands that will be returned by Detect.
func (m *MockDetector) SetHands(hands []HandLandmarks) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hands = hands
}

// SetError sets the error that will be returned by Detect.
func (m *MockDetector) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Detect returns the pre-configured hands or error.
func (m *MockDetector) Detect(frame *gocv.Mat) ([]HandLandmarks, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.hands, nil
}

// Calls reports how many times Detect has been invoked.
func (m *MockDetector) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Close marks the detector closed.
func (m *MockDetector) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Closed reports whether Close has been called.
func (m *MockDetector) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// OpenPalmLandmarks returns a preset open palm facing the camera, fingers up.
// Every point sits inside the default guide region of a 480x320 frame.
func OpenPalmLandmarks() HandLandmarks {
	landmarks := HandLandmarks{
		Handedness: "Right",
		Score:      0.95,
	}

	// Wrist at base
	landmarks.Points[Wrist] = Point3D{X: 0.5, Y: 0.8, Z: 0.0}

	// Thumb extended to the side
	landmarks.Points[ThumbCMC] = Point3D{X: 0.55, Y: 0.75, Z: 0.02}
	landmarks.Points[ThumbMCP] = Point3D{X: 0.62, Y: 0.70, Z: 0.03}
	landmarks.Points[ThumbIP] = Point3D{X: 0.68, Y: 0.65, Z: 0.03}
	landmarks.Points[ThumbTip] = Point3D{X: 0.73, Y: 0.60, Z: 0.03}

	landmarks.Points[IndexMCP] = Point3D{X: 0.55, Y: 0.68, Z: 0.0}
	landmarks.Points[IndexPIP] = Point3D{X: 0.57, Y: 0.55, Z: 0.0}
	landmarks.Points[IndexDIP] = Point3D{X: 0.58, Y: 0.45, Z: 0.0}
	landmarks.Points[IndexTip] = Point3D{X: 0.58, Y: 0.35, Z: 0.0}

	// Middle finger is the longest
	landmarks.Points[MiddleMCP] = Point3D{X: 0.50, Y: 0.66, Z: 0.0}
	landmarks.Points[MiddlePIP] = Point3D{X: 0.50, Y: 0.52, Z: 0.0}
	landmarks.Points[MiddleDIP] = Point3D{X: 0.50, Y: 0.40, Z: 0.0}
	landmarks.Points[MiddleTip] = Point3D{X: 0.50, Y: 0.28, Z: 0.0}

	landmarks.Points[RingMCP] = Point3D{X: 0.45, Y: 0.68, Z: 0.0}
	landmarks.Points[RingPIP] = Point3D{X: 0.43, Y: 0.55, Z: 0.0}
	landmarks.Points[RingDIP] = Point3D{X: 0.42, Y: 0.45, Z: 0.0}
	landmarks.Points[RingTip] = Point3D{X: 0.42, Y: 0.35, Z: 0.0}

	landmarks.Points[PinkyMCP] = Point3D{X: 0.40, Y: 0.70, Z: 0.0}
	landmarks.Points[PinkyPIP] = Point3D{X: 0.37, Y: 0.60, Z: 0.0}
	landmarks.Points[PinkyDIP] = Point3D{X: 0.35, Y: 0.50, Z: 0.0}
	landmarks.Points[PinkyTip] = Point3D{X: 0.34, Y: 0.42, Z: 0.0}

	return landmarks
}

// WidePalmLandmarks returns a second preset: a broader palm with the fingers
// fanned out. It also sits fully inside the default guide region.
func WidePalmLandmarks() HandLandmarks {
	landmarks := HandLandmarks{
		Handedness: "Left",
		Score:      0.92,
	}

	landmarks.Points[Wrist] = Point3D{X: 0.48, Y: 0.78, Z: 0.0}

	landmarks.Points[ThumbCMC] = Point3D{X: 0.40, Y: 0.74, Z: -0.01}
	landmarks.Points[ThumbMCP] = Point3D{X: 0.33, Y: 0.68, Z: -0.02}
	landmarks.Points[ThumbIP] = Point3D{X: 0.27, Y: 0.62, Z: -0.02}
	landmarks.Points[ThumbTip] = Point3D{X: 0.22, Y: 0.57, Z: -0.03}

	landmarks.Points[IndexMCP] = Point3D{X: 0.42, Y: 0.63, Z: 0.0}
	landmarks.Points[IndexPIP] = Point3D{X: 0.38, Y: 0.50, Z: 0.0}
	landmarks.Points[IndexDIP] = Point3D{X: 0.36, Y: 0.41, Z: 0.0}
	landmarks.Points[IndexTip] = Point3D{X: 0.34, Y: 0.33, Z: 0.0}

	landmarks.Points[MiddleMCP] = Point3D{X: 0.49, Y: 0.61, Z: 0.0}
	landmarks.Points[MiddlePIP] = Point3D{X: 0.49, Y: 0.46, Z: 0.0}
	landmarks.Points[MiddleDIP] = Point3D{X: 0.49, Y: 0.35, Z: 0.0}
	landmarks.Points[MiddleTip] = Point3D{X: 0.49, Y: 0.25, Z: 0.0}

	landmarks.Points[RingMCP] = Point3D{X: 0.56, Y: 0.63, Z: 0.0}
	landmarks.Points[RingPIP] = Point3D{X: 0.60, Y: 0.50, Z: 0.0}
	landmarks.Points[RingDIP] = Point3D{X: 0.62, Y: 0.41, Z: 0.0}
	landmarks.Points[RingTip] = Point3D{X: 0.64, Y: 0.33, Z: 0.0}

	landmarks.Points[PinkyMCP] = Point3D{X: 0.62, Y: 0.67, Z: 0.01}
	landmarks.Points[PinkyPIP] = Point3D{X: 0.68, Y: 0.58, Z: 0.01}
	landmarks.Points[PinkyDIP] = Point3D{X: 0.72, Y: 0.51, Z: 0.01}
	landmarks.Points[PinkyTip] = Point3D{X: 0.75, Y: 0.45, Z: 0.01}

	return landmarks
}
