package room

import "time"

type FaceThresholds struct {
	NoFaceWarn     time.Duration
	NoFaceLimit    time.Duration
	MultiFaceLimit time.Duration
}

func DefaultFaceThresholds() FaceThresholds {
	return FaceThresholds{
		NoFaceWarn:     2 * time.Second,
		NoFaceLimit:    10 * time.Second,
		MultiFaceLimit: 5 * time.Second,
	}
}

const (
	ReasonFocusLost      = "Candidate switched tabs or lost window focus."
	ReasonFullscreenExit = "Candidate exited full-screen mode."
	ReasonNoFace         = "No face detected for more than 10 seconds."
	ReasonMultipleFaces  = "Multiple faces detected in frame."

	WarningNoFace        = "No face detected. Please stay in view of the camera."
	WarningMultipleFaces = "Multiple faces detected. Only the candidate may be in frame."
)

type FaceOutcome int

const (
	FaceUnchanged FaceOutcome = iota
	FaceWarning
	FaceCleared
	FaceViolation
)

type FaceResult struct {
	Outcome FaceOutcome
	Message string
}

// FaceMonitor accumulates face-count readings into warnings and violations.
// It is not safe for concurrent use; one goroutine feeds it in frame order.
type FaceMonitor struct {
	thresholds FaceThresholds
	noFace     time.Duration
	multiFace  time.Duration
	warning    string
	tripped    bool
}

func NewFaceMonitor(t FaceThresholds) *FaceMonitor {
	return &FaceMonitor{thresholds: t}
}

// Observe applies one successful reading covering step of loop time.
func (m *FaceMonitor) Observe(count int, step time.Duration) FaceResult {
	if m.tripped {
		return FaceResult{}
	}

	switch {
	case count == 0:
		m.noFace += step
		if m.noFace >= m.thresholds.NoFaceLimit {
			m.tripped = true
			return FaceResult{Outcome: FaceViolation, Message: ReasonNoFace}
		}
		if m.noFace > m.thresholds.NoFaceWarn {
			return m.warn(WarningNoFace)
		}
	case count > 1:
		m.multiFace += step
		if m.multiFace >= m.thresholds.MultiFaceLimit {
			m.tripped = true
			return FaceResult{Outcome: FaceViolation, Message: ReasonMultipleFaces}
		}
		return m.warn(WarningMultipleFaces)
	default:
		m.noFace = decay(m.noFace, step/2)
		m.multiFace = decay(m.multiFace, step/2)
		if m.warning != "" {
			m.warning = ""
			return FaceResult{Outcome: FaceCleared}
		}
	}
	return FaceResult{}
}

func (m *FaceMonitor) warn(msg string) FaceResult {
	if m.warning == msg {
		return FaceResult{}
	}
	m.warning = msg
	return FaceResult{Outcome: FaceWarning, Message: msg}
}

// Accumulators exposes the current no-face and multi-face totals.
func (m *FaceMonitor) Accumulators() (noFace, multiFace time.Duration) {
	return m.noFace, m.multiFace
}

func decay(v, by time.Duration) time.Duration {
	if v <= by {
		return 0
	}
	return v - by
}
