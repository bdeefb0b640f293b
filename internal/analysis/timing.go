package analysis

import (
	"encoding/json"
	"os"
	"sync"
	"time"
)

// StageTiming is one pipeline stage's wall time.
type StageTiming struct {
	Phase      string  `json:"phase"`
	Kind       string  `json:"kind"`
	Status     string  `json:"status,omitempty"`
	StartMS    float64 `json:"start_ms"`
	DurationMS float64 `json:"duration_ms"`
	EndMS      float64 `json:"end_ms"`
}

type timingRecorder struct {
	start  time.Time
	mu     sync.Mutex
	events []StageTiming
	file   *os.File
	enc    *json.Encoder
	err    error
}

// newTimingRecorder always collects events; with a path it also streams them
// as JSON lines.
func newTimingRecorder(start time.Time, path string) *timingRecorder {
	tr := &timingRecorder{start: start}
	if path == "" {
		return tr
	}
	f, err := os.Create(path)
	if err != nil {
		tr.err = err
		return tr
	}
	tr.file = f
	tr.enc = json.NewEncoder(f)
	return tr
}

func (tr *timingRecorder) Err() error {
	return tr.err
}

func (tr *timingRecorder) Close() {
	if tr.file == nil {
		return
	}
	_ = tr.file.Close()
}

func (tr *timingRecorder) RecordStage(phase string, start time.Time, status string) {
	duration := time.Since(start)
	startMS := durationToMS(start.Sub(tr.start))
	durationMS := durationToMS(duration)
	event := StageTiming{
		Phase:      phase,
		Kind:       "stage",
		Status:     status,
		StartMS:    startMS,
		DurationMS: durationMS,
		EndMS:      startMS + durationMS,
	}
	tr.mu.Lock()
	tr.events = append(tr.events, event)
	if tr.enc != nil {
		_ = tr.enc.Encode(event)
	}
	tr.mu.Unlock()
}

func (tr *timingRecorder) Events() []StageTiming {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	return append([]StageTiming(nil), tr.events...)
}

func durationToMS(d time.Duration) float64 {
	return float64(d.Nanoseconds()) / 1_000_000.0
}
