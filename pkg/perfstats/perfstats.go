// Package perfstats records how long each stage of the prediction pipeline takes,
// so that it's easy to compare resize backends, inference engines, and hardware.
package perfstats

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Accumulate samples of how long something took
type TimeAccumulator struct {
	Samples int64
	Total   time.Duration
}

func (a *TimeAccumulator) Reset() {
	a.Samples = 0
	a.Total = 0
}

func (a *TimeAccumulator) AddSample(v time.Duration) {
	a.Samples++
	a.Total += v
}

func (a *TimeAccumulator) Average() time.Duration {
	if a.Samples == 0 {
		return 0
	}
	return time.Duration(a.Total.Nanoseconds() / a.Samples)
}

type Stage string

const (
	StageResize    Stage = "resize"
	StageDecode    Stage = "decode"
	StageNormalize Stage = "normalize"
	StageInference Stage = "inference"
)

var AllStages = []Stage{StageResize, StageDecode, StageNormalize, StageInference}

// StageTimings are the durations of the stages of a single prediction cycle.
// A stage that did not run has a zero duration.
type StageTimings struct {
	Resize    time.Duration `json:"resize"`
	Decode    time.Duration `json:"decode"`
	Normalize time.Duration `json:"normalize"`
	Inference time.Duration `json:"inference"`
	Total     time.Duration `json:"total"`
}

func (t *StageTimings) Set(stage Stage, d time.Duration) {
	switch stage {
	case StageResize:
		t.Resize = d
	case StageDecode:
		t.Decode = d
	case StageNormalize:
		t.Normalize = d
	case StageInference:
		t.Inference = d
	}
}

func (t *StageTimings) Get(stage Stage) time.Duration {
	switch stage {
	case StageResize:
		return t.Resize
	case StageDecode:
		return t.Decode
	case StageNormalize:
		return t.Normalize
	case StageInference:
		return t.Inference
	}
	return 0
}

// Time runs f, and records its duration against the given stage
func (t *StageTimings) Time(stage Stage, f func() error) error {
	start := time.Now()
	err := f()
	t.Set(stage, time.Since(start))
	return err
}

func (t StageTimings) String() string {
	b := &strings.Builder{}
	for _, s := range AllStages {
		fmt.Fprintf(b, "%v %.3f ms, ", s, float64(t.Get(s).Microseconds())/1000)
	}
	fmt.Fprintf(b, "total %.3f ms", float64(t.Total.Microseconds())/1000)
	return b.String()
}

// PerfStats accumulates timings across many prediction cycles
type PerfStats struct {
	lock   sync.Mutex
	stages map[Stage]*TimeAccumulator

	// Exponential moving average of the total cycle time, in nanoseconds
	TotalNanoseconds atomic.Uint64
}

func New() *PerfStats {
	s := &PerfStats{
		stages: map[Stage]*TimeAccumulator{},
	}
	for _, st := range AllStages {
		s.stages[st] = &TimeAccumulator{}
	}
	return s
}

// Add the timings of one cycle. Stages that did not run are ignored.
func (s *PerfStats) Add(t StageTimings) {
	s.lock.Lock()
	for _, st := range AllStages {
		if d := t.Get(st); d != 0 {
			s.stages[st].AddSample(d)
		}
	}
	s.lock.Unlock()
	if t.Total != 0 {
		Update(&s.TotalNanoseconds, t.Total.Nanoseconds())
	}
}

// Returns the average duration of each stage
func (s *PerfStats) Averages() map[Stage]time.Duration {
	s.lock.Lock()
	defer s.lock.Unlock()
	avg := map[Stage]time.Duration{}
	for st, acc := range s.stages {
		avg[st] = acc.Average()
	}
	return avg
}

func (s *PerfStats) Reset() {
	s.lock.Lock()
	defer s.lock.Unlock()
	for _, acc := range s.stages {
		acc.Reset()
	}
	s.TotalNanoseconds.Store(0)
}

func Update(stat *atomic.Uint64, value int64) {
	vu := uint64(value)
	// We don't bother about strict correctness here, with CompareAndSwap,
	// because this is just sampled stats, and it's OK to miss one or two samples.
	if stat.Load() == 0 {
		stat.Store(vu)
	} else {
		stat.Store((stat.Load()*63 + vu) >> 6)
	}
}
