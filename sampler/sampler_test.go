package sampler_test

import (
	"testing"
	"time"

	"github.com/Carmen-Shannon/streamforge/sampler"
)

func TestSamplerOverflowAccounting(t *testing.T) {
	s := sampler.New("stage-a", 4)

	base := time.Unix(0, 0)
	for i := range 5 {
		s.SampleAt(sampler.EventTaskBegin, base.Add(time.Duration(i)*time.Millisecond))
	}

	if got := s.Count(sampler.EventTaskBegin); got != 4 {
		t.Fatalf("Count: got %d, want 4", got)
	}
	if got := s.Overflow(sampler.EventTaskBegin); got != 1 {
		t.Fatalf("Overflow: got %d, want 1", got)
	}
	if got := s.Overflow(sampler.EventTaskEnd); got != 0 {
		t.Fatalf("Overflow(unrelated event): got %d, want 0", got)
	}
}

func TestStatsCorrectness(t *testing.T) {
	begin := []int64{0, 0, 0, 0}
	end := []int64{10, 20, 30, 40}

	stats, err := sampler.Delta("d", begin, end)
	if err != nil {
		t.Fatalf("Delta: %v", err)
	}
	if stats.Count != 4 {
		t.Fatalf("Count: got %d, want 4", stats.Count)
	}
	if stats.Mean != 25 {
		t.Fatalf("Mean: got %v, want 25", stats.Mean)
	}
	if stats.Median != 25 {
		t.Fatalf("Median: got %v, want 25", stats.Median)
	}
	if stats.Min != 10 || stats.Max != 40 {
		t.Fatalf("Min/Max: got %v/%v, want 10/40", stats.Min, stats.Max)
	}
	// sample stddev of {10,20,30,40}: variance = 166.666..., stddev ~12.909944
	want := 12.909944487358056
	if diff := stats.StdDev - want; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("StdDev: got %v, want %v", stats.StdDev, want)
	}
}

func TestDeltaUnequalSamples(t *testing.T) {
	_, err := sampler.Delta("d", []int64{1, 2}, []int64{1})
	if err != sampler.ErrUnequalSamples {
		t.Fatalf("Delta: got %v, want ErrUnequalSamples", err)
	}
}

func TestExportIncludesOverflowAndDeltas(t *testing.T) {
	s := sampler.New("stage-a", 1)
	base := time.Unix(0, 0)
	s.SampleAt(sampler.EventTaskBegin, base)
	s.SampleAt(sampler.EventTaskBegin, base.Add(time.Millisecond)) // dropped: capacity 1
	s.SampleAt(sampler.EventTaskEnd, base.Add(5*time.Millisecond))

	tr := s.Export(sampler.DefaultDeltaPairs)
	if tr.Name != "stage-a" {
		t.Fatalf("Name: got %q", tr.Name)
	}
	if got := tr.Overflow["TASK_BEGIN"]; got != 1 {
		t.Fatalf("Overflow[TASK_BEGIN]: got %d, want 1", got)
	}
	if len(tr.Deltas) == 0 {
		t.Fatalf("expected at least one derived delta stat")
	}
}
