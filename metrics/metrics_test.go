package metrics

import "testing"

func TestSetSamplingAppliesToLaterRecordings(t *testing.T) {
	r := New(Config{Enabled: true, SampleRate: 0, WindowSeconds: 60, MaxSamples: 100})

	r.RecordRequest("move", 5_000_000) // sample rate 0: never sampled
	if got := r.Snapshot().LatencyP95Overall; got != 0 {
		t.Fatalf("expected no latency samples at sample rate 0, got %v", got)
	}

	r.SetSampling(1, 60)
	r.RecordRequest("move", 5_000_000)
	if got := r.Snapshot().LatencyP95Overall; got == 0 {
		t.Fatal("expected a latency sample after raising the sample rate to 1")
	}
}
