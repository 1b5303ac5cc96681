package rept

// Sample is one downsampled point of the statistics time series.
type Sample struct {
	Step            int64   `json:"step"`
	RMSEndToEnd     float64 `json:"rms_end_to_end"`
	Autocorrelation float64 `json:"autocorrelation"`
	AcceptanceRatio float64 `json:"acceptance_ratio"`
}

// historyCap bounds the retained series so long runs stay cheap to
// serve to charting clients.
const historyCap = 200

// history keeps the most recent downsampled samples.
type history struct {
	samples []Sample
}

func newHistory() *history {
	return &history{samples: make([]Sample, 0, historyCap)}
}

func (h *history) append(s Sample) {
	h.samples = append(h.samples, s)
	if len(h.samples) > historyCap {
		h.samples = h.samples[1:]
	}
}

func (h *history) snapshot() []Sample {
	out := make([]Sample, len(h.samples))
	copy(out, h.samples)
	return out
}

func (h *history) reset() {
	h.samples = h.samples[:0]
}
