// Package dataset loads fat-jet events and turns them into the graph or
// flat batches consumed by the training loop. Events carry a variable
// number of constituent particles; graph mode connects every pair of
// constituents (self-loops included) while flat mode zero-pads each jet
// to a fixed width.
package dataset

import (
	"bufio"
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
	"os"
)

// Particle is one jet constituent.
type Particle struct {
	Pt       float64 `json:"pt"`
	DeltaEta float64 `json:"delta_eta"`
	DeltaPhi float64 `json:"delta_phi"`
}

// Event is one fat jet with its constituents.
type Event struct {
	FatJetPt  float64    `json:"fatjet_pt"`
	Particles []Particle `json:"particles"`
}

// Events is a channel's worth of jets.
type Events []Event

// LoadEvents reads JSON-lines encoded events, one jet per line.
func LoadEvents(path string) (Events, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("dataset: open events: %w", err)
	}
	defer f.Close()

	var events Events
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 1<<20), 1<<24)
	line := 0
	for scanner.Scan() {
		line++
		if len(scanner.Bytes()) == 0 {
			continue
		}
		var ev Event
		if err := json.Unmarshal(scanner.Bytes(), &ev); err != nil {
			return nil, fmt.Errorf("dataset: line %d: %w", line, err)
		}
		if len(ev.Particles) == 0 {
			return nil, fmt.Errorf("dataset: line %d: event has no particles", line)
		}
		events = append(events, ev)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("dataset: read events: %w", err)
	}
	return events, nil
}

// CutPt keeps events whose fat-jet pt falls inside [lo, hi).
func (ev Events) CutPt(lo, hi float64) Events {
	var kept Events
	for _, e := range ev {
		if e.FatJetPt >= lo && e.FatJetPt < hi {
			kept = append(kept, e)
		}
	}
	return kept
}

// SelectUniformPtBins splits the fat-jet pt range into `bins` uniform
// buckets and samples `perBin` events from each, flattening the pt
// spectrum. Buckets with too few events are an error.
func (ev Events) SelectUniformPtBins(bins, perBin int, rng *rand.Rand) (Events, error) {
	if len(ev) == 0 {
		return nil, fmt.Errorf("dataset: no events to bin")
	}
	if bins <= 0 || perBin <= 0 {
		return nil, fmt.Errorf("dataset: bins and perBin must be positive")
	}

	lo, hi := ev[0].FatJetPt, ev[0].FatJetPt
	for _, e := range ev {
		lo = math.Min(lo, e.FatJetPt)
		hi = math.Max(hi, e.FatJetPt)
	}
	width := (hi - lo) / float64(bins)
	if width == 0 {
		width = 1
	}

	buckets := make([]Events, bins)
	for _, e := range ev {
		b := int((e.FatJetPt - lo) / width)
		if b >= bins {
			b = bins - 1
		}
		buckets[b] = append(buckets[b], e)
	}

	var selected Events
	for b, bucket := range buckets {
		if len(bucket) < perBin {
			return nil, fmt.Errorf("dataset: pt bin %d has %d events, need %d", b, len(bucket), perBin)
		}
		perm := rng.Perm(len(bucket))
		for i := 0; i < perBin; i++ {
			selected = append(selected, bucket[perm[i]])
		}
	}
	return selected, nil
}

// Split divides events into a training head and test tail by ratio.
func (ev Events) Split(trainRatio float64) (train, test Events) {
	n := int(trainRatio * float64(len(ev)))
	return ev[:n], ev[n:]
}

// MaxParticles returns the largest constituent count across event sets.
func MaxParticles(sets ...Events) int {
	max := 0
	for _, set := range sets {
		for _, e := range set {
			if len(e.Particles) > max {
				max = len(e.Particles)
			}
		}
	}
	return max
}

// GenerateToy produces a deterministic synthetic channel for demos and
// tests. Signal jets get a two-prong structure (constituents clustered
// around two axes); background jets a single diffuse core.
func GenerateToy(n int, signal bool, seed int64) Events {
	rng := rand.New(rand.NewSource(seed))
	events := make(Events, n)
	for i := range events {
		fatPt := 800 + 200*rng.Float64()
		numPtcs := 3 + rng.Intn(6)
		ptcs := make([]Particle, numPtcs)
		for p := range ptcs {
			var eta, phi float64
			if signal {
				// Two prongs at +-0.3 in eta.
				prong := 0.3
				if p%2 == 0 {
					prong = -0.3
				}
				eta = prong + 0.05*rng.NormFloat64()
				phi = 0.05 * rng.NormFloat64()
			} else {
				eta = 0.2 * rng.NormFloat64()
				phi = 0.2 * rng.NormFloat64()
			}
			ptcs[p] = Particle{
				Pt:       fatPt / float64(numPtcs) * (0.5 + rng.Float64()),
				DeltaEta: eta,
				DeltaPhi: phi,
			}
		}
		events[i] = Event{FatJetPt: fatPt, Particles: ptcs}
	}
	return events
}
