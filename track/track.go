// Package track is the write-only metric sink boundary of the training
// loop. A Run appends scalar metrics to a JSON-lines history file under
// the run directory and can mirror them to a tracking sidecar over HTTP.
// Sidecar failures are logged and dropped; they never fail a training
// step.
package track

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

// LogOptions qualifies a logged scalar: whether it is a per-step or
// per-epoch value and at which global step it was produced.
type LogOptions struct {
	OnStep  bool
	OnEpoch bool
	Step    int
}

// Record is one history line.
type Record struct {
	Name    string    `json:"name"`
	Value   float64   `json:"value"`
	Step    int       `json:"step"`
	OnEpoch bool      `json:"on_epoch,omitempty"`
	Time    time.Time `json:"time"`
}

// Run identifies one experiment run and owns its on-disk artifacts:
// result/<project>/<name>/ holding config.json, history.jsonl, and the
// checkpoints directory.
type Run struct {
	Project string
	Group   string
	Name    string

	dir        string
	history    *os.File
	enc        *json.Encoder
	sidecarURL string
	client     *http.Client
	finished   bool
}

// NewRun creates the run directory and opens the history file for append.
func NewRun(resultDir, project, group, name string) (*Run, error) {
	if project == "" || name == "" {
		return nil, fmt.Errorf("track: project and name must be set")
	}
	dir := filepath.Join(resultDir, project, name)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("track: create run dir: %w", err)
	}

	f, err := os.OpenFile(filepath.Join(dir, "history.jsonl"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("track: open history: %w", err)
	}

	return &Run{
		Project: project,
		Group:   group,
		Name:    name,
		dir:     dir,
		history: f,
		enc:     json.NewEncoder(f),
		client:  &http.Client{Timeout: 2 * time.Second},
	}, nil
}

// SetSidecar enables mirroring of every record to POST <url>/metrics.
func (r *Run) SetSidecar(url string) {
	r.sidecarURL = url
}

// Dir returns the run directory.
func (r *Run) Dir() string { return r.dir }

// CheckpointDir returns the run's checkpoint directory. It is not
// created here; the trainer creates it on first save so that a run with
// no checkpoints resolves as a fresh start.
func (r *Run) CheckpointDir() string {
	return filepath.Join(r.dir, "checkpoints")
}

// LogConfig writes the run configuration to config.json.
func (r *Run) LogConfig(cfg any) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("track: marshal config: %w", err)
	}
	if err := os.WriteFile(filepath.Join(r.dir, "config.json"), data, 0644); err != nil {
		return fmt.Errorf("track: write config: %w", err)
	}
	return nil
}

// Log appends one scalar to the history and mirrors it to the sidecar if
// one is configured. The sink is write-only; transport failures are
// logged and dropped.
func (r *Run) Log(name string, value float64, opts LogOptions) {
	if r.finished {
		log.Printf("track: dropped metric %s logged after Finish", name)
		return
	}
	rec := Record{
		Name:    name,
		Value:   value,
		Step:    opts.Step,
		OnEpoch: opts.OnEpoch,
		Time:    time.Now(),
	}
	if err := r.enc.Encode(rec); err != nil {
		log.Printf("track: write history: %v", err)
	}
	if r.sidecarURL != "" {
		r.post(rec)
	}
}

func (r *Run) post(rec Record) {
	body, err := json.Marshal(rec)
	if err != nil {
		log.Printf("track: marshal record: %v", err)
		return
	}
	resp, err := r.client.Post(r.sidecarURL+"/metrics", "application/json", bytes.NewReader(body))
	if err != nil {
		log.Printf("track: sidecar post: %v", err)
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		log.Printf("track: sidecar returned %s for %s", resp.Status, rec.Name)
	}
}

// Finish flushes and releases the sink. Further Log calls are dropped.
func (r *Run) Finish() error {
	if r.finished {
		return nil
	}
	r.finished = true
	if err := r.history.Close(); err != nil {
		return fmt.Errorf("track: close history: %w", err)
	}
	return nil
}
