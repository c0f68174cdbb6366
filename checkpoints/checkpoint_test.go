package checkpoints

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hepqml/jettag/model"
)

func fixtureParams() []*model.Param {
	w := model.NewParam("fc.weight", 4)
	copy(w.Data, []float64{0.1, -0.2, 0.3, -0.4})
	b := model.NewParam("fc.bias", 2)
	copy(b.Data, []float64{1.5, -2.5})
	return []*model.Param{w, b}
}

func TestCheckpointRoundTrip(t *testing.T) {
	params := fixtureParams()
	state := TrainingState{Epoch: 4, GlobalStep: 120, LearningRate: 1e-2}
	ckpt := FromParams("jettag", "run-7", state, params)

	dir := t.TempDir()
	for _, tt := range []struct {
		name   string
		format Format
	}{
		{"json", FormatJSON},
		{"binary", FormatBinary},
	} {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.name+".ckpt")
			if err := ckpt.Save(path, tt.format); err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}

			loaded, err := Load(path)
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if loaded.Project != "jettag" || loaded.RunID != "run-7" {
				t.Errorf("Identity not preserved: %s/%s", loaded.Project, loaded.RunID)
			}
			if loaded.State != state {
				t.Errorf("State not preserved: %+v", loaded.State)
			}
			if len(loaded.Weights) != 2 {
				t.Fatalf("Expected 2 tensors, got %d", len(loaded.Weights))
			}
			for i, w := range loaded.Weights {
				if w.Name != params[i].Name {
					t.Errorf("Tensor %d: name %q, want %q", i, w.Name, params[i].Name)
				}
				for j, v := range w.Data {
					if v != params[i].Data[j] {
						t.Errorf("Tensor %s[%d]: %f, want %f", w.Name, j, v, params[i].Data[j])
					}
				}
			}
		})
	}
}

func TestCheckpointIsSnapshot(t *testing.T) {
	params := fixtureParams()
	ckpt := FromParams("jettag", "run-1", TrainingState{}, params)

	params[0].Data[0] = 99
	if ckpt.Weights[0].Data[0] == 99 {
		t.Error("Checkpoint must copy data, not alias the parameter")
	}
}

func TestApplyWeights(t *testing.T) {
	src := fixtureParams()
	ckpt := FromParams("jettag", "run-1", TrainingState{}, src)

	dst := []*model.Param{
		model.NewParam("fc.weight", 4),
		model.NewParam("fc.bias", 2),
	}
	if err := ckpt.ApplyWeights(dst); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	for i, p := range dst {
		for j, v := range p.Data {
			if v != src[i].Data[j] {
				t.Errorf("Parameter %s[%d] not restored", p.Name, j)
			}
		}
	}
}

func TestApplyWeightsErrors(t *testing.T) {
	ckpt := FromParams("jettag", "run-1", TrainingState{}, fixtureParams())

	if err := ckpt.ApplyWeights([]*model.Param{model.NewParam("missing", 1)}); err == nil {
		t.Error("Expected error for a tensor absent from the checkpoint")
	}
	if err := ckpt.ApplyWeights([]*model.Param{model.NewParam("fc.weight", 3)}); err == nil {
		t.Error("Expected error for a size mismatch")
	}
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()

	if _, err := Load(filepath.Join(dir, "absent.ckpt")); err == nil {
		t.Error("Expected error for a missing file")
	}

	empty := filepath.Join(dir, "empty.ckpt")
	if err := os.WriteFile(empty, nil, 0644); err != nil {
		t.Fatalf("Failed to write fixture: %v", err)
	}
	if _, err := Load(empty); err == nil {
		t.Error("Expected error for an empty file")
	}

	garbage := filepath.Join(dir, "garbage.ckpt")
	if err := os.WriteFile(garbage, []byte("{not json"), 0644); err != nil {
		t.Fatalf("Failed to write fixture: %v", err)
	}
	if _, err := Load(garbage); err == nil {
		t.Error("Expected error for malformed contents")
	}
}

func TestResolve(t *testing.T) {
	t.Run("missing directory is fresh start", func(t *testing.T) {
		path, ok, err := Resolve(filepath.Join(t.TempDir(), "never-created"))
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if ok || path != "" {
			t.Errorf("Expected fresh start, got %q", path)
		}
	})

	t.Run("empty directory is fresh start", func(t *testing.T) {
		_, ok, err := Resolve(t.TempDir())
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if ok {
			t.Error("Expected fresh start for empty directory")
		}
	})

	t.Run("single checkpoint resumes", func(t *testing.T) {
		dir := t.TempDir()
		want := filepath.Join(dir, "epoch-000.ckpt")
		if err := os.WriteFile(want, []byte("x"), 0644); err != nil {
			t.Fatalf("Failed to write fixture: %v", err)
		}
		path, ok, err := Resolve(dir)
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if !ok || path != want {
			t.Errorf("Expected %q, got %q", want, path)
		}
	})

	t.Run("newest of several wins", func(t *testing.T) {
		dir := t.TempDir()
		old := filepath.Join(dir, "epoch-009.ckpt")
		newest := filepath.Join(dir, "epoch-002.ckpt")
		for _, p := range []string{old, newest} {
			if err := os.WriteFile(p, []byte("x"), 0644); err != nil {
				t.Fatalf("Failed to write fixture: %v", err)
			}
		}
		// Modification time decides, not the file name.
		base := time.Now()
		if err := os.Chtimes(old, base.Add(-time.Hour), base.Add(-time.Hour)); err != nil {
			t.Fatalf("Failed to set times: %v", err)
		}
		if err := os.Chtimes(newest, base, base); err != nil {
			t.Fatalf("Failed to set times: %v", err)
		}

		path, ok, err := Resolve(dir)
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if !ok || path != newest {
			t.Errorf("Expected %q, got %q", newest, path)
		}
	})

	t.Run("non-checkpoint files ignored", func(t *testing.T) {
		dir := t.TempDir()
		if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0644); err != nil {
			t.Fatalf("Failed to write fixture: %v", err)
		}
		_, ok, err := Resolve(dir)
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if ok {
			t.Error("Expected fresh start when only non-.ckpt files exist")
		}
	})
}
