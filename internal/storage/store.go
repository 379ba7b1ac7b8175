package storage

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/go-logr/logr"
	"github.com/san-kum/sphsim/internal/sim"
	"github.com/san-kum/sphsim/internal/sph"
)

const (
	metadataFile = "metadata.json"
	framesFile   = "frames.csv"
	stateFile    = "state.bin"
)

var ErrRunNotFound = errors.New("storage: run not found")

var frameHeader = []string{"frame", "step", "time", "kinetic_energy", "mean_density", "max_speed"}

type Store struct {
	baseDir string
	log     logr.Logger
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir, log: logr.Discard()}
}

func (s *Store) SetLogger(log logr.Logger) { s.log = log }

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

type RunMetadata struct {
	ID        string             `json:"id"`
	Name      string             `json:"name"`
	Timestamp time.Time          `json:"timestamp"`
	Seed      int64              `json:"seed"`
	Params    sph.Params         `json:"params"`
	Frames    int                `json:"frames"`
	Steps     int                `json:"steps"`
	Metrics   map[string]float64 `json:"metrics"`
}

// Save writes a run directory holding the metadata, the per-frame
// series and, when final is non-nil, the flat buffer of the final state.
func (s *Store) Save(name string, seed int64, result *sim.Result, final *sph.State) (string, error) {
	runID := fmt.Sprintf("%s_%d", name, time.Now().UnixNano())
	runDir := filepath.Join(s.baseDir, runID)

	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	meta := RunMetadata{
		ID:        runID,
		Name:      name,
		Timestamp: time.Now(),
		Seed:      seed,
		Frames:    result.FramesTaken,
		Metrics:   result.Metrics,
	}
	if final != nil {
		meta.Params = final.Params()
		meta.Steps = final.Steps()
	}

	if err := writeJSON(filepath.Join(runDir, metadataFile), meta); err != nil {
		return "", err
	}
	if err := writeFrames(filepath.Join(runDir, framesFile), result.Frames); err != nil {
		return "", err
	}
	if final != nil {
		if err := writeStateFile(filepath.Join(runDir, stateFile), final); err != nil {
			return "", err
		}
	}

	s.log.V(1).Info("run saved", "id", runID, "frames", len(result.Frames))
	return runID, nil
}

func writeJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeFrames(path string, frames []sim.Frame) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(frameHeader); err != nil {
		return err
	}
	for _, fr := range frames {
		row := []string{
			strconv.Itoa(fr.Index),
			strconv.Itoa(fr.Step),
			strconv.FormatFloat(fr.Time, 'g', -1, 64),
			strconv.FormatFloat(fr.KineticEnergy, 'g', -1, 64),
			strconv.FormatFloat(fr.MeanDensity, 'g', -1, 64),
			strconv.FormatFloat(fr.MaxSpeed, 'g', -1, 64),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func writeStateFile(path string, st *sph.State) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WriteFlat(f, st.Len(), st.Flat()); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// List returns every readable run, newest first.
func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMetadata{}, nil
		}
		return nil, err
	}

	runs := make([]RunMetadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		meta, err := s.Load(entry.Name())
		if err != nil {
			s.log.V(1).Info("skipping run", "dir", entry.Name(), "reason", err.Error())
			continue
		}
		runs = append(runs, *meta)
	}

	sort.Slice(runs, func(i, j int) bool { return runs[i].Timestamp.After(runs[j].Timestamp) })
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, metadataFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
		}
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("parse metadata of %s: %w", runID, err)
	}
	return &meta, nil
}

func (s *Store) LoadFrames(runID string) ([]sim.Frame, error) {
	f, err := os.Open(filepath.Join(s.baseDir, runID, framesFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
		}
		return nil, err
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) < 2 {
		return []sim.Frame{}, nil
	}

	frames := make([]sim.Frame, 0, len(records)-1)
	for i, rec := range records[1:] {
		fr, err := parseFrame(rec)
		if err != nil {
			return nil, fmt.Errorf("%s line %d: %w", framesFile, i+2, err)
		}
		frames = append(frames, fr)
	}
	return frames, nil
}

func parseFrame(rec []string) (sim.Frame, error) {
	if len(rec) != len(frameHeader) {
		return sim.Frame{}, fmt.Errorf("expected %d columns, got %d", len(frameHeader), len(rec))
	}

	var fr sim.Frame
	var err error
	if fr.Index, err = strconv.Atoi(rec[0]); err != nil {
		return fr, err
	}
	if fr.Step, err = strconv.Atoi(rec[1]); err != nil {
		return fr, err
	}

	vals := make([]float64, 4)
	for i := range vals {
		if vals[i], err = strconv.ParseFloat(rec[i+2], 64); err != nil {
			return fr, err
		}
	}
	fr.Time, fr.KineticEnergy, fr.MeanDensity, fr.MaxSpeed = vals[0], vals[1], vals[2], vals[3]
	return fr, nil
}

// LoadState reads the final flat buffer of a run and its particle count.
func (s *Store) LoadState(runID string) ([]float64, int, error) {
	f, err := os.Open(filepath.Join(s.baseDir, runID, stateFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, 0, fmt.Errorf("%w: %s has no saved state", ErrRunNotFound, runID)
		}
		return nil, 0, err
	}
	defer f.Close()
	return ReadFlat(f)
}

// ExportJSON writes a run's metadata and frame series as one document.
func (s *Store) ExportJSON(runID string, w io.Writer) error {
	meta, err := s.Load(runID)
	if err != nil {
		return err
	}
	frames, err := s.LoadFrames(runID)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(struct {
		*RunMetadata
		Series []sim.Frame `json:"series"`
	}{meta, frames})
}
