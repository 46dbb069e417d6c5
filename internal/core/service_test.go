package core

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
)

type fakePredictor struct {
	calls  int
	result PredictionResult
	err    error
}

func (f *fakePredictor) Predict(_ context.Context, path string) (*PredictionResult, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	r := f.result
	r.Filename = filepath.Base(path)
	return &r, nil
}

type fakeExplainer struct {
	err  error
	seen *PredictionResult
}

func (f *fakeExplainer) ExplainPrediction(_ context.Context, p *PredictionResult) (*ExplanationResult, error) {
	f.seen = p
	if f.err != nil {
		return nil, f.err
	}
	return &ExplanationResult{
		ImagePath:   "static/lime_" + p.Filename + ".png",
		TopFeatures: []FeatureContribution{{Feature: "file_entropy > 0.00", Name: "file_entropy", Impact: 0.4}},
	}, nil
}

type fakeNarrator struct{ err error }

func (f fakeNarrator) Narrate(_ context.Context, r *AnalysisReport) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return r.Filename + " looks " + r.Label, nil
}

type mapCache struct {
	mu      sync.Mutex
	entries map[string]*CacheEntry
	failSet bool
}

func newMapCache() *mapCache {
	return &mapCache{entries: make(map[string]*CacheEntry)}
}

func (c *mapCache) Get(_ context.Context, sha256 string) (*CacheEntry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[sha256]
	if !ok {
		return nil, errors.New("not found")
	}
	return e, nil
}

func (c *mapCache) Set(_ context.Context, e *CacheEntry) error {
	if c.failSet {
		return errors.New("disk full")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[e.SHA256] = e
	return nil
}

func (c *mapCache) Delete(_ context.Context, sha256 string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, sha256)
	return nil
}

func (c *mapCache) Cleanup(context.Context) error { return nil }

type setAllowlist map[string]bool

func (s setAllowlist) IsAllowlisted(d string) bool { return s[d] }

const emptyDigest = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"

func writeSample(t *testing.T, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sample.exe")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func ransomwarePrediction() PredictionResult {
	return PredictionResult{
		SHA256:      emptyDigest,
		Probability: 0.93,
		Label:       LabelRansomware,
		Features:    []float64{1, 2, 3},
	}
}

func TestDetectorService_Analyze(t *testing.T) {
	t.Parallel()

	pred := &fakePredictor{result: ransomwarePrediction()}
	expl := &fakeExplainer{}
	svc := NewDetectorService(pred, expl, fakeNarrator{}, newMapCache(), nil, zap.NewNop(), true, time.Hour, 0.5)

	report, err := svc.Analyze(context.Background(), AnalysisRequest{
		Path:        writeSample(t, nil),
		DisplayName: "invoice.pdf.exe",
		Explain:     true,
	})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	if report.Filename != "invoice.pdf.exe" || report.SHA256 != emptyDigest {
		t.Errorf("unexpected identity %q %q", report.Filename, report.SHA256)
	}
	if report.Label != LabelRansomware || !report.IsRansomware || report.Source != SourceModel {
		t.Errorf("unexpected verdict %+v", report)
	}
	if report.Explanation == nil || report.ExplanationError != "" {
		t.Errorf("missing explanation: %q", report.ExplanationError)
	}
	if expl.seen.Filename != "invoice.pdf.exe" {
		t.Errorf("explainer saw filename %q", expl.seen.Filename)
	}
	if report.Narrative != "invoice.pdf.exe looks Ransomware" {
		t.Errorf("Narrative = %q", report.Narrative)
	}
	if report.AnalysisID == "" || report.MimeType == "" {
		t.Errorf("AnalysisID = %q, MimeType = %q", report.AnalysisID, report.MimeType)
	}
}

func TestDetectorService_CacheHit(t *testing.T) {
	t.Parallel()

	pred := &fakePredictor{result: ransomwarePrediction()}
	cache := newMapCache()
	svc := NewDetectorService(pred, &fakeExplainer{}, nil, cache, nil, zap.NewNop(), true, time.Hour, 0.5)
	path := writeSample(t, nil)

	for i := 0; i < 3; i++ {
		report, err := svc.Analyze(context.Background(), AnalysisRequest{Path: path, Explain: true})
		if err != nil {
			t.Fatalf("Analyze #%d: %v", i, err)
		}
		wantSource := SourceCache
		if i == 0 {
			wantSource = SourceModel
		}
		if report.Source != wantSource {
			t.Errorf("Analyze #%d source = %q, want %q", i, report.Source, wantSource)
		}
		if report.Probability != 0.93 || report.Explanation == nil {
			t.Errorf("Analyze #%d: unexpected report %+v", i, report)
		}
	}
	if pred.calls != 1 {
		t.Errorf("predictor called %d times, want 1", pred.calls)
	}
	if cache.entries[emptyDigest] == nil {
		t.Error("verdict not cached")
	}
}

func TestDetectorService_Degradations(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		explainErr error
		narrateErr error
		failCache  bool
	}{
		{name: "explainer fails", explainErr: errors.New("singular matrix")},
		{name: "narrator fails", narrateErr: errors.New("rate limited")},
		{name: "cache write fails", failCache: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cache := newMapCache()
			cache.failSet = tt.failCache
			svc := NewDetectorService(
				&fakePredictor{result: ransomwarePrediction()},
				&fakeExplainer{err: tt.explainErr},
				fakeNarrator{err: tt.narrateErr},
				cache, nil, zap.NewNop(), true, time.Hour, 0.5)

			report, err := svc.Analyze(context.Background(), AnalysisRequest{Path: writeSample(t, nil), Explain: true})
			if err != nil {
				t.Fatalf("Analyze: %v", err)
			}
			if report.Label != LabelRansomware {
				t.Errorf("Label = %q", report.Label)
			}
			if tt.explainErr != nil {
				if report.Explanation != nil || !strings.HasPrefix(report.ExplanationError, "explanation unavailable") {
					t.Errorf("ExplanationError = %q", report.ExplanationError)
				}
			}
			if tt.narrateErr != nil && report.Narrative != "" {
				t.Errorf("Narrative = %q, want empty", report.Narrative)
			}
		})
	}
}

func TestDetectorService_Allowlist(t *testing.T) {
	t.Parallel()

	pred := &fakePredictor{result: ransomwarePrediction()}
	svc := NewDetectorService(pred, &fakeExplainer{}, nil, nil, setAllowlist{emptyDigest: true}, zap.NewNop(), true, time.Hour, 0.0)

	report, err := svc.Analyze(context.Background(), AnalysisRequest{Path: writeSample(t, nil), Explain: true})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if report.Source != SourceAllowlist || report.Label != LabelBenign || report.IsRansomware {
		t.Errorf("unexpected report %+v", report)
	}
	if pred.calls != 0 {
		t.Error("predictor called for allowlisted sample")
	}
}

func TestDetectorService_PredictorError(t *testing.T) {
	t.Parallel()

	boom := errors.New("model artifact missing")
	svc := NewDetectorService(&fakePredictor{err: boom}, nil, nil, nil, nil, zap.NewNop(), false, 0, 0.5)

	if _, err := svc.Analyze(context.Background(), AnalysisRequest{Path: writeSample(t, []byte("x"))}); !errors.Is(err, boom) {
		t.Errorf("err = %v, want %v", err, boom)
	}
	if _, err := svc.Analyze(context.Background(), AnalysisRequest{Path: filepath.Join(t.TempDir(), "missing")}); err == nil {
		t.Error("expected error for missing sample")
	}
}

func TestDetectorService_Threshold(t *testing.T) {
	svc := NewDetectorService(nil, nil, nil, nil, nil, zap.NewNop(), false, 0, 0.8)

	tests := []struct {
		prob float64
		want bool
	}{
		{0.79, false},
		{0.8, true},
		{0.99, true},
	}
	for _, tt := range tests {
		if got := svc.IsRansomware(&AnalysisReport{Probability: tt.prob, Source: SourceModel}); got != tt.want {
			t.Errorf("IsRansomware(%v) = %v, want %v", tt.prob, got, tt.want)
		}
	}
}
