package model

import (
	"fmt"
	"sync"

	"github.com/mikey/ransomware-detector/internal/core"
	ort "github.com/yalue/onnxruntime_go"
)

// Default graph bindings of an exported scikit-learn classifier
const (
	DefaultONNXInputName  = "float_input"
	DefaultONNXOutputName = "probabilities"
)

// ONNXConfig holds the ONNX Runtime settings
type ONNXConfig struct {
	SharedLibraryPath string
	// MetadataPath is the JSON sidecar carrying n_features_in and classes.
	// Defaults to the model path with ".json" appended.
	MetadataPath string
	NumThreads   int
}

// ONNXModel runs a classifier through ONNX Runtime, one row at a time
type ONNXModel struct {
	meta *Metadata

	mu      sync.Mutex
	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	output  *ort.Tensor[float32]
}

// ONNXOpener opens ONNX artifacts for the artifact loader
type ONNXOpener struct {
	Config ONNXConfig
}

// Open loads the model at path
func (o ONNXOpener) Open(path string) (core.Classifier, error) {
	return NewONNXModel(path, o.Config)
}

// NewONNXModel initializes the runtime if needed and creates a session
func NewONNXModel(modelPath string, cfg ONNXConfig) (*ONNXModel, error) {
	metaPath := cfg.MetadataPath
	if metaPath == "" {
		metaPath = modelPath + ".json"
	}
	meta, err := ReadMetadata(metaPath)
	if err != nil {
		return nil, err
	}
	if meta.NFeaturesIn <= 0 {
		return nil, fmt.Errorf("onnx metadata must declare n_features_in")
	}
	if meta.InputName == "" {
		meta.InputName = DefaultONNXInputName
	}
	if meta.OutputName == "" {
		meta.OutputName = DefaultONNXOutputName
	}

	if !ort.IsInitialized() {
		ort.SetSharedLibraryPath(cfg.SharedLibraryPath)
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, fmt.Errorf("failed to initialize ONNX environment: %w", err)
		}
	}

	input, err := ort.NewEmptyTensor[float32](ort.NewShape(1, int64(meta.NFeaturesIn)))
	if err != nil {
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}
	output, err := ort.NewEmptyTensor[float32](ort.NewShape(1, int64(len(meta.classes()))))
	if err != nil {
		input.Destroy()
		return nil, fmt.Errorf("failed to create output tensor: %w", err)
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		input.Destroy()
		output.Destroy()
		return nil, fmt.Errorf("failed to create session options: %w", err)
	}
	defer options.Destroy()

	if cfg.NumThreads > 0 {
		if err := options.SetIntraOpNumThreads(cfg.NumThreads); err != nil {
			input.Destroy()
			output.Destroy()
			return nil, fmt.Errorf("failed to set intra-op threads: %w", err)
		}
	}

	session, err := ort.NewAdvancedSession(
		modelPath,
		[]string{meta.InputName},
		[]string{meta.OutputName},
		[]ort.Value{input},
		[]ort.Value{output},
		options,
	)
	if err != nil {
		input.Destroy()
		output.Destroy()
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	return &ONNXModel{
		meta:    meta,
		session: session,
		input:   input,
		output:  output,
	}, nil
}

// NumFeatures returns the persisted input width
func (m *ONNXModel) NumFeatures() int {
	return m.meta.NFeaturesIn
}

// PredictProba runs inference for every row
func (m *ONNXModel) PredictProba(X [][]float64) ([][]float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([][]float64, len(X))
	in := m.input.GetData()
	for i, row := range X {
		if len(row) != len(in) {
			return nil, fmt.Errorf("%w: row %d has %d features, model expects %d",
				core.ErrDimensionMismatch, i, len(row), len(in))
		}
		for j, v := range row {
			in[j] = float32(v)
		}

		if err := m.session.Run(); err != nil {
			return nil, fmt.Errorf("inference failed: %w", err)
		}

		res := m.output.GetData()
		proba := make([]float64, len(res))
		for j, v := range res {
			proba[j] = float64(v)
		}
		out[i] = proba
	}
	return out, nil
}

// Predict returns the most probable class per row
func (m *ONNXModel) Predict(X [][]float64) ([]int, error) {
	proba, err := m.PredictProba(X)
	if err != nil {
		return nil, err
	}
	return predictFromProba(proba, m.meta.classes()), nil
}

// Close releases the session and its tensors
func (m *ONNXModel) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session == nil {
		return nil
	}
	m.input.Destroy()
	m.output.Destroy()
	err := m.session.Destroy()
	m.session = nil
	return err
}
