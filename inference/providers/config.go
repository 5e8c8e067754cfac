// Package providers - Session configuration.
package providers

import (
	"fmt"
	"runtime"

	ort "github.com/yalue/onnxruntime_go"
)

// Config describes how an ONNX Runtime session is created.
type Config struct {
	// Backend selects the execution provider.
	Backend ProviderBackend `json:"backend" yaml:"backend"`

	// SharedLibPath points at the onnxruntime shared library. Empty selects the platform default.
	SharedLibPath string `json:"shared_lib_path" yaml:"shared_lib_path"`

	// IntraOpNumThreads sets threads for parallelizing ops. Zero lets ONNX Runtime decide.
	IntraOpNumThreads int `json:"intra_op_num_threads" yaml:"intra_op_num_threads"`

	// InterOpNumThreads sets threads for parallelizing independent ops. Zero lets ONNX Runtime decide.
	InterOpNumThreads int `json:"inter_op_num_threads" yaml:"inter_op_num_threads"`

	// GraphOptimizationLevel controls the level of graph optimization
	GraphOptimizationLevel ort.GraphOptimizationLevel `json:"graph_optimization_level" yaml:"graph_optimization_level"`

	// Provider specific options. Only the one matching Backend is used.
	CoreML   CoreMLOptions   `json:"coreml"   yaml:"coreml"`
	OpenVINO OpenVINOOptions `json:"openvino" yaml:"openvino"`
	CUDA     CUDAOptions     `json:"cuda"     yaml:"cuda"`
}

// DefaultConfig returns a CPU configuration sized for single image pose detection.
//
// Returns:
//   - Config: The default configuration.
//
// @example
// config := DefaultConfig()
// config.Backend = CoreMLProviderBackend
// provider, err := config.Provider()
func DefaultConfig() Config {
	return Config{
		Backend:                CPUProviderBackend,
		IntraOpNumThreads:      max(1, runtime.NumCPU()/2),
		InterOpNumThreads:      1,
		GraphOptimizationLevel: ort.GraphOptimizationLevelEnableExtended,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	switch c.Backend {
	case CPUProviderBackend, CoreMLProviderBackend, OpenVINOProviderBackend, CUDAProviderBackend:
	case "":
		return fmt.Errorf("backend is required")
	default:
		return fmt.Errorf("no matching provider backend registered: %s", c.Backend)
	}
	if c.IntraOpNumThreads < 0 || c.InterOpNumThreads < 0 {
		return fmt.Errorf("thread counts must not be negative")
	}
	return nil
}

// Provider builds the execution provider selected by Backend.
func (c Config) Provider() (ExecutionProvider, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	switch c.Backend {
	case CoreMLProviderBackend:
		return NewProvider(c.CoreML)
	case OpenVINOProviderBackend:
		return NewProvider(c.OpenVINO)
	case CUDAProviderBackend:
		return NewProvider(c.CUDA)
	default:
		return NewProvider(CPUOptions{})
	}
}
