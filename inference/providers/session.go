// Package providers - Inference sessions.
package providers

import (
	"fmt"
	"os"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

var environmentMu sync.Mutex

// InitializeEnvironment loads the onnxruntime shared library once per process.
//
// Arguments:
//   - libPath: The shared library to load.
//
// Returns:
//   - error: An error if the library is missing or fails to initialize.
func InitializeEnvironment(libPath string) error {
	environmentMu.Lock()
	defer environmentMu.Unlock()

	if ort.IsInitialized() {
		return nil
	}
	if _, err := os.Stat(libPath); err != nil {
		return fmt.Errorf("ONNX Runtime library not found at %s: %w", libPath, err)
	}

	// Point ONNX Runtime to the exact shared library path (overrides default search).
	ort.SetSharedLibraryPath(libPath)
	if err := ort.InitializeEnvironment(); err != nil {
		return fmt.Errorf("error initializing ORT environment: %w", err)
	}
	return nil
}

// Session represents a single input, single output model session with preallocated tensors.
type Session[I, O ort.TensorData] struct {
	session *ort.AdvancedSession
	Input   *ort.Tensor[I]
	Output  *ort.Tensor[O]
}

// Run executes the model on the current contents of Input and fills Output.
func (s *Session[I, O]) Run() error {
	if s.session == nil {
		return fmt.Errorf("session is closed")
	}
	return s.session.Run()
}

// Close releases the resources associated with the Session.
func (s *Session[I, O]) Close() error {
	if s.Input != nil {
		s.Input.Destroy()
		s.Input = nil
	}
	if s.Output != nil {
		s.Output.Destroy()
		s.Output = nil
	}
	if s.session != nil {
		err := s.session.Destroy()
		s.session = nil
		if err != nil {
			return fmt.Errorf("error destroying ORT session: %w", err)
		}
	}
	return nil
}

// SessionArgs represents the arguments for creating a new session.
type SessionArgs struct {
	// The path to the ONNX model file.
	ModelPath string
	// Input node name. Empty selects the model's first input.
	InputName string
	// Output node name. Empty selects the model's first output.
	OutputName string
	// Fixed input tensor shape.
	InputShape []int64
	// Fixed output tensor shape.
	OutputShape []int64
}

// NewSession creates a new ONNX Runtime session with preallocated input and output tensors.
//
// Order of operations:
//  1. Environment setup: loads the shared library once per process.
//  2. Node names: resolved from the model when not configured.
//  3. Tensor allocation: fixed-shape buffers for input/output data.
//  4. Session options: threading, optimization level and the execution provider.
//  5. Session creation: loads the model and binds the tensors.
//
// Arguments:
//   - provider: The execution provider for the session.
//   - config: Library path, thread counts and optimization level.
//   - args: The model and its tensor layout.
//
// Returns:
//   - *Session[I, O]: The session. The caller must Close it.
//   - error: An error if the session creation fails.
func NewSession[I, O ort.TensorData](provider ExecutionProvider, config Config, args SessionArgs) (*Session[I, O], error) {
	if _, err := os.Stat(args.ModelPath); err != nil {
		return nil, fmt.Errorf("model not found at %s: %w", args.ModelPath, err)
	}
	if err := InitializeEnvironment(GetSharedLibPath(config.SharedLibPath)); err != nil {
		return nil, err
	}

	inputName, outputName, err := resolveNames(args)
	if err != nil {
		return nil, err
	}

	input, err := ort.NewEmptyTensor[I](ort.NewShape(args.InputShape...))
	if err != nil {
		return nil, fmt.Errorf("error creating input tensor: %w", err)
	}
	output, err := ort.NewEmptyTensor[O](ort.NewShape(args.OutputShape...))
	if err != nil {
		input.Destroy()
		return nil, fmt.Errorf("error creating output tensor: %w", err)
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		input.Destroy()
		output.Destroy()
		return nil, fmt.Errorf("error creating ORT session options: %w", err)
	}
	defer options.Destroy()

	if err := configureOptions(options, provider, config); err != nil {
		input.Destroy()
		output.Destroy()
		return nil, err
	}

	session, err := ort.NewAdvancedSession(
		args.ModelPath,
		[]string{inputName},
		[]string{outputName},
		[]ort.Value{input},
		[]ort.Value{output},
		options,
	)
	if err != nil {
		input.Destroy()
		output.Destroy()
		return nil, fmt.Errorf("error creating ORT session: %w", err)
	}

	return &Session[I, O]{
		session: session,
		Input:   input,
		Output:  output,
	}, nil
}

func configureOptions(options *ort.SessionOptions, provider ExecutionProvider, config Config) error {
	if config.IntraOpNumThreads > 0 {
		if err := options.SetIntraOpNumThreads(config.IntraOpNumThreads); err != nil {
			return fmt.Errorf("error setting intra op threads: %w", err)
		}
	}
	if config.InterOpNumThreads > 0 {
		if err := options.SetInterOpNumThreads(config.InterOpNumThreads); err != nil {
			return fmt.Errorf("error setting inter op threads: %w", err)
		}
	}
	if err := options.SetGraphOptimizationLevel(config.GraphOptimizationLevel); err != nil {
		return fmt.Errorf("error setting graph optimization level: %w", err)
	}
	return provider.Apply(options)
}

func resolveNames(args SessionArgs) (string, string, error) {
	if args.InputName != "" && args.OutputName != "" {
		return args.InputName, args.OutputName, nil
	}

	inputs, outputs, err := ort.GetInputOutputInfo(args.ModelPath)
	if err != nil {
		return "", "", fmt.Errorf("error reading model inputs and outputs: %w", err)
	}
	if len(inputs) == 0 || len(outputs) == 0 {
		return "", "", fmt.Errorf("model %s has no inputs or outputs", args.ModelPath)
	}

	inputName, outputName := args.InputName, args.OutputName
	if inputName == "" {
		inputName = inputs[0].Name
	}
	if outputName == "" {
		outputName = outputs[0].Name
	}
	return inputName, outputName, nil
}
