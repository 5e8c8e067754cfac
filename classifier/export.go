package classifier

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// Browser model artifact names.
const (
	ModelJSON      = "model.json"
	WeightsShard   = "group1-shard1of1.bin"
	LayersFormat   = "layers-model"
	topologyClass  = "Model"
	weightsDtype   = "float32"
	generatedBy    = "go-pose"
	kerasVersion   = "2.15.0"
	kerasBackend   = "tensorflow"
	defaultDtype   = "float32"
	dropoutPrefix  = "dropout_"
	kernelSuffix   = "/kernel"
	biasSuffix     = "/bias"
	classNamesMeta = "classNames"
)

type artifact struct {
	Format              string          `json:"format"`
	GeneratedBy         string          `json:"generatedBy"`
	ConvertedBy         *string         `json:"convertedBy"`
	ModelTopology       topology        `json:"modelTopology"`
	WeightsManifest     []manifestGroup `json:"weightsManifest"`
	UserDefinedMetadata map[string]any  `json:"userDefinedMetadata,omitempty"`
}

type topology struct {
	KerasVersion string      `json:"keras_version"`
	Backend      string      `json:"backend"`
	ModelConfig  modelConfig `json:"model_config"`
}

type modelConfig struct {
	ClassName string        `json:"class_name"`
	Config    networkConfig `json:"config"`
}

type networkConfig struct {
	Name         string  `json:"name"`
	Layers       []layer `json:"layers"`
	InputLayers  [][]any `json:"input_layers"`
	OutputLayers [][]any `json:"output_layers"`
}

type layer struct {
	ClassName    string          `json:"class_name"`
	Name         string          `json:"name"`
	Config       json.RawMessage `json:"config"`
	InboundNodes [][][]any       `json:"inbound_nodes"`
}

type inputConfig struct {
	BatchInputShape []*int `json:"batch_input_shape"`
	Dtype           string `json:"dtype"`
	Sparse          bool   `json:"sparse"`
	Ragged          bool   `json:"ragged"`
	Name            string `json:"name"`
}

type initializer struct {
	ClassName string         `json:"class_name"`
	Config    map[string]any `json:"config"`
}

type denseConfig struct {
	Name              string       `json:"name"`
	Trainable         bool         `json:"trainable"`
	Dtype             string       `json:"dtype"`
	Units             int          `json:"units"`
	Activation        string       `json:"activation"`
	UseBias           bool         `json:"use_bias"`
	KernelInitializer *initializer `json:"kernel_initializer,omitempty"`
	BiasInitializer   *initializer `json:"bias_initializer,omitempty"`
}

type dropoutConfig struct {
	Name      string  `json:"name"`
	Trainable bool    `json:"trainable"`
	Dtype     string  `json:"dtype"`
	Rate      float64 `json:"rate"`
}

type manifestGroup struct {
	Paths   []string       `json:"paths"`
	Weights []manifestItem `json:"weights"`
}

type manifestItem struct {
	Name  string `json:"name"`
	Shape []int  `json:"shape"`
	Dtype string `json:"dtype"`
}

// Export writes m to dir as a TensorFlow.js layers model: model.json plus one weights shard.
// The class names are stored under userDefinedMetadata.classNames.
func Export(m *Model, dir string) error {
	if err := m.Validate(); err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(err, "create %s", dir)
	}

	layers, err := m.topologyLayers()
	if err != nil {
		return err
	}

	var (
		weights bytes.Buffer
		items   []manifestItem
	)
	for _, l := range m.Layers {
		items = append(items,
			manifestItem{Name: l.Name + kernelSuffix, Shape: []int{l.In, l.Out}, Dtype: weightsDtype},
			manifestItem{Name: l.Name + biasSuffix, Shape: []int{l.Out}, Dtype: weightsDtype},
		)
		if err := binary.Write(&weights, binary.LittleEndian, l.Kernel); err != nil {
			return errors.Wrapf(err, "encode %s kernel", l.Name)
		}
		if err := binary.Write(&weights, binary.LittleEndian, l.Bias); err != nil {
			return errors.Wrapf(err, "encode %s bias", l.Name)
		}
	}

	a := artifact{
		Format:      LayersFormat,
		GeneratedBy: generatedBy,
		ModelTopology: topology{
			KerasVersion: kerasVersion,
			Backend:      kerasBackend,
			ModelConfig: modelConfig{
				ClassName: topologyClass,
				Config: networkConfig{
					Name:         ModelName,
					Layers:       layers,
					InputLayers:  [][]any{{InputLayerName, 0, 0}},
					OutputLayers: [][]any{{m.Layers[len(m.Layers)-1].Name, 0, 0}},
				},
			},
		},
		WeightsManifest: []manifestGroup{{Paths: []string{WeightsShard}, Weights: items}},
		UserDefinedMetadata: map[string]any{
			classNamesMeta: m.ClassNames,
		},
	}

	body, err := json.Marshal(a)
	if err != nil {
		return errors.Wrap(err, "encode model.json")
	}
	if err := os.WriteFile(filepath.Join(dir, WeightsShard), weights.Bytes(), 0o644); err != nil {
		return errors.Wrap(err, "write weights")
	}
	if err := os.WriteFile(filepath.Join(dir, ModelJSON), body, 0o644); err != nil {
		return errors.Wrap(err, "write model.json")
	}
	return nil
}

func (m *Model) topologyLayers() ([]layer, error) {
	batchShape := []*int{nil, intPtr(InputSize)}
	input, err := json.Marshal(inputConfig{
		BatchInputShape: batchShape,
		Dtype:           defaultDtype,
		Name:            InputLayerName,
	})
	if err != nil {
		return nil, errors.Wrap(err, "encode input layer")
	}
	layers := []layer{{ClassName: "InputLayer", Name: InputLayerName, Config: input, InboundNodes: [][][]any{}}}

	prev := InputLayerName
	dropouts := 0
	for i, l := range m.Layers {
		cfg, err := json.Marshal(denseConfig{
			Name:              l.Name,
			Trainable:         true,
			Dtype:             defaultDtype,
			Units:             l.Out,
			Activation:        l.Activation,
			UseBias:           true,
			KernelInitializer: &initializer{ClassName: "GlorotUniform", Config: map[string]any{"seed": nil}},
			BiasInitializer:   &initializer{ClassName: "Zeros", Config: map[string]any{}},
		})
		if err != nil {
			return nil, errors.Wrapf(err, "encode %s", l.Name)
		}
		layers = append(layers, layer{ClassName: "Dense", Name: l.Name, Config: cfg, InboundNodes: inbound(prev)})
		prev = l.Name

		if i == len(m.Layers)-1 {
			break
		}
		dropouts++
		name := fmt.Sprintf("%s%d", dropoutPrefix, dropouts)
		cfg, err = json.Marshal(dropoutConfig{Name: name, Trainable: true, Dtype: defaultDtype, Rate: DropoutRate})
		if err != nil {
			return nil, errors.Wrapf(err, "encode %s", name)
		}
		layers = append(layers, layer{ClassName: "Dropout", Name: name, Config: cfg, InboundNodes: inbound(prev)})
		prev = name
	}
	return layers, nil
}

func inbound(name string) [][][]any {
	return [][][]any{{{name, 0, 0, map[string]any{}}}}
}

func intPtr(v int) *int {
	return &v
}

// Load reads a model written by Export. Dropout layers are ignored.
func Load(dir string) (*Model, error) {
	body, err := os.ReadFile(filepath.Join(dir, ModelJSON))
	if err != nil {
		return nil, errors.Wrap(err, "read model.json")
	}
	var a artifact
	if err := json.Unmarshal(body, &a); err != nil {
		return nil, errors.Wrap(err, "decode model.json")
	}
	if a.Format != LayersFormat {
		return nil, errors.Errorf("unsupported model format %q", a.Format)
	}

	classNames, err := decodeClassNames(a.UserDefinedMetadata[classNamesMeta])
	if err != nil {
		return nil, err
	}

	weights, err := a.readWeights(dir)
	if err != nil {
		return nil, err
	}

	m := &Model{ClassNames: classNames}
	in := InputSize
	for _, l := range a.ModelTopology.ModelConfig.Config.Layers {
		if l.ClassName != "Dense" {
			continue
		}
		var cfg denseConfig
		if err := json.Unmarshal(l.Config, &cfg); err != nil {
			return nil, errors.Wrapf(err, "decode layer %s", l.Name)
		}
		kernel, ok := weights[l.Name+kernelSuffix]
		if !ok {
			return nil, errors.Wrapf(ErrShape, "missing weights for %s", l.Name)
		}
		m.Layers = append(m.Layers, Dense{
			Name:       l.Name,
			In:         in,
			Out:        cfg.Units,
			Activation: cfg.Activation,
			Kernel:     kernel,
			Bias:       weights[l.Name+biasSuffix],
		})
		in = cfg.Units
	}

	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

func decodeClassNames(raw any) ([]string, error) {
	values, ok := raw.([]any)
	if !ok || len(values) == 0 {
		return nil, errors.New("model.json has no class names")
	}
	names := make([]string, len(values))
	for i, v := range values {
		s, ok := v.(string)
		if !ok {
			return nil, errors.Errorf("class name %d is %T", i, v)
		}
		names[i] = s
	}
	return names, nil
}

func (a *artifact) readWeights(dir string) (map[string][]float32, error) {
	out := make(map[string][]float32)
	for _, group := range a.WeightsManifest {
		var buf []byte
		for _, p := range group.Paths {
			shard, err := os.ReadFile(filepath.Join(dir, p))
			if err != nil {
				return nil, errors.Wrapf(err, "read %s", p)
			}
			buf = append(buf, shard...)
		}

		r := bytes.NewReader(buf)
		for _, item := range group.Weights {
			if item.Dtype != weightsDtype {
				return nil, errors.Errorf("weight %s: unsupported dtype %q", item.Name, item.Dtype)
			}
			size := 1
			for _, d := range item.Shape {
				size *= d
			}
			values := make([]float32, size)
			if err := binary.Read(r, binary.LittleEndian, values); err != nil {
				return nil, errors.Wrapf(err, "weight %s", item.Name)
			}
			out[item.Name] = values
		}
	}
	return out, nil
}
