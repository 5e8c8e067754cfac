package providers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigProvider(t *testing.T) {
	tests := []struct {
		name    string
		backend ProviderBackend
		want    ProviderBackend
		wantErr bool
	}{
		{name: "cpu", backend: CPUProviderBackend, want: CPUProviderBackend},
		{name: "coreml", backend: CoreMLProviderBackend, want: CoreMLProviderBackend},
		{name: "openvino", backend: OpenVINOProviderBackend, want: OpenVINOProviderBackend},
		{name: "cuda", backend: CUDAProviderBackend, want: CUDAProviderBackend},
		{name: "empty", backend: "", wantErr: true},
		{name: "unknown", backend: "tpu", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Backend = tt.backend
			provider, err := cfg.Provider()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, provider.Backend())
		})
	}
}

func TestNewProviderUnsupported(t *testing.T) {
	_, err := NewProvider(nil)
	assert.Error(t, err)
}

func TestValidateThreads(t *testing.T) {
	cfg := DefaultConfig()
	cfg.IntraOpNumThreads = -1
	assert.Error(t, cfg.Validate())
}

func TestCoreMLFlags(t *testing.T) {
	assert.Equal(t, uint32(0), CoreMLOptions{}.Flags())
	assert.Equal(t, uint32(0x001|0x008), CoreMLOptions{CPUOnly: true, RequireStaticInputShapes: true}.Flags())
	assert.Equal(t, uint32(0x01f), CoreMLOptions{
		CPUOnly:                  true,
		EnableOnSubgraphs:        true,
		RequireANE:               true,
		RequireStaticInputShapes: true,
		MLProgram:                true,
	}.Flags())
}

func TestOpenVINOOptionsMap(t *testing.T) {
	assert.Empty(t, OpenVINOOptions{}.ProviderOptionsMap())
	assert.Equal(t, map[string]string{
		"device_type":    "GPU",
		"precision":      "FP16",
		"num_of_threads": "4",
	}, OpenVINOOptions{DeviceType: "GPU", Precision: "FP16", NumOfThreads: 4}.ProviderOptionsMap())
}

func TestCUDAOptionsMap(t *testing.T) {
	got := CUDAOptions{DeviceID: 1, GPUMemLimit: 1 << 30, DoCopyInDefaultStream: true}.ProviderOptionsMap()
	assert.Equal(t, "1", got["device_id"])
	assert.Equal(t, "1073741824", got["gpu_mem_limit"])
	assert.Equal(t, "1", got["do_copy_in_default_stream"])
	assert.NotContains(t, got, "cudnn_conv_algo_search")
}

func TestGetSharedLibPath(t *testing.T) {
	assert.Equal(t, "/opt/ort.so", GetSharedLibPath("/opt/ort.so"))

	t.Setenv(SharedLibPathEnv, "/env/ort.so")
	assert.Equal(t, "/env/ort.so", GetSharedLibPath(""))

	t.Setenv(SharedLibPathEnv, "")
	assert.NotEmpty(t, GetSharedLibPath(""))
}
