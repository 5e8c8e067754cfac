// Package config - Environment driven configuration for the pose pipeline.
//
// Values are read from an optional .env file and then from POSE_* environment variables, e.g.
// POSE_DETECTION_THRESHOLD or POSE_TRAIN_EPOCHS. Command line flags override the loaded values.
package config

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"
)

// Prefix is the environment variable prefix.
const Prefix = "POSE"

// Validation errors.
var (
	ErrImagesDir          = errors.New("images dir is required")
	ErrDetectionThreshold = errors.New("detection threshold must be within [0, 1]")
	ErrWorkers            = errors.New("workers must be at least 1")
	ErrModelPath          = errors.New("detector model path is required")
	ErrInputSize          = errors.New("detector input size must be positive")
	ErrInferenceCount     = errors.New("detector inference count must be at least 1")
	ErrEpochs             = errors.New("train epochs must be at least 1")
	ErrBatchSize          = errors.New("train batch size must be at least 1")
	ErrValidationSplit    = errors.New("train validation split must be within [0, 1)")
	ErrLearningRate       = errors.New("train learning rate must be positive")
	ErrPoseThreshold      = errors.New("server pose threshold must be within [0, 1]")
	ErrKeypointThreshold  = errors.New("server keypoint threshold must be within [0, 1]")
)

// Config is the full pipeline configuration.
type Config struct {
	LogLevel  string `envconfig:"LOG_LEVEL"  default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"console"`

	ImagesDir          string  `envconfig:"IMAGES_DIR"          default:"yoga_poses"`
	PerClassDir        string  `envconfig:"CSV_PER_CLASS_DIR"   default:"csv_per_pose"`
	TrainCSV           string  `envconfig:"TRAIN_CSV"           default:"train_data.csv"`
	TestCSV            string  `envconfig:"TEST_CSV"            default:"test_data.csv"`
	DetectionThreshold float32 `envconfig:"DETECTION_THRESHOLD" default:"0.1"`
	Workers            int     `envconfig:"WORKERS"             default:"4"`
	Parquet            bool    `envconfig:"PARQUET"             default:"false"`
	MetricsTextfile    string  `envconfig:"METRICS_TEXTFILE"`

	Detector DetectorConfig `envconfig:"DETECTOR"`
	Train    TrainConfig    `envconfig:"TRAIN"`
	Server   ServerConfig   `envconfig:"SERVER"`
}

// DetectorConfig configures the pose model.
type DetectorConfig struct {
	ModelPath      string `envconfig:"MODEL_PATH"      default:"movenet_thunder.onnx"`
	SharedLibPath  string `envconfig:"SHARED_LIB_PATH"`
	InputSize      int    `envconfig:"INPUT_SIZE"      default:"256"`
	InferenceCount int    `envconfig:"INFERENCE_COUNT" default:"3"`
	Provider       string `envconfig:"PROVIDER"        default:"cpu"`
	InputName      string `envconfig:"INPUT_NAME"`
	OutputName     string `envconfig:"OUTPUT_NAME"`
}

// TrainConfig configures classifier training.
type TrainConfig struct {
	Epochs          int     `envconfig:"EPOCHS"           default:"200"`
	BatchSize       int     `envconfig:"BATCH_SIZE"       default:"16"`
	ValidationSplit float64 `envconfig:"VALIDATION_SPLIT" default:"0.15"`
	Seed            int64   `envconfig:"SEED"             default:"42"`
	Patience        int     `envconfig:"PATIENCE"         default:"20"`
	LearningRate    float64 `envconfig:"LEARNING_RATE"    default:"0.001"`
	CheckpointDir   string  `envconfig:"CHECKPOINT_DIR"   default:"weights.best"`
	ModelDir        string  `envconfig:"MODEL_DIR"        default:"model"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr              string  `envconfig:"ADDR"               default:":8080"`
	ModelDir          string  `envconfig:"MODEL_DIR"          default:"model"`
	PoseThreshold     float32 `envconfig:"POSE_THRESHOLD"     default:"0.97"`
	KeypointThreshold float32 `envconfig:"KEYPOINT_THRESHOLD" default:"0.4"`
	MaxUndetected     int     `envconfig:"MAX_UNDETECTED"     default:"4"`
	MaxBodyBytes      int64   `envconfig:"MAX_BODY_BYTES"     default:"10485760"`
}

// Load reads envFiles (".env" when none are given; missing files are ignored) and then the
// POSE_* environment.
//
// Returns:
//   - Config: The loaded configuration. It is not validated.
//   - error: An error if a file is malformed or a variable fails to parse.
func Load(envFiles ...string) (Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, file := range envFiles {
		if err := godotenv.Load(file); err != nil && !os.IsNotExist(err) {
			return Config{}, errors.Wrapf(err, "load %s", file)
		}
	}

	var cfg Config
	if err := envconfig.Process(Prefix, &cfg); err != nil {
		return Config{}, errors.Wrap(err, "process environment")
	}
	return cfg, nil
}

// Validate returns the first invalid setting.
func (c Config) Validate() error {
	switch {
	case c.ImagesDir == "":
		return ErrImagesDir
	case c.DetectionThreshold < 0 || c.DetectionThreshold > 1:
		return ErrDetectionThreshold
	case c.Workers < 1:
		return ErrWorkers
	case c.Detector.ModelPath == "":
		return ErrModelPath
	case c.Detector.InputSize <= 0:
		return ErrInputSize
	case c.Detector.InferenceCount < 1:
		return ErrInferenceCount
	case c.Train.Epochs < 1:
		return ErrEpochs
	case c.Train.BatchSize < 1:
		return ErrBatchSize
	case c.Train.ValidationSplit < 0 || c.Train.ValidationSplit >= 1:
		return ErrValidationSplit
	case c.Train.LearningRate <= 0:
		return ErrLearningRate
	case c.Server.PoseThreshold < 0 || c.Server.PoseThreshold > 1:
		return ErrPoseThreshold
	case c.Server.KeypointThreshold < 0 || c.Server.KeypointThreshold > 1:
		return ErrKeypointThreshold
	}
	return nil
}
