package model

import (
	"fmt"
	"path/filepath"

	"github.com/rs/zerolog"
)

// Artifact file names within the artifacts directory. The five serialized
// objects are consumed read-only at startup; absence of any one of them is
// a fatal startup error.
const (
	Stage1ModelFile  = "stage1_model.json"
	Stage1ConfigFile = "stage1_config.json"
	PreprocessorFile = "preprocessor.json"
	Stage2ModelFile  = "stage2_model.json"
	Stage2ConfigFile = "stage2_config.json"
)

// Bundle holds the fully loaded classifier cascade.
type Bundle struct {
	Recall    *RecallClassifier
	Precision *PrecisionClassifier
}

// LoadBundle loads all five artifacts from dir and assembles the Stage-1 and
// Stage-2 wrappers. Any missing or corrupt artifact aborts the pipeline
// before scoring work begins.
func LoadBundle(dir string, logger zerolog.Logger) (*Bundle, error) {
	pre, err := LoadPreprocessor(filepath.Join(dir, PreprocessorFile), logger)
	if err != nil {
		return nil, fmt.Errorf("load preprocessing bundle: %w", err)
	}

	stage1Model, err := LoadLogisticModel(filepath.Join(dir, Stage1ModelFile))
	if err != nil {
		return nil, fmt.Errorf("load stage1 model: %w", err)
	}
	stage1Cfg, err := LoadStage1Config(filepath.Join(dir, Stage1ConfigFile))
	if err != nil {
		return nil, fmt.Errorf("load stage1 config: %w", err)
	}

	stage2Model, err := LoadLogisticModel(filepath.Join(dir, Stage2ModelFile))
	if err != nil {
		return nil, fmt.Errorf("load stage2 model: %w", err)
	}
	stage2Cfg, err := LoadStage2Config(filepath.Join(dir, Stage2ConfigFile))
	if err != nil {
		return nil, fmt.Errorf("load stage2 config: %w", err)
	}

	logger.Info().
		Str("dir", dir).
		Str("stage1_model", stage1Model.Name()).
		Str("stage2_model", stage2Model.Name()).
		Float64("threshold", stage1Cfg.Threshold).
		Msg("model artifacts loaded")

	return &Bundle{
		Recall:    NewRecallClassifier(pre, stage1Model, stage1Cfg),
		Precision: NewPrecisionClassifier(pre, stage2Model, stage2Cfg),
	}, nil
}
