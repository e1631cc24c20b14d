package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/ini.v1"
	"gopkg.in/yaml.v3"

	api "speciestrainer/pkg/speciestrainer"
)

type configKind int

const (
	kindString configKind = iota
	kindInt
	kindInt64
	kindFloat
	kindBool
)

// runConfigKeys lists every run setting a config file may carry.
var runConfigKeys = map[string]configKind{
	"run_id":              kindString,
	"scape":               kindString,
	"dimensions":          kindInt,
	"population":          kindInt,
	"generations":         kindInt,
	"seed":                kindInt64,
	"threads":             kindInt,
	"selection":           kindString,
	"tournament_rounds":   kindInt,
	"truncation_fraction": kindFloat,
	"survival_rate":       kindFloat,
	"elite_threshold":     kindInt,
	"max_parent_retries":  kindInt,
	"stall_limit":         kindInt,
	"target_species":      kindInt,
	"mutation_rate":       kindFloat,
	"mutation_sigma":      kindFloat,
	"blend_alpha":         kindFloat,
	"w_gaussian":          kindFloat,
	"w_reset":             kindFloat,
	"w_uniform":           kindFloat,
	"w_single_point":      kindFloat,
	"w_blend":             kindFloat,
	"fitness_goal":        kindFloat,
	"validate_invariants": kindBool,
}

func loadRunRequestFromConfig(path string) (api.RunRequest, error) {
	var (
		raw map[string]any
		err error
	)
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		raw, err = readJSONConfig(path)
	case ".yaml", ".yml":
		raw, err = readYAMLConfig(path)
	case ".ini":
		raw, err = readINIConfig(path)
	default:
		return api.RunRequest{}, fmt.Errorf("unsupported config format: %q", ext)
	}
	if err != nil {
		return api.RunRequest{}, err
	}
	return runRequestFromMap(raw)
}

func readJSONConfig(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

func readYAMLConfig(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// readINIConfig reads the [run] section, falling back to keys outside any
// section.
func readINIConfig(path string) (map[string]any, error) {
	cfg, err := ini.LoadSources(ini.LoadOptions{
		IgnoreInlineComment:         true,
		UnescapeValueCommentSymbols: true,
	}, path)
	if err != nil {
		return nil, fmt.Errorf("load ini config %s: %w", path, err)
	}
	section := cfg.Section(ini.DefaultSection)
	if cfg.HasSection("run") {
		section = cfg.Section("run")
	}

	raw := make(map[string]any)
	for name, kind := range runConfigKeys {
		if !section.HasKey(name) {
			continue
		}
		key := section.Key(name)
		var (
			v   any
			err error
		)
		switch kind {
		case kindString:
			v = strings.TrimSpace(key.String())
		case kindInt:
			v, err = key.Int()
		case kindInt64:
			v, err = key.Int64()
		case kindFloat:
			v, err = key.Float64()
		case kindBool:
			v, err = key.Bool()
		}
		if err != nil {
			return nil, fmt.Errorf("ini key %s: %w", name, err)
		}
		raw[name] = v
	}
	return raw, nil
}

func runRequestFromMap(raw map[string]any) (api.RunRequest, error) {
	var req api.RunRequest
	for name := range raw {
		if _, ok := runConfigKeys[name]; !ok {
			return api.RunRequest{}, fmt.Errorf("unknown config key: %s", name)
		}
	}

	if v, ok := asString(raw["run_id"]); ok {
		req.RunID = v
	}
	if v, ok := asString(raw["scape"]); ok {
		req.Scape = v
	}
	if v, ok := asInt(raw["dimensions"]); ok {
		req.Dimensions = v
	}
	if v, ok := asInt(raw["population"]); ok {
		req.Population = v
	}
	if v, ok := asInt(raw["generations"]); ok {
		req.Generations = v
	}
	if v, ok := asInt64(raw["seed"]); ok {
		req.Seed = v
	}
	if v, ok := asInt(raw["threads"]); ok {
		req.Threads = v
	}
	if v, ok := asString(raw["selection"]); ok {
		req.Selection = v
	}
	if v, ok := asInt(raw["tournament_rounds"]); ok {
		req.TournamentRounds = v
	}
	if v, ok := asFloat64(raw["truncation_fraction"]); ok {
		req.TruncationFraction = v
	}
	if v, ok := asFloat64(raw["survival_rate"]); ok {
		req.SurvivalRate = v
	}
	if v, ok := asInt(raw["elite_threshold"]); ok {
		req.EliteThreshold = v
	}
	if v, ok := asInt(raw["max_parent_retries"]); ok {
		req.MaxParentRetries = v
	}
	if v, ok := asInt(raw["stall_limit"]); ok {
		req.StallLimit = v
	}
	if v, ok := asInt(raw["target_species"]); ok {
		req.TargetSpecies = v
	}
	if v, ok := asFloat64(raw["mutation_rate"]); ok {
		req.MutationRate = v
	}
	if v, ok := asFloat64(raw["mutation_sigma"]); ok {
		req.MutationSigma = v
	}
	if v, ok := asFloat64(raw["blend_alpha"]); ok {
		req.BlendAlpha = v
	}
	if v, ok := asFloat64(raw["w_gaussian"]); ok {
		req.WeightGaussian = v
	}
	if v, ok := asFloat64(raw["w_reset"]); ok {
		req.WeightReset = v
	}
	if v, ok := asFloat64(raw["w_uniform"]); ok {
		req.WeightUniform = v
	}
	if v, ok := asFloat64(raw["w_single_point"]); ok {
		req.WeightSinglePoint = v
	}
	if v, ok := asFloat64(raw["w_blend"]); ok {
		req.WeightBlend = v
	}
	if v, ok := asFloat64(raw["fitness_goal"]); ok {
		req.FitnessGoal = &v
	}
	if v, ok := asBool(raw["validate_invariants"]); ok {
		req.ValidateInvariants = v
	}
	return req, nil
}

func asString(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

func asBool(v any) (bool, bool) {
	b, ok := v.(bool)
	return b, ok
}

func asInt(v any) (int, bool) {
	switch x := v.(type) {
	case int:
		return x, true
	case int64:
		return int(x), true
	case float64:
		return int(x), true
	default:
		return 0, false
	}
}

func asInt64(v any) (int64, bool) {
	switch x := v.(type) {
	case int64:
		return x, true
	case int:
		return int64(x), true
	case float64:
		return int64(x), true
	default:
		return 0, false
	}
}

func asFloat64(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	default:
		return 0, false
	}
}

// overrideFromFlags applies only the flags the user set explicitly, so file
// values survive unless overridden.
func overrideFromFlags(req *api.RunRequest, set map[string]bool, flagValue map[string]any) {
	for name := range set {
		v, ok := flagValue[name]
		if !ok {
			continue
		}
		switch name {
		case "run-id":
			req.RunID = v.(string)
		case "scape":
			req.Scape = v.(string)
		case "dims":
			req.Dimensions = v.(int)
		case "pop":
			req.Population = v.(int)
		case "gens":
			req.Generations = v.(int)
		case "seed":
			req.Seed = v.(int64)
		case "threads":
			req.Threads = v.(int)
		case "selection":
			req.Selection = v.(string)
		case "tournament-rounds":
			req.TournamentRounds = v.(int)
		case "truncation-fraction":
			req.TruncationFraction = v.(float64)
		case "survival-rate":
			req.SurvivalRate = v.(float64)
		case "elite-threshold":
			req.EliteThreshold = v.(int)
		case "max-parent-retries":
			req.MaxParentRetries = v.(int)
		case "stall-limit":
			req.StallLimit = v.(int)
		case "target-species":
			req.TargetSpecies = v.(int)
		case "mutation-rate":
			req.MutationRate = v.(float64)
		case "mutation-sigma":
			req.MutationSigma = v.(float64)
		case "blend-alpha":
			req.BlendAlpha = v.(float64)
		case "w-gaussian":
			req.WeightGaussian = v.(float64)
		case "w-reset":
			req.WeightReset = v.(float64)
		case "w-uniform":
			req.WeightUniform = v.(float64)
		case "w-single-point":
			req.WeightSinglePoint = v.(float64)
		case "w-blend":
			req.WeightBlend = v.(float64)
		case "fitness-goal":
			goal := v.(float64)
			req.FitnessGoal = &goal
		case "validate":
			req.ValidateInvariants = v.(bool)
		}
	}
}

func loadOrDefaultRunRequest(configPath string) (api.RunRequest, error) {
	if configPath == "" {
		return api.RunRequest{}, nil
	}
	req, err := loadRunRequestFromConfig(configPath)
	if err != nil {
		return api.RunRequest{}, fmt.Errorf("load config: %w", err)
	}
	return req, nil
}
