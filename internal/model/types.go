package model

// VersionedRecord captures schema and codec evolution for persistent data.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version"`
	CodecVersion  int `json:"codec_version"`
}

// RunRecord indexes one persisted training run.
type RunRecord struct {
	VersionedRecord
	ID             string  `json:"id"`
	CreatedAtUTC   string  `json:"created_at_utc"`
	Scape          string  `json:"scape"`
	Dimensions     int     `json:"dimensions"`
	PopulationSize int     `json:"population_size"`
	Generations    int     `json:"generations"`
	Seed           int64   `json:"seed"`
	Threads        int     `json:"threads"`
	Minimize       bool    `json:"minimize"`
	FinalBestScore float64 `json:"final_best_score"`
	BestGenomeID   string  `json:"best_genome_id"`
}

// BestGenomeRecord is the persisted form of a run champion.
type BestGenomeRecord struct {
	VersionedRecord
	RunID           string    `json:"run_id"`
	GenomeID        string    `json:"genome_id"`
	Score           float64   `json:"score"`
	BirthGeneration int       `json:"birth_generation"`
	Genes           []float64 `json:"genes"`
}

type GenerationDiagnostics struct {
	Generation         int     `json:"generation"`
	BestScore          float64 `json:"best_score"`
	MeanScore          float64 `json:"mean_score"`
	WorstScore         float64 `json:"worst_score"`
	ScoreStdDev        float64 `json:"score_std_dev"`
	PopulationSize     int     `json:"population_size"`
	SpeciesCount       int     `json:"species_count"`
	MeanSpeciesSize    float64 `json:"mean_species_size"`
	LargestSpeciesSize int     `json:"largest_species_size"`
	RejectedChildren   int     `json:"rejected_children"`
}

type SpeciesGeneration struct {
	Generation     int              `json:"generation"`
	Species        []SpeciesMetrics `json:"species"`
	NewSpecies     []string         `json:"new_species,omitempty"`
	ExtinctSpecies []string         `json:"extinct_species,omitempty"`
}

type SpeciesMetrics struct {
	Key            string  `json:"key"`
	Size           int     `json:"size"`
	MeanScore      float64 `json:"mean_score"`
	BestScore      float64 `json:"best_score"`
	OffspringCount float64 `json:"offspring_count"`
}
