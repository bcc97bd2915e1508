package quality

// QualityDefinition represents a specific quality level ranked by weight
type QualityDefinition struct {
	ID         int     `json:"id"`
	Name       string  `json:"name"`
	Resolution *int    `json:"resolution,omitempty"`
	Source     *string `json:"source,omitempty"`
	Weight     int     `json:"weight"`
}

// QualityProfile is a user-defined profile with a cutoff quality
type QualityProfile struct {
	ID              int                `json:"id"`
	Name            string             `json:"name"`
	CutoffQualityID *int               `json:"cutoff_quality_id,omitempty"`
	UpgradeAllowed  bool               `json:"upgrade_allowed"`
	CutoffQuality   *QualityDefinition `json:"cutoff_quality,omitempty"`
}

// DetectedQualityInfo represents quality information detected from a release name,
// optionally completed with container metadata
type DetectedQualityInfo struct {
	Quality          *QualityDefinition `json:"quality,omitempty"`
	QualityName      string   `json:"quality_name"`
	Resolution       *int     `json:"resolution,omitempty"`
	Source           *string  `json:"source,omitempty"`
	CodecVideo       *string  `json:"codec_video,omitempty"`
	CodecAudio       *string  `json:"codec_audio,omitempty"`
	HDR              []string `json:"hdr,omitempty"`
	Channels         string   `json:"channels,omitempty"`
	ReleaseGroup     string   `json:"release_group,omitempty"`
	IsProper         bool     `json:"is_proper"`
	IsRepack         bool     `json:"is_repack"`
	IsRemux          bool     `json:"is_remux"`
	IsRemastered     bool     `json:"is_remastered"`
	LowQualitySource bool     `json:"low_quality_source"`
}

// ContainerInfo is the subset of probed container metadata that can complete a detection
type ContainerInfo struct {
	Width      int
	Height     int
	CodecVideo string
	CodecAudio string
	HDR        []string
	Channels   string
}

// QualityComparisonResult represents the result of comparing two qualities
type QualityComparisonResult int

const (
	QualityWorse  QualityComparisonResult = -1
	QualitySame   QualityComparisonResult = 0
	QualityBetter QualityComparisonResult = 1
)
