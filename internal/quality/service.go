package quality

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// ErrNotFound is returned when a definition or profile does not exist
var ErrNotFound = errors.New("quality not found")

// Service reads quality definitions and profiles and evaluates cutoffs
type Service struct {
	db       *pgxpool.Pool
	detector *Detector
	logger   *zap.Logger
}

// NewService creates a new quality service
func NewService(db *pgxpool.Pool, logger *zap.Logger) *Service {
	return &Service{
		db:       db,
		detector: NewDetector(),
		logger:   logger.With(zap.String("component", "quality")),
	}
}

// Detector returns the release-name detector used by the service
func (s *Service) Detector() *Detector {
	return s.detector
}

// ListQualityDefinitions lists all quality definitions
func (s *Service) ListQualityDefinitions(ctx context.Context) ([]QualityDefinition, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, name, resolution, source, weight
		FROM quality_definitions
		ORDER BY weight DESC, name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list quality definitions: %w", err)
	}
	defer rows.Close()

	var definitions []QualityDefinition
	for rows.Next() {
		var def QualityDefinition
		if err := rows.Scan(&def.ID, &def.Name, &def.Resolution, &def.Source, &def.Weight); err != nil {
			return nil, fmt.Errorf("failed to scan quality definition: %w", err)
		}
		definitions = append(definitions, def)
	}

	return definitions, rows.Err()
}

// GetQualityProfile gets a quality profile with its cutoff definition
func (s *Service) GetQualityProfile(ctx context.Context, id int) (*QualityProfile, error) {
	var profile QualityProfile
	var cutoffID, cutoffWeight, cutoffResolution *int
	var cutoffName, cutoffSource *string

	err := s.db.QueryRow(ctx, `
		SELECT qp.id, qp.name, qp.cutoff_quality_id, qp.upgrade_allowed,
		       qd.id, qd.name, qd.resolution, qd.source, qd.weight
		FROM quality_profiles qp
		LEFT JOIN quality_definitions qd ON qp.cutoff_quality_id = qd.id
		WHERE qp.id = $1
	`, id).Scan(
		&profile.ID, &profile.Name, &profile.CutoffQualityID, &profile.UpgradeAllowed,
		&cutoffID, &cutoffName, &cutoffResolution, &cutoffSource, &cutoffWeight,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: profile %d", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get quality profile: %w", err)
	}

	if cutoffID != nil {
		profile.CutoffQuality = &QualityDefinition{
			ID:         *cutoffID,
			Name:       derefString(cutoffName),
			Resolution: cutoffResolution,
			Source:     cutoffSource,
			Weight:     derefInt(cutoffWeight),
		}
	}

	return &profile, nil
}

// DetectQuality detects quality from a release name and matches it to a definition
func (s *Service) DetectQuality(ctx context.Context, releaseName string) (*DetectedQualityInfo, error) {
	info := s.detector.DetectQuality(releaseName)

	definitions, err := s.ListQualityDefinitions(ctx)
	if err != nil {
		return nil, err
	}

	info.Quality = s.detector.MatchQualityDefinition(info, definitions)
	return info, nil
}

// IsCutoffMet reports whether a quality name meets the cutoff of a profile.
// A profile without a cutoff is never met.
func (s *Service) IsCutoffMet(ctx context.Context, profileID int, qualityName string) (bool, error) {
	profile, err := s.GetQualityProfile(ctx, profileID)
	if err != nil {
		return false, err
	}
	if profile.CutoffQuality == nil {
		return false, nil
	}

	definitions, err := s.ListQualityDefinitions(ctx)
	if err != nil {
		return false, err
	}

	var current *QualityDefinition
	for i := range definitions {
		if strings.EqualFold(definitions[i].Name, qualityName) {
			current = &definitions[i]
			break
		}
	}

	met := CutoffMet(current, profile.CutoffQuality)
	s.logger.Debug("evaluated cutoff",
		zap.Int("profile_id", profileID),
		zap.String("quality", qualityName),
		zap.String("cutoff", profile.CutoffQuality.Name),
		zap.Bool("met", met))

	return met, nil
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func derefInt(i *int) int {
	if i == nil {
		return 0
	}
	return *i
}
