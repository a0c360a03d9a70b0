package services

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"time"

	"gopkg.in/yaml.v3"
	"gorm.io/datatypes"

	"github.com/evolvere-edu/evolvere-api/internal/events"
	"github.com/evolvere-edu/evolvere-api/internal/metrics"
	"github.com/evolvere-edu/evolvere-api/internal/models"
	"github.com/evolvere-edu/evolvere-api/internal/repositories"
	"github.com/evolvere-edu/evolvere-api/internal/validator"
)

//go:embed medal_catalogue.yaml
var medalCatalogueYAML []byte

const (
	streakPassPercent   = 70.0
	averageMinSubmitted = 3
)

type catalogueEntry struct {
	Code        string           `yaml:"code"`
	Name        string           `yaml:"name"`
	Description string           `yaml:"description"`
	Icon        string           `yaml:"icon"`
	Rule        models.MedalRule `yaml:"rule"`
}

// LoadMedalCatalogue parses the embedded catalogue.
func LoadMedalCatalogue() ([]*models.Medal, error) {
	var doc struct {
		Medals []catalogueEntry `yaml:"medals"`
	}
	if err := yaml.Unmarshal(medalCatalogueYAML, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse medal catalogue: %w", err)
	}

	medals := make([]*models.Medal, 0, len(doc.Medals))
	for _, e := range doc.Medals {
		if !e.Rule.Kind.Valid() {
			return nil, fmt.Errorf("medal %q has unknown rule kind %q", e.Code, e.Rule.Kind)
		}
		medals = append(medals, &models.Medal{
			Code:        e.Code,
			Name:        e.Name,
			Description: e.Description,
			Icon:        e.Icon,
			Rule:        datatypes.NewJSONType(e.Rule),
		})
	}
	return medals, nil
}

type medalService struct {
	repo      repositories.Repository
	publisher events.EventPublisher
	metrics   *metrics.Metrics
	logger    *slog.Logger
	validator *validator.Validator
	now       func() time.Time
}

func NewMedalService(
	repo repositories.Repository,
	publisher events.EventPublisher,
	m *metrics.Metrics,
	logger *slog.Logger,
	validator *validator.Validator,
) MedalService {
	return &medalService{
		repo:      repo,
		publisher: publisher,
		metrics:   m,
		logger:    logger,
		validator: validator,
		now:       time.Now,
	}
}

func (s *medalService) Catalogue(ctx context.Context) ([]*models.Medal, error) {
	medals, err := s.repo.Medal().List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list medals: %w", err)
	}
	return medals, nil
}

func (s *medalService) Create(ctx context.Context, req *MedalRequest) (*models.Medal, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	medal := &models.Medal{
		Code:        req.Code,
		Name:        req.Name,
		Description: req.Description,
		Icon:        req.Icon,
		Rule:        datatypes.NewJSONType(models.MedalRule{Kind: req.Kind, Threshold: req.Threshold}),
	}
	if err := s.repo.Medal().Create(ctx, medal); err != nil {
		if repositories.IsDuplicateError(err) {
			return nil, NewValidationError("code", "a medal with this code already exists", req.Code)
		}
		return nil, fmt.Errorf("failed to create medal: %w", err)
	}

	s.logger.Info("Medal created", "medal_id", medal.ID, "code", medal.Code)
	return medal, nil
}

func (s *medalService) SeedCatalogue(ctx context.Context) (int, error) {
	medals, err := LoadMedalCatalogue()
	if err != nil {
		return 0, err
	}
	for _, m := range medals {
		if err := s.repo.Medal().Upsert(ctx, m); err != nil {
			return 0, fmt.Errorf("failed to seed medal %s: %w", m.Code, err)
		}
	}
	s.logger.Info("Medal catalogue seeded", "medals", len(medals))
	return len(medals), nil
}

func (s *medalService) UserMedals(ctx context.Context, userID uint) ([]*models.UserMedal, error) {
	if _, err := s.repo.User().GetByID(ctx, userID); err != nil {
		return nil, notFoundAs(err, ErrUserNotFound, "get user")
	}
	awards, err := s.repo.Medal().ListAwards(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list user medals: %w", err)
	}
	return awards, nil
}

func (s *medalService) Evaluate(ctx context.Context, submission *models.Submission) ([]*models.Medal, error) {
	catalogue, err := s.repo.Medal().List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list medals: %w", err)
	}
	if len(catalogue) == 0 {
		return nil, nil
	}
	results, err := s.repo.Dashboard().StudentResults(ctx, submission.StudentID)
	if err != nil {
		return nil, fmt.Errorf("failed to load results: %w", err)
	}

	var awarded []*models.Medal
	for _, medal := range catalogue {
		if !Qualifies(medal.Rule.Data(), results) {
			continue
		}
		created, err := s.repo.Medal().Award(ctx, &models.UserMedal{
			UserID:       submission.StudentID,
			MedalID:      medal.ID,
			SubmissionID: uintPtr(submission.ID),
			AwardedAt:    s.now().UTC(),
		})
		if err != nil {
			return awarded, fmt.Errorf("failed to award medal %s: %w", medal.Code, err)
		}
		if !created {
			continue
		}

		awarded = append(awarded, medal)
		s.metrics.MedalAwarded(medal.Code)
		s.logger.Info("Medal awarded",
			"user_id", submission.StudentID,
			"medal", medal.Code,
			"submission_id", submission.ID)
		publishEvent(ctx, s.publisher, s.logger, events.TopicMedals, events.MedalAwarded, events.MedalEvent{
			UserID:       submission.StudentID,
			MedalID:      medal.ID,
			Code:         medal.Code,
			SubmissionID: uintPtr(submission.ID),
		})
	}
	return awarded, nil
}

// Qualifies checks a rule against a student's finalised results, oldest
// first.
func Qualifies(rule models.MedalRule, results []repositories.ResultRow) bool {
	switch rule.Kind {
	case models.RuleSubmissionCount:
		submitted := 0
		for _, r := range results {
			if r.Status == models.SubmissionSubmitted {
				submitted++
			}
		}
		return float64(submitted) >= rule.Threshold

	case models.RulePerfectScore:
		for _, r := range results {
			if r.PercentCorrect >= 100 {
				return true
			}
		}
		return false

	case models.RuleAverageAtLeast:
		if len(results) < averageMinSubmitted {
			return false
		}
		return averageOf(results) >= rule.Threshold

	case models.RuleStreak:
		n := int(rule.Threshold)
		if n <= 0 || len(results) < n {
			return false
		}
		for _, r := range results[len(results)-n:] {
			if r.PercentCorrect < streakPassPercent {
				return false
			}
		}
		return true
	}
	return false
}

func averageOf(results []repositories.ResultRow) float64 {
	percents := make([]float64, len(results))
	for i, r := range results {
		percents[i] = r.PercentCorrect
	}
	return average(percents)
}
