package services

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/evolvere-edu/evolvere-api/internal/events"
	"github.com/evolvere-edu/evolvere-api/internal/models"
	"github.com/evolvere-edu/evolvere-api/internal/repositories"
)

// notFoundAs maps a repository miss to a service sentinel and wraps
// anything else.
func notFoundAs(err, sentinel error, action string) error {
	if repositories.IsNotFoundError(err) {
		return sentinel
	}
	return fmt.Errorf("failed to %s: %w", action, err)
}

// publishEvent never fails the caller; a broken bus is only logged.
func publishEvent(ctx context.Context, publisher events.EventPublisher, logger *slog.Logger, topic, eventType string, data interface{}) {
	if publisher == nil {
		return
	}
	if err := publisher.Publish(ctx, topic, events.NewEvent(eventType, data)); err != nil {
		logger.Error("Failed to publish event",
			"topic", topic,
			"type", eventType,
			"error", err)
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func average(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return round2(sum / float64(len(values)))
}

func timePtr(t time.Time) *time.Time {
	return &t
}

func uintPtr(v uint) *uint {
	return &v
}

func boolPtr(v bool) *bool {
	return &v
}

// ===== CLASS ACCESS =====

func loadClass(ctx context.Context, repo repositories.Repository, classID uint) (*models.Class, error) {
	class, err := repo.Class().GetByID(ctx, classID)
	if err != nil {
		return nil, notFoundAs(err, ErrClassNotFound, "get class")
	}
	return class, nil
}

func canManageClass(actor Actor, class *models.Class) bool {
	return actor.IsStaff() || class.TaughtBy(actor.ID)
}

// requireClassManager passes staff and the class teacher.
func requireClassManager(ctx context.Context, repo repositories.Repository, actor Actor, classID uint, resource, action string) (*models.Class, error) {
	class, err := loadClass(ctx, repo, classID)
	if err != nil {
		return nil, err
	}
	if !canManageClass(actor, class) {
		return nil, NewPermissionError(actor.ID, classID, resource, action, "not the class teacher")
	}
	return class, nil
}

// requireClassReader additionally passes students with an approved
// enrollment in the class.
func requireClassReader(ctx context.Context, repo repositories.Repository, actor Actor, classID uint, resource, action string) (*models.Class, error) {
	class, err := loadClass(ctx, repo, classID)
	if err != nil {
		return nil, err
	}
	if canManageClass(actor, class) {
		return class, nil
	}
	if actor.IsStudent() {
		ok, err := repo.Enrollment().IsApproved(ctx, classID, actor.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to check enrollment: %w", err)
		}
		if ok {
			return class, nil
		}
	}
	return nil, NewPermissionError(actor.ID, classID, resource, action, "not enrolled in the class")
}
