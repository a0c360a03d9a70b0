package cache

import (
	"context"
	"fmt"
	"log/slog"
)

// SafeInvalidatePattern safely invalidates cache pattern with logging
func SafeInvalidatePattern(ctx context.Context, helper *CacheHelper, pattern string) {
	if err := helper.InvalidatePattern(ctx, pattern); err != nil {
		slog.ErrorContext(ctx, "Failed to invalidate cache pattern",
			"error", err,
			"pattern", pattern)
	}
}

// SafeDelete safely deletes cache keys with logging
func SafeDelete(ctx context.Context, helper *CacheHelper, keys ...string) {
	if err := helper.Delete(ctx, keys...); err != nil {
		slog.ErrorContext(ctx, "Failed to delete cache keys",
			"error", err,
			"keys", keys)
	}
}

func FormKey(formID uint) string {
	return fmt.Sprintf("id:%d", formID)
}

func UserKey(userID uint) string {
	return fmt.Sprintf("id:%d", userID)
}

func ClassKey(classID uint) string {
	return fmt.Sprintf("class:%d", classID)
}

func SubjectKey(subjectID uint) string {
	return fmt.Sprintf("subject:%d", subjectID)
}

func CourseKey(courseID uint) string {
	return fmt.Sprintf("course:%d", courseID)
}

// InvalidateFormCache drops a cached form definition and the stats that
// aggregate over it.
func InvalidateFormCache(ctx context.Context, cm *CacheManager, formID uint) {
	if cm == nil {
		return
	}
	SafeDelete(ctx, cm.Form, FormKey(formID))
	InvalidateStats(ctx, cm)
}

// InvalidateStats drops every cached dashboard aggregate.
func InvalidateStats(ctx context.Context, cm *CacheManager) {
	if cm == nil {
		return
	}
	SafeInvalidatePattern(ctx, cm.Stats, "*")
}
