package i18n

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"
)

//go:embed locales/*.json
var localeFS embed.FS

type ctxKey struct{}

var (
	bundle   *i18n.Bundle
	initOnce sync.Once
	initErr  error

	fallbackLang = "pt-BR"
)

// Init loads the embedded translation files. It is safe to call repeatedly.
func Init(defaultLang string) error {
	initOnce.Do(func() {
		if defaultLang != "" {
			fallbackLang = defaultLang
		}
		tag, err := language.Parse(fallbackLang)
		if err != nil {
			initErr = fmt.Errorf("parse language %q: %w", fallbackLang, err)
			return
		}

		b := i18n.NewBundle(tag)
		b.RegisterUnmarshalFunc("json", json.Unmarshal)

		entries, err := localeFS.ReadDir("locales")
		if err != nil {
			initErr = fmt.Errorf("read locales dir: %w", err)
			return
		}
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			data, err := localeFS.ReadFile("locales/" + e.Name())
			if err != nil {
				initErr = fmt.Errorf("read locale file %s: %w", e.Name(), err)
				return
			}
			if _, err := b.ParseMessageFileBytes(data, e.Name()); err != nil {
				initErr = fmt.Errorf("parse locale file %s: %w", e.Name(), err)
				return
			}
		}
		bundle = b
	})
	return initErr
}

func ensureBundle() *i18n.Bundle {
	if err := Init(""); err != nil {
		slog.Error("i18n bundle unavailable", "error", err)
	}
	return bundle
}

// NewLocalizer picks the best match among the given language preferences.
func NewLocalizer(langs ...string) *i18n.Localizer {
	return i18n.NewLocalizer(ensureBundle(), append(langs, fallbackLang)...)
}

func WithLocalizer(ctx context.Context, loc *i18n.Localizer) context.Context {
	return context.WithValue(ctx, ctxKey{}, loc)
}

func localizerFromCtx(ctx context.Context) *i18n.Localizer {
	if loc, ok := ctx.Value(ctxKey{}).(*i18n.Localizer); ok {
		return loc
	}
	return NewLocalizer()
}

// T translates a message by ID, returning the ID when it is unknown.
func T(ctx context.Context, msgID string) string {
	return Td(ctx, msgID, nil)
}

// Td translates a message by ID with template data.
func Td(ctx context.Context, msgID string, data map[string]any) string {
	if ensureBundle() == nil {
		return msgID
	}
	s, err := localizerFromCtx(ctx).Localize(&i18n.LocalizeConfig{
		MessageID:    msgID,
		TemplateData: data,
	})
	if err != nil {
		slog.Warn("missing translation", "id", msgID, "error", err)
		return msgID
	}
	return s
}

// Middleware stores a localizer built from Accept-Language (or ?lang=).
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		langs := []string{}
		if q := c.Query("lang"); q != "" {
			langs = append(langs, q)
		}
		langs = append(langs, c.GetHeader("Accept-Language"))
		ctx := WithLocalizer(c.Request.Context(), NewLocalizer(langs...))
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
