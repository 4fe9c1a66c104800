package i18n

import (
	"context"
	"embed"
	"fmt"
	"time"

	"github.com/nicksnyder/go-i18n/v2/i18n"
	"github.com/pelletier/go-toml/v2"
	"golang.org/x/text/language"

	"ms-events/internal/logger"
)

//go:embed active.*.toml
var localeFS embed.FS

var messageFiles = []string{"active.pt-BR.toml", "active.en.toml"}

// Translator is a thin wrapper around go-i18n's Bundle.
type Translator struct {
	bundle          *i18n.Bundle
	defaultLanguage language.Tag
	supported       []language.Tag
	matcher         language.Matcher
	logger          *logger.Logger
}

// NewTranslator loads the embedded message files. defaultLocale (e.g.
// "pt-BR") is used when the caller's languages match nothing.
func NewTranslator(defaultLocale string, log *logger.Logger) *Translator {
	tag, err := language.Parse(defaultLocale)
	if err != nil {
		tag = language.BrazilianPortuguese
	}
	bundle := i18n.NewBundle(tag)
	bundle.RegisterUnmarshalFunc("toml", toml.Unmarshal)

	for _, file := range messageFiles {
		if _, err := bundle.LoadMessageFileFS(localeFS, file); err != nil {
			log.Error("I18N", fmt.Sprintf("failed to load %s: %v", file, err))
		}
	}

	// the default must come first: it is the matcher's fallback
	tags := []language.Tag{tag}
	for _, t := range bundle.LanguageTags() {
		if t != tag {
			tags = append(tags, t)
		}
	}

	return &Translator{
		bundle:          bundle,
		defaultLanguage: tag,
		supported:       tags,
		matcher:         language.NewMatcher(tags),
		logger:          log,
	}
}

// Match picks the supported language for an Accept-Language header.
func (t *Translator) Match(acceptLanguage string) string {
	prefs, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(prefs) == 0 {
		return t.defaultLanguage.String()
	}
	_, idx, conf := t.matcher.Match(prefs...)
	if conf == language.No {
		return t.defaultLanguage.String()
	}
	return t.supported[idx].String()
}

// T renders the message identified by key for the given locale.
// If the key/locale is not found, it falls back to the default locale,
// then finally to the key itself.
func (t *Translator) T(locale, key string, data map[string]interface{}) string {
	return t.localize(locale, &i18n.LocalizeConfig{MessageID: key, TemplateData: data})
}

// Plural renders a message with plural forms selected by count.
func (t *Translator) Plural(locale, key string, count int) string {
	return t.localize(locale, &i18n.LocalizeConfig{
		MessageID:    key,
		PluralCount:  count,
		TemplateData: map[string]interface{}{"Count": count},
	})
}

func (t *Translator) localize(locale string, cfg *i18n.LocalizeConfig) string {
	if cfg.MessageID == "" {
		return ""
	}

	languages := []string{}
	if locale != "" {
		languages = append(languages, locale)
	}
	languages = append(languages, t.defaultLanguage.String())

	localizer := i18n.NewLocalizer(t.bundle, languages...)
	msg, err := localizer.Localize(cfg)
	if err != nil {
		t.logger.Warn("I18N", fmt.Sprintf("localize failed (key=%s, locales=%v): %v", cfg.MessageID, languages, err))
		return cfg.MessageID
	}
	return msg
}

// Localizer binds a Translator to one request's language and timezone.
type Localizer struct {
	t        *Translator
	Lang     string
	Location *time.Location
}

func (t *Translator) For(lang string, loc *time.Location) *Localizer {
	if loc == nil {
		loc = time.UTC
	}
	return &Localizer{t: t, Lang: lang, Location: loc}
}

func (l *Localizer) T(key string) string {
	return l.t.T(l.Lang, key, nil)
}

func (l *Localizer) TData(key string, data map[string]interface{}) string {
	return l.t.T(l.Lang, key, data)
}

func (l *Localizer) Plural(key string, count int) string {
	return l.t.Plural(l.Lang, key, count)
}

// Price renders 0 as the "free" label and anything else as R$ with two decimals.
func (l *Localizer) Price(price float64) string {
	if price <= 0 {
		return l.T("price.free")
	}
	return fmt.Sprintf("R$ %.2f", price)
}

// Date renders the calendar day, using today/tomorrow labels when they apply.
func (l *Localizer) Date(at, now time.Time) string {
	at = at.In(l.Location)
	now = now.In(l.Location)

	day := time.Date(at.Year(), at.Month(), at.Day(), 0, 0, 0, 0, l.Location)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, l.Location)

	switch {
	case day.Equal(today):
		return l.T("date.today")
	case day.Equal(today.AddDate(0, 0, 1)):
		return l.T("date.tomorrow")
	}
	return at.Format(l.T("date.layout"))
}

// DateTime is Date followed by the local time of day.
func (l *Localizer) DateTime(at, now time.Time) string {
	return l.Date(at, now) + ", " + at.In(l.Location).Format(l.T("date.time_layout"))
}

type ctxKey struct{}

func WithLocalizer(ctx context.Context, l *Localizer) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// FromContext returns the request's Localizer, or nil outside a request.
func FromContext(ctx context.Context) *Localizer {
	l, _ := ctx.Value(ctxKey{}).(*Localizer)
	return l
}
