package i18n_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ms-events/internal/i18n"
	"ms-events/internal/logger"
)

var saoPaulo = time.FixedZone("BRT", -3*60*60)

func newTranslator() *i18n.Translator {
	return i18n.NewTranslator("pt-BR", logger.NewDiscardLogger())
}

func TestPrice(t *testing.T) {
	l := newTranslator().For("pt-BR", saoPaulo)

	assert.Equal(t, "Gratuito", l.Price(0))
	assert.Equal(t, "R$ 25.50", l.Price(25.5))
	assert.Equal(t, "R$ 100.00", l.Price(100))

	en := newTranslator().For("en", saoPaulo)
	assert.Equal(t, "Free", en.Price(0))
	assert.Equal(t, "R$ 25.50", en.Price(25.5))
}

func TestRelativeDates(t *testing.T) {
	l := newTranslator().For("pt-BR", saoPaulo)
	now := time.Date(2024, 6, 10, 8, 0, 0, 0, saoPaulo)

	assert.Equal(t, "Hoje", l.Date(time.Date(2024, 6, 10, 23, 30, 0, 0, saoPaulo), now))
	assert.Equal(t, "Amanhã", l.Date(time.Date(2024, 6, 11, 0, 0, 0, 0, saoPaulo), now))
	assert.Equal(t, "12/06/2024", l.Date(time.Date(2024, 6, 12, 19, 0, 0, 0, saoPaulo), now))
	assert.Equal(t, "Hoje, 19:00", l.DateTime(time.Date(2024, 6, 10, 19, 0, 0, 0, saoPaulo), now))
}

func TestRelativeDatesFollowLocation(t *testing.T) {
	l := newTranslator().For("pt-BR", saoPaulo)
	now := time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)

	// 01:30 UTC on the 11th is still the 10th in São Paulo
	assert.Equal(t, "Hoje", l.Date(time.Date(2024, 6, 11, 1, 30, 0, 0, time.UTC), now))
}

func TestPlurals(t *testing.T) {
	tr := newTranslator()

	assert.Equal(t, "1 evento encontrado", tr.Plural("pt-BR", "events.results", 1))
	assert.Equal(t, "13 eventos encontrados", tr.Plural("pt-BR", "events.results", 13))
	assert.Equal(t, "1 event found", tr.Plural("en", "events.results", 1))
	assert.Equal(t, "2 events found", tr.Plural("en", "events.results", 2))
}

func TestTemplateData(t *testing.T) {
	tr := newTranslator()

	msg := tr.T("pt-BR", "validation.capacity_below_participants", map[string]interface{}{"Count": 7})
	assert.Contains(t, msg, "7 participantes")
}

func TestFallbacks(t *testing.T) {
	tr := newTranslator()

	// unsupported language falls back to the default
	assert.Equal(t, "Gratuito", tr.T("fr", "price.free", nil))
	// unknown key comes back as is
	assert.Equal(t, "missing.key", tr.T("pt-BR", "missing.key", nil))
	assert.Empty(t, tr.T("pt-BR", "", nil))
}

func TestMatch(t *testing.T) {
	tr := newTranslator()

	tests := []struct {
		header string
		want   string
	}{
		{"", "pt-BR"},
		{"en-US,en;q=0.9", "en"},
		{"pt-BR,pt;q=0.9,en;q=0.8", "pt-BR"},
		{"de-DE", "pt-BR"},
		{"not a header;;;", "pt-BR"},
	}
	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			assert.Equal(t, tt.want, tr.Match(tt.header))
		})
	}
}

func TestLocalizerContext(t *testing.T) {
	assert.Nil(t, i18n.FromContext(context.Background()))

	l := newTranslator().For("en", nil)
	ctx := i18n.WithLocalizer(context.Background(), l)
	got := i18n.FromContext(ctx)
	require.NotNil(t, got)
	assert.Equal(t, "en", got.Lang)
	assert.Equal(t, time.UTC, got.Location)
}
