package web_test

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"

	"ms-events/internal/analytics"
	"ms-events/internal/auth"
	"ms-events/internal/config"
	"ms-events/internal/database/dbtest"
	eventsdb "ms-events/internal/events/db"
	events "ms-events/internal/events/service"
	"ms-events/internal/i18n"
	"ms-events/internal/logger"
	"ms-events/internal/models"
	partdb "ms-events/internal/participation/db"
	participation "ms-events/internal/participation/service"
	"ms-events/internal/qr"
	"ms-events/internal/sse"
	"ms-events/internal/web"
)

const jwtSecret = "super-secret-jwt-token-with-at-least-32-characters"

var (
	saoPaulo = time.FixedZone("BRT", -3*60*60)
	fixedNow = time.Date(2024, 6, 10, 8, 0, 0, 0, saoPaulo)
)

type testApp struct {
	handler http.Handler
	bun     *bun.DB
	emitter *sse.ParticipantEventEmitter
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	bunDB := dbtest.Open(t)
	log := logger.NewDiscardLogger()
	clock := func() time.Time { return fixedNow }

	eventService := events.NewEventService(&eventsdb.DB{Bun: bunDB}, nil, config.TopicConfig{}, saoPaulo, log)
	eventService.Now = clock
	analyticsService := analytics.NewService(bunDB)
	eventService.Analytics = analyticsService

	emitter := sse.NewParticipantEventEmitter()
	manager := participation.NewManager(&partdb.DB{Bun: bunDB}, nil, config.TopicConfig{}, log)
	manager.Now = clock
	manager.Events = emitter

	srv := &web.Server{
		Events:        eventService,
		Participation: manager,
		Analytics:     analyticsService,
		Emitter:       emitter,
		Translator:    i18n.NewTranslator("pt-BR", log),
		QR:            qr.NewQRGenerator("http://eventhub.test"),
		Verifier:      auth.NewHS256Verifier(jwtSecret, ""),
		Logger:        log,
		App: config.AppConfig{
			Name:          "EventHub",
			DefaultLocale: "pt-BR",
		},
		Auth: config.AuthConfig{
			CookieName: "access_token",
			LoginURL:   "/auth/login",
			SignUpURL:  "/auth/signup",
		},
		Location: saoPaulo,
		Now:      clock,
		CSRFKey:  []byte("0123456789abcdef0123456789abcdef"),
	}
	return &testApp{handler: srv.Router(), bun: bunDB, emitter: emitter}
}

func intPtr(v int) *int { return &v }

func tokenFor(t *testing.T, userID string) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   userID,
		"email": userID + "@example.com",
		"exp":   time.Now().Add(time.Hour).Unix(),
		"user_metadata": map[string]interface{}{
			"full_name": "User " + userID,
		},
	}).SignedString([]byte(jwtSecret))
	require.NoError(t, err)
	return token
}

func (a *testApp) seedEvent(t *testing.T, e models.Event) models.Event {
	t.Helper()
	e.ID = uuid.New().String()
	if e.Title == "" {
		e.Title = "Meetup de Go"
	}
	if e.OrganizerID == "" {
		e.OrganizerID = "organizer-1"
	}
	if e.EventDate.IsZero() {
		e.EventDate = fixedNow.Add(48 * time.Hour)
	}
	if e.Status == "" {
		e.Status = models.EventStatusActive
	}
	if e.Location == "" {
		e.Location = "Recife"
	}
	e.CreatedAt = fixedNow
	e.UpdatedAt = fixedNow
	_, err := a.bun.NewInsert().Model(&e).Exec(context.Background())
	require.NoError(t, err)
	return e
}

func (a *testApp) reload(t *testing.T, id string) models.Event {
	t.Helper()
	var e models.Event
	require.NoError(t, a.bun.NewSelect().Model(&e).Where("id = ?", id).Scan(context.Background()))
	return e
}

type request struct {
	method string
	path   string
	user   string
	form   url.Values
	header http.Header
}

func (a *testApp) do(t *testing.T, req request) *httptest.ResponseRecorder {
	t.Helper()
	method := req.method
	if method == "" {
		method = http.MethodGet
	}
	var r *http.Request
	if req.form != nil {
		r = httptest.NewRequest(method, req.path, strings.NewReader(req.form.Encode()))
		r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		r = httptest.NewRequest(method, req.path, nil)
	}
	for k, v := range req.header {
		r.Header[k] = v
	}
	if req.user != "" {
		r.Header.Set("Authorization", "Bearer "+tokenFor(t, req.user))
	}
	w := httptest.NewRecorder()
	a.handler.ServeHTTP(w, r)
	return w
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Code    string          `json:"code"`
	Data    json.RawMessage `json:"data"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return env
}

func TestHealth(t *testing.T) {
	app := newTestApp(t)
	w := app.do(t, request{path: "/healthz"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decode(t, w).Success)
}

func TestHomeShowsUpcomingEvents(t *testing.T) {
	app := newTestApp(t)
	app.seedEvent(t, models.Event{Title: "Workshop de Go"})
	app.seedEvent(t, models.Event{Title: "Evento Antigo", EventDate: fixedNow.Add(-48 * time.Hour)})

	w := app.do(t, request{path: "/"})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Workshop de Go")
	assert.Contains(t, w.Body.String(), "Gratuito")
	assert.NotContains(t, w.Body.String(), "Evento Antigo")
	assert.Equal(t, "pt-BR", w.Header().Get("Content-Language"))
}

func TestAcceptLanguageSelectsEnglish(t *testing.T) {
	app := newTestApp(t)
	app.seedEvent(t, models.Event{Title: "Workshop"})

	w := app.do(t, request{path: "/events", header: http.Header{"Accept-Language": {"en-US,en;q=0.8"}}})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "en", w.Header().Get("Content-Language"))
	assert.Contains(t, w.Body.String(), "Free")
}

func TestListEventsAppliesFilters(t *testing.T) {
	app := newTestApp(t)
	app.seedEvent(t, models.Event{Title: "Aula Gratuita"})
	app.seedEvent(t, models.Event{Title: "Curso Pago", Price: 25.5})

	w := app.do(t, request{path: "/events?price=paid"})

	assert.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "Curso Pago")
	assert.Contains(t, body, "R$ 25.50")
	assert.NotContains(t, body, "Aula Gratuita")
}

func TestEventDetailUnknownID(t *testing.T) {
	app := newTestApp(t)

	w := app.do(t, request{path: "/events/" + uuid.New().String()})

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "Evento não encontrado")
}

func TestEventDetailParticipationControl(t *testing.T) {
	app := newTestApp(t)
	open := app.seedEvent(t, models.Event{Title: "Aberto", MaxParticipants: intPtr(10)})
	past := app.seedEvent(t, models.Event{Title: "Passado", EventDate: fixedNow.Add(-2 * time.Hour)})
	full := app.seedEvent(t, models.Event{Title: "Lotado", MaxParticipants: intPtr(1), CurrentParticipants: 1})

	tests := []struct {
		name  string
		event models.Event
		user  string
		want  string
	}{
		{"anonymous is asked to log in", open, "", "/auth/login?next="},
		{"signed in user can join", open, "user-1", "Participar"},
		{"organizer sees own event", open, "organizer-1", "Você é o organizador deste evento"},
		{"past event is finished", past, "user-1", "Evento Finalizado"},
		{"full event is sold out", full, "user-1", "Esgotado"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := app.do(t, request{path: "/events/" + tt.event.ID, user: tt.user})
			assert.Equal(t, http.StatusOK, w.Code)
			assert.Contains(t, w.Body.String(), tt.want)
		})
	}
}

func TestEventDetailListsParticipantsForOrganizer(t *testing.T) {
	app := newTestApp(t)
	e := app.seedEvent(t, models.Event{})
	app.do(t, request{method: http.MethodPost, path: "/events/" + e.ID + "/participation", user: "user-1", form: url.Values{}})

	organizer := app.do(t, request{path: "/events/" + e.ID, user: "organizer-1"})
	stranger := app.do(t, request{path: "/events/" + e.ID, user: "user-2"})

	assert.Contains(t, organizer.Body.String(), "Lista de participantes (1)")
	assert.NotContains(t, stranger.Body.String(), "Lista de participantes")
}

func TestToggleParticipationForm(t *testing.T) {
	app := newTestApp(t)
	e := app.seedEvent(t, models.Event{MaxParticipants: intPtr(5)})
	path := "/events/" + e.ID + "/participation"

	w := app.do(t, request{method: http.MethodPost, path: path, user: "user-1", form: url.Values{}})
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/events/"+e.ID+"?msg=registered", w.Header().Get("Location"))
	assert.Equal(t, 1, app.reload(t, e.ID).CurrentParticipants)

	detail := app.do(t, request{path: "/events/" + e.ID + "?msg=registered", user: "user-1"})
	assert.Contains(t, detail.Body.String(), "Inscrição confirmada!")
	assert.Contains(t, detail.Body.String(), "Cancelar participação")

	w = app.do(t, request{method: http.MethodPost, path: path, user: "user-1", form: url.Values{}})
	assert.Equal(t, "/events/"+e.ID+"?msg=cancelled", w.Header().Get("Location"))
	assert.Equal(t, 0, app.reload(t, e.ID).CurrentParticipants)
}

func TestToggleParticipationFormAnonymous(t *testing.T) {
	app := newTestApp(t)
	e := app.seedEvent(t, models.Event{})

	// An empty bearer token skips the CSRF check and leaves the caller anonymous.
	w := app.do(t, request{
		method: http.MethodPost,
		path:   "/events/" + e.ID + "/participation",
		form:   url.Values{},
		header: http.Header{"Authorization": {"Bearer "}},
	})

	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, auth.LoginRedirect("/auth/login", "/events/"+e.ID), w.Header().Get("Location"))
	assert.Equal(t, 0, app.reload(t, e.ID).CurrentParticipants)
}

func TestToggleParticipationFormFullyBooked(t *testing.T) {
	app := newTestApp(t)
	e := app.seedEvent(t, models.Event{MaxParticipants: intPtr(1)})
	path := "/events/" + e.ID + "/participation"
	app.do(t, request{method: http.MethodPost, path: path, user: "user-1", form: url.Values{}})

	w := app.do(t, request{method: http.MethodPost, path: path, user: "user-2", form: url.Values{}})

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "Este evento está esgotado.")
	assert.Equal(t, 1, app.reload(t, e.ID).CurrentParticipants)
}

func TestAPIToggleParticipation(t *testing.T) {
	app := newTestApp(t)
	e := app.seedEvent(t, models.Event{MaxParticipants: intPtr(3)})

	w := app.do(t, request{method: http.MethodPost, path: "/api/events/" + e.ID + "/participation", user: "user-1"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var data struct {
		Optimistic struct {
			Previous  string `json:"previous"`
			Displayed string `json:"displayed"`
			Phase     string `json:"phase"`
		} `json:"optimistic"`
		Result struct {
			State               string `json:"state"`
			CurrentParticipants int    `json:"current_participants"`
		} `json:"result"`
	}
	env := decode(t, w)
	require.NoError(t, json.Unmarshal(env.Data, &data))

	assert.Equal(t, "Inscrição confirmada!", env.Message)
	assert.Equal(t, "not_registered", data.Optimistic.Previous)
	assert.Equal(t, "registered", data.Optimistic.Displayed)
	assert.Equal(t, "confirmed", data.Optimistic.Phase)
	assert.Equal(t, "registered", data.Result.State)
	assert.Equal(t, 1, data.Result.CurrentParticipants)
}

func TestAPIToggleRollsBackOnRejection(t *testing.T) {
	app := newTestApp(t)
	e := app.seedEvent(t, models.Event{MaxParticipants: intPtr(1), CurrentParticipants: 1})

	w := app.do(t, request{method: http.MethodPost, path: "/api/events/" + e.ID + "/participation", user: "user-1"})

	assert.Equal(t, http.StatusConflict, w.Code)
	env := decode(t, w)
	assert.Equal(t, "fully_booked", env.Code)

	var data struct {
		Optimistic struct {
			Displayed string `json:"displayed"`
			Phase     string `json:"phase"`
		} `json:"optimistic"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, "not_registered", data.Optimistic.Displayed)
	assert.Equal(t, "rolled_back", data.Optimistic.Phase)
}

func TestAPIToggleErrors(t *testing.T) {
	app := newTestApp(t)
	e := app.seedEvent(t, models.Event{})

	tests := []struct {
		name   string
		path   string
		user   string
		status int
		code   string
	}{
		{"anonymous", "/api/events/" + e.ID + "/participation", "", http.StatusUnauthorized, "authentication_required"},
		{"organizer", "/api/events/" + e.ID + "/participation", "organizer-1", http.StatusConflict, "organizer_self_registration"},
		{"unknown event", "/api/events/" + uuid.New().String() + "/participation", "user-1", http.StatusNotFound, "not_found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			header := http.Header{}
			if tt.user == "" {
				header.Set("Authorization", "Bearer ")
			}
			w := app.do(t, request{method: http.MethodPost, path: tt.path, user: tt.user, header: header})
			assert.Equal(t, tt.status, w.Code, w.Body.String())
			assert.Equal(t, tt.code, decode(t, w).Code)
		})
	}
}

func TestAPIListEvents(t *testing.T) {
	app := newTestApp(t)
	app.seedEvent(t, models.Event{Title: "Go", Category: "Tecnologia"})
	app.seedEvent(t, models.Event{Title: "Samba", Category: "Música"})

	w := app.do(t, request{path: "/api/events?category=Tecnologia"})
	require.Equal(t, http.StatusOK, w.Code)

	var listing events.Listing
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &listing))
	assert.Equal(t, 1, listing.Total)
	require.Len(t, listing.Events, 1)
	assert.Equal(t, "Go", listing.Events[0].Title)
}

func TestAPIGetEvent(t *testing.T) {
	app := newTestApp(t)
	e := app.seedEvent(t, models.Event{Price: 10})

	w := app.do(t, request{path: "/api/events/" + e.ID, user: "user-1"})
	require.Equal(t, http.StatusOK, w.Code)

	var view struct {
		ID         string `json:"id"`
		State      string `json:"state"`
		Control    string `json:"control"`
		PriceLabel string `json:"price_label"`
	}
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &view))
	assert.Equal(t, e.ID, view.ID)
	assert.Equal(t, "not_registered", view.State)
	assert.Equal(t, "register", view.Control)
	assert.Equal(t, "R$ 10.00", view.PriceLabel)

	missing := app.do(t, request{path: "/api/events/" + uuid.New().String()})
	assert.Equal(t, http.StatusNotFound, missing.Code)
}

func TestAPIEventAnalyticsOrganizerOnly(t *testing.T) {
	app := newTestApp(t)
	e := app.seedEvent(t, models.Event{MaxParticipants: intPtr(4)})
	app.do(t, request{method: http.MethodPost, path: "/api/events/" + e.ID + "/participation", user: "user-1"})

	stranger := app.do(t, request{path: "/api/events/" + e.ID + "/analytics", user: "user-2"})
	assert.Equal(t, http.StatusForbidden, stranger.Code)

	w := app.do(t, request{path: "/api/events/" + e.ID + "/analytics", user: "organizer-1"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var data struct {
		CurrentParticipants int      `json:"current_participants"`
		FillRate            *float64 `json:"fill_rate"`
	}
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &data))
	assert.Equal(t, 1, data.CurrentParticipants)
	require.NotNil(t, data.FillRate)
	assert.InDelta(t, 0.25, *data.FillRate, 0.001)
}

func TestCreateEventRequiresLogin(t *testing.T) {
	app := newTestApp(t)

	w := app.do(t, request{path: "/events/create"})

	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/auth/login?next=%2Fevents%2Fcreate", w.Header().Get("Location"))
}

func validForm() url.Values {
	return url.Values{
		"title":            {"Noite de Jazz"},
		"description":      {"Com **banda** ao vivo"},
		"event_date":       {"2024-06-20T19:00"},
		"location":         {"Olinda"},
		"max_participants": {"50"},
		"price":            {"25,50"},
	}
}

func TestCreateEvent(t *testing.T) {
	app := newTestApp(t)

	w := app.do(t, request{method: http.MethodPost, path: "/events", user: "organizer-1", form: validForm()})

	require.Equal(t, http.StatusSeeOther, w.Code, w.Body.String())
	location := w.Header().Get("Location")
	require.Regexp(t, `^/events/[0-9a-f-]{36}\?msg=created$`, location)

	id := strings.TrimSuffix(strings.TrimPrefix(location, "/events/"), "?msg=created")
	stored := app.reload(t, id)
	assert.Equal(t, "Noite de Jazz", stored.Title)
	assert.Equal(t, "organizer-1", stored.OrganizerID)
	assert.Equal(t, 25.5, stored.Price)

	detail := app.do(t, request{path: location, user: "organizer-1"})
	assert.Contains(t, detail.Body.String(), "Evento criado com sucesso!")
	assert.Contains(t, detail.Body.String(), "<strong>banda</strong>")
}

func TestCreateEventValidationKeepsInput(t *testing.T) {
	app := newTestApp(t)
	form := validForm()
	form.Set("event_date", "2024-06-09T19:00")

	w := app.do(t, request{method: http.MethodPost, path: "/events", user: "organizer-1", form: form})

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), "A data do evento deve ser no futuro.")
	assert.Contains(t, w.Body.String(), `value="Noite de Jazz"`)

	count, err := app.bun.NewSelect().Model((*models.Event)(nil)).Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestEditEventByStrangerRedirects(t *testing.T) {
	app := newTestApp(t)
	e := app.seedEvent(t, models.Event{})

	w := app.do(t, request{path: "/events/" + e.ID + "/edit", user: "user-2"})

	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/events/"+e.ID, w.Header().Get("Location"))
}

func TestUpdateEvent(t *testing.T) {
	app := newTestApp(t)
	e := app.seedEvent(t, models.Event{Title: "Antes"})

	edit := app.do(t, request{path: "/events/" + e.ID + "/edit", user: "organizer-1"})
	require.Equal(t, http.StatusOK, edit.Code)
	assert.Contains(t, edit.Body.String(), `value="Antes"`)

	form := validForm()
	form.Set("title", "Depois")
	w := app.do(t, request{method: http.MethodPost, path: "/events/" + e.ID + "/edit", user: "organizer-1", form: form})

	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/events/"+e.ID+"?msg=updated", w.Header().Get("Location"))
	assert.Equal(t, "Depois", app.reload(t, e.ID).Title)
}

func TestDeleteEvent(t *testing.T) {
	app := newTestApp(t)
	e := app.seedEvent(t, models.Event{})

	stranger := app.do(t, request{method: http.MethodPost, path: "/events/" + e.ID + "/delete", user: "user-2", form: url.Values{}})
	assert.Equal(t, http.StatusSeeOther, stranger.Code)
	assert.Equal(t, "/events/"+e.ID, stranger.Header().Get("Location"))

	w := app.do(t, request{method: http.MethodPost, path: "/events/" + e.ID + "/delete", user: "organizer-1", form: url.Values{}})
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/dashboard?msg=deleted", w.Header().Get("Location"))

	gone := app.do(t, request{path: "/events/" + e.ID})
	assert.Equal(t, http.StatusNotFound, gone.Code)
}

func TestDashboard(t *testing.T) {
	app := newTestApp(t)
	mine := app.seedEvent(t, models.Event{Title: "Meu Evento", MaxParticipants: intPtr(2)})
	other := app.seedEvent(t, models.Event{Title: "Evento Alheio", OrganizerID: "organizer-2"})
	app.do(t, request{method: http.MethodPost, path: "/events/" + other.ID + "/participation", user: "organizer-1", form: url.Values{}})
	app.do(t, request{method: http.MethodPost, path: "/events/" + mine.ID + "/participation", user: "user-1", form: url.Values{}})

	w := app.do(t, request{path: "/dashboard", user: "organizer-1"})

	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "Meu Evento")
	assert.Contains(t, body, "Evento Alheio")
	assert.Contains(t, body, `<td class="fill-rate">50%</td>`)
}

var csrfMeta = regexp.MustCompile(`<meta name="csrf-token" content="([^"]+)">`)

func TestCookieSessionNeedsCSRFToken(t *testing.T) {
	app := newTestApp(t)
	cookie := &http.Cookie{Name: "access_token", Value: tokenFor(t, "organizer-1")}

	post := func(form url.Values, cookies ...*http.Cookie) *httptest.ResponseRecorder {
		r := httptest.NewRequest(http.MethodPost, "/events", strings.NewReader(form.Encode()))
		r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		for _, c := range cookies {
			r.AddCookie(c)
		}
		w := httptest.NewRecorder()
		app.handler.ServeHTTP(w, r)
		return w
	}

	w := post(validForm(), cookie)
	assert.Equal(t, http.StatusForbidden, w.Code)

	// Fetch the form to obtain the token and its signing cookie.
	r := httptest.NewRequest(http.MethodGet, "/events/create", nil)
	r.AddCookie(cookie)
	page := httptest.NewRecorder()
	app.handler.ServeHTTP(page, r)
	require.Equal(t, http.StatusOK, page.Code)

	m := csrfMeta.FindStringSubmatch(page.Body.String())
	require.Len(t, m, 2)
	cookies := append(page.Result().Cookies(), cookie)

	form := validForm()
	form.Set("gorilla.csrf.Token", m[1])
	w = post(form, cookies...)
	assert.Equal(t, http.StatusSeeOther, w.Code, w.Body.String())
}

func TestEventQR(t *testing.T) {
	app := newTestApp(t)
	e := app.seedEvent(t, models.Event{})

	w := app.do(t, request{path: "/events/" + e.ID + "/qr.png"})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	assert.True(t, strings.HasPrefix(w.Body.String(), "\x89PNG"))
}

func TestStaticAssets(t *testing.T) {
	app := newTestApp(t)

	w := app.do(t, request{path: "/static/app.js"})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "X-CSRF-Token")
}

func TestParticipantStream(t *testing.T) {
	app := newTestApp(t)
	e := app.seedEvent(t, models.Event{MaxParticipants: intPtr(10)})

	ts := httptest.NewServer(app.handler)
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/events/"+e.ID+"/participants/stream", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "text/event-stream;charset=UTF-8", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	nextData := func(event string) string {
		t.Helper()
		for {
			line, err := reader.ReadString('\n')
			require.NoError(t, err)
			if strings.TrimSpace(line) != "event: "+event {
				continue
			}
			data, err := reader.ReadString('\n')
			require.NoError(t, err)
			return strings.TrimPrefix(strings.TrimSpace(data), "data: ")
		}
	}

	assert.Contains(t, nextData("connected"), e.ID)
	assert.JSONEq(t, `{"event_id":"`+e.ID+`","current_participants":0,"max_participants":10}`, nextData("participants"))

	require.Eventually(t, func() bool { return app.emitter.GetEventClientCount(e.ID) == 1 }, time.Second, 10*time.Millisecond)
	app.do(t, request{method: http.MethodPost, path: "/api/events/" + e.ID + "/participation", user: "user-1"})

	assert.JSONEq(t, `{"event_id":"`+e.ID+`","current_participants":1,"max_participants":10}`, nextData("participants"))
}

func TestUnknownRoute(t *testing.T) {
	app := newTestApp(t)

	page := app.do(t, request{path: "/nope"})
	api := app.do(t, request{path: "/api/nope"})

	assert.Equal(t, http.StatusNotFound, page.Code)
	assert.Equal(t, http.StatusNotFound, api.Code)
	assert.Equal(t, "not_found", decode(t, api).Code)
}
