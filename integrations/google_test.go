package integrations

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/chxlky/trello-citydash/internal/dashboard"
	"github.com/chxlky/trello-citydash/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

func newTestCalendar(t *testing.T, handler http.HandlerFunc) *CalendarClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client, err := NewCalendarClientWithOptions(context.Background(), "primary",
		option.WithEndpoint(srv.URL+"/"),
		option.WithoutAuthentication(),
	)
	require.NoError(t, err)
	return client
}

func writeGoogleError(w http.ResponseWriter, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	fmt.Fprintf(w, `{"error":{"code":%d,"message":%q}}`, code, http.StatusText(code))
}

func TestUpsertEventInsertsWhenMissing(t *testing.T) {
	var methods []string
	var inserted calendar.Event
	client := newTestCalendar(t, func(w http.ResponseWriter, r *http.Request) {
		methods = append(methods, r.Method)
		switch {
		case r.Method == http.MethodPut && strings.HasSuffix(r.URL.Path, "/events/trello5f3a"):
			writeGoogleError(w, http.StatusNotFound)
		case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/events"):
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&inserted))
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(inserted)
		default:
			http.NotFound(w, r)
		}
	})

	due := time.Date(2024, 6, 5, 22, 0, 0, 0, time.UTC)
	event, err := client.UpsertEvent(context.Background(), CalendarEvent{
		CardID: "5F3A", Name: "Cartel", City: "Madrid", URL: "https://trello.com/c/x", Due: due,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{http.MethodPut, http.MethodPost}, methods)
	assert.Equal(t, "trello5f3a", event.Id)
	assert.Equal(t, "2024-06-05", inserted.Start.Date)
	assert.Equal(t, "2024-06-06", inserted.End.Date)
	assert.Equal(t, "Madrid", inserted.Location)
	assert.Contains(t, inserted.Description, "https://trello.com/c/x")
}

func TestUpsertEventUpdatesExisting(t *testing.T) {
	var calls int
	client := newTestCalendar(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		assert.Equal(t, http.MethodPut, r.Method)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":"trelloabc","summary":"Cartel"}`)
	})

	event, err := client.UpsertEvent(context.Background(), CalendarEvent{CardID: "abc", Name: "Cartel", Due: time.Now()})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, "trelloabc", event.Id)
}

func TestUpsertEventSurfacesOtherErrors(t *testing.T) {
	client := newTestCalendar(t, func(w http.ResponseWriter, r *http.Request) {
		writeGoogleError(w, http.StatusForbidden)
	})
	_, err := client.UpsertEvent(context.Background(), CalendarEvent{CardID: "abc", Due: time.Now()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unable to update event")
}

func TestDeleteEventIgnoresMissing(t *testing.T) {
	client := newTestCalendar(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		writeGoogleError(w, http.StatusGone)
	})
	assert.NoError(t, client.DeleteEvent(context.Background(), "trelloabc"))
}

func TestNewCalendarClientRequiresCalendarID(t *testing.T) {
	_, err := NewCalendarClientWithOptions(context.Background(), "", option.WithoutAuthentication())
	assert.Error(t, err)
	_, err = NewCalendarClient(context.Background(), []byte(`{}`), "primary")
	assert.Error(t, err)
}

type fakeCalendar struct {
	mu       sync.Mutex
	upserted []string
	deleted  []string
	fail     map[string]bool
}

func (f *fakeCalendar) UpsertEvent(_ context.Context, ev CalendarEvent) (*calendar.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail[ev.CardID] {
		return nil, errors.New("quota exceeded")
	}
	f.upserted = append(f.upserted, ev.CardID)
	return &calendar.Event{Id: EventIDForCard(ev.CardID)}, nil
}

func (f *fakeCalendar) DeleteEvent(_ context.Context, eventID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, eventID)
	return nil
}

type memoryLedger struct {
	cards map[string]models.SyncedCard
}

func (l *memoryLedger) ListByBoard(_ context.Context, boardID string) ([]models.SyncedCard, error) {
	var out []models.SyncedCard
	for _, c := range l.cards {
		if c.BoardID == boardID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (l *memoryLedger) Save(_ context.Context, card models.SyncedCard) error {
	l.cards[card.ID] = card
	return nil
}

func (l *memoryLedger) Delete(_ context.Context, cardID string) error {
	delete(l.cards, cardID)
	return nil
}

func syncSnapshot(due time.Time, names ...string) *dashboard.Snapshot {
	designs := make([]dashboard.Design, 0, len(names))
	for _, n := range names {
		d := due
		designs = append(designs, dashboard.Design{ID: n, Name: "Design " + n, City: "Madrid", Due: &d})
	}
	designs = append(designs, dashboard.Design{ID: "nodue", Name: "Sin fecha", City: "Madrid"})
	return &dashboard.Snapshot{
		BoardID: "b1",
		Cities:  []dashboard.CitySummary{{City: "Madrid", Designs: designs}},
	}
}

func TestCalendarSync(t *testing.T) {
	cal := &fakeCalendar{}
	ledger := &memoryLedger{cards: map[string]models.SyncedCard{}}
	syncer := &CalendarSync{Calendar: cal, Ledger: ledger}
	due := time.Date(2024, 6, 5, 0, 0, 0, 0, time.UTC)
	ctx := context.Background()

	res, err := syncer.Sync(ctx, syncSnapshot(due, "a", "b"))
	require.NoError(t, err)
	assert.Equal(t, SyncResult{Upserted: 2}, res)
	assert.Equal(t, "trelloa", ledger.cards["a"].EventID)

	res, err = syncer.Sync(ctx, syncSnapshot(due, "a", "b"))
	require.NoError(t, err)
	assert.Equal(t, SyncResult{Unchanged: 2}, res)

	res, err = syncer.Sync(ctx, syncSnapshot(due.AddDate(0, 0, 1), "a"))
	require.NoError(t, err)
	assert.Equal(t, SyncResult{Upserted: 1, Deleted: 1}, res)
	assert.Equal(t, []string{"trellob"}, cal.deleted)
	assert.NotContains(t, ledger.cards, "b")
}

func TestCalendarSyncContinuesAfterFailure(t *testing.T) {
	cal := &fakeCalendar{fail: map[string]bool{"a": true}}
	ledger := &memoryLedger{cards: map[string]models.SyncedCard{}}
	res, err := (&CalendarSync{Calendar: cal, Ledger: ledger}).Sync(context.Background(), syncSnapshot(time.Now(), "a", "b"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "card a")
	assert.Equal(t, SyncResult{Upserted: 1, Failed: 1}, res)
	assert.NotContains(t, ledger.cards, "a")
}
