package dashboard

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/chxlky/trello-citydash/internal/models"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// CacheTag is the tag every dashboard snapshot is stored under; invalidating
// it forces the next read to rebuild.
const CacheTag = "trello-dashboard"

// Options is everything that shapes a snapshot. It is built once from the
// process configuration and never read from the environment.
type Options struct {
	BoardID       string
	CityMode      CityMode
	CityFieldName string
	UpcomingDays  int
	Vocabulary    Vocabulary
	// Timeout bounds a whole run including retries. Zero means no deadline.
	Timeout time.Duration
}

// CacheKey covers every option that changes the output.
func (o Options) CacheKey() string {
	return strings.Join([]string{
		CacheTag,
		o.BoardID,
		string(o.CityMode),
		o.CityFieldName,
		strconv.Itoa(o.UpcomingDays),
	}, ":")
}

// BoardSource reads the three board payloads. integrations.TrelloClient implements it.
type BoardSource interface {
	BoardLists(ctx context.Context, boardID string) ([]models.List, error)
	BoardCustomFields(ctx context.Context, boardID string) ([]models.CustomField, error)
	BoardCards(ctx context.Context, boardID string) ([]models.Card, error)
}

// Producer runs the pipeline. It holds no state between runs and is safe for
// concurrent use.
type Producer struct {
	source BoardSource
	opts   Options
	now    func() time.Time
	logger *zap.Logger
}

func NewProducer(source BoardSource, opts Options, logger *zap.Logger) *Producer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Producer{source: source, opts: opts, now: time.Now, logger: logger}
}

func (p *Producer) Options() Options { return p.opts }

// Produce fetches the board and builds a fresh snapshot.
func (p *Producer) Produce(ctx context.Context) (*Snapshot, error) {
	if p.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.opts.Timeout)
		defer cancel()
	}

	start := time.Now()
	board, err := p.fetchBoard(ctx)
	if err != nil {
		return nil, err
	}
	p.logger.Debug("Fetched board",
		zap.String("boardID", board.ID),
		zap.Int("lists", len(board.Lists)),
		zap.Int("customFields", len(board.CustomFields)),
		zap.Int("cards", len(board.Cards)),
		zap.Duration("elapsed", time.Since(start)),
	)

	snap, err := Build(board, p.opts, p.now().UTC())
	if err != nil {
		return nil, err
	}
	p.logger.Info("Built dashboard snapshot",
		zap.String("boardID", snap.BoardID),
		zap.String("cityMode", string(snap.CityModeResolved)),
		zap.Int("cities", len(snap.Cities)),
		zap.Int("designs", snap.Totals.Total),
	)
	return snap, nil
}

// fetchBoard runs the three independent reads concurrently and waits for all of them.
func (p *Producer) fetchBoard(ctx context.Context) (models.Board, error) {
	board := models.Board{ID: p.opts.BoardID}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		lists, err := p.source.BoardLists(gctx, p.opts.BoardID)
		if err != nil {
			return fmt.Errorf("fetching lists: %w", err)
		}
		board.Lists = lists
		return nil
	})
	g.Go(func() error {
		fields, err := p.source.BoardCustomFields(gctx, p.opts.BoardID)
		if err != nil {
			return fmt.Errorf("fetching custom fields: %w", err)
		}
		board.CustomFields = fields
		return nil
	})
	g.Go(func() error {
		cards, err := p.source.BoardCards(gctx, p.opts.BoardID)
		if err != nil {
			return fmt.Errorf("fetching cards: %w", err)
		}
		board.Cards = cards
		return nil
	})
	if err := g.Wait(); err != nil {
		return models.Board{}, err
	}
	return board, nil
}

// Build is the pure part of the pipeline: normalize, resolve cities,
// classify and aggregate against a single instant.
func Build(board models.Board, opts Options, now time.Time) (*Snapshot, error) {
	cityField := PickCityField(board.CustomFields, opts.CityFieldName)
	mode, err := ResolveCityMode(opts.CityMode, board, cityField, opts.CityFieldName, opts.Vocabulary)
	if err != nil {
		return nil, err
	}

	listByID := make(map[string]models.List, len(board.Lists))
	for _, l := range board.Lists {
		listByID[l.ID] = l
	}
	defs := make(map[string]*models.CustomField, len(board.CustomFields))
	for i := range board.CustomFields {
		defs[board.CustomFields[i].ID] = &board.CustomFields[i]
	}
	cityFieldID := ""
	cityFieldName := opts.CityFieldName
	if cityField != nil {
		cityFieldID = cityField.ID
		cityFieldName = cityField.Name
	}

	designs := make([]Design, 0, len(board.Cards))
	for _, card := range board.Cards {
		designs = append(designs, normalizeCard(card, mode, listByID, defs, cityFieldID, opts, now))
	}

	cities, totals, labels := Aggregate(designs, mode)
	return &Snapshot{
		BoardID:            board.ID,
		FetchedAt:          now,
		CityModeResolved:   mode,
		CityFieldName:      cityFieldName,
		UpcomingDaysWindow: opts.UpcomingDays,
		Totals:             totals,
		LabelCounters:      labels,
		Cities:             cities,
	}, nil
}

func normalizeCard(card models.Card, mode CityMode, listByID map[string]models.List, defs map[string]*models.CustomField, cityFieldID string, opts Options, now time.Time) Design {
	fields := NormalizeCustomFields(card.CustomFieldItems, defs)

	listName := NoList
	if l, ok := listByID[card.IDList]; ok {
		listName = l.Name
	}

	rawDue := ""
	if card.Due != nil {
		rawDue = *card.Due
	}

	undefined := false
	for _, l := range card.Labels {
		if isUndefinedLabel(l, opts.Vocabulary.Undefined) {
			undefined = true
			break
		}
	}

	createdAt := InferCreatedAt(card.ID)
	createdAtSource := CreatedAtUnknown
	if createdAt != nil {
		createdAtSource = CreatedAtFromCardID
	}

	memberRefs := make([]string, 0, len(card.IDMembers))
	memberRefs = append(memberRefs, card.IDMembers...)

	return Design{
		ID:               card.ID,
		Name:             card.Name,
		Description:      card.Desc,
		ShortURL:         card.ShortURL,
		URL:              card.URL,
		CoverImageURL:    PickCoverImageURL(card),
		ListID:           card.IDList,
		ListName:         listName,
		City:             ResolveCity(card, mode, listByID, fields, cityFieldID),
		CitySource:       mode,
		Due:              timeOrNil(card.Due),
		DueComplete:      card.DueComplete,
		DueCategory:      ClassifyDue(rawDue, card.DueComplete, opts.UpcomingDays, now),
		IsUndefined:      undefined,
		Labels:           normalizeLabels(card.Labels),
		Designers:        ExtractDesigners(card.Members, fields, opts.Vocabulary.Designer),
		MemberRefs:       memberRefs,
		Members:          normalizeMembers(card.Members),
		Attachments:      normalizeAttachments(card.Attachments),
		Checklists:       normalizeChecklists(card.Checklists),
		CustomFields:     fields,
		DateLastActivity: timeOrNil(card.DateLastActivity),
		CreatedAt:        createdAt,
		CreatedAtSource:  createdAtSource,
	}
}
