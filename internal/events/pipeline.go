// Package events selects the current events from the content feed and
// delivers them to a recipient, one message per event.
package events

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"
	"unicode/utf8"

	"golang.org/x/sync/singleflight"

	"github.com/culturalbot/eventbot/internal/cache"
	"github.com/culturalbot/eventbot/internal/feed"
	"github.com/culturalbot/eventbot/internal/model"
)

const (
	DefaultMax      = 3
	DefaultMediaTTL = 25 * 24 * time.Hour

	// WhatsApp rejects image captions longer than this.
	captionMax = 1024
)

type Feed interface {
	FetchEntries(ctx context.Context) ([]feed.Entry, error)
}

// EmptyFeed is used when no content source is configured.
type EmptyFeed struct{}

func (EmptyFeed) FetchEntries(context.Context) ([]feed.Entry, error) { return nil, nil }

type Messenger interface {
	SendText(ctx context.Context, to, body string) (string, error)
	SendImage(ctx context.Context, to, mediaID, caption string) (string, error)
	UploadMedia(ctx context.Context, sourceURL string) (string, error)
}

type Options struct {
	BaseURL  string
	Max      int
	Location *time.Location
	MediaTTL time.Duration
}

type Pipeline struct {
	feed  Feed
	msg   Messenger
	media cache.MediaCache
	opts  Options

	uploads singleflight.Group
	now     func() time.Time
}

func NewPipeline(f Feed, m Messenger, media cache.MediaCache, opts Options) *Pipeline {
	if opts.Max <= 0 {
		opts.Max = DefaultMax
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.MediaTTL <= 0 {
		opts.MediaTTL = DefaultMediaTTL
	}
	return &Pipeline{
		feed:  f,
		msg:   m,
		media: media,
		opts:  opts,
		now:   time.Now,
	}
}

// Current fetches the feed and returns the events to show right now.
func (p *Pipeline) Current(ctx context.Context) ([]model.Event, error) {
	entries, err := p.feed.FetchEntries(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch events: %w", err)
	}
	return Select(feed.ResolveAll(entries), p.now(), p.opts.Max), nil
}

// Deliver sends the current events to a recipient. A feed failure is
// reported to the recipient with a friendly text and returned; per-event
// delivery failures are logged and never abort the batch.
func (p *Pipeline) Deliver(ctx context.Context, to string) error {
	evs, err := p.Current(ctx)
	if err != nil {
		if _, sendErr := p.msg.SendText(ctx, to, FetchErrorText); sendErr != nil {
			slog.Warn("events: failed to send fetch error notice", "phone", to, "error", sendErr)
		}
		return err
	}

	if len(evs) == 0 {
		_, err := p.msg.SendText(ctx, to, NoEventsText)
		return err
	}

	for i, ev := range evs {
		link := feed.DeepLink(p.opts.BaseURL, ev.Slug, ev.URL, ev.Title)
		body := Format(ev, link, p.opts.Location)

		slog.Info("events: sending event", "phone", to, "index", i+1, "total", len(evs), "event", ev.Title)
		if err := p.sendOne(ctx, to, ev, body); err != nil {
			slog.Error("events: failed to deliver event", "phone", to, "event", ev.Title, "error", err)
		}
	}
	return nil
}

func (p *Pipeline) sendOne(ctx context.Context, to string, ev model.Event, body string) error {
	if ev.ImageURL != "" && utf8.RuneCountInString(body) <= captionMax {
		err := p.sendImage(ctx, to, ev.ImageURL, body)
		if err == nil {
			return nil
		}
		slog.Warn("events: image delivery failed, falling back to text", "phone", to, "event", ev.Title, "error", err)
	}
	_, err := p.msg.SendText(ctx, to, body)
	return err
}

func (p *Pipeline) sendImage(ctx context.Context, to, sourceURL, caption string) error {
	mediaID, err := p.mediaID(ctx, sourceURL)
	if err != nil {
		return err
	}
	_, err = p.msg.SendImage(ctx, to, mediaID, caption)
	return err
}

// mediaID returns a cached upload for sourceURL or uploads it once, even
// when several recipients ask for the same image concurrently.
func (p *Pipeline) mediaID(ctx context.Context, sourceURL string) (string, error) {
	if p.media != nil {
		e, ok, err := p.media.Get(ctx, sourceURL)
		if err != nil {
			slog.Warn("events: media cache lookup failed", "url", sourceURL, "error", err)
		} else if ok {
			return e.MediaID, nil
		}
	}

	// The upload is shared by every waiter, so one caller going away must
	// not fail the others.
	shared := context.WithoutCancel(ctx)
	v, err, _ := p.uploads.Do(sourceURL, func() (any, error) {
		id, err := p.msg.UploadMedia(shared, sourceURL)
		if err != nil {
			return "", err
		}
		if p.media != nil {
			entry := model.MediaEntry{
				SourceURL: sourceURL,
				MediaID:   id,
				ExpiresAt: p.now().Add(p.opts.MediaTTL),
			}
			if err := p.media.Put(shared, entry); err != nil {
				slog.Warn("events: failed to cache media id", "url", sourceURL, "error", err)
			}
		}
		return id, nil
	})
	if err != nil {
		return "", fmt.Errorf("upload media: %w", err)
	}
	return v.(string), nil
}

// Select keeps events whose end day (or start day when there is no end)
// is today or later in UTC, orders them by start and caps the result.
func Select(evs []model.Event, now time.Time, max int) []model.Event {
	today := utcDay(now)

	out := make([]model.Event, 0, len(evs))
	for _, ev := range evs {
		var ref *time.Time
		switch {
		case ev.End != nil:
			ref = ev.End
		case ev.Start != nil:
			ref = ev.Start
		default:
			continue
		}
		if !utcDay(*ref).Before(today) {
			out = append(out, ev)
		}
	}

	if !slices.IsSortedFunc(out, compareStart) {
		slices.SortStableFunc(out, compareStart)
	}

	if max > 0 && len(out) > max {
		out = out[:max]
	}
	return out
}

// compareStart orders by start date; events without one sort by their end
// date.
func compareStart(a, b model.Event) int {
	return sortKey(a).Compare(sortKey(b))
}

func sortKey(ev model.Event) time.Time {
	if ev.Start != nil {
		return *ev.Start
	}
	return *ev.End
}

func utcDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
