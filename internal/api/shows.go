package api

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	goaway "github.com/TwiN/go-away"
	"github.com/gorilla/mux"

	"github.com/jdholdren/podwatch/internal/catalog"
	podwatcherrs "github.com/jdholdren/podwatch/internal/errors"
	"github.com/jdholdren/podwatch/internal/logger"
	"github.com/jdholdren/podwatch/internal/podwatch"
	"github.com/jdholdren/podwatch/internal/serverutil"
	"github.com/jdholdren/podwatch/internal/tracker"
)

type (
	ShowResp struct {
		ID       string `json:"id"`
		Name     string `json:"name"`
		Weekday  string `json:"weekday"`
		Kind     string `json:"kind"`
		Locator  string `json:"locator"`
		Strategy string `json:"strategy"`
		Label    string `json:"label,omitempty"`
		Link     string `json:"link,omitempty"`

		// Freshness for the current week
		Released  bool      `json:"released"`
		Heuristic bool      `json:"heuristic"`
		WeekStart time.Time `json:"week_start"`

		Latest *EpisodeResp `json:"latest,omitempty"`
	}

	EpisodeResp struct {
		ID          string       `json:"id"`
		Number      string       `json:"number"`
		Title       string       `json:"title"`
		PublishedAt time.Time    `json:"published_at"`
		Ratings     []RatingResp `json:"ratings"`
	}

	RatingResp struct {
		User  string `json:"user"`
		Score int    `json:"score"`
	}
)

func showResp(show podwatch.Show) ShowResp {
	return ShowResp{
		ID:       show.ID,
		Name:     show.Name,
		Weekday:  show.Weekday.String(),
		Kind:     string(show.Kind),
		Locator:  show.Locator,
		Strategy: string(show.Strategy),
		Label:    show.Label,
		Link:     show.Link,
	}
}

func episodeResp(ep podwatch.Episode, ratings []podwatch.Rating) EpisodeResp {
	resp := EpisodeResp{
		ID:          ep.ID,
		Number:      ep.Number.String(),
		Title:       ep.Title,
		PublishedAt: ep.PublishedAt,
		Ratings:     []RatingResp{},
	}
	for _, r := range ratings {
		resp.Ratings = append(resp.Ratings, RatingResp{User: r.User, Score: r.Score})
	}

	return resp
}

// Groups ratings by the episode they belong to.
func byEpisode(ratings []podwatch.Rating) map[string][]podwatch.Rating {
	m := make(map[string][]podwatch.Rating)
	for _, r := range ratings {
		m[r.EpisodeID] = append(m[r.EpisodeID], r)
	}
	return m
}

// Lists every show with whether it released this week, Sunday first.
func (s Server) getShows(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()

	shows, err := s.repo.Shows(ctx)
	if err != nil {
		return err
	}
	latest, err := s.repo.LatestEpisodes(ctx)
	if err != nil {
		return err
	}

	var episodeIDs []string
	for _, ep := range latest {
		episodeIDs = append(episodeIDs, ep.ID)
	}
	ratings, err := s.repo.RatingsForEpisodes(ctx, episodeIDs)
	if err != nil {
		return err
	}
	ratingsByEp := byEpisode(ratings)

	resps := make([]ShowResp, 0, len(shows))
	for _, show := range shows {
		var ep *podwatch.Episode
		if l, ok := latest[show.ID]; ok {
			ep = &l
		}

		status := s.evaluator.Evaluate(show, ep)
		resp := showResp(show)
		resp.Released = status.Released
		resp.Heuristic = status.Heuristic
		resp.WeekStart = status.WeekStart
		if ep != nil {
			er := episodeResp(*ep, ratingsByEp[ep.ID])
			resp.Latest = &er
		}
		resps = append(resps, resp)
	}

	return serverutil.WriteJSON(w, http.StatusOK, resps)
}

type addShowRequest struct {
	Name     string `json:"name" validate:"required|maxLen:200"`
	Weekday  string `json:"weekday" validate:"required"`
	Kind     string `json:"kind" validate:"required|in:rss,youtube"`
	Locator  string `json:"locator" validate:"required|maxLen:2048"`
	Strategy string `json:"strategy" validate:"required"`
	Label    string `json:"label" validate:"maxLen:200"`
	Link     string `json:"link" validate:"maxLen:2048"`
}

func (req addShowRequest) Validate() error {
	if err := serverutil.ValidateStruct(&req); err != nil {
		return err
	}

	var details []podwatcherrs.Detail
	if _, err := podwatch.ParseWeekday(req.Weekday); err != nil {
		details = append(details, podwatcherrs.Detail{Field: "weekday", Error: err.Error()})
	}
	if _, err := podwatch.ParseStrategy(req.Strategy); err != nil {
		details = append(details, podwatcherrs.Detail{Field: "strategy", Error: err.Error()})
	}
	if podwatch.SourceKind(req.Kind) == podwatch.SourceRSS {
		if u, err := url.ParseRequestURI(req.Locator); err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			details = append(details, podwatcherrs.Detail{Field: "locator", Error: "must be an http(s) url"})
		}
	}
	if len(details) > 0 {
		return podwatcherrs.E("invalid show", http.StatusBadRequest, details)
	}

	return nil
}

type addShowResp struct {
	Show     ShowResp       `json:"show"`
	Backfill tracker.Report `json:"backfill"`
}

// Adds a show and loads its history. A failed backfill doesn't undo the
// show; the next cycle picks it up.
func (s Server) postShows(w http.ResponseWriter, r *http.Request) error {
	req, err := serverutil.DecodeValid[addShowRequest](r.Body)
	if err != nil {
		return err
	}
	if goaway.IsProfane(req.Name) {
		return podwatcherrs.E("profanity detected in show name", http.StatusUnprocessableEntity)
	}

	show, err := catalog.Entry{
		Name:     req.Name,
		Weekday:  req.Weekday,
		Kind:     req.Kind,
		Locator:  req.Locator,
		Strategy: req.Strategy,
		Label:    strings.TrimSpace(req.Label),
		Link:     strings.TrimSpace(req.Link),
	}.ToShow()
	if err != nil {
		return podwatcherrs.E(err, http.StatusBadRequest)
	}

	show, err = s.repo.InsertShow(r.Context(), show)
	if errors.Is(err, podwatch.ErrConflict) {
		return podwatcherrs.E("a show with that feed already exists", http.StatusConflict)
	}
	if err != nil {
		return err
	}

	ctx := logger.Ctx(r.Context(), slog.String("show_id", show.ID))
	report, err := s.backfiller.Backfill(ctx, show.ID)
	if err != nil {
		slog.WarnContext(ctx, "backfill after adding show failed", "error", err)
		report.Error = err.Error()
	}

	return serverutil.WriteJSON(w, http.StatusCreated, addShowResp{
		Show:     showResp(show),
		Backfill: report,
	})
}

type correctLocatorRequest struct {
	Locator string `json:"locator" validate:"required|maxLen:2048"`
}

func (req correctLocatorRequest) Validate() error {
	return serverutil.ValidateStruct(&req)
}

// Corrects where a show's feed lives, the only change a show allows.
func (s Server) patchShow(w http.ResponseWriter, r *http.Request) error {
	var (
		ctx    = r.Context()
		showID = mux.Vars(r)["showID"]
	)

	req, err := serverutil.DecodeValid[correctLocatorRequest](r.Body)
	if err != nil {
		return err
	}

	show, err := s.repo.Show(ctx, showID)
	if err != nil {
		return httpErr(err)
	}
	locator := strings.TrimSpace(req.Locator)
	if show.Kind == podwatch.SourceRSS {
		if u, err := url.ParseRequestURI(locator); err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			return podwatcherrs.E("invalid locator", http.StatusBadRequest,
				podwatcherrs.Detail{Field: "locator", Error: "must be an http(s) url"})
		}
	}

	err = s.repo.UpdateShowLocator(ctx, showID, locator)
	if errors.Is(err, podwatch.ErrConflict) {
		return podwatcherrs.E("a show with that feed already exists", http.StatusConflict)
	}
	if err != nil {
		return httpErr(err)
	}

	slog.InfoContext(ctx, "corrected show locator", "show_id", showID, "from", show.Locator, "to", locator)

	show, err = s.repo.Show(ctx, showID)
	if err != nil {
		return err
	}
	return serverutil.WriteJSON(w, http.StatusOK, showResp(show))
}

// Removes a show with its episodes and ratings.
func (s Server) deleteShow(w http.ResponseWriter, r *http.Request) error {
	showID := mux.Vars(r)["showID"]

	if err := s.repo.DeleteShow(r.Context(), showID); err != nil {
		return httpErr(err)
	}

	w.WriteHeader(http.StatusNoContent)
	return nil
}

type episodesResp struct {
	Episodes []EpisodeResp `json:"episodes"`
	Meta     paginationMeta `json:"meta"`
}

// Lists a show's episodes, newest first, with their ratings.
func (s Server) getEpisodes(w http.ResponseWriter, r *http.Request) error {
	var (
		ctx           = r.Context()
		showID        = mux.Vars(r)["showID"]
		limit, offset = parsePaginationParams(r, defaultEpisodeLimit, maxEpisodeLimit)
	)

	if _, err := s.repo.Show(ctx, showID); err != nil {
		return httpErr(err)
	}

	eps, err := s.repo.Episodes(ctx, showID, limit, offset)
	if err != nil {
		return err
	}
	counts, err := s.repo.EpisodeCounts(ctx)
	if err != nil {
		return err
	}

	ids := make([]string, 0, len(eps))
	for _, ep := range eps {
		ids = append(ids, ep.ID)
	}
	ratings, err := s.repo.RatingsForEpisodes(ctx, ids)
	if err != nil {
		return err
	}
	ratingsByEp := byEpisode(ratings)

	resp := episodesResp{
		Episodes: make([]EpisodeResp, 0, len(eps)),
		Meta:     paginationMeta{Limit: limit, Offset: offset, Total: counts[showID]},
	}
	for _, ep := range eps {
		resp.Episodes = append(resp.Episodes, episodeResp(ep, ratingsByEp[ep.ID]))
	}

	return serverutil.WriteJSON(w, http.StatusOK, resp)
}

// Runs a backfill for one show right away.
func (s Server) postSync(w http.ResponseWriter, r *http.Request) error {
	showID := mux.Vars(r)["showID"]

	report, err := s.backfiller.Backfill(r.Context(), showID)
	if err != nil {
		return httpErr(err)
	}

	return serverutil.WriteJSON(w, http.StatusOK, report)
}
