package api

import (
	"context"
	"net/http"
	"strings"

	podwatcherrs "github.com/jdholdren/podwatch/internal/errors"
	"github.com/jdholdren/podwatch/internal/podwatch"
	"github.com/jdholdren/podwatch/internal/serverutil"
)

type ratingRequest struct {
	ShowID string `json:"show_id" validate:"required"`
	// Episode is the episode number. Empty rates the latest one.
	Episode string `json:"episode"`
	User    string `json:"user" validate:"required|maxLen:64"`
	Score   int    `json:"score" validate:"required|min:1|max:10"`
}

func (req ratingRequest) Validate() error {
	return serverutil.ValidateStruct(&req)
}

// Finds the episode a rating targets: by number, or the show's latest.
func (s Server) ratedEpisode(ctx context.Context, showID, number string) (podwatch.Episode, error) {
	if _, err := s.repo.Show(ctx, showID); err != nil {
		return podwatch.Episode{}, httpErr(err)
	}

	if strings.TrimSpace(number) == "" {
		ep, err := s.repo.LatestEpisode(ctx, showID)
		if err != nil {
			return podwatch.Episode{}, httpErr(err)
		}
		return ep, nil
	}

	n, err := podwatch.ParseEpisodeNumber(number)
	if err != nil {
		return podwatch.Episode{}, podwatcherrs.E(err, http.StatusBadRequest, podwatcherrs.Detail{Field: "episode", Error: err.Error()})
	}
	ep, err := s.repo.EpisodeByNumber(ctx, showID, n)
	if err != nil {
		return podwatch.Episode{}, httpErr(err)
	}

	return ep, nil
}

type ratingResp struct {
	ShowID    string `json:"show_id"`
	EpisodeID string `json:"episode_id"`
	Episode   string `json:"episode"`
	User      string `json:"user"`
	Score     int    `json:"score"`
}

func (s Server) putRating(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()
	req, err := serverutil.DecodeValid[ratingRequest](r.Body)
	if err != nil {
		return err
	}

	ep, err := s.ratedEpisode(ctx, req.ShowID, req.Episode)
	if err != nil {
		return err
	}

	rating, err := s.repo.UpsertRating(ctx, podwatch.Rating{
		ShowID:    ep.ShowID,
		EpisodeID: ep.ID,
		User:      strings.TrimSpace(req.User),
		Score:     req.Score,
	})
	if err != nil {
		return err
	}

	return serverutil.WriteJSON(w, http.StatusOK, ratingResp{
		ShowID:    rating.ShowID,
		EpisodeID: rating.EpisodeID,
		Episode:   ep.Number.String(),
		User:      rating.User,
		Score:     rating.Score,
	})
}

// Clears a rating. Takes ?show_id=&user= and an optional &episode=.
func (s Server) deleteRating(w http.ResponseWriter, r *http.Request) error {
	var (
		ctx    = r.Context()
		query  = r.URL.Query()
		showID = query.Get("show_id")
		user   = strings.TrimSpace(query.Get("user"))
	)

	var details []podwatcherrs.Detail
	if showID == "" {
		details = append(details, podwatcherrs.Detail{Field: "show_id", Error: "is required"})
	}
	if user == "" {
		details = append(details, podwatcherrs.Detail{Field: "user", Error: "is required"})
	}
	if len(details) > 0 {
		return podwatcherrs.E("invalid request", http.StatusBadRequest, details)
	}

	ep, err := s.ratedEpisode(ctx, showID, query.Get("episode"))
	if err != nil {
		return err
	}

	if err := s.repo.DeleteRating(ctx, ep.ID, user); err != nil {
		return httpErr(err)
	}

	w.WriteHeader(http.StatusNoContent)
	return nil
}
