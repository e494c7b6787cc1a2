package api

import (
	"net/http"

	"github.com/jdholdren/podwatch/internal/serverutil"
)

type (
	statsResp struct {
		TotalEpisodes int         `json:"total_episodes"`
		Shows         []showStats `json:"shows"`
	}

	showStats struct {
		ShowID   string `json:"show_id"`
		Name     string `json:"name"`
		Episodes int    `json:"episodes"`
		Latest   string `json:"latest,omitempty"`
	}
)

func (s Server) getStats(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()

	shows, err := s.repo.Shows(ctx)
	if err != nil {
		return err
	}
	counts, err := s.repo.EpisodeCounts(ctx)
	if err != nil {
		return err
	}
	latest, err := s.repo.LatestEpisodes(ctx)
	if err != nil {
		return err
	}

	resp := statsResp{Shows: make([]showStats, 0, len(shows))}
	for _, show := range shows {
		st := showStats{
			ShowID:   show.ID,
			Name:     show.Name,
			Episodes: counts[show.ID],
		}
		if ep, ok := latest[show.ID]; ok {
			st.Latest = ep.Number.String()
		}
		resp.TotalEpisodes += st.Episodes
		resp.Shows = append(resp.Shows, st)
	}

	return serverutil.WriteJSON(w, http.StatusOK, resp)
}
