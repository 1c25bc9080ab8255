package upstream

import (
	"strconv"
	"strings"

	"aoe2bot/internal/domain"
)

const (
	soloLeaderboardID = "3"
	teamLeaderboardID = "4"
)

// PlayerRankQuery asks for a player's 1v1 random map rank.
func PlayerRankQuery(player, profileID string) domain.UpstreamQuery {
	return rankQuery(domain.EndpointPlayerRank, soloLeaderboardID, player, profileID)
}

// TeamRankQuery asks for a player's team random map rank.
func TeamRankQuery(player, profileID string) domain.UpstreamQuery {
	return rankQuery(domain.EndpointTeamRank, teamLeaderboardID, player, profileID)
}

func rankQuery(kind domain.EndpointKind, leaderboardID, player, profileID string) domain.UpstreamQuery {
	return domain.UpstreamQuery{
		Kind: kind,
		Params: []domain.QueryParam{
			{Key: "leaderboard_id", Value: leaderboardID},
			{Key: "search", Value: player},
			{Key: "profile_id", Value: profileID},
			{Key: "flag", Value: "true"},
		},
	}
}

// LeaderboardQuery asks for the global ranks of every roster player.
func LeaderboardQuery(roster []domain.RosterEntry, limit int) domain.UpstreamQuery {
	ids := make([]string, 0, len(roster))
	for _, r := range roster {
		ids = append(ids, r.PlayerID)
	}
	return domain.UpstreamQuery{
		Kind: domain.EndpointLeaderboard,
		Params: []domain.QueryParam{
			{Key: "user_ids", Value: strings.Join(ids, ",")},
			{Key: "rank", Value: "global"},
			{Key: "limit", Value: strconv.Itoa(limit)},
		},
	}
}
