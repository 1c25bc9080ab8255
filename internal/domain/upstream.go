package domain

// EndpointKind names one of the upstream statistics endpoints.
type EndpointKind int

const (
	EndpointPlayerRank EndpointKind = iota + 1
	EndpointTeamRank
	EndpointLeaderboard
)

func (k EndpointKind) String() string {
	switch k {
	case EndpointPlayerRank:
		return "player_rank"
	case EndpointTeamRank:
		return "team_rank"
	case EndpointLeaderboard:
		return "leaderboard"
	default:
		return "unknown"
	}
}

// QueryParam is a single query-string pair.
type QueryParam struct {
	Key   string
	Value string
}

// UpstreamQuery describes one request to a statistics endpoint. Params keep
// insertion order so generated URLs are reproducible.
type UpstreamQuery struct {
	Kind   EndpointKind
	Params []QueryParam
}

// RosterEntry is a tracked player on the server leaderboard.
type RosterEntry struct {
	PlayerID string `json:"playerId" yaml:"playerId"`
	Comment  string `json:"comment,omitempty" yaml:"comment,omitempty"`
}
