package repository

// ActivityRecord: activities table.
type ActivityRecord struct {
	ID                 string  `gorm:"column:id;primaryKey;size:64"`
	Name               string  `gorm:"column:name;not null;default:''"`
	About              string  `gorm:"column:about;not null;default:''"`
	MinTeamsPerMatch   int     `gorm:"column:min_teams_per_match;not null"`
	MaxTeamsPerMatch   int     `gorm:"column:max_teams_per_match;not null;default:0"`
	MinPlayersPerTeam  int     `gorm:"column:min_players_per_team;not null"`
	MaxPlayersPerTeam  int     `gorm:"column:max_players_per_team;not null;default:0"`
	InitialMean        float64 `gorm:"column:initial_mean;not null"`
	InitialUncertainty float64 `gorm:"column:initial_uncertainty;not null"`
	Beta               float64 `gorm:"column:skill_chain;not null"`
	Tau                float64 `gorm:"column:dynamics_factor;not null"`
	DrawProbability    float64 `gorm:"column:draw_probability;not null"`
	MinSkill           float64 `gorm:"column:min_skill;not null"`
	MaxSkill           float64 `gorm:"column:max_skill;not null"`
}

// TableName fixes the table name.
func (ActivityRecord) TableName() string { return "activities" }

// PlayerRecord: players table.
type PlayerRecord struct {
	ID     int64  `gorm:"column:id;primaryKey;autoIncrement"`
	Name   string `gorm:"column:name;not null;default:''"`
	Email  string `gorm:"column:email;not null;default:''"`
	Active bool   `gorm:"column:active;not null"`
}

// TableName fixes the table name.
func (PlayerRecord) TableName() string { return "players" }

// SessionRecord: game_sessions table. Validated is NULL while pending.
type SessionRecord struct {
	ID          int64         `gorm:"column:id;primaryKey;autoIncrement"`
	ActivityID  string        `gorm:"column:activity_id;not null;size:64;index:idx_game_sessions_activity_status,priority:1"`
	Validated   *bool         `gorm:"column:validated;index:idx_game_sessions_activity_status,priority:2"`
	SubmittedAt int64         `gorm:"column:submitted_at;not null"`
	Submitter   string        `gorm:"column:submitter;not null;default:''"`
	Teams       []TeamRecord  `gorm:"foreignKey:SessionID;constraint:OnDelete:CASCADE"`
	Matches     []MatchRecord `gorm:"foreignKey:SessionID;constraint:OnDelete:CASCADE"`
}

// TableName fixes the table name.
func (SessionRecord) TableName() string { return "game_sessions" }

// TeamRecord: adhoc_teams table.
type TeamRecord struct {
	ID        int64          `gorm:"column:id;primaryKey;autoIncrement"`
	SessionID int64          `gorm:"column:session_id;not null;index"`
	Slot      int            `gorm:"column:slot;not null"`
	Members   []MemberRecord `gorm:"foreignKey:TeamID;constraint:OnDelete:CASCADE"`
}

// TableName fixes the table name.
func (TeamRecord) TableName() string { return "adhoc_teams" }

// MemberRecord: team_members table.
type MemberRecord struct {
	ID       int64 `gorm:"column:id;primaryKey;autoIncrement"`
	TeamID   int64 `gorm:"column:team_id;not null;index"`
	PlayerID int64 `gorm:"column:player_id;not null;index"`
	Position int   `gorm:"column:position;not null"`
}

// TableName fixes the table name.
func (MemberRecord) TableName() string { return "team_members" }

// MatchRecord: games table.
type MatchRecord struct {
	ID          int64          `gorm:"column:id;primaryKey;autoIncrement"`
	SessionID   int64          `gorm:"column:session_id;not null;index"`
	Position    int            `gorm:"column:position;not null"`
	SubmittedAt int64          `gorm:"column:submitted_at;not null"`
	Results     []ResultRecord `gorm:"foreignKey:MatchID;constraint:OnDelete:CASCADE"`
}

// TableName fixes the table name.
func (MatchRecord) TableName() string { return "games" }

// ResultRecord: results table.
type ResultRecord struct {
	ID      int64 `gorm:"column:id;primaryKey;autoIncrement"`
	MatchID int64 `gorm:"column:match_id;not null;index"`
	TeamID  int64 `gorm:"column:team_id;not null"`
	Rank    int   `gorm:"column:rank;not null"`
}

// TableName fixes the table name.
func (ResultRecord) TableName() string { return "results" }

// RankingRecord: rankings table, one row per (activity, player).
type RankingRecord struct {
	ID          int64   `gorm:"column:id;primaryKey;autoIncrement"`
	ActivityID  string  `gorm:"column:activity_id;not null;size:64;uniqueIndex:idx_rankings_activity_player,priority:1"`
	PlayerID    int64   `gorm:"column:player_id;not null;uniqueIndex:idx_rankings_activity_player,priority:2"`
	Mean        float64 `gorm:"column:mu;not null"`
	Uncertainty float64 `gorm:"column:sigma;not null"`
}

// TableName fixes the table name.
func (RankingRecord) TableName() string { return "rankings" }

// HistoryRecord: skill_histories table. ID doubles as the ledger sequence.
type HistoryRecord struct {
	ID          int64   `gorm:"column:id;primaryKey;autoIncrement"`
	ActivityID  string  `gorm:"column:activity_id;not null;size:64;index:idx_skill_histories_activity_player,priority:1"`
	PlayerID    int64   `gorm:"column:player_id;not null;index:idx_skill_histories_activity_player,priority:2;uniqueIndex:idx_skill_histories_player_result,priority:1"`
	ResultID    int64   `gorm:"column:result_id;not null;uniqueIndex:idx_skill_histories_player_result,priority:2"`
	SessionID   int64   `gorm:"column:session_id;not null"`
	MatchID     int64   `gorm:"column:match_id;not null"`
	Mean        float64 `gorm:"column:mu;not null"`
	Uncertainty float64 `gorm:"column:sigma;not null"`
	SubmittedAt int64   `gorm:"column:submitted_at;not null"`
}

// TableName fixes the table name.
func (HistoryRecord) TableName() string { return "skill_histories" }
