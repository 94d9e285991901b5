package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/okian/skillboard/internal/domain/model"
	"github.com/okian/skillboard/pkg/logger"
)

// Supported SQL drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

const (
	defaultBatchSize = 200
	maxInParams      = 500
)

// GormStore is a Store backed by gorm over sqlite or postgres.
type GormStore struct {
	db          *gorm.DB
	log         logger.Logger
	batchSize   int
	autoMigrate bool
}

var _ Store = (*GormStore)(nil)

// Open connects to driver/dsn and, unless disabled, migrates the schema.
func Open(ctx context.Context, driver, dsn string, opts ...Option) (*GormStore, error) {
	var dialector gorm.Dialector
	switch driver {
	case DriverSQLite:
		dialector = sqlite.Open(dsn)
	case DriverPostgres:
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported store driver %q", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if driver == DriverSQLite {
		// sqlite allows one writer; a single connection also keeps :memory: databases alive.
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("sqlite handle: %w", err)
		}
		sqlDB.SetMaxOpenConns(1)
		sqlDB.SetMaxIdleConns(1)
	}

	s := NewGormStore(db, opts...)
	if s.autoMigrate {
		if err := s.AutoMigrate(ctx); err != nil {
			_ = s.Close()
			return nil, err
		}
	}
	return s, nil
}

// NewGormStore wraps an existing gorm handle. The schema is not migrated.
func NewGormStore(db *gorm.DB, opts ...Option) *GormStore {
	s := &GormStore{
		db:          db,
		log:         logger.Discard(),
		batchSize:   defaultBatchSize,
		autoMigrate: true,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AutoMigrate creates or updates every table.
func (s *GormStore) AutoMigrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(
		&ActivityRecord{},
		&PlayerRecord{},
		&SessionRecord{},
		&TeamRecord{},
		&MemberRecord{},
		&MatchRecord{},
		&ResultRecord{},
		&RankingRecord{},
		&HistoryRecord{},
	); err != nil {
		return fmt.Errorf("auto migrate failed: %w", err)
	}
	s.log.Debug(ctx, "schema migrated")
	return nil
}

// Close closes the underlying connection pool.
func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// SaveActivity implements ActivityStore.
func (s *GormStore) SaveActivity(ctx context.Context, a model.Activity) error {
	rec := activityRecord(a)
	if err := s.db.WithContext(ctx).Save(&rec).Error; err != nil {
		return fmt.Errorf("save activity %q: %w", a.ID, err)
	}
	return nil
}

// Activity implements ActivityStore.
func (s *GormStore) Activity(ctx context.Context, id model.ActivityID) (model.Activity, error) {
	var recs []ActivityRecord
	if err := s.db.WithContext(ctx).Where("id = ?", string(id)).Limit(1).Find(&recs).Error; err != nil {
		return model.Activity{}, fmt.Errorf("load activity %q: %w", id, err)
	}
	if len(recs) == 0 {
		return model.Activity{}, fmt.Errorf("%w: activity %q", ErrNotFound, id)
	}
	return recs[0].toModel(), nil
}

// Activities implements ActivityStore.
func (s *GormStore) Activities(ctx context.Context) ([]model.Activity, error) {
	var recs []ActivityRecord
	if err := s.db.WithContext(ctx).Order("id").Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("list activities: %w", err)
	}
	out := make([]model.Activity, len(recs))
	for i := range recs {
		out[i] = recs[i].toModel()
	}
	return out, nil
}

// SavePlayer implements PlayerStore.
func (s *GormStore) SavePlayer(ctx context.Context, p model.Player) (model.Player, error) {
	rec := PlayerRecord{ID: int64(p.ID), Name: p.Name, Email: p.Email, Active: p.Active}
	var err error
	if rec.ID == 0 {
		err = s.db.WithContext(ctx).Create(&rec).Error
	} else {
		err = s.db.WithContext(ctx).Save(&rec).Error
	}
	if err != nil {
		return model.Player{}, fmt.Errorf("save player: %w", err)
	}
	p.ID = model.PlayerID(rec.ID)
	return p, nil
}

// Player implements PlayerStore.
func (s *GormStore) Player(ctx context.Context, id model.PlayerID) (model.Player, error) {
	var recs []PlayerRecord
	if err := s.db.WithContext(ctx).Where("id = ?", int64(id)).Limit(1).Find(&recs).Error; err != nil {
		return model.Player{}, fmt.Errorf("load player %d: %w", id, err)
	}
	if len(recs) == 0 {
		return model.Player{}, fmt.Errorf("%w: player %d", ErrNotFound, id)
	}
	return recs[0].toModel(), nil
}

// Players implements PlayerStore.
func (s *GormStore) Players(ctx context.Context) ([]model.Player, error) {
	var recs []PlayerRecord
	if err := s.db.WithContext(ctx).Order("id").Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("list players: %w", err)
	}
	out := make([]model.Player, len(recs))
	for i := range recs {
		out[i] = recs[i].toModel()
	}
	return out, nil
}

// CreateSession implements SessionStore.
func (s *GormStore) CreateSession(ctx context.Context, in model.Session) (model.Session, error) {
	if err := checkSlots(in); err != nil {
		return model.Session{}, err
	}
	var id int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&ActivityRecord{}).Where("id = ?", string(in.Activity)).Count(&n).Error; err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("%w: activity %q", ErrNotFound, in.Activity)
		}

		rec := SessionRecord{
			ActivityID:  string(in.Activity),
			SubmittedAt: toNanos(in.SubmittedAt),
			Submitter:   in.Submitter,
		}
		if err := tx.Omit(clause.Associations).Create(&rec).Error; err != nil {
			return err
		}

		teamIDs := make([]int64, len(in.Teams))
		for i, t := range in.Teams {
			tr := TeamRecord{SessionID: rec.ID, Slot: i}
			if err := tx.Omit(clause.Associations).Create(&tr).Error; err != nil {
				return err
			}
			teamIDs[i] = tr.ID
			for j, p := range t.Members {
				if err := tx.Create(&MemberRecord{TeamID: tr.ID, PlayerID: int64(p), Position: j}).Error; err != nil {
					return err
				}
			}
		}

		for _, m := range in.Matches {
			at := toNanos(m.SubmittedAt)
			if at == 0 {
				at = rec.SubmittedAt
			}
			mr := MatchRecord{SessionID: rec.ID, Position: m.Position, SubmittedAt: at}
			if err := tx.Omit(clause.Associations).Create(&mr).Error; err != nil {
				return err
			}
			for _, r := range m.Results {
				rr := ResultRecord{MatchID: mr.ID, TeamID: teamIDs[int(r.Team)], Rank: r.Rank}
				if err := tx.Create(&rr).Error; err != nil {
					return err
				}
			}
		}
		id = rec.ID
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return model.Session{}, err
		}
		return model.Session{}, fmt.Errorf("create session: %w", err)
	}

	out, err := s.Sessions(ctx, []model.SessionID{model.SessionID(id)})
	if err != nil {
		return model.Session{}, err
	}
	return out[0], nil
}

func preloadSession(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Teams", func(db *gorm.DB) *gorm.DB { return db.Order("slot, id") }).
		Preload("Teams.Members", func(db *gorm.DB) *gorm.DB { return db.Order("position, id") }).
		Preload("Matches", func(db *gorm.DB) *gorm.DB { return db.Order("position, submitted_at, id") }).
		Preload("Matches.Results", func(db *gorm.DB) *gorm.DB { return db.Order("id") })
}

// Sessions implements SessionStore.
func (s *GormStore) Sessions(ctx context.Context, ids []model.SessionID) ([]model.Session, error) {
	byID := make(map[int64]SessionRecord, len(ids))
	for _, chunk := range chunkIDs(sessionKeys(ids)) {
		var recs []SessionRecord
		if err := preloadSession(s.db.WithContext(ctx)).Where("id IN ?", chunk).Find(&recs).Error; err != nil {
			return nil, fmt.Errorf("load sessions: %w", err)
		}
		for _, r := range recs {
			byID[r.ID] = r
		}
	}

	out := make([]model.Session, 0, len(ids))
	for _, id := range ids {
		rec, ok := byID[int64(id)]
		if !ok {
			return nil, fmt.Errorf("%w: session %d", ErrNotFound, id)
		}
		out = append(out, rec.toModel())
	}
	return out, nil
}

// SessionsByStatus implements SessionStore.
func (s *GormStore) SessionsByStatus(ctx context.Context, activity model.ActivityID, status model.ValidationStatus) ([]model.Session, error) {
	q := preloadSession(s.db.WithContext(ctx)).Where("activity_id = ?", string(activity))
	switch status {
	case model.Pending:
		q = q.Where("validated IS NULL")
	case model.Validated:
		q = q.Where("validated = ?", true)
	default:
		q = q.Where("validated = ?", false)
	}

	var recs []SessionRecord
	if err := q.Order("id").Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("list %s sessions of %q: %w", status, activity, err)
	}
	out := make([]model.Session, len(recs))
	for i := range recs {
		out[i] = recs[i].toModel()
	}
	return out, nil
}

// SetStatus implements SessionStore.
func (s *GormStore) SetStatus(ctx context.Context, ids []model.SessionID, status model.ValidationStatus) error {
	if len(ids) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		keys := sessionKeys(ids)
		if err := requireSessions(tx, keys); err != nil {
			return err
		}
		var value any = gorm.Expr("NULL")
		if status != model.Pending {
			value = status == model.Validated
		}
		for _, chunk := range chunkIDs(keys) {
			if err := tx.Model(&SessionRecord{}).Where("id IN ?", chunk).Update("validated", value).Error; err != nil {
				return fmt.Errorf("set status: %w", err)
			}
		}
		return nil
	})
}

// ReplacePlayer implements SessionStore.
func (s *GormStore) ReplacePlayer(ctx context.Context, ids []model.SessionID, from, to model.PlayerID) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	var replaced int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		keys := sessionKeys(ids)
		if err := requireSessions(tx, keys); err != nil {
			return err
		}
		for _, id := range keys {
			var teamIDs []int64
			if err := tx.Model(&TeamRecord{}).Where("session_id = ?", id).Pluck("id", &teamIDs).Error; err != nil {
				return err
			}
			if len(teamIDs) == 0 {
				continue
			}
			var clash int64
			if err := tx.Model(&MemberRecord{}).Where("team_id IN ? AND player_id = ?", teamIDs, int64(to)).Count(&clash).Error; err != nil {
				return err
			}
			if clash > 0 {
				return fmt.Errorf("%w: player %d already plays in session %d", ErrInvalidSession, to, id)
			}
			res := tx.Model(&MemberRecord{}).Where("team_id IN ? AND player_id = ?", teamIDs, int64(from)).Update("player_id", int64(to))
			if res.Error != nil {
				return res.Error
			}
			replaced += res.RowsAffected
		}
		return nil
	})
	if err != nil {
		return 0, wrapStoreErr("replace player", err)
	}
	return int(replaced), nil
}

// Rating implements RatingStore.
func (s *GormStore) Rating(ctx context.Context, activity model.ActivityID, player model.PlayerID) (model.Belief, bool, error) {
	var recs []RankingRecord
	err := s.db.WithContext(ctx).
		Where("activity_id = ? AND player_id = ?", string(activity), int64(player)).
		Limit(1).Find(&recs).Error
	if err != nil {
		return model.Belief{}, false, fmt.Errorf("load rating: %w", err)
	}
	if len(recs) == 0 {
		return model.Belief{}, false, nil
	}
	return model.Belief{Mean: recs[0].Mean, Uncertainty: recs[0].Uncertainty}, true, nil
}

// Ratings implements RatingStore.
func (s *GormStore) Ratings(ctx context.Context, activity model.ActivityID) (model.Ratings, error) {
	var recs []RankingRecord
	if err := s.db.WithContext(ctx).Where("activity_id = ?", string(activity)).Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("load ratings of %q: %w", activity, err)
	}
	out := make(model.Ratings, len(recs))
	for _, r := range recs {
		out[model.PlayerID(r.PlayerID)] = model.Belief{Mean: r.Mean, Uncertainty: r.Uncertainty}
	}
	return out, nil
}

// History implements HistoryStore.
func (s *GormStore) History(ctx context.Context, activity model.ActivityID, player model.PlayerID) ([]model.SkillHistory, error) {
	var recs []HistoryRecord
	err := s.db.WithContext(ctx).
		Where("activity_id = ? AND player_id = ?", string(activity), int64(player)).
		Order("id").Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	return historyModels(recs), nil
}

// ActivityHistory implements HistoryStore.
func (s *GormStore) ActivityHistory(ctx context.Context, activity model.ActivityID) ([]model.SkillHistory, error) {
	var recs []HistoryRecord
	if err := s.db.WithContext(ctx).Where("activity_id = ?", string(activity)).Order("id").Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("load history of %q: %w", activity, err)
	}
	return historyModels(recs), nil
}

// HistoryCount implements HistoryStore.
func (s *GormStore) HistoryCount(ctx context.Context, activity model.ActivityID) (int, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&HistoryRecord{}).Where("activity_id = ?", string(activity)).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count history of %q: %w", activity, err)
	}
	return int(n), nil
}

// Commit implements Store inside a single transaction.
func (s *GormStore) Commit(ctx context.Context, c Changeset) error {
	act := string(c.Activity)
	fresh := make(map[historyKey]struct{}, len(c.History))
	for _, h := range c.History {
		if h.Activity != c.Activity {
			return fmt.Errorf("%w: history for %q in a changeset of %q", ErrInvalidSession, h.Activity, c.Activity)
		}
		k := historyKey{h.Player, h.Result}
		if _, dup := fresh[k]; dup {
			return fmt.Errorf("%w: player %d result %d", ErrDuplicateHistory, h.Player, h.Result)
		}
		fresh[k] = struct{}{}
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := checkPending(tx, act, sessionKeys(c.Validate)); err != nil {
			return err
		}

		if c.Reset {
			if err := tx.Where("activity_id = ?", act).Delete(&RankingRecord{}).Error; err != nil {
				return fmt.Errorf("reset ratings: %w", err)
			}
			if err := tx.Where("activity_id = ?", act).Delete(&HistoryRecord{}).Error; err != nil {
				return fmt.Errorf("reset history: %w", err)
			}
		}

		if err := checkRecorded(tx, fresh); err != nil {
			return err
		}

		if len(c.Ratings) > 0 {
			rows := make([]RankingRecord, 0, len(c.Ratings))
			for _, p := range c.Ratings.Players() {
				b := c.Ratings[p]
				rows = append(rows, RankingRecord{ActivityID: act, PlayerID: int64(p), Mean: b.Mean, Uncertainty: b.Uncertainty})
			}
			err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "activity_id"}, {Name: "player_id"}},
				DoUpdates: clause.AssignmentColumns([]string{"mu", "sigma"}),
			}).CreateInBatches(&rows, s.batchSize).Error
			if err != nil {
				return fmt.Errorf("upsert ratings: %w", err)
			}
		}

		if len(c.History) > 0 {
			rows := make([]HistoryRecord, len(c.History))
			for i, h := range c.History {
				rows[i] = HistoryRecord{
					ActivityID:  act,
					PlayerID:    int64(h.Player),
					ResultID:    int64(h.Result),
					SessionID:   int64(h.Session),
					MatchID:     int64(h.Match),
					Mean:        h.Belief.Mean,
					Uncertainty: h.Belief.Uncertainty,
					SubmittedAt: toNanos(h.SubmittedAt),
				}
			}
			if err := tx.CreateInBatches(&rows, s.batchSize).Error; err != nil {
				return fmt.Errorf("append history: %w", err)
			}
		}

		for _, chunk := range chunkIDs(sessionKeys(c.Validate)) {
			if err := tx.Model(&SessionRecord{}).Where("id IN ?", chunk).Update("validated", true).Error; err != nil {
				return fmt.Errorf("mark validated: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return wrapStoreErr("commit", err)
	}

	s.log.Debug(ctx, "changeset committed",
		logger.String("activity", act),
		logger.Bool("reset", c.Reset),
		logger.Int("ratings", len(c.Ratings)),
		logger.Int("history", len(c.History)),
		logger.Int("validated", len(c.Validate)),
	)
	return nil
}

func checkPending(tx *gorm.DB, activity string, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	found := make(map[int64]SessionRecord, len(ids))
	for _, chunk := range chunkIDs(ids) {
		var recs []SessionRecord
		if err := tx.Select("id", "activity_id", "validated").Where("id IN ?", chunk).Find(&recs).Error; err != nil {
			return err
		}
		for _, r := range recs {
			found[r.ID] = r
		}
	}
	for _, id := range ids {
		rec, ok := found[id]
		switch {
		case !ok:
			return fmt.Errorf("%w: session %d", ErrNotFound, id)
		case rec.ActivityID != activity:
			return fmt.Errorf("%w: session %d belongs to %q", ErrInvalidSession, id, rec.ActivityID)
		case rec.Validated != nil:
			return fmt.Errorf("%w: session %d is %s", ErrStatusConflict, id, statusOf(rec.Validated))
		}
	}
	return nil
}

func checkRecorded(tx *gorm.DB, fresh map[historyKey]struct{}) error {
	if len(fresh) == 0 {
		return nil
	}
	results := make([]int64, 0, len(fresh))
	seen := make(map[int64]struct{}, len(fresh))
	for k := range fresh {
		if _, ok := seen[int64(k.result)]; !ok {
			seen[int64(k.result)] = struct{}{}
			results = append(results, int64(k.result))
		}
	}
	sort.Slice(results, func(i, j int) bool { return results[i] < results[j] })
	for _, chunk := range chunkIDs(results) {
		var recs []HistoryRecord
		if err := tx.Select("player_id", "result_id").Where("result_id IN ?", chunk).Find(&recs).Error; err != nil {
			return err
		}
		for _, r := range recs {
			if _, ok := fresh[historyKey{model.PlayerID(r.PlayerID), model.ResultID(r.ResultID)}]; ok {
				return fmt.Errorf("%w: player %d result %d", ErrDuplicateHistory, r.PlayerID, r.ResultID)
			}
		}
	}
	return nil
}

func requireSessions(tx *gorm.DB, ids []int64) error {
	found := make(map[int64]struct{}, len(ids))
	for _, chunk := range chunkIDs(ids) {
		var got []int64
		if err := tx.Model(&SessionRecord{}).Where("id IN ?", chunk).Pluck("id", &got).Error; err != nil {
			return err
		}
		for _, id := range got {
			found[id] = struct{}{}
		}
	}
	for _, id := range ids {
		if _, ok := found[id]; !ok {
			return fmt.Errorf("%w: session %d", ErrNotFound, id)
		}
	}
	return nil
}

// wrapStoreErr keeps sentinel errors intact and maps unique violations.
func wrapStoreErr(op string, err error) error {
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrInvalidSession),
		errors.Is(err, ErrDuplicateHistory), errors.Is(err, ErrStatusConflict):
		return err
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%s: %w: %w", op, ErrDuplicateHistory, err)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}

// sessionKeys converts ids to int64 keys, dropping duplicates and keeping order.
func sessionKeys(ids []model.SessionID) []int64 {
	out := make([]int64, 0, len(ids))
	seen := make(map[model.SessionID]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, int64(id))
	}
	return out
}

func chunkIDs(ids []int64) [][]int64 {
	var out [][]int64
	for len(ids) > maxInParams {
		out = append(out, ids[:maxInParams])
		ids = ids[maxInParams:]
	}
	if len(ids) > 0 {
		out = append(out, ids)
	}
	return out
}

func statusOf(v *bool) model.ValidationStatus {
	switch {
	case v == nil:
		return model.Pending
	case *v:
		return model.Validated
	default:
		return model.Invalidated
	}
}

func activityRecord(a model.Activity) ActivityRecord {
	return ActivityRecord{
		ID:                 string(a.ID),
		Name:               a.Name,
		About:              a.About,
		MinTeamsPerMatch:   a.MinTeamsPerMatch,
		MaxTeamsPerMatch:   a.MaxTeamsPerMatch,
		MinPlayersPerTeam:  a.MinPlayersPerTeam,
		MaxPlayersPerTeam:  a.MaxPlayersPerTeam,
		InitialMean:        a.Skill.InitialMean,
		InitialUncertainty: a.Skill.InitialUncertainty,
		Beta:               a.Skill.Beta,
		Tau:                a.Skill.Tau,
		DrawProbability:    a.Skill.DrawProbability,
		MinSkill:           a.Skill.MinSkill,
		MaxSkill:           a.Skill.MaxSkill,
	}
}

func (r ActivityRecord) toModel() model.Activity {
	return model.Activity{
		ID:                model.ActivityID(r.ID),
		Name:              r.Name,
		About:             r.About,
		MinTeamsPerMatch:  r.MinTeamsPerMatch,
		MaxTeamsPerMatch:  r.MaxTeamsPerMatch,
		MinPlayersPerTeam: r.MinPlayersPerTeam,
		MaxPlayersPerTeam: r.MaxPlayersPerTeam,
		Skill: model.SkillType{
			InitialMean:        r.InitialMean,
			InitialUncertainty: r.InitialUncertainty,
			Beta:               r.Beta,
			Tau:                r.Tau,
			DrawProbability:    r.DrawProbability,
			MinSkill:           r.MinSkill,
			MaxSkill:           r.MaxSkill,
		},
	}
}

func (r PlayerRecord) toModel() model.Player {
	return model.Player{ID: model.PlayerID(r.ID), Name: r.Name, Email: r.Email, Active: r.Active}
}

func (r SessionRecord) toModel() model.Session {
	s := model.Session{
		ID:          model.SessionID(r.ID),
		Activity:    model.ActivityID(r.ActivityID),
		SubmittedAt: fromNanos(r.SubmittedAt),
		Submitter:   r.Submitter,
		Status:      statusOf(r.Validated),
		Teams:       make([]model.Team, len(r.Teams)),
		Matches:     make([]model.Match, len(r.Matches)),
	}
	for i, t := range r.Teams {
		members := make([]model.PlayerID, len(t.Members))
		for j, m := range t.Members {
			members[j] = model.PlayerID(m.PlayerID)
		}
		s.Teams[i] = model.Team{ID: model.TeamID(t.ID), Slot: t.Slot, Members: members}
	}
	for i, m := range r.Matches {
		results := make([]model.Result, len(m.Results))
		for j, res := range m.Results {
			results[j] = model.Result{ID: model.ResultID(res.ID), Team: model.TeamID(res.TeamID), Rank: res.Rank}
		}
		s.Matches[i] = model.Match{
			ID:          model.MatchID(m.ID),
			Position:    m.Position,
			SubmittedAt: fromNanos(m.SubmittedAt),
			Results:     results,
		}
	}
	return s
}

func historyModels(recs []HistoryRecord) []model.SkillHistory {
	out := make([]model.SkillHistory, len(recs))
	for i, r := range recs {
		out[i] = model.SkillHistory{
			Seq:         r.ID,
			Activity:    model.ActivityID(r.ActivityID),
			Player:      model.PlayerID(r.PlayerID),
			Session:     model.SessionID(r.SessionID),
			Match:       model.MatchID(r.MatchID),
			Result:      model.ResultID(r.ResultID),
			Belief:      model.Belief{Mean: r.Mean, Uncertainty: r.Uncertainty},
			SubmittedAt: fromNanos(r.SubmittedAt),
		}
	}
	return out
}
