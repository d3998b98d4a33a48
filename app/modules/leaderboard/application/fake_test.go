package leaderboardservice

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/uptrace/bun"

	leaderboarddomain "github.com/thpsrun/website-sub000/app/modules/leaderboard/domain"
	leaderboarddb "github.com/thpsrun/website-sub000/app/modules/leaderboard/infrastructure/repositories"
)

// ------------------------
// Fake Leaderboard Repo
// ------------------------

// FakeLeaderboardRepo is an in-memory Repository. Any Func field that is set
// replaces the default behavior of its method.
type FakeLeaderboardRepo struct {
	mu    sync.Mutex
	trace []string

	games   map[string]leaderboarddb.Game
	runs    map[string]leaderboarddb.Run
	players map[string]string
	history []leaderboarddb.RunHistory
	nextID  int64
	replays map[string]leaderboarddb.LeaderboardReplay

	GetLeaderboardRunsFunc  func(ctx context.Context, db bun.IDB, key leaderboarddomain.LeaderboardKey) ([]leaderboarddb.Run, error)
	UpdateRunPointsFunc     func(ctx context.Context, db bun.IDB, updates []leaderboarddomain.RunUpdate) error
	AppendHistoryFunc       func(ctx context.Context, db bun.IDB, entries []leaderboarddb.RunHistory) error
	BulkCloseHistoryFunc    func(ctx context.Context, db bun.IDB, closes []leaderboarddomain.EntryClose) error
	ListCurrentRecordsFunc  func(ctx context.Context, db bun.IDB, gameID string, maxBonus int) ([]leaderboarddb.Run, error)
	ListLeaderboardKeysFunc func(ctx context.Context, db bun.IDB, gameID string) ([]leaderboarddomain.LeaderboardKey, error)
	GetPlayerNamesFunc      func(ctx context.Context, db bun.IDB, playerIDs []string) (map[string]string, error)
}

func NewFakeLeaderboardRepo() *FakeLeaderboardRepo {
	return &FakeLeaderboardRepo{
		trace:   []string{},
		games:   map[string]leaderboarddb.Game{},
		runs:    map[string]leaderboarddb.Run{},
		players: map[string]string{},
		replays: map[string]leaderboarddb.LeaderboardReplay{},
	}
}

func (f *FakeLeaderboardRepo) record(step string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.trace = append(f.trace, step)
}

// --- Seeding ---

func (f *FakeLeaderboardRepo) AddGame(g leaderboarddb.Game) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.games[g.ID] = g
}

func (f *FakeLeaderboardRepo) AddRuns(runs ...leaderboarddb.Run) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range runs {
		f.runs[r.ID] = r
	}
}

func (f *FakeLeaderboardRepo) AddPlayer(id, name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.players[id] = name
}

func (f *FakeLeaderboardRepo) AddHistory(entries ...leaderboarddb.RunHistory) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.appendLocked(entries)
}

func (f *FakeLeaderboardRepo) appendLocked(entries []leaderboarddb.RunHistory) {
	for _, e := range entries {
		f.nextID++
		e.ID = f.nextID
		e.Run = nil
		f.history = append(f.history, e)
	}
}

// --- Repository Interface Implementation ---

func (f *FakeLeaderboardRepo) GetGames(ctx context.Context, db bun.IDB) (map[string]*leaderboarddb.Game, error) {
	f.record("GetGames")
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]*leaderboarddb.Game, len(f.games))
	for id, g := range f.games {
		g := g
		out[id] = &g
	}
	return out, nil
}

func (f *FakeLeaderboardRepo) FindGame(ctx context.Context, db bun.IDB, ref string) (*leaderboarddb.Game, error) {
	f.record("FindGame")
	f.mu.Lock()
	defer f.mu.Unlock()
	if g, ok := f.games[ref]; ok {
		return &g, nil
	}
	for _, g := range f.games {
		if strings.EqualFold(g.Slug, ref) {
			return &g, nil
		}
	}
	return nil, leaderboarddb.ErrNotFound
}

func (f *FakeLeaderboardRepo) UpsertGame(ctx context.Context, db bun.IDB, game *leaderboarddb.Game) error {
	f.record("UpsertGame")
	f.AddGame(*game)
	return nil
}

func (f *FakeLeaderboardRepo) ListLeaderboardKeys(ctx context.Context, db bun.IDB, gameID string) ([]leaderboarddomain.LeaderboardKey, error) {
	f.record("ListLeaderboardKeys")
	if f.ListLeaderboardKeysFunc != nil {
		return f.ListLeaderboardKeysFunc(ctx, db, gameID)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	seen := map[leaderboarddomain.LeaderboardKey]bool{}
	var keys []leaderboarddomain.LeaderboardKey
	for _, r := range f.runs {
		run := r.ToDomain()
		if !run.Eligible() || (gameID != "" && r.GameID != gameID) {
			continue
		}
		k := run.Key()
		if !seen[k] {
			seen[k] = true
			keys = append(keys, k)
		}
	}
	leaderboarddomain.SortKeys(keys)
	return keys, nil
}

func (f *FakeLeaderboardRepo) GetLeaderboardRuns(ctx context.Context, db bun.IDB, key leaderboarddomain.LeaderboardKey) ([]leaderboarddb.Run, error) {
	f.record("GetLeaderboardRuns")
	if f.GetLeaderboardRunsFunc != nil {
		return f.GetLeaderboardRunsFunc(ctx, db, key)
	}
	return f.StoredLeaderboardRuns(key), nil
}

// StoredLeaderboardRuns is the default GetLeaderboardRuns behavior, exposed so
// overrides can delegate to it.
func (f *FakeLeaderboardRepo) StoredLeaderboardRuns(key leaderboarddomain.LeaderboardKey) []leaderboarddb.Run {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []leaderboarddb.Run
	for _, r := range f.runs {
		if r.VidStatus == leaderboarddomain.VidStatusVerified && r.ToDomain().Key() == key {
			out = append(out, r)
		}
	}
	slices.SortFunc(out, func(a, b leaderboarddb.Run) int {
		return leaderboarddomain.CompareChronological(a.ToDomain(), b.ToDomain())
	})
	return out
}

func (f *FakeLeaderboardRepo) GetRun(ctx context.Context, db bun.IDB, runID string) (*leaderboarddb.Run, error) {
	f.record("GetRun")
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.runs[runID]
	if !ok {
		return nil, leaderboarddb.ErrNotFound
	}
	return &r, nil
}

func (f *FakeLeaderboardRepo) UpsertRuns(ctx context.Context, db bun.IDB, runs []leaderboarddb.Run) error {
	f.record("UpsertRuns")
	f.AddRuns(runs...)
	return nil
}

func (f *FakeLeaderboardRepo) UpsertPlayers(ctx context.Context, db bun.IDB, players []leaderboarddb.Player) error {
	f.record("UpsertPlayers")
	for _, p := range players {
		f.AddPlayer(p.ID, p.Name)
	}
	return nil
}

func (f *FakeLeaderboardRepo) UpdateRunPoints(ctx context.Context, db bun.IDB, updates []leaderboarddomain.RunUpdate) error {
	f.record("UpdateRunPoints")
	if f.UpdateRunPointsFunc != nil {
		return f.UpdateRunPointsFunc(ctx, db, updates)
	}
	if len(updates) == 0 {
		return nil
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, u := range updates {
		r, ok := f.runs[u.RunID]
		if !ok {
			continue
		}
		r.Points, r.Bonus = u.Points, u.Bonus
		f.runs[u.RunID] = r
		n++
	}
	if n == 0 {
		return leaderboarddb.ErrNoRowsAffected
	}
	return nil
}

func (f *FakeLeaderboardRepo) ListCurrentRecords(ctx context.Context, db bun.IDB, gameID string, maxBonus int) ([]leaderboarddb.Run, error) {
	f.record("ListCurrentRecords")
	if f.ListCurrentRecordsFunc != nil {
		return f.ListCurrentRecordsFunc(ctx, db, gameID, maxBonus)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []leaderboarddb.Run
	for _, h := range f.history {
		if h.EndDate != nil {
			continue
		}
		r, ok := f.runs[h.RunID]
		if !ok || r.VidStatus != leaderboarddomain.VidStatusVerified || r.Obsolete || r.Bonus >= maxBonus {
			continue
		}
		if gameID != "" && r.GameID != gameID {
			continue
		}
		if g, ok := f.games[r.GameID]; !ok || g.IsCE {
			continue
		}
		r.OpenPoints = h.Points
		out = append(out, r)
	}
	slices.SortFunc(out, func(a, b leaderboarddb.Run) int {
		return cmp.Or(cmp.Compare(a.GameID, b.GameID), cmp.Compare(a.ID, b.ID))
	})
	return out, nil
}

func (f *FakeLeaderboardRepo) ListRecordHoldings(ctx context.Context, db bun.IDB, key leaderboarddomain.LeaderboardKey, minPoints int) ([]leaderboarddomain.RecordHolding, error) {
	f.record("ListRecordHoldings")
	f.mu.Lock()
	defer f.mu.Unlock()
	var rows []leaderboarddb.RunHistory
	for _, h := range f.history {
		r, ok := f.runs[h.RunID]
		if ok && h.Points >= minPoints && r.ToDomain().Key() == key {
			rows = append(rows, h)
		}
	}
	slices.SortFunc(rows, func(a, b leaderboarddb.RunHistory) int {
		return cmp.Or(b.StartDate.Compare(a.StartDate), cmp.Compare(b.ID, a.ID))
	})
	out := make([]leaderboarddomain.RecordHolding, 0, len(rows))
	for _, h := range rows {
		out = append(out, leaderboarddomain.RecordHolding{
			RunID:     h.RunID,
			StartDate: h.StartDate,
			PlayerIDs: f.runs[h.RunID].PlayerIDs,
		})
	}
	return out, nil
}

func (f *FakeLeaderboardRepo) GetPlayerNames(ctx context.Context, db bun.IDB, playerIDs []string) (map[string]string, error) {
	f.record("GetPlayerNames")
	if f.GetPlayerNamesFunc != nil {
		return f.GetPlayerNamesFunc(ctx, db, playerIDs)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	out := map[string]string{}
	for _, id := range playerIDs {
		if name, ok := f.players[id]; ok {
			out[id] = name
		}
	}
	return out, nil
}

func (f *FakeLeaderboardRepo) ListHistoryForLeaderboard(ctx context.Context, db bun.IDB, key leaderboarddomain.LeaderboardKey) ([]leaderboarddb.RunHistory, error) {
	f.record("ListHistoryForLeaderboard")
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []leaderboarddb.RunHistory
	for _, h := range f.history {
		if r, ok := f.runs[h.RunID]; ok && r.ToDomain().Key() == key {
			out = append(out, h)
		}
	}
	return out, nil
}

func (f *FakeLeaderboardRepo) ListHistoryForRun(ctx context.Context, db bun.IDB, runID string) ([]leaderboarddb.RunHistory, error) {
	f.record("ListHistoryForRun")
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []leaderboarddb.RunHistory
	for _, h := range f.history {
		if h.RunID == runID {
			out = append(out, h)
		}
	}
	slices.SortStableFunc(out, func(a, b leaderboarddb.RunHistory) int {
		return a.StartDate.Compare(b.StartDate)
	})
	return out, nil
}

func (f *FakeLeaderboardRepo) AppendHistory(ctx context.Context, db bun.IDB, entries []leaderboarddb.RunHistory) error {
	f.record("AppendHistory")
	if f.AppendHistoryFunc != nil {
		return f.AppendHistoryFunc(ctx, db, entries)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.appendLocked(entries)
	return nil
}

func (f *FakeLeaderboardRepo) BulkCloseHistory(ctx context.Context, db bun.IDB, closes []leaderboarddomain.EntryClose) error {
	f.record("BulkCloseHistory")
	if f.BulkCloseHistoryFunc != nil {
		return f.BulkCloseHistoryFunc(ctx, db, closes)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range closes {
		idx := slices.IndexFunc(f.history, func(h leaderboarddb.RunHistory) bool { return h.ID == c.ID })
		if idx < 0 || f.history[idx].EndDate != nil {
			return leaderboarddb.ErrStaleClose
		}
		end := c.EndDate
		f.history[idx].EndDate = &end
		f.history[idx].EndReason = string(c.EndReason)
	}
	return nil
}

func (f *FakeLeaderboardRepo) DeleteHistory(ctx context.Context, db bun.IDB, gameID string) (int64, error) {
	f.record("DeleteHistory")
	f.mu.Lock()
	defer f.mu.Unlock()
	before := len(f.history)
	f.history = slices.DeleteFunc(f.history, func(h leaderboarddb.RunHistory) bool {
		return gameID == "" || f.runs[h.RunID].GameID == gameID
	})
	return int64(before - len(f.history)), nil
}

func (f *FakeLeaderboardRepo) GetLeaderboardReplay(ctx context.Context, db bun.IDB, key string) (*leaderboarddb.LeaderboardReplay, error) {
	f.record("GetLeaderboardReplay")
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.replays[key]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

func (f *FakeLeaderboardRepo) UpsertLeaderboardReplay(ctx context.Context, db bun.IDB, replay *leaderboarddb.LeaderboardReplay) error {
	f.record("UpsertLeaderboardReplay")
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replays[replay.LeaderboardKey] = *replay
	return nil
}

func (f *FakeLeaderboardRepo) ListLeaderboardReplays(ctx context.Context, db bun.IDB, gameID string) ([]leaderboarddb.LeaderboardReplay, error) {
	f.record("ListLeaderboardReplays")
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []leaderboarddb.LeaderboardReplay
	for _, r := range f.replays {
		if gameID == "" || r.GameID == gameID {
			out = append(out, r)
		}
	}
	slices.SortFunc(out, func(a, b leaderboarddb.LeaderboardReplay) int {
		return cmp.Compare(a.LeaderboardKey, b.LeaderboardKey)
	})
	return out, nil
}

func (f *FakeLeaderboardRepo) DeleteLeaderboardReplays(ctx context.Context, db bun.IDB, gameID string) error {
	f.record("DeleteLeaderboardReplays")
	f.mu.Lock()
	defer f.mu.Unlock()
	for k, r := range f.replays {
		if gameID == "" || r.GameID == gameID {
			delete(f.replays, k)
		}
	}
	return nil
}

// --- Accessors for assertions ---

func (f *FakeLeaderboardRepo) Trace() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.trace))
	copy(out, f.trace)
	return out
}

func (f *FakeLeaderboardRepo) ResetTrace() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.trace = []string{}
}

// Called reports how often step appears in the trace.
func (f *FakeLeaderboardRepo) Called(step string) int {
	n := 0
	for _, s := range f.Trace() {
		if s == step {
			n++
		}
	}
	return n
}

// History returns a copy of the stored ledger in insertion order.
func (f *FakeLeaderboardRepo) History() []leaderboarddb.RunHistory {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.history)
}

// OpenEntries returns the open ledger entries keyed by run.
func (f *FakeLeaderboardRepo) OpenEntries() map[string]leaderboarddb.RunHistory {
	out := map[string]leaderboarddb.RunHistory{}
	for _, h := range f.History() {
		if h.EndDate == nil {
			out[h.RunID] = h
		}
	}
	return out
}

func (f *FakeLeaderboardRepo) Run(id string) leaderboarddb.Run {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.runs[id]
}

// ------------------------
// Fixtures
// ------------------------

var testGame = leaderboarddb.Game{
	ID:           "g1",
	Name:         "Tony Hawk's Pro Skater",
	Slug:         "thps1",
	DefaultTime:  string(leaderboarddomain.TimingRealtime),
	IDefaultTime: string(leaderboarddomain.TimingRealtime),
	PointsMax:    1000,
	IPointsMax:   100,
}

func day(d int) time.Time {
	return time.Date(2024, time.January, 1, 12, 0, 0, 0, time.UTC).AddDate(0, 0, d-1)
}

func ptr[T any](v T) *T { return &v }

func mkRun(id, sub string, secs float64, at time.Time, players ...string) leaderboarddb.Run {
	return leaderboarddb.Run{
		ID:          id,
		GameID:      testGame.ID,
		CategoryID:  "any",
		Subcategory: sub,
		RunType:     string(leaderboarddomain.RunTypeMain),
		TimeSecs:    secs,
		VDate:       ptr(at),
		VidStatus:   leaderboarddomain.VidStatusVerified,
		PlayerIDs:   players,
	}
}
