package store

// Room is the installed_rooms document: the live, AI-hosted game room.
type Room struct {
	ID            string   `bson:"_id"`
	GameIndex     string   `bson:"game_index"`
	Rule          string   `bson:"rule"`
	Title         string   `bson:"title"`
	Announcement  string   `bson:"announcement"`
	Cover         string   `bson:"cover"`
	OwnerID       string   `bson:"owner_id"`
	OwnerNickname string   `bson:"owner_nickname"`
	OwnerGender   string   `bson:"owner_gender"`
	OwnerAvatar   string   `bson:"owner_avatar"`
	Assistants    []string `bson:"assistants"`
	Tags          []string `bson:"tags"`

	CarryingCapacity int    `bson:"carrying_capacity"`
	QueueSymbol      string `bson:"queue_symbol"`
	AIPlayerCnt      int    `bson:"ai_player_cnt"`
	RankWeight       int    `bson:"rank_weight"`
	BeHosting        bool   `bson:"be_hosting"`

	OnlineUserCnt             int `bson:"online_user_cnt"`
	InGameQueueUserCnt        int `bson:"in_game_queue_user_cnt"`
	InGameQueueBeReadyUserCnt int `bson:"in_game_queue_be_ready_user_cnt"`
	InGameBattleUserCnt       int `bson:"in_game_battle_user_cnt"`

	UpdateTs int64 `bson:"update_ts"`
}

// InstalledGame is a declarative game definition upserted at startup.
type InstalledGame struct {
	Index            string `bson:"_id"`
	Title            string `bson:"title"`
	Cover            string `bson:"cover"`
	MinOnlineUserCnt int    `bson:"min_online_user_cnt"`
	MaxOnlineUserCnt int    `bson:"max_online_user_cnt"`
}

// InstalledAIPlayer is a declarative AI persona upserted at startup. Personas
// sharing a room_id are grouped during bootstrap to assemble that room's
// owner_*/assistants[], master first then slaves ordered by slave_number.
type InstalledAIPlayer struct {
	ID              string   `bson:"_id"`
	RoomID          string   `bson:"room_id"`
	IsMaster        bool     `bson:"is_master"`
	SlaveNumber     int      `bson:"slave_number"`
	Nickname        string   `bson:"nickname"`
	Gender          string   `bson:"gender"`
	Avatar          string   `bson:"avatar"`
	GameIndex       string   `bson:"game_index"`
	Tags            []string `bson:"tags"`
	State           int      `bson:"state"`
	BeHosting       bool     `bson:"be_hosting"`
	Installed       bool     `bson:"installed"`
	BeHostingRoomID string   `bson:"be_hosting_room_id,omitempty"`
}

// RoomDefinition is the declarative, operator-authored shape of an installed
// room: everything bootstrap doesn't derive from AI persona grouping.
type RoomDefinition struct {
	RoomID           string   `bson:"room_id"`
	GameIndex        string   `bson:"game_index"`
	Rule             string   `bson:"rule"`
	Title            string   `bson:"title"`
	Announcement     string   `bson:"announcement"`
	Cover            string   `bson:"cover"`
	Tags             []string `bson:"tags"`
	CarryingCapacity int      `bson:"carrying_capacity"`
	QueueSymbol      string   `bson:"queue_symbol"`
	RankWeight       int      `bson:"rank_weight"`
}

// RoomBootstrapDef merges a RoomDefinition with the owner/assistants/
// ai_player_cnt derived from grouping InstalledAIPlayer by room_id; this is
// what UpsertRoomFromBootstrap actually writes to installed_rooms.
type RoomBootstrapDef struct {
	RoomDefinition
	BeHosting     bool
	OwnerID       string
	OwnerNickname string
	OwnerGender   string
	OwnerAvatar   string
	Assistants    []string
	AIPlayerCnt   int
}

// RoomPresence tracks whether a user is currently present ("online") in a room.
type RoomPresence struct {
	RoomID   string `bson:"room_id"`
	UserID   string `bson:"user_id"`
	Online   bool   `bson:"online"`
	UpdateTs int64  `bson:"update_ts"`
}

// RoomSeat tracks a user's seat assignment in a room's queue grid.
type RoomSeat struct {
	RoomID      string `bson:"room_id"`
	UserID      string `bson:"user_id"`
	InGameQueue bool   `bson:"in_game_queue"`
	AtX         int    `bson:"at_game_queue_x_coord"`
	AtY         int    `bson:"at_game_queue_y_coord"`
	FrozenTime  int64  `bson:"frozen_time"`
	UpdateTs    int64  `bson:"update_ts"`
}

// RoomReady tracks whether a seated user has signalled readiness.
type RoomReady struct {
	RoomID             string `bson:"room_id"`
	UserID             string `bson:"user_id"`
	InGameQueueBeReady bool   `bson:"in_game_queue_be_ready"`
	UpdateTs           int64  `bson:"update_ts"`
}

// RoomBattle tracks whether a user is currently in a battle launched from a room.
type RoomBattle struct {
	RoomID       string `bson:"room_id"`
	UserID       string `bson:"user_id"`
	InGameBattle bool   `bson:"in_game_battle"`
	UpdateTs     int64  `bson:"update_ts"`
}

// GameResult is the durable record of a third-party game battle outcome.
type GameResult struct {
	AppUserID      string         `bson:"app_user_id"`
	AppAIPlayerID  string         `bson:"app_ai_player_id"`
	AppRoomID      string         `bson:"app_room_id"`
	AppGameIndex   string         `bson:"app_game_index"`
	GameRegion     string         `bson:"game_region"`
	GameUID        string         `bson:"game_uid"`
	GameBID        string         `bson:"game_bid"`
	OrderID        string         `bson:"order_id"`
	ResultType     string         `bson:"result_type"`
	ResultGameIdx  *int           `bson:"result_game_idx,omitempty"`
	ResultWin      *bool          `bson:"result_win,omitempty"`
	ResultScreens  []string       `bson:"result_screenshots,omitempty"`
	StatusCode     int            `bson:"status_code"`
	TraceID        string         `bson:"trace_id"`
	CreateTs       int64          `bson:"create_ts"`
	Extra          map[string]any `bson:"extra,omitempty"`
}

// UserStats is a per-user, per-game aggregate recomputed on every ingested
// game result.
type UserStats struct {
	UserID     string  `bson:"user_id"`
	GameIndex  string  `bson:"game_index"`
	PlayCnt    int64   `bson:"play_cnt"`
	WinningCnt int64   `bson:"winning_play_cnt"`
	WinRate    float64 `bson:"win_rate"`
	UpdateTs   int64   `bson:"update_ts"`
}

// ShadowAccount is a precedence record for a user whose original account was
// deleted and later recreated; lookups must prefer the shadow record.
type ShadowAccount struct {
	UserID   string `bson:"user_id"`
	ShadowOf string `bson:"shadow_of"`
	CreateTs int64  `bson:"create_ts"`
}

// InviteCode is a one-time or multi-use invite code for joining a hosted room.
type InviteCode struct {
	Code     string `bson:"_id"`
	RoomID   string `bson:"room_id"`
	MaxUses  int    `bson:"max_uses"`
	UseCount int    `bson:"use_count"`
	ExpireTs int64  `bson:"expire_ts"`
}

// AppPermission is a per-account feature-flag style permission grant.
type AppPermission struct {
	UserID string   `bson:"user_id"`
	Grants []string `bson:"grants"`
}

// ChatMessage is a single persisted room chat entry.
type ChatMessage struct {
	RoomID   string `bson:"room_id"`
	UserID   string `bson:"user_id"`
	Content  string `bson:"content"`
	CreateTs int64  `bson:"create_ts"`
}
