// Package config manages application configuration from config.yaml,
// BOT_* environment variables, a local .env file and default values.
package config

import (
	"errors"
	"time"
)

// ErrConfiguration wraps every load or validation failure.
var ErrConfiguration = errors.New("configuration error")

// Config defines the configuration shared by every groupbot process.
type Config struct {
	Log        LogConfig        `mapstructure:"log"`
	Telegram   TelegramConfig   `mapstructure:"telegram"`
	Forwarder  ForwarderConfig  `mapstructure:"forwarder"`
	Supervisor SupervisorConfig `mapstructure:"supervisor"`
	Dashboard  DashboardConfig  `mapstructure:"dashboard"`
	Store      StoreConfig      `mapstructure:"store"`
	Records    RecordsConfig    `mapstructure:"records"`
	Reports    ReportsConfig    `mapstructure:"reports"`
	Scheduler  SchedulerConfig  `mapstructure:"scheduler"`
	Messages   MessagesConfig   `mapstructure:"messages"`

	// Path is the file the configuration was read from. Managed bots are
	// launched with the same path.
	Path string `mapstructure:"-"`
}

// LogConfig controls the slog handler.
type LogConfig struct {
	Level string `mapstructure:"level" validate:"required,oneof=debug info warn error"`
	JSON  bool   `mapstructure:"json"`
}

// TelegramConfig holds the command bot identity and the shared group layout.
type TelegramConfig struct {
	Token        string `mapstructure:"token"`
	GroupID      int64  `mapstructure:"group_id"      validate:"required"`
	ForwardTopic int    `mapstructure:"forward_topic" validate:"min=0"`
	RecordsTopic int    `mapstructure:"records_topic" validate:"min=0"`
	AdminID      int64  `mapstructure:"admin_id"`
}

// ForwarderConfig tunes the forwarding engine. The destination is always
// telegram.group_id with telegram.forward_topic as the optional thread.
type ForwarderConfig struct {
	Token               string        `mapstructure:"token"`
	RefreshEvery        int           `mapstructure:"refresh_every"        validate:"min=1"`
	ReconnectBackoff    time.Duration `mapstructure:"reconnect_backoff"    validate:"min=100ms"`
	MaxFloodWait        time.Duration `mapstructure:"max_flood_wait"       validate:"min=0"`
	JoinDelay           time.Duration `mapstructure:"join_delay"           validate:"min=0"`
	ResolveCacheTTL     time.Duration `mapstructure:"resolve_cache_ttl"    validate:"min=0"`
	ResolveCacheSizeMB  int           `mapstructure:"resolve_cache_size_mb" validate:"min=0"`
	SendInterval        time.Duration `mapstructure:"send_interval"        validate:"min=0"`
	SendBurst           int           `mapstructure:"send_burst"           validate:"min=1"`
	DisconnectThreshold int           `mapstructure:"disconnect_threshold" validate:"min=1"`
	MetricsListen       string        `mapstructure:"metrics_listen"`
}

// BotTarget describes one managed bot process. An empty Command launches
// the running executable itself.
type BotTarget struct {
	Name      string   `mapstructure:"name"      validate:"required"`
	Command   string   `mapstructure:"command"`
	Args      []string `mapstructure:"args"`
	Env       []string `mapstructure:"env"`
	Dir       string   `mapstructure:"dir"`
	Autostart bool     `mapstructure:"autostart"`
}

// SupervisorConfig controls child process management.
type SupervisorConfig struct {
	LogDir      string        `mapstructure:"log_dir"      validate:"required"`
	GracePeriod time.Duration `mapstructure:"grace_period" validate:"min=0"`
	StopTimeout time.Duration `mapstructure:"stop_timeout" validate:"min=100ms"`
	MaxLogSize  int64         `mapstructure:"max_log_size" validate:"min=0"`
	TailLines   int           `mapstructure:"tail_lines"   validate:"min=1"`
	Bots        []BotTarget   `mapstructure:"bots"         validate:"dive"`
}

// DashboardConfig controls the HTTP control surface.
type DashboardConfig struct {
	Listen  string `mapstructure:"listen"  validate:"required"`
	Metrics bool   `mapstructure:"metrics"`
	// URL is where `groupbot ctl` reaches the dashboard.
	URL string `mapstructure:"url" validate:"required,url"`
}

// StoreConfig selects the document backend.
type StoreConfig struct {
	Driver      string        `mapstructure:"driver"       validate:"required,oneof=json sqlite bolt"`
	Dir         string        `mapstructure:"dir"          validate:"required"`
	SQLitePath  string        `mapstructure:"sqlite_path"`
	BoltPath    string        `mapstructure:"bolt_path"`
	BoltTimeout time.Duration `mapstructure:"bolt_timeout" validate:"min=0"`
}

// Movement is one preset exercise offered by /sil.
type Movement struct {
	Key  string `mapstructure:"key"  validate:"required"`
	Name string `mapstructure:"name" validate:"required"`
}

// RecordsConfig controls the record set.
type RecordsConfig struct {
	Policy     string     `mapstructure:"policy"      validate:"required,oneof=replace append"`
	DateFormat string     `mapstructure:"date_format" validate:"required"`
	TopLimit   int        `mapstructure:"top_limit"   validate:"min=1"`
	Movements  []Movement `mapstructure:"movements"   validate:"min=1,dive"`
}

// ReportsConfig controls report rendering and the operator digest.
type ReportsConfig struct {
	RequestsDir      string `mapstructure:"requests_dir"       validate:"required"`
	FontPath         string `mapstructure:"font_path"`
	Timezone         string `mapstructure:"timezone"           validate:"required"`
	ErrorDigestLimit int    `mapstructure:"error_digest_limit" validate:"min=1"`
}

// TaskConfig configures one scheduled task. Schedule is a cron expression
// with seconds; Interval is used when Schedule is empty.
type TaskConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Schedule string        `mapstructure:"schedule"`
	Interval time.Duration `mapstructure:"interval"`
}

// SchedulerConfig maps task names to their configuration.
type SchedulerConfig struct {
	Tasks map[string]TaskConfig `mapstructure:"tasks"`
}

// MessagesConfig holds user-facing texts.
type MessagesConfig struct {
	Help              string `mapstructure:"help"`
	ChooseMovement    string `mapstructure:"choose_movement"`
	CustomMovement    string `mapstructure:"custom_movement"`
	AskCustomName     string `mapstructure:"ask_custom_name"`
	AskWeight         string `mapstructure:"ask_weight"`
	AskWeightFor      string `mapstructure:"ask_weight_for"`
	WeightNotParsed   string `mapstructure:"weight_not_parsed"`
	RecordSaved       string `mapstructure:"record_saved"`
	NewRecord         string `mapstructure:"new_record"`
	TopHeader         string `mapstructure:"top_header"`
	TableCaption      string `mapstructure:"table_caption"`
	AutoReportCaption string `mapstructure:"auto_report_caption"`
	ManualReportCap   string `mapstructure:"manual_report_caption"`
	NoRecords         string `mapstructure:"no_records"`
	ErrorDigestHeader string `mapstructure:"error_digest_header"`

	ForwardFooter       string `mapstructure:"forward_footer"`
	ChannelsList        string `mapstructure:"channels_list"`
	ChannelsEmpty       string `mapstructure:"channels_empty"`
	ChannelAdded        string `mapstructure:"channel_added"`
	ChannelAlreadyAdded string `mapstructure:"channel_already_added"`
	ChannelRemoved      string `mapstructure:"channel_removed"`
	ChannelNotFound     string `mapstructure:"channel_not_found"`
	ChannelsUsage       string `mapstructure:"channels_usage"`
	ChannelsSaveFailed  string `mapstructure:"channels_save_failed"`
}
