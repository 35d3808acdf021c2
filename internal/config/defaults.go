package config

import (
	"time"

	"github.com/spf13/viper"
)

// Default values for configuration
const (
	// Log defaults
	DefaultLogLevel = "info"
	DefaultLogJSON  = false

	// Forwarder defaults
	DefaultForwarderRefreshEvery        = 100
	DefaultForwarderReconnectBackoff    = 10 * time.Second
	DefaultForwarderMaxFloodWait        = 5 * time.Minute
	DefaultForwarderJoinDelay           = time.Second
	DefaultForwarderResolveCacheTTL     = 10 * time.Minute
	DefaultForwarderResolveCacheSizeMB  = 1
	DefaultForwarderSendInterval        = time.Second
	DefaultForwarderSendBurst           = 3
	DefaultForwarderDisconnectThreshold = 5

	// Supervisor defaults
	DefaultSupervisorLogDir      = "data/logs"
	DefaultSupervisorGracePeriod = time.Second
	DefaultSupervisorStopTimeout = 5 * time.Second
	DefaultSupervisorMaxLogSize  = 10 << 20
	DefaultSupervisorTailLines   = 50

	// Dashboard defaults
	DefaultDashboardListen = ":8000"
	DefaultDashboardURL    = "http://127.0.0.1:8000"

	// Store defaults
	DefaultStoreDriver      = "json"
	DefaultStoreDir         = "data"
	DefaultStoreSQLitePath  = "data/groupbot.db"
	DefaultStoreBoltPath    = "data/groupbot.bolt"
	DefaultStoreBoltTimeout = 2 * time.Second

	// Records defaults
	DefaultRecordsPolicy     = "replace"
	DefaultRecordsDateFormat = "02.01.2006"
	DefaultRecordsTopLimit   = 10

	// Reports defaults
	DefaultReportsRequestsDir      = "data/requests"
	DefaultReportsTimezone         = "Europe/Moscow"
	DefaultReportsErrorDigestLimit = 50
)

// DefaultBots are the processes managed when supervisor.bots is not configured.
var DefaultBots = []map[string]any{
	{"name": "Forwarder", "args": []string{"forwarder"}, "autostart": false},
	{"name": "Records", "args": []string{"records"}, "autostart": false},
}

// DefaultMovements are the presets offered by /sil.
var DefaultMovements = []map[string]any{
	{"key": "bench", "name": "Жим"},
	{"key": "squat", "name": "Присед"},
	{"key": "deadlift", "name": "Тяга"},
}

// DefaultTasks schedules the periodic jobs of the original bots.
var DefaultTasks = map[string]any{
	"error_digest":      map[string]any{"enabled": true, "schedule": "0 0 9 * * *"},
	"records_report":    map[string]any{"enabled": true, "interval": 14 * 24 * time.Hour},
	"report_trigger":    map[string]any{"enabled": true, "interval": 10 * time.Second},
	"store_maintenance": map[string]any{"enabled": true, "schedule": "0 30 4 * * 0"},
}

// DefaultMessages are the user-facing texts.
var DefaultMessages = map[string]string{
	"help": "📋 Команды\n\n" +
		"/sil — добавить рекорд (Жим / Присед / Тяга / Свое движение)\n" +
		"/top — топ по сумме\n" +
		"/table — таблица PNG\n" +
		"/help — список команд\n\n" +
		"Forwarder команды:\n" +
		"/channels add @username\n" +
		"/channels remove @username",
	"choose_movement":       "Выбери движение 💪",
	"custom_movement":       "Свое движение",
	"ask_custom_name":       "Введи название упражнения:",
	"ask_weight":            "Введи вес в кг:",
	"ask_weight_for":        "Теперь введи вес для %s (пример: 100кг):",
	"weight_not_parsed":     "⚠️ Вес не распознан. Пример: 100 или 87.5",
	"record_saved":          "✅ Записано: %s — %s кг в %s",
	"new_record":            "💥 НОВЫЙ РЕКОРД!\n%s — %s кг в %s!",
	"top_header":            "🏆 Топ по сумме:",
	"table_caption":         "📊 Таблица рекордов",
	"auto_report_caption":   "📅 Авто-отчёт (%s)",
	"manual_report_caption": "📅 Ручной отчёт (%s)",
	"no_records":            "Нет записей",
	"error_digest_header":   "📋 Ежедневный отчёт об ошибках:",

	"forward_footer":        "\n\n📢 Переслано из канала: %s",
	"channels_list":         "📋 Отслеживаемые каналы:",
	"channels_empty":        "📋 Список каналов пуст. Добавьте канал: /channels add @username",
	"channel_added":         "✅ Канал %s добавлен и мониторится",
	"channel_already_added": "⚠️ Канал %s уже есть",
	"channel_removed":       "❌ Канал %s удалён",
	"channel_not_found":     "⚠️ Канал %s не найден",
	"channels_save_failed":  "⚠️ Не удалось сохранить список каналов, попробуйте позже",
	"channels_usage": "Управление каналами:\n" +
		"/channels — показать список\n" +
		"/channels add @username — добавить\n" +
		"/channels remove @username — удалить",
}

// setDefaults sets default values for optional configuration parameters
func setDefaults(v *viper.Viper) {
	// Log defaults
	v.SetDefault("log.level", DefaultLogLevel)
	v.SetDefault("log.json", DefaultLogJSON)

	// Telegram defaults
	v.SetDefault("telegram.token", "")
	v.SetDefault("telegram.group_id", 0)
	v.SetDefault("telegram.forward_topic", 0)
	v.SetDefault("telegram.records_topic", 0)
	v.SetDefault("telegram.admin_id", 0)

	// Forwarder defaults
	v.SetDefault("forwarder.token", "")
	v.SetDefault("forwarder.refresh_every", DefaultForwarderRefreshEvery)
	v.SetDefault("forwarder.reconnect_backoff", DefaultForwarderReconnectBackoff)
	v.SetDefault("forwarder.max_flood_wait", DefaultForwarderMaxFloodWait)
	v.SetDefault("forwarder.join_delay", DefaultForwarderJoinDelay)
	v.SetDefault("forwarder.resolve_cache_ttl", DefaultForwarderResolveCacheTTL)
	v.SetDefault("forwarder.resolve_cache_size_mb", DefaultForwarderResolveCacheSizeMB)
	v.SetDefault("forwarder.send_interval", DefaultForwarderSendInterval)
	v.SetDefault("forwarder.send_burst", DefaultForwarderSendBurst)
	v.SetDefault("forwarder.disconnect_threshold", DefaultForwarderDisconnectThreshold)
	v.SetDefault("forwarder.metrics_listen", "")

	// Supervisor defaults
	v.SetDefault("supervisor.log_dir", DefaultSupervisorLogDir)
	v.SetDefault("supervisor.grace_period", DefaultSupervisorGracePeriod)
	v.SetDefault("supervisor.stop_timeout", DefaultSupervisorStopTimeout)
	v.SetDefault("supervisor.max_log_size", DefaultSupervisorMaxLogSize)
	v.SetDefault("supervisor.tail_lines", DefaultSupervisorTailLines)
	v.SetDefault("supervisor.bots", DefaultBots)

	// Dashboard defaults
	v.SetDefault("dashboard.listen", DefaultDashboardListen)
	v.SetDefault("dashboard.metrics", true)
	v.SetDefault("dashboard.url", DefaultDashboardURL)

	// Store defaults
	v.SetDefault("store.driver", DefaultStoreDriver)
	v.SetDefault("store.dir", DefaultStoreDir)
	v.SetDefault("store.sqlite_path", DefaultStoreSQLitePath)
	v.SetDefault("store.bolt_path", DefaultStoreBoltPath)
	v.SetDefault("store.bolt_timeout", DefaultStoreBoltTimeout)

	// Records defaults
	v.SetDefault("records.policy", DefaultRecordsPolicy)
	v.SetDefault("records.date_format", DefaultRecordsDateFormat)
	v.SetDefault("records.top_limit", DefaultRecordsTopLimit)
	v.SetDefault("records.movements", DefaultMovements)

	// Reports defaults
	v.SetDefault("reports.requests_dir", DefaultReportsRequestsDir)
	v.SetDefault("reports.font_path", "")
	v.SetDefault("reports.timezone", DefaultReportsTimezone)
	v.SetDefault("reports.error_digest_limit", DefaultReportsErrorDigestLimit)

	// Scheduler defaults
	v.SetDefault("scheduler.tasks", DefaultTasks)

	// Messages defaults
	for key, text := range DefaultMessages {
		v.SetDefault("messages."+key, text)
	}
}
