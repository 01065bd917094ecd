package models

const (
	StatusPending   = "Pending"
	StatusCompleted = "Completed"
)

const DefaultCarModel = "Not specified"

const (
	TaskCustomerConfirmation = "customer_confirmation"
	TaskAdminAlert           = "admin_alert"
	TaskTelegramAlert        = "telegram_alert"
	TaskSheetsAppend         = "sheets_append"
	TaskPendingDigest        = "pending_digest"
)

const (
	// WorkerQueueSize размер in-memory очереди уведомлений
	WorkerQueueSize = 128

	// DefaultTokenTTLHours время жизни токена администратора
	DefaultTokenTTLHours = 4

	// DefaultHTTPPort порт HTTP API по умолчанию
	DefaultHTTPPort = 10000

	// LoginAttemptsLimit количество попыток входа в окне
	LoginAttemptsLimit = 10

	// LoginAttemptsWindow окно ограничения попыток входа
	LoginAttemptsWindow = 15 * 60 // 15 минут в секундах
)
