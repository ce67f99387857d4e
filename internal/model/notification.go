package model

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// NotificationType identifies a notification family.
type NotificationType string

const (
	NotificationExpiryWarning      NotificationType = "EXPIRY_WARNING"
	NotificationExpiredAlert       NotificationType = "EXPIRED_ALERT"
	NotificationLowStock           NotificationType = "LOW_STOCK"
	NotificationWasteReport        NotificationType = "WASTE_REPORT"
	NotificationPurchaseSuggestion NotificationType = "PURCHASE_SUGGESTION"
	NotificationUsageReminder      NotificationType = "USAGE_REMINDER"
)

// Valid reports whether t is a known notification type.
func (t NotificationType) Valid() bool {
	switch t {
	case NotificationExpiryWarning, NotificationExpiredAlert, NotificationLowStock,
		NotificationWasteReport, NotificationPurchaseSuggestion, NotificationUsageReminder:
		return true
	}
	return false
}

// Priority ranks notifications and shopping suggestions.
type Priority string

const (
	PriorityHigh   Priority = "HIGH"
	PriorityMedium Priority = "MEDIUM"
	PriorityLow    Priority = "LOW"
)

// Rank orders priorities, higher is more urgent.
func (p Priority) Rank() int {
	switch p {
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 1
	}
	return 0
}

// Valid reports whether p is a known priority.
func (p Priority) Valid() bool {
	return p.Rank() > 0
}

// Frequency is the cadence at which a notification family may fire.
type Frequency string

const (
	FrequencyImmediate Frequency = "immediate"
	FrequencyDaily     Frequency = "daily"
	FrequencyWeekly    Frequency = "weekly"
	FrequencyMonthly   Frequency = "monthly"
)

// Window returns the minimum spacing between two notifications of a family.
func (f Frequency) Window() time.Duration {
	switch f {
	case FrequencyDaily:
		return 24 * time.Hour
	case FrequencyWeekly:
		return 7 * 24 * time.Hour
	case FrequencyMonthly:
		return 30 * 24 * time.Hour
	}
	return 0
}

// Valid reports whether f is a known frequency.
func (f Frequency) Valid() bool {
	switch f {
	case FrequencyImmediate, FrequencyDaily, FrequencyWeekly, FrequencyMonthly:
		return true
	}
	return false
}

// NotificationConfig holds one member's notification settings.
type NotificationConfig struct {
	MemberID                    string    `json:"member_id" db:"member_id"`
	ExpiryEnabled               bool      `json:"expiry_enabled" db:"expiry_enabled"`
	ExpiryAdvanceDays           int       `json:"expiry_advance_days" db:"expiry_advance_days"`
	LowStockEnabled             bool      `json:"low_stock_enabled" db:"low_stock_enabled"`
	WasteReportEnabled          bool      `json:"waste_report_enabled" db:"waste_report_enabled"`
	WasteReportFrequency        Frequency `json:"waste_report_frequency" db:"waste_report_frequency"`
	UsageReminderEnabled        bool      `json:"usage_reminder_enabled" db:"usage_reminder_enabled"`
	UsageReminderFrequency      Frequency `json:"usage_reminder_frequency" db:"usage_reminder_frequency"`
	PurchaseSuggestionEnabled   bool      `json:"purchase_suggestion_enabled" db:"purchase_suggestion_enabled"`
	PurchaseSuggestionFrequency Frequency `json:"purchase_suggestion_frequency" db:"purchase_suggestion_frequency"`
	CreatedAt                   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt                   time.Time `json:"updated_at" db:"updated_at"`
}

// DefaultNotificationConfig returns the settings created lazily for a member.
func DefaultNotificationConfig(memberID string, now time.Time) *NotificationConfig {
	return &NotificationConfig{
		MemberID:                    memberID,
		ExpiryEnabled:               true,
		ExpiryAdvanceDays:           3,
		LowStockEnabled:             true,
		WasteReportEnabled:          true,
		WasteReportFrequency:        FrequencyWeekly,
		UsageReminderEnabled:        false,
		UsageReminderFrequency:      FrequencyWeekly,
		PurchaseSuggestionEnabled:   true,
		PurchaseSuggestionFrequency: FrequencyDaily,
		CreatedAt:                   now,
		UpdatedAt:                   now,
	}
}

// Notification is a generated alert for one member.
type Notification struct {
	ID           string           `json:"id" db:"id"`
	MemberID     string           `json:"member_id" db:"member_id"`
	Type         NotificationType `json:"type" db:"type"`
	Title        string           `json:"title" db:"title"`
	Message      string           `json:"message" db:"message"`
	Priority     Priority         `json:"priority" db:"priority"`
	Payload      RawJSON          `json:"payload,omitempty" db:"payload"`
	DedupKey     string           `json:"-" db:"dedup_key"`
	IsRead       bool             `json:"is_read" db:"is_read"`
	CreatedAt    time.Time        `json:"created_at" db:"created_at"`
	ReadAt       *time.Time       `json:"read_at,omitempty" db:"read_at"`
	ScheduledFor *time.Time       `json:"scheduled_for,omitempty" db:"scheduled_for"`
	ExpiresAt    *time.Time       `json:"expires_at,omitempty" db:"expires_at"`
}

// NotificationFilter narrows notification listings.
type NotificationFilter struct {
	MemberID string
	Type     NotificationType
	Priority Priority
	IsRead   *bool
	Page     int
	PageSize int
}

// UnreadCount summarizes unread notifications.
type UnreadCount struct {
	Total      int              `json:"total"`
	ByPriority map[Priority]int `json:"by_priority"`
}

// RawJSON is a JSON document stored in a text column.
type RawJSON json.RawMessage

// Value stores the document as text.
func (j RawJSON) Value() (driver.Value, error) {
	if len(j) == 0 {
		return nil, nil
	}
	return string(j), nil
}

// Scan reads the document back from a text or blob column.
func (j *RawJSON) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		*j = nil
	case []byte:
		*j = append(RawJSON(nil), v...)
	case string:
		*j = RawJSON(v)
	default:
		return errors.New("unsupported type for RawJSON")
	}
	return nil
}

// MarshalJSON emits the stored document verbatim.
func (j RawJSON) MarshalJSON() ([]byte, error) {
	if len(j) == 0 {
		return []byte("null"), nil
	}
	return j, nil
}

// UnmarshalJSON keeps a copy of the raw document.
func (j *RawJSON) UnmarshalJSON(data []byte) error {
	*j = append(RawJSON(nil), data...)
	return nil
}
