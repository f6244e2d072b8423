// Package model содержит доменные сущности маркетплейса вовлечённости.
package model

import "time"

// Role определяет роль пользователя.
type Role string

const (
	RoleCreator Role = "creator"
	RoleEngager Role = "engager"
	RoleAdmin   Role = "admin"
)

// VerificationStatus описывает состояние платного допуска пользователя.
type VerificationStatus string

const (
	VerificationUnpaid   VerificationStatus = "unpaid"
	VerificationPending  VerificationStatus = "pending"
	VerificationVerified VerificationStatus = "verified"
	VerificationRejected VerificationStatus = "rejected"
)

// User представляет зарегистрированного пользователя и его кошелёк.
type User struct {
	ID                 string             `json:"id"`
	Login              string             `json:"login"`
	PasswordHash       []byte             `json:"-"`
	Name               string             `json:"name"`
	Role               Role               `json:"role"`
	Balance            Money              `json:"balance"`
	XP                 int64              `json:"xp"`
	VerificationStatus VerificationStatus `json:"verification_status"`
	CreatedAt          time.Time          `json:"created_at"`
}

// TransactionType описывает вид движения средств.
type TransactionType string

const (
	TransactionWithdrawal  TransactionType = "withdrawal"
	TransactionDeposit     TransactionType = "deposit"
	TransactionEarning     TransactionType = "earning"
	TransactionFee         TransactionType = "fee"
	TransactionAdjustment  TransactionType = "adjustment"
	TransactionPurchase    TransactionType = "purchase"
	TransactionDigitalSale TransactionType = "digital_sale"
)

// TransactionStatus описывает статус проводки.
type TransactionStatus string

const (
	TransactionPending   TransactionStatus = "pending"
	TransactionCompleted TransactionStatus = "completed"
	TransactionRejected  TransactionStatus = "rejected"
)

// Direction показывает, увеличивает проводка баланс или уменьшает.
type Direction string

const (
	DirectionCredit Direction = "credit"
	DirectionDebit  Direction = "debit"
)

// Transaction: запись журнала движения средств пользователя.
// Amount положителен для всех типов, кроме корректировок: у них хранится сумма со знаком.
type Transaction struct {
	ID          string            `json:"id"`
	UserID      string            `json:"user_id"`
	Type        TransactionType   `json:"type"`
	Status      TransactionStatus `json:"status"`
	Amount      Money             `json:"amount"`
	Direction   Direction         `json:"direction"`
	Method      string            `json:"method,omitempty"`
	Details     string            `json:"details,omitempty"`
	ReferenceID string            `json:"reference_id,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// CampaignStatus описывает статус кампании.
type CampaignStatus string

const (
	CampaignActive    CampaignStatus = "active"
	CampaignCompleted CampaignStatus = "completed"
)

// Campaign: оплаченный создателем пул одинаковых заданий на одной платформе.
type Campaign struct {
	ID              string         `json:"id"`
	CreatorID       string         `json:"creator_id"`
	Title           string         `json:"title"`
	Platform        string         `json:"platform"`
	Action          string         `json:"action"`
	TargetURL       string         `json:"target_url"`
	Instructions    string         `json:"instructions,omitempty"`
	TotalBudget     Money          `json:"total_budget"`
	RewardPerTask   Money          `json:"reward_per_task"`
	RemainingBudget Money          `json:"remaining_budget"`
	CompletedCount  int64          `json:"completed_count"`
	Status          CampaignStatus `json:"status"`
	CreatedAt       time.Time      `json:"created_at"`
}

// Task: вычисляемое представление активной кампании, доступной исполнителю.
type Task struct {
	CampaignID   string `json:"campaign_id"`
	Title        string `json:"title"`
	Platform     string `json:"platform"`
	Action       string `json:"action"`
	TargetURL    string `json:"target_url"`
	Instructions string `json:"instructions,omitempty"`
	Reward       Money  `json:"reward"`
	Remaining    int64  `json:"remaining"`
}

// TaskCompletion фиксирует выполнение задания кампании конкретным исполнителем.
type TaskCompletion struct {
	CampaignID string    `json:"campaign_id"`
	UserID     string    `json:"user_id"`
	Proof      string    `json:"proof"`
	Confidence int       `json:"confidence"`
	CreatedAt  time.Time `json:"created_at"`
}

// BroadcastUserID: адресат широковещательного уведомления.
const BroadcastUserID = "all"

// NotificationType задаёт оформление уведомления.
type NotificationType string

const (
	NotificationInfo    NotificationType = "info"
	NotificationSuccess NotificationType = "success"
	NotificationWarning NotificationType = "warning"
	NotificationError   NotificationType = "error"
)

// Notification: адресное или широковещательное уведомление.
// Read заполняется для конкретного получателя при выборке.
type Notification struct {
	ID        string           `json:"id"`
	UserID    string           `json:"user_id"`
	Type      NotificationType `json:"type"`
	Title     string           `json:"title"`
	Message   string           `json:"message"`
	Read      bool             `json:"read"`
	CreatedAt time.Time        `json:"created_at"`
}

// Gig: услуга продавца на маркетплейсе.
type Gig struct {
	ID           string    `json:"id"`
	SellerID     string    `json:"seller_id"`
	Title        string    `json:"title"`
	Description  string    `json:"description,omitempty"`
	Category     string    `json:"category,omitempty"`
	Price        Money     `json:"price"`
	DeliveryDays int       `json:"delivery_days"`
	SalesCount   int64     `json:"sales_count"`
	CreatedAt    time.Time `json:"created_at"`
}

// Storefront: витрина продавца цифровых товаров.
type Storefront struct {
	ID          string    `json:"id"`
	OwnerID     string    `json:"owner_id"`
	Name        string    `json:"name"`
	Slug        string    `json:"slug"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// DigitalProduct: цифровой товар витрины.
type DigitalProduct struct {
	ID          string    `json:"id"`
	SellerID    string    `json:"seller_id"`
	StoreID     string    `json:"store_id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Price       Money     `json:"price"`
	FileKey     string    `json:"-"`
	SalesCount  int64     `json:"sales_count"`
	CreatedAt   time.Time `json:"created_at"`
}

// Video: промо-ролик пользователя.
type Video struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"owner_id"`
	Title     string    `json:"title"`
	URL       string    `json:"url"`
	Platform  string    `json:"platform"`
	CreatedAt time.Time `json:"created_at"`
}

// Balance содержит текущий баланс и сумму выведенных средств.
type Balance struct {
	Current   Money `json:"current"`
	Withdrawn Money `json:"withdrawn"`
	Pending   Money `json:"pending"`
}
