package domain

import "github.com/shopspring/decimal"

// Sentinel task references used by ledger entries that are not tied to a task.
const (
	TxRefAddFunds = "add_funds"
	TxRefWithdraw = "withdraw"
	TxRefSend     = "send_money"
)

type User struct {
	ID            string          `json:"id"`
	Email         string          `json:"email"`
	PasswordHash  string          `json:"-"`
	FullName      string          `json:"full_name"`
	Role          string          `json:"role"`
	WalletBalance decimal.Decimal `json:"wallet_balance"`
	CreatedAt     string          `json:"created_at"`
}

type Task struct {
	ID            string          `json:"id"`
	Title         string          `json:"title"`
	Description   string          `json:"description"`
	Type          string          `json:"task_type"`
	Status        string          `json:"status"`
	CreatedBy     string          `json:"created_by"`
	AssignedTo    *string         `json:"assigned_to,omitempty"`
	Urgency       string          `json:"urgency"`
	EstimatedCost decimal.Decimal `json:"estimated_cost"`
	ProofURLs     []string        `json:"proof_urls"`
	CreatedAt     string          `json:"created_at"`
}

// Transaction is one ledger entry. Entries are immutable once written except
// for Status, which only ever moves escrow -> completed.
type Transaction struct {
	ID        string          `json:"id"`
	TaskID    string          `json:"task_id"`
	FromUser  string          `json:"from_user"`
	ToUser    *string         `json:"to_user,omitempty"`
	Amount    decimal.Decimal `json:"amount"`
	Status    string          `json:"status"`
	CreatedAt string          `json:"created_at"`
}

type Automation struct {
	ID        string  `json:"id"`
	UserID    string  `json:"user_id"`
	Type      string  `json:"automation_type"`
	Schedule  string  `json:"schedule"`
	Active    bool    `json:"active"`
	LastRun   *string `json:"last_run,omitempty"`
	CreatedAt string  `json:"created_at"`
}

type Notification struct {
	ID        string  `json:"id"`
	UserID    string  `json:"user_id"`
	TaskID    *string `json:"task_id,omitempty"`
	Message   string  `json:"message"`
	Read      bool    `json:"read"`
	CreatedAt string  `json:"created_at"`
}

type Dispute struct {
	ID         string  `json:"id"`
	TaskID     string  `json:"task_id"`
	UserID     string  `json:"user_id"`
	HelperID   string  `json:"helper_id"`
	Reason     string  `json:"reason"`
	Status     string  `json:"status"`
	Resolution *string `json:"resolution,omitempty"`
	CreatedAt  string  `json:"created_at"`
}

// Event is one row of the append-only audit log written inside the same
// transaction as the mutation it describes.
type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts"`
	Type       string `json:"type"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}
