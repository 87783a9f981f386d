package server

import (
	"github.com/shopspring/decimal"

	"doerly/internal/domain"
)

// Request payloads. Money travels as decimal strings so amounts like "10.50"
// round-trip without float drift.

type RegisterRequest struct {
	Email    string `json:"email" format:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
	Role     string `json:"role,omitempty" enum:"user,helper"`
}

type LoginRequest struct {
	Email    string `json:"email" format:"email"`
	Password string `json:"password"`
}

type CreateTaskRequest struct {
	Title         string  `json:"title"`
	Description   string  `json:"description"`
	Type          string  `json:"task_type" enum:"ai,helper"`
	Urgency       string  `json:"urgency,omitempty" enum:"low,medium,high"`
	EstimatedCost *string `json:"estimated_cost,omitempty"`
}

type SetTaskStatusRequest struct {
	Status string `json:"status" enum:"pending,in_progress,completed,disputed"`
}

type AcceptTaskRequest struct {
	TaskID string `json:"task_id"`
}

type PaymentRequest struct {
	Amount         string  `json:"amount"`
	RecipientEmail *string `json:"recipient_email,omitempty" format:"email"`
}

type EscrowRequest struct {
	TaskID string `json:"task_id"`
	Amount string `json:"amount"`
}

type ReleaseRequest struct {
	TransactionID string `json:"transaction_id"`
}

type CreateAutomationRequest struct {
	Type     string `json:"automation_type"`
	Schedule string `json:"schedule"`
}

type CreateDisputeRequest struct {
	TaskID   string `json:"task_id"`
	HelperID string `json:"helper_id"`
	Reason   string `json:"reason"`
}

type ExtractTaskRequest struct {
	Text string `json:"text"`
}

// Response payloads

type UserResponse struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	FullName      string `json:"full_name"`
	Role          string `json:"role" enum:"user,helper"`
	WalletBalance string `json:"wallet_balance"`
	CreatedAt     string `json:"created_at" format:"date-time"`
}

type AuthResponse struct {
	Token string       `json:"token"`
	User  UserResponse `json:"user"`
}

type WalletResponse struct {
	Balance string `json:"balance"`
}

type TaskResponse struct {
	ID            string   `json:"id"`
	Title         string   `json:"title"`
	Description   string   `json:"description"`
	Type          string   `json:"task_type" enum:"ai,helper"`
	Status        string   `json:"status" enum:"pending,in_progress,completed,disputed"`
	CreatedBy     string   `json:"created_by"`
	AssignedTo    *string  `json:"assigned_to,omitempty"`
	Urgency       string   `json:"urgency" enum:"low,medium,high"`
	EstimatedCost string   `json:"estimated_cost"`
	ProofURLs     []string `json:"proof_urls,omitempty"`
	CreatedAt     string   `json:"created_at" format:"date-time"`
}

type TransactionResponse struct {
	ID        string  `json:"id"`
	TaskID    string  `json:"task_id"`
	FromUser  string  `json:"from_user"`
	ToUser    *string `json:"to_user,omitempty"`
	Amount    string  `json:"amount"`
	Status    string  `json:"status" enum:"escrow,completed"`
	CreatedAt string  `json:"created_at" format:"date-time"`
}

type AutomationResponse struct {
	ID        string  `json:"id"`
	UserID    string  `json:"user_id"`
	Type      string  `json:"automation_type"`
	Schedule  string  `json:"schedule"`
	Active    bool    `json:"active"`
	LastRun   *string `json:"last_run,omitempty"`
	CreatedAt string  `json:"created_at" format:"date-time"`
}

type NotificationResponse struct {
	ID        string  `json:"id"`
	UserID    string  `json:"user_id"`
	TaskID    *string `json:"task_id,omitempty"`
	Message   string  `json:"message"`
	Read      bool    `json:"read"`
	CreatedAt string  `json:"created_at" format:"date-time"`
}

type DisputeResponse struct {
	ID         string  `json:"id"`
	TaskID     string  `json:"task_id"`
	UserID     string  `json:"user_id"`
	HelperID   string  `json:"helper_id"`
	Reason     string  `json:"reason"`
	Status     string  `json:"status" enum:"open,resolved"`
	Resolution *string `json:"resolution,omitempty"`
	CreatedAt  string  `json:"created_at" format:"date-time"`
}

type SuccessResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

type AnalysisResponse struct {
	Analysis string `json:"analysis"`
	Error    string `json:"error,omitempty"`
}

type TaskSuggestionResponse struct {
	TaskSuggestion string `json:"task_suggestion,omitempty"`
	Error          string `json:"error,omitempty"`
}

func userResponse(u domain.User) UserResponse {
	return UserResponse{
		ID:            u.ID,
		Email:         u.Email,
		FullName:      u.FullName,
		Role:          u.Role,
		WalletBalance: money(u.WalletBalance),
		CreatedAt:     u.CreatedAt,
	}
}

func mapUsers(items []domain.User) []UserResponse {
	res := make([]UserResponse, 0, len(items))
	for _, u := range items {
		res = append(res, userResponse(u))
	}
	return res
}

func taskResponse(t domain.Task) TaskResponse {
	return TaskResponse{
		ID:            t.ID,
		Title:         t.Title,
		Description:   t.Description,
		Type:          t.Type,
		Status:        t.Status,
		CreatedBy:     t.CreatedBy,
		AssignedTo:    t.AssignedTo,
		Urgency:       t.Urgency,
		EstimatedCost: money(t.EstimatedCost),
		ProofURLs:     t.ProofURLs,
		CreatedAt:     t.CreatedAt,
	}
}

func mapTasks(items []domain.Task) []TaskResponse {
	res := make([]TaskResponse, 0, len(items))
	for _, t := range items {
		res = append(res, taskResponse(t))
	}
	return res
}

func transactionResponse(t domain.Transaction) TransactionResponse {
	return TransactionResponse{
		ID:        t.ID,
		TaskID:    t.TaskID,
		FromUser:  t.FromUser,
		ToUser:    t.ToUser,
		Amount:    money(t.Amount),
		Status:    t.Status,
		CreatedAt: t.CreatedAt,
	}
}

func mapTransactions(items []domain.Transaction) []TransactionResponse {
	res := make([]TransactionResponse, 0, len(items))
	for _, t := range items {
		res = append(res, transactionResponse(t))
	}
	return res
}

func automationResponse(a domain.Automation) AutomationResponse {
	return AutomationResponse{
		ID:        a.ID,
		UserID:    a.UserID,
		Type:      a.Type,
		Schedule:  a.Schedule,
		Active:    a.Active,
		LastRun:   a.LastRun,
		CreatedAt: a.CreatedAt,
	}
}

func mapAutomations(items []domain.Automation) []AutomationResponse {
	res := make([]AutomationResponse, 0, len(items))
	for _, a := range items {
		res = append(res, automationResponse(a))
	}
	return res
}

func notificationResponse(n domain.Notification) NotificationResponse {
	return NotificationResponse{
		ID:        n.ID,
		UserID:    n.UserID,
		TaskID:    n.TaskID,
		Message:   n.Message,
		Read:      n.Read,
		CreatedAt: n.CreatedAt,
	}
}

func mapNotifications(items []domain.Notification) []NotificationResponse {
	res := make([]NotificationResponse, 0, len(items))
	for _, n := range items {
		res = append(res, notificationResponse(n))
	}
	return res
}

func disputeResponse(d domain.Dispute) DisputeResponse {
	return DisputeResponse{
		ID:         d.ID,
		TaskID:     d.TaskID,
		UserID:     d.UserID,
		HelperID:   d.HelperID,
		Reason:     d.Reason,
		Status:     d.Status,
		Resolution: d.Resolution,
		CreatedAt:  d.CreatedAt,
	}
}

func mapDisputes(items []domain.Dispute) []DisputeResponse {
	res := make([]DisputeResponse, 0, len(items))
	for _, d := range items {
		res = append(res, disputeResponse(d))
	}
	return res
}

func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}
