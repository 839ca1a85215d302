package resource

import (
	"time"

	"github.com/shopspring/decimal"
)

// KanbanBoard holds tasks in ordered columns
type KanbanBoard struct {
	Base
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Columns     []string `json:"columns"`
}

// KanbanBoardInput creates or updates a board
type KanbanBoardInput struct {
	Title       string   `json:"title,omitempty"`
	Description string   `json:"description,omitempty"`
	Columns     []string `json:"columns,omitempty"`
}

// KanbanTask is a card on a board
type KanbanTask struct {
	Base
	BoardID     string    `json:"board"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Status      string    `json:"status"`
	Priority    string    `json:"priority,omitempty"`
	DueDate     time.Time `json:"dueDate,omitzero"`
	Order       int       `json:"order"`
}

// KanbanTaskFilter narrows the task list
type KanbanTaskFilter struct {
	BoardID string `json:"board,omitempty"`
	Status  string `json:"status,omitempty"`
}

// KanbanTaskInput creates or moves a task
type KanbanTaskInput struct {
	BoardID     string     `json:"board,omitempty"`
	Title       string     `json:"title,omitempty"`
	Description string     `json:"description,omitempty"`
	Status      string     `json:"status,omitempty"`
	Priority    string     `json:"priority,omitempty"`
	DueDate     *time.Time `json:"dueDate,omitempty"`
	Order       *int       `json:"order,omitempty"`
}

// User is an account profile
type User struct {
	Base
	Name   string `json:"name"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	Avatar string `json:"avatar,omitempty"`
}

// UserFilter narrows the user list
type UserFilter struct {
	Role   string `json:"role,omitempty"`
	Search string `json:"search,omitempty"`
	Page
}

// UserInput updates a profile
type UserInput struct {
	Name   string `json:"name,omitempty"`
	Email  string `json:"email,omitempty"`
	Role   string `json:"role,omitempty"`
	Avatar string `json:"avatar,omitempty"`
}

// Job is a job board posting
type Job struct {
	Base
	Title       string          `json:"title"`
	Company     string          `json:"company"`
	Location    string          `json:"location"`
	Type        string          `json:"type"`
	Remote      bool            `json:"remote"`
	SalaryMin   decimal.Decimal `json:"salaryMin"`
	SalaryMax   decimal.Decimal `json:"salaryMax"`
	Currency    string          `json:"currency,omitempty"`
	Description string          `json:"description"`
	Tags        []string        `json:"tags,omitempty"`
	PostedAt    time.Time       `json:"postedAt,omitzero"`
}

// JobFilter narrows the job list
type JobFilter struct {
	Type     string `json:"type,omitempty"`
	Location string `json:"location,omitempty"`
	Remote   *bool  `json:"remote,omitempty"`
	Search   string `json:"search,omitempty"`
	Page
}

// JobInput creates or updates a posting
type JobInput struct {
	Title       string           `json:"title,omitempty"`
	Company     string           `json:"company,omitempty"`
	Location    string           `json:"location,omitempty"`
	Type        string           `json:"type,omitempty"`
	Remote      *bool            `json:"remote,omitempty"`
	SalaryMin   *decimal.Decimal `json:"salaryMin,omitempty"`
	SalaryMax   *decimal.Decimal `json:"salaryMax,omitempty"`
	Currency    string           `json:"currency,omitempty"`
	Description string           `json:"description,omitempty"`
	Tags        []string         `json:"tags,omitempty"`
}

// SupportTicket is a help request
type SupportTicket struct {
	Base
	Subject  string `json:"subject"`
	Message  string `json:"message"`
	Email    string `json:"email"`
	Status   string `json:"status"`
	Priority string `json:"priority,omitempty"`
}

// SupportTicketFilter narrows the ticket list
type SupportTicketFilter struct {
	Status   string `json:"status,omitempty"`
	Priority string `json:"priority,omitempty"`
}

// SupportTicketInput opens or updates a ticket
type SupportTicketInput struct {
	Subject  string `json:"subject,omitempty"`
	Message  string `json:"message,omitempty"`
	Email    string `json:"email,omitempty"`
	Status   string `json:"status,omitempty"`
	Priority string `json:"priority,omitempty"`
}
