package app

import (
	"github.com/dailyyoga/studysync/query"
	"github.com/dailyyoga/studysync/resource"
)

// Cached bindings of every resource service
type (
	Blogs            = query.Resource[resource.Blog, resource.BlogFilter, resource.BlogInput, resource.BlogInput]
	Categories       = query.Resource[resource.Category, resource.NoFilter, resource.CategoryInput, resource.CategoryInput]
	Expenses         = query.Resource[resource.Expense, resource.ExpenseFilter, resource.ExpenseInput, resource.ExpenseInput]
	Income           = query.Resource[resource.IncomeEntry, resource.IncomeFilter, resource.IncomeInput, resource.IncomeInput]
	Budgets          = query.Resource[resource.Budget, resource.BudgetFilter, resource.BudgetInput, resource.BudgetInput]
	Semesters        = query.Resource[resource.Semester, resource.SemesterFilter, resource.SemesterInput, resource.SemesterInput]
	PaymentSchedules = query.Resource[resource.PaymentSchedule, resource.PaymentScheduleFilter, resource.PaymentScheduleInput, resource.PaymentScheduleInput]
	SavingsGoals     = query.Resource[resource.SavingsGoal, resource.NoFilter, resource.SavingsGoalInput, resource.SavingsGoalInput]
	KanbanBoards     = query.Resource[resource.KanbanBoard, resource.NoFilter, resource.KanbanBoardInput, resource.KanbanBoardInput]
	KanbanTasks      = query.Resource[resource.KanbanTask, resource.KanbanTaskFilter, resource.KanbanTaskInput, resource.KanbanTaskInput]
	QATags           = query.Resource[resource.QATag, resource.QATagFilter, resource.QATagInput, resource.QATagInput]
	Users            = query.Resource[resource.User, resource.UserFilter, resource.UserInput, resource.UserInput]
	Jobs             = query.Resource[resource.Job, resource.JobFilter, resource.JobInput, resource.JobInput]
	SupportTickets   = query.Resource[resource.SupportTicket, resource.SupportTicketFilter, resource.SupportTicketInput, resource.SupportTicketInput]
)

// Resources is the cached view of every backend resource
type Resources struct {
	Blogs            *Blogs
	Categories       *Categories
	Expenses         *Expenses
	Income           *Income
	Budgets          *Budgets
	Semesters        *Semesters
	PaymentSchedules *PaymentSchedules
	SavingsGoals     *SavingsGoals
	KanbanBoards     *KanbanBoards
	KanbanTasks      *KanbanTasks
	QATags           *QATags
	Users            *Users
	Jobs             *Jobs
	SupportTickets   *SupportTickets
}

func bindResources(c *query.Client, s *resource.Services) *Resources {
	return &Resources{
		Blogs:            query.Bind(c, s.Blogs),
		Categories:       query.Bind(c, s.Categories),
		Expenses:         query.Bind(c, s.Expenses),
		Income:           query.Bind(c, s.Income),
		Budgets:          query.Bind(c, s.Budgets),
		Semesters:        query.Bind(c, s.Semesters),
		PaymentSchedules: query.Bind(c, s.PaymentSchedules),
		SavingsGoals:     query.Bind(c, s.SavingsGoals),
		KanbanBoards:     query.Bind(c, s.KanbanBoards),
		KanbanTasks:      query.Bind(c, s.KanbanTasks),
		QATags:           query.Bind(c, s.QATags),
		Users:            query.Bind(c, s.Users),
		Jobs:             query.Bind(c, s.Jobs),
		SupportTickets:   query.Bind(c, s.SupportTickets),
	}
}
