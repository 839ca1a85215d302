package resource

import "github.com/dailyyoga/studysync/httpclient"

// Typed services of every resource
type (
	BlogService            = Service[Blog, BlogFilter, BlogInput, BlogInput]
	CategoryService        = Service[Category, NoFilter, CategoryInput, CategoryInput]
	ExpenseService         = Service[Expense, ExpenseFilter, ExpenseInput, ExpenseInput]
	IncomeService          = Service[IncomeEntry, IncomeFilter, IncomeInput, IncomeInput]
	BudgetService          = Service[Budget, BudgetFilter, BudgetInput, BudgetInput]
	SemesterService        = Service[Semester, SemesterFilter, SemesterInput, SemesterInput]
	PaymentScheduleService = Service[PaymentSchedule, PaymentScheduleFilter, PaymentScheduleInput, PaymentScheduleInput]
	SavingsGoalService     = Service[SavingsGoal, NoFilter, SavingsGoalInput, SavingsGoalInput]
	KanbanBoardService     = Service[KanbanBoard, NoFilter, KanbanBoardInput, KanbanBoardInput]
	KanbanTaskService      = Service[KanbanTask, KanbanTaskFilter, KanbanTaskInput, KanbanTaskInput]
	QATagService           = Service[QATag, QATagFilter, QATagInput, QATagInput]
	UserService            = Service[User, UserFilter, UserInput, UserInput]
	JobService             = Service[Job, JobFilter, JobInput, JobInput]
	SupportTicketService   = Service[SupportTicket, SupportTicketFilter, SupportTicketInput, SupportTicketInput]
)

// Services holds one service per resource, all sharing a client
type Services struct {
	Blogs            *BlogService
	Categories       *CategoryService
	Expenses         *ExpenseService
	Income           *IncomeService
	Budgets          *BudgetService
	Semesters        *SemesterService
	PaymentSchedules *PaymentScheduleService
	SavingsGoals     *SavingsGoalService
	KanbanBoards     *KanbanBoardService
	KanbanTasks      *KanbanTaskService
	QATags           *QATagService
	Users            *UserService
	Jobs             *JobService
	SupportTickets   *SupportTicketService
}

// NewServices creates every resource service on client
func NewServices(client httpclient.Client) *Services {
	return &Services{
		Blogs:            NewService[Blog, BlogFilter, BlogInput, BlogInput](client, Blogs),
		Categories:       NewService[Category, NoFilter, CategoryInput, CategoryInput](client, Categories),
		Expenses:         NewService[Expense, ExpenseFilter, ExpenseInput, ExpenseInput](client, Expenses),
		Income:           NewService[IncomeEntry, IncomeFilter, IncomeInput, IncomeInput](client, Income),
		Budgets:          NewService[Budget, BudgetFilter, BudgetInput, BudgetInput](client, Budgets),
		Semesters:        NewService[Semester, SemesterFilter, SemesterInput, SemesterInput](client, Semesters),
		PaymentSchedules: NewService[PaymentSchedule, PaymentScheduleFilter, PaymentScheduleInput, PaymentScheduleInput](client, PaymentSchedules),
		SavingsGoals:     NewService[SavingsGoal, NoFilter, SavingsGoalInput, SavingsGoalInput](client, SavingsGoals),
		KanbanBoards:     NewService[KanbanBoard, NoFilter, KanbanBoardInput, KanbanBoardInput](client, KanbanBoards),
		KanbanTasks:      NewService[KanbanTask, KanbanTaskFilter, KanbanTaskInput, KanbanTaskInput](client, KanbanTasks),
		QATags:           NewService[QATag, QATagFilter, QATagInput, QATagInput](client, QATags),
		Users:            NewService[User, UserFilter, UserInput, UserInput](client, Users),
		Jobs:             NewService[Job, JobFilter, JobInput, JobInput](client, Jobs),
		SupportTickets:   NewService[SupportTicket, SupportTicketFilter, SupportTicketInput, SupportTicketInput](client, SupportTickets),
	}
}
