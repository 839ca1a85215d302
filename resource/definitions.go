package resource

import "net/http"

// Resource definitions
var (
	Blogs = register(Definition{
		Name: "blogs", Label: "Blog post", Domain: "blog",
		Endpoints: crud("post", "posts"),
	})
	Categories = register(Definition{
		Name: "categories", Label: "Category", Domain: "blog",
		Endpoints: crud("category", "categories"),
	})
	Expenses = register(Definition{
		Name: "expenses", Label: "Expense", Domain: "expense-tracker",
		Endpoints: crud("expense", "expenses"),
	})
	Income = register(Definition{
		Name: "income", Label: "Income", Domain: "expense-tracker",
		Endpoints: crud("income", "incomes"),
	})
	Budgets = register(Definition{
		Name: "budgets", Label: "Budget", Domain: "expense-tracker",
		Endpoints: crud("budget", "budgets"),
	})
	Semesters = register(Definition{
		Name: "semesters", Label: "Semester", Domain: "expense-tracker",
		Endpoints: crud("semester", "semesters"),
	})
	PaymentSchedules = register(Definition{
		Name: "payment-schedules", Label: "Payment schedule", Domain: "expense-tracker",
		Endpoints: crud("payment-schedule", "payment-schedules"),
	})
	SavingsGoals = register(Definition{
		Name: "savings-goals", Label: "Savings goal", Domain: "expense-tracker",
		Endpoints: crud("savings-goal", "savings-goals"),
	})
	KanbanBoards = register(Definition{
		Name: "kanban-boards", Label: "Board", Domain: "kanban",
		Endpoints: crud("board", "boards"),
	})
	KanbanTasks = register(Definition{
		Name: "kanban-tasks", Label: "Task", Domain: "kanban",
		Endpoints: withEndpoint(crud("task", "tasks"), OpUpdate,
			Endpoint{Method: http.MethodPatch, Action: "update-task", WithID: true}),
	})
	QATags = register(Definition{
		Name: "qa-tags", Label: "Tag", Domain: "qa",
		Endpoints: crud("tag", "tags", OpList, OpGet, OpCreate, OpDelete),
	})
	// account creation belongs to the sign-up flow, not this layer
	Users = register(Definition{
		Name: "users", Label: "User", Domain: "user",
		Endpoints: crud("user", "users", OpList, OpGet, OpUpdate, OpDelete),
	})
	Jobs = register(Definition{
		Name: "jobs", Label: "Job", Domain: "job",
		Endpoints: crud("job", "jobs"),
	})
	// tickets are closed, never deleted
	SupportTickets = register(Definition{
		Name: "support-tickets", Label: "Support ticket", Domain: "support",
		Endpoints: crud("ticket", "tickets", OpList, OpGet, OpCreate, OpUpdate),
	})
)

func withEndpoint(eps map[Op]Endpoint, op Op, ep Endpoint) map[Op]Endpoint {
	eps[op] = ep
	return eps
}
