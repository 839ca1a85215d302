package query

import (
	"github.com/dailyyoga/studysync/querykey"
	"github.com/dailyyoga/studysync/resource"
)

// Rule is the cache effect of one successful mutation
type Rule struct {
	// InvalidateLists marks every list of the resource stale
	InvalidateLists bool
	// PatchDetail writes the returned entity into its detail key
	PatchDetail bool
	// DropDetail removes the detail key of the affected id
	DropDetail bool
	// Also lists related prefixes to invalidate, e.g. budgets after an expense changes
	Also []querykey.Key
}

// Table maps resource name and operation to a rule
type Table map[string]map[resource.Op]Rule

// Rule returns the rule declared for name and op
func (t Table) Rule(name string, op resource.Op) (Rule, bool) {
	ops, ok := t[name]
	if !ok {
		return Rule{}, false
	}
	r, ok := ops[op]
	return r, ok
}

// Set declares the rule of name and op, returning the table
func (t Table) Set(name string, op resource.Op, r Rule) Table {
	ops, ok := t[name]
	if !ok {
		ops = make(map[resource.Op]Rule)
		t[name] = ops
	}
	ops[op] = r
	return t
}

// standardRules is the default for a resource: writes patch or drop the
// detail and invalidate lists, since filters and sorting may classify the
// entity differently afterwards.
func standardRules(also ...querykey.Key) map[resource.Op]Rule {
	return map[resource.Op]Rule{
		resource.OpCreate: {InvalidateLists: true, PatchDetail: true, Also: also},
		resource.OpUpdate: {InvalidateLists: true, PatchDetail: true, Also: also},
		resource.OpDelete: {InvalidateLists: true, DropDetail: true, Also: also},
	}
}

// DefaultTable declares the reconciliation of every resource definition
func DefaultTable() Table {
	t := Table{}
	for _, def := range resource.Definitions() {
		t[def.Name] = standardRules()
	}

	// expense totals feed each budget's spent amount
	t[resource.Expenses.Name] = standardRules(resource.Budgets.Keys().All())

	// deleting a board deletes its tasks
	t.Set(resource.KanbanBoards.Name, resource.OpDelete, Rule{
		InvalidateLists: true,
		DropDetail:      true,
		Also:            []querykey.Key{resource.KanbanTasks.Keys().All()},
	})

	// lists filtered by semester change when the semester goes away
	t.Set(resource.Semesters.Name, resource.OpDelete, Rule{
		InvalidateLists: true,
		DropDetail:      true,
		Also: []querykey.Key{
			resource.Expenses.Keys().Lists(),
			resource.Budgets.Keys().Lists(),
		},
	})

	// posts embed their category name
	for _, op := range []resource.Op{resource.OpUpdate, resource.OpDelete} {
		r, _ := t.Rule(resource.Categories.Name, op)
		r.Also = []querykey.Key{resource.Blogs.Keys().All()}
		t.Set(resource.Categories.Name, op, r)
	}
	return t
}

// Change lists the keys a reconciliation touched
type Change struct {
	Resource    string
	Op          resource.Op
	Patched     []querykey.Key
	Removed     []querykey.Key
	Invalidated []querykey.Key
}

// Empty reports whether nothing was touched
func (c Change) Empty() bool {
	return len(c.Patched) == 0 && len(c.Removed) == 0 && len(c.Invalidated) == 0
}
