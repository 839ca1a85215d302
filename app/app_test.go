package app

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/dailyyoga/studysync/apitest"
	"github.com/dailyyoga/studysync/broadcast"
	"github.com/dailyyoga/studysync/cache"
	"github.com/dailyyoga/studysync/config"
	"github.com/dailyyoga/studysync/cron"
	"github.com/dailyyoga/studysync/httpclient"
	"github.com/dailyyoga/studysync/logger"
	"github.com/dailyyoga/studysync/notify"
	"github.com/dailyyoga/studysync/resource"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testToken = "test-token"

func testConfig(srv *apitest.Server) *config.Config {
	return &config.Config{
		Env:   config.Production,
		Token: testToken,
		HTTP:  &httpclient.Config{BaseURL: srv.BaseURL()},
		Maintenance: &cron.Config{
			GCSpec:       cron.Off,
			SnapshotSpec: cron.Off,
		},
	}
}

func newTestApp(t *testing.T, srv *apitest.Server, cfg *config.Config, opts ...Option) (*App, *notify.Recorder) {
	t.Helper()
	rec := notify.NewRecorder()
	a, err := New(logger.Nop(), cfg, append([]Option{WithNotifier(rec)}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	require.NoError(t, a.Start(context.Background()))
	return a, rec
}

func newServer(t *testing.T) *apitest.Server {
	t.Helper()
	srv := apitest.New(apitest.WithToken(testToken))
	t.Cleanup(srv.Close)
	return srv
}

func TestNew_Errors(t *testing.T) {
	_, err := New(logger.Nop(), nil)
	assert.ErrorIs(t, err, ErrNilConfig)

	_, err = New(logger.Nop(), &config.Config{})
	assert.Error(t, err, "a config without a base url must be rejected")
}

func TestApp_ReadAndMutate(t *testing.T) {
	srv := newServer(t)
	srv.Seed("expenses", apitest.Doc{"_id": "e1", "title": "Rent", "amount": "500"})
	a, rec := newTestApp(t, srv, testConfig(srv))
	ctx := context.Background()

	require.True(t, a.Auth.Authenticated())

	list := a.Resources.Expenses.List(resource.ExpenseFilter{}).Fetch(ctx)
	require.NoError(t, list.Err)
	require.Len(t, list.Data, 1)

	amount := decimal.RequireFromString("12.50")
	created, err := a.Resources.Expenses.Create().Mutate(ctx, resource.ExpenseInput{Title: "Coffee", Amount: &amount})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)

	list = a.Resources.Expenses.List(resource.ExpenseFilter{}).Fetch(ctx)
	require.NoError(t, list.Err)
	assert.Len(t, list.Data, 2)
	assert.Equal(t, 2, srv.Calls("expenses", resource.OpList))

	assert.Eventually(t, func() bool {
		n, ok := rec.Last()
		return ok && n.Message == "Expense created"
	}, time.Second, 5*time.Millisecond)
}

func TestApp_LogoutPurgesCache(t *testing.T) {
	srv := newServer(t)
	srv.Seed("budgets", apitest.Doc{"_id": "b1", "category": "food", "limit": "200"})
	a, _ := newTestApp(t, srv, testConfig(srv))
	ctx := context.Background()

	res := a.Resources.Budgets.List(resource.BudgetFilter{}).Fetch(ctx)
	require.NoError(t, res.Err)
	require.Positive(t, a.Cache.Len())

	a.Logout()
	assert.False(t, a.Auth.Authenticated())
	assert.Zero(t, a.Cache.Len())

	res = a.Resources.Budgets.List(resource.BudgetFilter{}).Fetch(ctx)
	assert.Error(t, res.Err, "reads without a session must fail")

	require.NoError(t, a.Login(testToken))
	res = a.Resources.Budgets.List(resource.BudgetFilter{}).Fetch(ctx)
	require.NoError(t, res.Err)
	assert.Len(t, res.Data, 1)
}

func TestApp_UnauthorizedPurgesCache(t *testing.T) {
	srv := newServer(t)
	srv.Seed("jobs", apitest.Doc{"_id": "j1", "title": "Barista"})
	a, _ := newTestApp(t, srv, testConfig(srv))
	ctx := context.Background()

	q := a.Resources.Jobs.List(resource.JobFilter{})
	require.NoError(t, q.Fetch(ctx).Err)

	srv.SetToken("rotated")
	res := q.Refetch(ctx)
	require.Error(t, res.Err)
	assert.False(t, a.Auth.Authenticated())
	assert.Zero(t, a.Cache.Len())
}

func TestApp_BroadcastBetweenProcesses(t *testing.T) {
	srv := newServer(t)
	srv.Seed("expenses", apitest.Doc{"_id": "e1", "title": "Rent", "amount": "500"})
	bus := broadcast.NewMemory(logger.Nop())
	ctx := context.Background()

	first, _ := newTestApp(t, srv, testConfig(srv), WithBroadcaster(bus))
	second, _ := newTestApp(t, srv, testConfig(srv), WithBroadcaster(bus))

	list := second.Resources.Expenses.List(resource.ExpenseFilter{})
	require.Len(t, list.Fetch(ctx).Data, 1)

	amount := decimal.RequireFromString("3")
	_, err := first.Resources.Expenses.Create().Mutate(ctx, resource.ExpenseInput{Title: "Bus", Amount: &amount})
	require.NoError(t, err)

	snap, ok := second.Cache.Peek(list.Key())
	require.True(t, ok)
	assert.True(t, snap.Stale, "a remote create must invalidate local lists")

	res := list.Fetch(ctx)
	require.NoError(t, res.Err)
	assert.Len(t, res.Data, 2)

	first.Logout()
	assert.Zero(t, second.Cache.Len(), "logout clears every process sharing the bus")
}

func TestApp_RefocusFollowsEnv(t *testing.T) {
	tests := []struct {
		env  string
		want int
	}{
		{config.Production, 1},
		{config.Development, 0},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.env, func(t *testing.T) {
			srv := newServer(t)
			srv.Seed("categories", apitest.Doc{"_id": "c1", "name": "Food"})
			cfg := testConfig(srv)
			cfg.Env = tt.env
			cfg.Cache = &cache.Config{StaleTime: time.Millisecond}
			a, _ := newTestApp(t, srv, cfg)
			ctx := context.Background()

			obs := a.Resources.Categories.List(resource.NoFilter{}).Subscribe(ctx)
			t.Cleanup(obs.Close)
			require.Eventually(t, func() bool { return obs.Current().HasData }, time.Second, 5*time.Millisecond)
			time.Sleep(5 * time.Millisecond)

			n, err := a.Refocus(ctx)
			require.NoError(t, err)
			assert.Equal(t, tt.want, n)
		})
	}
}

func TestApp_TerminalNotifications(t *testing.T) {
	srv := newServer(t)
	var out bytes.Buffer
	cfg := testConfig(srv)
	a, err := New(logger.Nop(), cfg, WithOutput(&out))
	require.NoError(t, err)
	require.NoError(t, a.Start(context.Background()))

	_, err = a.Resources.SupportTickets.Create().Mutate(context.Background(), resource.SupportTicketInput{Subject: "Help"})
	require.NoError(t, err)

	require.NoError(t, a.Close())
	assert.Contains(t, out.String(), "created")
}

func TestApp_SyncNotifyDeliversBeforeReturn(t *testing.T) {
	srv := newServer(t)
	a, rec := newTestApp(t, srv, testConfig(srv), WithSyncNotify())

	_, err := a.Resources.Budgets.Create().Mutate(context.Background(), resource.BudgetInput{Category: "food"})
	require.NoError(t, err)

	n, ok := rec.Last()
	require.True(t, ok, "notification must be recorded when Mutate returns")
	assert.Equal(t, "Budget created", n.Message)
	assert.Nil(t, a.dispatcher)
}

func TestApp_CloseIsIdempotent(t *testing.T) {
	srv := newServer(t)
	a, err := New(logger.Nop(), testConfig(srv))
	require.NoError(t, err)

	require.NoError(t, a.Close())
	require.NoError(t, a.Close())
	assert.ErrorIs(t, a.Start(context.Background()), ErrClosed)
}
