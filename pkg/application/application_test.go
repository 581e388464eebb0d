package application

import (
	"context"
	"errors"
	"testing"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type greeter struct{ name string }

type stubController struct{ key string }

func (c stubController) Register(*mux.Router) {}
func (c stubController) Key() string          { return c.key }

type stubModule struct {
	name string
	err  error
	hit  *[]string
}

func (m stubModule) Name() string { return m.name }

func (m stubModule) Register(app Application) error {
	*m.hit = append(*m.hit, m.name)
	return m.err
}

func TestApplication_ServiceRegistry(t *testing.T) {
	logger, _ := test.NewNullLogger()
	app := New(&ApplicationOptions{Logger: logger})
	app.RegisterServices(&greeter{name: "hi"})

	got := app.Service(greeter{}).(*greeter)
	assert.Equal(t, "hi", got.name)
	assert.Panics(t, func() { app.Service(stubController{}) })
}

func TestApplication_ControllersSortedByKey(t *testing.T) {
	app := New(&ApplicationOptions{})
	app.RegisterControllers(stubController{"/b"}, stubController{"/a"}, stubController{"/b"})

	keys := []string{}
	for _, c := range app.Controllers() {
		keys = append(keys, c.Key())
	}
	assert.Equal(t, []string{"/a", "/b"}, keys)
}

func TestLoad_StopsAtFirstFailure(t *testing.T) {
	logger, _ := test.NewNullLogger()
	app := New(&ApplicationOptions{Logger: logger})
	var hit []string
	boom := errors.New("boom")

	err := Load(app,
		stubModule{name: "auth", hit: &hit},
		stubModule{name: "products", err: boom, hit: &hit},
		stubModule{name: "admin", hit: &hit},
	)
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "module products")
	assert.Equal(t, []string{"auth", "products"}, hit)
}

func TestSeeder_RunsInOrder(t *testing.T) {
	logger, _ := test.NewNullLogger()
	app := New(&ApplicationOptions{Logger: logger})
	var order []int
	s := NewSeeder()
	s.Register(
		func(context.Context, Application) error { order = append(order, 1); return nil },
		func(context.Context, Application) error { order = append(order, 2); return nil },
	)
	require.NoError(t, s.Seed(context.Background(), app))
	assert.Equal(t, []int{1, 2}, order)
}
