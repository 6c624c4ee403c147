package core_test

import (
	"errors"
	"testing"

	"subspace-client/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tables() core.Tables {
	return core.Tables{
		Shortcuts: map[string]string{"bal": "balance"},
		Functions: map[string]bool{"balance": true, "set_weights": true},
		Modules:   map[string]map[string]bool{"subnet": {"state": true}},
		Namespace: map[string]string{"model.openai": "10.0.0.1:8000"},
	}
}

func TestResolve(t *testing.T) {
	tt := tables()

	target := core.Resolve([]string{"bal", "alice"}, tt)
	assert.Equal(t, core.TargetFunction, target.Kind)
	assert.Equal(t, "balance", target.Function)
	assert.Equal(t, []string{"alice"}, target.Args)

	target = core.Resolve([]string{"setWeights", "1=2"}, tt)
	assert.Equal(t, core.TargetFunction, target.Kind)
	assert.Equal(t, "set_weights", target.Function)

	target = core.Resolve([]string{"subnet", "state"}, tt)
	assert.Equal(t, core.TargetModule, target.Kind)
	assert.Equal(t, "state", target.Function)
	assert.Empty(t, target.Args)

	target = core.Resolve([]string{"subnet", "missing", "x"}, tt)
	assert.Equal(t, core.TargetModule, target.Kind)
	assert.Empty(t, target.Function)
	assert.Equal(t, []string{"missing", "x"}, target.Args)

	target = core.Resolve([]string{"model.openai", "forward"}, tt)
	assert.Equal(t, core.TargetRemote, target.Kind)
	assert.Equal(t, "10.0.0.1:8000", target.Address)

	target = core.Resolve([]string{"nothing"}, tt)
	assert.Equal(t, core.TargetNotFound, target.Kind)
	assert.Equal(t, core.TargetNotFound, core.Resolve(nil, tt).Kind)
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "set_weights", core.Normalize("setWeights"))
	assert.Equal(t, "set_weights", core.Normalize("set-weights"))
	assert.Equal(t, "set_weights", core.Normalize("set_weights"))
}

func TestRouterDispatch(t *testing.T) {
	r := core.NewRouter(tlog)
	r.Handle("balance", func(args []string) (interface{}, error) { return "balance of " + args[0], nil })
	r.HandleModule("subnet", map[string]core.Handler{
		"state": func([]string) (interface{}, error) { return 7, nil },
		"stake": func([]string) (interface{}, error) { return 8, nil },
	})
	r.Shortcut("bal", "balance")
	r.SetNamespace(func() (map[string]string, error) {
		return map[string]string{"vali": "1.2.3.4:80"}, nil
	})

	out, err := r.Dispatch([]string{"bal", "alice"})
	require.NoError(t, err)
	assert.Equal(t, "balance of alice", out)

	out, err = r.Dispatch([]string{"subnet", "state"})
	require.NoError(t, err)
	assert.Equal(t, 7, out)

	out, err = r.Dispatch([]string{"subnet"})
	require.NoError(t, err)
	assert.Equal(t, []string{"stake", "state"}, out)

	out, err = r.Dispatch([]string{"vali"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"name": "vali", "address": "1.2.3.4:80"}, out)

	_, err = r.Dispatch([]string{"unknown"})
	assert.Error(t, err)

	assert.Equal(t, []string{"balance"}, r.Functions())
}

func TestRouterNamespaceUnavailable(t *testing.T) {
	r := core.NewRouter(tlog)
	r.Handle("block", func([]string) (interface{}, error) { return uint64(1), nil })
	r.SetNamespace(func() (map[string]string, error) { return nil, errors.New("down") })

	out, err := r.Dispatch([]string{"block"})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), out)

	target, err := r.Resolve([]string{"vali"})
	require.NoError(t, err)
	assert.Equal(t, core.TargetNotFound, target.Kind)
}
