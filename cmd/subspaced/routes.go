package main

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"subspace-client/chains/subspace"
	"subspace-client/config"
	"subspace-client/core"
	"subspace-client/models/submodel"

	log "github.com/ChainSafe/log15"
	"github.com/shopspring/decimal"
	"github.com/urfave/cli/v2"
)

const defaultStaleness = 60 * time.Second

// commands carries the flag values every handler shares.
type commands struct {
	client *subspace.Client
	subnet string
	wait   core.Confirmation
}

func arg(args []string, i int) string {
	if i < len(args) {
		return args[i]
	}
	return ""
}

func parseAmount(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return d, fmt.Errorf("%w: amount %q", core.ErrInvalidArgument, s)
	}
	return d, nil
}

func newRouter(client *subspace.Client, cfg *config.Config, ctx *cli.Context, logger log.Logger) *core.Router {
	wait, ok := core.ParseConfirmation(ctx.String(config.WaitFlag.Name))
	if !ok {
		logger.Warn("unknown wait level, using the operation default", "wait", ctx.String(config.WaitFlag.Name))
	}
	c := &commands{client: client, subnet: ctx.String(config.NetuidFlag.Name), wait: wait}

	r := core.NewRouter(logger)
	r.Handle("balance", c.balance)
	r.Handle("stake", c.stake)
	r.Handle("total_stake", c.totalStake)
	r.Handle("block", c.block)
	r.Handle("modules", c.modules)
	r.Handle("namespace", c.namespace)
	r.Handle("keys", c.keys)
	r.Handle("uids", c.uids)
	r.Handle("names", c.names)
	r.Handle("name2key", c.name2key)
	r.Handle("key2module", c.key2module)
	r.Handle("is_registered", c.isRegistered)
	r.Handle("subnets", c.subnets)
	r.Handle("netuids", c.netuids)
	r.Handle("register", c.register)
	r.Handle("update_module", c.update)
	r.Handle("add_stake", c.addStake)
	r.Handle("remove_stake", c.removeStake)
	r.Handle("transfer", c.transfer)
	r.Handle("set_weights", c.setWeights)
	r.Handle("auth", c.auth)
	r.Handle("verify", c.verify)
	r.Handle("save", c.save)
	r.Handle("load", c.load)
	r.Handle("functions", func([]string) (interface{}, error) { return r.Functions(), nil })

	r.HandleModule("subnet", map[string]core.Handler{
		"state":  c.subnetState,
		"states": func([]string) (interface{}, error) { return client.SubnetStates() },
		"stake":  c.subnetStake,
	})
	r.HandleModule("cache", map[string]core.Handler{
		"clear": func([]string) (interface{}, error) { return client.ClearCache() },
	})

	r.Shortcut("bal", "balance")
	r.Shortcut("reg", "register")
	r.Shortcut("update", "update_module")
	r.Shortcut("unstake", "remove_stake")
	r.Shortcut("send", "transfer")
	r.Shortcut("vote", "set_weights")

	r.SetNamespace(func() (map[string]string, error) {
		return client.Namespace(cfg.DefaultNetuid)
	})
	return r
}

func (c *commands) netuid() (uint16, error) {
	return c.client.ResolveSubnet(c.subnet)
}

func (c *commands) balance(args []string) (interface{}, error) {
	amount, err := c.client.Balance(arg(args, 0))
	if err != nil {
		return nil, err
	}
	unit := arg(args, 1)
	if unit == "" {
		unit = "token"
	}
	return c.client.Formatter().Format(amount, unit)
}

func (c *commands) stake(args []string) (interface{}, error) {
	netuid, err := c.netuid()
	if err != nil {
		return nil, err
	}
	amount, err := c.client.Stake(arg(args, 0), netuid)
	if err != nil {
		return nil, err
	}
	return c.client.Formatter().ToDisplayUnits(amount), nil
}

func (c *commands) totalStake([]string) (interface{}, error) {
	amount, err := c.client.TotalStake()
	if err != nil {
		return nil, err
	}
	return c.client.Formatter().ToDisplayUnits(amount), nil
}

func (c *commands) block([]string) (interface{}, error) {
	return c.client.CurrentBlock()
}

func (c *commands) modules([]string) (interface{}, error) {
	netuid, err := c.netuid()
	if err != nil {
		return nil, err
	}
	return c.client.Modules(netuid)
}

func (c *commands) namespace([]string) (interface{}, error) {
	netuid, err := c.netuid()
	if err != nil {
		return nil, err
	}
	return c.client.Namespace(netuid)
}

func (c *commands) keys([]string) (interface{}, error) {
	netuid, err := c.netuid()
	if err != nil {
		return nil, err
	}
	return c.client.Keys(netuid)
}

func (c *commands) uids([]string) (interface{}, error) {
	netuid, err := c.netuid()
	if err != nil {
		return nil, err
	}
	return c.client.Uids(netuid)
}

func (c *commands) names([]string) (interface{}, error) {
	netuid, err := c.netuid()
	if err != nil {
		return nil, err
	}
	return c.client.Names(netuid)
}

func (c *commands) name2key(args []string) (interface{}, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("%w: usage name2key <name>", core.ErrInvalidArgument)
	}
	netuid, err := c.netuid()
	if err != nil {
		return nil, err
	}
	return c.client.Name2Key(args[0], netuid)
}

func (c *commands) key2module(args []string) (interface{}, error) {
	netuid, err := c.netuid()
	if err != nil {
		return nil, err
	}
	return c.client.Key2Module(arg(args, 0), netuid)
}

func (c *commands) isRegistered(args []string) (interface{}, error) {
	netuid, err := c.netuid()
	if err != nil {
		return nil, err
	}
	return c.client.IsRegistered(arg(args, 0), netuid)
}

func (c *commands) subnets([]string) (interface{}, error) {
	return c.client.Subnets()
}

func (c *commands) netuids([]string) (interface{}, error) {
	return c.client.Netuids()
}

func (c *commands) subnetState([]string) (interface{}, error) {
	netuid, err := c.netuid()
	if err != nil {
		return nil, err
	}
	return c.client.SubnetState(netuid)
}

func (c *commands) subnetStake([]string) (interface{}, error) {
	netuid, err := c.netuid()
	if err != nil {
		return nil, err
	}
	amount, err := c.client.SubnetStake(netuid)
	if err != nil {
		return nil, err
	}
	return c.client.Formatter().ToDisplayUnits(amount), nil
}

// register <name> <address> [stake]
func (c *commands) register(args []string) (interface{}, error) {
	if len(args) < 2 {
		return nil, fmt.Errorf("%w: usage register <name> <address> [stake]", core.ErrInvalidArgument)
	}
	stake := decimal.Zero
	if len(args) > 2 {
		var err error
		if stake, err = parseAmount(args[2]); err != nil {
			return nil, err
		}
	}
	return c.client.Register(subspace.RegisterParams{
		Subnet:  c.subnet,
		Name:    args[0],
		Address: args[1],
		Stake:   stake,
		Wait:    c.wait,
	})
}

// update_module [name] [address]
func (c *commands) update(args []string) (interface{}, error) {
	return c.client.Update(subspace.UpdateParams{
		Subnet:  c.subnet,
		Name:    arg(args, 0),
		Address: arg(args, 1),
		Wait:    c.wait,
	})
}

func (c *commands) stakeParams(args []string) (subspace.StakeParams, error) {
	p := subspace.StakeParams{Subnet: c.subnet, Wait: c.wait}
	if len(args) > 0 {
		amount, err := parseAmount(args[0])
		if err != nil {
			return p, err
		}
		p.Amount = &amount
	}
	return p, nil
}

func (c *commands) addStake(args []string) (interface{}, error) {
	p, err := c.stakeParams(args)
	if err != nil {
		return nil, err
	}
	return c.client.AddStake(p)
}

func (c *commands) removeStake(args []string) (interface{}, error) {
	p, err := c.stakeParams(args)
	if err != nil {
		return nil, err
	}
	return c.client.RemoveStake(p)
}

// transfer <dest> <amount> [allow_death]
func (c *commands) transfer(args []string) (interface{}, error) {
	if len(args) < 2 {
		return nil, fmt.Errorf("%w: usage transfer <dest> <amount>", core.ErrInvalidArgument)
	}
	amount, err := parseAmount(args[1])
	if err != nil {
		return nil, err
	}
	allowDeath, _ := strconv.ParseBool(arg(args, 2))
	return c.client.Transfer(subspace.TransferParams{
		Dest:       args[0],
		Amount:     amount,
		AllowDeath: allowDeath,
		Wait:       c.wait,
	})
}

// set_weights [uid[=weight] ...]
func (c *commands) setWeights(args []string) (interface{}, error) {
	p := subspace.SetWeightsParams{Subnet: c.subnet, Wait: c.wait}
	for _, a := range args {
		uidStr, weightStr, hasWeight := strings.Cut(a, "=")
		uid, err := strconv.ParseUint(uidStr, 10, 16)
		if err != nil {
			return nil, fmt.Errorf("%w: uid %q", core.ErrInvalidArgument, uidStr)
		}
		p.Uids = append(p.Uids, uint16(uid))
		if hasWeight {
			w, err := parseAmount(weightStr)
			if err != nil {
				return nil, err
			}
			p.Weights = append(p.Weights, w)
		}
	}
	if len(p.Weights) != 0 && len(p.Weights) != len(p.Uids) {
		return nil, fmt.Errorf("%w: give a weight for every uid or none", core.ErrInvalidArgument)
	}
	return c.client.SetWeights(p)
}

// auth <module> <fn> [args...]
func (c *commands) auth(args []string) (interface{}, error) {
	if len(args) < 2 {
		return nil, fmt.Errorf("%w: usage auth <module> <fn> [args...]", core.ErrInvalidArgument)
	}
	rest := make([]interface{}, 0, len(args)-2)
	for _, a := range args[2:] {
		rest = append(rest, a)
	}
	return c.client.Auth(subspace.AuthParams{
		Subnet: c.subnet,
		Module: args[0],
		Fn:     args[1],
		Args:   rest,
	})
}

// verify <auth json> [max staleness] [ensure registered]
func (c *commands) verify(args []string) (interface{}, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("%w: usage verify <auth json>", core.ErrInvalidArgument)
	}
	var a submodel.Auth
	if err := json.Unmarshal([]byte(args[0]), &a); err != nil {
		return nil, fmt.Errorf("%w: auth json %s", core.ErrInvalidArgument, err)
	}
	staleness := defaultStaleness
	if s := arg(args, 1); s != "" {
		d, err := time.ParseDuration(s)
		if err != nil {
			return nil, fmt.Errorf("%w: staleness %q", core.ErrInvalidArgument, s)
		}
		staleness = d
	}
	ensure, _ := strconv.ParseBool(arg(args, 2))
	return c.client.Verify(a, staleness, ensure)
}

func (c *commands) save([]string) (interface{}, error) {
	if err := c.client.Save(); err != nil {
		return nil, err
	}
	return c.client.Netuids()
}

// load [subnet|balances]
func (c *commands) load(args []string) (interface{}, error) {
	what := arg(args, 0)
	if what == "balances" {
		return c.client.LoadBalances()
	}
	if what == "" {
		netuid, err := c.netuid()
		if err != nil {
			return nil, err
		}
		name, err := c.client.SubnetName(netuid)
		if err != nil {
			return nil, err
		}
		what = name
		if what == "" {
			what = strconv.Itoa(int(netuid))
		}
	}
	return c.client.LoadSubnet(what)
}
