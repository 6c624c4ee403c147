// Copyright 2020 Stafi Protocol
// SPDX-License-Identifier: LGPL-3.0-only

package subspace

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/ChainSafe/log15"
	"github.com/google/uuid"
	"github.com/jinzhu/copier"
	"github.com/shopspring/decimal"
	"subspace-client/config"
	"subspace-client/core"
	"subspace-client/models/submodel"
	"subspace-client/shared/keyring"
	"subspace-client/shared/substrate"
	"subspace-client/utils"
	"subspace-client/utils/metrics"
)

const (
	outcomeSuccess  = "success"
	outcomeFailed   = "failed"
	outcomeRejected = "rejected"
	outcomeError    = "error"
)

// RegisterParams registers Key as module Name on Subnet. A subnet name the
// chain does not know yet is created by the registration.
type RegisterParams struct {
	Network string
	Subnet  string
	Key     string
	Name    string
	Address string
	Stake   decimal.Decimal
	Wait    core.Confirmation
}

// UpdateParams changes the name and/or address of the module of Key; an
// empty field keeps the current value.
type UpdateParams struct {
	Network string
	Subnet  string
	Key     string
	Name    string
	Address string
	Wait    core.Confirmation
}

// StakeParams adds or removes stake; a nil Amount means everything.
type StakeParams struct {
	Network string
	Subnet  string
	Key     string
	Amount  *decimal.Decimal
	Wait    core.Confirmation
}

// TransferParams moves Amount display units to Dest. AllowDeath leaves the
// existential deposit out of the balance check.
type TransferParams struct {
	Network    string
	Key        string
	Dest       string
	Amount     decimal.Decimal
	AllowDeath bool
	Wait       core.Confirmation
}

// SetWeightsParams votes on Uids; no uids means every module of the subnet
// and no weights means equal weights.
type SetWeightsParams struct {
	Network string
	Subnet  string
	Key     string
	Uids    []uint16
	Weights []decimal.Decimal
	Wait    core.Confirmation
}

type moduleInfo struct {
	Name    string
	Address string
}

// writer drives resolve, check, compose, submit, confirm and report for
// every mutating operation.
type writer struct {
	client *Client
	conn   *Connection
	log    log15.Logger
}

func newWriter(client *Client, log log15.Logger) *writer {
	return &writer{client: client, conn: client.conn, log: log}
}

func (w *writer) txLog(op core.Operation) log15.Logger {
	return w.log.New("op", string(op), "tx", uuid.NewString())
}

func (w *writer) record(op core.Operation, outcome string) {
	metrics.RecordTransaction(w.conn.Network().Name, string(op), outcome)
}

// reject reports a local precondition failure; nothing was submitted.
func (w *writer) reject(op core.Operation, log log15.Logger, err error) (submodel.TransactionOutcome, error) {
	log.Warn("precondition failed, not submitted", "err", err)
	w.record(op, outcomeRejected)
	return submodel.TransactionOutcome{Success: false, Message: err.Error()}, err
}

func (w *writer) submit(op core.Operation, log log15.Logger, call substrate.Call, kp *keyring.Keypair, conf core.Confirmation) (submodel.TransactionOutcome, error) {
	log.Info("submitting", "call", call.Module+"."+call.Function, "signer", kp.Address(), "wait", conf.Resolve(op))
	out, err := w.conn.Submit(op, call, kp, conf)
	if err != nil {
		log.Error("submission failed", "err", err)
		w.record(op, outcomeError)
		return out, err
	}
	if !out.Success {
		log.Warn("transaction failed on chain", "msg", out.Message, "block", out.BlockHash)
		w.record(op, outcomeFailed)
		return out, nil
	}
	log.Info("transaction done", "msg", out.Message, "block", out.BlockHash)
	w.record(op, outcomeSuccess)
	return out, nil
}

// resolveNetworkAndKey resolves the key before touching the connection.
func (w *writer) resolveNetworkAndKey(network, key string) (*keyring.Keypair, error) {
	kp, err := w.client.ResolveKey(key)
	if err != nil {
		return nil, err
	}
	if _, err := w.client.ResolveNetwork(network); err != nil {
		return nil, err
	}
	return kp, nil
}

func (w *writer) Register(p RegisterParams) (submodel.TransactionOutcome, error) {
	log := w.txLog(core.OpRegister)

	kp, err := w.resolveNetworkAndKey(p.Network, p.Key)
	if err != nil {
		return submodel.TransactionOutcome{}, err
	}
	if p.Name == "" {
		return submodel.TransactionOutcome{}, fmt.Errorf("%w: module name is empty", core.ErrInvalidArgument)
	}
	if p.Address == "" {
		return submodel.TransactionOutcome{}, fmt.Errorf("%w: module address is empty", core.ErrInvalidArgument)
	}
	stake, err := w.client.format.ToBaseUnits(p.Stake)
	if err != nil {
		return submodel.TransactionOutcome{}, err
	}

	subnet := p.Subnet
	known := true
	var netuid uint16
	if subnet == "" {
		netuid = w.client.cfg.DefaultNetuid
		if subnet, err = w.client.SubnetName(netuid); err != nil {
			return submodel.TransactionOutcome{}, err
		}
	} else if n, perr := strconv.ParseUint(subnet, 10, 16); perr == nil {
		netuid = uint16(n)
		if subnet, err = w.client.SubnetName(netuid); err != nil {
			return submodel.TransactionOutcome{}, err
		}
	} else {
		netuid, err = w.client.ResolveSubnet(subnet)
		if errors.Is(err, core.ErrUnknownSubnet) {
			known = false
			log.Info("subnet unknown, registration creates it", "subnet", subnet)
		} else if err != nil {
			return submodel.TransactionOutcome{}, err
		}
	}

	if known {
		registered, err := w.client.registry.IsRegistered(kp.AccountID(), netuid)
		if err != nil {
			return submodel.TransactionOutcome{}, err
		}
		if registered {
			log.Info("key already registered, updating module instead", "netuid", netuid, "key", kp.Address())
			return w.Update(UpdateParams{
				Subnet:  strconv.Itoa(int(netuid)),
				Key:     kp.Alias(),
				Name:    p.Name,
				Address: p.Address,
				Wait:    p.Wait,
			})
		}
	}

	balance, err := w.client.Balance(kp.Address())
	if err != nil {
		return submodel.TransactionOutcome{}, err
	}
	if balance < stake {
		return w.reject(core.OpRegister, log, &core.InsufficientBalanceError{Balance: balance, Amount: stake})
	}

	call, err := w.conn.Compose(config.SubspaceModuleId, config.MethodRegister, subnet, p.Name, p.Address, stake)
	if err != nil {
		return submodel.TransactionOutcome{}, err
	}
	out, err := w.submit(core.OpRegister, log, call, kp, p.Wait)
	if err != nil || !out.Success {
		return out, err
	}

	if known {
		if err := w.client.registry.Invalidate(netuid); err != nil {
			log.Warn("invalidate modules failed", "netuid", netuid, "err", err)
		}
	}
	if err := w.client.registry.InvalidateSubnets(); err != nil {
		log.Warn("invalidate subnet namespace failed", "err", err)
	}
	return out, nil
}

// moduleOf finds the module of address on netuid, re-reading the chain
// once when the cached list does not have it.
func (w *writer) moduleOf(address string, netuid uint16) (submodel.Module, error) {
	m, err := w.client.Key2Module(address, netuid)
	if err == nil || !errors.Is(err, core.ErrNotRegistered) {
		return m, err
	}
	modules, err := w.client.registry.ListModules(netuid, -1)
	if err != nil {
		return submodel.Module{}, err
	}
	for _, m := range modules {
		if m.Key == address {
			return m, nil
		}
	}
	return submodel.Module{}, fmt.Errorf("%w: %s on netuid %d", core.ErrNotRegistered, address, netuid)
}

func (w *writer) Update(p UpdateParams) (submodel.TransactionOutcome, error) {
	log := w.txLog(core.OpUpdate)

	kp, err := w.resolveNetworkAndKey(p.Network, p.Key)
	if err != nil {
		return submodel.TransactionOutcome{}, err
	}
	netuid, err := w.client.ResolveSubnet(p.Subnet)
	if err != nil {
		return submodel.TransactionOutcome{}, err
	}
	if p.Name == "" && p.Address == "" {
		return submodel.TransactionOutcome{}, fmt.Errorf("%w: name and address both empty", core.ErrInvalidArgument)
	}

	current, err := w.moduleOf(kp.Address(), netuid)
	if err != nil {
		return submodel.TransactionOutcome{}, err
	}
	info := moduleInfo{Name: current.Name, Address: current.Address}
	if err := copier.CopyWithOption(&info, &moduleInfo{Name: p.Name, Address: p.Address}, copier.Option{IgnoreEmpty: true}); err != nil {
		return submodel.TransactionOutcome{}, err
	}

	call, err := w.conn.Compose(config.SubspaceModuleId, config.MethodUpdateModule, netuid, info.Name, info.Address)
	if err != nil {
		return submodel.TransactionOutcome{}, err
	}
	out, err := w.submit(core.OpUpdate, log, call, kp, p.Wait)
	if err != nil || !out.Success {
		return out, err
	}
	if err := w.client.registry.Invalidate(netuid); err != nil {
		log.Warn("invalidate modules failed", "netuid", netuid, "err", err)
	}
	return out, nil
}

func (w *writer) Stake(p StakeParams) (submodel.TransactionOutcome, error) {
	log := w.txLog(core.OpStake)

	kp, err := w.resolveNetworkAndKey(p.Network, p.Key)
	if err != nil {
		return submodel.TransactionOutcome{}, err
	}
	netuid, err := w.client.ResolveSubnet(p.Subnet)
	if err != nil {
		return submodel.TransactionOutcome{}, err
	}

	balance, err := w.client.Balance(kp.Address())
	if err != nil {
		return submodel.TransactionOutcome{}, err
	}
	amount := balance
	if p.Amount != nil {
		if amount, err = w.client.format.ToBaseUnits(*p.Amount); err != nil {
			return submodel.TransactionOutcome{}, err
		}
	}
	if amount == 0 {
		return submodel.TransactionOutcome{}, fmt.Errorf("%w: nothing to stake", core.ErrInvalidArgument)
	}
	if balance < amount {
		return w.reject(core.OpStake, log, &core.InsufficientBalanceError{Balance: balance, Amount: amount})
	}

	call, err := w.conn.Compose(config.SubspaceModuleId, config.MethodAddStake, netuid, amount)
	if err != nil {
		return submodel.TransactionOutcome{}, err
	}
	return w.submit(core.OpStake, log, call, kp, p.Wait)
}

func (w *writer) Unstake(p StakeParams) (submodel.TransactionOutcome, error) {
	log := w.txLog(core.OpUnstake)

	kp, err := w.resolveNetworkAndKey(p.Network, p.Key)
	if err != nil {
		return submodel.TransactionOutcome{}, err
	}
	netuid, err := w.client.ResolveSubnet(p.Subnet)
	if err != nil {
		return submodel.TransactionOutcome{}, err
	}

	staked, err := w.client.Stake(kp.Address(), netuid)
	if err != nil {
		return submodel.TransactionOutcome{}, err
	}
	amount := staked
	if p.Amount != nil {
		if amount, err = w.client.format.ToBaseUnits(*p.Amount); err != nil {
			return submodel.TransactionOutcome{}, err
		}
	}
	if amount == 0 {
		return submodel.TransactionOutcome{}, fmt.Errorf("%w: nothing to unstake", core.ErrInvalidArgument)
	}
	if staked < amount {
		return w.reject(core.OpUnstake, log, &core.InsufficientBalanceError{Balance: staked, Amount: amount})
	}

	call, err := w.conn.Compose(config.SubspaceModuleId, config.MethodRemoveStake, netuid, amount)
	if err != nil {
		return submodel.TransactionOutcome{}, err
	}
	return w.submit(core.OpUnstake, log, call, kp, p.Wait)
}

func (w *writer) Transfer(p TransferParams) (submodel.TransactionOutcome, error) {
	log := w.txLog(core.OpTransfer)

	kp, err := w.resolveNetworkAndKey(p.Network, p.Key)
	if err != nil {
		return submodel.TransactionOutcome{}, err
	}
	dest, err := w.client.ResolveAddress(p.Dest)
	if err != nil {
		return submodel.TransactionOutcome{}, err
	}
	destID, err := w.client.accountID(dest)
	if err != nil {
		return submodel.TransactionOutcome{}, err
	}
	amount, err := w.client.format.ToBaseUnits(p.Amount)
	if err != nil {
		return submodel.TransactionOutcome{}, err
	}
	if amount == 0 {
		return submodel.TransactionOutcome{}, fmt.Errorf("%w: transfer amount is zero", core.ErrInvalidArgument)
	}

	balance, err := w.client.Balance(kp.Address())
	if err != nil {
		return submodel.TransactionOutcome{}, err
	}
	var ed uint64
	if !p.AllowDeath {
		if ed, err = w.client.ExistentialDeposit(); err != nil {
			return submodel.TransactionOutcome{}, err
		}
	}

	call, err := w.conn.Compose(config.BalancesModuleId, config.MethodTransfer, destID, substrate.Compact(amount))
	if err != nil {
		return submodel.TransactionOutcome{}, err
	}
	fee, err := w.conn.EstimateFee(call, kp)
	if err != nil {
		fee = w.client.cfg.FallbackFee
		log.Warn("fee estimation failed, assuming fallback fee", "fee", w.client.format.ToDisplayUnits(fee), "err", err)
	}

	least, ok := utils.AddU64(amount, fee)
	if ok {
		least, ok = utils.AddU64(least, ed)
	}
	if !ok || balance < least {
		return w.reject(core.OpTransfer, log, &core.InsufficientBalanceError{
			Balance:            balance,
			Amount:             amount,
			Fee:                fee,
			ExistentialDeposit: ed,
		})
	}

	log.Debug("transfer", "to", dest, "amount", w.client.format.ToDisplayUnits(amount), "fee", fee)
	return w.submit(core.OpTransfer, log, call, kp, p.Wait)
}

func (w *writer) SetWeights(p SetWeightsParams) (submodel.TransactionOutcome, error) {
	log := w.txLog(core.OpSetWeights)

	kp, err := w.resolveNetworkAndKey(p.Network, p.Key)
	if err != nil {
		return submodel.TransactionOutcome{}, err
	}
	netuid, err := w.client.ResolveSubnet(p.Subnet)
	if err != nil {
		return submodel.TransactionOutcome{}, err
	}

	uids := p.Uids
	if len(uids) == 0 {
		if uids, err = w.client.Uids(netuid); err != nil {
			return submodel.TransactionOutcome{}, err
		}
	}
	if len(uids) == 0 {
		return submodel.TransactionOutcome{}, fmt.Errorf("%w: no uids to weigh on netuid %d", core.ErrInvalidArgument, netuid)
	}
	weights, err := utils.NormalizeWeights(uids, p.Weights)
	if err != nil {
		return submodel.TransactionOutcome{}, err
	}

	call, err := w.conn.Compose(config.SubspaceModuleId, config.MethodSetWeights, netuid, uids, weights)
	if err != nil {
		return submodel.TransactionOutcome{}, err
	}
	return w.submit(core.OpSetWeights, log, call, kp, p.Wait)
}

func (c *Client) Register(p RegisterParams) (submodel.TransactionOutcome, error) {
	return keepNetworkOnError(c, func() (submodel.TransactionOutcome, error) { return c.writer.Register(p) })
}

func (c *Client) Update(p UpdateParams) (submodel.TransactionOutcome, error) {
	return keepNetworkOnError(c, func() (submodel.TransactionOutcome, error) { return c.writer.Update(p) })
}

func (c *Client) AddStake(p StakeParams) (submodel.TransactionOutcome, error) {
	return keepNetworkOnError(c, func() (submodel.TransactionOutcome, error) { return c.writer.Stake(p) })
}

func (c *Client) RemoveStake(p StakeParams) (submodel.TransactionOutcome, error) {
	return keepNetworkOnError(c, func() (submodel.TransactionOutcome, error) { return c.writer.Unstake(p) })
}

func (c *Client) Transfer(p TransferParams) (submodel.TransactionOutcome, error) {
	return keepNetworkOnError(c, func() (submodel.TransactionOutcome, error) { return c.writer.Transfer(p) })
}

func (c *Client) SetWeights(p SetWeightsParams) (submodel.TransactionOutcome, error) {
	return keepNetworkOnError(c, func() (submodel.TransactionOutcome, error) { return c.writer.SetWeights(p) })
}
