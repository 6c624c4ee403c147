package substratetest

import (
	"errors"
	"fmt"

	"subspace-client/config"
	"subspace-client/models/submodel"
	"subspace-client/shared/substrate"
)

// pallet errors, as the chain reports them
var (
	errNotRegistered         = errors.New("SubspaceModule.NotRegistered")
	errAlreadyRegistered     = errors.New("SubspaceModule.KeyAlreadyRegistered")
	errNameAlreadyRegistered = errors.New("SubspaceModule.NameAlreadyRegistered")
	errNotEnoughBalance      = errors.New("SubspaceModule.NotEnoughBalanceToStake")
	errNotEnoughStake        = errors.New("SubspaceModule.NotEnoughStaketoWithdraw")
	errWeightVecNotEqualSize = errors.New("SubspaceModule.WeightVecNotEqualSize")
	errInvalidUid            = errors.New("SubspaceModule.InvalidUid")
	errInsufficientBalance   = errors.New("Balances.InsufficientBalance")
)

func (l *Ledger) dispatch(who substrate.AccountID, call substrate.Call) error {
	args := call.Args
	switch call.Module + "." + call.Function {
	case config.SubspaceModuleId + "." + config.MethodRegister:
		if len(args) != 4 {
			return fmt.Errorf("register takes 4 args, got %d", len(args))
		}
		return l.register(who, argString(args[0]), argString(args[1]), argString(args[2]), argU64(args[3]))
	case config.SubspaceModuleId + "." + config.MethodUpdateModule:
		if len(args) != 3 {
			return fmt.Errorf("update_module takes 3 args, got %d", len(args))
		}
		return l.updateModule(who, argU16(args[0]), argString(args[1]), argString(args[2]))
	case config.SubspaceModuleId + "." + config.MethodAddStake:
		if len(args) != 2 {
			return fmt.Errorf("add_stake takes 2 args, got %d", len(args))
		}
		return l.addStake(who, argU16(args[0]), argU64(args[1]))
	case config.SubspaceModuleId + "." + config.MethodRemoveStake:
		if len(args) != 2 {
			return fmt.Errorf("remove_stake takes 2 args, got %d", len(args))
		}
		return l.removeStake(who, argU16(args[0]), argU64(args[1]))
	case config.SubspaceModuleId + "." + config.MethodSetWeights:
		if len(args) != 3 {
			return fmt.Errorf("set_weights takes 3 args, got %d", len(args))
		}
		uids, _ := args[1].([]uint16)
		weights, _ := args[2].([]uint16)
		return l.setWeights(who, argU16(args[0]), uids, weights)
	case config.BalancesModuleId + "." + config.MethodTransfer:
		if len(args) != 2 {
			return fmt.Errorf("transfer takes 2 args, got %d", len(args))
		}
		dest, _ := args[0].(substrate.AccountID)
		return l.transfer(who, dest, argU64(args[1]))
	default:
		return fmt.Errorf("unknown call %s.%s", call.Module, call.Function)
	}
}

func (l *Ledger) register(who substrate.AccountID, network, name, address string, stake uint64) error {
	var s *subnet
	for _, sn := range l.subnets {
		if sn.name == network {
			s = sn
			break
		}
	}
	if s == nil {
		var next uint16
		for netuid := range l.subnets {
			if netuid >= next {
				next = netuid + 1
			}
		}
		s = l.addSubnet(next, network, who)
	}
	if _, ok := s.uidOf(who); ok {
		return errAlreadyRegistered
	}
	if s.nameTaken(name, -1) {
		return errNameAlreadyRegistered
	}
	acc := l.account(who)
	if acc.Data.Free < stake {
		return errNotEnoughBalance
	}
	acc.Data.Free -= stake
	s.modules = append(s.modules, &module{key: who, name: name, address: address, stake: stake})
	return nil
}

func (l *Ledger) registered(who substrate.AccountID, netuid uint16) (*subnet, *module, error) {
	s, ok := l.subnets[netuid]
	if !ok {
		return nil, nil, errNotRegistered
	}
	uid, ok := s.uidOf(who)
	if !ok {
		return nil, nil, errNotRegistered
	}
	return s, s.modules[uid], nil
}

func (l *Ledger) updateModule(who substrate.AccountID, netuid uint16, name, address string) error {
	s, m, err := l.registered(who, netuid)
	if err != nil {
		return err
	}
	uid, _ := s.uidOf(who)
	if s.nameTaken(name, int(uid)) {
		return errNameAlreadyRegistered
	}
	m.name = name
	m.address = address
	return nil
}

func (l *Ledger) addStake(who substrate.AccountID, netuid uint16, amount uint64) error {
	_, m, err := l.registered(who, netuid)
	if err != nil {
		return err
	}
	acc := l.account(who)
	if acc.Data.Free < amount {
		return errNotEnoughBalance
	}
	acc.Data.Free -= amount
	m.stake += amount
	return nil
}

func (l *Ledger) removeStake(who substrate.AccountID, netuid uint16, amount uint64) error {
	_, m, err := l.registered(who, netuid)
	if err != nil {
		return err
	}
	if m.stake < amount {
		return errNotEnoughStake
	}
	m.stake -= amount
	l.account(who).Data.Free += amount
	return nil
}

func (l *Ledger) setWeights(who substrate.AccountID, netuid uint16, uids, weights []uint16) error {
	s, m, err := l.registered(who, netuid)
	if err != nil {
		return err
	}
	if len(uids) != len(weights) {
		return errWeightVecNotEqualSize
	}
	pairs := make([]submodel.WeightPair, len(uids))
	for i, uid := range uids {
		if int(uid) >= len(s.modules) {
			return errInvalidUid
		}
		pairs[i] = submodel.WeightPair{Uid: uid, Weight: weights[i]}
	}
	m.weights = pairs
	return nil
}

func (l *Ledger) transfer(who, dest substrate.AccountID, value uint64) error {
	from := l.account(who)
	if from.Data.Free < value {
		return errInsufficientBalance
	}
	from.Data.Free -= value
	l.account(dest).Data.Free += value
	return nil
}

func argString(a interface{}) string {
	switch x := a.(type) {
	case string:
		return x
	case []byte:
		return string(x)
	default:
		return fmt.Sprint(a)
	}
}

func argU16(a interface{}) uint16 {
	switch x := a.(type) {
	case uint16:
		return x
	case int:
		return uint16(x)
	default:
		return 0
	}
}

func argU64(a interface{}) uint64 {
	switch x := a.(type) {
	case uint64:
		return x
	case substrate.Compact:
		return uint64(x)
	case int:
		return uint64(x)
	default:
		return 0
	}
}
