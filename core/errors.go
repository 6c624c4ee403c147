// Copyright 2020 Stafi Protocol
// SPDX-License-Identifier: LGPL-3.0-only

package core

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownNetwork      = errors.New("unknown network")
	ErrUnknownSubnet       = errors.New("unknown subnet")
	ErrInvalidKey          = errors.New("invalid key")
	ErrInvalidAddress      = errors.New("invalid address")
	ErrInvalidUnit         = errors.New("invalid unit")
	ErrInvalidArgument     = errors.New("invalid argument")
	ErrChainConnection     = errors.New("chain connection error")
	ErrChainQuery          = errors.New("chain query error")
	ErrChainTransaction    = errors.New("chain transaction error")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrStale               = errors.New("signature is stale")
	ErrNotRegistered       = errors.New("key is not registered")
)

// QueryError is a read that kept failing until the retry policy gave up.
type QueryError struct {
	Item     string
	Attempts int
	Err      error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("query %s failed after %d attempts: %s", e.Item, e.Attempts, e.Err)
}

func (e *QueryError) Unwrap() error { return e.Err }

func (e *QueryError) Is(target error) bool { return target == ErrChainQuery }

// TransactionError is a submission or confirmation failure that is not an
// on-chain rejection: transport exhaustion or a confirmation wait timeout.
type TransactionError struct {
	Op      Operation
	Message string
	Err     error
}

func (e *TransactionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s transaction failed: %s: %s", e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s transaction failed: %s", e.Op, e.Message)
}

func (e *TransactionError) Unwrap() error { return e.Err }

func (e *TransactionError) Is(target error) bool { return target == ErrChainTransaction }

// InsufficientBalanceError is raised locally before anything is submitted.
// All amounts are base units.
type InsufficientBalanceError struct {
	Balance            uint64
	Amount             uint64
	Fee                uint64
	ExistentialDeposit uint64
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance: balance %d < amount %d + fee %d + existential deposit %d",
		e.Balance, e.Amount, e.Fee, e.ExistentialDeposit)
}

func (e *InsufficientBalanceError) Is(target error) bool { return target == ErrInsufficientBalance }

type permanent struct {
	err error
}

func (p *permanent) Error() string { return p.err.Error() }
func (p *permanent) Unwrap() error { return p.err }

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanent{err: err}
}

func IsPermanent(err error) bool {
	var p *permanent
	return errors.As(err, &p)
}
