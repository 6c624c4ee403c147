// Copyright 2020 Stafi Protocol
// SPDX-License-Identifier: LGPL-3.0-only

package config

const (
	SubspaceModuleId = "SubspaceModule"
	SystemModuleId   = "System"
	BalancesModuleId = "Balances"

	StorageAddress           = "Address"
	StorageKeys              = "Keys"
	StorageUids              = "Uids"
	StorageNamespace         = "Namespace"
	StorageSubnetNamespace   = "SubnetNamespace"
	StorageStake             = "Stake"
	StorageWeights           = "Weights"
	StorageEmission          = "Emission"
	StorageIncentive         = "Incentive"
	StorageDividends         = "Dividends"
	StorageN                 = "N"
	StorageTempo             = "Tempo"
	StorageImmunityPeriod    = "ImmunityPeriod"
	StorageMinAllowedWeights = "MinAllowedWeights"
	StorageMaxAllowedUids    = "MaxAllowedUids"
	StorageMaxWeightsLimit   = "MaxWeightsLimit"
	StorageSubnetTotalStake  = "SubnetTotalStake"
	StorageSubnetEmission    = "SubnetEmission"
	StorageFounder           = "Founder"
	StorageTotalStake        = "TotalStake"
	StorageTotalSubnets      = "TotalSubnets"
	StorageAccount           = "Account"
	StorageEvents            = "Events"

	ConstantExistentialDeposit = "ExistentialDeposit"

	MethodRegister     = "register"
	MethodUpdateModule = "update_module"
	MethodAddStake     = "add_stake"
	MethodRemoveStake  = "remove_stake"
	MethodSetWeights   = "set_weights"
	MethodTransfer     = "transfer"
)
