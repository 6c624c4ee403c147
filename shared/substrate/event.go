// Copyright 2020 Stafi Protocol
// SPDX-License-Identifier: LGPL-3.0-only

package substrate

import (
	"encoding/json"
	"fmt"
	"strings"

	scale "github.com/itering/scale.go"
	"github.com/itering/scale.go/types"
	"github.com/itering/scale.go/utiles"
)

const (
	SystemModule            = "System"
	EventExtrinsicSuccess   = "ExtrinsicSuccess"
	EventExtrinsicFailed    = "ExtrinsicFailed"
	extrinsicFailedFallback = "extrinsic failed"
)

// ChainEvent is one decoded System.Events record.
type ChainEvent struct {
	ExtrinsicIdx int                `json:"extrinsic_idx"`
	ModuleId     string             `json:"module_id"`
	EventId      string             `json:"event_id"`
	Params       []scale.EventParam `json:"params"`
}

// DecodeEvents decodes the hex of a System.Events value against the raw
// runtime metadata.
func DecodeEvents(rawMeta, eventsHex string) (evts []*ChainEvent, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("decode events err: %v", r)
		}
	}()

	m := scale.MetadataDecoder{}
	m.Init(utiles.HexToBytes(rawMeta))
	m.Process()

	e := scale.EventsDecoder{}
	option := types.ScaleDecoderOption{Metadata: &m.Metadata}
	e.Init(types.ScaleBytes{Data: utiles.HexToBytes(eventsHex)}, &option)
	e.Process()

	bz, err := json.Marshal(e.Value)
	if err != nil {
		return nil, err
	}
	evts = make([]*ChainEvent, 0)
	if err := json.Unmarshal(bz, &evts); err != nil {
		return nil, err
	}
	return evts, nil
}

// ExtrinsicResult reports whether the extrinsic at index idx succeeded and,
// when it did not, the dispatch error carried by ExtrinsicFailed.
func ExtrinsicResult(evts []*ChainEvent, idx int) (bool, string) {
	for _, evt := range evts {
		if evt.ExtrinsicIdx != idx || !strings.EqualFold(evt.ModuleId, SystemModule) {
			continue
		}
		switch evt.EventId {
		case EventExtrinsicSuccess:
			return true, ""
		case EventExtrinsicFailed:
			return false, failureMessage(evt)
		}
	}
	return false, "no outcome event for extrinsic"
}

func failureMessage(evt *ChainEvent) string {
	if len(evt.Params) == 0 || evt.Params[0].Value == nil {
		return extrinsicFailedFallback
	}
	bz, err := json.Marshal(evt.Params[0].Value)
	if err != nil {
		return fmt.Sprint(evt.Params[0].Value)
	}
	return string(bz)
}
