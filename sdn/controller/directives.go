/*
Copyright (c) Facebook, Inc. and its affiliates.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package controller

import (
	"fmt"
	"strings"

	ptp "github.com/facebook/ptpsec/ptp/protocol"
	"github.com/facebook/ptpsec/sdn/frame"
	"github.com/facebook/ptpsec/sdn/topology"
)

//go:generate mockgen -source=directives.go -destination=directives_mock_test.go -package=controller

// PacketIn is a frame a switch handed over to the controller
type PacketIn struct {
	DPID   uint64
	InPort uint32
	Data   []byte
}

// SwitchControl sends directives to switches
type SwitchControl interface {
	// PacketOut sends the frame out of the given ports right away
	PacketOut(dpid uint64, inPort uint32, outPorts []uint32, data []byte) error
	// InstallFlow makes the switch forward matching frames on its own
	InstallFlow(dpid uint64, flow *FlowMod) error
}

// TopologySource provides the current network graph
type TopologySource interface {
	Topology() *topology.Graph
}

// Match selects frames a flow applies to. Nil fields match anything.
type Match struct {
	InPort                  uint32
	EthType                 uint16
	MessageType             ptp.MessageType
	SourceClockIdentity     *ptp.ClockIdentity
	RequestingClockIdentity *ptp.ClockIdentity
	TargetClockIdentity     *ptp.ClockIdentity
	MeasurementType         *ptp.MeasurementType
}

func newMatch(inPort uint32, t ptp.MessageType) *Match {
	return &Match{
		InPort:      inPort,
		EthType:     uint16(frame.EtherTypePTP),
		MessageType: t,
	}
}

func (m Match) String() string {
	fields := []string{
		fmt.Sprintf("in_port=%d", m.InPort),
		fmt.Sprintf("eth_type=0x%04x", m.EthType),
		fmt.Sprintf("ptp_msg_type=%s", m.MessageType),
	}
	if m.SourceClockIdentity != nil {
		fields = append(fields, fmt.Sprintf("ptp_src_clock_id=%s", *m.SourceClockIdentity))
	}
	if m.RequestingClockIdentity != nil {
		fields = append(fields, fmt.Sprintf("ptp_dr_requesting_clock_id=%s", *m.RequestingClockIdentity))
	}
	if m.MeasurementType != nil {
		fields = append(fields, fmt.Sprintf("ptp_meas_type=%s", *m.MeasurementType))
	}
	if m.TargetClockIdentity != nil {
		fields = append(fields, fmt.Sprintf("ptp_meas_target_clock_id=%s", *m.TargetClockIdentity))
	}
	return strings.Join(fields, ",")
}

// FlowMod is a flow installation request
type FlowMod struct {
	Priority uint16
	Cookie   uint64
	Match    Match
	OutPorts []uint32
}

func (f *FlowMod) String() string {
	return fmt.Sprintf("priority=%d,cookie=0x%x,%s actions=output:%v", f.Priority, f.Cookie, f.Match, f.OutPorts)
}
