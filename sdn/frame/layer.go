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

package frame

import (
	"fmt"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"

	ptp "github.com/facebook/ptpsec/ptp/protocol"
)

// Tiny wrapper code to support gopacket integration, used when reading capture files

// LayerPTP wraps around ptp packet
type LayerPTP struct {
	layers.BaseLayer

	Packet ptp.Packet
}

// LayerTypePTP is registered as a layer with gopacket
var LayerTypePTP = gopacket.RegisterLayerType(
	1588,
	gopacket.LayerTypeMetadata{
		Name:    "PTPv2",
		Decoder: gopacket.DecodeFunc(decodePTP),
	},
)

func init() {
	// Ethernet layer hands 0x88F7 payloads to us
	layers.EthernetTypeMetadata[EtherTypePTP] = layers.EnumMetadata{
		DecodeWith: gopacket.DecodeFunc(decodePTP),
		Name:       "PTPv2",
		LayerType:  LayerTypePTP,
	}
}

// LayerType returns type this layer implements
func (l *LayerPTP) LayerType() gopacket.LayerType {
	return LayerTypePTP
}

// Payload is empty as it's the final layer
func (l *LayerPTP) Payload() []byte {
	return nil
}

func decodePTP(data []byte, p gopacket.PacketBuilder) error {
	d := &LayerPTP{}
	ptpPacket, err := ptp.DecodePacket(data)
	if err != nil {
		return fmt.Errorf("decoding PTPv2 packet: %w", err)
	}
	d.BaseLayer = layers.BaseLayer{Contents: data}
	d.Packet = ptpPacket
	p.AddLayer(d)
	p.SetApplicationLayer(d)
	return nil
}

// FromGoPacket extracts PTP frame from a packet decoded by gopacket, if it has one
func FromGoPacket(packet gopacket.Packet) (*Frame, error) {
	ethLayer := packet.Layer(layers.LayerTypeEthernet)
	if ethLayer == nil {
		return nil, fmt.Errorf("%w: no ethernet layer", ErrNotPTP)
	}
	eth := ethLayer.(*layers.Ethernet)
	if eth.EthernetType != EtherTypePTP {
		return nil, fmt.Errorf("%w: ethertype %s", ErrNotPTP, eth.EthernetType)
	}
	if errLayer := packet.ErrorLayer(); errLayer != nil {
		return nil, errLayer.Error()
	}
	ptpLayer := packet.Layer(LayerTypePTP)
	if ptpLayer == nil {
		return nil, fmt.Errorf("%w: no PTP layer", ErrNotPTP)
	}
	return &Frame{
		Src:    eth.SrcMAC,
		Dst:    eth.DstMAC,
		Packet: ptpLayer.(*LayerPTP).Packet,
	}, nil
}
