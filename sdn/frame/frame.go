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

// Package frame handles PTP carried directly over Ethernet (IEEE 1588 Annex E).
package frame

import (
	"errors"
	"fmt"
	"net"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"

	ptp "github.com/facebook/ptpsec/ptp/protocol"
)

// EtherTypePTP is the ethertype of PTP over IEEE 802.3
const EtherTypePTP layers.EthernetType = 0x88F7

// ErrNotPTP is returned for frames that don't carry PTP
var ErrNotPTP = errors.New("not a PTP frame")

// Frame is a decoded PTP over Ethernet frame
type Frame struct {
	Src    net.HardwareAddr
	Dst    net.HardwareAddr
	Packet ptp.Packet
}

// Decode parses raw Ethernet II frame and the PTP message inside.
// Padding after the PTP message is ignored.
func Decode(raw []byte) (*Frame, error) {
	eth := &layers.Ethernet{}
	if err := eth.DecodeFromBytes(raw, gopacket.NilDecodeFeedback); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotPTP, err)
	}
	if eth.EthernetType != EtherTypePTP {
		return nil, fmt.Errorf("%w: ethertype %s", ErrNotPTP, eth.EthernetType)
	}
	p, err := ptp.DecodePacket(eth.Payload)
	if err != nil {
		return nil, fmt.Errorf("decoding PTPv2 packet: %w", err)
	}
	return &Frame{
		Src:    eth.SrcMAC,
		Dst:    eth.DstMAC,
		Packet: p,
	}, nil
}

// Encode builds Ethernet frame carrying the PTP packet. Short frames are padded to the Ethernet minimum.
func Encode(src, dst net.HardwareAddr, p ptp.Packet) ([]byte, error) {
	payload, err := ptp.Bytes(p)
	if err != nil {
		return nil, err
	}
	eth := &layers.Ethernet{
		SrcMAC:       src,
		DstMAC:       dst,
		EthernetType: EtherTypePTP,
	}
	buf := gopacket.NewSerializeBuffer()
	if err := gopacket.SerializeLayers(buf, gopacket.SerializeOptions{}, eth, gopacket.Payload(payload)); err != nil {
		return nil, fmt.Errorf("serializing PTP frame: %w", err)
	}
	return buf.Bytes(), nil
}
