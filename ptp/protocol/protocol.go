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

/*
Package protocol implements the PTPv2 messages a ptpsec controller inspects:
the common header, the event and general messages used by the delay
request-response mechanism, Announce, and the Measurement extension.
PTP runs directly over Ethernet here, so there is no UDP padding.
*/
package protocol

// all references are given for IEEE 1588-2019 Standard

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

// Version is what version of PTP protocol we implement
const Version uint8 = 2

// HeaderSize is the size of the common PTP header on the wire
const HeaderSize = 34

// ErrNotEnoughData is returned when a buffer is shorter than the message it should hold
var ErrNotEnoughData = errors.New("not enough data")

// Header Table 35 Common PTP message header
type Header struct {
	SdoIDAndMsgType     SdoIDAndMsgType // first 4 bits is SdoId, next 4 bytes are msgtype
	Version             uint8           // first 4 bits is minorVersionPTP, next 4 bits are versionPTP
	MessageLength       uint16
	DomainNumber        uint8
	MinorSdoID          uint8
	FlagField           uint16
	CorrectionField     Correction
	MessageTypeSpecific uint32
	SourcePortIdentity  PortIdentity
	SequenceID          uint16
	ControlField        uint8
	LogMessageInterval  LogInterval
}

// MessageType returns MessageType
func (p *Header) MessageType() MessageType {
	return p.SdoIDAndMsgType.MsgType()
}

// SetSequence populates sequence field
func (p *Header) SetSequence(sequence uint16) {
	p.SequenceID = sequence
}

// PTPHeader gives access to the common header of any packet
func (p *Header) PTPHeader() *Header {
	return p
}

// SourceClockIdentity returns the clock identity of the sender
func (p *Header) SourceClockIdentity() ClockIdentity {
	return p.SourcePortIdentity.ClockIdentity
}

// VersionPTP returns the major PTP version
func (p *Header) VersionPTP() uint8 {
	return p.Version & 0xf
}

// MinorVersionPTP returns the minor PTP version
func (p *Header) MinorVersionPTP() uint8 {
	return p.Version >> 4
}

// flags used in FlagField as per Table 37 Values of flagField
const (
	// first octet
	FlagAlternateMaster uint16 = 1 << (8 + 0)
	FlagTwoStep         uint16 = 1 << (8 + 1)
	FlagUnicast         uint16 = 1 << (8 + 2)
	// second octet
	FlagPTPTimescale uint16 = 1 << 3
)

// All packets are split in two parts: Header (which is common) and body that is unique
// for most packets (both in length and structure).
// Every body used here has a fixed size, so the whole packet is read and written
// with encoding/binary straight from the struct.

// AnnounceBody Table 43 Announce message fields
type AnnounceBody struct {
	OriginTimestamp         Timestamp
	CurrentUTCOffset        int16
	Reserved                uint8
	GrandmasterPriority1    uint8
	GrandmasterClockQuality ClockQuality
	GrandmasterPriority2    uint8
	GrandmasterIdentity     ClockIdentity
	StepsRemoved            uint16
	TimeSource              TimeSource
}

// Announce is a full Announce packet
type Announce struct {
	Header
	AnnounceBody
}

// SyncDelayReqBody Table 44 Sync and Delay_Req message fields
type SyncDelayReqBody struct {
	OriginTimestamp Timestamp
}

// SyncDelayReq is a full Sync/Delay_Req packet
type SyncDelayReq struct {
	Header
	SyncDelayReqBody
}

// FollowUpBody Table 45 Follow_Up message fields
type FollowUpBody struct {
	PreciseOriginTimestamp Timestamp
}

// FollowUp is a full Follow_Up packet
type FollowUp struct {
	Header
	FollowUpBody
}

// DelayRespBody Table 46 Delay_Resp message fields
type DelayRespBody struct {
	ReceiveTimestamp       Timestamp
	RequestingPortIdentity PortIdentity
}

// DelayResp is a full Delay_Resp packet
type DelayResp struct {
	Header
	DelayRespBody
}

// MeasurementBody carries a path measurement probe
type MeasurementBody struct {
	Timestamp           Timestamp
	TargetClockIdentity ClockIdentity
	MeasurementType     MeasurementType
}

// Measurement is a full Measurement packet
type Measurement struct {
	Header
	MeasurementBody
}

// Other is any packet whose body we don't decode
type Other struct {
	Header
}

// Packet is an iterface to abstract all different packets
type Packet interface {
	MessageType() MessageType
	SetSequence(uint16)
	PTPHeader() *Header
}

// Bytes converts any packet to []bytes
func Bytes(p Packet) ([]byte, error) {
	var bytes bytes.Buffer
	if err := binary.Write(&bytes, binary.BigEndian, p); err != nil {
		return nil, err
	}
	return bytes.Bytes(), nil
}

// FromBytes parses []byte into any packet. Bytes past the end of the packet are ignored.
func FromBytes(rawBytes []byte, p Packet) error {
	need := binary.Size(p)
	if need < 0 {
		return fmt.Errorf("%T has no fixed size", p)
	}
	if len(rawBytes) < need {
		return fmt.Errorf("%w to decode %T: need %d bytes, got %d", ErrNotEnoughData, p, need, len(rawBytes))
	}
	return binary.Read(bytes.NewReader(rawBytes[:need]), binary.BigEndian, p)
}

// DecodePacket provides single entry point to try and decode any []bytes to PTPv2 packet.
// Resulting Packet user can then either switch based on MessageType(), or just with type switch.
// Message types without a known body decode into *Other.
func DecodePacket(b []byte) (Packet, error) {
	head := &Header{}
	if err := FromBytes(b, head); err != nil {
		return nil, err
	}
	var p Packet
	switch head.MessageType() {
	case MessageSync, MessageDelayReq:
		p = &SyncDelayReq{}
	case MessageFollowUp:
		p = &FollowUp{}
	case MessageDelayResp:
		p = &DelayResp{}
	case MessageAnnounce:
		p = &Announce{}
	case MessageMeasurement:
		p = &Measurement{}
	default:
		return &Other{Header: *head}, nil
	}

	if err := FromBytes(b, p); err != nil {
		return nil, err
	}
	return p, nil
}
