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

package cmd

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	log "github.com/sirupsen/logrus"

	"github.com/facebook/ptpsec/sdn/frame"
)

// packetHandle abstracts packet handles provided by pcapgo.Reader and pcapgo.NgReader
type packetHandle interface {
	gopacket.PacketDataSource
	LinkType() layers.LinkType
}

// capturedFrame is a PTP frame read from a capture file
type capturedFrame struct {
	Timestamp time.Time
	Data      []byte
	Frame     *frame.Frame
}

// readCapture returns all PTP over Ethernet frames from pcap or pcapng file
func readCapture(input string) ([]capturedFrame, error) {
	var handle packetHandle

	f, err := os.Open(input)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	// try NgReader, if it fails - fall back to Reader
	handle, err = pcapgo.NewNgReader(f, pcapgo.DefaultNgReaderOptions)
	if err != nil {
		if _, ierr := f.Seek(0, 0); ierr != nil {
			return nil, fmt.Errorf("seeking in %s: %w", input, ierr)
		}
		handle, err = pcapgo.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("decoding %s: %w", input, err)
		}
	}

	res := []capturedFrame{}
	packetSource := gopacket.NewPacketSource(handle, handle.LinkType())
	for packet := range packetSource.Packets() {
		ts := packet.Metadata().Timestamp
		fr, err := frame.FromGoPacket(packet)
		if err != nil {
			if !errors.Is(err, frame.ErrNotPTP) {
				log.Warningf("skipping packet at %v: %v", ts, err)
			}
			continue
		}
		res = append(res, capturedFrame{Timestamp: ts, Data: packet.Data(), Frame: fr})
	}
	return res, nil
}
