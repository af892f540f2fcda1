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
	"bytes"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"github.com/stretchr/testify/require"

	ptp "github.com/facebook/ptpsec/ptp/protocol"
	"github.com/facebook/ptpsec/sdn/controller"
	"github.com/facebook/ptpsec/sdn/frame"
	"github.com/facebook/ptpsec/sdn/stats"
	"github.com/facebook/ptpsec/sdn/topology"
)

var (
	masterMAC = net.HardwareAddr{0x02, 0x00, 0x00, 0x00, 0x00, 0x01}
	slaveMAC  = net.HardwareAddr{0x02, 0x00, 0x00, 0x00, 0x00, 0x02}
	ptpDst    = net.HardwareAddr{0x01, 0x1b, 0x19, 0x00, 0x00, 0x00}
)

// master on s1, slave on s2, spare switch s3 next to the master
const testTopology = `
switches: [1, 2, 3]
links:
  - {from: 1, from_port: 2, to: 2, to_port: 1}
  - {from: 1, from_port: 3, to: 3, to_port: 1, delay: 2}
hosts:
  - {mac: "02:00:00:00:00:01", switch: 1, port: 1}
  - {mac: "02:00:00:00:00:02", switch: 2, port: 2}
`

func clockOf(t *testing.T, mac net.HardwareAddr) ptp.ClockIdentity {
	c, err := ptp.NewClockIdentity(mac)
	require.NoError(t, err)
	return c
}

func header(t ptp.MessageType, c ptp.ClockIdentity, seq uint16) ptp.Header {
	return ptp.Header{
		SdoIDAndMsgType:    ptp.NewSdoIDAndMsgType(t, 0),
		Version:            ptp.Version,
		SourcePortIdentity: ptp.PortIdentity{ClockIdentity: c, PortNumber: 1},
		SequenceID:         seq,
	}
}

func writeFile(t *testing.T, name, content string) string {
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0644))
	return p
}

func writeCapture(t *testing.T, frames [][]byte) string {
	p := filepath.Join(t.TempDir(), "capture.pcap")
	f, err := os.Create(p)
	require.NoError(t, err)
	defer f.Close()
	w := pcapgo.NewWriter(f)
	require.NoError(t, w.WriteFileHeader(65536, layers.LinkTypeEthernet))
	ts := time.Unix(1700000000, 0)
	for i, data := range frames {
		ci := gopacket.CaptureInfo{
			Timestamp:     ts.Add(time.Duration(i) * time.Millisecond),
			CaptureLength: len(data),
			Length:        len(data),
		}
		require.NoError(t, w.WritePacket(ci, data))
	}
	return p
}

func exchange(t *testing.T) [][]byte {
	master := clockOf(t, masterMAC)
	slave := clockOf(t, slaveMAC)
	packets := []struct {
		src net.HardwareAddr
		p   ptp.Packet
	}{
		{masterMAC, &ptp.SyncDelayReq{Header: header(ptp.MessageSync, master, 1)}},
		{slaveMAC, &ptp.SyncDelayReq{Header: header(ptp.MessageDelayReq, slave, 1)}},
		{masterMAC, &ptp.DelayResp{
			Header: header(ptp.MessageDelayResp, master, 1),
			DelayRespBody: ptp.DelayRespBody{
				RequestingPortIdentity: ptp.PortIdentity{ClockIdentity: slave, PortNumber: 1},
			},
		}},
	}
	res := [][]byte{}
	for _, pkt := range packets {
		raw, err := frame.Encode(pkt.src, ptpDst, pkt.p)
		require.NoError(t, err)
		res = append(res, raw)
	}
	// not PTP, skipped
	ipv4 := make([]byte, 60)
	copy(ipv4, ptpDst)
	copy(ipv4[6:], masterMAC)
	copy(ipv4[12:], []byte{0x08, 0x00})
	return append(res, ipv4)
}

func TestReadCapture(t *testing.T) {
	frames, err := readCapture(writeCapture(t, exchange(t)))
	require.NoError(t, err)
	require.Len(t, frames, 3)
	require.Equal(t, masterMAC, frames[0].Frame.Src)
	require.Equal(t, ptp.MessageSync, frames[0].Frame.Packet.MessageType())
	require.Equal(t, ptp.MessageDelayReq, frames[1].Frame.Packet.MessageType())
	require.Equal(t, time.Unix(1700000000, 2000000).UTC(), frames[2].Timestamp.UTC())

	_, err = readCapture(filepath.Join(t.TempDir(), "missing.pcap"))
	require.Error(t, err)
	_, err = readCapture(writeFile(t, "garbage.pcap", "definitely not a capture"))
	require.Error(t, err)
}

func TestDecodeRun(t *testing.T) {
	capture := writeCapture(t, exchange(t))
	var out bytes.Buffer
	require.NoError(t, decodeRun(&out, capture, nil, false))
	require.Contains(t, out.String(), "02:00:00:00:00:01 -> 01:1b:19:00:00:00 SYNC seq=1 src=020000.fffe.000001-1")
	require.Contains(t, out.String(), "DELAY_RESP seq=1 src=020000.fffe.000001-1 requesting=020000.fffe.000002-1 interval=1s")
	require.Equal(t, 3, bytes.Count(out.Bytes(), []byte("\n")))

	out.Reset()
	require.NoError(t, decodeRun(&out, capture, []string{"delay_req"}, true))
	require.Contains(t, out.String(), "DELAY_REQ")
	require.NotContains(t, out.String(), "SYNC")
	// spew dump of the message
	require.Contains(t, out.String(), "(*protocol.SyncDelayReq)")

	require.Error(t, decodeRun(&out, capture, []string{"nope"}, false))
}

func TestDescribeMeasurement(t *testing.T) {
	p := &ptp.Measurement{
		Header: header(ptp.MessageMeasurement, clockOf(t, slaveMAC), 7),
		MeasurementBody: ptp.MeasurementBody{
			TargetClockIdentity: clockOf(t, masterMAC),
			MeasurementType:     ptp.MeasurementTransport,
		},
	}
	p.Header.CorrectionField = ptp.Correction(65536)
	p.Header.LogMessageInterval = -1
	require.Equal(t,
		"MEASUREMENT seq=7 src=020000.fffe.000002-1 type=TRANSPORT target=020000.fffe.000001 target_mac=02:00:00:00:00:01 corr=Correction(1.000ns) interval=500ms",
		describe(p),
	)
}

func TestParseMessageTypes(t *testing.T) {
	all, err := parseMessageTypes(nil)
	require.NoError(t, err)
	require.Len(t, all, len(ptp.MessageTypeToString))

	f, err := parseMessageTypes([]string{"sync", "MEASUREMENT"})
	require.NoError(t, err)
	require.Equal(t, map[ptp.MessageType]bool{ptp.MessageSync: true, ptp.MessageMeasurement: true}, f)
}

func TestPathsRun(t *testing.T) {
	topo := writeFile(t, "topology.yaml", testTopology)
	var out bytes.Buffer
	require.NoError(t, pathsRun(&out, topo, masterMAC.String(), 2, false))
	require.Contains(t, out.String(), "[WARN]")
	require.Contains(t, out.String(), "020000.fffe.000002")
	require.Contains(t, out.String(), "1/2")

	out.Reset()
	require.NoError(t, pathsRun(&out, topo, masterMAC.String(), 1, false))
	require.Contains(t, out.String(), "[ OK ]")

	out.Reset()
	require.NoError(t, pathsRun(&out, topo, masterMAC.String(), 1, true))
	require.Contains(t, out.String(), "digraph")

	require.Error(t, pathsRun(&out, topo, "02:00:00:00:0f:0f", 1, false))
	require.Error(t, pathsRun(&out, topo, "nope", 1, false))
}

func TestComputeReport(t *testing.T) {
	c, err := topology.ParseConfig([]byte(testTopology))
	require.NoError(t, err)
	_, reports, err := computeReport(c, masterMAC, 2)
	require.NoError(t, err)
	require.Len(t, reports, 1)
	r := reports[0]
	master := topology.Endpoint(clockOf(t, masterMAC))
	slave := topology.Endpoint(clockOf(t, slaveMAC))
	require.Equal(t, clockOf(t, slaveMAC), r.Slave)
	require.NoError(t, r.Err)
	require.Equal(t, topology.Path{master, topology.Switch(1), topology.Switch(2), slave}, r.Main)
	require.Equal(t, warnString, r.status(2))
	require.Equal(t, okString, r.status(1))
}

func TestReplayRun(t *testing.T) {
	topo := writeFile(t, "topology.yaml", testTopology)
	capture := writeCapture(t, exchange(t))
	cfg := controller.DefaultConfig()
	cfg.RedundantPaths = 1
	st := stats.NewJSONStats()

	var out bytes.Buffer
	c, err := replayRun(&out, topo, capture, cfg, st)
	require.NoError(t, err)
	require.Equal(t, clockOf(t, masterMAC), c.Master().ClockIdentity)

	// Sync and Delay_Resp reach the slave, Delay_Req reaches the master
	require.Equal(t, 2, bytes.Count(out.Bytes(), []byte("delivered to 02:00:00:00:00:02")))
	require.Equal(t, 1, bytes.Count(out.Bytes(), []byte("delivered to 02:00:00:00:00:01")))
	require.Contains(t, out.String(), "s1: packet_out in_port=1 out_ports=[2]")
	require.Contains(t, out.String(), "s2: flow_mod priority=10")

	r := st.Report()
	require.Equal(t, int64(1), r["plan.runs"])
	// two hops each
	require.Equal(t, int64(6), r["directives.packet_out"])
	require.Equal(t, int64(6), r["directives.flow_mod"])

	out.Reset()
	printCounters(&out, r)
	require.Contains(t, out.String(), "directives.packet_out")
}

func TestReplayRunNoMaster(t *testing.T) {
	topo := writeFile(t, "topology.yaml", testTopology)
	capture := writeCapture(t, exchange(t)[1:2])
	var out bytes.Buffer
	_, err := replayRun(&out, topo, capture, controller.DefaultConfig(), stats.NewJSONStats())
	require.ErrorIs(t, err, controller.ErrPlanSkipped)
}
