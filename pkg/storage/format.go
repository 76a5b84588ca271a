// Copyright 2025 Alexander Alten (novatechflow), NovaTechflow (novatechflow.com).
// This project is supported and financed by Scalytics, Inc. (www.scalytics.io).
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package storage

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"
	"time"
)

const (
	segmentMagic = "RECL"
	footerMagic  = "END!"

	headerLen = 32
	footerLen = 40

	blockChannel byte = 'C'
	blockMessage byte = 'M'
)

var crcTable = crc32.MakeTable(crc32.Castagnoli)

// Footer is the fixed trailing block of a finalized segment. The CRC covers
// every byte before IndexPos.
type Footer struct {
	IndexPos     uint64
	IndexLen     uint32
	ChannelCount uint32
	MessageCount uint64
	RawBytes     uint64
	CRC          uint32
}

// ChannelRecord is a decoded channel declaration block.
type ChannelRecord struct {
	Name       string
	Type       string
	Descriptor []byte
}

// MessageRecord is a decoded message block.
type MessageRecord struct {
	ChannelName string
	Content     []byte
	TimeNs      uint64
}

func encodeHeader(h Header) []byte {
	buf := bytes.NewBuffer(make([]byte, 0, headerLen))
	buf.WriteString(segmentMagic)
	binary.Write(buf, binary.BigEndian, h.Version)
	binary.Write(buf, binary.BigEndian, h.Flags)
	binary.Write(buf, binary.BigEndian, h.ChunkIntervalNs)
	binary.Write(buf, binary.BigEndian, h.SegmentIntervalNs)
	binary.Write(buf, binary.BigEndian, h.CreatedAt.UnixMilli())
	return buf.Bytes()
}

func parseHeader(data []byte) (Header, error) {
	if len(data) < headerLen {
		return Header{}, fmt.Errorf("header too small")
	}
	if string(data[:4]) != segmentMagic {
		return Header{}, fmt.Errorf("invalid segment magic")
	}
	reader := bytes.NewReader(data[4:])
	var h Header
	var createdMs int64
	if err := binary.Read(reader, binary.BigEndian, &h.Version); err != nil {
		return Header{}, err
	}
	if h.Version != CurrentVersion {
		return Header{}, fmt.Errorf("unsupported segment version %d", h.Version)
	}
	if err := binary.Read(reader, binary.BigEndian, &h.Flags); err != nil {
		return Header{}, err
	}
	if err := binary.Read(reader, binary.BigEndian, &h.ChunkIntervalNs); err != nil {
		return Header{}, err
	}
	if err := binary.Read(reader, binary.BigEndian, &h.SegmentIntervalNs); err != nil {
		return Header{}, err
	}
	if err := binary.Read(reader, binary.BigEndian, &createdMs); err != nil {
		return Header{}, err
	}
	h.CreatedAt = time.UnixMilli(createdMs)
	return h, nil
}

func encodeChannelBlock(name, typeName string, descriptor []byte) []byte {
	buf := bytes.NewBuffer(make([]byte, 0, 1+2+len(name)+2+len(typeName)+4+len(descriptor)))
	buf.WriteByte(blockChannel)
	binary.Write(buf, binary.BigEndian, uint16(len(name)))
	buf.WriteString(name)
	binary.Write(buf, binary.BigEndian, uint16(len(typeName)))
	buf.WriteString(typeName)
	binary.Write(buf, binary.BigEndian, uint32(len(descriptor)))
	buf.Write(descriptor)
	return buf.Bytes()
}

func encodeMessageBlock(channelName string, content []byte, timeNs uint64) []byte {
	buf := bytes.NewBuffer(make([]byte, 0, 1+2+len(channelName)+8+4+len(content)))
	buf.WriteByte(blockMessage)
	binary.Write(buf, binary.BigEndian, uint16(len(channelName)))
	buf.WriteString(channelName)
	binary.Write(buf, binary.BigEndian, timeNs)
	binary.Write(buf, binary.BigEndian, uint32(len(content)))
	buf.Write(content)
	return buf.Bytes()
}

func encodeFooter(f Footer) []byte {
	buf := bytes.NewBuffer(make([]byte, 0, footerLen))
	binary.Write(buf, binary.BigEndian, f.IndexPos)
	binary.Write(buf, binary.BigEndian, f.IndexLen)
	binary.Write(buf, binary.BigEndian, f.ChannelCount)
	binary.Write(buf, binary.BigEndian, f.MessageCount)
	binary.Write(buf, binary.BigEndian, f.RawBytes)
	binary.Write(buf, binary.BigEndian, f.CRC)
	buf.WriteString(footerMagic)
	return buf.Bytes()
}

func parseFooter(data []byte) (Footer, error) {
	if len(data) < footerLen {
		return Footer{}, fmt.Errorf("footer too small")
	}
	if string(data[footerLen-4:footerLen]) != footerMagic {
		return Footer{}, fmt.Errorf("invalid footer magic")
	}
	reader := bytes.NewReader(data)
	var f Footer
	if err := binary.Read(reader, binary.BigEndian, &f.IndexPos); err != nil {
		return Footer{}, err
	}
	if err := binary.Read(reader, binary.BigEndian, &f.IndexLen); err != nil {
		return Footer{}, err
	}
	if err := binary.Read(reader, binary.BigEndian, &f.ChannelCount); err != nil {
		return Footer{}, err
	}
	if err := binary.Read(reader, binary.BigEndian, &f.MessageCount); err != nil {
		return Footer{}, err
	}
	if err := binary.Read(reader, binary.BigEndian, &f.RawBytes); err != nil {
		return Footer{}, err
	}
	if err := binary.Read(reader, binary.BigEndian, &f.CRC); err != nil {
		return Footer{}, err
	}
	return f, nil
}

func readString16(r io.Reader) (string, error) {
	var n uint16
	if err := binary.Read(r, binary.BigEndian, &n); err != nil {
		return "", err
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", err
	}
	return string(b), nil
}

func readBytes32(r io.Reader) ([]byte, error) {
	var n uint32
	if err := binary.Read(r, binary.BigEndian, &n); err != nil {
		return nil, err
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, err
	}
	return b, nil
}
