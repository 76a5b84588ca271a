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
	"bufio"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"
	"os"
)

// Record is one decoded block from a segment body. Exactly one of Channel or
// Message is set.
type Record struct {
	Channel *ChannelRecord
	Message *MessageRecord
}

// SegmentReader decodes a finalized segment file block by block.
type SegmentReader struct {
	f      *os.File
	br     *bufio.Reader
	header Header
	footer Footer
	offset uint64
}

// OpenSegmentReader opens a finalized segment, validating header and footer
// framing. Body CRC is not verified here; use VerifySegment for that.
func OpenSegmentReader(path string) (*SegmentReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open segment %s: %w", path, err)
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat segment %s: %w", path, err)
	}
	if st.Size() < headerLen+footerLen {
		f.Close()
		return nil, fmt.Errorf("segment %s truncated", path)
	}
	footerBytes := make([]byte, footerLen)
	if _, err := f.ReadAt(footerBytes, st.Size()-footerLen); err != nil {
		f.Close()
		return nil, fmt.Errorf("read footer %s: %w", path, err)
	}
	footer, err := parseFooter(footerBytes)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("parse footer %s: %w", path, err)
	}
	headerBytes := make([]byte, headerLen)
	if _, err := f.ReadAt(headerBytes, 0); err != nil {
		f.Close()
		return nil, fmt.Errorf("read header %s: %w", path, err)
	}
	header, err := parseHeader(headerBytes)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("parse header %s: %w", path, err)
	}
	if _, err := f.Seek(headerLen, io.SeekStart); err != nil {
		f.Close()
		return nil, err
	}
	return &SegmentReader{
		f:      f,
		br:     bufio.NewReader(f),
		header: header,
		footer: footer,
		offset: headerLen,
	}, nil
}

// Header returns the decoded segment header.
func (r *SegmentReader) Header() Header { return r.header }

// Footer returns the decoded segment footer.
func (r *SegmentReader) Footer() Footer { return r.footer }

// Next returns the next channel or message block, or io.EOF once the body is
// exhausted.
func (r *SegmentReader) Next() (*Record, error) {
	if r.offset >= r.footer.IndexPos {
		return nil, io.EOF
	}
	tag, err := r.br.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("read block tag: %w", err)
	}
	r.offset++
	switch tag {
	case blockChannel:
		name, err := readString16(r.br)
		if err != nil {
			return nil, fmt.Errorf("read channel name: %w", err)
		}
		typeName, err := readString16(r.br)
		if err != nil {
			return nil, fmt.Errorf("read channel type: %w", err)
		}
		descriptor, err := readBytes32(r.br)
		if err != nil {
			return nil, fmt.Errorf("read channel descriptor: %w", err)
		}
		r.offset += uint64(2 + len(name) + 2 + len(typeName) + 4 + len(descriptor))
		return &Record{Channel: &ChannelRecord{Name: name, Type: typeName, Descriptor: descriptor}}, nil
	case blockMessage:
		name, err := readString16(r.br)
		if err != nil {
			return nil, fmt.Errorf("read message channel: %w", err)
		}
		var timeNs uint64
		if err := binary.Read(r.br, binary.BigEndian, &timeNs); err != nil {
			return nil, fmt.Errorf("read message time: %w", err)
		}
		content, err := readBytes32(r.br)
		if err != nil {
			return nil, fmt.Errorf("read message content: %w", err)
		}
		r.offset += uint64(2 + len(name) + 8 + 4 + len(content))
		return &Record{Message: &MessageRecord{ChannelName: name, Content: content, TimeNs: timeNs}}, nil
	default:
		return nil, fmt.Errorf("unknown block tag 0x%02x at offset %d", tag, r.offset-1)
	}
}

// Index reads and parses the sparse message index.
func (r *SegmentReader) Index() ([]*IndexEntry, error) {
	data := make([]byte, r.footer.IndexLen)
	if _, err := r.f.ReadAt(data, int64(r.footer.IndexPos)); err != nil {
		return nil, fmt.Errorf("read index: %w", err)
	}
	return ParseIndex(data)
}

// Close releases the underlying file.
func (r *SegmentReader) Close() error {
	return r.f.Close()
}

// VerifySegment recomputes the body CRC of a finalized segment and compares
// it against the footer.
func VerifySegment(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open segment %s: %w", path, err)
	}
	defer f.Close()
	st, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat segment %s: %w", path, err)
	}
	if st.Size() < headerLen+footerLen {
		return fmt.Errorf("segment %s truncated", path)
	}
	footerBytes := make([]byte, footerLen)
	if _, err := f.ReadAt(footerBytes, st.Size()-footerLen); err != nil {
		return fmt.Errorf("read footer %s: %w", path, err)
	}
	footer, err := parseFooter(footerBytes)
	if err != nil {
		return fmt.Errorf("parse footer %s: %w", path, err)
	}
	if int64(footer.IndexPos) > st.Size()-footerLen {
		return fmt.Errorf("segment %s index position out of bounds", path)
	}
	crc := crc32.New(crcTable)
	if _, err := io.CopyN(crc, f, int64(footer.IndexPos)); err != nil {
		return fmt.Errorf("checksum segment %s: %w", path, err)
	}
	if crc.Sum32() != footer.CRC {
		return fmt.Errorf("segment %s checksum mismatch: computed %08x, footer %08x", path, crc.Sum32(), footer.CRC)
	}
	return nil
}
