package refreshstore

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
)

// Binary record layout, version 1. The header is fixed-offset so the consume
// script can read the flags byte and expiry without decoding the whole blob:
//
//	[0]     version
//	[1]     flags (bit 0: consumed)
//	[2:10]  expires_at, unix seconds, big endian
//	[10:18] issued_at
//	[18:26] lineage_created_at
//	[26:]   length-prefixed subject, lineage, parent
const (
	recordFormatVersion = 1

	flagConsumed byte = 1 << 0

	recordHeaderLen = 26
)

func Encode(rec *Record) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteByte(recordFormatVersion)

	var flags byte
	if rec.Consumed {
		flags |= flagConsumed
	}
	buf.WriteByte(flags)

	if err := binary.Write(&buf, binary.BigEndian, rec.ExpiresAt); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, rec.IssuedAt); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, rec.LineageCreatedAt); err != nil {
		return nil, err
	}

	for _, field := range []struct {
		name  string
		value string
	}{
		{"subject", rec.Subject},
		{"lineage", rec.Lineage},
		{"parent", rec.Parent},
	} {
		if len(field.value) > 255 {
			return nil, errors.New(field.name + " too long")
		}
		buf.WriteByte(byte(len(field.value)))
		buf.WriteString(field.value)
	}

	return buf.Bytes(), nil
}

func Decode(data []byte) (*Record, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != recordFormatVersion {
		return nil, errors.New("invalid record version")
	}

	flags, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}

	rec := &Record{
		Consumed: flags&flagConsumed != 0,
	}

	if err := binary.Read(reader, binary.BigEndian, &rec.ExpiresAt); err != nil {
		return nil, err
	}
	if err := binary.Read(reader, binary.BigEndian, &rec.IssuedAt); err != nil {
		return nil, err
	}
	if err := binary.Read(reader, binary.BigEndian, &rec.LineageCreatedAt); err != nil {
		return nil, err
	}

	for _, target := range []*string{&rec.Subject, &rec.Lineage, &rec.Parent} {
		length, err := reader.ReadByte()
		if err != nil {
			return nil, err
		}
		field := make([]byte, length)
		if _, err := io.ReadFull(reader, field); err != nil {
			return nil, err
		}
		*target = string(field)
	}

	if rec.Subject == "" || rec.Lineage == "" {
		return nil, errors.New("record missing subject or lineage")
	}

	return rec, nil
}
