package repositories

import (
	"chat-pipeline/domain"
	"fmt"
	"time"

	"github.com/google/uuid"
	"google.golang.org/protobuf/encoding/protowire"
)

// Field numbers of the audit row, wire compatible with a protobuf message
// declaring the same fields.
const (
	fieldID         protowire.Number = 1
	fieldServer     protowire.Number = 2
	fieldChannel    protowire.Number = 3
	fieldSenderID   protowire.Number = 4
	fieldSenderName protowire.Number = 5
	fieldBody       protowire.Number = 6
	fieldFiltered   protowire.Number = 7
	fieldLang       protowire.Number = 8
	fieldTimestamp  protowire.Number = 9
)

func encodeRecord(record domain.AuditRecord) []byte {
	var b []byte
	b = appendString(b, fieldID, record.ID.String())
	b = appendString(b, fieldServer, record.ServerTag)
	b = appendString(b, fieldChannel, record.Channel)
	b = appendString(b, fieldSenderID, record.SenderID.String())
	b = appendString(b, fieldSenderName, record.SenderName)
	b = appendString(b, fieldBody, record.Body)
	b = protowire.AppendTag(b, fieldFiltered, protowire.VarintType)
	b = protowire.AppendVarint(b, protowire.EncodeBool(record.Filtered))
	b = appendString(b, fieldLang, record.Lang)
	b = protowire.AppendTag(b, fieldTimestamp, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(record.Timestamp.UnixNano()))
	return b
}

func appendString(b []byte, num protowire.Number, s string) []byte {
	if s == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}

// decodeRecord skips unknown fields, rows written by a newer version stay readable.
func decodeRecord(b []byte) (domain.AuditRecord, error) {
	var record domain.AuditRecord
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return domain.AuditRecord{}, protowire.ParseError(n)
		}
		b = b[n:]

		switch {
		case typ == protowire.BytesType && num <= fieldLang && num != fieldFiltered:
			s, n := protowire.ConsumeString(b)
			if n < 0 {
				return domain.AuditRecord{}, protowire.ParseError(n)
			}
			if err := setString(&record, num, s); err != nil {
				return domain.AuditRecord{}, err
			}
			b = b[n:]
		case typ == protowire.VarintType && (num == fieldFiltered || num == fieldTimestamp):
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return domain.AuditRecord{}, protowire.ParseError(n)
			}
			if num == fieldFiltered {
				record.Filtered = protowire.DecodeBool(v)
			} else {
				record.Timestamp = time.Unix(0, int64(v)).UTC()
			}
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return domain.AuditRecord{}, protowire.ParseError(n)
			}
			b = b[n:]
		}
	}
	return record, nil
}

func setString(record *domain.AuditRecord, num protowire.Number, s string) error {
	var err error
	switch num {
	case fieldID:
		record.ID, err = uuid.Parse(s)
	case fieldServer:
		record.ServerTag = s
	case fieldChannel:
		record.Channel = s
	case fieldSenderID:
		record.SenderID, err = uuid.Parse(s)
	case fieldSenderName:
		record.SenderName = s
	case fieldBody:
		record.Body = s
	case fieldLang:
		record.Lang = s
	}
	if err != nil {
		return fmt.Errorf("field %d: %w", num, err)
	}
	return nil
}
