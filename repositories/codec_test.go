package repositories

import (
	"chat-pipeline/domain"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"
)

func TestDecodeRecord_SkipsUnknownFields(t *testing.T) {
	req := require.New(t)
	record := newAuditRecord(uuid.New(), "hello", time.Now().UTC(), true)

	// Given a row carrying a field this version does not know
	b := encodeRecord(record)
	b = protowire.AppendTag(b, 42, protowire.BytesType)
	b = protowire.AppendString(b, "from the future")

	decoded, err := decodeRecord(b)

	req.NoError(err)
	req.Equal(record, decoded)
}

func TestDecodeRecord_EmptyFieldsAreOmitted(t *testing.T) {
	req := require.New(t)
	record := domain.AuditRecord{ID: uuid.New(), SenderID: uuid.New(), Timestamp: time.Unix(0, 42).UTC()}

	decoded, err := decodeRecord(encodeRecord(record))

	req.NoError(err)
	req.Equal(record, decoded)
}

func TestDecodeRecord_Truncated(t *testing.T) {
	req := require.New(t)
	b := encodeRecord(newAuditRecord(uuid.New(), "hello", time.Now().UTC(), false))

	_, err := decodeRecord(b[:len(b)-3])

	req.Error(err)
}
