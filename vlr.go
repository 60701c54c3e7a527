package lasgo

import (
	"io"

	"github.com/lasgo-project/lasgo/decode"
)

// vlrHeaderBytes is the fixed-size portion of a standard VLR: reserved(2)
// + user_id(16) + record_id(2) + record_length_after_header(2) +
// description(32).
const vlrHeaderBytes = 54

// evlrHeaderBytes is the EVLR equivalent; its length field is 8 bytes
// instead of 2, so EVLRs aren't limited to 65535 bytes of payload.
const evlrHeaderBytes = 60

// VLR is a Variable-Length Record (or, when IsExtended is true, an
// Extended VLR). Identity for lookup purposes is (UserID, RecordID).
type VLR struct {
	Reserved    uint16
	UserID      string
	RecordID    uint16
	Description string
	Data        []byte
	IsExtended  bool
}

// Size returns the on-disk byte size of the VLR including its header.
func (v VLR) Size() int64 {
	if v.IsExtended {
		return evlrHeaderBytes + int64(len(v.Data))
	}
	return vlrHeaderBytes + int64(len(v.Data))
}

const (
	lasZipUserID   = "laszip encoded"
	lasZipRecordID = 22204

	geoKeyDirectoryUserID = "LASF_Projection"
	geoKeyDirectoryID     = 34735
	geoKeyDoublesID       = 34736
	geoKeyASCIIID         = 34737
	wktRecordID           = 2112
)

// IsLASZipVLR reports whether v is the marker VLR a LAZ writer embeds to
// flag compressed point data.
func (v VLR) IsLASZipVLR() bool {
	return !v.IsExtended && v.UserID == lasZipUserID && v.RecordID == lasZipRecordID
}

// expectedReservedPrefix returns the reserved-field value a well-formed
// file should use for the given minor version.
func expectedReservedPrefix(minor uint8) uint16 {
	if minor == 0 {
		return 0xAABB
	}
	return 0x0000
}

func readVLRList(s Stream, minor uint8, count int, budget int64, w *Warnings) ([]VLR, error) {
	vlrs := make([]VLR, 0, count)
	var consumed int64
	for i := 0; i < count; i++ {
		if budget >= 0 && consumed >= budget {
			w.Addf(ErrVLRTruncated, "vlr_list", consumed)
			break
		}
		v, n, err := readVLR(s, minor, false, w)
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			w.Addf(ErrVLRTruncated, "vlr_list", consumed)
			break
		}
		if err != nil {
			return vlrs, err
		}
		vlrs = append(vlrs, v)
		consumed += n
	}
	return vlrs, nil
}

func readVLR(s Stream, minor uint8, extended bool, w *Warnings) (VLR, int64, error) {
	var v VLR
	v.IsExtended = extended

	if err := decode.ReadLE(s, &v.Reserved); err != nil {
		return v, 0, err
	}
	if v.Reserved != expectedReservedPrefix(minor) {
		w.Addf(ErrVLRTruncated, "reserved", int64(v.Reserved))
	}

	userID := make([]byte, 16)
	if _, err := io.ReadFull(s, userID); err != nil {
		return v, 0, err
	}
	v.UserID = decode.ReadASCIIField(userID)

	if err := decode.ReadLE(s, &v.RecordID); err != nil {
		return v, 0, err
	}

	var dataLen int64
	if extended {
		var n uint64
		if err := decode.ReadLE(s, &n); err != nil {
			return v, 0, err
		}
		dataLen = int64(n)
	} else {
		var n uint16
		if err := decode.ReadLE(s, &n); err != nil {
			return v, 0, err
		}
		dataLen = int64(n)
	}

	desc := make([]byte, 32)
	if _, err := io.ReadFull(s, desc); err != nil {
		return v, 0, err
	}
	v.Description = decode.ReadASCIIField(desc)

	v.Data = make([]byte, dataLen)
	if _, err := io.ReadFull(s, v.Data); err != nil {
		return v, 0, err
	}

	return v, v.Size(), nil
}

// readEVLRList reads an EVLR block; used by LasFile.Read when minor == 4
// and EVLROffset/EVLRCount are populated.
func readEVLRList(s Stream, count int, w *Warnings) ([]VLR, error) {
	vlrs := make([]VLR, 0, count)
	for i := 0; i < count; i++ {
		v, _, err := readVLR(s, 4, true, w)
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			w.Addf(ErrVLRTruncated, "evlr_list", int64(i))
			break
		}
		if err != nil {
			return vlrs, err
		}
		vlrs = append(vlrs, v)
	}
	return vlrs, nil
}

// WriteVLR serializes v in its header+data layout.
func WriteVLR(s io.Writer, v VLR) error {
	if err := decode.WriteLE(s, v.Reserved); err != nil {
		return err
	}
	userID, ok := decode.WriteASCIIField(v.UserID, 16)
	if !ok {
		return &CodecError{Err: ErrStringTooLong, Field: "vlr.user_id"}
	}
	if _, err := s.Write(userID); err != nil {
		return err
	}
	if err := decode.WriteLE(s, v.RecordID); err != nil {
		return err
	}
	if v.IsExtended {
		if err := decode.WriteLE(s, uint64(len(v.Data))); err != nil {
			return err
		}
	} else {
		if len(v.Data) > 0xFFFF {
			return &CodecError{Err: ErrStringTooLong, Field: "vlr.data"}
		}
		if err := decode.WriteLE(s, uint16(len(v.Data))); err != nil {
			return err
		}
	}
	desc, ok := decode.WriteASCIIField(v.Description, 32)
	if !ok {
		return &CodecError{Err: ErrStringTooLong, Field: "vlr.description"}
	}
	if _, err := s.Write(desc); err != nil {
		return err
	}
	_, err := s.Write(v.Data)
	return err
}

// FindVLR looks up a VLR by its (user_id, record_id) identity.
func FindVLR(vlrs []VLR, userID string, recordID uint16) (VLR, bool) {
	for _, v := range vlrs {
		if v.UserID == userID && v.RecordID == recordID {
			return v, true
		}
	}
	return VLR{}, false
}
