// Package globalid encodes and decodes the opaque typed identifiers the API
// exposes. An identifier is the base64url form of "TypeName:pk" and is only
// valid for the type a field expects.
package globalid

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"

	"github.com/openmerce/catalogql/internal/gqlerr"
)

// Encode returns the opaque identifier for a record of the given type.
func Encode(typeName string, pk int64) string {
	raw := typeName + ":" + strconv.FormatInt(pk, 10)
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// Decode parses an opaque identifier into its type name and primary key. It
// accepts both padded and unpadded base64url input.
func Decode(id string) (typeName string, pk int64, err error) {
	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(id, "="))
	if err != nil {
		return "", 0, gqlerr.NotFound("malformed id %q", id)
	}
	sep := strings.IndexByte(string(raw), ':')
	if sep <= 0 {
		return "", 0, gqlerr.NotFound("malformed id %q", id)
	}
	typeName = string(raw[:sep])
	pk, err = strconv.ParseInt(string(raw[sep+1:]), 10, 64)
	if err != nil {
		return "", 0, gqlerr.NotFound("malformed id %q", id)
	}
	return typeName, pk, nil
}

// DecodeAs parses an opaque identifier and verifies it names the expected
// type.
func DecodeAs(id, wantType string) (int64, error) {
	typeName, pk, err := Decode(id)
	if err != nil {
		return 0, err
	}
	if typeName != wantType {
		return 0, gqlerr.NotFound("id %q is a %s, not a %s", id, typeName, wantType)
	}
	return pk, nil
}

// MustEncode is Encode for call sites that build ids from trusted records.
func MustEncode(typeName string, pk int64) string {
	if typeName == "" {
		panic(fmt.Sprintf("globalid: empty type name for pk %d", pk))
	}
	return Encode(typeName, pk)
}
