package dirent

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToShortNameBasic(t *testing.T) {
	name, err := ToShortName("HELLO.TXT")
	require.NoError(t, err)
	assert.Equal(t, "HELLO   TXT", string(name[:]))
	assert.Equal(t, "HELLO.TXT", PresentationName(name))
}

func TestToShortNameLowercase(t *testing.T) {
	name, err := ToShortName("readme.md")
	require.NoError(t, err)
	assert.Equal(t, "README.MD", PresentationName(name))
}

func TestToShortNameNoExtension(t *testing.T) {
	name, err := ToShortName("README")
	require.NoError(t, err)
	assert.Equal(t, "README", PresentationName(name))
}

func TestToShortNameTooLong(t *testing.T) {
	_, err := ToShortName("TOOLONGNAME.TXT")
	assert.Error(t, err)
}

func TestToShortNameInvalidChars(t *testing.T) {
	_, err := ToShortName("BAD*NAME.TXT")
	assert.Error(t, err)
}

func TestEncodeDecodeRoundTripLiteralE5(t *testing.T) {
	name, err := ToShortName("A.TXT")
	require.NoError(t, err)
	name[0] = 0xE5 // literal 0xE5 first byte, not a free-slot marker

	e := &Entry{ShortName: name, Attr: AttrArchive}
	raw := e.Encode()
	assert.Equal(t, byte(literalE5Byte), raw[0])
	assert.Equal(t, StatusEntry, PeekStatus(raw[:]))

	decoded, err := Decode(raw[:])
	require.NoError(t, err)
	assert.Equal(t, byte(0xE5), decoded.ShortName[0])
}

func TestEncodeFreeAndEndOfDirectory(t *testing.T) {
	e := &Entry{ShortName: [11]byte{'A'}, Attr: AttrArchive}
	raw := e.Encode()

	EncodeFree(raw[:])
	assert.Equal(t, StatusFree, PeekStatus(raw[:]))

	EncodeEndOfDirectory(raw[:])
	assert.Equal(t, StatusEndOfDirectory, PeekStatus(raw[:]))
	for _, b := range raw {
		assert.Equal(t, byte(0), b)
	}
}

func TestAttributesAndSetAttributes(t *testing.T) {
	e := &Entry{Attr: AttrDirectory}
	assert.True(t, e.IsDirectory())
	assert.False(t, e.IsReadOnly())

	e.SetAttributes(AttrReadOnly | AttrHidden)
	assert.True(t, e.IsReadOnly())
	assert.True(t, e.IsDirectory(), "SetAttributes must preserve AttrDirectory outside EditableMask")
}

func TestDateTimeRoundTrip(t *testing.T) {
	ts := time.Date(2020, time.June, 15, 13, 42, 30, 0, time.UTC)
	packed := EncodeDateTime(ts)
	decoded := DecodeDateTime(packed)

	assert.Equal(t, ts.Year(), decoded.Year())
	assert.Equal(t, ts.Month(), decoded.Month())
	assert.Equal(t, ts.Day(), decoded.Day())
	assert.Equal(t, ts.Hour(), decoded.Hour())
	assert.Equal(t, ts.Minute(), decoded.Minute())
	assert.Equal(t, 30, decoded.Second())
}

func TestNamesEqual(t *testing.T) {
	a, _ := ToShortName("FOO.BAR")
	b, _ := ToShortName("foo.bar")
	assert.True(t, NamesEqual(a, b))
}
