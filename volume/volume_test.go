package volume_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hisahi/fat12/internal/testimage"
	"github.com/hisahi/fat12/volume"
)

func TestFormatThenMount(t *testing.T) {
	v, img := testimage.Formatted(t, "MYDISK")
	require.NotNil(t, v)

	label, err := v.ReadLabel()
	require.NoError(t, err)
	assert.Equal(t, "MYDISK", label)

	remounted, err := volume.Mount(img, volume.MountOptions{})
	require.NoError(t, err)
	remountedLabel, err := remounted.ReadLabel()
	require.NoError(t, err)
	assert.Equal(t, "MYDISK", remountedLabel)
}

func TestCreateAndReadFile(t *testing.T) {
	v, _ := testimage.Formatted(t, "TEST")
	require.NoError(t, v.CreateFile("/HELLO.TXT"))

	data := []byte("hello, fat12 world")
	require.NoError(t, v.WriteFile("/HELLO.TXT", data, false))

	read, err := v.ReadFile("/HELLO.TXT")
	require.NoError(t, err)
	assert.Equal(t, data, read)
}

func TestWriteFileGrowsAndShrinksChain(t *testing.T) {
	v, _ := testimage.Formatted(t, "TEST")
	require.NoError(t, v.CreateFile("/BIG.BIN"))

	big := testimage.RandomBytes(t, 3000) // spans multiple 512-byte clusters
	require.NoError(t, v.WriteFile("/BIG.BIN", big, false))
	read, err := v.ReadFile("/BIG.BIN")
	require.NoError(t, err)
	assert.Equal(t, big, read)

	small := []byte("shrunk")
	require.NoError(t, v.WriteFile("/BIG.BIN", small, false))
	read, err = v.ReadFile("/BIG.BIN")
	require.NoError(t, err)
	assert.Equal(t, small, read)
}

func TestCreateDirectoryAndNestedFile(t *testing.T) {
	v, _ := testimage.Formatted(t, "TEST")
	require.NoError(t, v.CreateDirectory("/SUBDIR", false))
	require.NoError(t, v.CreateFile("/SUBDIR/A.TXT"))
	require.NoError(t, v.WriteFile("/SUBDIR/A.TXT", []byte("nested"), false))

	data, err := v.ReadFile("/SUBDIR/A.TXT")
	require.NoError(t, err)
	assert.Equal(t, []byte("nested"), data)

	dirs, err := v.ListDirs("/", true)
	require.NoError(t, err)
	assert.Contains(t, dirs, "SUBDIR")
}

func TestChdirAndRelativePaths(t *testing.T) {
	v, _ := testimage.Formatted(t, "TEST")
	require.NoError(t, v.CreateDirectory("/SUBDIR", false))
	require.NoError(t, v.Chdir("/SUBDIR"))
	assert.Equal(t, "/SUBDIR", v.Getwd())

	require.NoError(t, v.CreateFile("REL.TXT"))
	assert.True(t, v.Exists("/SUBDIR/REL.TXT"))

	require.NoError(t, v.Chdir(".."))
	assert.Equal(t, "/", v.Getwd())
}

func TestRemoveEmptyDirectorySucceedsNonEmptyFails(t *testing.T) {
	v, _ := testimage.Formatted(t, "TEST")
	require.NoError(t, v.CreateDirectory("/EMPTY", false))
	require.NoError(t, v.RemoveDirectory("/EMPTY"))
	assert.False(t, v.Exists("/EMPTY"))

	require.NoError(t, v.CreateDirectory("/FULL", false))
	require.NoError(t, v.CreateFile("/FULL/X.TXT"))
	err := v.RemoveDirectory("/FULL")
	assert.Error(t, err)
}

func TestRenameMoveCopy(t *testing.T) {
	v, _ := testimage.Formatted(t, "TEST")
	require.NoError(t, v.CreateFile("/A.TXT"))
	require.NoError(t, v.WriteFile("/A.TXT", []byte("payload"), false))

	require.NoError(t, v.Rename("/A.TXT", "B.TXT"))
	assert.False(t, v.Exists("/A.TXT"))
	assert.True(t, v.Exists("/B.TXT"))

	require.NoError(t, v.CreateDirectory("/DIR", false))
	require.NoError(t, v.Move("/B.TXT", "/DIR"))
	assert.False(t, v.Exists("/B.TXT"))
	assert.True(t, v.Exists("/DIR/B.TXT"))

	require.NoError(t, v.Copy("/DIR/B.TXT", "/DIR/C.TXT", false))
	data, err := v.ReadFile("/DIR/C.TXT")
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), data)
}

func TestDeleteFileRespectsReadOnly(t *testing.T) {
	v, _ := testimage.Formatted(t, "TEST")
	require.NoError(t, v.CreateFile("/RO.TXT"))
	require.NoError(t, v.SetAttributes("/RO.TXT", 0x01))

	err := v.DeleteFile("/RO.TXT", false)
	assert.Error(t, err)

	require.NoError(t, v.DeleteFile("/RO.TXT", true))
	assert.False(t, v.Exists("/RO.TXT"))
}

func TestStatDistinguishesFilesAndDirectories(t *testing.T) {
	v, _ := testimage.Formatted(t, "TEST")
	require.NoError(t, v.CreateFile("/F.TXT"))
	require.NoError(t, v.CreateDirectory("/D", false))

	assert.True(t, v.IsFile("/F.TXT"))
	assert.False(t, v.IsDir("/F.TXT"))
	assert.True(t, v.IsDir("/D"))
	assert.False(t, v.IsFile("/D"))
}

func TestIsSameFile(t *testing.T) {
	v, _ := testimage.Formatted(t, "TEST")
	require.NoError(t, v.CreateFile("/F.TXT"))
	require.NoError(t, v.CreateDirectory("/D", false))

	same, known := v.IsSameFile("/F.TXT", "/F.TXT")
	assert.True(t, known)
	assert.True(t, same)

	same, known = v.IsSameFile("/F.TXT", "/D")
	assert.True(t, known)
	assert.False(t, same)

	_, known = v.IsSameFile("/F.TXT", "/NOPE.TXT")
	assert.False(t, known)
}

func TestSetAndReadLabel(t *testing.T) {
	v, _ := testimage.Formatted(t, "ORIGINAL")
	require.NoError(t, v.SetLabel("RENAMED"))

	label, err := v.ReadLabel()
	require.NoError(t, err)
	assert.Equal(t, "RENAMED", label)
}

func TestCreateFileAlreadyExists(t *testing.T) {
	v, _ := testimage.Formatted(t, "TEST")
	require.NoError(t, v.CreateFile("/DUP.TXT"))
	err := v.CreateFile("/DUP.TXT")
	assert.Error(t, err)
}

func TestDotfileNamesAreRejected(t *testing.T) {
	v, _ := testimage.Formatted(t, "TEST")
	assert.Error(t, v.CreateFile("/."))
	assert.Error(t, v.CreateDirectory("/..", false))
}
