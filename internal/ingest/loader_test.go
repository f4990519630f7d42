package ingest

import (
	"context"
	"errors"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoader_Load(t *testing.T) {
	fs := afero.NewMemMapFs()
	data := []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A, 1, 2}
	require.NoError(t, afero.WriteFile(fs, "/inbox/page1.PNG", data, 0o644))

	got, err := NewLoader(fs, nil).Load(context.Background(), "/inbox/page1.PNG")
	require.NoError(t, err)
	assert.Equal(t, data, got.Image.Data)
	assert.Equal(t, "image/png", got.Image.MIMEType)
	assert.Equal(t, "page1.PNG", got.Image.Name)
	assert.Len(t, got.HashHex, 64)
}

func TestLoader_SameContentSameHash(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/a.jpg", []byte("same"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/b.jpg", []byte("same"), 0o644))
	l := NewLoader(fs, nil)

	a, err := l.Load(context.Background(), "/a.jpg")
	require.NoError(t, err)
	b, err := l.Load(context.Background(), "/b.jpg")
	require.NoError(t, err)
	assert.Equal(t, a.HashHex, b.HashHex)
}

func TestLoader_Rejects(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/notes.txt", []byte("hi"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/big.jpg", make([]byte, 64), 0o644))
	require.NoError(t, fs.MkdirAll("/dir.png", 0o755))
	l := NewLoader(fs, nil).WithMaxBytes(32)

	_, err := l.Load(context.Background(), "/notes.txt")
	assert.ErrorIs(t, err, ErrNotImage)

	_, err = l.Load(context.Background(), "/dir.png")
	assert.ErrorIs(t, err, ErrNotImage)

	_, err = l.Load(context.Background(), "/big.jpg")
	assert.ErrorIs(t, err, ErrTooLarge)

	_, err = l.Load(context.Background(), "/missing.jpg")
	assert.Error(t, err)
}

func TestSeen(t *testing.T) {
	s := NewSeen()
	assert.True(t, s.Mark("h1"))
	assert.False(t, s.Mark("h1"))
	s.Forget("h1")
	assert.True(t, s.Mark("h1"))
}

type fakeConverter struct {
	calls int
	err   error
}

func (f *fakeConverter) ToPNG(_ context.Context, data []byte) ([]byte, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return append([]byte("png:"), data...), nil
}

func TestLoader_ConvertsHEIC(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/IMG_0001.HEIC", []byte("heic"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/page.jpg", []byte("jpg"), 0o644))
	conv := &fakeConverter{}
	l := NewLoader(fs, nil).WithConverter(conv)

	plain, err := NewLoader(fs, nil).Load(context.Background(), "/IMG_0001.HEIC")
	require.NoError(t, err)
	assert.Equal(t, "image/heic", plain.Image.MIMEType)

	got, err := l.Load(context.Background(), "/IMG_0001.HEIC")
	require.NoError(t, err)
	assert.Equal(t, []byte("png:heic"), got.Image.Data)
	assert.Equal(t, "image/png", got.Image.MIMEType)
	assert.Equal(t, "IMG_0001.png", got.Image.Name)
	assert.Equal(t, plain.HashHex, got.HashHex)

	_, err = l.Load(context.Background(), "/page.jpg")
	require.NoError(t, err)
	assert.Equal(t, 1, conv.calls)

	conv.err = errors.New("no tool")
	_, err = l.Load(context.Background(), "/IMG_0001.HEIC")
	assert.ErrorContains(t, err, "no tool")
}
