package upload

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/menta2k/avatarcrop/pkg/types"
)

func TestKey(t *testing.T) {
	png := types.EncodedImageBuffer{Filename: "alice", MIMEType: "image/png"}
	assert.Equal(t, "alice.png", Key("", png))
	assert.Equal(t, "avatars/alice.png", Key("/avatars/", png))
	assert.Equal(t, "avatars/u/a_b.jpg", Key("avatars/u", types.EncodedImageBuffer{Filename: "a/b", MIMEType: "image/jpeg"}))
	assert.Equal(t, "avatar.png", Key("", types.EncodedImageBuffer{MIMEType: "image/png"}))
}

func TestDirUploader(t *testing.T) {
	dir := t.TempDir()
	u := NewDirUploader(dir, "avatars")
	file := types.EncodedImageBuffer{Data: []byte("png"), Filename: "alice", MIMEType: "image/png"}

	require.NoError(t, u.UploadAvatar(context.Background(), file))
	data, err := os.ReadFile(filepath.Join(dir, "avatars", "alice.png"))
	require.NoError(t, err)
	assert.Equal(t, []byte("png"), data)
	assert.Equal(t, filepath.Join(dir, "avatars", "alice.png"), u.Path(file))

	assert.Error(t, u.UploadAvatar(context.Background(), types.EncodedImageBuffer{Filename: "x"}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, u.UploadAvatar(ctx, file), context.Canceled)
}

func TestFunc(t *testing.T) {
	var got string
	f := Func(func(_ context.Context, file types.EncodedImageBuffer) error {
		got = file.Filename
		return nil
	})
	require.NoError(t, f.UploadAvatar(context.Background(), types.EncodedImageBuffer{Filename: "bob"}))
	assert.Equal(t, "bob", got)
}

func TestConstructorsValidate(t *testing.T) {
	_, err := NewS3Uploader(S3Config{Region: "us-east-1"})
	assert.Error(t, err)
	s3u, err := NewS3Uploader(S3Config{Bucket: "b", Region: "us-east-1"})
	require.NoError(t, err)
	assert.NotNil(t, s3u)

	_, err = NewMinioUploader(MinioConfig{Bucket: "b"})
	assert.Error(t, err)
	_, err = NewMinioUploader(MinioConfig{AccessKey: "k", SecretKey: "s"})
	assert.Error(t, err)
	mu, err := NewMinioUploader(MinioConfig{AccessKey: "k", SecretKey: "s", Bucket: "b", Endpoint: "localhost:9000"})
	require.NoError(t, err)
	assert.NotNil(t, mu)
}
