package s3

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/sqshop/internal/domain/catalog"
)

type memClient struct {
	objects map[string][]byte
}

func (m *memClient) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	m.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)] = data
	return &s3.PutObjectOutput{}, nil
}

func (m *memClient) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	data, ok := m.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (m *memClient) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	delete(m.objects, aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func TestImageStore(t *testing.T) {
	ctx := context.Background()
	client := &memClient{objects: make(map[string][]byte)}
	store := NewWithClient(client, "shop", "images/")

	require.NoError(t, store.Put(ctx, "item/a.jpg", []byte("jpeg")))
	assert.Contains(t, client.objects, "shop/images/item/a.jpg")

	data, err := store.Get(ctx, "item/a.jpg")
	require.NoError(t, err)
	assert.Equal(t, []byte("jpeg"), data)

	require.NoError(t, store.Delete(ctx, "item/a.jpg"))
	_, err = store.Get(ctx, "item/a.jpg")
	require.ErrorIs(t, err, catalog.ErrNoImage)
}

func TestNewRequiresBucket(t *testing.T) {
	_, err := New(context.Background(), "", "eu-west-1", "")
	require.Error(t, err)
}
