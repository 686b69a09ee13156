package storage

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/stretchr/testify/require"
)

func TestUserMetadata(t *testing.T) {
	h := http.Header{}
	h.Set("X-Amz-Meta-Created-At", "1549884871144612")
	h.Set("Content-Type", "text/plain")

	meta := userMetadata(h)
	require.Equal(t, map[string]string{"created-at": "1549884871144612"}, meta)
}

// s3Stub serves h as an S3 endpoint and returns storage bound to bucket "todos".
func s3Stub(t *testing.T, h http.HandlerFunc) *MinIOStorage {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	mc, err := minio.New(strings.TrimPrefix(srv.URL, "http://"), &minio.Options{
		Creds:  credentials.NewStaticV4("access", "secret", ""),
		Region: "us-east-1",
	})
	require.NoError(t, err)
	return &MinIOStorage{client: mc, bucket: "todos"}
}

const listPage = `<?xml version="1.0" encoding="UTF-8"?>
<ListBucketResult xmlns="http://s3.amazonaws.com/doc/2006-03-01/">
  <Name>todos</Name><Prefix>home/</Prefix><KeyCount>2</KeyCount><MaxKeys>1000</MaxKeys><Delimiter>/</Delimiter>
  <IsTruncated>false</IsTruncated>
  <Contents><Key>home/Shopping.txt</Key><LastModified>2024-03-01T09:30:00.000Z</LastModified><ETag>"x"</ETag><Size>4</Size><StorageClass>STANDARD</StorageClass></Contents>
  <CommonPrefixes><Prefix>home/archive/</Prefix></CommonPrefixes>
</ListBucketResult>`

func TestListKeys_SkipsPrefixes(t *testing.T) {
	var prefix string
	s := s3Stub(t, func(w http.ResponseWriter, r *http.Request) {
		prefix = r.URL.Query().Get("prefix")
		w.Header().Set("Content-Type", "application/xml")
		_, _ = w.Write([]byte(listPage))
	})

	keys, err := s.ListKeys(context.Background(), "home/")
	require.NoError(t, err)
	require.Equal(t, []string{"home/Shopping.txt"}, keys)
	require.Equal(t, "home/", prefix)
}

func TestListKeys_ReturnsListError(t *testing.T) {
	s := s3Stub(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/xml")
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?>
<Error><Code>AccessDenied</Code><Message>Access Denied.</Message><BucketName>todos</BucketName><Resource>/todos</Resource><RequestId>1</RequestId></Error>`))
	})

	keys, err := s.ListKeys(context.Background(), "home/")
	require.Error(t, err)
	require.Nil(t, keys)
	require.Equal(t, "AccessDenied", minio.ToErrorResponse(err).Code)
}
