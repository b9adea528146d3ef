package coldstore

import (
	"bytes"
	"context"
	"io"
	"net/url"

	"github.com/Azure/azure-storage-blob-go/azblob"
)

// AzureClient is the alternate cloud ObjectClient backend, for deployments
// that put the cold archive in Azure Blob Storage instead of S3.
type AzureClient struct {
	container azblob.ContainerURL
}

func NewAzureClient(accountName, accountKey, containerName string) (*AzureClient, error) {
	cred, err := azblob.NewSharedKeyCredential(accountName, accountKey)
	if err != nil {
		return nil, err
	}
	pipeline := azblob.NewPipeline(cred, azblob.PipelineOptions{})
	u, err := url.Parse("https://" + accountName + ".blob.core.windows.net/" + containerName)
	if err != nil {
		return nil, err
	}
	return &AzureClient{container: azblob.NewContainerURL(*u, pipeline)}, nil
}

func (c *AzureClient) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	blob := c.container.NewBlockBlobURL(key)
	resp, err := blob.Download(ctx, 0, azblob.CountToEnd, azblob.BlobAccessConditions{}, false, azblob.ClientProvidedKeyOptions{})
	if err != nil {
		if isAzureNotFound(err) {
			return nil, ErrObjectNotFound{Key: key}
		}
		return nil, err
	}
	return resp.Body(azblob.RetryReaderOptions{}), nil
}

func (c *AzureClient) Put(ctx context.Context, key string, body []byte, metadata map[string]string) error {
	blob := c.container.NewBlockBlobURL(key)
	md := azblob.Metadata{}
	for k, v := range metadata {
		md[k] = v
	}
	_, err := blob.Upload(ctx, bytes.NewReader(body), azblob.BlobHTTPHeaders{}, md, azblob.BlobAccessConditions{}, azblob.DefaultAccessTier, nil, azblob.ClientProvidedKeyOptions{})
	return err
}

func (c *AzureClient) Head(ctx context.Context, key string) (bool, error) {
	blob := c.container.NewBlockBlobURL(key)
	_, err := blob.GetProperties(ctx, azblob.BlobAccessConditions{}, azblob.ClientProvidedKeyOptions{})
	if err != nil {
		if isAzureNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (c *AzureClient) Delete(ctx context.Context, key string) error {
	blob := c.container.NewBlockBlobURL(key)
	_, err := blob.Delete(ctx, azblob.DeleteSnapshotsOptionNone, azblob.BlobAccessConditions{})
	return err
}

func (c *AzureClient) List(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	for marker := (azblob.Marker{}); marker.NotDone(); {
		resp, err := c.container.ListBlobsFlatSegment(ctx, marker, azblob.ListBlobsSegmentOptions{Prefix: prefix})
		if err != nil {
			return nil, err
		}
		for _, blob := range resp.Segment.BlobItems {
			keys = append(keys, blob.Name)
		}
		marker = resp.NextMarker
	}
	return keys, nil
}

func isAzureNotFound(err error) bool {
	storageErr, ok := err.(azblob.StorageError)
	return ok && storageErr.ServiceCode() == azblob.ServiceCodeBlobNotFound
}
