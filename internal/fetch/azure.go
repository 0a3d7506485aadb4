package fetch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"

	"github.com/mongohaul/mongohaul/internal/progress"
)

// azureClient builds an Azure blob client routed through the proxy-aware
// HTTP client. Authentication comes from the environment: either a full
// connection string (AZURE_STORAGE_CONNECTION_STRING) or an account name
// plus SAS token (AZURE_STORAGE_ACCOUNT, AZURE_STORAGE_SAS_TOKEN).
func (f *Fetcher) azureClient() (*azblob.Client, error) {
	httpClient, err := NewHTTPClient(f.cfg)
	if err != nil {
		return nil, err
	}
	opts := &azblob.ClientOptions{
		ClientOptions: policy.ClientOptions{Transport: httpClient},
	}

	if cs := os.Getenv("AZURE_STORAGE_CONNECTION_STRING"); cs != "" {
		client, err := azblob.NewClientFromConnectionString(cs, opts)
		if err != nil {
			return nil, fmt.Errorf("azure connection string: %w", err)
		}
		return client, nil
	}

	account := os.Getenv("AZURE_STORAGE_ACCOUNT")
	sas := os.Getenv("AZURE_STORAGE_SAS_TOKEN")
	if account == "" || sas == "" {
		return nil, fmt.Errorf("azblob locations need AZURE_STORAGE_CONNECTION_STRING or AZURE_STORAGE_ACCOUNT and AZURE_STORAGE_SAS_TOKEN")
	}
	serviceURL := fmt.Sprintf("https://%s.blob.core.windows.net/?%s", account, sas)
	client, err := azblob.NewClientWithNoCredential(serviceURL, opts)
	if err != nil {
		return nil, fmt.Errorf("azure SAS client: %w", err)
	}
	return client, nil
}

// fetchAzure downloads one blob to destDir.
func (f *Fetcher) fetchAzure(ctx context.Context, loc Location, destDir string, rep progress.Reporter) (string, error) {
	client, err := f.azureClient()
	if err != nil {
		return "", err
	}

	resp, err := client.DownloadStream(ctx, loc.Container, loc.Blob, nil)
	if err != nil {
		return "", fmt.Errorf("get azblob://%s/%s: %w", loc.Container, loc.Blob, err)
	}
	defer resp.Body.Close()

	var size int64 = -1
	if resp.ContentLength != nil {
		size = *resp.ContentLength
	}

	rep.Start(size, "downloading "+loc.Base())
	dest, err := writeToFile(filepath.Join(destDir, loc.Base()), progress.NewReader(resp.Body, rep))
	rep.Finish()
	if err != nil {
		return "", err
	}
	f.log.Info().Str("container", loc.Container).Str("blob", loc.Blob).Str("path", dest).Msg("archive downloaded from Azure")
	return dest, nil
}

// putAzure uploads a packed archive to its destination blob.
func (f *Fetcher) putAzure(ctx context.Context, localPath string, loc Location, rep progress.Reporter) error {
	client, err := f.azureClient()
	if err != nil {
		return err
	}

	in, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("open %s: %w", localPath, err)
	}
	defer in.Close()
	st, err := in.Stat()
	if err != nil {
		return fmt.Errorf("stat %s: %w", localPath, err)
	}

	rep.Start(st.Size(), "uploading "+filepath.Base(localPath))
	_, err = client.UploadStream(ctx, loc.Container, loc.Blob, progress.NewReader(in, rep), nil)
	rep.Finish()
	if err != nil {
		return fmt.Errorf("put azblob://%s/%s: %w", loc.Container, loc.Blob, err)
	}
	f.log.Info().Str("container", loc.Container).Str("blob", loc.Blob).Msg("archive uploaded to Azure")
	return nil
}
