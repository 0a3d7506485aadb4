package fetch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awscreds "github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/mongohaul/mongohaul/internal/progress"
)

// s3Client builds an S3 client routed through the proxy-aware HTTP client.
// Credentials come from the standard AWS chain (env, shared config, IMDS);
// AWS_ACCESS_KEY_ID/AWS_SECRET_ACCESS_KEY in the environment take priority
// explicitly so a one-off pair works without a profile.
func (f *Fetcher) s3Client(ctx context.Context) (*s3.Client, error) {
	httpClient, err := NewHTTPClient(f.cfg)
	if err != nil {
		return nil, err
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithHTTPClient(httpClient),
	}
	if id, secret := os.Getenv("AWS_ACCESS_KEY_ID"), os.Getenv("AWS_SECRET_ACCESS_KEY"); id != "" && secret != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			awscreds.NewStaticCredentialsProvider(id, secret, os.Getenv("AWS_SESSION_TOKEN"))))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	return s3.NewFromConfig(cfg), nil
}

// fetchS3 downloads one object to destDir.
func (f *Fetcher) fetchS3(ctx context.Context, loc Location, destDir string, rep progress.Reporter) (string, error) {
	client, err := f.s3Client(ctx)
	if err != nil {
		return "", err
	}

	head, err := client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(loc.Bucket),
		Key:    aws.String(loc.Key),
	})
	var size int64 = -1
	if err == nil && head.ContentLength != nil {
		size = *head.ContentLength
	}

	obj, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(loc.Bucket),
		Key:    aws.String(loc.Key),
	})
	if err != nil {
		return "", fmt.Errorf("get s3://%s/%s: %w", loc.Bucket, loc.Key, err)
	}
	defer obj.Body.Close()

	rep.Start(size, "downloading "+loc.Base())
	dest, err := writeToFile(filepath.Join(destDir, loc.Base()), progress.NewReader(obj.Body, rep))
	rep.Finish()
	if err != nil {
		return "", err
	}
	f.log.Info().Str("bucket", loc.Bucket).Str("key", loc.Key).Str("path", dest).Msg("archive downloaded from S3")
	return dest, nil
}

// putS3 uploads a packed archive to its destination object.
func (f *Fetcher) putS3(ctx context.Context, localPath string, loc Location, rep progress.Reporter) error {
	client, err := f.s3Client(ctx)
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
	_, err = client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(loc.Bucket),
		Key:           aws.String(loc.Key),
		Body:          progress.NewReader(in, rep),
		ContentLength: aws.Int64(st.Size()),
	})
	rep.Finish()
	if err != nil {
		return fmt.Errorf("put s3://%s/%s: %w", loc.Bucket, loc.Key, err)
	}
	f.log.Info().Str("bucket", loc.Bucket).Str("key", loc.Key).Msg("archive uploaded to S3")
	return nil
}
