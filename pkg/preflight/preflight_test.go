package preflight

import (
	"bytes"
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chalkan3/mcserver/pkg/providers"
)

type fakeSTS struct {
	err error
}

func (f *fakeSTS) GetCallerIdentity(ctx context.Context, params *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &sts.GetCallerIdentityOutput{
		Account: aws.String("123456789012"),
		Arn:     aws.String("arn:aws:iam::123456789012:user/ops"),
	}, nil
}

type fakeEC2 struct {
	images []ec2types.Image
	input  *ec2.DescribeImagesInput
}

func (f *fakeEC2) DescribeImages(ctx context.Context, params *ec2.DescribeImagesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeImagesOutput, error) {
	f.input = params
	return &ec2.DescribeImagesOutput{Images: f.images}, nil
}

type fakeS3 struct {
	err    error
	bucket string
}

func (f *fakeS3) HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	f.bucket = aws.ToString(params.Bucket)
	if f.err != nil {
		return nil, f.err
	}
	return &s3.HeadBucketOutput{}, nil
}

func image(id, created string) ec2types.Image {
	return ec2types.Image{
		ImageId:      aws.String(id),
		Name:         aws.String(providers.DebianImageName),
		CreationDate: aws.String(created),
	}
}

func TestRun_AllPassed(t *testing.T) {
	ec2Client := &fakeEC2{images: []ec2types.Image{
		image("ami-old", "2023-10-13T15:32:00.000Z"),
		image("ami-new", "2023-11-02T08:00:00.000Z"),
	}}
	s3Client := &fakeS3{}
	runner := NewWithClients("eu-central-1", &fakeSTS{}, ec2Client, s3Client)

	report := runner.Run(context.Background(), "s3://mcserver-state")

	assert.True(t, report.Passed())
	assert.Equal(t, "123456789012", report.Account)
	assert.Equal(t, "ami-new", report.ImageID)
	assert.Equal(t, "mcserver-state", s3Client.bucket)

	require.NotNil(t, ec2Client.input)
	assert.Equal(t, []string{providers.DebianOwnerID}, ec2Client.input.Owners)
	require.Len(t, ec2Client.input.Filters, 1)
	assert.Equal(t, "name", aws.ToString(ec2Client.input.Filters[0].Name))
	assert.Equal(t, []string{providers.DebianImageName}, ec2Client.input.Filters[0].Values)
}

func TestRun_Failures(t *testing.T) {
	runner := NewWithClients("ap-south-1",
		&fakeSTS{err: &smithy.GenericAPIError{Code: "ExpiredToken", Message: "token expired"}},
		&fakeEC2{},
		&fakeS3{err: &smithy.GenericAPIError{Code: "Forbidden"}},
	)

	report := runner.Run(context.Background(), "s3://mcserver-state?region=ap-south-1")

	assert.False(t, report.Passed())
	require.Len(t, report.Checks, 3)
	assert.Equal(t, StatusFailed, report.Checks[0].Status)
	assert.Contains(t, report.Checks[0].Message, "ExpiredToken")
	assert.Equal(t, StatusFailed, report.Checks[1].Status)
	assert.Contains(t, report.Checks[1].Message, "ap-south-1")
	assert.Equal(t, StatusFailed, report.Checks[2].Status)
	assert.Contains(t, report.Checks[2].Message, "Forbidden")

	entry := report.HistoryEntry()
	assert.Equal(t, "failed", entry.OverallStatus)
	assert.Len(t, entry.CheckResults, 3)
}

func TestRun_NonS3BackendSkipsBucket(t *testing.T) {
	s3Client := &fakeS3{}
	runner := NewWithClients("us-east-1", &fakeSTS{}, &fakeEC2{images: []ec2types.Image{image("ami-1", "2023-10-13T15:32:00.000Z")}}, s3Client)

	report := runner.Run(context.Background(), "file://~/.mcserver/state")

	assert.True(t, report.Passed())
	assert.Equal(t, StatusSkipped, report.Checks[2].Status)
	assert.Empty(t, s3Client.bucket)

	var buf bytes.Buffer
	report.PrintReport(&buf)
	assert.Contains(t, buf.String(), "[SKIP]")
	assert.Contains(t, buf.String(), "ami-1")
}

func TestNewestImage(t *testing.T) {
	_, ok := NewestImage(nil)
	assert.False(t, ok)

	got, ok := NewestImage([]ec2types.Image{
		image("ami-a", "not a date"),
		image("ami-b", "2024-01-01T00:00:00.000Z"),
		image("ami-c", "2023-06-01T00:00:00.000Z"),
	})
	require.True(t, ok)
	assert.Equal(t, "ami-b", aws.ToString(got.ImageId))
}

func TestBucketFromBackendURL(t *testing.T) {
	tests := []struct {
		url    string
		bucket string
		ok     bool
	}{
		{"s3://mcserver-state", "mcserver-state", true},
		{"s3://mcserver-state/prefix?region=eu-west-1&awssdk=v2", "mcserver-state", true},
		{"file://~", "", false},
		{"https://api.pulumi.com", "", false},
		{"", "", false},
		{"s3://", "", false},
	}

	for _, tt := range tests {
		bucket, ok := BucketFromBackendURL(tt.url)
		assert.Equal(t, tt.ok, ok, tt.url)
		assert.Equal(t, tt.bucket, bucket, tt.url)
	}
}
