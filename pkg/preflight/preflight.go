// Package preflight checks, before an update, that the AWS account can
// deploy the server: credentials resolve, the Debian image is visible in the
// region, and a self-managed S3 state bucket is reachable.
package preflight

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/aws/smithy-go"

	"github.com/chalkan3/mcserver/pkg/operations"
	"github.com/chalkan3/mcserver/pkg/providers"
)

// STSAPI is the STS call used by the identity check.
type STSAPI interface {
	GetCallerIdentity(ctx context.Context, params *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error)
}

// EC2API is the EC2 call used by the image check.
type EC2API interface {
	DescribeImages(ctx context.Context, params *ec2.DescribeImagesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeImagesOutput, error)
}

// S3API is the S3 call used by the state bucket check.
type S3API interface {
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
}

// Status of a single check.
type Status string

const (
	StatusPassed  Status = "passed"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

// Check is the result of one preflight check.
type Check struct {
	Name     string
	Status   Status
	Message  string
	Duration time.Duration
}

// Report collects the checks of one run.
type Report struct {
	Region    string
	Account   string
	ARN       string
	ImageID   string
	ImageName string
	CheckedAt time.Time
	Checks    []Check
}

// Passed reports whether no check failed.
func (r *Report) Passed() bool {
	for _, c := range r.Checks {
		if c.Status == StatusFailed {
			return false
		}
	}
	return true
}

// Runner runs the preflight checks.
type Runner struct {
	region string
	sts    STSAPI
	ec2    EC2API
	s3     S3API
}

// New loads the default AWS configuration. region overrides the configured
// region when not empty.
func New(ctx context.Context, region string) (*Runner, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return NewWithClients(cfg.Region, sts.NewFromConfig(cfg), ec2.NewFromConfig(cfg), s3.NewFromConfig(cfg)), nil
}

// NewWithClients creates a runner over the given clients.
func NewWithClients(region string, stsClient STSAPI, ec2Client EC2API, s3Client S3API) *Runner {
	return &Runner{region: region, sts: stsClient, ec2: ec2Client, s3: s3Client}
}

// Run executes every check. backendURL is the Pulumi backend; only s3://
// backends get a bucket check.
func (r *Runner) Run(ctx context.Context, backendURL string) *Report {
	report := &Report{Region: r.region, CheckedAt: time.Now().UTC()}

	report.Checks = append(report.Checks,
		r.checkIdentity(ctx, report),
		r.checkImage(ctx, report),
		r.checkStateBucket(ctx, backendURL),
	)
	return report
}

func (r *Runner) checkIdentity(ctx context.Context, report *Report) Check {
	start := time.Now()
	check := Check{Name: "CallerIdentity"}

	out, err := r.sts.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	check.Duration = time.Since(start)
	if err != nil {
		check.Status = StatusFailed
		check.Message = fmt.Sprintf("credentials did not resolve: %s", errorCode(err))
		return check
	}

	report.Account = aws.ToString(out.Account)
	report.ARN = aws.ToString(out.Arn)
	check.Status = StatusPassed
	check.Message = fmt.Sprintf("account %s as %s", report.Account, report.ARN)
	return check
}

func (r *Runner) checkImage(ctx context.Context, report *Report) Check {
	start := time.Now()
	check := Check{Name: "DebianImage"}

	out, err := r.ec2.DescribeImages(ctx, &ec2.DescribeImagesInput{
		Owners: []string{providers.DebianOwnerID},
		Filters: []ec2types.Filter{
			{Name: aws.String("name"), Values: []string{providers.DebianImageName}},
		},
	})
	check.Duration = time.Since(start)
	if err != nil {
		check.Status = StatusFailed
		check.Message = fmt.Sprintf("image lookup failed: %s", errorCode(err))
		return check
	}

	image, ok := NewestImage(out.Images)
	if !ok {
		check.Status = StatusFailed
		check.Message = fmt.Sprintf("no image named %s owned by %s in %s", providers.DebianImageName, providers.DebianOwnerID, r.region)
		return check
	}

	report.ImageID = aws.ToString(image.ImageId)
	report.ImageName = aws.ToString(image.Name)
	check.Status = StatusPassed
	check.Message = fmt.Sprintf("%s (%s)", report.ImageID, report.ImageName)
	return check
}

func (r *Runner) checkStateBucket(ctx context.Context, backendURL string) Check {
	check := Check{Name: "StateBucket"}

	bucket, ok := BucketFromBackendURL(backendURL)
	if !ok {
		check.Status = StatusSkipped
		check.Message = "backend is not s3"
		return check
	}

	start := time.Now()
	_, err := r.s3.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(bucket)})
	check.Duration = time.Since(start)
	if err != nil {
		check.Status = StatusFailed
		check.Message = fmt.Sprintf("bucket %s is not reachable: %s", bucket, errorCode(err))
		return check
	}

	check.Status = StatusPassed
	check.Message = fmt.Sprintf("bucket %s is reachable", bucket)
	return check
}

// NewestImage returns the image with the latest CreationDate.
func NewestImage(images []ec2types.Image) (ec2types.Image, bool) {
	if len(images) == 0 {
		return ec2types.Image{}, false
	}
	sorted := append([]ec2types.Image(nil), images...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return creationTime(sorted[i]).After(creationTime(sorted[j]))
	})
	return sorted[0], true
}

func creationTime(image ec2types.Image) time.Time {
	t, err := time.Parse(time.RFC3339, aws.ToString(image.CreationDate))
	if err != nil {
		return time.Time{}
	}
	return t
}

// BucketFromBackendURL returns the bucket of an s3:// backend URL.
func BucketFromBackendURL(backendURL string) (string, bool) {
	if !strings.HasPrefix(backendURL, "s3://") {
		return "", false
	}
	u, err := url.Parse(backendURL)
	if err != nil || u.Host == "" {
		return "", false
	}
	return u.Host, true
}

func errorCode(err error) string {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode()
	}
	return err.Error()
}

// HistoryEntry converts the report to an operations history entry.
func (r *Report) HistoryEntry() operations.PreflightEntry {
	entry := operations.PreflightEntry{
		Timestamp:     r.CheckedAt,
		Region:        r.Region,
		Account:       r.Account,
		ImageID:       r.ImageID,
		OverallStatus: string(StatusPassed),
	}
	if !r.Passed() {
		entry.OverallStatus = string(StatusFailed)
	}
	for _, c := range r.Checks {
		entry.CheckResults = append(entry.CheckResults, operations.CheckEntry{
			Name:     c.Name,
			Status:   string(c.Status),
			Message:  c.Message,
			Duration: c.Duration.Round(time.Millisecond).String(),
		})
	}
	return entry
}

// PrintReport writes one line per check.
func (r *Report) PrintReport(w io.Writer) {
	for _, c := range r.Checks {
		icon := "[OK]"
		switch c.Status {
		case StatusFailed:
			icon = "[FAIL]"
		case StatusSkipped:
			icon = "[SKIP]"
		}
		fmt.Fprintf(w, "  %-6s %-15s %s\n", icon, c.Name, c.Message)
	}
}
