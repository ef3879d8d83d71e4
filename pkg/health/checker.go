// Package health checks a deployed server from the operator's machine
package health

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/chalkan3/mcserver/pkg/operations"
	"github.com/chalkan3/mcserver/pkg/secrets"
)

// CheckStatus represents the status of a health check
type CheckStatus string

const (
	StatusHealthy  CheckStatus = "healthy"
	StatusWarning  CheckStatus = "warning"
	StatusCritical CheckStatus = "critical"
	StatusUnknown  CheckStatus = "unknown"
)

// Defaults matching the deployed server.
const (
	DefaultUser     = "admin"
	DefaultSSHPort  = 22
	DefaultGamePort = 25565
	DefaultTimeout  = 10 * time.Second
)

// CheckResult represents the result of a single health check
type CheckResult struct {
	Name        string
	Status      CheckStatus
	Message     string
	Details     []string
	Duration    time.Duration
	CheckedAt   time.Time
	Remediation string
}

// HealthReport represents the overall health report of a server
type HealthReport struct {
	StackName       string
	Host            string
	CheckedAt       time.Time
	Duration        time.Duration
	OverallStatus   CheckStatus
	Checks          []CheckResult
	Summary         Summary
	Recommendations []string
}

// Summary provides aggregate statistics
type Summary struct {
	TotalChecks    int
	HealthyChecks  int
	WarningChecks  int
	CriticalChecks int
	UnknownChecks  int
}

// Checker performs health checks against one server
type Checker struct {
	host       string
	user       string
	privateKey secrets.Secret
	sshPort    int
	gamePort   int
	timeout    time.Duration
	runner     CommandRunner
	dialer     Dialer
}

// NewChecker creates a checker for host authenticating with privateKey.
func NewChecker(host string, privateKey secrets.Secret) *Checker {
	return &Checker{
		host:       host,
		user:       DefaultUser,
		privateKey: privateKey,
		sshPort:    DefaultSSHPort,
		gamePort:   DefaultGamePort,
		timeout:    DefaultTimeout,
		runner:     &sshRunner{},
		dialer:     &netDialer{},
	}
}

// SetTimeout sets the per-check timeout
func (c *Checker) SetTimeout(d time.Duration) {
	c.timeout = d
}

// SetPorts overrides the SSH and game ports
func (c *Checker) SetPorts(sshPort, gamePort int) {
	c.sshPort = sshPort
	c.gamePort = gamePort
}

// RunAllChecks executes all health checks and returns a report
func (c *Checker) RunAllChecks(ctx context.Context, stackName string) *HealthReport {
	startTime := time.Now()

	report := &HealthReport{
		StackName:     stackName,
		Host:          c.host,
		CheckedAt:     startTime,
		OverallStatus: StatusHealthy,
		Checks:        []CheckResult{},
	}

	checks := []func(context.Context) CheckResult{
		c.CheckSSH,
		c.CheckGamePort,
	}
	for _, check := range checks {
		report.add(check(ctx))
	}

	report.Recommendations = generateRecommendations(report)
	report.Duration = time.Since(startTime)
	return report
}

func (r *HealthReport) add(result CheckResult) {
	r.Checks = append(r.Checks, result)

	// critical > warning > healthy
	if result.Status == StatusCritical {
		r.OverallStatus = StatusCritical
	} else if result.Status == StatusWarning && r.OverallStatus != StatusCritical {
		r.OverallStatus = StatusWarning
	}

	switch result.Status {
	case StatusHealthy:
		r.Summary.HealthyChecks++
	case StatusWarning:
		r.Summary.WarningChecks++
	case StatusCritical:
		r.Summary.CriticalChecks++
	default:
		r.Summary.UnknownChecks++
	}
	r.Summary.TotalChecks++
}

func generateRecommendations(report *HealthReport) []string {
	var recommendations []string
	for _, check := range report.Checks {
		if (check.Status == StatusCritical || check.Status == StatusWarning) && check.Remediation != "" {
			recommendations = append(recommendations, check.Remediation)
		}
	}
	return recommendations
}

// HistoryEntry converts the report to an operations history entry
func (r *HealthReport) HistoryEntry() operations.HealthEntry {
	entry := operations.HealthEntry{
		Timestamp:     r.CheckedAt.UTC(),
		Host:          r.Host,
		OverallStatus: string(r.OverallStatus),
		ChecksRun:     r.Summary.TotalChecks,
		ChecksPassed:  r.Summary.HealthyChecks,
		ChecksWarning: r.Summary.WarningChecks,
		ChecksFailed:  r.Summary.CriticalChecks,
		Duration:      r.Duration.Round(time.Millisecond).String(),
	}
	for _, check := range r.Checks {
		entry.CheckResults = append(entry.CheckResults, operations.CheckEntry{
			Name:     check.Name,
			Status:   string(check.Status),
			Message:  check.Message,
			Duration: check.Duration.Round(time.Millisecond).String(),
		})
	}
	return entry
}

// PrintReport writes the health report in a formatted way
func (r *HealthReport) PrintReport(w io.Writer) {
	rule := strings.Repeat("─", 67)
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  Server Health Report: %s (%s)\n", r.StackName, r.Host)
	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "  Checked At: %s\n", r.CheckedAt.Format(time.RFC3339))
	fmt.Fprintf(w, "  Duration:   %s\n", r.Duration.Round(time.Millisecond))
	fmt.Fprintf(w, "  Overall:    %s %s\n", getStatusIcon(r.OverallStatus), strings.ToUpper(string(r.OverallStatus)))
	fmt.Fprintln(w, rule)

	for _, check := range r.Checks {
		fmt.Fprintf(w, "  %s %s: %s\n", getStatusIcon(check.Status), check.Name, check.Message)
		for _, detail := range check.Details {
			fmt.Fprintf(w, "       - %s\n", detail)
		}
	}

	if len(r.Recommendations) > 0 {
		fmt.Fprintln(w, rule)
		fmt.Fprintln(w, "  Recommendations")
		for i, rec := range r.Recommendations {
			fmt.Fprintf(w, "  %d. %s\n", i+1, rec)
		}
	}
	fmt.Fprintln(w)
}

func getStatusIcon(status CheckStatus) string {
	switch status {
	case StatusHealthy:
		return "[OK]"
	case StatusWarning:
		return "[WARN]"
	case StatusCritical:
		return "[FAIL]"
	default:
		return "[?]"
	}
}
