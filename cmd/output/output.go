// Package output provides functions to print messages with optional color formatting
package output

import (
	"fmt"
	"slices"
	"strings"

	"github.com/fatih/color"
	"github.com/oar-cd/launchpad/domain"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/renderer"
	"github.com/olekukonko/tablewriter/tw"
	"github.com/spf13/cobra"
)

const (
	Plain   = color.FgWhite
	Success = color.FgGreen
	Warning = color.FgYellow
	Error   = color.FgRed
)

const timeLayout = "2006-01-02 15:04:05"

var maybeColorize func(kind color.Attribute, tmpl string, a ...any) string

// InitColors sets up color functions based on environment
func InitColors(isColorDisabled bool) {
	if color.NoColor || isColorDisabled {
		maybeColorize = func(kind color.Attribute, tmpl string, a ...any) string {
			return fmt.Sprintf(tmpl, a...)
		}
	} else {
		maybeColorize = func(kind color.Attribute, tmpl string, a ...any) string {
			return color.New(kind).SprintfFunc()(tmpl, a...)
		}
	}
}

// PrintMessage formats a message with color (if enabled), terminated by a newline
func PrintMessage(kind color.Attribute, tmpl string, a ...any) string {
	if maybeColorize == nil || kind == Plain {
		return fmt.Sprintf(tmpl+"\n", a...)
	}
	return fmt.Sprintln(maybeColorize(kind, tmpl, a...))
}

func fprint(cmd *cobra.Command, kind color.Attribute, tmpl string, a ...any) error {
	_, err := fmt.Fprint(cmd.OutOrStdout(), PrintMessage(kind, tmpl, a...))
	return err
}

func FprintPlain(cmd *cobra.Command, tmpl string, a ...any) error {
	return fprint(cmd, Plain, tmpl, a...)
}

func FprintSuccess(cmd *cobra.Command, tmpl string, a ...any) error {
	return fprint(cmd, Success, tmpl, a...)
}

func FprintWarning(cmd *cobra.Command, tmpl string, a ...any) error {
	return fprint(cmd, Warning, tmpl, a...)
}

// FprintError writes to the command's error stream
func FprintError(cmd *cobra.Command, tmpl string, a ...any) error {
	_, err := fmt.Fprint(cmd.ErrOrStderr(), PrintMessage(Error, tmpl, a...))
	return err
}

// StatusKind picks the color for a deployment status
func StatusKind(status domain.DeploymentStatus) color.Attribute {
	switch status {
	case domain.DeploymentStatusDeployed:
		return Success
	case domain.DeploymentStatusFailed:
		return Error
	case domain.DeploymentStatusBuilding:
		return Warning
	default:
		return Plain
	}
}

// LineKind picks the color for a deployment log line from its marker
func LineKind(line string) color.Attribute {
	switch {
	case strings.Contains(line, "❌"):
		return Error
	case strings.Contains(line, "⚠️"):
		return Warning
	case strings.Contains(line, "✅"), strings.Contains(line, "🚀"):
		return Success
	default:
		return Plain
	}
}

// FormatLogLine renders one log line for the terminal
func FormatLogLine(line domain.LogLine) string {
	return PrintMessage(LineKind(line.Text), "%s", line.Text)
}

func colorize(kind color.Attribute, s string) string {
	if maybeColorize == nil || kind == Plain {
		return s
	}
	return maybeColorize(kind, "%s", s)
}

func PrintTable(header []string, data [][]string) (string, error) {
	buf := strings.Builder{}

	table := tablewriter.NewTable(
		&buf,
		tablewriter.WithRenderer(renderer.NewBlueprint(tw.Rendition{
			Borders: tw.BorderNone,
			Settings: tw.Settings{
				Lines: tw.Lines{
					ShowHeaderLine: tw.Off,
				},
				Separators: tw.Separators{
					BetweenColumns: tw.Off,
				},
			},
		})),
		tablewriter.WithConfig(tablewriter.Config{
			Row: tw.CellConfig{
				Alignment: tw.CellAlignment{PerColumn: []tw.Align{tw.AlignRight, tw.AlignLeft}},
			},
		}))

	if len(header) > 0 {
		table.Header(header)
	}

	if err := table.Bulk(data); err != nil {
		return "", fmt.Errorf("bulk adding data to table: %w", err)
	}

	if err := table.Render(); err != nil {
		return "", fmt.Errorf("rendering table: %w", err)
	}

	return buf.String(), nil
}

// MaskSensitiveValue hides most of a secret while keeping it recognizable
func MaskSensitiveValue(value string) string {
	n := len(value)
	switch {
	case n == 0:
		return "(not set)"
	case n <= 2:
		return strings.Repeat("*", n)
	case n <= 8:
		return value[:1] + strings.Repeat("*", n-2) + value[n-1:]
	default:
		return value[:3] + strings.Repeat("*", n-6) + value[n-3:]
	}
}

func PrintDeploymentDetails(d *domain.Deployment) (string, error) {
	data := [][]string{
		{"ID", d.ID.String()},
		{"Repository", d.RepositoryURL},
		{"Platform", d.Platform.String()},
		{"Status", colorize(StatusKind(d.Status), d.Status.String())},
	}

	keys := make([]string, 0, len(d.Credentials))
	for key := range d.Credentials {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	for _, key := range keys {
		data = append(data, []string{key, MaskSensitiveValue(d.Credentials[key])})
	}

	data = append(data,
		[][]string{
			{"Log Lines", fmt.Sprintf("%d", len(d.Logs))},
			{"Analysis", d.AnalysisStr()},
			{"Created At", d.CreatedAt.Format(timeLayout)},
			{"Updated At", d.UpdatedAt.Format(timeLayout)},
		}...,
	)

	table, err := PrintTable([]string{}, data)
	if err != nil {
		return "", fmt.Errorf("printing deployment details table: %w", err)
	}
	return table, nil
}

func PrintDeploymentList(deployments []*domain.Deployment) (string, error) {
	if len(deployments) == 0 {
		return PrintMessage(Plain, "No deployments found."), nil
	}

	header := []string{
		"ID",
		"Repository",
		"Platform",
		"Status",
		"Created At",
	}
	var data [][]string
	for _, d := range deployments {
		data = append(data, []string{
			d.ID.String(),
			d.RepositoryName(),
			d.Platform.String(),
			colorize(StatusKind(d.Status), d.Status.String()),
			d.CreatedAt.Format(timeLayout),
		})
	}

	table, err := PrintTable(header, data)
	if err != nil {
		return "", fmt.Errorf("printing deployment list table: %w", err)
	}

	return table, nil
}

// CLI flag for disabling color output

// NoColor is a flag that can be used to disable colored output in the CLI.
var NoColor = &noColorFlag{set: false}

type noColorFlag struct {
	set bool
}

func (f *noColorFlag) Set(value string) error {
	// This is a boolean flag, so we ignore the value and just mark it as set
	f.set = true
	return nil
}

func (f *noColorFlag) String() string {
	if f.set {
		return "true"
	}
	return "false"
}

func (f *noColorFlag) Type() string {
	return "bool"
}

// IsSet returns true if the --no-color flag was explicitly set
func (f *noColorFlag) IsSet() bool {
	return f.set
}

// IsBoolFlag tells pflag this is a boolean flag (no argument required)
func (f *noColorFlag) IsBoolFlag() bool {
	return true
}
