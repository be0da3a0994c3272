package main

import (
	"text/template"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

var (
	helpHeaderStyle = lipgloss.NewStyle().Foreground(colorPrimary).Bold(true)
	helpCmdStyle    = lipgloss.NewStyle().Foreground(colorPrimaryLight)
)

// Command groups shown in help.
const (
	groupMaintenance = "maintenance"
	groupGovernance  = "governance"
	groupStore       = "store"
)

var helpTemplateFuncs = template.FuncMap{
	"header": func(s string) string {
		if isTTY() {
			return helpHeaderStyle.Render(s)
		}
		return s
	},
	"cmd": func(s string) string {
		if isTTY() {
			return helpCmdStyle.Render(s)
		}
		return s
	},
	"muted": func(s string) string {
		if isTTY() {
			return mutedStyle.Render(s)
		}
		return s
	},
}

const helpTemplate = `{{with .Long}}{{. | trimTrailingWhitespaces}}

{{end}}{{if or .Runnable .HasSubCommands}}{{header "Usage:"}}
  {{cmd .UseLine}}{{if .HasAvailableSubCommands}} {{muted "[command]"}}{{end}}

{{end}}{{if .HasAvailableSubCommands}}{{range $group := .Groups}}{{header $group.Title}}
{{range $.Commands}}{{if and .IsAvailableCommand (eq .GroupID $group.ID)}}  {{cmd (rpad .Name .NamePadding)}} {{.Short}}
{{end}}{{end}}
{{end}}{{header "Other Commands:"}}
{{range .Commands}}{{if and .IsAvailableCommand (eq .GroupID "")}}  {{cmd (rpad .Name .NamePadding)}} {{.Short}}
{{end}}{{end}}
{{end}}{{if .HasExample}}{{header "Examples:"}}
{{.Example}}

{{end}}{{if .HasAvailableLocalFlags}}{{header "Flags:"}}
{{.LocalFlags.FlagUsages | trimTrailingWhitespaces}}

{{end}}{{if .HasAvailableInheritedFlags}}{{header "Global Flags:"}}
{{.InheritedFlags.FlagUsages | trimTrailingWhitespaces}}

{{end}}{{if .HasAvailableSubCommands}}{{muted "Use"}} {{cmd (printf "%s [command] --help" .CommandPath)}} {{muted "for more information."}}
{{end}}`

var commandGroups = []*cobra.Group{
	{ID: groupMaintenance, Title: "Maintenance:"},
	{ID: groupGovernance, Title: "Governance:"},
	{ID: groupStore, Title: "Store:"},
}

// initHelp applies the styled help template to cmd and every subcommand.
func initHelp(cmd *cobra.Command) {
	for name, fn := range helpTemplateFuncs {
		cobra.AddTemplateFunc(name, fn)
	}
	applyHelpTemplate(cmd)
}

func applyHelpTemplate(cmd *cobra.Command) {
	cmd.SetHelpTemplate(helpTemplate)
	for _, sub := range cmd.Commands() {
		applyHelpTemplate(sub)
	}
}
