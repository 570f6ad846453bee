// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package output renders login outcomes, accounts and provider lists for the
// console.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"github.com/cloudfilesync/cfsauth/pkg/auth/oauth"
	"github.com/cloudfilesync/cfsauth/pkg/auth/verify"
	cfserrors "github.com/cloudfilesync/cfsauth/pkg/errors"
	"github.com/cloudfilesync/cfsauth/pkg/provider"
)

// Output formats
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatYAML = "yaml"
)

var (
	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			Padding(0, 1)
	successTitleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42"))
	errorTitleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
	labelStyle        = lipgloss.NewStyle().Faint(true)
)

// ValidateFormat checks that format is one of the supported output formats.
func ValidateFormat(format string) error {
	switch format {
	case FormatText, FormatJSON, FormatYAML:
		return nil
	default:
		return cfserrors.NewInvalidArgumentError(
			fmt.Sprintf("unsupported output format %q (valid formats: %s, %s, %s)",
				format, FormatText, FormatJSON, FormatYAML), nil)
	}
}

// Printer writes results in one output format.
type Printer struct {
	out    io.Writer
	format string
	styled bool
}

// NewPrinter creates a Printer. Text output is decorated only when out is a
// terminal.
func NewPrinter(out io.Writer, format string) (*Printer, error) {
	if err := ValidateFormat(format); err != nil {
		return nil, err
	}
	return &Printer{out: out, format: format, styled: isTerminal(out)}, nil
}

// WithStyle forces decorated text output on or off.
func (p *Printer) WithStyle(styled bool) *Printer {
	p.styled = styled
	return p
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// OutcomeView is the structured form of a login outcome.
type OutcomeView struct {
	Success      bool           `json:"success" yaml:"success"`
	AccessToken  string         `json:"access_token,omitempty" yaml:"access_token,omitempty"`
	TokenType    string         `json:"token_type,omitempty" yaml:"token_type,omitempty"`
	RefreshToken string         `json:"refresh_token,omitempty" yaml:"refresh_token,omitempty"`
	Expiry       *time.Time     `json:"expiry,omitempty" yaml:"expiry,omitempty"`
	Scope        string         `json:"scope,omitempty" yaml:"scope,omitempty"`
	Error        string         `json:"error,omitempty" yaml:"error,omitempty"`
	Claims       map[string]any `json:"claims,omitempty" yaml:"claims,omitempty"`
}

// NewOutcomeView flattens an outcome for structured output.
func NewOutcomeView(o *oauth.Outcome) OutcomeView {
	if !o.Succeeded() {
		return OutcomeView{Error: o.Display()}
	}
	view := OutcomeView{
		Success:      true,
		AccessToken:  o.Token.AccessToken,
		TokenType:    o.Token.TokenType,
		RefreshToken: o.Token.RefreshToken,
		Claims:       o.Claims,
	}
	if !o.Token.Expiry.IsZero() {
		expiry := o.Token.Expiry.UTC()
		view.Expiry = &expiry
	}
	if scope, ok := o.Token.Extra("scope").(string); ok {
		view.Scope = scope
	}
	return view
}

// PrintOutcome writes a login outcome. Plain text output is the access token
// or the error text on a single line.
func (p *Printer) PrintOutcome(o *oauth.Outcome) error {
	switch p.format {
	case FormatJSON:
		return p.writeJSON(NewOutcomeView(o))
	case FormatYAML:
		return p.writeYAML(NewOutcomeView(o))
	}

	if !p.styled {
		_, err := fmt.Fprintln(p.out, o.Display())
		return err
	}

	var b strings.Builder
	if o.Succeeded() {
		b.WriteString(successTitleStyle.Render("Authorization successful"))
		b.WriteString("\n\n")
		b.WriteString(labelStyle.Render("Access token:"))
		b.WriteString("\n")
		b.WriteString(o.Display())
		if !o.Token.Expiry.IsZero() {
			b.WriteString("\n\n")
			b.WriteString(labelStyle.Render("Expires: "))
			b.WriteString(o.Token.Expiry.Local().Format(time.RFC1123))
		}
	} else {
		b.WriteString(errorTitleStyle.Render("Authorization failed"))
		b.WriteString("\n\n")
		b.WriteString(o.Display())
	}
	_, err := fmt.Fprintln(p.out, boxStyle.Render(b.String()))
	return err
}

// PrintAccount writes the account a token belongs to.
func (p *Printer) PrintAccount(a *verify.Account) error {
	switch p.format {
	case FormatJSON:
		return p.writeJSON(a)
	case FormatYAML:
		return p.writeYAML(a)
	}

	w := tabwriter.NewWriter(p.out, 0, 0, 3, ' ', 0)
	fmt.Fprintf(w, "ACCOUNT\t%s\n", a.Name)
	if a.NetdiskName != "" {
		fmt.Fprintf(w, "NETDISK NAME\t%s\n", a.NetdiskName)
	}
	if a.UK != 0 {
		fmt.Fprintf(w, "UK\t%d\n", a.UK)
	}
	if a.UserID != "" {
		fmt.Fprintf(w, "USER ID\t%s\n", a.UserID)
	}
	if a.DriveID != "" {
		fmt.Fprintf(w, "DRIVE ID\t%s\n", a.DriveID)
	}
	// vip_type is a Baidu Netdisk notion
	if a.UK != 0 || a.VIPType != 0 {
		fmt.Fprintf(w, "MEMBERSHIP\t%s\n", a.Membership())
	}
	return w.Flush()
}

// PrintProviders writes the provider presets.
func (p *Printer) PrintProviders(providers []provider.Provider) error {
	sorted := make([]provider.Provider, len(providers))
	copy(sorted, providers)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	switch p.format {
	case FormatJSON:
		return p.writeJSON(sorted)
	case FormatYAML:
		return p.writeYAML(sorted)
	}

	w := tabwriter.NewWriter(p.out, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "NAME\tDESCRIPTION\tAUTH URL\tSCOPES")
	for _, pr := range sorted {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			pr.Name, pr.DisplayName, orDash(pr.AuthURL), orDash(pr.ScopeString()))
	}
	return w.Flush()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func (p *Printer) writeJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return cfserrors.NewInternalError("failed to marshal JSON", err)
	}
	_, err = fmt.Fprintln(p.out, string(data))
	return err
}

func (p *Printer) writeYAML(v any) error {
	enc := yaml.NewEncoder(p.out)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return cfserrors.NewInternalError("failed to marshal YAML", err)
	}
	return enc.Close()
}
