package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"meridian/internal/registration"
	"meridian/internal/wizard"
)

// Navigation commands accepted at any registration prompt. Raw xterm arrow
// sequences with the configured modifier work as well.
const (
	cmdNext = ":next"
	cmdPrev = ":prev"
	cmdQuit = ":quit"
)

var errQuit = errors.New("registration cancelled")

type fieldKind int

const (
	kindText fieldKind = iota
	kindBool
	kindFile
)

type field struct {
	label string
	kind  fieldKind
	text  *string
	flag  *bool
	file  **registration.File
}

func stepFields(f *registration.Form) [][]field {
	return [][]field{
		{
			{label: "Company name", text: &f.Company.Name},
			{label: "Workspace slug", text: &f.Company.Schema},
			{label: "CPF/CNPJ", text: &f.Company.Document},
			{label: "Logo URL", text: &f.Company.LogoURL},
			{label: "Logo file", kind: kindFile, file: &f.Company.Logo},
		},
		{
			{label: "Email", text: &f.Admin.Email},
			{label: "Phone", text: &f.Admin.Phone},
			{label: "Password", text: &f.Admin.Password},
			{label: "Repeat password", text: &f.Admin.RepeatPassword},
			{label: "Nickname", text: &f.Admin.Nickname},
			{label: "Accept the terms (y/n)", kind: kindBool, flag: &f.Admin.Accepted},
			{label: "Profile picture file", kind: kindFile, file: &f.Admin.Avatar},
		},
		{
			{label: "Postal code (CEP)", text: &f.Address.PostalCode},
			{label: "Number", text: &f.Address.Number},
			{label: "Complement", text: &f.Address.Complement},
			{label: "Street", text: &f.Address.Street},
			{label: "District", text: &f.Address.District},
			{label: "City", text: &f.Address.City},
			{label: "State", text: &f.Address.State},
			{label: "Country", text: &f.Address.Country},
		},
	}
}

func newRegisterCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "register",
		Short: "Register a new company and its administrator",
		Long: `Walks through the company, administrator and address steps.

Type :next or :prev at any prompt to move between steps (Ctrl+Right and
Ctrl+Left work in terminals that send xterm sequences), or :quit to stop.
Street, district, city and state are filled from the postal code when left blank.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			eng, err := a.registrar.NewWizard()
			if err != nil {
				return err
			}
			return runWizard(cmd.Context(), a, eng, stepFields(a.registrar.Form()))
		},
	}
}

func runWizard(ctx context.Context, a *app, eng *wizard.Engine, fields [][]field) error {
	titles := eng.Steps()
	for {
		st := eng.State()
		if st.Status == wizard.StatusDone {
			a.flush()
			return nil
		}
		idx := st.CurrentIndex
		fmt.Fprintf(a.out, "\n== Step %d/%d: %s ==\n", idx+1, len(titles), titles[idx])

		navigated, err := fillStep(ctx, a, eng, fields[idx])
		if err != nil {
			return err
		}
		if !navigated {
			if _, err := eng.Next(ctx); err != nil {
				return err
			}
		}
		a.flush()
		for _, msg := range eng.State().LastErrors {
			fmt.Fprintf(a.out, "  ! %s\n", msg)
		}
	}
}

// fillStep prompts every field of a step. It reports true when the user
// navigated instead of finishing the step.
func fillStep(ctx context.Context, a *app, eng *wizard.Engine, fields []field) (bool, error) {
	for _, f := range fields {
		line, err := a.prompt(f.label, f.current())
		if err != nil {
			return false, err
		}
		handled, err := navigate(ctx, eng, line)
		if err != nil || handled {
			return handled, err
		}
		if err := f.set(line); err != nil {
			fmt.Fprintf(a.out, "  ! %s\n", err)
		}
	}
	return false, nil
}

func navigate(ctx context.Context, eng *wizard.Engine, line string) (bool, error) {
	switch strings.TrimSpace(line) {
	case cmdQuit:
		return true, errQuit
	case cmdNext:
		_, err := eng.Next(ctx)
		return true, err
	case cmdPrev:
		_, err := eng.Prev()
		return true, err
	}
	if ev, ok := wizard.ParseKey(line); ok {
		handled, _, err := eng.HandleKey(ctx, ev)
		return handled, err
	}
	return false, nil
}

func (f field) current() string {
	switch f.kind {
	case kindBool:
		if *f.flag {
			return "y"
		}
		return ""
	case kindFile:
		if *f.file != nil {
			return (*f.file).Name
		}
		return ""
	default:
		return *f.text
	}
}

func (f field) set(v string) error {
	switch f.kind {
	case kindBool:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "", "n", "no":
			*f.flag = false
		case "y", "yes":
			*f.flag = true
		default:
			ok, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("answer y or n")
			}
			*f.flag = ok
		}
	case kindFile:
		if v == "" || (*f.file != nil && v == (*f.file).Name) {
			return nil
		}
		file, err := readFile(v)
		if err != nil {
			return err
		}
		*f.file = file
	default:
		*f.text = v
	}
	return nil
}

func readFile(path string) (*registration.File, error) {
	content, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return &registration.File{
		Name:        filepath.Base(path),
		ContentType: http.DetectContentType(content),
		Content:     content,
	}, nil
}
